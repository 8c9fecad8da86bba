// Package renewal appends extension events to an order's or unit's ledger
// and computes the resulting expiry.
package renewal

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"vendra-system/internal/database/models"
	"vendra-system/internal/services/expiry"
)

var ErrInvalidRenewalMonths = errors.New("renewal months must be at least 1")

var ErrRenewalNotFound = errors.New("renewal not found")

// Apply builds the immutable renewal record for an extension of the given
// number of months. A live item extends from its current expiry; a lapsed one
// extends from now, so stale past expiry never grants free time. Months below
// 1 are clamped to 1.
func Apply(currentExpiry, now time.Time, months int32, amount string, payStatus models.PaymentStatus, note *string) (models.Renewal, time.Time) {
	if months < 1 {
		months = 1
	}

	base := currentExpiry
	if now.After(base) {
		base = now
	}
	newExpiry := expiry.AddMonths(base, int(months))

	rec := models.Renewal{
		ID:                 uuid.NewString(),
		Months:             months,
		Amount:             amount,
		PreviousExpiryDate: currentExpiry,
		NewExpiryDate:      newExpiry,
		PaymentStatus:      payStatus,
		Note:               note,
		CreatedAt:          now,
	}
	return rec, newExpiry
}

// SetPaymentStatus corrects the payment status of a single renewal in the
// ledger. Every other field of a renewal is immutable once written.
func SetPaymentStatus(ledger models.RenewalArray, renewalID string, status models.PaymentStatus) error {
	for i := range ledger {
		if ledger[i].ID == renewalID {
			ledger[i].PaymentStatus = status
			return nil
		}
	}
	return ErrRenewalNotFound
}
