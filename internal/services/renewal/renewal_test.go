package renewal

import (
	"errors"
	"testing"
	"time"

	"vendra-system/internal/database/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestApplyLiveItemExtendsFromExpiry(t *testing.T) {
	now := date(2025, time.June, 15)
	current := date(2025, time.August, 1)

	rec, newExpiry := Apply(current, now, 2, "50.00", models.PaymentPaid, nil)

	if want := date(2025, time.October, 1); !newExpiry.Equal(want) {
		t.Errorf("live item should extend from its current expiry: got %v, want %v", newExpiry, want)
	}
	if !rec.PreviousExpiryDate.Equal(current) {
		t.Errorf("record should keep the pre-renewal expiry, got %v", rec.PreviousExpiryDate)
	}
	if !rec.NewExpiryDate.Equal(newExpiry) {
		t.Error("record and returned expiry disagree")
	}
	if rec.ID == "" {
		t.Error("renewal needs a stable id")
	}
	if rec.Months != 2 || rec.Amount != "50.00" || rec.PaymentStatus != models.PaymentPaid {
		t.Errorf("record fields not carried through: %+v", rec)
	}
}

func TestApplyLapsedItemExtendsFromNow(t *testing.T) {
	now := date(2025, time.June, 15)
	current := date(2025, time.February, 1)

	rec, newExpiry := Apply(current, now, 1, "25.00", models.PaymentUnpaid, nil)

	if want := date(2025, time.July, 15); !newExpiry.Equal(want) {
		t.Errorf("lapsed item should extend from now: got %v, want %v", newExpiry, want)
	}
	if !rec.PreviousExpiryDate.Equal(current) {
		t.Error("record must still show the lapsed expiry it replaced")
	}
	if !newExpiry.After(current) {
		t.Error("renewal must move the expiry forward")
	}
}

func TestApplyClampsMonths(t *testing.T) {
	now := date(2025, time.June, 15)
	current := date(2025, time.August, 1)

	rec, newExpiry := Apply(current, now, 0, "10.00", models.PaymentPaid, nil)
	if rec.Months != 1 {
		t.Errorf("months below 1 should clamp to 1, got %d", rec.Months)
	}
	if want := date(2025, time.September, 1); !newExpiry.Equal(want) {
		t.Errorf("got %v, want one month extension", newExpiry)
	}
}

func TestApplyUniqueIDs(t *testing.T) {
	now := date(2025, time.June, 15)
	a, _ := Apply(now, now, 1, "5.00", models.PaymentPaid, nil)
	b, _ := Apply(now, now, 1, "5.00", models.PaymentPaid, nil)
	if a.ID == b.ID {
		t.Error("independent renewals must not share an id")
	}
}

func TestSetPaymentStatus(t *testing.T) {
	ledger := models.RenewalArray{
		{ID: "r1", PaymentStatus: models.PaymentUnpaid},
		{ID: "r2", PaymentStatus: models.PaymentUnpaid},
	}

	if err := SetPaymentStatus(ledger, "r2", models.PaymentPaid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger[1].PaymentStatus != models.PaymentPaid {
		t.Error("target renewal should be marked paid")
	}
	if ledger[0].PaymentStatus != models.PaymentUnpaid {
		t.Error("other renewals must stay untouched")
	}

	if err := SetPaymentStatus(ledger, "missing", models.PaymentPaid); !errors.Is(err, ErrRenewalNotFound) {
		t.Fatalf("expected ErrRenewalNotFound, got %v", err)
	}
}
