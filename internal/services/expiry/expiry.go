// Package expiry computes order and unit expiry dates and plans the sweep
// that releases lapsed bindings.
package expiry

import (
	"time"

	"vendra-system/internal/database/models"
)

// AddMonths advances t by the given number of calendar months, clamping
// day-of-month overflow to the last day of the target month
// (Jan 31 + 1 month -> Feb 28/29).
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(firstOfTarget.Year(), firstOfTarget.Month()); d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ComputeOrderExpiry derives an order's expiry. An operator-supplied override
// wins unconditionally. With renewals present the latest renewal's recorded
// NewExpiryDate is authoritative, which keeps the computation reproducible
// from the ledger alone. Otherwise it is purchase date + base warranty months.
func ComputeOrderExpiry(purchase time.Time, baseMonths int32, renewals []models.Renewal, override *time.Time) time.Time {
	if override != nil {
		return *override
	}
	if len(renewals) > 0 {
		return renewals[len(renewals)-1].NewExpiryDate
	}
	return AddMonths(purchase, int(baseMonths))
}

// RecomputeForPackageChange returns the expiry to use after an order's
// package changes. An order that has renewals keeps its paid-for expiry
// rather than being silently shortened to the new package's warranty.
func RecomputeForPackageChange(o *models.Order, newBaseMonths int32) time.Time {
	if r := o.LatestRenewal(); r != nil {
		if !r.NewExpiryDate.IsZero() {
			return r.NewExpiryDate
		}
		return o.ExpiryDate
	}
	return AddMonths(o.PurchaseDate, int(newBaseMonths))
}

// LapsedSlots lists the slot ids on the unit whose assignment has outlived
// its expiry.
func LapsedSlots(u *models.InventoryUnit, now time.Time) []string {
	var ids []string
	for i := range u.Profiles {
		s := &u.Profiles[i]
		if s.IsAssigned && s.ExpiryAt != nil && s.ExpiryAt.Before(now) {
			ids = append(ids, s.SlotID)
		}
	}
	return ids
}
