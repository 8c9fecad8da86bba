package expiry

import (
	"testing"
	"time"

	"vendra-system/internal/database/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{"plain month", date(2025, time.March, 15), 1, date(2025, time.April, 15)},
		{"jan 31 clamps to feb 28", date(2025, time.January, 31), 1, date(2025, time.February, 28)},
		{"jan 31 clamps to feb 29 in leap year", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"mar 31 clamps to apr 30", date(2025, time.March, 31), 1, date(2025, time.April, 30)},
		{"year rollover", date(2025, time.November, 10), 3, date(2026, time.February, 10)},
		{"feb 29 plus a year lands on feb 28", date(2024, time.February, 29), 12, date(2025, time.February, 28)},
		{"twelve months keeps the day", date(2025, time.June, 30), 12, date(2026, time.June, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddMonths(tt.start, tt.months); !got.Equal(tt.want) {
				t.Errorf("AddMonths(%v, %d) = %v, want %v", tt.start, tt.months, got, tt.want)
			}
		})
	}
}

func TestAddMonthsPreservesClock(t *testing.T) {
	start := time.Date(2025, time.January, 31, 13, 45, 30, 0, time.UTC)
	got := AddMonths(start, 1)
	if got.Hour() != 13 || got.Minute() != 45 || got.Second() != 30 {
		t.Errorf("time of day should survive the month shift, got %v", got)
	}
}

func TestComputeOrderExpiry(t *testing.T) {
	purchase := date(2025, time.January, 10)

	t.Run("base warranty", func(t *testing.T) {
		got := ComputeOrderExpiry(purchase, 3, nil, nil)
		if want := date(2025, time.April, 10); !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("override wins", func(t *testing.T) {
		override := date(2025, time.December, 1)
		renewals := []models.Renewal{{NewExpiryDate: date(2025, time.June, 10)}}
		if got := ComputeOrderExpiry(purchase, 3, renewals, &override); !got.Equal(override) {
			t.Errorf("got %v, want override %v", got, override)
		}
	})

	t.Run("latest renewal is authoritative", func(t *testing.T) {
		renewals := []models.Renewal{
			{NewExpiryDate: date(2025, time.April, 10)},
			{NewExpiryDate: date(2025, time.July, 10)},
		}
		if got := ComputeOrderExpiry(purchase, 3, renewals, nil); !got.Equal(date(2025, time.July, 10)) {
			t.Errorf("got %v, want the latest renewal's expiry", got)
		}
	})
}

func TestRecomputeForPackageChange(t *testing.T) {
	t.Run("no renewals recomputes from the new warranty", func(t *testing.T) {
		o := &models.Order{
			PurchaseDate: date(2025, time.January, 10),
			ExpiryDate:   date(2025, time.April, 10),
		}
		if got := RecomputeForPackageChange(o, 6); !got.Equal(date(2025, time.July, 10)) {
			t.Errorf("got %v, want purchase + 6 months", got)
		}
	})

	t.Run("renewed order keeps its paid-for expiry", func(t *testing.T) {
		o := &models.Order{
			PurchaseDate: date(2025, time.January, 10),
			ExpiryDate:   date(2025, time.October, 10),
			Renewals: models.RenewalArray{
				{NewExpiryDate: date(2025, time.October, 10)},
			},
		}
		if got := RecomputeForPackageChange(o, 1); !got.Equal(date(2025, time.October, 10)) {
			t.Errorf("got %v, renewed expiry must not shrink on a package change", got)
		}
	})
}

func TestLapsedSlots(t *testing.T) {
	now := date(2025, time.June, 15)
	past := date(2025, time.June, 1)
	future := date(2025, time.July, 1)
	seven := int64(7)

	u := &models.InventoryUnit{
		Kind: models.UnitKindAccount,
		Profiles: models.SlotArray{
			{SlotID: "s1", IsAssigned: true, AssignedOrderID: &seven, ExpiryAt: &past},
			{SlotID: "s2", IsAssigned: true, AssignedOrderID: &seven, ExpiryAt: &future},
			{SlotID: "s3"},
			{SlotID: "s4", IsAssigned: true, AssignedOrderID: &seven},
		},
	}

	got := LapsedSlots(u, now)
	if len(got) != 1 || got[0] != "s1" {
		t.Fatalf("expected only s1 to have lapsed, got %v", got)
	}
}
