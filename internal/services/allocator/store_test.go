package allocator

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vendra-system/internal/database"
	"vendra-system/internal/database/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := database.MigrateAll(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func seedUnits(t *testing.T, db *gorm.DB, units ...*models.InventoryUnit) {
	t.Helper()
	for _, u := range units {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seeding unit %s: %v", u.Code, err)
		}
	}
}

func TestFindBoundUnitsScansSlotOwnership(t *testing.T) {
	db := newTestDB(t)

	linked := classicUnit(1, 10)
	linked.LinkedOrderID = i64(9)
	held := accountUnit(2, 10, takenSlot("s1", 9), freeSlot("s2"))
	held.Code = "AC-2"
	foreign := accountUnit(3, 10, takenSlot("t1", 8), freeSlot("t2"))
	foreign.Code = "AC-3"
	idle := classicUnit(4, 10)
	idle.Code = "CL-4"
	seedUnits(t, db, linked, held, foreign, idle)

	units, err := FindBoundUnits(db, 9)
	if err != nil {
		t.Fatalf("FindBoundUnits: %v", err)
	}
	got := map[int64]bool{}
	for i := range units {
		got[units[i].ID] = true
	}
	if len(got) != 2 || !got[1] || !got[2] {
		t.Errorf("expected units 1 and 2, got %v", got)
	}
}

// ReleaseAll never consults the order row, so bindings survive even when the
// order's own pointers are stale.
func TestReleaseAllClearsEveryBinding(t *testing.T) {
	db := newTestDB(t)

	linked := classicUnit(1, 10)
	linked.LinkedOrderID = i64(9)
	linked.Status = models.UnitSold
	held := accountUnit(2, 10, takenSlot("s1", 9), freeSlot("s2"))
	held.Code = "AC-2"
	seedUnits(t, db, linked, held)

	changed, err := ReleaseAll(db, 9, testNow)
	if err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("expected 2 changed units, got %v", changed)
	}

	var cl models.InventoryUnit
	if err := db.First(&cl, 1).Error; err != nil {
		t.Fatalf("reloading classic unit: %v", err)
	}
	if cl.LinkedOrderID != nil || cl.Status != models.UnitAvailable || cl.Version != 1 {
		t.Errorf("classic unit not released: %+v", cl)
	}

	var ac models.InventoryUnit
	if err := db.First(&ac, 2).Error; err != nil {
		t.Fatalf("reloading account unit: %v", err)
	}
	if ac.FindSlot("s1").IsAssigned || ac.Version != 1 {
		t.Errorf("account slot not released: %+v", ac)
	}

	// releasing again is a no-op and leaves versions alone
	changed, err = ReleaseAll(db, 9, testNow)
	if err != nil {
		t.Fatalf("second ReleaseAll: %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("second release should change nothing, got %v", changed)
	}
}
