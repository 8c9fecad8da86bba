package allocator

import (
	"time"

	"gorm.io/gorm"

	"vendra-system/internal/database"
	"vendra-system/internal/database/models"
)

// FindBoundUnits returns every unit holding a binding that points at the
// order, including units the order itself no longer references. Orders can
// carry stale or missing inventory pointers from earlier edits, so release
// paths scan instead of trusting the pointer. Slot ownership lives inside the
// profiles JSON column, so account units are filtered here rather than in SQL.
func FindBoundUnits(tx *gorm.DB, orderID int64) ([]models.InventoryUnit, error) {
	var units []models.InventoryUnit
	err := tx.Where("linked_order_id = ?", orderID).
		Or("kind = ?", models.UnitKindAccount).
		Find(&units).Error
	if err != nil {
		return nil, err
	}

	bound := units[:0]
	for i := range units {
		if units[i].BoundTo(orderID) {
			bound = append(bound, units[i])
		}
	}
	return bound, nil
}

// ReleaseAll releases everything the order holds, across all units, and
// persists each touched unit with a version check. Returns the ids of the
// units that changed. Calling it for an order with no bindings is a no-op.
func ReleaseAll(tx *gorm.DB, orderID int64, now time.Time) ([]int64, error) {
	units, err := FindBoundUnits(tx, orderID)
	if err != nil {
		return nil, err
	}

	var changed []int64
	for i := range units {
		if Release(&units[i], orderID, now) {
			if err := database.SaveUnitVersioned(tx, &units[i]); err != nil {
				return changed, err
			}
			changed = append(changed, units[i].ID)
		}
	}
	return changed, nil
}
