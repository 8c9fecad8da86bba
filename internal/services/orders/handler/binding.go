package handler

import (
	"fmt"

	"github.com/shopspring/decimal"

	"vendra-system/internal/database/models"
	"vendra-system/internal/services/allocator"
)

// VerifyBinding checks that everything the order claims is reflected back by
// the unit. A mismatch is surfaced as ErrInconsistentBinding and never
// repaired automatically.
func VerifyBinding(o *models.Order, unit *models.InventoryUnit) error {
	if !o.HasBinding() {
		return nil
	}
	if o.InventoryItemID == nil {
		return fmt.Errorf("%w: order %s claims slots but no unit", allocator.ErrInconsistentBinding, o.Code)
	}
	if unit == nil || unit.ID != *o.InventoryItemID {
		return fmt.Errorf("%w: order %s references missing unit %d", allocator.ErrInconsistentBinding, o.Code, *o.InventoryItemID)
	}

	switch unit.Kind {
	case models.UnitKindAccount:
		for _, slotID := range o.InventoryProfileIDs {
			s := unit.FindSlot(slotID)
			if s == nil {
				return fmt.Errorf("%w: order %s claims unknown slot %s", allocator.ErrInconsistentBinding, o.Code, slotID)
			}
			if !s.IsAssigned || s.AssignedOrderID == nil || *s.AssignedOrderID != o.ID {
				return fmt.Errorf("%w: slot %s does not reference order %s back", allocator.ErrInconsistentBinding, slotID, o.Code)
			}
		}
		if len(o.InventoryProfileIDs) == 0 {
			return fmt.Errorf("%w: order %s claims account unit %s without slots", allocator.ErrInconsistentBinding, o.Code, unit.Code)
		}
	default:
		if unit.LinkedOrderID == nil || *unit.LinkedOrderID != o.ID {
			return fmt.Errorf("%w: unit %s does not reference order %s back", allocator.ErrInconsistentBinding, unit.Code, o.Code)
		}
	}
	return nil
}

// ComputeCogs snapshots the cost of the binding from the unit's purchase
// price. An account unit's cost is apportioned over the slots taken.
func ComputeCogs(unit *models.InventoryUnit, slotCount int) string {
	price, err := decimal.NewFromString(unit.PurchasePrice)
	if err != nil {
		return "0.00"
	}
	if unit.Kind == models.UnitKindAccount {
		if unit.TotalSlots == 0 {
			return "0.00"
		}
		share := price.Mul(decimal.NewFromInt(int64(slotCount))).
			Div(decimal.NewFromInt(int64(unit.TotalSlots)))
		return share.Round(2).StringFixed(2)
	}
	return price.Round(2).StringFixed(2)
}
