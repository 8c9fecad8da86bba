// Package allocator resolves an order's demand to a concrete inventory unit
// and, for account units, to concrete slots. It only validates a caller-chosen
// unit/slot against eligibility; it never auto-picks for new orders, so an
// operator always sees what they are committing to.
package allocator

import (
	"fmt"
	"time"

	"vendra-system/internal/database/models"
)

// Eligible reports whether a unit can satisfy a new assignment. An expired
// unit stays eligible only for the order it is already bound to, so editing
// an old order does not lose its binding.
func Eligible(u *models.InventoryUnit, editingOrderID *int64, now time.Time) bool {
	if u.IsExpired(now) || u.Status == models.UnitExpired {
		if editingOrderID == nil || !u.BoundTo(*editingOrderID) {
			return false
		}
	}

	switch u.Kind {
	case models.UnitKindAccount:
		if u.HasFreeSlot() {
			return true
		}
		return editingOrderID != nil && len(u.SlotsOwnedBy(*editingOrderID)) > 0
	default:
		if u.Status == models.UnitAvailable {
			return true
		}
		return editingOrderID != nil && u.LinkedOrderID != nil && *u.LinkedOrderID == *editingOrderID
	}
}

// ResolveCandidates filters units down to those that can satisfy a purchase of
// the given package. Pooled products draw from every unit of the product,
// ignoring package boundaries; otherwise only units stocked for the package
// qualify.
func ResolveCandidates(units []models.InventoryUnit, sharedPool bool, productID, packageID int64, editingOrderID *int64, now time.Time) []models.InventoryUnit {
	var out []models.InventoryUnit
	for i := range units {
		u := &units[i]
		if sharedPool {
			if u.ProductID != productID {
				continue
			}
		} else {
			if u.PackageID == nil || *u.PackageID != packageID {
				continue
			}
		}
		if Eligible(u, editingOrderID, now) {
			out = append(out, units[i])
		}
	}
	return out
}

// Assign binds the order to the unit. For account units every requested slot
// must be free or already owned by the order; a needs_update slot is only
// assignable back to its own bound order (repair path). Classic units carry
// the binding on the unit itself.
func Assign(u *models.InventoryUnit, orderID int64, slotIDs []string, expiry time.Time, now time.Time) error {
	if u == nil {
		return ErrUnitNotFound
	}
	if (u.IsExpired(now) || u.Status == models.UnitExpired) && !u.BoundTo(orderID) {
		return fmt.Errorf("%w: %s", ErrUnitExpired, u.Code)
	}

	switch u.Kind {
	case models.UnitKindAccount:
		if len(slotIDs) == 0 {
			return ErrNoSlotSelected
		}
		for _, id := range slotIDs {
			s := u.FindSlot(id)
			if s == nil {
				return fmt.Errorf("%w: %s", ErrSlotNotFound, id)
			}
			ownedBySelf := s.IsAssigned && s.AssignedOrderID != nil && *s.AssignedOrderID == orderID
			if s.NeedsUpdate && !ownedBySelf {
				return fmt.Errorf("%w: %s", ErrSlotNeedsUpdate, id)
			}
			if s.IsAssigned && !ownedBySelf {
				return fmt.Errorf("%w: %s", ErrSlotAlreadyAssigned, id)
			}
		}
		for _, id := range slotIDs {
			s := u.FindSlot(id)
			oid := orderID
			at := now
			exp := expiry
			s.IsAssigned = true
			s.AssignedOrderID = &oid
			s.AssignedAt = &at
			s.ExpiryAt = &exp
		}
	default:
		if u.LinkedOrderID != nil && *u.LinkedOrderID != orderID {
			return fmt.Errorf("%w: unit %s", ErrSlotAlreadyAssigned, u.Code)
		}
		oid := orderID
		u.LinkedOrderID = &oid
	}

	RecomputeStatus(u, now)
	return nil
}

// Release clears every binding on the unit that points at the order and
// recomputes the unit status. Releasing an order with no binding is a no-op,
// so callers can sweep defensively without first checking ownership.
func Release(u *models.InventoryUnit, orderID int64, now time.Time) bool {
	changed := false
	if u.LinkedOrderID != nil && *u.LinkedOrderID == orderID {
		u.LinkedOrderID = nil
		changed = true
	}
	for i := range u.Profiles {
		s := &u.Profiles[i]
		if s.AssignedOrderID != nil && *s.AssignedOrderID == orderID {
			s.IsAssigned = false
			s.AssignedOrderID = nil
			s.AssignedAt = nil
			s.ExpiryAt = nil
			changed = true
		}
	}
	if changed {
		RecomputeStatus(u, now)
	}
	return changed
}

// ReleaseSlot clears a single slot regardless of which order owns it. Used by
// the expiry sweep when an individual slot lapses.
func ReleaseSlot(u *models.InventoryUnit, slotID string, now time.Time) (ownerID *int64, released bool) {
	s := u.FindSlot(slotID)
	if s == nil || !s.IsAssigned {
		return nil, false
	}
	ownerID = s.AssignedOrderID
	s.IsAssigned = false
	s.AssignedOrderID = nil
	s.AssignedAt = nil
	s.ExpiryAt = nil
	RecomputeStatus(u, now)
	return ownerID, true
}

// PropagateExpiry mirrors a new order expiry onto every slot the order owns,
// keeping the sweep's per-slot view in lockstep with the order.
func PropagateExpiry(u *models.InventoryUnit, orderID int64, newExpiry time.Time) bool {
	changed := false
	for i := range u.Profiles {
		s := &u.Profiles[i]
		if s.IsAssigned && s.AssignedOrderID != nil && *s.AssignedOrderID == orderID {
			exp := newExpiry
			s.ExpiryAt = &exp
			changed = true
		}
	}
	return changed
}

// RecomputeStatus derives the unit status from its bindings. Expiry wins over
// everything; a RESERVED operator hold survives as long as the unit is
// otherwise idle.
func RecomputeStatus(u *models.InventoryUnit, now time.Time) {
	if u.IsExpired(now) {
		u.Status = models.UnitExpired
		return
	}

	switch u.Kind {
	case models.UnitKindAccount:
		if !u.HasFreeSlot() {
			u.Status = models.UnitSold
			return
		}
	default:
		if u.LinkedOrderID != nil {
			u.Status = models.UnitSold
			return
		}
	}

	if u.Status != models.UnitReserved {
		u.Status = models.UnitAvailable
	}
}
