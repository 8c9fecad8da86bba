package allocator

import "errors"

var (
	ErrUnitNotFound        = errors.New("inventory unit not found")
	ErrUnitExpired         = errors.New("inventory unit is expired")
	ErrSlotAlreadyAssigned = errors.New("slot is assigned to another order")
	ErrSlotNotFound        = errors.New("slot not found on unit")
	ErrSlotNeedsUpdate     = errors.New("slot is flagged for update and cannot take new assignments")
	ErrNoSlotSelected      = errors.New("no slot selected for account-based unit")

	// ErrInconsistentBinding means an order and its unit disagree about who
	// owns what. It is surfaced for manual reconciliation, never auto-fixed:
	// picking a side could silently release a paying customer's slot.
	ErrInconsistentBinding = errors.New("order and inventory binding are inconsistent")
)
