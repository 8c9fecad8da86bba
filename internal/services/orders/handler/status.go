package handler

import "vendra-system/internal/database/models"

// validNext encodes the binding-relevant order state machine. CANCELLED is
// terminal. EXPIRED can reopen through a renewal, which re-derives the status
// from the surviving binding.
var validNext = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.OrderProcessing: {
		models.OrderCompleted: true,
		models.OrderCancelled: true,
		models.OrderExpired:   true,
	},
	models.OrderCompleted: {
		models.OrderProcessing: true,
		models.OrderCancelled:  true,
		models.OrderExpired:    true,
	},
	models.OrderExpired: {
		models.OrderProcessing: true,
		models.OrderCompleted:  true,
		models.OrderCancelled:  true,
	},
	models.OrderCancelled: {},
}

func CanTransition(from, to models.OrderStatus) bool {
	return validNext[from][to]
}

// DeriveStatus computes the automatic status from the binding: COMPLETED iff
// a binding exists, PROCESSING otherwise. Terminal statuses are never
// overwritten here.
func DeriveStatus(o *models.Order) models.OrderStatus {
	if o.IsTerminal() {
		return o.Status
	}
	if o.HasBinding() {
		return models.OrderCompleted
	}
	return models.OrderProcessing
}
