package handler

import (
	"testing"

	"vendra-system/internal/database/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		want     bool
	}{
		{models.OrderProcessing, models.OrderCompleted, true},
		{models.OrderProcessing, models.OrderCancelled, true},
		{models.OrderCompleted, models.OrderProcessing, true},
		{models.OrderCompleted, models.OrderExpired, true},
		{models.OrderExpired, models.OrderCompleted, true},
		{models.OrderExpired, models.OrderCancelled, true},
		{models.OrderCancelled, models.OrderProcessing, false},
		{models.OrderCancelled, models.OrderCompleted, false},
		{models.OrderCancelled, models.OrderExpired, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	unitID := int64(3)

	t.Run("binding completes the order", func(t *testing.T) {
		o := &models.Order{Status: models.OrderProcessing, InventoryItemID: &unitID}
		if got := DeriveStatus(o); got != models.OrderCompleted {
			t.Errorf("got %s, want COMPLETED", got)
		}
	})

	t.Run("no binding means processing", func(t *testing.T) {
		o := &models.Order{Status: models.OrderCompleted}
		if got := DeriveStatus(o); got != models.OrderProcessing {
			t.Errorf("got %s, want PROCESSING", got)
		}
	})

	t.Run("slot claim counts as a binding", func(t *testing.T) {
		o := &models.Order{Status: models.OrderProcessing, InventoryProfileIDs: models.StringArray{"s1"}}
		if got := DeriveStatus(o); got != models.OrderCompleted {
			t.Errorf("got %s, want COMPLETED", got)
		}
	})

	t.Run("terminal statuses are never overwritten", func(t *testing.T) {
		o := &models.Order{Status: models.OrderCancelled, InventoryItemID: &unitID}
		if got := DeriveStatus(o); got != models.OrderCancelled {
			t.Errorf("got %s, CANCELLED must stick", got)
		}
		o = &models.Order{Status: models.OrderExpired}
		if got := DeriveStatus(o); got != models.OrderExpired {
			t.Errorf("got %s, EXPIRED must stick until a renewal reopens it", got)
		}
	})
}
