package handler

import (
	"errors"
	"testing"

	"vendra-system/internal/database/models"
	"vendra-system/internal/services/allocator"
)

func i64(v int64) *int64 { return &v }

func TestVerifyBindingClassic(t *testing.T) {
	order := &models.Order{ID: 7, Code: "ORD-7", InventoryItemID: i64(1)}
	unit := &models.InventoryUnit{ID: 1, Code: "CL-1", Kind: models.UnitKindClassic, LinkedOrderID: i64(7)}

	if err := VerifyBinding(order, unit); err != nil {
		t.Fatalf("consistent binding should verify, got %v", err)
	}

	unit.LinkedOrderID = i64(8)
	if err := VerifyBinding(order, unit); !errors.Is(err, allocator.ErrInconsistentBinding) {
		t.Fatalf("unit pointing at another order must be inconsistent, got %v", err)
	}

	unit.LinkedOrderID = nil
	if err := VerifyBinding(order, unit); !errors.Is(err, allocator.ErrInconsistentBinding) {
		t.Fatalf("unit without a back-reference must be inconsistent, got %v", err)
	}
}

func TestVerifyBindingAccount(t *testing.T) {
	unit := &models.InventoryUnit{
		ID:   1,
		Code: "AC-1",
		Kind: models.UnitKindAccount,
		Profiles: models.SlotArray{
			{SlotID: "s1", IsAssigned: true, AssignedOrderID: i64(7)},
			{SlotID: "s2", IsAssigned: true, AssignedOrderID: i64(8)},
		},
	}

	order := &models.Order{ID: 7, Code: "ORD-7", InventoryItemID: i64(1), InventoryProfileIDs: models.StringArray{"s1"}}
	if err := VerifyBinding(order, unit); err != nil {
		t.Fatalf("consistent slot binding should verify, got %v", err)
	}

	t.Run("foreign slot claim", func(t *testing.T) {
		o := &models.Order{ID: 7, Code: "ORD-7", InventoryItemID: i64(1), InventoryProfileIDs: models.StringArray{"s2"}}
		if err := VerifyBinding(o, unit); !errors.Is(err, allocator.ErrInconsistentBinding) {
			t.Fatalf("claiming a slot owned by another order must be inconsistent, got %v", err)
		}
	})

	t.Run("unknown slot claim", func(t *testing.T) {
		o := &models.Order{ID: 7, Code: "ORD-7", InventoryItemID: i64(1), InventoryProfileIDs: models.StringArray{"nope"}}
		if err := VerifyBinding(o, unit); !errors.Is(err, allocator.ErrInconsistentBinding) {
			t.Fatalf("claiming an unknown slot must be inconsistent, got %v", err)
		}
	})

	t.Run("account unit claimed without slots", func(t *testing.T) {
		o := &models.Order{ID: 7, Code: "ORD-7", InventoryItemID: i64(1)}
		if err := VerifyBinding(o, unit); !errors.Is(err, allocator.ErrInconsistentBinding) {
			t.Fatalf("an account unit claim needs at least one slot, got %v", err)
		}
	})
}

func TestVerifyBindingEdges(t *testing.T) {
	t.Run("unbound order is consistent", func(t *testing.T) {
		if err := VerifyBinding(&models.Order{ID: 7, Code: "ORD-7"}, nil); err != nil {
			t.Fatalf("order without binding claims should verify, got %v", err)
		}
	})

	t.Run("slots claimed without a unit", func(t *testing.T) {
		o := &models.Order{ID: 7, Code: "ORD-7", InventoryProfileIDs: models.StringArray{"s1"}}
		if err := VerifyBinding(o, nil); !errors.Is(err, allocator.ErrInconsistentBinding) {
			t.Fatalf("slot claims without a unit must be inconsistent, got %v", err)
		}
	})

	t.Run("missing unit", func(t *testing.T) {
		o := &models.Order{ID: 7, Code: "ORD-7", InventoryItemID: i64(1)}
		if err := VerifyBinding(o, nil); !errors.Is(err, allocator.ErrInconsistentBinding) {
			t.Fatalf("a claimed but missing unit must be inconsistent, got %v", err)
		}
	})
}

func TestComputeCogs(t *testing.T) {
	t.Run("classic unit costs its full purchase price", func(t *testing.T) {
		u := &models.InventoryUnit{Kind: models.UnitKindClassic, PurchasePrice: "120.50"}
		if got := ComputeCogs(u, 0); got != "120.50" {
			t.Errorf("got %s, want 120.50", got)
		}
	})

	t.Run("account unit apportions per slot", func(t *testing.T) {
		u := &models.InventoryUnit{Kind: models.UnitKindAccount, PurchasePrice: "100.00", TotalSlots: 5}
		if got := ComputeCogs(u, 2); got != "40.00" {
			t.Errorf("got %s, want 40.00", got)
		}
	})

	t.Run("uneven division rounds to cents", func(t *testing.T) {
		u := &models.InventoryUnit{Kind: models.UnitKindAccount, PurchasePrice: "100.00", TotalSlots: 3}
		if got := ComputeCogs(u, 1); got != "33.33" {
			t.Errorf("got %s, want 33.33", got)
		}
	})

	t.Run("degenerate inputs", func(t *testing.T) {
		u := &models.InventoryUnit{Kind: models.UnitKindAccount, PurchasePrice: "100.00", TotalSlots: 0}
		if got := ComputeCogs(u, 1); got != "0.00" {
			t.Errorf("zero slots should cost 0.00, got %s", got)
		}
		u = &models.InventoryUnit{Kind: models.UnitKindClassic, PurchasePrice: "not-a-number"}
		if got := ComputeCogs(u, 0); got != "0.00" {
			t.Errorf("unparseable price should cost 0.00, got %s", got)
		}
	})
}
