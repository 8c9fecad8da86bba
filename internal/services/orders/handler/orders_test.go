package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vendra-system/internal/database"
	"vendra-system/internal/database/models"
	"vendra-system/internal/notify"
	"vendra-system/internal/services/allocator"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// newTestHandler backs the coordinator with an in-memory database. The redis
// client points at a dead port: cache lookups miss and publishes are dropped,
// both of which the handlers already treat as non-fatal.
func newTestHandler(t *testing.T) (*OrderHandler, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := database.MigrateAll(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	h := NewOrderHandler(db, rdb, notify.NewPublisher(rdb), fixedClock{t: testNow})
	return h, db
}

func seedCatalog(t *testing.T, db *gorm.DB) (models.Customer, models.Package, models.Package) {
	t.Helper()

	product := models.Product{ProductCode: "PRD-1", ProductName: "Streaming", IsActive: true}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seeding product: %v", err)
	}
	classic := models.Package{
		PackageCode: "PKG-CL", PackageName: "License Key", ProductID: product.ID,
		WarrantyMonths: 1, Price: "30.00", IsActive: true,
	}
	if err := db.Create(&classic).Error; err != nil {
		t.Fatalf("seeding classic package: %v", err)
	}
	account := models.Package{
		PackageCode: "PKG-AC", PackageName: "Shared Seat", ProductID: product.ID,
		WarrantyMonths: 1, Price: "10.00", IsAccountBased: true, TotalSlots: 2,
		SlotLabels: models.StringArray{"P1", "P2"}, IsActive: true,
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("seeding account package: %v", err)
	}
	customer := models.Customer{CustomerCode: "CUS-1", CustomerName: "Alice", IsActive: true}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seeding customer: %v", err)
	}
	return customer, classic, account
}

func seedClassicUnit(t *testing.T, db *gorm.DB, pkg models.Package, code string) models.InventoryUnit {
	t.Helper()
	unit := models.InventoryUnit{
		Code: code, ProductID: pkg.ProductID, PackageID: &pkg.ID,
		Kind: models.UnitKindClassic, Status: models.UnitAvailable,
		PurchaseDate: testNow.AddDate(0, -1, 0), ExpiryDate: testNow.AddDate(1, 0, 0),
		PurchasePrice: "20.00", Profiles: models.SlotArray{}, Renewals: models.RenewalArray{},
	}
	if err := db.Create(&unit).Error; err != nil {
		t.Fatalf("seeding classic unit: %v", err)
	}
	return unit
}

func seedAccountUnit(t *testing.T, db *gorm.DB, pkg models.Package, code string, slotIDs ...string) models.InventoryUnit {
	t.Helper()
	unit := models.InventoryUnit{
		Code: code, ProductID: pkg.ProductID, PackageID: &pkg.ID,
		Kind: models.UnitKindAccount, Status: models.UnitAvailable,
		PurchaseDate: testNow.AddDate(0, -1, 0), ExpiryDate: testNow.AddDate(1, 0, 0),
		PurchasePrice: "20.00", TotalSlots: int32(len(slotIDs)),
		Profiles: models.SlotArray{}, Renewals: models.RenewalArray{},
	}
	for _, id := range slotIDs {
		unit.Profiles = append(unit.Profiles, models.Slot{SlotID: id, Label: id})
	}
	if err := db.Create(&unit).Error; err != nil {
		t.Fatalf("seeding account unit: %v", err)
	}
	return unit
}

func reloadUnit(t *testing.T, db *gorm.DB, id int64) models.InventoryUnit {
	t.Helper()
	var u models.InventoryUnit
	if err := db.First(&u, id).Error; err != nil {
		t.Fatalf("reloading unit %d: %v", id, err)
	}
	return u
}

func reloadOrder(t *testing.T, db *gorm.DB, id int64) models.Order {
	t.Helper()
	var o models.Order
	if err := db.First(&o, id).Error; err != nil {
		t.Fatalf("reloading order %d: %v", id, err)
	}
	return o
}

func TestCreateOrderBindsClassicUnit(t *testing.T) {
	h, db := newTestHandler(t)
	customer, classic, _ := seedCatalog(t, db)
	unit := seedClassicUnit(t, db, classic, "CL-1")
	ctx := context.Background()

	resp, err := h.CreateOrder(ctx, &CreateOrderRequest{
		Code: "ORD-1", CustomerID: customer.ID, PackageID: classic.ID,
		PurchaseDate: testNow, PaymentStatus: models.PaymentPaid,
		InventoryItemID: &unit.ID,
	})
	if err != nil || !resp.Success {
		t.Fatalf("create failed: %v / %+v", err, resp)
	}

	order := resp.Order
	if order.Status != models.OrderCompleted {
		t.Errorf("bound order should be COMPLETED, got %s", order.Status)
	}
	if order.SalePrice != "30.00" {
		t.Errorf("sale price should snapshot the package price, got %s", order.SalePrice)
	}
	if order.Cogs != "20.00" {
		t.Errorf("classic cogs should be the full purchase price, got %s", order.Cogs)
	}

	got := reloadUnit(t, db, unit.ID)
	if got.Status != models.UnitSold {
		t.Errorf("bound classic unit should be SOLD, got %s", got.Status)
	}
	if got.LinkedOrderID == nil || *got.LinkedOrderID != order.ID {
		t.Error("unit should link back to the order")
	}
	if got.Version != 1 {
		t.Errorf("unit write should bump the version, got %d", got.Version)
	}
}

func TestUpdateOrderUnbindReleasesClassicUnit(t *testing.T) {
	h, db := newTestHandler(t)
	customer, classic, _ := seedCatalog(t, db)
	unit := seedClassicUnit(t, db, classic, "CL-1")
	ctx := context.Background()

	resp, err := h.CreateOrder(ctx, &CreateOrderRequest{
		Code: "ORD-1", CustomerID: customer.ID, PackageID: classic.ID,
		PurchaseDate: testNow, PaymentStatus: models.PaymentPaid,
		InventoryItemID: &unit.ID,
	})
	if err != nil || !resp.Success {
		t.Fatalf("create failed: %v / %+v", err, resp)
	}

	upd, err := h.UpdateOrder(ctx, &UpdateOrderRequest{ID: resp.Order.ID, Unbind: true})
	if err != nil || !upd.Success {
		t.Fatalf("unbind failed: %v / %+v", err, upd)
	}
	if upd.Order.Status != models.OrderProcessing {
		t.Errorf("unbound order should fall back to PROCESSING, got %s", upd.Order.Status)
	}
	if upd.Order.InventoryItemID != nil || len(upd.Order.InventoryProfileIDs) != 0 {
		t.Error("order pointers should be cleared on unbind")
	}

	got := reloadUnit(t, db, unit.ID)
	if got.Status != models.UnitAvailable {
		t.Errorf("released classic unit should be AVAILABLE again, got %s", got.Status)
	}
	if got.LinkedOrderID != nil {
		t.Error("released classic unit should drop its order link")
	}
}

func TestCreateOrderRefundedForcesCancel(t *testing.T) {
	h, db := newTestHandler(t)
	customer, classic, _ := seedCatalog(t, db)
	unit := seedClassicUnit(t, db, classic, "CL-1")
	ctx := context.Background()

	resp, err := h.CreateOrder(ctx, &CreateOrderRequest{
		Code: "ORD-1", CustomerID: customer.ID, PackageID: classic.ID,
		PurchaseDate: testNow, PaymentStatus: models.PaymentRefunded,
		InventoryItemID: &unit.ID,
	})
	if err != nil || !resp.Success {
		t.Fatalf("create failed: %v / %+v", err, resp)
	}

	if resp.Order.Status != models.OrderCancelled {
		t.Fatalf("refunded order must come out CANCELLED, got %s", resp.Order.Status)
	}
	if resp.Order.InventoryItemID != nil {
		t.Error("cancelled order must not keep a binding")
	}
	got := reloadUnit(t, db, unit.ID)
	if got.LinkedOrderID != nil || got.Status != models.UnitAvailable {
		t.Errorf("refund must release the unit, got status %s", got.Status)
	}
}

func TestUpdateOrderRefundForcesCancel(t *testing.T) {
	h, db := newTestHandler(t)
	customer, _, account := seedCatalog(t, db)
	unit := seedAccountUnit(t, db, account, "AC-1", "s1", "s2")
	ctx := context.Background()

	resp, err := h.CreateOrder(ctx, &CreateOrderRequest{
		Code: "ORD-1", CustomerID: customer.ID, PackageID: account.ID,
		PurchaseDate: testNow, PaymentStatus: models.PaymentPaid,
		InventoryItemID: &unit.ID, SlotIDs: []string{"s1"},
	})
	if err != nil || !resp.Success {
		t.Fatalf("create failed: %v / %+v", err, resp)
	}

	refunded := models.PaymentRefunded
	upd, err := h.UpdateOrder(ctx, &UpdateOrderRequest{ID: resp.Order.ID, PaymentStatus: &refunded})
	if err != nil || !upd.Success {
		t.Fatalf("refund update failed: %v / %+v", err, upd)
	}
	if upd.Order.Status != models.OrderCancelled {
		t.Fatalf("refund must force CANCELLED, got %s", upd.Order.Status)
	}

	got := reloadUnit(t, db, unit.ID)
	if got.FindSlot("s1").IsAssigned {
		t.Error("refund must free the order's slot")
	}
}

func TestUpdateOrderPreservesSalePriceSnapshot(t *testing.T) {
	h, db := newTestHandler(t)
	customer, classic, account := seedCatalog(t, db)
	ctx := context.Background()

	resp, err := h.CreateOrder(ctx, &CreateOrderRequest{
		Code: "ORD-1", CustomerID: customer.ID, PackageID: classic.ID,
		PurchaseDate: testNow, PaymentStatus: models.PaymentPaid,
	})
	if err != nil || !resp.Success {
		t.Fatalf("create failed: %v / %+v", err, resp)
	}
	orderID := resp.Order.ID

	// a later package price change must not leak into the existing order
	if err := db.Model(&models.Package{}).Where("id = ?", classic.ID).Update("price", "45.00").Error; err != nil {
		t.Fatalf("updating package price: %v", err)
	}

	note := "checked"
	upd, err := h.UpdateOrder(ctx, &UpdateOrderRequest{ID: orderID, Notes: &note})
	if err != nil || !upd.Success {
		t.Fatalf("notes update failed: %v / %+v", err, upd)
	}
	if upd.Order.SalePrice != "30.00" {
		t.Fatalf("editing notes must not re-snapshot the sale price, got %s", upd.Order.SalePrice)
	}

	// switching packages is a real change and re-snapshots
	upd, err = h.UpdateOrder(ctx, &UpdateOrderRequest{ID: orderID, PackageID: &account.ID})
	if err != nil || !upd.Success {
		t.Fatalf("package change failed: %v / %+v", err, upd)
	}
	if upd.Order.SalePrice != "10.00" {
		t.Errorf("package change should snapshot the new package price, got %s", upd.Order.SalePrice)
	}
}

func TestUpdateOrderClearCustomPriceResnapshots(t *testing.T) {
	h, db := newTestHandler(t)
	customer, classic, _ := seedCatalog(t, db)
	ctx := context.Background()

	custom := "5.00"
	resp, err := h.CreateOrder(ctx, &CreateOrderRequest{
		Code: "ORD-1", CustomerID: customer.ID, PackageID: classic.ID,
		PurchaseDate: testNow, PaymentStatus: models.PaymentPaid, CustomPrice: &custom,
	})
	if err != nil || !resp.Success {
		t.Fatalf("create failed: %v / %+v", err, resp)
	}
	if resp.Order.SalePrice != "5.00" || !resp.Order.CustomPrice {
		t.Fatalf("custom price not applied: %+v", resp.Order)
	}

	upd, err := h.UpdateOrder(ctx, &UpdateOrderRequest{ID: resp.Order.ID, ClearCustomPrice: true})
	if err != nil || !upd.Success {
		t.Fatalf("clearing custom price failed: %v / %+v", err, upd)
	}
	if upd.Order.CustomPrice || upd.Order.SalePrice != "30.00" {
		t.Errorf("clearing the custom price should restore the package price, got %s", upd.Order.SalePrice)
	}
}

func TestDeleteOrderReleasesAccountSlots(t *testing.T) {
	h, db := newTestHandler(t)
	customer, _, account := seedCatalog(t, db)
	unit := seedAccountUnit(t, db, account, "AC-1", "s1", "s2")
	ctx := context.Background()

	resp, err := h.CreateOrder(ctx, &CreateOrderRequest{
		Code: "ORD-1", CustomerID: customer.ID, PackageID: account.ID,
		PurchaseDate: testNow, PaymentStatus: models.PaymentPaid,
		InventoryItemID: &unit.ID, SlotIDs: []string{"s1"},
	})
	if err != nil || !resp.Success {
		t.Fatalf("create failed: %v / %+v", err, resp)
	}
	orderID := resp.Order.ID

	del, err := h.DeleteOrder(ctx, orderID)
	if err != nil || !del.Success {
		t.Fatalf("delete failed: %v / %+v", err, del)
	}

	got := reloadUnit(t, db, unit.ID)
	if got.FindSlot("s1").IsAssigned {
		t.Error("deleting the order must free its slot")
	}
	if got.Status != models.UnitAvailable {
		t.Errorf("unit should be AVAILABLE after the release, got %s", got.Status)
	}

	var gone models.Order
	if err := db.First(&gone, orderID).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("order row should be gone, got %v", err)
	}
}

func TestUpdateOrderRebindNeedsFreshSlots(t *testing.T) {
	h, db := newTestHandler(t)
	customer, _, account := seedCatalog(t, db)
	unitA := seedAccountUnit(t, db, account, "AC-1", "s1", "s2")
	unitB := seedAccountUnit(t, db, account, "AC-2", "b1", "b2")
	ctx := context.Background()

	resp, err := h.CreateOrder(ctx, &CreateOrderRequest{
		Code: "ORD-1", CustomerID: customer.ID, PackageID: account.ID,
		PurchaseDate: testNow, PaymentStatus: models.PaymentPaid,
		InventoryItemID: &unitA.ID, SlotIDs: []string{"s1"},
	})
	if err != nil || !resp.Success {
		t.Fatalf("create failed: %v / %+v", err, resp)
	}
	orderID := resp.Order.ID

	// moving units without choosing new slots must not recycle the old ids
	upd, err := h.UpdateOrder(ctx, &UpdateOrderRequest{ID: orderID, InventoryItemID: &unitB.ID})
	if !errors.Is(err, allocator.ErrNoSlotSelected) {
		t.Fatalf("expected ErrNoSlotSelected, got %v / %+v", err, upd)
	}
	if got := reloadUnit(t, db, unitA.ID); !got.FindSlot("s1").IsAssigned {
		t.Error("failed rebind must roll back, leaving the old binding intact")
	}

	slots := []string{"b1"}
	upd, err = h.UpdateOrder(ctx, &UpdateOrderRequest{ID: orderID, InventoryItemID: &unitB.ID, SlotIDs: &slots})
	if err != nil || !upd.Success {
		t.Fatalf("rebind failed: %v / %+v", err, upd)
	}
	if upd.Order.InventoryItemID == nil || *upd.Order.InventoryItemID != unitB.ID {
		t.Error("order should point at the new unit")
	}
	if got := reloadUnit(t, db, unitA.ID); got.FindSlot("s1").IsAssigned {
		t.Error("old unit's slot should be freed by the rebind")
	}
	if got := reloadUnit(t, db, unitB.ID); !got.FindSlot("b1").IsAssigned {
		t.Error("new unit's slot should be assigned")
	}
}

func TestRenewOrderReopensExpired(t *testing.T) {
	h, db := newTestHandler(t)
	customer, classic, _ := seedCatalog(t, db)
	unit := seedClassicUnit(t, db, classic, "CL-1")
	ctx := context.Background()

	resp, err := h.CreateOrder(ctx, &CreateOrderRequest{
		Code: "ORD-1", CustomerID: customer.ID, PackageID: classic.ID,
		PurchaseDate: testNow.AddDate(0, -3, 0), PaymentStatus: models.PaymentPaid,
		InventoryItemID: &unit.ID,
	})
	if err != nil || !resp.Success {
		t.Fatalf("create failed: %v / %+v", err, resp)
	}
	orderID := resp.Order.ID
	lapsed := testNow.AddDate(0, -2, 0)
	if err := db.Model(&models.Order{}).Where("id = ?", orderID).
		Updates(map[string]interface{}{"status": models.OrderExpired, "expiry_date": lapsed}).Error; err != nil {
		t.Fatalf("forcing expiry: %v", err)
	}

	ren, err := h.RenewOrder(ctx, &RenewOrderRequest{ID: orderID, Months: 1, Amount: "15.00", PaymentStatus: models.PaymentPaid})
	if err != nil || !ren.Success {
		t.Fatalf("renew failed: %v / %+v", err, ren)
	}

	if ren.Order.Status != models.OrderCompleted {
		t.Errorf("renewal of a still-bound order should reopen to COMPLETED, got %s", ren.Order.Status)
	}
	if want := testNow.AddDate(0, 1, 0); !ren.Order.ExpiryDate.Equal(want) {
		t.Errorf("lapsed order should extend from now: got %v, want %v", ren.Order.ExpiryDate, want)
	}
	if len(ren.Order.Renewals) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(ren.Order.Renewals))
	}
	if !ren.Order.Renewals[0].PreviousExpiryDate.Equal(lapsed) {
		t.Error("ledger entry should record the expiry it replaced")
	}
}

func TestCancelOrderIsTerminal(t *testing.T) {
	h, db := newTestHandler(t)
	customer, classic, _ := seedCatalog(t, db)
	unit := seedClassicUnit(t, db, classic, "CL-1")
	ctx := context.Background()

	resp, err := h.CreateOrder(ctx, &CreateOrderRequest{
		Code: "ORD-1", CustomerID: customer.ID, PackageID: classic.ID,
		PurchaseDate: testNow, PaymentStatus: models.PaymentPaid,
		InventoryItemID: &unit.ID,
	})
	if err != nil || !resp.Success {
		t.Fatalf("create failed: %v / %+v", err, resp)
	}
	orderID := resp.Order.ID

	can, err := h.CancelOrder(ctx, orderID)
	if err != nil || !can.Success {
		t.Fatalf("cancel failed: %v / %+v", err, can)
	}
	if got := reloadUnit(t, db, unit.ID); got.LinkedOrderID != nil {
		t.Error("cancel must release the unit")
	}

	ren, _ := h.RenewOrder(ctx, &RenewOrderRequest{ID: orderID, Months: 1, Amount: "15.00", PaymentStatus: models.PaymentPaid})
	if ren.Success {
		t.Error("cancelled orders must not be renewable")
	}
	if got := reloadOrder(t, db, orderID); got.Status != models.OrderCancelled {
		t.Errorf("CANCELLED is terminal, got %s", got.Status)
	}
}
