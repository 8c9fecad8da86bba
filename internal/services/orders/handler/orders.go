package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vendra-system/internal/database"
	"vendra-system/internal/database/models"
	"vendra-system/internal/notify"
	"vendra-system/internal/services/allocator"
	"vendra-system/internal/services/expiry"
	"vendra-system/internal/services/renewal"
)

const (
	ORDER_CACHE_PREFIX = "orders:"
	ORDERS_CACHE_KEY   = "orders:list"
	CACHE_TTL_SHORT    = 5 * time.Minute
)

// --- Helpers ---
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- Handler ---

// OrderHandler is the order-binding coordinator. Every operation that touches
// both an order and its unit runs inside one transaction, so a crash cannot
// leave a slot assigned to a deleted order or the reverse.
type OrderHandler struct {
	db       *gorm.DB
	redis    *redis.Client
	notifier *notify.Publisher
	clock    expiry.Clock
}

func NewOrderHandler(db *gorm.DB, redisClient *redis.Client, notifier *notify.Publisher, clock expiry.Clock) *OrderHandler {
	return &OrderHandler{
		db:       db,
		redis:    redisClient,
		notifier: notifier,
		clock:    clock,
	}
}

func (s *OrderHandler) InvalidateOrderCaches(ctx context.Context, orderID ...int64) {
	_ = s.redis.Del(ctx, ORDERS_CACHE_KEY)

	for _, id := range orderID {
		cacheKey := fmt.Sprintf("%s%d", ORDER_CACHE_PREFIX, id)
		_ = s.redis.Del(ctx, cacheKey)
	}
}

// --- Requests / Responses ---

type CreateOrderRequest struct {
	Code            string               `json:"code"`
	CustomerID      int64                `json:"customer_id"`
	PackageID       int64                `json:"package_id"`
	PurchaseDate    time.Time            `json:"purchase_date"`
	ExpiryDate      *time.Time           `json:"expiry_date"`
	PaymentStatus   models.PaymentStatus `json:"payment_status"`
	InventoryItemID *int64               `json:"inventory_item_id"`
	SlotIDs         []string             `json:"slot_ids"`
	CustomPrice     *string              `json:"custom_price"`
	Notes           *string              `json:"notes"`
}

type UpdateOrderRequest struct {
	ID               int64                 `json:"id"`
	CustomerID       *int64                `json:"customer_id"`
	PackageID        *int64                `json:"package_id"`
	PurchaseDate     *time.Time            `json:"purchase_date"`
	ExpiryDate       *time.Time            `json:"expiry_date"`
	Status           *models.OrderStatus   `json:"status"`
	PaymentStatus    *models.PaymentStatus `json:"payment_status"`
	InventoryItemID  *int64                `json:"inventory_item_id"`
	SlotIDs          *[]string             `json:"slot_ids"`
	Unbind           bool                  `json:"unbind"`
	CustomPrice      *string               `json:"custom_price"`
	ClearCustomPrice bool                  `json:"clear_custom_price"`
	Notes            *string               `json:"notes"`
}

type OrderResponse struct {
	Success bool          `json:"success"`
	Message *string       `json:"message,omitempty"`
	Warning *string       `json:"warning,omitempty"`
	Order   *models.Order `json:"order,omitempty"`
}

type ListOrdersRequest struct {
	CustomerID *int64  `json:"customer_id"`
	PackageID  *int64  `json:"package_id"`
	Status     *string `json:"status"`
}

type ListOrdersResponse struct {
	Success bool           `json:"success"`
	Message *string        `json:"message,omitempty"`
	Orders  []models.Order `json:"orders"`
}

type RenewOrderRequest struct {
	ID            int64                `json:"id"`
	Months        int32                `json:"months"`
	Amount        string               `json:"amount"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Note          *string              `json:"note"`
}

type RenewalPaymentRequest struct {
	OrderID       int64                `json:"order_id"`
	RenewalID     string               `json:"renewal_id"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
}

type VerifyBindingResponse struct {
	Success    bool    `json:"success"`
	Consistent bool    `json:"consistent"`
	Message    *string `json:"message,omitempty"`
}

// --- Binding ---

// bindUnit validates the operator's unit/slot choice and applies it inside
// the caller's transaction. The order's sale price is untouched; cogs is
// re-snapshotted from the unit taken.
func (s *OrderHandler) bindUnit(tx *gorm.DB, order *models.Order, unitID int64, slotIDs []string, now time.Time) (*models.InventoryUnit, error) {
	var unit models.InventoryUnit
	if err := tx.First(&unit, unitID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, allocator.ErrUnitNotFound
		}
		return nil, err
	}

	var pkg models.Package
	if err := tx.Preload("Product").First(&pkg, order.PackageID).Error; err != nil {
		return nil, err
	}
	if pkg.Product != nil && pkg.Product.SharedInventoryPool {
		if unit.ProductID != pkg.ProductID {
			return nil, fmt.Errorf("unit %s does not stock product of package %s", unit.Code, pkg.PackageCode)
		}
	} else {
		if unit.PackageID == nil || *unit.PackageID != pkg.ID {
			return nil, fmt.Errorf("unit %s does not stock package %s", unit.Code, pkg.PackageCode)
		}
	}

	if unit.Kind == models.UnitKindAccount {
		// A slot the order claims but that the unit says belongs to someone
		// else is an inconsistency to surface, not a conflict to steal through.
		claimed := make(map[string]bool, len(order.InventoryProfileIDs))
		for _, id := range order.InventoryProfileIDs {
			claimed[id] = true
		}
		for _, id := range slotIDs {
			slot := unit.FindSlot(id)
			if slot != nil && claimed[id] && slot.IsAssigned &&
				slot.AssignedOrderID != nil && *slot.AssignedOrderID != order.ID {
				return nil, fmt.Errorf("%w: slot %s", allocator.ErrInconsistentBinding, id)
			}
		}

		// drop slots the order owned but no longer wants
		want := make(map[string]bool, len(slotIDs))
		for _, id := range slotIDs {
			want[id] = true
		}
		for _, owned := range unit.SlotsOwnedBy(order.ID) {
			if !want[owned] {
				allocator.ReleaseSlot(&unit, owned, now)
			}
		}
	}

	if err := allocator.Assign(&unit, order.ID, slotIDs, order.ExpiryDate, now); err != nil {
		return nil, err
	}
	if err := database.SaveUnitVersioned(tx, &unit); err != nil {
		return nil, err
	}

	order.InventoryItemID = &unit.ID
	if unit.Kind == models.UnitKindAccount {
		order.InventoryProfileIDs = models.StringArray(slotIDs)
		order.Cogs = ComputeCogs(&unit, len(slotIDs))
	} else {
		order.InventoryProfileIDs = models.StringArray{}
		order.Cogs = ComputeCogs(&unit, 1)
	}

	return &unit, nil
}

func (s *OrderHandler) releaseAll(tx *gorm.DB, order *models.Order, now time.Time) error {
	if _, err := allocator.ReleaseAll(tx, order.ID, now); err != nil {
		return err
	}
	order.InventoryItemID = nil
	order.InventoryProfileIDs = models.StringArray{}
	return nil
}

// --- Operations ---

func (s *OrderHandler) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	if req.Code == "" || req.CustomerID == 0 || req.PackageID == 0 {
		return &OrderResponse{Success: false, Message: strPtr("code, customer_id and package_id are required")}, nil
	}

	var existing models.Order
	if err := s.db.Where("code = ?", req.Code).First(&existing).Error; err == nil {
		return &OrderResponse{Success: false, Message: strPtr("order code already exists")}, nil
	} else if err != gorm.ErrRecordNotFound {
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}

	var customer models.Customer
	if err := s.db.Where("id = ? AND is_active = ?", req.CustomerID, true).First(&customer).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &OrderResponse{Success: false, Message: strPtr("customer not found or inactive")}, nil
		}
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}

	var pkg models.Package
	if err := s.db.Preload("Product").First(&pkg, req.PackageID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &OrderResponse{Success: false, Message: strPtr("package not found")}, nil
		}
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}

	now := s.clock.Now()
	purchaseDate := req.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = now
	}

	paymentStatus := req.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = models.PaymentUnpaid
	}

	order := models.Order{
		Code:                req.Code,
		CustomerID:          customer.ID,
		PackageID:           pkg.ID,
		PurchaseDate:        purchaseDate,
		ExpiryDate:          expiry.ComputeOrderExpiry(purchaseDate, pkg.WarrantyMonths, nil, req.ExpiryDate),
		Status:              models.OrderProcessing,
		PaymentStatus:       paymentStatus,
		InventoryProfileIDs: models.StringArray{},
		SalePrice:           pkg.Price,
		Cogs:                "0.00",
		Renewals:            models.RenewalArray{},
		Notes:               req.Notes,
	}

	if req.CustomPrice != nil {
		if _, err := decimal.NewFromString(*req.CustomPrice); err != nil {
			return &OrderResponse{Success: false, Message: strPtr("invalid custom_price")}, nil
		}
		order.CustomPrice = true
		order.SalePrice = *req.CustomPrice
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		return &OrderResponse{Success: false, Message: strPtr("failed to create order: " + err.Error())}, err
	}

	if req.InventoryItemID != nil {
		if _, err := s.bindUnit(tx, &order, *req.InventoryItemID, req.SlotIDs, now); err != nil {
			tx.Rollback()
			return &OrderResponse{Success: false, Message: strPtr(err.Error())}, err
		}
	}

	order.Status = DeriveStatus(&order)
	if order.PaymentStatus == models.PaymentRefunded {
		// refunded forces CANCELLED, which in turn forces release
		if err := s.releaseAll(tx, &order, now); err != nil {
			tx.Rollback()
			return &OrderResponse{Success: false, Message: strPtr("failed to release binding")}, err
		}
		order.Status = models.OrderCancelled
	}

	if err := tx.Save(&order).Error; err != nil {
		tx.Rollback()
		return &OrderResponse{Success: false, Message: strPtr("failed to save order")}, err
	}

	if err := tx.Commit().Error; err != nil {
		return &OrderResponse{Success: false, Message: strPtr("failed to commit transaction: " + err.Error())}, err
	}

	s.notifier.TableChanged(ctx, notify.TableOrders, order.ID, notify.ActionCreated)
	if order.InventoryItemID != nil {
		s.notifier.TableChanged(ctx, notify.TableInventory, *order.InventoryItemID, notify.ActionUpdated)
	}
	s.InvalidateOrderCaches(ctx)

	return &OrderResponse{Success: true, Order: &order}, nil
}

func (s *OrderHandler) UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*OrderResponse, error) {
	if req.ID == 0 {
		return &OrderResponse{Success: false, Message: strPtr("id must be provided")}, nil
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var order models.Order
	if err := tx.First(&order, req.ID).Error; err != nil {
		tx.Rollback()
		if err == gorm.ErrRecordNotFound {
			return &OrderResponse{Success: false, Message: strPtr("order not found")}, nil
		}
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}

	if order.Status == models.OrderCancelled && (req.InventoryItemID != nil || req.SlotIDs != nil || req.Unbind) {
		tx.Rollback()
		return &OrderResponse{Success: false, Message: strPtr("cancelled orders cannot change bindings")}, nil
	}

	now := s.clock.Now()
	prevExpiry := order.ExpiryDate
	snapshotChanged := false

	if req.CustomerID != nil && *req.CustomerID != order.CustomerID {
		var customer models.Customer
		if err := tx.Where("id = ? AND is_active = ?", *req.CustomerID, true).First(&customer).Error; err != nil {
			tx.Rollback()
			if err == gorm.ErrRecordNotFound {
				return &OrderResponse{Success: false, Message: strPtr("customer not found or inactive")}, nil
			}
			return &OrderResponse{Success: false, Message: strPtr("database error")}, err
		}
		order.CustomerID = customer.ID
		snapshotChanged = true
	}

	pkgChanged := false
	if req.PackageID != nil && *req.PackageID != order.PackageID {
		order.PackageID = *req.PackageID
		pkgChanged = true
		snapshotChanged = true
	}

	var pkg models.Package
	if err := tx.Preload("Product").First(&pkg, order.PackageID).Error; err != nil {
		tx.Rollback()
		if err == gorm.ErrRecordNotFound {
			return &OrderResponse{Success: false, Message: strPtr("package not found")}, nil
		}
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}

	priceToggled := false
	if req.CustomPrice != nil {
		if _, err := decimal.NewFromString(*req.CustomPrice); err != nil {
			tx.Rollback()
			return &OrderResponse{Success: false, Message: strPtr("invalid custom_price")}, nil
		}
		if !order.CustomPrice {
			priceToggled = true
		}
		order.CustomPrice = true
		order.SalePrice = *req.CustomPrice
	}
	if req.ClearCustomPrice && order.CustomPrice {
		order.CustomPrice = false
		priceToggled = true
	}

	// the sale price snapshot is preserved unless package, customer or the
	// custom-price toggle actually changed
	if (snapshotChanged || priceToggled) && !order.CustomPrice {
		order.SalePrice = pkg.Price
	}

	if req.PurchaseDate != nil {
		order.PurchaseDate = *req.PurchaseDate
	}

	switch {
	case req.ExpiryDate != nil:
		order.ExpiryDate = *req.ExpiryDate
	case pkgChanged:
		// never shorten a paid-for extension when the package changes
		order.ExpiryDate = expiry.RecomputeForPackageChange(&order, pkg.WarrantyMonths)
	case req.PurchaseDate != nil && len(order.Renewals) == 0:
		order.ExpiryDate = expiry.AddMonths(order.PurchaseDate, int(pkg.WarrantyMonths))
	}

	var justBound *models.InventoryUnit
	if req.Unbind {
		if err := s.releaseAll(tx, &order, now); err != nil {
			tx.Rollback()
			return &OrderResponse{Success: false, Message: strPtr("failed to release binding")}, err
		}
	} else if req.InventoryItemID != nil || req.SlotIDs != nil {
		targetUnit := order.InventoryItemID
		if req.InventoryItemID != nil {
			targetUnit = req.InventoryItemID
		}
		if targetUnit == nil {
			tx.Rollback()
			return &OrderResponse{Success: false, Message: strPtr("inventory_item_id is required to assign slots")}, nil
		}
		slots := []string(order.InventoryProfileIDs)
		if req.SlotIDs != nil {
			slots = *req.SlotIDs
		}

		if order.InventoryItemID != nil && *order.InventoryItemID != *targetUnit {
			// moving to a different unit: the old unit's slot ids mean
			// nothing on the new one, so a fresh selection is required
			if req.SlotIDs == nil {
				slots = nil
			}
			if err := s.releaseAll(tx, &order, now); err != nil {
				tx.Rollback()
				return &OrderResponse{Success: false, Message: strPtr("failed to release previous binding")}, err
			}
		}

		unit, err := s.bindUnit(tx, &order, *targetUnit, slots, now)
		if err != nil {
			tx.Rollback()
			return &OrderResponse{Success: false, Message: strPtr(err.Error())}, err
		}
		justBound = unit
	}

	// keep slot expiry in lockstep when the order expiry moved without a
	// fresh assignment
	if justBound == nil && !order.ExpiryDate.Equal(prevExpiry) && order.InventoryItemID != nil {
		var unit models.InventoryUnit
		if err := tx.First(&unit, *order.InventoryItemID).Error; err == nil {
			if allocator.PropagateExpiry(&unit, order.ID, order.ExpiryDate) {
				allocator.RecomputeStatus(&unit, now)
				if err := database.SaveUnitVersioned(tx, &unit); err != nil {
					tx.Rollback()
					return &OrderResponse{Success: false, Message: strPtr("failed to propagate expiry")}, err
				}
			}
		}
	}

	if req.PaymentStatus != nil {
		order.PaymentStatus = *req.PaymentStatus
		if *req.PaymentStatus == models.PaymentRefunded && order.Status != models.OrderCancelled {
			// refunded forces CANCELLED, engine-level, not just UI advice
			if err := s.releaseAll(tx, &order, now); err != nil {
				tx.Rollback()
				return &OrderResponse{Success: false, Message: strPtr("failed to release binding")}, err
			}
			order.Status = models.OrderCancelled
		}
	}

	if req.Status != nil && *req.Status != order.Status {
		if !CanTransition(order.Status, *req.Status) {
			tx.Rollback()
			return &OrderResponse{Success: false, Message: strPtr(fmt.Sprintf("cannot transition order from %s to %s", order.Status, *req.Status))}, nil
		}
		switch *req.Status {
		case models.OrderCancelled:
			if err := s.releaseAll(tx, &order, now); err != nil {
				tx.Rollback()
				return &OrderResponse{Success: false, Message: strPtr("failed to release binding")}, err
			}
			order.Status = models.OrderCancelled
		case models.OrderExpired:
			order.Status = models.OrderExpired
		default:
			tx.Rollback()
			return &OrderResponse{Success: false, Message: strPtr("PROCESSING and COMPLETED are derived from the binding and cannot be set manually")}, nil
		}
	}

	if req.Notes != nil {
		order.Notes = req.Notes
	}

	if !order.IsTerminal() {
		order.Status = DeriveStatus(&order)
	}

	if err := tx.Save(&order).Error; err != nil {
		tx.Rollback()
		return &OrderResponse{Success: false, Message: strPtr("failed to save order")}, err
	}

	if err := tx.Commit().Error; err != nil {
		return &OrderResponse{Success: false, Message: strPtr("failed to commit transaction: " + err.Error())}, err
	}

	s.notifier.TableChanged(ctx, notify.TableOrders, order.ID, notify.ActionUpdated)
	s.InvalidateOrderCaches(ctx, order.ID)

	return &OrderResponse{Success: true, Order: &order}, nil
}

// DeleteOrder releases everything the order holds before the row goes away.
// If an expired account unit is still slot-linked, the response carries a
// warning that the profile must be cleared on the underlying service by hand;
// deletion itself is not blocked.
func (s *OrderHandler) DeleteOrder(ctx context.Context, id int64) (*OrderResponse, error) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var order models.Order
	if err := tx.First(&order, id).Error; err != nil {
		tx.Rollback()
		if err == gorm.ErrRecordNotFound {
			return &OrderResponse{Success: false, Message: strPtr("order not found")}, nil
		}
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}

	now := s.clock.Now()

	var warning *string
	boundUnits, err := allocator.FindBoundUnits(tx, order.ID)
	if err != nil {
		tx.Rollback()
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}
	for i := range boundUnits {
		u := &boundUnits[i]
		if u.Kind == models.UnitKindAccount && u.IsExpired(now) && len(u.SlotsOwnedBy(order.ID)) > 0 {
			warning = strPtr(fmt.Sprintf("unit %s is expired but still holds this order's profile; clear it on the underlying account manually", u.Code))
		}
	}

	if err := s.releaseAll(tx, &order, now); err != nil {
		tx.Rollback()
		return &OrderResponse{Success: false, Message: strPtr("failed to release binding")}, err
	}

	if err := tx.Delete(&order).Error; err != nil {
		tx.Rollback()
		return &OrderResponse{Success: false, Message: strPtr("failed to delete order")}, err
	}

	if err := tx.Commit().Error; err != nil {
		return &OrderResponse{Success: false, Message: strPtr("failed to commit transaction: " + err.Error())}, err
	}

	s.notifier.TableChanged(ctx, notify.TableOrders, order.ID, notify.ActionDeleted)
	for i := range boundUnits {
		s.notifier.TableChanged(ctx, notify.TableInventory, boundUnits[i].ID, notify.ActionUpdated)
	}
	s.InvalidateOrderCaches(ctx, order.ID)

	return &OrderResponse{Success: true, Warning: warning}, nil
}

func (s *OrderHandler) CancelOrder(ctx context.Context, id int64) (*OrderResponse, error) {
	status := models.OrderCancelled
	return s.UpdateOrder(ctx, &UpdateOrderRequest{ID: id, Status: &status})
}

// RenewOrder appends an extension to the order's ledger, pushes the order
// expiry forward and mirrors the new expiry onto every owned slot. Renewing
// an expired order reopens it.
func (s *OrderHandler) RenewOrder(ctx context.Context, req *RenewOrderRequest) (*OrderResponse, error) {
	if req.Months < 1 {
		return &OrderResponse{Success: false, Message: strPtr(renewal.ErrInvalidRenewalMonths.Error())}, renewal.ErrInvalidRenewalMonths
	}
	if _, err := decimal.NewFromString(req.Amount); err != nil {
		return &OrderResponse{Success: false, Message: strPtr("invalid amount")}, nil
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var order models.Order
	if err := tx.First(&order, req.ID).Error; err != nil {
		tx.Rollback()
		if err == gorm.ErrRecordNotFound {
			return &OrderResponse{Success: false, Message: strPtr("order not found")}, nil
		}
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}

	if order.Status == models.OrderCancelled {
		tx.Rollback()
		return &OrderResponse{Success: false, Message: strPtr("cancelled orders cannot be renewed")}, nil
	}

	now := s.clock.Now()
	payStatus := req.PaymentStatus
	if payStatus == "" {
		payStatus = models.PaymentUnpaid
	}

	rec, newExpiry := renewal.Apply(order.ExpiryDate, now, req.Months, req.Amount, payStatus, req.Note)
	rec.OrderID = &order.ID
	order.Renewals = append(order.Renewals, rec)
	order.ExpiryDate = newExpiry

	// slot expiry mirrors the order expiry; scan defensively in case the
	// order's own pointer is stale
	boundUnits, err := allocator.FindBoundUnits(tx, order.ID)
	if err != nil {
		tx.Rollback()
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}
	for i := range boundUnits {
		u := &boundUnits[i]
		if allocator.PropagateExpiry(u, order.ID, newExpiry) {
			allocator.RecomputeStatus(u, now)
			if err := database.SaveUnitVersioned(tx, u); err != nil {
				tx.Rollback()
				return &OrderResponse{Success: false, Message: strPtr("failed to propagate expiry")}, err
			}
		}
	}

	if order.Status == models.OrderExpired {
		// renewal reopens the order; the binding decides which way
		if len(boundUnits) > 0 {
			order.Status = models.OrderCompleted
		} else {
			order.Status = models.OrderProcessing
		}
	}

	if err := tx.Save(&order).Error; err != nil {
		tx.Rollback()
		return &OrderResponse{Success: false, Message: strPtr("failed to save order")}, err
	}

	if err := tx.Commit().Error; err != nil {
		return &OrderResponse{Success: false, Message: strPtr("failed to commit transaction: " + err.Error())}, err
	}

	s.notifier.TableChanged(ctx, notify.TableOrders, order.ID, notify.ActionUpdated)
	for i := range boundUnits {
		s.notifier.TableChanged(ctx, notify.TableInventory, boundUnits[i].ID, notify.ActionUpdated)
	}
	s.InvalidateOrderCaches(ctx, order.ID)

	return &OrderResponse{Success: true, Order: &order}, nil
}

// SetRenewalPayment corrects the payment status of one renewal without
// touching the rest of the ledger or the base purchase payment.
func (s *OrderHandler) SetRenewalPayment(ctx context.Context, req *RenewalPaymentRequest) (*OrderResponse, error) {
	var order models.Order
	if err := s.db.First(&order, req.OrderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &OrderResponse{Success: false, Message: strPtr("order not found")}, nil
		}
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}

	if err := renewal.SetPaymentStatus(order.Renewals, req.RenewalID, req.PaymentStatus); err != nil {
		return &OrderResponse{Success: false, Message: strPtr(err.Error())}, err
	}

	if err := s.db.Save(&order).Error; err != nil {
		return &OrderResponse{Success: false, Message: strPtr("failed to save order")}, err
	}

	s.notifier.TableChanged(ctx, notify.TableOrders, order.ID, notify.ActionUpdated)
	s.InvalidateOrderCaches(ctx, order.ID)

	return &OrderResponse{Success: true, Order: &order}, nil
}

func (s *OrderHandler) GetOrder(ctx context.Context, id int64) (*OrderResponse, error) {
	cacheKey := fmt.Sprintf("%s%d", ORDER_CACHE_PREFIX, id)
	if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var order models.Order
		if json.Unmarshal([]byte(cached), &order) == nil {
			return &OrderResponse{Success: true, Order: &order}, nil
		}
	}

	var order models.Order
	if err := s.db.Preload("Customer").Preload("Package").First(&order, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &OrderResponse{Success: false, Message: strPtr("order not found")}, nil
		}
		return &OrderResponse{Success: false, Message: strPtr("database error")}, err
	}

	if data, err := json.Marshal(order); err == nil {
		_ = s.redis.Set(ctx, cacheKey, data, CACHE_TTL_SHORT)
	}

	return &OrderResponse{Success: true, Order: &order}, nil
}

func (s *OrderHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	unfiltered := req.CustomerID == nil && req.PackageID == nil && req.Status == nil
	if unfiltered {
		if cached, err := s.redis.Get(ctx, ORDERS_CACHE_KEY).Result(); err == nil {
			var orders []models.Order
			if json.Unmarshal([]byte(cached), &orders) == nil {
				return &ListOrdersResponse{Success: true, Orders: orders}, nil
			}
		}
	}

	query := s.db.Preload("Customer").Preload("Package").Order("id asc")
	if req.CustomerID != nil {
		query = query.Where("customer_id = ?", *req.CustomerID)
	}
	if req.PackageID != nil {
		query = query.Where("package_id = ?", *req.PackageID)
	}
	if req.Status != nil {
		query = query.Where("status = ?", *req.Status)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return &ListOrdersResponse{Success: false, Message: strPtr("database error")}, err
	}

	if unfiltered {
		if data, err := json.Marshal(orders); err == nil {
			_ = s.redis.Set(ctx, ORDERS_CACHE_KEY, data, CACHE_TTL_SHORT)
		}
	}

	return &ListOrdersResponse{Success: true, Orders: orders}, nil
}

// VerifyOrderBinding cross-checks the order's claims against the unit. An
// inconsistency is reported for manual reconciliation, never repaired here.
func (s *OrderHandler) VerifyOrderBinding(ctx context.Context, id int64) (*VerifyBindingResponse, error) {
	var order models.Order
	if err := s.db.First(&order, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &VerifyBindingResponse{Success: false, Message: strPtr("order not found")}, nil
		}
		return &VerifyBindingResponse{Success: false, Message: strPtr("database error")}, err
	}

	var unit *models.InventoryUnit
	if order.InventoryItemID != nil {
		var u models.InventoryUnit
		if err := s.db.First(&u, *order.InventoryItemID).Error; err == nil {
			unit = &u
		} else if err != gorm.ErrRecordNotFound {
			return &VerifyBindingResponse{Success: false, Message: strPtr("database error")}, err
		}
	}

	if err := VerifyBinding(&order, unit); err != nil {
		if errors.Is(err, allocator.ErrInconsistentBinding) {
			return &VerifyBindingResponse{Success: true, Consistent: false, Message: strPtr(err.Error())}, nil
		}
		return &VerifyBindingResponse{Success: false, Message: strPtr(err.Error())}, err
	}

	return &VerifyBindingResponse{Success: true, Consistent: true}, nil
}
