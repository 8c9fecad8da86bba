package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
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
	INVENTORY_CACHE_PREFIX    = "inventory:"
	INVENTORY_UNITS_CACHE_KEY = "inventory:units"
	CANDIDATES_CACHE_PREFIX   = "inventory:candidates:"
	CACHE_TTL_SHORT           = 5 * time.Minute
	CACHE_TTL_MEDIUM          = 30 * time.Minute
)

// --- Helpers ---
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- Handler ---

type InventoryHandler struct {
	db       *gorm.DB
	redis    *redis.Client
	notifier *notify.Publisher
	clock    expiry.Clock
}

func NewInventoryHandler(db *gorm.DB, redisClient *redis.Client, notifier *notify.Publisher, clock expiry.Clock) *InventoryHandler {
	return &InventoryHandler{
		db:       db,
		redis:    redisClient,
		notifier: notifier,
		clock:    clock,
	}
}

func (s *InventoryHandler) InvalidateInventoryCaches(ctx context.Context, unitID ...int64) {
	_ = s.redis.Del(ctx, INVENTORY_UNITS_CACHE_KEY)

	if keys, err := s.redis.Keys(ctx, CANDIDATES_CACHE_PREFIX+"*").Result(); err == nil && len(keys) > 0 {
		_ = s.redis.Del(ctx, keys...)
	}

	for _, id := range unitID {
		cacheKey := fmt.Sprintf("%s%d", INVENTORY_CACHE_PREFIX, id)
		_ = s.redis.Del(ctx, cacheKey)
	}
}

// --- Requests / Responses ---

type CreateUnitRequest struct {
	Code          string     `json:"code"`
	ProductID     int64      `json:"product_id"`
	PackageID     *int64     `json:"package_id"`
	PurchaseDate  time.Time  `json:"purchase_date"`
	ExpiryDate    *time.Time `json:"expiry_date"`
	PurchasePrice string     `json:"purchase_price"`
	Notes         *string    `json:"notes"`
}

type SlotPatch struct {
	SlotID      string  `json:"slot_id"`
	Label       *string `json:"label"`
	NeedsUpdate *bool   `json:"needs_update"`
}

type UpdateUnitRequest struct {
	ID            int64              `json:"id"`
	Status        *models.UnitStatus `json:"status"`
	PurchasePrice *string            `json:"purchase_price"`
	ExpiryDate    *time.Time         `json:"expiry_date"`
	Notes         *string            `json:"notes"`
	Slots         []SlotPatch        `json:"slots"`
}

type UnitResponse struct {
	Success bool                  `json:"success"`
	Message *string               `json:"message,omitempty"`
	Unit    *models.InventoryUnit `json:"unit,omitempty"`
}

type ListUnitsRequest struct {
	ProductID *int64  `json:"product_id"`
	PackageID *int64  `json:"package_id"`
	Status    *string `json:"status"`
}

type ListUnitsResponse struct {
	Success bool                   `json:"success"`
	Message *string                `json:"message,omitempty"`
	Units   []models.InventoryUnit `json:"units"`
}

type CandidatesRequest struct {
	PackageID      int64  `json:"package_id"`
	EditingOrderID *int64 `json:"editing_order_id"`
}

type RenewUnitRequest struct {
	ID            int64                `json:"id"`
	Months        int32                `json:"months"`
	Amount        string               `json:"amount"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Note          *string              `json:"note"`
}

type DeleteUnitResponse struct {
	Success bool    `json:"success"`
	Message *string `json:"message,omitempty"`
}

type SweepResponse struct {
	Success       bool    `json:"success"`
	Message       *string `json:"message,omitempty"`
	ReleasedSlots int     `json:"released_slots"`
	ExpiredOrders int     `json:"expired_orders"`
	ExpiredUnits  int     `json:"expired_units"`
}

// --- Stock intake ---

func (s *InventoryHandler) CreateUnit(ctx context.Context, req *CreateUnitRequest) (*UnitResponse, error) {
	if req.Code == "" || req.ProductID == 0 {
		return &UnitResponse{Success: false, Message: strPtr("code and product_id are required")}, nil
	}

	var existing models.InventoryUnit
	if err := s.db.Where("code = ?", req.Code).First(&existing).Error; err == nil {
		return &UnitResponse{Success: false, Message: strPtr("unit code already exists")}, nil
	} else if err != gorm.ErrRecordNotFound {
		return &UnitResponse{Success: false, Message: strPtr("database error")}, err
	}

	var product models.Product
	if err := s.db.Where("id = ? AND is_active = ?", req.ProductID, true).First(&product).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &UnitResponse{Success: false, Message: strPtr("product not found or inactive")}, nil
		}
		return &UnitResponse{Success: false, Message: strPtr("database error")}, err
	}

	var pkg *models.Package
	if req.PackageID != nil {
		var p models.Package
		if err := s.db.Where("id = ? AND product_id = ?", *req.PackageID, product.ID).First(&p).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return &UnitResponse{Success: false, Message: strPtr("package not found for product")}, nil
			}
			return &UnitResponse{Success: false, Message: strPtr("database error")}, err
		}
		pkg = &p
	} else if !product.SharedInventoryPool {
		return &UnitResponse{Success: false, Message: strPtr("package_id is required unless the product uses a shared inventory pool")}, nil
	}

	if _, err := decimal.NewFromString(req.PurchasePrice); err != nil {
		return &UnitResponse{Success: false, Message: strPtr("invalid purchase_price")}, nil
	}

	expiryDate := time.Time{}
	if req.ExpiryDate != nil {
		expiryDate = *req.ExpiryDate
	} else if pkg != nil {
		expiryDate = expiry.AddMonths(req.PurchaseDate, int(pkg.WarrantyMonths))
	} else {
		return &UnitResponse{Success: false, Message: strPtr("expiry_date is required for pooled units without a package")}, nil
	}

	unit := models.InventoryUnit{
		Code:          req.Code,
		ProductID:     product.ID,
		PackageID:     req.PackageID,
		Kind:          models.UnitKindClassic,
		Status:        models.UnitAvailable,
		PurchaseDate:  req.PurchaseDate,
		ExpiryDate:    expiryDate,
		PurchasePrice: req.PurchasePrice,
		Profiles:      models.SlotArray{},
		Renewals:      models.RenewalArray{},
		Notes:         req.Notes,
	}

	if pkg != nil && pkg.IsAccountBased {
		unit.Kind = models.UnitKindAccount
		unit.TotalSlots = pkg.TotalSlots
		for i := int32(0); i < pkg.TotalSlots; i++ {
			label := fmt.Sprintf("Profile %d", i+1)
			if int(i) < len(pkg.SlotLabels) && pkg.SlotLabels[i] != "" {
				label = pkg.SlotLabels[i]
			}
			unit.Profiles = append(unit.Profiles, models.Slot{
				SlotID: uuid.NewString(),
				Label:  label,
			})
		}
	}

	if err := s.db.Create(&unit).Error; err != nil {
		return &UnitResponse{Success: false, Message: strPtr("error creating unit")}, err
	}

	s.notifier.TableChanged(ctx, notify.TableInventory, unit.ID, notify.ActionCreated)
	s.InvalidateInventoryCaches(ctx)

	return &UnitResponse{Success: true, Unit: &unit}, nil
}

func (s *InventoryHandler) UpdateUnit(ctx context.Context, req *UpdateUnitRequest) (*UnitResponse, error) {
	if req.ID == 0 {
		return &UnitResponse{Success: false, Message: strPtr("id must be provided")}, nil
	}

	var unit models.InventoryUnit
	if err := s.db.First(&unit, req.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &UnitResponse{Success: false, Message: strPtr("unit not found")}, nil
		}
		return &UnitResponse{Success: false, Message: strPtr("database error")}, err
	}

	now := s.clock.Now()

	if req.Status != nil {
		// SOLD and EXPIRED are derived, only the operator hold is settable
		switch *req.Status {
		case models.UnitAvailable, models.UnitReserved:
			unit.Status = *req.Status
		default:
			return &UnitResponse{Success: false, Message: strPtr("status can only be set to AVAILABLE or RESERVED")}, nil
		}
	}
	if req.PurchasePrice != nil {
		if _, err := decimal.NewFromString(*req.PurchasePrice); err != nil {
			return &UnitResponse{Success: false, Message: strPtr("invalid purchase_price")}, nil
		}
		unit.PurchasePrice = *req.PurchasePrice
	}
	if req.ExpiryDate != nil {
		unit.ExpiryDate = *req.ExpiryDate
	}
	if req.Notes != nil {
		unit.Notes = req.Notes
	}
	for _, patch := range req.Slots {
		slot := unit.FindSlot(patch.SlotID)
		if slot == nil {
			return &UnitResponse{Success: false, Message: strPtr("slot not found: " + patch.SlotID)}, nil
		}
		if patch.Label != nil {
			slot.Label = *patch.Label
		}
		if patch.NeedsUpdate != nil {
			slot.NeedsUpdate = *patch.NeedsUpdate
		}
	}

	allocator.RecomputeStatus(&unit, now)

	if err := database.SaveUnitVersioned(s.db, &unit); err != nil {
		if errors.Is(err, database.ErrVersionConflict) {
			return &UnitResponse{Success: false, Message: strPtr("unit was modified concurrently, retry")}, err
		}
		return &UnitResponse{Success: false, Message: strPtr("error updating unit")}, err
	}

	s.notifier.TableChanged(ctx, notify.TableInventory, unit.ID, notify.ActionUpdated)
	s.InvalidateInventoryCaches(ctx, unit.ID)

	return &UnitResponse{Success: true, Unit: &unit}, nil
}

// DeleteUnit refuses to remove a unit while any order still references it.
// Bindings must be released through the orders that hold them first.
func (s *InventoryHandler) DeleteUnit(ctx context.Context, id int64) (*DeleteUnitResponse, error) {
	var unit models.InventoryUnit
	if err := s.db.First(&unit, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &DeleteUnitResponse{Success: false, Message: strPtr("unit not found")}, nil
		}
		return &DeleteUnitResponse{Success: false, Message: strPtr("database error")}, err
	}

	if unit.LinkedOrderID != nil || unit.AssignedSlotCount() > 0 {
		return &DeleteUnitResponse{Success: false, Message: strPtr("unit is still bound to orders; release those bindings first")}, nil
	}

	if err := s.db.Delete(&unit).Error; err != nil {
		return &DeleteUnitResponse{Success: false, Message: strPtr("error deleting unit")}, err
	}

	s.notifier.TableChanged(ctx, notify.TableInventory, unit.ID, notify.ActionDeleted)
	s.InvalidateInventoryCaches(ctx, unit.ID)

	return &DeleteUnitResponse{Success: true}, nil
}

func (s *InventoryHandler) GetUnit(ctx context.Context, id int64) (*UnitResponse, error) {
	cacheKey := fmt.Sprintf("%s%d", INVENTORY_CACHE_PREFIX, id)
	if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var unit models.InventoryUnit
		if json.Unmarshal([]byte(cached), &unit) == nil {
			return &UnitResponse{Success: true, Unit: &unit}, nil
		}
	}

	var unit models.InventoryUnit
	if err := s.db.Preload("Product").Preload("Package").First(&unit, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &UnitResponse{Success: false, Message: strPtr("unit not found")}, nil
		}
		return &UnitResponse{Success: false, Message: strPtr("database error")}, err
	}

	if data, err := json.Marshal(unit); err == nil {
		_ = s.redis.Set(ctx, cacheKey, data, CACHE_TTL_SHORT)
	}

	return &UnitResponse{Success: true, Unit: &unit}, nil
}

func (s *InventoryHandler) ListUnits(ctx context.Context, req *ListUnitsRequest) (*ListUnitsResponse, error) {
	unfiltered := req.ProductID == nil && req.PackageID == nil && req.Status == nil
	if unfiltered {
		if cached, err := s.redis.Get(ctx, INVENTORY_UNITS_CACHE_KEY).Result(); err == nil {
			var units []models.InventoryUnit
			if json.Unmarshal([]byte(cached), &units) == nil {
				return &ListUnitsResponse{Success: true, Units: units}, nil
			}
		}
	}

	query := s.db.Preload("Product").Preload("Package").Order("id asc")
	if req.ProductID != nil {
		query = query.Where("product_id = ?", *req.ProductID)
	}
	if req.PackageID != nil {
		query = query.Where("package_id = ?", *req.PackageID)
	}
	if req.Status != nil {
		query = query.Where("status = ?", *req.Status)
	}

	var units []models.InventoryUnit
	if err := query.Find(&units).Error; err != nil {
		return &ListUnitsResponse{Success: false, Message: strPtr("database error")}, err
	}

	if unfiltered {
		if data, err := json.Marshal(units); err == nil {
			_ = s.redis.Set(ctx, INVENTORY_UNITS_CACHE_KEY, data, CACHE_TTL_SHORT)
		}
	}

	return &ListUnitsResponse{Success: true, Units: units}, nil
}

// ResolveCandidates lists the units eligible to satisfy a purchase of the
// package. Pooled products draw from the whole product's stock. Results for
// new orders are cached briefly; the change feed invalidates them on any
// inventory or order write.
func (s *InventoryHandler) ResolveCandidates(ctx context.Context, req *CandidatesRequest) (*ListUnitsResponse, error) {
	cacheable := req.EditingOrderID == nil
	cacheKey := fmt.Sprintf("%s%d", CANDIDATES_CACHE_PREFIX, req.PackageID)
	if cacheable {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var units []models.InventoryUnit
			if json.Unmarshal([]byte(cached), &units) == nil {
				return &ListUnitsResponse{Success: true, Units: units}, nil
			}
		}
	}

	var pkg models.Package
	if err := s.db.Preload("Product").First(&pkg, req.PackageID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &ListUnitsResponse{Success: false, Message: strPtr("package not found")}, nil
		}
		return &ListUnitsResponse{Success: false, Message: strPtr("database error")}, err
	}
	if pkg.Product == nil {
		return &ListUnitsResponse{Success: false, Message: strPtr("package has no product")}, nil
	}

	sharedPool := pkg.Product.SharedInventoryPool
	query := s.db
	if sharedPool {
		query = query.Where("product_id = ?", pkg.ProductID)
	} else {
		query = query.Where("package_id = ?", pkg.ID)
	}

	var units []models.InventoryUnit
	if err := query.Order("id asc").Find(&units).Error; err != nil {
		return &ListUnitsResponse{Success: false, Message: strPtr("database error")}, err
	}

	candidates := allocator.ResolveCandidates(units, sharedPool, pkg.ProductID, pkg.ID, req.EditingOrderID, s.clock.Now())

	if cacheable {
		if data, err := json.Marshal(candidates); err == nil {
			_ = s.redis.Set(ctx, cacheKey, data, CACHE_TTL_SHORT)
		}
	}

	return &ListUnitsResponse{Success: true, Units: candidates}, nil
}

// RenewUnit extends the unit's own expiry (stock re-purchase from the
// supplier) and records the extension on the unit's ledger.
func (s *InventoryHandler) RenewUnit(ctx context.Context, req *RenewUnitRequest) (*UnitResponse, error) {
	if req.Months < 1 {
		return &UnitResponse{Success: false, Message: strPtr(renewal.ErrInvalidRenewalMonths.Error())}, renewal.ErrInvalidRenewalMonths
	}
	if _, err := decimal.NewFromString(req.Amount); err != nil {
		return &UnitResponse{Success: false, Message: strPtr("invalid amount")}, nil
	}

	var unit models.InventoryUnit
	if err := s.db.First(&unit, req.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &UnitResponse{Success: false, Message: strPtr("unit not found")}, nil
		}
		return &UnitResponse{Success: false, Message: strPtr("database error")}, err
	}

	now := s.clock.Now()
	payStatus := req.PaymentStatus
	if payStatus == "" {
		payStatus = models.PaymentUnpaid
	}

	rec, newExpiry := renewal.Apply(unit.ExpiryDate, now, req.Months, req.Amount, payStatus, req.Note)
	rec.InventoryID = &unit.ID
	unit.Renewals = append(unit.Renewals, rec)
	unit.ExpiryDate = newExpiry
	allocator.RecomputeStatus(&unit, now)

	if err := database.SaveUnitVersioned(s.db, &unit); err != nil {
		return &UnitResponse{Success: false, Message: strPtr("error renewing unit")}, err
	}

	s.notifier.TableChanged(ctx, notify.TableInventory, unit.ID, notify.ActionUpdated)
	s.InvalidateInventoryCaches(ctx, unit.ID)

	return &UnitResponse{Success: true, Unit: &unit}, nil
}

// RunSweep releases every lapsed binding and expires the orders that held
// them. It is the only path that moves an order into EXPIRED automatically.
// Safe to run alongside assigns on other units; a version conflict on one
// unit skips it until the next sweep.
func (s *InventoryHandler) RunSweep(ctx context.Context) (*SweepResponse, error) {
	resp := &SweepResponse{}
	now := s.clock.Now()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var units []models.InventoryUnit
		if err := tx.Find(&units).Error; err != nil {
			return err
		}

		expiredOrders := make(map[int64]bool)

		for i := range units {
			u := &units[i]
			released := 0
			var owners []int64

			for _, slotID := range expiry.LapsedSlots(u, now) {
				owner, ok := allocator.ReleaseSlot(u, slotID, now)
				if !ok {
					continue
				}
				released++
				if owner != nil {
					owners = append(owners, *owner)
				}
			}

			prev := u.Status
			allocator.RecomputeStatus(u, now)
			if prev == u.Status && released == 0 {
				continue
			}

			// the unit write must win its version check before the owning
			// orders are touched, or a skipped unit would leave orders
			// expired against slots still assigned to them
			if err := database.SaveUnitVersioned(tx, u); err != nil {
				if errors.Is(err, database.ErrVersionConflict) {
					continue // picked up by the next sweep
				}
				return err
			}
			if prev != models.UnitExpired && u.Status == models.UnitExpired {
				resp.ExpiredUnits++
			}
			resp.ReleasedSlots += released
			s.notifier.TableChanged(ctx, notify.TableInventory, u.ID, notify.ActionUpdated)

			for _, owner := range owners {
				expired, err := s.expireOrder(tx, owner, u, now)
				if err != nil {
					return err
				}
				if expired {
					expiredOrders[owner] = true
				}
			}
		}

		// orders lapsed on their own expiry, classic bindings included
		var lapsed []models.Order
		if err := tx.Where("status IN ? AND expiry_date < ?",
			[]models.OrderStatus{models.OrderProcessing, models.OrderCompleted}, now).
			Find(&lapsed).Error; err != nil {
			return err
		}

		for i := range lapsed {
			o := &lapsed[i]
			if expiredOrders[o.ID] {
				continue
			}
			if _, err := allocator.ReleaseAll(tx, o.ID, now); err != nil {
				return err
			}
			o.Status = models.OrderExpired
			o.InventoryItemID = nil
			o.InventoryProfileIDs = models.StringArray{}
			if err := tx.Save(o).Error; err != nil {
				return err
			}
			expiredOrders[o.ID] = true
			s.notifier.TableChanged(ctx, notify.TableOrders, o.ID, notify.ActionUpdated)
		}

		resp.ExpiredOrders = len(expiredOrders)
		return nil
	})
	if err != nil {
		return &SweepResponse{Success: false, Message: strPtr("sweep failed")}, err
	}

	if resp.ReleasedSlots > 0 || resp.ExpiredOrders > 0 || resp.ExpiredUnits > 0 {
		s.InvalidateInventoryCaches(ctx)
	}

	resp.Success = true
	return resp, nil
}

// expireOrder marks the slot's owning order EXPIRED unless it is already
// terminal, and trims the order's pointers to what the unit still grants it.
func (s *InventoryHandler) expireOrder(tx *gorm.DB, orderID int64, u *models.InventoryUnit, now time.Time) (bool, error) {
	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil // stale reference, the slot is freed regardless
		}
		return false, err
	}

	remaining := u.SlotsOwnedBy(order.ID)
	order.InventoryProfileIDs = models.StringArray(remaining)
	if len(remaining) == 0 && order.InventoryItemID != nil && *order.InventoryItemID == u.ID {
		order.InventoryItemID = nil
	}

	expired := false
	if !order.IsTerminal() {
		order.Status = models.OrderExpired
		expired = true
	}

	if err := tx.Save(&order).Error; err != nil {
		return false, err
	}
	return expired, nil
}
