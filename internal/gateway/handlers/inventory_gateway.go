package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vendra-system/internal/database/models"
	invhandler "vendra-system/internal/services/inventory/handler"
)

type InventoryHTTPHandler struct {
	inventory *invhandler.InventoryHandler
}

func NewInventoryHTTPHandler(inventory *invhandler.InventoryHandler) *InventoryHTTPHandler {
	return &InventoryHTTPHandler{
		inventory: inventory,
	}
}

type CreateUnitPayload struct {
	Code          string     `json:"code" binding:"required"`
	ProductID     int64      `json:"product_id" binding:"required"`
	PackageID     *int64     `json:"package_id,omitempty"`
	PurchaseDate  time.Time  `json:"purchase_date" binding:"required"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	PurchasePrice string     `json:"purchase_price" binding:"required"`
	Notes         *string    `json:"notes,omitempty"`
}

type UpdateUnitPayload struct {
	Status        *models.UnitStatus     `json:"status,omitempty"`
	PurchasePrice *string                `json:"purchase_price,omitempty"`
	ExpiryDate    *time.Time             `json:"expiry_date,omitempty"`
	Notes         *string                `json:"notes,omitempty"`
	Slots         []invhandler.SlotPatch `json:"slots,omitempty"`
}

type RenewUnitPayload struct {
	Months        int32                `json:"months" binding:"required"`
	Amount        string               `json:"amount" binding:"required"`
	PaymentStatus models.PaymentStatus `json:"payment_status" binding:"required"`
	Note          *string              `json:"note,omitempty"`
}

type ListUnitsQuery struct {
	ProductID *int64  `form:"product_id,omitempty"`
	PackageID *int64  `form:"package_id,omitempty"`
	Status    *string `form:"status,omitempty"`
}

type CandidatesQuery struct {
	PackageID      int64  `form:"package_id" binding:"required"`
	EditingOrderID *int64 `form:"editing_order_id,omitempty"`
}

func (h *InventoryHTTPHandler) CreateUnit(c *gin.Context) {
	var req CreateUnitPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.inventory.CreateUnit(ctx, &invhandler.CreateUnitRequest{
		Code:          req.Code,
		ProductID:     req.ProductID,
		PackageID:     req.PackageID,
		PurchaseDate:  req.PurchaseDate,
		ExpiryDate:    req.ExpiryDate,
		PurchasePrice: req.PurchasePrice,
		Notes:         req.Notes,
	})
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Inventory service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to create unit")))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Inventory unit created successfully", resp.Unit))
}

func (h *InventoryHTTPHandler) UpdateUnit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateUnitPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.inventory.UpdateUnit(ctx, &invhandler.UpdateUnitRequest{
		ID:            id,
		Status:        req.Status,
		PurchasePrice: req.PurchasePrice,
		ExpiryDate:    req.ExpiryDate,
		Notes:         req.Notes,
		Slots:         req.Slots,
	})
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Inventory service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to update unit")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Inventory unit updated successfully", resp.Unit))
}

func (h *InventoryHTTPHandler) DeleteUnit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.inventory.DeleteUnit(ctx, id)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Inventory service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to delete unit")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Inventory unit deleted successfully", nil))
}

func (h *InventoryHTTPHandler) GetUnit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp, err := h.inventory.GetUnit(ctx, id)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Inventory service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusNotFound, errorResponse(respondMessage(resp.Message, "Inventory unit not found")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Inventory unit retrieved successfully", resp.Unit))
}

func (h *InventoryHTTPHandler) ListUnits(c *gin.Context) {
	var query ListUnitsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid query parameters"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.inventory.ListUnits(ctx, &invhandler.ListUnitsRequest{
		ProductID: query.ProductID,
		PackageID: query.PackageID,
		Status:    query.Status,
	})
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Inventory service error")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Inventory units retrieved successfully", resp.Units))
}

func (h *InventoryHTTPHandler) ResolveCandidates(c *gin.Context) {
	var query CandidatesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("package_id is required"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.inventory.ResolveCandidates(ctx, &invhandler.CandidatesRequest{
		PackageID:      query.PackageID,
		EditingOrderID: query.EditingOrderID,
	})
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Inventory service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to resolve candidates")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Candidate units resolved successfully", resp.Units))
}

func (h *InventoryHTTPHandler) RenewUnit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req RenewUnitPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.inventory.RenewUnit(ctx, &invhandler.RenewUnitRequest{
		ID:            id,
		Months:        req.Months,
		Amount:        req.Amount,
		PaymentStatus: req.PaymentStatus,
		Note:          req.Note,
	})
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Inventory service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to renew unit")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Inventory unit renewed successfully", resp.Unit))
}

func (h *InventoryHTTPHandler) RunSweep(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	resp, err := h.inventory.RunSweep(ctx)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Sweep failed")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Expiry sweep completed", map[string]interface{}{
		"released_slots": resp.ReleasedSlots,
		"expired_orders": resp.ExpiredOrders,
		"expired_units":  resp.ExpiredUnits,
	}))
}
