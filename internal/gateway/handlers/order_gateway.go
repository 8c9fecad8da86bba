package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vendra-system/internal/database/models"
	orderhandler "vendra-system/internal/services/orders/handler"
)

type OrderHTTPHandler struct {
	orders *orderhandler.OrderHandler
}

func NewOrderHTTPHandler(orders *orderhandler.OrderHandler) *OrderHTTPHandler {
	return &OrderHTTPHandler{
		orders: orders,
	}
}

type CreateOrderPayload struct {
	Code            string               `json:"code" binding:"required"`
	CustomerID      int64                `json:"customer_id" binding:"required"`
	PackageID       int64                `json:"package_id" binding:"required"`
	PurchaseDate    time.Time            `json:"purchase_date" binding:"required"`
	ExpiryDate      *time.Time           `json:"expiry_date,omitempty"`
	PaymentStatus   models.PaymentStatus `json:"payment_status" binding:"required"`
	InventoryItemID *int64               `json:"inventory_item_id,omitempty"`
	SlotIDs         []string             `json:"slot_ids,omitempty"`
	CustomPrice     *string              `json:"custom_price,omitempty"`
	Notes           *string              `json:"notes,omitempty"`
}

type UpdateOrderPayload struct {
	CustomerID       *int64                `json:"customer_id,omitempty"`
	PackageID        *int64                `json:"package_id,omitempty"`
	PurchaseDate     *time.Time            `json:"purchase_date,omitempty"`
	ExpiryDate       *time.Time            `json:"expiry_date,omitempty"`
	Status           *models.OrderStatus   `json:"status,omitempty"`
	PaymentStatus    *models.PaymentStatus `json:"payment_status,omitempty"`
	InventoryItemID  *int64                `json:"inventory_item_id,omitempty"`
	SlotIDs          *[]string             `json:"slot_ids,omitempty"`
	Unbind           bool                  `json:"unbind,omitempty"`
	CustomPrice      *string               `json:"custom_price,omitempty"`
	ClearCustomPrice bool                  `json:"clear_custom_price,omitempty"`
	Notes            *string               `json:"notes,omitempty"`
}

type RenewOrderPayload struct {
	Months        int32                `json:"months" binding:"required"`
	Amount        string               `json:"amount" binding:"required"`
	PaymentStatus models.PaymentStatus `json:"payment_status" binding:"required"`
	Note          *string              `json:"note,omitempty"`
}

type RenewalPaymentPayload struct {
	RenewalID     string               `json:"renewal_id" binding:"required"`
	PaymentStatus models.PaymentStatus `json:"payment_status" binding:"required"`
}

type ListOrdersQuery struct {
	CustomerID *int64  `form:"customer_id,omitempty"`
	PackageID  *int64  `form:"package_id,omitempty"`
	Status     *string `form:"status,omitempty"`
}

func orderData(resp *orderhandler.OrderResponse) interface{} {
	if resp.Warning != nil {
		return map[string]interface{}{
			"order":   resp.Order,
			"warning": *resp.Warning,
		}
	}
	return resp.Order
}

func (h *OrderHTTPHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	resp, err := h.orders.CreateOrder(ctx, &orderhandler.CreateOrderRequest{
		Code:            req.Code,
		CustomerID:      req.CustomerID,
		PackageID:       req.PackageID,
		PurchaseDate:    req.PurchaseDate,
		ExpiryDate:      req.ExpiryDate,
		PaymentStatus:   req.PaymentStatus,
		InventoryItemID: req.InventoryItemID,
		SlotIDs:         req.SlotIDs,
		CustomPrice:     req.CustomPrice,
		Notes:           req.Notes,
	})
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Order service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to create order")))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Order created successfully", orderData(resp)))
}

func (h *OrderHTTPHandler) UpdateOrder(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateOrderPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	resp, err := h.orders.UpdateOrder(ctx, &orderhandler.UpdateOrderRequest{
		ID:               id,
		CustomerID:       req.CustomerID,
		PackageID:        req.PackageID,
		PurchaseDate:     req.PurchaseDate,
		ExpiryDate:       req.ExpiryDate,
		Status:           req.Status,
		PaymentStatus:    req.PaymentStatus,
		InventoryItemID:  req.InventoryItemID,
		SlotIDs:          req.SlotIDs,
		Unbind:           req.Unbind,
		CustomPrice:      req.CustomPrice,
		ClearCustomPrice: req.ClearCustomPrice,
		Notes:            req.Notes,
	})
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Order service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to update order")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Order updated successfully", orderData(resp)))
}

func (h *OrderHTTPHandler) DeleteOrder(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	resp, err := h.orders.DeleteOrder(ctx, id)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Order service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to delete order")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Order deleted successfully", orderData(resp)))
}

func (h *OrderHTTPHandler) CancelOrder(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	resp, err := h.orders.CancelOrder(ctx, id)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Order service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to cancel order")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Order cancelled successfully", orderData(resp)))
}

func (h *OrderHTTPHandler) RenewOrder(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req RenewOrderPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	resp, err := h.orders.RenewOrder(ctx, &orderhandler.RenewOrderRequest{
		ID:            id,
		Months:        req.Months,
		Amount:        req.Amount,
		PaymentStatus: req.PaymentStatus,
		Note:          req.Note,
	})
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Order service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to renew order")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Order renewed successfully", orderData(resp)))
}

func (h *OrderHTTPHandler) SetRenewalPayment(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req RenewalPaymentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.orders.SetRenewalPayment(ctx, &orderhandler.RenewalPaymentRequest{
		OrderID:       id,
		RenewalID:     req.RenewalID,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Order service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to update renewal payment")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Renewal payment updated successfully", orderData(resp)))
}

func (h *OrderHTTPHandler) GetOrder(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	resp, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Order service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusNotFound, errorResponse(respondMessage(resp.Message, "Order not found")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Order retrieved successfully", resp.Order))
}

func (h *OrderHTTPHandler) ListOrders(c *gin.Context) {
	var query ListOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid query parameters"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.orders.ListOrders(ctx, &orderhandler.ListOrdersRequest{
		CustomerID: query.CustomerID,
		PackageID:  query.PackageID,
		Status:     query.Status,
	})
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Order service error")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Orders retrieved successfully", resp.Orders))
}

func (h *OrderHTTPHandler) VerifyBinding(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.orders.VerifyOrderBinding(ctx, id)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Order service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusNotFound, errorResponse(respondMessage(resp.Message, "Order not found")))
		return
	}

	status := http.StatusOK
	if !resp.Consistent {
		status = http.StatusConflict
	}
	c.JSON(status, successResponse("Binding verified", map[string]interface{}{
		"consistent": resp.Consistent,
		"detail":     resp.Message,
	}))
}
