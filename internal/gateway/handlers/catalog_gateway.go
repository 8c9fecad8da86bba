package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	cataloghandler "vendra-system/internal/services/catalog/handler"
)

type CatalogHTTPHandler struct {
	catalog *cataloghandler.CatalogHandler
}

func NewCatalogHTTPHandler(catalog *cataloghandler.CatalogHandler) *CatalogHTTPHandler {
	return &CatalogHTTPHandler{
		catalog: catalog,
	}
}

func (h *CatalogHTTPHandler) CreateProduct(c *gin.Context) {
	var req cataloghandler.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.catalog.CreateProduct(ctx, &req)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Catalog service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to create product")))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Product created successfully", resp.Product))
}

func (h *CatalogHTTPHandler) UpdateProduct(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req cataloghandler.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	req.ID = id

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.catalog.UpdateProduct(ctx, &req)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Catalog service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to update product")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Product updated successfully", resp.Product))
}

func (h *CatalogHTTPHandler) ListProducts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.catalog.ListProducts(ctx)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Catalog service error")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Products retrieved successfully", resp.Products))
}

func (h *CatalogHTTPHandler) CreatePackage(c *gin.Context) {
	var req cataloghandler.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.catalog.CreatePackage(ctx, &req)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Catalog service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to create package")))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Package created successfully", resp.Package))
}

func (h *CatalogHTTPHandler) UpdatePackage(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req cataloghandler.UpdatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	req.ID = id

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.catalog.UpdatePackage(ctx, &req)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Catalog service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to update package")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Package updated successfully", resp.Package))
}

func (h *CatalogHTTPHandler) ListPackages(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.catalog.ListPackages(ctx)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Catalog service error")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Packages retrieved successfully", resp.Packages))
}

func (h *CatalogHTTPHandler) CreateCustomer(c *gin.Context) {
	var req cataloghandler.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.catalog.CreateCustomer(ctx, &req)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Catalog service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to create customer")))
		return
	}

	c.JSON(http.StatusCreated, successResponse("Customer created successfully", resp.Customer))
}

func (h *CatalogHTTPHandler) UpdateCustomer(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req cataloghandler.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	req.ID = id

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.catalog.UpdateCustomer(ctx, &req)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Catalog service error")))
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadRequest, errorResponse(respondMessage(resp.Message, "Unable to update customer")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Customer updated successfully", resp.Customer))
}

func (h *CatalogHTTPHandler) ListCustomers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.catalog.ListCustomers(ctx)
	if err != nil {
		c.JSON(statusForError(err), errorResponse(respondMessage(resp.Message, "Catalog service error")))
		return
	}

	c.JSON(http.StatusOK, successResponse("Customers retrieved successfully", resp.Customers))
}
