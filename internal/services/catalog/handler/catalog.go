package handler

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vendra-system/internal/database/models"
	"vendra-system/internal/notify"
)

const (
	PRODUCTS_CACHE_KEY  = "catalog:products"
	PACKAGES_CACHE_KEY  = "catalog:packages"
	CUSTOMERS_CACHE_KEY = "catalog:customers"
	CACHE_TTL_MEDIUM    = 30 * time.Minute
)

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CatalogHandler owns the read-mostly product/package/customer records the
// engine allocates against. Editing a package never rewrites the sale price
// snapshot of existing orders.
type CatalogHandler struct {
	db       *gorm.DB
	redis    *redis.Client
	notifier *notify.Publisher
}

func NewCatalogHandler(db *gorm.DB, redisClient *redis.Client, notifier *notify.Publisher) *CatalogHandler {
	return &CatalogHandler{
		db:       db,
		redis:    redisClient,
		notifier: notifier,
	}
}

func (s *CatalogHandler) InvalidateCatalogCaches(ctx context.Context) {
	_ = s.redis.Del(ctx, PRODUCTS_CACHE_KEY, PACKAGES_CACHE_KEY, CUSTOMERS_CACHE_KEY)
}

// --- Products ---

type CreateProductRequest struct {
	ProductCode         string `json:"product_code"`
	ProductName         string `json:"product_name"`
	SharedInventoryPool bool   `json:"shared_inventory_pool"`
}

type UpdateProductRequest struct {
	ID                  int64   `json:"id"`
	ProductName         *string `json:"product_name"`
	SharedInventoryPool *bool   `json:"shared_inventory_pool"`
	IsActive            *bool   `json:"is_active"`
}

type ProductResponse struct {
	Success bool            `json:"success"`
	Message *string         `json:"message,omitempty"`
	Product *models.Product `json:"product,omitempty"`
}

type ListProductsResponse struct {
	Success  bool             `json:"success"`
	Message  *string          `json:"message,omitempty"`
	Products []models.Product `json:"products"`
}

func (s *CatalogHandler) CreateProduct(ctx context.Context, req *CreateProductRequest) (*ProductResponse, error) {
	if req.ProductCode == "" || req.ProductName == "" {
		return &ProductResponse{Success: false, Message: strPtr("product_code and product_name are required")}, nil
	}

	product := models.Product{
		ProductCode:         req.ProductCode,
		ProductName:         req.ProductName,
		SharedInventoryPool: req.SharedInventoryPool,
		IsActive:            true,
	}

	if err := s.db.Create(&product).Error; err != nil {
		return &ProductResponse{Success: false, Message: strPtr("error creating product")}, err
	}

	s.InvalidateCatalogCaches(ctx)
	s.notifier.TableChanged(ctx, notify.TableCatalog, product.ID, notify.ActionCreated)
	return &ProductResponse{Success: true, Product: &product}, nil
}

func (s *CatalogHandler) UpdateProduct(ctx context.Context, req *UpdateProductRequest) (*ProductResponse, error) {
	if req.ID == 0 {
		return &ProductResponse{Success: false, Message: strPtr("id must be provided")}, nil
	}

	var product models.Product
	if err := s.db.First(&product, req.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &ProductResponse{Success: false, Message: strPtr("product not found")}, nil
		}
		return &ProductResponse{Success: false, Message: strPtr("database error")}, err
	}

	if req.ProductName != nil {
		product.ProductName = *req.ProductName
	}
	if req.SharedInventoryPool != nil {
		product.SharedInventoryPool = *req.SharedInventoryPool
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.db.Save(&product).Error; err != nil {
		return &ProductResponse{Success: false, Message: strPtr("error updating product")}, err
	}

	s.InvalidateCatalogCaches(ctx)
	s.notifier.TableChanged(ctx, notify.TableCatalog, product.ID, notify.ActionUpdated)
	return &ProductResponse{Success: true, Product: &product}, nil
}

func (s *CatalogHandler) ListProducts(ctx context.Context) (*ListProductsResponse, error) {
	var products []models.Product
	if err := s.db.Preload("Packages").Order("id asc").Find(&products).Error; err != nil {
		return &ListProductsResponse{Success: false, Message: strPtr("database error")}, err
	}
	return &ListProductsResponse{Success: true, Products: products}, nil
}

// --- Packages ---

type CreatePackageRequest struct {
	PackageCode    string   `json:"package_code"`
	PackageName    string   `json:"package_name"`
	ProductID      int64    `json:"product_id"`
	WarrantyMonths int32    `json:"warranty_months"`
	Price          string   `json:"price"`
	IsAccountBased bool     `json:"is_account_based"`
	TotalSlots     int32    `json:"total_slots"`
	SlotLabels     []string `json:"slot_labels"`
}

type UpdatePackageRequest struct {
	ID             int64   `json:"id"`
	PackageName    *string `json:"package_name"`
	WarrantyMonths *int32  `json:"warranty_months"`
	Price          *string `json:"price"`
	IsActive       *bool   `json:"is_active"`
}

type PackageResponse struct {
	Success bool            `json:"success"`
	Message *string         `json:"message,omitempty"`
	Package *models.Package `json:"package,omitempty"`
}

type ListPackagesResponse struct {
	Success  bool             `json:"success"`
	Message  *string          `json:"message,omitempty"`
	Packages []models.Package `json:"packages"`
}

func (s *CatalogHandler) CreatePackage(ctx context.Context, req *CreatePackageRequest) (*PackageResponse, error) {
	if req.PackageCode == "" || req.PackageName == "" || req.ProductID == 0 {
		return &PackageResponse{Success: false, Message: strPtr("package_code, package_name and product_id are required")}, nil
	}
	if req.WarrantyMonths < 1 {
		return &PackageResponse{Success: false, Message: strPtr("warranty_months must be at least 1")}, nil
	}
	if _, err := decimal.NewFromString(req.Price); err != nil {
		return &PackageResponse{Success: false, Message: strPtr("invalid price")}, nil
	}
	if req.IsAccountBased && req.TotalSlots < 1 {
		return &PackageResponse{Success: false, Message: strPtr("account-based packages need total_slots >= 1")}, nil
	}

	var product models.Product
	if err := s.db.First(&product, req.ProductID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &PackageResponse{Success: false, Message: strPtr("product not found")}, nil
		}
		return &PackageResponse{Success: false, Message: strPtr("database error")}, err
	}

	pkg := models.Package{
		PackageCode:    req.PackageCode,
		PackageName:    req.PackageName,
		ProductID:      product.ID,
		WarrantyMonths: req.WarrantyMonths,
		Price:          req.Price,
		IsAccountBased: req.IsAccountBased,
		TotalSlots:     req.TotalSlots,
		SlotLabels:     models.StringArray(req.SlotLabels),
		IsActive:       true,
	}

	if err := s.db.Create(&pkg).Error; err != nil {
		return &PackageResponse{Success: false, Message: strPtr("error creating package")}, err
	}

	s.InvalidateCatalogCaches(ctx)
	s.notifier.TableChanged(ctx, notify.TableCatalog, pkg.ID, notify.ActionCreated)
	return &PackageResponse{Success: true, Package: &pkg}, nil
}

func (s *CatalogHandler) UpdatePackage(ctx context.Context, req *UpdatePackageRequest) (*PackageResponse, error) {
	if req.ID == 0 {
		return &PackageResponse{Success: false, Message: strPtr("id must be provided")}, nil
	}

	var pkg models.Package
	if err := s.db.First(&pkg, req.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &PackageResponse{Success: false, Message: strPtr("package not found")}, nil
		}
		return &PackageResponse{Success: false, Message: strPtr("database error")}, err
	}

	if req.PackageName != nil {
		pkg.PackageName = *req.PackageName
	}
	if req.WarrantyMonths != nil {
		if *req.WarrantyMonths < 1 {
			return &PackageResponse{Success: false, Message: strPtr("warranty_months must be at least 1")}, nil
		}
		pkg.WarrantyMonths = *req.WarrantyMonths
	}
	if req.Price != nil {
		if _, err := decimal.NewFromString(*req.Price); err != nil {
			return &PackageResponse{Success: false, Message: strPtr("invalid price")}, nil
		}
		// existing orders keep their sale price snapshot
		pkg.Price = *req.Price
	}
	if req.IsActive != nil {
		pkg.IsActive = *req.IsActive
	}

	if err := s.db.Save(&pkg).Error; err != nil {
		return &PackageResponse{Success: false, Message: strPtr("error updating package")}, err
	}

	s.InvalidateCatalogCaches(ctx)
	s.notifier.TableChanged(ctx, notify.TableCatalog, pkg.ID, notify.ActionUpdated)
	return &PackageResponse{Success: true, Package: &pkg}, nil
}

func (s *CatalogHandler) ListPackages(ctx context.Context) (*ListPackagesResponse, error) {
	var packages []models.Package
	if err := s.db.Preload("Product").Order("id asc").Find(&packages).Error; err != nil {
		return &ListPackagesResponse{Success: false, Message: strPtr("database error")}, err
	}
	return &ListPackagesResponse{Success: true, Packages: packages}, nil
}

// --- Customers ---

type CreateCustomerRequest struct {
	CustomerCode string  `json:"customer_code"`
	CustomerName string  `json:"customer_name"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	Notes        *string `json:"notes"`
}

type UpdateCustomerRequest struct {
	ID           int64   `json:"id"`
	CustomerName *string `json:"customer_name"`
	Phone        *string `json:"phone"`
	Email        *string `json:"email"`
	Notes        *string `json:"notes"`
	IsActive     *bool   `json:"is_active"`
}

type CustomerResponse struct {
	Success  bool             `json:"success"`
	Message  *string          `json:"message,omitempty"`
	Customer *models.Customer `json:"customer,omitempty"`
}

type ListCustomersResponse struct {
	Success   bool              `json:"success"`
	Message   *string           `json:"message,omitempty"`
	Customers []models.Customer `json:"customers"`
}

func (s *CatalogHandler) CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*CustomerResponse, error) {
	if req.CustomerCode == "" || req.CustomerName == "" {
		return &CustomerResponse{Success: false, Message: strPtr("customer_code and customer_name are required")}, nil
	}

	customer := models.Customer{
		CustomerCode: req.CustomerCode,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Email:        req.Email,
		Notes:        req.Notes,
		IsActive:     true,
	}

	if err := s.db.Create(&customer).Error; err != nil {
		return &CustomerResponse{Success: false, Message: strPtr("error creating customer")}, err
	}

	s.InvalidateCatalogCaches(ctx)
	s.notifier.TableChanged(ctx, notify.TableCatalog, customer.ID, notify.ActionCreated)
	return &CustomerResponse{Success: true, Customer: &customer}, nil
}

func (s *CatalogHandler) UpdateCustomer(ctx context.Context, req *UpdateCustomerRequest) (*CustomerResponse, error) {
	if req.ID == 0 {
		return &CustomerResponse{Success: false, Message: strPtr("id must be provided")}, nil
	}

	var customer models.Customer
	if err := s.db.First(&customer, req.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &CustomerResponse{Success: false, Message: strPtr("customer not found")}, nil
		}
		return &CustomerResponse{Success: false, Message: strPtr("database error")}, err
	}

	if req.CustomerName != nil {
		customer.CustomerName = *req.CustomerName
	}
	if req.Phone != nil {
		customer.Phone = req.Phone
	}
	if req.Email != nil {
		customer.Email = req.Email
	}
	if req.Notes != nil {
		customer.Notes = req.Notes
	}
	if req.IsActive != nil {
		customer.IsActive = *req.IsActive
	}

	if err := s.db.Save(&customer).Error; err != nil {
		return &CustomerResponse{Success: false, Message: strPtr("error updating customer")}, err
	}

	s.InvalidateCatalogCaches(ctx)
	s.notifier.TableChanged(ctx, notify.TableCatalog, customer.ID, notify.ActionUpdated)
	return &CustomerResponse{Success: true, Customer: &customer}, nil
}

func (s *CatalogHandler) ListCustomers(ctx context.Context) (*ListCustomersResponse, error) {
	var customers []models.Customer
	if err := s.db.Order("id asc").Find(&customers).Error; err != nil {
		return &ListCustomersResponse{Success: false, Message: strPtr("database error")}, err
	}
	return &ListCustomersResponse{Success: true, Customers: customers}, nil
}
