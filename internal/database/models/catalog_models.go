package models

import "time"

type Product struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductCode         string    `gorm:"size:100;uniqueIndex;not null" json:"product_code"`
	ProductName         string    `gorm:"size:255;not null" json:"product_name"`
	SharedInventoryPool bool      `gorm:"not null;default:false" json:"shared_inventory_pool"`
	IsActive            bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	Packages []Package `gorm:"foreignKey:ProductID" json:"packages,omitempty"`
}

type Package struct {
	ID             int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	PackageCode    string      `gorm:"size:100;uniqueIndex;not null" json:"package_code"`
	PackageName    string      `gorm:"size:255;not null" json:"package_name"`
	ProductID      int64       `gorm:"not null;index" json:"product_id"`
	WarrantyMonths int32       `gorm:"not null;default:1" json:"warranty_months"`
	Price          string      `gorm:"type:decimal(18,2);not null" json:"price"`
	IsAccountBased bool        `gorm:"not null;default:false" json:"is_account_based"`
	TotalSlots     int32       `gorm:"not null;default:0" json:"total_slots"`
	SlotLabels     StringArray `gorm:"type:jsonb" json:"slot_labels"`
	IsActive       bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

type Customer struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerCode string    `gorm:"size:100;uniqueIndex;not null" json:"customer_code"`
	CustomerName string    `gorm:"size:255;not null" json:"customer_name"`
	Phone        *string   `gorm:"size:50" json:"phone,omitempty"`
	Email        *string   `gorm:"size:100" json:"email,omitempty"`
	Notes        *string   `gorm:"type:text" json:"notes,omitempty"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
