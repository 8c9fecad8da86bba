package models

import "time"

type OrderStatus string

const (
	OrderProcessing OrderStatus = "PROCESSING"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderExpired    OrderStatus = "EXPIRED"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Renewal is an immutable extension event. It targets either an order or an
// inventory unit and is appended to the owner's renewals JSON column; only
// PaymentStatus may be corrected after the fact.
type Renewal struct {
	ID                 string        `json:"id"`
	OrderID            *int64        `json:"order_id,omitempty"`
	InventoryID        *int64        `json:"inventory_id,omitempty"`
	Months             int32         `json:"months"`
	Amount             string        `json:"amount"`
	PreviousExpiryDate time.Time     `json:"previous_expiry_date"`
	NewExpiryDate      time.Time     `json:"new_expiry_date"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	Note               *string       `json:"note,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

type Order struct {
	ID                  int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Code                string        `gorm:"size:100;uniqueIndex;not null" json:"code"`
	CustomerID          int64         `gorm:"not null;index" json:"customer_id"`
	PackageID           int64         `gorm:"not null;index" json:"package_id"`
	PurchaseDate        time.Time     `gorm:"not null" json:"purchase_date"`
	ExpiryDate          time.Time     `gorm:"not null;index" json:"expiry_date"`
	Status              OrderStatus   `gorm:"size:20;not null;index" json:"status"`
	PaymentStatus       PaymentStatus `gorm:"size:20;not null" json:"payment_status"`
	InventoryItemID     *int64        `gorm:"index" json:"inventory_item_id,omitempty"`
	InventoryProfileIDs StringArray   `gorm:"type:jsonb" json:"inventory_profile_ids"`
	SalePrice           string        `gorm:"type:decimal(18,2);not null" json:"sale_price"`
	Cogs                string        `gorm:"type:decimal(18,2);not null" json:"cogs"`
	CustomPrice         bool          `gorm:"not null;default:false" json:"custom_price"`
	Renewals            RenewalArray  `gorm:"type:jsonb" json:"renewals"`
	Notes               *string       `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Package  *Package  `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}

// HasBinding reports whether the order record itself claims a unit or at
// least one slot.
func (o *Order) HasBinding() bool {
	return o.InventoryItemID != nil || len(o.InventoryProfileIDs) > 0
}

// IsTerminal reports whether automatic status derivation is locked.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderCancelled || o.Status == OrderExpired
}

// LatestRenewal returns the most recent renewal record, or nil.
func (o *Order) LatestRenewal() *Renewal {
	if len(o.Renewals) == 0 {
		return nil
	}
	return &o.Renewals[len(o.Renewals)-1]
}
