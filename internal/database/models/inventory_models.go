package models

import "time"

type UnitKind string

const (
	UnitKindClassic UnitKind = "CLASSIC"
	UnitKindAccount UnitKind = "ACCOUNT"
)

type UnitStatus string

const (
	UnitAvailable UnitStatus = "AVAILABLE"
	UnitReserved  UnitStatus = "RESERVED"
	UnitSold      UnitStatus = "SOLD"
	UnitExpired   UnitStatus = "EXPIRED"
)

// Slot is one addressable seat inside an account unit. Slots live as a JSON
// array on the inventory row; SlotID is generated at intake and stable for the
// life of the unit.
type Slot struct {
	SlotID          string     `json:"slot_id"`
	Label           string     `json:"label"`
	IsAssigned      bool       `json:"is_assigned"`
	AssignedOrderID *int64     `json:"assigned_order_id,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	ExpiryAt        *time.Time `json:"expiry_at,omitempty"`
	NeedsUpdate     bool       `json:"needs_update,omitempty"`
}

type InventoryUnit struct {
	ID            int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Code          string       `gorm:"size:100;uniqueIndex;not null" json:"code"`
	ProductID     int64        `gorm:"not null;index" json:"product_id"`
	PackageID     *int64       `gorm:"index" json:"package_id,omitempty"`
	Kind          UnitKind     `gorm:"size:20;not null" json:"kind"`
	Status        UnitStatus   `gorm:"size:20;not null;index" json:"status"`
	PurchaseDate  time.Time    `gorm:"not null" json:"purchase_date"`
	ExpiryDate    time.Time    `gorm:"not null;index" json:"expiry_date"`
	PurchasePrice string       `gorm:"type:decimal(18,2);not null" json:"purchase_price"`
	TotalSlots    int32        `gorm:"not null;default:0" json:"total_slots"`
	Profiles      SlotArray    `gorm:"type:jsonb" json:"profiles"`
	LinkedOrderID *int64       `gorm:"index" json:"linked_order_id,omitempty"`
	Renewals      RenewalArray `gorm:"type:jsonb" json:"renewals"`
	Version       int64        `gorm:"not null;default:0" json:"version"`
	Notes         *string      `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Package *Package `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}

// FindSlot returns a pointer into Profiles, or nil when the id is unknown.
func (u *InventoryUnit) FindSlot(slotID string) *Slot {
	for i := range u.Profiles {
		if u.Profiles[i].SlotID == slotID {
			return &u.Profiles[i]
		}
	}
	return nil
}

func (u *InventoryUnit) IsExpired(now time.Time) bool {
	return now.After(u.ExpiryDate)
}

// SlotsOwnedBy lists the slot ids currently assigned to the given order.
func (u *InventoryUnit) SlotsOwnedBy(orderID int64) []string {
	var ids []string
	for i := range u.Profiles {
		s := &u.Profiles[i]
		if s.IsAssigned && s.AssignedOrderID != nil && *s.AssignedOrderID == orderID {
			ids = append(ids, s.SlotID)
		}
	}
	return ids
}

// BoundTo reports whether any binding on the unit points at the order, via the
// classic link or via a slot.
func (u *InventoryUnit) BoundTo(orderID int64) bool {
	if u.LinkedOrderID != nil && *u.LinkedOrderID == orderID {
		return true
	}
	return len(u.SlotsOwnedBy(orderID)) > 0
}

// HasFreeSlot reports whether at least one slot can take a new assignment.
func (u *InventoryUnit) HasFreeSlot() bool {
	for i := range u.Profiles {
		if !u.Profiles[i].IsAssigned && !u.Profiles[i].NeedsUpdate {
			return true
		}
	}
	return false
}

func (u *InventoryUnit) AssignedSlotCount() int {
	n := 0
	for i := range u.Profiles {
		if u.Profiles[i].IsAssigned {
			n++
		}
	}
	return n
}
