package rewards

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusActive          = "active"
	StatusUsed            = "used"
	StatusExpired         = "expired"
	StatusPendingApproval = "pending_approval"
	StatusRejected        = "rejected"
)

const (
	OriginPurchase = "purchase"
	OriginBadge    = "badge"
)

// InventoryItem links an actor to a catalog item. OwnershipKey is the item
// id for non-stackable items and NULL for stackable ones, so the unique
// (user_id, ownership_key) index enforces single ownership.
type InventoryItem struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_inventory_ownership,priority:1" json:"user_id"`
	ItemID       string     `gorm:"not null;index" json:"item_id"`
	Category     string     `gorm:"not null" json:"category"`
	Status       string     `gorm:"not null;default:'active';index" json:"status"`
	IsEquipped   bool       `gorm:"not null;default:false" json:"is_equipped"`
	OwnershipKey *string    `gorm:"column:ownership_key;uniqueIndex:idx_inventory_ownership,priority:2" json:"-"`
	Origin       string     `gorm:"not null;default:'purchase'" json:"origin"`
	PricePaid    int64      `gorm:"not null;default:0" json:"price_paid"`
	BoostType    string     `gorm:"not null;default:''" json:"boost_type,omitempty"`
	BoostValue   float64    `gorm:"not null;default:0" json:"boost_value,omitempty"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	ActiveUntil  *time.Time `gorm:"index" json:"active_until,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (InventoryItem) TableName() string { return "inventory_item" }

func (i *InventoryItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
