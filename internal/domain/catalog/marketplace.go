package catalog

import "time"

const (
	BoostXPMultiplier    = "xp_multiplier"
	BoostCoinsMultiplier = "coins_multiplier"
)

type MarketplaceItem struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"not null" json:"description"`
	Category    string `gorm:"not null;index" json:"category"`
	Price       int64  `gorm:"not null" json:"price"`
	// Stock is nil for unlimited items.
	Stock            *int64 `gorm:"column:stock" json:"stock,omitempty"`
	Stackable        bool   `gorm:"not null" json:"stackable"`
	RequiresApproval bool   `gorm:"not null" json:"requires_approval"`
	Equippable       bool   `gorm:"not null" json:"equippable"`

	BoostType            string  `gorm:"not null" json:"boost_type,omitempty"`
	BoostValue           float64 `gorm:"not null" json:"boost_value,omitempty"`
	BoostDurationMinutes int     `gorm:"not null" json:"boost_duration_minutes,omitempty"`
	// ExpiresAfterDays bounds how long an unused purchase stays active.
	ExpiresAfterDays int `gorm:"not null" json:"expires_after_days,omitempty"`

	IsActive  bool      `gorm:"not null;index" json:"is_active"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (MarketplaceItem) TableName() string { return "marketplace_item" }

func (m *MarketplaceItem) IsBoost() bool {
	return m != nil && (m.BoostType == BoostXPMultiplier || m.BoostType == BoostCoinsMultiplier)
}

func (m *MarketplaceItem) BoostDuration() time.Duration {
	if m == nil || m.BoostDurationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(m.BoostDurationMinutes) * time.Minute
}
