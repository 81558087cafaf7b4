package catalog

import "time"

const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

const (
	MetricEventCount  = "event_count"
	MetricXPEarned    = "xp_earned"
	MetricCoinsEarned = "coins_earned"
)

// MissionTemplate is instantiated once per actor per period. EventType and
// GameType filter which events advance an event_count mission.
type MissionTemplate struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"not null" json:"description"`
	Period      string    `gorm:"not null;index" json:"period"`
	Metric      string    `gorm:"not null" json:"metric"`
	EventType   string    `gorm:"not null" json:"event_type,omitempty"`
	GameType    string    `gorm:"not null" json:"game_type,omitempty"`
	TargetValue int64     `gorm:"not null" json:"target_value"`
	RewardXP    int64     `gorm:"not null" json:"reward_xp"`
	RewardCoins int64     `gorm:"not null" json:"reward_coins"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (MissionTemplate) TableName() string { return "mission_template" }
