package rewards

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mission is one actor's instance of a template for one period. Rows from
// earlier periods are history and are never written again.
type Mission struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_mission_period,priority:1" json:"user_id"`
	TemplateID   string     `gorm:"not null;uniqueIndex:idx_mission_period,priority:2" json:"template_id"`
	PeriodKey    string     `gorm:"not null;uniqueIndex:idx_mission_period,priority:3;index" json:"period_key"`
	Period       string     `gorm:"not null" json:"period"`
	Title        string     `gorm:"not null;default:''" json:"title"`
	Metric       string     `gorm:"not null" json:"metric"`
	EventType    string     `gorm:"not null;default:''" json:"event_type,omitempty"`
	GameType     string     `gorm:"not null;default:''" json:"game_type,omitempty"`
	TargetValue  int64      `gorm:"not null" json:"target_value"`
	CurrentValue int64      `gorm:"not null;default:0" json:"current_value"`
	IsCompleted  bool       `gorm:"not null;default:false" json:"is_completed"`
	RewardXP     int64      `gorm:"not null;default:0" json:"reward_xp"`
	RewardCoins  int64      `gorm:"not null;default:0" json:"reward_coins"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Mission) TableName() string { return "mission" }

func (m *Mission) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
