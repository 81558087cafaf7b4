package progression

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SkillProgress struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_skill_progress_user_skill,priority:1" json:"user_id"`
	SkillID      string     `gorm:"not null;uniqueIndex:idx_skill_progress_user_skill,priority:2" json:"skill_id"`
	CurrentLevel int        `gorm:"not null;default:0" json:"current_level"`
	CurrentXP    int64      `gorm:"not null;default:0" json:"current_xp"`
	TotalXP      int64      `gorm:"not null;default:0" json:"total_xp"`
	IsUnlocked   bool       `gorm:"not null;default:false" json:"is_unlocked"`
	MasteryLevel int        `gorm:"not null;default:0" json:"mastery_level"`
	UnlockedAt   *time.Time `json:"unlocked_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (SkillProgress) TableName() string { return "skill_progress" }

func (s *SkillProgress) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
