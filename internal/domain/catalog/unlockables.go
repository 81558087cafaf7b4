package catalog

import (
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/progression-backend/internal/engine/criteria"
	"github.com/yungbote/progression-backend/internal/engine/levels"
)

type BadgeKind string

const (
	KindBadge       BadgeKind = "badge"
	KindInsignia    BadgeKind = "insignia"
	KindCertificate BadgeKind = "certificate"
)

func (k BadgeKind) Valid() bool {
	return k == KindBadge || k == KindInsignia || k == KindCertificate
}

// Skill is a node in the skill forest.
type Skill struct {
	ID            string                                 `gorm:"primaryKey" json:"id"`
	Name          string                                 `gorm:"not null" json:"name"`
	Category      string                                 `gorm:"not null;index" json:"category"`
	ParentSkillID *string                                `gorm:"column:parent_skill_id;index" json:"parent_skill_id,omitempty"`
	XPPerLevel    int64                                  `gorm:"not null" json:"xp_per_level"`
	MaxLevel      int                                    `gorm:"not null" json:"max_level"`
	Criteria      datatypes.JSONSlice[criteria.Criterion] `gorm:"column:criteria" json:"criteria,omitempty"`
	SortOrder     int                                    `gorm:"not null" json:"sort_order"`
	UpdatedAt     time.Time                              `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Skill) TableName() string { return "skill" }

func (s *Skill) Curve() levels.SkillCurve {
	return levels.SkillCurve{XPPerLevel: s.XPPerLevel, MaxLevel: s.MaxLevel}
}

func (s *Skill) Parent() string {
	if s == nil || s.ParentSkillID == nil {
		return ""
	}
	return *s.ParentSkillID
}

// Badge covers badges, insignias and certificates. Certificates also get a
// rendered artifact after unlock.
type Badge struct {
	ID           string                                 `gorm:"primaryKey" json:"id"`
	Name         string                                 `gorm:"not null" json:"name"`
	Description  string                                 `gorm:"not null" json:"description"`
	Kind         BadgeKind                              `gorm:"not null;index" json:"kind"`
	Criteria     datatypes.JSONSlice[criteria.Criterion] `gorm:"column:criteria" json:"criteria"`
	RewardXP     int64                                  `gorm:"not null" json:"reward_xp"`
	RewardCoins  int64                                  `gorm:"not null" json:"reward_coins"`
	RewardTitle  string                                 `gorm:"not null" json:"reward_title,omitempty"`
	RewardItemID string                                 `gorm:"not null" json:"reward_item_id,omitempty"`
	IsActive     bool                                   `gorm:"not null" json:"is_active"`
	UpdatedAt    time.Time                              `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Badge) TableName() string { return "badge" }
