package catalog

import (
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/progression-backend/internal/engine/reward"
)

// GameConfig is the reward policy for one game type.
type GameConfig struct {
	GameType        string  `gorm:"primaryKey;column:game_type" json:"game_type"`
	Name            string  `gorm:"not null" json:"name"`
	XPBaseReward    float64 `gorm:"not null" json:"xp_base_reward"`
	XPMultiplier    float64 `gorm:"not null" json:"xp_multiplier"`
	CoinsBaseReward float64 `gorm:"not null" json:"coins_base_reward"`
	CoinsMultiplier float64 `gorm:"not null" json:"coins_multiplier"`

	DifficultyMultipliers datatypes.JSONType[map[string]float64] `gorm:"column:difficulty_multipliers" json:"difficulty_multipliers"`

	StreakBonusEnabled bool    `gorm:"not null" json:"streak_bonus_enabled"`
	StreakBonusPerDay  float64 `gorm:"not null" json:"streak_bonus_per_day"`
	StreakBonusMax     float64 `gorm:"not null" json:"streak_bonus_max"`

	SkillCategories datatypes.JSONSlice[string] `gorm:"column:skill_categories" json:"skill_categories"`

	IsActive  bool      `gorm:"not null" json:"is_active"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (GameConfig) TableName() string { return "game_config" }

// Policy converts the row into the calculator's input type.
func (g *GameConfig) Policy() *reward.GameConfig {
	if g == nil {
		return nil
	}
	return &reward.GameConfig{
		GameType:              g.GameType,
		XPBase:                g.XPBaseReward,
		XPMultiplier:          g.XPMultiplier,
		CoinsBase:             g.CoinsBaseReward,
		CoinsMultiplier:       g.CoinsMultiplier,
		DifficultyMultipliers: g.DifficultyMultipliers.Data(),
		StreakBonus: reward.StreakBonus{
			Enabled:     g.StreakBonusEnabled,
			BonusPerDay: g.StreakBonusPerDay,
			MaxBonus:    g.StreakBonusMax,
		},
		SkillCategories: append([]string(nil), g.SkillCategories...),
	}
}

type LevelThreshold struct {
	Level      int   `gorm:"primaryKey;autoIncrement:false" json:"level"`
	XPRequired int64 `gorm:"not null" json:"xp_required"`
}

func (LevelThreshold) TableName() string { return "level_threshold" }

type StreakReward struct {
	Day   int   `gorm:"primaryKey;autoIncrement:false" json:"day"`
	XP    int64 `gorm:"not null" json:"xp"`
	Coins int64 `gorm:"not null" json:"coins"`
}

func (StreakReward) TableName() string { return "streak_reward" }
