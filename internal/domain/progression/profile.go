package progression

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds an actor's cumulative counters. Level is a cache of
// LevelFor(XP) and is rewritten by the ledger in the same transaction as
// every xp change.
type Profile struct {
	UserID           uuid.UUID `gorm:"type:uuid;primaryKey;column:user_id" json:"user_id"`
	XP               int64     `gorm:"not null;default:0;column:xp" json:"xp"`
	Level            int       `gorm:"not null;default:1;column:level" json:"level"`
	Coins            int64     `gorm:"not null;default:0;column:coins" json:"coins"`
	TotalGamesPlayed int64     `gorm:"not null;default:0;column:total_games_played" json:"total_games_played"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string { return "user_progress" }

type StreakState struct {
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey;column:user_id" json:"user_id"`
	CurrentStreak int       `gorm:"not null;default:0;column:current_streak" json:"current_streak"`
	LongestStreak int       `gorm:"not null;default:0;column:longest_streak" json:"longest_streak"`
	// Day keys (2006-01-02) in the streak timezone. Empty means never.
	LastPlayedOn  string `gorm:"not null;default:'';column:last_played_on" json:"last_played_on,omitempty"`
	LastClaimedOn string `gorm:"not null;default:'';column:last_claimed_on" json:"last_claimed_on,omitempty"`
	Version       int64  `gorm:"not null;default:0;column:version" json:"-"`

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (StreakState) TableName() string { return "streak_state" }
