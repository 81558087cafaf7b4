package progression

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Source types used as the first half of the ledger idempotency key.
const (
	SourceEvent           = "event"
	SourceBadge           = "badge"
	SourceStreakClaim     = "streak_claim"
	SourceMission         = "mission"
	SourcePurchase        = "purchase"
	SourceRefund          = "refund"
	SourceSkillXP         = "skill_xp"
	SourceAdminAdjustment = "admin_adjustment"
)

// LedgerEntry is one applied delta. (user_id, source_type, source_id) is
// unique, which is what makes Apply idempotent.
type LedgerEntry struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_source,priority:1" json:"user_id"`
	SourceType  string         `gorm:"not null;uniqueIndex:idx_ledger_source,priority:2" json:"source_type"`
	SourceID    string         `gorm:"not null;uniqueIndex:idx_ledger_source,priority:3" json:"source_id"`
	XP          int64          `gorm:"not null;default:0" json:"xp"`
	Coins       int64          `gorm:"not null;default:0" json:"coins"`
	GamesPlayed int64          `gorm:"not null;default:0" json:"games_played"`
	SkillXP     datatypes.JSON `gorm:"column:skill_xp" json:"skill_xp,omitempty"`
	Reason      string         `gorm:"column:reason" json:"reason,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string { return "ledger_entry" }

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type SourceKey struct {
	Type string `json:"source_type"`
	ID   string `json:"source_id"`
}

func Key(sourceType, sourceID string) SourceKey {
	return SourceKey{Type: strings.TrimSpace(sourceType), ID: strings.TrimSpace(sourceID)}
}

func (k SourceKey) IsZero() bool { return k.Type == "" && k.ID == "" }

func (k SourceKey) String() string { return k.Type + ":" + k.ID }

type Delta struct {
	XP          int64            `json:"xp"`
	Coins       int64            `json:"coins"`
	GamesPlayed int64            `json:"games_played,omitempty"`
	SkillXP     map[string]int64 `json:"skill_xp,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

func (d Delta) IsZero() bool {
	if d.XP != 0 || d.Coins != 0 || d.GamesPlayed != 0 {
		return false
	}
	for _, v := range d.SkillXP {
		if v != 0 {
			return false
		}
	}
	return true
}

type SkillLevelChange struct {
	SkillID    string `json:"skill_id"`
	NewLevel   int    `json:"new_level"`
	NewXP      int64  `json:"new_xp"`
	TotalXP    int64  `json:"total_xp"`
	LeveledUp  bool   `json:"leveled_up"`
	MaxedOut   bool   `json:"maxed_out,omitempty"`
	MasteryPct int    `json:"mastery_level"`
}

type ApplyResult struct {
	Key       SourceKey          `json:"key"`
	NewXP     int64              `json:"new_xp"`
	NewLevel  int                `json:"new_level"`
	NewCoins  int64              `json:"new_coins"`
	PrevLevel int                `json:"prev_level"`
	LeveledUp bool               `json:"leveled_up"`
	Duplicate bool               `json:"duplicate"`
	Skills    []SkillLevelChange `json:"skills,omitempty"`
}
