// Package domain re-exports the persisted models so repositories and
// services can import one package as types.
package domain

import (
	"github.com/yungbote/progression-backend/internal/domain/catalog"
	"github.com/yungbote/progression-backend/internal/domain/progression"
	"github.com/yungbote/progression-backend/internal/domain/rewards"
)

type Profile = progression.Profile
type StreakState = progression.StreakState
type LedgerEntry = progression.LedgerEntry
type SkillProgress = progression.SkillProgress
type ActivityEvent = progression.ActivityEvent
type EventType = progression.EventType

type SourceKey = progression.SourceKey
type Delta = progression.Delta
type ApplyResult = progression.ApplyResult
type SkillLevelChange = progression.SkillLevelChange

const (
	EventGamePlayed        = progression.EventGamePlayed
	EventQuizCompleted     = progression.EventQuizCompleted
	EventDecisionMade      = progression.EventDecisionMade
	EventSalesSession      = progression.EventSalesSession
	EventStreakClaimed     = progression.EventStreakClaimed
	EventTrainingCompleted = progression.EventTrainingCompleted
	EventFeedbackGiven     = progression.EventFeedbackGiven
	EventBadgeUnlocked     = progression.EventBadgeUnlocked
	EventMissionCompleted  = progression.EventMissionCompleted
	EventItemPurchased     = progression.EventItemPurchased
	EventAdminAction       = progression.EventAdminAction
)

const (
	SourceEvent           = progression.SourceEvent
	SourceBadge           = progression.SourceBadge
	SourceStreakClaim     = progression.SourceStreakClaim
	SourceMission         = progression.SourceMission
	SourcePurchase        = progression.SourcePurchase
	SourceRefund          = progression.SourceRefund
	SourceSkillXP         = progression.SourceSkillXP
	SourceAdminAdjustment = progression.SourceAdminAdjustment
)

var Key = progression.Key

type GameConfig = catalog.GameConfig
type Skill = catalog.Skill
type Badge = catalog.Badge
type BadgeKind = catalog.BadgeKind
type MissionTemplate = catalog.MissionTemplate
type MarketplaceItem = catalog.MarketplaceItem
type LevelThreshold = catalog.LevelThreshold
type StreakReward = catalog.StreakReward
type CatalogBundle = catalog.Bundle

const (
	KindBadge       = catalog.KindBadge
	KindInsignia    = catalog.KindInsignia
	KindCertificate = catalog.KindCertificate

	PeriodDaily   = catalog.PeriodDaily
	PeriodMonthly = catalog.PeriodMonthly

	MetricEventCount  = catalog.MetricEventCount
	MetricXPEarned    = catalog.MetricXPEarned
	MetricCoinsEarned = catalog.MetricCoinsEarned

	BoostXPMultiplier    = catalog.BoostXPMultiplier
	BoostCoinsMultiplier = catalog.BoostCoinsMultiplier
)

type BadgeUnlock = rewards.BadgeUnlock
type UserTitle = rewards.UserTitle
type Mission = rewards.Mission
type InventoryItem = rewards.InventoryItem

const (
	StatusActive          = rewards.StatusActive
	StatusUsed            = rewards.StatusUsed
	StatusExpired         = rewards.StatusExpired
	StatusPendingApproval = rewards.StatusPendingApproval
	StatusRejected        = rewards.StatusRejected

	OriginPurchase = rewards.OriginPurchase
	OriginBadge    = rewards.OriginBadge
)

// Models lists every table in migration order.
func Models() []interface{} {
	return []interface{}{
		&Profile{},
		&StreakState{},
		&LedgerEntry{},
		&SkillProgress{},
		&ActivityEvent{},

		&GameConfig{},
		&Skill{},
		&Badge{},
		&MissionTemplate{},
		&MarketplaceItem{},
		&LevelThreshold{},
		&StreakReward{},

		&BadgeUnlock{},
		&UserTitle{},
		&Mission{},
		&InventoryItem{},
	}
}
