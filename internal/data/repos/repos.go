package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/data/repos/catalog"
	"github.com/yungbote/progression-backend/internal/data/repos/progression"
	"github.com/yungbote/progression-backend/internal/data/repos/rewards"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

type ProfileRepo = progression.ProfileRepo
type LedgerRepo = progression.LedgerRepo
type SkillProgressRepo = progression.SkillProgressRepo
type ActivityEventRepo = progression.ActivityEventRepo
type StreakRepo = progression.StreakRepo

type CatalogRepo = catalog.CatalogRepo

type BadgeUnlockRepo = rewards.BadgeUnlockRepo
type UserTitleRepo = rewards.UserTitleRepo
type MissionRepo = rewards.MissionRepo
type InventoryRepo = rewards.InventoryRepo

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return progression.NewProfileRepo(db, baseLog)
}
func NewLedgerRepo(db *gorm.DB, baseLog *logger.Logger) LedgerRepo {
	return progression.NewLedgerRepo(db, baseLog)
}
func NewSkillProgressRepo(db *gorm.DB, baseLog *logger.Logger) SkillProgressRepo {
	return progression.NewSkillProgressRepo(db, baseLog)
}
func NewActivityEventRepo(db *gorm.DB, baseLog *logger.Logger) ActivityEventRepo {
	return progression.NewActivityEventRepo(db, baseLog)
}
func NewStreakRepo(db *gorm.DB, baseLog *logger.Logger) StreakRepo {
	return progression.NewStreakRepo(db, baseLog)
}

func NewCatalogRepo(db *gorm.DB, baseLog *logger.Logger) CatalogRepo {
	return catalog.NewCatalogRepo(db, baseLog)
}

func NewBadgeUnlockRepo(db *gorm.DB, baseLog *logger.Logger) BadgeUnlockRepo {
	return rewards.NewBadgeUnlockRepo(db, baseLog)
}
func NewUserTitleRepo(db *gorm.DB, baseLog *logger.Logger) UserTitleRepo {
	return rewards.NewUserTitleRepo(db, baseLog)
}
func NewMissionRepo(db *gorm.DB, baseLog *logger.Logger) MissionRepo {
	return rewards.NewMissionRepo(db, baseLog)
}
func NewInventoryRepo(db *gorm.DB, baseLog *logger.Logger) InventoryRepo {
	return rewards.NewInventoryRepo(db, baseLog)
}

// Set bundles every repository the services need.
type Set struct {
	Profiles      ProfileRepo
	Ledger        LedgerRepo
	SkillProgress SkillProgressRepo
	Events        ActivityEventRepo
	Streaks       StreakRepo
	Catalog       CatalogRepo
	Unlocks       BadgeUnlockRepo
	Titles        UserTitleRepo
	Missions      MissionRepo
	Inventory     InventoryRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) *Set {
	return &Set{
		Profiles:      NewProfileRepo(db, baseLog),
		Ledger:        NewLedgerRepo(db, baseLog),
		SkillProgress: NewSkillProgressRepo(db, baseLog),
		Events:        NewActivityEventRepo(db, baseLog),
		Streaks:       NewStreakRepo(db, baseLog),
		Catalog:       NewCatalogRepo(db, baseLog),
		Unlocks:       NewBadgeUnlockRepo(db, baseLog),
		Titles:        NewUserTitleRepo(db, baseLog),
		Missions:      NewMissionRepo(db, baseLog),
		Inventory:     NewInventoryRepo(db, baseLog),
	}
}
