package progression

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/progression-backend/internal/data/db"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

type SkillProgressRepo interface {
	Ensure(dbc dbctx.Context, userID uuid.UUID, skillID string) error
	AddXP(dbc dbctx.Context, userID uuid.UUID, skillID string, xp int64) error
	Get(dbc dbctx.Context, userID uuid.UUID, skillID string) (*types.SkillProgress, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.SkillProgress, error)
	SetDerived(dbc dbctx.Context, userID uuid.UUID, skillID string, level int, currentXP int64, mastery int) error
	// MarkUnlocked flips is_unlocked once; false means it was already set.
	MarkUnlocked(dbc dbctx.Context, userID uuid.UUID, skillID string, at time.Time) (bool, error)
}

type skillProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillProgressRepo(db *gorm.DB, baseLog *logger.Logger) SkillProgressRepo {
	return &skillProgressRepo{db: db, log: baseLog.With("repo", "SkillProgressRepo")}
}

func (r *skillProgressRepo) Ensure(dbc dbctx.Context, userID uuid.UUID, skillID string) error {
	row := &types.SkillProgress{UserID: userID, SkillID: skillID}
	err := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	return db.MapError("skill_progress.ensure", err)
}

func (r *skillProgressRepo) AddXP(dbc dbctx.Context, userID uuid.UUID, skillID string, xp int64) error {
	err := dbc.DB(r.db).Model(&types.SkillProgress{}).
		Where("user_id = ? AND skill_id = ?", userID, skillID).
		Updates(map[string]interface{}{
			"total_xp":   gorm.Expr("total_xp + ?", xp),
			"updated_at": time.Now().UTC(),
		}).Error
	return db.MapError("skill_progress.add_xp", err)
}

func (r *skillProgressRepo) Get(dbc dbctx.Context, userID uuid.UUID, skillID string) (*types.SkillProgress, error) {
	var sp types.SkillProgress
	err := dbc.DB(r.db).Where("user_id = ? AND skill_id = ?", userID, skillID).Take(&sp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError("skill_progress.get", err)
	}
	return &sp, nil
}

func (r *skillProgressRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.SkillProgress, error) {
	var out []*types.SkillProgress
	err := dbc.DB(r.db).Where("user_id = ?", userID).Order("skill_id ASC").Find(&out).Error
	if err != nil {
		return nil, db.MapError("skill_progress.list", err)
	}
	return out, nil
}

func (r *skillProgressRepo) SetDerived(dbc dbctx.Context, userID uuid.UUID, skillID string, level int, currentXP int64, mastery int) error {
	err := dbc.DB(r.db).Model(&types.SkillProgress{}).
		Where("user_id = ? AND skill_id = ?", userID, skillID).
		Updates(map[string]interface{}{
			"current_level": level,
			"current_xp":    currentXP,
			"mastery_level": mastery,
		}).Error
	return db.MapError("skill_progress.set_derived", err)
}

func (r *skillProgressRepo) MarkUnlocked(dbc dbctx.Context, userID uuid.UUID, skillID string, at time.Time) (bool, error) {
	if err := r.Ensure(dbc, userID, skillID); err != nil {
		return false, err
	}
	res := dbc.DB(r.db).Model(&types.SkillProgress{}).
		Where("user_id = ? AND skill_id = ? AND is_unlocked = ?", userID, skillID, false).
		Updates(map[string]interface{}{
			"is_unlocked": true,
			"unlocked_at": at,
		})
	if res.Error != nil {
		return false, db.MapError("skill_progress.mark_unlocked", res.Error)
	}
	return res.RowsAffected > 0, nil
}
