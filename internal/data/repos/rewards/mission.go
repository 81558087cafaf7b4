package rewards

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

type MissionRepo interface {
	InsertIgnore(dbc dbctx.Context, rows []*types.Mission) error
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Mission, error)
	ListByPeriodKey(dbc dbctx.Context, userID uuid.UUID, periodKey string) ([]*types.Mission, error)
	ListOpen(dbc dbctx.Context, userID uuid.UUID, periodKeys []string) ([]*types.Mission, error)
	// Advance adds amount to current_value, clamped at target_value.
	Advance(dbc dbctx.Context, id uuid.UUID, amount int64) error
	// Complete flips is_completed once the target is reached; false means
	// another writer already did, or the target is not reached yet.
	Complete(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	CountCompleted(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type missionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMissionRepo(db *gorm.DB, baseLog *logger.Logger) MissionRepo {
	return &missionRepo{db: db, log: baseLog.With("repo", "MissionRepo")}
}

func (r *missionRepo) InsertIgnore(dbc dbctx.Context, rows []*types.Mission) error {
	if len(rows) == 0 {
		return nil
	}
	err := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	return db.MapError("mission.insert_ignore", err)
}

func (r *missionRepo) Get(dbc dbctx.Context, id uuid.UUID) (*types.Mission, error) {
	var m types.Mission
	err := dbc.DB(r.db).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError("mission.get", err)
	}
	return &m, nil
}

func (r *missionRepo) ListByPeriodKey(dbc dbctx.Context, userID uuid.UUID, periodKey string) ([]*types.Mission, error) {
	var out []*types.Mission
	err := dbc.DB(r.db).
		Where("user_id = ? AND period_key = ?", userID, periodKey).
		Order("template_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, db.MapError("mission.list", err)
	}
	return out, nil
}

func (r *missionRepo) ListOpen(dbc dbctx.Context, userID uuid.UUID, periodKeys []string) ([]*types.Mission, error) {
	var out []*types.Mission
	if len(periodKeys) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("user_id = ? AND period_key IN ? AND is_completed = ?", userID, periodKeys, false).
		Order("template_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, db.MapError("mission.list_open", err)
	}
	return out, nil
}

func (r *missionRepo) Advance(dbc dbctx.Context, id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	err := dbc.DB(r.db).Model(&types.Mission{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]interface{}{
			"current_value": gorm.Expr(
				"CASE WHEN current_value + ? >= target_value THEN target_value ELSE current_value + ? END",
				amount, amount,
			),
			"updated_at": time.Now().UTC(),
		}).Error
	return db.MapError("mission.advance", err)
}

func (r *missionRepo) Complete(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := dbc.DB(r.db).Model(&types.Mission{}).
		Where("id = ? AND is_completed = ? AND current_value >= target_value", id, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, db.MapError("mission.complete", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *missionRepo) CountCompleted(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Mission{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Count(&n).Error
	return n, db.MapError("mission.count_completed", err)
}
