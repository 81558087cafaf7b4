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

type ProfileRepo interface {
	Ensure(dbc dbctx.Context, userID uuid.UUID) (bool, error)
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error)
	// AddCounters applies an additive change. It refuses (false, nil) when
	// the change would take xp or coins below zero, or the row is missing.
	AddCounters(dbc dbctx.Context, userID uuid.UUID, xp, coins, games int64) (bool, error)
	SetLevel(dbc dbctx.Context, userID uuid.UUID, level int) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo")}
}

func (r *profileRepo) Ensure(dbc dbctx.Context, userID uuid.UUID) (bool, error) {
	row := &types.Profile{UserID: userID, Level: 1}
	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, db.MapError("profile.ensure", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *profileRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error) {
	var p types.Profile
	err := dbc.DB(r.db).Where("user_id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError("profile.get", err)
	}
	return &p, nil
}

func (r *profileRepo) AddCounters(dbc dbctx.Context, userID uuid.UUID, xp, coins, games int64) (bool, error) {
	q := dbc.DB(r.db).Model(&types.Profile{}).Where("user_id = ?", userID)
	if coins < 0 {
		q = q.Where("coins + ? >= 0", coins)
	}
	if xp < 0 {
		q = q.Where("xp + ? >= 0", xp)
	}
	res := q.Updates(map[string]interface{}{
		"xp":                 gorm.Expr("xp + ?", xp),
		"coins":              gorm.Expr("coins + ?", coins),
		"total_games_played": gorm.Expr("total_games_played + ?", games),
		"updated_at":         time.Now().UTC(),
	})
	if res.Error != nil {
		return false, db.MapError("profile.add_counters", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *profileRepo) SetLevel(dbc dbctx.Context, userID uuid.UUID, level int) error {
	err := dbc.DB(r.db).Model(&types.Profile{}).
		Where("user_id = ? AND level <> ?", userID, level).
		Update("level", level).Error
	return db.MapError("profile.set_level", err)
}
