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

type StreakRepo interface {
	Ensure(dbc dbctx.Context, userID uuid.UUID) error
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.StreakState, error)
	// CompareAndSwap writes the streak counters if version still matches.
	CompareAndSwap(dbc dbctx.Context, next *types.StreakState, expectedVersion int64) (bool, error)
	// MarkClaimed sets last_claimed_on unless it already equals day.
	MarkClaimed(dbc dbctx.Context, userID uuid.UUID, day string) (bool, error)
}

type streakRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStreakRepo(db *gorm.DB, baseLog *logger.Logger) StreakRepo {
	return &streakRepo{db: db, log: baseLog.With("repo", "StreakRepo")}
}

func (r *streakRepo) Ensure(dbc dbctx.Context, userID uuid.UUID) error {
	err := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&types.StreakState{UserID: userID}).Error
	return db.MapError("streak.ensure", err)
}

func (r *streakRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.StreakState, error) {
	var s types.StreakState
	err := dbc.DB(r.db).Where("user_id = ?", userID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError("streak.get", err)
	}
	return &s, nil
}

func (r *streakRepo) CompareAndSwap(dbc dbctx.Context, next *types.StreakState, expectedVersion int64) (bool, error) {
	res := dbc.DB(r.db).Model(&types.StreakState{}).
		Where("user_id = ? AND version = ?", next.UserID, expectedVersion).
		Updates(map[string]interface{}{
			"current_streak": next.CurrentStreak,
			"longest_streak": next.LongestStreak,
			"last_played_on": next.LastPlayedOn,
			"version":        expectedVersion + 1,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, db.MapError("streak.cas", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	next.Version = expectedVersion + 1
	return true, nil
}

func (r *streakRepo) MarkClaimed(dbc dbctx.Context, userID uuid.UUID, day string) (bool, error) {
	res := dbc.DB(r.db).Model(&types.StreakState{}).
		Where("user_id = ? AND last_claimed_on <> ?", userID, day).
		Updates(map[string]interface{}{
			"last_claimed_on": day,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, db.MapError("streak.mark_claimed", res.Error)
	}
	return res.RowsAffected > 0, nil
}
