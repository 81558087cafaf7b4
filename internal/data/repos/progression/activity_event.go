package progression

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/progression-backend/internal/data/db"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

type ActivityEventRepo interface {
	// Insert appends the event; false means the client event id was taken.
	Insert(dbc dbctx.Context, e *types.ActivityEvent) (bool, error)
	GetByClientID(dbc dbctx.Context, userID uuid.UUID, clientEventID string) (*types.ActivityEvent, error)
	ListRecent(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ActivityEvent, error)
	// BestScores and CountsByType only see credited events.
	BestScores(dbc dbctx.Context, userID uuid.UUID) (map[string]float64, error)
	CountsByType(dbc dbctx.Context, userID uuid.UUID) (map[string]int64, error)
}

type activityEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityEventRepo(db *gorm.DB, baseLog *logger.Logger) ActivityEventRepo {
	return &activityEventRepo{db: db, log: baseLog.With("repo", "ActivityEventRepo")}
}

func (r *activityEventRepo) Insert(dbc dbctx.Context, e *types.ActivityEvent) (bool, error) {
	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(e)
	if res.Error != nil {
		return false, db.MapError("activity_event.insert", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *activityEventRepo) GetByClientID(dbc dbctx.Context, userID uuid.UUID, clientEventID string) (*types.ActivityEvent, error) {
	if clientEventID == "" {
		return nil, nil
	}
	var e types.ActivityEvent
	err := dbc.DB(r.db).Where("user_id = ? AND client_event_id = ?", userID, clientEventID).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError("activity_event.get_by_client_id", err)
	}
	return &e, nil
}

func (r *activityEventRepo) ListRecent(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ActivityEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.ActivityEvent
	err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, db.MapError("activity_event.list_recent", err)
	}
	return out, nil
}

func (r *activityEventRepo) BestScores(dbc dbctx.Context, userID uuid.UUID) (map[string]float64, error) {
	var rows []struct {
		GameType string
		Best     float64
	}
	err := dbc.DB(r.db).Model(&types.ActivityEvent{}).
		Select("game_type, MAX(score) AS best").
		Where("user_id = ? AND credited = ? AND game_type <> ''", userID, true).
		Group("game_type").
		Scan(&rows).Error
	if err != nil {
		return nil, db.MapError("activity_event.best_scores", err)
	}
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.GameType] = row.Best
	}
	return out, nil
}

func (r *activityEventRepo) CountsByType(dbc dbctx.Context, userID uuid.UUID) (map[string]int64, error) {
	var rows []struct {
		EventType string
		N         int64
	}
	err := dbc.DB(r.db).Model(&types.ActivityEvent{}).
		Select("event_type, COUNT(*) AS n").
		Where("user_id = ? AND credited = ?", userID, true).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, db.MapError("activity_event.counts_by_type", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.EventType] = row.N
	}
	return out, nil
}
