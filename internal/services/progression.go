package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/catalog"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/engine/levels"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

// ProgressionView is the summary shown on an actor's home screen and cached
// per session.
type ProgressionView struct {
	ActorID     uuid.UUID       `json:"actor_id"`
	XP          int64           `json:"xp"`
	Level       int             `json:"level"`
	Coins       int64           `json:"coins"`
	GamesPlayed int64           `json:"total_games_played"`
	Progress    levels.Progress `json:"level_progress"`
	Streak      *StreakView     `json:"streak"`
	BadgeCount  int             `json:"badge_count"`
	Titles      []string        `json:"titles"`
	LoadedAt    time.Time       `json:"loaded_at"`
}

type ProgressionService interface {
	View(ctx context.Context, actorID uuid.UUID) (*ProgressionView, error)
}

type progressionService struct {
	log     *logger.Logger
	ledger  LedgerService
	streaks StreakService
	unlocks UnlockService
	catalog *catalog.Registry
}

func NewProgressionService(
	baseLog *logger.Logger,
	ledger LedgerService,
	streaks StreakService,
	unlocks UnlockService,
	reg *catalog.Registry,
) ProgressionService {
	return &progressionService{
		log:     baseLog.With("service", "ProgressionService"),
		ledger:  ledger,
		streaks: streaks,
		unlocks: unlocks,
		catalog: reg,
	}
}

func (s *progressionService) View(ctx context.Context, actorID uuid.UUID) (*ProgressionView, error) {
	if err := s.ledger.EnsureActor(ctx, actorID); err != nil {
		return nil, err
	}
	p, err := s.ledger.Profile(dbctx.Of(ctx), actorID)
	if err != nil {
		return nil, err
	}
	st, err := s.streaks.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	badges, err := s.unlocks.Badges(ctx, actorID)
	if err != nil {
		return nil, err
	}
	titles, err := s.unlocks.Titles(ctx, actorID)
	if err != nil {
		return nil, err
	}

	v := &ProgressionView{
		ActorID:     actorID,
		XP:          p.XP,
		Level:       p.Level,
		Coins:       p.Coins,
		GamesPlayed: p.TotalGamesPlayed,
		Progress:    s.catalog.Snapshot().Levels.ProgressFor(p.XP),
		Streak:      st,
		BadgeCount:  len(badges),
		Titles:      titleNames(titles),
		LoadedAt:    time.Now().UTC(),
	}
	return v, nil
}

func titleNames(ts []*types.UserTitle) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Title)
	}
	return out
}
