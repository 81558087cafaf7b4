package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/data/repos"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/engine/streak"
	"github.com/yungbote/progression-backend/internal/observability"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime"
)

const maxStreakCASAttempts = 5

type StreakView struct {
	CurrentStreak int           `json:"current_streak"`
	LongestStreak int           `json:"longest_streak"`
	LastPlayedOn  string        `json:"last_played_on,omitempty"`
	LastClaimedOn string        `json:"last_claimed_on,omitempty"`
	Today         string        `json:"today"`
	CanClaim      bool          `json:"can_claim"`
	NextReward    streak.Reward `json:"next_reward"`
}

type ClaimResult struct {
	Day         int                  `json:"day"`
	XP          int64                `json:"xp"`
	Coins       int64                `json:"coins"`
	Streak      StreakView           `json:"streak"`
	Progression *types.ApplyResult   `json:"progression"`
	Missions    []*types.Mission     `json:"completed_missions,omitempty"`
	Event       *types.ActivityEvent `json:"-"`
}

type StreakService interface {
	// RecordPlay counts a qualifying play for today. changed is false when
	// today was already counted.
	RecordPlay(dbc dbctx.Context, actorID uuid.UUID) (*StreakView, bool, error)
	ClaimDailyReward(ctx context.Context, actorID uuid.UUID) (*ClaimResult, error)
	Get(ctx context.Context, actorID uuid.UUID) (*StreakView, error)
}

type streakService struct {
	db       *gorm.DB
	log      *logger.Logger
	streaks  repos.StreakRepo
	ledger   LedgerService
	events   EventService
	catalog  *catalog.Registry
	clock    Clock
	notifier Notifier
}

func NewStreakService(
	db *gorm.DB,
	baseLog *logger.Logger,
	streaks repos.StreakRepo,
	ledger LedgerService,
	events EventService,
	reg *catalog.Registry,
	clock Clock,
	notifier Notifier,
) StreakService {
	return &streakService{
		db:       db,
		log:      baseLog.With("service", "StreakService"),
		streaks:  streaks,
		ledger:   ledger,
		events:   events,
		catalog:  reg,
		clock:    clock,
		notifier: notifier,
	}
}

func toState(row *types.StreakState) streak.State {
	return streak.State{
		Current:       row.CurrentStreak,
		Longest:       row.LongestStreak,
		LastPlayedOn:  row.LastPlayedOn,
		LastClaimedOn: row.LastClaimedOn,
	}
}

// mutate applies fn with compare-and-swap on version, re-reading on conflict.
func (s *streakService) mutate(dbc dbctx.Context, actorID uuid.UUID, fn func(streak.State) (streak.State, bool)) (*types.StreakState, bool, error) {
	for attempt := 0; attempt < maxStreakCASAttempts; attempt++ {
		row, err := s.streaks.Get(dbc, actorID)
		if err != nil {
			return nil, false, err
		}
		if row == nil {
			if err := s.streaks.Ensure(dbc, actorID); err != nil {
				return nil, false, err
			}
			continue
		}
		next, changed := fn(toState(row))
		if !changed {
			return row, false, nil
		}
		nr := *row
		nr.CurrentStreak = next.Current
		nr.LongestStreak = next.Longest
		nr.LastPlayedOn = next.LastPlayedOn
		ok, err := s.streaks.CompareAndSwap(dbc, &nr, row.Version)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return &nr, true, nil
		}
		s.log.Debug("streak cas conflict", "actor_id", actorID, "attempt", attempt+1)
	}
	return nil, false, apierr.New(apierr.KindTransient, apierr.CodeRetryable, "streak.update", "streak changed concurrently")
}

func (s *streakService) view(row *types.StreakState, today string) *StreakView {
	st := toState(row)
	decayed, _ := streak.Decay(st, today)
	return &StreakView{
		CurrentStreak: decayed.Current,
		LongestStreak: decayed.Longest,
		LastPlayedOn:  decayed.LastPlayedOn,
		LastClaimedOn: decayed.LastClaimedOn,
		Today:         today,
		CanClaim:      streak.CanClaim(decayed, today),
		NextReward:    streak.ClaimReward(s.catalog.Snapshot().StreakTable, decayed.Current),
	}
}

func (s *streakService) RecordPlay(dbc dbctx.Context, actorID uuid.UUID) (*StreakView, bool, error) {
	today := s.clock.Today()
	row, changed, err := s.mutate(dbc, actorID, func(st streak.State) (streak.State, bool) {
		return streak.RecordPlay(st, today)
	})
	if err != nil {
		return nil, false, err
	}
	return s.view(row, today), changed, nil
}

func (s *streakService) ClaimDailyReward(ctx context.Context, actorID uuid.UUID) (*ClaimResult, error) {
	const op = "streak.claim"
	if actorID == uuid.Nil {
		return nil, apierr.Validation(op, "actor id is required")
	}
	today := s.clock.Today()
	var out *ClaimResult
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		row, _, err := s.mutate(txc, actorID, func(st streak.State) (streak.State, bool) {
			return streak.Decay(st, today)
		})
		if err != nil {
			return err
		}
		ok, err := s.streaks.MarkClaimed(txc, actorID, today)
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict(apierr.CodeAlreadyClaimed, op, "daily reward already claimed")
		}
		reward := streak.ClaimReward(s.catalog.Snapshot().StreakTable, row.CurrentStreak)
		res, err := s.ledger.Apply(txc, actorID, types.Delta{
			XP:     reward.XP,
			Coins:  reward.Coins,
			Reason: "daily streak reward",
		}, types.Key(types.SourceStreakClaim, today))
		if err != nil {
			return err
		}
		rec, err := s.events.RecordDetailed(txc, actorID, EventInput{
			ClientEventID: "streak_claim:" + today,
			EventType:     string(types.EventStreakClaimed),
			XPEarned:      reward.XP,
			CoinsEarned:   reward.Coins,
			Metadata:      map[string]any{"day": reward.Day, "streak": row.CurrentStreak},
			credited:      true,
		})
		if err != nil {
			return err
		}
		claimed := *row
		claimed.LastClaimedOn = today
		out = &ClaimResult{
			Day:         reward.Day,
			XP:          reward.XP,
			Coins:       reward.Coins,
			Streak:      *s.view(&claimed, today),
			Progression: res,
			Missions:    rec.Completed,
			Event:       rec.Event,
		}
		return nil
	})
	if err != nil {
		if apierr.Is(err, apierr.CodeAlreadyClaimed) {
			observability.Current().IncStreakClaim("already_claimed")
		}
		return nil, err
	}
	observability.Current().IncStreakClaim("ok")
	s.log.Info("daily reward claimed", "actor_id", actorID, "day", out.Day, "xp", out.XP, "coins", out.Coins)

	if s.notifier != nil {
		s.notifier.Publish(ctx, actorID, realtime.EventStreakClaimed, out)
		s.notifier.ProgressionUpdated(ctx, actorID, out.Progression)
		s.notifier.MissionsCompleted(ctx, actorID, out.Missions)
	}
	return out, nil
}

// Get reads the streak with lazy decay. The decayed value is persisted
// best-effort; a lost race is harmless because the next read decays again.
func (s *streakService) Get(ctx context.Context, actorID uuid.UUID) (*StreakView, error) {
	today := s.clock.Today()
	dbc := dbctx.Of(ctx)
	row, err := s.streaks.Get(dbc, actorID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return s.view(&types.StreakState{UserID: actorID}, today), nil
	}
	if decayed, changed := streak.Decay(toState(row), today); changed {
		nr := *row
		nr.CurrentStreak = decayed.Current
		if _, err := s.streaks.CompareAndSwap(dbc, &nr, row.Version); err != nil {
			s.log.Warn("persisting streak decay failed", "actor_id", actorID, "error", err)
		}
	}
	return s.view(row, today), nil
}
