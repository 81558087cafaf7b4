package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/data/repos"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/engine/reward"
	"github.com/yungbote/progression-backend/internal/observability"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime"
)

// errLostEventRace rolls the transaction back when a concurrent request
// stored the same client_event_id first.
var errLostEventRace = errors.New("event recorded concurrently")

type GameplayInput struct {
	ClientEventID string         `json:"client_event_id"`
	EventType     string         `json:"event_type"`
	GameType      string         `json:"game_type"`
	Score         float64        `json:"score"`
	Difficulty    string         `json:"difficulty,omitempty"`
	ElapsedMs     int64          `json:"elapsed_ms,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type GameplayResult struct {
	EventID     uuid.UUID          `json:"event_id"`
	Reward      reward.Reward      `json:"reward"`
	XP          int64              `json:"xp"`
	Level       int                `json:"level"`
	Coins       int64              `json:"coins"`
	LeveledUp   bool               `json:"leveled_up"`
	Streak      *StreakView        `json:"streak,omitempty"`
	Missions    []*types.Mission   `json:"completed_missions"`
	Unlocked    *UnlockedSet       `json:"unlocked,omitempty"`
	Duplicate   bool               `json:"duplicate"`
	Progression *types.ApplyResult `json:"-"`

	streakChanged bool
}

type ActivityResult struct {
	Event     *types.ActivityEvent `json:"event"`
	Duplicate bool                 `json:"duplicate"`
	Missions  []*types.Mission     `json:"completed_missions"`
	Unlocked  *UnlockedSet         `json:"unlocked,omitempty"`
}

// GameplayService runs the completion flow: event, streak, reward, ledger
// and missions in one transaction, then unlocks and notifications.
type GameplayService interface {
	Complete(ctx context.Context, actorID uuid.UUID, in GameplayInput) (*GameplayResult, error)
	// LogActivity records a client-reported activity event. Gameplay and
	// engine-written types are refused, and the amounts it carries are kept
	// for audit only: they never credit the profile, advance missions or
	// satisfy unlock criteria.
	LogActivity(ctx context.Context, actorID uuid.UUID, in EventInput) (*ActivityResult, error)
}

type gameplayService struct {
	db         *gorm.DB
	log        *logger.Logger
	ledger     LedgerService
	events     EventService
	streaks    StreakService
	missions   MissionService
	inventory  repos.InventoryRepo
	catalog    *catalog.Registry
	dispatcher UnlockDispatcher
	notifier   Notifier
	clock      Clock
}

func NewGameplayService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ledger LedgerService,
	events EventService,
	streaks StreakService,
	missions MissionService,
	inventory repos.InventoryRepo,
	reg *catalog.Registry,
	dispatcher UnlockDispatcher,
	notifier Notifier,
	clock Clock,
) GameplayService {
	return &gameplayService{
		db:         db,
		log:        baseLog.With("service", "GameplayService"),
		ledger:     ledger,
		events:     events,
		streaks:    streaks,
		missions:   missions,
		inventory:  inventory,
		catalog:    reg,
		dispatcher: dispatcher,
		notifier:   notifier,
		clock:      clock,
	}
}

func validateGameplay(in *GameplayInput) error {
	const op = "gameplay.complete"
	in.EventType = strings.TrimSpace(strings.ToLower(in.EventType))
	if in.EventType == "" {
		in.EventType = string(types.EventGamePlayed)
	}
	et := types.EventType(in.EventType)
	if !et.Valid() {
		return apierr.New(apierr.KindValidation, apierr.CodeUnknownEventType, op, "unknown event type "+in.EventType)
	}
	if !et.Gameplay() {
		return apierr.Validation(op, in.EventType+" is not a gameplay event")
	}
	in.GameType = strings.TrimSpace(in.GameType)
	if in.Score < 0 || in.ElapsedMs < 0 {
		return apierr.Validation(op, "score and elapsed time must be non-negative")
	}
	key, err := clientEventKey(op, in.ClientEventID)
	if err != nil {
		return err
	}
	in.ClientEventID = key
	return nil
}

func (s *gameplayService) Complete(ctx context.Context, actorID uuid.UUID, in GameplayInput) (*GameplayResult, error) {
	const op = "gameplay.complete"
	if actorID == uuid.Nil {
		return nil, apierr.Validation(op, "actor id is required")
	}
	if err := validateGameplay(&in); err != nil {
		return nil, err
	}
	if err := s.ledger.EnsureActor(ctx, actorID); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, op,
		attribute.String("event_type", in.EventType),
		attribute.String("game_type", in.GameType),
	)
	out, err := s.complete(ctx, actorID, in)
	if errors.Is(err, errLostEventRace) {
		out, err = s.duplicateResult(ctx, actorID, in.ClientEventID)
	}
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	if out.Duplicate {
		s.log.Debug("gameplay duplicate", "actor_id", actorID, "client_event_id", in.ClientEventID)
		return out, nil
	}

	// unlock evaluation runs after commit; its failure never undoes the play
	if s.dispatcher != nil {
		set, err := s.dispatcher.Dispatch(ctx, actorID)
		if err != nil {
			s.log.Warn("unlock dispatch failed", "actor_id", actorID, "error", err)
		}
		out.Unlocked = set
	}
	s.notify(ctx, actorID, out)
	return out, nil
}

func (s *gameplayService) complete(ctx context.Context, actorID uuid.UUID, in GameplayInput) (*GameplayResult, error) {
	var out *GameplayResult
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		existing, err := s.events.Find(txc, actorID, in.ClientEventID)
		if err != nil {
			return err
		}
		if existing != nil {
			if !existing.Credited {
				return apierr.Conflict(apierr.CodeDuplicateEvent, "gameplay.complete", "client_event_id already used by a logged activity")
			}
			out, err = s.duplicateFrom(txc, actorID, existing)
			return err
		}

		view, changed, err := s.streaks.RecordPlay(txc, actorID)
		if err != nil {
			return err
		}
		xpBoost, coinBoost, err := s.boosts(txc, actorID)
		if err != nil {
			return err
		}

		cfg := s.catalog.Snapshot().Game(in.GameType)
		r := reward.Compute(cfg.Policy(), reward.Input{
			EventType:       in.EventType,
			GameType:        in.GameType,
			Score:           in.Score,
			Difficulty:      in.Difficulty,
			StreakDays:      view.CurrentStreak,
			BonusMultiplier: xpBoost,
		})
		if types.EventType(in.EventType) == types.EventDecisionMade && in.ElapsedMs > 0 {
			r = reward.ApplyFastDecisionBonus(r, time.Duration(in.ElapsedMs)*time.Millisecond)
		}
		r = reward.ApplyCoinBoost(r, coinBoost)

		meta := map[string]any{}
		for k, v := range in.Metadata {
			meta[k] = v
		}
		if in.Difficulty != "" {
			meta["difficulty"] = in.Difficulty
		}
		if len(r.Bonuses) > 0 {
			meta["bonuses"] = r.Bonuses
		}
		ev, created, err := s.events.Append(txc, actorID, EventInput{
			ClientEventID: in.ClientEventID,
			EventType:     in.EventType,
			GameType:      in.GameType,
			XPEarned:      r.XP,
			CoinsEarned:   r.Coins,
			Score:         in.Score,
			Metadata:      meta,
			credited:      true,
		})
		if err != nil {
			return err
		}
		if !created {
			return errLostEventRace
		}

		res, err := s.ledger.Apply(txc, actorID, types.Delta{
			XP:          r.XP,
			Coins:       r.Coins,
			GamesPlayed: 1,
			SkillXP:     r.SkillMap(),
			Reason:      in.EventType,
		}, types.Key(types.SourceEvent, ev.ID.String()))
		if err != nil {
			return err
		}
		completed, err := s.missions.Advance(txc, actorID, ev)
		if err != nil {
			return err
		}

		out = &GameplayResult{
			EventID:       ev.ID,
			Reward:        r,
			XP:            res.NewXP,
			Level:         res.NewLevel,
			Coins:         res.NewCoins,
			LeveledUp:     res.LeveledUp,
			Streak:        view,
			Missions:      nonNilMissions(completed),
			Progression:   res,
			streakChanged: changed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// boosts returns the xp and coin multipliers from boosts active now. The
// strongest boost of each type wins.
func (s *gameplayService) boosts(dbc dbctx.Context, actorID uuid.UUID) (float64, float64, error) {
	active, err := s.inventory.ActiveBoosts(dbc, actorID, s.clock.At())
	if err != nil {
		return 0, 0, err
	}
	xp, coins := 0.0, 0.0
	for _, b := range active {
		switch b.BoostType {
		case types.BoostXPMultiplier:
			if b.BoostValue > xp {
				xp = b.BoostValue
			}
		case types.BoostCoinsMultiplier:
			if b.BoostValue > coins {
				coins = b.BoostValue
			}
		}
	}
	return xp, coins, nil
}

func (s *gameplayService) duplicateResult(ctx context.Context, actorID uuid.UUID, clientEventID string) (*GameplayResult, error) {
	dbc := dbctx.Of(ctx)
	ev, err := s.events.Find(dbc, actorID, clientEventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, apierr.New(apierr.KindTransient, apierr.CodeRetryable, "gameplay.complete", "duplicate event not visible yet")
	}
	return s.duplicateFrom(dbc, actorID, ev)
}

func (s *gameplayService) duplicateFrom(dbc dbctx.Context, actorID uuid.UUID, ev *types.ActivityEvent) (*GameplayResult, error) {
	p, err := s.ledger.Profile(dbc, actorID)
	if err != nil {
		return nil, err
	}
	return &GameplayResult{
		EventID:   ev.ID,
		Reward:    reward.Reward{XP: ev.XPEarned, Coins: ev.CoinsEarned},
		XP:        p.XP,
		Level:     p.Level,
		Coins:     p.Coins,
		Missions:  []*types.Mission{},
		Duplicate: true,
	}, nil
}

func (s *gameplayService) notify(ctx context.Context, actorID uuid.UUID, out *GameplayResult) {
	if s.notifier == nil {
		return
	}
	s.notifier.ProgressionUpdated(ctx, actorID, out.Progression)
	if out.streakChanged && out.Streak != nil {
		s.notifier.Publish(ctx, actorID, realtime.EventStreakUpdated, out.Streak)
	}
	s.notifier.MissionsCompleted(ctx, actorID, out.Missions)
}

func (s *gameplayService) LogActivity(ctx context.Context, actorID uuid.UUID, in EventInput) (*ActivityResult, error) {
	const op = "gameplay.log_activity"
	et := types.EventType(strings.TrimSpace(strings.ToLower(in.EventType)))
	if !et.Valid() {
		return nil, apierr.New(apierr.KindValidation, apierr.CodeUnknownEventType, op, "unknown event type "+string(et))
	}
	if et.Gameplay() {
		return nil, apierr.Validation(op, string(et)+" must be reported through game completion")
	}
	if !et.ClientLogged() {
		return nil, apierr.Validation(op, string(et)+" is recorded by the engine only")
	}
	key, err := clientEventKey(op, in.ClientEventID)
	if err != nil {
		return nil, err
	}
	in.EventType, in.ClientEventID, in.credited = string(et), key, false

	if err := s.ledger.EnsureActor(ctx, actorID); err != nil {
		return nil, err
	}
	rec, err := s.events.RecordDetailed(dbctx.Of(ctx), actorID, in)
	if err != nil {
		return nil, err
	}
	out := &ActivityResult{
		Event:     rec.Event,
		Duplicate: !rec.Created,
		Missions:  nonNilMissions(rec.Completed),
	}
	if out.Duplicate {
		return out, nil
	}
	if s.dispatcher != nil {
		set, err := s.dispatcher.Dispatch(ctx, actorID)
		if err != nil {
			s.log.Warn("unlock dispatch failed", "actor_id", actorID, "error", err)
		}
		out.Unlocked = set
	}
	if s.notifier != nil {
		s.notifier.Publish(ctx, actorID, realtime.EventActivityRecorded, rec.Event)
		s.notifier.MissionsCompleted(ctx, actorID, out.Missions)
	}
	return out, nil
}

func nonNilMissions(ms []*types.Mission) []*types.Mission {
	if ms == nil {
		return []*types.Mission{}
	}
	return ms
}
