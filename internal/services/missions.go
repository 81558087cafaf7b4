package services

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/data/repos"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/observability"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

const DefaultDailyMissionCount = 3

type MissionService interface {
	GenerateDaily(ctx context.Context, actorID uuid.UUID) ([]*types.Mission, error)
	GenerateMonthly(ctx context.Context, actorID uuid.UUID) ([]*types.Mission, error)
	// Advance applies ev to the actor's open missions for the current day
	// and month and returns the ones it completed.
	Advance(dbc dbctx.Context, actorID uuid.UUID, ev *types.ActivityEvent) ([]*types.Mission, error)
	List(ctx context.Context, actorID uuid.UUID, period string) ([]*types.Mission, error)
}

type missionService struct {
	db         *gorm.DB
	log        *logger.Logger
	missions   repos.MissionRepo
	events     repos.ActivityEventRepo
	ledger     LedgerService
	catalog    *catalog.Registry
	clock      Clock
	dailyCount int
}

func NewMissionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	missions repos.MissionRepo,
	events repos.ActivityEventRepo,
	ledger LedgerService,
	reg *catalog.Registry,
	clock Clock,
	dailyCount int,
) MissionService {
	if dailyCount <= 0 {
		dailyCount = DefaultDailyMissionCount
	}
	return &missionService{
		db:         db,
		log:        baseLog.With("service", "MissionService"),
		missions:   missions,
		events:     events,
		ledger:     ledger,
		catalog:    reg,
		clock:      clock,
		dailyCount: dailyCount,
	}
}

func (s *missionService) GenerateDaily(ctx context.Context, actorID uuid.UUID) ([]*types.Mission, error) {
	return s.generateInTx(ctx, actorID, types.PeriodDaily)
}

func (s *missionService) GenerateMonthly(ctx context.Context, actorID uuid.UUID) ([]*types.Mission, error) {
	return s.generateInTx(ctx, actorID, types.PeriodMonthly)
}

func (s *missionService) generateInTx(ctx context.Context, actorID uuid.UUID, period string) ([]*types.Mission, error) {
	if actorID == uuid.Nil {
		return nil, apierr.Validation("missions.generate", "actor id is required")
	}
	var out []*types.Mission
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		rows, err := s.generate(txc, actorID, period)
		out = rows
		return err
	})
	return out, err
}

// generate instantiates the period's templates (insert-ignore) and returns
// every row for the period key.
func (s *missionService) generate(dbc dbctx.Context, actorID uuid.UUID, period string) ([]*types.Mission, error) {
	key := s.clock.PeriodKey(period)
	templates := s.catalog.Snapshot().Templates(period)
	if period == types.PeriodDaily {
		templates = pickDaily(templates, actorID, key, s.dailyCount)
	}
	rows := make([]*types.Mission, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, &types.Mission{
			UserID:      actorID,
			TemplateID:  t.ID,
			PeriodKey:   key,
			Period:      period,
			Title:       t.Title,
			Metric:      t.Metric,
			EventType:   t.EventType,
			GameType:    t.GameType,
			TargetValue: t.TargetValue,
			RewardXP:    t.RewardXP,
			RewardCoins: t.RewardCoins,
		})
	}
	if err := s.missions.InsertIgnore(dbc, rows); err != nil {
		return nil, err
	}
	return s.missions.ListByPeriodKey(dbc, actorID, key)
}

// pickDaily orders templates by a hash of (actor, day, template) and keeps
// the first n, so the pick is stable within a day and varies across days.
func pickDaily(ts []*types.MissionTemplate, actorID uuid.UUID, day string, n int) []*types.MissionTemplate {
	if n <= 0 || n >= len(ts) {
		return ts
	}
	type ranked struct {
		t *types.MissionTemplate
		h uint64
	}
	rs := make([]ranked, len(ts))
	for i, t := range ts {
		rs[i] = ranked{t: t, h: xxhash.Sum64String(actorID.String() + "|" + day + "|" + t.ID)}
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].h != rs[j].h {
			return rs[i].h < rs[j].h
		}
		return rs[i].t.ID < rs[j].t.ID
	})
	out := make([]*types.MissionTemplate, n)
	for i := 0; i < n; i++ {
		out[i] = rs[i].t
	}
	return out
}

func (s *missionService) Advance(dbc dbctx.Context, actorID uuid.UUID, ev *types.ActivityEvent) ([]*types.Mission, error) {
	if ev == nil {
		return nil, nil
	}
	var completed []*types.Mission
	err := dbc.InTx(s.db, func(txc dbctx.Context) error {
		if _, err := s.generate(txc, actorID, types.PeriodDaily); err != nil {
			return err
		}
		if _, err := s.generate(txc, actorID, types.PeriodMonthly); err != nil {
			return err
		}
		open, err := s.missions.ListOpen(txc, actorID, []string{s.clock.Today(), s.clock.Month()})
		if err != nil {
			return err
		}
		for _, m := range open {
			amount := missionAmount(m, ev)
			if amount <= 0 {
				continue
			}
			if err := s.missions.Advance(txc, m.ID, amount); err != nil {
				return err
			}
			won, err := s.missions.Complete(txc, m.ID, s.clock.At())
			if err != nil {
				return err
			}
			if !won {
				continue
			}
			if err := s.grant(txc, actorID, m); err != nil {
				return err
			}
			done, err := s.missions.Get(txc, m.ID)
			if err != nil {
				return err
			}
			if done != nil {
				completed = append(completed, done)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, m := range completed {
		observability.Current().IncMissionCompleted(m.Period)
		s.log.Info("mission completed", "actor_id", actorID, "template_id", m.TemplateID, "period_key", m.PeriodKey)
	}
	return completed, nil
}

func (s *missionService) grant(dbc dbctx.Context, actorID uuid.UUID, m *types.Mission) error {
	if m.RewardXP != 0 || m.RewardCoins != 0 {
		if _, err := s.ledger.Apply(dbc, actorID, types.Delta{
			XP:     m.RewardXP,
			Coins:  m.RewardCoins,
			Reason: "mission " + m.TemplateID,
		}, types.Key(types.SourceMission, m.ID.String())); err != nil {
			return err
		}
	}
	meta, _ := json.Marshal(map[string]any{"template_id": m.TemplateID, "period_key": m.PeriodKey})
	// written straight to the repo so the completion does not advance
	// missions again
	_, err := s.events.Insert(dbc, &types.ActivityEvent{
		UserID:        actorID,
		EventType:     types.EventMissionCompleted,
		ClientEventID: "mission:" + m.ID.String(),
		XPEarned:      m.RewardXP,
		CoinsEarned:   m.RewardCoins,
		Metadata:      datatypes.JSON(meta),
		Credited:      true,
	})
	return err
}

// missionAmount is how far ev moves m. Events the engine did not credit
// never count.
func missionAmount(m *types.Mission, ev *types.ActivityEvent) int64 {
	if !ev.Credited {
		return 0
	}
	switch m.Metric {
	case types.MetricEventCount:
		if m.EventType != "" {
			if string(ev.EventType) != m.EventType {
				return 0
			}
		} else if !ev.EventType.Gameplay() {
			return 0
		}
		if m.GameType != "" && ev.GameType != m.GameType {
			return 0
		}
		return 1
	case types.MetricXPEarned:
		return ev.XPEarned
	case types.MetricCoinsEarned:
		return ev.CoinsEarned
	}
	return 0
}

func (s *missionService) List(ctx context.Context, actorID uuid.UUID, period string) ([]*types.Mission, error) {
	switch period {
	case types.PeriodDaily, types.PeriodMonthly:
		return s.generateInTx(ctx, actorID, period)
	case "":
		daily, err := s.generateInTx(ctx, actorID, types.PeriodDaily)
		if err != nil {
			return nil, err
		}
		monthly, err := s.generateInTx(ctx, actorID, types.PeriodMonthly)
		if err != nil {
			return nil, err
		}
		return append(daily, monthly...), nil
	default:
		return nil, apierr.Validation("missions.list", "period must be daily or monthly")
	}
}
