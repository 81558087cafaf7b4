package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
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

var errSkillRowMissing = errors.New("skill progress row missing after ensure")

// SkillXPResult is the outcome of a direct skill xp grant.
type SkillXPResult struct {
	SkillID   string `json:"skill_id"`
	NewLevel  int    `json:"new_level"`
	NewXP     int64  `json:"new_xp"`
	TotalXP   int64  `json:"total_xp"`
	LeveledUp bool   `json:"leveled_up"`
	Duplicate bool   `json:"duplicate"`
}

// LedgerService is the only writer of profile counters and skill xp.
type LedgerService interface {
	// Apply records d under key exactly once. A repeated key returns the
	// current state with Duplicate set and changes nothing.
	Apply(dbc dbctx.Context, actorID uuid.UUID, d types.Delta, key types.SourceKey) (*types.ApplyResult, error)
	Debit(dbc dbctx.Context, actorID uuid.UUID, coins int64, key types.SourceKey, reason string) (*types.ApplyResult, error)
	AddSkillXP(ctx context.Context, actorID uuid.UUID, skillID string, xp int64, sourceType, sourceID string) (*SkillXPResult, error)
	EnsureActor(ctx context.Context, actorID uuid.UUID) error
	Profile(dbc dbctx.Context, actorID uuid.UUID) (*types.Profile, error)
}

type ledgerService struct {
	db       *gorm.DB
	log      *logger.Logger
	profiles repos.ProfileRepo
	ledger   repos.LedgerRepo
	skills   repos.SkillProgressRepo
	streaks  repos.StreakRepo
	catalog  *catalog.Registry
}

func NewLedgerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	profiles repos.ProfileRepo,
	ledger repos.LedgerRepo,
	skills repos.SkillProgressRepo,
	streaks repos.StreakRepo,
	reg *catalog.Registry,
) LedgerService {
	return &ledgerService{
		db:       db,
		log:      baseLog.With("service", "LedgerService"),
		profiles: profiles,
		ledger:   ledger,
		skills:   skills,
		streaks:  streaks,
		catalog:  reg,
	}
}

func (s *ledgerService) Apply(dbc dbctx.Context, actorID uuid.UUID, d types.Delta, key types.SourceKey) (*types.ApplyResult, error) {
	const op = "ledger.apply"
	if actorID == uuid.Nil {
		return nil, apierr.Validation(op, "actor id is required")
	}
	key = types.Key(key.Type, key.ID)
	if key.Type == "" {
		return nil, apierr.Validation(op, "source type is required")
	}
	if d.GamesPlayed < 0 {
		return nil, apierr.Validation(op, "games played cannot decrease")
	}
	for id, v := range d.SkillXP {
		if strings.TrimSpace(id) == "" || v < 0 {
			return nil, apierr.Validation(op, "skill xp must be non-negative and keyed by skill id")
		}
	}
	if key.ID == "" {
		// audit-only entry, nothing can collide with it
		key.ID = uuid.New().String()
	}

	ctx, span := observability.StartSpan(dbc.Ctx, op,
		attribute.String("source_type", key.Type),
		attribute.Int64("xp", d.XP),
		attribute.Int64("coins", d.Coins),
	)
	dbc.Ctx = ctx

	var out *types.ApplyResult
	err := dbc.InTx(s.db, func(txc dbctx.Context) error {
		var skillJSON datatypes.JSON
		if len(d.SkillXP) > 0 {
			raw, err := json.Marshal(d.SkillXP)
			if err != nil {
				return apierr.Internal(op, err)
			}
			skillJSON = datatypes.JSON(raw)
		}
		created, err := s.ledger.Insert(txc, &types.LedgerEntry{
			UserID:      actorID,
			SourceType:  key.Type,
			SourceID:    key.ID,
			XP:          d.XP,
			Coins:       d.Coins,
			GamesPlayed: d.GamesPlayed,
			SkillXP:     skillJSON,
			Reason:      d.Reason,
		})
		if err != nil {
			return err
		}
		if !created {
			out, err = s.currentState(txc, actorID, key)
			return err
		}

		ok, err := s.profiles.AddCounters(txc, actorID, d.XP, d.Coins, d.GamesPlayed)
		if err != nil {
			return err
		}
		if !ok {
			p, err := s.profiles.Get(txc, actorID)
			if err != nil {
				return err
			}
			if p == nil {
				return apierr.NotFound(apierr.CodeActorNotFound, op, "no progression profile for actor")
			}
			return refusedDelta(op, p, d)
		}

		p, err := s.profiles.Get(txc, actorID)
		if err != nil {
			return err
		}
		if p == nil {
			return apierr.NotFound(apierr.CodeActorNotFound, op, "no progression profile for actor")
		}
		table := s.catalog.Snapshot().Levels
		newLevel := table.LevelFor(p.XP)
		prevLevel := table.LevelFor(p.XP - d.XP)
		if p.Level != newLevel {
			if err := s.profiles.SetLevel(txc, actorID, newLevel); err != nil {
				return err
			}
		}

		res := &types.ApplyResult{
			Key:       key,
			NewXP:     p.XP,
			NewLevel:  newLevel,
			NewCoins:  p.Coins,
			PrevLevel: prevLevel,
			LeveledUp: newLevel > prevLevel,
		}
		changes, err := s.applySkillXP(txc, actorID, d.SkillXP)
		if err != nil {
			return err
		}
		res.Skills = changes
		out = res
		return nil
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	observability.Current().ObserveLedger(key.Type, d.XP, d.Coins, out.Duplicate)
	if out.Duplicate {
		s.log.Debug("ledger duplicate", "actor_id", actorID, "source", key.String())
	}
	return out, nil
}

func (s *ledgerService) applySkillXP(txc dbctx.Context, actorID uuid.UUID, grants map[string]int64) ([]types.SkillLevelChange, error) {
	if len(grants) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(grants))
	for id := range grants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snap := s.catalog.Snapshot()
	var changes []types.SkillLevelChange
	for _, id := range ids {
		xp := grants[id]
		if xp == 0 {
			continue
		}
		sk := snap.Skill(id)
		if sk == nil {
			s.log.Warn("skill xp for unknown skill dropped", "skill_id", id, "actor_id", actorID)
			continue
		}
		if err := s.skills.Ensure(txc, actorID, id); err != nil {
			return nil, err
		}
		if err := s.skills.AddXP(txc, actorID, id, xp); err != nil {
			return nil, err
		}
		row, err := s.skills.Get(txc, actorID, id)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, apierr.Internal("ledger.apply_skill", errSkillRowMissing)
		}
		curve := sk.Curve()
		prevLevel, _, _ := curve.Apply(row.TotalXP - xp)
		level, cur, mastery := curve.Apply(row.TotalXP)
		if err := s.skills.SetDerived(txc, actorID, id, level, cur, mastery); err != nil {
			return nil, err
		}
		changes = append(changes, types.SkillLevelChange{
			SkillID:    id,
			NewLevel:   level,
			NewXP:      cur,
			TotalXP:    row.TotalXP,
			LeveledUp:  level > prevLevel,
			MaxedOut:   curve.MaxLevel > 0 && level >= curve.MaxLevel,
			MasteryPct: mastery,
		})
	}
	return changes, nil
}

func (s *ledgerService) currentState(dbc dbctx.Context, actorID uuid.UUID, key types.SourceKey) (*types.ApplyResult, error) {
	p, err := s.profiles.Get(dbc, actorID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apierr.NotFound(apierr.CodeActorNotFound, "ledger.apply", "no progression profile for actor")
	}
	return &types.ApplyResult{
		Key:       key,
		NewXP:     p.XP,
		NewLevel:  p.Level,
		NewCoins:  p.Coins,
		PrevLevel: p.Level,
		Duplicate: true,
	}, nil
}

func (s *ledgerService) Debit(dbc dbctx.Context, actorID uuid.UUID, coins int64, key types.SourceKey, reason string) (*types.ApplyResult, error) {
	if coins < 0 {
		return nil, apierr.Validation("ledger.debit", "debit amount must be positive")
	}
	return s.Apply(dbc, actorID, types.Delta{Coins: -coins, Reason: reason}, key)
}

func (s *ledgerService) AddSkillXP(ctx context.Context, actorID uuid.UUID, skillID string, xp int64, sourceType, sourceID string) (*SkillXPResult, error) {
	const op = "ledger.add_skill_xp"
	skillID = strings.TrimSpace(skillID)
	if skillID == "" {
		return nil, apierr.Validation(op, "skill id is required")
	}
	if xp <= 0 {
		return nil, apierr.Validation(op, "xp must be positive")
	}
	sk := s.catalog.Snapshot().Skill(skillID)
	if sk == nil {
		return nil, apierr.NotFound(apierr.CodeSkillNotFound, op, "unknown skill "+skillID)
	}
	if strings.TrimSpace(sourceType) == "" {
		sourceType = types.SourceSkillXP
	}

	res, err := s.Apply(dbctx.Of(ctx), actorID, types.Delta{
		SkillXP: map[string]int64{skillID: xp},
		Reason:  "skill xp",
	}, types.Key(sourceType, sourceID))
	if err != nil {
		return nil, err
	}
	out := &SkillXPResult{SkillID: skillID, Duplicate: res.Duplicate}
	for _, ch := range res.Skills {
		if ch.SkillID == skillID {
			out.NewLevel, out.NewXP, out.TotalXP, out.LeveledUp = ch.NewLevel, ch.NewXP, ch.TotalXP, ch.LeveledUp
			return out, nil
		}
	}
	row, err := s.skills.Get(dbctx.Of(ctx), actorID, skillID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		out.NewLevel, out.NewXP, out.TotalXP = row.CurrentLevel, row.CurrentXP, row.TotalXP
	}
	return out, nil
}

func (s *ledgerService) EnsureActor(ctx context.Context, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return apierr.Validation("ledger.ensure_actor", "actor id is required")
	}
	return dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		created, err := s.profiles.Ensure(txc, actorID)
		if err != nil {
			return err
		}
		if err := s.streaks.Ensure(txc, actorID); err != nil {
			return err
		}
		if created {
			s.log.Info("progression profile created", "actor_id", actorID)
		}
		return nil
	})
}

func (s *ledgerService) Profile(dbc dbctx.Context, actorID uuid.UUID) (*types.Profile, error) {
	p, err := s.profiles.Get(dbc, actorID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apierr.NotFound(apierr.CodeActorNotFound, "ledger.profile", "no progression profile for actor")
	}
	return p, nil
}

// refusedDelta names the guard that stopped d against the balances in p.
func refusedDelta(op string, p *types.Profile, d types.Delta) error {
	switch {
	case d.Coins < 0 && p.Coins+d.Coins < 0:
		return apierr.Conflict(apierr.CodeInsufficientCoins, op, "balance too low")
	case d.XP < 0 && p.XP+d.XP < 0:
		return apierr.Validation(op, "xp cannot go below zero")
	}
	// the guard failed on a row that has since changed
	return apierr.New(apierr.KindTransient, apierr.CodeRetryable, op, "balances changed during update")
}
