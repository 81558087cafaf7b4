package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/certificates"
	"github.com/yungbote/progression-backend/internal/data/repos"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/engine/criteria"
	"github.com/yungbote/progression-backend/internal/engine/streak"
	"github.com/yungbote/progression-backend/internal/observability"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

var errUnlockLost = errors.New("badge already unlocked by a concurrent evaluation")

type UnlockedBadge struct {
	BadgeID        string    `json:"badge_id"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind"`
	RewardXP       int64     `json:"reward_xp"`
	RewardCoins    int64     `json:"reward_coins"`
	Title          string    `json:"title,omitempty"`
	ItemID         string    `json:"item_id,omitempty"`
	CertificateURL string    `json:"certificate_url,omitempty"`
	UnlockedAt     time.Time `json:"unlocked_at"`
}

type UnlockFailure struct {
	BadgeID string `json:"badge_id"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// UnlockedSet is what one evaluation granted. Progression is the state
// after the last reward applied, nil when nothing was credited.
type UnlockedSet struct {
	Badges      []UnlockedBadge    `json:"badges"`
	Skills      []string           `json:"skills"`
	Failed      []UnlockFailure    `json:"failed,omitempty"`
	Missions    []*types.Mission   `json:"completed_missions,omitempty"`
	Progression *types.ApplyResult `json:"progression,omitempty"`
}

func (u *UnlockedSet) Empty() bool {
	return u == nil || (len(u.Badges) == 0 && len(u.Skills) == 0 && len(u.Failed) == 0)
}

type BadgeProgress struct {
	BadgeID     string                     `json:"badge_id"`
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Kind        string                     `json:"kind"`
	Progress    float64                    `json:"progress"`
	Met         bool                       `json:"met"`
	Unlocked    bool                       `json:"unlocked"`
	Criteria    []criteria.CriterionResult `json:"criteria"`
}

type InsigniaCheck struct {
	UnlockedCount       int      `json:"unlocked_count"`
	UnlockedInsigniaIDs []string `json:"unlocked_insignia_ids"`
}

type SkillView struct {
	SkillID       string     `json:"skill_id"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	ParentSkillID string     `json:"parent_skill_id,omitempty"`
	XPPerLevel    int64      `json:"xp_per_level"`
	MaxLevel      int        `json:"max_level"`
	CurrentLevel  int        `json:"current_level"`
	CurrentXP     int64      `json:"current_xp"`
	TotalXP       int64      `json:"total_xp"`
	MasteryLevel  int        `json:"mastery_level"`
	IsUnlocked    bool       `json:"is_unlocked"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
	Progress      float64    `json:"progress"`
}

type UnlockService interface {
	// Evaluate grants every badge (optionally narrowed to kinds) whose
	// criteria now hold and, when no kind is given, unlocks eligible skill
	// nodes. Re-running with nothing new is a no-op.
	Evaluate(ctx context.Context, actorID uuid.UUID, kinds ...types.BadgeKind) (*UnlockedSet, error)
	CheckInsignias(ctx context.Context, actorID uuid.UUID) (*InsigniaCheck, error)
	Progress(ctx context.Context, actorID uuid.UUID) ([]BadgeProgress, error)
	UnlockSkill(ctx context.Context, actorID uuid.UUID, skillID string) (*SkillView, error)
	Skills(ctx context.Context, actorID uuid.UUID) ([]SkillView, error)
	Badges(ctx context.Context, actorID uuid.UUID) ([]*types.BadgeUnlock, error)
	Titles(ctx context.Context, actorID uuid.UUID) ([]*types.UserTitle, error)
}

type unlockService struct {
	db      *gorm.DB
	log     *logger.Logger
	repos   *repos.Set
	ledger  LedgerService
	events  EventService
	catalog *catalog.Registry
	clock   Clock
	issuer  *certificates.Issuer
}

func NewUnlockService(
	db *gorm.DB,
	baseLog *logger.Logger,
	rs *repos.Set,
	ledger LedgerService,
	events EventService,
	reg *catalog.Registry,
	clock Clock,
	issuer *certificates.Issuer,
) UnlockService {
	return &unlockService{
		db:      db,
		log:     baseLog.With("service", "UnlockService"),
		repos:   rs,
		ledger:  ledger,
		events:  events,
		catalog: reg,
		clock:   clock,
		issuer:  issuer,
	}
}

type actorState struct {
	snap   criteria.Snapshot
	held   map[string]bool
	skills map[string]*types.SkillProgress
}

func (a *actorState) unlocked(skillID string) bool {
	row := a.skills[skillID]
	return row != nil && row.IsUnlocked
}

// load gathers the evaluator snapshot. The reads run concurrently, each on
// its own connection, so they never see a caller's uncommitted writes.
func (s *unlockService) load(ctx context.Context, actorID uuid.UUID) (*actorState, error) {
	const op = "unlocks.load"
	var (
		profile   *types.Profile
		skillRows []*types.SkillProgress
		st        *types.StreakState
		best      map[string]float64
		counts    map[string]int64
		missions  int64
		held      map[string]bool
	)
	loaders := []func(dbctx.Context) error{
		func(dbc dbctx.Context) (err error) { profile, err = s.repos.Profiles.Get(dbc, actorID); return },
		func(dbc dbctx.Context) (err error) { skillRows, err = s.repos.SkillProgress.ListByUser(dbc, actorID); return },
		func(dbc dbctx.Context) (err error) { st, err = s.repos.Streaks.Get(dbc, actorID); return },
		func(dbc dbctx.Context) (err error) { best, err = s.repos.Events.BestScores(dbc, actorID); return },
		func(dbc dbctx.Context) (err error) { counts, err = s.repos.Events.CountsByType(dbc, actorID); return },
		func(dbc dbctx.Context) (err error) { missions, err = s.repos.Missions.CountCompleted(dbc, actorID); return },
		func(dbc dbctx.Context) (err error) { held, err = s.repos.Unlocks.HeldIDs(dbc, actorID); return },
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range loaders {
		fn := fn
		g.Go(func() error { return fn(dbctx.Of(gctx)) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apierr.NotFound(apierr.CodeActorNotFound, op, "no progression profile for actor")
	}

	out := &actorState{
		snap: criteria.Snapshot{
			XP:                profile.XP,
			Level:             profile.Level,
			GamesPlayed:       profile.TotalGamesPlayed,
			MissionsCompleted: missions,
			SkillLevels:       map[string]int{},
			BestScores:        best,
			EventCounts:       counts,
		},
		held:   held,
		skills: map[string]*types.SkillProgress{},
	}
	if st != nil {
		decayed, _ := streak.Decay(toState(st), s.clock.Today())
		out.snap.StreakDays = decayed.Current
	}
	for _, row := range skillRows {
		out.snap.SkillLevels[row.SkillID] = row.CurrentLevel
		out.skills[row.SkillID] = row
	}
	return out, nil
}

func (s *unlockService) Evaluate(ctx context.Context, actorID uuid.UUID, kinds ...types.BadgeKind) (*UnlockedSet, error) {
	const op = "unlocks.evaluate"
	if actorID == uuid.Nil {
		return nil, apierr.Validation(op, "actor id is required")
	}
	ctx, span := observability.StartSpan(ctx, op, attribute.String("actor_id", actorID.String()))
	set, err := s.evaluate(ctx, actorID, kinds)
	observability.EndSpan(span, err)
	return set, err
}

func (s *unlockService) evaluate(ctx context.Context, actorID uuid.UUID, kinds []types.BadgeKind) (*UnlockedSet, error) {
	state, err := s.load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	snap := s.catalog.Snapshot()
	set := &UnlockedSet{Badges: []UnlockedBadge{}, Skills: []string{}}

	for _, b := range snap.Badges(kinds...) {
		if state.held[b.ID] {
			continue
		}
		if !criteria.Evaluate(state.snap, b.Criteria).Met {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		granted, err := s.unlockBadge(ctx, actorID, b, set)
		if errors.Is(err, errUnlockLost) {
			continue
		}
		if err != nil {
			observability.Current().IncUnlockFailure()
			s.log.Warn("badge unlock failed", "actor_id", actorID, "badge_id", b.ID, "error", err)
			set.Failed = append(set.Failed, UnlockFailure{BadgeID: b.ID, Code: apierr.CodeOf(err), Error: err.Error()})
			continue
		}
		set.Badges = append(set.Badges, *granted)
		observability.Current().IncUnlock(string(b.Kind))
	}

	if len(kinds) == 0 {
		skills, err := s.unlockSkills(ctx, actorID, state)
		if err != nil {
			return nil, err
		}
		set.Skills = skills
	}

	if len(set.Badges) > 0 || len(set.Skills) > 0 {
		s.log.Info("unlocks granted", "actor_id", actorID, "badges", len(set.Badges), "skills", len(set.Skills), "failed", len(set.Failed))
	}
	return set, nil
}

// unlockBadge grants one badge in its own transaction. The unique
// (user_id, badge_id) insert picks the winner between racing evaluations.
func (s *unlockService) unlockBadge(ctx context.Context, actorID uuid.UUID, b *types.Badge, set *UnlockedSet) (*UnlockedBadge, error) {
	now := s.clock.At()
	out := &UnlockedBadge{
		BadgeID:     b.ID,
		Name:        b.Name,
		Kind:        string(b.Kind),
		RewardXP:    b.RewardXP,
		RewardCoins: b.RewardCoins,
		UnlockedAt:  now,
	}
	var (
		progression *types.ApplyResult
		completed   []*types.Mission
	)
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		created, err := s.repos.Unlocks.Insert(txc, &types.BadgeUnlock{
			UserID:     actorID,
			BadgeID:    b.ID,
			Kind:       string(b.Kind),
			UnlockedAt: now,
		})
		if err != nil {
			return err
		}
		if !created {
			return errUnlockLost
		}
		if b.RewardXP != 0 || b.RewardCoins != 0 {
			res, err := s.ledger.Apply(txc, actorID, types.Delta{
				XP:     b.RewardXP,
				Coins:  b.RewardCoins,
				Reason: "badge " + b.ID,
			}, types.Key(types.SourceBadge, b.ID))
			if err != nil {
				return err
			}
			progression = res
		}
		if b.RewardTitle != "" {
			if _, err := s.repos.Titles.Grant(txc, &types.UserTitle{
				UserID:        actorID,
				Title:         b.RewardTitle,
				SourceBadgeID: b.ID,
			}); err != nil {
				return err
			}
			out.Title = b.RewardTitle
		}
		if b.RewardItemID != "" {
			if err := s.grantItem(txc, actorID, b); err != nil {
				return err
			}
			out.ItemID = b.RewardItemID
		}
		rec, err := s.events.RecordDetailed(txc, actorID, EventInput{
			ClientEventID: "badge:" + b.ID,
			EventType:     string(types.EventBadgeUnlocked),
			XPEarned:      b.RewardXP,
			CoinsEarned:   b.RewardCoins,
			Metadata:      map[string]any{"badge_id": b.ID, "kind": b.Kind},
			credited:      true,
		})
		if err != nil {
			return err
		}
		completed = rec.Completed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if progression != nil {
		set.Progression = progression
	}
	set.Missions = append(set.Missions, completed...)

	if b.Kind == types.KindCertificate {
		out.CertificateURL = s.issueCertificate(ctx, actorID, b, now)
	}
	return out, nil
}

func (s *unlockService) grantItem(txc dbctx.Context, actorID uuid.UUID, b *types.Badge) error {
	item := s.catalog.Snapshot().Item(b.RewardItemID)
	if item == nil {
		s.log.Warn("badge reward item missing from catalog", "badge_id", b.ID, "item_id", b.RewardItemID)
		return nil
	}
	inv := &types.InventoryItem{
		UserID:     actorID,
		ItemID:     item.ID,
		Category:   item.Category,
		Status:     types.StatusActive,
		Origin:     types.OriginBadge,
		BoostType:  item.BoostType,
		BoostValue: item.BoostValue,
	}
	if !item.Stackable {
		key := item.ID
		inv.OwnershipKey = &key
	}
	// already owning the item is fine; the badge still unlocks
	_, err := s.repos.Inventory.Insert(txc, inv)
	return err
}

// issueCertificate runs after commit. Failures are logged and leave the
// unlock in place without a URL.
func (s *unlockService) issueCertificate(ctx context.Context, actorID uuid.UUID, b *types.Badge, at time.Time) string {
	if s.issuer == nil {
		return ""
	}
	url, err := s.issuer.Issue(ctx, certificates.CertificateData{
		ActorID:     actorID.String(),
		BadgeID:     b.ID,
		BadgeName:   b.Name,
		Description: b.Description,
		IssuedAt:    at,
	})
	if err != nil {
		s.log.Warn("certificate issue failed", "actor_id", actorID, "badge_id", b.ID, "error", err)
		return ""
	}
	if err := s.repos.Unlocks.SetCertificateURL(dbctx.Of(ctx), actorID, b.ID, url); err != nil {
		s.log.Warn("recording certificate url failed", "actor_id", actorID, "badge_id", b.ID, "error", err)
	}
	return url
}

// unlockSkills walks the skill forest parents-first. A node unlocks when
// its parent is unlocked and its criteria hold; nodes without criteria
// follow their parent.
func (s *unlockService) unlockSkills(ctx context.Context, actorID uuid.UUID, state *actorState) ([]string, error) {
	unlocked := map[string]bool{}
	for id, row := range state.skills {
		if row.IsUnlocked {
			unlocked[id] = true
		}
	}
	now := s.clock.At()
	out := []string{}
	for _, sk := range s.catalog.Snapshot().SkillsInOrder() {
		if unlocked[sk.ID] {
			continue
		}
		if p := sk.Parent(); p != "" && !unlocked[p] {
			continue
		}
		if len(sk.Criteria) > 0 && !criteria.Evaluate(state.snap, sk.Criteria).Met {
			continue
		}
		won, err := s.repos.SkillProgress.MarkUnlocked(dbctx.Of(ctx), actorID, sk.ID, now)
		if err != nil {
			return nil, err
		}
		unlocked[sk.ID] = true
		if won {
			out = append(out, sk.ID)
			observability.Current().IncUnlock("skill")
		}
	}
	return out, nil
}

func (s *unlockService) CheckInsignias(ctx context.Context, actorID uuid.UUID) (*InsigniaCheck, error) {
	set, err := s.Evaluate(ctx, actorID, types.KindInsignia)
	if err != nil {
		return nil, err
	}
	out := &InsigniaCheck{UnlockedInsigniaIDs: []string{}}
	for _, b := range set.Badges {
		out.UnlockedInsigniaIDs = append(out.UnlockedInsigniaIDs, b.BadgeID)
	}
	out.UnlockedCount = len(out.UnlockedInsigniaIDs)
	return out, nil
}

func (s *unlockService) Progress(ctx context.Context, actorID uuid.UUID) ([]BadgeProgress, error) {
	state, err := s.load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	badges := s.catalog.Snapshot().Badges()
	out := make([]BadgeProgress, 0, len(badges))
	for _, b := range badges {
		res := criteria.Evaluate(state.snap, b.Criteria)
		bp := BadgeProgress{
			BadgeID:     b.ID,
			Name:        b.Name,
			Description: b.Description,
			Kind:        string(b.Kind),
			Progress:    res.Progress,
			Met:         res.Met,
			Unlocked:    state.held[b.ID],
			Criteria:    res.Criteria,
		}
		if bp.Unlocked {
			bp.Progress = 1
		}
		out = append(out, bp)
	}
	return out, nil
}

func (s *unlockService) UnlockSkill(ctx context.Context, actorID uuid.UUID, skillID string) (*SkillView, error) {
	const op = "unlocks.unlock_skill"
	if actorID == uuid.Nil {
		return nil, apierr.Validation(op, "actor id is required")
	}
	sk := s.catalog.Snapshot().Skill(skillID)
	if sk == nil {
		return nil, apierr.NotFound(apierr.CodeSkillNotFound, op, "unknown skill "+skillID)
	}
	var state *actorState
	if len(sk.Criteria) > 0 {
		var err error
		if state, err = s.load(ctx, actorID); err != nil {
			return nil, err
		}
	}
	var row *types.SkillProgress
	var won bool
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		if p := sk.Parent(); p != "" {
			parent, err := s.repos.SkillProgress.Get(txc, actorID, p)
			if err != nil {
				return err
			}
			if parent == nil || !parent.IsUnlocked {
				return apierr.Conflict(apierr.CodePrerequisiteNotMet, op, "parent skill "+p+" is locked")
			}
		}
		if state != nil && !state.unlocked(sk.ID) && !criteria.Evaluate(state.snap, sk.Criteria).Met {
			return apierr.Conflict(apierr.CodePrerequisiteNotMet, op, "criteria for skill "+sk.ID+" are not met")
		}
		var err error
		won, err = s.repos.SkillProgress.MarkUnlocked(txc, actorID, sk.ID, s.clock.At())
		if err != nil {
			return err
		}
		row, err = s.repos.SkillProgress.Get(txc, actorID, sk.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if won {
		observability.Current().IncUnlock("skill")
		s.log.Info("skill unlocked", "actor_id", actorID, "skill_id", sk.ID)
	}
	v := skillView(sk, row, 1)
	return &v, nil
}

func (s *unlockService) Skills(ctx context.Context, actorID uuid.UUID) ([]SkillView, error) {
	rows, err := s.repos.SkillProgress.ListByUser(dbctx.Of(ctx), actorID)
	if err != nil {
		return nil, err
	}
	byID := map[string]*types.SkillProgress{}
	for _, r := range rows {
		byID[r.SkillID] = r
	}
	var cs *criteria.Snapshot
	skills := s.catalog.Snapshot().SkillsInOrder()
	out := make([]SkillView, 0, len(skills))
	for _, sk := range skills {
		progress := 1.0
		row := byID[sk.ID]
		if (row == nil || !row.IsUnlocked) && len(sk.Criteria) > 0 {
			if cs == nil {
				state, err := s.load(ctx, actorID)
				if err != nil {
					return nil, err
				}
				cs = &state.snap
			}
			progress = criteria.Evaluate(*cs, sk.Criteria).Progress
		}
		out = append(out, skillView(sk, row, progress))
	}
	return out, nil
}

func skillView(sk *types.Skill, row *types.SkillProgress, progress float64) SkillView {
	v := SkillView{
		SkillID:       sk.ID,
		Name:          sk.Name,
		Category:      sk.Category,
		ParentSkillID: sk.Parent(),
		XPPerLevel:    sk.XPPerLevel,
		MaxLevel:      sk.MaxLevel,
		Progress:      progress,
	}
	if row != nil {
		v.CurrentLevel = row.CurrentLevel
		v.CurrentXP = row.CurrentXP
		v.TotalXP = row.TotalXP
		v.MasteryLevel = row.MasteryLevel
		v.IsUnlocked = row.IsUnlocked
		v.UnlockedAt = row.UnlockedAt
	}
	return v
}

func (s *unlockService) Badges(ctx context.Context, actorID uuid.UUID) ([]*types.BadgeUnlock, error) {
	return s.repos.Unlocks.ListByUser(dbctx.Of(ctx), actorID)
}

func (s *unlockService) Titles(ctx context.Context, actorID uuid.UUID) ([]*types.UserTitle, error) {
	return s.repos.Titles.ListByUser(dbctx.Of(ctx), actorID)
}
