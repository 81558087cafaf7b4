package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/certificates"
	"github.com/yungbote/progression-backend/internal/data/repos"
	"github.com/yungbote/progression-backend/internal/data/repos/testutil"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/realtime"
)

// harness wires every service over one migrated database with the default
// catalog and a clock the test can move.
type harness struct {
	db    *gorm.DB
	repos *repos.Set
	reg   *catalog.Registry
	hub   *realtime.Hub
	now   time.Time
	clock Clock
	certs string

	ledger     LedgerService
	missions   MissionService
	events     EventService
	streaks    StreakService
	rewards    RewardService
	unlocks    UnlockService
	dispatcher UnlockDispatcher
	gameplay   GameplayService
	market     MarketplaceService
	admin      AdminService
	notifier   Notifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	log := testutil.Logger(t)
	gdb := testutil.DB(t)

	h := &harness{
		db:    gdb,
		repos: repos.NewSet(gdb, log),
		now:   time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
		certs: t.TempDir(),
	}
	h.reg = testutil.SeedCatalog(t, ctx, gdb)
	h.hub = realtime.NewHub(log)
	h.clock = Clock{Now: func() time.Time { return h.now }, Loc: time.UTC}

	renderer, err := certificates.NewRenderer()
	if err != nil {
		t.Fatalf("certificates.NewRenderer: %v", err)
	}
	store, err := certificates.NewLocalStore(h.certs)
	if err != nil {
		t.Fatalf("certificates.NewLocalStore: %v", err)
	}
	issuer := certificates.NewIssuer(log, renderer, store)

	rs := h.repos
	h.notifier = NewNotifier(log, h.hub, nil)
	h.ledger = NewLedgerService(gdb, log, rs.Profiles, rs.Ledger, rs.SkillProgress, rs.Streaks, h.reg)
	// every daily template so mission assertions do not depend on the pick
	h.missions = NewMissionService(gdb, log, rs.Missions, rs.Events, h.ledger, h.reg, h.clock, 10)
	h.events = NewEventService(gdb, log, rs.Events, h.missions)
	h.streaks = NewStreakService(gdb, log, rs.Streaks, h.ledger, h.events, h.reg, h.clock, h.notifier)
	h.rewards = NewRewardService(h.reg, h.streaks)
	h.unlocks = NewUnlockService(gdb, log, rs, h.ledger, h.events, h.reg, h.clock, issuer)
	h.dispatcher = NewInlineUnlockDispatcher(log, h.unlocks, h.notifier)
	h.gameplay = NewGameplayService(gdb, log, h.ledger, h.events, h.streaks, h.missions, rs.Inventory, h.reg, h.dispatcher, h.notifier, h.clock)
	h.market = NewMarketplaceService(gdb, log, rs.Inventory, rs.Catalog, h.ledger, h.events, h.reg, h.clock, h.notifier)
	h.admin = NewAdminService(gdb, log, rs.Inventory, rs.Catalog, h.ledger, h.events, h.reg, h.notifier, CatalogFiles{})
	return h
}

// seedActor creates a level-1 actor holding coins.
func (h *harness) seedActor(t *testing.T, coins int64) uuid.UUID {
	t.Helper()
	p := testutil.SeedProfile(t, context.Background(), h.db, 0, coins)
	return p.UserID
}

func (h *harness) profile(t *testing.T, actorID uuid.UUID) *types.Profile {
	t.Helper()
	p, err := h.ledger.Profile(dbctx.Of(context.Background()), actorID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	return p
}

func (h *harness) setStreak(t *testing.T, actorID uuid.UUID, current int, lastPlayed string) {
	t.Helper()
	err := h.db.Model(&types.StreakState{}).
		Where("user_id = ?", actorID).
		Updates(map[string]interface{}{
			"current_streak": current,
			"longest_streak": current,
			"last_played_on": lastPlayed,
		}).Error
	if err != nil {
		t.Fatalf("set streak: %v", err)
	}
}

func (h *harness) advanceDays(n int) {
	h.now = h.now.AddDate(0, 0, n)
}

func (h *harness) play(t *testing.T, actorID uuid.UUID, clientID, game string, score float64) *GameplayResult {
	t.Helper()
	res, err := h.gameplay.Complete(context.Background(), actorID, GameplayInput{
		ClientEventID: clientID,
		GameType:      game,
		Score:         score,
	})
	if err != nil {
		t.Fatalf("Complete(%s): %v", clientID, err)
	}
	return res
}

func hasBadge(set *UnlockedSet, id string) bool {
	if set == nil {
		return false
	}
	for _, b := range set.Badges {
		if b.BadgeID == id {
			return true
		}
	}
	return false
}

func hasMission(ms []*types.Mission, templateID string) bool {
	for _, m := range ms {
		if m.TemplateID == templateID {
			return true
		}
	}
	return false
}
