package services

import (
	"context"
	"math"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/progression-backend/internal/data/repos/testutil"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
)

func TestEvaluateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)

	if _, err := h.ledger.Apply(dbctx.Of(ctx), actor, types.Delta{GamesPlayed: 1}, types.Key(types.SourceEvent, "seed")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	first, err := h.unlocks.Evaluate(ctx, actor)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(first.Badges) != 1 || first.Badges[0].BadgeID != "first_steps" {
		t.Fatalf("want only first_steps, got %+v", first.Badges)
	}
	if len(first.Skills) == 0 {
		t.Fatalf("root skills should unlock on first evaluation")
	}
	p := h.profile(t, actor)
	if p.XP != 10 || p.Coins != 5 {
		t.Fatalf("badge reward not applied: %+v", p)
	}

	second, err := h.unlocks.Evaluate(ctx, actor)
	if err != nil {
		t.Fatalf("Evaluate again: %v", err)
	}
	if !second.Empty() {
		t.Fatalf("second evaluation granted again: %+v", second)
	}
	if p := h.profile(t, actor); p.XP != 10 || p.Coins != 5 {
		t.Fatalf("second evaluation changed balances: %+v", p)
	}
	held, err := h.unlocks.Badges(ctx, actor)
	if err != nil {
		t.Fatalf("Badges: %v", err)
	}
	if len(held) != 1 {
		t.Fatalf("held badges: want=1 got=%d", len(held))
	}
}

func TestCheckInsigniasGrantsTitle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)
	h.setStreak(t, actor, 7, h.clock.Today())

	res, err := h.unlocks.CheckInsignias(ctx, actor)
	if err != nil {
		t.Fatalf("CheckInsignias: %v", err)
	}
	if res.UnlockedCount != 1 || len(res.UnlockedInsigniaIDs) != 1 || res.UnlockedInsigniaIDs[0] != "on_fire" {
		t.Fatalf("want on_fire only, got %+v", res)
	}
	titles, err := h.unlocks.Titles(ctx, actor)
	if err != nil {
		t.Fatalf("Titles: %v", err)
	}
	if len(titles) != 1 || titles[0].Title != "Unstoppable" {
		t.Fatalf("titles: %+v", titles)
	}

	again, err := h.unlocks.CheckInsignias(ctx, actor)
	if err != nil {
		t.Fatalf("CheckInsignias again: %v", err)
	}
	if again.UnlockedCount != 0 {
		t.Fatalf("insignia granted twice: %+v", again)
	}
}

func TestUnlockSkillRequiresParentAndCriteria(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)

	if _, err := h.unlocks.UnlockSkill(ctx, actor, "negotiation"); !apierr.Is(err, apierr.CodePrerequisiteNotMet) {
		t.Fatalf("want prerequisite_not_met, got %v", err)
	}
	if _, err := h.unlocks.UnlockSkill(ctx, actor, "nope"); !apierr.Is(err, apierr.CodeSkillNotFound) {
		t.Fatalf("want skill_not_found, got %v", err)
	}

	v, err := h.unlocks.UnlockSkill(ctx, actor, "communication")
	if err != nil {
		t.Fatalf("UnlockSkill(communication): %v", err)
	}
	if !v.IsUnlocked {
		t.Fatalf("communication not unlocked: %+v", v)
	}
	// parent unlocked but communication is still level 0
	if _, err := h.unlocks.UnlockSkill(ctx, actor, "negotiation"); !apierr.Is(err, apierr.CodePrerequisiteNotMet) {
		t.Fatalf("want prerequisite_not_met before criteria hold, got %v", err)
	}
	views, err := h.unlocks.Skills(ctx, actor)
	if err != nil {
		t.Fatalf("Skills: %v", err)
	}
	for _, sv := range views {
		if sv.SkillID == "negotiation" && sv.IsUnlocked {
			t.Fatalf("refused unlock still mutated: %+v", sv)
		}
	}

	if _, err := h.ledger.AddSkillXP(ctx, actor, "communication", 200, "", "train"); err != nil {
		t.Fatalf("AddSkillXP: %v", err)
	}
	v, err = h.unlocks.UnlockSkill(ctx, actor, "negotiation")
	if err != nil {
		t.Fatalf("UnlockSkill(negotiation): %v", err)
	}
	if !v.IsUnlocked || v.ParentSkillID != "communication" {
		t.Fatalf("negotiation view: %+v", v)
	}
}

func TestSkillCriteriaGateAutomaticUnlock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)

	set, err := h.unlocks.Evaluate(ctx, actor)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := strings.Join(set.Skills, ",")
	if !strings.Contains(got, "communication") || !strings.Contains(got, "active_listening") {
		t.Fatalf("root and criteria-free child should unlock, got %s", got)
	}
	if strings.Contains(got, "negotiation") || strings.Contains(got, "decision_making") {
		t.Fatalf("gated skills unlocked early: %s", got)
	}

	if _, err := h.ledger.AddSkillXP(ctx, actor, "communication", 200, "", "train"); err != nil {
		t.Fatalf("AddSkillXP: %v", err)
	}
	set, err = h.unlocks.Evaluate(ctx, actor)
	if err != nil {
		t.Fatalf("Evaluate after training: %v", err)
	}
	if len(set.Skills) != 1 || set.Skills[0] != "negotiation" {
		t.Fatalf("want negotiation, got %v", set.Skills)
	}

	views, err := h.unlocks.Skills(ctx, actor)
	if err != nil {
		t.Fatalf("Skills: %v", err)
	}
	for _, v := range views {
		if v.SkillID == "communication" && (v.CurrentLevel != 2 || !v.IsUnlocked) {
			t.Fatalf("communication view: %+v", v)
		}
	}
}

func TestCertificateUnlockIssuesArtifact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)

	if _, err := h.ledger.Apply(dbctx.Of(ctx), actor, types.Delta{XP: 1000}, types.Key(types.SourceEvent, "grind")); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := h.ledger.AddSkillXP(ctx, actor, "communication", 300, "", "course"); err != nil {
		t.Fatalf("AddSkillXP: %v", err)
	}

	set, err := h.unlocks.Evaluate(ctx, actor, types.KindCertificate)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(set.Badges) != 1 || set.Badges[0].BadgeID != "sales_foundations" {
		t.Fatalf("want sales_foundations, got %+v", set.Badges)
	}
	if len(set.Skills) != 0 {
		t.Fatalf("kind-narrowed evaluation touched skills: %v", set.Skills)
	}
	url := set.Badges[0].CertificateURL
	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("certificate url: %q", url)
	}
	if _, err := os.Stat(strings.TrimPrefix(url, "file://")); err != nil {
		t.Fatalf("certificate file: %v", err)
	}

	held, err := h.unlocks.Badges(ctx, actor)
	if err != nil {
		t.Fatalf("Badges: %v", err)
	}
	if len(held) != 1 || held[0].CertificateURL != url {
		t.Fatalf("stored unlock: %+v", held)
	}
}

func TestBadgeItemRewardLandsInInventory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)

	h.play(t, actor, "big", "snake", 600)

	inv, err := h.market.Inventory(ctx, actor)
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	found := false
	for _, it := range inv {
		if it.ItemID == "frame_emerald" && it.Origin == types.OriginBadge {
			found = true
		}
	}
	if !found {
		t.Fatalf("snake_charmer item reward missing: %+v", inv)
	}
	if _, err := h.market.Purchase(ctx, actor, "frame_emerald"); !apierr.Is(err, apierr.CodeAlreadyOwned) {
		t.Fatalf("buying an earned item: want already_owned, got %v", err)
	}
}

func TestProgressReportsWeightedCriteria(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)

	list, err := h.unlocks.Progress(ctx, actor)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	var rising *BadgeProgress
	for i := range list {
		if list[i].BadgeID == "rising_star" {
			rising = &list[i]
		}
	}
	if rising == nil {
		t.Fatalf("rising_star missing from progress")
	}
	// level 1 of 5 at weight 2, no missions at weight 1
	if math.Abs(rising.Progress-0.133) > 1e-9 || rising.Met || rising.Unlocked {
		t.Fatalf("rising_star progress: %+v", rising)
	}
	if len(rising.Criteria) != 2 {
		t.Fatalf("criteria breakdown: %+v", rising.Criteria)
	}
}

func TestEvaluateIsolatesFailedBadge(t *testing.T) {
	if testutil.IsPostgres() {
		t.Skip("failure injection uses a sqlite trigger")
	}
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)
	h.setStreak(t, actor, 7, h.clock.Today())
	if _, err := h.ledger.Apply(dbctx.Of(ctx), actor, types.Delta{GamesPlayed: 1}, types.Key(types.SourceEvent, "seed")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// on_fire grants the Unstoppable title; make that write fail
	trigger := `CREATE TRIGGER fail_unstoppable BEFORE INSERT ON user_title
		WHEN NEW.title = 'Unstoppable'
		BEGIN SELECT RAISE(ABORT, 'title store unavailable'); END`
	if err := h.db.Exec(trigger).Error; err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	set, err := h.unlocks.Evaluate(ctx, actor)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !hasBadge(set, "first_steps") {
		t.Fatalf("first_steps should unlock despite on_fire failing: %+v", set.Badges)
	}
	if hasBadge(set, "on_fire") {
		t.Fatalf("failed badge reported as unlocked: %+v", set.Badges)
	}
	if len(set.Failed) != 1 || set.Failed[0].BadgeID != "on_fire" {
		t.Fatalf("failed: %+v", set.Failed)
	}
	if p := h.profile(t, actor); p.XP != 10 || p.Coins != 5 {
		t.Fatalf("failed badge leaked its reward: %+v", p)
	}
	var rows int64
	h.db.Model(&types.BadgeUnlock{}).Where("user_id = ? AND badge_id = ?", actor, "on_fire").Count(&rows)
	if rows != 0 {
		t.Fatalf("failed badge left %d unlock rows", rows)
	}

	if err := h.db.Exec("DROP TRIGGER fail_unstoppable").Error; err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	retry, err := h.unlocks.Evaluate(ctx, actor)
	if err != nil {
		t.Fatalf("Evaluate retry: %v", err)
	}
	if !hasBadge(retry, "on_fire") || len(retry.Failed) != 0 {
		t.Fatalf("retry: %+v", retry)
	}
}

func TestConcurrentEvaluateGrantsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)
	if _, err := h.ledger.Apply(dbctx.Of(ctx), actor, types.Delta{GamesPlayed: 1}, types.Key(types.SourceEvent, "seed")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := h.unlocks.Evaluate(ctx, actor, types.KindBadge)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				t.Errorf("Evaluate: %v", err)
				return
			}
			if hasBadge(set, "first_steps") {
				granted++
			}
			if len(set.Failed) != 0 {
				t.Errorf("racing evaluation failed: %+v", set.Failed)
			}
		}()
	}
	wg.Wait()

	if granted != 1 {
		t.Fatalf("first_steps reported by %d evaluations, want 1", granted)
	}
	var unlocks, credits int64
	h.db.Model(&types.BadgeUnlock{}).Where("user_id = ? AND badge_id = ?", actor, "first_steps").Count(&unlocks)
	h.db.Model(&types.LedgerEntry{}).Where("user_id = ? AND source_type = ? AND source_id = ?", actor, types.SourceBadge, "first_steps").Count(&credits)
	if unlocks != 1 || credits != 1 {
		t.Fatalf("want one unlock and one credit, got unlocks=%d credits=%d", unlocks, credits)
	}
	if p := h.profile(t, actor); p.XP != 10 || p.Coins != 5 {
		t.Fatalf("badge reward applied more than once: %+v", p)
	}
}
