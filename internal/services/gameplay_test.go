package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/engine/reward"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
)

func TestGameplayCompleteSnake(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := uuid.New()

	res := h.play(t, actor, "snake-1", "snake", 100)
	if res.Duplicate {
		t.Fatalf("first completion reported duplicate")
	}
	if res.Reward.XP != 110 || res.Reward.Coins != 7 {
		t.Fatalf("reward: want 110xp/7c got %+v", res.Reward)
	}
	if res.Streak == nil || res.Streak.CurrentStreak != 1 {
		t.Fatalf("streak after first play: %+v", res.Streak)
	}
	if !hasMission(res.Missions, "daily_xp_100") {
		t.Fatalf("daily_xp_100 should complete on 110xp, got %+v", res.Missions)
	}
	if !hasBadge(res.Unlocked, "first_steps") {
		t.Fatalf("first_steps should unlock, got %+v", res.Unlocked)
	}

	// 110 play + 25 mission + 10 badge, 7 + 15 + 5 coins
	p := h.profile(t, actor)
	if p.XP != 145 || p.Coins != 27 || p.TotalGamesPlayed != 1 {
		t.Fatalf("profile after first play: %+v", p)
	}
	focus, err := h.repos.SkillProgress.Get(dbctx.Of(ctx), actor, "focus")
	if err != nil || focus == nil {
		t.Fatalf("focus progress: %v %v", focus, err)
	}
	if focus.TotalXP != 11 || !focus.IsUnlocked {
		t.Fatalf("focus skill: %+v", focus)
	}

	before, _ := h.repos.Ledger.Count(dbctx.Of(ctx), actor)
	dup := h.play(t, actor, "snake-1", "snake", 100)
	if !dup.Duplicate {
		t.Fatalf("replay must be a duplicate")
	}
	if dup.EventID != res.EventID || dup.XP != 145 {
		t.Fatalf("duplicate result: %+v", dup)
	}
	after, _ := h.repos.Ledger.Count(dbctx.Of(ctx), actor)
	if before != after {
		t.Fatalf("duplicate wrote ledger rows: %d -> %d", before, after)
	}
	if p := h.profile(t, actor); p.TotalGamesPlayed != 1 {
		t.Fatalf("duplicate counted a play: %d", p.TotalGamesPlayed)
	}
}

func TestGameplayMissionsAdvanceWithinPeriod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := uuid.New()

	h.play(t, actor, "a", "snake", 10)
	second := h.play(t, actor, "b", "snake", 10)
	if !hasMission(second.Missions, "daily_snake") {
		t.Fatalf("daily_snake should complete on the second snake game, got %+v", second.Missions)
	}
	if second.Streak.CurrentStreak != 1 {
		t.Fatalf("same-day play moved the streak: %d", second.Streak.CurrentStreak)
	}

	yesterday := h.clock.Today()
	h.advanceDays(1)
	next := h.play(t, actor, "c", "snake", 10)
	if next.Streak.CurrentStreak != 2 {
		t.Fatalf("next-day streak: want=2 got=%d", next.Streak.CurrentStreak)
	}

	rows, err := h.repos.Missions.ListByPeriodKey(dbctx.Of(ctx), actor, yesterday)
	if err != nil {
		t.Fatalf("ListByPeriodKey: %v", err)
	}
	for _, m := range rows {
		if m.TemplateID == "daily_play_3" && (m.CurrentValue != 2 || m.IsCompleted) {
			t.Fatalf("yesterday's mission was touched: %+v", m)
		}
	}
	today, err := h.missions.List(ctx, actor, "daily")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, m := range today {
		if m.TemplateID == "daily_play_3" && m.CurrentValue != 1 {
			t.Fatalf("today's daily_play_3: want 1 got %d", m.CurrentValue)
		}
	}
}

func TestGameplayFastDecisionMatchesPreview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := uuid.New()

	res, err := h.gameplay.Complete(ctx, actor, GameplayInput{
		ClientEventID: "d-1",
		EventType:     "decision_made",
		GameType:      "decision_scenario",
		Score:         50,
		ElapsedMs:     10_000,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	one := 1
	preview, err := h.rewards.Compute(ctx, actor, RewardRequest{
		EventType:  "decision_made",
		GameType:   "decision_scenario",
		Score:      50,
		StreakDays: &one,
		ElapsedMs:  10_000,
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.Reward.XP != preview.XP || res.Reward.Coins != preview.Coins {
		t.Fatalf("applied reward %+v differs from preview %+v", res.Reward, preview.Reward)
	}
	found := false
	for _, b := range res.Reward.Bonuses {
		if b.Kind == reward.BonusFastDecision {
			found = true
		}
	}
	if !found {
		t.Fatalf("fast decision bonus missing: %+v", res.Reward.Bonuses)
	}
}

func TestGameplayAppliesActiveBoost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 1000)

	bought, err := h.market.Purchase(ctx, actor, "xp_boost_1h")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if _, err := h.market.ActivateBoost(ctx, actor, bought.InventoryID); err != nil {
		t.Fatalf("ActivateBoost: %v", err)
	}

	res := h.play(t, actor, "boosted", "snake", 100)
	if res.Reward.XP != 220 || res.Reward.Coins != 14 {
		t.Fatalf("boosted reward: want 220xp/14c got %+v", res.Reward)
	}

	h.now = h.now.Add(2 * time.Hour)
	plain := h.play(t, actor, "after-boost", "snake", 100)
	if plain.Reward.XP != 110 {
		t.Fatalf("expired boost still applied: %+v", plain.Reward)
	}
}

func TestGameplayValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := uuid.New()

	cases := []struct {
		name string
		in   GameplayInput
		code string
	}{
		{"unknown event", GameplayInput{EventType: "moonwalk"}, apierr.CodeUnknownEventType},
		{"non gameplay event", GameplayInput{EventType: "item_purchased"}, apierr.CodeInvalidArgument},
		{"negative score", GameplayInput{GameType: "snake", Score: -1}, apierr.CodeInvalidArgument},
	}
	for _, tc := range cases {
		_, err := h.gameplay.Complete(ctx, actor, tc.in)
		if !apierr.Is(err, tc.code) {
			t.Fatalf("%s: want %s got %v", tc.name, tc.code, err)
		}
	}
}

func TestLogActivityNeverCredits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := uuid.New()

	in := EventInput{ClientEventID: "fb-1", EventType: "feedback_given", XPEarned: 5000, CoinsEarned: 5000, Score: 100000, GameType: "snake"}
	res, err := h.gameplay.LogActivity(ctx, actor, in)
	if err != nil {
		t.Fatalf("LogActivity: %v", err)
	}
	if res.Duplicate || res.Event == nil || res.Event.Credited {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Missions) != 0 || (res.Unlocked != nil && len(res.Unlocked.Badges) != 0) {
		t.Fatalf("logged activity completed missions or unlocked badges: %+v", res)
	}
	again, err := h.gameplay.LogActivity(ctx, actor, in)
	if err != nil {
		t.Fatalf("LogActivity replay: %v", err)
	}
	if !again.Duplicate || again.Event.ID != res.Event.ID {
		t.Fatalf("replay: %+v", again)
	}

	missions, err := h.missions.List(ctx, actor, "")
	if err != nil {
		t.Fatalf("missions.List: %v", err)
	}
	for _, m := range missions {
		if m.CurrentValue != 0 || m.IsCompleted {
			t.Fatalf("mission %s advanced by logged activity: %+v", m.TemplateID, m)
		}
	}
	if p := h.profile(t, actor); p.XP != 0 || p.Coins != 0 || p.TotalGamesPlayed != 0 {
		t.Fatalf("activity credited the profile: %+v", p)
	}
}

func TestLogActivityRejectsGameplayAndEngineTypes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := uuid.New()

	for _, et := range []string{"game_played", "quiz_completed", "training_completed", "admin_action", "badge_unlocked", "mission_completed", "item_purchased", "streak_claimed"} {
		_, err := h.gameplay.LogActivity(ctx, actor, EventInput{EventType: et, GameType: "snake", Score: 100000})
		if !apierr.Is(err, apierr.CodeInvalidArgument) {
			t.Fatalf("%s: want %s got %v", et, apierr.CodeInvalidArgument, err)
		}
	}
	if _, err := h.gameplay.LogActivity(ctx, actor, EventInput{EventType: "cheating"}); !apierr.Is(err, apierr.CodeUnknownEventType) {
		t.Fatalf("unknown type: %v", err)
	}
	if p := h.profile(t, actor); p.XP != 0 || p.Coins != 0 {
		t.Fatalf("rejected activity credited the profile: %+v", p)
	}
}

func TestClientEventIDsCannotTakeEngineKeys(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)

	res, err := h.gameplay.LogActivity(ctx, actor, EventInput{ClientEventID: "admin:adjust:r1", EventType: "feedback_given"})
	if err != nil {
		t.Fatalf("LogActivity: %v", err)
	}
	if res.Event.ClientEventID != "client:admin:adjust:r1" {
		t.Fatalf("client id not namespaced: %q", res.Event.ClientEventID)
	}

	played := h.play(t, actor, "badge:snake_charmer", "snake", 10)
	ev, err := h.events.Find(dbctx.Of(ctx), actor, "badge:snake_charmer")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if ev != nil {
		t.Fatalf("gameplay event stored under an engine key: %+v", ev)
	}
	stored, err := h.events.Find(dbctx.Of(ctx), actor, "client:badge:snake_charmer")
	if err != nil || stored == nil || stored.ID != played.EventID || !stored.Credited {
		t.Fatalf("gameplay event lookup: ev=%+v err=%v", stored, err)
	}

	// reusing a logged activity's id for a game is refused, not reported as
	// the same play
	if _, err := h.gameplay.Complete(ctx, actor, GameplayInput{ClientEventID: "admin:adjust:r1", GameType: "snake", Score: 10}); !apierr.Is(err, apierr.CodeDuplicateEvent) {
		t.Fatalf("reused logged id: %v", err)
	}
}
