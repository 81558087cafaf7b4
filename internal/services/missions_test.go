package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/data/repos/testutil"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
)

func TestGenerateDailyIsStableWithinDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rs := h.repos
	svc := NewMissionService(h.db, testutil.Logger(t), rs.Missions, rs.Events, h.ledger, h.reg, h.clock, 3)
	actor := h.seedActor(t, 0)

	first, err := svc.GenerateDaily(ctx, actor)
	if err != nil {
		t.Fatalf("GenerateDaily: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("daily missions: want=3 got=%d", len(first))
	}
	second, err := svc.GenerateDaily(ctx, actor)
	if err != nil {
		t.Fatalf("GenerateDaily again: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("regeneration changed the count: %d", len(second))
	}
	ids := map[uuid.UUID]bool{}
	for _, m := range first {
		ids[m.ID] = true
		if m.PeriodKey != "2024-03-04" || m.Period != types.PeriodDaily {
			t.Fatalf("unexpected mission row: %+v", m)
		}
	}
	for _, m := range second {
		if !ids[m.ID] {
			t.Fatalf("regeneration created a new row: %+v", m)
		}
	}
}

func TestGenerateMonthlyUsesMonthKey(t *testing.T) {
	h := newHarness(t)
	actor := h.seedActor(t, 0)

	ms, err := h.missions.GenerateMonthly(context.Background(), actor)
	if err != nil {
		t.Fatalf("GenerateMonthly: %v", err)
	}
	if len(ms) != 3 {
		t.Fatalf("monthly missions: want=3 got=%d", len(ms))
	}
	for _, m := range ms {
		if m.PeriodKey != "2024-03" {
			t.Fatalf("period key: %q", m.PeriodKey)
		}
	}
}

func TestMissionListRejectsUnknownPeriod(t *testing.T) {
	h := newHarness(t)
	actor := h.seedActor(t, 0)
	if _, err := h.missions.List(context.Background(), actor, "weekly"); !apierr.Is(err, apierr.CodeInvalidArgument) {
		t.Fatalf("want invalid_argument, got %v", err)
	}
}

func TestMissionCompletionCreditsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 0)

	for i, id := range []string{"q1", "q2"} {
		res, err := h.gameplay.Complete(ctx, actor, GameplayInput{ClientEventID: id, EventType: "quiz_completed", GameType: "quiz", Score: 1})
		if err != nil {
			t.Fatalf("Complete(%s): %v", id, err)
		}
		if got := hasMission(res.Missions, "daily_quiz"); got != (i == 0) {
			t.Fatalf("play %d: daily_quiz completed=%v", i, got)
		}
	}

	ms, err := h.missions.List(ctx, actor, types.PeriodDaily)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, m := range ms {
		if m.TemplateID != "daily_quiz" {
			continue
		}
		if !m.IsCompleted || m.CompletedAt == nil || m.CurrentValue < m.TargetValue {
			t.Fatalf("daily_quiz row: %+v", m)
		}
	}
}
