package progression

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/data/repos/testutil"
	types "github.com/yungbote/progression-backend/internal/domain"
)

func TestProfileRepoAddCountersGuardsBalance(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := testutil.Dbc(ctx, tx)
	repo := NewProfileRepo(db, testutil.Logger(t))

	p := testutil.SeedProfile(t, ctx, tx, 0, 50)

	ok, err := repo.AddCounters(dbc, p.UserID, 120, -30, 1)
	if err != nil || !ok {
		t.Fatalf("AddCounters: ok=%v err=%v", ok, err)
	}
	ok, err = repo.AddCounters(dbc, p.UserID, 0, -21, 0)
	if err != nil {
		t.Fatalf("AddCounters overdraw: %v", err)
	}
	if ok {
		t.Fatalf("overdraw must be refused")
	}

	got, err := repo.Get(dbc, p.UserID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.XP != 120 || got.Coins != 20 || got.TotalGamesPlayed != 1 {
		t.Fatalf("unexpected counters: %+v", got)
	}

	ok, err = repo.AddCounters(dbc, uuid.New(), 1, 0, 0)
	if err != nil || ok {
		t.Fatalf("missing actor: ok=%v err=%v", ok, err)
	}
}

func TestProfileRepoEnsureIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Dbc(context.Background(), tx)
	repo := NewProfileRepo(db, testutil.Logger(t))

	id := uuid.New()
	created, err := repo.Ensure(dbc, id)
	if err != nil || !created {
		t.Fatalf("first Ensure: created=%v err=%v", created, err)
	}
	created, err = repo.Ensure(dbc, id)
	if err != nil || created {
		t.Fatalf("second Ensure: created=%v err=%v", created, err)
	}
	p, _ := repo.Get(dbc, id)
	if p == nil || p.Level != 1 {
		t.Fatalf("expected level 1 profile, got %+v", p)
	}
}

func TestLedgerRepoInsertIgnoresDuplicateKey(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Dbc(context.Background(), tx)
	repo := NewLedgerRepo(db, testutil.Logger(t))

	userID := uuid.New()
	first := &types.LedgerEntry{UserID: userID, SourceType: "event", SourceID: "e1", XP: 10}
	created, err := repo.Insert(dbc, first)
	if err != nil || !created {
		t.Fatalf("Insert: created=%v err=%v", created, err)
	}
	dup := &types.LedgerEntry{UserID: userID, SourceType: "event", SourceID: "e1", XP: 99}
	created, err = repo.Insert(dbc, dup)
	if err != nil || created {
		t.Fatalf("duplicate Insert: created=%v err=%v", created, err)
	}

	other := &types.LedgerEntry{UserID: uuid.New(), SourceType: "event", SourceID: "e1", XP: 5}
	if created, err := repo.Insert(dbc, other); err != nil || !created {
		t.Fatalf("same key for another actor must apply: created=%v err=%v", created, err)
	}

	got, err := repo.GetByKey(dbc, userID, types.Key("event", "e1"))
	if err != nil || got == nil || got.XP != 10 {
		t.Fatalf("GetByKey: %+v err=%v", got, err)
	}
	if n, _ := repo.Count(dbc, userID); n != 1 {
		t.Fatalf("Count: want=1 got=%d", n)
	}
}

func TestStreakRepoCompareAndSwap(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Dbc(context.Background(), tx)
	repo := NewStreakRepo(db, testutil.Logger(t))

	id := uuid.New()
	if err := repo.Ensure(dbc, id); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	s, err := repo.Get(dbc, id)
	if err != nil || s == nil {
		t.Fatalf("Get: %v", err)
	}
	next := *s
	next.CurrentStreak, next.LongestStreak, next.LastPlayedOn = 1, 1, "2025-03-10"
	ok, err := repo.CompareAndSwap(dbc, &next, s.Version)
	if err != nil || !ok {
		t.Fatalf("CAS: ok=%v err=%v", ok, err)
	}
	stale := *s
	stale.CurrentStreak = 9
	if ok, err := repo.CompareAndSwap(dbc, &stale, s.Version); err != nil || ok {
		t.Fatalf("stale CAS must fail: ok=%v err=%v", ok, err)
	}

	if ok, err := repo.MarkClaimed(dbc, id, "2025-03-10"); err != nil || !ok {
		t.Fatalf("MarkClaimed: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.MarkClaimed(dbc, id, "2025-03-10"); err != nil || ok {
		t.Fatalf("second MarkClaimed same day: ok=%v err=%v", ok, err)
	}
	got, _ := repo.Get(dbc, id)
	if got.CurrentStreak != 1 || got.LastClaimedOn != "2025-03-10" {
		t.Fatalf("unexpected state: %+v", got)
	}
}

func TestActivityEventRepoAggregates(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Dbc(context.Background(), tx)
	repo := NewActivityEventRepo(db, testutil.Logger(t))

	userID := uuid.New()
	events := []*types.ActivityEvent{
		{UserID: userID, EventType: types.EventGamePlayed, GameType: "snake", ClientEventID: "a", Score: 120, Credited: true},
		{UserID: userID, EventType: types.EventGamePlayed, GameType: "snake", ClientEventID: "b", Score: 480, Credited: true},
		{UserID: userID, EventType: types.EventQuizCompleted, GameType: "quiz", ClientEventID: "c", Score: 9, Credited: true},
		{UserID: userID, EventType: types.EventGamePlayed, GameType: "snake", ClientEventID: "client:forged", Score: 100000},
	}
	for _, e := range events {
		if created, err := repo.Insert(dbc, e); err != nil || !created {
			t.Fatalf("Insert %s: created=%v err=%v", e.ClientEventID, created, err)
		}
	}
	if created, err := repo.Insert(dbc, &types.ActivityEvent{UserID: userID, EventType: types.EventGamePlayed, ClientEventID: "a"}); err != nil || created {
		t.Fatalf("duplicate client id: created=%v err=%v", created, err)
	}

	best, err := repo.BestScores(dbc, userID)
	if err != nil {
		t.Fatalf("BestScores: %v", err)
	}
	if best["snake"] != 480 || best["quiz"] != 9 {
		t.Fatalf("BestScores: %v", best)
	}
	counts, err := repo.CountsByType(dbc, userID)
	if err != nil {
		t.Fatalf("CountsByType: %v", err)
	}
	if counts[string(types.EventGamePlayed)] != 2 || counts[string(types.EventQuizCompleted)] != 1 {
		t.Fatalf("CountsByType: %v", counts)
	}
}

func TestSkillProgressRepoUnlockIsOneWay(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Dbc(context.Background(), tx)
	repo := NewSkillProgressRepo(db, testutil.Logger(t))

	userID := uuid.New()
	if err := repo.Ensure(dbc, userID, "focus"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := repo.AddXP(dbc, userID, "focus", 30); err != nil {
		t.Fatalf("AddXP: %v", err)
	}
	if err := repo.AddXP(dbc, userID, "focus", 25); err != nil {
		t.Fatalf("AddXP: %v", err)
	}
	sp, _ := repo.Get(dbc, userID, "focus")
	if sp.TotalXP != 55 {
		t.Fatalf("TotalXP: want=55 got=%d", sp.TotalXP)
	}

	first, err := repo.MarkUnlocked(dbc, userID, "focus", sp.UpdatedAt)
	if err != nil || !first {
		t.Fatalf("MarkUnlocked: %v %v", first, err)
	}
	again, err := repo.MarkUnlocked(dbc, userID, "focus", sp.UpdatedAt)
	if err != nil || again {
		t.Fatalf("second MarkUnlocked: %v %v", again, err)
	}
}
