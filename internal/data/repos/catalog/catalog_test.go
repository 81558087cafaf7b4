package catalog_test

import (
	"context"
	"testing"

	"github.com/yungbote/progression-backend/internal/catalog"
	repocatalog "github.com/yungbote/progression-backend/internal/data/repos/catalog"
	"github.com/yungbote/progression-backend/internal/data/repos/testutil"
)

func TestReplaceAllRoundTripAndStock(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.Dbc(context.Background(), tx)
	repo := repocatalog.NewCatalogRepo(db, testutil.Logger(t))

	b, err := catalog.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := repo.ReplaceAll(dbc, b); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	got, err := repo.LoadAll(dbc)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got.Badges) != len(b.Badges) || len(got.Skills) != len(b.Skills) || len(got.Levels) != len(b.Levels) {
		t.Fatalf("round trip mismatch: badges=%d skills=%d levels=%d", len(got.Badges), len(got.Skills), len(got.Levels))
	}
	snap, err := catalog.NewSnapshot(got)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	if d := snap.Game("quiz").DifficultyMultipliers.Data(); d["hard"] != 1.5 {
		t.Fatalf("difficulty json did not survive: %v", d)
	}

	for i := 0; i < 2; i++ {
		ok, err := repo.DecrementStock(dbc, "lunch_with_ceo")
		if err != nil || !ok {
			t.Fatalf("DecrementStock %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := repo.DecrementStock(dbc, "lunch_with_ceo"); ok {
		t.Fatalf("stock of 2 must run out")
	}
	if ok, _ := repo.DecrementStock(dbc, "theme_midnight"); !ok {
		t.Fatalf("unlimited item must always succeed")
	}

	if err := repo.ReplaceAll(dbc, b); err != nil {
		t.Fatalf("ReplaceAll again: %v", err)
	}
	item, _ := repo.GetItem(dbc, "lunch_with_ceo")
	if item.Stock == nil || *item.Stock != 0 {
		t.Fatalf("reload must not restock: %v", item.Stock)
	}

	b.Badges = b.Badges[1:]
	if err := repo.ReplaceAll(dbc, b); err != nil {
		t.Fatalf("ReplaceAll trimmed: %v", err)
	}
	got, _ = repo.LoadAll(dbc)
	active := 0
	for _, bd := range got.Badges {
		if bd.IsActive {
			active++
		}
	}
	if active != len(b.Badges) {
		t.Fatalf("removed badge must be deactivated: active=%d want=%d", active, len(b.Badges))
	}
}
