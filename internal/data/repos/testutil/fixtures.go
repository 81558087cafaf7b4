package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/catalog"
	repocatalog "github.com/yungbote/progression-backend/internal/data/repos/catalog"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
)

// SeedProfile creates a profile and streak row with the given balances.
func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, xp, coins int64) *types.Profile {
	tb.Helper()
	p := &types.Profile{UserID: uuid.New(), Level: 1, XP: xp, Coins: coins}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	if err := tx.WithContext(ctx).Create(&types.StreakState{UserID: p.UserID}).Error; err != nil {
		tb.Fatalf("seed streak: %v", err)
	}
	return p
}

// SeedCatalog persists the embedded default catalog and returns a
// registry serving it.
func SeedCatalog(tb testing.TB, ctx context.Context, gdb *gorm.DB) *catalog.Registry {
	tb.Helper()
	b, err := catalog.Load("")
	if err != nil {
		tb.Fatalf("load default catalog: %v", err)
	}
	return SeedBundle(tb, ctx, gdb, b)
}

func SeedBundle(tb testing.TB, ctx context.Context, gdb *gorm.DB, b *types.CatalogBundle) *catalog.Registry {
	tb.Helper()
	reg := catalog.NewRegistry(repocatalog.NewCatalogRepo(gdb, Logger(tb)), Logger(tb))
	if err := reg.Seed(ctx, b); err != nil {
		tb.Fatalf("seed catalog: %v", err)
	}
	return reg
}

func Dbc(ctx context.Context, tx *gorm.DB) dbctx.Context {
	return dbctx.Context{Ctx: ctx, Tx: tx}
}

func PtrInt64(v int64) *int64 { return &v }
