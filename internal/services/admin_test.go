package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/data/repos/testutil"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
)

func TestRejectRefundsAndReleases(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := uuid.New()
	actor := h.seedActor(t, 5000)

	bought, err := h.market.Purchase(ctx, actor, "day_off")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if bought.Status != types.StatusPendingApproval || bought.Coins != 0 {
		t.Fatalf("purchase: %+v", bought)
	}
	stockBefore, _ := h.repos.Catalog.GetItem(dbctx.Of(ctx), "day_off")

	pending, err := h.admin.PendingRequests(ctx, 10)
	if err != nil {
		t.Fatalf("PendingRequests: %v", err)
	}
	found := false
	for _, p := range pending {
		if p.ID == bought.InventoryID {
			found = true
		}
	}
	if !found {
		t.Fatalf("purchase missing from pending requests")
	}

	rejected, err := h.admin.RejectRequest(ctx, admin, bought.InventoryID, "team is short staffed")
	if err != nil {
		t.Fatalf("RejectRequest: %v", err)
	}
	if rejected.Status != types.StatusRejected {
		t.Fatalf("status after reject: %q", rejected.Status)
	}
	if p := h.profile(t, actor); p.Coins != 5000 {
		t.Fatalf("refund: want 5000 got %d", p.Coins)
	}
	if !testutil.IsPostgres() {
		stockAfter, _ := h.repos.Catalog.GetItem(dbctx.Of(ctx), "day_off")
		if *stockAfter.Stock != *stockBefore.Stock+1 {
			t.Fatalf("stock not restored: %d -> %d", *stockBefore.Stock, *stockAfter.Stock)
		}
	}

	if _, err := h.admin.RejectRequest(ctx, admin, bought.InventoryID, "again"); !apierr.Is(err, apierr.CodeItemNotActive) {
		t.Fatalf("second reject: want item_not_active, got %v", err)
	}

	again, err := h.market.Purchase(ctx, actor, "day_off")
	if err != nil {
		t.Fatalf("repurchase after reject: %v", err)
	}
	approved, err := h.admin.ApproveRequest(ctx, admin, again.InventoryID)
	if err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}
	if approved.Status != types.StatusActive {
		t.Fatalf("status after approve: %q", approved.Status)
	}

	counts, err := h.repos.Events.CountsByType(dbctx.Of(ctx), actor)
	if err != nil {
		t.Fatalf("CountsByType: %v", err)
	}
	if counts[string(types.EventAdminAction)] != 2 {
		t.Fatalf("admin_action events: want=2 got=%d", counts[string(types.EventAdminAction)])
	}
}

func TestAdjustIsIdempotentPerRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := uuid.New()
	actor := h.seedActor(t, 50)

	in := AdjustInput{XP: 100, Coins: -20, Reason: "support ticket", RequestID: "req-1"}
	res, err := h.admin.Adjust(ctx, admin, actor, in)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if res.NewXP != 100 || res.NewCoins != 30 || res.NewLevel != 2 {
		t.Fatalf("adjust result: %+v", res)
	}
	dup, err := h.admin.Adjust(ctx, admin, actor, in)
	if err != nil {
		t.Fatalf("Adjust replay: %v", err)
	}
	if !dup.Duplicate || dup.NewCoins != 30 {
		t.Fatalf("replay: %+v", dup)
	}

	bad := []AdjustInput{
		{XP: -5, Reason: "nope"},
		{Coins: 10},
		{Reason: "empty"},
	}
	for i, b := range bad {
		if _, err := h.admin.Adjust(ctx, admin, actor, b); !apierr.Is(err, apierr.CodeInvalidArgument) {
			t.Fatalf("case %d: want invalid_argument, got %v", i, err)
		}
	}
	if _, err := h.admin.Adjust(ctx, admin, actor, AdjustInput{Coins: -1000, Reason: "too much"}); !apierr.Is(err, apierr.CodeInsufficientCoins) {
		t.Fatalf("overdraw: want insufficient_coins, got %v", err)
	}
}

func TestReloadCatalog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.admin.ReloadCatalog(ctx, uuid.New(), ""); err != nil {
		t.Fatalf("reload default: %v", err)
	}
	// without a catalog directory no named file may be read
	if err := h.admin.ReloadCatalog(ctx, uuid.New(), "catalog.yaml"); !apierr.Is(err, apierr.CodeInvalidArgument) {
		t.Fatalf("named reload without dir: want invalid_argument, got %v", err)
	}

	dir := t.TempDir()
	raw, err := catalog.ReadFile("")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "spring.yaml"), raw, 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	admin := NewAdminService(h.db, testutil.Logger(t), h.repos.Inventory, h.repos.Catalog, h.ledger, h.events, h.reg, h.notifier, CatalogFiles{Dir: dir})

	if err := admin.ReloadCatalog(ctx, uuid.New(), "spring.yaml"); err != nil {
		t.Fatalf("reload named file: %v", err)
	}
	outside := filepath.Join(t.TempDir(), "elsewhere.yaml")
	if err := os.WriteFile(outside, raw, 0o644); err != nil {
		t.Fatalf("write outside catalog: %v", err)
	}
	for _, file := range []string{outside, "../elsewhere.yaml", "/etc/passwd", "spring.txt", ".."} {
		if err := admin.ReloadCatalog(ctx, uuid.New(), file); !apierr.Is(err, apierr.CodeInvalidArgument) {
			t.Fatalf("%s: want invalid_argument, got %v", file, err)
		}
	}
	if err := admin.ReloadCatalog(ctx, uuid.New(), "missing.yaml"); !apierr.Is(err, apierr.CodeInvalidArgument) {
		t.Fatalf("missing file: want invalid_argument, got %v", err)
	}
	if h.reg.Snapshot().Game("snake") == nil {
		t.Fatalf("failed reload replaced the live catalog")
	}
}
