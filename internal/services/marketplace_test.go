package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/progression-backend/internal/data/repos/testutil"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
)

func TestPurchaseFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 600)

	res, err := h.market.Purchase(ctx, actor, "theme_midnight")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if !res.Success || res.Coins != 350 || res.Status != types.StatusActive {
		t.Fatalf("purchase result: %+v", res)
	}

	if _, err := h.market.Purchase(ctx, actor, "theme_midnight"); !apierr.Is(err, apierr.CodeAlreadyOwned) {
		t.Fatalf("second purchase: want already_owned, got %v", err)
	}

	before, err := h.repos.Catalog.GetItem(dbctx.Of(ctx), "frame_gold")
	if err != nil || before == nil || before.Stock == nil {
		t.Fatalf("frame_gold: %v %v", before, err)
	}
	if _, err := h.market.Purchase(ctx, actor, "frame_gold"); !apierr.Is(err, apierr.CodeInsufficientCoins) {
		t.Fatalf("want insufficient_coins, got %v", err)
	}
	after, err := h.repos.Catalog.GetItem(dbctx.Of(ctx), "frame_gold")
	if err != nil || after == nil {
		t.Fatalf("frame_gold after: %v %v", after, err)
	}
	if *after.Stock != *before.Stock {
		t.Fatalf("failed purchase moved stock: %d -> %d", *before.Stock, *after.Stock)
	}

	inv, err := h.market.Inventory(ctx, actor)
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	if len(inv) != 1 || inv[0].ItemID != "theme_midnight" || inv[0].PricePaid != 250 {
		t.Fatalf("inventory after rollback: %+v", inv)
	}
	if p := h.profile(t, actor); p.Coins != 350 {
		t.Fatalf("balance: want=350 got=%d", p.Coins)
	}

	if _, err := h.market.Purchase(ctx, actor, "unicorn"); !apierr.Is(err, apierr.CodeItemNotFound) {
		t.Fatalf("unknown item: want item_not_found, got %v", err)
	}
}

func TestPurchaseApprovalItemOutOfStock(t *testing.T) {
	if testutil.IsPostgres() {
		t.Skip("stock is shared across tests on postgres")
	}
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		actor := h.seedActor(t, 8000)
		res, err := h.market.Purchase(ctx, actor, "lunch_with_ceo")
		if err != nil {
			t.Fatalf("Purchase #%d: %v", i, err)
		}
		if res.Status != types.StatusPendingApproval || res.Coins != 0 {
			t.Fatalf("approval purchase: %+v", res)
		}
	}
	late := h.seedActor(t, 8000)
	if _, err := h.market.Purchase(ctx, late, "lunch_with_ceo"); !apierr.Is(err, apierr.CodeOutOfStock) {
		t.Fatalf("want out_of_stock, got %v", err)
	}
	if p := h.profile(t, late); p.Coins != 8000 {
		t.Fatalf("out of stock purchase charged: %d", p.Coins)
	}
}

func TestActivateBoost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 1000)

	a, err := h.market.Purchase(ctx, actor, "xp_boost_1h")
	if err != nil {
		t.Fatalf("Purchase a: %v", err)
	}
	b, err := h.market.Purchase(ctx, actor, "xp_boost_1h")
	if err != nil {
		t.Fatalf("stackable boosts can be bought twice: %v", err)
	}
	theme, err := h.market.Purchase(ctx, actor, "theme_midnight")
	if err != nil {
		t.Fatalf("Purchase theme: %v", err)
	}

	act, err := h.market.ActivateBoost(ctx, actor, a.InventoryID)
	if err != nil {
		t.Fatalf("ActivateBoost: %v", err)
	}
	if !act.ActiveUntil.Equal(h.now.Add(time.Hour)) || act.BoostValue != 2 {
		t.Fatalf("activation: %+v", act)
	}

	cases := []struct {
		name string
		id   uuid.UUID
		code string
	}{
		{"same type running", b.InventoryID, apierr.CodeBoostAlreadyActive},
		{"not a boost", theme.InventoryID, apierr.CodeNotABoost},
		{"already used", a.InventoryID, apierr.CodeItemNotActive},
		{"unknown", uuid.New(), apierr.CodeItemNotFound},
	}
	for _, tc := range cases {
		if _, err := h.market.ActivateBoost(ctx, actor, tc.id); !apierr.Is(err, tc.code) {
			t.Fatalf("%s: want %s got %v", tc.name, tc.code, err)
		}
	}

	boosts, err := h.market.ActiveBoosts(dbctx.Of(ctx), actor, h.now)
	if err != nil {
		t.Fatalf("ActiveBoosts: %v", err)
	}
	if len(boosts) != 1 || boosts[0].ID != a.InventoryID {
		t.Fatalf("active boosts: %+v", boosts)
	}
}

func TestEquipKeepsOnePerCategory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := h.seedActor(t, 1300)

	emerald, err := h.market.Purchase(ctx, actor, "frame_emerald")
	if err != nil {
		t.Fatalf("Purchase emerald: %v", err)
	}
	gold, err := h.market.Purchase(ctx, actor, "frame_gold")
	if err != nil {
		t.Fatalf("Purchase gold: %v", err)
	}
	boost, err := h.market.Purchase(ctx, actor, "coin_boost_1h")
	if err != nil {
		t.Fatalf("Purchase boost: %v", err)
	}

	if _, err := h.market.Equip(ctx, actor, emerald.InventoryID); err != nil {
		t.Fatalf("Equip emerald: %v", err)
	}
	got, err := h.market.Equip(ctx, actor, gold.InventoryID)
	if err != nil {
		t.Fatalf("Equip gold: %v", err)
	}
	if !got.IsEquipped {
		t.Fatalf("gold not equipped: %+v", got)
	}

	inv, err := h.market.Inventory(ctx, actor)
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	for _, it := range inv {
		if it.Category == "avatar_frame" && it.IsEquipped != (it.ID == gold.InventoryID) {
			t.Fatalf("frame equip state wrong: %+v", it)
		}
	}

	if _, err := h.market.Equip(ctx, actor, boost.InventoryID); !apierr.Is(err, apierr.CodeNotEquippable) {
		t.Fatalf("want not_equippable, got %v", err)
	}
	if _, err := h.market.Equip(ctx, actor, uuid.New()); !apierr.Is(err, apierr.CodeInventoryNotFound) {
		t.Fatalf("want inventory_not_found, got %v", err)
	}
}

func TestListRanksByName(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	all, err := h.market.List(ctx, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 7 {
		t.Fatalf("active items: want=7 got=%d", len(all))
	}

	boosts, err := h.market.List(ctx, "", "boost")
	if err != nil {
		t.Fatalf("List boost: %v", err)
	}
	if len(boosts) != 2 {
		t.Fatalf("boost category: want=2 got=%d", len(boosts))
	}

	frames, err := h.market.List(ctx, "frame", "")
	if err != nil {
		t.Fatalf("List frame: %v", err)
	}
	if len(frames) < 2 {
		t.Fatalf("fuzzy query returned %d items", len(frames))
	}
	for _, it := range frames[:2] {
		if it.Category != "avatar_frame" {
			t.Fatalf("frames should rank first, got %+v", it)
		}
	}
}
