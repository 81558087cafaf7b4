package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/data/repos"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/observability"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime"
)

type PurchaseResult struct {
	Success     bool               `json:"success"`
	Error       string             `json:"error,omitempty"`
	ItemName    string             `json:"item_name"`
	InventoryID uuid.UUID          `json:"inventory_id"`
	Status      string             `json:"status"`
	Coins       int64              `json:"coins"`
	Progression *types.ApplyResult `json:"-"`
}

type BoostActivation struct {
	InventoryID uuid.UUID `json:"inventory_id"`
	BoostType   string    `json:"boost_type"`
	BoostValue  float64   `json:"boost_value"`
	ActiveUntil time.Time `json:"active_until"`
}

type MarketplaceService interface {
	// List returns active items, fuzzy-ranked by name when query is set.
	List(ctx context.Context, query, category string) ([]*types.MarketplaceItem, error)
	Purchase(ctx context.Context, actorID uuid.UUID, itemID string) (*PurchaseResult, error)
	ActivateBoost(ctx context.Context, actorID, inventoryID uuid.UUID) (*BoostActivation, error)
	Equip(ctx context.Context, actorID, inventoryID uuid.UUID) (*types.InventoryItem, error)
	Inventory(ctx context.Context, actorID uuid.UUID) ([]*types.InventoryItem, error)
	ActiveBoosts(dbc dbctx.Context, actorID uuid.UUID, now time.Time) ([]*types.InventoryItem, error)
}

type marketplaceService struct {
	db        *gorm.DB
	log       *logger.Logger
	inventory repos.InventoryRepo
	stock     repos.CatalogRepo
	ledger    LedgerService
	events    EventService
	catalog   *catalog.Registry
	clock     Clock
	notifier  Notifier
}

func NewMarketplaceService(
	db *gorm.DB,
	baseLog *logger.Logger,
	inventory repos.InventoryRepo,
	stock repos.CatalogRepo,
	ledger LedgerService,
	events EventService,
	reg *catalog.Registry,
	clock Clock,
	notifier Notifier,
) MarketplaceService {
	return &marketplaceService{
		db:        db,
		log:       baseLog.With("service", "MarketplaceService"),
		inventory: inventory,
		stock:     stock,
		ledger:    ledger,
		events:    events,
		catalog:   reg,
		clock:     clock,
		notifier:  notifier,
	}
}

// nameSource feeds lower-cased item names to fuzzy.FindFrom.
type nameSource []string

func (n nameSource) String(i int) string { return n[i] }
func (n nameSource) Len() int            { return len(n) }

func (s *marketplaceService) List(ctx context.Context, query, category string) ([]*types.MarketplaceItem, error) {
	category = strings.TrimSpace(category)
	var items []*types.MarketplaceItem
	for _, it := range s.catalog.Snapshot().ActiveItems() {
		if category != "" && it.Category != category {
			continue
		}
		items = append(items, it)
	}
	// snapshot stock goes stale as items sell
	for i, it := range items {
		if it.Stock == nil {
			continue
		}
		live, err := s.stock.GetItem(dbctx.Of(ctx), it.ID)
		if err != nil {
			return nil, err
		}
		if live != nil {
			items[i] = live
		}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return items, nil
	}
	names := make(nameSource, len(items))
	for i, it := range items {
		names[i] = strings.ToLower(it.Name)
	}
	matches := fuzzy.FindFrom(strings.ToLower(query), names)
	out := make([]*types.MarketplaceItem, 0, len(matches))
	for _, m := range matches {
		out = append(out, items[m.Index])
	}
	return out, nil
}

func (s *marketplaceService) Purchase(ctx context.Context, actorID uuid.UUID, itemID string) (*PurchaseResult, error) {
	const op = "marketplace.purchase"
	if actorID == uuid.Nil {
		return nil, apierr.Validation(op, "actor id is required")
	}
	itemID = strings.TrimSpace(itemID)
	item := s.catalog.Snapshot().Item(itemID)
	if item == nil || !item.IsActive {
		observability.Current().IncPurchase(apierr.CodeItemNotFound)
		return nil, apierr.NotFound(apierr.CodeItemNotFound, op, "no such item "+itemID)
	}
	if err := s.ledger.EnsureActor(ctx, actorID); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, op, attribute.String("item_id", item.ID))
	now := s.clock.At()
	inv := &types.InventoryItem{
		ID:         uuid.New(),
		UserID:     actorID,
		ItemID:     item.ID,
		Category:   item.Category,
		Status:     types.StatusActive,
		Origin:     types.OriginPurchase,
		PricePaid:  item.Price,
		BoostType:  item.BoostType,
		BoostValue: item.BoostValue,
	}
	if item.RequiresApproval {
		inv.Status = types.StatusPendingApproval
	}
	if !item.Stackable {
		key := item.ID
		inv.OwnershipKey = &key
	}
	if item.ExpiresAfterDays > 0 {
		exp := now.AddDate(0, 0, item.ExpiresAfterDays)
		inv.ExpiresAt = &exp
	}

	var res *types.ApplyResult
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		created, err := s.inventory.Insert(txc, inv)
		if err != nil {
			return err
		}
		if !created {
			return apierr.Conflict(apierr.CodeAlreadyOwned, op, "item already owned")
		}
		if item.Stock != nil {
			ok, err := s.stock.DecrementStock(txc, item.ID)
			if err != nil {
				return err
			}
			if !ok {
				return apierr.Conflict(apierr.CodeOutOfStock, op, "item is out of stock")
			}
		}
		res, err = s.ledger.Debit(txc, actorID, item.Price, types.Key(types.SourcePurchase, inv.ID.String()), "purchase "+item.ID)
		if err != nil {
			return err
		}
		_, _, err = s.events.Append(txc, actorID, EventInput{
			ClientEventID: "purchase:" + inv.ID.String(),
			EventType:     string(types.EventItemPurchased),
			Metadata: map[string]any{
				"item_id":      item.ID,
				"inventory_id": inv.ID.String(),
				"price":        item.Price,
				"status":       inv.Status,
			},
			credited: true,
		})
		return err
	})
	observability.EndSpan(span, err)
	if err != nil {
		if code := apierr.CodeOf(err); code != "" {
			observability.Current().IncPurchase(code)
		}
		return nil, err
	}
	observability.Current().IncPurchase("ok")
	s.log.Info("item purchased", "actor_id", actorID, "item_id", item.ID, "inventory_id", inv.ID, "status", inv.Status)

	if s.notifier != nil {
		s.notifier.Publish(ctx, actorID, realtime.EventInventoryUpdated, inv)
		s.notifier.ProgressionUpdated(ctx, actorID, res)
	}
	return &PurchaseResult{
		Success:     true,
		ItemName:    item.Name,
		InventoryID: inv.ID,
		Status:      inv.Status,
		Coins:       res.NewCoins,
		Progression: res,
	}, nil
}

func (s *marketplaceService) ActivateBoost(ctx context.Context, actorID, inventoryID uuid.UUID) (*BoostActivation, error) {
	const op = "marketplace.activate_boost"
	now := s.clock.At()
	var out *BoostActivation
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		inv, err := s.inventory.GetOwned(txc, actorID, inventoryID)
		if err != nil {
			return err
		}
		if inv == nil {
			return apierr.NotFound(apierr.CodeItemNotFound, op, "no such inventory item")
		}
		if inv.BoostType != types.BoostXPMultiplier && inv.BoostType != types.BoostCoinsMultiplier {
			return apierr.Conflict(apierr.CodeNotABoost, op, "item is not a boost")
		}
		if inv.Status != types.StatusActive || (inv.ExpiresAt != nil && !inv.ExpiresAt.After(now)) {
			return apierr.Conflict(apierr.CodeItemNotActive, op, "item is not active")
		}
		running, err := s.inventory.HasActiveBoost(txc, actorID, inv.BoostType, now)
		if err != nil {
			return err
		}
		if running {
			return apierr.Conflict(apierr.CodeBoostAlreadyActive, op, "a boost of this type is already running")
		}
		until := now.Add(s.catalog.Snapshot().Item(inv.ItemID).BoostDuration())
		ok, err := s.inventory.Transition(txc, inv.ID, types.StatusActive, types.StatusUsed, map[string]interface{}{
			"activated_at": now,
			"active_until": until,
			"is_equipped":  false,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict(apierr.CodeItemNotActive, op, "item is not active")
		}
		out = &BoostActivation{
			InventoryID: inv.ID,
			BoostType:   inv.BoostType,
			BoostValue:  inv.BoostValue,
			ActiveUntil: until,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("boost activated", "actor_id", actorID, "inventory_id", inventoryID, "boost_type", out.BoostType)
	if s.notifier != nil {
		s.notifier.Publish(ctx, actorID, realtime.EventInventoryUpdated, out)
	}
	return out, nil
}

func (s *marketplaceService) Equip(ctx context.Context, actorID, inventoryID uuid.UUID) (*types.InventoryItem, error) {
	const op = "marketplace.equip"
	var out *types.InventoryItem
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		inv, err := s.inventory.GetOwned(txc, actorID, inventoryID)
		if err != nil {
			return err
		}
		if inv == nil {
			return apierr.NotFound(apierr.CodeInventoryNotFound, op, "no such inventory item")
		}
		item := s.catalog.Snapshot().Item(inv.ItemID)
		if item == nil || !item.Equippable {
			return apierr.Conflict(apierr.CodeNotEquippable, op, "item cannot be equipped")
		}
		if inv.IsEquipped {
			out = inv
			return nil
		}
		if err := s.inventory.UnequipCategory(txc, actorID, inv.Category, inv.ID); err != nil {
			return err
		}
		ok, err := s.inventory.Equip(txc, actorID, inv.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict(apierr.CodeItemNotActive, op, "item is not active")
		}
		out, err = s.inventory.Get(txc, inv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Publish(ctx, actorID, realtime.EventInventoryUpdated, out)
	}
	return out, nil
}

func (s *marketplaceService) Inventory(ctx context.Context, actorID uuid.UUID) ([]*types.InventoryItem, error) {
	dbc := dbctx.Of(ctx)
	n, err := s.inventory.ExpireLapsed(dbc, actorID, s.clock.At())
	if err != nil {
		return nil, err
	}
	if n > 0 {
		s.log.Debug("inventory items expired", "actor_id", actorID, "count", n)
	}
	return s.inventory.ListByUser(dbc, actorID)
}

func (s *marketplaceService) ActiveBoosts(dbc dbctx.Context, actorID uuid.UUID, now time.Time) ([]*types.InventoryItem, error) {
	return s.inventory.ActiveBoosts(dbc, actorID, now)
}
