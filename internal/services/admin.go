package services

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/data/repos"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime"
)

type AdjustInput struct {
	XP        int64  `json:"xp"`
	Coins     int64  `json:"coins"`
	Reason    string `json:"reason"`
	RequestID string `json:"request_id"`
}

// AdminService holds the operator paths. Every action on an actor is also
// recorded as an admin_action event on that actor.
type AdminService interface {
	PendingRequests(ctx context.Context, limit int) ([]*types.InventoryItem, error)
	ApproveRequest(ctx context.Context, adminID, inventoryID uuid.UUID) (*types.InventoryItem, error)
	RejectRequest(ctx context.Context, adminID, inventoryID uuid.UUID, reason string) (*types.InventoryItem, error)
	Adjust(ctx context.Context, adminID, actorID uuid.UUID, in AdjustInput) (*types.ApplyResult, error)
	// ReloadCatalog re-reads the configured catalog, or with a non-empty
	// file the named catalog inside the configured catalog directory.
	ReloadCatalog(ctx context.Context, adminID uuid.UUID, file string) error
}

// CatalogFiles bounds what a reload may read from the server filesystem.
type CatalogFiles struct {
	Path string // CATALOG_PATH; empty means the embedded default
	Dir  string // CATALOG_DIR; empty disables named reloads
}

func (f CatalogFiles) resolve(op, file string) (string, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		return f.Path, nil
	}
	if f.Dir == "" {
		return "", apierr.Validation(op, "named catalog reloads are disabled")
	}
	ext := strings.ToLower(filepath.Ext(file))
	if filepath.Base(file) != file || file == "." || file == ".." || (ext != ".yaml" && ext != ".yml") {
		return "", apierr.Validation(op, "catalog file must be a .yaml file name inside the catalog directory")
	}
	return filepath.Join(f.Dir, file), nil
}

type adminService struct {
	db        *gorm.DB
	log       *logger.Logger
	inventory repos.InventoryRepo
	stock     repos.CatalogRepo
	ledger    LedgerService
	events    EventService
	catalog   *catalog.Registry
	notifier  Notifier
	files     CatalogFiles
}

func NewAdminService(
	db *gorm.DB,
	baseLog *logger.Logger,
	inventory repos.InventoryRepo,
	stock repos.CatalogRepo,
	ledger LedgerService,
	events EventService,
	reg *catalog.Registry,
	notifier Notifier,
	files CatalogFiles,
) AdminService {
	return &adminService{
		db:        db,
		log:       baseLog.With("service", "AdminService"),
		inventory: inventory,
		stock:     stock,
		ledger:    ledger,
		events:    events,
		catalog:   reg,
		notifier:  notifier,
		files:     files,
	}
}

func (s *adminService) PendingRequests(ctx context.Context, limit int) ([]*types.InventoryItem, error) {
	return s.inventory.ListByStatus(dbctx.Of(ctx), types.StatusPendingApproval, limit)
}

func (s *adminService) record(txc dbctx.Context, adminID, actorID uuid.UUID, action, ref string, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["admin_id"] = adminID.String()
	meta["action"] = action
	_, _, err := s.events.Append(txc, actorID, EventInput{
		ClientEventID: "admin:" + action + ":" + ref,
		EventType:     string(types.EventAdminAction),
		Metadata:      meta,
		credited:      true,
	})
	return err
}

func (s *adminService) pending(txc dbctx.Context, op string, inventoryID uuid.UUID) (*types.InventoryItem, error) {
	inv, err := s.inventory.Get(txc, inventoryID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apierr.NotFound(apierr.CodeInventoryNotFound, op, "no such inventory item")
	}
	if inv.Status != types.StatusPendingApproval {
		return nil, apierr.Conflict(apierr.CodeItemNotActive, op, "request is not pending approval")
	}
	return inv, nil
}

func (s *adminService) ApproveRequest(ctx context.Context, adminID, inventoryID uuid.UUID) (*types.InventoryItem, error) {
	const op = "admin.approve"
	var out *types.InventoryItem
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		inv, err := s.pending(txc, op, inventoryID)
		if err != nil {
			return err
		}
		ok, err := s.inventory.Transition(txc, inv.ID, types.StatusPendingApproval, types.StatusActive, nil)
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict(apierr.CodeItemNotActive, op, "request is not pending approval")
		}
		if err := s.record(txc, adminID, inv.UserID, "approve", inv.ID.String(), map[string]any{"inventory_id": inv.ID.String(), "item_id": inv.ItemID}); err != nil {
			return err
		}
		out, err = s.inventory.Get(txc, inv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("request approved", "admin_id", adminID, "inventory_id", inventoryID, "actor_id", out.UserID)
	if s.notifier != nil {
		s.notifier.Publish(ctx, out.UserID, realtime.EventInventoryUpdated, out)
	}
	return out, nil
}

// RejectRequest refunds the price, frees the ownership slot so the item can
// be bought again, and puts the unit back in stock.
func (s *adminService) RejectRequest(ctx context.Context, adminID, inventoryID uuid.UUID, reason string) (*types.InventoryItem, error) {
	const op = "admin.reject"
	var (
		out *types.InventoryItem
		res *types.ApplyResult
	)
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		inv, err := s.pending(txc, op, inventoryID)
		if err != nil {
			return err
		}
		ok, err := s.inventory.Transition(txc, inv.ID, types.StatusPendingApproval, types.StatusRejected, nil)
		if err != nil {
			return err
		}
		if !ok {
			return apierr.Conflict(apierr.CodeItemNotActive, op, "request is not pending approval")
		}
		res, err = s.ledger.Apply(txc, inv.UserID, types.Delta{
			Coins:  inv.PricePaid,
			Reason: "refund " + inv.ItemID,
		}, types.Key(types.SourceRefund, inv.ID.String()))
		if err != nil {
			return err
		}
		if err := s.inventory.ReleaseOwnership(txc, inv.ID); err != nil {
			return err
		}
		if err := s.stock.IncrementStock(txc, inv.ItemID); err != nil {
			return err
		}
		if err := s.record(txc, adminID, inv.UserID, "reject", inv.ID.String(), map[string]any{
			"inventory_id": inv.ID.String(),
			"item_id":      inv.ItemID,
			"refund":       inv.PricePaid,
			"reason":       strings.TrimSpace(reason),
		}); err != nil {
			return err
		}
		out, err = s.inventory.Get(txc, inv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("request rejected", "admin_id", adminID, "inventory_id", inventoryID, "actor_id", out.UserID)
	if s.notifier != nil {
		s.notifier.Publish(ctx, out.UserID, realtime.EventInventoryUpdated, out)
		s.notifier.ProgressionUpdated(ctx, out.UserID, res)
	}
	return out, nil
}

func (s *adminService) Adjust(ctx context.Context, adminID, actorID uuid.UUID, in AdjustInput) (*types.ApplyResult, error) {
	const op = "admin.adjust"
	if actorID == uuid.Nil {
		return nil, apierr.Validation(op, "actor id is required")
	}
	if in.XP < 0 {
		return nil, apierr.Validation(op, "xp cannot be taken away")
	}
	if in.XP == 0 && in.Coins == 0 {
		return nil, apierr.Validation(op, "adjustment is empty")
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return nil, apierr.Validation(op, "reason is required")
	}
	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	if err := s.ledger.EnsureActor(ctx, actorID); err != nil {
		return nil, err
	}

	var res *types.ApplyResult
	err := dbctx.Of(ctx).InTx(s.db, func(txc dbctx.Context) error {
		var err error
		res, err = s.ledger.Apply(txc, actorID, types.Delta{
			XP:     in.XP,
			Coins:  in.Coins,
			Reason: in.Reason,
		}, types.Key(types.SourceAdminAdjustment, requestID))
		if err != nil {
			return err
		}
		if res.Duplicate {
			return nil
		}
		return s.record(txc, adminID, actorID, "adjust", requestID, map[string]any{
			"xp":     in.XP,
			"coins":  in.Coins,
			"reason": in.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("balance adjusted", "admin_id", adminID, "actor_id", actorID, "xp", in.XP, "coins", in.Coins, "duplicate", res.Duplicate)
	if s.notifier != nil {
		s.notifier.ProgressionUpdated(ctx, actorID, res)
	}
	return res, nil
}

func (s *adminService) ReloadCatalog(ctx context.Context, adminID uuid.UUID, file string) error {
	const op = "admin.reload_catalog"
	path, err := s.files.resolve(op, file)
	if err != nil {
		return err
	}
	if err := s.catalog.Reload(ctx, path); err != nil {
		if apierr.CodeOf(err) != "" {
			return err
		}
		// anything outside the storage taxonomy is a bad catalog file
		return apierr.Wrap(apierr.KindValidation, apierr.CodeInvalidArgument, op, err)
	}
	s.log.Info("catalog reloaded", "admin_id", adminID, "path", path)
	return nil
}
