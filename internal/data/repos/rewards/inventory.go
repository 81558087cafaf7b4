package rewards

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/progression-backend/internal/data/db"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

type InventoryRepo interface {
	// Insert adds the row; false means the ownership key is already held.
	Insert(dbc dbctx.Context, it *types.InventoryItem) (bool, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.InventoryItem, error)
	GetOwned(dbc dbctx.Context, userID, id uuid.UUID) (*types.InventoryItem, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.InventoryItem, error)
	ListByStatus(dbc dbctx.Context, status string, limit int) ([]*types.InventoryItem, error)
	// Transition moves status from -> to; false means it was not in from.
	Transition(dbc dbctx.Context, id uuid.UUID, from, to string, extra map[string]interface{}) (bool, error)
	ActiveBoosts(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.InventoryItem, error)
	HasActiveBoost(dbc dbctx.Context, userID uuid.UUID, boostType string, now time.Time) (bool, error)
	UnequipCategory(dbc dbctx.Context, userID uuid.UUID, category string, except uuid.UUID) error
	Equip(dbc dbctx.Context, userID, id uuid.UUID) (bool, error)
	ExpireLapsed(dbc dbctx.Context, userID uuid.UUID, now time.Time) (int64, error)
	ReleaseOwnership(dbc dbctx.Context, id uuid.UUID) error
}

type inventoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInventoryRepo(db *gorm.DB, baseLog *logger.Logger) InventoryRepo {
	return &inventoryRepo{db: db, log: baseLog.With("repo", "InventoryRepo")}
}

func (r *inventoryRepo) Insert(dbc dbctx.Context, it *types.InventoryItem) (bool, error) {
	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(it)
	if res.Error != nil {
		return false, db.MapError("inventory.insert", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *inventoryRepo) Get(dbc dbctx.Context, id uuid.UUID) (*types.InventoryItem, error) {
	var it types.InventoryItem
	err := dbc.DB(r.db).Where("id = ?", id).Take(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError("inventory.get", err)
	}
	return &it, nil
}

func (r *inventoryRepo) GetOwned(dbc dbctx.Context, userID, id uuid.UUID) (*types.InventoryItem, error) {
	var it types.InventoryItem
	err := dbc.DB(r.db).Where("id = ? AND user_id = ?", id, userID).Take(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError("inventory.get_owned", err)
	}
	return &it, nil
}

func (r *inventoryRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.InventoryItem, error) {
	var out []*types.InventoryItem
	err := dbc.DB(r.db).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, db.MapError("inventory.list", err)
	}
	return out, nil
}

func (r *inventoryRepo) ListByStatus(dbc dbctx.Context, status string, limit int) ([]*types.InventoryItem, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*types.InventoryItem
	err := dbc.DB(r.db).Where("status = ?", status).Order("created_at ASC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, db.MapError("inventory.list_by_status", err)
	}
	return out, nil
}

func (r *inventoryRepo) Transition(dbc dbctx.Context, id uuid.UUID, from, to string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := dbc.DB(r.db).Model(&types.InventoryItem{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, db.MapError("inventory.transition", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *inventoryRepo) ActiveBoosts(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.InventoryItem, error) {
	var out []*types.InventoryItem
	err := dbc.DB(r.db).
		Where("user_id = ? AND boost_type <> '' AND active_until IS NOT NULL AND active_until > ?", userID, now).
		Order("active_until ASC").
		Find(&out).Error
	if err != nil {
		return nil, db.MapError("inventory.active_boosts", err)
	}
	return out, nil
}

func (r *inventoryRepo) HasActiveBoost(dbc dbctx.Context, userID uuid.UUID, boostType string, now time.Time) (bool, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.InventoryItem{}).
		Where("user_id = ? AND boost_type = ? AND active_until IS NOT NULL AND active_until > ?", userID, boostType, now).
		Count(&n).Error
	if err != nil {
		return false, db.MapError("inventory.has_active_boost", err)
	}
	return n > 0, nil
}

func (r *inventoryRepo) UnequipCategory(dbc dbctx.Context, userID uuid.UUID, category string, except uuid.UUID) error {
	err := dbc.DB(r.db).Model(&types.InventoryItem{}).
		Where("user_id = ? AND category = ? AND is_equipped = ? AND id <> ?", userID, category, true, except).
		Update("is_equipped", false).Error
	return db.MapError("inventory.unequip_category", err)
}

func (r *inventoryRepo) Equip(dbc dbctx.Context, userID, id uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).Model(&types.InventoryItem{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, types.StatusActive).
		Update("is_equipped", true)
	if res.Error != nil {
		return false, db.MapError("inventory.equip", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *inventoryRepo) ExpireLapsed(dbc dbctx.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := dbc.DB(r.db).Model(&types.InventoryItem{}).
		Where("user_id = ? AND status = ? AND expires_at IS NOT NULL AND expires_at <= ?", userID, types.StatusActive, now).
		Updates(map[string]interface{}{
			"status":      types.StatusExpired,
			"is_equipped": false,
			"updated_at":  now,
		})
	if res.Error != nil {
		return 0, db.MapError("inventory.expire_lapsed", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *inventoryRepo) ReleaseOwnership(dbc dbctx.Context, id uuid.UUID) error {
	err := dbc.DB(r.db).Model(&types.InventoryItem{}).
		Where("id = ?", id).
		Update("ownership_key", gorm.Expr("NULL")).Error
	return db.MapError("inventory.release_ownership", err)
}
