package catalog

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/progression-backend/internal/data/db"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

type CatalogRepo interface {
	ReplaceAll(dbc dbctx.Context, b *types.CatalogBundle) error
	LoadAll(dbc dbctx.Context) (*types.CatalogBundle, error)
	GetItem(dbc dbctx.Context, itemID string) (*types.MarketplaceItem, error)
	// DecrementStock takes one unit of limited stock; false means sold out.
	// Unlimited items always succeed.
	DecrementStock(dbc dbctx.Context, itemID string) (bool, error)
	IncrementStock(dbc dbctx.Context, itemID string) error
}

type catalogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogRepo(db *gorm.DB, baseLog *logger.Logger) CatalogRepo {
	return &catalogRepo{db: db, log: baseLog.With("repo", "CatalogRepo")}
}

// ReplaceAll upserts every row of b and deactivates games, badges,
// templates and items that b no longer lists. Skills are never removed
// because progress rows reference them.
func (r *catalogRepo) ReplaceAll(dbc dbctx.Context, b *types.CatalogBundle) error {
	return dbc.InTx(r.db, func(tx dbctx.Context) error {
		q := tx.DB(r.db)
		upsert := func(rows interface{}) error {
			return q.Clauses(clause.OnConflict{UpdateAll: true}).Create(rows).Error
		}

		if len(b.Levels) > 0 {
			if err := upsert(&b.Levels); err != nil {
				return db.MapError("catalog.levels", err)
			}
			if err := q.Where("level > ?", len(b.Levels)).Delete(&types.LevelThreshold{}).Error; err != nil {
				return db.MapError("catalog.levels_trim", err)
			}
		}
		if len(b.StreakRewards) > 0 {
			if err := upsert(&b.StreakRewards); err != nil {
				return db.MapError("catalog.streak_rewards", err)
			}
			if err := q.Where("day > ?", len(b.StreakRewards)).Delete(&types.StreakReward{}).Error; err != nil {
				return db.MapError("catalog.streak_rewards_trim", err)
			}
		}

		if len(b.Games) > 0 {
			if err := upsert(&b.Games); err != nil {
				return db.MapError("catalog.games", err)
			}
		}
		if err := deactivateMissing(q, &types.GameConfig{}, "game_type", gameIDs(b.Games)); err != nil {
			return db.MapError("catalog.games_deactivate", err)
		}

		if len(b.Skills) > 0 {
			if err := upsert(&b.Skills); err != nil {
				return db.MapError("catalog.skills", err)
			}
		}

		if len(b.Items) > 0 {
			// Stock is only set on first insert so a reload does not restock.
			err := q.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(itemColumnsOnReload),
			}).Create(&b.Items).Error
			if err != nil {
				return db.MapError("catalog.items", err)
			}
		}
		if err := deactivateMissing(q, &types.MarketplaceItem{}, "id", itemIDs(b.Items)); err != nil {
			return db.MapError("catalog.items_deactivate", err)
		}

		if len(b.Badges) > 0 {
			if err := upsert(&b.Badges); err != nil {
				return db.MapError("catalog.badges", err)
			}
		}
		if err := deactivateMissing(q, &types.Badge{}, "id", badgeIDs(b.Badges)); err != nil {
			return db.MapError("catalog.badges_deactivate", err)
		}

		if len(b.Missions) > 0 {
			if err := upsert(&b.Missions); err != nil {
				return db.MapError("catalog.missions", err)
			}
		}
		if err := deactivateMissing(q, &types.MissionTemplate{}, "id", missionIDs(b.Missions)); err != nil {
			return db.MapError("catalog.missions_deactivate", err)
		}
		return nil
	})
}

var itemColumnsOnReload = []string{
	"name", "description", "category", "price", "stackable", "requires_approval", "equippable",
	"boost_type", "boost_value", "boost_duration_minutes", "expires_after_days", "is_active", "updated_at",
}

func deactivateMissing(q *gorm.DB, model interface{}, col string, keep []string) error {
	stmt := q.Model(model).Where("is_active = ?", true)
	if len(keep) > 0 {
		stmt = stmt.Where(col+" NOT IN ?", keep)
	}
	return stmt.Update("is_active", false).Error
}

func (r *catalogRepo) LoadAll(dbc dbctx.Context) (*types.CatalogBundle, error) {
	q := dbc.DB(r.db)
	b := &types.CatalogBundle{}
	if err := q.Order("level ASC").Find(&b.Levels).Error; err != nil {
		return nil, db.MapError("catalog.load_levels", err)
	}
	if err := q.Order("day ASC").Find(&b.StreakRewards).Error; err != nil {
		return nil, db.MapError("catalog.load_streak_rewards", err)
	}
	if err := q.Order("game_type ASC").Find(&b.Games).Error; err != nil {
		return nil, db.MapError("catalog.load_games", err)
	}
	if err := q.Order("sort_order ASC, id ASC").Find(&b.Skills).Error; err != nil {
		return nil, db.MapError("catalog.load_skills", err)
	}
	if err := q.Order("id ASC").Find(&b.Badges).Error; err != nil {
		return nil, db.MapError("catalog.load_badges", err)
	}
	if err := q.Order("id ASC").Find(&b.Missions).Error; err != nil {
		return nil, db.MapError("catalog.load_missions", err)
	}
	if err := q.Order("id ASC").Find(&b.Items).Error; err != nil {
		return nil, db.MapError("catalog.load_items", err)
	}
	return b, nil
}

func (r *catalogRepo) GetItem(dbc dbctx.Context, itemID string) (*types.MarketplaceItem, error) {
	var it types.MarketplaceItem
	err := dbc.DB(r.db).Where("id = ?", itemID).Take(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError("catalog.get_item", err)
	}
	return &it, nil
}

func (r *catalogRepo) DecrementStock(dbc dbctx.Context, itemID string) (bool, error) {
	res := dbc.DB(r.db).Model(&types.MarketplaceItem{}).
		Where("id = ? AND stock IS NOT NULL AND stock > 0", itemID).
		Update("stock", gorm.Expr("stock - 1"))
	if res.Error != nil {
		return false, db.MapError("catalog.decrement_stock", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var unlimited int64
	err := dbc.DB(r.db).Model(&types.MarketplaceItem{}).
		Where("id = ? AND stock IS NULL", itemID).
		Count(&unlimited).Error
	if err != nil {
		return false, db.MapError("catalog.decrement_stock", err)
	}
	return unlimited > 0, nil
}

func (r *catalogRepo) IncrementStock(dbc dbctx.Context, itemID string) error {
	err := dbc.DB(r.db).Model(&types.MarketplaceItem{}).
		Where("id = ? AND stock IS NOT NULL", itemID).
		Update("stock", gorm.Expr("stock + 1")).Error
	return db.MapError("catalog.increment_stock", err)
}

func gameIDs(in []*types.GameConfig) []string {
	out := make([]string, 0, len(in))
	for _, g := range in {
		out = append(out, g.GameType)
	}
	return out
}

func itemIDs(in []*types.MarketplaceItem) []string {
	out := make([]string, 0, len(in))
	for _, it := range in {
		out = append(out, it.ID)
	}
	return out
}

func badgeIDs(in []*types.Badge) []string {
	out := make([]string, 0, len(in))
	for _, b := range in {
		out = append(out, b.ID)
	}
	return out
}

func missionIDs(in []*types.MissionTemplate) []string {
	out := make([]string, 0, len(in))
	for _, m := range in {
		out = append(out, m.ID)
	}
	return out
}
