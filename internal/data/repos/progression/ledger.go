package progression

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/progression-backend/internal/data/db"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

type LedgerRepo interface {
	// Insert records the entry unless its key was already applied.
	Insert(dbc dbctx.Context, e *types.LedgerEntry) (bool, error)
	GetByKey(dbc dbctx.Context, userID uuid.UUID, key types.SourceKey) (*types.LedgerEntry, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.LedgerEntry, error)
	Count(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type ledgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLedgerRepo(db *gorm.DB, baseLog *logger.Logger) LedgerRepo {
	return &ledgerRepo{db: db, log: baseLog.With("repo", "LedgerRepo")}
}

func (r *ledgerRepo) Insert(dbc dbctx.Context, e *types.LedgerEntry) (bool, error) {
	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(e)
	if res.Error != nil {
		return false, db.MapError("ledger.insert", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *ledgerRepo) GetByKey(dbc dbctx.Context, userID uuid.UUID, key types.SourceKey) (*types.LedgerEntry, error) {
	var e types.LedgerEntry
	err := dbc.DB(r.db).
		Where("user_id = ? AND source_type = ? AND source_id = ?", userID, key.Type, key.ID).
		Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError("ledger.get_by_key", err)
	}
	return &e, nil
}

func (r *ledgerRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*types.LedgerEntry
	err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, db.MapError("ledger.list", err)
	}
	return out, nil
}

func (r *ledgerRepo) Count(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.LedgerEntry{}).Where("user_id = ?", userID).Count(&n).Error
	return n, db.MapError("ledger.count", err)
}
