package rewards

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/progression-backend/internal/data/db"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

type BadgeUnlockRepo interface {
	// Insert claims the unlock; false means the actor already holds it.
	Insert(dbc dbctx.Context, u *types.BadgeUnlock) (bool, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.BadgeUnlock, error)
	HeldIDs(dbc dbctx.Context, userID uuid.UUID) (map[string]bool, error)
	SetCertificateURL(dbc dbctx.Context, userID uuid.UUID, badgeID, url string) error
	Count(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type badgeUnlockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBadgeUnlockRepo(db *gorm.DB, baseLog *logger.Logger) BadgeUnlockRepo {
	return &badgeUnlockRepo{db: db, log: baseLog.With("repo", "BadgeUnlockRepo")}
}

func (r *badgeUnlockRepo) Insert(dbc dbctx.Context, u *types.BadgeUnlock) (bool, error) {
	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(u)
	if res.Error != nil {
		return false, db.MapError("badge_unlock.insert", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *badgeUnlockRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.BadgeUnlock, error) {
	var out []*types.BadgeUnlock
	err := dbc.DB(r.db).Where("user_id = ?", userID).Order("unlocked_at ASC").Find(&out).Error
	if err != nil {
		return nil, db.MapError("badge_unlock.list", err)
	}
	return out, nil
}

func (r *badgeUnlockRepo) HeldIDs(dbc dbctx.Context, userID uuid.UUID) (map[string]bool, error) {
	var ids []string
	err := dbc.DB(r.db).Model(&types.BadgeUnlock{}).Where("user_id = ?", userID).Pluck("badge_id", &ids).Error
	if err != nil {
		return nil, db.MapError("badge_unlock.held_ids", err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *badgeUnlockRepo) SetCertificateURL(dbc dbctx.Context, userID uuid.UUID, badgeID, url string) error {
	err := dbc.DB(r.db).Model(&types.BadgeUnlock{}).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
		Update("certificate_url", url).Error
	return db.MapError("badge_unlock.set_certificate_url", err)
}

func (r *badgeUnlockRepo) Count(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.BadgeUnlock{}).Where("user_id = ?", userID).Count(&n).Error
	return n, db.MapError("badge_unlock.count", err)
}
