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

type UserTitleRepo interface {
	Grant(dbc dbctx.Context, t *types.UserTitle) (bool, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserTitle, error)
}

type userTitleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserTitleRepo(db *gorm.DB, baseLog *logger.Logger) UserTitleRepo {
	return &userTitleRepo{db: db, log: baseLog.With("repo", "UserTitleRepo")}
}

func (r *userTitleRepo) Grant(dbc dbctx.Context, t *types.UserTitle) (bool, error) {
	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(t)
	if res.Error != nil {
		return false, db.MapError("user_title.grant", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *userTitleRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserTitle, error) {
	var out []*types.UserTitle
	err := dbc.DB(r.db).Where("user_id = ?", userID).Order("granted_at ASC").Find(&out).Error
	if err != nil {
		return nil, db.MapError("user_title.list", err)
	}
	return out, nil
}
