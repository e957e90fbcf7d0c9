package auth

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// UserIdentityRepo holds external identity links. Rows only ever leave with
// their account.
type UserIdentityRepo interface {
	// Link is idempotent on (provider, provider_sub).
	Link(dbc dbctx.Context, identity *types.UserIdentity) error
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserIdentity, error)
	DeleteForUsers(dbc dbctx.Context, userIDs []uuid.UUID) error
}

type userIdentityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserIdentityRepo(db *gorm.DB, baseLog *logger.Logger) UserIdentityRepo {
	return &userIdentityRepo{db: db, log: baseLog.With("repo", "UserIdentityRepo")}
}

func (r *userIdentityRepo) Link(dbc dbctx.Context, identity *types.UserIdentity) error {
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_sub"}},
			DoNothing: true,
		}).
		Create(identity).Error
}

func (r *userIdentityRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserIdentity, error) {
	var out []*types.UserIdentity
	err := dbc.DB(r.db).Where("user_id = ?", userID).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *userIdentityRepo) DeleteForUsers(dbc dbctx.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("user_id IN ?", userIDs).Delete(&types.UserIdentity{}).Error
}
