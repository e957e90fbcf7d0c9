package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// SessionRepo stores login sessions. A session row backs exactly one access
// token and one refresh token.
type SessionRepo interface {
	Create(dbc dbctx.Context, s *types.UserToken) error
	// Get and GetByRefreshToken return nil, nil when no row matches.
	Get(dbc dbctx.Context, id uuid.UUID) (*types.UserToken, error)
	GetByRefreshToken(dbc dbctx.Context, refreshToken string) (*types.UserToken, error)
	// Delete reports the rows removed so a losing concurrent rotation can tell.
	Delete(dbc dbctx.Context, id uuid.UUID) (int64, error)
	// DeleteForUsers revokes every session of userIDs except those in keep.
	DeleteForUsers(dbc dbctx.Context, userIDs []uuid.UUID, keep ...uuid.UUID) (int64, error)
	DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, s *types.UserToken) error {
	return dbc.DB(r.db).Create(s).Error
}

func (r *sessionRepo) Get(dbc dbctx.Context, id uuid.UUID) (*types.UserToken, error) {
	return r.first(dbc, "id = ?", id)
}

func (r *sessionRepo) GetByRefreshToken(dbc dbctx.Context, refreshToken string) (*types.UserToken, error) {
	if refreshToken == "" {
		return nil, nil
	}
	return r.first(dbc, "refresh_token = ?", refreshToken)
}

func (r *sessionRepo) first(dbc dbctx.Context, query string, arg any) (*types.UserToken, error) {
	var out types.UserToken
	err := dbc.DB(r.db).Where(query, arg).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) Delete(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.UserToken{})
	return res.RowsAffected, res.Error
}

func (r *sessionRepo) DeleteForUsers(dbc dbctx.Context, userIDs []uuid.UUID, keep ...uuid.UUID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	q := dbc.DB(r.db).Where("user_id IN ?", userIDs)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	res := q.Delete(&types.UserToken{})
	return res.RowsAffected, res.Error
}

func (r *sessionRepo) DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error) {
	res := dbc.DB(r.db).Where("expires_at < ?", now).Delete(&types.UserToken{})
	return res.RowsAffected, res.Error
}
