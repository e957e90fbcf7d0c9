package auth

import (
	"errors"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type VerificationTokenRepo interface {
	Create(dbc dbctx.Context, token *types.VerificationToken) error
	// GetByHash returns nil, nil when no row matches.
	GetByHash(dbc dbctx.Context, tokenHash string) (*types.VerificationToken, error)
	DeleteByIdentifiers(dbc dbctx.Context, identifiers []string) error
	DeleteByHash(dbc dbctx.Context, tokenHash string) (int64, error)
	DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error)
}

type verificationTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVerificationTokenRepo(db *gorm.DB, baseLog *logger.Logger) VerificationTokenRepo {
	return &verificationTokenRepo{db: db, log: baseLog.With("repo", "VerificationTokenRepo")}
}

func (r *verificationTokenRepo) Create(dbc dbctx.Context, token *types.VerificationToken) error {
	return dbc.DB(r.db).Create(token).Error
}

func (r *verificationTokenRepo) GetByHash(dbc dbctx.Context, tokenHash string) (*types.VerificationToken, error) {
	var out types.VerificationToken
	err := dbc.DB(r.db).Where("token_hash = ?", tokenHash).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *verificationTokenRepo) DeleteByIdentifiers(dbc dbctx.Context, identifiers []string) error {
	if len(identifiers) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("identifier IN ?", identifiers).Delete(&types.VerificationToken{}).Error
}

// DeleteByHash reports how many rows it removed so callers can detect a
// concurrent consumer that got there first.
func (r *verificationTokenRepo) DeleteByHash(dbc dbctx.Context, tokenHash string) (int64, error) {
	res := dbc.DB(r.db).Where("token_hash = ?", tokenHash).Delete(&types.VerificationToken{})
	return res.RowsAffected, res.Error
}

func (r *verificationTokenRepo) DeleteExpired(dbc dbctx.Context, now time.Time) (int64, error) {
	res := dbc.DB(r.db).Where("expires_at < ?", now).Delete(&types.VerificationToken{})
	return res.RowsAffected, res.Error
}
