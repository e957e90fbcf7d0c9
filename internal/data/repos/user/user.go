package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/db"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

var ErrDuplicateEmail = errors.New("email already registered")

type ListFilter struct {
	Query  string
	Tier   user.Tier
	Role   user.Role
	Limit  int
	Offset int
}

type UserRepo interface {
	Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error)
	GetByIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.User, error)
	GetByEmails(dbc dbctx.Context, userEmails []string) ([]*types.User, error)
	EmailExists(dbc dbctx.Context, userEmail string) (bool, error)
	UpdateFields(dbc dbctx.Context, userID uuid.UUID, fields map[string]any) error
	RecordLogin(dbc dbctx.Context, userID uuid.UUID, at time.Time) error
	List(dbc dbctx.Context, filter ListFilter) ([]*types.User, int64, error)
	ListAfter(dbc dbctx.Context, afterCreated time.Time, afterID uuid.UUID, limit int) ([]*types.User, error)
	CountByTier(dbc dbctx.Context) (map[user.Tier]int64, error)
	CountCreatedSince(dbc dbctx.Context, since time.Time) (int64, error)
	FullDeleteByIDs(dbc dbctx.Context, userIDs []uuid.UUID) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (ur *userRepo) Create(dbc dbctx.Context, users []*types.User) ([]*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}

	if len(users) == 0 {
		return []*types.User{}, nil
	}
	for _, u := range users {
		u.Email = normalizeEmail(u.Email)
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&users).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return users, nil
}

func (ur *userRepo) GetByIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}

	var results []*types.User

	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) GetByEmails(dbc dbctx.Context, userEmails []string) ([]*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}

	var results []*types.User
	if len(userEmails) == 0 {
		return results, nil
	}
	emails := make([]string, 0, len(userEmails))
	for _, e := range userEmails {
		emails = append(emails, normalizeEmail(e))
	}

	if err := transaction.WithContext(dbc.Ctx).
		Where("email IN ?", emails).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) EmailExists(dbc dbctx.Context, userEmail string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}

	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.User{}).
		Where("email = ?", normalizeEmail(userEmail)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (ur *userRepo) UpdateFields(dbc dbctx.Context, userID uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return dbc.DB(ur.db).
		Model(&types.User{}).
		Where("id = ?", userID).
		Updates(fields).Error
}

func (ur *userRepo) RecordLogin(dbc dbctx.Context, userID uuid.UUID, at time.Time) error {
	return dbc.DB(ur.db).
		Model(&types.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"last_login_at": at,
			"login_count":   gorm.Expr("login_count + 1"),
		}).Error
}

func (ur *userRepo) List(dbc dbctx.Context, filter ListFilter) ([]*types.User, int64, error) {
	q := dbc.DB(ur.db).Model(&types.User{})
	if s := strings.TrimSpace(filter.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ? OR LOWER(company_name) LIKE ?", like, like, like)
	}
	if filter.Tier != "" {
		q = q.Where("subscription_tier = ?", filter.Tier)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var results []*types.User
	if err := q.Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// ListAfter pages through all users in (created_at, id) order.
// Pass a zero time and uuid.Nil to start from the beginning.
func (ur *userRepo) ListAfter(dbc dbctx.Context, afterCreated time.Time, afterID uuid.UUID, limit int) ([]*types.User, error) {
	if limit <= 0 {
		limit = 500
	}
	q := dbc.DB(ur.db).Model(&types.User{})
	if !afterCreated.IsZero() {
		q = q.Where("created_at > ? OR (created_at = ? AND id > ?)", afterCreated, afterCreated, afterID)
	}
	var results []*types.User
	if err := q.Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) CountByTier(dbc dbctx.Context) (map[user.Tier]int64, error) {
	var rows []struct {
		SubscriptionTier user.Tier
		Count            int64
	}
	if err := dbc.DB(ur.db).
		Model(&types.User{}).
		Select("subscription_tier, COUNT(*) AS count").
		Group("subscription_tier").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[user.Tier]int64{
		user.TierFree:         0,
		user.TierProfessional: 0,
		user.TierEnterprise:   0,
	}
	for _, r := range rows {
		out[r.SubscriptionTier] = r.Count
	}
	return out, nil
}

func (ur *userRepo) CountCreatedSince(dbc dbctx.Context, since time.Time) (int64, error) {
	var count int64
	err := dbc.DB(ur.db).
		Model(&types.User{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (ur *userRepo) FullDeleteByIDs(dbc dbctx.Context, userIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ur.db
	}

	if len(userIDs) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", userIDs).
		Delete(&types.User{}).Error
}
