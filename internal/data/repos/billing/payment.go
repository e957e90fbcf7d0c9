package billing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/billing"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type PaymentRepo interface {
	Create(dbc dbctx.Context, p *types.Payment) error
	// GetByID returns nil, nil when missing. lock adds FOR UPDATE where supported.
	GetByID(dbc dbctx.Context, paymentID uuid.UUID, lock bool) (*types.Payment, error)
	GetByExternalID(dbc dbctx.Context, externalID string) (*types.Payment, error)
	ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.Payment, error)
	UpdateFields(dbc dbctx.Context, paymentID uuid.UUID, fields map[string]any) error
	// Transition moves a payment to `to` only if its current status is one of
	// from, reporting whether a row changed.
	Transition(dbc dbctx.Context, paymentID uuid.UUID, from []billing.Status, to billing.Status, fields map[string]any) (bool, error)
	CountByStatus(dbc dbctx.Context) (map[billing.Status]int64, error)
	SumCompletedSince(dbc dbctx.Context, since time.Time) (int64, error)
	FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error
}

type paymentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPaymentRepo(db *gorm.DB, baseLog *logger.Logger) PaymentRepo {
	repoLog := baseLog.With("repo", "PaymentRepo")
	return &paymentRepo{db: db, log: repoLog}
}

func (pr *paymentRepo) Create(dbc dbctx.Context, p *types.Payment) error {
	return dbc.DB(pr.db).Create(p).Error
}

func (pr *paymentRepo) GetByID(dbc dbctx.Context, paymentID uuid.UUID, lock bool) (*types.Payment, error) {
	q := dbc.DB(pr.db)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var out types.Payment
	err := q.Where("id = ?", paymentID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (pr *paymentRepo) GetByExternalID(dbc dbctx.Context, externalID string) (*types.Payment, error) {
	var out types.Payment
	err := dbc.DB(pr.db).Where("external_id = ?", externalID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (pr *paymentRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID) ([]*types.Payment, error) {
	var out []*types.Payment
	if err := dbc.DB(pr.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (pr *paymentRepo) UpdateFields(dbc dbctx.Context, paymentID uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return dbc.DB(pr.db).
		Model(&types.Payment{}).
		Where("id = ?", paymentID).
		Updates(fields).Error
}

func (pr *paymentRepo) Transition(dbc dbctx.Context, paymentID uuid.UUID, from []billing.Status, to billing.Status, fields map[string]any) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to
	res := dbc.DB(pr.db).
		Model(&types.Payment{}).
		Where("id = ? AND status IN ?", paymentID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (pr *paymentRepo) CountByStatus(dbc dbctx.Context) (map[billing.Status]int64, error) {
	var rows []struct {
		Status billing.Status
		Count  int64
	}
	if err := dbc.DB(pr.db).
		Model(&types.Payment{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[billing.Status]int64{
		billing.StatusPending:   0,
		billing.StatusCompleted: 0,
		billing.StatusFailed:    0,
		billing.StatusRefunded:  0,
	}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

func (pr *paymentRepo) SumCompletedSince(dbc dbctx.Context, since time.Time) (int64, error) {
	var total int64
	q := dbc.DB(pr.db).
		Model(&types.Payment{}).
		Where("status = ?", billing.StatusCompleted)
	if !since.IsZero() {
		q = q.Where("completed_at >= ?", since)
	}
	if err := q.Select("COALESCE(SUM(amount), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (pr *paymentRepo) FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return dbc.DB(pr.db).Where("user_id IN ?", userIDs).Delete(&types.Payment{}).Error
}
