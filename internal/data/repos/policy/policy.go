package policy

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type PolicyRepo interface {
	Create(dbc dbctx.Context, policies []*types.Policy) ([]*types.Policy, error)
	GetByIDs(dbc dbctx.Context, policyIDs []uuid.UUID) ([]*types.Policy, error)
	GetByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.Policy, error)
	// GetOwned returns nil, nil when the policy is missing or belongs to someone else.
	GetOwned(dbc dbctx.Context, policyID, userID uuid.UUID) (*types.Policy, error)
	GetByShareToken(dbc dbctx.Context, token string) (*types.Policy, error)
	// UpdateState writes the wizard state only if row_version still equals
	// expected. It reports false when another writer got there first.
	UpdateState(dbc dbctx.Context, p *types.Policy, expected int64) (bool, error)
	UpdateFields(dbc dbctx.Context, policyID uuid.UUID, fields map[string]any) error
	CountByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	CountByStatus(dbc dbctx.Context) (map[policy.Status]int64, error)
	FullDeleteByIDs(dbc dbctx.Context, policyIDs []uuid.UUID) error
	FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error
}

type policyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPolicyRepo(db *gorm.DB, baseLog *logger.Logger) PolicyRepo {
	repoLog := baseLog.With("repo", "PolicyRepo")
	return &policyRepo{db: db, log: repoLog}
}

func (pr *policyRepo) Create(dbc dbctx.Context, policies []*types.Policy) ([]*types.Policy, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}

	if len(policies) == 0 {
		return []*types.Policy{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

func (pr *policyRepo) GetByIDs(dbc dbctx.Context, policyIDs []uuid.UUID) ([]*types.Policy, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}

	var results []*types.Policy
	if len(policyIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", policyIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *policyRepo) GetByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.Policy, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}

	var results []*types.Policy
	if len(userIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id IN ?", userIDs).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *policyRepo) GetOwned(dbc dbctx.Context, policyID, userID uuid.UUID) (*types.Policy, error) {
	var out types.Policy
	err := dbc.DB(pr.db).
		Where("id = ? AND user_id = ?", policyID, userID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (pr *policyRepo) GetByShareToken(dbc dbctx.Context, token string) (*types.Policy, error) {
	if token == "" {
		return nil, nil
	}
	var out types.Policy
	err := dbc.DB(pr.db).Where("share_token = ?", token).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (pr *policyRepo) UpdateState(dbc dbctx.Context, p *types.Policy, expected int64) (bool, error) {
	res := dbc.DB(pr.db).
		Model(&types.Policy{}).
		Where("id = ? AND row_version = ?", p.ID, expected).
		Updates(map[string]any{
			"status":          p.Status,
			"current_step":    p.CurrentStep,
			"completed_steps": p.CompletedSteps,
			"step_data":       p.StepData,
			"completion_pct":  p.CompletionPct,
			"row_version":     expected + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	p.RowVersion = expected + 1
	return true, nil
}

func (pr *policyRepo) UpdateFields(dbc dbctx.Context, policyID uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["row_version"] = gorm.Expr("row_version + 1")
	return dbc.DB(pr.db).
		Model(&types.Policy{}).
		Where("id = ?", policyID).
		Updates(updates).Error
}

func (pr *policyRepo) CountByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		UserID uuid.UUID
		Count  int64
	}
	if err := dbc.DB(pr.db).
		Model(&types.Policy{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ?", userIDs).
		Group("user_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.UserID] = r.Count
	}
	return out, nil
}

func (pr *policyRepo) CountByStatus(dbc dbctx.Context) (map[policy.Status]int64, error) {
	var rows []struct {
		Status policy.Status
		Count  int64
	}
	if err := dbc.DB(pr.db).
		Model(&types.Policy{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[policy.Status]int64{
		policy.StatusDraft:      0,
		policy.StatusInProgress: 0,
		policy.StatusCompleted:  0,
	}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

func (pr *policyRepo) FullDeleteByIDs(dbc dbctx.Context, policyIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}
	if len(policyIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", policyIDs).
		Delete(&types.Policy{}).Error
}

func (pr *policyRepo) FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}
	if len(userIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("user_id IN ?", userIDs).
		Delete(&types.Policy{}).Error
}
