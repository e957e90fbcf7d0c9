package policy

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type PolicyVersionRepo interface {
	Create(dbc dbctx.Context, v *types.PolicyVersion) error
	ListByPolicyID(dbc dbctx.Context, policyID uuid.UUID) ([]*types.PolicyVersion, error)
	// Get returns nil, nil when the snapshot does not exist under policyID.
	Get(dbc dbctx.Context, policyID, versionID uuid.UUID) (*types.PolicyVersion, error)
	FullDeleteByPolicyIDs(dbc dbctx.Context, policyIDs []uuid.UUID) error
}

type policyVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPolicyVersionRepo(db *gorm.DB, baseLog *logger.Logger) PolicyVersionRepo {
	return &policyVersionRepo{db: db, log: baseLog.With("repo", "PolicyVersionRepo")}
}

func (r *policyVersionRepo) Create(dbc dbctx.Context, v *types.PolicyVersion) error {
	return dbc.DB(r.db).Create(v).Error
}

func (r *policyVersionRepo) ListByPolicyID(dbc dbctx.Context, policyID uuid.UUID) ([]*types.PolicyVersion, error) {
	var out []*types.PolicyVersion
	if err := dbc.DB(r.db).
		Where("policy_id = ?", policyID).
		Order("version_number DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *policyVersionRepo) Get(dbc dbctx.Context, policyID, versionID uuid.UUID) (*types.PolicyVersion, error) {
	var out types.PolicyVersion
	err := dbc.DB(r.db).
		Where("id = ? AND policy_id = ?", versionID, policyID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *policyVersionRepo) FullDeleteByPolicyIDs(dbc dbctx.Context, policyIDs []uuid.UUID) error {
	if len(policyIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("policy_id IN ?", policyIDs).Delete(&types.PolicyVersion{}).Error
}
