package policy

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type PolicyDownloadRepo interface {
	Create(dbc dbctx.Context, d *types.PolicyDownload) error
	ListByPolicyID(dbc dbctx.Context, policyID uuid.UUID) ([]*types.PolicyDownload, error)
	CountByPolicyIDs(dbc dbctx.Context, policyIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	CountByFormatSince(dbc dbctx.Context, since time.Time) (map[policy.Format]int64, error)
	FullDeleteByPolicyIDs(dbc dbctx.Context, policyIDs []uuid.UUID) error
	FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error
}

type policyDownloadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPolicyDownloadRepo(db *gorm.DB, baseLog *logger.Logger) PolicyDownloadRepo {
	return &policyDownloadRepo{db: db, log: baseLog.With("repo", "PolicyDownloadRepo")}
}

func (r *policyDownloadRepo) Create(dbc dbctx.Context, d *types.PolicyDownload) error {
	return dbc.DB(r.db).Create(d).Error
}

func (r *policyDownloadRepo) ListByPolicyID(dbc dbctx.Context, policyID uuid.UUID) ([]*types.PolicyDownload, error) {
	var out []*types.PolicyDownload
	if err := dbc.DB(r.db).
		Where("policy_id = ?", policyID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *policyDownloadRepo) CountByPolicyIDs(dbc dbctx.Context, policyIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(policyIDs))
	if len(policyIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		PolicyID uuid.UUID
		Count    int64
	}
	if err := dbc.DB(r.db).
		Model(&types.PolicyDownload{}).
		Select("policy_id, COUNT(*) AS count").
		Where("policy_id IN ?", policyIDs).
		Group("policy_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PolicyID] = row.Count
	}
	return out, nil
}

// CountByFormatSince counts exports per format; a zero since counts everything.
func (r *policyDownloadRepo) CountByFormatSince(dbc dbctx.Context, since time.Time) (map[policy.Format]int64, error) {
	q := dbc.DB(r.db).Model(&types.PolicyDownload{})
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var rows []struct {
		Format policy.Format
		Count  int64
	}
	if err := q.Select("format, COUNT(*) AS count").Group("format").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[policy.Format]int64{
		policy.FormatPDF:  0,
		policy.FormatDOCX: 0,
		policy.FormatHTML: 0,
	}
	for _, row := range rows {
		out[row.Format] = row.Count
	}
	return out, nil
}

func (r *policyDownloadRepo) FullDeleteByPolicyIDs(dbc dbctx.Context, policyIDs []uuid.UUID) error {
	if len(policyIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("policy_id IN ?", policyIDs).Delete(&types.PolicyDownload{}).Error
}

func (r *policyDownloadRepo) FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("user_id IN ?", userIDs).Delete(&types.PolicyDownload{}).Error
}
