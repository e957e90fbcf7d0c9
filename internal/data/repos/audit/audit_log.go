package audit

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type ListFilter struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   string
	Limit        int
	Offset       int
}

type AuditLogRepo interface {
	Create(dbc dbctx.Context, logs []*types.AuditLog) error
	List(dbc dbctx.Context, filter ListFilter) ([]*types.AuditLog, int64, error)
	FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error
}

type auditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) AuditLogRepo {
	return &auditLogRepo{db: db, log: baseLog.With("repo", "AuditLogRepo")}
}

func (r *auditLogRepo) Create(dbc dbctx.Context, logs []*types.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&logs).Error
}

func (r *auditLogRepo) List(dbc dbctx.Context, filter ListFilter) ([]*types.AuditLog, int64, error) {
	q := dbc.DB(r.db).Model(&types.AuditLog{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.ResourceType != "" {
		q = q.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		q = q.Where("resource_id = ?", filter.ResourceID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*types.AuditLog
	if err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *auditLogRepo) FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("user_id IN ?", userIDs).Delete(&types.AuditLog{}).Error
}
