package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// AuditEntry is one sensitive action about to be recorded.
type AuditEntry struct {
	Actor        *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
}

type AuditService interface {
	// Record writes the entry inside dbc.Tx when set, so the audit row commits
	// or rolls back with the action it describes.
	Record(dbc dbctx.Context, entries ...AuditEntry) error
	List(dbc dbctx.Context, filter repos.AuditLogFilter) ([]*types.AuditLog, int64, error)
}

type auditService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.AuditLogRepo
}

func NewAuditService(db *gorm.DB, log *logger.Logger, repo repos.AuditLogRepo) AuditService {
	return &auditService{
		db:   db,
		log:  log.With("service", "AuditService"),
		repo: repo,
	}
}

func (s *auditService) Record(dbc dbctx.Context, entries ...AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ip, ua := ctxutil.Client(dbc.Ctx)
	rows := make([]*types.AuditLog, 0, len(entries))
	for _, e := range entries {
		var details datatypes.JSON
		if len(e.Details) > 0 {
			raw, err := json.Marshal(e.Details)
			if err != nil {
				return fmt.Errorf("marshal audit details: %w", err)
			}
			details = datatypes.JSON(raw)
		}
		rows = append(rows, &types.AuditLog{
			UserID:       e.Actor,
			Action:       e.Action,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Details:      details,
			IPAddress:    ip,
			UserAgent:    ua,
		})
	}
	if err := s.repo.Create(dbc, rows); err != nil {
		s.log.Error("Failed to write audit log", "action", entries[0].Action, "error", err)
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func (s *auditService) List(dbc dbctx.Context, filter repos.AuditLogFilter) ([]*types.AuditLog, int64, error) {
	logs, total, err := s.repo.List(dbc, filter)
	if err != nil {
		return nil, 0, apierr.New(http.StatusInternalServerError, "audit_list_failed", err)
	}
	return logs, total, nil
}

func actorPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
