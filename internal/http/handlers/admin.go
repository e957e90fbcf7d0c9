package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

type AdminHandler struct {
	log   *logger.Logger
	admin services.AdminService
	clock clockwork.Clock
}

func NewAdminHandler(log *logger.Logger, admin services.AdminService, clock clockwork.Clock) *AdminHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AdminHandler{log: log.With("handler", "AdminHandler"), admin: admin, clock: clock}
}

// GET /admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, stats)
}

// GET /admin/analytics/wizard?days=30
func (h *AdminHandler) WizardFunnel(c *gin.Context) {
	funnel, err := h.admin.WizardFunnel(c.Request.Context(), intQuery(c, "days", 0))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, funnel)
}

// GET /admin/users?q=&tier=&role=&limit=&offset=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	filter := repos.UserListFilter{
		Query:  strings.TrimSpace(c.Query("q")),
		Tier:   user.Tier(strings.ToUpper(strings.TrimSpace(c.Query("tier")))),
		Role:   user.Role(strings.ToUpper(strings.TrimSpace(c.Query("role")))),
		Limit:  intQuery(c, "limit", 0),
		Offset: intQuery(c, "offset", 0),
	}
	list, total, err := h.admin.ListUsers(c.Request.Context(), filter)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"users": list, "total": total})
}

// PATCH /admin/users/:id
// body: { "subscriptionTier": "ENTERPRISE", "role": "ADMIN" } (both optional)
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		SubscriptionTier *user.Tier `json:"subscriptionTier"`
		Role             *user.Role `json:"role"`
	}
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.admin.UpdateUser(c.Request.Context(), id, services.AdminUserUpdate{
		Tier: req.SubscriptionTier,
		Role: req.Role,
	})
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"user": u})
}

// GET /admin/audit-logs?user_id=&action=&resource_type=&resource_id=&limit=&offset=
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	filter := repos.AuditLogFilter{
		Action:       strings.TrimSpace(c.Query("action")),
		ResourceType: strings.TrimSpace(c.Query("resource_type")),
		ResourceID:   strings.TrimSpace(c.Query("resource_id")),
		Limit:        intQuery(c, "limit", 0),
		Offset:       intQuery(c, "offset", 0),
	}
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		uid, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
			return
		}
		filter.UserID = &uid
	}
	logs, total, err := h.admin.ListAuditLogs(c.Request.Context(), filter)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"audit_logs": logs, "total": total})
}

// GET /admin/export/users
// The CSV is streamed; once the first byte is out, failures can only be logged.
func (h *AdminHandler) ExportUsers(c *gin.Context) {
	if err := services.CanExportUsers(c.Request.Context()); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	filename := fmt.Sprintf("usuarios-%s.csv", h.clock.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if err := h.admin.ExportUsersCSV(c.Request.Context(), c.Writer); err != nil {
		h.log.Error("User export interrupted", "error", err)
	}
}
