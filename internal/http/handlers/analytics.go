package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

type AnalyticsHandler struct {
	log       *logger.Logger
	analytics services.AnalyticsService
}

func NewAnalyticsHandler(log *logger.Logger, analytics services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{log: log.With("handler", "AnalyticsHandler"), analytics: analytics}
}

// POST /analytics/wizard
// Telemetry never fails the client, malformed bodies included.
func (h *AnalyticsHandler) RecordWizard(c *gin.Context) {
	var ev services.WizardEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.log.Debug("Ignoring unreadable wizard event", "error", err)
		response.RespondOK(c, gin.H{"ok": true})
		return
	}
	h.analytics.Record(c.Request.Context(), ev)
	response.RespondOK(c, gin.H{"ok": true})
}
