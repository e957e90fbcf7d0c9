package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

type NotificationHandler struct {
	log           *logger.Logger
	notifications services.NotificationService
}

func NewNotificationHandler(log *logger.Logger, notifications services.NotificationService) *NotificationHandler {
	return &NotificationHandler{log: log.With("handler", "NotificationHandler"), notifications: notifications}
}

// GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.notifications.List(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"notifications": list})
}
