package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if log != nil {
			log.Error("Panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		}
		response.Abort(c, http.StatusInternalServerError, "internal_error", "internal server error")
	})
}
