package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// RequestLogger emits one line per request. 5xx log at error, 4xx at warn.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"route", routeOf(c),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		// RequireAuth replaces the request, so read the context after Next.
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			fields = append(fields, "request_id", rd.RequestID, "trace_id", rd.TraceID)
			if rd.UserID != uuid.Nil {
				fields = append(fields, "user_id", rd.UserID.String())
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}

// routeOf prefers the registered pattern so ids do not explode label sets.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
