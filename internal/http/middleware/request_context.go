package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderTraceID   = "X-Trace-Id"
)

// AttachRequestContext stamps request and trace ids and records the caller's
// address for audit and download rows. Inbound ids are honored.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := &ctxutil.RequestData{
			RequestID: strings.TrimSpace(c.GetHeader(HeaderRequestID)),
			TraceID:   strings.TrimSpace(c.GetHeader(HeaderTraceID)),
			ClientIP:  c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		if rd.RequestID == "" {
			rd.RequestID = uuid.NewString()
		}
		if rd.TraceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				rd.TraceID = sc.TraceID().String()
			} else {
				rd.TraceID = rd.RequestID
			}
		}

		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		h := c.Writer.Header()
		h.Set(HeaderRequestID, rd.RequestID)
		h.Set(HeaderTraceID, rd.TraceID)
		c.Next()
	}
}
