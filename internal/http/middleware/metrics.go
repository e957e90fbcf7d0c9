package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/politicas-backend/internal/observability"
)

// Metrics records per-route request counts and latency. A nil registry is a no-op.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		release := m.TrackInflight()
		start := time.Now()
		c.Next()
		release()
		m.ObserveAPI(c.Request.Method, routeOf(c), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
