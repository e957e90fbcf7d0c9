package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
)

func TestAttachRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen ctxutil.RequestData
	r := gin.New()
	r.Use(AttachRequestContext())
	r.GET("/x", func(c *gin.Context) {
		seen = *ctxutil.GetRequestData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("User-Agent", "go-test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen.RequestID == "" || rec.Header().Get(HeaderRequestID) != seen.RequestID {
		t.Fatalf("request id not echoed: ctx=%q header=%q", seen.RequestID, rec.Header().Get(HeaderRequestID))
	}
	if seen.TraceID != seen.RequestID {
		t.Fatalf("without a span the trace id falls back to the request id, got %q", seen.TraceID)
	}
	if seen.UserAgent != "go-test" || seen.ClientIP == "" {
		t.Fatalf("client not recorded: %+v", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	req.Header.Set(HeaderTraceID, "trace-1")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if seen.RequestID != "req-1" || seen.TraceID != "trace-1" {
		t.Fatalf("inbound ids ignored: %+v", seen)
	}
}
