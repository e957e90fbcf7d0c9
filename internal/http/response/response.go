package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type APIError struct {
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func envelope(c *gin.Context, e APIError) ErrorEnvelope {
	if c.Request != nil {
		e.RequestID = ctxutil.RequestID(c.Request.Context())
	}
	return ErrorEnvelope{Error: e}
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, envelope(c, APIError{Message: msg, Code: code}))
}

// RespondAPIError renders classified errors as-is. Anything else becomes a
// generic 500 and the cause only reaches the log.
func RespondAPIError(c *gin.Context, log *logger.Logger, err error) {
	ae, ok := apierr.As(err)
	if !ok {
		ae = apierr.New(http.StatusInternalServerError, "internal_error", errors.New("internal server error"))
	}
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError && err != nil {
		_ = c.Error(err)
		if log != nil {
			log.Error("Request failed", "route", c.FullPath(), "code", ae.Code, "error", err)
		}
	}
	c.JSON(status, envelope(c, APIError{Message: ae.Error(), Code: ae.Code, Fields: ae.Fields}))
}

// Abort is RespondError for middleware: the chain stops after writing.
func Abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, envelope(c, APIError{Message: msg, Code: code}))
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
