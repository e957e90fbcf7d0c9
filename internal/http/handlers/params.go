package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
)

// uuidParam parses a path parameter and answers 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

var bindingMessages = map[string]string{
	"required": "Este campo es obligatorio",
	"email":    "El correo no es válido",
	"max":      "El valor es demasiado largo",
}

// bindJSON decodes the body and checks its binding tags. Tag failures come
// back as validation_failed with one Spanish message per JSON field.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		response.RespondAPIError(c, nil, apierr.Validation(bindingFields(verrs)))
		return false
	}
	response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
	return false
}

func bindingFields(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := bindingMessages[fe.Tag()]
		if !ok {
			msg = "El valor no es válido"
		}
		key := jsonName(fe.Field())
		if _, seen := out[key]; !seen {
			out[key] = msg
		}
	}
	return out
}

// jsonName maps a Go field name to the lowerCamel key the API uses.
func jsonName(field string) string {
	r, size := utf8.DecodeRuneInString(field)
	if r == utf8.RuneError {
		return field
	}
	return string(unicode.ToLower(r)) + field[size:]
}

// attachment writes a file download with the given disposition.
func attachment(c *gin.Context, disposition, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", disposition+`; filename="`+filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, data)
}
