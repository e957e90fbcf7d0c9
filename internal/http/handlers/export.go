package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

type ExportHandler struct {
	log     *logger.Logger
	exports services.ExportService
}

func NewExportHandler(log *logger.Logger, exports services.ExportService) *ExportHandler {
	return &ExportHandler{log: log.With("handler", "ExportHandler"), exports: exports}
}

// GET /policies/:id/generate/:format
func (h *ExportHandler) Generate(c *gin.Context) {
	h.generate(c, policy.Format(strings.ToUpper(strings.TrimSpace(c.Param("format")))))
}

// POST /policies/:id/generate/docx
func (h *ExportHandler) GenerateDOCX(c *gin.Context) {
	h.generate(c, policy.FormatDOCX)
}

func (h *ExportHandler) generate(c *gin.Context, format policy.Format) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	art, err := h.exports.Generate(c.Request.Context(), id, format)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	c.Header("X-Watermarked", strconv.FormatBool(art.Watermarked))
	attachment(c, "attachment", art.Filename, art.ContentType, art.Data)
}

// GET /policies/:id/downloads
func (h *ExportHandler) ListDownloads(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	list, err := h.exports.ListDownloads(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"downloads": list})
}

// GET /public/policies/:token
func (h *ExportHandler) SharedPolicy(c *gin.Context) {
	art, err := h.exports.SharedHTML(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	attachment(c, "inline", art.Filename, art.ContentType, art.Data)
}

// GET /public/policies/:token/preview.png
func (h *ExportHandler) SharedPreview(c *gin.Context) {
	art, err := h.exports.SharedPreview(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	attachment(c, "inline", art.Filename, art.ContentType, art.Data)
}
