package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

type PolicyHandler struct {
	log      *logger.Logger
	policies services.PolicyService
	versions services.PolicyVersionService
}

func NewPolicyHandler(log *logger.Logger, policies services.PolicyService, versions services.PolicyVersionService) *PolicyHandler {
	return &PolicyHandler{
		log:      log.With("handler", "PolicyHandler"),
		policies: policies,
		versions: versions,
	}
}

// GET /policies
func (h *PolicyHandler) List(c *gin.Context) {
	list, err := h.policies.List(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"policies": list})
}

// POST /policies
// body: { "name": "..." } (optional)
func (h *PolicyHandler) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	p, err := h.policies.Create(c.Request.Context(), req.Name)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"policy": p})
}

// GET /policies/:id
func (h *PolicyHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.policies.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"policy": p})
}

// PATCH /policies/:id
func (h *PolicyHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name *string `json:"name"`
	}
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.policies.Update(c.Request.Context(), id, services.PolicyUpdate{Name: req.Name})
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"policy": p})
}

// DELETE /policies/:id
func (h *PolicyHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.policies.Delete(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// GET /policies/:id/progress
func (h *PolicyHandler) Progress(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	progress, err := h.policies.Progress(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, progress)
}

// PATCH /policies/:id/steps/:step
// body: { "data": { ... } }
func (h *PolicyHandler) SaveStep(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	step, err := strconv.Atoi(strings.TrimSpace(c.Param("step")))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_step", err)
		return
	}
	var req struct {
		Data json.RawMessage `json:"data"`
	}
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.policies.SaveStep(c.Request.Context(), id, step, req.Data)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"policy": p})
}

// POST /policies/:id/duplicate
func (h *PolicyHandler) Duplicate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.policies.Duplicate(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"policy": p})
}

// POST /policies/:id/share
func (h *PolicyHandler) Share(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.policies.Share(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{
		"share_token": p.ShareToken,
		"shared_at":   p.SharedAt,
	})
}

// DELETE /policies/:id/share
func (h *PolicyHandler) Unshare(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.policies.Unshare(c.Request.Context(), id); err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// GET /policies/:id/versions
func (h *PolicyHandler) ListVersions(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	list, err := h.versions.List(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, list)
}

// POST /policies/:id/versions
// body: { "notes": "..." } (optional)
func (h *PolicyHandler) CreateVersion(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	v, err := h.versions.Create(c.Request.Context(), id, req.Notes)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"version": v})
}

// GET /policies/:id/versions/:versionId
func (h *PolicyHandler) GetVersion(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	versionID, ok := uuidParam(c, "versionId")
	if !ok {
		return
	}
	v, err := h.versions.Get(c.Request.Context(), id, versionID)
	if err != nil {
		response.RespondAPIError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"version": v})
}
