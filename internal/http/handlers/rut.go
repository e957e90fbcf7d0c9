package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/modules/rut"
)

type RutHandler struct{}

func NewRutHandler() *RutHandler { return &RutHandler{} }

// POST /rut/validate
// body: { "rut": "76.086.428-5" }
func (h *RutHandler) Validate(c *gin.Context) {
	var req struct {
		Rut string `json:"rut"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if !rut.Validate(req.Rut) {
		response.RespondOK(c, gin.H{"valid": false})
		return
	}
	response.RespondOK(c, gin.H{"valid": true, "formatted": rut.Format(req.Rut)})
}
