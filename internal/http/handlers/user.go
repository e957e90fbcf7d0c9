package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

type UserHandler struct {
	log         *logger.Logger
	userService services.UserService
}

func NewUserHandler(log *logger.Logger, userService services.UserService) *UserHandler {
	return &UserHandler{log: log.With("handler", "UserHandler"), userService: userService}
}

// GET /me
func (uh *UserHandler) GetMe(c *gin.Context) {
	me, err := uh.userService.GetMe(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondAPIError(c, uh.log, err)
		return
	}
	response.RespondOK(c, gin.H{"user": me})
}

// PATCH /me
// Only the fields present in the body are changed.
func (uh *UserHandler) UpdateMe(c *gin.Context) {
	var req struct {
		Name             *string `json:"name"`
		CompanyName      *string `json:"companyName"`
		CompanyRut       *string `json:"companyRut"`
		Phone            *string `json:"phone"`
		AcceptsMarketing *bool   `json:"acceptsMarketing"`
	}
	if !bindJSON(c, &req) {
		return
	}
	u, err := uh.userService.UpdateProfile(c.Request.Context(), services.ProfileUpdate{
		Name:             req.Name,
		CompanyName:      req.CompanyName,
		CompanyRut:       req.CompanyRut,
		Phone:            req.Phone,
		AcceptsMarketing: req.AcceptsMarketing,
	})
	if err != nil {
		response.RespondAPIError(c, uh.log, err)
		return
	}
	response.RespondOK(c, gin.H{"user": u})
}

// PATCH /me/password
func (uh *UserHandler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := uh.userService.ChangePassword(c.Request.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		response.RespondAPIError(c, uh.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// DELETE /me
// body: { "password": "..." }
func (uh *UserHandler) DeleteMe(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := uh.userService.DeleteAccount(c.Request.Context(), req.Password); err != nil {
		response.RespondAPIError(c, uh.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
