package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/http/response"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService) *AuthHandler {
	return &AuthHandler{log: log.With("handler", "AuthHandler"), authService: authService}
}

type sessionResponse struct {
	User *types.User `json:"user,omitempty"`
	*services.Session
}

// POST /auth/register
func (ah *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email            string `json:"email" binding:"required,email"`
		Password         string `json:"password" binding:"required"`
		Name             string `json:"name"`
		CompanyName      string `json:"companyName"`
		CompanyRut       string `json:"companyRut"`
		Phone            string `json:"phone"`
		AcceptsMarketing bool   `json:"acceptsMarketing"`
		UTMSource        string `json:"utmSource"`
		UTMMedium        string `json:"utmMedium"`
		UTMCampaign      string `json:"utmCampaign"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, err := ah.authService.Register(c.Request.Context(), services.RegisterInput{
		Email:            req.Email,
		Password:         req.Password,
		Name:             req.Name,
		CompanyName:      req.CompanyName,
		CompanyRut:       req.CompanyRut,
		Phone:            req.Phone,
		AcceptsMarketing: req.AcceptsMarketing,
		UTMSource:        req.UTMSource,
		UTMMedium:        req.UTMMedium,
		UTMCampaign:      req.UTMCampaign,
	})
	if err != nil {
		response.RespondAPIError(c, ah.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"user": user})
}

// POST /auth/login
func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, session, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.RespondAPIError(c, ah.log, err)
		return
	}
	response.RespondOK(c, sessionResponse{User: user, Session: session})
}

// POST /auth/refresh
func (ah *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !bindJSON(c, &req) {
		return
	}
	session, err := ah.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.RespondAPIError(c, ah.log, err)
		return
	}
	response.RespondOK(c, sessionResponse{Session: session})
}

// POST /auth/logout
func (ah *AuthHandler) Logout(c *gin.Context) {
	if err := ah.authService.Logout(c.Request.Context()); err != nil {
		response.RespondAPIError(c, ah.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// POST /auth/send-verification
func (ah *AuthHandler) SendVerification(c *gin.Context) {
	if err := ah.authService.SendVerification(c.Request.Context()); err != nil {
		response.RespondAPIError(c, ah.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// POST /auth/verify-email
func (ah *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := ah.authService.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		response.RespondAPIError(c, ah.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// POST /auth/forgot-password answers the same way whether or not the account exists.
func (ah *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := ah.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		ah.log.Warn("Forgot password failed", "error", err)
	}
	response.RespondOK(c, gin.H{
		"ok":      true,
		"message": "Si el correo está registrado, recibirás instrucciones para restablecer tu contraseña.",
	})
}

// POST /auth/reset-password
func (ah *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := ah.authService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		response.RespondAPIError(c, ah.log, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
