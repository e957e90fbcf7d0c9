package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/politicas-backend/internal/domain/user"
	httpH "github.com/yungbote/politicas-backend/internal/http/handlers"
	httpMW "github.com/yungbote/politicas-backend/internal/http/middleware"
	"github.com/yungbote/politicas-backend/internal/observability"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string
	// SimulationEnabled registers POST /payments/simulate. It is never set in production.
	SimulationEnabled bool

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler       *httpH.HealthHandler
	AuthHandler         *httpH.AuthHandler
	UserHandler         *httpH.UserHandler
	PolicyHandler       *httpH.PolicyHandler
	ExportHandler       *httpH.ExportHandler
	PaymentHandler      *httpH.PaymentHandler
	NotificationHandler *httpH.NotificationHandler
	AnalyticsHandler    *httpH.AnalyticsHandler
	AdminHandler        *httpH.AdminHandler
	RutHandler          *httpH.RutHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(httpMW.Recovery(cfg.Log))
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/auth/register", cfg.AuthHandler.Register)
			api.POST("/auth/login", cfg.AuthHandler.Login)
			api.POST("/auth/refresh", cfg.AuthHandler.Refresh)
			api.POST("/auth/verify-email", cfg.AuthHandler.VerifyEmail)
			api.POST("/auth/forgot-password", cfg.AuthHandler.ForgotPassword)
			api.POST("/auth/reset-password", cfg.AuthHandler.ResetPassword)
		}

		// Provider callbacks and public links
		if cfg.PaymentHandler != nil {
			api.POST("/payments/webhook", cfg.PaymentHandler.Webhook)
			api.GET("/payments/plans", cfg.PaymentHandler.Plans)
		}
		if cfg.ExportHandler != nil {
			api.GET("/public/policies/:token", cfg.ExportHandler.SharedPolicy)
			api.GET("/public/policies/:token/preview.png", cfg.ExportHandler.SharedPreview)
		}
		if cfg.RutHandler != nil {
			api.POST("/rut/validate", cfg.RutHandler.Validate)
		}
		if cfg.AnalyticsHandler != nil {
			wizard := api.Group("/analytics")
			if cfg.AuthMiddleware != nil {
				wizard.Use(cfg.AuthMiddleware.OptionalAuth())
			}
			wizard.POST("/wizard", cfg.AnalyticsHandler.RecordWizard)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Auth (protected)
		if cfg.AuthHandler != nil {
			protected.POST("/auth/logout", cfg.AuthHandler.Logout)
			protected.POST("/auth/send-verification", cfg.AuthHandler.SendVerification)
		}

		// User (Me)
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
			protected.PATCH("/me", cfg.UserHandler.UpdateMe)
			protected.PATCH("/me/password", cfg.UserHandler.ChangePassword)
			protected.DELETE("/me", cfg.UserHandler.DeleteMe)
		}

		// Policies
		if cfg.PolicyHandler != nil {
			protected.GET("/policies", cfg.PolicyHandler.List)
			protected.POST("/policies", cfg.PolicyHandler.Create)
			protected.GET("/policies/:id", cfg.PolicyHandler.Get)
			protected.PATCH("/policies/:id", cfg.PolicyHandler.Update)
			protected.DELETE("/policies/:id", cfg.PolicyHandler.Delete)
			protected.GET("/policies/:id/progress", cfg.PolicyHandler.Progress)
			protected.PATCH("/policies/:id/steps/:step", cfg.PolicyHandler.SaveStep)
			protected.POST("/policies/:id/duplicate", cfg.PolicyHandler.Duplicate)
			protected.POST("/policies/:id/share", cfg.PolicyHandler.Share)
			protected.DELETE("/policies/:id/share", cfg.PolicyHandler.Unshare)
			protected.GET("/policies/:id/versions", cfg.PolicyHandler.ListVersions)
			protected.POST("/policies/:id/versions", cfg.PolicyHandler.CreateVersion)
			protected.GET("/policies/:id/versions/:versionId", cfg.PolicyHandler.GetVersion)
		}

		// Exports
		if cfg.ExportHandler != nil {
			protected.GET("/policies/:id/generate/:format", cfg.ExportHandler.Generate)
			protected.POST("/policies/:id/generate/docx", cfg.ExportHandler.GenerateDOCX)
			protected.GET("/policies/:id/downloads", cfg.ExportHandler.ListDownloads)
		}

		// Payments
		if cfg.PaymentHandler != nil {
			protected.POST("/payments/checkout", cfg.PaymentHandler.Checkout)
			protected.GET("/payments", cfg.PaymentHandler.History)
			if cfg.SimulationEnabled {
				protected.POST("/payments/simulate", cfg.PaymentHandler.Simulate)
			}
		}

		// Notifications
		if cfg.NotificationHandler != nil {
			protected.GET("/notifications", cfg.NotificationHandler.List)
		}

		// Admin
		if cfg.AdminHandler != nil {
			admin := protected.Group("/admin")
			admin.GET("/stats", httpMW.RequireCapability(user.CapViewAnalytics), cfg.AdminHandler.Stats)
			admin.GET("/analytics/wizard", httpMW.RequireCapability(user.CapViewAnalytics), cfg.AdminHandler.WizardFunnel)
			admin.GET("/users", httpMW.RequireCapability(user.CapViewUsers), cfg.AdminHandler.ListUsers)
			admin.PATCH("/users/:id", httpMW.RequireCapability(user.CapEditUserTier), cfg.AdminHandler.UpdateUser)
			admin.GET("/audit-logs", httpMW.RequireCapability(user.CapViewAuditLogs), cfg.AdminHandler.AuditLogs)
			admin.GET("/export/users", httpMW.RequireCapability(user.CapExportUsers), cfg.AdminHandler.ExportUsers)
		}
	}

	return r
}
