package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/http"
	httpH "github.com/yungbote/politicas-backend/internal/http/handlers"
	httpMW "github.com/yungbote/politicas-backend/internal/http/middleware"
	"github.com/yungbote/politicas-backend/internal/observability"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type Handlers struct {
	Health       *httpH.HealthHandler
	Auth         *httpH.AuthHandler
	User         *httpH.UserHandler
	Policy       *httpH.PolicyHandler
	Export       *httpH.ExportHandler
	Payment      *httpH.PaymentHandler
	Notification *httpH.NotificationHandler
	Analytics    *httpH.AnalyticsHandler
	Admin        *httpH.AdminHandler
	Rut          *httpH.RutHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, s Services, clock clockwork.Clock) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       httpH.NewHealthHandler(db),
		Auth:         httpH.NewAuthHandler(log, s.Auth),
		User:         httpH.NewUserHandler(log, s.User),
		Policy:       httpH.NewPolicyHandler(log, s.Policy, s.Version),
		Export:       httpH.NewExportHandler(log, s.Export),
		Payment:      httpH.NewPaymentHandler(log, s.Billing),
		Notification: httpH.NewNotificationHandler(log, s.Notification),
		Analytics:    httpH.NewAnalyticsHandler(log, s.Analytics),
		Admin:        httpH.NewAdminHandler(log, s.Admin, clock),
		Rut:          httpH.NewRutHandler(),
	}
}

// RouterOptions carries the per-process router settings.
type RouterOptions struct {
	ServiceName       string
	AllowedOrigins    []string
	SimulationEnabled bool
	Metrics           *observability.Metrics
}

func wireRouter(log *logger.Logger, s Services, h Handlers, opts RouterOptions) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:                 log,
		Metrics:             opts.Metrics,
		ServiceName:         opts.ServiceName,
		AllowedOrigins:      opts.AllowedOrigins,
		SimulationEnabled:   opts.SimulationEnabled,
		AuthMiddleware:      httpMW.NewAuthMiddleware(log, s.Auth),
		HealthHandler:       h.Health,
		AuthHandler:         h.Auth,
		UserHandler:         h.User,
		PolicyHandler:       h.Policy,
		ExportHandler:       h.Export,
		PaymentHandler:      h.Payment,
		NotificationHandler: h.Notification,
		AnalyticsHandler:    h.Analytics,
		AdminHandler:        h.Admin,
		RutHandler:          h.Rut,
	})
}

// BuildRouter wires repos, services and handlers over an open database.
func BuildRouter(db *gorm.DB, log *logger.Logger, cfg Config, c Clients, clock clockwork.Clock, metrics *observability.Metrics) (*gin.Engine, Services) {
	r := wireRepos(db, log)
	s := wireServices(db, log, cfg, r, c, clock)
	h := wireHandlers(db, log, s, clock)
	router := wireRouter(log, s, h, RouterOptions{
		ServiceName:       cfg.ServiceName,
		AllowedOrigins:    cfg.AllowedOrigins,
		SimulationEnabled: cfg.SimulationEnabled(),
		Metrics:           metrics,
	})
	return router, s
}
