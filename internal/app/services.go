package app

import (
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

type Services struct {
	Audit        services.AuditService
	Tokens       services.TokenService
	Mailer       services.Mailer
	Auth         services.AuthService
	User         services.UserService
	Policy       services.PolicyService
	Version      services.PolicyVersionService
	Export       services.ExportService
	Billing      services.BillingService
	Notification services.NotificationService
	Analytics    services.AnalyticsService
	Admin        services.AdminService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r services.AccountRepos, c Clients, clock clockwork.Clock) Services {
	log.Info("Wiring services...")
	var s Services
	s.Audit = services.NewAuditService(db, log, r.AuditLogs)
	s.Tokens = services.NewTokenService(db, log, r.VerificationTokens, clock)
	s.Mailer = services.NewMailer(log, c.SendGrid, cfg.AppBaseURL)
	s.Auth = services.NewAuthService(db, log, r.Users, r.Sessions, s.Tokens, s.Mailer, s.Audit, clock, services.AuthConfig{
		JWTSecretKey: cfg.JWTSecretKey,
		AccessTTL:    cfg.AccessTokenTTL,
		RefreshTTL:   cfg.RefreshTokenTTL,
	})
	s.User = services.NewUserService(db, log, r, s.Audit)
	s.Policy = services.NewPolicyService(db, log, r.Users, r.Policies, r.PolicyVersions, r.PolicyDownloads, s.Audit, c.Locker, clock)
	s.Version = services.NewPolicyVersionService(db, log, r.Policies, r.PolicyVersions, s.Audit, c.Locker)
	s.Export = services.NewExportService(db, log, r.Users, r.Policies, r.PolicyDownloads, s.Policy, s.Audit, c.Archive, clock)
	s.Billing = services.NewBillingService(db, log, r.Users, r.Payments, s.Audit, c.MercadoPago, clock, services.BillingConfig{
		Production:    cfg.Production,
		AppBaseURL:    cfg.AppBaseURL,
		APIBaseURL:    cfg.APIBaseURL,
		WebhookSecret: cfg.MercadoPago.WebhookSecret,
	})
	s.Notification = services.NewNotificationService(log, r.Users, r.Policies, r.PolicyDownloads, clock)
	s.Analytics = services.NewAnalyticsService(log, r.WizardAnalytics)
	s.Admin = services.NewAdminService(db, log, r.Users, r.Policies, r.PolicyDownloads, r.Payments, r.WizardAnalytics, s.Audit, clock)
	return s
}
