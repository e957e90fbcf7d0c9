package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/services"
)

func wireRepos(db *gorm.DB, log *logger.Logger) services.AccountRepos {
	log.Info("Wiring repos...")
	return services.AccountRepos{
		Users:              repos.NewUserRepo(db, log),
		Sessions:           repos.NewSessionRepo(db, log),
		UserIdentities:     repos.NewUserIdentityRepo(db, log),
		VerificationTokens: repos.NewVerificationTokenRepo(db, log),
		Policies:           repos.NewPolicyRepo(db, log),
		PolicyVersions:     repos.NewPolicyVersionRepo(db, log),
		PolicyDownloads:    repos.NewPolicyDownloadRepo(db, log),
		Payments:           repos.NewPaymentRepo(db, log),
		AuditLogs:          repos.NewAuditLogRepo(db, log),
		WizardAnalytics:    repos.NewWizardAnalyticsRepo(db, log),
	}
}
