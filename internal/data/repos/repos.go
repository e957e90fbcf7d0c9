package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos/analytics"
	"github.com/yungbote/politicas-backend/internal/data/repos/audit"
	"github.com/yungbote/politicas-backend/internal/data/repos/auth"
	"github.com/yungbote/politicas-backend/internal/data/repos/billing"
	"github.com/yungbote/politicas-backend/internal/data/repos/policy"
	"github.com/yungbote/politicas-backend/internal/data/repos/user"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type UserListFilter = user.ListFilter

type SessionRepo = auth.SessionRepo
type UserIdentityRepo = auth.UserIdentityRepo
type VerificationTokenRepo = auth.VerificationTokenRepo

type PolicyRepo = policy.PolicyRepo
type PolicyVersionRepo = policy.PolicyVersionRepo
type PolicyDownloadRepo = policy.PolicyDownloadRepo

type PaymentRepo = billing.PaymentRepo

type AuditLogRepo = audit.AuditLogRepo
type AuditLogFilter = audit.ListFilter

type WizardAnalyticsRepo = analytics.WizardAnalyticsRepo
type StepActionCount = analytics.StepActionCount

var ErrDuplicateEmail = user.ErrDuplicateEmail

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return auth.NewSessionRepo(db, baseLog)
}
func NewUserIdentityRepo(db *gorm.DB, baseLog *logger.Logger) UserIdentityRepo {
	return auth.NewUserIdentityRepo(db, baseLog)
}
func NewVerificationTokenRepo(db *gorm.DB, baseLog *logger.Logger) VerificationTokenRepo {
	return auth.NewVerificationTokenRepo(db, baseLog)
}

func NewPolicyRepo(db *gorm.DB, baseLog *logger.Logger) PolicyRepo {
	return policy.NewPolicyRepo(db, baseLog)
}
func NewPolicyVersionRepo(db *gorm.DB, baseLog *logger.Logger) PolicyVersionRepo {
	return policy.NewPolicyVersionRepo(db, baseLog)
}
func NewPolicyDownloadRepo(db *gorm.DB, baseLog *logger.Logger) PolicyDownloadRepo {
	return policy.NewPolicyDownloadRepo(db, baseLog)
}

func NewPaymentRepo(db *gorm.DB, baseLog *logger.Logger) PaymentRepo {
	return billing.NewPaymentRepo(db, baseLog)
}

func NewAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) AuditLogRepo {
	return audit.NewAuditLogRepo(db, baseLog)
}

func NewWizardAnalyticsRepo(db *gorm.DB, baseLog *logger.Logger) WizardAnalyticsRepo {
	return analytics.NewWizardAnalyticsRepo(db, baseLog)
}
