package domain

import (
	"github.com/yungbote/politicas-backend/internal/domain/analytics"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/domain/auth"
	"github.com/yungbote/politicas-backend/internal/domain/billing"
	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/domain/user"
)

type User = user.User
type Tier = user.Tier
type Role = user.Role
type Capability = user.Capability

type UserToken = auth.UserToken
type UserIdentity = auth.UserIdentity
type VerificationToken = auth.VerificationToken

type Policy = policy.Policy
type PolicyStatus = policy.Status
type StepPayloads = policy.StepPayloads
type PolicyVersion = policy.PolicyVersion
type PolicyDownload = policy.PolicyDownload
type ExportFormat = policy.Format

type Payment = billing.Payment
type PaymentStatus = billing.Status
type PaymentPeriod = billing.Period
type PaymentMetadata = billing.PaymentMetadata

type AuditLog = audit.AuditLog

type WizardAnalytics = analytics.WizardAnalytics
type WizardAction = analytics.Action

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{
		&User{},
		&UserToken{},
		&UserIdentity{},
		&VerificationToken{},
		&Policy{},
		&PolicyVersion{},
		&PolicyDownload{},
		&Payment{},
		&AuditLog{},
		&WizardAnalytics{},
	}
}
