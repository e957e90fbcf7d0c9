package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action tags written to the audit trail.
const (
	ActionUserRegistered      = "user.registered"
	ActionUserLogin           = "user.login"
	ActionUserEmailVerified   = "user.email_verified"
	ActionUserPasswordReset   = "user.password_reset"
	ActionUserPasswordChanged = "user.password_changed"
	ActionUserProfileUpdated  = "user.profile_updated"
	ActionUserTierUpgraded    = "user.tier_upgraded"
	ActionUserAdminUpdated    = "user.admin_updated"
	ActionPolicyCreated       = "policy.created"
	ActionPolicyUpdated       = "policy.updated"
	ActionPolicyDeleted       = "policy.deleted"
	ActionPolicyDuplicated    = "policy.duplicated"
	ActionPolicyStepSaved     = "policy.step_saved"
	ActionPolicyVersionCreate = "policy.version_created"
	ActionPolicyExported      = "policy.exported"
	ActionPolicyShared        = "policy.shared"
	ActionPolicyUnshared      = "policy.unshared"
	ActionPaymentCreated      = "payment.created"
	ActionPaymentCompleted    = "payment.completed"
	ActionPaymentFailed       = "payment.failed"
	ActionPaymentRefunded     = "payment.refunded"
	ActionUsersExported       = "admin.users_exported"
)

const (
	ResourceUser    = "user"
	ResourcePolicy  = "policy"
	ResourcePayment = "payment"
)

type AuditLog struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       *uuid.UUID     `gorm:"type:uuid;index;column:user_id" json:"user_id,omitempty"`
	Action       string         `gorm:"not null;index;column:action" json:"action"`
	ResourceType string         `gorm:"not null;column:resource_type" json:"resource_type"`
	ResourceID   string         `gorm:"index;column:resource_id" json:"resource_id"`
	Details      datatypes.JSON `gorm:"column:details" json:"details,omitempty"`
	IPAddress    string         `gorm:"column:ip_address" json:"ip_address,omitempty"`
	UserAgent    string         `gorm:"column:user_agent" json:"user_agent,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_log" }

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
