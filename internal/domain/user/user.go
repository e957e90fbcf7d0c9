package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Tier string

const (
	TierFree         Tier = "FREE"
	TierProfessional Tier = "PROFESSIONAL"
	TierEnterprise   Tier = "ENTERPRISE"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierProfessional, TierEnterprise:
		return true
	}
	return false
}

// Paid reports whether the tier comes from a completed payment.
func (t Tier) Paid() bool {
	return t == TierProfessional || t == TierEnterprise
}

// Rank orders tiers from FREE upwards; unknown tiers rank below FREE.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 1
	case TierProfessional:
		return 2
	case TierEnterprise:
		return 3
	}
	return 0
}

type User struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email            string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password         string     `gorm:"not null;column:password" json:"-"`
	Name             string     `gorm:"not null;column:name" json:"name"`
	CompanyName      string     `gorm:"column:company_name" json:"company_name"`
	CompanyRut       string     `gorm:"column:company_rut" json:"company_rut"`
	Phone            string     `gorm:"column:phone" json:"phone"`
	SubscriptionTier Tier       `gorm:"not null;default:FREE;index;column:subscription_tier" json:"subscription_tier"`
	Role             Role       `gorm:"not null;default:USER;column:role" json:"role"`
	EmailVerifiedAt  *time.Time `gorm:"column:email_verified_at" json:"email_verified_at,omitempty"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	LoginCount       int        `gorm:"not null;default:0;column:login_count" json:"login_count"`
	UTMSource        string     `gorm:"column:utm_source" json:"utm_source,omitempty"`
	UTMMedium        string     `gorm:"column:utm_medium" json:"utm_medium,omitempty"`
	UTMCampaign      string     `gorm:"column:utm_campaign" json:"utm_campaign,omitempty"`
	AcceptsMarketing bool       `gorm:"not null;default:false;column:accepts_marketing" json:"accepts_marketing"`
	CreatedAt        time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "user" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.SubscriptionTier == "" {
		u.SubscriptionTier = TierFree
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (u *User) EmailVerified() bool { return u.EmailVerifiedAt != nil }
