package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/domain/user"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

func (p Period) Valid() bool { return p == PeriodMonthly || p == PeriodYearly }

const (
	ProviderMercadoPago = "mercadopago"
	ProviderSimulation  = "simulation"
)

// PaymentMetadata is what the checkout knew when the payment was opened.
type PaymentMetadata struct {
	Plan        user.Tier `json:"plan"`
	Period      Period    `json:"period"`
	CheckoutURL string    `json:"checkout_url,omitempty"`
	PlanName    string    `json:"plan_name,omitempty"`
}

type Payment struct {
	ID                uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID                           `gorm:"type:uuid;not null;index" json:"user_id"`
	User              *user.User                          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Plan              user.Tier                           `gorm:"not null;column:plan" json:"plan"`
	Period            Period                              `gorm:"not null;column:period" json:"period"`
	Amount            int64                               `gorm:"not null;column:amount" json:"amount"`
	Currency          string                              `gorm:"not null;default:CLP;column:currency" json:"currency"`
	Status            Status                              `gorm:"not null;default:PENDING;index;column:status" json:"status"`
	Provider          string                              `gorm:"not null;column:provider" json:"provider"`
	ExternalID        string                              `gorm:"not null;uniqueIndex;column:external_id" json:"external_id"`
	ProviderPaymentID string                              `gorm:"index;column:provider_payment_id" json:"provider_payment_id,omitempty"`
	ProviderStatus    string                              `gorm:"column:provider_status" json:"provider_status,omitempty"`
	Metadata          datatypes.JSONType[PaymentMetadata] `gorm:"column:metadata" json:"metadata"`
	CompletedAt       *time.Time                          `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt         time.Time                           `gorm:"not null;index" json:"created_at"`
	UpdatedAt         time.Time                           `gorm:"not null" json:"updated_at"`
}

func (Payment) TableName() string { return "payment" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Currency == "" {
		p.Currency = "CLP"
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	return nil
}
