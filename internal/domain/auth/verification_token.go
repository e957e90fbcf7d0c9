package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "verify"
	PurposePasswordReset     TokenPurpose = "reset"
)

// VerificationToken stores only the sha256 of a single-use token.
type VerificationToken struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Identifier string    `gorm:"not null;index;column:identifier" json:"identifier"`
	TokenHash  string    `gorm:"not null;uniqueIndex;column:token_hash" json:"-"`
	ExpiresAt  time.Time `gorm:"not null;index;column:expires_at" json:"expires_at"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (VerificationToken) TableName() string { return "verification_token" }

func (v *VerificationToken) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
