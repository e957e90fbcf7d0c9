package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/domain/user"
)

// UserIdentity links an account to an external identity provider subject.
type UserIdentity struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	User          *user.User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Provider      string     `gorm:"not null;column:provider;uniqueIndex:idx_user_identity_provider_sub,priority:1" json:"provider"`
	ProviderSub   string     `gorm:"not null;column:provider_sub;uniqueIndex:idx_user_identity_provider_sub,priority:2" json:"provider_sub"`
	Email         string     `gorm:"column:email" json:"email"`
	EmailVerified bool       `gorm:"not null;default:false;column:email_verified" json:"email_verified"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

func (UserIdentity) TableName() string { return "user_identity" }

func (i *UserIdentity) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
