package policy

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/domain/user"
)

type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// StepPayloads maps a step number ("1".."12") to the payload the client saved for it.
type StepPayloads map[string]json.RawMessage

type Policy struct {
	ID             uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID                        `gorm:"type:uuid;not null;index" json:"user_id"`
	User           *user.User                       `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Name           string                           `gorm:"not null;column:name" json:"name"`
	Status         Status                           `gorm:"not null;default:DRAFT;index;column:status" json:"status"`
	CurrentStep    int                              `gorm:"not null;default:1;column:current_step" json:"current_step"`
	CompletedSteps datatypes.JSONSlice[int]         `gorm:"column:completed_steps" json:"completed_steps"`
	StepData       datatypes.JSONType[StepPayloads] `gorm:"column:step_data" json:"step_data"`
	CompletionPct  int                              `gorm:"not null;default:0;column:completion_pct" json:"completion_pct"`
	Version        int                              `gorm:"not null;default:1;column:version" json:"version"`
	ShareToken     *string                          `gorm:"uniqueIndex;column:share_token" json:"share_token,omitempty"`
	SharedAt       *time.Time                       `gorm:"column:shared_at" json:"shared_at,omitempty"`
	RowVersion     int64                            `gorm:"not null;default:0;column:row_version" json:"row_version"`
	CreatedAt      time.Time                        `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time                        `gorm:"not null;index" json:"updated_at"`
}

func (Policy) TableName() string { return "policy" }

func (p *Policy) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.CurrentStep == 0 {
		p.CurrentStep = 1
	}
	if p.Version == 0 {
		p.Version = 1
	}
	if p.CompletedSteps == nil {
		p.CompletedSteps = datatypes.JSONSlice[int]{}
	}
	if p.StepData.Data() == nil {
		p.StepData = datatypes.NewJSONType(StepPayloads{})
	}
	return nil
}

// Payloads returns a copy of the stored step payloads.
func (p *Policy) Payloads() StepPayloads {
	src := p.StepData.Data()
	out := make(StepPayloads, len(src))
	for k, v := range src {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func (p *Policy) Complete() bool { return p.CompletionPct == 100 }
