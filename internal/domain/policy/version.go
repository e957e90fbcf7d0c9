package policy

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PolicyVersion is an immutable snapshot of a policy's wizard state.
type PolicyVersion struct {
	ID             uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	PolicyID       uuid.UUID                        `gorm:"type:uuid;not null;uniqueIndex:idx_policy_version_number,priority:1" json:"policy_id"`
	Policy         *Policy                          `gorm:"constraint:OnDelete:CASCADE;foreignKey:PolicyID;references:ID" json:"-"`
	VersionNumber  int                              `gorm:"not null;uniqueIndex:idx_policy_version_number,priority:2;column:version_number" json:"version_number"`
	StepData       datatypes.JSONType[StepPayloads] `gorm:"column:step_data" json:"step_data"`
	CompletedSteps datatypes.JSONSlice[int]         `gorm:"column:completed_steps" json:"completed_steps"`
	CompletionPct  int                              `gorm:"not null;column:completion_pct" json:"completion_pct"`
	Notes          string                           `gorm:"column:notes" json:"notes"`
	CreatedBy      uuid.UUID                        `gorm:"type:uuid;not null;column:created_by" json:"created_by"`
	CreatedAt      time.Time                        `gorm:"not null" json:"created_at"`
}

func (PolicyVersion) TableName() string { return "policy_version" }

func (v *PolicyVersion) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

type Format string

const (
	FormatPDF  Format = "PDF"
	FormatDOCX Format = "DOCX"
	FormatHTML Format = "HTML"
)

func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatDOCX, FormatHTML:
		return true
	}
	return false
}

// PolicyDownload records one export. Rows are never updated.
type PolicyDownload struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PolicyID    uuid.UUID `gorm:"type:uuid;not null;index" json:"policy_id"`
	Policy      *Policy   `gorm:"constraint:OnDelete:CASCADE;foreignKey:PolicyID;references:ID" json:"-"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Format      Format    `gorm:"not null;column:format" json:"format"`
	Watermarked bool      `gorm:"not null;default:false;column:watermarked" json:"watermarked"`
	IPAddress   string    `gorm:"column:ip_address" json:"ip_address,omitempty"`
	UserAgent   string    `gorm:"column:user_agent" json:"user_agent,omitempty"`
	ArchiveKey  string    `gorm:"column:archive_key" json:"archive_key,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
}

func (PolicyDownload) TableName() string { return "policy_download" }

func (d *PolicyDownload) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
