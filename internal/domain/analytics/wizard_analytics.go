package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Action string

const (
	ActionStarted   Action = "started"
	ActionCompleted Action = "completed"
	ActionAbandoned Action = "abandoned"
	ActionError     Action = "error"
)

func (a Action) Valid() bool {
	switch a {
	case ActionStarted, ActionCompleted, ActionAbandoned, ActionError:
		return true
	}
	return false
}

// WizardAnalytics is one client-reported wizard interaction.
type WizardAnalytics struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID    string     `gorm:"not null;index;column:session_id" json:"session_id"`
	UserID       *uuid.UUID `gorm:"type:uuid;index;column:user_id" json:"user_id,omitempty"`
	PolicyID     *uuid.UUID `gorm:"type:uuid;index;column:policy_id" json:"policy_id,omitempty"`
	Step         int        `gorm:"not null;index:idx_wizard_analytics_step_action,priority:1;column:step" json:"step"`
	Action       Action     `gorm:"not null;index:idx_wizard_analytics_step_action,priority:2;column:action" json:"action"`
	TimeSpentSec *int       `gorm:"column:time_spent_sec" json:"time_spent_sec,omitempty"`
	ErrorMessage *string    `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;index" json:"created_at"`
}

func (WizardAnalytics) TableName() string { return "wizard_analytics" }

func (w *WizardAnalytics) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
