package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/analytics"
	"github.com/yungbote/politicas-backend/internal/modules/wizard"
	"github.com/yungbote/politicas-backend/internal/observability"
	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

const (
	maxSessionIDLen    = 128
	maxErrorMessageLen = 1000
)

type WizardEvent struct {
	SessionID    string           `json:"sessionId"`
	PolicyID     *uuid.UUID       `json:"policyId,omitempty"`
	Step         int              `json:"step"`
	Action       analytics.Action `json:"action"`
	TimeSpentSec *int             `json:"timeSpentSec,omitempty"`
	ErrorMessage *string          `json:"errorMessage,omitempty"`
}

// AnalyticsService ingests wizard telemetry. Record never fails the caller:
// malformed or unstorable events are logged and dropped.
type AnalyticsService interface {
	Record(ctx context.Context, ev WizardEvent)
}

type analyticsService struct {
	log  *logger.Logger
	repo repos.WizardAnalyticsRepo
}

func NewAnalyticsService(log *logger.Logger, repo repos.WizardAnalyticsRepo) AnalyticsService {
	return &analyticsService{
		log:  log.With("service", "AnalyticsService"),
		repo: repo,
	}
}

func (as *analyticsService) Record(ctx context.Context, ev WizardEvent) {
	ev.SessionID = strings.TrimSpace(ev.SessionID)
	if ev.SessionID == "" || len(ev.SessionID) > maxSessionIDLen ||
		ev.Step < 1 || ev.Step > wizard.TotalSteps || !ev.Action.Valid() {
		as.log.Debug("Dropping malformed wizard event", "step", ev.Step, "action", ev.Action)
		return
	}
	row := &types.WizardAnalytics{
		ID:           uuid.New(),
		SessionID:    ev.SessionID,
		PolicyID:     ev.PolicyID,
		Step:         ev.Step,
		Action:       ev.Action,
		TimeSpentSec: ev.TimeSpentSec,
	}
	if row.TimeSpentSec != nil && *row.TimeSpentSec < 0 {
		row.TimeSpentSec = nil
	}
	if ev.ErrorMessage != nil {
		msg := *ev.ErrorMessage
		if len(msg) > maxErrorMessageLen {
			msg = strings.ToValidUTF8(msg[:maxErrorMessageLen], "")
		}
		row.ErrorMessage = &msg
	}
	if uid := ctxutil.UserID(ctx); uid != uuid.Nil {
		row.UserID = &uid
	}
	if err := as.repo.Create(dbctx.Context{Ctx: ctx}, []*types.WizardAnalytics{row}); err != nil {
		as.log.Warn("Wizard event not stored", "error", err)
		return
	}
	observability.Current().IncWizardEvent(string(ev.Action))
}
