package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/analytics"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// StepActionCount is one (step, action) cell of the wizard funnel.
type StepActionCount struct {
	Step         int
	Action       analytics.Action
	Count        int64
	AvgTimeSpent float64
}

type WizardAnalyticsRepo interface {
	Create(dbc dbctx.Context, rows []*types.WizardAnalytics) error
	CountByStepAction(dbc dbctx.Context, since time.Time) ([]StepActionCount, error)
	CountSessions(dbc dbctx.Context, since time.Time) (int64, error)
	// DetachUserIDs keeps the events but forgets who produced them.
	DetachUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error
}

type wizardAnalyticsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWizardAnalyticsRepo(db *gorm.DB, baseLog *logger.Logger) WizardAnalyticsRepo {
	return &wizardAnalyticsRepo{db: db, log: baseLog.With("repo", "WizardAnalyticsRepo")}
}

func (r *wizardAnalyticsRepo) Create(dbc dbctx.Context, rows []*types.WizardAnalytics) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&rows).Error
}

func (r *wizardAnalyticsRepo) CountByStepAction(dbc dbctx.Context, since time.Time) ([]StepActionCount, error) {
	q := dbc.DB(r.db).Model(&types.WizardAnalytics{})
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var out []StepActionCount
	if err := q.
		Select("step, action, COUNT(*) AS count, COALESCE(AVG(time_spent_sec), 0) AS avg_time_spent").
		Group("step, action").
		Order("step ASC").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *wizardAnalyticsRepo) CountSessions(dbc dbctx.Context, since time.Time) (int64, error) {
	q := dbc.DB(r.db).Model(&types.WizardAnalytics{})
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var n int64
	err := q.Distinct("session_id").Count(&n).Error
	return n, err
}

func (r *wizardAnalyticsRepo) DetachUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.WizardAnalytics{}).
		Where("user_id IN ?", userIDs).
		Update("user_id", nil).Error
}
