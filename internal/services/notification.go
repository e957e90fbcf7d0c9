package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	"github.com/yungbote/politicas-backend/internal/modules/notifications"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type NotificationService interface {
	List(ctx context.Context) ([]notifications.Notification, error)
}

type notificationService struct {
	log       *logger.Logger
	users     repos.UserRepo
	policies  repos.PolicyRepo
	downloads repos.PolicyDownloadRepo
	clock     clockwork.Clock
}

func NewNotificationService(log *logger.Logger, users repos.UserRepo, policies repos.PolicyRepo, downloads repos.PolicyDownloadRepo, clock clockwork.Clock) NotificationService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &notificationService{
		log:       log.With("service", "NotificationService"),
		users:     users,
		policies:  policies,
		downloads: downloads,
		clock:     clock,
	}
}

func (ns *notificationService) List(ctx context.Context) ([]notifications.Notification, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	found, err := ns.users.GetByIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if len(found) == 0 {
		return nil, apierr.Unauthorized("user does not exist")
	}
	u := found[0]

	owned, err := ns.policies.GetByUserIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(owned))
	for _, p := range owned {
		ids = append(ids, p.ID)
	}
	counts, err := ns.downloads.CountByPolicyIDs(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("count downloads: %w", err)
	}

	summaries := make([]notifications.PolicySummary, 0, len(owned))
	for _, p := range owned {
		summaries = append(summaries, notifications.PolicySummary{
			ID:            p.ID,
			Name:          p.Name,
			CompletionPct: p.CompletionPct,
			UpdatedAt:     p.UpdatedAt,
			Downloads:     counts[p.ID],
		})
	}
	out := notifications.Generate(ns.clock.Now(), notifications.UserSummary{
		ID:        u.ID,
		Tier:      u.SubscriptionTier,
		CreatedAt: u.CreatedAt,
	}, summaries)
	if out == nil {
		out = []notifications.Notification{}
	}
	return out, nil
}
