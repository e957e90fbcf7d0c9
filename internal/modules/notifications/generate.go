package notifications

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/politicas-backend/internal/domain/user"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindSuccess Kind = "success"
)

const MaxNotifications = 10

const (
	day           = 24 * time.Hour
	staleWarning  = 7 * day
	staleReminder = 3 * day
	downloadNudge = 1 * day
	newAccount    = 1 * day
)

type Notification struct {
	ID        string     `json:"id"`
	Type      Kind       `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	PolicyID  *uuid.UUID `json:"policy_id,omitempty"`
	ActionURL string     `json:"action_url,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

type UserSummary struct {
	ID        uuid.UUID
	Tier      user.Tier
	CreatedAt time.Time
}

type PolicySummary struct {
	ID            uuid.UUID
	Name          string
	CompletionPct int
	UpdatedAt     time.Time
	Downloads     int64
}

// Generate derives the nudges shown to u. Nothing is persisted; the result is
// sorted newest first and capped at MaxNotifications.
func Generate(now time.Time, u UserSummary, policies []PolicySummary) []Notification {
	var out []Notification

	for _, p := range policies {
		id := p.ID
		idle := now.Sub(p.UpdatedAt)
		if p.CompletionPct < 100 {
			switch {
			case idle > staleWarning:
				out = append(out, Notification{
					ID:        "stale-" + id.String(),
					Type:      KindWarning,
					Title:     "Completa tu política",
					Message:   fmt.Sprintf("\"%s\" lleva %d días sin cambios y está al %d%%.", p.Name, int(idle/day), p.CompletionPct),
					PolicyID:  &id,
					ActionURL: "/wizard/" + id.String(),
					Timestamp: p.UpdatedAt,
				})
			case idle > staleReminder:
				out = append(out, Notification{
					ID:        "reminder-" + id.String(),
					Type:      KindInfo,
					Title:     "Continúa donde quedaste",
					Message:   fmt.Sprintf("\"%s\" está al %d%%. Retómala cuando puedas.", p.Name, p.CompletionPct),
					PolicyID:  &id,
					ActionURL: "/wizard/" + id.String(),
					Timestamp: p.UpdatedAt,
				})
			}
			continue
		}
		if p.Downloads == 0 && idle > downloadNudge {
			out = append(out, Notification{
				ID:        "download-" + id.String(),
				Type:      KindSuccess,
				Title:     "Tu política está lista",
				Message:   fmt.Sprintf("\"%s\" está completa. Descárgala y publícala en tu sitio.", p.Name),
				PolicyID:  &id,
				ActionURL: "/politicas/" + id.String(),
				Timestamp: p.UpdatedAt,
			})
		}
	}

	if len(policies) == 0 && now.Sub(u.CreatedAt) < newAccount {
		out = append(out, Notification{
			ID:        "welcome",
			Type:      KindInfo,
			Title:     "Bienvenido",
			Message:   "Crea tu primera política de privacidad en 12 pasos.",
			ActionURL: "/wizard",
			Timestamp: u.CreatedAt,
		})
	}

	if u.Tier == user.TierFree && len(policies) > 0 {
		out = append(out, Notification{
			ID:        "upgrade",
			Type:      KindInfo,
			Title:     "Mejora tu plan",
			Message:   "Exporta sin marca de agua, en Word y con más políticas con el plan Profesional.",
			ActionURL: "/precios",
			Timestamp: u.CreatedAt,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > MaxNotifications {
		out = out[:MaxNotifications]
	}
	return out
}
