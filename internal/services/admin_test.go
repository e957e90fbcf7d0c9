package services

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	"github.com/yungbote/politicas-backend/internal/domain/analytics"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/domain/user"
)

func TestAdminCapabilities(t *testing.T) {
	env := newTestEnv(t)
	_, userCtx := env.seedUser(t, user.TierFree, user.RoleUser)
	admin, adminCtx := env.seedUser(t, user.TierFree, user.RoleAdmin)
	_, superCtx := env.seedUser(t, user.TierFree, user.RoleSuperAdmin)
	target, _ := env.seedUser(t, user.TierFree, user.RoleUser)

	_, err := env.admin.Stats(userCtx)
	requireAPIError(t, err, http.StatusForbidden, "forbidden")

	pro := user.TierProfessional
	got, err := env.admin.UpdateUser(adminCtx, target.ID, AdminUserUpdate{Tier: &pro})
	require.NoError(t, err)
	require.Equal(t, user.TierProfessional, got.SubscriptionTier)

	role := user.RoleAdmin
	_, err = env.admin.UpdateUser(adminCtx, target.ID, AdminUserUpdate{Role: &role})
	requireAPIError(t, err, http.StatusForbidden, "forbidden")

	got, err = env.admin.UpdateUser(superCtx, target.ID, AdminUserUpdate{Role: &role})
	require.NoError(t, err)
	require.Equal(t, user.RoleAdmin, got.Role)

	require.Contains(t, env.auditActions(t, admin.ID), audit.ActionUserAdminUpdated)

	logs, total, err := env.admin.ListAuditLogs(adminCtx, repos.AuditLogFilter{Action: audit.ActionUserAdminUpdated})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, logs, 2)
}

func TestAdminStatsAndUsers(t *testing.T) {
	env := newTestEnv(t)
	_, adminCtx := env.seedUser(t, user.TierFree, user.RoleAdmin)
	u, ctx := env.seedUser(t, user.TierEnterprise, user.RoleUser)
	completePolicy(t, env, u)
	if _, err := env.policy.Create(ctx, "Borrador"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stats, err := env.admin.Stats(adminCtx)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalUsers)
	require.EqualValues(t, 2, stats.TotalPolicies)
	require.EqualValues(t, 1, stats.UsersByTier[user.TierEnterprise])

	list, total, err := env.admin.ListUsers(adminCtx, repos.UserListFilter{Tier: user.TierEnterprise})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	require.EqualValues(t, 2, list[0].PolicyCount)
}

func TestWizardFunnel(t *testing.T) {
	env := newTestEnv(t)
	_, adminCtx := env.seedUser(t, user.TierFree, user.RoleAdmin)
	_, ctx := env.seedUser(t, user.TierFree, user.RoleUser)

	spent := 30
	env.events.Record(ctx, WizardEvent{SessionID: "a", Step: 1, Action: analytics.ActionStarted})
	env.events.Record(ctx, WizardEvent{SessionID: "b", Step: 1, Action: analytics.ActionStarted})
	env.events.Record(ctx, WizardEvent{SessionID: "a", Step: 1, Action: analytics.ActionCompleted, TimeSpentSec: &spent})
	// Malformed events are dropped without error.
	env.events.Record(ctx, WizardEvent{SessionID: "a", Step: 99, Action: analytics.ActionStarted})
	env.events.Record(ctx, WizardEvent{SessionID: "", Step: 1, Action: analytics.ActionStarted})

	funnel, err := env.admin.WizardFunnel(adminCtx, 0)
	require.NoError(t, err)
	require.Equal(t, defaultFunnelDay, funnel.Days)
	require.EqualValues(t, 2, funnel.Sessions)
	require.Len(t, funnel.Steps, 12)
	first := funnel.Steps[0]
	require.EqualValues(t, 2, first.Started)
	require.EqualValues(t, 1, first.Completed)
	require.InDelta(t, 50.0, first.CompletionRate, 0.001)
}

func TestExportUsersCSV(t *testing.T) {
	env := newTestEnv(t)
	_, adminCtx := env.seedUser(t, user.TierFree, user.RoleAdmin)
	u, ctx := env.seedUser(t, user.TierProfessional, user.RoleUser)
	name := `Pérez, "Ana"`
	if _, err := env.users.UpdateProfile(ctx, ProfileUpdate{Name: &name}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if _, err := env.policy.Create(ctx, "Una"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, userCtx := env.seedUser(t, user.TierFree, user.RoleUser)
	var denied bytes.Buffer
	err := env.admin.ExportUsersCSV(userCtx, &denied)
	requireAPIError(t, err, http.StatusForbidden, "forbidden")
	require.Zero(t, denied.Len())

	var buf bytes.Buffer
	require.NoError(t, env.admin.ExportUsersCSV(adminCtx, &buf))
	require.Contains(t, buf.String(), `"Pérez, ""Ana"""`)

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	if diff := cmp.Diff(UsersCSVHeader, rows[0]); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, rows, 4)

	var row []string
	for _, r := range rows[1:] {
		if r[0] == u.ID.String() {
			row = r
		}
	}
	require.NotNil(t, row)
	require.Equal(t, `Pérez, "Ana"`, row[2])
	require.Equal(t, "PROFESSIONAL", row[6])
	require.Equal(t, "1", row[11])
	require.Equal(t, "No", row[15])
}
