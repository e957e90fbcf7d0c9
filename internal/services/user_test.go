package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/domain/billing"
	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
)

func TestUpdateProfileValidatesRut(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.seedUser(t, user.TierFree, user.RoleUser)

	bad := "12.345.678-9"
	_, err := env.users.UpdateProfile(ctx, ProfileUpdate{CompanyRut: &bad})
	requireAPIError(t, err, http.StatusBadRequest, "validation_failed")

	good := "76086428-5"
	company := "  Acme SpA "
	got, err := env.users.UpdateProfile(ctx, ProfileUpdate{CompanyRut: &good, CompanyName: &company})
	require.NoError(t, err)
	require.Equal(t, "76.086.428-5", got.CompanyRut)
	require.Equal(t, "Acme SpA", got.CompanyName)
}

func TestChangePasswordKeepsCurrentSession(t *testing.T) {
	env := newTestEnv(t)
	registerAna(t, env)
	_, first, err := env.auth.Login(context.Background(), "ana@example.cl", "secreto-123")
	require.NoError(t, err)
	_, second, err := env.auth.Login(context.Background(), "ana@example.cl", "secreto-123")
	require.NoError(t, err)

	ctx, err := env.auth.SetContextFromToken(context.Background(), first.AccessToken)
	require.NoError(t, err)

	err = env.users.ChangePassword(ctx, "equivocada", "nueva-clave-1")
	requireAPIError(t, err, http.StatusBadRequest, "validation_failed")

	var sessions int64
	require.NoError(t, env.db.Model(&types.UserToken{}).Count(&sessions).Error)
	require.GreaterOrEqual(t, sessions, int64(2))

	require.NoError(t, env.users.ChangePassword(ctx, "secreto-123", "nueva-clave-1"))
	var entry types.AuditLog
	require.NoError(t, env.db.Where("action = ?", audit.ActionUserPasswordChanged).Take(&entry).Error)
	require.JSONEq(t, fmt.Sprintf(`{"revoked_sessions":%d}`, sessions-1), string(entry.Details))

	_, err = env.auth.SetContextFromToken(context.Background(), first.AccessToken)
	require.NoError(t, err)
	_, err = env.auth.SetContextFromToken(context.Background(), second.AccessToken)
	require.Error(t, err)
}

func TestDeleteAccountRemovesEverything(t *testing.T) {
	env := newTestEnv(t)
	registerAna(t, env)
	u, sess, err := env.auth.Login(context.Background(), "ana@example.cl", "secreto-123")
	require.NoError(t, err)
	ctx, err := env.auth.SetContextFromToken(context.Background(), sess.AccessToken)
	require.NoError(t, err)

	p := completePolicy(t, env, u)
	_, err = env.version.Create(ctx, p.ID, "")
	require.NoError(t, err)
	_, err = env.export.Generate(ctx, p.ID, policy.FormatHTML)
	require.NoError(t, err)
	_, err = env.billing(t, nil, BillingConfig{}).Checkout(ctx, user.TierProfessional, billing.PeriodMonthly)
	require.NoError(t, err)
	step := 1
	env.events.Record(ctx, WizardEvent{SessionID: "s-1", Step: step, Action: "started"})
	require.NoError(t, env.auth.ForgotPassword(context.Background(), u.Email))

	err = env.users.DeleteAccount(ctx, "equivocada")
	requireAPIError(t, err, http.StatusBadRequest, "validation_failed")

	require.NoError(t, env.users.DeleteAccount(ctx, "secreto-123"))

	for _, model := range []any{
		&types.User{}, &types.Policy{}, &types.PolicyVersion{}, &types.PolicyDownload{},
		&types.Payment{}, &types.AuditLog{}, &types.UserToken{}, &types.VerificationToken{},
	} {
		var n int64
		require.NoError(t, env.db.Model(model).Count(&n).Error)
		require.Zerof(t, n, "%T rows left", model)
	}

	// Telemetry survives without the user link.
	var events []*types.WizardAnalytics
	require.NoError(t, env.db.Find(&events).Error)
	require.Len(t, events, 1)
	require.Nil(t, events[0].UserID)
}

func TestGetMeRequiresAuthenticatedUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.users.GetMe(dbctx.Context{Ctx: context.Background()})
	requireAPIError(t, err, http.StatusUnauthorized, "unauthorized")

	ghost := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: uuid.New()})
	_, err = env.users.GetMe(dbctx.Context{Ctx: ghost})
	requireAPIError(t, err, http.StatusUnauthorized, "unauthorized")
}
