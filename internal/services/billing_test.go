package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/domain/billing"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
)

func (e *testEnv) tierOf(t *testing.T, id uuid.UUID) user.Tier {
	t.Helper()
	found, err := e.repos.Users.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, found, 1)
	return found[0].SubscriptionTier
}

func webhookBody(id int64) []byte {
	return []byte(fmt.Sprintf(`{"type":"payment","action":"payment.updated","data":{"id":"%d"}}`, id))
}

func TestCheckoutSimulationCompletesAndUpgrades(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierFree, user.RoleUser)
	bs := env.billing(t, nil, BillingConfig{AppBaseURL: "http://localhost:5173/"})
	require.True(t, bs.SimulationMode())

	res, err := bs.Checkout(ctx, user.TierProfessional, billing.PeriodMonthly)
	require.NoError(t, err)
	require.True(t, res.Simulation)
	require.EqualValues(t, 29990, res.Amount)
	require.Equal(t, "http://localhost:5173/payments/simulate?paymentId="+res.PaymentID.String(), res.CheckoutURL)

	pending, err := env.repos.Payments.GetByID(dbctx.Context{Ctx: ctx}, res.PaymentID, false)
	require.NoError(t, err)
	require.Equal(t, billing.StatusPending, pending.Status)
	require.True(t, strings.HasPrefix(pending.ExternalID, "pending_"))
	require.Equal(t, user.TierFree, env.tierOf(t, u.ID))

	paid, err := bs.Simulate(ctx, res.PaymentID)
	require.NoError(t, err)
	require.Equal(t, billing.StatusCompleted, paid.Status)
	require.NotNil(t, paid.CompletedAt)
	require.Equal(t, user.TierProfessional, env.tierOf(t, u.ID))

	// A second simulate is a no-op: no duplicate audit rows.
	_, err = bs.Simulate(ctx, res.PaymentID)
	require.NoError(t, err)
	count := 0
	for _, a := range env.auditActions(t, u.ID) {
		if a == audit.ActionUserTierUpgraded {
			count++
		}
	}
	require.Equal(t, 1, count)

	history, err := bs.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestCompletedPaymentNeverDowngradesTier(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierFree, user.RoleUser)
	bs := env.billing(t, nil, BillingConfig{})

	res, err := bs.Checkout(ctx, user.TierProfessional, billing.PeriodMonthly)
	require.NoError(t, err)
	require.NoError(t, env.repos.Users.UpdateFields(dbctx.Context{Ctx: ctx}, u.ID, map[string]any{"subscription_tier": user.TierEnterprise}))

	paid, err := bs.Simulate(ctx, res.PaymentID)
	require.NoError(t, err)
	require.Equal(t, billing.StatusCompleted, paid.Status)
	require.Equal(t, user.TierEnterprise, env.tierOf(t, u.ID))

	actions := env.auditActions(t, u.ID)
	require.Contains(t, actions, audit.ActionPaymentCompleted)
	require.NotContains(t, actions, audit.ActionUserTierUpgraded)
}

func TestCheckoutValidation(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.seedUser(t, user.TierFree, user.RoleUser)
	bs := env.billing(t, nil, BillingConfig{})

	_, err := bs.Checkout(ctx, user.TierFree, billing.PeriodMonthly)
	requireAPIError(t, err, http.StatusBadRequest, "validation_failed")
	_, err = bs.Checkout(ctx, user.TierEnterprise, billing.Period("weekly"))
	requireAPIError(t, err, http.StatusBadRequest, "validation_failed")

	prod := env.billing(t, nil, BillingConfig{Production: true})
	require.False(t, prod.SimulationMode())
	_, err = prod.Checkout(ctx, user.TierEnterprise, billing.PeriodYearly)
	requireAPIError(t, err, http.StatusServiceUnavailable, "payments_unavailable")
}

func TestSimulateRejectsOtherUsersAndProviderMode(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.seedUser(t, user.TierFree, user.RoleUser)
	_, otherCtx := env.seedUser(t, user.TierFree, user.RoleUser)
	bs := env.billing(t, nil, BillingConfig{})

	res, err := bs.Checkout(ctx, user.TierEnterprise, billing.PeriodYearly)
	require.NoError(t, err)
	_, err = bs.Simulate(otherCtx, res.PaymentID)
	requireAPIError(t, err, http.StatusNotFound, "payment_not_found")

	live := env.billing(t, &fakeMercadoPago{}, BillingConfig{})
	_, err = live.Simulate(ctx, res.PaymentID)
	requireAPIError(t, err, http.StatusForbidden, "simulation_disabled")
}

func TestWebhookAppliesProviderStatusOnce(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierFree, user.RoleUser)
	mp := &fakeMercadoPago{}
	bs := env.billing(t, mp, BillingConfig{Production: true, APIBaseURL: "https://api.example.cl", AppBaseURL: "https://app.example.cl"})

	res, err := bs.Checkout(ctx, user.TierEnterprise, billing.PeriodMonthly)
	require.NoError(t, err)
	require.False(t, res.Simulation)
	require.Equal(t, "https://mp.example/checkout/"+res.PaymentID.String(), res.CheckoutURL)
	require.Len(t, mp.preferences, 1)
	require.Equal(t, "https://api.example.cl/api/payments/webhook", mp.preferences[0].NotificationURL)

	stored, err := env.repos.Payments.GetByID(dbctx.Context{Ctx: ctx}, res.PaymentID, false)
	require.NoError(t, err)
	require.Equal(t, "pref-"+res.PaymentID.String(), stored.ExternalID)

	mp.setPayment(9001, "approved", res.PaymentID.String())
	for i := 0; i < 3; i++ {
		require.NoError(t, bs.HandleWebhook(context.Background(), WebhookRequest{Body: webhookBody(9001)}))
	}
	require.Equal(t, user.TierEnterprise, env.tierOf(t, u.ID))

	completed := 0
	for _, a := range env.auditActions(t, u.ID) {
		if a == audit.ActionPaymentCompleted {
			completed++
		}
	}
	require.Equal(t, 1, completed)

	// A late "rejected" cannot move a completed payment; a refund can.
	mp.setPayment(9001, "rejected", res.PaymentID.String())
	require.NoError(t, bs.HandleWebhook(context.Background(), WebhookRequest{QueryType: "payment", QueryID: "9001"}))
	stored, err = env.repos.Payments.GetByID(dbctx.Context{Ctx: ctx}, res.PaymentID, false)
	require.NoError(t, err)
	require.Equal(t, billing.StatusCompleted, stored.Status)

	mp.setPayment(9001, "refunded", res.PaymentID.String())
	require.NoError(t, bs.HandleWebhook(context.Background(), WebhookRequest{Body: webhookBody(9001)}))
	stored, err = env.repos.Payments.GetByID(dbctx.Context{Ctx: ctx}, res.PaymentID, false)
	require.NoError(t, err)
	require.Equal(t, billing.StatusRefunded, stored.Status)
	require.Equal(t, "9001", stored.ProviderPaymentID)
	require.Contains(t, env.auditActions(t, u.ID), audit.ActionPaymentRefunded)
}

func TestWebhookIgnoresUnknownAndVerifiesSignature(t *testing.T) {
	env := newTestEnv(t)
	mp := &fakeMercadoPago{}
	bs := env.billing(t, mp, BillingConfig{})

	require.NoError(t, bs.HandleWebhook(context.Background(), WebhookRequest{Body: []byte(`{"type":"merchant_order","data":{"id":"1"}}`)}))

	mp.setPayment(77, "approved", uuid.NewString())
	require.NoError(t, bs.HandleWebhook(context.Background(), WebhookRequest{Body: webhookBody(77)}))

	mp.setPayment(78, "approved", "not-a-uuid")
	require.NoError(t, bs.HandleWebhook(context.Background(), WebhookRequest{Body: webhookBody(78)}))

	err := bs.HandleWebhook(context.Background(), WebhookRequest{Body: webhookBody(404)})
	requireAPIError(t, err, http.StatusBadGateway, "payment_provider_error")

	signed := env.billing(t, mp, BillingConfig{WebhookSecret: "shh"})
	err = signed.HandleWebhook(context.Background(), WebhookRequest{Body: webhookBody(77), Signature: "ts=1,v1=deadbeef", RequestID: "r"})
	requireAPIError(t, err, http.StatusUnauthorized, "unauthorized")
}

func TestCheckoutProviderFailureMarksPaymentFailed(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierFree, user.RoleUser)
	bs := env.billing(t, &fakeMercadoPago{prefErr: errors.New("boom")}, BillingConfig{})

	_, err := bs.Checkout(ctx, user.TierProfessional, billing.PeriodYearly)
	requireAPIError(t, err, http.StatusBadGateway, "payment_provider_error")

	history, err := bs.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, billing.StatusFailed, history[0].Status)
	require.Equal(t, user.TierFree, env.tierOf(t, u.ID))
}
