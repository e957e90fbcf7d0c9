package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/segmentio/ksuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	domainbilling "github.com/yungbote/politicas-backend/internal/domain/billing"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/modules/billing"
	"github.com/yungbote/politicas-backend/internal/observability"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
	"github.com/yungbote/politicas-backend/internal/platform/mercadopago"
)

type BillingConfig struct {
	Production    bool
	AppBaseURL    string
	APIBaseURL    string
	WebhookSecret string
}

type CheckoutResult struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	CheckoutURL string    `json:"checkout_url"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Simulation  bool      `json:"simulation"`
}

// WebhookRequest is the raw provider callback.
type WebhookRequest struct {
	Body      []byte
	QueryType string
	QueryID   string
	Signature string
	RequestID string
}

type BillingService interface {
	Plans() billing.Catalog
	// SimulationMode is true when checkouts complete locally instead of at the provider.
	SimulationMode() bool
	Checkout(ctx context.Context, plan user.Tier, period domainbilling.Period) (*CheckoutResult, error)
	Simulate(ctx context.Context, paymentID uuid.UUID) (*types.Payment, error)
	HandleWebhook(ctx context.Context, req WebhookRequest) error
	History(ctx context.Context) ([]*types.Payment, error)
}

type billingService struct {
	db       *gorm.DB
	log      *logger.Logger
	users    repos.UserRepo
	payments repos.PaymentRepo
	audit    AuditService
	provider mercadopago.Client
	plans    billing.Catalog
	cfg      BillingConfig
	clock    clockwork.Clock
}

// NewBillingService wires checkout. A nil provider means simulation mode
// outside production and "payments unavailable" in production.
func NewBillingService(
	db *gorm.DB,
	log *logger.Logger,
	users repos.UserRepo,
	payments repos.PaymentRepo,
	auditService AuditService,
	provider mercadopago.Client,
	clock clockwork.Clock,
	cfg BillingConfig,
) BillingService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg.AppBaseURL = strings.TrimRight(strings.TrimSpace(cfg.AppBaseURL), "/")
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return &billingService{
		db:       db,
		log:      log.With("service", "BillingService"),
		users:    users,
		payments: payments,
		audit:    auditService,
		provider: provider,
		plans:    billing.Plans(),
		cfg:      cfg,
		clock:    clock,
	}
}

func (bs *billingService) Plans() billing.Catalog { return bs.plans }

func (bs *billingService) SimulationMode() bool {
	return bs.provider == nil && !bs.cfg.Production
}

func errPaymentNotFound() *apierr.Error {
	return apierr.NotFound("payment_not_found", "payment not found")
}

func paymentAudit(actor uuid.UUID, action string, p *types.Payment, details map[string]any) AuditEntry {
	if details == nil {
		details = map[string]any{}
	}
	details["plan"] = string(p.Plan)
	details["amount"] = p.Amount
	return AuditEntry{
		Actor:        &actor,
		Action:       action,
		ResourceType: audit.ResourcePayment,
		ResourceID:   p.ID.String(),
		Details:      details,
	}
}

func (bs *billingService) Checkout(ctx context.Context, plan user.Tier, period domainbilling.Period) (*CheckoutResult, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	fe := fieldErrors{}
	if !plan.Paid() {
		fe["plan"] = "El plan debe ser PROFESSIONAL o ENTERPRISE"
	}
	if period == "" {
		period = domainbilling.PeriodMonthly
	}
	if !period.Valid() {
		fe["period"] = "El período debe ser monthly o yearly"
	}
	if !fe.empty() {
		return nil, apierr.Validation(fe)
	}
	amount, err := bs.plans.Price(plan, period)
	if err != nil {
		return nil, apierr.Validation(map[string]string{"plan": "Plan o período desconocido"})
	}
	if bs.provider == nil && bs.cfg.Production {
		bs.log.Error("Checkout attempted without a payment provider credential")
		return nil, apierr.New(http.StatusServiceUnavailable, "payments_unavailable", errors.New("payments are temporarily unavailable"))
	}

	dbc := dbctx.Context{Ctx: ctx}
	found, err := bs.users.GetByIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if len(found) == 0 {
		return nil, apierr.Unauthorized("user does not exist")
	}
	u := found[0]
	planInfo, _ := bs.plans.Plan(plan)

	provider := domainbilling.ProviderMercadoPago
	if bs.provider == nil {
		provider = domainbilling.ProviderSimulation
	}
	pay := &types.Payment{
		ID:         uuid.New(),
		UserID:     userID,
		Plan:       plan,
		Period:     period,
		Amount:     amount,
		Currency:   bs.plans.Currency,
		Status:     domainbilling.StatusPending,
		Provider:   provider,
		ExternalID: "pending_" + ksuid.New().String(),
	}
	meta := domainbilling.PaymentMetadata{Plan: plan, Period: period, PlanName: planInfo.Name}
	pay.Metadata = datatypes.NewJSONType(meta)

	err = bs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := bs.payments.Create(txc, pay); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return bs.audit.Record(txc, paymentAudit(userID, audit.ActionPaymentCreated, pay,
			map[string]any{"period": string(period), "provider": provider}))
	})
	if err != nil {
		return nil, err
	}
	observability.Current().IncPayment(provider, string(domainbilling.StatusPending))

	res := &CheckoutResult{PaymentID: pay.ID, Amount: amount, Currency: pay.Currency}
	fields := map[string]any{}
	if bs.provider == nil {
		res.Simulation = true
		res.CheckoutURL = bs.cfg.AppBaseURL + "/payments/simulate?paymentId=" + url.QueryEscape(pay.ID.String())
	} else {
		pref, err := bs.provider.CreatePreference(ctx, bs.preferenceFor(pay, u, planInfo.Name))
		if err != nil {
			bs.log.Error("Create preference failed", "payment_id", pay.ID, "error", err)
			if _, ferr := bs.apply(ctx, pay.ID, domainbilling.StatusFailed, map[string]any{"provider_status": "preference_error"}); ferr != nil {
				bs.log.Warn("Could not mark payment failed", "payment_id", pay.ID, "error", ferr)
			}
			return nil, apierr.New(http.StatusBadGateway, "payment_provider_error", errors.New("could not start checkout"))
		}
		res.CheckoutURL = pref.InitPoint
		if res.CheckoutURL == "" {
			res.CheckoutURL = pref.SandboxInitPoint
		}
		fields["external_id"] = pref.ID
	}
	meta.CheckoutURL = res.CheckoutURL
	fields["metadata"] = datatypes.NewJSONType(meta)
	if err := bs.payments.UpdateFields(dbc, pay.ID, fields); err != nil {
		return nil, fmt.Errorf("store checkout: %w", err)
	}
	bs.log.Info("Checkout started", "payment_id", pay.ID, "plan", plan, "period", period, "simulation", res.Simulation)
	return res, nil
}

func (bs *billingService) preferenceFor(p *types.Payment, u *types.User, planName string) mercadopago.PreferenceRequest {
	title := planName
	if title == "" {
		title = string(p.Plan)
	}
	req := mercadopago.PreferenceRequest{
		Items: []mercadopago.Item{{
			ID:         string(p.Plan) + "-" + string(p.Period),
			Title:      title,
			Quantity:   1,
			CurrencyID: p.Currency,
			UnitPrice:  float64(p.Amount),
		}},
		Payer:             &mercadopago.Payer{Email: u.Email, Name: u.Name},
		ExternalReference: p.ID.String(),
		Metadata:          map[string]string{"plan": string(p.Plan), "period": string(p.Period)},
	}
	if bs.cfg.AppBaseURL != "" {
		req.BackURLs = &mercadopago.BackURLs{
			Success: bs.cfg.AppBaseURL + "/pago/exito",
			Failure: bs.cfg.AppBaseURL + "/pago/error",
			Pending: bs.cfg.AppBaseURL + "/pago/pendiente",
		}
		req.AutoReturn = "approved"
	}
	if bs.cfg.APIBaseURL != "" {
		req.NotificationURL = bs.cfg.APIBaseURL + "/api/payments/webhook"
	}
	return req
}

func (bs *billingService) Simulate(ctx context.Context, paymentID uuid.UUID) (*types.Payment, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if !bs.SimulationMode() {
		return nil, apierr.Forbidden("simulation_disabled", "payment simulation is disabled")
	}
	dbc := dbctx.Context{Ctx: ctx}
	p, err := bs.payments.GetByID(dbc, paymentID, false)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if p == nil || p.UserID != userID {
		return nil, errPaymentNotFound()
	}
	switch p.Status {
	case domainbilling.StatusPending, domainbilling.StatusCompleted:
	default:
		return nil, apierr.BadRequest("payment_not_pending", "payment is no longer pending")
	}
	if _, err := bs.apply(ctx, p.ID, domainbilling.StatusCompleted, map[string]any{
		"provider_payment_id": "sim_" + ksuid.New().String(),
		"provider_status":     mercadopago.StatusApproved,
	}); err != nil {
		return nil, err
	}
	return bs.payments.GetByID(dbc, p.ID, false)
}

func (bs *billingService) HandleWebhook(ctx context.Context, req WebhookRequest) error {
	n, err := mercadopago.ParseNotification(req.Body, req.QueryType, req.QueryID)
	if err != nil {
		return apierr.BadRequest("invalid_notification", "could not parse notification")
	}
	if !n.IsPayment() {
		bs.log.Debug("Ignoring non-payment notification", "type", n.Type, "action", n.Action)
		return nil
	}
	if bs.cfg.WebhookSecret != "" {
		if err := mercadopago.VerifySignature(bs.cfg.WebhookSecret, req.Signature, req.RequestID, n.Data.ID); err != nil {
			bs.log.Warn("Webhook signature rejected", "data_id", n.Data.ID)
			return apierr.Unauthorized("invalid webhook signature")
		}
	}
	if bs.provider == nil {
		return apierr.New(http.StatusServiceUnavailable, "payments_unavailable", errors.New("payment provider not configured"))
	}
	remote, err := bs.provider.GetPayment(ctx, n.Data.ID)
	if err != nil {
		bs.log.Error("Fetch provider payment failed", "data_id", n.Data.ID, "error", err)
		return apierr.New(http.StatusBadGateway, "payment_provider_error", fmt.Errorf("fetch payment: %w", err))
	}
	localID, err := uuid.Parse(strings.TrimSpace(remote.ExternalReference))
	if err != nil {
		// Not one of ours; acknowledging stops provider retries.
		bs.log.Warn("Webhook for unknown external reference", "external_reference", remote.ExternalReference)
		return nil
	}
	target := billing.MapProviderStatus(remote.Status)
	changed, err := bs.apply(ctx, localID, target, map[string]any{
		"provider_payment_id": fmt.Sprintf("%d", remote.ID),
		"provider_status":     remote.Status,
	})
	if err != nil {
		if ae, ok := apierr.As(err); ok && ae.Status == http.StatusNotFound {
			bs.log.Warn("Webhook for missing payment", "payment_id", localID)
			return nil
		}
		return err
	}
	bs.log.Info("Webhook processed", "payment_id", localID, "provider_status", remote.Status, "changed", changed)
	return nil
}

// apply moves a payment to target at most once. Re-delivery of a status the
// payment already has, or a transition the state machine forbids, is a no-op.
func (bs *billingService) apply(ctx context.Context, paymentID uuid.UUID, target domainbilling.Status, fields map[string]any) (bool, error) {
	var (
		changed bool
		pay     *types.Payment
	)
	err := bs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		p, err := bs.payments.GetByID(dbc, paymentID, true)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if p == nil {
			return errPaymentNotFound()
		}
		pay = p
		if target == domainbilling.StatusPending || !billing.CanTransition(p.Status, target) {
			return nil
		}
		upd := map[string]any{}
		for k, v := range fields {
			upd[k] = v
		}
		now := bs.clock.Now()
		if target == domainbilling.StatusCompleted {
			upd["completed_at"] = now
		}
		ok, err := bs.payments.Transition(dbc, p.ID, billing.SourcesFor(target), target, upd)
		if err != nil {
			return fmt.Errorf("transition payment: %w", err)
		}
		if !ok {
			return nil
		}
		changed = true

		switch target {
		case domainbilling.StatusCompleted:
			tier := p.Metadata.Data().Plan
			if !tier.Paid() {
				tier = p.Plan
			}
			paid := paymentAudit(p.UserID, audit.ActionPaymentCompleted, p, nil)
			owners, err := bs.users.GetByIDs(dbc, []uuid.UUID{p.UserID})
			if err != nil {
				return fmt.Errorf("load payer: %w", err)
			}
			if len(owners) == 1 && owners[0].SubscriptionTier.Rank() >= tier.Rank() {
				bs.log.Info("Payment completed without tier change",
					"payment_id", p.ID, "user_id", p.UserID, "current_tier", owners[0].SubscriptionTier, "plan", tier)
				return bs.audit.Record(dbc, paid)
			}
			if err := bs.users.UpdateFields(dbc, p.UserID, map[string]any{"subscription_tier": tier}); err != nil {
				return fmt.Errorf("upgrade tier: %w", err)
			}
			return bs.audit.Record(dbc,
				paid,
				AuditEntry{
					Actor:        &p.UserID,
					Action:       audit.ActionUserTierUpgraded,
					ResourceType: audit.ResourceUser,
					ResourceID:   p.UserID.String(),
					Details:      map[string]any{"tier": string(tier), "payment_id": p.ID.String()},
				},
			)
		case domainbilling.StatusFailed:
			return bs.audit.Record(dbc, paymentAudit(p.UserID, audit.ActionPaymentFailed, p,
				map[string]any{"provider_status": fields["provider_status"]}))
		case domainbilling.StatusRefunded:
			return bs.audit.Record(dbc, paymentAudit(p.UserID, audit.ActionPaymentRefunded, p,
				map[string]any{"previous_status": string(p.Status)}))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		observability.Current().IncPayment(pay.Provider, string(target))
		bs.log.Info("Payment transitioned", "payment_id", pay.ID, "from", pay.Status, "to", target)
	}
	return changed, nil
}

func (bs *billingService) History(ctx context.Context) ([]*types.Payment, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	out, err := bs.payments.ListByUserID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if out == nil {
		out = []*types.Payment{}
	}
	return out, nil
}
