package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	"github.com/yungbote/politicas-backend/internal/data/repos/testutil"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/locks"
	"github.com/yungbote/politicas-backend/internal/platform/mercadopago"
)

func init() {
	passwordCost = bcrypt.MinCost
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type sentMail struct {
	kind  string
	email string
	token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendVerification(_ context.Context, email, _ string, token string) error {
	return m.record("verification", email, token)
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, email, _ string, token string) error {
	return m.record("password_reset", email, token)
}

func (m *fakeMailer) record(kind, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{kind: kind, email: email, token: token})
	return nil
}

func (m *fakeMailer) last(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

type fakeMercadoPago struct {
	mu          sync.Mutex
	preferences []mercadopago.PreferenceRequest
	payments    map[string]*mercadopago.Payment
	prefErr     error
}

func (f *fakeMercadoPago) CreatePreference(_ context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prefErr != nil {
		return nil, f.prefErr
	}
	f.preferences = append(f.preferences, req)
	return &mercadopago.Preference{
		ID:        "pref-" + req.ExternalReference,
		InitPoint: "https://mp.example/checkout/" + req.ExternalReference,
	}, nil
}

func (f *fakeMercadoPago) GetPayment(_ context.Context, id string) (*mercadopago.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeMercadoPago) setPayment(id int64, status, externalRef string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payments == nil {
		f.payments = map[string]*mercadopago.Payment{}
	}
	f.payments[strconv.FormatInt(id, 10)] = &mercadopago.Payment{ID: id, Status: status, ExternalReference: externalRef}
}

// testEnv wires every service against a private sqlite database.
type testEnv struct {
	db      *gorm.DB
	clock   *clockwork.FakeClock
	mailer  *fakeMailer
	repos   AccountRepos
	audit   AuditService
	tokens  TokenService
	auth    AuthService
	users   UserService
	policy  PolicyService
	version PolicyVersionService
	export  ExportService
	notify  NotificationService
	admin   AdminService
	events  AnalyticsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	clock := clockwork.NewFakeClockAt(testNow)

	r := AccountRepos{
		Users:              repos.NewUserRepo(db, log),
		Sessions:           repos.NewSessionRepo(db, log),
		UserIdentities:     repos.NewUserIdentityRepo(db, log),
		VerificationTokens: repos.NewVerificationTokenRepo(db, log),
		Policies:           repos.NewPolicyRepo(db, log),
		PolicyVersions:     repos.NewPolicyVersionRepo(db, log),
		PolicyDownloads:    repos.NewPolicyDownloadRepo(db, log),
		Payments:           repos.NewPaymentRepo(db, log),
		AuditLogs:          repos.NewAuditLogRepo(db, log),
		WizardAnalytics:    repos.NewWizardAnalyticsRepo(db, log),
	}
	env := &testEnv{db: db, clock: clock, mailer: &fakeMailer{}, repos: r}
	locker := locks.NewLocal()
	env.audit = NewAuditService(db, log, r.AuditLogs)
	env.tokens = NewTokenService(db, log, r.VerificationTokens, clock)
	env.auth = NewAuthService(db, log, r.Users, r.Sessions, env.tokens, env.mailer, env.audit, clock,
		AuthConfig{JWTSecretKey: "test-secret"})
	env.users = NewUserService(db, log, r, env.audit)
	env.policy = NewPolicyService(db, log, r.Users, r.Policies, r.PolicyVersions, r.PolicyDownloads, env.audit, locker, clock)
	env.version = NewPolicyVersionService(db, log, r.Policies, r.PolicyVersions, env.audit, locker)
	env.export = NewExportService(db, log, r.Users, r.Policies, r.PolicyDownloads, env.policy, env.audit, nil, clock)
	env.notify = NewNotificationService(log, r.Users, r.Policies, r.PolicyDownloads, clock)
	env.admin = NewAdminService(db, log, r.Users, r.Policies, r.PolicyDownloads, r.Payments, r.WizardAnalytics, env.audit, clock)
	env.events = NewAnalyticsService(log, r.WizardAnalytics)
	return env
}

func (e *testEnv) billing(t *testing.T, provider mercadopago.Client, cfg BillingConfig) BillingService {
	t.Helper()
	return NewBillingService(e.db, testutil.Logger(t), e.repos.Users, e.repos.Payments, e.audit, provider, e.clock, cfg)
}

// seedUser inserts a user directly and returns a context authenticated as them.
func (e *testEnv) seedUser(t *testing.T, tier user.Tier, role user.Role) (*types.User, context.Context) {
	t.Helper()
	hashed, err := hashPassword("correcto-123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &types.User{
		ID:               uuid.New(),
		Email:            "u-" + uuid.NewString()[:8] + "@example.cl",
		Password:         hashed,
		Name:             "Ana",
		SubscriptionTier: tier,
		Role:             role,
	}
	if err := e.db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u, asUser(u)
}

func asUser(u *types.User) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{
		UserID:    u.ID,
		SessionID: uuid.New(),
		Role:      string(u.Role),
		ClientIP:  "203.0.113.7",
		UserAgent: "go-test",
	})
}

func (e *testEnv) auditActions(t *testing.T, userID uuid.UUID) []string {
	t.Helper()
	var out []string
	if err := e.db.Model(&types.AuditLog{}).Where("user_id = ?", userID).Order("created_at ASC").Pluck("action", &out).Error; err != nil {
		t.Fatalf("audit actions: %v", err)
	}
	return out
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	ae, ok := apierr.As(err)
	if !ok {
		t.Fatalf("want api error %d/%s, got %v", status, code, err)
	}
	if ae.Status != status || ae.Code != code {
		t.Fatalf("want %d/%s, got %d/%s (%v)", status, code, ae.Status, ae.Code, ae.Err)
	}
}

func hasString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
