package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/segmentio/ksuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/modules/billing"
	"github.com/yungbote/politicas-backend/internal/modules/wizard"
	"github.com/yungbote/politicas-backend/internal/observability"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/locks"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

const (
	DefaultPolicyName = "Política de Privacidad"
	copySuffix        = " (copia)"
	maxPolicyName     = 200

	maxStepSaveAttempts = 3
	policyLockTTL       = 15 * time.Second
	policyLockWait      = 5 * time.Second
)

func policyLockKey(id uuid.UUID) string { return "policy-lock:" + id.String() }

type PolicyUpdate struct {
	Name *string
}

type PolicyService interface {
	List(ctx context.Context) ([]*types.Policy, error)
	Create(ctx context.Context, name string) (*types.Policy, error)
	Get(ctx context.Context, policyID uuid.UUID) (*types.Policy, error)
	Update(ctx context.Context, policyID uuid.UUID, in PolicyUpdate) (*types.Policy, error)
	Delete(ctx context.Context, policyID uuid.UUID) error

	// SaveStep stores payload for step and advances the wizard. Concurrent
	// saves to one policy are serialized and never overwrite each other.
	SaveStep(ctx context.Context, policyID uuid.UUID, step int, payload json.RawMessage) (*types.Policy, error)
	Progress(ctx context.Context, policyID uuid.UUID) (wizard.Progress, error)
	Duplicate(ctx context.Context, policyID uuid.UUID) (*types.Policy, error)

	Share(ctx context.Context, policyID uuid.UUID) (*types.Policy, error)
	Unshare(ctx context.Context, policyID uuid.UUID) error
	// GetShared is the unauthenticated lookup behind public links.
	GetShared(ctx context.Context, token string) (*types.Policy, error)
}

type policyService struct {
	db         *gorm.DB
	log        *logger.Logger
	userRepo   repos.UserRepo
	policyRepo repos.PolicyRepo
	versions   repos.PolicyVersionRepo
	downloads  repos.PolicyDownloadRepo
	audit      AuditService
	locker     locks.Locker
	plans      billing.Catalog
	clock      clockwork.Clock
}

func NewPolicyService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	policyRepo repos.PolicyRepo,
	versions repos.PolicyVersionRepo,
	downloads repos.PolicyDownloadRepo,
	auditService AuditService,
	locker locks.Locker,
	clock clockwork.Clock,
) PolicyService {
	if locker == nil {
		locker = locks.NewLocal()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &policyService{
		db:         db,
		log:        log.With("service", "PolicyService"),
		userRepo:   userRepo,
		policyRepo: policyRepo,
		versions:   versions,
		downloads:  downloads,
		audit:      auditService,
		locker:     locker,
		plans:      billing.Plans(),
		clock:      clock,
	}
}

func errPolicyNotFound() *apierr.Error {
	return apierr.NotFound("policy_not_found", "policy not found")
}

func errPolicyIncomplete() *apierr.Error {
	return apierr.BadRequest("policy_incomplete", "policy must be complete")
}

func requireCaller(ctx context.Context) (uuid.UUID, error) {
	userID := ctxutil.UserID(ctx)
	if userID == uuid.Nil {
		return uuid.Nil, apierr.Unauthorized("unauthorized")
	}
	return userID, nil
}

// loadOwned maps "missing" and "someone else's" to the same 404.
func loadOwned(dbc dbctx.Context, repo repos.PolicyRepo, policyID, userID uuid.UUID) (*types.Policy, error) {
	p, err := repo.GetOwned(dbc, policyID, userID)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if p == nil {
		return nil, errPolicyNotFound()
	}
	return p, nil
}

func policyAudit(actor uuid.UUID, action string, policyID uuid.UUID, details map[string]any) AuditEntry {
	return AuditEntry{
		Actor:        &actor,
		Action:       action,
		ResourceType: audit.ResourcePolicy,
		ResourceID:   policyID.String(),
		Details:      details,
	}
}

func cleanPolicyName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return DefaultPolicyName, nil
	}
	fe := fieldErrors{}
	fe.maxLen("name", name, maxPolicyName)
	if !fe.empty() {
		return "", apierr.Validation(fe)
	}
	return name, nil
}

func (ps *policyService) List(ctx context.Context) ([]*types.Policy, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	out, err := ps.policyRepo.GetByUserIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return out, nil
}

func (ps *policyService) checkPlanLimit(dbc dbctx.Context, userID uuid.UUID) error {
	users, err := ps.userRepo.GetByIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if len(users) == 0 {
		return apierr.Unauthorized("unauthorized")
	}
	counts, err := ps.policyRepo.CountByUserIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return fmt.Errorf("count policies: %w", err)
	}
	tier := users[0].SubscriptionTier
	if !ps.plans.WithinLimit(tier, counts[userID]) {
		return apierr.Forbidden("plan_limit_reached",
			fmt.Sprintf("your plan allows %d policies; upgrade to create more", ps.plans.PolicyLimit(tier)))
	}
	return nil
}

func (ps *policyService) Create(ctx context.Context, name string) (*types.Policy, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	name, err = cleanPolicyName(name)
	if err != nil {
		return nil, err
	}
	p := &types.Policy{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Status: policy.StatusDraft,
	}
	err = ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := ps.checkPlanLimit(dbc, userID); err != nil {
			return err
		}
		if _, err := ps.policyRepo.Create(dbc, []*types.Policy{p}); err != nil {
			return fmt.Errorf("create policy: %w", err)
		}
		return ps.audit.Record(dbc, policyAudit(userID, audit.ActionPolicyCreated, p.ID, map[string]any{"name": name}))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (ps *policyService) Get(ctx context.Context, policyID uuid.UUID) (*types.Policy, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	return loadOwned(dbctx.Context{Ctx: ctx}, ps.policyRepo, policyID, userID)
}

func (ps *policyService) Update(ctx context.Context, policyID uuid.UUID, in PolicyUpdate) (*types.Policy, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var out *types.Policy
	err = ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		p, err := loadOwned(dbc, ps.policyRepo, policyID, userID)
		if err != nil {
			return err
		}
		if in.Name != nil {
			name, err := cleanPolicyName(*in.Name)
			if err != nil {
				return err
			}
			if name != p.Name {
				if err := ps.policyRepo.UpdateFields(dbc, p.ID, map[string]any{"name": name}); err != nil {
					return fmt.Errorf("rename policy: %w", err)
				}
				if err := ps.audit.Record(dbc, policyAudit(userID, audit.ActionPolicyUpdated, p.ID,
					map[string]any{"old_name": p.Name, "new_name": name})); err != nil {
					return err
				}
			}
		}
		out, err = loadOwned(dbc, ps.policyRepo, policyID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (ps *policyService) Delete(ctx context.Context, policyID uuid.UUID) error {
	userID, err := requireCaller(ctx)
	if err != nil {
		return err
	}
	return ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		p, err := loadOwned(dbc, ps.policyRepo, policyID, userID)
		if err != nil {
			return err
		}
		ids := []uuid.UUID{p.ID}
		if err := ps.downloads.FullDeleteByPolicyIDs(dbc, ids); err != nil {
			return fmt.Errorf("delete downloads: %w", err)
		}
		if err := ps.versions.FullDeleteByPolicyIDs(dbc, ids); err != nil {
			return fmt.Errorf("delete versions: %w", err)
		}
		if err := ps.policyRepo.FullDeleteByIDs(dbc, ids); err != nil {
			return fmt.Errorf("delete policy: %w", err)
		}
		return ps.audit.Record(dbc, policyAudit(userID, audit.ActionPolicyDeleted, p.ID, map[string]any{"name": p.Name}))
	})
}

func applyState(p *types.Policy, s wizard.State) {
	p.Status = s.Status
	p.CurrentStep = s.CurrentStep
	p.CompletedSteps = datatypes.JSONSlice[int](s.Completed)
	p.StepData = datatypes.NewJSONType(s.Payloads)
	p.CompletionPct = s.CompletionPct
}

func stepSaveFailed(err error) *apierr.Error {
	return apierr.Newf(http.StatusInternalServerError, "step_save_failed", "could not save step: %v", err)
}

func (ps *policyService) SaveStep(ctx context.Context, policyID uuid.UUID, step int, payload json.RawMessage) (*types.Policy, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	// Validate before touching the row so bad input never takes the lock.
	if _, err := wizard.Apply(wizard.State{}, step, payload); err != nil {
		observability.Current().IncStepSave(step, "invalid")
		if errors.Is(err, wizard.ErrInvalidStep) {
			return nil, apierr.Validation(map[string]string{"step": "El paso debe estar entre 1 y 12"})
		}
		return nil, apierr.Validation(map[string]string{"data": "Los datos del paso no son válidos"})
	}

	release, err := ps.locker.Acquire(ctx, policyLockKey(policyID), policyLockTTL, policyLockWait)
	if err != nil {
		if errors.Is(err, locks.ErrNotAcquired) {
			return nil, apierr.New(http.StatusConflict, "policy_busy", errors.New("policy is being saved elsewhere, retry"))
		}
		return nil, stepSaveFailed(err)
	}
	defer release()

	for attempt := 1; attempt <= maxStepSaveAttempts; attempt++ {
		p, err := loadOwned(dbctx.Context{Ctx: ctx}, ps.policyRepo, policyID, userID)
		if err != nil {
			if _, ok := apierr.As(err); ok {
				return nil, err
			}
			return nil, stepSaveFailed(err)
		}
		next, err := wizard.Apply(wizard.FromPolicy(p), step, payload)
		if err != nil {
			return nil, stepSaveFailed(err)
		}
		expected := p.RowVersion
		prevStatus := p.Status
		applyState(p, next)

		var saved bool
		err = ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			dbc := dbctx.Context{Ctx: ctx, Tx: tx}
			ok, err := ps.policyRepo.UpdateState(dbc, p, expected)
			if err != nil || !ok {
				return err
			}
			saved = true
			details := map[string]any{"step": step, "completion_pct": p.CompletionPct}
			if prevStatus != p.Status {
				details["status"] = p.Status
			}
			return ps.audit.Record(dbc, policyAudit(userID, audit.ActionPolicyStepSaved, p.ID, details))
		})
		if err != nil {
			observability.Current().IncStepSave(step, "error")
			ps.log.Error("Step save failed", "policy_id", policyID, "step", step, "error", err)
			return nil, stepSaveFailed(err)
		}
		if saved {
			observability.Current().IncStepSave(step, "ok")
			p.UpdatedAt = ps.clock.Now()
			return p, nil
		}
		observability.Current().IncStepConflict()
		ps.log.Debug("Step save lost a race, retrying", "policy_id", policyID, "attempt", attempt)
	}
	observability.Current().IncStepSave(step, "conflict")
	return nil, apierr.New(http.StatusConflict, "policy_conflict", errors.New("policy changed while saving, retry"))
}

func (ps *policyService) Progress(ctx context.Context, policyID uuid.UUID) (wizard.Progress, error) {
	p, err := ps.Get(ctx, policyID)
	if err != nil {
		return wizard.Progress{}, err
	}
	return wizard.Summarize(wizard.FromPolicy(p)), nil
}

func (ps *policyService) Duplicate(ctx context.Context, policyID uuid.UUID) (*types.Policy, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var clone *types.Policy
	err = ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		src, err := loadOwned(dbc, ps.policyRepo, policyID, userID)
		if err != nil {
			return err
		}
		if err := ps.checkPlanLimit(dbc, userID); err != nil {
			return err
		}
		name := src.Name + copySuffix
		if len([]rune(name)) > maxPolicyName {
			name = string([]rune(name)[:maxPolicyName])
		}
		// The copy keeps every payload but restarts the wizard bookkeeping.
		clone = &types.Policy{
			ID:          uuid.New(),
			UserID:      userID,
			Name:        name,
			Status:      policy.StatusDraft,
			CurrentStep: 1,
			StepData:    datatypes.NewJSONType(src.Payloads()),
		}
		if _, err := ps.policyRepo.Create(dbc, []*types.Policy{clone}); err != nil {
			return fmt.Errorf("create copy: %w", err)
		}
		return ps.audit.Record(dbc, policyAudit(userID, audit.ActionPolicyDuplicated, clone.ID,
			map[string]any{"source_policy_id": src.ID.String()}))
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}

func (ps *policyService) Share(ctx context.Context, policyID uuid.UUID) (*types.Policy, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	var out *types.Policy
	err = ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		p, err := loadOwned(dbc, ps.policyRepo, policyID, userID)
		if err != nil {
			return err
		}
		if !p.Complete() {
			return errPolicyIncomplete()
		}
		if p.ShareToken != nil && *p.ShareToken != "" {
			out = p
			return nil
		}
		token := ksuid.New().String()
		now := ps.clock.Now()
		if err := ps.policyRepo.UpdateFields(dbc, p.ID, map[string]any{"share_token": token, "shared_at": now}); err != nil {
			return fmt.Errorf("share policy: %w", err)
		}
		p.ShareToken = &token
		p.SharedAt = &now
		out = p
		return ps.audit.Record(dbc, policyAudit(userID, audit.ActionPolicyShared, p.ID, nil))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (ps *policyService) Unshare(ctx context.Context, policyID uuid.UUID) error {
	userID, err := requireCaller(ctx)
	if err != nil {
		return err
	}
	return ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		p, err := loadOwned(dbc, ps.policyRepo, policyID, userID)
		if err != nil {
			return err
		}
		if p.ShareToken == nil {
			return nil
		}
		if err := ps.policyRepo.UpdateFields(dbc, p.ID, map[string]any{"share_token": nil, "shared_at": nil}); err != nil {
			return fmt.Errorf("unshare policy: %w", err)
		}
		return ps.audit.Record(dbc, policyAudit(userID, audit.ActionPolicyUnshared, p.ID, nil))
	})
}

func (ps *policyService) GetShared(ctx context.Context, token string) (*types.Policy, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errPolicyNotFound()
	}
	p, err := ps.policyRepo.GetByShareToken(dbctx.Context{Ctx: ctx}, token)
	if err != nil {
		return nil, fmt.Errorf("load shared policy: %w", err)
	}
	// A link can outlive the policy's completeness only if data was edited
	// afterwards; completion never regresses, so the check is just for safety.
	if p == nil || !p.Complete() {
		return nil, errPolicyNotFound()
	}
	return p, nil
}
