package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/locks"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

const maxVersionNotes = 500

type VersionList struct {
	Versions       []*types.PolicyVersion `json:"versions"`
	CurrentVersion int                    `json:"current_version"`
}

type PolicyVersionService interface {
	// Create snapshots the policy under its current counter and bumps the counter.
	Create(ctx context.Context, policyID uuid.UUID, notes string) (*types.PolicyVersion, error)
	List(ctx context.Context, policyID uuid.UUID) (*VersionList, error)
	Get(ctx context.Context, policyID, versionID uuid.UUID) (*types.PolicyVersion, error)
}

type policyVersionService struct {
	db         *gorm.DB
	log        *logger.Logger
	policyRepo repos.PolicyRepo
	versions   repos.PolicyVersionRepo
	audit      AuditService
	locker     locks.Locker
}

func NewPolicyVersionService(
	db *gorm.DB,
	log *logger.Logger,
	policyRepo repos.PolicyRepo,
	versions repos.PolicyVersionRepo,
	auditService AuditService,
	locker locks.Locker,
) PolicyVersionService {
	if locker == nil {
		locker = locks.NewLocal()
	}
	return &policyVersionService{
		db:         db,
		log:        log.With("service", "PolicyVersionService"),
		policyRepo: policyRepo,
		versions:   versions,
		audit:      auditService,
		locker:     locker,
	}
}

func (vs *policyVersionService) Create(ctx context.Context, policyID uuid.UUID, notes string) (*types.PolicyVersion, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	fe := fieldErrors{}
	fe.maxLen("notes", notes, maxVersionNotes)
	if !fe.empty() {
		return nil, apierr.Validation(fe)
	}

	// Shares the step-save lock so a snapshot never straddles a save.
	release, err := vs.locker.Acquire(ctx, policyLockKey(policyID), policyLockTTL, policyLockWait)
	if err != nil {
		if errors.Is(err, locks.ErrNotAcquired) {
			return nil, apierr.New(http.StatusConflict, "policy_busy", errors.New("policy is being saved elsewhere, retry"))
		}
		return nil, fmt.Errorf("lock policy: %w", err)
	}
	defer release()

	var out *types.PolicyVersion
	err = vs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		p, err := loadOwned(dbc, vs.policyRepo, policyID, userID)
		if err != nil {
			return err
		}
		n := p.Version
		if n < 1 {
			n = 1
		}
		label := notes
		if label == "" {
			label = fmt.Sprintf("Versión %d", n)
		}
		v := &types.PolicyVersion{
			ID:             uuid.New(),
			PolicyID:       p.ID,
			VersionNumber:  n,
			StepData:       datatypes.NewJSONType(p.Payloads()),
			CompletedSteps: datatypes.JSONSlice[int](append([]int{}, p.CompletedSteps...)),
			CompletionPct:  p.CompletionPct,
			Notes:          label,
			CreatedBy:      userID,
		}
		if err := vs.versions.Create(dbc, v); err != nil {
			return fmt.Errorf("create version: %w", err)
		}
		if err := vs.policyRepo.UpdateFields(dbc, p.ID, map[string]any{"version": n + 1}); err != nil {
			return fmt.Errorf("bump version counter: %w", err)
		}
		out = v
		return vs.audit.Record(dbc, policyAudit(userID, audit.ActionPolicyVersionCreate, p.ID,
			map[string]any{"version_number": n, "version_id": v.ID.String()}))
	})
	if err != nil {
		return nil, err
	}
	vs.log.Info("Policy version created", "policy_id", policyID, "version", out.VersionNumber)
	return out, nil
}

func (vs *policyVersionService) List(ctx context.Context, policyID uuid.UUID) (*VersionList, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	p, err := loadOwned(dbc, vs.policyRepo, policyID, userID)
	if err != nil {
		return nil, err
	}
	list, err := vs.versions.ListByPolicyID(dbc, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	if list == nil {
		list = []*types.PolicyVersion{}
	}
	return &VersionList{Versions: list, CurrentVersion: p.Version}, nil
}

func (vs *policyVersionService) Get(ctx context.Context, policyID, versionID uuid.UUID) (*types.PolicyVersion, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := loadOwned(dbc, vs.policyRepo, policyID, userID); err != nil {
		return nil, err
	}
	v, err := vs.versions.Get(dbc, policyID, versionID)
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	if v == nil {
		return nil, apierr.NotFound("version_not_found", "version not found")
	}
	return v, nil
}
