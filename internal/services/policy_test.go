package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/modules/wizard"
)

func stepPayload(step int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"razon_social":"Acme SpA","nota":"paso %d"}`, step))
}

// completePolicy saves all twelve steps and returns the final policy state.
func completePolicy(t *testing.T, env *testEnv, u *user.User) *policy.Policy {
	t.Helper()
	ctx := asUser(u)
	p, err := env.policy.Create(ctx, "Política Acme")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for step := 1; step <= wizard.TotalSteps; step++ {
		if p, err = env.policy.SaveStep(ctx, p.ID, step, stepPayload(step)); err != nil {
			t.Fatalf("SaveStep(%d): %v", step, err)
		}
	}
	return p
}

func TestPolicyCreateDefaultsAndPlanLimit(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierFree, user.RoleUser)

	p, err := env.policy.Create(ctx, "   ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name != DefaultPolicyName || p.Status != policy.StatusDraft || p.CurrentStep != 1 {
		t.Fatalf("defaults: name=%q status=%s step=%d", p.Name, p.Status, p.CurrentStep)
	}

	_, err = env.policy.Create(ctx, "Segunda")
	requireAPIError(t, err, http.StatusForbidden, "plan_limit_reached")

	_, err = env.policy.Duplicate(ctx, p.ID)
	requireAPIError(t, err, http.StatusForbidden, "plan_limit_reached")

	actions := env.auditActions(t, u.ID)
	if len(actions) != 1 || actions[0] != audit.ActionPolicyCreated {
		t.Fatalf("audit actions=%v", actions)
	}
}

func TestPolicyOwnershipIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, ownerCtx := env.seedUser(t, user.TierFree, user.RoleUser)
	_, otherCtx := env.seedUser(t, user.TierFree, user.RoleUser)

	p, err := env.policy.Create(ownerCtx, "Mía")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.policy.Get(otherCtx, p.ID); err == nil {
		t.Fatalf("expected error reading someone else's policy")
	} else {
		requireAPIError(t, err, http.StatusNotFound, "policy_not_found")
	}
	_, err = env.policy.SaveStep(otherCtx, p.ID, 1, stepPayload(1))
	requireAPIError(t, err, http.StatusNotFound, "policy_not_found")
	err = env.policy.Delete(otherCtx, p.ID)
	requireAPIError(t, err, http.StatusNotFound, "policy_not_found")
	_, err = env.policy.Get(ownerCtx, uuid.New())
	requireAPIError(t, err, http.StatusNotFound, "policy_not_found")
}

func TestSaveStepAdvancesWizard(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierProfessional, user.RoleUser)
	p, err := env.policy.Create(ctx, "Wizard")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	p, err = env.policy.SaveStep(ctx, p.ID, 3, stepPayload(3))
	if err != nil {
		t.Fatalf("SaveStep: %v", err)
	}
	if p.Status != policy.StatusInProgress || p.CurrentStep != 4 || p.CompletionPct != 8 {
		t.Fatalf("after step 3: status=%s current=%d pct=%d", p.Status, p.CurrentStep, p.CompletionPct)
	}

	// Saving the same step again is idempotent for the completed set.
	p, err = env.policy.SaveStep(ctx, p.ID, 3, json.RawMessage(`{"razon_social":"Otra"}`))
	if err != nil {
		t.Fatalf("SaveStep again: %v", err)
	}
	if len(p.CompletedSteps) != 1 || p.CompletionPct != 8 {
		t.Fatalf("completed=%v pct=%d", p.CompletedSteps, p.CompletionPct)
	}
	if got := string(p.Payloads()["3"]); got != `{"razon_social":"Otra"}` {
		t.Fatalf("payload=%s", got)
	}

	_, err = env.policy.SaveStep(ctx, p.ID, 13, stepPayload(13))
	requireAPIError(t, err, http.StatusBadRequest, "validation_failed")
	_, err = env.policy.SaveStep(ctx, p.ID, 2, json.RawMessage(`{not json`))
	requireAPIError(t, err, http.StatusBadRequest, "validation_failed")

	progress, err := env.policy.Progress(ctx, p.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if progress.CompletionPct != 8 {
		t.Fatalf("progress pct=%d", progress.CompletionPct)
	}

	stored, err := env.policy.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.RowVersion != 2 {
		t.Fatalf("row version=%d want 2", stored.RowVersion)
	}
	if !hasString(env.auditActions(t, u.ID), audit.ActionPolicyStepSaved) {
		t.Fatalf("missing step_saved audit")
	}
}

func TestSaveStepConcurrentWritersKeepEveryStep(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.seedUser(t, user.TierProfessional, user.RoleUser)
	p, err := env.policy.Create(ctx, "Concurrente")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, wizard.TotalSteps)
	for step := 1; step <= wizard.TotalSteps; step++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			if _, err := env.policy.SaveStep(ctx, p.ID, step, stepPayload(step)); err != nil {
				errs <- err
			}
		}(step)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent SaveStep: %v", err)
	}

	final, err := env.policy.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.CompletionPct != 100 || final.Status != policy.StatusCompleted {
		t.Fatalf("pct=%d status=%s", final.CompletionPct, final.Status)
	}
	if n := len(final.Payloads()); n != wizard.TotalSteps {
		t.Fatalf("payloads=%d want %d", n, wizard.TotalSteps)
	}
}

func TestDuplicateResetsProgressAndShareRequiresCompletion(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierEnterprise, user.RoleUser)
	p, err := env.policy.Create(ctx, "Base")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = env.policy.Share(ctx, p.ID)
	requireAPIError(t, err, http.StatusBadRequest, "policy_incomplete")

	full := completePolicy(t, env, u)
	shared, err := env.policy.Share(ctx, full.ID)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if shared.ShareToken == nil || *shared.ShareToken == "" {
		t.Fatalf("no share token")
	}
	again, err := env.policy.Share(ctx, full.ID)
	if err != nil || *again.ShareToken != *shared.ShareToken {
		t.Fatalf("re-share changed token: %v", err)
	}
	if _, err := env.policy.GetShared(asUser(u), *shared.ShareToken); err != nil {
		t.Fatalf("GetShared: %v", err)
	}

	clone, err := env.policy.Duplicate(ctx, full.ID)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if clone.Name != "Política Acme (copia)" || clone.Status != policy.StatusDraft || clone.CompletionPct != 0 {
		t.Fatalf("clone name=%q status=%s pct=%d", clone.Name, clone.Status, clone.CompletionPct)
	}
	if len(clone.Payloads()) != wizard.TotalSteps {
		t.Fatalf("clone payloads=%d", len(clone.Payloads()))
	}
	if clone.ShareToken != nil {
		t.Fatalf("clone must not inherit share token")
	}

	if err := env.policy.Unshare(ctx, full.ID); err != nil {
		t.Fatalf("Unshare: %v", err)
	}
	_, err = env.policy.GetShared(ctx, *shared.ShareToken)
	requireAPIError(t, err, http.StatusNotFound, "policy_not_found")
}

func TestPolicyDeleteRemovesChildren(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierProfessional, user.RoleUser)
	p := completePolicy(t, env, u)
	if _, err := env.version.Create(ctx, p.ID, ""); err != nil {
		t.Fatalf("version: %v", err)
	}
	if _, err := env.export.Generate(ctx, p.ID, policy.FormatHTML); err != nil {
		t.Fatalf("export: %v", err)
	}

	if err := env.policy.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var n int64
	env.db.Model(&policy.PolicyVersion{}).Where("policy_id = ?", p.ID).Count(&n)
	if n != 0 {
		t.Fatalf("versions left: %d", n)
	}
	env.db.Model(&policy.PolicyDownload{}).Where("policy_id = ?", p.ID).Count(&n)
	if n != 0 {
		t.Fatalf("downloads left: %d", n)
	}
	if !hasString(env.auditActions(t, u.ID), audit.ActionPolicyDeleted) {
		t.Fatalf("missing delete audit")
	}
}

func TestPolicyVersions(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.seedUser(t, user.TierProfessional, user.RoleUser)
	p, err := env.policy.Create(ctx, "Versionada")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.policy.SaveStep(ctx, p.ID, 1, stepPayload(1)); err != nil {
		t.Fatalf("SaveStep: %v", err)
	}

	v1, err := env.version.Create(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("Create v1: %v", err)
	}
	if v1.VersionNumber != 1 || v1.Notes != "Versión 1" || v1.CompletionPct != 8 {
		t.Fatalf("v1=%+v", v1)
	}

	if _, err := env.policy.SaveStep(ctx, p.ID, 2, stepPayload(2)); err != nil {
		t.Fatalf("SaveStep 2: %v", err)
	}
	v2, err := env.version.Create(ctx, p.ID, "antes de revisión legal")
	if err != nil {
		t.Fatalf("Create v2: %v", err)
	}
	if v2.VersionNumber != 2 || v2.Notes != "antes de revisión legal" {
		t.Fatalf("v2=%+v", v2)
	}

	list, err := env.version.List(ctx, p.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.CurrentVersion != 3 || len(list.Versions) != 2 || list.Versions[0].VersionNumber != 2 {
		t.Fatalf("list current=%d len=%d", list.CurrentVersion, len(list.Versions))
	}
	for _, v := range list.Versions {
		if v.VersionNumber >= list.CurrentVersion {
			t.Fatalf("snapshot %d not below counter %d", v.VersionNumber, list.CurrentVersion)
		}
	}

	// The first snapshot is unaffected by later saves.
	got, err := env.version.Get(ctx, p.ID, v1.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.StepData.Data()) != 1 {
		t.Fatalf("v1 payloads=%d want 1", len(got.StepData.Data()))
	}
	_, err = env.version.Get(ctx, p.ID, uuid.New())
	requireAPIError(t, err, http.StatusNotFound, "version_not_found")
}
