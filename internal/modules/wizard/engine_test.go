package wizard

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/politicas-backend/internal/domain/policy"
)

func TestPercent(t *testing.T) {
	want := map[int]int{0: 0, 1: 8, 2: 17, 3: 25, 4: 33, 5: 42, 6: 50, 7: 58, 8: 67, 9: 75, 10: 83, 11: 92, 12: 100}
	for n, pct := range want {
		if got := Percent(n); got != pct {
			t.Fatalf("Percent(%d)=%d want %d", n, got, pct)
		}
	}
}

func TestApplyRejectsOutOfRangeStep(t *testing.T) {
	s := State{Status: policy.StatusDraft, CurrentStep: 1}
	for _, step := range []int{0, 13, -1} {
		if _, err := Apply(s, step, json.RawMessage(`{}`)); !errors.Is(err, ErrInvalidStep) {
			t.Fatalf("Apply(step=%d): want ErrInvalidStep, got %v", step, err)
		}
	}
	for _, raw := range []string{"", "null", "{broken"} {
		if _, err := Apply(s, 1, json.RawMessage(raw)); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("Apply(payload=%q): want ErrInvalidPayload, got %v", raw, err)
		}
	}
}

func TestApplyProgressesAndIsIdempotent(t *testing.T) {
	s := State{Status: policy.StatusDraft, CurrentStep: 1}

	s1, err := Apply(s, 1, json.RawMessage(`{"razon_social":"Acme"}`))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if s1.Status != policy.StatusInProgress || s1.CompletionPct != 8 || s1.CurrentStep != 2 {
		t.Fatalf("after step 1: %+v", s1)
	}
	if len(s.Payloads) != 0 {
		t.Fatalf("input state mutated: %+v", s.Payloads)
	}

	s2, err := Apply(s1, 1, json.RawMessage(`{"razon_social":"Acme SpA"}`))
	if err != nil {
		t.Fatalf("Apply again: %v", err)
	}
	if len(s2.Completed) != 1 || s2.CompletionPct != 8 {
		t.Fatalf("re-save changed membership: %+v", s2.Completed)
	}
	if string(s2.Payloads["1"]) != `{"razon_social":"Acme SpA"}` {
		t.Fatalf("payload not replaced: %s", s2.Payloads["1"])
	}

	// A corrective edit of an early step still moves the pointer to step+1.
	s3, _ := Apply(s2, 5, json.RawMessage(`{}`))
	s4, _ := Apply(s3, 2, json.RawMessage(`{}`))
	if s4.CurrentStep != 3 {
		t.Fatalf("current step after editing 2: %d", s4.CurrentStep)
	}
	if diff := cmp.Diff([]int{1, 2, 5}, s4.Completed); diff != "" {
		t.Fatalf("completed mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyCompletesOnlyWithAllSteps(t *testing.T) {
	forward := make([]int, 0, TotalSteps)
	backward := make([]int, 0, TotalSteps)
	for i := 1; i <= TotalSteps; i++ {
		forward = append(forward, i)
		backward = append(backward, TotalSteps+1-i)
	}
	cases := []struct {
		name     string
		order    []int
		wantStep int
	}{
		{"forward", forward, TotalSteps},
		// The last save is step 1, so the pointer lands on step 2.
		{"backward", backward, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := State{Status: policy.StatusDraft, CurrentStep: 1}
			var err error
			for _, step := range tc.order {
				if s.Status == policy.StatusCompleted {
					t.Fatalf("completed before all steps, at step %d", step)
				}
				s, err = Apply(s, step, json.RawMessage(`{"ok":true}`))
				if err != nil {
					t.Fatalf("Apply(%d): %v", step, err)
				}
				if s.CompletionPct != Percent(len(s.Completed)) || s.CompletionPct < 0 || s.CompletionPct > 100 {
					t.Fatalf("pct invariant broken: %+v", s)
				}
				if s.Status == policy.StatusDraft {
					t.Fatalf("status went back to DRAFT")
				}
			}
			if s.Status != policy.StatusCompleted || s.CompletionPct != 100 || s.CurrentStep != tc.wantStep {
				t.Fatalf("final state: %+v", s)
			}

			again, _ := Apply(s, 3, json.RawMessage(`{"ok":false}`))
			if again.Status != policy.StatusCompleted || again.CurrentStep != 4 {
				t.Fatalf("corrective edit after completion: %+v", again)
			}
		})
	}
}

func TestStepAccessible(t *testing.T) {
	completed := []int{1, 2, 4}
	cases := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: false, 12: false, 0: false, 13: false}
	for n, want := range cases {
		if got := StepAccessible(completed, n); got != want {
			t.Fatalf("StepAccessible(%v, %d)=%v want %v", completed, n, got, want)
		}
	}
	if !StepAccessible(nil, 1) || StepAccessible(nil, 2) {
		t.Fatalf("empty completion should only open step 1")
	}
}

func TestSummarize(t *testing.T) {
	p := Summarize(State{Status: policy.StatusInProgress, CurrentStep: 3, Completed: []int{2, 1, 1}})
	if p.NextStep != 3 || p.CompletionPct != 17 || len(p.Steps) != TotalSteps {
		t.Fatalf("summary: next=%d pct=%d steps=%d", p.NextStep, p.CompletionPct, len(p.Steps))
	}
	if !p.Steps[2].Accessible || p.Steps[3].Accessible {
		t.Fatalf("accessibility: step3=%v step4=%v", p.Steps[2].Accessible, p.Steps[3].Accessible)
	}
}

func TestCatalog(t *testing.T) {
	steps := Catalog()
	if len(steps) != TotalSteps {
		t.Fatalf("catalog size %d", len(steps))
	}
	st, ok := StepByNumber(1)
	if !ok || st.Label("razon_social") != "Razón social" || st.Label("unknown") != "unknown" {
		t.Fatalf("step 1 labels: %+v", st)
	}
	if _, err := parseCatalog([]byte("steps: []")); err == nil {
		t.Fatalf("expected error for empty catalog")
	}
}

func TestParseStep(t *testing.T) {
	if n, err := ParseStep("7"); err != nil || n != 7 {
		t.Fatalf("ParseStep(7)=%d,%v", n, err)
	}
	for _, raw := range []string{"0", "13", "x", ""} {
		if _, err := ParseStep(raw); !errors.Is(err, ErrInvalidStep) {
			t.Fatalf("ParseStep(%q): %v", raw, err)
		}
	}
}
