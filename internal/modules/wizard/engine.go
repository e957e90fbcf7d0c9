package wizard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/yungbote/politicas-backend/internal/domain/policy"
)

const TotalSteps = 12

var (
	ErrInvalidStep    = errors.New("step must be between 1 and 12")
	ErrInvalidPayload = errors.New("step data must be valid JSON")
)

// State is the wizard bookkeeping of one policy.
type State struct {
	Status        policy.Status
	CurrentStep   int
	Completed     []int
	Payloads      policy.StepPayloads
	CompletionPct int
}

// FromPolicy copies the wizard state out of a policy row.
func FromPolicy(p *policy.Policy) State {
	return State{
		Status:        p.Status,
		CurrentStep:   p.CurrentStep,
		Completed:     append([]int(nil), p.CompletedSteps...),
		Payloads:      p.Payloads(),
		CompletionPct: p.CompletionPct,
	}
}

// Percent is round(100 * completed / 12), rounding halves away from zero.
func Percent(completed int) int {
	if completed <= 0 {
		return 0
	}
	if completed >= TotalSteps {
		return 100
	}
	return int(math.Round(100 * float64(completed) / float64(TotalSteps)))
}

// Apply records payload for step and returns the advanced state. s is not modified.
func Apply(s State, step int, payload json.RawMessage) (State, error) {
	if step < 1 || step > TotalSteps {
		return s, ErrInvalidStep
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || !json.Valid(trimmed) {
		return s, ErrInvalidPayload
	}

	next := State{
		Status:   s.Status,
		Payloads: make(policy.StepPayloads, len(s.Payloads)+1),
	}
	for k, v := range s.Payloads {
		next.Payloads[k] = append(json.RawMessage(nil), v...)
	}
	next.Payloads[strconv.Itoa(step)] = append(json.RawMessage(nil), trimmed...)

	next.Completed = normalize(append(append([]int(nil), s.Completed...), step))
	next.CompletionPct = Percent(len(next.Completed))
	next.CurrentStep = min(step+1, TotalSteps)

	switch {
	case len(next.Completed) == TotalSteps:
		next.Status = policy.StatusCompleted
	case next.Status == "" || next.Status == policy.StatusDraft:
		next.Status = policy.StatusInProgress
	}
	return next, nil
}

// normalize sorts, de-duplicates and drops out-of-range step numbers.
func normalize(steps []int) []int {
	seen := make(map[int]struct{}, len(steps))
	out := make([]int, 0, len(steps))
	for _, n := range steps {
		if n < 1 || n > TotalSteps {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func contains(steps []int, n int) bool {
	for _, s := range steps {
		if s == n {
			return true
		}
	}
	return false
}

// StepAccessible reports whether step n may be opened: step 1 always, any
// other step once it or its predecessor is completed.
func StepAccessible(completed []int, n int) bool {
	if n < 1 || n > TotalSteps {
		return false
	}
	if n == 1 {
		return true
	}
	return contains(completed, n-1) || contains(completed, n)
}

type StepProgress struct {
	Number     int    `json:"number"`
	Key        string `json:"key"`
	Title      string `json:"title"`
	Completed  bool   `json:"completed"`
	Accessible bool   `json:"accessible"`
}

type Progress struct {
	Status        policy.Status  `json:"status"`
	CurrentStep   int            `json:"current_step"`
	CompletionPct int            `json:"completion_pct"`
	Completed     []int          `json:"completed_steps"`
	Steps         []StepProgress `json:"steps"`
	NextStep      int            `json:"next_step"`
}

// Summarize describes every step of s for the client's step navigator.
// NextStep is the first incomplete step, or 0 when all are done.
func Summarize(s State) Progress {
	completed := normalize(s.Completed)
	out := Progress{
		Status:        s.Status,
		CurrentStep:   s.CurrentStep,
		CompletionPct: Percent(len(completed)),
		Completed:     completed,
	}
	for _, st := range Catalog() {
		done := contains(completed, st.Number)
		if !done && out.NextStep == 0 {
			out.NextStep = st.Number
		}
		out.Steps = append(out.Steps, StepProgress{
			Number:     st.Number,
			Key:        st.Key,
			Title:      st.Title,
			Completed:  done,
			Accessible: StepAccessible(completed, st.Number),
		})
	}
	return out
}

// ParseStep converts a path segment into a step number.
func ParseStep(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStep, raw)
	}
	if n < 1 || n > TotalSteps {
		return 0, ErrInvalidStep
	}
	return n, nil
}
