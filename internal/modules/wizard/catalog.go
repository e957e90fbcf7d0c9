package wizard

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed steps.yaml
var stepsYAML []byte

type Field struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

type Step struct {
	Number  int     `yaml:"number" json:"number"`
	Key     string  `yaml:"key" json:"key"`
	Title   string  `yaml:"title" json:"title"`
	Summary string  `yaml:"summary" json:"summary"`
	Fields  []Field `yaml:"fields" json:"fields"`
}

// Label returns the display label for a payload key, or the key itself.
func (s Step) Label(key string) string {
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Label
		}
	}
	return key
}

var (
	catalogOnce sync.Once
	catalog     []Step
	catalogErr  error
)

func parseCatalog(raw []byte) ([]Step, error) {
	var doc struct {
		Steps []Step `yaml:"steps"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse step catalog: %w", err)
	}
	if len(doc.Steps) != TotalSteps {
		return nil, fmt.Errorf("step catalog has %d steps, want %d", len(doc.Steps), TotalSteps)
	}
	for i, s := range doc.Steps {
		if s.Number != i+1 {
			return nil, fmt.Errorf("step catalog entry %d is numbered %d", i, s.Number)
		}
	}
	return doc.Steps, nil
}

// Catalog returns the twelve wizard steps in order. The embedded file is
// validated once; a malformed catalog is a build defect and panics.
func Catalog() []Step {
	catalogOnce.Do(func() {
		catalog, catalogErr = parseCatalog(stepsYAML)
	})
	if catalogErr != nil {
		panic(catalogErr)
	}
	out := make([]Step, len(catalog))
	copy(out, catalog)
	return out
}

func StepByNumber(n int) (Step, bool) {
	if n < 1 || n > TotalSteps {
		return Step{}, false
	}
	return Catalog()[n-1], true
}
