package billing

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/politicas-backend/internal/domain/billing"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/platform/mercadopago"
)

//go:embed plans.yaml
var plansYAML []byte

var ErrUnknownPlan = errors.New("unknown plan or period")

type Plan struct {
	Tier        user.Tier                `yaml:"tier" json:"tier"`
	Name        string                   `yaml:"name" json:"name"`
	PolicyLimit int                      `yaml:"policy_limit" json:"policy_limit"`
	Prices      map[billing.Period]int64 `yaml:"prices" json:"prices"`
}

type Catalog struct {
	Currency string `yaml:"currency" json:"currency"`
	Plans    []Plan `yaml:"plans" json:"plans"`
}

var (
	catalogOnce sync.Once
	catalog     Catalog
	catalogErr  error
)

func parseCatalog(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse plan catalog: %w", err)
	}
	seen := map[user.Tier]bool{}
	for _, p := range c.Plans {
		if !p.Tier.Valid() {
			return Catalog{}, fmt.Errorf("plan catalog: invalid tier %q", p.Tier)
		}
		seen[p.Tier] = true
		for period, amount := range p.Prices {
			if !period.Valid() || amount <= 0 {
				return Catalog{}, fmt.Errorf("plan catalog: bad price %s/%s=%d", p.Tier, period, amount)
			}
		}
	}
	for _, t := range []user.Tier{user.TierFree, user.TierProfessional, user.TierEnterprise} {
		if !seen[t] {
			return Catalog{}, fmt.Errorf("plan catalog: missing tier %s", t)
		}
	}
	return c, nil
}

// Plans returns the embedded price table. It panics if the embedded file is malformed.
func Plans() Catalog {
	catalogOnce.Do(func() {
		catalog, catalogErr = parseCatalog(plansYAML)
	})
	if catalogErr != nil {
		panic(catalogErr)
	}
	return catalog
}

func (c Catalog) Plan(t user.Tier) (Plan, bool) {
	for _, p := range c.Plans {
		if p.Tier == t {
			return p, true
		}
	}
	return Plan{}, false
}

// Price is the amount charged for a paid tier and period.
func (c Catalog) Price(t user.Tier, period billing.Period) (int64, error) {
	p, ok := c.Plan(t)
	if !ok || !t.Paid() {
		return 0, ErrUnknownPlan
	}
	amount, ok := p.Prices[period]
	if !ok {
		return 0, ErrUnknownPlan
	}
	return amount, nil
}

// PolicyLimit is how many policies a tier may own; 0 means unlimited.
func (c Catalog) PolicyLimit(t user.Tier) int {
	if p, ok := c.Plan(t); ok {
		return p.PolicyLimit
	}
	if fp, ok := c.Plan(user.TierFree); ok {
		return fp.PolicyLimit
	}
	return 1
}

// WithinLimit reports whether a user on tier t who owns `owned` policies may create another.
func (c Catalog) WithinLimit(t user.Tier, owned int64) bool {
	limit := c.PolicyLimit(t)
	return limit == 0 || owned < int64(limit)
}

// MapProviderStatus translates a Mercado Pago payment status into the local state machine.
func MapProviderStatus(status string) billing.Status {
	switch status {
	case mercadopago.StatusApproved:
		return billing.StatusCompleted
	case mercadopago.StatusRejected, mercadopago.StatusCancelled:
		return billing.StatusFailed
	case mercadopago.StatusRefunded, mercadopago.StatusChargedBack:
		return billing.StatusRefunded
	default:
		return billing.StatusPending
	}
}

// CanTransition reports whether a payment in `from` may move to `to`.
// Terminal states stay put except COMPLETED, which can still be refunded.
func CanTransition(from, to billing.Status) bool {
	if from == to {
		return false
	}
	switch from {
	case billing.StatusPending:
		return to == billing.StatusCompleted || to == billing.StatusFailed || to == billing.StatusRefunded
	case billing.StatusCompleted:
		return to == billing.StatusRefunded
	default:
		return false
	}
}

// SourcesFor lists the states a payment may be in when moving to `to`.
func SourcesFor(to billing.Status) []billing.Status {
	var out []billing.Status
	for _, from := range []billing.Status{billing.StatusPending, billing.StatusCompleted, billing.StatusFailed, billing.StatusRefunded} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
