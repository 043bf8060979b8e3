package model

import (
	"strings"

	"premium-activation/internal/domain"
)

// PlanTier is a purchasable premium duration/price tuple.
type PlanTier struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	DurationMonths int    `json:"durationMonths" yaml:"duration_months"`
	AmountMinor    int64  `json:"amountMinor" yaml:"amount_minor"`
	Currency       string `json:"currency" yaml:"currency"`
}

func (p *PlanTier) IsZero() bool { return p == nil || p.ID == "" }

// NewPlanTier validates and constructs a plan.
func NewPlanTier(id, name string, durationMonths int, amountMinor int64, currency string) (*PlanTier, error) {
	if id == "" || name == "" || durationMonths <= 0 || amountMinor <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "VND"
	}
	return &PlanTier{
		ID:             id,
		Name:           name,
		DurationMonths: durationMonths,
		AmountMinor:    amountMinor,
		Currency:       strings.ToUpper(currency),
	}, nil
}

// PlanCatalog resolves plan ids to tiers. Order is preserved for listing.
type PlanCatalog struct {
	plans []PlanTier
	byID  map[string]PlanTier
}

func NewPlanCatalog(plans []PlanTier) (*PlanCatalog, error) {
	c := &PlanCatalog{byID: make(map[string]PlanTier, len(plans))}
	for _, p := range plans {
		v, err := NewPlanTier(p.ID, p.Name, p.DurationMonths, p.AmountMinor, p.Currency)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byID[v.ID]; dup {
			return nil, domain.ErrInvalidArgument
		}
		c.byID[v.ID] = *v
		c.plans = append(c.plans, *v)
	}
	return c, nil
}

func (c *PlanCatalog) Find(id string) (PlanTier, error) {
	p, ok := c.byID[id]
	if !ok {
		return PlanTier{}, domain.ErrUnknownPlan
	}
	return p, nil
}

func (c *PlanCatalog) List() []PlanTier {
	out := make([]PlanTier, len(c.plans))
	copy(out, c.plans)
	return out
}
