package catalog

import (
	"time"

	"pricebook/internal/types"
)

// UnlimitedBundle allows any number of subscriptions to a plan in one bundle.
const UnlimitedBundle = -1

// Plan is an ordered sequence of phases for one product: zero or more initial
// phases followed by exactly one final phase.
type Plan struct {
	Name          string
	Product       *Product
	InitialPhases []*PlanPhase
	FinalPhase    *PlanPhase
	Retired       bool

	// PlansAllowedInBundle caps subscriptions to this plan per bundle.
	// Zero is normalized to 1 during initialization; UnlimitedBundle lifts the cap.
	PlansAllowedInBundle int

	// EffectiveDateForExistingSubscriptions opts this version of the plan into
	// subscriptions that started before the catalog version took effect.
	// Nil keeps existing subscriptions on the version they started with.
	EffectiveDateForExistingSubscriptions *time.Time

	catalogName string
}

// AllPhases returns the initial phases followed by the final phase.
func (p *Plan) AllPhases() []*PlanPhase {
	phases := make([]*PlanPhase, 0, len(p.InitialPhases)+1)
	phases = append(phases, p.InitialPhases...)
	if p.FinalPhase != nil {
		phases = append(phases, p.FinalPhase)
	}
	return phases
}

// BillingPeriod is the billing period of the final phase.
func (p *Plan) BillingPeriod() types.BillingPeriod {
	if p.FinalPhase == nil {
		return ""
	}
	return p.FinalPhase.BillingPeriod
}

// ProductName returns the name of the plan's product, or "" if unset.
func (p *Plan) ProductName() string {
	if p.Product == nil {
		return ""
	}
	return p.Product.Name
}

// CatalogName returns the name of the catalog the plan was initialized in.
func (p *Plan) CatalogName() string {
	return p.catalogName
}

// FindPhase returns the phase called name.
func (p *Plan) FindPhase(name string) (*PlanPhase, error) {
	for _, ph := range p.AllPhases() {
		if PhaseName(p.Name, ph.Type) == name {
			return ph, nil
		}
	}
	return nil, phaseNotFound(name)
}

// PhaseOfType returns the first phase of type t.
func (p *Plan) PhaseOfType(t types.PhaseType) (*PlanPhase, bool) {
	for _, ph := range p.AllPhases() {
		if ph.Type == t {
			return ph, true
		}
	}
	return nil, false
}

// PhaseAfter returns the phase following the phase of type t. ok is false
// when t is the final phase or not part of the plan.
func (p *Plan) PhaseAfter(t types.PhaseType) (next *PlanPhase, ok bool) {
	phases := p.AllPhases()
	for i, ph := range phases[:max(len(phases)-1, 0)] {
		if ph.Type == t {
			return phases[i+1], true
		}
	}
	return nil, false
}

// PhaseAt returns the phase in effect at t for a subscription that started at
// start, along with the date that phase began.
func (p *Plan) PhaseAt(start, t time.Time) (*PlanPhase, time.Time) {
	phaseStart := start
	for _, ph := range p.InitialPhases {
		end := ph.EndDate(phaseStart)
		if t.Before(end) {
			return ph, phaseStart
		}
		phaseStart = end
	}
	return p.FinalPhase, phaseStart
}

// DateOfFirstRecurringNonZeroCharge returns when the first phase with a
// non-zero recurring price starts, for a subscription starting at start. If no
// phase ever charges on a cadence, start is returned.
func (p *Plan) DateOfFirstRecurringNonZeroCharge(start time.Time) time.Time {
	at := start
	for _, ph := range p.AllPhases() {
		if ph.IsRecurring() && !ph.Recurring.IsZero() {
			return at
		}
		at = ph.EndDate(at)
	}
	return start
}

// IsRetired reports whether new subscriptions to the plan are disallowed,
// either directly or because its product is retired.
func (p *Plan) IsRetired() bool {
	return p.Retired || (p.Product != nil && p.Product.Retired)
}

// clone copies the plan and its phases. The product pointer is rebound by the
// caller so the copy references the copied product table.
func (p *Plan) clone() *Plan {
	cp := *p
	cp.InitialPhases = make([]*PlanPhase, len(p.InitialPhases))
	for i, ph := range p.InitialPhases {
		cp.InitialPhases[i] = ph.clone()
	}
	if p.FinalPhase != nil {
		cp.FinalPhase = p.FinalPhase.clone()
	}
	if p.EffectiveDateForExistingSubscriptions != nil {
		d := *p.EffectiveDateForExistingSubscriptions
		cp.EffectiveDateForExistingSubscriptions = &d
	}
	return &cp
}

func (p *Plan) validate(products map[string]*Product, supported map[types.Currency]struct{}) ValidationErrors {
	var errs ValidationErrors
	if p.Name == "" {
		errs.Add(kindPlan, p.Name, "plan name is required")
	}
	if p.Product == nil {
		errs.Add(kindPlan, p.Name, "plan has no product")
	} else if known, ok := products[p.Product.Name]; !ok || known != p.Product {
		errs.Add(kindPlan, p.Name, "product '%s' is not a product of this catalog", p.Product.Name)
	}
	if p.FinalPhase == nil {
		errs.Add(kindPlan, p.Name, "plan has no final phase")
	}
	if p.PlansAllowedInBundle < UnlimitedBundle || p.PlansAllowedInBundle == 0 {
		errs.Add(kindPlan, p.Name, "invalid plans allowed in bundle %d", p.PlansAllowedInBundle)
	}

	seen := make(map[types.PhaseType]struct{})
	for i, ph := range p.AllPhases() {
		if _, dup := seen[ph.Type]; dup {
			errs.Add(kindPlan, p.Name, "duplicate phase type %s", ph.Type)
		}
		seen[ph.Type] = struct{}{}
		if ph.Type == types.PhaseEvergreen && i < len(p.InitialPhases) {
			errs.Add(kindPlan, p.Name, "EVERGREEN phase must be the final phase")
		}
		if ph.Duration.IsUnlimited() && i < len(p.InitialPhases) {
			errs.Add(kindPlan, p.Name, "initial phase %s must have a bounded duration", ph.Type)
		}
		errs.Merge(ph.validate(p.Name, supported))
	}
	return errs
}
