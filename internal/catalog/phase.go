package catalog

import (
	"fmt"
	"strings"
	"time"

	"pricebook/internal/types"
)

// PlanPhase is one billing stage of a plan. A phase belongs to exactly one
// plan; it keeps the plan's name as a lookup key rather than a pointer.
type PlanPhase struct {
	Type          types.PhaseType
	Duration      Duration
	BillingPeriod types.BillingPeriod
	Fixed         *InternationalPrice
	Recurring     *InternationalPrice

	planName string
}

// PhaseName derives the canonical phase name: "<plan>-<type in lower case>".
func PhaseName(planName string, t types.PhaseType) string {
	return planName + "-" + strings.ToLower(string(t))
}

// PlanNameFromPhaseName is the inverse of PhaseName. It returns the plan name
// and the phase type encoded in phaseName.
func PlanNameFromPhaseName(phaseName string) (string, types.PhaseType, error) {
	for _, t := range types.AllPhaseTypes {
		suffix := "-" + strings.ToLower(string(t))
		if strings.HasSuffix(phaseName, suffix) && len(phaseName) > len(suffix) {
			return strings.TrimSuffix(phaseName, suffix), t, nil
		}
	}
	return "", "", types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidPhaseName,
		fmt.Sprintf("'%s' does not end with a phase type suffix", phaseName),
		ErrInvalidPhaseName, map[string]any{"phase": phaseName})
}

// Name returns the derived phase name. It is only meaningful once the owning
// catalog has been initialized.
func (ph *PlanPhase) Name() string {
	return PhaseName(ph.planName, ph.Type)
}

// PlanName returns the name of the owning plan.
func (ph *PlanPhase) PlanName() string {
	return ph.planName
}

// IsRecurring reports whether the phase charges on a cadence.
func (ph *PlanPhase) IsRecurring() bool {
	return ph.Recurring != nil && ph.BillingPeriod.IsRecurring()
}

// EndDate returns when the phase ends if it starts at start.
func (ph *PlanPhase) EndDate(start time.Time) time.Time {
	return ph.Duration.AddTo(start)
}

// FixedPrice returns the one-off charge for currency; zero when there is none.
func (ph *PlanPhase) FixedPrice(currency types.Currency) (Amount, error) {
	return ph.Fixed.Price(currency)
}

// RecurringPrice returns the per-period charge for currency; zero when there is none.
func (ph *PlanPhase) RecurringPrice(currency types.Currency) (Amount, error) {
	return ph.Recurring.Price(currency)
}

func (ph *PlanPhase) clone() *PlanPhase {
	cp := *ph
	if ph.Fixed != nil {
		cp.Fixed = NewInternationalPrice(ph.Fixed.prices...)
	}
	if ph.Recurring != nil {
		cp.Recurring = NewInternationalPrice(ph.Recurring.prices...)
	}
	return &cp
}

func (ph *PlanPhase) validate(planName string, supported map[types.Currency]struct{}) ValidationErrors {
	var errs ValidationErrors
	name := PhaseName(planName, ph.Type)

	if !ph.Type.IsValid() {
		errs.Add(kindPhase, name, "unknown phase type '%s'", ph.Type)
	}
	if ph.BillingPeriod != "" && !ph.BillingPeriod.IsValid() {
		errs.Add(kindPhase, name, "unknown billing period '%s'", ph.BillingPeriod)
	}
	errs.Merge(ph.Duration.validate(name))

	if ph.Recurring != nil && !ph.BillingPeriod.IsRecurring() {
		errs.Add(kindPhase, name, "recurring price requires a billing period other than %s", types.BillingNoBillingPeriod)
	}
	if ph.Recurring == nil && ph.BillingPeriod.IsRecurring() {
		errs.Add(kindPhase, name, "billing period %s requires a recurring price", ph.BillingPeriod)
	}
	if ph.BillingPeriod == types.BillingNoBillingPeriod && ph.Fixed == nil {
		errs.Add(kindPhase, name, "phase without billing period must carry a fixed price")
	}
	if ph.Fixed == nil && ph.Recurring == nil {
		errs.Add(kindPhase, name, "phase must carry a fixed or a recurring price")
	}

	errs.Merge(ph.Fixed.validate(name, supported))
	errs.Merge(ph.Recurring.validate(name, supported))
	return errs
}
