package catalog

import "pricebook/internal/types"

// Case is implemented by every kind of rule case: it decides whether it
// applies to a query and carries the result it yields when it does.
type Case[Q, R any] interface {
	Matches(q Q) bool
	Result() R
}

// EvaluateFunc tests cases from the last to the first and returns the result
// of the first one pred accepts, so the last-declared matching case wins.
// ok is false when nothing matches.
func EvaluateFunc[C, R any](cases []C, pred func(C) bool, result func(C) R) (res R, ok bool) {
	for i := len(cases) - 1; i >= 0; i-- {
		if pred(cases[i]) {
			return result(cases[i]), true
		}
	}
	return res, false
}

// Evaluate runs EvaluateFunc over cases that match themselves against q.
func Evaluate[Q, R any, C Case[Q, R]](cases []C, q Q) (R, bool) {
	return EvaluateFunc(cases,
		func(c C) bool { return c.Matches(q) },
		func(c C) R { return c.Result() },
	)
}

// subject is the set of attributes a selector is tested against.
type subject struct {
	product       string
	category      types.ProductCategory
	billingPeriod types.BillingPeriod
	priceList     string
	phaseType     types.PhaseType
}

// PlanSelector restricts a case to plans with the given attributes. Empty
// fields are wildcards.
type PlanSelector struct {
	Product         string                `json:"product,omitempty"`
	ProductCategory types.ProductCategory `json:"product_category,omitempty"`
	BillingPeriod   types.BillingPeriod   `json:"billing_period,omitempty"`
	PriceList       string                `json:"price_list,omitempty"`
}

func (s PlanSelector) matches(sub subject) bool {
	return (s.Product == "" || s.Product == sub.product) &&
		(s.ProductCategory == "" || s.ProductCategory == sub.category) &&
		(s.BillingPeriod == "" || s.BillingPeriod == sub.billingPeriod) &&
		(s.PriceList == "" || s.PriceList == sub.priceList)
}

// IsWildcard reports whether every field is empty.
func (s PlanSelector) IsWildcard() bool {
	return s == PlanSelector{}
}

// PhaseSelector is a PlanSelector further restricted to a phase type.
type PhaseSelector struct {
	PlanSelector
	PhaseType types.PhaseType `json:"phase_type,omitempty"`
}

func (s PhaseSelector) matches(sub subject) bool {
	return (s.PhaseType == "" || s.PhaseType == sub.phaseType) && s.PlanSelector.matches(sub)
}

// IsWildcard reports whether every field is empty.
func (s PhaseSelector) IsWildcard() bool {
	return s.PhaseType == "" && s.PlanSelector.IsWildcard()
}

// changeQuery describes a plan change: the phase being left, and the plan
// being moved to.
type changeQuery struct {
	from subject
	to   subject
}

// ChangeSelector restricts a change case by the phase being left, the
// originating plan and the target plan.
type ChangeSelector struct {
	PhaseType types.PhaseType `json:"phase_type,omitempty"`
	From      PlanSelector    `json:"from"`
	To        PlanSelector    `json:"to"`
}

func (s ChangeSelector) matches(q changeQuery) bool {
	return (s.PhaseType == "" || s.PhaseType == q.from.phaseType) &&
		s.From.matches(q.from) && s.To.matches(q.to)
}

// IsWildcard reports whether every field is empty.
func (s ChangeSelector) IsWildcard() bool {
	return s.PhaseType == "" && s.From.IsWildcard() && s.To.IsWildcard()
}

// PlanChangeCase yields the policy for a matching plan change.
type PlanChangeCase struct {
	ChangeSelector
	Policy types.ActionPolicy `json:"policy"`
}

func (c PlanChangeCase) Matches(q changeQuery) bool { return c.ChangeSelector.matches(q) }
func (c PlanChangeCase) Result() types.ActionPolicy { return c.Policy }

// PlanChangeAlignmentCase yields how the target plan's phases are aligned.
type PlanChangeAlignmentCase struct {
	ChangeSelector
	Alignment types.PlanAlignmentChange `json:"alignment"`
}

func (c PlanChangeAlignmentCase) Matches(q changeQuery) bool { return c.ChangeSelector.matches(q) }
func (c PlanChangeAlignmentCase) Result() types.PlanAlignmentChange { return c.Alignment }

// PriceListCase yields the price list a plan change lands on.
type PriceListCase struct {
	ChangeSelector
	PriceList string `json:"price_list_result"`
}

func (c PriceListCase) Matches(q changeQuery) bool { return c.ChangeSelector.matches(q) }
func (c PriceListCase) Result() string { return c.PriceList }

// PlanCancelCase yields the policy for cancelling a matching phase.
type PlanCancelCase struct {
	PhaseSelector
	Policy types.ActionPolicy `json:"policy"`
}

func (c PlanCancelCase) Matches(q subject) bool { return c.PhaseSelector.matches(q) }
func (c PlanCancelCase) Result() types.ActionPolicy { return c.Policy }

// PlanCreateAlignmentCase yields how a new subscription's phases are aligned.
type PlanCreateAlignmentCase struct {
	PlanSelector
	Alignment types.PlanAlignmentCreate `json:"alignment"`
}

func (c PlanCreateAlignmentCase) Matches(q subject) bool { return c.PlanSelector.matches(q) }
func (c PlanCreateAlignmentCase) Result() types.PlanAlignmentCreate { return c.Alignment }

// BillingAlignmentCase yields the billing alignment of a matching phase.
type BillingAlignmentCase struct {
	PhaseSelector
	Alignment types.BillingAlignment `json:"alignment"`
}

func (c BillingAlignmentCase) Matches(q subject) bool { return c.PhaseSelector.matches(q) }
func (c BillingAlignmentCase) Result() types.BillingAlignment { return c.Alignment }
