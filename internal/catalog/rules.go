package catalog

import (
	"pricebook/internal/types"
)

// ProductLookup resolves a product by name within one catalog version.
type ProductLookup interface {
	FindProduct(name string) (*Product, error)
}

// PlanChangeRule is a generic change-policy rule consulted when no change case
// matches. It tests a single qualifier, optionally only when leaving a phase
// of type PhaseType.
type PlanChangeRule struct {
	Qualifier types.ChangeQualifier `json:"qualifier"`
	PhaseType types.PhaseType       `json:"phase_type,omitempty"`
	Policy    types.ActionPolicy    `json:"policy"`
}

// ruleQuery is a change query annotated with product tiers.
type ruleQuery struct {
	changeQuery
	fromTier int
	toTier   int
}

func (r PlanChangeRule) Matches(q ruleQuery) bool {
	if r.PhaseType != "" && r.PhaseType != q.from.phaseType {
		return false
	}
	switch r.Qualifier {
	case types.QualifierDefault:
		return true
	case types.QualifierProductLowToHigh:
		return q.fromTier < q.toTier
	case types.QualifierProductHighToLow:
		return q.fromTier > q.toTier
	case types.QualifierTermShortToLong:
		return q.from.billingPeriod.Ordinal() < q.to.billingPeriod.Ordinal()
	case types.QualifierTermLongToShort:
		return q.from.billingPeriod.Ordinal() > q.to.billingPeriod.Ordinal()
	}
	return false
}

func (r PlanChangeRule) Result() types.ActionPolicy { return r.Policy }

// PlanChangeResult combines everything decided about a plan change.
type PlanChangeResult struct {
	PriceList string                    `json:"price_list"`
	Policy    types.ActionPolicy        `json:"policy"`
	Alignment types.PlanAlignmentChange `json:"alignment"`
}

// PlanRules holds the ordered case lists of one catalog version, the generic
// change rules and the product tier table. Within every list the last
// declared matching entry wins.
type PlanRules struct {
	// ProductTiers ranks products from lowest to highest tier. A product
	// absent from every tier ranks 0.
	ProductTiers [][]string

	ChangeCases           []PlanChangeCase
	ChangeRules           []PlanChangeRule
	ChangeAlignmentCases  []PlanChangeAlignmentCase
	CancelCases           []PlanCancelCase
	CreateAlignmentCases  []PlanCreateAlignmentCase
	BillingAlignmentCases []BillingAlignmentCase
	PriceListCases        []PriceListCase
}

// ProductTier returns the index of the tier listing product, or 0.
func (r *PlanRules) ProductTier(product string) int {
	for i, tier := range r.ProductTiers {
		if containsName(tier, product) {
			return i
		}
	}
	return 0
}

// ChangePolicy decides when a change from the phase described by from to the
// plan described by to takes effect. Change cases are consulted first, then
// the generic change rules.
func (r *PlanRules) ChangePolicy(from PlanPhaseSpecifier, to PlanSpecifier, products ProductLookup) (types.ActionPolicy, error) {
	q, err := r.changeQuery(from, to, products)
	if err != nil {
		return "", err
	}
	if policy, ok := Evaluate[changeQuery, types.ActionPolicy](r.ChangeCases, q); ok {
		return policy, nil
	}
	rq := ruleQuery{
		changeQuery: q,
		fromTier:    r.ProductTier(q.from.product),
		toTier:      r.ProductTier(q.to.product),
	}
	if policy, ok := Evaluate[ruleQuery, types.ActionPolicy](r.ChangeRules, rq); ok {
		return policy, nil
	}
	return "", noRuleMatched("change policy")
}

// CancelPolicy decides when cancelling a subscription in the given phase takes effect.
func (r *PlanRules) CancelPolicy(phase PlanPhaseSpecifier, products ProductLookup) (types.ActionPolicy, error) {
	sub, err := subjectOf(phase.PlanSpecifier, phase.PhaseType, products)
	if err != nil {
		return "", err
	}
	if policy, ok := Evaluate[subject, types.ActionPolicy](r.CancelCases, sub); ok {
		return policy, nil
	}
	return "", noRuleMatched("cancel policy")
}

// ChangeAlignment decides how the target plan's phases line up after a change.
func (r *PlanRules) ChangeAlignment(from PlanPhaseSpecifier, to PlanSpecifier, products ProductLookup) (types.PlanAlignmentChange, error) {
	q, err := r.changeQuery(from, to, products)
	if err != nil {
		return "", err
	}
	if a, ok := Evaluate[changeQuery, types.PlanAlignmentChange](r.ChangeAlignmentCases, q); ok {
		return a, nil
	}
	return "", noRuleMatched("change alignment")
}

// CreateAlignment decides how the phases of a new subscription line up.
func (r *PlanRules) CreateAlignment(spec PlanSpecifier, products ProductLookup) (types.PlanAlignmentCreate, error) {
	sub, err := subjectOf(spec, "", products)
	if err != nil {
		return "", err
	}
	if a, ok := Evaluate[subject, types.PlanAlignmentCreate](r.CreateAlignmentCases, sub); ok {
		return a, nil
	}
	return "", noRuleMatched("create alignment")
}

// BillingAlignment decides which date billing for the phase is aligned on.
func (r *PlanRules) BillingAlignment(phase PlanPhaseSpecifier, products ProductLookup) (types.BillingAlignment, error) {
	sub, err := subjectOf(phase.PlanSpecifier, phase.PhaseType, products)
	if err != nil {
		return "", err
	}
	if a, ok := Evaluate[subject, types.BillingAlignment](r.BillingAlignmentCases, sub); ok {
		return a, nil
	}
	return "", noRuleMatched("billing alignment")
}

// PriceListFor decides which price list a change lands on. Without a matching
// case the target's own price list is kept.
func (r *PlanRules) PriceListFor(from PlanPhaseSpecifier, to PlanSpecifier, products ProductLookup) (string, error) {
	q, err := r.changeQuery(from, to, products)
	if err != nil {
		return "", err
	}
	if pl, ok := Evaluate[changeQuery, string](r.PriceListCases, q); ok {
		return pl, nil
	}
	return to.priceList(), nil
}

// ChangePlan resolves the price list, policy and alignment of a plan change.
func (r *PlanRules) ChangePlan(from PlanPhaseSpecifier, to PlanSpecifier, products ProductLookup) (PlanChangeResult, error) {
	priceList, err := r.PriceListFor(from, to, products)
	if err != nil {
		return PlanChangeResult{}, err
	}
	target := to
	target.PriceListName = priceList

	policy, err := r.ChangePolicy(from, target, products)
	if err != nil {
		return PlanChangeResult{}, err
	}
	alignment, err := r.ChangeAlignment(from, target, products)
	if err != nil {
		return PlanChangeResult{}, err
	}
	return PlanChangeResult{PriceList: priceList, Policy: policy, Alignment: alignment}, nil
}

func (r *PlanRules) changeQuery(from PlanPhaseSpecifier, to PlanSpecifier, products ProductLookup) (changeQuery, error) {
	fromSub, err := subjectOf(from.PlanSpecifier, from.PhaseType, products)
	if err != nil {
		return changeQuery{}, err
	}
	toSub, err := subjectOf(to, "", products)
	if err != nil {
		return changeQuery{}, err
	}
	return changeQuery{from: fromSub, to: toSub}, nil
}

// subjectOf resolves the product category behind spec. An empty product name
// leaves product and category blank so only wildcard selectors match them.
func subjectOf(spec PlanSpecifier, phase types.PhaseType, products ProductLookup) (subject, error) {
	sub := subject{
		product:       spec.ProductName,
		billingPeriod: spec.BillingPeriod,
		priceList:     spec.priceList(),
		phaseType:     phase,
	}
	if spec.ProductName == "" {
		return sub, nil
	}
	p, err := products.FindProduct(spec.ProductName)
	if err != nil {
		return subject{}, err
	}
	sub.category = p.Category
	return sub, nil
}

func (r *PlanRules) clone() *PlanRules {
	cp := &PlanRules{
		ProductTiers:          make([][]string, len(r.ProductTiers)),
		ChangeCases:           append([]PlanChangeCase(nil), r.ChangeCases...),
		ChangeRules:           append([]PlanChangeRule(nil), r.ChangeRules...),
		ChangeAlignmentCases:  append([]PlanChangeAlignmentCase(nil), r.ChangeAlignmentCases...),
		CancelCases:           append([]PlanCancelCase(nil), r.CancelCases...),
		CreateAlignmentCases:  append([]PlanCreateAlignmentCase(nil), r.CreateAlignmentCases...),
		BillingAlignmentCases: append([]BillingAlignmentCase(nil), r.BillingAlignmentCases...),
		PriceListCases:        append([]PriceListCase(nil), r.PriceListCases...),
	}
	for i, tier := range r.ProductTiers {
		cp.ProductTiers[i] = append([]string(nil), tier...)
	}
	return cp
}

// validate checks rule references and requires a wildcard case in every list
// that has no generic fallback.
func (r *PlanRules) validate(products map[string]*Product, priceLists *PriceListSet) ValidationErrors {
	var errs ValidationErrors

	checkPlan := func(list string, s PlanSelector) {
		if s.Product != "" {
			if _, ok := products[s.Product]; !ok {
				errs.Add(kindRules, list, "unknown product '%s'", s.Product)
			}
		}
		if s.ProductCategory != "" && !s.ProductCategory.IsValid() {
			errs.Add(kindRules, list, "unknown product category '%s'", s.ProductCategory)
		}
		if s.BillingPeriod != "" && !s.BillingPeriod.IsValid() {
			errs.Add(kindRules, list, "unknown billing period '%s'", s.BillingPeriod)
		}
		if s.PriceList != "" && priceLists != nil {
			if _, ok := priceLists.FindPriceList(s.PriceList); !ok {
				errs.Add(kindRules, list, "unknown price list '%s'", s.PriceList)
			}
		}
	}
	checkPhase := func(list string, t types.PhaseType) {
		if t != "" && !t.IsValid() {
			errs.Add(kindRules, list, "unknown phase type '%s'", t)
		}
	}
	checkChange := func(list string, s ChangeSelector) {
		checkPhase(list, s.PhaseType)
		checkPlan(list, s.From)
		checkPlan(list, s.To)
	}

	for _, c := range r.ChangeCases {
		checkChange("changePolicy", c.ChangeSelector)
		if !c.Policy.IsValid() {
			errs.Add(kindRules, "changePolicy", "unknown policy '%s'", c.Policy)
		}
	}
	for _, c := range r.ChangeRules {
		checkPhase("changeRules", c.PhaseType)
		if !c.Qualifier.IsValid() {
			errs.Add(kindRules, "changeRules", "unknown qualifier '%s'", c.Qualifier)
		}
		if !c.Policy.IsValid() {
			errs.Add(kindRules, "changeRules", "unknown policy '%s'", c.Policy)
		}
	}
	for _, c := range r.ChangeAlignmentCases {
		checkChange("changeAlignment", c.ChangeSelector)
		if !c.Alignment.IsValid() {
			errs.Add(kindRules, "changeAlignment", "unknown alignment '%s'", c.Alignment)
		}
	}
	for _, c := range r.PriceListCases {
		checkChange("priceList", c.ChangeSelector)
		if priceLists != nil {
			if _, ok := priceLists.FindPriceList(c.PriceList); !ok {
				errs.Add(kindRules, "priceList", "unknown result price list '%s'", c.PriceList)
			}
		}
	}
	for _, c := range r.CancelCases {
		checkPhase("cancelPolicy", c.PhaseType)
		checkPlan("cancelPolicy", c.PlanSelector)
		if !c.Policy.IsValid() {
			errs.Add(kindRules, "cancelPolicy", "unknown policy '%s'", c.Policy)
		}
	}
	for _, c := range r.CreateAlignmentCases {
		checkPlan("createAlignment", c.PlanSelector)
		if !c.Alignment.IsValid() {
			errs.Add(kindRules, "createAlignment", "unknown alignment '%s'", c.Alignment)
		}
	}
	for _, c := range r.BillingAlignmentCases {
		checkPhase("billingAlignment", c.PhaseType)
		checkPlan("billingAlignment", c.PlanSelector)
		if !c.Alignment.IsValid() {
			errs.Add(kindRules, "billingAlignment", "unknown alignment '%s'", c.Alignment)
		}
	}

	if !hasWildcard(r.CancelCases, func(c PlanCancelCase) bool { return c.PhaseSelector.IsWildcard() }) {
		errs.Add(kindRules, "cancelPolicy", "no catch-all case")
	}
	if !hasWildcard(r.ChangeAlignmentCases, func(c PlanChangeAlignmentCase) bool { return c.ChangeSelector.IsWildcard() }) {
		errs.Add(kindRules, "changeAlignment", "no catch-all case")
	}
	if !hasWildcard(r.CreateAlignmentCases, func(c PlanCreateAlignmentCase) bool { return c.PlanSelector.IsWildcard() }) {
		errs.Add(kindRules, "createAlignment", "no catch-all case")
	}
	if !hasWildcard(r.BillingAlignmentCases, func(c BillingAlignmentCase) bool { return c.PhaseSelector.IsWildcard() }) {
		errs.Add(kindRules, "billingAlignment", "no catch-all case")
	}

	seen := make(map[string]int)
	for i, tier := range r.ProductTiers {
		for _, name := range tier {
			if _, ok := products[name]; !ok {
				errs.Add(kindRules, "productTiers", "unknown product '%s'", name)
			}
			if prev, dup := seen[name]; dup {
				errs.Add(kindRules, "productTiers", "product '%s' listed in tiers %d and %d", name, prev, i)
			}
			seen[name] = i
		}
	}
	return errs
}

func hasWildcard[C any](cases []C, wildcard func(C) bool) bool {
	_, ok := EvaluateFunc(cases, wildcard, func(C) struct{} { return struct{}{} })
	return ok
}
