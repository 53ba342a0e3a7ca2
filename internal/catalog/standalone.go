package catalog

import (
	"fmt"
	"time"

	"pricebook/internal/types"
)

// StandaloneCatalog is one dated, self-consistent catalog version. It is
// built once by a loader, initialized, validated and then only read.
// Lookups are linear scans; catalogs hold tens to hundreds of plans.
type StandaloneCatalog struct {
	Name          string
	EffectiveDate time.Time
	Currencies    []types.Currency
	Products      []*Product
	Plans         []*Plan
	PriceLists    *PriceListSet
	Rules         *PlanRules
}

// Initialize wires phases back to their plan and stamps the catalog name on
// products and plans. Calling it more than once is harmless.
func (c *StandaloneCatalog) Initialize() {
	for _, p := range c.Products {
		p.catalogName = c.Name
	}
	for _, p := range c.Plans {
		p.catalogName = c.Name
		if p.PlansAllowedInBundle == 0 {
			p.PlansAllowedInBundle = 1
		}
		for _, ph := range p.AllPhases() {
			ph.planName = p.Name
		}
	}
	if c.PriceLists == nil {
		c.PriceLists = NewPriceListSet(nil)
	}
	if c.Rules == nil {
		c.Rules = &PlanRules{}
	}
}

// FindPlan returns the plan called name.
func (c *StandaloneCatalog) FindPlan(name string) (*Plan, error) {
	for _, p := range c.Plans {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, planNotFound("plan '%s' not found", name)
}

// FindPlanFrom resolves spec through the price lists, falling back to the
// default list.
func (c *StandaloneCatalog) FindPlanFrom(spec PlanSpecifier) (*Plan, error) {
	if _, err := c.FindProduct(spec.ProductName); err != nil {
		return nil, planNotFound("no plan for unknown product '%s'", spec.ProductName)
	}
	return c.PriceLists.PlanFrom(spec.PriceListName, spec.ProductName, spec.BillingPeriod)
}

// FindProduct returns the product called name.
func (c *StandaloneCatalog) FindProduct(name string) (*Product, error) {
	for _, p := range c.Products {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, productNotFound(name)
}

// FindPhase returns the phase called name, locating its plan from the name.
func (c *StandaloneCatalog) FindPhase(name string) (*PlanPhase, error) {
	planName, _, err := PlanNameFromPhaseName(name)
	if err != nil {
		return nil, err
	}
	p, err := c.FindPlan(planName)
	if err != nil {
		return nil, phaseNotFound(name)
	}
	return p.FindPhase(name)
}

// FindPriceList returns the price list called name. An empty name is the default list.
func (c *StandaloneCatalog) FindPriceList(name string) (*PriceList, error) {
	if pl, ok := c.PriceLists.FindPriceList(displayPriceList(name)); ok {
		return pl, nil
	}
	return nil, priceListNotFound(name)
}

// SupportsCurrency reports whether cur is one of the catalog currencies.
func (c *StandaloneCatalog) SupportsCurrency(cur types.Currency) bool {
	for _, s := range c.Currencies {
		if s == cur {
			return true
		}
	}
	return false
}

// SupportedCurrencies returns the catalog currencies.
func (c *StandaloneCatalog) SupportedCurrencies() []types.Currency {
	return append([]types.Currency(nil), c.Currencies...)
}

// IsAddOnAvailable reports whether addOn can be purchased with base.
func (c *StandaloneCatalog) IsAddOnAvailable(base, addOn string) bool {
	p, err := c.FindProduct(base)
	return err == nil && p.Offers(addOn)
}

// IsAddOnIncluded reports whether addOn is bundled with base.
func (c *StandaloneCatalog) IsAddOnIncluded(base, addOn string) bool {
	p, err := c.FindProduct(base)
	return err == nil && p.Includes(addOn)
}

// ChangePolicy resolves when a change from one phase to a target plan applies.
func (c *StandaloneCatalog) ChangePolicy(from PlanPhaseSpecifier, to PlanSpecifier) (types.ActionPolicy, error) {
	return c.Rules.ChangePolicy(from, to, c)
}

// CancelPolicy resolves when cancelling in the given phase applies.
func (c *StandaloneCatalog) CancelPolicy(phase PlanPhaseSpecifier) (types.ActionPolicy, error) {
	return c.Rules.CancelPolicy(phase, c)
}

// ChangeAlignment resolves how the target plan's phases align after a change.
func (c *StandaloneCatalog) ChangeAlignment(from PlanPhaseSpecifier, to PlanSpecifier) (types.PlanAlignmentChange, error) {
	return c.Rules.ChangeAlignment(from, to, c)
}

// CreateAlignment resolves how a new subscription's phases align.
func (c *StandaloneCatalog) CreateAlignment(spec PlanSpecifier) (types.PlanAlignmentCreate, error) {
	return c.Rules.CreateAlignment(spec, c)
}

// BillingAlignment resolves the billing alignment of a phase.
func (c *StandaloneCatalog) BillingAlignment(phase PlanPhaseSpecifier) (types.BillingAlignment, error) {
	return c.Rules.BillingAlignment(phase, c)
}

// ChangePlan resolves every outcome of a plan change at once.
func (c *StandaloneCatalog) ChangePlan(from PlanPhaseSpecifier, to PlanSpecifier) (PlanChangeResult, error) {
	return c.Rules.ChangePlan(from, to, c)
}

// CurrentProducts returns the products that are not retired.
func (c *StandaloneCatalog) CurrentProducts() []*Product {
	out := make([]*Product, 0, len(c.Products))
	for _, p := range c.Products {
		if !p.Retired {
			out = append(out, p)
		}
	}
	return out
}

// CurrentPlans returns the plans open to new subscriptions.
func (c *StandaloneCatalog) CurrentPlans() []*Plan {
	out := make([]*Plan, 0, len(c.Plans))
	for _, p := range c.Plans {
		if !p.IsRetired() {
			out = append(out, p)
		}
	}
	return out
}

// AvailableAddOns returns the add-ons that can be purchased with base.
func (c *StandaloneCatalog) AvailableAddOns(base string) ([]*Product, error) {
	p, err := c.FindProduct(base)
	if err != nil {
		return nil, err
	}
	return c.resolveProducts(p.Available)
}

// IncludedAddOns returns the add-ons bundled with base.
func (c *StandaloneCatalog) IncludedAddOns(base string) ([]*Product, error) {
	p, err := c.FindProduct(base)
	if err != nil {
		return nil, err
	}
	return c.resolveProducts(p.Included)
}

func (c *StandaloneCatalog) resolveProducts(names []string) ([]*Product, error) {
	out := make([]*Product, 0, len(names))
	for _, n := range names {
		p, err := c.FindProduct(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Validate checks every structural invariant and reports all defects at once.
// It returns nil or a *types.AppError wrapping ValidationErrors.
func (c *StandaloneCatalog) Validate() error {
	return c.validate().Err()
}

func (c *StandaloneCatalog) validate() ValidationErrors {
	var errs ValidationErrors
	if c.Name == "" {
		errs.Add(kindCatalog, c.Name, "catalog name is required")
	}
	if c.EffectiveDate.IsZero() {
		errs.Add(kindCatalog, c.Name, "effective date is required")
	}

	supported := make(map[types.Currency]struct{}, len(c.Currencies))
	if len(c.Currencies) == 0 {
		errs.Add(kindCurrency, c.Name, "at least one currency is required")
	}
	for _, cur := range c.Currencies {
		if !cur.IsValid() {
			errs.Add(kindCurrency, string(cur), "not an ISO 4217 currency code")
		}
		if _, dup := supported[cur]; dup {
			errs.Add(kindCurrency, string(cur), "duplicate currency")
		}
		supported[cur] = struct{}{}
	}

	products := make(map[string]*Product, len(c.Products))
	for _, p := range c.Products {
		if _, dup := products[p.Name]; dup {
			errs.Add(kindProduct, p.Name, "duplicate product name")
		}
		products[p.Name] = p
	}
	for _, p := range c.Products {
		errs.Merge(p.validate(products))
	}

	plans := make(map[string]*Plan, len(c.Plans))
	for _, p := range c.Plans {
		if _, dup := plans[p.Name]; dup {
			errs.Add(kindPlan, p.Name, "duplicate plan name")
		}
		plans[p.Name] = p
		errs.Merge(p.validate(products, supported))
		for _, ph := range p.AllPhases() {
			name := PhaseName(p.Name, ph.Type)
			if back, t, err := PlanNameFromPhaseName(name); err != nil || back != p.Name || t != ph.Type {
				errs.Add(kindPlan, p.Name, "phase name '%s' does not resolve back to its plan", name)
			}
		}
	}

	if c.PriceLists == nil {
		errs.Add(kindPriceList, DefaultPriceListName, "default price list is missing")
	} else {
		errs.Merge(c.PriceLists.validate(plans))
	}
	if c.Rules == nil {
		errs.Add(kindRules, c.Name, "rules are missing")
	} else {
		errs.Merge(c.Rules.validate(products, c.PriceLists))
	}
	return errs
}

// Clone returns a deep copy that can be extended without affecting c. Product
// and plan references inside the copy point at the copied values.
func (c *StandaloneCatalog) Clone() *StandaloneCatalog {
	cp := &StandaloneCatalog{
		Name:          c.Name,
		EffectiveDate: c.EffectiveDate,
		Currencies:    append([]types.Currency(nil), c.Currencies...),
		Products:      make([]*Product, len(c.Products)),
		Plans:         make([]*Plan, len(c.Plans)),
	}

	products := make(map[*Product]*Product, len(c.Products))
	for i, p := range c.Products {
		cp.Products[i] = p.clone()
		products[p] = cp.Products[i]
	}
	plans := make(map[*Plan]*Plan, len(c.Plans))
	for i, p := range c.Plans {
		np := p.clone()
		if rebound, ok := products[p.Product]; ok {
			np.Product = rebound
		}
		cp.Plans[i] = np
		plans[p] = np
	}

	copyList := func(pl *PriceList) *PriceList {
		if pl == nil {
			return nil
		}
		n := &PriceList{Name: pl.Name, Retired: pl.Retired, Plans: make([]*Plan, len(pl.Plans))}
		for i, p := range pl.Plans {
			if rebound, ok := plans[p]; ok {
				n.Plans[i] = rebound
			} else {
				n.Plans[i] = p
			}
		}
		return n
	}
	if c.PriceLists != nil {
		cp.PriceLists = &PriceListSet{Default: copyList(c.PriceLists.Default)}
		for _, child := range c.PriceLists.Children {
			cp.PriceLists.Children = append(cp.PriceLists.Children, copyList(child))
		}
	}
	if c.Rules != nil {
		cp.Rules = c.Rules.clone()
	}
	return cp
}

// AddProduct appends p to an unpublished catalog.
func (c *StandaloneCatalog) AddProduct(p *Product) error {
	if _, err := c.FindProduct(p.Name); err == nil {
		return types.NewAppError(types.ErrCodeValidationCatalogInvalid,
			fmt.Sprintf("product '%s' already exists", p.Name), nil)
	}
	c.Products = append(c.Products, p)
	c.Initialize()
	return nil
}

// AddPlan appends p to an unpublished catalog and lists it in the price list
// called priceList, creating that child list when needed. The plan's product
// must already be part of the catalog.
func (c *StandaloneCatalog) AddPlan(p *Plan, priceList string) error {
	if _, err := c.FindPlan(p.Name); err == nil {
		return types.NewAppError(types.ErrCodeValidationCatalogInvalid,
			fmt.Sprintf("plan '%s' already exists", p.Name), nil)
	}
	prod, err := c.FindProduct(p.ProductName())
	if err != nil {
		return err
	}
	p.Product = prod
	if c.PriceLists == nil {
		c.PriceLists = NewPriceListSet(nil)
	}

	name := displayPriceList(priceList)
	pl, ok := c.PriceLists.FindPriceList(name)
	if !ok {
		pl = &PriceList{Name: name}
		c.PriceLists.Children = append(c.PriceLists.Children, pl)
	}
	c.Plans = append(c.Plans, p)
	pl.Plans = append(pl.Plans, p)
	c.Initialize()
	return nil
}
