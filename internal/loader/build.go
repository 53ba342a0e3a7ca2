package loader

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"pricebook/internal/catalog"
	"pricebook/internal/types"
)

// Build converts def into an initialized catalog version. Unresolved
// references and structural defects are collected and returned together as
// catalog validation errors. An invalid catalog is never returned.
func Build(def *Definition) (*catalog.StandaloneCatalog, error) {
	b := &builder{
		products: make(map[string]*catalog.Product, len(def.Products)),
		plans:    make(map[string]*catalog.Plan, len(def.Plans)),
	}
	c := &catalog.StandaloneCatalog{
		Name:          def.CatalogName,
		EffectiveDate: def.EffectiveDate.UTC(),
	}
	for _, cur := range def.Currencies {
		c.Currencies = append(c.Currencies, types.Currency(cur))
	}

	for _, pd := range def.Products {
		p := &catalog.Product{
			Name:      pd.Name,
			Category:  types.ProductCategory(pd.Category),
			Retired:   pd.Retired,
			Included:  pd.Included,
			Available: pd.Available,
		}
		c.Products = append(c.Products, p)
		b.products[p.Name] = p
	}

	for _, pd := range def.Plans {
		p := b.plan(pd)
		c.Plans = append(c.Plans, p)
		b.plans[p.Name] = p
	}

	c.PriceLists = catalog.NewPriceListSet(b.priceList(def.PriceLists.Default, catalog.DefaultPriceListName))
	for _, cd := range def.PriceLists.Children {
		c.PriceLists.Children = append(c.PriceLists.Children, b.priceList(cd, cd.Name))
	}

	c.Rules = b.rules(def.Rules)

	c.Initialize()
	errs := b.errs
	if err := c.Validate(); err != nil {
		var structural catalog.ValidationErrors
		if !errors.As(err, &structural) {
			return nil, err
		}
		errs.Merge(structural)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

type builder struct {
	products map[string]*catalog.Product
	plans    map[string]*catalog.Plan
	errs     catalog.ValidationErrors
}

func (b *builder) plan(pd PlanDefinition) *catalog.Plan {
	p := &catalog.Plan{
		Name:                                  pd.Name,
		Retired:                               pd.Retired,
		PlansAllowedInBundle:                  pd.PlansAllowedInBundle,
		EffectiveDateForExistingSubscriptions: pd.EffectiveDateForExistingSubscriptions,
	}
	if prod, ok := b.products[pd.Product]; ok {
		p.Product = prod
	} else {
		b.errs.Add("plan", pd.Name, "unknown product '%s'", pd.Product)
	}
	if p.EffectiveDateForExistingSubscriptions != nil {
		utc := p.EffectiveDateForExistingSubscriptions.UTC()
		p.EffectiveDateForExistingSubscriptions = &utc
	}
	for _, ph := range pd.InitialPhases {
		p.InitialPhases = append(p.InitialPhases, b.phase(pd.Name, ph))
	}
	if pd.FinalPhase != nil {
		p.FinalPhase = b.phase(pd.Name, *pd.FinalPhase)
	}
	return p
}

func (b *builder) phase(plan string, pd PhaseDefinition) *catalog.PlanPhase {
	ph := &catalog.PlanPhase{
		Type:          types.PhaseType(pd.Type),
		BillingPeriod: types.BillingPeriod(pd.BillingPeriod),
		Duration:      catalog.Duration{Unit: types.TimeUnit(pd.Duration.Unit), Number: catalog.NoNumber},
	}
	if pd.Duration.Number != nil {
		ph.Duration.Number = *pd.Duration.Number
	}
	owner := catalog.PhaseName(plan, ph.Type)
	if pd.FixedPrice != nil {
		ph.Fixed = b.price(owner, *pd.FixedPrice)
	}
	if pd.RecurringPrice != nil {
		ph.Recurring = b.price(owner, *pd.RecurringPrice)
	}
	return ph
}

func (b *builder) price(owner string, defs []PriceDefinition) *catalog.InternationalPrice {
	prices := make([]catalog.Price, 0, len(defs))
	for _, d := range defs {
		v, err := decimal.NewFromString(d.Value)
		if err != nil {
			b.errs.Add("price", owner, "amount '%s' for %s is not a number", d.Value, d.Currency)
			continue
		}
		prices = append(prices, catalog.Price{Currency: types.Currency(d.Currency), Value: v})
	}
	return catalog.NewInternationalPrice(prices...)
}

func (b *builder) priceList(pd PriceListDefinition, name string) *catalog.PriceList {
	pl := &catalog.PriceList{Name: name, Retired: pd.Retired}
	for _, planName := range pd.Plans {
		p, ok := b.plans[planName]
		if !ok {
			b.errs.Add("price_list", name, "unknown plan '%s'", planName)
			continue
		}
		pl.Plans = append(pl.Plans, p)
	}
	return pl
}

func (b *builder) rules(rd RulesDefinition) *catalog.PlanRules {
	r := &catalog.PlanRules{ProductTiers: rd.ProductTiers}
	for _, cd := range rd.ChangePolicy {
		r.ChangeCases = append(r.ChangeCases, catalog.PlanChangeCase{
			ChangeSelector: cd.changeSelector(),
			Policy:         types.ActionPolicy(cd.Policy),
		})
	}
	for _, rule := range rd.ChangeRules {
		r.ChangeRules = append(r.ChangeRules, catalog.PlanChangeRule{
			Qualifier: types.ChangeQualifier(rule.Qualifier),
			PhaseType: types.PhaseType(rule.PhaseType),
			Policy:    types.ActionPolicy(rule.Policy),
		})
	}
	for _, cd := range rd.ChangeAlignment {
		r.ChangeAlignmentCases = append(r.ChangeAlignmentCases, catalog.PlanChangeAlignmentCase{
			ChangeSelector: cd.changeSelector(),
			Alignment:      types.PlanAlignmentChange(cd.Alignment),
		})
	}
	for _, cd := range rd.PriceList {
		if cd.Result == "" {
			b.errs.Add("rules", "priceList", "case without a result price list")
		}
		r.PriceListCases = append(r.PriceListCases, catalog.PriceListCase{
			ChangeSelector: cd.changeSelector(),
			PriceList:      cd.Result,
		})
	}
	for _, cd := range rd.CancelPolicy {
		r.CancelCases = append(r.CancelCases, catalog.PlanCancelCase{
			PhaseSelector: cd.phaseSelector(),
			Policy:        types.ActionPolicy(cd.Policy),
		})
	}
	for _, cd := range rd.CreateAlignment {
		r.CreateAlignmentCases = append(r.CreateAlignmentCases, catalog.PlanCreateAlignmentCase{
			PlanSelector: cd.planSelector(),
			Alignment:    types.PlanAlignmentCreate(cd.Alignment),
		})
	}
	for _, cd := range rd.BillingAlignment {
		r.BillingAlignmentCases = append(r.BillingAlignmentCases, catalog.BillingAlignmentCase{
			PhaseSelector: cd.phaseSelector(),
			Alignment:     types.BillingAlignment(cd.Alignment),
		})
	}
	return r
}

func (cd CaseDefinition) planSelector() catalog.PlanSelector {
	return catalog.PlanSelector{
		Product:         cd.Product,
		ProductCategory: types.ProductCategory(cd.ProductCategory),
		BillingPeriod:   types.BillingPeriod(cd.BillingPeriod),
		PriceList:       cd.PriceList,
	}
}

func (cd CaseDefinition) phaseSelector() catalog.PhaseSelector {
	return catalog.PhaseSelector{PlanSelector: cd.planSelector(), PhaseType: types.PhaseType(cd.PhaseType)}
}

func (cd CaseDefinition) changeSelector() catalog.ChangeSelector {
	return catalog.ChangeSelector{
		PhaseType: types.PhaseType(cd.PhaseType),
		From: catalog.PlanSelector{
			Product:         cd.FromProduct,
			ProductCategory: types.ProductCategory(cd.FromProductCategory),
			BillingPeriod:   types.BillingPeriod(cd.FromBillingPeriod),
			PriceList:       cd.FromPriceList,
		},
		To: catalog.PlanSelector{
			Product:         cd.ToProduct,
			ProductCategory: types.ProductCategory(cd.ToProductCategory),
			BillingPeriod:   types.BillingPeriod(cd.ToBillingPeriod),
			PriceList:       cd.ToPriceList,
		},
	}
}

// FromCatalog renders c back into its YAML definition form.
func FromCatalog(c *catalog.StandaloneCatalog) *Definition {
	def := &Definition{CatalogName: c.Name, EffectiveDate: c.EffectiveDate}
	for _, cur := range c.Currencies {
		def.Currencies = append(def.Currencies, string(cur))
	}
	for _, p := range c.Products {
		def.Products = append(def.Products, ProductDefinition{
			Name: p.Name, Category: string(p.Category), Retired: p.Retired,
			Included: p.Included, Available: p.Available,
		})
	}
	for _, p := range c.Plans {
		pd := PlanDefinition{
			Name:                                  p.Name,
			Product:                               p.ProductName(),
			Retired:                               p.Retired,
			PlansAllowedInBundle:                  p.PlansAllowedInBundle,
			EffectiveDateForExistingSubscriptions: p.EffectiveDateForExistingSubscriptions,
		}
		for _, ph := range p.InitialPhases {
			pd.InitialPhases = append(pd.InitialPhases, phaseDefinition(ph))
		}
		if p.FinalPhase != nil {
			final := phaseDefinition(p.FinalPhase)
			pd.FinalPhase = &final
		}
		def.Plans = append(def.Plans, pd)
	}
	listDef := func(pl *catalog.PriceList) PriceListDefinition {
		d := PriceListDefinition{Name: pl.Name, Retired: pl.Retired}
		for _, p := range pl.Plans {
			d.Plans = append(d.Plans, p.Name)
		}
		return d
	}
	if c.PriceLists != nil {
		if c.PriceLists.Default != nil {
			def.PriceLists.Default = listDef(c.PriceLists.Default)
		}
		for _, child := range c.PriceLists.Children {
			def.PriceLists.Children = append(def.PriceLists.Children, listDef(child))
		}
	}
	if c.Rules != nil {
		def.Rules = rulesDefinition(c.Rules)
	}
	return def
}

func phaseDefinition(ph *catalog.PlanPhase) PhaseDefinition {
	d := PhaseDefinition{
		Type:          string(ph.Type),
		BillingPeriod: string(ph.BillingPeriod),
		Duration:      DurationDefinition{Unit: string(ph.Duration.Unit)},
	}
	if !ph.Duration.IsUnlimited() {
		n := ph.Duration.Number
		d.Duration.Number = &n
	}
	d.FixedPrice = priceDefinitions(ph.Fixed)
	d.RecurringPrice = priceDefinitions(ph.Recurring)
	return d
}

func priceDefinitions(ip *catalog.InternationalPrice) *[]PriceDefinition {
	if ip == nil {
		return nil
	}
	out := []PriceDefinition{}
	for _, p := range ip.Prices() {
		out = append(out, PriceDefinition{Currency: string(p.Currency), Value: p.Value.String()})
	}
	return &out
}

func rulesDefinition(r *catalog.PlanRules) RulesDefinition {
	rd := RulesDefinition{ProductTiers: r.ProductTiers}
	for _, c := range r.ChangeCases {
		cd := changeCase(c.ChangeSelector)
		cd.Policy = string(c.Policy)
		rd.ChangePolicy = append(rd.ChangePolicy, cd)
	}
	for _, c := range r.ChangeRules {
		rd.ChangeRules = append(rd.ChangeRules, ChangeRuleDefinition{
			Qualifier: string(c.Qualifier), PhaseType: string(c.PhaseType), Policy: string(c.Policy),
		})
	}
	for _, c := range r.ChangeAlignmentCases {
		cd := changeCase(c.ChangeSelector)
		cd.Alignment = string(c.Alignment)
		rd.ChangeAlignment = append(rd.ChangeAlignment, cd)
	}
	for _, c := range r.PriceListCases {
		cd := changeCase(c.ChangeSelector)
		cd.Result = c.PriceList
		rd.PriceList = append(rd.PriceList, cd)
	}
	for _, c := range r.CancelCases {
		cd := phaseCase(c.PhaseSelector)
		cd.Policy = string(c.Policy)
		rd.CancelPolicy = append(rd.CancelPolicy, cd)
	}
	for _, c := range r.CreateAlignmentCases {
		cd := phaseCase(catalog.PhaseSelector{PlanSelector: c.PlanSelector})
		cd.Alignment = string(c.Alignment)
		rd.CreateAlignment = append(rd.CreateAlignment, cd)
	}
	for _, c := range r.BillingAlignmentCases {
		cd := phaseCase(c.PhaseSelector)
		cd.Alignment = string(c.Alignment)
		rd.BillingAlignment = append(rd.BillingAlignment, cd)
	}
	return rd
}

func phaseCase(s catalog.PhaseSelector) CaseDefinition {
	return CaseDefinition{
		PhaseType:       string(s.PhaseType),
		Product:         s.Product,
		ProductCategory: string(s.ProductCategory),
		BillingPeriod:   string(s.BillingPeriod),
		PriceList:       s.PriceList,
	}
}

func changeCase(s catalog.ChangeSelector) CaseDefinition {
	return CaseDefinition{
		PhaseType:           string(s.PhaseType),
		FromProduct:         s.From.Product,
		FromProductCategory: string(s.From.ProductCategory),
		FromBillingPeriod:   string(s.From.BillingPeriod),
		FromPriceList:       s.From.PriceList,
		ToProduct:           s.To.Product,
		ToProductCategory:   string(s.To.ProductCategory),
		ToBillingPeriod:     string(s.To.BillingPeriod),
		ToPriceList:         s.To.PriceList,
	}
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s@%s", d.CatalogName, d.EffectiveDate.Format("2006-01-02"))
}
