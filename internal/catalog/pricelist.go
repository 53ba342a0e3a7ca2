package catalog

import (
	"fmt"

	"pricebook/internal/types"
)

// DefaultPriceListName is the reserved name of the mandatory default price list.
const DefaultPriceListName = "DEFAULT"

// PriceList groups plan references under a name. It does not own the plans.
type PriceList struct {
	Name    string
	Plans   []*Plan
	Retired bool
}

// FindPlan returns the first plan for product whose billing period equals
// period. An empty period on either side matches any period.
func (pl *PriceList) FindPlan(product string, period types.BillingPeriod) (*Plan, bool) {
	if pl == nil {
		return nil, false
	}
	for _, p := range pl.Plans {
		if p.ProductName() != product {
			continue
		}
		bp := p.BillingPeriod()
		if period == "" || bp == "" || bp == period {
			return p, true
		}
	}
	return nil, false
}

// Contains reports whether the list references a plan called planName.
func (pl *PriceList) Contains(planName string) bool {
	for _, p := range pl.Plans {
		if p.Name == planName {
			return true
		}
	}
	return false
}

func (pl *PriceList) validate() ValidationErrors {
	var errs ValidationErrors
	type key struct {
		product string
		period  types.BillingPeriod
	}
	seen := make(map[key]string, len(pl.Plans))
	for _, p := range pl.Plans {
		k := key{p.ProductName(), p.BillingPeriod()}
		if other, dup := seen[k]; dup {
			errs.Add(kindPriceList, pl.Name,
				"plans '%s' and '%s' both resolve product '%s' with billing period %s",
				other, p.Name, k.product, k.period)
			continue
		}
		seen[k] = p.Name
	}
	return errs
}

// PriceListSet is the default price list plus the named child lists that
// override it. A child is an override layer: any (product, billing period)
// it does not list is served from the default.
type PriceListSet struct {
	Default  *PriceList
	Children []*PriceList
}

// NewPriceListSet builds a set. A nil def is replaced by an empty default list.
func NewPriceListSet(def *PriceList, children ...*PriceList) *PriceListSet {
	if def == nil {
		def = &PriceList{Name: DefaultPriceListName}
	}
	return &PriceListSet{Default: def, Children: children}
}

// FindPriceList returns the list named name, checking the default first.
func (s *PriceListSet) FindPriceList(name string) (*PriceList, bool) {
	if s.Default != nil && s.Default.Name == name {
		return s.Default, true
	}
	for _, c := range s.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// PlanFrom resolves (product, period) in the price list called priceListName,
// falling back to the default list when the named list does not exist or
// does not list the pair.
func (s *PriceListSet) PlanFrom(priceListName, product string, period types.BillingPeriod) (*Plan, error) {
	if priceListName != "" && priceListName != DefaultPriceListName {
		if pl, ok := s.FindPriceList(priceListName); ok {
			if p, found := pl.FindPlan(product, period); found {
				return p, nil
			}
		}
	}
	if p, found := s.Default.FindPlan(product, period); found {
		return p, nil
	}
	return nil, planNotFound("no plan for product '%s' and billing period %s in price list '%s'",
		product, period, displayPriceList(priceListName))
}

// All returns the default list followed by the children.
func (s *PriceListSet) All() []*PriceList {
	all := make([]*PriceList, 0, len(s.Children)+1)
	if s.Default != nil {
		all = append(all, s.Default)
	}
	return append(all, s.Children...)
}

func (s *PriceListSet) validate(plans map[string]*Plan) ValidationErrors {
	var errs ValidationErrors
	if s.Default == nil {
		errs.Add(kindPriceList, DefaultPriceListName, "default price list is missing")
	} else if s.Default.Name != DefaultPriceListName {
		errs.Add(kindPriceList, s.Default.Name, "default price list must be named %s", DefaultPriceListName)
	}

	names := make(map[string]struct{}, len(s.Children))
	for _, c := range s.Children {
		if c.Name == "" {
			errs.Add(kindPriceList, c.Name, "price list name is required")
		}
		if c.Name == DefaultPriceListName {
			errs.Add(kindPriceList, c.Name, "child price list must not use the reserved name %s", DefaultPriceListName)
		}
		if _, dup := names[c.Name]; dup {
			errs.Add(kindPriceList, c.Name, "duplicate price list name")
		}
		names[c.Name] = struct{}{}
	}

	for _, pl := range s.All() {
		for _, p := range pl.Plans {
			if known, ok := plans[p.Name]; !ok || known != p {
				errs.Add(kindPriceList, pl.Name, "plan '%s' is not a plan of this catalog", p.Name)
			}
		}
		errs.Merge(pl.validate())
	}
	return errs
}

func displayPriceList(name string) string {
	if name == "" {
		return DefaultPriceListName
	}
	return name
}

// String implements fmt.Stringer for log output.
func (pl *PriceList) String() string {
	return fmt.Sprintf("%s(%d plans)", pl.Name, len(pl.Plans))
}
