package catalog

import "pricebook/internal/types"

// Product is a sellable unit. Included and Available reference other products
// of the same catalog version by name; they are resolved through the catalog
// and never own the referenced product.
type Product struct {
	Name      string
	Category  types.ProductCategory
	Retired   bool
	Included  []string
	Available []string

	catalogName string
}

// CatalogName returns the name of the catalog the product was initialized in.
func (p *Product) CatalogName() string {
	return p.catalogName
}

// Includes reports whether name is bundled with p.
func (p *Product) Includes(name string) bool {
	return containsName(p.Included, name)
}

// Offers reports whether name can be purchased as an add-on to p.
func (p *Product) Offers(name string) bool {
	return containsName(p.Available, name)
}

func (p *Product) clone() *Product {
	cp := *p
	cp.Included = append([]string(nil), p.Included...)
	cp.Available = append([]string(nil), p.Available...)
	return &cp
}

func (p *Product) validate(products map[string]*Product) ValidationErrors {
	var errs ValidationErrors
	if p.Name == "" {
		errs.Add(kindProduct, p.Name, "product name is required")
	}
	if !p.Category.IsValid() {
		errs.Add(kindProduct, p.Name, "unknown category '%s'", p.Category)
	}
	check := func(rel string, names []string) {
		for _, n := range names {
			addOn, ok := products[n]
			if !ok {
				errs.Add(kindProduct, p.Name, "%s add-on '%s' is not a product of this catalog", rel, n)
				continue
			}
			if addOn.Category != types.CategoryAddOn {
				errs.Add(kindProduct, p.Name, "%s product '%s' is not an ADD_ON", rel, n)
			}
		}
	}
	check("included", p.Included)
	check("available", p.Available)
	return errs
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
