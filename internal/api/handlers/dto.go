package handlers

import (
	"time"

	"pricebook/internal/catalog"
	"pricebook/internal/types"
)

// PlanView is the wire form of a catalog plan.
type PlanView struct {
	Name                                  string              `json:"name"`
	Catalog                               string              `json:"catalog"`
	Product                               string              `json:"product"`
	BillingPeriod                         types.BillingPeriod `json:"billing_period"`
	Retired                               bool                `json:"retired"`
	PlansAllowedInBundle                  int                 `json:"plans_allowed_in_bundle"`
	EffectiveDateForExistingSubscriptions *time.Time          `json:"effective_date_for_existing_subscriptions,omitempty"`
	Phases                                []PhaseView         `json:"phases"`
}

// PhaseView is the wire form of a plan phase.
type PhaseView struct {
	Name           string              `json:"name"`
	Type           types.PhaseType     `json:"type"`
	Duration       catalog.Duration    `json:"duration"`
	BillingPeriod  types.BillingPeriod `json:"billing_period"`
	FixedPrice     []catalog.Price     `json:"fixed_price,omitempty"`
	RecurringPrice []catalog.Price     `json:"recurring_price,omitempty"`
}

// ProductView is the wire form of a product.
type ProductView struct {
	Name      string                `json:"name"`
	Category  types.ProductCategory `json:"category"`
	Retired   bool                  `json:"retired"`
	Included  []string              `json:"included,omitempty"`
	Available []string              `json:"available,omitempty"`
}

// PriceListView is the wire form of a price list. Plans are listed by name.
type PriceListView struct {
	Name    string   `json:"name"`
	Retired bool     `json:"retired"`
	Plans   []string `json:"plans"`
}

func planView(p *catalog.Plan) PlanView {
	v := PlanView{
		Name:                                  p.Name,
		Catalog:                               p.CatalogName(),
		Product:                               p.ProductName(),
		BillingPeriod:                         p.BillingPeriod(),
		Retired:                               p.IsRetired(),
		PlansAllowedInBundle:                  p.PlansAllowedInBundle,
		EffectiveDateForExistingSubscriptions: p.EffectiveDateForExistingSubscriptions,
	}
	for _, ph := range p.AllPhases() {
		v.Phases = append(v.Phases, phaseView(ph))
	}
	return v
}

func phaseView(ph *catalog.PlanPhase) PhaseView {
	return PhaseView{
		Name:           ph.Name(),
		Type:           ph.Type,
		Duration:       ph.Duration,
		BillingPeriod:  ph.BillingPeriod,
		FixedPrice:     ph.Fixed.Prices(),
		RecurringPrice: ph.Recurring.Prices(),
	}
}

func productView(p *catalog.Product) ProductView {
	return ProductView{
		Name:      p.Name,
		Category:  p.Category,
		Retired:   p.Retired,
		Included:  p.Included,
		Available: p.Available,
	}
}

func productViews(products []*catalog.Product) []ProductView {
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, productView(p))
	}
	return out
}

func priceListView(pl *catalog.PriceList) PriceListView {
	v := PriceListView{Name: pl.Name, Retired: pl.Retired, Plans: make([]string, 0, len(pl.Plans))}
	for _, p := range pl.Plans {
		v.Plans = append(v.Plans, p.Name)
	}
	return v
}
