package catalog

import "pricebook/internal/types"

// PlanSpecifier selects a plan by product, billing period and price list.
// An empty PriceListName means the default price list.
type PlanSpecifier struct {
	ProductName   string              `json:"product" validate:"required"`
	BillingPeriod types.BillingPeriod `json:"billing_period,omitempty"`
	PriceListName string              `json:"price_list,omitempty"`
}

// PlanPhaseSpecifier selects a phase: a plan selector plus the phase type.
type PlanPhaseSpecifier struct {
	PlanSpecifier
	PhaseType types.PhaseType `json:"phase_type,omitempty"`
}

// SpecifierFor describes plan p within priceList.
func SpecifierFor(p *Plan, priceList string) PlanSpecifier {
	return PlanSpecifier{
		ProductName:   p.ProductName(),
		BillingPeriod: p.BillingPeriod(),
		PriceListName: priceList,
	}
}

// PhaseSpecifierFor describes phase ph of plan p within priceList.
func PhaseSpecifierFor(p *Plan, ph *PlanPhase, priceList string) PlanPhaseSpecifier {
	return PlanPhaseSpecifier{
		PlanSpecifier: SpecifierFor(p, priceList),
		PhaseType:     ph.Type,
	}
}

func (s PlanSpecifier) priceList() string {
	return displayPriceList(s.PriceListName)
}
