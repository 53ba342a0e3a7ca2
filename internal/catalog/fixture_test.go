package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pricebook/internal/types"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func usd(v string) *InternationalPrice {
	return NewInternationalPrice(Price{Currency: "USD", Value: decimal.RequireFromString(v)})
}

func monthly(t types.PhaseType, d Duration, price string) *PlanPhase {
	return &PlanPhase{Type: t, Duration: d, BillingPeriod: types.BillingMonthly, Recurring: usd(price)}
}

func trial(days int) *PlanPhase {
	return &PlanPhase{
		Type:          types.PhaseTrial,
		Duration:      NewDuration(types.UnitDays, days),
		BillingPeriod: types.BillingNoBillingPeriod,
		Fixed:         ZeroPrice(),
	}
}

func simplePlan(name string, product *Product, price string) *Plan {
	return &Plan{
		Name:          name,
		Product:       product,
		InitialPhases: []*PlanPhase{trial(30)},
		FinalPhase:    monthly(types.PhaseEvergreen, Unlimited(), price),
	}
}

func wildcardRules() *PlanRules {
	return &PlanRules{
		ChangeRules:           []PlanChangeRule{{Qualifier: types.QualifierDefault, Policy: types.PolicyEndOfTerm}},
		ChangeAlignmentCases:  []PlanChangeAlignmentCase{{Alignment: types.ChangeAlignStartOfSubscription}},
		CancelCases:           []PlanCancelCase{{Policy: types.PolicyEndOfTerm}},
		CreateAlignmentCases:  []PlanCreateAlignmentCase{{Alignment: types.CreateAlignStartOfBundle}},
		BillingAlignmentCases: []BillingAlignmentCase{{Alignment: types.BillingAlignAccount}},
	}
}

// gunClub builds a small catalog: three tiered base products, one add-on,
// monthly and annual plans and a "discount" child price list.
func gunClub(t *testing.T, effective time.Time, pistolPrice string) *StandaloneCatalog {
	t.Helper()
	pistol := &Product{Name: "Pistol", Category: types.CategoryBase, Available: []string{"Holster"}}
	shotgun := &Product{Name: "Shotgun", Category: types.CategoryBase, Included: []string{"Holster"}}
	rifle := &Product{Name: "Rifle", Category: types.CategoryBase}
	holster := &Product{Name: "Holster", Category: types.CategoryAddOn}

	pistolMonthly := simplePlan("pistol-monthly", pistol, pistolPrice)
	pistolAnnual := &Plan{
		Name:       "pistol-annual",
		Product:    pistol,
		FinalPhase: &PlanPhase{Type: types.PhaseEvergreen, Duration: Unlimited(), BillingPeriod: types.BillingAnnual, Recurring: usd("199.95")},
	}
	shotgunMonthly := simplePlan("shotgun-monthly", shotgun, "249.95")
	rifleMonthly := simplePlan("rifle-monthly", rifle, "499.95")
	holsterMonthly := &Plan{
		Name:                 "holster-monthly",
		Product:              holster,
		FinalPhase:           monthly(types.PhaseEvergreen, Unlimited(), "5.95"),
		PlansAllowedInBundle: UnlimitedBundle,
	}
	pistolDiscount := &Plan{
		Name:    "pistol-monthly-discount",
		Product: pistol,
		InitialPhases: []*PlanPhase{
			monthly(types.PhaseDiscount, NewDuration(types.UnitMonths, 6), "9.95"),
		},
		FinalPhase: monthly(types.PhaseEvergreen, Unlimited(), pistolPrice),
	}

	rules := wildcardRules()
	rules.ProductTiers = [][]string{{"Pistol"}, {"Shotgun"}, {"Rifle"}}
	rules.ChangeRules = []PlanChangeRule{
		{Qualifier: types.QualifierDefault, Policy: types.PolicyEndOfTerm},
		{Qualifier: types.QualifierProductLowToHigh, Policy: types.PolicyImmediate},
		{Qualifier: types.QualifierTermShortToLong, Policy: types.PolicyImmediate},
		{Qualifier: types.QualifierProductHighToLow, PhaseType: types.PhaseTrial, Policy: types.PolicyImmediate},
	}
	rules.CancelCases = []PlanCancelCase{
		{Policy: types.PolicyEndOfTerm},
		{PhaseSelector: PhaseSelector{PhaseType: types.PhaseTrial}, Policy: types.PolicyImmediate},
	}
	rules.BillingAlignmentCases = []BillingAlignmentCase{
		{Alignment: types.BillingAlignAccount},
		{PhaseSelector: PhaseSelector{PlanSelector: PlanSelector{ProductCategory: types.CategoryAddOn}}, Alignment: types.BillingAlignBundle},
	}
	rules.PriceListCases = []PriceListCase{
		{ChangeSelector: ChangeSelector{From: PlanSelector{PriceList: "discount"}}, PriceList: "discount"},
	}

	c := &StandaloneCatalog{
		Name:          "GunClub",
		EffectiveDate: effective,
		Currencies:    []types.Currency{"USD", "EUR"},
		Products:      []*Product{pistol, shotgun, rifle, holster},
		Plans:         []*Plan{pistolMonthly, pistolAnnual, shotgunMonthly, rifleMonthly, holsterMonthly, pistolDiscount},
		PriceLists: NewPriceListSet(
			&PriceList{Name: DefaultPriceListName, Plans: []*Plan{pistolMonthly, pistolAnnual, shotgunMonthly, rifleMonthly, holsterMonthly}},
			&PriceList{Name: "discount", Plans: []*Plan{pistolDiscount}},
		),
		Rules: rules,
	}
	c.Initialize()
	require.NoError(t, c.Validate())
	return c
}

func recurringUSD(t *testing.T, p *Plan) string {
	t.Helper()
	amount, err := p.FinalPhase.RecurringPrice("USD")
	require.NoError(t, err)
	return amount.StringFixed(2)
}
