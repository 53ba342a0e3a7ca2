package types

// ProductCategory classifies how a product may be purchased.
type ProductCategory string

const (
	CategoryBase       ProductCategory = "BASE"
	CategoryAddOn      ProductCategory = "ADD_ON"
	CategoryStandalone ProductCategory = "STANDALONE"
)

// AllProductCategories lists every valid ProductCategory.
var AllProductCategories = []ProductCategory{CategoryBase, CategoryAddOn, CategoryStandalone}

// IsValid reports whether c is a known category.
func (c ProductCategory) IsValid() bool {
	for _, v := range AllProductCategories {
		if c == v {
			return true
		}
	}
	return false
}

// PhaseType identifies the role a phase plays inside a plan.
type PhaseType string

const (
	PhaseTrial     PhaseType = "TRIAL"
	PhaseDiscount  PhaseType = "DISCOUNT"
	PhaseFixedTerm PhaseType = "FIXEDTERM"
	PhaseEvergreen PhaseType = "EVERGREEN"
)

// AllPhaseTypes lists every valid PhaseType.
var AllPhaseTypes = []PhaseType{PhaseTrial, PhaseDiscount, PhaseFixedTerm, PhaseEvergreen}

// IsValid reports whether p is a known phase type.
func (p PhaseType) IsValid() bool {
	for _, v := range AllPhaseTypes {
		if p == v {
			return true
		}
	}
	return false
}

// BillingPeriod is the cadence at which a recurring price is charged.
type BillingPeriod string

const (
	BillingDaily           BillingPeriod = "DAILY"
	BillingWeekly          BillingPeriod = "WEEKLY"
	BillingBiweekly        BillingPeriod = "BIWEEKLY"
	BillingThirtyDays      BillingPeriod = "THIRTY_DAYS"
	BillingMonthly         BillingPeriod = "MONTHLY"
	BillingQuarterly       BillingPeriod = "QUARTERLY"
	BillingBiannual        BillingPeriod = "BIANNUAL"
	BillingAnnual          BillingPeriod = "ANNUAL"
	BillingBiennial        BillingPeriod = "BIENNIAL"
	BillingNoBillingPeriod BillingPeriod = "NO_BILLING_PERIOD"
)

// AllBillingPeriods lists every valid BillingPeriod ordered from the shortest
// term to the longest. NO_BILLING_PERIOD sorts last.
var AllBillingPeriods = []BillingPeriod{
	BillingDaily,
	BillingWeekly,
	BillingBiweekly,
	BillingThirtyDays,
	BillingMonthly,
	BillingQuarterly,
	BillingBiannual,
	BillingAnnual,
	BillingBiennial,
	BillingNoBillingPeriod,
}

// IsValid reports whether b is a known billing period.
func (b BillingPeriod) IsValid() bool {
	return b.Ordinal() >= 0
}

// Ordinal returns the position of b in AllBillingPeriods, or -1 if unknown.
// Term comparisons (short to long, long to short) use this ordering.
func (b BillingPeriod) Ordinal() int {
	for i, v := range AllBillingPeriods {
		if b == v {
			return i
		}
	}
	return -1
}

// IsRecurring reports whether b denotes an actual charging cadence.
func (b BillingPeriod) IsRecurring() bool {
	return b != "" && b != BillingNoBillingPeriod
}

// TimeUnit is the unit of a phase Duration.
type TimeUnit string

const (
	UnitDays      TimeUnit = "DAYS"
	UnitWeeks     TimeUnit = "WEEKS"
	UnitMonths    TimeUnit = "MONTHS"
	UnitYears     TimeUnit = "YEARS"
	UnitUnlimited TimeUnit = "UNLIMITED"
)

// IsValid reports whether u is a known time unit.
func (u TimeUnit) IsValid() bool {
	switch u {
	case UnitDays, UnitWeeks, UnitMonths, UnitYears, UnitUnlimited:
		return true
	}
	return false
}

// Currency is an ISO 4217 currency code, e.g. "USD".
type Currency string

// IsValid reports whether c looks like an ISO 4217 code: three upper-case letters.
func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

// ActionPolicy is when a plan change or cancellation takes effect.
type ActionPolicy string

const (
	PolicyImmediate   ActionPolicy = "IMMEDIATE"
	PolicyEndOfTerm   ActionPolicy = "END_OF_TERM"
	PolicyStartOfTerm ActionPolicy = "START_OF_TERM"
	PolicyIllegal     ActionPolicy = "ILLEGAL"
)

// IsValid reports whether p is a known policy.
func (p ActionPolicy) IsValid() bool {
	switch p {
	case PolicyImmediate, PolicyEndOfTerm, PolicyStartOfTerm, PolicyIllegal:
		return true
	}
	return false
}

// PlanAlignmentCreate anchors the phases of a newly created subscription.
type PlanAlignmentCreate string

const (
	CreateAlignStartOfBundle       PlanAlignmentCreate = "START_OF_BUNDLE"
	CreateAlignStartOfSubscription PlanAlignmentCreate = "START_OF_SUBSCRIPTION"
)

// IsValid reports whether a is a known create alignment.
func (a PlanAlignmentCreate) IsValid() bool {
	return a == CreateAlignStartOfBundle || a == CreateAlignStartOfSubscription
}

// PlanAlignmentChange anchors the phases of the target plan after a change.
type PlanAlignmentChange string

const (
	ChangeAlignStartOfBundle       PlanAlignmentChange = "START_OF_BUNDLE"
	ChangeAlignStartOfSubscription PlanAlignmentChange = "START_OF_SUBSCRIPTION"
	ChangeAlignChangeOfPlan        PlanAlignmentChange = "CHANGE_OF_PLAN"
	ChangeAlignChangeOfPriceList   PlanAlignmentChange = "CHANGE_OF_PRICELIST"
)

// IsValid reports whether a is a known change alignment.
func (a PlanAlignmentChange) IsValid() bool {
	switch a {
	case ChangeAlignStartOfBundle, ChangeAlignStartOfSubscription, ChangeAlignChangeOfPlan, ChangeAlignChangeOfPriceList:
		return true
	}
	return false
}

// BillingAlignment picks the date billing cycles are aligned on.
type BillingAlignment string

const (
	BillingAlignAccount      BillingAlignment = "ACCOUNT"
	BillingAlignBundle       BillingAlignment = "BUNDLE"
	BillingAlignSubscription BillingAlignment = "SUBSCRIPTION"
)

// IsValid reports whether a is a known billing alignment.
func (a BillingAlignment) IsValid() bool {
	switch a {
	case BillingAlignAccount, BillingAlignBundle, BillingAlignSubscription:
		return true
	}
	return false
}

// ChangeQualifier selects the condition a generic plan-change rule tests.
type ChangeQualifier string

const (
	QualifierDefault          ChangeQualifier = "DEFAULT"
	QualifierProductLowToHigh ChangeQualifier = "PRODUCT_FROM_LOW_TO_HIGH"
	QualifierProductHighToLow ChangeQualifier = "PRODUCT_FROM_HIGH_TO_LOW"
	QualifierTermShortToLong  ChangeQualifier = "TERM_FROM_SHORT_TO_LONG"
	QualifierTermLongToShort  ChangeQualifier = "TERM_FROM_LONG_TO_SHORT"
)

// IsValid reports whether q is a known qualifier.
func (q ChangeQualifier) IsValid() bool {
	switch q {
	case QualifierDefault, QualifierProductLowToHigh, QualifierProductHighToLow, QualifierTermShortToLong, QualifierTermLongToShort:
		return true
	}
	return false
}
