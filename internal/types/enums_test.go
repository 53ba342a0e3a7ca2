package types

import "testing"

func TestBillingPeriodOrdinal(t *testing.T) {
	if BillingMonthly.Ordinal() >= BillingAnnual.Ordinal() {
		t.Errorf("MONTHLY should sort before ANNUAL")
	}
	if BillingDaily.Ordinal() != 0 {
		t.Errorf("DAILY ordinal = %d, want 0", BillingDaily.Ordinal())
	}
	if BillingPeriod("FORTNIGHTLY").Ordinal() != -1 {
		t.Error("unknown billing period should have ordinal -1")
	}
	if BillingNoBillingPeriod.IsRecurring() {
		t.Error("NO_BILLING_PERIOD must not be recurring")
	}
	if BillingPeriod("").IsRecurring() {
		t.Error("empty billing period must not be recurring")
	}
	if !BillingQuarterly.IsRecurring() {
		t.Error("QUARTERLY should be recurring")
	}
}

func TestEnumValidity(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"category BASE", CategoryBase.IsValid()},
		{"phase TRIAL", PhaseTrial.IsValid()},
		{"unit UNLIMITED", UnitUnlimited.IsValid()},
		{"policy END_OF_TERM", PolicyEndOfTerm.IsValid()},
		{"create alignment", CreateAlignStartOfBundle.IsValid()},
		{"change alignment", ChangeAlignChangeOfPriceList.IsValid()},
		{"billing alignment", BillingAlignAccount.IsValid()},
		{"qualifier", QualifierTermLongToShort.IsValid()},
		{"currency USD", Currency("USD").IsValid()},
	}
	for _, tt := range tests {
		if !tt.valid {
			t.Errorf("%s: expected valid", tt.name)
		}
	}

	invalid := []struct {
		name  string
		valid bool
	}{
		{"category", ProductCategory("BUNDLE").IsValid()},
		{"phase", PhaseType("GRACE").IsValid()},
		{"unit", TimeUnit("HOURS").IsValid()},
		{"policy", ActionPolicy("LATER").IsValid()},
		{"qualifier", ChangeQualifier("ANY").IsValid()},
		{"currency lower", Currency("usd").IsValid()},
		{"currency long", Currency("USDT").IsValid()},
	}
	for _, tt := range invalid {
		if tt.valid {
			t.Errorf("%s: expected invalid", tt.name)
		}
	}
}
