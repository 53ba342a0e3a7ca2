package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricebook/internal/types"
)

func ptrTime(t time.Time) *time.Time { return &t }

// pistolHistory is v1 at 2011-01-01 ($29.95) and v2 at 2011-02-02 ($39.95),
// v2 applying to existing subscriptions from 2011-02-14.
func pistolHistory(t *testing.T, opts ...Option) *VersionedCatalog {
	t.Helper()
	v1 := gunClub(t, day("2011-01-01"), "29.95")
	v2 := gunClub(t, day("2011-02-02"), "39.95")
	p, err := v2.FindPlan("pistol-monthly")
	require.NoError(t, err)
	p.EffectiveDateForExistingSubscriptions = ptrTime(day("2011-02-14"))

	vc := NewVersionedCatalog(opts...)
	// out of order on purpose
	require.NoError(t, vc.Add(v2))
	require.NoError(t, vc.Add(v1))
	return vc
}

func TestVersioned_AddSortsAndRejects(t *testing.T) {
	vc := pistolHistory(t)
	versions := vc.Versions()
	require.Len(t, versions, 2)
	assert.True(t, versions[0].EffectiveDate.Before(versions[1].EffectiveDate))
	assert.Equal(t, "GunClub", vc.CatalogName())

	other := gunClub(t, day("2011-03-01"), "1.00")
	other.Name = "OtherClub"
	err := vc.Add(other)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCatalogNameMismatch))

	err = vc.Add(gunClub(t, day("2011-01-01"), "1.00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateVersion))
	assert.Equal(t, 2, vc.Len())
}

func TestVersioned_WithVersionLeavesOriginal(t *testing.T) {
	vc := pistolHistory(t)
	next, err := vc.WithVersion(gunClub(t, day("2011-03-01"), "49.95"))
	require.NoError(t, err)
	assert.Equal(t, 2, vc.Len())
	assert.Equal(t, 3, next.Len())

	_, err = vc.WithVersion(gunClub(t, day("2011-02-02"), "49.95"))
	assert.Error(t, err)
}

func TestVersioned_SnapshotForIsStrictAndMonotonic(t *testing.T) {
	vc := pistolHistory(t)

	_, err := vc.SnapshotFor(day("2011-01-01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionNotFound))

	var prev time.Time
	for d := day("2011-01-02"); d.Before(day("2011-04-01")); d = d.AddDate(0, 0, 1) {
		c, err := vc.SnapshotFor(d)
		require.NoError(t, err)
		assert.True(t, c.EffectiveDate.Before(d))
		assert.False(t, c.EffectiveDate.Before(prev), "snapshot went backwards at %s", d)
		prev = c.EffectiveDate
	}

	c, err := vc.SnapshotFor(day("2011-02-02"))
	require.NoError(t, err)
	assert.Equal(t, day("2011-01-01"), c.EffectiveDate)
	c, err = vc.SnapshotFor(day("2011-02-03"))
	require.NoError(t, err)
	assert.Equal(t, day("2011-02-02"), c.EffectiveDate)
}

func TestVersioned_EarlyDates(t *testing.T) {
	strict := pistolHistory(t)
	_, err := strict.FindProduct("Pistol", day("2010-06-01"))
	assert.True(t, errors.Is(err, ErrVersionNotFound))
	_, err = strict.FindPlan("pistol-monthly", day("2010-06-01"), day("2010-06-01"))
	assert.True(t, errors.Is(err, ErrVersionNotFound))

	permissive := pistolHistory(t, WithEarlyDates(true))
	prod, err := permissive.FindProduct("Pistol", day("2010-06-01"))
	require.NoError(t, err)
	assert.Equal(t, "Pistol", prod.Name)

	p, err := permissive.FindPlan("pistol-monthly", day("2010-06-01"), day("2010-06-01"))
	require.NoError(t, err)
	assert.Equal(t, "29.95", recurringUSD(t, p))
}

func TestVersioned_GrandfatheredSubscription(t *testing.T) {
	vc := pistolHistory(t)
	start := day("2011-01-01")
	tests := []struct {
		requested string
		want      string
	}{
		{"2011-01-01", "29.95"},
		{"2011-01-20", "29.95"},
		{"2011-02-02", "29.95"},
		{"2011-02-13", "29.95"},
		{"2011-02-14", "39.95"},
		{"2012-01-01", "39.95"},
	}
	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			p, err := vc.FindPlan("pistol-monthly", day(tt.requested), start)
			require.NoError(t, err)
			assert.Equal(t, tt.want, recurringUSD(t, p))
		})
	}
}

func TestVersioned_SubscriptionBeforeFirstVersion(t *testing.T) {
	// S1 at t1 has no opt-in date, S2 at t2 opts in from t3; a subscription
	// predating t1 stays on S1 until t3.
	vc := pistolHistory(t)
	start := day("2010-12-01")

	p, err := vc.FindPlan("pistol-monthly", day("2011-02-10"), start)
	require.NoError(t, err)
	assert.Equal(t, "29.95", recurringUSD(t, p))

	p, err = vc.FindPlan("pistol-monthly", day("2011-02-20"), start)
	require.NoError(t, err)
	assert.Equal(t, "39.95", recurringUSD(t, p))
}

func TestVersioned_OldSubscriptionKeepsOldestVersion(t *testing.T) {
	// v1 and v2 never opt existing subscriptions in; v3 does from 2011-06-01.
	v1 := gunClub(t, day("2011-01-01"), "10.00")
	v2 := gunClub(t, day("2011-02-02"), "15.00")
	v3 := gunClub(t, day("2011-03-01"), "20.00")
	p, err := v3.FindPlan("pistol-monthly")
	require.NoError(t, err)
	p.EffectiveDateForExistingSubscriptions = ptrTime(day("2011-06-01"))

	vc := NewVersionedCatalog()
	for _, c := range []*StandaloneCatalog{v1, v2, v3} {
		require.NoError(t, vc.Add(c))
	}

	tests := []struct {
		name      string
		requested string
		start     string
		want      string
	}{
		{"started before every version", "2011-04-01", "2010-12-01", "10.00"},
		{"started under v1", "2011-04-01", "2011-01-15", "10.00"},
		{"started under v2", "2011-04-01", "2011-02-10", "15.00"},
		{"started under v3", "2011-04-01", "2011-03-05", "20.00"},
		{"v3 opted in", "2011-06-01", "2010-12-01", "20.00"},
		{"v3 opted in for v2 subscription", "2011-07-01", "2011-02-10", "20.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vc.FindPlan("pistol-monthly", day(tt.requested), day(tt.start))
			require.NoError(t, err)
			assert.Equal(t, tt.want, recurringUSD(t, got))
		})
	}
}

func TestVersioned_NewSubscriptionSeesLatest(t *testing.T) {
	vc := pistolHistory(t)
	for _, start := range []string{"2011-02-02", "2011-02-05"} {
		p, err := vc.FindPlan("pistol-monthly", day("2011-02-05"), day(start))
		require.NoError(t, err)
		assert.Equal(t, "39.95", recurringUSD(t, p), "start %s", start)
	}

	// Shotgun never opts existing subscriptions in; new ones still see v2.
	p, err := vc.FindPlan("shotgun-monthly", day("2011-02-05"), day("2011-02-03"))
	require.NoError(t, err)
	assert.Equal(t, day("2011-02-02"), effectiveOf(t, vc, p))

	p, err = vc.FindPlan("shotgun-monthly", day("2011-02-05"), day("2011-01-10"))
	require.NoError(t, err)
	assert.Equal(t, day("2011-01-01"), effectiveOf(t, vc, p))
}

func TestVersioned_PlanIntroducedLater(t *testing.T) {
	vc := pistolHistory(t)
	v3 := gunClub(t, day("2011-03-01"), "39.95")
	require.NoError(t, v3.AddPlan(&Plan{
		Name:       "rifle-annual",
		Product:    &Product{Name: "Rifle"},
		FinalPhase: &PlanPhase{Type: types.PhaseEvergreen, Duration: Unlimited(), BillingPeriod: types.BillingAnnual, Recurring: usd("4999.00")},
	}, ""))
	require.NoError(t, vc.Add(v3))

	// The walk stops at v2, which lacks the plan, and keeps what v3 resolved.
	p, err := vc.FindPlan("rifle-annual", day("2011-03-10"), day("2011-01-10"))
	require.NoError(t, err)
	assert.Equal(t, day("2011-03-01"), effectiveOf(t, vc, p))

	p, err = vc.FindPlan("rifle-annual", day("2011-03-10"), day("2011-03-05"))
	require.NoError(t, err)
	assert.Equal(t, "rifle-annual", p.Name)

	_, err = vc.FindPlan("rifle-annual", day("2011-02-10"), day("2011-02-10"))
	assert.True(t, errors.Is(err, ErrPlanNotFound))
}

func TestVersioned_FindPlanFromAndPhase(t *testing.T) {
	vc := pistolHistory(t)
	start := day("2011-01-01")

	p, err := vc.FindPlanFrom(PlanSpecifier{ProductName: "Pistol", BillingPeriod: types.BillingMonthly}, day("2011-02-20"), start)
	require.NoError(t, err)
	assert.Equal(t, "39.95", recurringUSD(t, p))

	ph, err := vc.FindPhase("pistol-monthly-evergreen", day("2011-02-10"), start)
	require.NoError(t, err)
	amount, err := ph.RecurringPrice("USD")
	require.NoError(t, err)
	assert.Equal(t, "29.95", amount.StringFixed(2))

	_, err = vc.FindPhase("pistol-monthly-discount", day("2011-02-10"), start)
	assert.True(t, errors.Is(err, ErrPhaseNotFound))
	_, err = vc.FindPhase("nothing-here-trial", day("2011-02-10"), start)
	assert.True(t, errors.Is(err, ErrPhaseNotFound))
}

func TestVersioned_PolicyQueries(t *testing.T) {
	vc := pistolHistory(t)
	from := PlanPhaseSpecifier{PlanSpecifier: PlanSpecifier{ProductName: "Pistol", BillingPeriod: types.BillingMonthly}, PhaseType: types.PhaseEvergreen}
	to := PlanSpecifier{ProductName: "Rifle", BillingPeriod: types.BillingMonthly}
	at := day("2011-02-10")

	policy, err := vc.ChangePolicy(from, to, at)
	require.NoError(t, err)
	assert.Equal(t, types.PolicyImmediate, policy)

	policy, err = vc.CancelPolicy(from, at)
	require.NoError(t, err)
	assert.Equal(t, types.PolicyEndOfTerm, policy)

	ca, err := vc.ChangeAlignment(from, to, at)
	require.NoError(t, err)
	assert.Equal(t, types.ChangeAlignStartOfSubscription, ca)

	cr, err := vc.CreateAlignment(to, at)
	require.NoError(t, err)
	assert.Equal(t, types.CreateAlignStartOfBundle, cr)

	ba, err := vc.BillingAlignment(from, at)
	require.NoError(t, err)
	assert.Equal(t, types.BillingAlignAccount, ba)

	res, err := vc.ChangePlan(from, to, at)
	require.NoError(t, err)
	assert.Equal(t, PlanChangeResult{PriceList: DefaultPriceListName, Policy: types.PolicyImmediate, Alignment: types.ChangeAlignStartOfSubscription}, res)

	_, err = vc.CancelPolicy(from, day("2010-01-01"))
	assert.True(t, errors.Is(err, ErrVersionNotFound))
}

func TestVersioned_ResolutionEpoch(t *testing.T) {
	vc := pistolHistory(t)
	// Boundaries: 2011-01-01, 2011-02-02, 2011-02-14.
	tests := []struct {
		at   time.Time
		want int
	}{
		{day("2010-12-31"), 0},
		{day("2011-01-01"), 1},
		{day("2011-01-01").Add(time.Nanosecond), 1},
		{day("2011-02-01"), 1},
		{day("2011-02-02"), 2},
		{day("2011-02-13"), 2},
		{day("2011-02-14"), 3},
		{day("2030-01-01"), 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, vc.ResolutionEpoch(tt.at), "at %s", tt.at)
	}

	next, err := vc.WithVersion(gunClub(t, day("2011-03-01"), "49.95"))
	require.NoError(t, err)
	assert.Equal(t, 4, next.ResolutionEpoch(day("2011-03-01")))
	assert.Equal(t, 3, vc.ResolutionEpoch(day("2011-03-01")))
}

func TestVersioned_SameEpochSamePlan(t *testing.T) {
	vc := pistolHistory(t)
	starts := []time.Time{day("2010-12-01"), day("2011-01-01"), day("2011-01-20"), day("2011-02-02"), day("2011-02-20")}
	for d := day("2011-01-01"); d.Before(day("2011-03-01")); d = d.Add(12 * time.Hour) {
		later := d.Add(11 * time.Hour)
		if vc.ResolutionEpoch(d) != vc.ResolutionEpoch(later) {
			continue
		}
		for _, start := range starts {
			a, err := vc.FindPlan("pistol-monthly", d, start)
			require.NoError(t, err)
			b, err := vc.FindPlan("pistol-monthly", later, start)
			require.NoError(t, err)
			assert.Same(t, a, b, "requested %s vs %s, start %s", d, later, start)
		}
	}
}

func TestVersioned_Validate(t *testing.T) {
	assert.Error(t, NewVersionedCatalog().Validate())
	assert.NoError(t, pistolHistory(t).Validate())
}

func effectiveOf(t *testing.T, vc *VersionedCatalog, p *Plan) time.Time {
	t.Helper()
	for _, c := range vc.Versions() {
		for _, candidate := range c.Plans {
			if candidate == p {
				return c.EffectiveDate
			}
		}
	}
	t.Fatalf("plan %s does not belong to any version", p.Name)
	return time.Time{}
}
