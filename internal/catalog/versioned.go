package catalog

import (
	"fmt"
	"slices"
	"time"

	"pricebook/internal/types"
)

// VersionedCatalog is the ordered history of a catalog. Versions share one
// catalog name and are kept sorted by effective date.
//
// Queries never mutate and are safe for concurrent use. Add is a single-writer
// operation; services that reload while serving should build a new value with
// WithVersion and swap it in.
type VersionedCatalog struct {
	name            string
	versions        []*StandaloneCatalog
	allowEarlyDates bool

	// boundaries holds every effective date and existing-subscription date,
	// sorted and deduplicated.
	boundaries []time.Time
}

// Option configures a VersionedCatalog.
type Option func(*VersionedCatalog)

// WithEarlyDates makes date lookups that precede the first version resolve
// against the first version instead of failing.
func WithEarlyDates(allow bool) Option {
	return func(v *VersionedCatalog) {
		v.allowEarlyDates = allow
	}
}

// NewVersionedCatalog creates an empty catalog history.
func NewVersionedCatalog(opts ...Option) *VersionedCatalog {
	v := &VersionedCatalog{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Add initializes c and inserts it in effective-date order. It rejects a
// version whose name differs from the existing versions, and a second version
// with the same effective date.
func (v *VersionedCatalog) Add(c *StandaloneCatalog) error {
	c.Initialize()
	if len(v.versions) > 0 && c.Name != v.name {
		return types.NewAppErrorWithDetails(types.ErrCodeConflictCatalogName,
			fmt.Sprintf("catalog '%s' cannot be added to catalog '%s'", c.Name, v.name),
			ErrCatalogNameMismatch, map[string]any{"catalog": v.name, "got": c.Name})
	}
	for _, existing := range v.versions {
		if existing.EffectiveDate.Equal(c.EffectiveDate) {
			return types.NewAppErrorWithDetails(types.ErrCodeConflictCatalogDate,
				fmt.Sprintf("catalog '%s' already has a version effective %s", c.Name, c.EffectiveDate.Format(time.RFC3339)),
				ErrDuplicateVersion, map[string]any{"effective_date": c.EffectiveDate})
		}
	}
	v.name = c.Name
	v.versions = append(v.versions, c)
	slices.SortStableFunc(v.versions, func(a, b *StandaloneCatalog) int {
		return a.EffectiveDate.Compare(b.EffectiveDate)
	})
	v.boundaries = resolutionBoundaries(v.versions)
	return nil
}

func resolutionBoundaries(versions []*StandaloneCatalog) []time.Time {
	var out []time.Time
	for _, c := range versions {
		out = append(out, c.EffectiveDate)
		for _, p := range c.Plans {
			if d := p.EffectiveDateForExistingSubscriptions; d != nil {
				out = append(out, *d)
			}
		}
	}
	slices.SortFunc(out, time.Time.Compare)
	return slices.CompactFunc(out, time.Time.Equal)
}

// ResolutionEpoch counts the effective dates and existing-subscription dates
// at or before t. Plan lookups for two dates with the same epoch resolve to
// the same plan, so the epoch can stand in for the date in cache keys.
func (v *VersionedCatalog) ResolutionEpoch(t time.Time) int {
	i, _ := slices.BinarySearchFunc(v.boundaries, t, func(b, target time.Time) int {
		if b.After(target) {
			return 1
		}
		return -1
	})
	return i
}

// WithVersion returns a copy of v with c added, leaving v untouched.
func (v *VersionedCatalog) WithVersion(c *StandaloneCatalog) (*VersionedCatalog, error) {
	next := &VersionedCatalog{
		name:            v.name,
		versions:        slices.Clone(v.versions),
		allowEarlyDates: v.allowEarlyDates,
		boundaries:      slices.Clone(v.boundaries),
	}
	if err := next.Add(c); err != nil {
		return nil, err
	}
	return next, nil
}

// CatalogName returns the shared name of all versions.
func (v *VersionedCatalog) CatalogName() string {
	return v.name
}

// Versions returns the versions in ascending effective-date order.
func (v *VersionedCatalog) Versions() []*StandaloneCatalog {
	return slices.Clone(v.versions)
}

// Len returns the number of versions.
func (v *VersionedCatalog) Len() int {
	return len(v.versions)
}

// Validate validates every version and reports all defects together.
func (v *VersionedCatalog) Validate() error {
	var errs ValidationErrors
	if len(v.versions) == 0 {
		errs.Add(kindCatalog, v.name, "catalog has no versions")
	}
	for _, c := range v.versions {
		errs.Merge(c.validate())
	}
	return errs.Err()
}

// SnapshotFor returns the last version whose effective date is strictly
// before date. It fails when date does not follow any version.
func (v *VersionedCatalog) SnapshotFor(date time.Time) (*StandaloneCatalog, error) {
	for i := len(v.versions) - 1; i >= 0; i-- {
		if v.versions[i].EffectiveDate.Before(date) {
			return v.versions[i], nil
		}
	}
	return nil, v.versionNotFound(date)
}

// EffectiveDate returns the effective date of the version in force at date.
func (v *VersionedCatalog) EffectiveDate(date time.Time) (time.Time, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return time.Time{}, err
	}
	return c.EffectiveDate, nil
}

// snapshot is SnapshotFor with the early-date fallback applied.
func (v *VersionedCatalog) snapshot(date time.Time) (*StandaloneCatalog, error) {
	c, err := v.SnapshotFor(date)
	if err != nil && v.allowEarlyDates && len(v.versions) > 0 {
		return v.versions[0], nil
	}
	return c, err
}

func (v *VersionedCatalog) versionNotFound(date time.Time) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeNotFoundCatalogVersion,
		fmt.Sprintf("no version of catalog '%s' in effect at %s", v.name, date.Format(time.RFC3339)),
		ErrVersionNotFound, map[string]any{"date": date})
}

// FindPlan returns the plan called name as it applies at requested to a
// subscription that started at start.
func (v *VersionedCatalog) FindPlan(name string, requested, start time.Time) (*Plan, error) {
	return v.resolvePlan(requested, start, func(c *StandaloneCatalog) (*Plan, error) {
		return c.FindPlan(name)
	})
}

// FindPlanFrom resolves spec through the price lists as it applies at
// requested to a subscription that started at start.
func (v *VersionedCatalog) FindPlanFrom(spec PlanSpecifier, requested, start time.Time) (*Plan, error) {
	return v.resolvePlan(requested, start, func(c *StandaloneCatalog) (*Plan, error) {
		return c.FindPlanFrom(spec)
	})
}

// FindPhase returns the phase called name from the plan version that applies
// at requested to a subscription that started at start.
func (v *VersionedCatalog) FindPhase(name string, requested, start time.Time) (*PlanPhase, error) {
	planName, _, err := PlanNameFromPhaseName(name)
	if err != nil {
		return nil, err
	}
	p, err := v.FindPlan(planName, requested, start)
	if err != nil {
		if IsNotFound(err) {
			return nil, phaseNotFound(name)
		}
		return nil, err
	}
	return p.FindPhase(name)
}

// resolvePlan walks the versions in effect at requested from newest to oldest.
// A subscription that started on or after a version's effective date sees that
// version. An older subscription only sees it if the plan opts existing
// subscriptions in on or before requested; otherwise the walk moves on to the
// previous version. The walk stops at the first version that does not know the
// plan, and the oldest version visited is the answer when nothing accepted.
func (v *VersionedCatalog) resolvePlan(requested, start time.Time, find func(*StandaloneCatalog) (*Plan, error)) (*Plan, error) {
	var candidates []*StandaloneCatalog
	for _, c := range v.versions {
		if !c.EffectiveDate.After(requested) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		if v.allowEarlyDates && len(v.versions) > 0 {
			return find(v.versions[0])
		}
		return nil, v.versionNotFound(requested)
	}

	var oldest *Plan
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		p, err := find(c)
		if err != nil {
			if IsNotFound(err) {
				lastErr = err
				break
			}
			return nil, err
		}
		if !start.Before(c.EffectiveDate) {
			return p, nil
		}
		existing := p.EffectiveDateForExistingSubscriptions
		if existing != nil && !existing.After(requested) {
			return p, nil
		}
		oldest = p
	}
	if oldest != nil {
		return oldest, nil
	}
	return nil, lastErr
}

// FindPlanAt returns the plan called name from the version in effect at date,
// ignoring grandfathering.
func (v *VersionedCatalog) FindPlanAt(name string, date time.Time) (*Plan, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return nil, err
	}
	return c.FindPlan(name)
}

// FindProduct returns the product called name from the version in effect at date.
func (v *VersionedCatalog) FindProduct(name string, date time.Time) (*Product, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return nil, err
	}
	return c.FindProduct(name)
}

// FindPriceList returns the price list called name from the version in effect at date.
func (v *VersionedCatalog) FindPriceList(name string, date time.Time) (*PriceList, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return nil, err
	}
	return c.FindPriceList(name)
}

// CurrentProducts returns the products open for sale at date.
func (v *VersionedCatalog) CurrentProducts(date time.Time) ([]*Product, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return nil, err
	}
	return c.CurrentProducts(), nil
}

// CurrentPlans returns the plans open to new subscriptions at date.
func (v *VersionedCatalog) CurrentPlans(date time.Time) ([]*Plan, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return nil, err
	}
	return c.CurrentPlans(), nil
}

// AvailableAddOns returns the add-ons purchasable with base at date.
func (v *VersionedCatalog) AvailableAddOns(base string, date time.Time) ([]*Product, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return nil, err
	}
	return c.AvailableAddOns(base)
}

// IncludedAddOns returns the add-ons bundled with base at date.
func (v *VersionedCatalog) IncludedAddOns(base string, date time.Time) ([]*Product, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return nil, err
	}
	return c.IncludedAddOns(base)
}

// ChangePolicy resolves the change policy in effect at date.
func (v *VersionedCatalog) ChangePolicy(from PlanPhaseSpecifier, to PlanSpecifier, date time.Time) (types.ActionPolicy, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return "", err
	}
	return c.ChangePolicy(from, to)
}

// CancelPolicy resolves the cancel policy in effect at date.
func (v *VersionedCatalog) CancelPolicy(phase PlanPhaseSpecifier, date time.Time) (types.ActionPolicy, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return "", err
	}
	return c.CancelPolicy(phase)
}

// ChangeAlignment resolves the change alignment in effect at date.
func (v *VersionedCatalog) ChangeAlignment(from PlanPhaseSpecifier, to PlanSpecifier, date time.Time) (types.PlanAlignmentChange, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return "", err
	}
	return c.ChangeAlignment(from, to)
}

// CreateAlignment resolves the create alignment in effect at date.
func (v *VersionedCatalog) CreateAlignment(spec PlanSpecifier, date time.Time) (types.PlanAlignmentCreate, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return "", err
	}
	return c.CreateAlignment(spec)
}

// BillingAlignment resolves the billing alignment in effect at date.
func (v *VersionedCatalog) BillingAlignment(phase PlanPhaseSpecifier, date time.Time) (types.BillingAlignment, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return "", err
	}
	return c.BillingAlignment(phase)
}

// ChangePlan resolves price list, policy and alignment of a change at date.
func (v *VersionedCatalog) ChangePlan(from PlanPhaseSpecifier, to PlanSpecifier, date time.Time) (PlanChangeResult, error) {
	c, err := v.snapshot(date)
	if err != nil {
		return PlanChangeResult{}, err
	}
	return c.ChangePlan(from, to)
}
