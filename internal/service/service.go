// Package service exposes the read-only catalog query surface over a
// VersionedCatalog that can be reloaded while queries are being served.
//
// Readers never lock: the current catalog is held in an atomic pointer and a
// reload builds a complete replacement before swapping it in. Reloads and
// single-version additions are serialized with each other.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"pricebook/internal/catalog"
	"pricebook/internal/types"
)

// DefaultCacheSize is the number of plan resolutions kept when no size is configured.
const DefaultCacheSize = 4096

// CatalogLoader produces a complete, validated catalog history.
// *loader.Loader satisfies it.
type CatalogLoader interface {
	Load(ctx context.Context) (*catalog.VersionedCatalog, error)
}

// AsOf pins a query in time. SubscriptionStart is the start date of the
// subscription the query is made for; nil means a new subscription starting
// at Date.
type AsOf struct {
	Date              time.Time
	SubscriptionStart *time.Time
}

// At is an AsOf for a new subscription at date.
func At(date time.Time) AsOf {
	return AsOf{Date: date}
}

func (a AsOf) start() time.Time {
	if a.SubscriptionStart == nil {
		return a.Date
	}
	return *a.SubscriptionStart
}

// VersionInfo summarizes one catalog version.
type VersionInfo struct {
	CatalogName   string           `json:"catalog_name"`
	EffectiveDate time.Time        `json:"effective_date"`
	Currencies    []types.Currency `json:"currencies"`
	Products      int              `json:"products"`
	Plans         int              `json:"plans"`
}

// planKey identifies a plan resolution. Dates are reduced to their resolution
// epoch within catalog, and entries resolved against a replaced catalog can
// never match a lookup against its successor.
type planKey struct {
	catalog       *catalog.VersionedCatalog
	name          string
	product       string
	billingPeriod types.BillingPeriod
	priceList     string
	date          int
	start         int
}

func newPlanKey(vc *catalog.VersionedCatalog, at AsOf) planKey {
	return planKey{
		catalog: vc,
		date:    vc.ResolutionEpoch(at.Date),
		start:   vc.ResolutionEpoch(at.start()),
	}
}

// CatalogService answers catalog queries against the current catalog.
type CatalogService struct {
	loader  CatalogLoader
	options []catalog.Option
	current atomic.Pointer[catalog.VersionedCatalog]
	plans   *lru.Cache[planKey, *catalog.Plan]
	metrics Metrics
	logger  *slog.Logger

	mu sync.Mutex // serializes writers
}

// Option configures a CatalogService.
type Option func(*CatalogService)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *CatalogService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithCatalogOptions sets the options used when Add starts a catalog from scratch.
func WithCatalogOptions(opts ...catalog.Option) Option {
	return func(s *CatalogService) {
		s.options = opts
	}
}

// NewCatalogService creates a service backed by loader. cacheSize bounds the
// plan resolution cache; zero or less uses DefaultCacheSize.
func NewCatalogService(loader CatalogLoader, cacheSize int, logger *slog.Logger, opts ...Option) (*CatalogService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[planKey, *catalog.Plan](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan cache: %w", err)
	}
	s := &CatalogService{
		loader:  loader,
		plans:   cache,
		metrics: NoopMetrics{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Reload loads a fresh catalog history and swaps it in. On failure the
// previous catalog stays in place and the error is returned.
func (s *CatalogService) Reload(ctx context.Context) error {
	if s.loader == nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "catalog service has no loader", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	vc, err := s.loader.Load(ctx)
	if err == nil {
		err = vc.Validate()
	}
	if err != nil {
		name := ""
		if prev := s.current.Load(); prev != nil {
			name = prev.CatalogName()
		}
		s.logger.ErrorContext(ctx, "catalog reload failed, keeping previous catalog",
			"error", err,
			"catalog", name,
		)
		s.metrics.RecordReload(ctx, name, 0, err)
		return err
	}

	s.swap(vc)
	s.logger.InfoContext(ctx, "catalog reloaded",
		"catalog", vc.CatalogName(),
		"versions", vc.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.metrics.RecordReload(ctx, vc.CatalogName(), vc.Len(), nil)
	return nil
}

// Set replaces the current catalog.
func (s *CatalogService) Set(vc *catalog.VersionedCatalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swap(vc)
}

// Add validates snapshot and appends it to the current catalog. The current
// catalog is left untouched when snapshot is rejected.
func (s *CatalogService) Add(ctx context.Context, snapshot *catalog.StandaloneCatalog) error {
	snapshot.Initialize()
	if err := snapshot.Validate(); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationCatalogInvalid,
			fmt.Sprintf("catalog '%s' is invalid", snapshot.Name), err,
			map[string]any{"catalog": snapshot.Name})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	if cur == nil {
		cur = catalog.NewVersionedCatalog(s.options...)
	}
	next, err := cur.WithVersion(snapshot)
	if err != nil {
		return err
	}
	s.swap(next)
	s.logger.InfoContext(ctx, "catalog version added",
		"catalog", next.CatalogName(),
		"effective_date", snapshot.EffectiveDate,
		"versions", next.Len(),
	)
	return nil
}

func (s *CatalogService) swap(vc *catalog.VersionedCatalog) {
	s.current.Store(vc)
	s.plans.Purge()
}

// Catalog returns the current catalog.
func (s *CatalogService) Catalog() (*catalog.VersionedCatalog, error) {
	vc := s.current.Load()
	if vc == nil {
		return nil, types.NewAppError(types.ErrCodeInternalNotLoaded, "catalog has not been loaded", nil)
	}
	return vc, nil
}

// Ready reports whether a catalog is loaded.
func (s *CatalogService) Ready() bool {
	return s.current.Load() != nil
}

// Versions describes every version of the current catalog, oldest first.
func (s *CatalogService) Versions(ctx context.Context) ([]VersionInfo, error) {
	vc, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	versions := vc.Versions()
	out := make([]VersionInfo, 0, len(versions))
	for _, c := range versions {
		out = append(out, VersionInfo{
			CatalogName:   c.Name,
			EffectiveDate: c.EffectiveDate,
			Currencies:    c.SupportedCurrencies(),
			Products:      len(c.Products),
			Plans:         len(c.Plans),
		})
	}
	return out, nil
}

// ResolvePlan resolves a plan through the price lists.
func (s *CatalogService) ResolvePlan(ctx context.Context, spec catalog.PlanSpecifier, at AsOf) (*catalog.Plan, error) {
	return s.cachedPlan(ctx, "resolve_plan",
		func(vc *catalog.VersionedCatalog) planKey {
			key := newPlanKey(vc, at)
			key.product = spec.ProductName
			key.billingPeriod = spec.BillingPeriod
			key.priceList = spec.PriceListName
			return key
		},
		func(vc *catalog.VersionedCatalog) (*catalog.Plan, error) {
			return vc.FindPlanFrom(spec, at.Date, at.start())
		})
}

// ResolvePlanByName resolves the plan called name.
func (s *CatalogService) ResolvePlanByName(ctx context.Context, name string, at AsOf) (*catalog.Plan, error) {
	return s.cachedPlan(ctx, "resolve_plan_by_name",
		func(vc *catalog.VersionedCatalog) planKey {
			key := newPlanKey(vc, at)
			key.name = name
			return key
		},
		func(vc *catalog.VersionedCatalog) (*catalog.Plan, error) {
			return vc.FindPlan(name, at.Date, at.start())
		})
}

func (s *CatalogService) cachedPlan(ctx context.Context, query string, keyFor func(*catalog.VersionedCatalog) planKey, find func(*catalog.VersionedCatalog) (*catalog.Plan, error)) (*catalog.Plan, error) {
	vc, err := s.Catalog()
	if err != nil {
		return nil, s.observe(ctx, query, err)
	}
	key := keyFor(vc)
	if p, ok := s.plans.Get(key); ok {
		s.metrics.RecordQuery(ctx, query, types.ResultOK)
		return p, nil
	}
	p, err := find(vc)
	if err != nil {
		return nil, s.observe(ctx, query, err)
	}
	s.plans.Add(key, p)
	s.metrics.RecordQuery(ctx, query, types.ResultOK)
	return p, nil
}

// ResolveProduct returns the product called name at date.
func (s *CatalogService) ResolveProduct(ctx context.Context, name string, date time.Time) (*catalog.Product, error) {
	return run(ctx, s, "resolve_product", func(vc *catalog.VersionedCatalog) (*catalog.Product, error) {
		return vc.FindProduct(name, date)
	})
}

// ResolvePhase returns the phase called name as it applies at at.
func (s *CatalogService) ResolvePhase(ctx context.Context, name string, at AsOf) (*catalog.PlanPhase, error) {
	return run(ctx, s, "resolve_phase", func(vc *catalog.VersionedCatalog) (*catalog.PlanPhase, error) {
		return vc.FindPhase(name, at.Date, at.start())
	})
}

// ResolvePriceList returns the price list called name at date.
func (s *CatalogService) ResolvePriceList(ctx context.Context, name string, date time.Time) (*catalog.PriceList, error) {
	return run(ctx, s, "resolve_price_list", func(vc *catalog.VersionedCatalog) (*catalog.PriceList, error) {
		return vc.FindPriceList(name, date)
	})
}

// CurrentPlans returns the plans open to new subscriptions at date.
func (s *CatalogService) CurrentPlans(ctx context.Context, date time.Time) ([]*catalog.Plan, error) {
	return run(ctx, s, "current_plans", func(vc *catalog.VersionedCatalog) ([]*catalog.Plan, error) {
		return vc.CurrentPlans(date)
	})
}

// AvailableAddOns returns the add-ons purchasable with base at date.
func (s *CatalogService) AvailableAddOns(ctx context.Context, base string, date time.Time) ([]*catalog.Product, error) {
	return run(ctx, s, "available_add_ons", func(vc *catalog.VersionedCatalog) ([]*catalog.Product, error) {
		return vc.AvailableAddOns(base, date)
	})
}

// ChangePolicy resolves the policy for a plan change at date.
func (s *CatalogService) ChangePolicy(ctx context.Context, from catalog.PlanPhaseSpecifier, to catalog.PlanSpecifier, date time.Time) (types.ActionPolicy, error) {
	return run(ctx, s, "change_policy", func(vc *catalog.VersionedCatalog) (types.ActionPolicy, error) {
		return vc.ChangePolicy(from, to, date)
	})
}

// CancelPolicy resolves the policy for a cancellation at date.
func (s *CatalogService) CancelPolicy(ctx context.Context, phase catalog.PlanPhaseSpecifier, date time.Time) (types.ActionPolicy, error) {
	return run(ctx, s, "cancel_policy", func(vc *catalog.VersionedCatalog) (types.ActionPolicy, error) {
		return vc.CancelPolicy(phase, date)
	})
}

// ChangeAlignment resolves the phase alignment for a plan change at date.
func (s *CatalogService) ChangeAlignment(ctx context.Context, from catalog.PlanPhaseSpecifier, to catalog.PlanSpecifier, date time.Time) (types.PlanAlignmentChange, error) {
	return run(ctx, s, "change_alignment", func(vc *catalog.VersionedCatalog) (types.PlanAlignmentChange, error) {
		return vc.ChangeAlignment(from, to, date)
	})
}

// CreateAlignment resolves the phase alignment for a new subscription at date.
func (s *CatalogService) CreateAlignment(ctx context.Context, spec catalog.PlanSpecifier, date time.Time) (types.PlanAlignmentCreate, error) {
	return run(ctx, s, "create_alignment", func(vc *catalog.VersionedCatalog) (types.PlanAlignmentCreate, error) {
		return vc.CreateAlignment(spec, date)
	})
}

// BillingAlignment resolves the billing alignment of a phase at date.
func (s *CatalogService) BillingAlignment(ctx context.Context, phase catalog.PlanPhaseSpecifier, date time.Time) (types.BillingAlignment, error) {
	return run(ctx, s, "billing_alignment", func(vc *catalog.VersionedCatalog) (types.BillingAlignment, error) {
		return vc.BillingAlignment(phase, date)
	})
}

// ChangePlan resolves price list, policy and alignment of a plan change at date.
func (s *CatalogService) ChangePlan(ctx context.Context, from catalog.PlanPhaseSpecifier, to catalog.PlanSpecifier, date time.Time) (catalog.PlanChangeResult, error) {
	return run(ctx, s, "change_plan", func(vc *catalog.VersionedCatalog) (catalog.PlanChangeResult, error) {
		return vc.ChangePlan(from, to, date)
	})
}

// Price returns the amount of ip in currency. It does not need a loaded catalog.
func (s *CatalogService) Price(ctx context.Context, ip *catalog.InternationalPrice, currency types.Currency) (catalog.Amount, error) {
	amount, err := ip.Price(currency)
	if err != nil {
		return amount, s.observe(ctx, "price", err)
	}
	s.metrics.RecordQuery(ctx, "price", types.ResultOK)
	return amount, nil
}

func run[T any](ctx context.Context, s *CatalogService, name string, fn func(*catalog.VersionedCatalog) (T, error)) (T, error) {
	var zero T
	vc, err := s.Catalog()
	if err != nil {
		return zero, s.observe(ctx, name, err)
	}
	out, err := fn(vc)
	if err != nil {
		return zero, s.observe(ctx, name, err)
	}
	s.metrics.RecordQuery(ctx, name, types.ResultOK)
	return out, nil
}

// observe records a failed query and normalizes err to an AppError.
func (s *CatalogService) observe(ctx context.Context, query string, err error) error {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		appErr = types.NewAppError(types.ErrCodeInternalUnexpected, "catalog query failed", err)
	}

	result := types.ResultError
	switch {
	case appErr.Code.IsNotFound():
		result = types.ResultNotFound
	case appErr.Code == types.ErrCodeRuleNoMatch:
		result = types.ResultNoMatch
		s.logger.WarnContext(ctx, "no catalog rule matched",
			"query", query,
			"details", appErr.Details,
		)
	}
	s.metrics.RecordQuery(ctx, query, result)
	return appErr
}
