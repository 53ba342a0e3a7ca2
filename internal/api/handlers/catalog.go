// Package handlers contains the HTTP handlers of the catalog API. Every
// endpoint is read-only: it resolves against the catalog history currently
// loaded by the service.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pricebook/internal/catalog"
	"pricebook/internal/core"
	"pricebook/internal/service"
	"pricebook/internal/types"
)

// CatalogQuerier is the query surface the handlers depend on.
// *service.CatalogService implements it.
type CatalogQuerier interface {
	Versions(ctx context.Context) ([]service.VersionInfo, error)
	ResolvePlan(ctx context.Context, spec catalog.PlanSpecifier, at service.AsOf) (*catalog.Plan, error)
	ResolvePlanByName(ctx context.Context, name string, at service.AsOf) (*catalog.Plan, error)
	ResolveProduct(ctx context.Context, name string, date time.Time) (*catalog.Product, error)
	ResolvePhase(ctx context.Context, name string, at service.AsOf) (*catalog.PlanPhase, error)
	ResolvePriceList(ctx context.Context, name string, date time.Time) (*catalog.PriceList, error)
	CurrentPlans(ctx context.Context, date time.Time) ([]*catalog.Plan, error)
	AvailableAddOns(ctx context.Context, base string, date time.Time) ([]*catalog.Product, error)

	ChangePolicy(ctx context.Context, from catalog.PlanPhaseSpecifier, to catalog.PlanSpecifier, date time.Time) (types.ActionPolicy, error)
	CancelPolicy(ctx context.Context, phase catalog.PlanPhaseSpecifier, date time.Time) (types.ActionPolicy, error)
	ChangeAlignment(ctx context.Context, from catalog.PlanPhaseSpecifier, to catalog.PlanSpecifier, date time.Time) (types.PlanAlignmentChange, error)
	CreateAlignment(ctx context.Context, spec catalog.PlanSpecifier, date time.Time) (types.PlanAlignmentCreate, error)
	BillingAlignment(ctx context.Context, phase catalog.PlanPhaseSpecifier, date time.Time) (types.BillingAlignment, error)
	ChangePlan(ctx context.Context, from catalog.PlanPhaseSpecifier, to catalog.PlanSpecifier, date time.Time) (catalog.PlanChangeResult, error)
	Price(ctx context.Context, ip *catalog.InternationalPrice, currency types.Currency) (catalog.Amount, error)
}

// CatalogHandler serves catalog lookups and rule resolutions.
type CatalogHandler struct {
	catalog   CatalogQuerier
	validator *core.Validator
	logger    *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(q CatalogQuerier, v *core.Validator, l *slog.Logger) *CatalogHandler {
	if l == nil {
		l = slog.Default()
	}
	return &CatalogHandler{catalog: q, validator: v, logger: l}
}

// RegisterRoutes mounts the catalog routes on r.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog/versions", h.ListVersions)

	r.Route("/plans", func(r chi.Router) {
		r.Get("/", h.ListPlans)
		r.Get("/{name}", h.GetPlan)
	})
	r.Route("/products/{name}", func(r chi.Router) {
		r.Get("/", h.GetProduct)
		r.Get("/add-ons", h.ListAddOns)
	})
	r.Get("/phases/{name}", h.GetPhase)
	r.Get("/price-lists/{name}", h.GetPriceList)

	r.Route("/policies", func(r chi.Router) {
		r.Post("/change", h.ChangePolicy)
		r.Post("/cancel", h.CancelPolicy)
		r.Post("/change-alignment", h.ChangeAlignment)
		r.Post("/create-alignment", h.CreateAlignment)
		r.Post("/billing-alignment", h.BillingAlignment)
		r.Post("/change-plan", h.ChangePlan)
	})
	r.Post("/prices", h.Price)
}

// asOf reads the evaluation date and subscription start from the query
// string. A missing date means now; a missing subscriptionStart means a new
// subscription.
func asOf(r *http.Request) (service.AsOf, error) {
	q := r.URL.Query()

	at := service.At(types.AsOf(r.Context()))
	if raw := q.Get("date"); raw != "" {
		d, err := parseDate("date", raw)
		if err != nil {
			return service.AsOf{}, err
		}
		at.Date = d
	}
	if raw := q.Get("subscriptionStart"); raw != "" {
		d, err := parseDate("subscriptionStart", raw)
		if err != nil {
			return service.AsOf{}, err
		}
		at.SubscriptionStart = &d
	}
	return at, nil
}

func parseDate(param, raw string) (time.Time, error) {
	d, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidDate,
			"dates must be RFC 3339 timestamps", err, map[string]any{"param": param, "value": raw})
	}
	return d.UTC(), nil
}

// ListVersions handles GET /v1/catalog/versions.
func (h *CatalogHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.catalog.Versions(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, versions)
}

// GetPlan handles GET /v1/plans/{name}. The plan version returned honours
// subscriptionStart, so existing subscriptions see their grandfathered plan.
func (h *CatalogHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	at, err := asOf(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	plan, err := h.catalog.ResolvePlanByName(r.Context(), chi.URLParam(r, "name"), at)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, planView(plan))
}

// ListPlans handles GET /v1/plans. With a product parameter it resolves the
// single plan selected by product, billingPeriod and priceList; without one
// it lists every plan open to new subscriptions.
func (h *CatalogHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	at, err := asOf(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	q := r.URL.Query()
	if product := q.Get("product"); product != "" {
		spec := catalog.PlanSpecifier{
			ProductName:   product,
			BillingPeriod: types.BillingPeriod(q.Get("billingPeriod")),
			PriceListName: q.Get("priceList"),
		}
		if spec.BillingPeriod != "" && !spec.BillingPeriod.IsValid() {
			core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidSelector,
				"unknown billing period", nil, map[string]any{"billingPeriod": spec.BillingPeriod}))
			return
		}

		plan, err := h.catalog.ResolvePlan(r.Context(), spec, at)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		core.Data(w, r, []PlanView{planView(plan)})
		return
	}

	plans, err := h.catalog.CurrentPlans(r.Context(), at.Date)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, planView(p))
	}
	core.Data(w, r, views)
}

// GetProduct handles GET /v1/products/{name}.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	at, err := asOf(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	product, err := h.catalog.ResolveProduct(r.Context(), chi.URLParam(r, "name"), at.Date)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, productView(product))
}

// ListAddOns handles GET /v1/products/{name}/add-ons.
func (h *CatalogHandler) ListAddOns(w http.ResponseWriter, r *http.Request) {
	at, err := asOf(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	addOns, err := h.catalog.AvailableAddOns(r.Context(), chi.URLParam(r, "name"), at.Date)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, productViews(addOns))
}

// GetPhase handles GET /v1/phases/{name}.
func (h *CatalogHandler) GetPhase(w http.ResponseWriter, r *http.Request) {
	at, err := asOf(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	phase, err := h.catalog.ResolvePhase(r.Context(), chi.URLParam(r, "name"), at)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, phaseView(phase))
}

// GetPriceList handles GET /v1/price-lists/{name}.
func (h *CatalogHandler) GetPriceList(w http.ResponseWriter, r *http.Request) {
	at, err := asOf(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	pl, err := h.catalog.ResolvePriceList(r.Context(), chi.URLParam(r, "name"), at.Date)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, priceListView(pl))
}
