package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricebook/internal/catalog"
	"pricebook/internal/core"
	"pricebook/internal/service"
	"pricebook/internal/types"
)

// =============================================================================
// Fixtures
// =============================================================================

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func usd(v string) *catalog.InternationalPrice {
	return catalog.NewInternationalPrice(catalog.Price{Currency: "USD", Value: decimal.RequireFromString(v)})
}

// firearms builds one catalog version with a Pistol base product, a Scope
// add-on and a monthly plan in the default and Discount price lists.
func firearms(effective time.Time, price string, existing *time.Time) *catalog.StandaloneCatalog {
	scope := &catalog.Product{Name: "Scope", Category: types.CategoryAddOn}
	pistol := &catalog.Product{Name: "Pistol", Category: types.CategoryBase, Available: []string{"Scope"}}

	monthly := &catalog.Plan{
		Name:    "pistol-monthly",
		Product: pistol,
		InitialPhases: []*catalog.PlanPhase{{
			Type:          types.PhaseTrial,
			Duration:      catalog.NewDuration(types.UnitDays, 30),
			BillingPeriod: types.BillingNoBillingPeriod,
			Fixed:         catalog.ZeroPrice(),
		}},
		FinalPhase: &catalog.PlanPhase{
			Type:          types.PhaseEvergreen,
			Duration:      catalog.Unlimited(),
			BillingPeriod: types.BillingMonthly,
			Recurring:     usd(price),
		},
		EffectiveDateForExistingSubscriptions: existing,
	}
	discount := &catalog.Plan{
		Name:    "discount-pistol-monthly",
		Product: pistol,
		FinalPhase: &catalog.PlanPhase{
			Type:          types.PhaseEvergreen,
			Duration:      catalog.Unlimited(),
			BillingPeriod: types.BillingMonthly,
			Recurring:     usd("9.95"),
		},
	}

	return &catalog.StandaloneCatalog{
		Name:          "Firearms",
		EffectiveDate: effective,
		Currencies:    []types.Currency{"USD"},
		Products:      []*catalog.Product{pistol, scope},
		Plans:         []*catalog.Plan{monthly, discount},
		PriceLists: catalog.NewPriceListSet(
			&catalog.PriceList{Name: catalog.DefaultPriceListName, Plans: []*catalog.Plan{monthly}},
			&catalog.PriceList{Name: "Discount", Plans: []*catalog.Plan{discount}},
		),
		Rules: &catalog.PlanRules{
			ChangeRules: []catalog.PlanChangeRule{{Qualifier: types.QualifierDefault, Policy: types.PolicyEndOfTerm}},
			ChangeAlignmentCases: []catalog.PlanChangeAlignmentCase{
				{Alignment: types.ChangeAlignStartOfSubscription},
			},
			CancelCases: []catalog.PlanCancelCase{
				{Policy: types.PolicyEndOfTerm},
				{PhaseSelector: catalog.PhaseSelector{PhaseType: types.PhaseTrial}, Policy: types.PolicyImmediate},
			},
			CreateAlignmentCases:  []catalog.PlanCreateAlignmentCase{{Alignment: types.CreateAlignStartOfBundle}},
			BillingAlignmentCases: []catalog.BillingAlignmentCase{{Alignment: types.BillingAlignAccount}},
		},
	}
}

func newRouter(t *testing.T, loaded bool) http.Handler {
	t.Helper()
	svc, err := service.NewCatalogService(nil, 0, slog.Default())
	require.NoError(t, err)

	if loaded {
		existing := day("2011-02-14")
		vc := catalog.NewVersionedCatalog()
		require.NoError(t, vc.Add(firearms(day("2011-01-01"), "29.95", nil)))
		require.NoError(t, vc.Add(firearms(day("2011-02-02"), "39.95", &existing)))
		svc.Set(vc)
	}

	h := NewCatalogHandler(svc, core.NewValidator(slog.Default()), nil)
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func post(t *testing.T, h http.Handler, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw)))
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error.Code
}

// =============================================================================
// GET endpoints
// =============================================================================

func TestListVersions(t *testing.T) {
	h := newRouter(t, true)

	rec := get(t, h, "/v1/catalog/versions")
	require.Equal(t, http.StatusOK, rec.Code)

	versions := decodeData[[]service.VersionInfo](t, rec)
	require.Len(t, versions, 2)
	assert.Equal(t, "Firearms", versions[0].CatalogName)
	assert.True(t, versions[0].EffectiveDate.Equal(day("2011-01-01")))
	assert.Equal(t, 2, versions[1].Plans)
}

func TestGetPlan_Grandfathering(t *testing.T) {
	h := newRouter(t, true)

	tests := []struct {
		name      string
		query     string
		wantPrice string
	}{
		{"new subscription after second version", "?date=2011-02-05T00:00:00Z", "39.95"},
		{"old subscription before opt-in", "?date=2011-02-05T00:00:00Z&subscriptionStart=2011-01-15T00:00:00Z", "29.95"},
		{"old subscription after opt-in", "?date=2011-03-01T00:00:00Z&subscriptionStart=2011-01-15T00:00:00Z", "39.95"},
		{"before second version", "?date=2011-01-20T00:00:00Z", "29.95"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, "/v1/plans/pistol-monthly"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			plan := decodeData[PlanView](t, rec)
			assert.Equal(t, "Pistol", plan.Product)
			assert.Equal(t, types.BillingMonthly, plan.BillingPeriod)
			require.Len(t, plan.Phases, 2)
			assert.Equal(t, "pistol-monthly-trial", plan.Phases[0].Name)
			require.Len(t, plan.Phases[1].RecurringPrice, 1)
			assert.Equal(t, tt.wantPrice, plan.Phases[1].RecurringPrice[0].Value.StringFixed(2))
		})
	}
}

func TestGetPlan_Errors(t *testing.T) {
	tests := []struct {
		name       string
		loaded     bool
		target     string
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{"unknown plan", true, "/v1/plans/rifle-monthly?date=2011-02-05T00:00:00Z", http.StatusNotFound, types.ErrCodeNotFoundPlan},
		{"bad date", true, "/v1/plans/pistol-monthly?date=yesterday", http.StatusBadRequest, types.ErrCodeValidationInvalidDate},
		{"bad subscription start", true, "/v1/plans/pistol-monthly?subscriptionStart=2011-01-01", http.StatusBadRequest, types.ErrCodeValidationInvalidDate},
		{"before first version", true, "/v1/plans/pistol-monthly?date=2010-01-01T00:00:00Z", http.StatusNotFound, types.ErrCodeNotFoundCatalogVersion},
		{"not loaded", false, "/v1/plans/pistol-monthly", http.StatusServiceUnavailable, types.ErrCodeInternalNotLoaded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newRouter(t, tt.loaded), tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, string(tt.wantCode), errorCode(t, rec))
		})
	}
}

func TestListPlans(t *testing.T) {
	h := newRouter(t, true)

	t.Run("current plans", func(t *testing.T) {
		rec := get(t, h, "/v1/plans?date=2011-03-01T00:00:00Z")
		require.Equal(t, http.StatusOK, rec.Code)
		plans := decodeData[[]PlanView](t, rec)
		assert.Len(t, plans, 2)
	})

	t.Run("by specifier", func(t *testing.T) {
		rec := get(t, h, "/v1/plans?date=2011-03-01T00:00:00Z&product=Pistol&billingPeriod=MONTHLY&priceList=Discount")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		plans := decodeData[[]PlanView](t, rec)
		require.Len(t, plans, 1)
		assert.Equal(t, "discount-pistol-monthly", plans[0].Name)
	})

	t.Run("unknown billing period", func(t *testing.T) {
		rec := get(t, h, "/v1/plans?product=Pistol&billingPeriod=FORTNIGHTLY")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(types.ErrCodeValidationInvalidSelector), errorCode(t, rec))
	})
}

func TestGetProductPhaseAndPriceList(t *testing.T) {
	h := newRouter(t, true)
	const at = "?date=2011-03-01T00:00:00Z"

	rec := get(t, h, "/v1/products/Pistol"+at)
	require.Equal(t, http.StatusOK, rec.Code)
	product := decodeData[ProductView](t, rec)
	assert.Equal(t, types.CategoryBase, product.Category)
	assert.Equal(t, []string{"Scope"}, product.Available)

	rec = get(t, h, "/v1/products/Pistol/add-ons"+at)
	require.Equal(t, http.StatusOK, rec.Code)
	addOns := decodeData[[]ProductView](t, rec)
	require.Len(t, addOns, 1)
	assert.Equal(t, "Scope", addOns[0].Name)

	rec = get(t, h, "/v1/phases/pistol-monthly-evergreen"+at)
	require.Equal(t, http.StatusOK, rec.Code)
	phase := decodeData[PhaseView](t, rec)
	assert.Equal(t, types.PhaseEvergreen, phase.Type)
	assert.True(t, phase.Duration.IsUnlimited())

	rec = get(t, h, "/v1/phases/pistol-monthly"+at)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidPhaseName), errorCode(t, rec))

	rec = get(t, h, "/v1/price-lists/Discount"+at)
	require.Equal(t, http.StatusOK, rec.Code)
	pl := decodeData[PriceListView](t, rec)
	assert.Equal(t, []string{"discount-pistol-monthly"}, pl.Plans)

	rec = get(t, h, "/v1/products/Rifle"+at)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundProduct), errorCode(t, rec))
}
