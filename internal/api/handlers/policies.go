package handlers

import (
	"net/http"
	"time"

	"pricebook/internal/catalog"
	"pricebook/internal/core"
	"pricebook/internal/types"
)

// PlanSpec selects a plan in request bodies.
type PlanSpec struct {
	Product       string              `json:"product" validate:"required"`
	BillingPeriod types.BillingPeriod `json:"billing_period" validate:"omitempty,enum"`
	PriceList     string              `json:"price_list"`
}

// PhaseSpec selects a plan phase in request bodies.
type PhaseSpec struct {
	Product       string              `json:"product" validate:"required"`
	BillingPeriod types.BillingPeriod `json:"billing_period" validate:"omitempty,enum"`
	PriceList     string              `json:"price_list"`
	PhaseType     types.PhaseType     `json:"phase_type" validate:"omitempty,enum"`
}

func (s PlanSpec) specifier() catalog.PlanSpecifier {
	return catalog.PlanSpecifier{ProductName: s.Product, BillingPeriod: s.BillingPeriod, PriceListName: s.PriceList}
}

func (s PhaseSpec) specifier() catalog.PlanPhaseSpecifier {
	return catalog.PlanPhaseSpecifier{
		PlanSpecifier: catalog.PlanSpecifier{ProductName: s.Product, BillingPeriod: s.BillingPeriod, PriceListName: s.PriceList},
		PhaseType:     s.PhaseType,
	}
}

// ChangeRequest is the body of the plan-change rule endpoints.
type ChangeRequest struct {
	From PhaseSpec `json:"from"`
	To   PlanSpec  `json:"to"`
}

// PhaseRequest is the body of the cancel-policy and billing-alignment endpoints.
type PhaseRequest struct {
	Phase PhaseSpec `json:"phase"`
}

// PlanRequest is the body of the create-alignment endpoint.
type PlanRequest struct {
	Plan PlanSpec `json:"plan"`
}

// PriceRequest is the body of POST /v1/prices.
type PriceRequest struct {
	Prices   []catalog.Price `json:"prices" validate:"dive"`
	Currency types.Currency  `json:"currency" validate:"required,enum"`
}

// PolicyResponse carries a resolved action policy.
type PolicyResponse struct {
	Policy types.ActionPolicy `json:"policy"`
}

// AlignmentResponse carries a resolved alignment.
type AlignmentResponse struct {
	Alignment string `json:"alignment"`
}

// PriceResponse carries a resolved amount.
type PriceResponse struct {
	Currency types.Currency `json:"currency"`
	Amount   catalog.Amount `json:"amount"`
}

// decode reads and validates the request body into dst.
func (h *CatalogHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}

// ChangePolicy handles POST /v1/policies/change.
func (h *CatalogHandler) ChangePolicy(w http.ResponseWriter, r *http.Request) {
	var req ChangeRequest
	at, ok := h.begin(w, r, &req)
	if !ok {
		return
	}

	policy, err := h.catalog.ChangePolicy(r.Context(), req.From.specifier(), req.To.specifier(), at)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, PolicyResponse{Policy: policy})
}

// CancelPolicy handles POST /v1/policies/cancel.
func (h *CatalogHandler) CancelPolicy(w http.ResponseWriter, r *http.Request) {
	var req PhaseRequest
	at, ok := h.begin(w, r, &req)
	if !ok {
		return
	}

	policy, err := h.catalog.CancelPolicy(r.Context(), req.Phase.specifier(), at)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, PolicyResponse{Policy: policy})
}

// ChangeAlignment handles POST /v1/policies/change-alignment.
func (h *CatalogHandler) ChangeAlignment(w http.ResponseWriter, r *http.Request) {
	var req ChangeRequest
	at, ok := h.begin(w, r, &req)
	if !ok {
		return
	}

	alignment, err := h.catalog.ChangeAlignment(r.Context(), req.From.specifier(), req.To.specifier(), at)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, AlignmentResponse{Alignment: string(alignment)})
}

// CreateAlignment handles POST /v1/policies/create-alignment.
func (h *CatalogHandler) CreateAlignment(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	at, ok := h.begin(w, r, &req)
	if !ok {
		return
	}

	alignment, err := h.catalog.CreateAlignment(r.Context(), req.Plan.specifier(), at)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, AlignmentResponse{Alignment: string(alignment)})
}

// BillingAlignment handles POST /v1/policies/billing-alignment.
func (h *CatalogHandler) BillingAlignment(w http.ResponseWriter, r *http.Request) {
	var req PhaseRequest
	at, ok := h.begin(w, r, &req)
	if !ok {
		return
	}

	alignment, err := h.catalog.BillingAlignment(r.Context(), req.Phase.specifier(), at)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, AlignmentResponse{Alignment: string(alignment)})
}

// ChangePlan handles POST /v1/policies/change-plan: the target price list,
// policy and alignment of a plan change in one answer.
func (h *CatalogHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var req ChangeRequest
	at, ok := h.begin(w, r, &req)
	if !ok {
		return
	}

	result, err := h.catalog.ChangePlan(r.Context(), req.From.specifier(), req.To.specifier(), at)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, result)
}

// Price handles POST /v1/prices.
func (h *CatalogHandler) Price(w http.ResponseWriter, r *http.Request) {
	var req PriceRequest
	if !h.decode(w, r, &req) {
		return
	}

	amount, err := h.catalog.Price(r.Context(), catalog.NewInternationalPrice(req.Prices...), req.Currency)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, PriceResponse{Currency: req.Currency, Amount: amount})
}

// begin parses the evaluation date and the body of a rule request. Rules are
// resolved against the version in effect at the date; subscriptionStart does
// not apply to them.
func (h *CatalogHandler) begin(w http.ResponseWriter, r *http.Request, dst any) (date time.Time, ok bool) {
	at, err := asOf(r)
	if err != nil {
		core.Error(w, r, err)
		return time.Time{}, false
	}
	if !h.decode(w, r, dst) {
		return time.Time{}, false
	}
	return at.Date, true
}
