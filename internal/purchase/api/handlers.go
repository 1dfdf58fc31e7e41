// Package api exposes purchase flows over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"propflow/internal/common/api"
	"propflow/internal/common/database"
	"propflow/internal/common/money"
	"propflow/internal/payment"
	"propflow/internal/purchase"
)

// Handler handles purchase flow HTTP requests
type Handler struct {
	registry *purchase.Registry
}

// NewHandler creates a new purchase flow handler
func NewHandler(registry *purchase.Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes returns the purchase flow routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Start)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Close)

		// Form fields
		r.Put("/payment-type", h.SetPaymentType)
		r.Put("/custom-deposit", h.SetCustomDeposit)
		r.Put("/personal-details", h.SetPersonalDetails)
		r.Put("/payment-method", h.SetPaymentMethod)
		r.Put("/terms", h.SetTerms)
		r.Put("/appointment", h.SetAppointment)
		r.Put("/mortgage-approval", h.SetMortgageApproval)

		// Navigation
		r.Post("/next", h.Next)
		r.Post("/back", h.Back)
	})

	return r
}

// FlowResponse is the API representation of a flow
type FlowResponse struct {
	ID    string         `json:"id"`
	State purchase.State `json:"state"`
	View  purchase.View  `json:"view"`
}

func newFlowResponse(f *purchase.Flow, s purchase.State) FlowResponse {
	return FlowResponse{
		ID:    f.ID(),
		State: s,
		View:  purchase.Present(f.Machine(), s),
	}
}

// Start handles POST /purchase-flows
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req purchase.StartRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	flow, err := h.registry.Start(r.Context(), req)
	if err != nil {
		if database.IsNotFound(err) {
			api.NotFound(w, "property not found")
			return
		}
		api.InternalError(w, "failed to start purchase flow")
		return
	}

	api.WriteData(w, http.StatusCreated, newFlowResponse(flow, flow.State()))
}

// Get handles GET /purchase-flows/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	api.WriteData(w, http.StatusOK, newFlowResponse(flow, flow.State()))
}

// Close handles DELETE /purchase-flows/{id}
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Close(chi.URLParam(r, "id")) {
		api.NotFound(w, "purchase flow not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PaymentTypeRequest selects a payment type
type PaymentTypeRequest struct {
	PaymentType payment.Type `json:"payment_type" validate:"required"`
}

// SetPaymentType handles PUT /purchase-flows/{id}/payment-type
func (h *Handler) SetPaymentType(w http.ResponseWriter, r *http.Request) {
	var req PaymentTypeRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	h.apply(w, r, purchase.SelectPaymentType{Type: req.PaymentType})
}

// CustomDepositRequest sets the custom booking deposit in whole currency units.
// A missing or zero amount clears it. The upper bound keeps the amount
// representable in minor units.
type CustomDepositRequest struct {
	Amount *int64 `json:"amount" validate:"omitempty,gte=0,lte=90000000000000000"`
}

// SetCustomDeposit handles PUT /purchase-flows/{id}/custom-deposit
func (h *Handler) SetCustomDeposit(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}

	var req CustomDepositRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	var amount *money.Money
	if req.Amount != nil && *req.Amount > 0 {
		m := money.FromMajor(*req.Amount, flow.Machine().Property.Price.Currency)
		amount = &m
	}
	h.applyTo(w, r, flow, purchase.SetCustomDeposit{Amount: amount})
}

// PersonalDetailsRequest sets the buyer's contact details
type PersonalDetailsRequest struct {
	FullName string `json:"full_name" validate:"max=255"`
	Email    string `json:"email" validate:"max=255"`
	Phone    string `json:"phone" validate:"max=50"`
}

// SetPersonalDetails handles PUT /purchase-flows/{id}/personal-details
func (h *Handler) SetPersonalDetails(w http.ResponseWriter, r *http.Request) {
	var req PersonalDetailsRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	h.apply(w, r, purchase.SetPersonalDetails{Details: payment.BuyerDetails{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
	}})
}

// PaymentMethodRequest selects a payment method
type PaymentMethodRequest struct {
	PaymentMethod payment.Method `json:"payment_method" validate:"required,oneof=CREDIT_CARD DEBIT_CARD OPEN_BANKING BANK_TRANSFER"`
}

// SetPaymentMethod handles PUT /purchase-flows/{id}/payment-method
func (h *Handler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req PaymentMethodRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	h.apply(w, r, purchase.SelectPaymentMethod{Method: req.PaymentMethod})
}

// TermsRequest records acceptance of the terms
type TermsRequest struct {
	Accepted bool `json:"accepted"`
}

// SetTerms handles PUT /purchase-flows/{id}/terms
func (h *Handler) SetTerms(w http.ResponseWriter, r *http.Request) {
	var req TermsRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	h.apply(w, r, purchase.SetTermsAccepted{Accepted: req.Accepted})
}

// AppointmentRequest schedules or clears a viewing appointment
type AppointmentRequest struct {
	Scheduled bool       `json:"scheduled"`
	Date      *time.Time `json:"date,omitempty"`
}

// SetAppointment handles PUT /purchase-flows/{id}/appointment
func (h *Handler) SetAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	h.apply(w, r, purchase.SetAppointment{Scheduled: req.Scheduled, At: req.Date})
}

// MortgageApprovalRequest records mortgage approval in principle
type MortgageApprovalRequest struct {
	Approved bool `json:"approved"`
}

// SetMortgageApproval handles PUT /purchase-flows/{id}/mortgage-approval
func (h *Handler) SetMortgageApproval(w http.ResponseWriter, r *http.Request) {
	var req MortgageApprovalRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}
	h.apply(w, r, purchase.SetMortgageApproval{Approved: req.Approved})
}

// Next handles POST /purchase-flows/{id}/next
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, purchase.Next{})
}

// Back handles POST /purchase-flows/{id}/back
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, purchase.Back{})
}

func (h *Handler) flow(w http.ResponseWriter, r *http.Request) (*purchase.Flow, bool) {
	flow, ok := h.registry.Get(chi.URLParam(r, "id"))
	if !ok {
		api.NotFound(w, "purchase flow not found")
		return nil, false
	}
	return flow, true
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, ev purchase.Event) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	h.applyTo(w, r, flow, ev)
}

func (h *Handler) applyTo(w http.ResponseWriter, r *http.Request, flow *purchase.Flow, ev purchase.Event) {
	state, err := flow.Apply(r.Context(), ev)
	if err != nil {
		resp := newFlowResponse(flow, state)
		switch {
		case errors.Is(err, purchase.ErrStepInvalid):
			api.WriteErrorWithData(w, http.StatusUnprocessableEntity, api.ErrCodeInvalidStep, state.Error, resp)
		case errors.Is(err, purchase.ErrFlowLocked), errors.Is(err, purchase.ErrFlowClosed):
			api.WriteErrorWithData(w, http.StatusConflict, api.ErrCodeConflict, err.Error(), resp)
		case errors.Is(err, purchase.ErrCustomDepositNotAllowed),
			errors.Is(err, purchase.ErrInvalidCustomDeposit),
			errors.Is(err, purchase.ErrAppointmentNotOffered),
			errors.Is(err, money.ErrCurrencyMismatch):
			api.WriteErrorWithData(w, http.StatusBadRequest, api.ErrCodeBadRequest, err.Error(), resp)
		default:
			api.InternalError(w, "failed to update purchase flow")
		}
		return
	}

	api.WriteData(w, http.StatusOK, newFlowResponse(flow, state))
}
