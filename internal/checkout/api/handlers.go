// Package api exposes the checkout backend over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"propflow/internal/checkout"
	"propflow/internal/common/api"
	"propflow/internal/common/database"
	"propflow/internal/payment"
)

// Handler handles checkout HTTP requests
type Handler struct {
	service *checkout.Service
}

// NewHandler creates a new checkout handler
func NewHandler(service *checkout.Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the checkout routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Payment routes
	r.Post("/payments/create-intent", h.CreatePaymentIntent)
	r.Post("/payments/confirm", h.ConfirmPayment)

	// Reservation routes
	r.Post("/reservations", h.CreateReservation)
	r.Get("/reservations/{id}", h.GetReservation)

	return r
}

// CreatePaymentIntent handles POST /payments/create-intent
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req payment.IntentRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	resp, err := h.service.CreatePaymentIntent(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "failed to create payment intent")
		return
	}

	api.WriteData(w, http.StatusCreated, resp)
}

// CreateReservation handles POST /reservations
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req payment.ReservationRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	resp, err := h.service.CreateReservation(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "failed to create reservation")
		return
	}

	api.WriteData(w, http.StatusCreated, resp)
}

// GetReservation handles GET /reservations/{id}
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	reservation, err := h.service.GetReservation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to get reservation")
		return
	}

	api.WriteData(w, http.StatusOK, reservation)
}

// ConfirmPayment handles POST /payments/confirm
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req payment.ConfirmRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	resp, err := h.service.ConfirmPayment(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "payment confirmation failed")
		return
	}

	api.WriteData(w, http.StatusOK, resp)
}

func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case database.IsNotFound(err):
		api.NotFound(w, err.Error())
	case errors.Is(err, payment.ErrInvalidAmount), errors.Is(err, payment.ErrMethodUnavailable):
		api.WriteError(w, http.StatusUnprocessableEntity, api.ErrCodeValidation, err.Error())
	case errors.Is(err, checkout.ErrNotConfirmable),
		errors.Is(err, checkout.ErrReservationMismatch),
		errors.Is(err, checkout.ErrReservationExpired):
		api.Conflict(w, err.Error())
	default:
		api.InternalError(w, fallback)
	}
}
