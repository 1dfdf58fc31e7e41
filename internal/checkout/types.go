// Package checkout is the payment backend of the purchase flow: payment
// intents, reservations and confirmed transactions.
package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"propflow/internal/common/money"
	"propflow/internal/payment"
)

// IntentStatus represents the status of a payment intent.
type IntentStatus string

const (
	IntentCreated   IntentStatus = "created"
	IntentSucceeded IntentStatus = "succeeded"
)

// Intent is a payment the buyer has started but not yet confirmed.
type Intent struct {
	ID              string               `json:"id"`
	PropertyID      string               `json:"property_id"`
	PaymentType     payment.Type         `json:"payment_type"`
	PaymentMethod   payment.Method       `json:"payment_method"`
	Amount          money.Money          `json:"amount"`
	Buyer           payment.BuyerDetails `json:"buyer"`
	JourneyID       string               `json:"journey_id,omitempty"`
	AppointmentDate *time.Time           `json:"appointment_date,omitempty"`
	EscrowRequired  bool                 `json:"escrow_required"`
	Status          IntentStatus         `json:"status"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ConfirmedAt     *time.Time           `json:"confirmed_at,omitempty"`
}

// NewIntent creates an intent from a validated request.
func NewIntent(req *payment.IntentRequest, now time.Time) *Intent {
	return &Intent{
		ID:              ulid.Make().String(),
		PropertyID:      req.PropertyID,
		PaymentType:     req.PaymentType,
		PaymentMethod:   req.PaymentMethod,
		Amount:          req.Amount,
		Buyer:           req.PersonalDetails,
		JourneyID:       req.JourneyID,
		AppointmentDate: req.AppointmentDate,
		EscrowRequired:  req.EscrowRequired,
		Status:          IntentCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// MarkSucceeded transitions a created intent to succeeded.
func (i *Intent) MarkSucceeded(method payment.Method, now time.Time) error {
	if i.Status != IntentCreated {
		return fmt.Errorf("%w: intent is %s", ErrNotConfirmable, i.Status)
	}
	i.Status = IntentSucceeded
	i.PaymentMethod = method
	i.ConfirmedAt = &now
	i.UpdatedAt = now
	return nil
}

// Contract returns the wire representation.
func (i *Intent) Contract() payment.Intent {
	return payment.Intent{
		ID:             i.ID,
		PropertyID:     i.PropertyID,
		PaymentType:    i.PaymentType,
		PaymentMethod:  i.PaymentMethod,
		Amount:         i.Amount,
		Status:         string(i.Status),
		EscrowRequired: i.EscrowRequired,
		CreatedAt:      i.CreatedAt,
	}
}

// ReservationStatus represents the status of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
)

// Reservation holds a property for a buyer.
type Reservation struct {
	ID                string                  `json:"id"`
	ReservationNumber string                  `json:"reservation_number"`
	PropertyID        string                  `json:"property_id"`
	UnitID            string                  `json:"unit_id"`
	DevelopmentID     string                  `json:"development_id"`
	ReservationType   payment.ReservationType `json:"reservation_type"`
	PaymentType       payment.Type            `json:"payment_type"`
	PaymentIntentID   string                  `json:"payment_intent_id"`
	Amount            money.Money             `json:"amount"`
	Buyer             payment.BuyerDetails    `json:"buyer"`
	AppointmentDate   *time.Time              `json:"appointment_date,omitempty"`
	JourneyID         string                  `json:"journey_id,omitempty"`
	Metadata          map[string]string       `json:"metadata,omitempty"`
	Status            ReservationStatus       `json:"status"`
	ExpiresAt         *time.Time              `json:"expires_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	ConfirmedAt       *time.Time              `json:"confirmed_at,omitempty"`
}

// NewReservation creates a pending reservation. Types with a validity window
// expire that long after creation.
func NewReservation(req *payment.ReservationRequest, now time.Time) *Reservation {
	r := &Reservation{
		ID:                ulid.Make().String(),
		ReservationNumber: NewReservationNumber(now),
		PropertyID:        req.PropertyID,
		UnitID:            req.UnitID,
		DevelopmentID:     req.DevelopmentID,
		ReservationType:   req.ReservationType,
		PaymentType:       req.PaymentType,
		PaymentIntentID:   req.PaymentIntentID,
		Amount:            req.Amount,
		Buyer:             req.BuyerDetails,
		AppointmentDate:   req.AppointmentDate,
		JourneyID:         req.JourneyID,
		Metadata:          req.Metadata,
		Status:            ReservationPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	if info, ok := payment.GetTypeInfo(req.PaymentType); ok && info.ValidFor > 0 {
		expiry := now.Add(info.ValidFor)
		r.ExpiresAt = &expiry
	}
	return r
}

// NewReservationNumber returns a human readable reference like RES-2026-7K3M9Q.
func NewReservationNumber(now time.Time) string {
	id := ulid.Make().String()
	return fmt.Sprintf("RES-%d-%s", now.Year(), strings.ToUpper(id[len(id)-6:]))
}

// Expired reports whether the hold has lapsed.
func (r *Reservation) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Confirm marks a pending reservation as paid.
func (r *Reservation) Confirm(now time.Time) error {
	if r.Status == ReservationConfirmed {
		return nil
	}
	if r.Expired(now) {
		return ErrReservationExpired
	}
	r.Status = ReservationConfirmed
	r.ConfirmedAt = &now
	r.UpdatedAt = now
	return nil
}

// Contract returns the wire representation.
func (r *Reservation) Contract() payment.Reservation {
	return payment.Reservation{
		ID:                r.ID,
		ReservationNumber: r.ReservationNumber,
		PropertyID:        r.PropertyID,
		ReservationType:   r.ReservationType,
		Status:            string(r.Status),
		ExpiresAt:         r.ExpiresAt,
	}
}

// Transaction is a captured payment.
type Transaction struct {
	ID              string         `json:"id"`
	PaymentIntentID string         `json:"payment_intent_id"`
	PaymentMethod   payment.Method `json:"payment_method"`
	Amount          money.Money    `json:"amount"`
	Status          payment.Status `json:"status"`
	ReservationID   string         `json:"reservation_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Contract returns the wire representation.
func (t *Transaction) Contract() payment.Transaction {
	return payment.Transaction{
		ID:              t.ID,
		PaymentIntentID: t.PaymentIntentID,
		Amount:          t.Amount,
		Status:          t.Status,
		CreatedAt:       t.CreatedAt,
	}
}

var (
	// ErrNotConfirmable is returned when confirming an intent in the wrong state.
	ErrNotConfirmable = errors.New("payment intent cannot be confirmed")
	// ErrReservationMismatch is returned when a reservation belongs to another intent.
	ErrReservationMismatch = errors.New("reservation does not belong to payment intent")
	// ErrReservationExpired is returned when confirming a lapsed reservation.
	ErrReservationExpired = errors.New("reservation has expired")
)
