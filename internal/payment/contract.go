package payment

import (
	"time"

	"propflow/internal/common/money"
)

// Wire contract between the purchase flow and the checkout backend.

// BuyerDetails are the contact details captured by the purchase flow.
type BuyerDetails struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// IntentRequest is the body of POST /payments/create-intent.
type IntentRequest struct {
	PropertyID      string       `json:"property_id" validate:"required"`
	PaymentType     Type         `json:"payment_type" validate:"required,oneof=RESERVATION_FEE BOOKING_DEPOSIT CONTRACTUAL_DEPOSIT"`
	PaymentMethod   Method       `json:"payment_method" validate:"required,oneof=CREDIT_CARD DEBIT_CARD OPEN_BANKING BANK_TRANSFER"`
	Amount          money.Money  `json:"amount"`
	PersonalDetails BuyerDetails `json:"personal_details"`
	JourneyID       string       `json:"journey_id,omitempty"`
	AppointmentDate *time.Time   `json:"appointment_date,omitempty"`
	EscrowRequired  bool         `json:"escrow_required"`
}

// Intent is a backend-tracked payment attempt.
type Intent struct {
	ID             string      `json:"id"`
	PropertyID     string      `json:"property_id"`
	PaymentType    Type        `json:"payment_type"`
	PaymentMethod  Method      `json:"payment_method"`
	Amount         money.Money `json:"amount"`
	Status         string      `json:"status"`
	EscrowRequired bool        `json:"escrow_required"`
	CreatedAt      time.Time   `json:"created_at"`
}

// IntentResponse is the response of POST /payments/create-intent.
type IntentResponse struct {
	PaymentIntent Intent `json:"payment_intent"`
}

// ReservationType distinguishes paid holds from deposit bookings.
type ReservationType string

const (
	ReservationPaid           ReservationType = "paid_reservation"
	ReservationDepositBooking ReservationType = "deposit_booking"
)

// ReservationTypeFor maps a payment type to the reservation it creates.
func ReservationTypeFor(t Type) ReservationType {
	if t == TypeReservationFee {
		return ReservationPaid
	}
	return ReservationDepositBooking
}

// ReservationRequest is the body of POST /reservations.
type ReservationRequest struct {
	PropertyID      string            `json:"property_id" validate:"required"`
	UnitID          string            `json:"unit_id" validate:"required"`
	DevelopmentID   string            `json:"development_id"`
	ReservationType ReservationType   `json:"reservation_type" validate:"required,oneof=paid_reservation deposit_booking"`
	PaymentType     Type              `json:"payment_type" validate:"required"`
	Amount          money.Money       `json:"amount"`
	BuyerDetails    BuyerDetails      `json:"buyer_details"`
	AppointmentDate *time.Time        `json:"appointment_date,omitempty"`
	JourneyID       string            `json:"journey_id,omitempty"`
	PaymentIntentID string            `json:"payment_intent_id" validate:"required"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Reservation is a time-limited hold on a property.
type Reservation struct {
	ID                string          `json:"id"`
	ReservationNumber string          `json:"reservation_number"`
	PropertyID        string          `json:"property_id"`
	ReservationType   ReservationType `json:"reservation_type"`
	Status            string          `json:"status"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
}

// ReservationResponse is the response of POST /reservations.
type ReservationResponse struct {
	Reservation Reservation `json:"reservation"`
}

// ConfirmRequest is the body of POST /payments/confirm.
type ConfirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
	PaymentMethodID Method `json:"payment_method_id" validate:"required"`
	ReservationID   string `json:"reservation_id,omitempty"`
}

// Transaction is a captured payment.
type Transaction struct {
	ID              string      `json:"id"`
	PaymentIntentID string      `json:"payment_intent_id"`
	Amount          money.Money `json:"amount"`
	Status          Status      `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
}

// ConfirmResponse is the response of POST /payments/confirm.
type ConfirmResponse struct {
	Transaction Transaction  `json:"transaction"`
	Reservation *Reservation `json:"reservation,omitempty"`
}
