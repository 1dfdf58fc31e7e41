package checkout

import (
	"time"

	"propflow/internal/common/money"
	"propflow/internal/payment"
)

// IntentCreatedEvent is published when a payment intent is created.
type IntentCreatedEvent struct {
	IntentID       string         `json:"intent_id"`
	PropertyID     string         `json:"property_id"`
	PaymentType    payment.Type   `json:"payment_type"`
	PaymentMethod  payment.Method `json:"payment_method"`
	Amount         money.Money    `json:"amount"`
	EscrowRequired bool           `json:"escrow_required"`
}

// ReservationCreatedEvent is published when a reservation is created.
type ReservationCreatedEvent struct {
	ReservationID     string                  `json:"reservation_id"`
	ReservationNumber string                  `json:"reservation_number"`
	PropertyID        string                  `json:"property_id"`
	IntentID          string                  `json:"intent_id"`
	ReservationType   payment.ReservationType `json:"reservation_type"`
	ExpiresAt         *time.Time              `json:"expires_at,omitempty"`
}

// PaymentConfirmedEvent is published when a payment is captured.
type PaymentConfirmedEvent struct {
	TransactionID string         `json:"transaction_id"`
	IntentID      string         `json:"intent_id"`
	ReservationID string         `json:"reservation_id,omitempty"`
	PropertyID    string         `json:"property_id"`
	PaymentType   payment.Type   `json:"payment_type"`
	PaymentMethod payment.Method `json:"payment_method"`
	Amount        money.Money    `json:"amount"`
	ConfirmedAt   time.Time      `json:"confirmed_at"`
}
