package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event represents a domain event envelope
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event
func NewEvent(eventType, aggregateType, aggregateID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Data:          dataBytes,
	}, nil
}

// WithCorrelation sets the correlation ID
func (e *Event) WithCorrelation(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// DecodeData decodes the event data into a struct
func (e *Event) DecodeData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Publisher publishes events to a message broker
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Event types
const (
	// Checkout events
	EventPaymentIntentCreated = "checkout.intent.created"
	EventReservationCreated   = "checkout.reservation.created"
	EventPaymentConfirmed     = "checkout.payment.confirmed"

	// Purchase flow events
	EventPurchaseNotification = "purchase.notification"
	EventPurchaseCompleted    = "purchase.completed"
)

// Aggregate types
const (
	AggregatePaymentIntent = "payment_intent"
	AggregateReservation   = "reservation"
	AggregatePurchaseFlow  = "purchase_flow"
)

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, *Event) error { return nil }
