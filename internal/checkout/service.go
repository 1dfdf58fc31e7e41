package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"propflow/internal/common/database"
	"propflow/internal/common/events"
	"propflow/internal/common/middleware"
	"propflow/internal/payment"
	"propflow/internal/property"
)

// reservationNumberAttempts bounds retries on reservation number collisions.
const reservationNumberAttempts = 3

// Store persists intents, reservations and transactions.
type Store interface {
	// Intent operations
	CreateIntent(ctx context.Context, intent *Intent) error
	GetIntent(ctx context.Context, id string) (*Intent, error)
	GetIntentForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Intent, error)
	UpdateIntentTx(ctx context.Context, tx pgx.Tx, intent *Intent) error

	// Reservation operations
	CreateReservation(ctx context.Context, r *Reservation) error
	GetReservation(ctx context.Context, id string) (*Reservation, error)
	GetReservationForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Reservation, error)
	UpdateReservationTx(ctx context.Context, tx pgx.Tx, r *Reservation) error

	// Transaction operations
	CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *Transaction) error
	GetTransactionByIntent(ctx context.Context, intentID string) (*Transaction, error)
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Service implements the checkout backend.
type Service struct {
	store      Store
	tx         TxRunner
	properties property.Store
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new checkout service.
func NewService(store Store, tx TxRunner, properties property.Store, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:      store,
		tx:         tx,
		properties: properties,
		publisher:  publisher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service clock.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreatePaymentIntent validates a payment against the property and records it.
func (s *Service) CreatePaymentIntent(ctx context.Context, req *payment.IntentRequest) (*payment.IntentResponse, error) {
	p, err := s.properties.Get(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}

	if err := payment.ValidateAmount(req.PaymentType, req.Amount, p.Price); err != nil {
		return nil, err
	}
	if err := payment.ValidateMethod(req.PaymentMethod, req.Amount); err != nil {
		return nil, err
	}

	intent := NewIntent(req, s.now())
	if err := s.store.CreateIntent(ctx, intent); err != nil {
		return nil, fmt.Errorf("create intent: %w", err)
	}

	s.logger.Info("payment intent created",
		"intent_id", intent.ID,
		"property_id", intent.PropertyID,
		"payment_type", intent.PaymentType,
		"amount_minor", intent.Amount.AmountMinor,
	)

	s.publish(ctx, events.EventPaymentIntentCreated, events.AggregatePaymentIntent, intent.ID, IntentCreatedEvent{
		IntentID:       intent.ID,
		PropertyID:     intent.PropertyID,
		PaymentType:    intent.PaymentType,
		PaymentMethod:  intent.PaymentMethod,
		Amount:         intent.Amount,
		EscrowRequired: intent.EscrowRequired,
	})

	return &payment.IntentResponse{PaymentIntent: intent.Contract()}, nil
}

// CreateReservation holds a property against an existing payment intent.
func (s *Service) CreateReservation(ctx context.Context, req *payment.ReservationRequest) (*payment.ReservationResponse, error) {
	intent, err := s.store.GetIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("get intent: %w", err)
	}
	if intent.PropertyID != req.PropertyID {
		return nil, fmt.Errorf("%w: intent is for property %s", ErrReservationMismatch, intent.PropertyID)
	}

	var reservation *Reservation
	for attempt := 1; ; attempt++ {
		reservation = NewReservation(req, s.now())
		err = s.store.CreateReservation(ctx, reservation)
		if err == nil {
			break
		}
		if !database.IsUniqueViolation(err) || attempt == reservationNumberAttempts {
			return nil, fmt.Errorf("create reservation: %w", err)
		}
		s.logger.Warn("reservation number collision, retrying", "attempt", attempt)
	}

	s.logger.Info("reservation created",
		"reservation_id", reservation.ID,
		"reservation_number", reservation.ReservationNumber,
		"intent_id", intent.ID,
	)

	s.publish(ctx, events.EventReservationCreated, events.AggregateReservation, reservation.ID, ReservationCreatedEvent{
		ReservationID:     reservation.ID,
		ReservationNumber: reservation.ReservationNumber,
		PropertyID:        reservation.PropertyID,
		IntentID:          intent.ID,
		ReservationType:   reservation.ReservationType,
		ExpiresAt:         reservation.ExpiresAt,
	})

	return &payment.ReservationResponse{Reservation: reservation.Contract()}, nil
}

// GetReservation returns a reservation.
func (s *Service) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

// ConfirmPayment captures an intent and confirms its reservation in one
// transaction. Confirming an intent twice returns the original transaction.
func (s *Service) ConfirmPayment(ctx context.Context, req *payment.ConfirmRequest) (*payment.ConfirmResponse, error) {
	var (
		intent      *Intent
		txn         *Transaction
		reservation *Reservation
		replayed    bool
	)

	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		intent, err = s.store.GetIntentForUpdate(ctx, tx, req.PaymentIntentID)
		if err != nil {
			return fmt.Errorf("get intent: %w", err)
		}

		if intent.Status == IntentSucceeded {
			replayed = true
			return nil
		}

		if req.PaymentMethodID != intent.PaymentMethod {
			if err := payment.ValidateMethod(req.PaymentMethodID, intent.Amount); err != nil {
				return err
			}
		}

		now := s.now()
		if err := intent.MarkSucceeded(req.PaymentMethodID, now); err != nil {
			return err
		}
		if err := s.store.UpdateIntentTx(ctx, tx, intent); err != nil {
			return fmt.Errorf("update intent: %w", err)
		}

		if req.ReservationID != "" {
			reservation, err = s.store.GetReservationForUpdate(ctx, tx, req.ReservationID)
			if err != nil {
				return fmt.Errorf("get reservation: %w", err)
			}
			if reservation.PaymentIntentID != intent.ID {
				return ErrReservationMismatch
			}
			if err := reservation.Confirm(now); err != nil {
				return err
			}
			if err := s.store.UpdateReservationTx(ctx, tx, reservation); err != nil {
				return fmt.Errorf("update reservation: %w", err)
			}
		}

		txn = &Transaction{
			ID:              ulid.Make().String(),
			PaymentIntentID: intent.ID,
			PaymentMethod:   req.PaymentMethodID,
			Amount:          intent.Amount,
			Status:          payment.StatusCompleted,
			ReservationID:   req.ReservationID,
			CreatedAt:       now,
		}
		if err := s.store.CreateTransactionTx(ctx, tx, txn); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		return s.replayConfirmation(ctx, intent)
	}

	s.logger.Info("payment confirmed",
		"transaction_id", txn.ID,
		"intent_id", intent.ID,
		"reservation_id", txn.ReservationID,
	)

	s.publish(ctx, events.EventPaymentConfirmed, events.AggregatePaymentIntent, intent.ID, PaymentConfirmedEvent{
		TransactionID: txn.ID,
		IntentID:      intent.ID,
		ReservationID: txn.ReservationID,
		PropertyID:    intent.PropertyID,
		PaymentType:   intent.PaymentType,
		PaymentMethod: txn.PaymentMethod,
		Amount:        txn.Amount,
		ConfirmedAt:   txn.CreatedAt,
	})

	return confirmResponse(txn, reservation), nil
}

func (s *Service) replayConfirmation(ctx context.Context, intent *Intent) (*payment.ConfirmResponse, error) {
	txn, err := s.store.GetTransactionByIntent(ctx, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	var reservation *Reservation
	if txn.ReservationID != "" {
		reservation, err = s.store.GetReservation(ctx, txn.ReservationID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("get reservation: %w", err)
		}
	}

	s.logger.Info("returning existing transaction for confirmed intent",
		"intent_id", intent.ID,
		"transaction_id", txn.ID,
	)
	return confirmResponse(txn, reservation), nil
}

func confirmResponse(txn *Transaction, reservation *Reservation) *payment.ConfirmResponse {
	resp := &payment.ConfirmResponse{Transaction: txn.Contract()}
	if reservation != nil {
		r := reservation.Contract()
		resp.Reservation = &r
	}
	return resp
}

func (s *Service) publish(ctx context.Context, eventType, aggregateType, aggregateID string, data any) {
	evt, err := events.NewEvent(eventType, aggregateType, aggregateID, data)
	if err != nil {
		s.logger.Error("failed to build event", "type", eventType, "error", err)
		return
	}
	evt.WithCorrelation(middleware.GetCorrelationID(ctx))

	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error("failed to publish event", "type", eventType, "aggregate_id", aggregateID, "error", err)
	}
}
