package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"propflow/internal/common/database"
	"propflow/internal/common/money"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db database.Querier
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(db database.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

const intentColumns = `
	id, property_id, payment_type, payment_method,
	amount_minor, currency, buyer_name, buyer_email, buyer_phone,
	journey_id, appointment_at, escrow_required, status,
	created_at, updated_at, confirmed_at`

// CreateIntent inserts a new payment intent.
func (s *PostgresStore) CreateIntent(ctx context.Context, i *Intent) error {
	query := `
		INSERT INTO payment_intents (` + intentColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.db.Exec(ctx, query,
		i.ID, i.PropertyID, i.PaymentType, i.PaymentMethod,
		i.Amount.AmountMinor, i.Amount.Currency, i.Buyer.FullName, i.Buyer.Email, i.Buyer.Phone,
		nullStr(i.JourneyID), i.AppointmentDate, i.EscrowRequired, i.Status,
		i.CreatedAt, i.UpdatedAt, i.ConfirmedAt,
	)
	return err
}

// GetIntent retrieves a payment intent by ID.
func (s *PostgresStore) GetIntent(ctx context.Context, id string) (*Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`
	return scanIntent(s.db.QueryRow(ctx, query, id))
}

// GetIntentForUpdate retrieves and locks a payment intent.
func (s *PostgresStore) GetIntentForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1 FOR UPDATE`
	return scanIntent(tx.QueryRow(ctx, query, id))
}

// UpdateIntentTx updates the mutable fields of an intent.
func (s *PostgresStore) UpdateIntentTx(ctx context.Context, tx pgx.Tx, i *Intent) error {
	query := `
		UPDATE payment_intents SET
			payment_method = $2, status = $3, updated_at = $4, confirmed_at = $5
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, i.ID, i.PaymentMethod, i.Status, i.UpdatedAt, i.ConfirmedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment intent %s: %w", i.ID, database.ErrNotFound)
	}
	return nil
}

func scanIntent(row pgx.Row) (*Intent, error) {
	var (
		i         Intent
		amount    int64
		currency  string
		journeyID *string
	)

	err := row.Scan(
		&i.ID, &i.PropertyID, &i.PaymentType, &i.PaymentMethod,
		&amount, &currency, &i.Buyer.FullName, &i.Buyer.Email, &i.Buyer.Phone,
		&journeyID, &i.AppointmentDate, &i.EscrowRequired, &i.Status,
		&i.CreatedAt, &i.UpdatedAt, &i.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment intent: %w", database.ErrNotFound)
		}
		return nil, err
	}

	i.Amount = money.New(amount, money.Currency(currency))
	if journeyID != nil {
		i.JourneyID = *journeyID
	}
	return &i, nil
}

const reservationColumns = `
	id, reservation_number, property_id, unit_id, development_id,
	reservation_type, payment_type, amount_minor, currency,
	buyer_name, buyer_email, buyer_phone, appointment_at, journey_id,
	payment_intent_id, metadata, status, expires_at,
	created_at, updated_at, confirmed_at`

// CreateReservation inserts a new reservation.
func (s *PostgresStore) CreateReservation(ctx context.Context, r *Reservation) error {
	query := `
		INSERT INTO reservations (` + reservationColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`

	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.Exec(ctx, query,
		r.ID, r.ReservationNumber, r.PropertyID, r.UnitID, r.DevelopmentID,
		r.ReservationType, r.PaymentType, r.Amount.AmountMinor, r.Amount.Currency,
		r.Buyer.FullName, r.Buyer.Email, r.Buyer.Phone, r.AppointmentDate, nullStr(r.JourneyID),
		r.PaymentIntentID, metadata, r.Status, r.ExpiresAt,
		r.CreatedAt, r.UpdatedAt, r.ConfirmedAt,
	)
	return err
}

// GetReservation retrieves a reservation by ID.
func (s *PostgresStore) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return scanReservation(s.db.QueryRow(ctx, query, id))
}

// GetReservationForUpdate retrieves and locks a reservation.
func (s *PostgresStore) GetReservationForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	return scanReservation(tx.QueryRow(ctx, query, id))
}

// UpdateReservationTx updates the status of a reservation.
func (s *PostgresStore) UpdateReservationTx(ctx context.Context, tx pgx.Tx, r *Reservation) error {
	query := `
		UPDATE reservations SET
			status = $2, updated_at = $3, confirmed_at = $4
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, r.ID, r.Status, r.UpdatedAt, r.ConfirmedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reservation %s: %w", r.ID, database.ErrNotFound)
	}
	return nil
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var (
		r         Reservation
		amount    int64
		currency  string
		journeyID *string
		metadata  []byte
	)

	err := row.Scan(
		&r.ID, &r.ReservationNumber, &r.PropertyID, &r.UnitID, &r.DevelopmentID,
		&r.ReservationType, &r.PaymentType, &amount, &currency,
		&r.Buyer.FullName, &r.Buyer.Email, &r.Buyer.Phone, &r.AppointmentDate, &journeyID,
		&r.PaymentIntentID, &metadata, &r.Status, &r.ExpiresAt,
		&r.CreatedAt, &r.UpdatedAt, &r.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reservation: %w", database.ErrNotFound)
		}
		return nil, err
	}

	r.Amount = money.New(amount, money.Currency(currency))
	if journeyID != nil {
		r.JourneyID = *journeyID
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &r, nil
}

// CreateTransactionTx inserts a captured transaction.
func (s *PostgresStore) CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	query := `
		INSERT INTO transactions (
			id, payment_intent_id, payment_method, amount_minor, currency,
			status, reservation_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.Exec(ctx, query,
		t.ID, t.PaymentIntentID, t.PaymentMethod, t.Amount.AmountMinor, t.Amount.Currency,
		t.Status, nullStr(t.ReservationID), t.CreatedAt,
	)
	return err
}

// GetTransactionByIntent retrieves the transaction of a confirmed intent.
func (s *PostgresStore) GetTransactionByIntent(ctx context.Context, intentID string) (*Transaction, error) {
	query := `
		SELECT id, payment_intent_id, payment_method, amount_minor, currency,
			   status, reservation_id, created_at
		FROM transactions WHERE payment_intent_id = $1
	`

	var (
		t             Transaction
		amount        int64
		currency      string
		reservationID *string
	)
	err := s.db.QueryRow(ctx, query, intentID).Scan(
		&t.ID, &t.PaymentIntentID, &t.PaymentMethod, &amount, &currency,
		&t.Status, &reservationID, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction: %w", database.ErrNotFound)
		}
		return nil, err
	}

	t.Amount = money.New(amount, money.Currency(currency))
	if reservationID != nil {
		t.ReservationID = *reservationID
	}
	return &t, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
