package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"propflow/internal/checkout"
	"propflow/internal/common/database"
	"propflow/internal/common/events"
	"propflow/internal/common/middleware"
	"propflow/internal/common/money"
	"propflow/internal/payment"
	"propflow/internal/property"
)

// MockStore is a mock implementation of checkout.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateIntent(ctx context.Context, intent *checkout.Intent) error {
	return m.Called(ctx, intent).Error(0)
}

func (m *MockStore) GetIntent(ctx context.Context, id string) (*checkout.Intent, error) {
	args := m.Called(ctx, id)
	intent, _ := args.Get(0).(*checkout.Intent)
	return intent, args.Error(1)
}

func (m *MockStore) GetIntentForUpdate(ctx context.Context, tx pgx.Tx, id string) (*checkout.Intent, error) {
	args := m.Called(ctx, tx, id)
	intent, _ := args.Get(0).(*checkout.Intent)
	return intent, args.Error(1)
}

func (m *MockStore) UpdateIntentTx(ctx context.Context, tx pgx.Tx, intent *checkout.Intent) error {
	return m.Called(ctx, tx, intent).Error(0)
}

func (m *MockStore) CreateReservation(ctx context.Context, r *checkout.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockStore) GetReservation(ctx context.Context, id string) (*checkout.Reservation, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*checkout.Reservation)
	return r, args.Error(1)
}

func (m *MockStore) GetReservationForUpdate(ctx context.Context, tx pgx.Tx, id string) (*checkout.Reservation, error) {
	args := m.Called(ctx, tx, id)
	r, _ := args.Get(0).(*checkout.Reservation)
	return r, args.Error(1)
}

func (m *MockStore) UpdateReservationTx(ctx context.Context, tx pgx.Tx, r *checkout.Reservation) error {
	return m.Called(ctx, tx, r).Error(0)
}

func (m *MockStore) CreateTransactionTx(ctx context.Context, tx pgx.Tx, t *checkout.Transaction) error {
	return m.Called(ctx, tx, t).Error(0)
}

func (m *MockStore) GetTransactionByIntent(ctx context.Context, intentID string) (*checkout.Transaction, error) {
	args := m.Called(ctx, intentID)
	t, _ := args.Get(0).(*checkout.Transaction)
	return t, args.Error(1)
}

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event *events.Event) error {
	return m.Called(ctx, event).Error(0)
}

// fakeTx runs the function without a database and reports its error.
type fakeTx struct{ calls int }

func (f *fakeTx) WithTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	f.calls++
	return fn(nil)
}

type memoryProperties map[string]*property.Property

func (m memoryProperties) Get(_ context.Context, id string) (*property.Property, error) {
	p, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("property %s: %w", id, database.ErrNotFound)
	}
	return p, nil
}

func (m memoryProperties) List(context.Context, string, int, int) ([]*property.Property, int64, error) {
	return nil, 0, nil
}

var testNow = time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC)

func eur(major int64) money.Money { return money.FromMajor(major, money.EUR) }

func newService(store *MockStore, publisher *MockPublisher) (*checkout.Service, *fakeTx) {
	tx := &fakeTx{}
	properties := memoryProperties{
		"prop-1": {ID: "prop-1", Price: eur(350000), HTBEligible: true},
	}
	svc := checkout.NewService(store, tx, properties, publisher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.SetClock(func() time.Time { return testNow })
	return svc, tx
}

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(e *events.Event) bool { return e.Type == eventType })
}

func intentRequest() *payment.IntentRequest {
	return &payment.IntentRequest{
		PropertyID:    "prop-1",
		PaymentType:   payment.TypeReservationFee,
		PaymentMethod: payment.MethodCreditCard,
		Amount:        eur(3500),
		PersonalDetails: payment.BuyerDetails{
			FullName: "Aoife Byrne",
			Email:    "aoife@example.com",
			Phone:    "+353 87 123 4567",
		},
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc, _ := newService(store, publisher)

	store.On("CreateIntent", mock.Anything, mock.MatchedBy(func(i *checkout.Intent) bool {
		return i.PropertyID == "prop-1" && i.Status == checkout.IntentCreated && i.CreatedAt.Equal(testNow)
	})).Return(nil)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e *events.Event) bool {
		return e.Type == events.EventPaymentIntentCreated && e.CorrelationID == "corr-1"
	})).Return(nil)

	ctx := middleware.WithCorrelationID(context.Background(), "corr-1")
	resp, err := svc.CreatePaymentIntent(ctx, intentRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, resp.PaymentIntent.ID)
	assert.Equal(t, "created", resp.PaymentIntent.Status)
	assert.Equal(t, eur(3500), resp.PaymentIntent.Amount)
	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCreatePaymentIntentRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*payment.IntentRequest)
		wantErr error
	}{
		{
			name:    "unknown property",
			mutate:  func(r *payment.IntentRequest) { r.PropertyID = "missing" },
			wantErr: database.ErrNotFound,
		},
		{
			name:    "reservation fee above cap",
			mutate:  func(r *payment.IntentRequest) { r.Amount = eur(12000); r.PaymentMethod = payment.MethodBankTransfer },
			wantErr: payment.ErrInvalidAmount,
		},
		{
			name:    "credit card over limit",
			mutate:  func(r *payment.IntentRequest) { r.PaymentType = payment.TypeContractualDeposit; r.Amount = eur(35000) },
			wantErr: payment.ErrMethodUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			publisher := new(MockPublisher)
			svc, _ := newService(store, publisher)

			req := intentRequest()
			tt.mutate(req)
			_, err := svc.CreatePaymentIntent(context.Background(), req)

			assert.ErrorIs(t, err, tt.wantErr)
			store.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
			publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestCreatePaymentIntentPublishFailureIsLogged(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc, _ := newService(store, publisher)

	store.On("CreateIntent", mock.Anything, mock.Anything).Return(nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	_, err := svc.CreatePaymentIntent(context.Background(), intentRequest())
	assert.NoError(t, err)
}

func reservationRequest() *payment.ReservationRequest {
	return &payment.ReservationRequest{
		PropertyID:      "prop-1",
		UnitID:          "prop-1",
		DevelopmentID:   "dev-9",
		ReservationType: payment.ReservationPaid,
		PaymentType:     payment.TypeReservationFee,
		Amount:          eur(3500),
		PaymentIntentID: "pi_1",
	}
}

func createdIntent() *checkout.Intent {
	return &checkout.Intent{
		ID:            "pi_1",
		PropertyID:    "prop-1",
		PaymentType:   payment.TypeReservationFee,
		PaymentMethod: payment.MethodCreditCard,
		Amount:        eur(3500),
		Status:        checkout.IntentCreated,
	}
}

func TestCreateReservation(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc, _ := newService(store, publisher)

	store.On("GetIntent", mock.Anything, "pi_1").Return(createdIntent(), nil)
	store.On("CreateReservation", mock.Anything, mock.AnythingOfType("*checkout.Reservation")).Return(nil)
	publisher.On("Publish", mock.Anything, eventOfType(events.EventReservationCreated)).Return(nil)

	resp, err := svc.CreateReservation(context.Background(), reservationRequest())

	require.NoError(t, err)
	r := resp.Reservation
	assert.NotEmpty(t, r.ID)
	assert.Regexp(t, `^RES-2024-[0-9A-Z]{6}$`, r.ReservationNumber)
	assert.Equal(t, "pending", r.Status)
	require.NotNil(t, r.ExpiresAt)
	assert.Equal(t, testNow.Add(14*24*time.Hour), *r.ExpiresAt)
	publisher.AssertExpectations(t)
}

func TestCreateReservationRetriesNumberCollision(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc, _ := newService(store, publisher)

	collision := &pgconn.PgError{Code: "23505"}
	store.On("GetIntent", mock.Anything, "pi_1").Return(createdIntent(), nil)
	store.On("CreateReservation", mock.Anything, mock.Anything).Return(collision).Once()
	store.On("CreateReservation", mock.Anything, mock.Anything).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.CreateReservation(context.Background(), reservationRequest())

	require.NoError(t, err)
	store.AssertNumberOfCalls(t, "CreateReservation", 2)
}

func TestCreateReservationPropertyMismatch(t *testing.T) {
	store := new(MockStore)
	svc, _ := newService(store, new(MockPublisher))

	intent := createdIntent()
	intent.PropertyID = "prop-2"
	store.On("GetIntent", mock.Anything, "pi_1").Return(intent, nil)

	_, err := svc.CreateReservation(context.Background(), reservationRequest())

	assert.ErrorIs(t, err, checkout.ErrReservationMismatch)
	store.AssertNotCalled(t, "CreateReservation", mock.Anything, mock.Anything)
}

func TestCreateReservationUnknownIntent(t *testing.T) {
	store := new(MockStore)
	svc, _ := newService(store, new(MockPublisher))

	store.On("GetIntent", mock.Anything, "pi_1").Return(nil, database.ErrNotFound)

	_, err := svc.CreateReservation(context.Background(), reservationRequest())
	assert.True(t, database.IsNotFound(err))
}

func pendingReservation() *checkout.Reservation {
	expiry := testNow.Add(14 * 24 * time.Hour)
	return &checkout.Reservation{
		ID:                "res_1",
		ReservationNumber: "RES-2024-ABC123",
		PropertyID:        "prop-1",
		PaymentIntentID:   "pi_1",
		ReservationType:   payment.ReservationPaid,
		Status:            checkout.ReservationPending,
		ExpiresAt:         &expiry,
	}
}

func TestConfirmPayment(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc, tx := newService(store, publisher)

	store.On("GetIntentForUpdate", mock.Anything, mock.Anything, "pi_1").Return(createdIntent(), nil)
	store.On("UpdateIntentTx", mock.Anything, mock.Anything, mock.MatchedBy(func(i *checkout.Intent) bool {
		return i.Status == checkout.IntentSucceeded && i.ConfirmedAt != nil
	})).Return(nil)
	store.On("GetReservationForUpdate", mock.Anything, mock.Anything, "res_1").Return(pendingReservation(), nil)
	store.On("UpdateReservationTx", mock.Anything, mock.Anything, mock.MatchedBy(func(r *checkout.Reservation) bool {
		return r.Status == checkout.ReservationConfirmed
	})).Return(nil)
	store.On("CreateTransactionTx", mock.Anything, mock.Anything, mock.MatchedBy(func(txn *checkout.Transaction) bool {
		return txn.PaymentIntentID == "pi_1" && txn.ReservationID == "res_1" && txn.Amount == eur(3500)
	})).Return(nil)
	publisher.On("Publish", mock.Anything, eventOfType(events.EventPaymentConfirmed)).Return(nil)

	resp, err := svc.ConfirmPayment(context.Background(), &payment.ConfirmRequest{
		PaymentIntentID: "pi_1",
		PaymentMethodID: payment.MethodCreditCard,
		ReservationID:   "res_1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Transaction.ID)
	assert.Equal(t, payment.StatusCompleted, resp.Transaction.Status)
	require.NotNil(t, resp.Reservation)
	assert.Equal(t, "confirmed", resp.Reservation.Status)
	assert.Equal(t, 1, tx.calls)
	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestConfirmPaymentWithoutReservation(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc, _ := newService(store, publisher)

	store.On("GetIntentForUpdate", mock.Anything, mock.Anything, "pi_1").Return(createdIntent(), nil)
	store.On("UpdateIntentTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("CreateTransactionTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.ConfirmPayment(context.Background(), &payment.ConfirmRequest{
		PaymentIntentID: "pi_1",
		PaymentMethodID: payment.MethodCreditCard,
	})

	require.NoError(t, err)
	assert.Nil(t, resp.Reservation)
	store.AssertNotCalled(t, "GetReservationForUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc, _ := newService(store, publisher)

	intent := createdIntent()
	intent.Status = checkout.IntentSucceeded
	reservation := pendingReservation()
	reservation.Status = checkout.ReservationConfirmed

	store.On("GetIntentForUpdate", mock.Anything, mock.Anything, "pi_1").Return(intent, nil)
	store.On("GetTransactionByIntent", mock.Anything, "pi_1").Return(&checkout.Transaction{
		ID:              "txn_1",
		PaymentIntentID: "pi_1",
		Amount:          eur(3500),
		Status:          payment.StatusCompleted,
		ReservationID:   "res_1",
	}, nil)
	store.On("GetReservation", mock.Anything, "res_1").Return(reservation, nil)

	resp, err := svc.ConfirmPayment(context.Background(), &payment.ConfirmRequest{
		PaymentIntentID: "pi_1",
		PaymentMethodID: payment.MethodCreditCard,
		ReservationID:   "res_1",
	})

	require.NoError(t, err)
	assert.Equal(t, "txn_1", resp.Transaction.ID)
	assert.Equal(t, "res_1", resp.Reservation.ID)
	store.AssertNotCalled(t, "CreateTransactionTx", mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestConfirmPaymentRejects(t *testing.T) {
	t.Run("method over limit", func(t *testing.T) {
		store := new(MockStore)
		svc, _ := newService(store, new(MockPublisher))

		intent := createdIntent()
		intent.PaymentType = payment.TypeContractualDeposit
		intent.PaymentMethod = payment.MethodBankTransfer
		intent.Amount = eur(35000)
		store.On("GetIntentForUpdate", mock.Anything, mock.Anything, "pi_1").Return(intent, nil)

		_, err := svc.ConfirmPayment(context.Background(), &payment.ConfirmRequest{
			PaymentIntentID: "pi_1",
			PaymentMethodID: payment.MethodCreditCard,
		})

		assert.ErrorIs(t, err, payment.ErrMethodUnavailable)
		store.AssertNotCalled(t, "UpdateIntentTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reservation of another intent", func(t *testing.T) {
		store := new(MockStore)
		svc, _ := newService(store, new(MockPublisher))

		reservation := pendingReservation()
		reservation.PaymentIntentID = "pi_other"
		store.On("GetIntentForUpdate", mock.Anything, mock.Anything, "pi_1").Return(createdIntent(), nil)
		store.On("UpdateIntentTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		store.On("GetReservationForUpdate", mock.Anything, mock.Anything, "res_1").Return(reservation, nil)

		_, err := svc.ConfirmPayment(context.Background(), &payment.ConfirmRequest{
			PaymentIntentID: "pi_1",
			PaymentMethodID: payment.MethodCreditCard,
			ReservationID:   "res_1",
		})

		assert.ErrorIs(t, err, checkout.ErrReservationMismatch)
		store.AssertNotCalled(t, "CreateTransactionTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired reservation", func(t *testing.T) {
		store := new(MockStore)
		svc, _ := newService(store, new(MockPublisher))

		reservation := pendingReservation()
		expired := testNow.Add(-time.Minute)
		reservation.ExpiresAt = &expired
		store.On("GetIntentForUpdate", mock.Anything, mock.Anything, "pi_1").Return(createdIntent(), nil)
		store.On("UpdateIntentTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		store.On("GetReservationForUpdate", mock.Anything, mock.Anything, "res_1").Return(reservation, nil)

		_, err := svc.ConfirmPayment(context.Background(), &payment.ConfirmRequest{
			PaymentIntentID: "pi_1",
			PaymentMethodID: payment.MethodCreditCard,
			ReservationID:   "res_1",
		})

		assert.ErrorIs(t, err, checkout.ErrReservationExpired)
	})

	t.Run("unknown intent", func(t *testing.T) {
		store := new(MockStore)
		svc, _ := newService(store, new(MockPublisher))

		store.On("GetIntentForUpdate", mock.Anything, mock.Anything, "pi_1").
			Return(nil, fmt.Errorf("payment intent: %w", database.ErrNotFound))

		_, err := svc.ConfirmPayment(context.Background(), &payment.ConfirmRequest{
			PaymentIntentID: "pi_1",
			PaymentMethodID: payment.MethodCreditCard,
		})

		assert.True(t, database.IsNotFound(err))
	})
}
