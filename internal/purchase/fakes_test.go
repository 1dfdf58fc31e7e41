package purchase_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"propflow/internal/payment"
	"propflow/internal/purchase"
)

// fakeBackend records every call and answers from its fields.
type fakeBackend struct {
	mu sync.Mutex

	intentErr      error
	reservationErr error
	confirmErr     error
	expiresAt      *time.Time

	// confirmWithoutReservation drops the reservation from confirm responses.
	confirmWithoutReservation bool

	intents      []payment.IntentRequest
	reservations []payment.ReservationRequest
	confirms     []payment.ConfirmRequest
}

func (b *fakeBackend) CreatePaymentIntent(_ context.Context, req *payment.IntentRequest) (*payment.IntentResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.intents = append(b.intents, *req)
	if b.intentErr != nil {
		return nil, b.intentErr
	}
	return &payment.IntentResponse{PaymentIntent: payment.Intent{
		ID:            "pi_1",
		PropertyID:    req.PropertyID,
		PaymentType:   req.PaymentType,
		PaymentMethod: req.PaymentMethod,
		Amount:        req.Amount,
		Status:        "created",
	}}, nil
}

func (b *fakeBackend) CreateReservation(_ context.Context, req *payment.ReservationRequest) (*payment.ReservationResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reservations = append(b.reservations, *req)
	if b.reservationErr != nil {
		return nil, b.reservationErr
	}
	return &payment.ReservationResponse{Reservation: payment.Reservation{
		ID:                "res_1",
		ReservationNumber: "RES-2024-ABC123",
		PropertyID:        req.PropertyID,
		ReservationType:   req.ReservationType,
		Status:            "pending",
		ExpiresAt:         b.expiresAt,
	}}, nil
}

func (b *fakeBackend) ConfirmPayment(_ context.Context, req *payment.ConfirmRequest) (*payment.ConfirmResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirms = append(b.confirms, *req)
	if b.confirmErr != nil {
		return nil, b.confirmErr
	}
	resp := &payment.ConfirmResponse{Transaction: payment.Transaction{
		ID:              "txn_1",
		PaymentIntentID: req.PaymentIntentID,
		Status:          payment.StatusCompleted,
	}}
	if req.ReservationID != "" && !b.confirmWithoutReservation {
		resp.Reservation = &payment.Reservation{
			ID:                req.ReservationID,
			ReservationNumber: "RES-2024-ABC123",
			Status:            "confirmed",
			ExpiresAt:         b.expiresAt,
		}
	}
	return resp, nil
}

func (b *fakeBackend) calls() (intents []payment.IntentRequest, reservations []payment.ReservationRequest, confirms []payment.ConfirmRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.intents, b.reservations, b.confirms
}

var errBackendDown = errors.New("backend unavailable")

// recordingNotifier collects notifications.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []purchase.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note purchase.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return nil
}

func (n *recordingNotifier) all() []purchase.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]purchase.Notification(nil), n.sent...)
}

// countingRecorder tallies recorder callbacks.
type countingRecorder struct {
	mu       sync.Mutex
	started  int
	steps    []string
	outcomes []string
}

func (r *countingRecorder) FlowStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *countingRecorder) StepEntered(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *countingRecorder) OrchestrationFinished(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}
