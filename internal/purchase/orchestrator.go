package purchase

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"propflow/internal/common/money"
	"propflow/internal/payment"
	"propflow/internal/property"
)

// DefaultProcessingDelay is the minimum time a payment shows as processing.
const DefaultProcessingDelay = 2 * time.Second

// Backend is the checkout API a purchase talks to.
type Backend interface {
	CreatePaymentIntent(ctx context.Context, req *payment.IntentRequest) (*payment.IntentResponse, error)
	CreateReservation(ctx context.Context, req *payment.ReservationRequest) (*payment.ReservationResponse, error)
	ConfirmPayment(ctx context.Context, req *payment.ConfirmRequest) (*payment.ConfirmResponse, error)
}

// Submission is everything the orchestration needs from a flow.
type Submission struct {
	Property  property.Property
	Config    Config
	Form      FormData
	Amount    money.Money
	JourneyID string
}

// PaymentError is a failed orchestration step with a buyer-facing message.
type PaymentError struct {
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *PaymentError) Unwrap() error { return e.Err }

// Orchestrator runs the payment sequence for a confirmed purchase:
// intent, reservation, processing delay, confirmation.
type Orchestrator struct {
	backend         Backend
	logger          *slog.Logger
	processingDelay time.Duration
	now             func() time.Time
	sleep           func(ctx context.Context, d time.Duration) error
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithProcessingDelay overrides DefaultProcessingDelay.
func WithProcessingDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.processingDelay = d }
}

// WithClock overrides the wall clock used for expiry defaults.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(backend Backend, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		backend:         backend,
		logger:          logger,
		processingDelay: DefaultProcessingDelay,
		now:             time.Now,
		sleep:           sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run submits a purchase and returns its result. A failed reservation is
// logged and the purchase continues without one; any other failure aborts.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) (*Result, error) {
	form := sub.Form
	amount := sub.Amount

	intentReq := payment.IntentRequest{
		PropertyID:      sub.Property.ID,
		PaymentType:     form.PaymentType,
		PaymentMethod:   form.PaymentMethod,
		Amount:          amount,
		PersonalDetails: form.PersonalDetails,
		AppointmentDate: form.AppointmentDate,
		EscrowRequired:  sub.Config.EscrowRequired,
	}
	if sub.Config.JourneyIntegration {
		intentReq.JourneyID = sub.JourneyID
	}

	logger := o.logger.With(
		"property_id", sub.Property.ID,
		"payment_type", form.PaymentType,
		"payment_method", form.PaymentMethod,
		"amount_minor", amount.AmountMinor,
	)

	intentResp, err := o.backend.CreatePaymentIntent(ctx, &intentReq)
	if err != nil {
		logger.Error("failed to create payment intent", "error", err)
		return nil, &PaymentError{Message: "Failed to create payment intent", Err: err}
	}
	intentID := intentResp.PaymentIntent.ID
	logger = logger.With("payment_intent_id", intentID)

	reservationID := o.reserve(ctx, logger, sub, intentReq, intentID)

	if err := o.sleep(ctx, o.processingDelay); err != nil {
		return nil, &PaymentError{Message: "Payment processing interrupted", Err: err}
	}

	confirmResp, err := o.backend.ConfirmPayment(ctx, &payment.ConfirmRequest{
		PaymentIntentID: intentID,
		PaymentMethodID: form.PaymentMethod,
		ReservationID:   reservationID,
	})
	if err != nil {
		logger.Error("payment confirmation failed", "error", err)
		return nil, &PaymentError{Message: "Payment confirmation failed", Err: err}
	}

	result := &Result{
		TransactionID: confirmResp.Transaction.ID,
		PaymentType:   form.PaymentType,
		Amount:        amount,
		Status:        payment.StatusCompleted,
	}

	// Only a reservation the confirmation acknowledged is reported.
	if r := confirmResp.Reservation; r != nil {
		result.ReservationID = r.ID
		result.ReservationNumber = r.ReservationNumber
		if r.ExpiresAt != nil {
			expiry := *r.ExpiresAt
			result.ReservationExpiry = &expiry
		}
	}
	if result.ReservationExpiry == nil && form.PaymentType == payment.TypeReservationFee {
		expiry := o.now().Add(payment.ReservationHold)
		result.ReservationExpiry = &expiry
	}

	logger.Info("purchase completed",
		"transaction_id", result.TransactionID,
		"reservation_id", result.ReservationID,
	)

	return result, nil
}

// reserve creates the reservation for an intent. Failures are logged and
// reported as an empty id.
func (o *Orchestrator) reserve(ctx context.Context, logger *slog.Logger, sub Submission, intent payment.IntentRequest, intentID string) string {
	developmentID := sub.Property.DevelopmentID
	if developmentID == "" {
		developmentID = "unknown"
	}

	resp, err := o.backend.CreateReservation(ctx, &payment.ReservationRequest{
		PropertyID:      sub.Property.ID,
		UnitID:          sub.Property.ID,
		DevelopmentID:   developmentID,
		ReservationType: payment.ReservationTypeFor(intent.PaymentType),
		PaymentType:     intent.PaymentType,
		Amount:          intent.Amount,
		BuyerDetails:    intent.PersonalDetails,
		AppointmentDate: intent.AppointmentDate,
		JourneyID:       intent.JourneyID,
		PaymentIntentID: intentID,
		Metadata: map[string]string{
			"property_price": strconv.FormatInt(sub.Property.Price.AmountMinor, 10),
			"htb_eligible":   strconv.FormatBool(sub.Property.HTBEligible),
			"payment_method": string(intent.PaymentMethod),
		},
	})
	if err != nil {
		logger.Warn("reservation creation failed, continuing with payment", "error", err)
		return ""
	}

	return resp.Reservation.ID
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
