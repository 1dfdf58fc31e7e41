// Package purchase drives a buyer through the property purchase flow: payment
// type, breakdown, personal details, payment method, confirmation, and the
// payment orchestration that ends it.
package purchase

import (
	"errors"
	"slices"
	"time"

	"propflow/internal/common/money"
	"propflow/internal/payment"
)

// Step is a position in the purchase flow.
type Step string

const (
	StepPaymentType      Step = "payment_type"
	StepPaymentBreakdown Step = "payment_breakdown"
	StepPersonalDetails  Step = "personal_details"
	StepPaymentMethod    Step = "payment_method"
	StepConfirmation     Step = "confirmation"
	StepProcessing       Step = "processing"
	StepSuccess          Step = "success"
)

// interactiveSteps are the steps a buyer can move between with Next and Back.
var interactiveSteps = []Step{
	StepPaymentType,
	StepPaymentBreakdown,
	StepPersonalDetails,
	StepPaymentMethod,
	StepConfirmation,
}

// Index returns the position of an interactive step, or -1.
func (s Step) Index() int {
	return slices.Index(interactiveSteps, s)
}

// Locked reports whether the buyer can no longer change the flow.
func (s Step) Locked() bool {
	return s == StepProcessing || s == StepSuccess
}

// Config controls which options a flow offers.
type Config struct {
	AllowedTypes        []payment.Type `json:"allowed_types"`
	DefaultType         payment.Type   `json:"default_type"`
	AllowCustomDeposit  bool           `json:"allow_custom_deposit"`
	RequiresAppointment bool           `json:"requires_appointment"`
	EscrowRequired      bool           `json:"escrow_required"`
	JourneyIntegration  bool           `json:"journey_integration"`
}

// DefaultConfig offers every payment type, starting at the reservation fee.
func DefaultConfig() Config {
	return Config{
		AllowedTypes: slices.Clone(payment.Types),
		DefaultType:  payment.TypeReservationFee,
	}
}

// Allows reports whether t is one of the configured payment types.
func (c Config) Allows(t payment.Type) bool {
	return slices.Contains(c.AllowedTypes, t)
}

// FormData is everything the buyer enters during the flow.
type FormData struct {
	PaymentType                 payment.Type         `json:"payment_type"`
	PaymentMethod               payment.Method       `json:"payment_method"`
	CustomDepositAmount         *money.Money         `json:"custom_deposit_amount,omitempty"`
	PersonalDetails             payment.BuyerDetails `json:"personal_details"`
	TermsAccepted               bool                 `json:"terms_accepted"`
	AppointmentDate             *time.Time           `json:"appointment_date,omitempty"`
	MortgageApprovalInPrinciple bool                 `json:"mortgage_approval_in_principle"`
}

// Result is the outcome of a completed purchase.
type Result struct {
	TransactionID     string         `json:"transaction_id"`
	PaymentType       payment.Type   `json:"payment_type"`
	Amount            money.Money    `json:"amount"`
	Status            payment.Status `json:"status"`
	ReservationExpiry *time.Time     `json:"reservation_expiry,omitempty"`
	ReservationID     string         `json:"reservation_id,omitempty"`
	ReservationNumber string         `json:"reservation_number,omitempty"`
}

// State is a snapshot of one flow. Breakdown and Amount are derived from the
// property and Form on every transition.
type State struct {
	Step      Step              `json:"step"`
	Form      FormData          `json:"form"`
	Breakdown payment.Breakdown `json:"breakdown"`
	Amount    money.Money       `json:"amount"`
	Error     string            `json:"error,omitempty"`
	Result    *Result           `json:"result,omitempty"`
}

// Command tells the owner of a state what to do after a transition.
type Command int

const (
	CommandNone Command = iota
	// CommandSubmit starts the payment orchestration.
	CommandSubmit
)

var (
	// ErrStepInvalid is returned when Next is refused by step validation.
	ErrStepInvalid = errors.New("purchase: current step is incomplete")
	// ErrFlowLocked is returned for changes while processing or after success.
	ErrFlowLocked = errors.New("purchase: flow can no longer be changed")
	// ErrCustomDepositNotAllowed is returned when custom deposits are not offered
	// or the selected type is not a booking deposit.
	ErrCustomDepositNotAllowed = errors.New("purchase: custom deposit not allowed")
	// ErrInvalidCustomDeposit is returned for a negative custom deposit.
	ErrInvalidCustomDeposit = errors.New("purchase: custom deposit must be positive")
	// ErrAppointmentNotOffered is returned when the flow does not schedule appointments.
	ErrAppointmentNotOffered = errors.New("purchase: appointments are not offered")
	// ErrUnexpectedEvent is returned for payment outcomes outside processing.
	ErrUnexpectedEvent = errors.New("purchase: event not valid in current step")
	// ErrFlowClosed is returned by a flow after Close.
	ErrFlowClosed = errors.New("purchase: flow closed")
)
