package purchase

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"propflow/internal/common/money"
	"propflow/internal/payment"
	"propflow/internal/property"
)

// appointmentLead is how far ahead a newly scheduled viewing is placed.
const appointmentLead = 7 * 24 * time.Hour

// Event is an input to Machine.Apply.
type Event interface {
	event()
}

// SelectPaymentType picks the payment type.
type SelectPaymentType struct{ Type payment.Type }

// SetCustomDeposit overrides the booking deposit. A nil amount clears it.
type SetCustomDeposit struct{ Amount *money.Money }

// SetPersonalDetails replaces the buyer's contact details.
type SetPersonalDetails struct{ Details payment.BuyerDetails }

// SelectPaymentMethod picks the payment method.
type SelectPaymentMethod struct{ Method payment.Method }

// SetTermsAccepted records acceptance of the terms and conditions.
type SetTermsAccepted struct{ Accepted bool }

// SetAppointment schedules or clears a viewing appointment. Scheduling without
// a date places the appointment one week from now.
type SetAppointment struct {
	Scheduled bool
	At        *time.Time
}

// SetMortgageApproval records whether the buyer holds mortgage approval in principle.
type SetMortgageApproval struct{ Approved bool }

// Next validates the current step and moves forward.
type Next struct{}

// Back moves to the previous step.
type Back struct{}

// PaymentSucceeded completes a flow that is processing.
type PaymentSucceeded struct{ Result Result }

// PaymentFailed returns a processing flow to confirmation.
type PaymentFailed struct{ Message string }

func (SelectPaymentType) event()   {}
func (SetCustomDeposit) event()    {}
func (SetPersonalDetails) event()  {}
func (SelectPaymentMethod) event() {}
func (SetTermsAccepted) event()    {}
func (SetAppointment) event()      {}
func (SetMortgageApproval) event() {}
func (Next) event()                {}
func (Back) event()                {}
func (PaymentSucceeded) event()    {}
func (PaymentFailed) event()       {}

// Machine holds the immutable inputs of a flow and computes transitions.
// Apply never mutates its input state.
type Machine struct {
	Property property.Property
	Config   Config
	Now      func() time.Time
}

// NewMachine creates a machine for one property.
func NewMachine(p property.Property, cfg Config) *Machine {
	return &Machine{Property: p, Config: cfg, Now: time.Now}
}

// Start merges initial with defaults and returns the first state.
func (m *Machine) Start(initial FormData) State {
	form := initial
	if form.PaymentType == "" {
		form.PaymentType = m.Config.DefaultType
	}
	if form.PaymentMethod == "" {
		form.PaymentMethod = payment.DefaultMethod
	}
	s := State{Step: StepPaymentType, Form: form}
	m.derive(&s)
	return s
}

// Apply returns the state that follows ev. A refused Next returns the state
// with its error set along with ErrStepInvalid; other refusals return the
// input state unchanged.
func (m *Machine) Apply(s State, ev Event) (State, Command, error) {
	next := s

	switch e := ev.(type) {
	case PaymentSucceeded:
		if s.Step != StepProcessing {
			return s, CommandNone, ErrUnexpectedEvent
		}
		res := e.Result
		next.Result = &res
		next.Step = StepSuccess
		next.Error = ""
		return next, CommandNone, nil

	case PaymentFailed:
		if s.Step != StepProcessing {
			return s, CommandNone, ErrUnexpectedEvent
		}
		next.Step = StepConfirmation
		next.Error = e.Message
		if next.Error == "" {
			next.Error = "Payment processing failed"
		}
		return next, CommandNone, nil
	}

	if s.Step.Locked() {
		return s, CommandNone, ErrFlowLocked
	}

	switch e := ev.(type) {
	case SelectPaymentType:
		next.Form.PaymentType = e.Type

	case SetCustomDeposit:
		if !m.Config.AllowCustomDeposit || s.Form.PaymentType != payment.TypeBookingDeposit {
			return s, CommandNone, ErrCustomDepositNotAllowed
		}
		if e.Amount == nil || e.Amount.IsZero() {
			next.Form.CustomDepositAmount = nil
			break
		}
		if !e.Amount.IsPositive() {
			return s, CommandNone, ErrInvalidCustomDeposit
		}
		if e.Amount.Currency != m.Property.Price.Currency {
			return s, CommandNone, fmt.Errorf("custom deposit in %s, property priced in %s: %w",
				e.Amount.Currency, m.Property.Price.Currency, money.ErrCurrencyMismatch)
		}
		amount := *e.Amount
		next.Form.CustomDepositAmount = &amount

	case SetPersonalDetails:
		next.Form.PersonalDetails = e.Details

	case SelectPaymentMethod:
		next.Form.PaymentMethod = e.Method

	case SetTermsAccepted:
		next.Form.TermsAccepted = e.Accepted

	case SetAppointment:
		if !m.Config.RequiresAppointment {
			return s, CommandNone, ErrAppointmentNotOffered
		}
		switch {
		case !e.Scheduled:
			next.Form.AppointmentDate = nil
		case e.At != nil:
			at := *e.At
			next.Form.AppointmentDate = &at
		default:
			at := m.Now().Add(appointmentLead)
			next.Form.AppointmentDate = &at
		}

	case SetMortgageApproval:
		next.Form.MortgageApprovalInPrinciple = e.Approved

	case Next:
		return m.advance(next)

	case Back:
		if i := s.Step.Index(); i > 0 {
			next.Step = interactiveSteps[i-1]
		}
		next.Error = ""

	default:
		return s, CommandNone, fmt.Errorf("purchase: unknown event %T", ev)
	}

	m.derive(&next)
	return next, CommandNone, nil
}

func (m *Machine) advance(s State) (State, Command, error) {
	m.derive(&s)
	s.Error = ""

	if msg := m.validate(s); msg != "" {
		s.Error = msg
		return s, CommandNone, ErrStepInvalid
	}

	if s.Step == StepConfirmation {
		s.Step = StepProcessing
		return s, CommandSubmit, nil
	}

	s.Step = interactiveSteps[s.Step.Index()+1]
	return s, CommandNone, nil
}

// validate returns the message explaining why the current step is incomplete,
// or "" when the step may be left.
func (m *Machine) validate(s State) string {
	f := s.Form

	switch s.Step {
	case StepPaymentType:
		if !m.Config.Allows(f.PaymentType) {
			return "Select one of the available payment types"
		}

	case StepPaymentBreakdown:
		if err := payment.ValidateAmount(f.PaymentType, s.Amount, m.Property.Price); err != nil {
			return err.Error()
		}

	case StepPersonalDetails:
		d := f.PersonalDetails
		if strings.TrimSpace(d.FullName) == "" ||
			strings.TrimSpace(d.Email) == "" ||
			strings.TrimSpace(d.Phone) == "" {
			return "Full name, email and phone are required"
		}

	case StepPaymentMethod:
		if f.PaymentMethod == "" {
			return "Select a payment method"
		}
		if err := payment.ValidateMethod(f.PaymentMethod, s.Amount); err != nil {
			return err.Error()
		}

	case StepConfirmation:
		if !f.TermsAccepted {
			return "You must accept the terms and conditions to continue"
		}
		if err := payment.ValidateMethod(f.PaymentMethod, s.Amount); err != nil {
			return err.Error()
		}
	}

	return ""
}

// derive recomputes the breakdown and the amount due.
func (m *Machine) derive(s *State) {
	price := m.Property.Price

	var rate *decimal.Decimal
	custom := money.Zero(price.Currency)
	if c := s.Form.CustomDepositAmount; c != nil {
		custom = *c
		if c.IsPositive() {
			r := c.RateOf(price)
			rate = &r
		}
	}

	s.Breakdown = payment.ComputeBreakdown(price, m.Property.HTBEligible, rate)
	s.Amount = s.Breakdown.AmountFor(s.Form.PaymentType, custom)
}
