package purchase

import (
	"fmt"
	"strings"
	"time"

	"propflow/internal/payment"
)

const (
	dateLayout = "2 January 2006"
	timeLayout = "15:04"
)

var stepLabels = []string{"Payment Type", "Breakdown", "Details", "Method", "Confirm"}

// View is everything needed to render one state of a flow.
type View struct {
	Step          Step     `json:"step"`
	Heading       string   `json:"heading"`
	PropertyTitle string   `json:"property_title"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle"`
	StepLabels    []string `json:"step_labels"`
	Progress      int      `json:"progress"`

	Navigation *Navigation `json:"navigation,omitempty"`

	PaymentTypes    []TypeOption      `json:"payment_types,omitempty"`
	Breakdown       *BreakdownView    `json:"breakdown,omitempty"`
	PersonalDetails *DetailsView      `json:"personal_details,omitempty"`
	PaymentMethods  []MethodOption    `json:"payment_methods,omitempty"`
	EscrowNotice    *Notice           `json:"escrow_notice,omitempty"`
	Confirmation    *ConfirmationView `json:"confirmation,omitempty"`
	Success         *SuccessView      `json:"success,omitempty"`

	Error string `json:"error,omitempty"`
}

// Navigation describes the back and continue controls.
type Navigation struct {
	CanGoBack     bool   `json:"can_go_back"`
	CanContinue   bool   `json:"can_continue"`
	ContinueLabel string `json:"continue_label"`
}

// TypeOption is one selectable payment type.
type TypeOption struct {
	Type        payment.Type `json:"type"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	ValidFor    string       `json:"valid_for,omitempty"`
	Refundable  bool         `json:"refundable"`
	Selected    bool         `json:"selected"`
}

// Line is a labelled amount.
type Line struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// BreakdownView renders the payment breakdown step.
type BreakdownView struct {
	PropertyPrice Line `json:"property_price"`
	AmountDue     Line `json:"amount_due"`

	CustomDepositEnabled bool   `json:"custom_deposit_enabled"`
	CustomDepositHint    string `json:"custom_deposit_hint,omitempty"`

	HTBEligible        bool  `json:"htb_eligible"`
	HTBBenefit         *Line `json:"htb_benefit,omitempty"`
	NetDepositRequired *Line `json:"net_deposit_required,omitempty"`
}

// DetailsView renders the personal details step.
type DetailsView struct {
	FullName             string `json:"full_name"`
	Email                string `json:"email"`
	Phone                string `json:"phone"`
	AppointmentOffered   bool   `json:"appointment_offered"`
	AppointmentScheduled bool   `json:"appointment_scheduled"`
}

// MethodOption is one payment method, disabled when it cannot carry the amount.
type MethodOption struct {
	Method         payment.Method `json:"method"`
	Label          string         `json:"label"`
	Description    string         `json:"description"`
	ProcessingTime string         `json:"processing_time"`
	Fees           string         `json:"fees"`
	MaxAmount      string         `json:"max_amount,omitempty"`
	OverLimit      bool           `json:"over_limit"`
	Available      bool           `json:"available"`
	Selected       bool           `json:"selected"`
}

// Notice is an informational panel.
type Notice struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ConfirmationView renders the review step.
type ConfirmationView struct {
	PropertyTitle    string               `json:"property_title"`
	PropertyLocation string               `json:"property_location"`
	PropertyPrice    string               `json:"property_price"`
	PaymentType      string               `json:"payment_type"`
	Amount           string               `json:"amount"`
	PaymentMethod    string               `json:"payment_method"`
	ProcessingFee    string               `json:"processing_fee"`
	Contact          payment.BuyerDetails `json:"contact"`
	TermsAccepted    bool                 `json:"terms_accepted"`
	TermsText        string               `json:"terms_text"`
}

// SuccessView renders the completed purchase.
type SuccessView struct {
	Summary           string  `json:"summary"`
	ReservationNumber string  `json:"reservation_number,omitempty"`
	TransactionID     string  `json:"transaction_id"`
	AmountPaid        string  `json:"amount_paid"`
	PaymentType       string  `json:"payment_type"`
	ValidUntil        string  `json:"valid_until,omitempty"`
	Appointment       string  `json:"appointment,omitempty"`
	Message           *Notice `json:"message,omitempty"`
	EmailNotice       string  `json:"email_notice"`
}

// Present builds the view of s for the flow run by m.
func Present(m *Machine, s State) View {
	p := m.Property
	typeInfo, _ := payment.GetTypeInfo(s.Form.PaymentType)
	typeLabel := labelOr(typeInfo.Label, string(s.Form.PaymentType))

	v := View{
		Step:          s.Step,
		Heading:       "Property Purchase",
		PropertyTitle: p.Title,
		StepLabels:    stepLabels,
		Progress:      (s.Step.Index() + 1) * 20,
		Error:         s.Error,
	}

	if !s.Step.Locked() {
		v.Navigation = &Navigation{
			CanGoBack:     s.Step != StepPaymentType,
			CanContinue:   m.validate(s) == "",
			ContinueLabel: "Continue",
		}
		if s.Step == StepConfirmation {
			v.Navigation.ContinueLabel = "Process Payment"
		}
	}

	switch s.Step {
	case StepPaymentType:
		v.Title = "Choose Payment Type"
		v.Subtitle = "Select how you'd like to proceed with this property"
		for _, t := range m.Config.AllowedTypes {
			info, ok := payment.GetTypeInfo(t)
			if !ok {
				continue
			}
			v.PaymentTypes = append(v.PaymentTypes, TypeOption{
				Type:        t,
				Label:       info.Label,
				Description: info.Description,
				ValidFor:    info.ValidForLabel(),
				Refundable:  info.Refundable,
				Selected:    t == s.Form.PaymentType,
			})
		}

	case StepPaymentBreakdown:
		v.Title = "Payment Breakdown"
		v.Subtitle = fmt.Sprintf("Review the payment details for your %s", strings.ToLower(typeLabel))
		v.Breakdown = presentBreakdown(m, s, typeLabel)

	case StepPersonalDetails:
		v.Title = "Personal Details"
		v.Subtitle = "We need your details to process the payment"
		d := s.Form.PersonalDetails
		v.PersonalDetails = &DetailsView{
			FullName:             d.FullName,
			Email:                d.Email,
			Phone:                d.Phone,
			AppointmentOffered:   m.Config.RequiresAppointment,
			AppointmentScheduled: s.Form.AppointmentDate != nil,
		}

	case StepPaymentMethod:
		v.Title = "Payment Method"
		v.Subtitle = fmt.Sprintf("Choose how to pay %s", s.Amount.Format())
		v.PaymentMethods = presentMethods(s)
		v.EscrowNotice = escrowNotice(m.Config)

	case StepConfirmation:
		v.Title = "Confirm Payment"
		v.Subtitle = "Review your details before proceeding"
		methodInfo, _ := payment.GetMethodInfo(s.Form.PaymentMethod)
		refundable := "non-refundable"
		if typeInfo.Refundable {
			refundable = "refundable"
		}
		v.Confirmation = &ConfirmationView{
			PropertyTitle:    p.Title,
			PropertyLocation: p.Location,
			PropertyPrice:    p.Price.Format(),
			PaymentType:      typeLabel,
			Amount:           s.Amount.Format(),
			PaymentMethod:    labelOr(methodInfo.Label, string(s.Form.PaymentMethod)),
			ProcessingFee:    methodInfo.Fees,
			Contact:          s.Form.PersonalDetails,
			TermsAccepted:    s.Form.TermsAccepted,
			TermsText: fmt.Sprintf("I agree to the Terms & Conditions and Privacy Policy. "+
				"I understand that this payment is %s.", refundable),
		}

	case StepProcessing:
		v.Title = "Processing Payment"
		v.Subtitle = "Please wait while we process your payment securely..."

	case StepSuccess:
		v.Title = "Payment Successful!"
		v.Subtitle = fmt.Sprintf("Your %s of %s has been processed", strings.ToLower(typeLabel), s.Amount.Format())
		v.Success = presentSuccess(s, typeLabel)
	}

	return v
}

func presentBreakdown(m *Machine, s State, typeLabel string) *BreakdownView {
	b := s.Breakdown
	view := &BreakdownView{
		PropertyPrice: Line{Label: "Property Price", Amount: b.PropertyPrice.Format()},
		AmountDue:     Line{Label: typeLabel, Amount: s.Amount.Format()},
		HTBEligible:   m.Property.HTBEligible,
	}

	if s.Form.PaymentType == payment.TypeBookingDeposit && m.Config.AllowCustomDeposit {
		view.CustomDepositEnabled = true
		standard := m.Property.Price.Percentage(payment.BookingDepositBP)
		view.CustomDepositHint = fmt.Sprintf("Recommended: %s (5%%)", standard.Format())
	}

	if m.Property.HTBEligible {
		view.HTBBenefit = &Line{Label: "HTB Benefit Available", Amount: b.HTBBenefit.Format()}
		view.NetDepositRequired = &Line{Label: "Your Net Deposit Required", Amount: b.NetDepositRequired.Format()}
	}

	return view
}

func presentMethods(s State) []MethodOption {
	options := make([]MethodOption, 0, len(payment.Methods))
	for _, method := range payment.Methods {
		info, _ := payment.GetMethodInfo(method)
		opt := MethodOption{
			Method:         method,
			Label:          info.Label,
			Description:    info.Description,
			ProcessingTime: info.ProcessingTime,
			Fees:           info.Fees,
			Available:      info.AvailableFor(s.Amount),
			Selected:       method == s.Form.PaymentMethod,
		}
		if limit, ok := info.MaxAmount(s.Amount.Currency); ok {
			opt.MaxAmount = limit.Format()
			opt.OverLimit = s.Amount.GreaterThan(limit)
		}
		options = append(options, opt)
	}
	return options
}

func escrowNotice(cfg Config) *Notice {
	if !cfg.EscrowRequired {
		return nil
	}
	return &Notice{
		Title: "Escrow Protection",
		Body:  "Your payment will be held in a secure escrow account until completion milestones are met.",
	}
}

func presentSuccess(s State, typeLabel string) *SuccessView {
	view := &SuccessView{
		PaymentType: typeLabel,
		EmailNotice: fmt.Sprintf("A confirmation email has been sent to %s", s.Form.PersonalDetails.Email),
	}

	if r := s.Result; r != nil {
		view.Summary = "Reservation Confirmed"
		view.ReservationNumber = r.ReservationNumber
		view.TransactionID = r.TransactionID
		view.AmountPaid = r.Amount.Format()
		if r.ReservationExpiry != nil {
			view.ValidUntil = r.ReservationExpiry.Format(dateLayout)
		}
	}

	if at := s.Form.AppointmentDate; at != nil {
		view.Appointment = formatAppointment(*at)
	}

	switch s.Form.PaymentType {
	case payment.TypeReservationFee:
		view.Message = &Notice{
			Title: "Property Reserved for 14 Days",
			Body: "You have 14 days to complete your purchase. We'll contact you within 24 hours " +
				"to arrange your viewing and guide you through the next steps.",
		}
	case payment.TypeBookingDeposit:
		view.Message = &Notice{
			Title: "Booking Confirmed",
			Body: "Your booking deposit has secured this property. Our sales team will contact you " +
				"to arrange contract signing and completion details.",
		}
	}

	return view
}

func formatAppointment(at time.Time) string {
	return at.Format(dateLayout) + " at " + at.Format(timeLayout)
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}
