// Package payment holds the fee schedule for property purchases: payment
// types and methods, the payment breakdown calculator, amount validation and
// the JSON contract spoken by the checkout backend.
package payment

import (
	"fmt"
	"time"

	"propflow/internal/common/money"
)

// Type identifies what the buyer is paying for.
type Type string

const (
	TypeReservationFee     Type = "RESERVATION_FEE"
	TypeBookingDeposit     Type = "BOOKING_DEPOSIT"
	TypeContractualDeposit Type = "CONTRACTUAL_DEPOSIT"
)

// Types lists payment types in presentation order.
var Types = []Type{TypeReservationFee, TypeBookingDeposit, TypeContractualDeposit}

// Valid reports whether t is a known payment type.
func (t Type) Valid() bool {
	_, ok := typeInfo[t]
	return ok
}

// Method identifies how the buyer pays.
type Method string

const (
	MethodCreditCard   Method = "CREDIT_CARD"
	MethodDebitCard    Method = "DEBIT_CARD"
	MethodOpenBanking  Method = "OPEN_BANKING"
	MethodBankTransfer Method = "BANK_TRANSFER"
)

// Methods lists payment methods in presentation order.
var Methods = []Method{MethodCreditCard, MethodDebitCard, MethodOpenBanking, MethodBankTransfer}

// DefaultMethod is preselected for every new purchase.
const DefaultMethod = MethodCreditCard

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	_, ok := methodInfo[m]
	return ok
}

// Status is the outcome of a payment.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// TypeInfo describes a payment type.
type TypeInfo struct {
	Type        Type          `json:"type"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Refundable  bool          `json:"refundable"`
	ValidFor    time.Duration `json:"valid_for,omitempty"` // zero means no hold window

	// Bounds enforced by ValidateAmount. Percentages are basis points of the
	// property price; zero disables the bound.
	MaxAmountMajor int64 `json:"-"`
	MinPriceBP     int64 `json:"-"`
	MaxPriceBP     int64 `json:"-"`
}

// ValidForLabel renders the validity window, e.g. "14 days".
func (i TypeInfo) ValidForLabel() string {
	if i.ValidFor <= 0 {
		return ""
	}
	days := int(i.ValidFor / day)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

const day = 24 * time.Hour

// ReservationHold is how long a paid reservation holds a property.
const ReservationHold = 14 * day

var typeInfo = map[Type]TypeInfo{
	TypeReservationFee: {
		Type:           TypeReservationFee,
		Label:          "Reservation Fee",
		Description:    "Secure the property with a small refundable fee while you arrange financing.",
		Refundable:     true,
		ValidFor:       ReservationHold,
		MaxAmountMajor: 10000,
	},
	TypeBookingDeposit: {
		Type:        TypeBookingDeposit,
		Label:       "Booking Deposit",
		Description: "Book the property with a deposit that is credited against the purchase price.",
		Refundable:  false,
		ValidFor:    30 * day,
		MinPriceBP:  100,
		MaxPriceBP:  2000,
	},
	TypeContractualDeposit: {
		Type:        TypeContractualDeposit,
		Label:       "Contractual Deposit",
		Description: "Pay the contractual deposit due on signing contracts.",
		Refundable:  false,
		MinPriceBP:  500,
		MaxPriceBP:  2000,
	},
}

// GetTypeInfo looks up a payment type. Unknown types report ok=false.
func GetTypeInfo(t Type) (TypeInfo, bool) {
	info, ok := typeInfo[t]
	return info, ok
}

// MethodInfo describes a payment method.
type MethodInfo struct {
	Method         Method `json:"method"`
	Label          string `json:"label"`
	Description    string `json:"description"`
	ProcessingTime string `json:"processing_time"`
	Fees           string `json:"fees"`
	MaxAmountMajor int64  `json:"max_amount_major,omitempty"` // zero means unlimited
}

// MaxAmount returns the method's transaction limit in the given currency.
func (i MethodInfo) MaxAmount(currency money.Currency) (money.Money, bool) {
	if i.MaxAmountMajor <= 0 {
		return money.Money{}, false
	}
	return money.FromMajor(i.MaxAmountMajor, currency), true
}

// AvailableFor reports whether the method can carry amount.
// A method is available when it has no limit or the amount is at or below it.
func (i MethodInfo) AvailableFor(amount money.Money) bool {
	limit, ok := i.MaxAmount(amount.Currency)
	if !ok {
		return true
	}
	return amount.AmountMinor <= limit.AmountMinor
}

var methodInfo = map[Method]MethodInfo{
	MethodCreditCard: {
		Method:         MethodCreditCard,
		Label:          "Credit Card",
		Description:    "Visa, Mastercard or American Express.",
		ProcessingTime: "Instant",
		Fees:           "1.5% card processing fee",
		MaxAmountMajor: 10000,
	},
	MethodDebitCard: {
		Method:         MethodDebitCard,
		Label:          "Debit Card",
		Description:    "Pay directly from your bank account with a debit card.",
		ProcessingTime: "Instant",
		Fees:           "No fees",
		MaxAmountMajor: 25000,
	},
	MethodOpenBanking: {
		Method:         MethodOpenBanking,
		Label:          "Open Banking",
		Description:    "Authorise the payment in your banking app.",
		ProcessingTime: "Within minutes",
		Fees:           "No fees",
		MaxAmountMajor: 100000,
	},
	MethodBankTransfer: {
		Method:         MethodBankTransfer,
		Label:          "Bank Transfer",
		Description:    "Transfer the funds to our client account.",
		ProcessingTime: "1-3 business days",
		Fees:           "No fees",
	},
}

// GetMethodInfo looks up a payment method. Unknown methods report ok=false.
func GetMethodInfo(m Method) (MethodInfo, bool) {
	info, ok := methodInfo[m]
	return info, ok
}
