package payment

import (
	"github.com/shopspring/decimal"

	"propflow/internal/common/money"
)

// Fee schedule, in basis points of the property price and whole major units.
const (
	ReservationFeeBP       = 100  // 1%
	ReservationFeeCapMajor = 5000 // €5,000
	BookingDepositBP       = 500  // 5%
	ContractualDepositBP   = 1000 // 10%
	HTBBenefitBP           = 1000 // 10%
	HTBBenefitCapMajor     = 30000
)

// Breakdown is the set of amounts payable for a property.
type Breakdown struct {
	PropertyPrice      money.Money `json:"property_price"`
	ReservationFee     money.Money `json:"reservation_fee"`
	BookingDeposit     money.Money `json:"booking_deposit"`
	ContractualDeposit money.Money `json:"contractual_deposit"`
	HTBBenefit         money.Money `json:"htb_benefit"`
	NetDepositRequired money.Money `json:"net_deposit_required"`
}

// ComputeBreakdown derives every payable amount from the property price.
// customDepositRate, when non-nil, replaces the standard booking deposit
// percentage. The function is pure.
func ComputeBreakdown(price money.Money, htbEligible bool, customDepositRate *decimal.Decimal) Breakdown {
	currency := price.Currency

	reservationFee := money.Min(
		price.Percentage(ReservationFeeBP),
		money.FromMajor(ReservationFeeCapMajor, currency),
	)

	bookingDeposit := price.Percentage(BookingDepositBP)
	if customDepositRate != nil {
		bookingDeposit = price.MulRate(*customDepositRate)
	}

	contractualDeposit := price.Percentage(ContractualDepositBP)

	htbBenefit := money.Zero(currency)
	if htbEligible {
		htbBenefit = money.Min(
			price.Percentage(HTBBenefitBP),
			money.FromMajor(HTBBenefitCapMajor, currency),
		)
	}

	// Both amounts derive from price, so the currencies always match.
	net, _ := contractualDeposit.Sub(htbBenefit)

	return Breakdown{
		PropertyPrice:      price,
		ReservationFee:     reservationFee,
		BookingDeposit:     bookingDeposit,
		ContractualDeposit: contractualDeposit,
		HTBBenefit:         htbBenefit,
		NetDepositRequired: money.Max(net, money.Zero(currency)),
	}
}

// AmountFor selects the amount charged for a payment type. A non-zero custom
// amount overrides the booking deposit. Unknown types fall back to the
// reservation fee.
func (b Breakdown) AmountFor(t Type, custom money.Money) money.Money {
	switch t {
	case TypeReservationFee:
		return b.ReservationFee
	case TypeBookingDeposit:
		if !custom.IsZero() {
			return custom
		}
		return b.BookingDeposit
	case TypeContractualDeposit:
		return b.ContractualDeposit
	default:
		return b.ReservationFee
	}
}
