package payment_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"propflow/internal/common/money"
	"propflow/internal/payment"
)

func TestValidateAmount(t *testing.T) {
	price := eur(350000)

	tests := []struct {
		name    string
		typ     payment.Type
		amount  money.Money
		wantErr string
	}{
		{"reservation fee ok", payment.TypeReservationFee, eur(3500), ""},
		{"zero", payment.TypeReservationFee, eur(0), "Payment amount must be greater than zero"},
		{"above price", payment.TypeBookingDeposit, eur(350001), "Payment amount cannot exceed the property price"},
		{"reservation fee above cap", payment.TypeReservationFee, eur(10001), "Reservation Fee cannot exceed €10,000"},
		{"custom booking deposit", payment.TypeBookingDeposit, eur(20000), ""},
		{"booking deposit too small", payment.TypeBookingDeposit, eur(3000), "Booking Deposit must be at least €3,500 (1% of the property price)"},
		{"booking deposit too large", payment.TypeBookingDeposit, eur(80000), "Booking Deposit cannot exceed €70,000 (20% of the property price)"},
		{"contractual deposit", payment.TypeContractualDeposit, eur(35000), ""},
		{"unknown type", payment.Type("LAND_TAX"), eur(100), `Unknown payment type "LAND_TAX"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := payment.ValidateAmount(tt.typ, tt.amount, price)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
			assert.True(t, errors.Is(err, payment.ErrInvalidAmount))
		})
	}
}

func TestMethodLimitBoundary(t *testing.T) {
	card, _ := payment.GetMethodInfo(payment.MethodCreditCard)
	limit, ok := card.MaxAmount(money.EUR)
	assert.True(t, ok)

	assert.True(t, card.AvailableFor(limit))
	assert.False(t, card.AvailableFor(money.New(limit.AmountMinor+1, money.EUR)))

	assert.NoError(t, payment.ValidateMethod(payment.MethodCreditCard, limit))
	assert.EqualError(t,
		payment.ValidateMethod(payment.MethodCreditCard, money.New(limit.AmountMinor+1, money.EUR)),
		"Credit Card is not available for payments above €10,000")

	transfer, _ := payment.GetMethodInfo(payment.MethodBankTransfer)
	assert.True(t, transfer.AvailableFor(eur(5000000)))

	assert.Error(t, payment.ValidateMethod("CHEQUE", eur(1)))
}
