package payment

import (
	"errors"
	"fmt"

	"propflow/internal/common/money"
)

// ErrInvalidAmount is wrapped by every amount validation failure.
var ErrInvalidAmount = errors.New("invalid payment amount")

// AmountError carries a user-facing explanation of a rejected amount.
type AmountError struct {
	Type    Type
	Amount  money.Money
	Message string
}

func (e *AmountError) Error() string { return e.Message }

func (e *AmountError) Unwrap() error { return ErrInvalidAmount }

// ValidateAmount checks an amount against the property price and the bounds of
// the payment type.
func ValidateAmount(t Type, amount, price money.Money) error {
	info, ok := GetTypeInfo(t)
	if !ok {
		return &AmountError{Type: t, Amount: amount, Message: fmt.Sprintf("Unknown payment type %q", t)}
	}

	if !amount.IsPositive() {
		return &AmountError{Type: t, Amount: amount, Message: "Payment amount must be greater than zero"}
	}
	if amount.AmountMinor > price.AmountMinor {
		return &AmountError{Type: t, Amount: amount, Message: "Payment amount cannot exceed the property price"}
	}

	if info.MaxAmountMajor > 0 {
		limit := money.FromMajor(info.MaxAmountMajor, amount.Currency)
		if amount.AmountMinor > limit.AmountMinor {
			return &AmountError{Type: t, Amount: amount,
				Message: fmt.Sprintf("%s cannot exceed %s", info.Label, limit.Format())}
		}
	}
	if info.MinPriceBP > 0 {
		floor := price.Percentage(info.MinPriceBP)
		if amount.AmountMinor < floor.AmountMinor {
			return &AmountError{Type: t, Amount: amount,
				Message: fmt.Sprintf("%s must be at least %s (%s of the property price)", info.Label, floor.Format(), percentLabel(info.MinPriceBP))}
		}
	}
	if info.MaxPriceBP > 0 {
		ceiling := price.Percentage(info.MaxPriceBP)
		if amount.AmountMinor > ceiling.AmountMinor {
			return &AmountError{Type: t, Amount: amount,
				Message: fmt.Sprintf("%s cannot exceed %s (%s of the property price)", info.Label, ceiling.Format(), percentLabel(info.MaxPriceBP))}
		}
	}

	return nil
}

// ErrMethodUnavailable is wrapped by every payment method validation failure.
var ErrMethodUnavailable = errors.New("payment method unavailable")

// MethodError explains why a payment method cannot be used.
type MethodError struct {
	Method  Method
	Message string
}

func (e *MethodError) Error() string { return e.Message }

func (e *MethodError) Unwrap() error { return ErrMethodUnavailable }

// ValidateMethod checks that a method exists and can carry the amount.
func ValidateMethod(m Method, amount money.Money) error {
	info, ok := GetMethodInfo(m)
	if !ok {
		return &MethodError{Method: m, Message: fmt.Sprintf("Unknown payment method %q", m)}
	}
	if !info.AvailableFor(amount) {
		limit, _ := info.MaxAmount(amount.Currency)
		return &MethodError{Method: m,
			Message: fmt.Sprintf("%s is not available for payments above %s", info.Label, limit.Format())}
	}
	return nil
}

func percentLabel(bp int64) string {
	if bp%100 == 0 {
		return fmt.Sprintf("%d%%", bp/100)
	}
	return fmt.Sprintf("%.2f%%", float64(bp)/100)
}
