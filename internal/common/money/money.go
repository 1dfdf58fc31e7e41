package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency represents an ISO 4217 currency code
type Currency string

const (
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	USD Currency = "USD"
)

// CurrencyInfo contains metadata about a currency
type CurrencyInfo struct {
	Code       Currency
	MinorUnits int // Number of decimal places
	Symbol     string
}

var currencies = map[Currency]CurrencyInfo{
	EUR: {Code: EUR, MinorUnits: 2, Symbol: "€"},
	GBP: {Code: GBP, MinorUnits: 2, Symbol: "£"},
	USD: {Code: USD, MinorUnits: 2, Symbol: "$"},
}

func infoFor(c Currency) CurrencyInfo {
	if info, ok := currencies[c]; ok {
		return info
	}
	return CurrencyInfo{Code: c, MinorUnits: 2}
}

// ErrCurrencyMismatch is returned when combining amounts in different currencies
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money represents a monetary amount in minor units (cents, pence, etc.)
type Money struct {
	AmountMinor int64    `json:"amount_minor"`
	Currency    Currency `json:"currency"`
}

// New creates a new Money value from minor units
func New(amountMinor int64, currency Currency) Money {
	return Money{AmountMinor: amountMinor, Currency: currency}
}

// FromMajor creates Money from whole major units (e.g. 350000 euro)
func FromMajor(amountMajor int64, currency Currency) Money {
	factor := int64(math.Pow(10, float64(infoFor(currency).MinorUnits)))
	return Money{AmountMinor: amountMajor * factor, Currency: currency}
}

// Zero returns a zero amount for a currency
func Zero(currency Currency) Money {
	return Money{Currency: currency}
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.AmountMinor == 0
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.AmountMinor > 0
}

// Sub subtracts two money values (must be same currency)
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{AmountMinor: m.AmountMinor - other.AmountMinor, Currency: m.Currency}, nil
}

// Percentage calculates a percentage (basis points / 10000), rounding half away from zero
func (m Money) Percentage(basisPoints int64) Money {
	return m.MulRate(decimal.New(basisPoints, -4))
}

// MulRate multiplies by a decimal rate and rounds to the nearest minor unit
func (m Money) MulRate(rate decimal.Decimal) Money {
	v := decimal.NewFromInt(m.AmountMinor).Mul(rate).Round(0)
	return Money{AmountMinor: v.IntPart(), Currency: m.Currency}
}

// RateOf returns m / base as a decimal rate; zero when base is zero
func (m Money) RateOf(base Money) decimal.Decimal {
	if base.AmountMinor == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(m.AmountMinor).Div(decimal.NewFromInt(base.AmountMinor))
}

// Min returns the smaller of two amounts; currency is taken from m
func Min(m, other Money) Money {
	if other.AmountMinor < m.AmountMinor {
		return Money{AmountMinor: other.AmountMinor, Currency: m.Currency}
	}
	return m
}

// Max returns the larger of two amounts; currency is taken from m
func Max(m, other Money) Money {
	if other.AmountMinor > m.AmountMinor {
		return Money{AmountMinor: other.AmountMinor, Currency: m.Currency}
	}
	return m
}

// Compare returns -1, 0, or 1
func (m Money) Compare(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	switch {
	case m.AmountMinor < other.AmountMinor:
		return -1, nil
	case m.AmountMinor > other.AmountMinor:
		return 1, nil
	}
	return 0, nil
}

// GreaterThan checks if m > other
func (m Money) GreaterThan(other Money) bool {
	cmp, err := m.Compare(other)
	return err == nil && cmp > 0
}

// ToMajor converts to major units as float
func (m Money) ToMajor() float64 {
	divisor := math.Pow(10, float64(infoFor(m.Currency).MinorUnits))
	return float64(m.AmountMinor) / divisor
}

var printer = message.NewPrinter(language.English)

// Format renders the amount rounded to whole major units with digit grouping, e.g. €350,000
func (m Money) Format() string {
	info := infoFor(m.Currency)
	major := int64(math.Round(m.ToMajor()))
	sign := ""
	if major < 0 {
		sign = "-"
		major = -major
	}
	if info.Symbol == "" {
		return printer.Sprintf("%s%d %s", sign, major, m.Currency)
	}
	return printer.Sprintf("%s%s%d", sign, info.Symbol, major)
}

// String returns a human-readable representation
func (m Money) String() string {
	info, ok := currencies[m.Currency]
	if !ok {
		return fmt.Sprintf("%d %s (minor)", m.AmountMinor, m.Currency)
	}
	format := fmt.Sprintf("%%.%df", info.MinorUnits)
	return fmt.Sprintf("%s"+format, info.Symbol, m.ToMajor())
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AmountMinor int64  `json:"amount_minor"`
		Currency    string `json:"currency"`
	}{
		AmountMinor: m.AmountMinor,
		Currency:    string(m.Currency),
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		AmountMinor int64  `json:"amount_minor"`
		Currency    string `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.AmountMinor = v.AmountMinor
	m.Currency = Currency(v.Currency)
	return nil
}
