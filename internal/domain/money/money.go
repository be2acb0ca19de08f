// Package money implements the minor-unit value type shared by every
// ledger-facing component: accounts, ledger entries, and transfers all
// carry a Money rather than a bare int64 so currency checks happen at
// the type boundary instead of being re-derived at every call site.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInsufficientFunds is returned by Sub when the result would be negative.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrBalanceOverflow is returned by Add when the result would exceed
// what an int64 minor-unit amount can represent.
var ErrBalanceOverflow = errors.New("balance overflow")

// ErrCurrencyMismatch is returned when two Money values with different
// currencies are combined.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// ErrInvalidCurrency is returned for a currency code that isn't exactly
// three uppercase letters.
var ErrInvalidCurrency = errors.New("invalid currency code")

// ErrNegativeAmount is returned when a negative minor-unit amount is
// supplied where only non-negative amounts are allowed.
var ErrNegativeAmount = errors.New("amount must be non-negative")

// Money is a non-negative integer amount in minor units of a
// three-letter uppercase currency code (e.g. 100 USD == $1.00).
type Money struct {
	minorUnits int64
	currency   string
}

// New constructs a Money value, validating the currency code and
// rejecting negative amounts.
func New(minorUnits int64, currency string) (Money, error) {
	if !isValidCurrency(currency) {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	if minorUnits < 0 {
		return Money{}, ErrNegativeAmount
	}
	return Money{minorUnits: minorUnits, currency: currency}, nil
}

// Zero returns a zero-value Money in the given currency.
func Zero(currency string) (Money, error) {
	return New(0, currency)
}

func isValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// MinorUnits returns the raw integer amount.
func (m Money) MinorUnits() int64 { return m.minorUnits }

// Currency returns the three-letter currency code.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.minorUnits == 0 }

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.minorUnits > 0 }

// Equal reports whether two Money values have the same amount and currency.
func (m Money) Equal(other Money) bool {
	return m.minorUnits == other.minorUnits && m.currency == other.currency
}

// SameCurrency reports whether two Money values share a currency.
func (m Money) SameCurrency(other Money) bool {
	return m.currency == other.currency
}

// Add returns m+other, failing on currency mismatch or int64 overflow.
func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, ErrCurrencyMismatch
	}
	sum := m.minorUnits + other.minorUnits
	if sum < m.minorUnits || sum < other.minorUnits {
		return Money{}, ErrBalanceOverflow
	}
	return Money{minorUnits: sum, currency: m.currency}, nil
}

// Sub returns m-other, failing on currency mismatch or a negative result.
func (m Money) Sub(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, ErrCurrencyMismatch
	}
	if other.minorUnits > m.minorUnits {
		return Money{}, ErrInsufficientFunds
	}
	return Money{minorUnits: m.minorUnits - other.minorUnits, currency: m.currency}, nil
}

// Cmp compares two same-currency Money values: -1, 0, or 1.
// Panics if currencies differ — callers must check SameCurrency first
// when comparison across currencies is possible.
func (m Money) Cmp(other Money) int {
	if !m.SameCurrency(other) {
		panic("money: Cmp across different currencies")
	}
	switch {
	case m.minorUnits < other.minorUnits:
		return -1
	case m.minorUnits > other.minorUnits:
		return 1
	default:
		return 0
	}
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.minorUnits, m.currency)
}

type moneyJSON struct {
	MinorUnits int64  `json:"minor_units"`
	Currency   string `json:"currency"`
}

// MarshalJSON encodes Money as its minor-units/currency pair, since the
// type's fields are otherwise unexported to keep construction routed
// through New.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{MinorUnits: m.minorUnits, Currency: m.currency})
}

// UnmarshalJSON decodes the pair produced by MarshalJSON without
// re-running currency validation, mirroring Hydrate-style trust of
// already-persisted or already-validated data.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.minorUnits = v.MinorUnits
	m.currency = v.Currency
	return nil
}
