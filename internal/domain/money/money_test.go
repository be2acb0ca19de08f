package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	_, err := New(100, "usd")
	require.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = New(-1, "USD")
	require.ErrorIs(t, err, ErrNegativeAmount)

	m, err := New(500, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(500), m.MinorUnits())
	assert.Equal(t, "USD", m.Currency())
}

func TestAddOverflow(t *testing.T) {
	a, _ := New(math.MaxInt64, "USD")
	b, _ := New(1, "USD")
	_, err := a.Add(b)
	require.ErrorIs(t, err, ErrBalanceOverflow)
}

func TestAddCurrencyMismatch(t *testing.T) {
	a, _ := New(100, "USD")
	b, _ := New(100, "GBP")
	_, err := a.Add(b)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestSubInsufficientFunds(t *testing.T) {
	a, _ := New(100, "USD")
	b, _ := New(200, "USD")
	_, err := a.Sub(b)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSubExact(t *testing.T) {
	a, _ := New(100, "USD")
	result, err := a.Sub(a)
	require.NoError(t, err)
	assert.True(t, result.IsZero())
}

func TestEqualAndCmp(t *testing.T) {
	a, _ := New(100, "USD")
	b, _ := New(100, "USD")
	c, _ := New(200, "USD")
	assert.True(t, a.Equal(b))
	assert.Equal(t, 0, a.Cmp(b))
	assert.Equal(t, -1, a.Cmp(c))
	assert.Equal(t, 1, c.Cmp(a))
}
