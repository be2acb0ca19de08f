package ledger

import (
	"testing"
	"time"

	"ledgercore/internal/domain/money"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(amount int64) money.Money {
	m, err := money.New(amount, "USD")
	if err != nil {
		panic(err)
	}
	return m
}

func TestNewRejectsNonPositiveAmount(t *testing.T) {
	now := time.Now()
	_, err := New(uuid.New(), uuid.New(), uuid.New(), uuid.New(), EntryDebit, TransferTypeTransfer, usd(0), usd(100), now, now)
	require.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestSignedAmount(t *testing.T) {
	now := time.Now()
	credit, err := New(uuid.New(), uuid.New(), uuid.New(), uuid.New(), EntryCredit, TransferTypeTransfer, usd(500), usd(1500), now, now)
	require.NoError(t, err)
	assert.Equal(t, int64(500), credit.SignedAmount())

	debit, err := New(uuid.New(), uuid.New(), uuid.New(), uuid.New(), EntryDebit, TransferTypeTransfer, usd(500), usd(1000), now, now)
	require.NoError(t, err)
	assert.Equal(t, int64(-500), debit.SignedAmount())
}
