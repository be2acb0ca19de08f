package account

import (
	"testing"
	"time"

	"ledgercore/internal/domain/apierrors"
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

func TestOpenEmitsCreated(t *testing.T) {
	now := time.Now()
	id := uuid.New()
	acc, err := Open(id, "Ada Lovelace", usd(1000), now)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, acc.Status)
	assert.Equal(t, 0, acc.Version)

	events := acc.ReleaseEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(Created)
	require.True(t, ok)
	assert.Equal(t, id, created.AccountID)
	assert.Empty(t, acc.ReleaseEvents())
}

func TestOpenRejectsBlankOwner(t *testing.T) {
	_, err := Open(uuid.New(), "", usd(0), time.Now())
	require.Error(t, err)
}

func TestCloseRequiresZeroBalance(t *testing.T) {
	acc, _ := Open(uuid.New(), "Ada", usd(50), time.Now())
	err := acc.Close(time.Now())
	require.ErrorIs(t, err, apierrors.ErrNonZeroBalanceOnClose)
}

func TestCloseIsTerminal(t *testing.T) {
	acc, _ := Open(uuid.New(), "Ada", usd(0), time.Now())
	require.NoError(t, acc.Close(time.Now()))
	err := acc.Close(time.Now())
	require.ErrorIs(t, err, apierrors.ErrInvalidAccountState)
}

func TestFreezeUnfreezeRoundTrip(t *testing.T) {
	acc, _ := Open(uuid.New(), "Ada", usd(0), time.Now())
	require.NoError(t, acc.Freeze(time.Now()))
	assert.Equal(t, StatusFrozen, acc.Status)
	require.NoError(t, acc.Unfreeze(time.Now()))
	assert.Equal(t, StatusActive, acc.Status)
}

func TestFreezeFromFrozenFails(t *testing.T) {
	acc, _ := Open(uuid.New(), "Ada", usd(0), time.Now())
	require.NoError(t, acc.Freeze(time.Now()))
	err := acc.Freeze(time.Now())
	require.ErrorIs(t, err, apierrors.ErrInvalidAccountState)
}

func TestVersionIncrementsExactlyOncePerMutation(t *testing.T) {
	acc, _ := Open(uuid.New(), "Ada", usd(1000), time.Now())
	start := acc.Version
	require.NoError(t, acc.Freeze(time.Now()))
	assert.Equal(t, start+1, acc.Version)
	require.NoError(t, acc.Unfreeze(time.Now()))
	assert.Equal(t, start+2, acc.Version)
}
