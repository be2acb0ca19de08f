package transfer

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

func TestInitiateRejectsSameAccount(t *testing.T) {
	id := uuid.New()
	acc := uuid.New()
	_, err := Initiate(id, acc, acc, usd(100), "", time.Now())
	require.ErrorIs(t, err, apierrors.ErrSameAccountTransfer)
}

func TestInitiateRejectsNonPositiveAmount(t *testing.T) {
	_, err := Initiate(uuid.New(), uuid.New(), uuid.New(), usd(0), "", time.Now())
	require.ErrorIs(t, err, apierrors.ErrInvalidTransferAmount)
}

func TestInitiateGeneratesReferenceAndEvent(t *testing.T) {
	now := time.Now()
	tr, err := Initiate(uuid.New(), uuid.New(), uuid.New(), usd(500), "rent", now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tr.Status)
	assert.Regexp(t, `^TXN-\d{8}-[0-9a-f]{12}$`, tr.Reference)

	events := tr.ReleaseEvents()
	require.Len(t, events, 1)
	_, ok := events[0].(Initiated)
	assert.True(t, ok)
}

func TestHappyPathStateMachine(t *testing.T) {
	now := time.Now()
	tr, _ := Initiate(uuid.New(), uuid.New(), uuid.New(), usd(500), "", now)
	tr.ReleaseEvents()

	require.NoError(t, tr.MarkProcessing(now))
	assert.Equal(t, StatusProcessing, tr.Status)

	require.NoError(t, tr.Complete(now))
	assert.Equal(t, StatusCompleted, tr.Status)
	require.NotNil(t, tr.CompletedAt)

	events := tr.ReleaseEvents()
	require.Len(t, events, 1)
	_, ok := events[0].(Completed)
	assert.True(t, ok)
}

func TestFailPath(t *testing.T) {
	now := time.Now()
	tr, _ := Initiate(uuid.New(), uuid.New(), uuid.New(), usd(500), "", now)
	tr.ReleaseEvents()
	require.NoError(t, tr.MarkProcessing(now))

	require.NoError(t, tr.Fail(apierrors.CodeInsufficientFunds, "insufficient funds", now))
	assert.Equal(t, StatusFailed, tr.Status)
	require.NotNil(t, tr.FailedAt)
	assert.Equal(t, apierrors.CodeInsufficientFunds, tr.FailureCode)
}

func TestIllegalTransitionsFail(t *testing.T) {
	now := time.Now()
	tr, _ := Initiate(uuid.New(), uuid.New(), uuid.New(), usd(500), "", now)

	// Can't complete directly from pending.
	err := tr.Complete(now)
	require.ErrorIs(t, err, apierrors.ErrInvalidTransferState)

	// Can't reverse before completion.
	err = tr.Reverse(now)
	require.ErrorIs(t, err, apierrors.ErrInvalidTransferState)
}

func TestReverseOnlyFromCompleted(t *testing.T) {
	now := time.Now()
	tr, _ := Initiate(uuid.New(), uuid.New(), uuid.New(), usd(500), "", now)
	require.NoError(t, tr.MarkProcessing(now))
	require.NoError(t, tr.Complete(now))
	tr.ReleaseEvents()

	require.NoError(t, tr.Reverse(now))
	assert.Equal(t, StatusReversed, tr.Status)

	err := tr.Reverse(now)
	require.ErrorIs(t, err, apierrors.ErrInvalidTransferState)
}

func TestVersionIncrementsPerTransition(t *testing.T) {
	now := time.Now()
	tr, _ := Initiate(uuid.New(), uuid.New(), uuid.New(), usd(500), "", now)
	start := tr.Version
	require.NoError(t, tr.MarkProcessing(now))
	assert.Equal(t, start+1, tr.Version)
	require.NoError(t, tr.Complete(now))
	assert.Equal(t, start+2, tr.Version)
}
