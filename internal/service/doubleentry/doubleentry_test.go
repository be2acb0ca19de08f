package doubleentry

import (
	"context"
	"math"
	"testing"
	"time"

	"ledgercore/internal/domain/apierrors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store double that records lock order and
// lets the test pre-seed account states, exercising Execute without a
// real database.
type fakeStore struct {
	accounts  map[uuid.UUID]AccountSnapshot
	lockOrder []uuid.UUID
}

func newFakeStore(accounts ...AccountSnapshot) *fakeStore {
	s := &fakeStore{accounts: make(map[uuid.UUID]AccountSnapshot)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *fakeStore) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (AccountSnapshot, error) {
	s.lockOrder = append(s.lockOrder, id)
	acc, ok := s.accounts[id]
	if !ok {
		return AccountSnapshot{}, apierrors.ErrAccountNotFound
	}
	return acc, nil
}

func (s *fakeStore) ApplyDebit(ctx context.Context, tx pgx.Tx, id uuid.UUID, minorUnits int64) (int64, error) {
	acc := s.accounts[id]
	acc.MinorUnits -= minorUnits
	s.accounts[id] = acc
	return acc.MinorUnits, nil
}

func (s *fakeStore) ApplyCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, minorUnits int64) (int64, error) {
	acc := s.accounts[id]
	acc.MinorUnits += minorUnits
	s.accounts[id] = acc
	return acc.MinorUnits, nil
}

func idPair() (uuid.UUID, uuid.UUID) {
	a, b := uuid.New(), uuid.New()
	for a.String() < b.String() {
		a, b = uuid.New(), uuid.New()
	}
	// a.String() > b.String() now, so a is "source-looks-later"
	return a, b
}

func TestExecuteLocksInCanonicalOrderRegardlessOfDirection(t *testing.T) {
	higher, lower := idPair() // higher.String() > lower.String()
	store := newFakeStore(
		AccountSnapshot{ID: higher, MinorUnits: 1000, Currency: "USD", Status: "active"},
		AccountSnapshot{ID: lower, MinorUnits: 1000, Currency: "USD", Status: "active"},
	)

	// source = higher, destination = lower: lock order must still be
	// [lower, higher] because the service sorts by ID regardless of
	// source/destination role.
	_, err := Execute(context.Background(), nil, store, higher, lower, 100, "USD", uuid.New(), time.Now())
	require.NoError(t, err)
	require.Len(t, store.lockOrder, 2)
	assert.Equal(t, lower, store.lockOrder[0])
	assert.Equal(t, higher, store.lockOrder[1])
}

func TestExecuteInsufficientFunds(t *testing.T) {
	src, dst := uuid.New(), uuid.New()
	store := newFakeStore(
		AccountSnapshot{ID: src, MinorUnits: 50, Currency: "USD", Status: "active"},
		AccountSnapshot{ID: dst, MinorUnits: 0, Currency: "USD", Status: "active"},
	)
	_, err := Execute(context.Background(), nil, store, src, dst, 100, "USD", uuid.New(), time.Now())
	assert.ErrorIs(t, err, apierrors.ErrInsufficientFunds)
}

func TestExecuteCurrencyMismatch(t *testing.T) {
	src, dst := uuid.New(), uuid.New()
	store := newFakeStore(
		AccountSnapshot{ID: src, MinorUnits: 500, Currency: "USD", Status: "active"},
		AccountSnapshot{ID: dst, MinorUnits: 0, Currency: "EUR", Status: "active"},
	)
	_, err := Execute(context.Background(), nil, store, src, dst, 100, "USD", uuid.New(), time.Now())
	assert.ErrorIs(t, err, apierrors.ErrCurrencyMismatch)
}

func TestExecuteRejectsFrozenSource(t *testing.T) {
	src, dst := uuid.New(), uuid.New()
	store := newFakeStore(
		AccountSnapshot{ID: src, MinorUnits: 500, Currency: "USD", Status: "frozen"},
		AccountSnapshot{ID: dst, MinorUnits: 0, Currency: "USD", Status: "active"},
	)
	_, err := Execute(context.Background(), nil, store, src, dst, 100, "USD", uuid.New(), time.Now())
	assert.ErrorIs(t, err, apierrors.ErrAccountFrozen)
}

func TestExecuteRejectsDestinationOverflow(t *testing.T) {
	src, dst := uuid.New(), uuid.New()
	store := newFakeStore(
		AccountSnapshot{ID: src, MinorUnits: 100, Currency: "USD", Status: "active"},
		AccountSnapshot{ID: dst, MinorUnits: math.MaxInt64, Currency: "USD", Status: "active"},
	)
	_, err := Execute(context.Background(), nil, store, src, dst, 100, "USD", uuid.New(), time.Now())
	assert.ErrorIs(t, err, apierrors.ErrBalanceOverflow)
}

func TestExecuteSuccessProducesBalancedSnapshots(t *testing.T) {
	src, dst := uuid.New(), uuid.New()
	store := newFakeStore(
		AccountSnapshot{ID: src, MinorUnits: 1000, Currency: "USD", Status: "active"},
		AccountSnapshot{ID: dst, MinorUnits: 200, Currency: "USD", Status: "active"},
	)
	transferID := uuid.New()
	result, err := Execute(context.Background(), nil, store, src, dst, 300, "USD", transferID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(700), result.SourceBalanceAfter)
	assert.Equal(t, int64(500), result.DestinationBalanceAfter)
	assert.Equal(t, transferID, result.Debited.TransferID)
	assert.Equal(t, transferID, result.Credited.TransferID)
	assert.Equal(t, src, result.Debited.AccountID)
	assert.Equal(t, dst, result.Credited.AccountID)
}
