package reconciliation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ids     []uuid.UUID
	live    map[uuid.UUID]int64
	ledger  map[uuid.UUID]int64
	hasRows map[uuid.UUID]bool
}

func (f fakeSource) AccountIDs(ctx context.Context) ([]uuid.UUID, error) { return f.ids, nil }

func (f fakeSource) LiveBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	return f.live[id], nil
}

func (f fakeSource) LedgerBalance(ctx context.Context, id uuid.UUID) (int64, bool, error) {
	return f.ledger[id], f.hasRows[id], nil
}

func TestRunClassifiesEachAccount(t *testing.T) {
	matched, mismatched, imported := uuid.New(), uuid.New(), uuid.New()
	src := fakeSource{
		ids:     []uuid.UUID{matched, mismatched, imported},
		live:    map[uuid.UUID]int64{matched: 500, mismatched: 500, imported: 1000},
		ledger:  map[uuid.UUID]int64{matched: 500, mismatched: 400, imported: 0},
		hasRows: map[uuid.UUID]bool{matched: true, mismatched: true, imported: false},
	}

	results, err := Run(context.Background(), src, DefaultBatchSize)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byID := map[uuid.UUID]Result{}
	for _, r := range results {
		byID[r.AccountID] = r
	}
	assert.Equal(t, VerdictMatch, byID[matched].Verdict)
	assert.Equal(t, VerdictMismatch, byID[mismatched].Verdict)
	assert.Equal(t, VerdictNoLedgerEntry, byID[imported].Verdict)
}

func TestRunBatchesAcrossMultiplePasses(t *testing.T) {
	ids := make([]uuid.UUID, 5)
	live := map[uuid.UUID]int64{}
	ledger := map[uuid.UUID]int64{}
	hasRows := map[uuid.UUID]bool{}
	for i := range ids {
		ids[i] = uuid.New()
		live[ids[i]] = 100
		ledger[ids[i]] = 100
		hasRows[ids[i]] = true
	}
	src := fakeSource{ids: ids, live: live, ledger: ledger, hasRows: hasRows}

	results, err := Run(context.Background(), src, 2)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, r := range results {
		assert.Equal(t, VerdictMatch, r.Verdict)
	}
}

func TestRunOneReconcilesSingleAccount(t *testing.T) {
	id := uuid.New()
	src := fakeSource{
		live:    map[uuid.UUID]int64{id: 100},
		ledger:  map[uuid.UUID]int64{id: 100},
		hasRows: map[uuid.UUID]bool{id: true},
	}
	result, err := RunOne(context.Background(), src, id)
	require.NoError(t, err)
	assert.Equal(t, VerdictMatch, result.Verdict)
}

func TestZeroBalanceWithNoLedgerRowsIsStillAMatch(t *testing.T) {
	// A brand-new account with zero balance and no ledger rows is not
	// an import anomaly — it's the normal post-creation state.
	id := uuid.New()
	src := fakeSource{
		live:    map[uuid.UUID]int64{id: 0},
		ledger:  map[uuid.UUID]int64{id: 0},
		hasRows: map[uuid.UUID]bool{id: false},
	}
	result, err := RunOne(context.Background(), src, id)
	require.NoError(t, err)
	assert.Equal(t, VerdictMatch, result.Verdict)
}
