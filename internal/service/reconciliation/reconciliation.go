// Package reconciliation implements the batched balance-vs-ledger
// comparison of spec.md §4.13. It is read-only: no write path in this
// package, grounded on the teacher's GetTransactionHistory-style
// read-only reporting query in internal/infrastructure/database/
// postgres/postgres.go, generalized into a sum-of-signed-entries scan.
package reconciliation

import (
	"context"

	"ledgercore/internal/pkg/logging"

	"github.com/google/uuid"
)

// DefaultBatchSize bounds how many accounts Run checks per pass when
// no configured value is available. Production wiring passes
// Core.BalanceReconcileBatch instead.
const DefaultBatchSize = 500

// Verdict tags the outcome of comparing one account's live balance
// against its derived ledger balance.
type Verdict string

const (
	VerdictMatch         Verdict = "match"
	VerdictMismatch      Verdict = "mismatch"
	VerdictNoLedgerEntry Verdict = "noLedgerEntry"
)

// Result is one account's reconciliation outcome.
type Result struct {
	AccountID     uuid.UUID
	LiveBalance   int64
	LedgerBalance int64
	HasLedgerRows bool
	Verdict       Verdict
}

// Source is the read port this package needs: the live balance and
// the derived sum of signed ledger entries for a given account.
type Source interface {
	// AccountIDs returns the accounts Run reconciles. A single-account
	// run goes through RunOne, which does not call this method.
	AccountIDs(ctx context.Context) ([]uuid.UUID, error)
	// LiveBalance returns the account's current balance.
	LiveBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	// LedgerBalance returns sum(credits) - sum(debits) for the
	// account, and whether any ledger rows exist for it at all.
	LedgerBalance(ctx context.Context, accountID uuid.UUID) (balance int64, hasRows bool, err error)
}

// Run reconciles every account Source reports, processing ids in
// batches of batchSize so a single pass never holds more than one
// batch's worth of balance/ledger comparisons in flight at once.
// batchSize <= 0 substitutes DefaultBatchSize.
func Run(ctx context.Context, src Source, batchSize int) ([]Result, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	ids, err := src.AccountIDs(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ids))
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := reconcileIDs(ctx, src, ids[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
		logging.Info("reconciliation batch complete", map[string]interface{}{
			"batch_start": start, "batch_end": end, "total": len(ids),
		})
	}
	return results, nil
}

// RunOne reconciles a single account, for the single-account mode
// spec.md §4.13 calls out explicitly.
func RunOne(ctx context.Context, src Source, accountID uuid.UUID) (Result, error) {
	results, err := reconcileIDs(ctx, src, []uuid.UUID{accountID})
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

func reconcileIDs(ctx context.Context, src Source, ids []uuid.UUID) ([]Result, error) {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		live, err := src.LiveBalance(ctx, id)
		if err != nil {
			return nil, err
		}
		ledgerBalance, hasRows, err := src.LedgerBalance(ctx, id)
		if err != nil {
			return nil, err
		}

		result := Result{
			AccountID:     id,
			LiveBalance:   live,
			LedgerBalance: ledgerBalance,
			HasLedgerRows: hasRows,
		}
		switch {
		case !hasRows && live != 0:
			result.Verdict = VerdictNoLedgerEntry
		case live == ledgerBalance:
			result.Verdict = VerdictMatch
		default:
			result.Verdict = VerdictMismatch
		}
		results = append(results, result)
	}
	return results, nil
}
