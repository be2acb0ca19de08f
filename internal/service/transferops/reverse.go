package transferops

import (
	"context"

	"ledgercore/internal/domain/ledger"
	"ledgercore/internal/domain/transfer"
	"ledgercore/internal/service/doubleentry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReverseResult mirrors InitiateResult for the reversal path.
type ReverseResult struct {
	TransferID  uuid.UUID
	Status      string
	SourceAfter int64
	DestAfter   int64
}

// Reverse runs the reverse-transfer handler of spec.md §4.9 inside the
// caller's transaction: lock the transfer row, flip it to reversed,
// run the double-entry service with source/destination swapped, and
// append two new (never mutate the original) ledger rows.
func Reverse(ctx context.Context, tx pgx.Tx, deps Deps, transferID uuid.UUID) (ReverseResult, error) {
	now := deps.now()

	tr, err := deps.Transfers.GetByIDForUpdate(ctx, tx, transferID)
	if err != nil {
		return ReverseResult{}, err
	}

	if err := tr.Reverse(now); err != nil {
		return ReverseResult{}, err
	}

	// Reversal moves funds back: source=original destination,
	// destination=original source.
	result, err := doubleentry.Execute(ctx, tx, deps.Entries, tr.Destination, tr.Source, tr.Amount.MinorUnits(), tr.Amount.Currency(), tr.ID, now)
	if err != nil {
		return ReverseResult{}, err
	}

	if err := appendLedgerPair(ctx, tx, deps, tr.ID, tr.Destination, tr.Source, tr.Amount, ledger.TransferTypeReversal, result, now); err != nil {
		return ReverseResult{}, err
	}

	if err := deps.Transfers.Save(ctx, tx, tr); err != nil {
		return ReverseResult{}, err
	}
	if err := enqueueEvents(ctx, tx, deps, "transfer", tr.ID, tr.ReleaseEvents(), now); err != nil {
		return ReverseResult{}, err
	}
	if err := enqueueAccountEvents(ctx, tx, deps, result, now); err != nil {
		return ReverseResult{}, err
	}

	return ReverseResult{
		TransferID:  tr.ID,
		Status:      string(tr.Status),
		SourceAfter: result.SourceBalanceAfter,
		DestAfter:   result.DestinationBalanceAfter,
	}, nil
}

