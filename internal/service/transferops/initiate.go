package transferops

import (
	"context"
	"encoding/json"
	"time"

	"ledgercore/internal/domain/apierrors"
	"ledgercore/internal/domain/ledger"
	"ledgercore/internal/domain/money"
	"ledgercore/internal/domain/outbox"
	"ledgercore/internal/domain/transfer"
	"ledgercore/internal/service/doubleentry"
	"ledgercore/internal/service/txn"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InitiateInput is the primitive request DTO for spec.md §4.8.
type InitiateInput struct {
	Source      uuid.UUID
	Destination uuid.UUID
	Amount      money.Money
	Description string
}

// InitiateResult is returned to the HTTP layer on success. When a
// business rule rejects the movement, Initiate also returns the failed
// transfer's TransferID, Reference and Status alongside the error.
type InitiateResult struct {
	TransferID   uuid.UUID
	Reference    string
	Status       string
	SourceAfter  int64
	DestAfter    int64
}

// Initiate runs the full initiate-transfer handler of spec.md §4.8
// inside the caller's transaction. Preflight validation (src != dst,
// amount > 0) happens inside transfer.Initiate before any writes.
func Initiate(ctx context.Context, tx pgx.Tx, deps Deps, in InitiateInput) (InitiateResult, error) {
	now := deps.now()

	srcExists, err := deps.Accounts.Exists(ctx, tx, in.Source)
	if err != nil {
		return InitiateResult{}, err
	}
	if !srcExists {
		return InitiateResult{}, apierrors.ErrAccountNotFound
	}
	dstExists, err := deps.Accounts.Exists(ctx, tx, in.Destination)
	if err != nil {
		return InitiateResult{}, err
	}
	if !dstExists {
		return InitiateResult{}, apierrors.ErrAccountNotFound
	}

	transferID, err := uuid.NewV7()
	if err != nil {
		transferID = uuid.New()
	}
	tr, err := transfer.Initiate(transferID, in.Source, in.Destination, in.Amount, in.Description, now)
	if err != nil {
		return InitiateResult{}, err
	}

	if err := deps.Transfers.Save(ctx, tx, tr); err != nil {
		return InitiateResult{}, err
	}
	if err := enqueueEvents(ctx, tx, deps, "transfer", tr.ID, tr.ReleaseEvents(), now); err != nil {
		return InitiateResult{}, err
	}

	if err := tr.MarkProcessing(now); err != nil {
		return InitiateResult{}, err
	}
	if err := deps.Transfers.Save(ctx, tx, tr); err != nil {
		return InitiateResult{}, err
	}

	result, entryErr := doubleentry.Execute(ctx, tx, deps.Entries, in.Source, in.Destination, in.Amount.MinorUnits(), in.Amount.Currency(), tr.ID, now)
	if entryErr != nil {
		// Only a domain rule violation rewinds the transfer to failed.
		// Any other error (a deadlock, an overflow, a broken
		// connection) is returned as is, so the transaction rolls back
		// and txn.Manager can retry a deadlock.
		code := apierrors.DomainCode(entryErr)
		if code == "" {
			return InitiateResult{}, entryErr
		}
		// Rewind to failed. The double-entry service raises its domain
		// errors before any account mutation is persisted, so no account
		// events exist to enqueue here — only the transfer's own
		// failure event.
		if failErr := tr.Fail(code, entryErr.Error(), now); failErr != nil {
			return InitiateResult{}, failErr
		}
		if err := deps.Transfers.Save(ctx, tx, tr); err != nil {
			return InitiateResult{}, err
		}
		if err := enqueueEvents(ctx, tx, deps, "transfer", tr.ID, tr.ReleaseEvents(), now); err != nil {
			return InitiateResult{}, err
		}
		// The failed transfer is a durable business record: wrap
		// entryErr so txn.Manager commits this transaction instead of
		// rolling it back, then re-raises entryErr to the caller.
		return InitiateResult{TransferID: tr.ID, Reference: tr.Reference, Status: string(tr.Status)}, txn.Commit(entryErr)
	}

	if err := appendLedgerPair(ctx, tx, deps, tr.ID, in.Source, in.Destination, in.Amount, ledger.TransferTypeTransfer, result, now); err != nil {
		return InitiateResult{}, err
	}

	if err := tr.Complete(now); err != nil {
		return InitiateResult{}, err
	}
	if err := deps.Transfers.Save(ctx, tx, tr); err != nil {
		return InitiateResult{}, err
	}
	if err := enqueueEvents(ctx, tx, deps, "transfer", tr.ID, tr.ReleaseEvents(), now); err != nil {
		return InitiateResult{}, err
	}
	if err := enqueueAccountEvents(ctx, tx, deps, result, now); err != nil {
		return InitiateResult{}, err
	}

	return InitiateResult{
		TransferID:  tr.ID,
		Reference:   tr.Reference,
		Status:      string(tr.Status),
		SourceAfter: result.SourceBalanceAfter,
		DestAfter:   result.DestinationBalanceAfter,
	}, nil
}

func appendLedgerPair(ctx context.Context, tx pgx.Tx, deps Deps, transferID, source, destination uuid.UUID, amount money.Money, transferType ledger.TransferType, result doubleentry.Result, now time.Time) error {
	sourceBalance, err := money.New(result.SourceBalanceAfter, amount.Currency())
	if err != nil {
		return err
	}
	destBalance, err := money.New(result.DestinationBalanceAfter, amount.Currency())
	if err != nil {
		return err
	}

	debitEntry, err := ledger.New(uuid.New(), source, destination, transferID, ledger.EntryDebit, transferType, amount, sourceBalance, now, now)
	if err != nil {
		return err
	}
	if err := deps.Ledger.Append(ctx, tx, debitEntry); err != nil {
		return err
	}

	creditEntry, err := ledger.New(uuid.New(), destination, source, transferID, ledger.EntryCredit, transferType, amount, destBalance, now, now)
	if err != nil {
		return err
	}
	return deps.Ledger.Append(ctx, tx, creditEntry)
}

func enqueueAccountEvents(ctx context.Context, tx pgx.Tx, deps Deps, result doubleentry.Result, now time.Time) error {
	debitedPayload := map[string]any{
		"account_id":    result.Debited.AccountID.String(),
		"transfer_id":   result.Debited.TransferID.String(),
		"minor_units":   result.Debited.MinorUnits,
		"currency":      result.Debited.Currency,
		"balance_after": result.Debited.BalanceAfter,
	}
	if err := saveOutboxEvent(ctx, tx, deps, "account", result.Debited.AccountID, "account.debited", debitedPayload, now); err != nil {
		return err
	}

	creditedPayload := map[string]any{
		"account_id":    result.Credited.AccountID.String(),
		"transfer_id":   result.Credited.TransferID.String(),
		"minor_units":   result.Credited.MinorUnits,
		"currency":      result.Credited.Currency,
		"balance_after": result.Credited.BalanceAfter,
	}
	return saveOutboxEvent(ctx, tx, deps, "account", result.Credited.AccountID, "account.credited", creditedPayload, now)
}

func enqueueEvents(ctx context.Context, tx pgx.Tx, deps Deps, aggregateType string, aggregateID uuid.UUID, events []transfer.Event, now time.Time) error {
	for _, e := range events {
		payload, err := eventPayload(e)
		if err != nil {
			return err
		}
		if err := saveOutboxEvent(ctx, tx, deps, aggregateType, aggregateID, e.EventType(), payload, now); err != nil {
			return err
		}
	}
	return nil
}

func saveOutboxEvent(ctx context.Context, tx pgx.Tx, deps Deps, aggregateType string, aggregateID uuid.UUID, eventType string, payload any, now time.Time) error {
	ev, err := outbox.New(aggregateType, aggregateID, eventType, payload, now, now)
	if err != nil {
		return err
	}
	return deps.Outbox.Save(ctx, tx, ev)
}

func eventPayload(e transfer.Event) (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
