package transferops

import (
	"context"
	"testing"
	"time"

	"ledgercore/internal/domain/apierrors"
	"ledgercore/internal/domain/ledger"
	"ledgercore/internal/domain/money"
	"ledgercore/internal/domain/outbox"
	"ledgercore/internal/domain/transfer"
	"ledgercore/internal/service/doubleentry"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct{ ids map[uuid.UUID]bool }

func (f fakeAccounts) Exists(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	return f.ids[id], nil
}

type fakeTransfers struct{ byID map[uuid.UUID]*transfer.Transfer }

func newFakeTransfers() *fakeTransfers { return &fakeTransfers{byID: map[uuid.UUID]*transfer.Transfer{}} }

func (f *fakeTransfers) Save(ctx context.Context, tx pgx.Tx, tr *transfer.Transfer) error {
	f.byID[tr.ID] = tr
	return nil
}

func (f *fakeTransfers) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*transfer.Transfer, error) {
	tr, ok := f.byID[id]
	if !ok {
		return nil, apierrors.ErrTransferNotFound
	}
	return tr, nil
}

type fakeLedger struct{ entries []ledger.Entry }

func (f *fakeLedger) Append(ctx context.Context, tx pgx.Tx, entry ledger.Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeOutbox struct{ events []outbox.Event }

func (f *fakeOutbox) Save(ctx context.Context, tx pgx.Tx, ev outbox.Event) error {
	f.events = append(f.events, ev)
	return nil
}

type fakeEntries struct {
	balances map[uuid.UUID]int64
	currency map[uuid.UUID]string
	status   map[uuid.UUID]string
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{balances: map[uuid.UUID]int64{}, currency: map[uuid.UUID]string{}, status: map[uuid.UUID]string{}}
}

func (f *fakeEntries) seed(id uuid.UUID, balance int64, currency, status string) {
	f.balances[id] = balance
	f.currency[id] = currency
	f.status[id] = status
}

func (f *fakeEntries) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (doubleentry.AccountSnapshot, error) {
	return doubleentry.AccountSnapshot{ID: id, MinorUnits: f.balances[id], Currency: f.currency[id], Status: f.status[id]}, nil
}

func (f *fakeEntries) ApplyDebit(ctx context.Context, tx pgx.Tx, id uuid.UUID, minorUnits int64) (int64, error) {
	f.balances[id] -= minorUnits
	return f.balances[id], nil
}

func (f *fakeEntries) ApplyCredit(ctx context.Context, tx pgx.Tx, id uuid.UUID, minorUnits int64) (int64, error) {
	f.balances[id] += minorUnits
	return f.balances[id], nil
}

func usd(amount int64) money.Money {
	m, err := money.New(amount, "USD")
	if err != nil {
		panic(err)
	}
	return m
}

func newDeps(source, destination uuid.UUID, sourceBalance, destBalance int64) (Deps, *fakeTransfers, *fakeLedger, *fakeOutbox, *fakeEntries) {
	entries := newFakeEntries()
	entries.seed(source, sourceBalance, "USD", "active")
	entries.seed(destination, destBalance, "USD", "active")
	transfers := newFakeTransfers()
	ledgerStore := &fakeLedger{}
	outboxStore := &fakeOutbox{}
	deps := Deps{
		Accounts:  fakeAccounts{ids: map[uuid.UUID]bool{source: true, destination: true}},
		Transfers: transfers,
		Ledger:    ledgerStore,
		Outbox:    outboxStore,
		Entries:   entries,
		Now:       func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	return deps, transfers, ledgerStore, outboxStore, entries
}

func TestInitiateHappyPath(t *testing.T) {
	source, destination := uuid.New(), uuid.New()
	deps, _, ledgerStore, outboxStore, _ := newDeps(source, destination, 1000, 200)

	result, err := Initiate(context.Background(), nil, deps, InitiateInput{
		Source: source, Destination: destination, Amount: usd(300), Description: "rent",
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, int64(700), result.SourceAfter)
	assert.Equal(t, int64(500), result.DestAfter)

	// Two ledger rows: debit + credit.
	require.Len(t, ledgerStore.entries, 2)
	assert.Equal(t, ledger.EntryDebit, ledgerStore.entries[0].EntryType)
	assert.Equal(t, ledger.EntryCredit, ledgerStore.entries[1].EntryType)

	// At least transfer.initiated, transfer.completed, account.debited,
	// account.credited outbox rows.
	assert.GreaterOrEqual(t, len(outboxStore.events), 4)
}

func TestInitiateAccountNotFound(t *testing.T) {
	source, destination := uuid.New(), uuid.New()
	deps, _, _, _, _ := newDeps(source, destination, 1000, 200)
	missing := uuid.New()

	_, err := Initiate(context.Background(), nil, deps, InitiateInput{
		Source: source, Destination: missing, Amount: usd(100),
	})
	assert.ErrorIs(t, err, apierrors.ErrAccountNotFound)
}

func TestInitiateInsufficientFundsRewindsToFailed(t *testing.T) {
	source, destination := uuid.New(), uuid.New()
	deps, transfers, ledgerStore, outboxStore, _ := newDeps(source, destination, 50, 0)

	_, err := Initiate(context.Background(), nil, deps, InitiateInput{
		Source: source, Destination: destination, Amount: usd(100),
	})
	require.ErrorIs(t, err, apierrors.ErrInsufficientFunds)

	// Transfer is saved as failed, no ledger rows appended.
	require.Len(t, transfers.byID, 1)
	for _, tr := range transfers.byID {
		assert.Equal(t, transfer.StatusFailed, tr.Status)
		assert.NotEmpty(t, tr.FailureCode)
	}
	assert.Empty(t, ledgerStore.entries)

	// transfer.initiated and transfer.failed outbox rows only, no
	// account events.
	for _, ev := range outboxStore.events {
		assert.NotContains(t, ev.EventType, "account.")
	}
}

func TestReverseHappyPath(t *testing.T) {
	source, destination := uuid.New(), uuid.New()
	deps, transfers, ledgerStore, _, _ := newDeps(source, destination, 1000, 200)

	initResult, err := Initiate(context.Background(), nil, deps, InitiateInput{
		Source: source, Destination: destination, Amount: usd(300),
	})
	require.NoError(t, err)
	require.Len(t, ledgerStore.entries, 2)

	reverseResult, err := Reverse(context.Background(), nil, deps, initResult.TransferID)
	require.NoError(t, err)
	assert.Equal(t, "reversed", reverseResult.Status)

	// Original two ledger rows untouched; two new rows appended.
	require.Len(t, ledgerStore.entries, 4)
	assert.Equal(t, ledger.TransferTypeTransfer, ledgerStore.entries[0].TransferType)
	assert.Equal(t, ledger.TransferTypeTransfer, ledgerStore.entries[1].TransferType)
	assert.Equal(t, ledger.TransferTypeReversal, ledgerStore.entries[2].TransferType)
	assert.Equal(t, ledger.TransferTypeReversal, ledgerStore.entries[3].TransferType)

	tr := transfers.byID[initResult.TransferID]
	assert.Equal(t, transfer.StatusReversed, tr.Status)
}

func TestReverseUnknownTransferNotFound(t *testing.T) {
	source, destination := uuid.New(), uuid.New()
	deps, _, _, _, _ := newDeps(source, destination, 1000, 200)
	_, err := Reverse(context.Background(), nil, deps, uuid.New())
	assert.ErrorIs(t, err, apierrors.ErrTransferNotFound)
}
