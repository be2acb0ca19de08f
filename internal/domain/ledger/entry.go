// Package ledger defines the immutable LedgerEntry type of spec.md §3.
// Entries are produced by the double-entry service and persisted by
// the ledger store; no operation in this package mutates a constructed
// Entry — append-only is a storage-layer contract (internal/store/
// postgres/ledger_store.go), not something this type needs to enforce
// itself, but the type carries no setters to make that contract visible
// in the API.
package ledger

import (
	"time"

	"ledgercore/internal/domain/money"

	"github.com/google/uuid"
)

// EntryType distinguishes the two sides of a double-entry movement.
type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// TransferType distinguishes the business event that produced an entry.
type TransferType string

const (
	TransferTypeTransfer  TransferType = "transfer"
	TransferTypeReversal  TransferType = "reversal"
	TransferTypeBootstrap TransferType = "bootstrap"
)

// Entry is a single, immutable row in an account's ledger.
type Entry struct {
	ID                    uuid.UUID
	AccountID             uuid.UUID
	CounterpartyAccountID uuid.UUID
	TransferID            uuid.UUID
	EntryType             EntryType
	TransferType          TransferType
	Amount                money.Money
	BalanceAfter          money.Money
	OccurredAt            time.Time
	CreatedAt             time.Time
}

// New constructs an Entry, validating the amount is strictly positive
// per spec.md §3's amountMinorUnits > 0 invariant. The store layer
// enforces this independently at write time as defence in depth.
func New(id, accountID, counterpartyID, transferID uuid.UUID, entryType EntryType, transferType TransferType, amount, balanceAfter money.Money, occurredAt, createdAt time.Time) (Entry, error) {
	if !amount.IsPositive() {
		return Entry{}, ErrNonPositiveAmount
	}
	return Entry{
		ID:                    id,
		AccountID:             accountID,
		CounterpartyAccountID: counterpartyID,
		TransferID:            transferID,
		EntryType:             entryType,
		TransferType:          transferType,
		Amount:                amount,
		BalanceAfter:          balanceAfter,
		OccurredAt:            occurredAt,
		CreatedAt:             createdAt,
	}, nil
}

// SignedAmount returns the entry's amount signed for the zero-sum
// invariant of spec.md §8 (credit=+, debit=-).
func (e Entry) SignedAmount() int64 {
	if e.EntryType == EntryCredit {
		return e.Amount.MinorUnits()
	}
	return -e.Amount.MinorUnits()
}
