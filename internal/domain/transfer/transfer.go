// Package transfer implements the Transfer aggregate of spec.md §4.3:
// identity, reference generation, and the pending -> processing ->
// {completed, failed} -> reversed state machine. It deliberately does
// not import the account or ledger packages — per the cross-module
// port design note in spec.md §9, the double-entry and ledger-append
// boundaries the handlers compose against take only primitive DTOs
// (ids, amounts, currency strings), so this aggregate stays a leaf.
package transfer

import (
	"time"

	"ledgercore/internal/domain/apierrors"
	"ledgercore/internal/domain/money"

	"github.com/google/uuid"
)

// Status is the transfer lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReversed   Status = "reversed"
)

// Transfer is the aggregate root for a single money movement.
type Transfer struct {
	ID          uuid.UUID
	Reference   string
	Source      uuid.UUID
	Destination uuid.UUID
	Amount      money.Money
	Status      Status
	Description string

	FailureCode   string
	FailureReason string

	CompletedAt *time.Time
	FailedAt    *time.Time
	ReversedAt  *time.Time

	Version int

	uncommitted []Event
}

// Initiate creates a new Transfer in the pending status, emitting
// Initiated. Fails with ErrSameAccountTransfer or
// ErrInvalidTransferAmount.
func Initiate(id, source, destination uuid.UUID, amount money.Money, description string, now time.Time) (*Transfer, error) {
	if source == destination {
		return nil, apierrors.ErrSameAccountTransfer
	}
	if !amount.IsPositive() {
		return nil, apierrors.ErrInvalidTransferAmount
	}
	reference := GenerateReference(now)
	tr := &Transfer{
		ID:          id,
		Reference:   reference,
		Source:      source,
		Destination: destination,
		Amount:      amount,
		Status:      StatusPending,
		Description: description,
		Version:     0,
	}
	tr.emit(Initiated{
		baseEvent:   newBase(now),
		TransferID:  id,
		Reference:   reference,
		Source:      source,
		Destination: destination,
		Amount:      amount,
		Description: description,
	})
	return tr, nil
}

// Hydrate reconstructs a Transfer from persisted fields without
// emitting any events.
func Hydrate(
	id uuid.UUID, reference string, source, destination uuid.UUID, amount money.Money,
	status Status, description, failureCode, failureReason string,
	completedAt, failedAt, reversedAt *time.Time, version int,
) *Transfer {
	return &Transfer{
		ID:            id,
		Reference:     reference,
		Source:        source,
		Destination:   destination,
		Amount:        amount,
		Status:        status,
		Description:   description,
		FailureCode:   failureCode,
		FailureReason: failureReason,
		CompletedAt:   completedAt,
		FailedAt:      failedAt,
		ReversedAt:    reversedAt,
		Version:       version,
	}
}

func (t *Transfer) emit(e Event) { t.uncommitted = append(t.uncommitted, e) }

// ReleaseEvents drains and returns the uncommitted event queue.
func (t *Transfer) ReleaseEvents() []Event {
	events := t.uncommitted
	t.uncommitted = nil
	return events
}

// MarkProcessing transitions pending -> processing.
func (t *Transfer) MarkProcessing(now time.Time) error {
	if t.Status != StatusPending {
		return apierrors.ErrInvalidTransferState
	}
	t.Status = StatusProcessing
	t.Version++
	return nil
}

// Complete transitions processing -> completed, emitting Completed.
func (t *Transfer) Complete(now time.Time) error {
	if t.Status != StatusProcessing {
		return apierrors.ErrInvalidTransferState
	}
	t.Status = StatusCompleted
	t.Version++
	completedAt := now
	t.CompletedAt = &completedAt
	t.emit(Completed{
		baseEvent:   newBase(now),
		TransferID:  t.ID,
		Source:      t.Source,
		Destination: t.Destination,
		Amount:      t.Amount,
	})
	return nil
}

// Fail transitions processing -> failed, emitting Failed and stamping
// the failure code/reason. A failed transfer is a durable business
// record: it is never retried as this same aggregate instance.
func (t *Transfer) Fail(code, reason string, now time.Time) error {
	if t.Status != StatusProcessing {
		return apierrors.ErrInvalidTransferState
	}
	t.Status = StatusFailed
	t.Version++
	t.FailureCode = code
	t.FailureReason = reason
	failedAt := now
	t.FailedAt = &failedAt
	t.emit(Failed{
		baseEvent:     newBase(now),
		TransferID:    t.ID,
		FailureCode:   code,
		FailureReason: reason,
	})
	return nil
}

// Reverse transitions completed -> reversed, emitting Reversed. Only
// legal from completed; a second reversal attempt fails with
// ErrInvalidTransferState.
func (t *Transfer) Reverse(now time.Time) error {
	if t.Status != StatusCompleted {
		return apierrors.ErrInvalidTransferState
	}
	t.Status = StatusReversed
	t.Version++
	reversedAt := now
	t.ReversedAt = &reversedAt
	t.emit(Reversed{
		baseEvent:   newBase(now),
		TransferID:  t.ID,
		Source:      t.Destination,
		Destination: t.Source,
		Amount:      t.Amount,
	})
	return nil
}

// ListFilter narrows a store's account-scoped listing per spec.md
// §4.5's "pagination and status-filtered listing for queries." Status
// is optional: its zero value matches every status. Page is 1-indexed;
// PerPage <= 0 lets the store substitute its own default.
type ListFilter struct {
	Status  Status
	Page    int
	PerPage int
}
