package transfer

import (
	"time"

	"ledgercore/internal/domain/money"

	"github.com/google/uuid"
)

// Event is the tagged-sum-type domain event a Transfer aggregate emits.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

type baseEvent struct {
	occurredAt time.Time
}

func (b baseEvent) OccurredAt() time.Time { return b.occurredAt }

func newBase(now time.Time) baseEvent { return baseEvent{occurredAt: now} }

// Initiated is emitted by Initiate.
type Initiated struct {
	baseEvent
	TransferID  uuid.UUID
	Reference   string
	Source      uuid.UUID
	Destination uuid.UUID
	Amount      money.Money
	Description string
}

func (Initiated) EventType() string { return "transfer.initiated" }

// Completed is emitted by Complete.
type Completed struct {
	baseEvent
	TransferID  uuid.UUID
	Source      uuid.UUID
	Destination uuid.UUID
	Amount      money.Money
}

func (Completed) EventType() string { return "transfer.completed" }

// Failed is emitted by Fail.
type Failed struct {
	baseEvent
	TransferID    uuid.UUID
	FailureCode   string
	FailureReason string
}

func (Failed) EventType() string { return "transfer.failed" }

// Reversed is emitted by Reverse.
type Reversed struct {
	baseEvent
	TransferID  uuid.UUID
	Source      uuid.UUID
	Destination uuid.UUID
	Amount      money.Money
}

func (Reversed) EventType() string { return "transfer.reversed" }
