// Package outbox implements the outbox processor of spec.md §4.11:
// the long-running (or one-shot) loop that claims unpublished rows and
// dispatches them to the external sink. Grounded on the teacher's
// Kafka producer (internal/infrastructure/messaging/kafka), adapted
// here as the Sink this processor drives, with JCS-canonical payloads
// so retried dispatches are byte-identical on the wire.
package outbox

import (
	"context"

	"ledgercore/internal/domain/outbox"
	"ledgercore/internal/infrastructure/messaging/kafka"
)

// Sink is the dispatch transport the processor publishes claimed
// events through. Satisfied by KafkaSink in production and by fakes in
// tests.
type Sink interface {
	Dispatch(ctx context.Context, e outbox.Event) error
}

// KafkaSink publishes an outbox event's canonical JSON payload to the
// topic matching its aggregate type.
type KafkaSink struct {
	producer *kafka.Producer
}

func NewKafkaSink(producer *kafka.Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Dispatch(ctx context.Context, e outbox.Event) error {
	topic := kafka.TopicForAggregate(e.AggregateType)
	return s.producer.Publish(topic, e.AggregateID.String(), []byte(e.PayloadJCS))
}

// Close shuts down the underlying Kafka producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
