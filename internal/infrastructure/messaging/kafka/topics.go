package kafka

// Topic names the outbox dispatch sink publishes to, one per
// aggregate type so consumers can subscribe to just the stream they
// care about instead of filtering a single firehose topic.
const (
	TopicTransferEvents = "ledgercore.transfers"
	TopicAccountEvents  = "ledgercore.accounts"
)

// TopicForAggregate maps an outbox row's aggregateType to its topic.
func TopicForAggregate(aggregateType string) string {
	switch aggregateType {
	case "account":
		return TopicAccountEvents
	default:
		return TopicTransferEvents
	}
}
