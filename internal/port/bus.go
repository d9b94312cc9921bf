package port

import "context"

// Message is one record fetched from the event bus. Topic, Partition and
// Offset identify it for offset commits and for the processing ledger.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
}

type EventPublisher interface {
	// Publish appends a keyed record to the publisher's topic. Records with
	// equal keys are delivered in publish order.
	Publish(ctx context.Context, key, value []byte) error

	Close() error
}

type MessageSource interface {
	// Fetch blocks until a message is available or ctx is done. Fetching does
	// not advance the consumer group offset.
	Fetch(ctx context.Context) (Message, error)

	// Commit marks msg processed for the consumer group
	Commit(ctx context.Context, msg Message) error

	Close() error
}
