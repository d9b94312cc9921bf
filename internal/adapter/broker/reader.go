package broker

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/shopworks/fulfillment/internal/port"
)

// GroupReader adapts a kafka consumer-group reader to port.MessageSource.
// Offsets are committed explicitly, never on fetch.
type GroupReader struct {
	reader *kafka.Reader
}

func NewGroupReader(brokers []string, groupID, topic string) *GroupReader {
	return &GroupReader{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

func (r *GroupReader) Fetch(ctx context.Context) (port.Message, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return port.Message{}, err
	}
	return port.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
	}, nil
}

func (r *GroupReader) Commit(ctx context.Context, msg port.Message) error {
	return r.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
}

func (r *GroupReader) Close() error {
	return r.reader.Close()
}
