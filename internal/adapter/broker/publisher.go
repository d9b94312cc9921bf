package broker

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher writes keyed records to a single topic. The Hash balancer pins
// equal keys to one partition, which is what preserves per-product ordering.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
