package broker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shopworks/fulfillment/internal/core/domain"
	"github.com/shopworks/fulfillment/internal/port"
)

// Handler processes one fetched message. A nil return commits the offset.
// An error wrapped with domain.Terminal dead-letters the message immediately;
// any other error is retried with backoff until MaxRetries, then dead-lettered.
type Handler func(ctx context.Context, msg port.Message) error

// Consumer drives one consumer group over one topic. A single message never
// blocks its partition forever: every outcome ends with the offset advancing,
// except when the dead-letter publish itself fails, in which case the message
// is left uncommitted for redelivery rather than dropped.
type Consumer struct {
	source     port.MessageSource
	deadLetter port.EventPublisher
	handler    Handler
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewConsumer(source port.MessageSource, deadLetter port.EventPublisher, handler Handler, maxRetries int, backoff time.Duration, logger *zap.Logger) *Consumer {
	return &Consumer{
		source:     source,
		deadLetter: deadLetter,
		handler:    handler,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.source.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			c.logger.Error("fetch failed", zap.Error(err))
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg port.Message) {
	for attempt := 0; ; attempt++ {
		err := c.handler(ctx, msg)
		if err == nil {
			c.commit(ctx, msg)
			return
		}

		fields := []zap.Field{
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		}

		if domain.IsTerminal(err) {
			c.logger.Error("terminal failure, dead-lettering", fields...)
			c.sendToDeadLetter(ctx, msg)
			return
		}

		if attempt >= c.maxRetries {
			c.logger.Error("retries exhausted, dead-lettering", fields...)
			c.sendToDeadLetter(ctx, msg)
			return
		}

		c.logger.Warn("transient failure, retrying", fields...)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempt+1)):
		}
	}
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, msg port.Message) {
	if err := c.deadLetter.Publish(ctx, msg.Key, msg.Value); err != nil {
		// Leave the offset uncommitted: redelivery beats silent loss.
		c.logger.Error("dead-letter publish failed, message left for redelivery",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}
	c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg port.Message) {
	if err := c.source.Commit(ctx, msg); err != nil {
		c.logger.Error("offset commit failed",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}
