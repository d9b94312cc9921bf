package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shopworks/fulfillment/internal/core/domain"
	"github.com/shopworks/fulfillment/internal/event"
	"github.com/shopworks/fulfillment/internal/port"
)

const notifyKeyTTL = 24 * time.Hour

// NotificationService consumes ProductUpdated events and sends at most one
// notification per correlation id.
type NotificationService struct {
	dedup    port.IdempotencyStore
	notifier port.Notifier
	logger   *zap.Logger
}

func NewNotificationService(dedup port.IdempotencyStore, notifier port.Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{dedup: dedup, notifier: notifier, logger: logger}
}

func (s *NotificationService) Handle(ctx context.Context, msg port.Message) error {
	var evt event.ProductUpdated
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return domain.Terminal(fmt.Errorf("malformed product-updated payload: %w", err))
	}
	if evt.Email == "" || evt.OrderID == "" {
		return domain.Terminal(fmt.Errorf("product-updated payload missing email or order_id"))
	}

	key := "notify:" + evt.OrderID
	ok, err := s.dedup.SetIdempotency(ctx, key, notifyKeyTTL)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		s.logger.Info("duplicate notification suppressed", zap.String("correlation_id", evt.OrderID))
		return nil
	}

	if err := s.notifier.Notify(ctx, evt.Email, evt.OrderID); err != nil {
		// Release the key so a retry can deliver; a crash between SetIdempotency
		// and Notify leaves the key held until its TTL, dropping at most one
		// notification rather than ever sending two.
		if clearErr := s.dedup.ClearIdempotency(ctx, key); clearErr != nil {
			s.logger.Error("failed to release idempotency key",
				zap.String("correlation_id", evt.OrderID),
				zap.Error(clearErr),
			)
		}
		return fmt.Errorf("send notification: %w", err)
	}

	s.logger.Info("notification sent",
		zap.String("email", evt.Email),
		zap.String("correlation_id", evt.OrderID),
	)
	return nil
}
