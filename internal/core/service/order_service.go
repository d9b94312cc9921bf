package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shopworks/fulfillment/internal/event"
	"github.com/shopworks/fulfillment/internal/port"
)

var ErrInvalidOrder = errors.New("invalid order request")

// OrderService is the order ingress: it validates requests and publishes
// OrderCreated events keyed by product id. It holds no state of its own.
type OrderService struct {
	publisher port.EventPublisher
	logger    *zap.Logger
}

func NewOrderService(publisher port.EventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{publisher: publisher, logger: logger}
}

// Submit accepts an order request. Publish failures propagate to the caller;
// there is no retry loop at this layer.
func (s *OrderService) Submit(ctx context.Context, req event.OrderCreated) error {
	if req.ProductID == "" {
		return fmt.Errorf("%w: product id is mandatory", ErrInvalidOrder)
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: user id is mandatory", ErrInvalidOrder)
	}
	if req.Quantity < 1 {
		return fmt.Errorf("%w: minimum quantity is 1", ErrInvalidOrder)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode order-created event: %w", err)
	}

	if err := s.publisher.Publish(ctx, []byte(req.ProductID), payload); err != nil {
		return fmt.Errorf("publish order-created event: %w", err)
	}

	s.logger.Info("order accepted",
		zap.String("product_id", req.ProductID),
		zap.String("user_id", req.UserID),
		zap.Int("quantity", req.Quantity),
	)
	return nil
}
