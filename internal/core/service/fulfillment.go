package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopworks/fulfillment/internal/core/domain"
	"github.com/shopworks/fulfillment/internal/event"
	"github.com/shopworks/fulfillment/internal/port"
)

// FulfillmentService processes OrderCreated messages: idempotent conditional
// stock decrement, write-through cache update, user lookup, ProductUpdated
// publish. Errors wrapped with domain.Terminal are dead-lettered by the
// consumer runner; everything else is retried with backoff.
//
// The processing ledger inside DecrementStock is keyed by the message's bus
// coordinate, so a redelivery after a crash between decrement and offset
// commit skips the decrement and republishes under the original correlation
// id, keeping the downstream dedup effective.
type FulfillmentService struct {
	products  port.ProductRepository
	cache     port.CacheRepository
	users     port.UserLookup
	publisher port.EventPublisher
	logger    *zap.Logger
}

func NewFulfillmentService(
	products port.ProductRepository,
	cache port.CacheRepository,
	users port.UserLookup,
	publisher port.EventPublisher,
	logger *zap.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		products:  products,
		cache:     cache,
		users:     users,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *FulfillmentService) Handle(ctx context.Context, msg port.Message) error {
	var order event.OrderCreated
	if err := json.Unmarshal(msg.Value, &order); err != nil {
		return domain.Terminal(fmt.Errorf("malformed order-created payload: %w", err))
	}
	if order.ProductID == "" || order.UserID == "" || order.Quantity < 1 {
		return domain.Terminal(fmt.Errorf("invalid order-created payload: product=%q user=%q quantity=%d",
			order.ProductID, order.UserID, order.Quantity))
	}

	ledgerKey := fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)

	product, corrID, applied, err := s.products.DecrementStock(ctx, order.ProductID, order.Quantity, ledgerKey, uuid.NewString())
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrProductNotFound) {
			s.logger.Error("order rejected",
				zap.String("product_id", order.ProductID),
				zap.String("user_id", order.UserID),
				zap.Int("quantity", order.Quantity),
				zap.Error(err),
			)
			return domain.Terminal(err)
		}
		return fmt.Errorf("decrement stock: %w", err)
	}

	if applied {
		s.logger.Info("stock decremented",
			zap.String("product_id", product.ID),
			zap.Int("remaining", product.Quantity),
			zap.String("correlation_id", corrID),
		)
	} else {
		s.logger.Info("redelivery, decrement already applied",
			zap.String("product_id", product.ID),
			zap.String("correlation_id", corrID),
		)
	}

	// Write-through: the store row changed, replace the cached entry before
	// anything else reads it. A cache failure is transient; the retry reuses
	// the ledger entry, so no second decrement happens.
	if err := s.cache.PutProduct(ctx, *product); err != nil {
		return fmt.Errorf("refresh product cache: %w", err)
	}
	if err := s.cache.EvictSearches(ctx); err != nil {
		s.logger.Warn("search cache evict failed", zap.Error(err))
	}

	user, err := s.users.Lookup(ctx, order.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Error("ordering user not found",
				zap.String("user_id", order.UserID),
				zap.String("correlation_id", corrID),
			)
			return domain.Terminal(err)
		}
		return fmt.Errorf("lookup user %s: %w", order.UserID, err)
	}

	payload, err := json.Marshal(event.ProductUpdated{Email: user.Email, OrderID: corrID})
	if err != nil {
		return domain.Terminal(fmt.Errorf("encode product-updated event: %w", err))
	}
	if err := s.publisher.Publish(ctx, []byte(order.ProductID), payload); err != nil {
		return fmt.Errorf("publish product-updated event: %w", err)
	}

	s.logger.Info("product-updated event published",
		zap.String("product_id", order.ProductID),
		zap.String("correlation_id", corrID),
		zap.String("email", user.Email),
	)
	return nil
}
