package port

import (
	"context"
	"time"

	"github.com/shopworks/fulfillment/internal/core/domain"
)

type CacheRepository interface {
	// GetProduct returns the cached product, nil on miss
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// PutProduct caches a product under product:{id} with the configured TTL
	PutProduct(ctx context.Context, product domain.Product) error

	// EvictProduct removes product:{id}
	EvictProduct(ctx context.Context, id string) error

	// GetSearch returns cached search results for term, nil on miss
	GetSearch(ctx context.Context, term string) ([]domain.Product, error)

	// PutSearch caches search results under product:search:{term}
	PutSearch(ctx context.Context, term string, products []domain.Product) error

	// EvictSearches drops every product:search:* entry
	EvictSearches(ctx context.Context) error
}

type UserCache interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	PutUser(ctx context.Context, user domain.User) error
	EvictUser(ctx context.Context, id string) error
}

type IdempotencyStore interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ClearIdempotency releases a key so a failed side effect can be retried
	ClearIdempotency(ctx context.Context, key string) error
}
