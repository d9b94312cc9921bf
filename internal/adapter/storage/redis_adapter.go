package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopworks/fulfillment/internal/core/domain"
)

const (
	productKeyPrefix = "product:"
	searchKeyPrefix  = "product:search:"
	userKeyPrefix    = "user:"
)

type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if ok, err := r.get(ctx, productKeyPrefix+id, &p); !ok {
		return nil, err
	}
	return &p, nil
}

func (r *RedisAdapter) PutProduct(ctx context.Context, p domain.Product) error {
	return r.put(ctx, productKeyPrefix+p.ID, p)
}

func (r *RedisAdapter) EvictProduct(ctx context.Context, id string) error {
	return r.client.Del(ctx, productKeyPrefix+id).Err()
}

func (r *RedisAdapter) GetSearch(ctx context.Context, term string) ([]domain.Product, error) {
	var products []domain.Product
	if ok, err := r.get(ctx, searchKeyPrefix+term, &products); !ok {
		return nil, err
	}
	return products, nil
}

func (r *RedisAdapter) PutSearch(ctx context.Context, term string, products []domain.Product) error {
	return r.put(ctx, searchKeyPrefix+term, products)
}

// EvictSearches drops all cached search results. Best effort: a concurrent
// fill can race the scan, and the TTL bounds how long such an entry survives.
func (r *RedisAdapter) EvictSearches(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, searchKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("evict %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

func (r *RedisAdapter) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if ok, err := r.get(ctx, userKeyPrefix+id, &u); !ok {
		return nil, err
	}
	return &u, nil
}

func (r *RedisAdapter) PutUser(ctx context.Context, u domain.User) error {
	return r.put(ctx, userKeyPrefix+u.ID, u)
}

func (r *RedisAdapter) EvictUser(ctx context.Context, id string) error {
	return r.client.Del(ctx, userKeyPrefix+id).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisAdapter) ClearIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisAdapter) put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}
