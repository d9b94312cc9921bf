package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopworks/fulfillment/internal/core/domain"
	"github.com/shopworks/fulfillment/internal/port"
)

// ProductService serves product CRUD with a read-through cache on id and
// search-term lookups. Every mutation writes the store first, then updates or
// evicts the affected cache keys in the same logical step so cache and store
// never diverge past the TTL bound.
type ProductService struct {
	repo   port.ProductRepository
	cache  port.CacheRepository
	logger *zap.Logger
}

func NewProductService(repo port.ProductRepository, cache port.CacheRepository, logger *zap.Logger) *ProductService {
	return &ProductService{repo: repo, cache: cache, logger: logger}
}

func (s *ProductService) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.ID = uuid.NewString()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.refreshCache(ctx, p)
	return &p, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	cached, err := s.cache.GetProduct(ctx, id)
	if err != nil {
		s.logger.Warn("product cache read failed", zap.String("product_id", id), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}

	// Misses are populated with the configured TTL; null values are never cached.
	if err := s.cache.PutProduct(ctx, *p); err != nil {
		s.logger.Warn("product cache fill failed", zap.String("product_id", id), zap.Error(err))
	}
	return p, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	current, err := s.repo.GetProduct(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if current == nil {
		return nil, domain.ErrProductNotFound
	}

	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = time.Now()
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.refreshCache(ctx, p)
	return &p, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if err := s.cache.EvictProduct(ctx, id); err != nil {
		s.logger.Warn("product cache evict failed", zap.String("product_id", id), zap.Error(err))
	}
	if err := s.cache.EvictSearches(ctx); err != nil {
		s.logger.Warn("search cache evict failed", zap.Error(err))
	}
	return nil
}

func (s *ProductService) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	cached, err := s.cache.GetSearch(ctx, term)
	if err != nil {
		s.logger.Warn("search cache read failed", zap.String("term", term), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	products, err := s.repo.SearchProducts(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	if len(products) > 0 {
		if err := s.cache.PutSearch(ctx, term, products); err != nil {
			s.logger.Warn("search cache fill failed", zap.String("term", term), zap.Error(err))
		}
	}
	return products, nil
}

// refreshCache replaces the product entry and drops search results that may
// now be stale. Cache failures are logged, not fatal: the TTL bounds staleness.
func (s *ProductService) refreshCache(ctx context.Context, p domain.Product) {
	if err := s.cache.PutProduct(ctx, p); err != nil {
		s.logger.Warn("product cache write failed", zap.String("product_id", p.ID), zap.Error(err))
	}
	if err := s.cache.EvictSearches(ctx); err != nil {
		s.logger.Warn("search cache evict failed", zap.Error(err))
	}
}
