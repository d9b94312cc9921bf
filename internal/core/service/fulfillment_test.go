package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopworks/fulfillment/internal/core/domain"
	"github.com/shopworks/fulfillment/internal/event"
	"github.com/shopworks/fulfillment/internal/port"
)

// Mock ProductRepository
type mockProductRepo struct {
	mu           sync.Mutex
	products     map[string]*domain.Product
	ledger       map[string]string
	decrementErr error
}

func newMockProductRepo(products ...domain.Product) *mockProductRepo {
	m := &mockProductRepo{
		products: make(map[string]*domain.Product),
		ledger:   make(map[string]string),
	}
	for i := range products {
		p := products[i]
		m.products[p.ID] = &p
	}
	return m
}

func (m *mockProductRepo) CreateProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = &p
	return nil
}

func (m *mockProductRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) UpdateProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return domain.ErrProductNotFound
	}
	m.products[p.ID] = &p
	return nil
}

func (m *mockProductRepo) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProductRepo) DecrementStock(ctx context.Context, productID string, qty int, ledgerKey, correlationID string) (*domain.Product, string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.decrementErr != nil {
		return nil, "", false, m.decrementErr
	}

	if stored, ok := m.ledger[ledgerKey]; ok {
		p, exists := m.products[productID]
		if !exists {
			return nil, "", false, domain.ErrProductNotFound
		}
		cp := *p
		return &cp, stored, false, nil
	}

	p, exists := m.products[productID]
	if !exists {
		return nil, "", false, domain.ErrProductNotFound
	}
	if p.Quantity < qty {
		return nil, "", false, domain.ErrInsufficientStock
	}
	p.Quantity -= qty
	m.ledger[ledgerKey] = correlationID
	cp := *p
	return &cp, correlationID, true, nil
}

// Mock CacheRepository
type mockCache struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	searches    map[string][]domain.Product
	putErr      error
	getCalls    int
	putCalls    int
	evictCalls  int
	searchWipes int
}

func newMockCache() *mockCache {
	return &mockCache{
		products: make(map[string]domain.Product),
		searches: make(map[string][]domain.Product),
	}
}

func (m *mockCache) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockCache) PutProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return m.putErr
	}
	m.products[p.ID] = p
	return nil
}

func (m *mockCache) EvictProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictCalls++
	delete(m.products, id)
	return nil
}

func (m *mockCache) GetSearch(ctx context.Context, term string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches[term], nil
}

func (m *mockCache) PutSearch(ctx context.Context, term string, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[term] = products
	return nil
}

func (m *mockCache) EvictSearches(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchWipes++
	m.searches = make(map[string][]domain.Product)
	return nil
}

// Mock UserLookup
type mockLookup struct {
	mu    sync.Mutex
	user  *domain.User
	err   error
	calls int
}

func (m *mockLookup) Lookup(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.user, nil
}

// Mock EventPublisher
type mockPublisher struct {
	mu       sync.Mutex
	keys     [][]byte
	payloads [][]byte
	err      error
}

func (m *mockPublisher) Publish(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	m.payloads = append(m.payloads, value)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payloads)
}

func orderMessage(t *testing.T, offset int64, evt event.OrderCreated) port.Message {
	t.Helper()
	payload, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return port.Message{
		Topic:     event.TopicOrderCreated,
		Partition: 0,
		Offset:    offset,
		Key:       []byte(evt.ProductID),
		Value:     payload,
	}
}

func newFulfillmentFixture(stock int) (*FulfillmentService, *mockProductRepo, *mockCache, *mockLookup, *mockPublisher) {
	repo := newMockProductRepo(domain.Product{ID: "p1", Name: "widget", Price: 9.99, Quantity: stock})
	cache := newMockCache()
	lookup := &mockLookup{user: &domain.User{ID: "u1", Name: "Ann", Email: "ann@example.com"}}
	publisher := &mockPublisher{}
	svc := NewFulfillmentService(repo, cache, lookup, publisher, zap.NewNop())
	return svc, repo, cache, lookup, publisher
}

func TestFulfillment_Success(t *testing.T) {
	svc, repo, cache, _, publisher := newFulfillmentFixture(5)

	msg := orderMessage(t, 1, event.OrderCreated{ProductID: "p1", Quantity: 3, UserID: "u1"})
	if err := svc.Handle(context.Background(), msg); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	p, _ := repo.GetProduct(context.Background(), "p1")
	if p.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", p.Quantity)
	}

	if publisher.count() != 1 {
		t.Fatalf("expected 1 published event, got %d", publisher.count())
	}

	var updated event.ProductUpdated
	if err := json.Unmarshal(publisher.payloads[0], &updated); err != nil {
		t.Fatalf("unmarshal product-updated: %v", err)
	}
	if updated.Email != "ann@example.com" {
		t.Errorf("expected email ann@example.com, got %s", updated.Email)
	}
	if _, err := uuid.Parse(updated.OrderID); err != nil {
		t.Errorf("expected valid correlation id, got %q: %v", updated.OrderID, err)
	}

	// Write-through: cache holds the post-decrement quantity.
	cached, _ := cache.GetProduct(context.Background(), "p1")
	if cached == nil || cached.Quantity != 2 {
		t.Errorf("expected cached quantity 2, got %+v", cached)
	}
}

func TestFulfillment_InsufficientStock(t *testing.T) {
	svc, repo, _, _, publisher := newFulfillmentFixture(2)

	msg := orderMessage(t, 1, event.OrderCreated{ProductID: "p1", Quantity: 5, UserID: "u1"})
	err := svc.Handle(context.Background(), msg)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	if !domain.IsTerminal(err) {
		t.Error("insufficient stock must be terminal")
	}

	p, _ := repo.GetProduct(context.Background(), "p1")
	if p.Quantity != 2 {
		t.Errorf("quantity must stay 2, got %d", p.Quantity)
	}
	if publisher.count() != 0 {
		t.Errorf("no event must be published, got %d", publisher.count())
	}
}

func TestFulfillment_ProductNotFound(t *testing.T) {
	svc, _, _, _, publisher := newFulfillmentFixture(5)

	msg := orderMessage(t, 1, event.OrderCreated{ProductID: "missing", Quantity: 1, UserID: "u1"})
	err := svc.Handle(context.Background(), msg)
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
	if !domain.IsTerminal(err) {
		t.Error("product not found must be terminal")
	}
	if publisher.count() != 0 {
		t.Errorf("no event must be published, got %d", publisher.count())
	}
}

func TestFulfillment_MalformedPayload(t *testing.T) {
	svc, _, _, _, _ := newFulfillmentFixture(5)

	msg := port.Message{Topic: event.TopicOrderCreated, Offset: 1, Value: []byte("{not json")}
	err := svc.Handle(context.Background(), msg)
	if err == nil || !domain.IsTerminal(err) {
		t.Fatalf("expected terminal error for malformed payload, got: %v", err)
	}
}

func TestFulfillment_InvalidPayload(t *testing.T) {
	svc, _, _, _, _ := newFulfillmentFixture(5)

	msg := orderMessage(t, 1, event.OrderCreated{ProductID: "p1", Quantity: 0, UserID: "u1"})
	err := svc.Handle(context.Background(), msg)
	if err == nil || !domain.IsTerminal(err) {
		t.Fatalf("expected terminal error for zero quantity, got: %v", err)
	}
}

func TestFulfillment_UserLookupTransient(t *testing.T) {
	svc, repo, _, lookup, publisher := newFulfillmentFixture(5)
	lookup.err = context.DeadlineExceeded

	msg := orderMessage(t, 1, event.OrderCreated{ProductID: "p1", Quantity: 3, UserID: "u1"})
	err := svc.Handle(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.IsTerminal(err) {
		t.Error("lookup timeout must stay retryable")
	}

	// The decrement already happened and is not rolled back.
	p, _ := repo.GetProduct(context.Background(), "p1")
	if p.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", p.Quantity)
	}
	if publisher.count() != 0 {
		t.Errorf("no event must be published, got %d", publisher.count())
	}
}

func TestFulfillment_UserNotFoundTerminal(t *testing.T) {
	svc, _, _, lookup, publisher := newFulfillmentFixture(5)
	lookup.err = domain.ErrUserNotFound

	msg := orderMessage(t, 1, event.OrderCreated{ProductID: "p1", Quantity: 1, UserID: "ghost"})
	err := svc.Handle(context.Background(), msg)
	if !errors.Is(err, domain.ErrUserNotFound) || !domain.IsTerminal(err) {
		t.Fatalf("expected terminal ErrUserNotFound, got: %v", err)
	}
	if publisher.count() != 0 {
		t.Errorf("no event must be published, got %d", publisher.count())
	}
}

func TestFulfillment_RedeliveryIsIdempotent(t *testing.T) {
	svc, repo, _, _, publisher := newFulfillmentFixture(5)

	msg := orderMessage(t, 7, event.OrderCreated{ProductID: "p1", Quantity: 3, UserID: "u1"})
	if err := svc.Handle(context.Background(), msg); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	// Same bus coordinate again, as after a crash before offset commit.
	if err := svc.Handle(context.Background(), msg); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}

	p, _ := repo.GetProduct(context.Background(), "p1")
	if p.Quantity != 2 {
		t.Errorf("stock must be decremented once, got quantity %d", p.Quantity)
	}

	if publisher.count() != 2 {
		t.Fatalf("expected 2 published events, got %d", publisher.count())
	}
	var first, second event.ProductUpdated
	json.Unmarshal(publisher.payloads[0], &first)
	json.Unmarshal(publisher.payloads[1], &second)
	if first.OrderID != second.OrderID {
		t.Errorf("redelivery must reuse correlation id: %s vs %s", first.OrderID, second.OrderID)
	}
}

func TestFulfillment_CacheFailureIsRetryable(t *testing.T) {
	svc, repo, cache, _, publisher := newFulfillmentFixture(5)
	cache.putErr = errors.New("redis down")

	msg := orderMessage(t, 1, event.OrderCreated{ProductID: "p1", Quantity: 3, UserID: "u1"})
	err := svc.Handle(context.Background(), msg)
	if err == nil || domain.IsTerminal(err) {
		t.Fatalf("expected retryable error, got: %v", err)
	}
	if publisher.count() != 0 {
		t.Errorf("no event before cache refresh, got %d", publisher.count())
	}

	// Retry succeeds once the cache recovers, without a second decrement.
	cache.putErr = nil
	if err := svc.Handle(context.Background(), msg); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	p, _ := repo.GetProduct(context.Background(), "p1")
	if p.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", p.Quantity)
	}
}

func TestFulfillment_Ordering(t *testing.T) {
	svc, repo, _, _, _ := newFulfillmentFixture(10)

	// Same product id means same partition, so the consumer sees publish order.
	first := orderMessage(t, 1, event.OrderCreated{ProductID: "p1", Quantity: 4, UserID: "u1"})
	second := orderMessage(t, 2, event.OrderCreated{ProductID: "p1", Quantity: 6, UserID: "u1"})

	if err := svc.Handle(context.Background(), first); err != nil {
		t.Fatalf("first order failed: %v", err)
	}
	p, _ := repo.GetProduct(context.Background(), "p1")
	if p.Quantity != 6 {
		t.Fatalf("expected quantity 6 after first order, got %d", p.Quantity)
	}

	if err := svc.Handle(context.Background(), second); err != nil {
		t.Fatalf("second order failed: %v", err)
	}
	p, _ = repo.GetProduct(context.Background(), "p1")
	if p.Quantity != 0 {
		t.Errorf("expected quantity 0 after second order, got %d", p.Quantity)
	}
}

func TestFulfillment_ConcurrentNoOverselling(t *testing.T) {
	initialStock := 20
	totalOrders := 50

	svc, repo, _, _, _ := newFulfillmentFixture(initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalOrders; i++ {
		wg.Add(1)
		go func(offset int64) {
			defer wg.Done()
			msg := orderMessage(t, offset, event.OrderCreated{ProductID: "p1", Quantity: 1, UserID: "u1"})
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := svc.Handle(ctx, msg); err == nil {
				successCount.Add(1)
			}
		}(int64(i))
	}
	wg.Wait()

	if got := int(successCount.Load()); got != initialStock {
		t.Errorf("expected %d successful orders, got %d", initialStock, got)
	}
	p, _ := repo.GetProduct(context.Background(), "p1")
	if p.Quantity != 0 {
		t.Errorf("expected quantity 0, got %d", p.Quantity)
	}
	if p.Quantity < 0 {
		t.Error("quantity must never go negative")
	}
}
