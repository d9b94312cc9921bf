package port

import (
	"context"

	"github.com/shopworks/fulfillment/internal/core/domain"
)

type ProductRepository interface {
	// CreateProduct persists a new product
	CreateProduct(ctx context.Context, product domain.Product) error

	// GetProduct retrieves a product by ID, nil if absent
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// UpdateProduct overwrites an existing product
	UpdateProduct(ctx context.Context, product domain.Product) error

	// DeleteProduct removes a product by ID
	DeleteProduct(ctx context.Context, id string) error

	// SearchProducts finds products whose name contains term (case-insensitive)
	SearchProducts(ctx context.Context, term string) ([]domain.Product, error)

	// DecrementStock atomically applies quantity -= qty iff quantity >= qty and
	// ledgerKey has not been processed before. The ledger insert and the
	// conditional decrement run in one transaction. When ledgerKey was already
	// processed the decrement is skipped and the correlation id recorded for it
	// is returned instead of correlationID; applied reports whether the
	// decrement ran in this call. The returned product reflects current state.
	DecrementStock(ctx context.Context, productID string, qty int, ledgerKey, correlationID string) (product *domain.Product, corrID string, applied bool, err error)
}

type UserRepository interface {
	// CreateUser persists a new user
	CreateUser(ctx context.Context, user domain.User) error

	// GetUser retrieves a user by ID, nil if absent
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetUserByEmail retrieves a user by email, nil if absent
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateUser overwrites an existing user
	UpdateUser(ctx context.Context, user domain.User) error

	// DeleteUser removes a user by ID
	DeleteUser(ctx context.Context, id string) error
}
