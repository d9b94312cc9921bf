package port

import (
	"context"

	"github.com/shopworks/fulfillment/internal/core/domain"
)

type UserLookup interface {
	// Lookup fetches the user from the user service. Returns
	// domain.ErrUserNotFound when the service answers 404.
	Lookup(ctx context.Context, id string) (*domain.User, error)
}

type Notifier interface {
	// Notify delivers an order confirmation to email for orderID
	Notify(ctx context.Context, email, orderID string) error
}
