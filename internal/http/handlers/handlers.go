package handlers

import (
	"context"

	"github.com/tbourn/go-order-core/internal/domain"
	"github.com/tbourn/go-order-core/internal/services"
)

//
// Service contracts (context-aware)
//

// CheckoutService turns checkout submissions into orders, at most one per
// idempotency key.
type CheckoutService interface {
	Submit(ctx context.Context, key string, p services.CheckoutPayload) (*services.Submission, error)
}

// OrderService reads orders.
type OrderService interface {
	Get(ctx context.Context, id string) (*services.OrderSnapshot, error)
	// ETag returns the weak entity tag of the current order representation
	// without loading it.
	ETag(ctx context.Context, id string) (string, error)
}

// TransitionService moves orders through the status lifecycle.
type TransitionService interface {
	Transition(ctx context.Context, id string, target domain.Status, expected *domain.Status) (*services.OrderSnapshot, error)
}

// Handlers groups the HTTP endpoints of the order core.
type Handlers struct {
	checkout    CheckoutService
	orders      OrderService
	transitions TransitionService
}

// New returns Handlers bound to the given services.
func New(checkout CheckoutService, orders OrderService, transitions TransitionService) *Handlers {
	return &Handlers{checkout: checkout, orders: orders, transitions: transitions}
}
