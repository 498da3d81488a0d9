package repository

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

// CartRepository persists carts keyed by owner. Writes are compare-and-swap
// on Cart.Version; a false result means another writer got there first.
type CartRepository interface {
	// Get returns the owner's cart or a NotFound error.
	Get(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)

	// SaveIfVersion writes cart under cart.Owner if the stored version still
	// equals expected (0 means no cart may exist yet). On success
	// cart.Version becomes expected+1.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int) (bool, error)

	// Transfer writes cart under cart.Owner and deletes the cart of from in a
	// single transaction. Both stored versions must still match.
	Transfer(ctx context.Context, cart *domain.Cart, expected int, from domain.CartOwner, fromVersion int) (bool, error)

	// Delete removes the owner's cart and reports whether one existed.
	Delete(ctx context.Context, owner domain.CartOwner) (bool, error)

	// DeleteIfVersion removes the owner's cart only while its stored version
	// still equals expected. A false result means the cart changed or is gone.
	DeleteIfVersion(ctx context.Context, owner domain.CartOwner, expected int) (bool, error)
}

// CheckoutRepository persists checkout sessions. State changes are single
// conditional updates so concurrent callers cannot both succeed.
type CheckoutRepository interface {
	Create(ctx context.Context, s *domain.CheckoutSession) error

	// GetByID returns the session or a NotFound error.
	GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error)

	// MarkPaid flips an unpaid, unfinalized session to paid. It returns
	// (nil, nil) when no row matched.
	MarkPaid(ctx context.Context, id string, details []byte) (*domain.CheckoutSession, error)

	// Finalize marks a paid session finalized and inserts the order built by
	// build in the same transaction. It returns (nil, nil) when the session
	// was missing, unpaid or already finalized.
	Finalize(ctx context.Context, id string, build func(*domain.CheckoutSession) *domain.Order) (*domain.Order, error)
}

// OrderRepository reads orders and moves their fulfilment status.
type OrderRepository interface {
	// GetByID returns the order or a NotFound error.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns one page of orders matching filter, newest first, and the
	// total number of matches.
	List(ctx context.Context, filter domain.OrderFilter, page pagination.Params) ([]domain.Order, int, error)

	// UpdateStatus moves the order from one status to another. It returns
	// (nil, nil) when the order is missing or no longer in status from.
	UpdateStatus(ctx context.Context, id, from, to string) (*domain.Order, error)
}
