package service

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
)

// ProductCatalog looks products up by id. A missing product is a NotFound error.
type ProductCatalog interface {
	FindByID(ctx context.Context, id string) (*domain.Product, error)
}

// CartEvents publishes cart changes.
type CartEvents interface {
	PublishCartUpdated(ctx context.Context, cart *domain.Cart) error
	PublishCartCleared(ctx context.Context, cart *domain.Cart) error
	PublishCartMerged(ctx context.Context, cart *domain.Cart, guestID string) error
}

// CheckoutEvents publishes checkout progress and the resulting order.
type CheckoutEvents interface {
	PublishCheckoutCreated(ctx context.Context, s *domain.CheckoutSession) error
	PublishCheckoutPaid(ctx context.Context, s *domain.CheckoutSession) error
	PublishOrderCreated(ctx context.Context, o *domain.Order) error
}

// OrderEvents publishes order fulfilment changes.
type OrderEvents interface {
	PublishOrderStatusChanged(ctx context.Context, o *domain.Order, oldStatus string) error
}
