package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Event types. The topic is pkgkafka.Topic(type), e.g. storefront.cart.merged.
const (
	TypeCartUpdated        = "cart.updated"
	TypeCartCleared        = "cart.cleared"
	TypeCartMerged         = "cart.merged"
	TypeCheckoutCreated    = "checkout.created"
	TypeCheckoutPaid       = "checkout.paid"
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

// Aggregate type constants.
const (
	AggregateCart     = "cart"
	AggregateCheckout = "checkout"
	AggregateOrder    = "order"
)

// Source identifies events originating from this service.
const Source = "storefront"

// CartData is the payload for cart.updated and cart.cleared.
type CartData struct {
	CartID     string     `json:"cart_id"`
	OwnerKind  string     `json:"owner_kind"`
	OwnerID    string     `json:"owner_id"`
	Items      []LineData `json:"items"`
	ItemCount  int        `json:"item_count"`
	TotalPrice int64      `json:"total_price"`
}

// LineData is the line payload within cart, checkout and order events.
type LineData struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// CartMergedData is the payload for cart.merged.
type CartMergedData struct {
	CartData
	GuestID string `json:"guest_id"`
}

// CheckoutData is the payload for checkout.created and checkout.paid.
type CheckoutData struct {
	CheckoutID    string     `json:"checkout_id"`
	UserID        string     `json:"user_id"`
	Items         []LineData `json:"items"`
	TotalPrice    int64      `json:"total_price"`
	PaymentMethod string     `json:"payment_method"`
	PaymentStatus string     `json:"payment_status"`
}

// OrderData is the payload for order.created and order.status_changed.
type OrderData struct {
	OrderID    string     `json:"order_id"`
	CheckoutID string     `json:"checkout_id"`
	UserID     string     `json:"user_id"`
	Items      []LineData `json:"items,omitempty"`
	TotalPrice int64      `json:"total_price"`
	Status     string     `json:"status"`
	OldStatus  string     `json:"old_status,omitempty"`
}

// publisher is the part of *pkgkafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func lines(in []domain.CartLine) []LineData {
	out := make([]LineData, len(in))
	for i, l := range in {
		out[i] = LineData{
			ProductID: l.ProductID,
			Size:      l.Size,
			Color:     l.Color,
			Price:     l.Price,
			Quantity:  l.Quantity,
		}
	}
	return out
}

func cartData(c *domain.Cart) CartData {
	return CartData{
		CartID:     c.ID,
		OwnerKind:  c.Owner.Kind,
		OwnerID:    c.Owner.ID,
		Items:      lines(c.Lines),
		ItemCount:  c.ItemCount(),
		TotalPrice: c.TotalPrice,
	}
}

func (p *Producer) publish(ctx context.Context, eventType, aggregateType, aggregateID string, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, aggregateType, aggregateID, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, pkgkafka.Topic(eventType), evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published domain event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	return p.publish(ctx, TypeCartUpdated, AggregateCart, cart.ID, cartData(cart))
}

// PublishCartCleared publishes a cart.cleared event with the cart as it was
// before deletion.
func (p *Producer) PublishCartCleared(ctx context.Context, cart *domain.Cart) error {
	return p.publish(ctx, TypeCartCleared, AggregateCart, cart.ID, cartData(cart))
}

// PublishCartMerged publishes a cart.merged event for the user cart that
// absorbed guestID's cart.
func (p *Producer) PublishCartMerged(ctx context.Context, cart *domain.Cart, guestID string) error {
	return p.publish(ctx, TypeCartMerged, AggregateCart, cart.ID, CartMergedData{
		CartData: cartData(cart),
		GuestID:  guestID,
	})
}

func checkoutData(s *domain.CheckoutSession) CheckoutData {
	return CheckoutData{
		CheckoutID:    s.ID,
		UserID:        s.UserID,
		Items:         lines(s.Items),
		TotalPrice:    s.TotalPrice,
		PaymentMethod: s.PaymentMethod,
		PaymentStatus: s.PaymentStatus,
	}
}

// PublishCheckoutCreated publishes a checkout.created event.
func (p *Producer) PublishCheckoutCreated(ctx context.Context, s *domain.CheckoutSession) error {
	return p.publish(ctx, TypeCheckoutCreated, AggregateCheckout, s.ID, checkoutData(s))
}

// PublishCheckoutPaid publishes a checkout.paid event.
func (p *Producer) PublishCheckoutPaid(ctx context.Context, s *domain.CheckoutSession) error {
	return p.publish(ctx, TypeCheckoutPaid, AggregateCheckout, s.ID, checkoutData(s))
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TypeOrderCreated, AggregateOrder, o.ID, OrderData{
		OrderID:    o.ID,
		CheckoutID: o.CheckoutID,
		UserID:     o.UserID,
		Items:      lines(o.Items),
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
	})
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, o *domain.Order, oldStatus string) error {
	return p.publish(ctx, TypeOrderStatusChanged, AggregateOrder, o.ID, OrderData{
		OrderID:    o.ID,
		CheckoutID: o.CheckoutID,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
		OldStatus:  oldStatus,
	})
}
