package event

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, e *pkgkafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic: topic, event: e})
	return nil
}

func newProducer() (*Producer, *fakePublisher) {
	fp := &fakePublisher{}
	return NewProducer(fp, slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))), fp
}

func sampleCart() *domain.Cart {
	c := domain.NewCart(domain.UserOwner("U1"), time.Now())
	c.AddLine(domain.CartLine{ProductID: "P1", Size: "M", Color: "Red", Price: 1000, Quantity: 3})
	return c
}

func TestPublishCartMerged(t *testing.T) {
	p, fp := newProducer()
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	cart := sampleCart()

	require.NoError(t, p.PublishCartMerged(ctx, cart, "G1"))

	require.Len(t, fp.sent, 1)
	msg := fp.sent[0]
	assert.Equal(t, "storefront.cart.merged", msg.topic)
	assert.Equal(t, TypeCartMerged, msg.event.EventType)
	assert.Equal(t, AggregateCart, msg.event.AggregateType)
	assert.Equal(t, cart.ID, msg.event.AggregateID)
	assert.Equal(t, "corr-1", msg.event.CorrelationID)
	assert.Equal(t, Source, msg.event.Source)

	var data CartMergedData
	require.NoError(t, msg.event.UnmarshalData(&data))
	assert.Equal(t, "G1", data.GuestID)
	assert.Equal(t, "user", data.OwnerKind)
	assert.Equal(t, 3, data.ItemCount)
	assert.Equal(t, int64(3000), data.TotalPrice)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "P1", data.Items[0].ProductID)
}

func TestPublishCheckoutAndOrderEvents(t *testing.T) {
	p, fp := newProducer()
	ctx := context.Background()
	s := domain.NewCheckoutSession("U1", sampleCart().Lines, domain.Address{}, "paypal", 3000, time.Now())
	o := domain.NewOrderFromCheckout(s, time.Now())

	require.NoError(t, p.PublishCheckoutCreated(ctx, s))
	require.NoError(t, p.PublishCheckoutPaid(ctx, s))
	require.NoError(t, p.PublishOrderCreated(ctx, o))
	o.Status = domain.OrderStatusShipped
	require.NoError(t, p.PublishOrderStatusChanged(ctx, o, domain.OrderStatusProcessing))

	topics := make([]string, len(fp.sent))
	for i, m := range fp.sent {
		topics[i] = m.topic
	}
	assert.Equal(t, []string{
		"storefront.checkout.created",
		"storefront.checkout.paid",
		"storefront.order.created",
		"storefront.order.status_changed",
	}, topics)
	assert.Empty(t, fp.sent[0].event.CorrelationID)

	var od OrderData
	require.NoError(t, fp.sent[2].event.UnmarshalData(&od))
	assert.Equal(t, s.ID, od.CheckoutID)
	assert.Equal(t, domain.OrderStatusProcessing, od.Status)

	require.NoError(t, fp.sent[3].event.UnmarshalData(&od))
	assert.Equal(t, domain.OrderStatusProcessing, od.OldStatus)
	assert.Equal(t, domain.OrderStatusShipped, od.Status)
}

func TestPublish_Error(t *testing.T) {
	p, fp := newProducer()
	fp.err = errors.New("broker down")

	err := p.PublishCartCleared(context.Background(), sampleCart())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish cart.cleared event")
}
