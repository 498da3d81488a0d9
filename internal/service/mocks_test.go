package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/internal/domain"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- catalog ---

type fakeCatalog map[string]domain.Product

func (c fakeCatalog) FindByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := c[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &p, nil
}

func testCatalog() fakeCatalog {
	return fakeCatalog{
		"P1": {ID: "P1", Name: "Linen Shirt", Price: 2500, Image: "p1.jpg", Sizes: []string{"M"}, Colors: []string{"Red"}},
		"P2": {ID: "P2", Name: "Canvas Tote", Price: 1200, Image: "p2.jpg"},
	}
}

// --- events ---

type recordedEvent struct {
	kind string
	id   string
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (r *eventRecorder) record(kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{kind: kind, id: id})
	return r.err
}

func (r *eventRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.kind
	}
	return out
}

func (r *eventRecorder) PublishCartUpdated(_ context.Context, c *domain.Cart) error {
	return r.record("cart.updated", c.ID)
}

func (r *eventRecorder) PublishCartCleared(_ context.Context, c *domain.Cart) error {
	return r.record("cart.cleared", c.ID)
}

func (r *eventRecorder) PublishCartMerged(_ context.Context, c *domain.Cart, _ string) error {
	return r.record("cart.merged", c.ID)
}

func (r *eventRecorder) PublishCheckoutCreated(_ context.Context, s *domain.CheckoutSession) error {
	return r.record("checkout.created", s.ID)
}

func (r *eventRecorder) PublishCheckoutPaid(_ context.Context, s *domain.CheckoutSession) error {
	return r.record("checkout.paid", s.ID)
}

func (r *eventRecorder) PublishOrderCreated(_ context.Context, o *domain.Order) error {
	return r.record("order.created", o.ID)
}

func (r *eventRecorder) PublishOrderStatusChanged(_ context.Context, o *domain.Order, _ string) error {
	return r.record("order.status_changed", o.ID)
}

// --- carts ---

func newRedisCarts(t *testing.T) *redisrepo.CartRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisrepo.NewCartRepository(client, 24*time.Hour)
}

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int) (bool, error) {
	args := m.Called(ctx, cart, expected)
	return args.Bool(0), args.Error(1)
}

func (m *mockCartRepository) Transfer(ctx context.Context, cart *domain.Cart, expected int, from domain.CartOwner, fromVersion int) (bool, error) {
	args := m.Called(ctx, cart, expected, from, fromVersion)
	return args.Bool(0), args.Error(1)
}

func (m *mockCartRepository) Delete(ctx context.Context, owner domain.CartOwner) (bool, error) {
	args := m.Called(ctx, owner)
	return args.Bool(0), args.Error(1)
}

func (m *mockCartRepository) DeleteIfVersion(ctx context.Context, owner domain.CartOwner, expected int) (bool, error) {
	args := m.Called(ctx, owner, expected)
	return args.Bool(0), args.Error(1)
}

// --- checkout sessions ---

type mockCheckoutRepository struct {
	mock.Mock
}

func (m *mockCheckoutRepository) Create(ctx context.Context, s *domain.CheckoutSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockCheckoutRepository) GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockCheckoutRepository) MarkPaid(ctx context.Context, id string, details []byte) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, id, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockCheckoutRepository) Finalize(ctx context.Context, id string, build func(*domain.CheckoutSession) *domain.Order) (*domain.Order, error) {
	args := m.Called(ctx, id, build)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// memCheckouts is an in-memory CheckoutRepository whose conditional updates
// hold one lock, matching the row-level guarantees of the Postgres store.
type memCheckouts struct {
	mu       sync.Mutex
	sessions map[string]*domain.CheckoutSession
	orders   map[string]*domain.Order
}

func newMemCheckouts() *memCheckouts {
	return &memCheckouts{
		sessions: make(map[string]*domain.CheckoutSession),
		orders:   make(map[string]*domain.Order),
	}
}

func (m *memCheckouts) Create(_ context.Context, s *domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memCheckouts) GetByID(_ context.Context, id string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("checkout session", id)
	}
	cp := *s
	return &cp, nil
}

func (m *memCheckouts) MarkPaid(_ context.Context, id string, details []byte) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.IsPaid || s.IsFinalized {
		return nil, nil
	}
	now := time.Now().UTC()
	s.IsPaid = true
	s.PaymentStatus = domain.PaymentStatusPaid
	s.PaymentDetails = details
	s.PaidAt = &now
	cp := *s
	return &cp, nil
}

func (m *memCheckouts) Finalize(_ context.Context, id string, build func(*domain.CheckoutSession) *domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsPaid || s.IsFinalized {
		return nil, nil
	}
	if _, exists := m.orders[id]; exists {
		return nil, apperrors.AlreadyFinalized(id)
	}
	now := time.Now().UTC()
	s.IsFinalized = true
	s.FinalizedAt = &now
	cp := *s
	o := build(&cp)
	m.orders[id] = o
	return o, nil
}

// --- orders ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, filter domain.OrderFilter, page pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id, from, to string) (*domain.Order, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}
