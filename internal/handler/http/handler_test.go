package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/pagination"
)

// --- mocks ---

type mockCartService struct{ mock.Mock }

func (m *mockCartService) Get(ctx context.Context, id domain.RequestIdentity) (*domain.Cart, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartService) AddItem(ctx context.Context, id domain.RequestIdentity, in service.AddItemInput) (*domain.Cart, bool, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.Cart), args.Bool(1), args.Error(2)
}

func (m *mockCartService) UpdateItemQuantity(ctx context.Context, id domain.RequestIdentity, in service.UpdateItemInput) (*domain.Cart, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartService) RemoveItem(ctx context.Context, id domain.RequestIdentity, in service.RemoveItemInput) (*domain.Cart, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartService) Clear(ctx context.Context, id domain.RequestIdentity) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCartService) Merge(ctx context.Context, guestID, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, guestID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

type mockCheckoutService struct{ mock.Mock }

func (m *mockCheckoutService) Create(ctx context.Context, id domain.RequestIdentity, in service.CreateCheckoutInput) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockCheckoutService) Get(ctx context.Context, id domain.RequestIdentity, sessionID string) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, id, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockCheckoutService) MarkPaid(ctx context.Context, id domain.RequestIdentity, sessionID string, in service.MarkPaidInput) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, id, sessionID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockCheckoutService) Finalize(ctx context.Context, id domain.RequestIdentity, sessionID string) (*domain.Order, error) {
	args := m.Called(ctx, id, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type mockOrderService struct{ mock.Mock }

func (m *mockOrderService) Get(ctx context.Context, id domain.RequestIdentity, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, id, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderService) ListMine(ctx context.Context, id domain.RequestIdentity, page pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, id, page)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderService) List(ctx context.Context, id domain.RequestIdentity, status string, page pagination.Params) ([]domain.Order, int, error) {
	args := m.Called(ctx, id, status, page)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, id domain.RequestIdentity, orderID, status string) (*domain.Order, error) {
	args := m.Called(ctx, id, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// --- helpers ---

// testTokens accepts "user-<id>" and "admin-<id>" bearer tokens.
func testTokens(token string) (*middleware.Claims, error) {
	switch {
	case len(token) > 5 && token[:5] == "user-":
		return &middleware.Claims{UserID: token[5:], Role: "customer"}, nil
	case len(token) > 6 && token[:6] == "admin-":
		return &middleware.Claims{UserID: token[6:], Role: domain.RoleAdmin}, nil
	}
	return nil, errors.New("bad token")
}

type testAPI struct {
	handler  http.Handler
	cart     *mockCartService
	checkout *mockCheckoutService
	orders   *mockOrderService
}

func newTestAPI() *testAPI {
	api := &testAPI{
		cart:     new(mockCartService),
		checkout: new(mockCheckoutService),
		orders:   new(mockOrderService),
	}
	api.handler = NewRouter(RouterConfig{
		Cart:           api.cart,
		Checkout:       api.checkout,
		Orders:         api.orders,
		Health:         health.NewHandler(),
		Tokens:         testTokens,
		RequestTimeout: 5 * time.Second,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return api
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func newRawRequest(method, path, body, contentType string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	return req
}

func serve(a *testAPI, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func sampleCart(owner domain.CartOwner) *domain.Cart {
	c := domain.NewCart(owner, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	c.AddLine(domain.CartLine{ProductID: "P1", Name: "Linen Shirt", Price: 2500, Size: "M", Color: "Red", Quantity: 2})
	return c
}

const checkoutID = "7c1e9a58-3b0b-4d1c-9a57-0d3f5b9e2c11"
