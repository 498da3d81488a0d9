package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
)

// OrderService is the order behaviour the handler needs.
type OrderService interface {
	Get(ctx context.Context, id domain.RequestIdentity, orderID string) (*domain.Order, error)
	ListMine(ctx context.Context, id domain.RequestIdentity, page pagination.Params) ([]domain.Order, int, error)
	List(ctx context.Context, id domain.RequestIdentity, status string, page pagination.Params) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id domain.RequestIdentity, orderID, status string) (*domain.Order, error)
}

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// UpdateStatusRequest is the JSON body for PUT /api/admin/orders/{id}.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=processing shipped delivered cancelled"`
}

// ListMyOrders handles GET /api/orders/my-orders.
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)

	orders, total, err := h.service.ListMine(r.Context(), requestIdentity(r, ""), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(orders, total, page))
}

// GetOrder handles GET /api/orders/{id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), requestIdentity(r, ""), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// ListOrders handles GET /api/admin/orders?status=.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)

	orders, total, err := h.service.List(r.Context(), requestIdentity(r, ""), r.URL.Query().Get("status"), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(orders, total, page))
}

// UpdateOrderStatus handles PUT /api/admin/orders/{id}.
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), requestIdentity(r, ""), id.String(), req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}
