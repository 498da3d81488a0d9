package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// CartService is the cart behaviour the handler needs.
type CartService interface {
	Get(ctx context.Context, id domain.RequestIdentity) (*domain.Cart, error)
	AddItem(ctx context.Context, id domain.RequestIdentity, input service.AddItemInput) (*domain.Cart, bool, error)
	UpdateItemQuantity(ctx context.Context, id domain.RequestIdentity, input service.UpdateItemInput) (*domain.Cart, error)
	RemoveItem(ctx context.Context, id domain.RequestIdentity, input service.RemoveItemInput) (*domain.Cart, error)
	Clear(ctx context.Context, id domain.RequestIdentity) error
	Merge(ctx context.Context, guestID, userID string) (*domain.Cart, error)
}

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON body for POST /api/cart.
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	GuestID   string `json:"guestId"`
	UserID    string `json:"userId"`
}

// UpdateItemRequest is the JSON body for PUT /api/cart. A quantity of zero
// or less removes the line.
type UpdateItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	GuestID   string `json:"guestId"`
	UserID    string `json:"userId"`
}

// RemoveItemRequest is the JSON body for DELETE /api/cart.
type RemoveItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	GuestID   string `json:"guestId"`
	UserID    string `json:"userId"`
}

// OwnerRequest is the JSON body for POST /api/cart/clear.
type OwnerRequest struct {
	GuestID string `json:"guestId"`
	UserID  string `json:"userId"`
}

// MergeRequest is the JSON body for POST /api/cart/merge.
type MergeRequest struct {
	GuestID string `json:"guestId" validate:"required"`
}

// --- Handlers ---

// GetCart handles GET /api/cart?guestId=&userId=
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := cartIdentity(r, q.Get("userId"), q.Get("guestId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// AddItem handles POST /api/cart. It answers 201 when the cart was created.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	id, err := cartIdentity(r, req.UserID, req.GuestID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, created, err := h.service.AddItem(r.Context(), id, service.AddItemInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Size:      req.Size,
		Color:     req.Color,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteData(w, status, cart)
}

// UpdateItemQuantity handles PUT /api/cart.
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	id, err := cartIdentity(r, req.UserID, req.GuestID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.UpdateItemQuantity(r.Context(), id, service.UpdateItemInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Size:      req.Size,
		Color:     req.Color,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// RemoveItem handles DELETE /api/cart.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	var req RemoveItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	id, err := cartIdentity(r, req.UserID, req.GuestID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), id, service.RemoveItemInput{
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}

// ClearCart handles POST /api/cart/clear.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	var req OwnerRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	id, err := cartIdentity(r, req.UserID, req.GuestID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.Clear(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}

// MergeCart handles POST /api/cart/merge. The target user is always the
// authenticated caller.
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	id := requestIdentity(r, req.GuestID)

	cart, err := h.service.Merge(r.Context(), req.GuestID, id.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, cart)
}
