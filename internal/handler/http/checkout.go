package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// CheckoutService is the checkout behaviour the handler needs.
type CheckoutService interface {
	Create(ctx context.Context, id domain.RequestIdentity, input service.CreateCheckoutInput) (*domain.CheckoutSession, error)
	Get(ctx context.Context, id domain.RequestIdentity, sessionID string) (*domain.CheckoutSession, error)
	MarkPaid(ctx context.Context, id domain.RequestIdentity, sessionID string, input service.MarkPaidInput) (*domain.CheckoutSession, error)
	Finalize(ctx context.Context, id domain.RequestIdentity, sessionID string) (*domain.Order, error)
}

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// CheckoutItemRequest is one line of a checkout.
type CheckoutItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Name      string `json:"name" validate:"required,max=500"`
	Image     string `json:"image"`
	Price     int64  `json:"price" validate:"gte=0"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// AddressRequest is a shipping address.
type AddressRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone"`
}

// CreateCheckoutRequest is the JSON body for POST /api/checkout.
type CreateCheckoutRequest struct {
	CheckoutItems   []CheckoutItemRequest `json:"checkoutItems" validate:"required,min=1,dive"`
	ShippingAddress AddressRequest        `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod" validate:"required"`
	TotalPrice      int64                 `json:"totalPrice" validate:"gte=0"`
}

// MarkPaidRequest is the JSON body for PUT /api/checkout/{id}/pay.
type MarkPaidRequest struct {
	PaymentStatus  string          `json:"paymentStatus"`
	PaymentDetails json.RawMessage `json:"paymentDetails"`
}

func (req CreateCheckoutRequest) toInput() service.CreateCheckoutInput {
	items := make([]domain.CartLine, len(req.CheckoutItems))
	for i, it := range req.CheckoutItems {
		items[i] = domain.CartLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     it.Price,
			Size:      it.Size,
			Color:     it.Color,
			Quantity:  it.Quantity,
		}
	}
	a := req.ShippingAddress
	return service.CreateCheckoutInput{
		Items: items,
		ShippingAddress: domain.Address{
			FirstName:  a.FirstName,
			LastName:   a.LastName,
			Address:    a.Address,
			City:       a.City,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Phone:      a.Phone,
		},
		PaymentMethod: req.PaymentMethod,
		TotalPrice:    req.TotalPrice,
	}
}

// CreateCheckout handles POST /api/checkout.
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req CreateCheckoutRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	session, err := h.service.Create(r.Context(), requestIdentity(r, ""), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, session)
}

// GetCheckout handles GET /api/checkout/{id}.
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	session, err := h.service.Get(r.Context(), requestIdentity(r, ""), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, session)
}

// MarkPaid handles PUT /api/checkout/{id}/pay.
func (h *CheckoutHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req MarkPaidRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	session, err := h.service.MarkPaid(r.Context(), requestIdentity(r, ""), id.String(), service.MarkPaidInput{
		PaymentStatus:  req.PaymentStatus,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, session)
}

// Finalize handles POST /api/checkout/{id}/finalize and answers 201 with the
// new order.
func (h *CheckoutHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.Finalize(r.Context(), requestIdentity(r, ""), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, order)
}
