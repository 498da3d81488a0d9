package domain

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Order status constants.
const (
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Order is the record of a finalized checkout. Its items, address and payment
// data never change; only the fulfilment status moves.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	CheckoutID      string          `json:"checkoutId"`
	Items           []CartLine      `json:"orderItems"`
	ShippingAddress Address         `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	TotalPrice      int64           `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentStatus   string          `json:"paymentStatus"`
	PaymentDetails  json.RawMessage `json:"paymentDetails,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderFilter narrows an order listing. Empty fields match everything.
type OrderFilter struct {
	UserID string
	Status string
}

// NewOrderFromCheckout copies a paid session into a new processing order.
func NewOrderFromCheckout(s *CheckoutSession, now time.Time) *Order {
	return &Order{
		ID:              uuid.NewString(),
		UserID:          s.UserID,
		CheckoutID:      s.ID,
		Items:           s.Items,
		ShippingAddress: s.ShippingAddress,
		PaymentMethod:   s.PaymentMethod,
		TotalPrice:      s.TotalPrice,
		IsPaid:          true,
		PaidAt:          s.PaidAt,
		PaymentStatus:   PaymentStatusPaid,
		PaymentDetails:  s.PaymentDetails,
		Status:          OrderStatusProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	return slices.Contains(ValidStatuses(), status)
}

// AllowedTransitions defines which status transitions are valid.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:    {OrderStatusDelivered},
		OrderStatusDelivered:  {},
		OrderStatusCancelled:  {},
	}
}

// CanTransitionTo checks if the order can move to target.
func (o *Order) CanTransitionTo(target string) bool {
	return slices.Contains(AllowedTransitions()[o.Status], target)
}

// IsVisibleTo reports whether id may read the order.
func (o *Order) IsVisibleTo(id RequestIdentity) bool {
	return id.IsAdmin() || (id.IsAuthenticated() && o.UserID == id.UserID)
}
