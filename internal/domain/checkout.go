package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Payment status constants.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Address is a shipping address.
type Address struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// CheckoutSession is a snapshot of a cart being paid for. It moves
// pending -> paid -> finalized and never back.
type CheckoutSession struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []CartLine      `json:"checkoutItems"`
	ShippingAddress Address         `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	TotalPrice      int64           `json:"totalPrice"`
	PaymentStatus   string          `json:"paymentStatus"`
	IsPaid          bool            `json:"isPaid"`
	PaymentDetails  json.RawMessage `json:"paymentDetails,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	IsFinalized     bool            `json:"isFinalized"`
	FinalizedAt     *time.Time      `json:"finalizedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewCheckoutSession creates a pending session for userID.
func NewCheckoutSession(userID string, items []CartLine, addr Address, paymentMethod string, totalPrice int64, now time.Time) *CheckoutSession {
	return &CheckoutSession{
		ID:              uuid.NewString(),
		UserID:          userID,
		Items:           items,
		ShippingAddress: addr,
		PaymentMethod:   paymentMethod,
		TotalPrice:      totalPrice,
		PaymentStatus:   PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
