package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cart is a shopper's cart. Lines are unique by LineKey and always have a
// positive quantity; TotalPrice is kept equal to the sum of line totals.
type Cart struct {
	ID         string     `json:"id"`
	Owner      CartOwner  `json:"owner"`
	Lines      []CartLine `json:"products"`
	TotalPrice int64      `json:"totalPrice"`
	Version    int        `json:"version"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// CartLine is a product snapshot taken when it was first added. Price is in
// cents and is never re-read from the catalog.
type CartLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Price     int64  `json:"price"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

// LineKey is the identity of a cart line.
type LineKey struct {
	ProductID string
	Size      string
	Color     string
}

// Key returns the line's identity.
func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

// Subtotal is price times quantity.
func (l CartLine) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

// NewCart creates an empty cart for owner.
func NewCart(owner CartOwner, now time.Time) *Cart {
	return &Cart{
		ID:        uuid.NewString(),
		Owner:     owner,
		Lines:     []CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FindLine returns the index of the line with key k, or -1.
func (c *Cart) FindLine(k LineKey) int {
	for i := range c.Lines {
		if c.Lines[i].Key() == k {
			return i
		}
	}
	return -1
}

// AddLine increments the quantity of an existing line with the same key or
// appends line as a new one.
func (c *Cart) AddLine(line CartLine) {
	if idx := c.FindLine(line.Key()); idx >= 0 {
		c.Lines[idx].Quantity += line.Quantity
	} else {
		c.Lines = append(c.Lines, line)
	}
	c.Recalculate()
}

// SetQuantity sets the quantity of the line with key k. A quantity of zero or
// less removes the line. It returns false if no such line exists.
func (c *Cart) SetQuantity(k LineKey, quantity int) bool {
	idx := c.FindLine(k)
	if idx < 0 {
		return false
	}
	if quantity <= 0 {
		c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	} else {
		c.Lines[idx].Quantity = quantity
	}
	c.Recalculate()
	return true
}

// RemoveLine removes the line with key k. It returns false if no such line exists.
func (c *Cart) RemoveLine(k LineKey) bool {
	return c.SetQuantity(k, 0)
}

// MergeFrom folds other's lines into c: quantities add up on matching keys,
// the rest are appended in other's order.
func (c *Cart) MergeFrom(other *Cart) {
	for _, line := range other.Lines {
		if idx := c.FindLine(line.Key()); idx >= 0 {
			c.Lines[idx].Quantity += line.Quantity
			continue
		}
		c.Lines = append(c.Lines, line)
	}
	c.Recalculate()
}

// Recalculate recomputes TotalPrice from the lines.
func (c *Cart) Recalculate() {
	c.TotalPrice = LinesTotal(c.Lines)
}

// ItemCount returns the total quantity across all lines.
func (c *Cart) ItemCount() int {
	var n int
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Touch bumps UpdatedAt and ExpiresAt after a mutation.
func (c *Cart) Touch(now time.Time, ttl time.Duration) {
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(ttl)
}

// LinesTotal is the sum of the lines' subtotals.
func LinesTotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}
