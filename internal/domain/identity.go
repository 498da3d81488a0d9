package domain

import "github.com/google/uuid"

// Cart owner kinds.
const (
	OwnerUser  = "user"
	OwnerGuest = "guest"
)

// RoleAdmin is the role allowed to list and update every order.
const RoleAdmin = "admin"

const guestIDPrefix = "guest_"

// CartOwner identifies who a cart belongs to: a registered user or a guest.
type CartOwner struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// UserOwner returns the owner for a registered user.
func UserOwner(userID string) CartOwner {
	return CartOwner{Kind: OwnerUser, ID: userID}
}

// GuestOwner returns the owner for a guest.
func GuestOwner(guestID string) CartOwner {
	return CartOwner{Kind: OwnerGuest, ID: guestID}
}

// Key is the storage key suffix, e.g. "user:42" or "guest:guest_ab12".
func (o CartOwner) Key() string {
	return o.Kind + ":" + o.ID
}

// IsUser reports whether the owner is a registered user.
func (o CartOwner) IsUser() bool { return o.Kind == OwnerUser }

// NewGuestID generates an id for a shopper who has none yet.
func NewGuestID() string {
	return guestIDPrefix + uuid.NewString()
}

// RequestIdentity is who a request acts for. UserID and Role come only from a
// verified token; GuestID is whatever the client sent.
type RequestIdentity struct {
	UserID  string
	Role    string
	GuestID string
}

// IsAuthenticated reports whether a verified user is present.
func (i RequestIdentity) IsAuthenticated() bool { return i.UserID != "" }

// IsAdmin reports whether the verified user has the admin role.
func (i RequestIdentity) IsAdmin() bool { return i.IsAuthenticated() && i.Role == RoleAdmin }

// HasOwner reports whether the identity can name at least one cart.
func (i RequestIdentity) HasOwner() bool { return i.UserID != "" || i.GuestID != "" }

// Owners lists the carts the identity may use, in lookup order: the user's
// cart first, then the guest's.
func (i RequestIdentity) Owners() []CartOwner {
	owners := make([]CartOwner, 0, 2)
	if i.UserID != "" {
		owners = append(owners, UserOwner(i.UserID))
	}
	if i.GuestID != "" {
		owners = append(owners, GuestOwner(i.GuestID))
	}
	return owners
}

// NewCartOwner returns the owner for a cart created by this identity. A guest
// without an id gets a generated one.
func (i RequestIdentity) NewCartOwner() CartOwner {
	if i.UserID != "" {
		return UserOwner(i.UserID)
	}
	if i.GuestID != "" {
		return GuestOwner(i.GuestID)
	}
	return GuestOwner(NewGuestID())
}
