package http

import (
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/middleware"
)

// requestIdentity returns the verified caller, if any, plus guestID.
func requestIdentity(r *http.Request, guestID string) domain.RequestIdentity {
	id := domain.RequestIdentity{GuestID: guestID}
	if c := middleware.ClaimsFromContext(r.Context()); c != nil {
		id.UserID = c.UserID
		id.Role = c.Role
	}
	return id
}

// cartIdentity is requestIdentity for cart routes, where clients may also
// name the user they act for. A claimed userID must match the token.
func cartIdentity(r *http.Request, claimedUserID, guestID string) (domain.RequestIdentity, error) {
	id := requestIdentity(r, guestID)
	if claimedUserID == "" {
		return id, nil
	}
	if !id.IsAuthenticated() {
		return id, apperrors.Unauthorized("authentication required to act for a user")
	}
	if claimedUserID != id.UserID {
		return id, apperrors.Forbidden("userId does not match the authenticated user")
	}
	return id, nil
}
