package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/storefront/pkg/middleware"
)

const leeway = 30 * time.Second

// tokenClaims accepts both the flat user_id/role layout and the nested
// {"user": {"id", "role"}} layout used by the storefront's token issuer.
type tokenClaims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   string      `json:"role"`
	User   *nestedUser `json:"user,omitempty"`
	jwt.RegisteredClaims
}

type nestedUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Verifier validates HS256 access tokens. Issuing tokens is the user
// service's job; this side only checks them.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(leeway),
		),
	}
}

// Validate parses and verifies token and returns its principal. It matches
// middleware.TokenValidator.
func (v *Verifier) Validate(token string) (*middleware.Claims, error) {
	var claims tokenClaims
	parsed, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid access token")
	}

	principal := &middleware.Claims{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}
	if u := claims.User; u != nil {
		if principal.UserID == "" {
			principal.UserID = u.ID
		}
		if principal.Email == "" {
			principal.Email = u.Email
		}
		if principal.Role == "" {
			principal.Role = u.Role
		}
	}
	if principal.UserID == "" {
		principal.UserID = claims.Subject
	}
	if principal.UserID == "" {
		return nil, errors.New("access token has no user id")
	}
	return principal, nil
}
