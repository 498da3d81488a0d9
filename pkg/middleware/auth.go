package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const claimsKey contextKey = "claims"

// Claims is the authenticated principal taken from a bearer token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// TokenValidator verifies a raw bearer token.
type TokenValidator func(token string) (*Claims, error)

// bearerToken returns the token from the Authorization header. ok is false
// when the header is absent; a present but malformed header yields "" and true.
func bearerToken(r *http.Request) (token string, ok bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

func authenticate(validate TokenValidator, w http.ResponseWriter, r *http.Request, required bool) (*http.Request, bool) {
	token, present := bearerToken(r)
	if !present {
		if required {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
			return nil, false
		}
		return r, true
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
		return nil, false
	}
	claims, err := validate(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
		return nil, false
	}
	return r.WithContext(WithClaims(r.Context(), claims)), true
}

// Auth rejects requests without a valid bearer token.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r, ok := authenticate(validate, w, r, true); ok {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// OptionalAuth lets anonymous requests through but still rejects a token that
// is present and invalid, so a client never silently falls back to guest.
func OptionalAuth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r, ok := authenticate(validate, w, r, false); ok {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireRole rejects authenticated requests whose role is not listed.
// Mount it after Auth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[RoleFromContext(r.Context())]; !ok {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the authenticated claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// UserIDFromContext returns the authenticated user ID or "".
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// RoleFromContext returns the authenticated role or "".
func RoleFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Role
	}
	return ""
}
