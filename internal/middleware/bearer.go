// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const userKey ctxKey = "user"

// TokenVerifier resolves a bearer token to the email it was issued to.
type TokenVerifier interface {
	Authenticate(token string) (string, error)
}

// BearerAuth is a middleware that requires an "Authorization: Bearer <jwt>"
// header.
//
// A missing, malformed or expired token is answered with 403 Forbidden,
// which clients treat as the end of their session. On success the token's
// email is stored in the request context for downstream handlers.
func BearerAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				http.Error(w, "missing bearer token", http.StatusForbidden)
				return
			}
			email, err := v.Authenticate(strings.TrimSpace(token))
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), email)))
		})
	}
}

// WithUser returns a copy of ctx carrying the authenticated email.
func WithUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userKey, email)
}

// GetUserFromContext extracts the authenticated email from the request
// context. Returns an empty string if not found.
func GetUserFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
