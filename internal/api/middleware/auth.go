package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/allfence/internal/api/apierr"
	"github.com/mcoot/allfence/internal/services/auth"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionCookie is the cookie name accepted in place of a bearer token
const SessionCookie = "session"

// TokenValidator checks admin session tokens
type TokenValidator interface {
	ValidateToken(token string) (*auth.Session, error)
}

// RequireAdmin rejects requests without a valid admin session
func RequireAdmin(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			session, err := validator.ValidateToken(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly applies RequireAdmin to writes and lets reads through
func AdminOnly(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := RequireAdmin(validator)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				protected.ServeHTTP(w, r)
			}
		})
	}
}

// extractToken extracts the session token from the request
func extractToken(r *http.Request) string {
	// Check Authorization header first
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// Fall back to cookie
	cookie, err := r.Cookie(SessionCookie)
	if err == nil {
		return cookie.Value
	}

	return ""
}

// GetSession returns the admin session from the request context
func GetSession(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionContextKey).(*auth.Session)
	return session
}

// Admin returns the authenticated admin's username, or "" for anonymous reads
func Admin(ctx context.Context) string {
	if s := GetSession(ctx); s != nil {
		return s.Username
	}
	return ""
}
