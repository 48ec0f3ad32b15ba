package middleware

import (
	"context"
	"net/http"

	"github.com/auxoro/cas-server/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// SessionClaimsKey is the key used to store session claims in the request context.
const SessionClaimsKey contextKey = "sessionClaims"

// Session extracts the single sign-on cookie when present. It never rejects a
// request: an absent or invalid cookie just means no active session, which the
// login flow treats as a fresh visitor.
func Session(sm *auth.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookieName)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := sm.ValidateToken(cookie.Value)
			if err != nil {
				// Stale or tampered cookie; proceed unauthenticated.
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), SessionClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionClaims retrieves validated session claims from the context, or nil.
func SessionClaims(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(SessionClaimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
