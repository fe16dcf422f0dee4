// Package api implements the texflow REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"
)

// OwnerHeader carries the authenticated user ID set by the upstream
// authentication provider.
const OwnerHeader = "X-Owner-ID"

type ownerKey struct{}

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OwnerMiddleware resolves the owner ID from OwnerHeader, falling back to
// defaultOwner. Requests with neither are rejected.
func OwnerMiddleware(defaultOwner string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
			if owner == "" {
				owner = defaultOwner
			}
			if owner == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody("missing owner"))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
		})
	}
}

// ownerFrom returns the owner stored by OwnerMiddleware.
func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
