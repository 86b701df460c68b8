// Package middleware provides HTTP middleware for the OrgShift API.
package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const userIDKey contextKey = "user_id"

// DefaultUserID is used when no X-User-ID header is present. Single-tenant
// deployments run without an identity provider in front of the service.
const DefaultUserID = "default"

// UserIdentity extracts the calling user from the X-User-ID header and stores
// it on the request context.
func UserIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			userID = DefaultUserID
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the user id stored on the context by UserIdentity.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
		return id
	}
	return DefaultUserID
}
