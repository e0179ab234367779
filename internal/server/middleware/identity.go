// Package middleware contains HTTP middleware for the study server.
package middleware

import (
	"context"
	"net/http"
)

// userIDKey is the context key for the calling user's identity.
type userIDKey struct{}

// Identity extracts the caller identity from the userId header. Every study
// operation is scoped by user, so requests without an identity are rejected.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("userId")
		if userID == "" {
			http.Error(w, "missing userId header", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext extracts the caller identity from the context.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(userIDKey{}); v != nil {
		return v.(string)
	}
	return ""
}
