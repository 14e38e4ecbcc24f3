// Package auth scopes requests to the user named by a trusted header. The
// service sits behind a proxy that authenticates users and forwards the
// user id; everything downstream reads it with UserID.
package auth

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"ledger/internal/log"
)

type contextKey string

// UserIDKey is the context key for the authenticated user id
const UserIDKey contextKey = "user_id"

// DefaultHeader carries the user id when no other header is configured.
const DefaultHeader = "X-User-ID"

const maxUserIDLength = 128

// WithUserID returns ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// UserID retrieves the user id from ctx.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

// Middleware rejects requests without a usable user id in header and
// stores the id in the request context and logger. onUnauthorized writes
// the rejection; nil means a plain 401.
func Middleware(header string, onUnauthorized func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(header))
			if !validUserID(userID) {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Unauthenticated request",
					log.FieldComponent, log.ComponentAuth,
					log.FieldPath, r.URL.Path,
					"header", header)
				if onUnauthorized != nil {
					onUnauthorized(w, r)
				} else {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}

			r = r.WithContext(WithUserID(r.Context(), userID))
			next.ServeHTTP(w, log.Enrich(r, log.FieldUserID, userID))
		})
	}
}

func validUserID(id string) bool {
	if id == "" || len(id) > maxUserIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
