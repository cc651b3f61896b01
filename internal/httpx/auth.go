package httpx

import (
	"context"
	"net/http"
)

// Identity trusts the authenticating gateway in front of this service to
// inject the caller's id. No session handling here.

type ctxKey int

const userIDKey ctxKey = iota

const HeaderUserID = "X-User-Id"

func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get(HeaderUserID)
		if uid == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, uid)))
	})
}

// UserID returns the caller id placed by Identity; empty when absent.
func UserID(ctx context.Context) string {
	uid, _ := ctx.Value(userIDKey).(string)
	return uid
}
