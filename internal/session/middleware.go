package session

import (
	"context"
	"encoding/json"
	"net/http"
)

// contextKey is the type for session context keys
type contextKey string

const (
	// sessionIDKey is the context key for the session id
	sessionIDKey contextKey = "session_id"

	// HeaderName is the HTTP header carrying the session id
	HeaderName = "X-Session-ID"
)

// Middleware extracts the session id from the request header and adds it to
// the request context. Requests without the header are rejected with 400;
// there is no default session to fall back to.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(HeaderName)
		if sessionID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":      false,
				"error":   "missing_session_id",
				"message": HeaderName + " header is required",
			})
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext retrieves the session id from the context, or "" if absent.
func FromContext(ctx context.Context) string {
	sessionID, ok := ctx.Value(sessionIDKey).(string)
	if !ok {
		return ""
	}
	return sessionID
}

// WithSessionID returns a context carrying the given session id.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}
