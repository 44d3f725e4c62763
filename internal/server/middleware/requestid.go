package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

// RequestIDKey is the context key for the request ID.
const RequestIDKey contextKey = "request_id"

// requestIDHeader carries the correlation id in and out of the service.
const requestIDHeader = "X-Request-ID"

// maxClientRequestID caps how much of a caller-supplied id is kept. Access
// logs record the id verbatim; an unbounded header would let a caller pad
// them.
const maxClientRequestID = 64

// RequestID assigns every request a UUIDv7 correlation id, the same id
// scheme the audit pipeline stamps on events. A caller-supplied
// X-Request-ID is honored, truncated to maxClientRequestID, so a trace can
// follow a token across the services presenting it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if len(id) > maxClientRequestID {
			id = id[:maxClientRequestID]
		}
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))
	})
}

// GetRequestID returns the id assigned by RequestID, or "" when the
// middleware did not run.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
