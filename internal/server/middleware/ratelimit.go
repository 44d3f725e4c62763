package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitByIP returns an HTTP middleware that limits requests per client
// IP within the given window. This is perimeter protection against
// unauthenticated abuse of the validation endpoint; the per-token budgets
// are enforced separately inside the lifecycle engine.
func RateLimitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requests, window)
}

// RateLimitByHeader returns an HTTP middleware that limits requests by a
// specific header value within the given window.
func RateLimitByHeader(headerName string, requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return r.Header.Get(headerName), nil
		}),
	)
}
