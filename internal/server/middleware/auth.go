package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/chittyapps/chittyauth-app/internal/engine"
	"github.com/chittyapps/chittyauth-app/internal/service"
)

type contextKeyAuth string

const (
	// OperatorKey is the context key for the authenticated operator.
	OperatorKey contextKeyAuth = "operator"
	// VerdictKey is the context key for a validated bearer token's verdict.
	VerdictKey contextKeyAuth = "token_verdict"
)

// RequireOperator returns an HTTP middleware that validates an operator
// session JWT from the Authorization header. The management surface
// (provisioning, revocation, stats) sits behind this. On success the
// operator principal is attached to the request context; on failure a 401
// JSON error response is returned.
func RequireOperator(sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide a Bearer session token.")
				return
			}

			principal, err := sessions.ValidateSession(r.Context(), token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), OperatorKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireToken returns an HTTP middleware that validates an issued bearer
// token through the lifecycle engine. It backs the self-inspection
// endpoint: the credential being inspected is the credential presented.
// The full verdict is attached to the request context on success.
func RequireToken(eng *engine.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide a Bearer token.")
				return
			}

			v, err := eng.Validate(r.Context(), token)
			if err != nil {
				writeAuthError(w, http.StatusServiceUnavailable, "Validation unavailable")
				return
			}
			if !v.Valid {
				if v.Reason == engine.ReasonRateLimited {
					writeAuthError(w, http.StatusTooManyRequests, "Rate limit exceeded")
					return
				}
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), VerdictKey, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOperator extracts the authenticated operator from the context.
// Returns nil if no operator is present.
func GetOperator(ctx context.Context) *service.OperatorPrincipal {
	if p, ok := ctx.Value(OperatorKey).(*service.OperatorPrincipal); ok {
		return p
	}
	return nil
}

// GetVerdict extracts the validated token verdict from the context.
// Returns nil if the request did not pass RequireToken.
func GetVerdict(ctx context.Context) *engine.Verdict {
	if v, ok := ctx.Value(VerdictKey).(*engine.Verdict); ok {
		return v
	}
	return nil
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// writeAuthError hand-builds the error envelope to avoid an import cycle
// with the handler package. message must be a fixed string without quote
// characters; nothing caller-controlled goes through here.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"code":` + strconv.Itoa(status) + `,"message":"` + message + `"}}`))
}
