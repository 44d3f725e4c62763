package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chittyapps/chittyauth-app/internal/engine"
	"github.com/chittyapps/chittyauth-app/internal/server/middleware"
)

// TokenHandler serves the token lifecycle endpoints: provisioning,
// validation, refresh, revocation, and self-inspection.
type TokenHandler struct {
	engine *engine.Engine
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(eng *engine.Engine) *TokenHandler {
	return &TokenHandler{engine: eng}
}

// provisionRequest is the expected payload for Provision.
type provisionRequest struct {
	SubjectID   string   `json:"subject_id"`
	Scope       []string `json:"scope"`
	ServiceName string   `json:"service_name"`
	TTLSeconds  int      `json:"ttl_seconds,omitempty"`
}

// Provision mints a new bearer token. The plaintext token appears in this
// response and nowhere else, ever.
// POST /api/v1/token
func (h *TokenHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.engine.Provision(r.Context(), engine.ProvisionRequest{
		SubjectID:   req.SubjectID,
		Scope:       req.Scope,
		ServiceName: req.ServiceName,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		writeEngineError(w, err, "Failed to provision token")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// validateRequest is the expected payload for Validate and Refresh.
type validateRequest struct {
	Token      string `json:"token"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// Validate checks a presented token and returns the full verdict. The HTTP
// status mirrors the verdict: 200 for valid, 400 for a malformed token,
// 401 for unknown, expired, or revoked, 429 for rate limited.
// POST /api/v1/token/validate
func (h *TokenHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	v, err := h.engine.Validate(r.Context(), req.Token)
	if err != nil {
		writeEngineError(w, err, "Failed to validate token")
		return
	}

	writeVerdict(w, v)
}

// Self returns the verdict for the bearer token that authenticated this
// request. The validation already happened in the middleware; this just
// echoes its outcome.
// GET /api/v1/token/self
func (h *TokenHandler) Self(w http.ResponseWriter, r *http.Request) {
	v := middleware.GetVerdict(r.Context())
	if v == nil {
		writeError(w, http.StatusUnauthorized, "No authenticated token")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Refresh exchanges a valid token for a fresh one with the same identity
// and scope. The old token is revoked as part of the exchange; a denied
// validation leaves everything untouched.
// POST /api/v1/token/refresh
func (h *TokenHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	result, denied, err := h.engine.Refresh(r.Context(), req.Token,
		time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeEngineError(w, err, "Failed to refresh token")
		return
	}
	if denied != nil {
		writeVerdict(w, denied)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// revokeRequest is the optional payload for Revoke.
type revokeRequest struct {
	Reason string `json:"reason"`
}

// Revoke invalidates a token by id. Revoking an unknown or already-revoked
// id still succeeds.
// DELETE /api/v1/token/{tokenID}
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")

	reason := "revoked"
	var req revokeRequest
	if err := readJSON(r, &req); err == nil && req.Reason != "" {
		reason = req.Reason
	}

	result, err := h.engine.Revoke(r.Context(), tokenID, reason)
	if err != nil {
		writeEngineError(w, err, "Failed to revoke token")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeVerdict serializes a verdict with the HTTP status implied by its
// reason. Valid verdicts are 200; rate-limited ones carry a Retry-After
// header.
func writeVerdict(w http.ResponseWriter, v *engine.Verdict) {
	if v.Valid {
		writeJSON(w, http.StatusOK, v)
		return
	}

	switch v.Reason {
	case engine.ReasonInvalidFormat:
		writeJSON(w, http.StatusBadRequest, v)
	case engine.ReasonRateLimited:
		if v.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(v.RetryAfterSeconds))
		}
		writeJSON(w, http.StatusTooManyRequests, v)
	default:
		writeJSON(w, http.StatusUnauthorized, v)
	}
}

// writeEngineError maps engine errors to HTTP statuses: caller mistakes are
// 400, infrastructure failures 503, anything else 500.
func writeEngineError(w http.ResponseWriter, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, fallbackMsg+": store unavailable")
	default:
		writeError(w, http.StatusInternalServerError, fallbackMsg+": "+err.Error())
	}
}
