package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chittyapps/chittyauth-app/internal/audit"
	"github.com/chittyapps/chittyauth-app/internal/cache"
	"github.com/chittyapps/chittyauth-app/internal/engine"
	"github.com/chittyapps/chittyauth-app/internal/ratelimit"
	"github.com/chittyapps/chittyauth-app/internal/store"
	"github.com/chittyapps/chittyauth-app/internal/token"
)

func newTestRouter(t *testing.T) (*chi.Mux, *engine.Engine, *audit.Logger) {
	t.Helper()

	s, err := store.NewStore("")
	if err != nil {
		t.Fatalf("store.NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c, err := cache.NewMemory(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("cache.NewMemory: %v", err)
	}
	t.Cleanup(c.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLog := audit.New(s, c, log)
	t.Cleanup(auditLog.Close)

	cfg := engine.DefaultConfig()
	cfg.SigningKey = []byte("handler-test-signing-key")
	cfg.Environment = token.EnvTest
	cfg.RateLimits = ratelimit.Limits{
		Window: time.Hour, Admin: 1000, Service: 500, Elevated: 200, Standard: 100,
	}

	eng, err := engine.New(cfg, s, c, auditLog, log)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	tokenHandler := NewTokenHandler(eng)
	sysHandler := NewSystemHandler(eng)

	r := chi.NewRouter()
	r.Post("/api/v1/token", tokenHandler.Provision)
	r.Post("/api/v1/token/validate", tokenHandler.Validate)
	r.Post("/api/v1/token/refresh", tokenHandler.Refresh)
	r.Delete("/api/v1/token/{tokenID}", tokenHandler.Revoke)
	r.Get("/api/v1/stats", sysHandler.Stats)
	r.Get("/api/v1/audit/recent", sysHandler.RecentAudit)
	return r, eng, auditLog
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func provisionToken(t *testing.T, router http.Handler) map[string]interface{} {
	t.Helper()

	rr := doJSON(t, router, "POST", "/api/v1/token", map[string]interface{}{
		"subject_id":   "subject-42",
		"scope":        []string{"res:read"},
		"service_name": "svc",
		"ttl_seconds":  3600,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("provision: got %d, body %s", rr.Code, rr.Body.String())
	}

	var body map[string]interface{}
	decodeBody(t, rr, &body)
	return body
}

func TestProvisionEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := provisionToken(t, router)
	if body["token"] == "" || body["token_id"] == "" {
		t.Errorf("missing token fields: %v", body)
	}
	if body["subject_id"] != "subject-42" {
		t.Errorf("subject_id: %v", body["subject_id"])
	}
}

func TestProvisionEndpointRejectsBadInput(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/api/v1/token", map[string]interface{}{
		"scope":        []string{"res:read"},
		"service_name": "svc",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing subject: got %d, want 400", rr.Code)
	}

	rr = doJSON(t, router, "POST", "/api/v1/token", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty body: got %d, want 400", rr.Code)
	}
}

func TestValidateEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)
	minted := provisionToken(t, router)

	rr := doJSON(t, router, "POST", "/api/v1/token/validate", map[string]interface{}{
		"token": minted["token"],
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("validate: got %d, body %s", rr.Code, rr.Body.String())
	}

	var v engine.Verdict
	decodeBody(t, rr, &v)
	if !v.Valid {
		t.Errorf("verdict: %+v", v)
	}
	if v.TokenID != minted["token_id"] {
		t.Errorf("token id mismatch: %q vs %v", v.TokenID, minted["token_id"])
	}
}

func TestValidateEndpointStatusByReason(t *testing.T) {
	router, _, _ := newTestRouter(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"malformed prefix", "sk_live_whatever", http.StatusBadRequest},
		{"unknown token", "ck_test_dW5rbm93bi10b2tlbg", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, router, "POST", "/api/v1/token/validate", map[string]interface{}{
				"token": tt.token,
			})
			if rr.Code != tt.want {
				t.Errorf("got %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr := doJSON(t, router, "POST", "/api/v1/token/validate", map[string]interface{}{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing token field: got %d, want 400", rr.Code)
	}
}

func TestRevokeEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)
	minted := provisionToken(t, router)
	tokenID := minted["token_id"].(string)

	rr := doJSON(t, router, "DELETE", "/api/v1/token/"+tokenID, map[string]interface{}{
		"reason": "compromised",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke: got %d, body %s", rr.Code, rr.Body.String())
	}

	var result map[string]interface{}
	decodeBody(t, rr, &result)
	if result["reason"] != "compromised" {
		t.Errorf("reason: %v", result["reason"])
	}

	// Revoked token is now denied with 401.
	rr = doJSON(t, router, "POST", "/api/v1/token/validate", map[string]interface{}{
		"token": minted["token"],
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("validate after revoke: got %d, want 401", rr.Code)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)
	minted := provisionToken(t, router)

	rr := doJSON(t, router, "POST", "/api/v1/token/refresh", map[string]interface{}{
		"token":       minted["token"],
		"ttl_seconds": 7200,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: got %d, body %s", rr.Code, rr.Body.String())
	}

	var renewed map[string]interface{}
	decodeBody(t, rr, &renewed)
	if renewed["token"] == minted["token"] {
		t.Error("refresh returned the same token")
	}

	// Old token no longer validates.
	rr = doJSON(t, router, "POST", "/api/v1/token/validate", map[string]interface{}{
		"token": minted["token"],
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("old token after refresh: got %d, want 401", rr.Code)
	}
}

func TestRefreshEndpointDenialPassthrough(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := doJSON(t, router, "POST", "/api/v1/token/refresh", map[string]interface{}{
		"token": "ck_test_dW5rbm93bg",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("refresh of unknown token: got %d, want 401", rr.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	router, eng, _ := newTestRouter(t)
	minted := provisionToken(t, router)
	provisionToken(t, router)

	if _, err := eng.Revoke(context.Background(), minted["token_id"].(string), "test"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	rr := doJSON(t, router, "GET", "/api/v1/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stats: got %d", rr.Code)
	}

	var stats map[string]interface{}
	decodeBody(t, rr, &stats)
	if stats["total"] != float64(2) || stats["revoked"] != float64(1) {
		t.Errorf("stats: %v", stats)
	}
}

func TestRecentAuditEndpoint(t *testing.T) {
	router, _, auditLog := newTestRouter(t)
	provisionToken(t, router)
	auditLog.Flush()

	rr := doJSON(t, router, "GET", "/api/v1/audit/recent?limit=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("audit: got %d", rr.Code)
	}

	var body struct {
		Events []map[string]interface{} `json:"events"`
		Count  int                      `json:"count"`
	}
	decodeBody(t, rr, &body)
	if body.Count == 0 || len(body.Events) == 0 {
		t.Errorf("expected at least one mirrored event, got %+v", body)
	}
}
