package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chittyapps/chittyauth-app/internal/model"
)

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"hello": "world"})

	if rr.Code != http.StatusCreated {
		t.Errorf("status: got %d, want 201", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: %q", ct)
	}
	if !strings.Contains(rr.Body.String(), `"hello":"world"`) {
		t.Errorf("body: %s", rr.Body.String())
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusBadRequest, "bad input", map[string]interface{}{"field": "scope"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}

	var resp model.ErrorResponse
	decodeBody(t, rr, &resp)
	if resp.Error.Code != 400 || resp.Error.Message != "bad input" {
		t.Errorf("envelope: %+v", resp)
	}
	if resp.Error.Context["field"] != "scope" {
		t.Errorf("context: %v", resp.Error.Context)
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/x?limit=25&bad=abc", nil)

	if got := queryInt(req, "limit", 50); got != 25 {
		t.Errorf("limit: got %d, want 25", got)
	}
	if got := queryInt(req, "missing", 50); got != 50 {
		t.Errorf("missing: got %d, want 50", got)
	}
	if got := queryInt(req, "bad", 50); got != 50 {
		t.Errorf("unparseable: got %d, want 50", got)
	}
}

func TestClampInt(t *testing.T) {
	if got := clampInt(5, 1, 10); got != 5 {
		t.Errorf("in range: got %d", got)
	}
	if got := clampInt(-3, 1, 10); got != 1 {
		t.Errorf("below: got %d", got)
	}
	if got := clampInt(99, 1, 10); got != 10 {
		t.Errorf("above: got %d", got)
	}
}
