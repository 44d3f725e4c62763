package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/chittyapps/chittyauth-app/internal/signer"
)

func newTestCodec(t *testing.T, env Environment) *Codec {
	t.Helper()
	s, err := signer.New([]byte("codec-test-key"))
	if err != nil {
		t.Fatalf("signer.New: %v", err)
	}
	c, err := NewCodec(s, env)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestEncodePrefixByEnvironment(t *testing.T) {
	tests := []struct {
		env    Environment
		prefix string
	}{
		{EnvProduction, "ck_live_"},
		{EnvTest, "ck_test_"},
		{EnvDevelopment, "ck_dev_"},
		{EnvService, "ck_s2s_"},
	}

	for _, tt := range tests {
		c := newTestCodec(t, tt.env)
		tok := c.Encode("tok_abc123", "subject-1", "svc", time.Now())
		if !strings.HasPrefix(tok, tt.prefix) {
			t.Errorf("%s: token %q missing prefix %q", tt.env, tok, tt.prefix)
		}
	}
}

func TestEncodeBody(t *testing.T) {
	c := newTestCodec(t, EnvTest)
	ts := time.UnixMilli(1700000000000)
	tok := c.Encode("tok_abc123", "subject-1", "svc", ts)

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(tok, "ck_test_"))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}

	parts := strings.Split(string(raw), "_")
	// tokenID itself contains one underscore (tok_<hex>)
	if len(parts) != 4 {
		t.Fatalf("body parts: got %d (%q), want 4", len(parts), string(raw))
	}
	if parts[0] != "tok" || parts[1] != "abc123" {
		t.Errorf("token id: got %s_%s, want tok_abc123", parts[0], parts[1])
	}
	if parts[2] != "1700000000000" {
		t.Errorf("timestamp: got %q, want 1700000000000", parts[2])
	}
	if len(parts[3]) != signer.SignatureLength {
		t.Errorf("signature length: got %d, want %d", len(parts[3]), signer.SignatureLength)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	c := newTestCodec(t, EnvTest)
	ts := time.UnixMilli(1700000000000)

	a := c.Encode("tok_x", "s", "svc", ts)
	b := c.Encode("tok_x", "s", "svc", ts)
	if a != b {
		t.Errorf("same inputs encoded differently: %q vs %q", a, b)
	}
}

func TestWellFormed(t *testing.T) {
	c := newTestCodec(t, EnvProduction)
	tok := c.Encode("tok_abc", "s", "svc", time.Now())

	tests := []struct {
		tok  string
		want bool
	}{
		{tok, true},
		{"ck_test_aGVsbG8", true},
		{"ck_dev_x", true},
		{"ck_s2s_x", true},
		{"ck_live_", false}, // prefix alone is not a token
		{"sk_live_abc", false},
		{"", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := WellFormed(tt.tok); got != tt.want {
			t.Errorf("WellFormed(%q): got %v, want %v", tt.tok, got, tt.want)
		}
	}
}

func TestParseEnvironment(t *testing.T) {
	if _, err := ParseEnvironment("production"); err != nil {
		t.Errorf("production: %v", err)
	}
	if _, err := ParseEnvironment("staging"); err == nil {
		t.Error("expected error for unknown environment")
	}
}
