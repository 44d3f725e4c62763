package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLConfigExpandsEnv(t *testing.T) {
	t.Setenv("CHITTYAUTH_TEST_KEY", "expanded-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
auth:
  signing_key: ${CHITTYAUTH_TEST_KEY}
  environment: test
rate_limit:
  standard: 50
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.SigningKey != "expanded-secret" {
		t.Errorf("signing key: got %q", cfg.Auth.SigningKey)
	}
	if cfg.Auth.Environment != "test" {
		t.Errorf("environment: got %q", cfg.Auth.Environment)
	}
	if cfg.RateLimit.Standard != 50 {
		t.Errorf("standard limit: got %d, want 50", cfg.RateLimit.Standard)
	}
	// Unset fields keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host default: got %q", cfg.Server.Host)
	}
	if cfg.RateLimit.Admin != 10000 {
		t.Errorf("admin limit default: got %d", cfg.RateLimit.Admin)
	}
}

func TestLoadYAMLConfigMissingFile(t *testing.T) {
	if _, err := LoadYAMLConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Logging.Level != "info" {
		t.Errorf("defaults did not survive: %+v", cfg)
	}
}

func TestDurationOr(t *testing.T) {
	if got := DurationOr("45s", time.Minute); got != 45*time.Second {
		t.Errorf("got %v", got)
	}
	if got := DurationOr("", time.Minute); got != time.Minute {
		t.Errorf("empty: got %v", got)
	}
	if got := DurationOr("bogus", time.Minute); got != time.Minute {
		t.Errorf("malformed: got %v", got)
	}
}
