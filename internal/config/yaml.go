package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level chittyauth configuration file.
type YAMLConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	CORS            CORSConfig `yaml:"cors"`
	TLS             TLSConfig  `yaml:"tls"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// TLSConfig controls TLS termination at the server level.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig controls token signing and operator sessions.
type AuthConfig struct {
	// SigningKey is the HMAC key tokens are minted with. Required in
	// production; a development fallback applies elsewhere.
	SigningKey string `yaml:"signing_key"`
	// Environment selects the token prefix: production, test,
	// development, or service.
	Environment     string `yaml:"environment"`
	SessionSecret   string `yaml:"session_secret"`
	SessionExpiry   string `yaml:"session_expiry"`
	DefaultTokenTTL string `yaml:"default_token_ttl"`
	RevocationGrace string `yaml:"revocation_grace"`
	CacheTTL        string `yaml:"cache_ttl"`
}

// StorageConfig controls the durable store.
type StorageConfig struct {
	// DataDir holds the SQLite database. Empty means in-memory.
	DataDir string `yaml:"data_dir"`
}

// CacheConfig controls the in-process cache store.
type CacheConfig struct {
	MaxCostBytes int64 `yaml:"max_cost_bytes"`
	NumCounters  int64 `yaml:"num_counters"`
	AuditRing    int   `yaml:"audit_ring"`
}

// RateLimitConfig controls the per-token fixed-window budgets and the
// per-IP perimeter limit on the validation endpoint.
type RateLimitConfig struct {
	Window   string `yaml:"window"`
	Admin    int    `yaml:"admin"`
	Service  int    `yaml:"service"`
	Elevated int    `yaml:"elevated"`
	Standard int    `yaml:"standard"`

	HTTPPerIP       int    `yaml:"http_per_ip"`
	HTTPPerIPWindow string `yaml:"http_per_ip_window"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
				Methods: []string{"GET", "POST", "DELETE"},
			},
		},
		Auth: AuthConfig{
			Environment:     "development",
			SessionExpiry:   "8h",
			DefaultTokenTTL: "1h",
			RevocationGrace: "24h",
			CacheTTL:        "30s",
		},
		Cache: CacheConfig{
			MaxCostBytes: 64 << 20,
			NumCounters:  1_000_000,
			AuditRing:    100,
		},
		RateLimit: RateLimitConfig{
			Window:          "1h",
			Admin:           10000,
			Service:         5000,
			Elevated:        1000,
			Standard:        100,
			HTTPPerIP:       300,
			HTTPPerIPWindow: "1m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
