package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chittyapps/chittyauth-app/internal/audit"
	"github.com/chittyapps/chittyauth-app/internal/cache"
	"github.com/chittyapps/chittyauth-app/internal/config"
	"github.com/chittyapps/chittyauth-app/internal/engine"
	"github.com/chittyapps/chittyauth-app/internal/ratelimit"
	"github.com/chittyapps/chittyauth-app/internal/store"
	"github.com/chittyapps/chittyauth-app/internal/token"
)

// devSigningKey is the fallback used outside production when no
// signing key is configured. Tokens minted with it are worthless the moment
// a real key is set.
const devSigningKey = "chittyauth-dev-key-change-me"

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag,
// the CHITTYAUTH_DATA_DIR env var, or ~/.chittyauth as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("CHITTYAUTH_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.chittyauth"
}

// loadConfig returns the effective configuration: the YAML file when one is
// present, defaults otherwise. Secrets can always be overridden through
// CHITTYAUTH_* environment variables via viper.
func loadConfig() (*config.YAMLConfig, error) {
	path := cfgFile
	if path == "" {
		path = viper.ConfigFileUsed()
	}
	if path == "" {
		return config.DefaultYAMLConfig(), nil
	}
	return config.LoadYAMLConfig(path)
}

// resolveSigningKey applies the key policy: an explicit key always wins,
// production refuses to start without one, and everything else falls back to
// the development key with a warning.
func resolveSigningKey(cfg *config.YAMLConfig, logger *slog.Logger) (string, error) {
	key := viper.GetString("auth.signing_key")
	if key == "" {
		key = cfg.Auth.SigningKey
	}
	if key != "" {
		return key, nil
	}
	if cfg.Auth.Environment == "production" {
		return "", fmt.Errorf("auth.signing_key is required in production (set CHITTYAUTH_AUTH_SIGNING_KEY)")
	}
	logger.Warn("no signing key configured, using development fallback",
		"environment", cfg.Auth.Environment)
	return devSigningKey, nil
}

// resolveSessionSecret returns the operator session secret, falling back to
// the signing key so single-secret deployments keep working.
func resolveSessionSecret(cfg *config.YAMLConfig, signingKey string) string {
	secret := viper.GetString("auth.session_secret")
	if secret == "" {
		secret = cfg.Auth.SessionSecret
	}
	if secret == "" {
		secret = signingKey
	}
	return secret
}

// newLogger builds the slog logger from the logging config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// stack bundles the wired token machinery for CLI commands that talk to the
// local store directly instead of going through the HTTP surface.
type stack struct {
	Store  *store.Store
	Cache  cache.Store
	Audit  *audit.Logger
	Engine *engine.Engine
}

// Close tears the stack down in dependency order: the audit logger drains
// into the store before either closes.
func (s *stack) Close() {
	s.Audit.Close()
	s.Cache.Close()
	s.Store.Close()
}

// storeDataDir returns the durable store directory: the --data-dir flag
// wins, then storage.data_dir from the config file, then the
// CHITTYAUTH_DATA_DIR env var or ~/.chittyauth.
func storeDataDir(cfg *config.YAMLConfig) string {
	if dataDir == "" && cfg.Storage.DataDir != "" {
		return cfg.Storage.DataDir
	}
	return resolveDataDir()
}

// buildStack wires store, cache, audit, and engine from the configuration.
func buildStack(cfg *config.YAMLConfig, logger *slog.Logger) (*stack, error) {
	st, err := store.NewStore(storeDataDir(cfg))
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}

	cacheCfg := cache.DefaultConfig()
	if cfg.Cache.MaxCostBytes > 0 {
		cacheCfg.MaxCost = cfg.Cache.MaxCostBytes
	}
	if cfg.Cache.NumCounters > 0 {
		cacheCfg.NumCounters = cfg.Cache.NumCounters
	}
	if cfg.Cache.AuditRing > 0 {
		cacheCfg.RecentEvents = cfg.Cache.AuditRing
	}
	cacheStore, err := cache.NewMemory(cacheCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init cache store: %w", err)
	}

	auditLog := audit.New(st, cacheStore, logger)

	signingKey, err := resolveSigningKey(cfg, logger)
	if err != nil {
		auditLog.Close()
		cacheStore.Close()
		st.Close()
		return nil, err
	}

	env, err := token.ParseEnvironment(cfg.Auth.Environment)
	if err != nil {
		auditLog.Close()
		cacheStore.Close()
		st.Close()
		return nil, err
	}

	engCfg := engine.Config{
		SigningKey:      []byte(signingKey),
		Environment:     env,
		DefaultTTL:      config.DurationOr(cfg.Auth.DefaultTokenTTL, time.Hour),
		RevocationGrace: config.DurationOr(cfg.Auth.RevocationGrace, 24*time.Hour),
		CacheTTL:        config.DurationOr(cfg.Auth.CacheTTL, 30*time.Second),
		RateLimits: ratelimit.Limits{
			Window:   config.DurationOr(cfg.RateLimit.Window, time.Hour),
			Admin:    cfg.RateLimit.Admin,
			Service:  cfg.RateLimit.Service,
			Elevated: cfg.RateLimit.Elevated,
			Standard: cfg.RateLimit.Standard,
		},
	}

	eng, err := engine.New(engCfg, st, cacheStore, auditLog, logger)
	if err != nil {
		auditLog.Close()
		cacheStore.Close()
		st.Close()
		return nil, fmt.Errorf("init token engine: %w", err)
	}

	return &stack{Store: st, Cache: cacheStore, Audit: auditLog, Engine: eng}, nil
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "chittyauth.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func logFilePath() string {
	return filepath.Join(resolveDataDir(), "chittyauth.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
