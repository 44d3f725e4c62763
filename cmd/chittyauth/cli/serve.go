package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chittyapps/chittyauth-app/internal/config"
	"github.com/chittyapps/chittyauth-app/internal/server"
	"github.com/chittyapps/chittyauth-app/internal/service"
)

const banner = `
  ___ _  _ ___ _____ _______   ___   _   _ _____ _  _
 / __| || |_ _|_   _|_   _\ \ / /_\ | | | |_   _| || |
| (__| __ || |  | |   | |  \ V / _ \| |_| | | | | __ |
 \___|_||_|___| |_|   |_|   |_/_/ \_\ \___/ |_| |_||_|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ChittyAuth API server",
		Long:  "Start the HTTP server that issues, validates, refreshes, and revokes bearer tokens.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dev {
		cfg.Logging.Level = "debug"
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}

	logger := newLogger(cfg.Logging)

	// 1. Wire store, cache, audit, and engine.
	stk, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	defer stk.Close()
	logger.Info("token store initialized", "path", storeDataDir(cfg))

	// 2. Operator session service.
	signingKey, err := resolveSigningKey(cfg, logger)
	if err != nil {
		return err
	}
	sessions := service.NewSessionService(resolveSessionSecret(cfg, signingKey))

	// 3. Build the HTTP server.
	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: config.DurationOr(cfg.Server.ShutdownTimeout, 30*time.Second),
		CORSOrigins:     cfg.Server.CORS.Origins,
		CORSMethods:     cfg.Server.CORS.Methods,
		PerIPLimit:      cfg.RateLimit.HTTPPerIP,
		PerIPWindow:     config.DurationOr(cfg.RateLimit.HTTPPerIPWindow, time.Minute),
	}
	if cfg.Server.TLS.Enabled {
		srvCfg.TLSCertFile = cfg.Server.TLS.CertFile
		srvCfg.TLSKeyFile = cfg.Server.TLS.KeyFile
	}

	srv := server.New(srvCfg, stk.Engine, stk.Store, sessions, logger)

	fmt.Printf("→ ChittyAuth %s\n", versionString())
	fmt.Printf("→ Environment: %s (prefix %s)\n", cfg.Auth.Environment, stk.Engine.Prefix())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Validate:   POST http://%s:%d/api/v1/token/validate\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer removePID()

	return srv.ListenAndServe()
}
