package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chittyapps/chittyauth-app/internal/engine"
	"github.com/chittyapps/chittyauth-app/internal/handler"
	"github.com/chittyapps/chittyauth-app/internal/server/middleware"
	"github.com/chittyapps/chittyauth-app/internal/service"
	"github.com/chittyapps/chittyauth-app/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	CORSMethods     []string

	// PerIPLimit throttles the unauthenticated validation and refresh
	// endpoints per client IP. Zero disables the perimeter limit.
	PerIPLimit  int
	PerIPWindow time.Duration

	// TLSCertFile and TLSKeyFile enable TLS termination when both are set.
	TLSCertFile string
	TLSKeyFile  string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		PerIPLimit:      300,
		PerIPWindow:     time.Minute,
	}
}

// Server is the top-level HTTP server. It owns the Chi router, the token
// lifecycle engine, the durable store, and the operator session service.
type Server struct {
	cfg        Config
	router     chi.Router
	engine     *engine.Engine
	store      *store.Store
	sessions   *service.SessionService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, eng *engine.Engine, st *store.Store, sessions *service.SessionService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   eng,
		store:    st,
		sessions: sessions,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	corsMethods := s.cfg.CORSMethods
	if len(corsMethods) == 0 {
		corsMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		tokenHandler := handler.NewTokenHandler(s.engine)
		sysHandler := handler.NewSystemHandler(s.engine)

		// Validation and refresh authenticate by the presented token
		// itself; the perimeter rate limit is the only gate in front.
		r.Group(func(r chi.Router) {
			if s.cfg.PerIPLimit > 0 {
				r.Use(middleware.RateLimitByIP(s.cfg.PerIPLimit, s.cfg.PerIPWindow))
			}
			r.Post("/token/validate", tokenHandler.Validate)
			r.Post("/token/refresh", tokenHandler.Refresh)
		})

		// Self-inspection authenticates with the bearer token being
		// inspected.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(s.engine))
			r.Get("/token/self", tokenHandler.Self)
		})

		// Management surface requires an operator session.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOperator(s.sessions))

			r.Post("/token", tokenHandler.Provision)
			r.Delete("/token/{tokenID}", tokenHandler.Revoke)
			r.Get("/stats", sysHandler.Stats)
			r.Get("/audit/recent", sysHandler.RecentAudit)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the durable store is
// reachable, or 503 when it is not.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["store"] = "error: " + err.Error()
		status = "degraded"
	} else {
		checks["store"] = "ok"
	}

	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
			s.logger.Info("server starting", "addr", addr, "tls", true)
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			s.logger.Info("server starting", "addr", addr)
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
