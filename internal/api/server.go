// Package api exposes the HTTP surface of the service: location
// allocation, signed-access issuance, dataset instructions, commit, and
// health probes.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/internal/ratelimiter"
	"github.com/marmos91/filegate/pkg/commit"
	"github.com/marmos91/filegate/pkg/dataset"
	"github.com/marmos91/filegate/pkg/location"
	"github.com/marmos91/filegate/pkg/metrics"
	"github.com/marmos91/filegate/pkg/store/record"
)

// Dependencies carries the wired services the HTTP surface exposes.
type Dependencies struct {
	// Location allocates and resolves file locations.
	Location *location.Service

	// Commit promotes staged objects to persistent storage.
	Commit *commit.Workflow

	// Dataset builds storage and retrieval instructions.
	Dataset *dataset.Builder

	// Repository backs the readiness probe.
	Repository record.Repository

	// Mode is the configured grant mode, used as a metrics label.
	Mode string

	// Metrics collects API metrics. Nil means no-op.
	Metrics metrics.APIMetrics
}

// ServerConfig configures the API HTTP server.
type ServerConfig struct {
	// Port to listen on.
	Port int

	// RequestTimeout bounds each inbound request.
	RequestTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// RateLimitRPS is the sustained request rate allowed. Zero disables
	// rate limiting.
	RateLimitRPS uint

	// RateLimitBurst is the burst capacity above the sustained rate.
	RateLimitBurst uint
}

// Server is the API HTTP server.
type Server struct {
	server          *http.Server
	port            int
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// NewRouter builds the chi router with all routes and middleware.
//
// Health probes sit outside the identity middleware: probes come from the
// orchestrator, which carries no tenant headers.
func NewRouter(deps Dependencies) chi.Router {
	m := deps.Metrics
	if m == nil {
		m = metrics.NewNoopAPIMetrics()
	}

	h := &handlers{
		location: deps.Location,
		commit:   deps.Commit,
		dataset:  deps.Dataset,
		metrics:  m,
		mode:     deps.Mode,
	}
	probes := &health{repo: deps.Repository}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(metricsMiddleware(m))

	r.Get("/v2/liveness_check", probes.Liveness)
	r.Get("/v2/readiness_check", probes.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(identityMiddleware)

		r.Post("/getLocation", h.GetLocation)
		r.Post("/getFileLocation", h.GetFileLocation)
		r.Post("/getFileList", h.GetFileList)
		r.Post("/storageInstructions", h.StorageInstructions)
		r.Post("/retrievalInstructions", h.RetrievalInstructions)
		r.Post("/copy", h.Copy)
		r.Delete("/v2/files/revokeURL", h.RevokeURL)
	})

	return r
}

// NewServer creates the API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	router := NewRouter(deps)

	var handler http.Handler = router
	if cfg.RateLimitRPS > 0 {
		limiter := ratelimiter.New(cfg.RateLimitRPS, cfg.RateLimitBurst)
		handler = rateLimitMiddleware(limiter)(handler)
	}
	if cfg.RequestTimeout > 0 {
		handler = http.TimeoutHandler(handler, cfg.RequestTimeout, "request timed out\n")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		server:          server,
		port:            cfg.Port,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Start starts the API server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening on port %d", s.port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error: %v", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}
