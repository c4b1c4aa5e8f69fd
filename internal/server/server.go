// Package server exposes the fitting service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/semaphore"

	"github.com/agbru/parglm/internal/config"
	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/logging"
	"github.com/agbru/parglm/internal/service"
)

// Server is the parglm HTTP API. It wraps an http.Server with the fit
// routes, a middleware chain and graceful shutdown.
type Server struct {
	service        service.Service
	cfg            config.AppConfig
	httpServer     *http.Server
	logger         logging.Logger
	shutdownSignal chan os.Signal
	rateLimiter    *RateLimiter
	securityConfig SecurityConfig
	metrics        *Metrics
	timeouts       Timeouts
	fitSlots       *semaphore.Weighted
}

// NewServer creates a server for svc. A positive cfg.Timeout becomes the
// per-request fit timeout.
//
// Parameters:
//   - svc: The fitting service.
//   - cfg: The application configuration (port, fit defaults).
//   - opts: Functional options such as WithLogger or WithRateLimiter.
//
// Returns:
//   - *Server: The configured, not yet started, server.
func NewServer(svc service.Service, cfg config.AppConfig, opts ...Option) *Server {
	s := &Server{
		service:        svc,
		cfg:            cfg,
		logger:         logging.NewLogger(os.Stdout, "server"),
		shutdownSignal: make(chan os.Signal, 1),
		securityConfig: DefaultSecurityConfig(),
		metrics:        NewMetrics(),
		timeouts:       DefaultServerTimeouts(),
	}
	if cfg.Timeout > 0 {
		s.timeouts.RequestTimeout = cfg.Timeout
		s.timeouts.WriteTimeout = cfg.Timeout + time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rateLimiter == nil {
		s.rateLimiter = NewRateLimiter(DefaultRateLimiterConfig())
	}
	if s.fitSlots == nil {
		s.fitSlots = semaphore.NewWeighted(DefaultMaxConcurrentFits)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/fit", s.wrapWithMiddleware(s.handleFit))
	mux.HandleFunc("/families", s.wrapWithMiddleware(s.handleFamilies))
	mux.HandleFunc("/health", s.wrapWithMiddleware(s.handleHealth))
	mux.HandleFunc("/metrics", s.wrapWithMiddleware(s.handleMetrics))

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(mux, "parglm"),
		ReadTimeout:  s.timeouts.ReadTimeout,
		WriteTimeout: s.timeouts.WriteTimeout,
		IdleTimeout:  s.timeouts.IdleTimeout,
	}
	return s
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// wrapWithMiddleware applies Security -> RateLimit -> Logging -> Metrics.
func (s *Server) wrapWithMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	wrapped := s.metricsMiddleware(handler)
	wrapped = s.loggingMiddleware(wrapped)
	wrapped = RateLimitMiddleware(s.rateLimiter, wrapped)
	wrapped = SecurityMiddleware(s.securityConfig, wrapped)
	return wrapped
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
//
// Returns:
//   - error: A ServerError if the listener fails or shutdown times out.
func (s *Server) Start() error {
	signal.Notify(s.shutdownSignal, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(s.shutdownSignal)
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			logging.String("addr", s.httpServer.Addr),
			logging.Float64("tol", s.cfg.Tolerance),
			logging.Int("max_iter", s.cfg.MaxIterations),
			logging.Int("block_size", s.cfg.BlockSize),
		)
		s.logger.Println("Available endpoints:")
		s.logger.Println("  POST /fit")
		s.logger.Println("  GET  /families")
		s.logger.Println("  GET  /health")
		s.logger.Println("  GET  /metrics")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-s.shutdownSignal:
		s.logger.Println("Shutdown signal received, initiating graceful shutdown...")
	case err := <-errCh:
		return apperrors.NewServerError("server failed to start", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeouts.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return apperrors.NewServerError("failed to gracefully shutdown server", err)
	}
	s.logger.Println("Server stopped gracefully")
	return nil
}
