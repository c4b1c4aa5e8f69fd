package server

import (
	"log"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/agbru/parglm/internal/logging"
)

// DefaultMaxConcurrentFits bounds the fits running at once, abandoned
// ones included. Each fit already spreads its blocks over every CPU.
const DefaultMaxConcurrentFits = 2

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the default zerolog logger. Nil is ignored.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStdLogger logs through a standard library logger. Nil is ignored.
func WithStdLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logging.NewStdLoggerAdapter(logger)
		}
	}
}

// WithTimeouts replaces the default timeouts.
func WithTimeouts(timeouts Timeouts) Option {
	return func(s *Server) {
		s.timeouts = timeouts
	}
}

// WithRateLimiter replaces the default per-client limiter.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) {
		s.rateLimiter = rl
	}
}

// WithSecurityConfig replaces the default security settings.
func WithSecurityConfig(config SecurityConfig) Option {
	return func(s *Server) {
		s.securityConfig = config
	}
}

// WithMaxBodyBytes caps the POST /fit body size.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.securityConfig.MaxBodyBytes = n
		}
	}
}

// WithMaxConcurrentFits bounds the fits running at once. Values below 1
// are ignored.
func WithMaxConcurrentFits(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.fitSlots = semaphore.NewWeighted(n)
		}
	}
}

// Timeouts holds the server timeouts.
type Timeouts struct {
	// RequestTimeout bounds how long a client waits for a fit.
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// DefaultServerTimeouts returns timeouts suited to fits of a few minutes.
func DefaultServerTimeouts() Timeouts {
	return Timeouts{
		RequestTimeout:  5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		ReadTimeout:     time.Minute,
		WriteTimeout:    6 * time.Minute,
		IdleTimeout:     2 * time.Minute,
	}
}
