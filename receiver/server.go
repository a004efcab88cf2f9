package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server runs a handler until its context ends, then shuts down gracefully.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithAddr sets the listen address. Default is ":8080".
func WithAddr(addr string) ServerOption {
	return func(s *Server) {
		s.srv.Addr = addr
	}
}

// WithShutdownTimeout bounds how long in-flight bodies may drain after
// the context ends. Default is 20s.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithServerLogger sets the logger for lifecycle events. Default is slog.Default().
func WithServerLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = log
	}
}

// NewServer creates a Server for handler. There is no read timeout: a
// paced body may legitimately take minutes to arrive. Headers must
// arrive within 10s.
func NewServer(handler http.Handler, opts ...ServerOption) *Server {
	s := Server{
		srv: &http.Server{
			Addr:              ":8080",
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		shutdownTimeout: 20 * time.Second,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(&s)
	}

	return &s
}

// Run listens on the configured address and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then drains in-flight requests.
// It returns nil on clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serverErrs := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", ln.Addr().String())
		serverErrs <- s.srv.Serve(ln)
	}()

	select {
	case err := <-serverErrs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown started", "cause", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			_ = s.srv.Close()
			return fmt.Errorf("server didn't stop gracefully: %w", err)
		}

		s.logger.Info("shutdown complete")

		return nil
	}
}
