// Package webserver hosts the REST API over the evaluation engine with
// graceful shutdown tied to context cancellation.
package webserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/zetareason/reasonbench/internal/progress"
	"github.com/zetareason/reasonbench/internal/storage"
	"github.com/zetareason/reasonbench/internal/webapi"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host              string
	Port              int
	ExperimentsDir    string
	AllowedOrigins    []string
	ProgressRetention time.Duration
	Logger            *slog.Logger
}

// Server wraps the HTTP server with its tracker and experiment store.
type Server struct {
	cfg     Config
	srv     *http.Server
	tracker *progress.Tracker
	store   *storage.Store
	logger  *slog.Logger
}

// New creates a new HTTP server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ExperimentsDir == "" {
		cfg.ExperimentsDir = ".reasonbench/experiments"
	}

	store, err := storage.NewStore(cfg.ExperimentsDir)
	if err != nil {
		return nil, fmt.Errorf("opening experiment store: %w", err)
	}

	var trackerOpts []progress.Option
	if cfg.ProgressRetention > 0 {
		trackerOpts = append(trackerOpts, progress.WithRetention(cfg.ProgressRetention))
	}
	tracker := progress.NewTracker(trackerOpts...)

	mux := http.NewServeMux()
	webapi.RegisterRoutes(mux, tracker, store, cfg.Logger, cfg.AllowedOrigins...)

	var handler http.Handler = mux
	if len(cfg.AllowedOrigins) > 0 {
		handler = webapi.CORSMiddleware(mux, cfg.AllowedOrigins...)
	}

	return &Server{
		cfg:     cfg,
		tracker: tracker,
		store:   store,
		logger:  cfg.Logger,
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe starts the HTTP server and blocks until it stops. The
// server shuts down gracefully when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info("HTTP server starting",
		"address", s.srv.Addr,
		"experiments", s.cfg.ExperimentsDir)

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}
