// Package server hosts the HTTP facade over the upload pipeline and
// analytics reporter, for deployments where callers submit files to a
// local agent instead of linking the SDK.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/classvr/avncloud/internal/server/handlers"
	"github.com/classvr/avncloud/internal/server/middleware"
	"github.com/classvr/avncloud/pkg/analytics"
	"github.com/classvr/avncloud/pkg/upload"
)

// Server is the HTTP facade.
type Server struct {
	host     string
	port     int
	router   chi.Router
	logger   *zap.Logger
	version  string
	health   *handlers.HealthManager
	pipeline *upload.Pipeline
	reporter *analytics.Reporter
}

// Option configures a Server.
type Option func(*Server)

// WithPipeline installs the upload pipeline behind POST /v1/files.
func WithPipeline(p *upload.Pipeline) Option {
	return func(s *Server) {
		s.pipeline = p
	}
}

// WithReporter installs the analytics reporter behind POST /v1/events.
func WithReporter(r *analytics.Reporter) Option {
	return func(s *Server) {
		s.reporter = r
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server listening on host:port once Start is called.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:    host,
		port:    port,
		logger:  zap.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.health = handlers.NewHealthManager(s.version)
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return middleware.RecoveryWithLogger(next, s.logger)
	})

	r.NotFound(handlers.NotFoundHandler)
	r.MethodNotAllowed(handlers.MethodNotAllowedHandler)

	r.Get("/health", s.health.HealthHandler)
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"version":%q}`, s.version)
	})

	r.Post("/v1/files", (&handlers.FilesHandler{Pipeline: s.pipeline, Logger: s.logger}).ServeHTTP)
	r.Post("/v1/events", (&handlers.EventsHandler{Reporter: s.reporter, Logger: s.logger}).ServeHTTP)

	return r
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Health returns the health manager so callers can register checks.
func (s *Server) Health() *handlers.HealthManager {
	return s.health
}

// Timeouts bundles the http.Server timeouts.
type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Idle     time.Duration
	Shutdown time.Duration
}

// Start runs the server until ctx is canceled, then shuts down
// gracefully within the shutdown timeout.
func (s *Server) Start(ctx context.Context, t Timeouts) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:      s.router,
		ReadTimeout:  t.Read,
		WriteTimeout: t.Write,
		IdleTimeout:  t.Idle,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), t.Shutdown)
	defer cancel()
	s.logger.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}
