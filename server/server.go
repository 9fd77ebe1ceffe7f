package server

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/eval"
	"github.com/poiesic/embedeval/grid"
	"github.com/poiesic/embedeval/reembed"
	"github.com/poiesic/embedeval/storage"
	"github.com/poiesic/embedeval/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Embedder runs embedding jobs. *reembed.Job satisfies it.
type Embedder interface {
	Run(ctx context.Context, req reembed.Request) (iter.Seq[reembed.Event], error)
	EmbedEveryModel(ctx context.Context, scope core.Scope, batchSize int) (iter.Seq[reembed.Event], error)
}

// Evaluator runs evaluation passes. *eval.Coordinator satisfies it.
type Evaluator interface {
	Run(ctx context.Context, req eval.Request) (iter.Seq[eval.Event], error)
}

// GridSearcher runs chunking grid searches. *grid.Runner satisfies it.
type GridSearcher interface {
	Run(ctx context.Context, req grid.Request) (iter.Seq[grid.Event], error)
}

var (
	_ Embedder     = (*reembed.Job)(nil)
	_ Evaluator    = (*eval.Coordinator)(nil)
	_ GridSearcher = (*grid.Runner)(nil)
)

// Deps are the components the server exposes.
type Deps struct {
	Embedder  Embedder
	Evaluator Evaluator
	Models    storage.ModelRepository
	Evals     storage.EvalRepository
	Phrases   storage.PhraseRepository
}

// Server is the HTTP API.
type Server struct {
	deps    Deps
	grid    GridSearcher
	metrics *telemetry.Metrics
	logger  *slog.Logger
	engine  *gin.Engine
}

// Option configures a Server.
type Option func(*Server) error

// WithGrid enables the grid search endpoint.
func WithGrid(g GridSearcher) Option {
	return func(s *Server) error {
		s.grid = g
		return nil
	}
}

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New builds the API and its routes.
func New(deps Deps, opts ...Option) (*Server, error) {
	if deps.Embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if deps.Evaluator == nil {
		return nil, ErrEvaluatorRequired
	}
	if deps.Models == nil || deps.Evals == nil || deps.Phrases == nil {
		return nil, ErrRepositoryRequired
	}

	s := &Server{deps: deps, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.observe())
	s.registerRoutes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. Open event streams see their request contexts cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
