package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lamb-project/lamb-core/pkg/auth"
	"github.com/lamb-project/lamb-core/pkg/observability"
)

// Server owns the HTTP surface: the chi router, the completion pipeline
// it dispatches onto, and the process lifecycle (listen, graceful
// shutdown), grounded on the teacher's pkg/server/http.go HTTPServer
// (construct-with-options, Start(ctx)/Shutdown(ctx) pair) but routed
// through chi instead of a bare http.ServeMux so the observability
// middleware's route-pattern label (pkg/observability/middleware.go) is
// backed by a real router rather than falling back to raw paths.
type Server struct {
	Pipeline      *Pipeline
	AuthBuilder   *auth.Builder
	Observability *observability.Manager
	Log           *slog.Logger

	listenAddr string
	httpServer *http.Server
	router     chi.Router
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithListenAddr overrides the default ":8080" listen address.
func WithListenAddr(addr string) Option {
	return func(s *Server) { s.listenAddr = addr }
}

// New builds a Server and its route table. The auth and observability
// middleware wrap every route under /v1; /healthz and /metrics are
// intentionally left unauthenticated so a load balancer or scraper never
// needs a bearer token.
func New(pipeline *Pipeline, authBuilder *auth.Builder, obs *observability.Manager, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		Pipeline:      pipeline,
		AuthBuilder:   authBuilder,
		Observability: obs,
		Log:           log,
		listenAddr:    ":8080",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.Observability != nil {
		r.Use(observability.HTTPMiddleware(s.Observability))
	}
	r.MethodNotAllowed(writeMethodNotAllowed)

	r.Get("/healthz", s.handleHealthz)
	if s.Observability != nil {
		r.Handle("/metrics", s.Observability.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(auth.Middleware(s.AuthBuilder))
		v1.Post("/chat/completions", s.HandleCompletion)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Router exposes the underlying chi router, mainly for tests that want
// to drive requests through httptest without a live listener.
func (s *Server) Router() chi.Router { return s.router }

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully within a bounded timeout.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("server: listening", "addr", s.listenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen and serve: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.Log.Info("server: shutting down")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	}
}
