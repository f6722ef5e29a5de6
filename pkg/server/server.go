// Package server hosts the attack-tree compiler over HTTP.
//
// The server is a thin shell around [pipeline.Runner]: every request body is
// a document (or, for extract, an artifact), and every response is either the
// compiled result or a structured error. Validation failures are answered
// with 422 and a JSON body naming the error code and the offending node.
//
// # Routes
//
//	POST /api/v1/compile              document -> {dot, categories, title}
//	POST /api/v1/render?format=svg    document -> artifact with embedded source
//	POST /api/v1/extract              artifact -> document source
//	GET  /api/v1/latest               metadata of the last rendered snapshot
//	GET  /api/v1/latest/{format}      artifact of the last rendered snapshot
//	GET  /healthz                     liveness
//	GET  /metrics                     Prometheus metrics
//
// Compile and render accept repeated focus query parameters and a no_filter
// flag, mirroring the CLI.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/deciduous/pkg/pipeline"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// Server routes HTTP requests to the pipeline.
type Server struct {
	addr    string
	runner  *pipeline.Runner
	current *pipeline.Current
	metrics *Metrics
	logger  *log.Logger
	maxBody int64
	router  chi.Router
}

// Option configures optional Server behavior.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to the runner's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxBodyBytes caps request bodies. Non-positive values keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithCurrent shares a snapshot holder with another publisher (for
// example a file watcher), so /api/v1/latest reflects its runs too.
func WithCurrent(c *pipeline.Current) Option {
	return func(s *Server) { s.current = c }
}

// WithMetrics replaces the server's metrics registry.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server listening on addr once [Server.ListenAndServe] is
// called. The router is usable immediately through ServeHTTP.
func New(runner *pipeline.Runner, addr string, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		runner:  runner,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = runner.Logger
	}
	if s.current == nil {
		s.current = &pipeline.Current{}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.router = s.buildRouter()
	return s
}

// Current returns the snapshot holder the server publishes renders to.
func (s *Server) Current() *pipeline.Current { return s.current }

// Metrics returns the server's metrics.
func (s *Server) Metrics() *Metrics { return s.metrics }

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("serving", "addr", s.addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(bodyLimit(s.maxBody))

		r.Post("/compile", s.handleCompile)
		r.Post("/render", s.handleRender)
		r.Post("/extract", s.handleExtract)

		r.Get("/latest", s.handleLatest)
		r.Get("/latest/{format}", s.handleLatestArtifact)
	})

	return r
}

// instrument logs each request and records it in the HTTP metrics, labelled
// by route pattern rather than raw path.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// bodyLimit rejects oversized bodies up front and caps the rest while they
// are read.
func bodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
					Code:    codeTooLarge,
					Message: "request body too large",
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
