// Package server exposes the encounter manager over HTTP.
//
// Routes:
//
//	POST   /v1/encounters                          start an encounter
//	GET    /v1/encounters                          list active encounters
//	GET    /v1/encounters/{id}                     describe one encounter
//	DELETE /v1/encounters/{id}                     end an encounter
//	POST   /v1/encounters/{id}/increments          process a transcript increment
//	GET    /v1/encounters/{id}/note                the note as text/plain
//	GET    /v1/encounters/{id}/report              note, sections and metrics as JSON
//	GET    /v1/encounters/{id}/quality             quality metrics
//	GET    /v1/encounters/{id}/chief-complaint     the chief complaint
//	GET    /v1/encounters/{id}/stream              WebSocket increment stream
//	GET    /healthz, /readyz                       probes
//	GET    /metrics                                Prometheus scrape endpoint
//
// Every route runs behind [observe.Middleware].
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/medscribe/internal/encounter"
	"github.com/MrWong99/medscribe/internal/health"
	"github.com/MrWong99/medscribe/internal/observe"
	"github.com/MrWong99/medscribe/internal/transcript"
)

// defaultMaxBody caps request bodies. A transcript increment is a few
// sentences; anything near this size is a client bug.
const defaultMaxBody = 1 << 20

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth sets the probe handler. Default: a handler with no checks.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler replaces the /metrics handler. Default:
// [promhttp.Handler], which serves the registry the OpenTelemetry
// Prometheus exporter writes to.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithMaxBodyBytes caps JSON request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithOriginPatterns allows cross-origin WebSocket clients whose Origin host
// matches one of the patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.originPatterns = append(s.originPatterns, patterns...) }
}

// WithTLS serves HTTPS with the given PEM files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) { s.certFile, s.keyFile = certFile, keyFile }
}

// WithShutdownTimeout bounds graceful shutdown in [Server.Run].
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// Server serves the medscribe HTTP API.
type Server struct {
	mgr            *encounter.Manager
	metrics        *observe.Metrics
	health         *health.Handler
	metricsHandler http.Handler
	maxBody        int64
	originPatterns []string

	certFile, keyFile string
	shutdownTimeout   time.Duration

	handler http.Handler
}

// New creates a [Server] for mgr.
func New(mgr *encounter.Manager, opts ...Option) *Server {
	s := &Server{
		mgr:             mgr,
		maxBody:         defaultMaxBody,
		shutdownTimeout: 15 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/encounters", s.handleStart)
	mux.HandleFunc("GET /v1/encounters", s.handleList)
	mux.HandleFunc("GET /v1/encounters/{id}", s.handleGet)
	mux.HandleFunc("DELETE /v1/encounters/{id}", s.handleEnd)
	mux.HandleFunc("POST /v1/encounters/{id}/increments", s.handleIncrement)
	mux.HandleFunc("GET /v1/encounters/{id}/note", s.handleNote)
	mux.HandleFunc("GET /v1/encounters/{id}/report", s.handleReport)
	mux.HandleFunc("GET /v1/encounters/{id}/quality", s.handleQuality)
	mux.HandleFunc("GET /v1/encounters/{id}/chief-complaint", s.handleChiefComplaint)
	mux.HandleFunc("GET /v1/encounters/{id}/stream", s.handleStream)
	mux.Handle("GET /metrics", s.metricsHandler)
	s.health.Register(mux)

	s.handler = observe.Middleware(s.metrics)(mux)
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on addr until ctx is cancelled, then drains: /readyz starts
// failing and in-flight requests get the shutdown timeout to finish.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is [Server.Run] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts keep the logger and trace values of ctx but are
		// not cancelled with it; Shutdown handles draining.
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		if s.certFile != "" {
			errCh <- srv.ServeTLS(ln, s.certFile, s.keyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()
	observe.Logger(ctx).Info("server: listening", slog.String("addr", ln.Addr().String()), slog.Bool("tls", s.certFile != ""))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	s.health.Drain()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	observe.Logger(ctx).Info("server: stopped")
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

// errorBody is the JSON body of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("server: request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusFor maps package errors to HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, encounter.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, encounter.ErrExists):
		return http.StatusConflict
	case errors.Is(err, encounter.ErrLimitReached):
		return http.StatusTooManyRequests
	case errors.Is(err, encounter.ErrClosed):
		return http.StatusGone
	case errors.Is(err, transcript.ErrInvalidMessage), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

// decode reads a JSON body into v. An empty body leaves v untouched when
// optional is true.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return err
		case optional && errors.Is(err, io.EOF):
			return nil
		}
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}
