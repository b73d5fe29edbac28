package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/wiresim/wiresim/internal/config"
	"github.com/wiresim/wiresim/internal/gmail"
	"github.com/wiresim/wiresim/internal/instrumentation"
	"github.com/wiresim/wiresim/internal/logging"
	"github.com/wiresim/wiresim/internal/ratelimit"
	"github.com/wiresim/wiresim/internal/session"
	"github.com/wiresim/wiresim/internal/slack"
)

// Server is the assembled simulator server.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	store    *session.Store
	handler  http.Handler
	health   *HealthChecker
	shutdown atomic.Bool

	httpServer *http.Server
}

// New assembles the full routing table and middleware chains.
func New(cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		store:   session.NewStore(),
	}
	s.health = NewHealthChecker(s.shutdown.Load)

	gmailLimiter := ratelimit.New(cfg.Simulators.Gmail.RateLimit)
	slackLimiter := ratelimit.New(cfg.Simulators.Slack.RateLimit)

	sessionHandler := session.NewHandler(s.store, logger, metrics)
	sessionHandler.OnDelete = func(id string) {
		gmailLimiter.Forget(id)
		slackLimiter.Forget(id)
	}

	gmailChain := s.chain(
		instrumentation.SimulatorGmail,
		gmailLimiter,
		gmail.NewHandler(s.store, logger, metrics),
	)
	slackChain := s.chain(
		instrumentation.SimulatorSlack,
		slackLimiter,
		slack.NewHandler(s.store, cfg.Workspace, logger, metrics),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/sessions", sessionHandler)
	mux.Handle("/api/sessions/", sessionHandler)
	mux.Handle("/gmail/", http.StripPrefix("/gmail", gmailChain))
	mux.Handle("/slack/", http.StripPrefix("/slack", slackChain))
	s.health.RegisterHealthEndpoints(mux)

	s.handler = mux
	return s
}

// chain wraps a simulator handler in the fixed middleware order:
// instrumentation, logging, session extraction, rate limiting.
func (s *Server) chain(simulator string, limiter *ratelimit.Limiter, handler http.Handler) http.Handler {
	wrapped := ratelimit.Middleware(limiter, simulator, s.logger, s.metrics)(handler)
	wrapped = session.Middleware(wrapped)
	wrapped = logging.Middleware(simulator)(wrapped)
	wrapped = s.instrument(simulator, wrapped)
	return wrapped
}

func (s *Server) instrument(simulator string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.metrics.RecordHTTPRequest(r.Context(), simulator, r.Method, r.URL.Path, recorder.status, time.Since(start))
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Handler returns the assembled root handler. Exposed so tests can mount the
// full routing table on an httptest server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Store returns the session store backing the server.
func (s *Server) Store() *session.Store {
	return s.store
}

// Health returns the server's health checker.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Start starts the HTTP server in a blocking manner.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       s.cfg.Server.IdleTimeout,
	}

	s.logger.Info("starting server", slog.String("addr", s.cfg.Server.Listen))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server, letting in-flight requests
// finish within the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)
	s.health.SetReady(false)

	if s.httpServer != nil {
		s.logger.Info("shutting down server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
