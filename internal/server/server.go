// Package server exposes the tool registry, executor, and orchestrator over
// two transports: a stateless request/response HTTP API and a persistent
// duplex WebSocket channel. Both funnel into the same executor, so
// validation semantics are identical regardless of transport.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tellergate/tellergate/internal/orchestrator"
	"github.com/tellergate/tellergate/internal/tools"
)

// Server holds the transport dependencies.
type Server struct {
	router      *chi.Mux
	executor    *tools.Executor
	orch        *orchestrator.Orchestrator
	hub         *hub
	wsQueueSize int
	rateLimit   float64
	rateBurst   int
	startTime   time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithWSQueueSize bounds the per-connection outbound queue. A client that
// falls behind past this bound is disconnected with a backpressure error.
func WithWSQueueSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.wsQueueSize = n
		}
	}
}

// WithRateLimit sets the per-connection message rate limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 {
			s.rateLimit = perSecond
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

// New builds a Server over executor and orch.
func New(executor *tools.Executor, orch *orchestrator.Orchestrator, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		executor:    executor,
		orch:        orch,
		hub:         newHub(),
		wsQueueSize: 64,
		rateLimit:   10,
		rateBurst:   20,
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Expired sessions are pushed to any connection bound to them.
	orch.AddExpiryListener(s.hub.notifySessionExpired)

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tools", s.handleListTools)
		r.Get("/categories", s.handleListCategories)
		r.Post("/execute", s.handleExecute)
		r.Post("/executeBatch", s.handleExecuteBatch)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{sessionID}", s.handleGetSession)
		r.Delete("/sessions/{sessionID}", s.handleCloseSession)
		r.Post("/sessions/{sessionID}/messages", s.handleProcess)
		r.Post("/sessions/{sessionID}/executions/{executionID}/feedback", s.handleFeedback)
		r.Get("/users/{userID}/sessions", s.handleUserSessions)
	})
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks serving on addr until the listener fails.
func (s *Server) ListenAndServe(addr string, idleTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       idleTimeout,
	}
	return srv.ListenAndServe()
}
