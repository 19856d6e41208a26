package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lowc1012/cooldown/internal/admission"
	"github.com/lowc1012/cooldown/internal/config"
	"github.com/lowc1012/cooldown/internal/log"
	"github.com/lowc1012/cooldown/internal/metrics"
	"github.com/lowc1012/cooldown/internal/ratelimiter"
	"github.com/lowc1012/cooldown/internal/utils"
)

// Limiters guards each route group. A nil limiter leaves its routes unregistered.
type Limiters struct {
	Commands  ratelimiter.RateLimiter
	Hello     ratelimiter.RateLimiter
	Broadcast ratelimiter.RateLimiter
}

// Deps are the collaborators the server wires into its routes.
type Deps struct {
	Limiters  Limiters
	Extractor utils.Extractor
	Policy    *admission.Policy
	// Denials backs the counts reported by /api/v1/limits; optional.
	Denials *metrics.Memory
	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Quote    func() string
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    config.ServerConfig
	deps   Deps
}

// New creates a new HTTP server instance
func New(cfg config.ServerConfig, deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "The requested resource was not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed", Message: "The requested method is not allowed for this resource"})
	})

	if deps.Extractor == nil {
		deps.Extractor = utils.NewRemoteAddrExtractor()
	}
	if deps.Policy == nil {
		deps.Policy = admission.NewPolicy()
	}

	s := &Server{
		router: r,
		cfg:    cfg,
		deps:   deps,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         s.Addr(),
		Handler:      r,
		ReadTimeout:  orDefault(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(cfg.IdleTimeout, 120*time.Second),
	}
	return s
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	log.Logger().Info("Starting HTTP server",
		zap.String("host", s.cfg.Host),
		zap.Int("port", s.cfg.Port),
		zap.String("addr", s.Addr()))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Logger().Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing
func (s *Server) Handler() http.Handler {
	return s.router
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
