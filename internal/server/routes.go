package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lowc1012/cooldown/internal/log"
	"github.com/lowc1012/cooldown/internal/metrics"
	"github.com/lowc1012/cooldown/internal/ratelimiter"
	"github.com/lowc1012/cooldown/internal/ratelimiter/algorithm"
	guard "github.com/lowc1012/cooldown/pkg/ratelimiter"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// LimiterReport is one limiter in the /api/v1/limits response.
type LimiterReport struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Keys    int               `json:"keys"`
	Entries []algorithm.Entry `json:"entries,omitempty"`
}

type LimitsReport struct {
	Limiters []LimiterReport    `json:"limiters"`
	Denials  []metrics.KeyCount `json:"denials"`
	Total    int64              `json:"total_denials"`
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health)
	if s.deps.Gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		if l := s.deps.Limiters.Commands; l != nil {
			r.With(s.guard(l)).Post("/commands/{command}", runCommand)
		}
		if l := s.deps.Limiters.Hello; l != nil {
			r.With(s.guard(l)).Get("/hello", hello)
		}
		if l := s.deps.Limiters.Broadcast; l != nil {
			r.With(s.guard(l)).Post("/broadcast", broadcast)
		}
		r.Get("/limits", s.limits)
	})
}

func (s *Server) guard(l ratelimiter.RateLimiter) func(http.Handler) http.Handler {
	return guard.Middleware(&guard.Config{
		Extractor: s.deps.Extractor,
		Limiter:   l,
		Policy:    s.deps.Policy,
		Quote:     s.deps.Quote,
	})
}

func (s *Server) namedLimiters() []struct {
	name    string
	limiter ratelimiter.RateLimiter
} {
	all := []struct {
		name    string
		limiter ratelimiter.RateLimiter
	}{
		{"commands", s.deps.Limiters.Commands},
		{"hello", s.deps.Limiters.Hello},
		{"broadcast", s.deps.Limiters.Broadcast},
	}
	out := all[:0]
	for _, nl := range all {
		if nl.limiter != nil {
			out = append(out, nl)
		}
	}
	return out
}

func (s *Server) limits(w http.ResponseWriter, _ *http.Request) {
	report := LimitsReport{Limiters: []LimiterReport{}, Denials: []metrics.KeyCount{}}
	for _, nl := range s.namedLimiters() {
		lr := LimiterReport{Name: nl.name, Type: nl.limiter.Type().String()}
		if in, ok := nl.limiter.(ratelimiter.Inspectable); ok {
			lr.Entries = in.Snapshot()
			lr.Keys = len(lr.Entries)
		}
		report.Limiters = append(report.Limiters, lr)
	}
	if s.deps.Denials != nil {
		report.Denials = s.deps.Denials.Snapshot()
		report.Total = s.deps.Denials.Total()
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
	tracked := map[string]int{}
	for _, nl := range s.namedLimiters() {
		if sw, ok := nl.limiter.(ratelimiter.Sweepable); ok {
			tracked[nl.name] = sw.Len()
		}
	}
	status["tracked_keys"] = tracked
	writeJSON(w, http.StatusOK, status)
}

func runCommand(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"command": chi.URLParam(r, "command"),
		"status":  "executed",
	})
}

func hello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello, World!"})
}

func broadcast(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Logger().Warn("Failed to encode response body", zap.Error(err))
	}
}
