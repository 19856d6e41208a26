package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowc1012/cooldown/internal/admission"
	"github.com/lowc1012/cooldown/internal/clock"
	"github.com/lowc1012/cooldown/internal/config"
	"github.com/lowc1012/cooldown/internal/metrics"
	"github.com/lowc1012/cooldown/internal/ratelimiter"
	"github.com/lowc1012/cooldown/internal/ratelimiter/algorithm"
	"github.com/lowc1012/cooldown/internal/utils"
)

type fixture struct {
	srv     *Server
	clock   *clock.Manual
	denials *metrics.Memory
	reg     *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := clock.NewManual(time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC))

	commands, err := ratelimiter.NewEscalatingLimiter(10*time.Second, algorithm.WithClock(c))
	require.NoError(t, err)
	hello, err := ratelimiter.NewKeyedWindowLimiter(time.Second, map[string]time.Duration{"vip": 100 * time.Millisecond}, algorithm.WithClock(c))
	require.NoError(t, err)
	broadcast, err := ratelimiter.NewFixedWindowLimiter(5*time.Second, algorithm.WithClock(c), algorithm.WithScope(algorithm.ScopeGlobal))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	prom, err := metrics.NewPrometheusSink(reg, "cooldown")
	require.NoError(t, err)
	denials := metrics.NewMemory()

	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, Deps{
		Limiters:  Limiters{Commands: commands, Hello: hello, Broadcast: broadcast},
		Extractor: utils.NewHTTPHeadersExtractor("X-User-ID"),
		Policy:    admission.NewPolicy(admission.WithSink(metrics.Multi(denials, prom))),
		Denials:   denials,
		Gatherer:  reg,
		Quote:     func() string { return admission.Quote(0) },
	})
	return &fixture{srv: srv, clock: c, denials: denials, reg: reg}
}

func (f *fixture) do(method, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Commands(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/commands/play", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "play", body["command"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	f.clock.Advance(time.Second)
	rec = f.do(http.MethodPost, "/api/v1/commands/play", "alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	// first denial stretches the 10s window to 11s
	assert.Equal(t, "10000", rec.Header().Get("X-Ratelimit-Retry-After"))
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))

	// the limiter is shared by every command
	rec = f.do(http.MethodPost, "/api/v1/commands/skip", "alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Ratelimit-Spam-Attempts"))

	f.clock.Advance(20 * time.Second)
	rec = f.do(http.MethodPost, "/api/v1/commands/play", "alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-Ratelimit-Spam-Attempts"))
}

func TestServer_HelloOverrides(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/hello", "vip").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/hello", "alice").Code)

	f.clock.Advance(200 * time.Millisecond)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/hello", "vip").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/api/v1/hello", "alice").Code)
}

func TestServer_BroadcastIsGlobal(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/v1/broadcast", "alice").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/api/v1/broadcast", "bob").Code)

	f.clock.Advance(5 * time.Second)
	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/v1/broadcast", "bob").Code)
}

func TestServer_MissingKey(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/v1/hello", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Limits(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodPost, "/api/v1/commands/play", "alice")
	f.do(http.MethodPost, "/api/v1/commands/play", "alice")
	f.do(http.MethodGet, "/api/v1/hello", "bob")

	rec := f.do(http.MethodGet, "/api/v1/limits", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report LimitsReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Limiters, 3)

	assert.Equal(t, "commands", report.Limiters[0].Name)
	assert.Equal(t, "escalating", report.Limiters[0].Type)
	assert.Equal(t, 1, report.Limiters[0].Keys)
	assert.Equal(t, "alice", report.Limiters[0].Entries[0].Key)
	assert.Equal(t, 1, report.Limiters[0].Entries[0].SpamAttempts)

	assert.Equal(t, "keyed_window", report.Limiters[1].Type)
	assert.Equal(t, 1, report.Limiters[1].Keys)

	assert.Equal(t, "fixed_window", report.Limiters[2].Type)
	assert.Empty(t, report.Limiters[2].Entries)

	assert.Equal(t, int64(1), report.Total)
	require.Len(t, report.Denials, 1)
	assert.Equal(t, "alice", report.Denials[0].Key)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/api/v1/commands/play", "alice")
	f.do(http.MethodPost, "/api/v1/commands/play", "alice")

	rec := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])

	rec = f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `cooldown_ratelimits{key="alice"} 1`), rec.Body.String())
}

func TestServer_NotFoundAndRequestID(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = f.do(http.MethodGet, "/api/v1/commands/play", "alice")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.srv.Shutdown(context.Background()))
	assert.Equal(t, "127.0.0.1:0", f.srv.Addr())
}
