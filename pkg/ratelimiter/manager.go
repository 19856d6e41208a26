package ratelimiter

import (
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/lowc1012/cooldown/internal/admission"
	"github.com/lowc1012/cooldown/internal/log"
	limiter "github.com/lowc1012/cooldown/internal/ratelimiter"
	"github.com/lowc1012/cooldown/internal/utils"
	"go.uber.org/zap"
)

const (
	rateLimitState        = "X-Ratelimit-State"
	rateLimitRetryAfter   = "X-Ratelimit-Retry-After"
	rateLimitSpamAttempts = "X-Ratelimit-Spam-Attempts"
	rateLimitSeverity     = "X-Ratelimit-Severity"
	retryAfter            = "Retry-After"
)

// Config defines the configuration for the rate limiter handler.
type Config struct {
	Extractor utils.Extractor
	Limiter   limiter.RateLimiter
	// Policy grades denials and reports them; nil uses admission.NewPolicy().
	Policy *admission.Policy
	// Quote picks the quote for the 429 notice; nil picks one at random.
	Quote func() string
}

// DeniedBody is the JSON body of a 429 response.
type DeniedBody struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	RetryAfterMs int64  `json:"retry_after_ms"`
	RetryAfter   string `json:"retry_after"`
	SpamAttempts int    `json:"spam_attempts"`
	Severity     string `json:"severity"`
}

type httpRateLimiterHandler struct {
	handler http.Handler
	config  *Config
	policy  *admission.Policy
	quote   func() string
}

// NewHTTPRateLimiterHandler wraps an existing http.Handler object performing rate limiting before
// sending the request to the wrapped handler. If any errors happen while trying to rate limit a request
// or if the request is denied, the rate limiting handler will send a response to the client and will not
// call the wrapped handler.
func NewHTTPRateLimiterHandler(originalHandler http.Handler, config *Config) http.Handler {
	h := &httpRateLimiterHandler{
		handler: originalHandler,
		config:  config,
		policy:  config.Policy,
		quote:   config.Quote,
	}
	if h.policy == nil {
		h.policy = admission.NewPolicy()
	}
	if h.quote == nil {
		h.quote = func() string { return admission.Quote(rand.Intn(admission.QuoteCount())) }
	}
	return h
}

// Middleware adapts NewHTTPRateLimiterHandler to the func(http.Handler) http.Handler
// shape used by chi's Use and With.
func Middleware(config *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return NewHTTPRateLimiterHandler(next, config)
	}
}

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(body); err != nil {
		log.Logger().Warn("failed to write body to HTTP response", zap.Error(err))
	}
}

func writeError(writer http.ResponseWriter, status int, code string, err error) {
	writeJSON(writer, status, map[string]string{"error": code, "message": err.Error()})
}

// ServeHTTP performs rate limiting with the configuration it was provided and if there were no errors
// and the request was allowed it is sent to the wrapped handler. It also adds rate limiting headers that will be
// sent to the client to make it aware of what state it is in terms of rate limiting.
func (h *httpRateLimiterHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	key, err := h.config.Extractor.Extract(request)
	if err != nil {
		writeError(writer, http.StatusBadRequest, "missing_key", err)
		return
	}

	result, err := h.config.Limiter.Run(request.Context(), &limiter.Request{Key: key})
	if err != nil {
		log.Logger().Error("Failed to run rate limiting",
			zap.String("key", key),
			zap.String("limiter", h.config.Limiter.Type().String()),
			zap.Error(err))
		writeError(writer, http.StatusInternalServerError, "limiter_failure", err)
		return
	}

	outcome := h.policy.Evaluate(key, admission.Normalize(result))

	// headers go out on both allow and deny so the client knows where it stands
	state := limiter.Deny
	if outcome.Allowed {
		state = limiter.Allow
	}
	writer.Header().Set(rateLimitState, state.String())
	writer.Header().Set(rateLimitRetryAfter, strconv.FormatInt(outcome.Wait.Milliseconds(), 10))
	writer.Header().Set(rateLimitSpamAttempts, strconv.Itoa(outcome.SpamAttempts))

	if !outcome.Allowed {
		writer.Header().Set(rateLimitSeverity, outcome.Severity.String())
		writer.Header().Set(retryAfter, strconv.FormatInt(int64(math.Ceil(outcome.Wait.Seconds())), 10))
		writeJSON(writer, http.StatusTooManyRequests, DeniedBody{
			Error:        "rate_limited",
			Message:      admission.Notice(outcome, h.quote()),
			RetryAfterMs: outcome.Wait.Milliseconds(),
			RetryAfter:   outcome.HumanizedWait,
			SpamAttempts: outcome.SpamAttempts,
			Severity:     outcome.Severity.String(),
		})
		return
	}

	h.handler.ServeHTTP(writer, request)
}
