package algorithm

import (
	"errors"
	"time"

	"github.com/lowc1012/cooldown/internal/clock"
)

var (
	ErrInvalidCooldown = errors.New("cooldown must be positive")
	ErrInvalidStretch  = errors.New("invalid stretch configuration")
)

// Scope selects how a FixedWindow accounts keys.
type Scope int

const (
	// ScopePerKey gives each key its own window.
	ScopePerKey Scope = iota
	// ScopeGlobal shares a single window between all keys.
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	default:
		return "per-key"
	}
}

type options struct {
	clock   clock.Clock
	scope   Scope
	stretch Stretch
}

// Option configures a limiter at construction.
type Option func(*options)

// WithClock replaces the system clock. The clock is always wrapped with clock.Monotonic.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithNow is a shorthand for WithClock(clock.Func(now)).
func WithNow(now func() time.Time) Option {
	return WithClock(clock.Func(now))
}

// WithScope sets the FixedWindow scope. Other limiters ignore it.
func WithScope(s Scope) Option {
	return func(o *options) {
		o.scope = s
	}
}

// WithStretch sets the escalation curve of an EscalatingPenalty. Other limiters ignore it.
func WithStretch(s Stretch) Option {
	return func(o *options) {
		o.stretch = s
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	o.clock = clock.Monotonic(o.clock)
	return o
}

// elapsed returns now-since, clamped to zero so a clock that moved backward
// counts as "no time has passed" rather than shortening a window.
func elapsed(now, since time.Time) time.Duration {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return d
}

// remaining returns window-spent, clamped to zero.
func remaining(window, spent time.Duration) time.Duration {
	if d := window - spent; d > 0 {
		return d
	}
	return 0
}

// Entry is a read-only copy of one key's state.
type Entry struct {
	Key               string        `json:"key"`
	LastActionAt      time.Time     `json:"last_action_at"`
	Cooldown          time.Duration `json:"cooldown"`
	EffectiveCooldown time.Duration `json:"effective_cooldown"`
	SpamAttempts      int           `json:"spam_attempts"`
	Remaining         time.Duration `json:"remaining"`
}
