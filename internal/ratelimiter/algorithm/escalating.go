package algorithm

import (
	"fmt"
	"time"

	"github.com/lowc1012/cooldown/internal/clock"
)

// RateLimit is the verdict of EscalatingPenalty.Limit.
type RateLimit struct {
	// TriesLeft is 1 when the call was permitted and 0 when it was denied.
	TriesLeft int
	// Cooldown is the wait under the stretched window, zero when permitted.
	Cooldown time.Duration
	// SpamAttempts counts denials since the last permit.
	SpamAttempts int
}

func (r RateLimit) Allowed() bool {
	return r.TriesLeft > 0
}

func (r RateLimit) CooldownMillis() int64 {
	return r.Cooldown.Milliseconds()
}

type escalationState struct {
	lastActionAt      time.Time
	spamAttempts      int
	effectiveCooldown time.Duration
}

// EscalatingPenalty permits one action per base cooldown per key. Every
// attempt made while the key is still cooling down is denied and stretches
// the remaining window further.
type EscalatingPenalty struct {
	base    time.Duration
	stretch Stretch
	clock   clock.Clock
	state   *entries[escalationState]
}

func NewEscalatingPenalty(base time.Duration, opts ...Option) (*EscalatingPenalty, error) {
	if base <= 0 {
		return nil, fmt.Errorf("escalating penalty %v: %w", base, ErrInvalidCooldown)
	}
	o := buildOptions(opts)
	if o.stretch == nil {
		o.stretch = DefaultStretch(base)
	}
	if err := o.stretch.Validate(base); err != nil {
		return nil, err
	}
	return &EscalatingPenalty{
		base:    base,
		stretch: o.stretch,
		clock:   o.clock,
		state:   newEntries[escalationState](),
	}, nil
}

func (e *EscalatingPenalty) Cooldown() time.Duration {
	return e.base
}

// Limit evaluates key and records the attempt.
func (e *EscalatingPenalty) Limit(key string) RateLimit {
	e.state.Lock()
	defer e.state.Unlock()

	now := e.clock.Now()
	s := e.state.get(key)
	if s == nil || elapsed(now, s.lastActionAt) >= s.effectiveCooldown {
		if s == nil {
			s = &escalationState{}
			e.state.put(key, s)
		}
		s.lastActionAt = now
		s.spamAttempts = 0
		s.effectiveCooldown = e.base
		return RateLimit{TriesLeft: 1}
	}

	s.spamAttempts++
	if stretched := e.stretch.Stretch(e.base, s.spamAttempts); stretched > s.effectiveCooldown {
		s.effectiveCooldown = stretched
	}
	return RateLimit{
		TriesLeft:    0,
		Cooldown:     remaining(s.effectiveCooldown, elapsed(now, s.lastActionAt)),
		SpamAttempts: s.spamAttempts,
	}
}

// Peek reports what Limit would return for key without recording an attempt.
// A permitted peek reports the current counter, which Limit would reset.
func (e *EscalatingPenalty) Peek(key string) RateLimit {
	e.state.Lock()
	defer e.state.Unlock()

	s := e.state.get(key)
	if s == nil {
		return RateLimit{TriesLeft: 1}
	}
	spent := elapsed(e.clock.Now(), s.lastActionAt)
	if spent >= s.effectiveCooldown {
		return RateLimit{TriesLeft: 1, SpamAttempts: s.spamAttempts}
	}
	return RateLimit{
		Cooldown:     remaining(s.effectiveCooldown, spent),
		SpamAttempts: s.spamAttempts,
	}
}

func (e *EscalatingPenalty) Forget(key string) bool {
	return e.state.forget(key)
}

func (e *EscalatingPenalty) Len() int {
	return e.state.len()
}

// Sweep evicts keys idle for longer than horizon whose stretched window has elapsed.
func (e *EscalatingPenalty) Sweep(horizon time.Duration) int {
	now := e.clock.Now()
	return e.state.sweep(func(s *escalationState) bool {
		idle := elapsed(now, s.lastActionAt)
		return idle >= s.effectiveCooldown && idle > horizon
	})
}

func (e *EscalatingPenalty) Snapshot() []Entry {
	e.state.Lock()
	defer e.state.Unlock()

	now := e.clock.Now()
	out := make([]Entry, 0, len(e.state.m))
	for _, key := range e.state.keys() {
		s := e.state.get(key)
		out = append(out, Entry{
			Key:               key,
			LastActionAt:      s.lastActionAt,
			Cooldown:          e.base,
			EffectiveCooldown: s.effectiveCooldown,
			SpamAttempts:      s.spamAttempts,
			Remaining:         remaining(s.effectiveCooldown, elapsed(now, s.lastActionAt)),
		})
	}
	return out
}
