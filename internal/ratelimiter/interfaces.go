package ratelimiter

import (
	"context"
	"time"

	"github.com/lowc1012/cooldown/internal/ratelimiter/algorithm"
)

type Request struct {
	Key string
}

type State uint32

const (
	Deny State = iota
	Allow
)

func (s State) String() string {
	if s == Allow {
		return "Allow"
	}
	return "Deny"
}

// Result is the verdict shared by every limiter variant.
type Result struct {
	State State
	// TriesLeft is 1 on Allow and 0 on Deny.
	TriesLeft int
	// RemainingTime is how long the caller must wait, zero on Allow.
	RemainingTime time.Duration
	// SpamAttempts is only reported by the escalating limiter.
	SpamAttempts int
}

func (r *Result) Allowed() bool {
	return r != nil && r.State == Allow
}

// Type defines the type of rate limiter.
type Type uint32

const (
	FixedWindowLimiterType Type = iota
	KeyedWindowLimiterType
	EscalatingLimiterType
)

func (t Type) String() string {
	switch t {
	case FixedWindowLimiterType:
		return "fixed_window"
	case KeyedWindowLimiterType:
		return "keyed_window"
	case EscalatingLimiterType:
		return "escalating"
	default:
		return "unknown"
	}
}

// RateLimiter defines the interface for a rate limiter.
type RateLimiter interface {
	Run(ctx context.Context, req *Request) (*Result, error)
	Type() Type
}

// Sweepable is a limiter whose per-key state can be evicted out of band.
type Sweepable interface {
	Sweep(horizon time.Duration) int
	Len() int
}

// Inspectable is a limiter that can report its per-key state.
type Inspectable interface {
	Snapshot() []algorithm.Entry
}
