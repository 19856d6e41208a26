package ratelimiter

import (
	"context"
	"time"

	"github.com/lowc1012/cooldown/internal/log"
	"github.com/lowc1012/cooldown/internal/ratelimiter/algorithm"
	"go.uber.org/zap"
)

// ensure that FixedWindowLimiter satisfies the interface RateLimiter
var _ RateLimiter = &FixedWindowLimiter{}

// FixedWindowLimiter allows a single action per cooldown, either per key or
// shared by every key.
type FixedWindowLimiter struct {
	impl *algorithm.FixedWindow
}

func NewFixedWindowLimiter(cooldown time.Duration, opts ...algorithm.Option) (*FixedWindowLimiter, error) {
	impl, err := algorithm.NewFixedWindow(cooldown, opts...)
	if err != nil {
		return nil, err
	}
	return &FixedWindowLimiter{impl: impl}, nil
}

func (l *FixedWindowLimiter) Type() Type {
	return FixedWindowLimiterType
}

func (l *FixedWindowLimiter) Process(key string) bool {
	return l.impl.Process(key)
}

func (l *FixedWindowLimiter) TryAgainIn(key string) time.Duration {
	return l.impl.TryAgainIn(key)
}

func (l *FixedWindowLimiter) Run(_ context.Context, req *Request) (*Result, error) {
	if l.impl.Process(req.Key) {
		return &Result{State: Allow, TriesLeft: 1}, nil
	}

	wait := l.impl.TryAgainIn(req.Key)
	log.Logger().Debug("Fixed window denied key",
		zap.String("key", req.Key),
		zap.Stringer("scope", l.impl.Scope()),
		zap.Duration("tryAgainIn", wait))
	return &Result{State: Deny, RemainingTime: wait}, nil
}
