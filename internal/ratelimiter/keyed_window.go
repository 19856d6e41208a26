package ratelimiter

import (
	"context"
	"time"

	"github.com/lowc1012/cooldown/internal/log"
	"github.com/lowc1012/cooldown/internal/ratelimiter/algorithm"
	"go.uber.org/zap"
)

var (
	_ RateLimiter = &KeyedWindowLimiter{}
	_ Sweepable   = &KeyedWindowLimiter{}
	_ Inspectable = &KeyedWindowLimiter{}
)

// KeyedWindowLimiter gives every key its own cooldown window. Keys can carry
// individual cooldown overrides and idle keys are evicted by a Sweeper.
type KeyedWindowLimiter struct {
	*algorithm.KeyedWindow
}

// NewKeyedWindowLimiter creates a limiter with the given default cooldown and per-key overrides.
func NewKeyedWindowLimiter(cooldown time.Duration, overrides map[string]time.Duration, opts ...algorithm.Option) (*KeyedWindowLimiter, error) {
	impl, err := algorithm.NewKeyedWindow(cooldown, opts...)
	if err != nil {
		return nil, err
	}
	for key, d := range overrides {
		if err := impl.SetCooldown(key, d); err != nil {
			return nil, err
		}
	}
	return &KeyedWindowLimiter{KeyedWindow: impl}, nil
}

func (l *KeyedWindowLimiter) Type() Type {
	return KeyedWindowLimiterType
}

func (l *KeyedWindowLimiter) Run(_ context.Context, req *Request) (*Result, error) {
	if l.Process(req.Key) {
		return &Result{State: Allow, TriesLeft: 1}, nil
	}

	wait := l.TryAgainIn(req.Key)
	log.Logger().Debug("Keyed window denied key",
		zap.String("key", req.Key),
		zap.Duration("tryAgainIn", wait))
	return &Result{State: Deny, RemainingTime: wait}, nil
}
