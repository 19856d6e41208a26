package ratelimiter

import (
	"context"
	"time"

	"github.com/lowc1012/cooldown/internal/log"
	"github.com/lowc1012/cooldown/internal/ratelimiter/algorithm"
	"go.uber.org/zap"
)

var (
	_ RateLimiter = &EscalatingLimiter{}
	_ Sweepable   = &EscalatingLimiter{}
	_ Inspectable = &EscalatingLimiter{}
)

// EscalatingLimiter punishes keys that keep trying while cooling down: each
// early attempt is denied and pushes the end of the window further out.
type EscalatingLimiter struct {
	*algorithm.EscalatingPenalty
}

func NewEscalatingLimiter(base time.Duration, opts ...algorithm.Option) (*EscalatingLimiter, error) {
	impl, err := algorithm.NewEscalatingPenalty(base, opts...)
	if err != nil {
		return nil, err
	}
	return &EscalatingLimiter{EscalatingPenalty: impl}, nil
}

func (l *EscalatingLimiter) Type() Type {
	return EscalatingLimiterType
}

func (l *EscalatingLimiter) Run(_ context.Context, req *Request) (*Result, error) {
	rl := l.Limit(req.Key)
	if rl.Allowed() {
		return &Result{State: Allow, TriesLeft: rl.TriesLeft}, nil
	}

	log.Logger().Debug("Escalating limiter denied key",
		zap.String("key", req.Key),
		zap.Int("spamAttempts", rl.SpamAttempts),
		zap.Duration("cooldown", rl.Cooldown))
	return &Result{
		State:         Deny,
		TriesLeft:     rl.TriesLeft,
		RemainingTime: rl.Cooldown,
		SpamAttempts:  rl.SpamAttempts,
	}, nil
}
