package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lowc1012/cooldown/internal/log"
	"go.uber.org/zap"
)

var ErrInvalidRetention = errors.New("retention and sweep interval must be positive")

// Sweeper periodically evicts idle keys from its targets. It runs on its own
// goroutine so admission calls never pay for eviction.
type Sweeper struct {
	interval  time.Duration
	retention time.Duration
	targets   map[string]Sweepable
}

func NewSweeper(interval, retention time.Duration, targets map[string]Sweepable) (*Sweeper, error) {
	if interval <= 0 || retention <= 0 {
		return nil, fmt.Errorf("sweeper interval=%v retention=%v: %w", interval, retention, ErrInvalidRetention)
	}
	return &Sweeper{
		interval:  interval,
		retention: retention,
		targets:   targets,
	}, nil
}

// SweepOnce runs a single pass over every target and returns the number of evicted keys per target.
func (s *Sweeper) SweepOnce() map[string]int {
	evicted := make(map[string]int, len(s.targets))
	for name, target := range s.targets {
		n := target.Sweep(s.retention)
		evicted[name] = n
		if n > 0 {
			log.Logger().Debug("Evicted idle rate limit keys",
				zap.String("limiter", name),
				zap.Int("evicted", n),
				zap.Int("remaining", target.Len()))
		}
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Logger().Info("Rate limit sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention))

	for {
		select {
		case <-ticker.C:
			s.SweepOnce()
		case <-ctx.Done():
			log.Logger().Info("Rate limit sweeper stopped")
			return
		}
	}
}
