package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lowc1012/cooldown/internal/clock"
	"github.com/lowc1012/cooldown/internal/ratelimiter/algorithm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSweeper_Validation(t *testing.T) {
	_, err := NewSweeper(0, time.Minute, nil)
	assert.True(t, errors.Is(err, ErrInvalidRetention))

	_, err = NewSweeper(time.Minute, -time.Second, nil)
	assert.True(t, errors.Is(err, ErrInvalidRetention))
}

func TestSweeper_SweepOnce(t *testing.T) {
	c := clock.NewManual(time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC))
	keyed, err := NewKeyedWindowLimiter(time.Second, nil, algorithm.WithClock(c))
	require.NoError(t, err)
	escalating, err := NewEscalatingLimiter(time.Second, algorithm.WithClock(c))
	require.NoError(t, err)

	for _, key := range []string{"a", "b", "c"} {
		keyed.Process(key)
		escalating.Limit(key)
	}
	c.Advance(time.Minute)
	keyed.Process("d")

	s, err := NewSweeper(time.Hour, 30*time.Second, map[string]Sweepable{
		"keyed":      keyed,
		"escalating": escalating,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"keyed": 3, "escalating": 3}, s.SweepOnce())
	assert.Equal(t, 1, keyed.Len())
	assert.Equal(t, 0, escalating.Len())
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	keyed, err := NewKeyedWindowLimiter(time.Millisecond, nil)
	require.NoError(t, err)
	keyed.Process("idle")

	s, err := NewSweeper(5*time.Millisecond, time.Millisecond, map[string]Sweepable{"keyed": keyed})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return keyed.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
