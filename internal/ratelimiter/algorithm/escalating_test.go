package algorithm

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lowc1012/cooldown/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEscalating(t *testing.T, base time.Duration, opts ...Option) (*EscalatingPenalty, *clock.Manual) {
	t.Helper()
	c := clock.NewManual(epoch)
	l, err := NewEscalatingPenalty(base, append([]Option{WithClock(c)}, opts...)...)
	require.NoError(t, err)
	return l, c
}

func TestNewEscalatingPenalty_Validation(t *testing.T) {
	var tests = []struct {
		name    string
		base    time.Duration
		stretch Stretch
		wantErr error
	}{
		{name: "zero base", base: 0, wantErr: ErrInvalidCooldown},
		{name: "negative base", base: -time.Second, wantErr: ErrInvalidCooldown},
		{name: "negative linear step", base: time.Second, stretch: Linear{Step: -1}, wantErr: ErrInvalidStretch},
		{name: "linear max below base", base: time.Second, stretch: Linear{Step: 1, Max: time.Millisecond}, wantErr: ErrInvalidStretch},
		{name: "shrinking exponential", base: time.Second, stretch: Exponential{Factor: 0.5}, wantErr: ErrInvalidStretch},
		{name: "default stretch", base: time.Second},
		{name: "exponential", base: time.Second, stretch: Exponential{Factor: 2, Max: time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.stretch != nil {
				opts = append(opts, WithStretch(tt.stretch))
			}
			l, err := NewEscalatingPenalty(tt.base, opts...)
			if tt.wantErr != nil {
				assert.Nil(t, l)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.base, l.Cooldown())
		})
	}
}

func TestEscalatingPenalty_Scenario(t *testing.T) {
	l, c := newEscalating(t, 10*time.Second)

	first := l.Limit("k")
	assert.Equal(t, RateLimit{TriesLeft: 1, SpamAttempts: 0}, first)
	assert.True(t, first.Allowed())

	c.Set(epoch.Add(1000 * time.Millisecond))
	second := l.Limit("k")
	assert.False(t, second.Allowed())
	assert.Equal(t, 0, second.TriesLeft)
	assert.Equal(t, 1, second.SpamAttempts)
	assert.True(t, second.Cooldown >= 9*time.Second, "cooldown %v", second.Cooldown)
	assert.Equal(t, int64(10000), second.CooldownMillis())

	c.Set(epoch.Add(2000 * time.Millisecond))
	third := l.Limit("k")
	assert.False(t, third.Allowed())
	assert.Equal(t, 2, third.SpamAttempts)
	assert.True(t, third.Cooldown >= second.Cooldown)

	// past the base window but still inside the stretched one
	c.Set(epoch.Add(10050 * time.Millisecond))
	fourth := l.Limit("k")
	assert.False(t, fourth.Allowed())
	assert.Equal(t, 3, fourth.SpamAttempts)
	assert.Equal(t, 2950*time.Millisecond, fourth.Cooldown)

	c.Set(epoch.Add(13 * time.Second))
	fifth := l.Limit("k")
	assert.True(t, fifth.Allowed())
	assert.Equal(t, 0, fifth.SpamAttempts)
}

func TestEscalatingPenalty_ConsecutiveDenials(t *testing.T) {
	l, c := newEscalating(t, time.Minute, WithStretch(Exponential{Factor: 1.5, Max: 10 * time.Minute}))
	require.True(t, l.Limit("k").Allowed())

	var lastEffective time.Duration
	for n := 1; n <= 20; n++ {
		c.Advance(100 * time.Millisecond)
		rl := l.Limit("k")
		require.False(t, rl.Allowed())
		assert.Equal(t, n, rl.SpamAttempts)

		snap := l.Snapshot()
		require.Len(t, snap, 1)
		assert.True(t, snap[0].EffectiveCooldown >= lastEffective)
		assert.True(t, snap[0].EffectiveCooldown <= 10*time.Minute)
		lastEffective = snap[0].EffectiveCooldown
	}
	assert.Equal(t, 10*time.Minute, lastEffective)
}

func TestEscalatingPenalty_PermitResetsCounter(t *testing.T) {
	l, c := newEscalating(t, time.Second, WithStretch(Linear{Step: 0}))

	require.True(t, l.Limit("k").Allowed())
	for i := 0; i < 7; i++ {
		require.False(t, l.Limit("k").Allowed())
	}
	assert.Equal(t, 7, l.Peek("k").SpamAttempts)

	c.Advance(time.Second)
	rl := l.Limit("k")
	assert.True(t, rl.Allowed())
	assert.Equal(t, 0, rl.SpamAttempts)
	assert.Equal(t, 0, l.Peek("k").SpamAttempts)
}

func TestEscalatingPenalty_PeekIsReadOnly(t *testing.T) {
	l, c := newEscalating(t, 10*time.Second)

	assert.Equal(t, RateLimit{TriesLeft: 1}, l.Peek("k"))
	assert.Equal(t, 0, l.Len())

	require.True(t, l.Limit("k").Allowed())
	c.Advance(4 * time.Second)
	for i := 0; i < 3; i++ {
		p := l.Peek("k")
		assert.False(t, p.Allowed())
		assert.Equal(t, 0, p.SpamAttempts)
		assert.Equal(t, 6*time.Second, p.Cooldown)
	}
}

func TestEscalatingPenalty_KeysAreIndependent(t *testing.T) {
	l, _ := newEscalating(t, time.Hour)

	require.True(t, l.Limit("k1").Allowed())
	for i := 0; i < 50; i++ {
		l.Limit("k1")
	}
	rl := l.Limit("k2")
	assert.True(t, rl.Allowed())
	assert.Equal(t, 0, rl.SpamAttempts)
}

func TestEscalatingPenalty_ConcurrentDenials(t *testing.T) {
	const attempts = 500
	l, _ := newEscalating(t, time.Hour)
	require.True(t, l.Limit("hot").Allowed())

	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			l.Limit("hot")
		}()
	}
	wg.Wait()

	assert.Equal(t, attempts, l.Peek("hot").SpamAttempts)
}

func TestEscalatingPenalty_ClockMovingBackward(t *testing.T) {
	l, c := newEscalating(t, time.Second)
	require.True(t, l.Limit("k").Allowed())

	c.Advance(-time.Minute)
	rl := l.Limit("k")
	assert.False(t, rl.Allowed())
	assert.True(t, rl.Cooldown > 0)
}

func TestEscalatingPenalty_SweepKeepsStretchedWindows(t *testing.T) {
	l, c := newEscalating(t, time.Second, WithStretch(Linear{Step: time.Minute, Max: time.Hour}))

	require.True(t, l.Limit("spammer").Allowed())
	require.True(t, l.Limit("quiet").Allowed())
	for i := 0; i < 3; i++ {
		l.Limit("spammer")
	}

	c.Advance(10 * time.Second)
	assert.Equal(t, 1, l.Sweep(5*time.Second))
	assert.Equal(t, 1, l.Len())
	assert.False(t, l.Limit("spammer").Allowed())

	assert.True(t, l.Forget("spammer"))
	assert.True(t, l.Limit("spammer").Allowed())
}
