package algorithm

import (
	"errors"
	"testing"
	"time"

	"github.com/lowc1012/cooldown/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC)

func TestNewFixedWindow_RejectsNonPositiveCooldown(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		l, err := NewFixedWindow(d)
		assert.Nil(t, l)
		assert.True(t, errors.Is(err, ErrInvalidCooldown))
	}
}

func TestFixedWindow_Scenario(t *testing.T) {
	c := clock.NewManual(epoch)
	l, err := NewFixedWindow(time.Second, WithClock(c))
	require.NoError(t, err)

	assert.True(t, l.Process("k"))

	c.Advance(500 * time.Millisecond)
	assert.False(t, l.Process("k"))
	assert.Equal(t, 500*time.Millisecond, l.TryAgainIn("k"))
	assert.Equal(t, int64(500), l.TryAgainIn("k").Milliseconds())

	c.Advance(500 * time.Millisecond)
	assert.Equal(t, time.Duration(0), l.TryAgainIn("k"))
	assert.True(t, l.Process("k"))
}

func TestFixedWindow_DenialDoesNotMoveWindow(t *testing.T) {
	c := clock.NewManual(epoch)
	l, err := NewFixedWindow(time.Second, WithClock(c))
	require.NoError(t, err)

	require.True(t, l.Process("k"))
	for i := 0; i < 9; i++ {
		c.Advance(100 * time.Millisecond)
		assert.False(t, l.Process("k"))
	}

	// 900ms in: had any denial restarted the window this would still be a second away
	assert.Equal(t, 100*time.Millisecond, l.TryAgainIn("k"))
	c.Advance(100 * time.Millisecond)
	assert.True(t, l.Process("k"))
}

func TestFixedWindow_Scopes(t *testing.T) {
	var tests = []struct {
		name        string
		scope       Scope
		secondAllow bool
	}{
		{name: "per-key windows are independent", scope: ScopePerKey, secondAllow: true},
		{name: "global window is shared", scope: ScopeGlobal, secondAllow: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewManual(epoch)
			l, err := NewFixedWindow(time.Minute, WithClock(c), WithScope(tt.scope))
			require.NoError(t, err)
			assert.Equal(t, tt.scope, l.Scope())

			assert.True(t, l.Process("alice"))
			assert.Equal(t, tt.secondAllow, l.Process("bob"))
		})
	}
}

func TestFixedWindow_FirstCallAlwaysPermits(t *testing.T) {
	l, err := NewFixedWindow(time.Hour, WithNow(func() time.Time { return epoch }))
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), l.TryAgainIn("never-seen"))
	assert.True(t, l.Process("never-seen"))
	assert.Equal(t, time.Hour, l.TryAgainIn("never-seen"))
	assert.Equal(t, time.Hour, l.Cooldown())
}

func TestFixedWindow_ClockMovingBackward(t *testing.T) {
	c := clock.NewManual(epoch)
	l, err := NewFixedWindow(time.Second, WithClock(c))
	require.NoError(t, err)

	require.True(t, l.Process("k"))
	c.Advance(-time.Hour)

	assert.False(t, l.Process("k"))
	wait := l.TryAgainIn("k")
	assert.True(t, wait > 0 && wait <= time.Second, "wait %v", wait)
}
