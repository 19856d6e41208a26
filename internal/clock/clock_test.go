package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemaining(t *testing.T) {
	var now = time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC)
	c := NewManual(now)

	var tests = []struct {
		name  string
		until time.Time
		want  time.Duration
	}{
		{name: "future instant", until: now.Add(1500 * time.Millisecond), want: 1500 * time.Millisecond},
		{name: "now", until: now, want: 0},
		{name: "past instant is clamped", until: now.Add(-time.Minute), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Remaining(c, tt.until))
		})
	}
}

func TestMonotonic_NeverGoesBackward(t *testing.T) {
	start := time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC)
	manual := NewManual(start)
	c := Monotonic(manual)

	assert.Equal(t, start, c.Now())

	manual.Advance(time.Second)
	assert.Equal(t, start.Add(time.Second), c.Now())

	manual.Advance(-10 * time.Second)
	assert.Equal(t, start.Add(time.Second), c.Now(), "regression must be hidden")

	manual.Set(start.Add(5 * time.Second))
	assert.Equal(t, start.Add(5*time.Second), c.Now())
}

func TestMonotonic_WrapsOnce(t *testing.T) {
	c := Monotonic(System())
	assert.Same(t, c, Monotonic(c))
	assert.NotNil(t, Monotonic(nil).Now())
}

func TestFunc(t *testing.T) {
	fixed := time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC)
	c := Func(func() time.Time { return fixed })
	assert.Equal(t, fixed, c.Now())
}
