// Package clock provides the time source used by the limiters.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to a Clock.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	// time.Now carries a monotonic reading, comparisons between two results never go backward
	return time.Now()
}

// System returns the process clock.
func System() Clock {
	return systemClock{}
}

type monotonic struct {
	mu   sync.Mutex
	src  Clock
	last time.Time
}

// Monotonic wraps c so that Now never returns a time earlier than a previous call.
func Monotonic(c Clock) Clock {
	if c == nil {
		c = System()
	}
	if m, ok := c.(*monotonic); ok {
		return m
	}
	return &monotonic{src: c}
}

func (m *monotonic) Now() time.Time {
	now := m.src.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Before(m.last) {
		return m.last
	}
	m.last = now
	return now
}

// Remaining returns how long until the given instant, clamped to zero.
func Remaining(c Clock, until time.Time) time.Duration {
	d := until.Sub(c.Now())
	if d < 0 {
		return 0
	}
	return d
}
