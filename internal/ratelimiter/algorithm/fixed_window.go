package algorithm

import (
	"fmt"
	"time"

	"github.com/lowc1012/cooldown/internal/clock"
)

const globalKey = "*"

// FixedWindow allows one action per cooldown. With ScopePerKey every key gets
// its own window; with ScopeGlobal every key shares one.
type FixedWindow struct {
	cooldown time.Duration
	scope    Scope
	clock    clock.Clock
	state    *entries[time.Time]
}

func NewFixedWindow(cooldown time.Duration, opts ...Option) (*FixedWindow, error) {
	if cooldown <= 0 {
		return nil, fmt.Errorf("fixed window %v: %w", cooldown, ErrInvalidCooldown)
	}
	o := buildOptions(opts)
	return &FixedWindow{
		cooldown: cooldown,
		scope:    o.scope,
		clock:    o.clock,
		state:    newEntries[time.Time](),
	}, nil
}

func (f *FixedWindow) Cooldown() time.Duration {
	return f.cooldown
}

func (f *FixedWindow) Scope() Scope {
	return f.scope
}

// Process reports whether the action may run now and, if so, starts a new window.
// A denied call leaves the window untouched.
func (f *FixedWindow) Process(key string) bool {
	key = f.scoped(key)

	f.state.Lock()
	defer f.state.Unlock()

	now := f.clock.Now()
	if last := f.state.get(key); last != nil && elapsed(now, *last) < f.cooldown {
		return false
	}
	f.state.put(key, &now)
	return true
}

// TryAgainIn returns how long until Process would permit key, zero if it would now.
func (f *FixedWindow) TryAgainIn(key string) time.Duration {
	key = f.scoped(key)

	f.state.Lock()
	defer f.state.Unlock()

	last := f.state.get(key)
	if last == nil {
		return 0
	}
	return remaining(f.cooldown, elapsed(f.clock.Now(), *last))
}

func (f *FixedWindow) scoped(key string) string {
	if f.scope == ScopeGlobal {
		return globalKey
	}
	return key
}
