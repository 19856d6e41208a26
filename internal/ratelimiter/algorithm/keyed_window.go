package algorithm

import (
	"fmt"
	"time"

	"github.com/lowc1012/cooldown/internal/clock"
)

type windowState struct {
	lastActionAt time.Time
	cooldown     time.Duration
}

// KeyedWindow keeps an independent fixed window per key. Unknown keys are
// permitted and their state is created on that first permit, so a burst of
// distinct first-time keys is never throttled.
type KeyedWindow struct {
	cooldown  time.Duration
	clock     clock.Clock
	state     *entries[windowState]
	overrides map[string]time.Duration // guarded by state's lock
}

func NewKeyedWindow(cooldown time.Duration, opts ...Option) (*KeyedWindow, error) {
	if cooldown <= 0 {
		return nil, fmt.Errorf("keyed window %v: %w", cooldown, ErrInvalidCooldown)
	}
	o := buildOptions(opts)
	return &KeyedWindow{
		cooldown:  cooldown,
		clock:     o.clock,
		state:     newEntries[windowState](),
		overrides: make(map[string]time.Duration),
	}, nil
}

func (k *KeyedWindow) Cooldown() time.Duration {
	return k.cooldown
}

// SetCooldown overrides the cooldown for a single key. It applies to the
// current window as well as future ones.
func (k *KeyedWindow) SetCooldown(key string, cooldown time.Duration) error {
	if cooldown <= 0 {
		return fmt.Errorf("cooldown override for %q %v: %w", key, cooldown, ErrInvalidCooldown)
	}

	k.state.Lock()
	defer k.state.Unlock()
	k.overrides[key] = cooldown
	if s := k.state.get(key); s != nil {
		s.cooldown = cooldown
	}
	return nil
}

// ClearCooldown drops a per-key override. The current window keeps its length.
func (k *KeyedWindow) ClearCooldown(key string) {
	k.state.Lock()
	defer k.state.Unlock()
	delete(k.overrides, key)
}

func (k *KeyedWindow) Process(key string) bool {
	k.state.Lock()
	defer k.state.Unlock()

	now := k.clock.Now()
	s := k.state.get(key)
	if s != nil && elapsed(now, s.lastActionAt) < s.cooldown {
		return false
	}
	if s == nil {
		s = &windowState{}
		k.state.put(key, s)
	}
	s.lastActionAt = now
	s.cooldown = k.cooldownFor(key)
	return true
}

func (k *KeyedWindow) TryAgainIn(key string) time.Duration {
	k.state.Lock()
	defer k.state.Unlock()

	s := k.state.get(key)
	if s == nil {
		return 0
	}
	return remaining(s.cooldown, elapsed(k.clock.Now(), s.lastActionAt))
}

// Forget drops the state of key, its next call is treated as a first call.
func (k *KeyedWindow) Forget(key string) bool {
	return k.state.forget(key)
}

func (k *KeyedWindow) Len() int {
	return k.state.len()
}

// Sweep evicts keys idle for longer than horizon. A key whose window is still
// running is never evicted, whatever the horizon.
func (k *KeyedWindow) Sweep(horizon time.Duration) int {
	now := k.clock.Now()
	return k.state.sweep(func(s *windowState) bool {
		idle := elapsed(now, s.lastActionAt)
		return idle >= s.cooldown && idle > horizon
	})
}

func (k *KeyedWindow) Snapshot() []Entry {
	k.state.Lock()
	defer k.state.Unlock()

	now := k.clock.Now()
	out := make([]Entry, 0, len(k.state.m))
	for _, key := range k.state.keys() {
		s := k.state.get(key)
		out = append(out, Entry{
			Key:               key,
			LastActionAt:      s.lastActionAt,
			Cooldown:          s.cooldown,
			EffectiveCooldown: s.cooldown,
			Remaining:         remaining(s.cooldown, elapsed(now, s.lastActionAt)),
		})
	}
	return out
}

func (k *KeyedWindow) cooldownFor(key string) time.Duration {
	if d, ok := k.overrides[key]; ok {
		return d
	}
	return k.cooldown
}
