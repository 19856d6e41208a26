// Package ratelimiter decides whether an actor's action may run now or must
// wait, based on when the same actor was last permitted.
//
// Every variant implements RateLimiter:
//
//	res, err := limiter.Run(ctx, &ratelimiter.Request{Key: userID})
//
// Run never fails for the in-process limiters; the error return exists so
// callers can treat every limiter the same way. The returned Result reports
// Allow or Deny, how long to wait and, for the escalating limiter, how many
// times the key has tried again while cooling down.
//
// # Variants
//
//   - FixedWindowLimiter: one action per cooldown. Per key by default; with
//     algorithm.WithScope(algorithm.ScopeGlobal) one window is shared by
//     every key.
//   - KeyedWindowLimiter: one window per key, with per-key cooldown
//     overrides.
//   - EscalatingLimiter: a per-key window that grows while the key keeps
//     trying. Each early attempt is denied, counted, and stretches the
//     window up to a cap. The count resets on the next permitted action.
//
// A denial never moves the start of a window. Only a permitted action does.
//
// # Time
//
// Limiters read time from a clock.Clock (algorithm.WithClock). The clock is
// wrapped so it never goes backward; if the underlying clock regresses the key
// is treated as still inside its window.
//
// # Memory
//
// Keyed and escalating limiters keep one entry per key seen. A Sweeper evicts
// entries idle for longer than a retention horizon, never while a window is
// still running:
//
//	sweeper, _ := ratelimiter.NewSweeper(time.Minute, 10*time.Minute,
//		map[string]ratelimiter.Sweepable{"commands": commands})
//	go sweeper.Run(ctx)
//
// # Concurrency
//
// All limiters are safe for concurrent use. Each holds one mutex over its
// state, so concurrent denials for a key are all counted.
package ratelimiter
