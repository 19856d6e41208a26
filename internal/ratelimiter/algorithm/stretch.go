package algorithm

import (
	"fmt"
	"math"
	"time"
)

// Stretch computes the effective cooldown of a key that has been denied
// attempts times in a row. Implementations must be non-decreasing in attempts.
type Stretch interface {
	Stretch(base time.Duration, attempts int) time.Duration
	Validate(base time.Duration) error
}

// Linear adds Step per attempt, capped at Max. A zero Max means six times the base.
type Linear struct {
	Step time.Duration
	Max  time.Duration
}

// DefaultStretch is a tenth of the base per attempt, capped at six times the base.
func DefaultStretch(base time.Duration) Linear {
	return Linear{Step: base / 10, Max: 6 * base}
}

func (l Linear) Stretch(base time.Duration, attempts int) time.Duration {
	limit := l.max(base)
	if attempts <= 0 || l.Step <= 0 {
		return base
	}
	if int64(attempts) > int64(limit-base)/int64(l.Step) {
		return limit
	}
	return base + time.Duration(attempts)*l.Step
}

func (l Linear) Validate(base time.Duration) error {
	if l.Step < 0 {
		return fmt.Errorf("linear step %v: %w", l.Step, ErrInvalidStretch)
	}
	if l.max(base) < base {
		return fmt.Errorf("linear max %v below base %v: %w", l.Max, base, ErrInvalidStretch)
	}
	return nil
}

func (l Linear) max(base time.Duration) time.Duration {
	if l.Max == 0 {
		return 6 * base
	}
	return l.Max
}

// Exponential multiplies the base by Factor per attempt, capped at Max. A zero
// Max means six times the base.
type Exponential struct {
	Factor float64
	Max    time.Duration
}

func (e Exponential) Stretch(base time.Duration, attempts int) time.Duration {
	limit := e.max(base)
	if attempts <= 0 || e.Factor <= 1 {
		return base
	}
	d := float64(base) * math.Pow(e.Factor, float64(attempts))
	if math.IsInf(d, 0) || math.IsNaN(d) || d >= float64(limit) {
		return limit
	}
	return time.Duration(d)
}

func (e Exponential) Validate(base time.Duration) error {
	if e.Factor < 1 || math.IsNaN(e.Factor) || math.IsInf(e.Factor, 0) {
		return fmt.Errorf("exponential factor %v: %w", e.Factor, ErrInvalidStretch)
	}
	if e.max(base) < base {
		return fmt.Errorf("exponential max %v below base %v: %w", e.Max, base, ErrInvalidStretch)
	}
	return nil
}

func (e Exponential) max(base time.Duration) time.Duration {
	if e.Max == 0 {
		return 6 * base
	}
	return e.Max
}
