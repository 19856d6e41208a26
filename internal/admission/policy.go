// Package admission turns a limiter verdict into the outcome shown to a caller.
//
// Evaluate is deterministic: the same verdict always yields the same outcome.
// The only side effect is the denial report sent to the injected DenialSink,
// which is never read back.
package admission

import (
	"time"

	"github.com/lowc1012/cooldown/internal/ratelimiter"
	"github.com/lowc1012/cooldown/internal/utils"
)

// DenialSink receives one call per denied verdict.
type DenialSink interface {
	RecordDenial(key string)
}

type nopSink struct{}

func (nopSink) RecordDenial(string) {}

// Severity grades how hard a denied actor has been pushing.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarn
	SeverityStrongWarn
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityStrongWarn:
		return "strong-warn"
	default:
		return "none"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	// DefaultWarnAfter and DefaultStrongWarnAfter are exclusive: more than this many spam attempts.
	DefaultWarnAfter       = 2
	DefaultStrongWarnAfter = 4
)

// Verdict is a limiter result reduced to what the policy needs.
type Verdict struct {
	Allowed      bool
	Wait         time.Duration
	SpamAttempts int
}

// Normalize reduces a limiter result to a Verdict. A nil result is a denial with no wait.
func Normalize(r *ratelimiter.Result) Verdict {
	if r == nil {
		return Verdict{}
	}
	return Verdict{
		Allowed:      r.Allowed(),
		Wait:         r.RemainingTime,
		SpamAttempts: r.SpamAttempts,
	}
}

// Outcome is what a caller acts on.
type Outcome struct {
	Allowed       bool          `json:"allowed"`
	Wait          time.Duration `json:"wait"`
	HumanizedWait string        `json:"humanized_wait"`
	Severity      Severity      `json:"severity"`
	SpamAttempts  int           `json:"spam_attempts"`
}

type Policy struct {
	sink            DenialSink
	format          func(time.Duration) string
	warnAfter       int
	strongWarnAfter int
}

type Option func(*Policy)

// WithSink sets where denials are reported. The default discards them.
func WithSink(s DenialSink) Option {
	return func(p *Policy) {
		if s != nil {
			p.sink = s
		}
	}
}

// WithFormatter replaces utils.HumanizeDuration for HumanizedWait.
func WithFormatter(f func(time.Duration) string) Option {
	return func(p *Policy) {
		if f != nil {
			p.format = f
		}
	}
}

// WithThresholds sets the spam-attempt counts above which a denial is graded
// warn and strong-warn.
func WithThresholds(warnAfter, strongWarnAfter int) Option {
	return func(p *Policy) {
		p.warnAfter = warnAfter
		p.strongWarnAfter = strongWarnAfter
	}
}

func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		sink:            nopSink{},
		format:          utils.HumanizeDuration,
		warnAfter:       DefaultWarnAfter,
		strongWarnAfter: DefaultStrongWarnAfter,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.strongWarnAfter < p.warnAfter {
		p.strongWarnAfter = p.warnAfter
	}
	return p
}

// Evaluate maps a verdict for key to an Outcome and reports denials to the sink.
func (p *Policy) Evaluate(key string, v Verdict) Outcome {
	if v.Allowed {
		return Outcome{Allowed: true}
	}

	wait := v.Wait
	if wait < 0 {
		wait = 0
	}
	p.sink.RecordDenial(key)
	return Outcome{
		Wait:          wait,
		HumanizedWait: p.format(wait),
		Severity:      p.Classify(v.SpamAttempts),
		SpamAttempts:  v.SpamAttempts,
	}
}

// Classify grades a spam-attempt count.
func (p *Policy) Classify(spamAttempts int) Severity {
	switch {
	case spamAttempts > p.strongWarnAfter:
		return SeverityStrongWarn
	case spamAttempts > p.warnAfter:
		return SeverityWarn
	default:
		return SeverityNone
	}
}
