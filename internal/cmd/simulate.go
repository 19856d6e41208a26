package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lowc1012/cooldown/internal/admission"
	"github.com/lowc1012/cooldown/internal/clock"
	"github.com/lowc1012/cooldown/internal/config"
	"github.com/lowc1012/cooldown/internal/ratelimiter"
	"github.com/lowc1012/cooldown/internal/ratelimiter/algorithm"
	"github.com/lowc1012/cooldown/internal/utils"
)

type simulateOptions struct {
	limiter  string
	cooldown time.Duration
	at       []int64
	key      string
	stretch  string
	factor   float64
	max      time.Duration
	scope    string
	output   string
}

// simulationRow is one replayed call.
type simulationRow struct {
	Call         int                `json:"call"`
	At           time.Duration      `json:"at"`
	Key          string             `json:"key"`
	Allowed      bool               `json:"allowed"`
	WaitMs       int64              `json:"wait_ms"`
	Wait         string             `json:"wait"`
	SpamAttempts int                `json:"spam_attempts"`
	Severity     admission.Severity `json:"severity"`
}

func newSimulateCommand(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay calls against a limiter on a manual clock",
		Long: `Replay a sequence of calls, given as millisecond offsets from the start,
against a fresh limiter and print each verdict. No real time passes.

  cooldown simulate --limiter escalating --cooldown 10s --at 0,1000,2000,10050
  cooldown simulate --limiter fixed --cooldown 1s --at 0,500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("cooldown") {
				opts.cooldown = defaultCooldownFor(root.cfg, opts.limiter)
			}
			rows, err := simulate(cmd.Context(), opts, root.cfg)
			if err != nil {
				return err
			}
			return renderSimulation(cmd.OutOrStdout(), rows, opts.output)
		},
	}

	cmd.Flags().StringVarP(&opts.limiter, "limiter", "l", "escalating", "limiter: fixed, keyed or escalating")
	cmd.Flags().DurationVarP(&opts.cooldown, "cooldown", "c", 0, "cooldown (defaults to the configured one for the limiter)")
	cmd.Flags().Int64SliceVar(&opts.at, "at", []int64{0, 1000, 2000}, "call offsets in milliseconds, ascending")
	cmd.Flags().StringVarP(&opts.key, "key", "k", "user", "actor key; a comma-separated list is cycled through the calls")
	cmd.Flags().StringVar(&opts.stretch, "stretch", "linear", "escalating stretch: linear or exponential")
	cmd.Flags().Float64Var(&opts.factor, "factor", 2, "exponential stretch factor")
	cmd.Flags().DurationVar(&opts.max, "max", 0, "stretch cap (0 means six times the cooldown)")
	cmd.Flags().StringVar(&opts.scope, "scope", "per_key", "fixed window scope: per_key or global")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	return cmd
}

func defaultCooldownFor(cfg *config.Config, limiter string) time.Duration {
	if cfg == nil {
		return time.Second
	}
	switch limiter {
	case "fixed":
		return cfg.Limits.Broadcast.Cooldown
	case "keyed":
		return cfg.Limits.Hello.Cooldown
	default:
		return cfg.Limits.Commands.BaseCooldown
	}
}

func newSimulatedLimiter(opts *simulateOptions, c clock.Clock) (ratelimiter.RateLimiter, error) {
	switch opts.limiter {
	case "fixed":
		return ratelimiter.NewFixedWindowLimiter(opts.cooldown, algorithm.WithClock(c), algorithm.WithScope(scopeFor(opts.scope)))
	case "keyed":
		return ratelimiter.NewKeyedWindowLimiter(opts.cooldown, nil, algorithm.WithClock(c))
	case "escalating":
		return ratelimiter.NewEscalatingLimiter(opts.cooldown, algorithm.WithClock(c),
			algorithm.WithStretch(stretchFor(config.EscalatingConfig{
				BaseCooldown:  opts.cooldown,
				Stretch:       opts.stretch,
				StretchFactor: opts.factor,
				MaxCooldown:   opts.max,
			})))
	default:
		return nil, fmt.Errorf("unknown limiter %q (want fixed, keyed or escalating)", opts.limiter)
	}
}

func simulate(ctx context.Context, opts *simulateOptions, cfg *config.Config) ([]simulationRow, error) {
	if !sort.SliceIsSorted(opts.at, func(i, j int) bool { return opts.at[i] < opts.at[j] }) {
		return nil, fmt.Errorf("--at offsets must be ascending: %v", opts.at)
	}

	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)
	limiter, err := newSimulatedLimiter(opts, c)
	if err != nil {
		return nil, err
	}

	policyOpts := []admission.Option{}
	if cfg != nil {
		policyOpts = append(policyOpts, admission.WithThresholds(cfg.Policy.WarnAfter, cfg.Policy.StrongWarnAfter))
	}
	policy := admission.NewPolicy(policyOpts...)

	keys := strings.Split(opts.key, ",")
	rows := make([]simulationRow, 0, len(opts.at))
	for i, ms := range opts.at {
		at := time.Duration(ms) * time.Millisecond
		c.Set(start.Add(at))
		key := strings.TrimSpace(keys[i%len(keys)])

		res, err := limiter.Run(ctx, &ratelimiter.Request{Key: key})
		if err != nil {
			return nil, err
		}
		outcome := policy.Evaluate(key, admission.Normalize(res))
		rows = append(rows, simulationRow{
			Call:         i + 1,
			At:           at,
			Key:          key,
			Allowed:      outcome.Allowed,
			WaitMs:       outcome.Wait.Milliseconds(),
			Wait:         outcome.HumanizedWait,
			SpamAttempts: res.SpamAttempts,
			Severity:     outcome.Severity,
		})
	}
	return rows, nil
}

func renderSimulation(w io.Writer, rows []simulationRow, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "table", "":
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "At", "Offset (ms)", "Key", "Verdict", "Wait (ms)", "Wait", "Spam", "Severity"})

	permitted := 0
	for _, r := range rows {
		verdict := "deny"
		if r.Allowed {
			verdict = "permit"
			permitted++
		}
		t.AppendRow(table.Row{
			r.Call,
			utils.ClockDuration(r.At),
			r.At.Milliseconds(),
			r.Key,
			verdict,
			r.WaitMs,
			r.Wait,
			r.SpamAttempts,
			r.Severity.String(),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d/%d permitted", permitted, len(rows)), "", "", "", ""})
	t.Render()
	return nil
}
