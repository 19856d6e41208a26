package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lowc1012/cooldown/internal/admission"
	"github.com/lowc1012/cooldown/internal/clock"
	"github.com/lowc1012/cooldown/internal/config"
	"github.com/lowc1012/cooldown/internal/log"
	"github.com/lowc1012/cooldown/internal/metrics"
	"github.com/lowc1012/cooldown/internal/ratelimiter"
	"github.com/lowc1012/cooldown/internal/ratelimiter/algorithm"
	"github.com/lowc1012/cooldown/internal/server"
	"github.com/lowc1012/cooldown/internal/utils"
)

func stretchFor(c config.EscalatingConfig) algorithm.Stretch {
	if strings.EqualFold(c.Stretch, "exponential") {
		return algorithm.Exponential{Factor: c.StretchFactor, Max: c.MaxCooldown}
	}
	step := c.StretchStep
	if step == 0 {
		step = c.BaseCooldown / 10
	}
	return algorithm.Linear{Step: step, Max: c.MaxCooldown}
}

func scopeFor(s string) algorithm.Scope {
	if strings.EqualFold(s, "global") {
		return algorithm.ScopeGlobal
	}
	return algorithm.ScopePerKey
}

// buildLimiters creates the three route limiters from cfg, all reading c.
func buildLimiters(cfg *config.Config, c clock.Clock) (server.Limiters, error) {
	commands, err := ratelimiter.NewEscalatingLimiter(cfg.Limits.Commands.BaseCooldown,
		algorithm.WithClock(c),
		algorithm.WithStretch(stretchFor(cfg.Limits.Commands)))
	if err != nil {
		return server.Limiters{}, fmt.Errorf("commands limiter: %w", err)
	}

	hello, err := ratelimiter.NewKeyedWindowLimiter(cfg.Limits.Hello.Cooldown, cfg.Limits.Hello.Overrides,
		algorithm.WithClock(c))
	if err != nil {
		return server.Limiters{}, fmt.Errorf("hello limiter: %w", err)
	}

	broadcast, err := ratelimiter.NewFixedWindowLimiter(cfg.Limits.Broadcast.Cooldown,
		algorithm.WithClock(c),
		algorithm.WithScope(scopeFor(cfg.Limits.Broadcast.Scope)))
	if err != nil {
		return server.Limiters{}, fmt.Errorf("broadcast limiter: %w", err)
	}

	return server.Limiters{Commands: commands, Hello: hello, Broadcast: broadcast}, nil
}

func sweepTargets(l server.Limiters) map[string]ratelimiter.Sweepable {
	targets := map[string]ratelimiter.Sweepable{}
	for name, lim := range map[string]ratelimiter.RateLimiter{
		"commands":  l.Commands,
		"hello":     l.Hello,
		"broadcast": l.Broadcast,
	} {
		if s, ok := lim.(ratelimiter.Sweepable); ok {
			targets[name] = s
		}
	}
	return targets
}

// sinks holds every denial sink built from config. Close releases the Redis client.
type sinks struct {
	memory   *metrics.Memory
	registry *prometheus.Registry
	redis    redis.UniversalClient
	all      metrics.Sink
}

func (s *sinks) Close() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}

const redisPingTimeout = 2 * time.Second

func buildSinks(ctx context.Context, cfg *config.Config) (*sinks, error) {
	out := &sinks{memory: metrics.NewMemory()}
	all := []metrics.Sink{out.memory}

	if cfg.Metrics.Enabled {
		out.registry = prometheus.NewRegistry()
		out.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prom, err := metrics.NewPrometheusSink(out.registry, cfg.Metrics.Namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to register denial counter: %w", err)
		}
		all = append(all, prom)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// denials are still counted in memory and prometheus
			log.Logger().Warn("Redis unreachable, continuing without it",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err))
			_ = client.Close()
		} else {
			out.redis = client
			all = append(all, metrics.NewRedisSink(client,
				metrics.WithPrefix(cfg.Redis.Prefix),
				metrics.WithTimeout(cfg.Redis.Timeout),
				metrics.WithEventWindow(cfg.Redis.EventWindow)))
		}
	}

	out.all = metrics.Multi(all...)
	return out, nil
}

func buildPolicy(cfg *config.Config, sink metrics.Sink) *admission.Policy {
	return admission.NewPolicy(
		admission.WithSink(sink),
		admission.WithThresholds(cfg.Policy.WarnAfter, cfg.Policy.StrongWarnAfter))
}

func buildExtractor(cfg *config.Config) utils.Extractor {
	if len(cfg.Server.KeyHeaders) == 0 {
		return utils.NewRemoteAddrExtractor()
	}
	return utils.NewHTTPHeadersExtractor(cfg.Server.KeyHeaders...)
}
