package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Policy  PolicyConfig  `mapstructure:"policy"`
	Sweep   SweepConfig   `mapstructure:"sweep"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// KeyHeaders are joined to build the actor key; empty means key by remote address.
	KeyHeaders []string `mapstructure:"key_headers"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LimitsConfig holds one section per guarded route group.
type LimitsConfig struct {
	Commands  EscalatingConfig `mapstructure:"commands"`
	Hello     KeyedConfig      `mapstructure:"hello"`
	Broadcast FixedConfig      `mapstructure:"broadcast"`
}

type EscalatingConfig struct {
	BaseCooldown time.Duration `mapstructure:"base_cooldown"`
	// Stretch is "linear" or "exponential".
	Stretch       string        `mapstructure:"stretch"`
	StretchStep   time.Duration `mapstructure:"stretch_step"`
	StretchFactor float64       `mapstructure:"stretch_factor"`
	MaxCooldown   time.Duration `mapstructure:"max_cooldown"`
}

type KeyedConfig struct {
	Cooldown  time.Duration            `mapstructure:"cooldown"`
	Overrides map[string]time.Duration `mapstructure:"overrides"`
}

type FixedConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown"`
	// Scope is "per_key" or "global".
	Scope string `mapstructure:"scope"`
}

// PolicyConfig sets the spam-attempt counts above which denials are graded.
type PolicyConfig struct {
	WarnAfter       int `mapstructure:"warn_after"`
	StrongWarnAfter int `mapstructure:"strong_warn_after"`
}

type SweepConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Retention time.Duration `mapstructure:"retention"`
}

// RedisConfig enables the Redis denial counter.
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Prefix      string        `mapstructure:"prefix"`
	Timeout     time.Duration `mapstructure:"timeout"`
	EventWindow time.Duration `mapstructure:"event_window"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

var ErrInvalidConfig = errors.New("invalid config")

// Validate reports every problem found, joined into one error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %s", name, d))
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}

	positive("limits.commands.base_cooldown", c.Limits.Commands.BaseCooldown)
	switch strings.ToLower(c.Limits.Commands.Stretch) {
	case "", "linear":
		if c.Limits.Commands.StretchStep < 0 {
			problems = append(problems, "limits.commands.stretch_step must not be negative")
		}
	case "exponential":
		if c.Limits.Commands.StretchFactor < 1 {
			problems = append(problems, "limits.commands.stretch_factor must be at least 1")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown limits.commands.stretch %q", c.Limits.Commands.Stretch))
	}
	if mx := c.Limits.Commands.MaxCooldown; mx != 0 && mx < c.Limits.Commands.BaseCooldown {
		problems = append(problems, "limits.commands.max_cooldown must not be below base_cooldown")
	}

	positive("limits.hello.cooldown", c.Limits.Hello.Cooldown)
	for key, d := range c.Limits.Hello.Overrides {
		positive("limits.hello.overrides."+key, d)
	}

	positive("limits.broadcast.cooldown", c.Limits.Broadcast.Cooldown)
	switch strings.ToLower(c.Limits.Broadcast.Scope) {
	case "", "per_key", "global":
	default:
		problems = append(problems, fmt.Sprintf("unknown limits.broadcast.scope %q", c.Limits.Broadcast.Scope))
	}

	positive("sweep.interval", c.Sweep.Interval)
	positive("sweep.retention", c.Sweep.Retention)

	if c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		problems = append(problems, "redis.addr is required when redis is enabled")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}
