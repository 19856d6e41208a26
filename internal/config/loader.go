// Package config loads service configuration in three layers: defaults set in
// code, an optional YAML file, then COOLDOWN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// COOLDOWN_LIMITS_COMMANDS_BASE_COOLDOWN=5s.
const EnvPrefix = "COOLDOWN"

// SetDefaults registers every known key on v. Keys without a default cannot be
// overridden from the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.key_headers", []string{"X-User-ID"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("limits.commands.base_cooldown", "3s")
	v.SetDefault("limits.commands.stretch", "linear")
	v.SetDefault("limits.commands.stretch_step", "0s")
	v.SetDefault("limits.commands.stretch_factor", 2.0)
	v.SetDefault("limits.commands.max_cooldown", "0s")
	v.SetDefault("limits.hello.cooldown", "1s")
	v.SetDefault("limits.hello.overrides", map[string]string{})
	v.SetDefault("limits.broadcast.cooldown", "10s")
	v.SetDefault("limits.broadcast.scope", "global")

	v.SetDefault("policy.warn_after", 2)
	v.SetDefault("policy.strong_warn_after", 4)

	v.SetDefault("sweep.interval", "1m")
	v.SetDefault("sweep.retention", "10m")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "cooldown:")
	v.SetDefault("redis.timeout", "100ms")
	v.SetDefault("redis.event_window", "1h")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "cooldown")
}

// NewViper returns a viper instance with defaults and environment binding in place.
// A non-empty file is read as YAML; a missing explicit file is an error.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file == "" {
		return v, nil
	}
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file not found: %s", file)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
	}
	return v, nil
}

// Decode unmarshals v into a validated Config.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToFloat64HookFunc(),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is NewViper followed by Decode.
func Load(file string) (*Config, *viper.Viper, error) {
	v, err := NewViper(file)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// Render writes the effective settings as YAML. Durations keep the form they
// were given in ("30s"), which round-trips through Load.
func Render(v *viper.Viper) ([]byte, error) {
	out, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}
