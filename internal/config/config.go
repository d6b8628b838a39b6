// Package config loads fenrir's server configuration from a YAML file,
// environment variables, and command-line flags, in that ascending
// order of precedence, using viper and pflag the way the rest of the
// pack wires them together.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the top-level server configuration.
type Config struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`

	LogLevel string `mapstructure:"log_level"`

	Engine EngineConfig `mapstructure:"engine"`

	Metrics MetricsConfig `mapstructure:"metrics"`
}

// EngineConfig bounds a single call to internal/engine.Execute.
type EngineConfig struct {
	MaxTrades       uint32 `mapstructure:"max_trades"`
	MaxPreviewScans uint32 `mapstructure:"max_preview_scans"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("address", "0.0.0.0")
	v.SetDefault("port", 9001)
	v.SetDefault("log_level", "info")
	v.SetDefault("engine.max_trades", 1000)
	v.SetDefault("engine.max_preview_scans", 1000)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", "0.0.0.0")
	v.SetDefault("metrics.port", 9002)
}

// Load reads configPath (if non-empty and present) into a fresh viper
// instance, overlays FENRIR_*-prefixed environment variables, then
// overlays flags, which have the highest precedence.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("FENRIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields Load cannot sanity-check on its own.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.Engine.MaxTrades == 0 {
		return fmt.Errorf("config: engine.max_trades must be > 0")
	}
	if c.Engine.MaxPreviewScans == 0 {
		return fmt.Errorf("config: engine.max_preview_scans must be > 0")
	}
	return nil
}
