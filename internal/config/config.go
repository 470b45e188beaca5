// Package config loads and validates the CLI configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/aweris/soundbank/internal/logging"
)

// Source kinds.
const (
	SourceHTTP = "http"
	SourceOCI  = "oci"
	SourceNone = "none"
)

type Config struct {
	CacheDir    string         `mapstructure:"cache_dir" validate:"required"`
	StateDir    string         `mapstructure:"state_dir"`
	Source      string         `mapstructure:"source" validate:"oneof=http oci none"`
	BaseURL     string         `mapstructure:"base_url" validate:"omitempty,url"`
	Image       string         `mapstructure:"image"`
	Registry    RegistryConfig `mapstructure:"registry"`
	Git         GitConfig      `mapstructure:"git"`
	Concurrency int            `mapstructure:"concurrency" validate:"min=1,max=64"`
	Interval    time.Duration  `mapstructure:"interval" validate:"min=0"`
	MetricsAddr string         `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
	Log         logging.Config `mapstructure:"log"`
}

// GitConfig configures the mirror fallback. An empty URL disables it.
type GitConfig struct {
	URL   string `mapstructure:"url"`
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

// RegistryConfig holds optional OCI registry credentials.
type RegistryConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cache_dir", DefaultCacheDir())
	v.SetDefault("state_dir", DefaultStateDir())
	v.SetDefault("source", SourceHTTP)
	v.SetDefault("concurrency", 4)
	v.SetDefault("interval", 5*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("git.name", "soundbank")
	v.SetDefault("git.email", "soundbank@localhost")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// CheckSource reports whether the configured source has what it needs to
// synchronize. Commands that only read the bank do not call it.
func (c *Config) CheckSource() error {
	switch c.Source {
	case SourceHTTP:
		if c.BaseURL == "" && c.Git.URL == "" {
			return fmt.Errorf("invalid config: source %q needs base_url or git.url", c.Source)
		}
	case SourceOCI:
		if c.Image == "" {
			return fmt.Errorf("invalid config: source %q needs image", c.Source)
		}
	case SourceNone:
		if c.Git.URL == "" {
			return fmt.Errorf("invalid config: source %q needs git.url", c.Source)
		}
	}
	return nil
}

func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "soundbank")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "soundbank")
	}
	return ".soundbank"
}

func DefaultCacheDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "soundbank", "sounds")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "soundbank", "sounds")
	}
	return filepath.Join(".soundbank", "sounds")
}

func DefaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "soundbank")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "soundbank")
	}
	return filepath.Join(".soundbank", "state")
}
