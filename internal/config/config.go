package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Guest     GuestConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string   `envconfig:"PORT" yaml:"port"`
	Host           string   `envconfig:"HOST" yaml:"host"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// GuestConfig holds limits for the in-process guest VMs used by headless
// sessions and tests.
type GuestConfig struct {
	ExecTimeout   time.Duration `envconfig:"GUEST_EXEC_TIMEOUT" yaml:"exec_timeout"`
	MaxStackDepth int           `envconfig:"GUEST_MAX_STACK" yaml:"max_stack_depth"`
}

// RateLimitConfig holds inbound message rate limiting for WebSocket
// guests. Excess messages are dropped, consistent with the bridge's
// silent-drop policy.
type RateLimitConfig struct {
	MessagesPerSecond int  `envconfig:"RATE_LIMIT_MPS" yaml:"messages_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// Load loads configuration. The YAML file named by FRAMEWRIGHT_CONFIG is
// applied over the defaults first; environment variables are applied last
// and take precedence.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("FRAMEWRIGHT_CONFIG"); path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		merge(cfg, fileCfg)
	}
	// Fields without a matching environment variable are left alone, so
	// file and default values survive.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns the
// defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8700",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Guest: GuestConfig{
			ExecTimeout:   5 * time.Second,
			MaxStackDepth: 1024,
		},
		RateLimit: RateLimitConfig{
			MessagesPerSecond: 200,
			Burst:             400,
			Enabled:           true,
		},
	}
}

// fileConfig mirrors Config with pointer fields so absent YAML keys are
// distinguishable from zero values.
type fileConfig struct {
	Server struct {
		Port           *string   `yaml:"port"`
		Host           *string   `yaml:"host"`
		AllowedOrigins *[]string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Logging struct {
		Level       *string `yaml:"level"`
		Development *bool   `yaml:"development"`
	} `yaml:"logging"`
	Guest struct {
		ExecTimeout   *time.Duration `yaml:"exec_timeout"`
		MaxStackDepth *int           `yaml:"max_stack_depth"`
	} `yaml:"guest"`
	RateLimit struct {
		MessagesPerSecond *int  `yaml:"messages_per_second"`
		Burst             *int  `yaml:"burst"`
		Enabled           *bool `yaml:"enabled"`
	} `yaml:"rate_limit"`
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

func merge(cfg *Config, fc *fileConfig) {
	if fc.Server.Port != nil {
		cfg.Server.Port = *fc.Server.Port
	}
	if fc.Server.Host != nil {
		cfg.Server.Host = *fc.Server.Host
	}
	if fc.Server.AllowedOrigins != nil {
		cfg.Server.AllowedOrigins = *fc.Server.AllowedOrigins
	}
	if fc.Logging.Level != nil {
		cfg.Logging.Level = *fc.Logging.Level
	}
	if fc.Logging.Development != nil {
		cfg.Logging.Development = *fc.Logging.Development
	}
	if fc.Guest.ExecTimeout != nil {
		cfg.Guest.ExecTimeout = *fc.Guest.ExecTimeout
	}
	if fc.Guest.MaxStackDepth != nil {
		cfg.Guest.MaxStackDepth = *fc.Guest.MaxStackDepth
	}
	if fc.RateLimit.MessagesPerSecond != nil {
		cfg.RateLimit.MessagesPerSecond = *fc.RateLimit.MessagesPerSecond
	}
	if fc.RateLimit.Burst != nil {
		cfg.RateLimit.Burst = *fc.RateLimit.Burst
	}
	if fc.RateLimit.Enabled != nil {
		cfg.RateLimit.Enabled = *fc.RateLimit.Enabled
	}
}
