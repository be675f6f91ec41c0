// Package config loads the server configuration from an optional YAML
// file with environment overrides for deployment platforms that only
// speak env vars.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "1h" or "5m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// RateLimit configures per-IP connection admission.
type RateLimit struct {
	// Max attempts per window. Zero disables rate limiting.
	Max    int      `yaml:"max"`
	Window Duration `yaml:"window"`
}

// Config holds everything the server consumes.
type Config struct {
	ListenAddr      string    `yaml:"listen_addr"`
	AllowedOrigins  []string  `yaml:"allowed_origins"`
	IdleTimeout     Duration  `yaml:"idle_timeout"`
	SweepInterval   Duration  `yaml:"sweep_interval"`
	SessionCapacity int       `yaml:"session_capacity"`
	RateLimit       RateLimit `yaml:"rate_limit"`
	RedisAddr       string    `yaml:"redis_addr"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		IdleTimeout:     Duration(time.Hour),
		SweepInterval:   Duration(5 * time.Minute),
		SessionCapacity: 5,
		RateLimit: RateLimit{
			Max:    30,
			Window: Duration(time.Minute),
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
}

func (c *Config) validate() error {
	if c.SessionCapacity < 1 {
		return fmt.Errorf("session_capacity must be at least 1, got %d", c.SessionCapacity)
	}
	if time.Duration(c.IdleTimeout) <= 0 {
		return fmt.Errorf("idle_timeout must be positive, got %s", time.Duration(c.IdleTimeout))
	}
	if time.Duration(c.SweepInterval) <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", time.Duration(c.SweepInterval))
	}
	return nil
}
