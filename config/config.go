// Package config loads walletctl's TOML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DiscoveryConfig points at an etcd cluster instead of a fixed endpoint.
type DiscoveryConfig struct {
	Endpoints []string `toml:"endpoints"`
	Service   string   `toml:"service"`
	Strategy  string   `toml:"strategy"` // "roundrobin" (default) or "weighted"
}

// AuthConfig holds the session credentials sent to login.
type AuthConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// LoggingConfig defines basic logging knobs.
type LoggingConfig struct {
	Level string `toml:"level"` // "debug", "info" (default), "warn", "error"
}

// Config aggregates walletctl settings.
type Config struct {
	Endpoint      string          `toml:"endpoint"`
	DialTimeoutMS int             `toml:"dialTimeoutMS"`
	Auth          AuthConfig      `toml:"auth"`
	Discovery     DiscoveryConfig `toml:"discovery"`
	Logging       LoggingConfig   `toml:"logging"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that the config names exactly one way to find a daemon.
func (cfg *Config) Validate() error {
	hasEndpoint := cfg.Endpoint != ""
	hasDiscovery := len(cfg.Discovery.Endpoints) > 0
	if !hasEndpoint && !hasDiscovery {
		return fmt.Errorf("either endpoint or discovery.endpoints required")
	}
	if hasEndpoint && hasDiscovery {
		return fmt.Errorf("endpoint and discovery.endpoints are mutually exclusive")
	}
	if hasDiscovery && cfg.Discovery.Service == "" {
		return fmt.Errorf("discovery.service required when discovery.endpoints set")
	}
	switch cfg.Discovery.Strategy {
	case "", "roundrobin", "weighted":
	default:
		return fmt.Errorf("unknown discovery.strategy %q", cfg.Discovery.Strategy)
	}
	if cfg.DialTimeoutMS < 0 {
		return fmt.Errorf("dialTimeoutMS must be >= 0")
	}
	return nil
}
