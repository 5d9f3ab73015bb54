// Package main provides the TaskForge server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string    `yaml:"address"` // HTTP listen address (default: :8080)
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS settings for the HTTP server.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file path
}

// APIConfig contains authentication and rate limit settings.
// Durations are Go duration strings ("15m", "168h").
type APIConfig struct {
	AccessTokenTTL   string `yaml:"access_token_ttl"`
	RefreshTokenTTL  string `yaml:"refresh_token_ttl"`
	RateLimitPerIP   int    `yaml:"rate_limit_per_ip"`
	RateLimitPerUser int    `yaml:"rate_limit_per_user"`
	LockoutThreshold int    `yaml:"lockout_threshold"`
	LockoutDuration  string `yaml:"lockout_duration"`
}

// MetricsConfig contains Prometheus metrics server settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // metrics listen address (default: :9090)
}

// ArchiveConfig contains ClickHouse activity archive settings.
type ArchiveConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Addresses     []string `yaml:"addresses"`
	Database      string   `yaml:"database"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	RetentionDays int      `yaml:"retention_days"`
	BatchSize     int      `yaml:"batch_size"`
	FlushInterval string   `yaml:"flush_interval"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/taskforge.db"
	}
	if c.API.AccessTokenTTL == "" {
		c.API.AccessTokenTTL = "15m"
	}
	if c.API.RefreshTokenTTL == "" {
		c.API.RefreshTokenTTL = "168h" // 7 days
	}
	if c.API.LockoutDuration == "" {
		c.API.LockoutDuration = "30m"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Archive.FlushInterval == "" {
		c.Archive.FlushInterval = "5s"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	for name, value := range map[string]string{
		"api.access_token_ttl":   c.API.AccessTokenTTL,
		"api.refresh_token_ttl":  c.API.RefreshTokenTTL,
		"api.lockout_duration":   c.API.LockoutDuration,
		"archive.flush_interval": c.Archive.FlushInterval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if c.Archive.Enabled && len(c.Archive.Addresses) == 0 {
		return fmt.Errorf("archive.addresses is required when the archive is enabled")
	}

	return nil
}

// duration returns an already-validated duration string as a Duration.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
