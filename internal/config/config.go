// Package config loads the hostwatch YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCPUThreshold    = 25.0
	DefaultMemoryThreshold = 30.0
	DefaultHistoryCapacity = 100
)

// Config is the top-level configuration document.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Collector  CollectorConfig  `yaml:"collector"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Auth       AuthConfig       `yaml:"auth"`
	Store      StoreConfig      `yaml:"store"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Listen is the host:port the HTTP server binds to.
	Listen string `yaml:"listen"`
	// AllowedOrigins restricts CORS; empty allows any non-empty Origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RateLimitRPS is the per-IP request rate for the whole API.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	// RateLimitBurst is the per-IP burst size.
	RateLimitBurst int `yaml:"rate_limit_burst"`
	// AllowedIPs restricts clients; empty allows everyone. Loopback is always allowed.
	AllowedIPs []string `yaml:"allowed_ips"`
	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// CollectorConfig holds sampling loop settings. Durations are strings such as "5s".
type CollectorConfig struct {
	Interval        string `yaml:"interval"`
	ErrorBackoff    string `yaml:"error_backoff"`
	CPUWindow       string `yaml:"cpu_window"`
	HistoryCapacity int    `yaml:"history_capacity"`
}

// ThresholdsConfig holds the initial alert thresholds in percent.
type ThresholdsConfig struct {
	CPU    *float64 `yaml:"cpu"`
	Memory *float64 `yaml:"memory"`
}

// AuthConfig holds session and account settings.
type AuthConfig struct {
	SessionTTL      string `yaml:"session_ttl"`
	SweepInterval   string `yaml:"sweep_interval"`
	BcryptCost      int    `yaml:"bcrypt_cost"`
	StreamTicketTTL string `yaml:"stream_ticket_ttl"`
	AdminUsername   string `yaml:"admin_username"`
	AdminPassword   string `yaml:"admin_password"`
	// AdminPasswordFile receives a generated admin password when AdminPassword
	// is empty. Empty means ~/.hostwatch-admin-password.
	AdminPasswordFile string `yaml:"admin_password_file"`
	// SecretFile persists the stream ticket signing key. Empty means ~/.hostwatch-secret-key.
	SecretFile string `yaml:"secret_file"`
}

// StoreConfig holds alert database settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path, applies defaults and environment overrides and validates
// the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	c.applyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = "0.0.0.0:5000"
	}
	if c.Server.RateLimitRPS <= 0 {
		c.Server.RateLimitRPS = 100
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 200
	}

	if c.Collector.Interval == "" {
		c.Collector.Interval = "5s"
	}
	if c.Collector.ErrorBackoff == "" {
		c.Collector.ErrorBackoff = "10s"
	}
	if c.Collector.CPUWindow == "" {
		c.Collector.CPUWindow = "1s"
	}
	if c.Collector.HistoryCapacity <= 0 {
		c.Collector.HistoryCapacity = DefaultHistoryCapacity
	}

	if c.Thresholds.CPU == nil {
		v := DefaultCPUThreshold
		c.Thresholds.CPU = &v
	}
	if c.Thresholds.Memory == nil {
		v := DefaultMemoryThreshold
		c.Thresholds.Memory = &v
	}

	if c.Auth.SessionTTL == "" {
		c.Auth.SessionTTL = "24h"
	}
	if c.Auth.SweepInterval == "" {
		c.Auth.SweepInterval = "10m"
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = bcrypt.DefaultCost
	}
	if c.Auth.AdminUsername == "" {
		c.Auth.AdminUsername = "admin"
	}
	if c.Auth.StreamTicketTTL == "" {
		c.Auth.StreamTicketTTL = "5m"
	}

	if c.Store.Path == "" {
		c.Store.Path = "hostwatch.db"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HOSTWATCH_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("HOSTWATCH_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("HOSTWATCH_ADMIN_PASSWORD"); v != "" {
		c.Auth.AdminPassword = v
	}
	if v := os.Getenv("HOSTWATCH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks ranges and that every duration string parses.
func (c *Config) Validate() error {
	var errs []error
	for name, v := range map[string]*float64{"thresholds.cpu": c.Thresholds.CPU, "thresholds.memory": c.Thresholds.Memory} {
		if v != nil && (*v < 0 || *v > 100) {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 100, got %v", name, *v))
		}
	}
	durations := []struct {
		name  string
		value string
	}{
		{"collector.interval", c.Collector.Interval},
		{"collector.error_backoff", c.Collector.ErrorBackoff},
		{"collector.cpu_window", c.Collector.CPUWindow},
		{"auth.session_ttl", c.Auth.SessionTTL},
		{"auth.sweep_interval", c.Auth.SweepInterval},
		{"auth.stream_ticket_ttl", c.Auth.StreamTicketTTL},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
			continue
		}
		if parsed <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost))
	}
	if c.Collector.HistoryCapacity < 1 {
		errs = append(errs, fmt.Errorf("collector.history_capacity must be at least 1, got %d", c.Collector.HistoryCapacity))
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	return errors.Join(errs...)
}

// duration parses a field already checked by Validate.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func (c CollectorConfig) IntervalDuration() time.Duration     { return duration(c.Interval) }
func (c CollectorConfig) ErrorBackoffDuration() time.Duration { return duration(c.ErrorBackoff) }
func (c CollectorConfig) CPUWindowDuration() time.Duration    { return duration(c.CPUWindow) }

func (a AuthConfig) SessionTTLDuration() time.Duration      { return duration(a.SessionTTL) }
func (a AuthConfig) SweepIntervalDuration() time.Duration   { return duration(a.SweepInterval) }
func (a AuthConfig) StreamTicketTTLDuration() time.Duration { return duration(a.StreamTicketTTL) }
