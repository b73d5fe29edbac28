// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the simulator server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Simulators SimulatorsConfig `yaml:"simulators"`
	Workspace  WorkspaceConfig  `yaml:"workspace"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MetricsConfig holds the dedicated metrics server configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SimulatorsConfig holds per-simulator settings.
type SimulatorsConfig struct {
	Gmail SimulatorConfig `yaml:"gmail"`
	Slack SimulatorConfig `yaml:"slack"`
}

// SimulatorConfig holds settings for a single simulator.
type SimulatorConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds the request budget for one simulator.
// PerMinute governs the rolling window; PerDay is a coarse ceiling.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

// WorkspaceConfig holds the static identity the Slack simulator reports.
type WorkspaceConfig struct {
	TeamID    string `yaml:"team_id"`
	TeamName  string `yaml:"team_name"`
	BotUserID string `yaml:"bot_user_id"`
	URL       string `yaml:"url"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file, then applies
// environment-variable overrides on top.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	cfg.applyDefaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyEnvVars()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Server.Listen = ":9000"
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 15 * time.Second
	c.Server.IdleTimeout = 60 * time.Second
	c.Server.ShutdownTimeout = 30 * time.Second

	c.Metrics.Enabled = true
	c.Metrics.Listen = ":9090"

	c.Logging.Level = "info"
	c.Logging.Format = "text"

	// Budgets are deliberately generous: sequential test flows must never
	// trip the limiter.
	c.Simulators.Gmail.RateLimit = RateLimitConfig{PerMinute: 120, PerDay: 10000}
	c.Simulators.Slack.RateLimit = RateLimitConfig{PerMinute: 120, PerDay: 10000}

	c.Workspace.TeamID = "T123456"
	c.Workspace.TeamName = "Test Workspace"
	c.Workspace.BotUserID = "U123456"
	c.Workspace.URL = "https://test-workspace.slack.com/"
}

func (c *Config) applyEnvVars() {
	if v := os.Getenv("WIRESIM_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("WIRESIM_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("WIRESIM_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
	if v := os.Getenv("WIRESIM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("WIRESIM_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("WIRESIM_GMAIL_RATE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Simulators.Gmail.RateLimit.PerMinute = n
		}
	}
	if v := os.Getenv("WIRESIM_SLACK_RATE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Simulators.Slack.RateLimit.PerMinute = n
		}
	}
	if v := os.Getenv("WIRESIM_TEAM_ID"); v != "" {
		c.Workspace.TeamID = v
	}
	if v := os.Getenv("WIRESIM_BOT_USER_ID"); v != "" {
		c.Workspace.BotUserID = v
	}
}

func (c *Config) validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server listen address must not be empty")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q (want text or json)", c.Logging.Format)
	}
	if c.Simulators.Gmail.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("gmail rate limit per_minute must be positive")
	}
	if c.Simulators.Slack.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("slack rate limit per_minute must be positive")
	}
	return nil
}
