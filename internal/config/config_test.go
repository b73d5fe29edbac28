package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	assert.Equal(t, 120, cfg.Simulators.Gmail.RateLimit.PerMinute)
	assert.Equal(t, 10000, cfg.Simulators.Gmail.RateLimit.PerDay)
	assert.Equal(t, 120, cfg.Simulators.Slack.RateLimit.PerMinute)

	assert.Equal(t, "T123456", cfg.Workspace.TeamID)
	assert.Equal(t, "Test Workspace", cfg.Workspace.TeamName)
	assert.Equal(t, "U123456", cfg.Workspace.BotUserID)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WIRESIM_LISTEN", ":8123")
	t.Setenv("WIRESIM_METRICS_ENABLED", "false")
	t.Setenv("WIRESIM_LOG_LEVEL", "debug")
	t.Setenv("WIRESIM_LOG_FORMAT", "json")
	t.Setenv("WIRESIM_GMAIL_RATE_PER_MINUTE", "7")
	t.Setenv("WIRESIM_TEAM_ID", "T999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8123", cfg.Server.Listen)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 7, cfg.Simulators.Gmail.RateLimit.PerMinute)
	assert.Equal(t, "T999", cfg.Workspace.TeamID)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  listen: ":7000"
logging:
  format: json
simulators:
  gmail:
    rate_limit:
      per_minute: 30
      per_day: 500
workspace:
  team_id: TFILE
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Listen)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 30, cfg.Simulators.Gmail.RateLimit.PerMinute)
	assert.Equal(t, 500, cfg.Simulators.Gmail.RateLimit.PerDay)
	assert.Equal(t, "TFILE", cfg.Workspace.TeamID)

	// File values sit on top of defaults, not in place of them.
	assert.Equal(t, 120, cfg.Simulators.Slack.RateLimit.PerMinute)
	assert.Equal(t, "Test Workspace", cfg.Workspace.TeamName)
}

func TestLoadFromFileEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen: \":7000\"\n"), 0o644))

	t.Setenv("WIRESIM_LISTEN", ":8000")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Listen)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty listen",
			mutate:  func(c *Config) { c.Server.Listen = "" },
			wantErr: "listen address",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "log format",
		},
		{
			name:    "zero gmail rate",
			mutate:  func(c *Config) { c.Simulators.Gmail.RateLimit.PerMinute = 0 },
			wantErr: "gmail rate limit",
		},
		{
			name:    "zero slack rate",
			mutate:  func(c *Config) { c.Simulators.Slack.RateLimit.PerMinute = 0 },
			wantErr: "slack rate limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
