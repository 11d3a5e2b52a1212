package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matchup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.Backend.HeartbeatInterval)
	assert.False(t, cfg.Backend.Reconnect.Enabled)
	assert.Equal(t, "ALL", cfg.History.DefaultScope)
	assert.Equal(t, 2023, cfg.History.DefaultSeason)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, `
log_level: debug
backend:
  url: wss://backend.example/prod/
  heartbeat_interval: 30s
  reconnect:
    enabled: true
    min: 1s
    max: 10s
    max_attempts: 5
server:
  port: 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "wss://backend.example/prod/", cfg.Backend.URL)
	assert.Equal(t, 30*time.Second, cfg.Backend.HeartbeatInterval)
	assert.True(t, cfg.Backend.Reconnect.Enabled)
	assert.Equal(t, time.Second, cfg.Backend.Reconnect.Min)
	assert.Equal(t, 5, cfg.Backend.Reconnect.MaxAttempts)
	assert.Equal(t, 9090, cfg.Server.Port)
	// untouched fields keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Backend.WriteWait)
	assert.Equal(t, 2023, cfg.History.DefaultSeason)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "backend: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "backend:\n  url: http://wrong.example\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"MATCHUP_BACKEND_URL":            "wss://env.example/",
		"MATCHUP_HEARTBEAT_INTERVAL":     "1m",
		"MATCHUP_RECONNECT":              "true",
		"MATCHUP_RECONNECT_MAX_ATTEMPTS": "3",
		"MATCHUP_PORT":                   "8181",
		"MATCHUP_LOG_LEVEL":              "warn",
		"MATCHUP_TEAMS_FILE":             "/tmp/teams.json",
		"MATCHUP_PAGE_TTL":               "2h",
		"MATCHUP_DEFAULT_SEASON":         "2020",
		"MATCHUP_NGROK_DOMAIN":           "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "wss://env.example/", cfg.Backend.URL)
	assert.Equal(t, time.Minute, cfg.Backend.HeartbeatInterval)
	assert.True(t, cfg.Backend.Reconnect.Enabled)
	assert.Equal(t, 3, cfg.Backend.Reconnect.MaxAttempts)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/tmp/teams.json", cfg.TeamsFile)
	assert.Equal(t, 2*time.Hour, cfg.Server.PageTTL)
	assert.Equal(t, 2020, cfg.History.DefaultSeason)
	assert.Empty(t, cfg.Server.NgrokDomain)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"MATCHUP_HEARTBEAT_INTERVAL": "often",
		"MATCHUP_PORT":               "eighty",
		"MATCHUP_RECONNECT":          "maybe",
	}))
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "MATCHUP_HEARTBEAT_INTERVAL")
	assert.Contains(t, err.Error(), "MATCHUP_PORT")
	assert.Contains(t, err.Error(), "MATCHUP_RECONNECT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty url", func(c *Config) { c.Backend.URL = "" }, "backend url cannot be empty"},
		{"http scheme", func(c *Config) { c.Backend.URL = "https://x" }, "ws or wss"},
		{"zero heartbeat", func(c *Config) { c.Backend.HeartbeatInterval = 0 }, "heartbeat"},
		{"bad reconnect window", func(c *Config) {
			c.Backend.Reconnect.Enabled = true
			c.Backend.Reconnect.Max = time.Millisecond
		}, "reconnect delays"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"season", func(c *Config) { c.History.DefaultSeason = 1950 }, "before 1970"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
