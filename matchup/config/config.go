// Package config loads the matchup client configuration from a YAML file
// with MATCHUP_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/gridiron-odds/matchup/protocol"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MATCHUP_"

// Config is the complete application configuration.
type Config struct {
	LogLevel  string        `yaml:"log_level"`
	TeamsFile string        `yaml:"teams_file"`
	Backend   BackendConfig `yaml:"backend"`
	Server    ServerConfig  `yaml:"server"`
	History   HistoryConfig `yaml:"history"`
}

// BackendConfig describes the simulation backend connection.
type BackendConfig struct {
	URL               string          `yaml:"url"`
	HeartbeatInterval time.Duration   `yaml:"heartbeat_interval"`
	HandshakeTimeout  time.Duration   `yaml:"handshake_timeout"`
	WriteWait         time.Duration   `yaml:"write_wait"`
	Reconnect         ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig enables backoff redialing. Off by default.
type ReconnectConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Min         time.Duration `yaml:"min"`
	Max         time.Duration `yaml:"max"`
	Factor      float64       `yaml:"factor"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// ServerConfig covers the HTTP surface.
type ServerConfig struct {
	Port        int           `yaml:"port"`
	PageTTL     time.Duration `yaml:"page_ttl"`
	NgrokDomain string        `yaml:"ngrok_domain"`
}

// HistoryConfig holds the history view defaults.
type HistoryConfig struct {
	DefaultScope  string `yaml:"default_scope"`
	DefaultSeason int    `yaml:"default_season"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Backend: BackendConfig{
			URL:               "ws://localhost:9000/",
			HeartbeatInterval: 5 * time.Minute,
			HandshakeTimeout:  10 * time.Second,
			WriteWait:         10 * time.Second,
			Reconnect: ReconnectConfig{
				Min:    500 * time.Millisecond,
				Max:    30 * time.Second,
				Factor: 2,
			},
		},
		Server: ServerConfig{
			Port:    8080,
			PageTTL: 24 * time.Hour,
		},
		History: HistoryConfig{
			DefaultScope:  string(protocol.ScopeAll),
			DefaultSeason: 2023,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes YAML over the defaults without environment overrides or
// validation.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config from YAML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MATCHUP_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	var errs []error
	duration := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	if v, ok := get("BACKEND_URL"); ok {
		c.Backend.URL = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("TEAMS_FILE"); ok {
		c.TeamsFile = v
	}
	if v, ok := get("NGROK_DOMAIN"); ok {
		c.Server.NgrokDomain = v
	}
	if v, ok := get("RECONNECT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRECONNECT: %w", EnvPrefix, err))
		} else {
			c.Backend.Reconnect.Enabled = b
		}
	}
	duration("HEARTBEAT_INTERVAL", &c.Backend.HeartbeatInterval)
	duration("PAGE_TTL", &c.Server.PageTTL)
	integer("RECONNECT_MAX_ATTEMPTS", &c.Backend.Reconnect.MaxAttempts)
	integer("PORT", &c.Server.Port)
	integer("DEFAULT_SEASON", &c.History.DefaultSeason)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Backend.URL)
	switch {
	case c.Backend.URL == "":
		errs = append(errs, errors.New("backend url cannot be empty"))
	case err != nil:
		errs = append(errs, fmt.Errorf("backend url: %w", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("backend url must use ws or wss, got %q", u.Scheme))
	}

	if c.Backend.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("heartbeat interval must be greater than 0"))
	}
	if r := c.Backend.Reconnect; r.Enabled {
		if r.Min <= 0 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("reconnect delays must satisfy 0 < min <= max, got %s..%s", r.Min, r.Max))
		}
		if r.MaxAttempts < 0 {
			errs = append(errs, errors.New("reconnect max attempts cannot be negative"))
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port number: %d", c.Server.Port))
	}
	if c.Server.PageTTL < 0 {
		errs = append(errs, errors.New("page ttl cannot be negative"))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}

	if c.History.DefaultSeason < 1970 {
		errs = append(errs, fmt.Errorf("default season %d is before 1970", c.History.DefaultSeason))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
