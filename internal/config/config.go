// ABOUTME: Configuration loading and parsing for the visioncount console
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete visioncount console configuration
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Identity IdentityConfig `yaml:"identity"`
	Polling  PollingConfig  `yaml:"polling"`
	LiveFeed LiveFeedConfig `yaml:"livefeed"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BackendConfig holds the counting backend's addresses
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	WSURL   string `yaml:"ws_url"`
}

// IdentityConfig holds the external identity provider configuration
type IdentityConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
	// JWTSecret enables local verification of access tokens. Optional;
	// when empty, tokens are accepted as issued by the provider.
	JWTSecret string `yaml:"jwt_secret"`
}

// PollingConfig holds task-status polling configuration
type PollingConfig struct {
	Interval time.Duration `yaml:"-"`

	// MaxAttempts bounds the number of poll ticks. Zero means unbounded,
	// matching the original dashboard behavior.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffFactor multiplies the interval after each tick. 1.0 keeps the
	// flat fixed-interval schedule.
	BackoffFactor float64 `yaml:"backoff_factor"`

	// Raw string value for YAML unmarshaling
	IntervalRaw string `yaml:"interval"`
}

// LiveFeedConfig holds live channel reconnect configuration
type LiveFeedConfig struct {
	ReconnectDelay time.Duration `yaml:"-"`

	// MaxRetries bounds consecutive failed reconnect attempts before the
	// channel gives up. Zero means retry forever.
	MaxRetries int `yaml:"max_retries"`

	// Raw string value for YAML unmarshaling
	ReconnectDelayRaw string `yaml:"reconnect_delay"`
}

// DatabaseConfig holds local analytics database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the corresponding fields are absent from the file.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultReconnectDelay = 3 * time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Polling.Interval < 0 {
		return fmt.Errorf("polling.interval must not be negative")
	}

	if c.Polling.BackoffFactor < 0 {
		return fmt.Errorf("polling.backoff_factor must not be negative")
	}

	if c.Polling.MaxAttempts < 0 {
		return fmt.Errorf("polling.max_attempts must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Polling.IntervalRaw != "" {
		cfg.Polling.Interval, err = time.ParseDuration(cfg.Polling.IntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing polling.interval %q: %w", cfg.Polling.IntervalRaw, err)
		}
	}

	if cfg.LiveFeed.ReconnectDelayRaw != "" {
		cfg.LiveFeed.ReconnectDelay, err = time.ParseDuration(cfg.LiveFeed.ReconnectDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing livefeed.reconnect_delay %q: %w", cfg.LiveFeed.ReconnectDelayRaw, err)
		}
	}

	return nil
}

// applyDefaults fills in the values the original dashboard hard-coded.
func applyDefaults(cfg *Config) {
	if cfg.Polling.Interval == 0 {
		cfg.Polling.Interval = DefaultPollInterval
	}
	if cfg.Polling.BackoffFactor == 0 {
		cfg.Polling.BackoffFactor = 1.0
	}
	if cfg.LiveFeed.ReconnectDelay == 0 {
		cfg.LiveFeed.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Backend.WSURL == "" {
		cfg.Backend.WSURL = deriveWSURL(cfg.Backend.BaseURL)
	}
}

// deriveWSURL converts an http(s) base URL into the matching ws(s) URL,
// the same derivation the browser dashboard used for its socket address.
func deriveWSURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
