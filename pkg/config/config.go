// Package config provides the unified configuration system for Hearth.
// Configuration is loaded from a YAML file via viper with HEARTH_-prefixed
// environment variable overrides, and validated before use.
//
// The configuration is organized into logical sections:
//   - Logging: level, encoding, output paths
//   - Database: driver, connection settings, pool sizing
//   - Connectors: one entry per upstream source (priority, credentials, timeouts)
//   - Router: primary source selection
//   - Sync: locations, interval, deduplication thresholds
//   - Jobs: history retention
package config

import (
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hearthdata/hearth/pkg/errors"
)

// Config is the root configuration structure for the hearth process.
type Config struct {
	Logging    LoggingConfig     `mapstructure:"logging"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Connectors []ConnectorConfig `mapstructure:"connectors"`
	Router     RouterConfig      `mapstructure:"router"`
	Sync       SyncConfig        `mapstructure:"sync"`
	Jobs       JobsConfig        `mapstructure:"jobs"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"` // json or console
	Development bool     `mapstructure:"development"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// DatabaseConfig controls the property store connection.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ConnectorConfig configures one upstream source connector instance.
type ConnectorConfig struct {
	// Name identifies the connector instance (e.g. "zillow")
	Name string `mapstructure:"name"`
	// Type selects the registered connector factory
	Type string `mapstructure:"type"`
	// Priority ranks the connector for failover ordering; lower is tried first
	Priority int `mapstructure:"priority"`
	// Enabled excludes the connector from routing when false
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the provider API endpoint
	BaseURL string `mapstructure:"base_url"`
	// APIKey authenticates against the provider; empty means unauthenticated
	APIKey string `mapstructure:"api_key"`
	// RequestTimeout bounds each HTTP call (default 30s)
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// RetryAttempts sets per-call retries for transient failures
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// RateLimitPerSec limits calls per second (0 = unlimited)
	RateLimitPerSec int `mapstructure:"rate_limit_per_sec"`
}

// RouterConfig configures failover routing across connectors.
type RouterConfig struct {
	// Primary names the connector tried first; when absent or disabled the
	// router falls back to the lexicographically-first enabled connector.
	Primary string `mapstructure:"primary"`
}

// SyncConfig configures the periodic property sync job.
type SyncConfig struct {
	// Locations lists the location strings searched each cycle
	Locations []string `mapstructure:"locations"`
	// Interval between sync cycles
	Interval time.Duration `mapstructure:"interval"`
	// FuzzyThreshold is the 0-100 address similarity ratio treated as duplicate
	FuzzyThreshold int `mapstructure:"fuzzy_threshold"`
	// SearchLimit caps records requested per source per location
	SearchLimit int `mapstructure:"search_limit"`
}

// JobsConfig controls job history retention.
type JobsConfig struct {
	// HistoryLimit caps the completed-job history
	HistoryLimit int `mapstructure:"history_limit"`
}

// Default returns a Config populated with production-ready defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "hearth.db",
			MaxIdleConns:    5,
			MaxOpenConns:    20,
			ConnMaxLifetime: time.Hour,
		},
		Sync: SyncConfig{
			Interval:       15 * time.Minute,
			FuzzyThreshold: 90,
			SearchLimit:    100,
		},
		Jobs: JobsConfig{
			HistoryLimit: 500,
		},
	}
}

// Load reads a configuration file, applies environment overrides, and
// validates the result. Environment variables use the HEARTH_ prefix with
// underscores for nesting (e.g. HEARTH_DATABASE_DSN).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("HEARTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and fills per-connector defaults.
// It should be called after loading configuration to catch errors early.
func (c *Config) Validate() error {
	if len(c.Connectors) == 0 {
		return errors.New(errors.ErrorTypeConfig, "at least one connector must be configured")
	}

	seen := make(map[string]bool, len(c.Connectors))
	for i := range c.Connectors {
		cc := &c.Connectors[i]
		if cc.Name == "" {
			return errors.New(errors.ErrorTypeConfig, "connector name is required")
		}
		if seen[cc.Name] {
			return errors.New(errors.ErrorTypeConfig, "duplicate connector name: "+cc.Name)
		}
		seen[cc.Name] = true
		if cc.Type == "" {
			cc.Type = cc.Name
		}
		if cc.RequestTimeout <= 0 {
			cc.RequestTimeout = 30 * time.Second
		}
		if cc.RetryAttempts < 0 {
			return errors.New(errors.ErrorTypeConfig, "retry_attempts cannot be negative")
		}
		if cc.RetryDelay <= 0 {
			cc.RetryDelay = time.Second
		}
	}

	if c.Sync.FuzzyThreshold < 0 || c.Sync.FuzzyThreshold > 100 {
		return errors.New(errors.ErrorTypeConfig, "fuzzy_threshold must be between 0 and 100")
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = 15 * time.Minute
	}
	if c.Jobs.HistoryLimit < 0 {
		return errors.New(errors.ErrorTypeConfig, "history_limit cannot be negative")
	}

	return nil
}

// OrderedConnectors returns the connectors sorted by priority rank, lowest
// first, with name breaking ties. The failover router registers sources in
// this order, so fallback attempts follow priority regardless of how the
// config file lists them.
func (c *Config) OrderedConnectors() []*ConnectorConfig {
	out := make([]*ConnectorConfig, len(c.Connectors))
	for i := range c.Connectors {
		out[i] = &c.Connectors[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Connector returns the configuration for a named connector, or nil.
func (c *Config) Connector(name string) *ConnectorConfig {
	for i := range c.Connectors {
		if c.Connectors[i].Name == name {
			return &c.Connectors[i]
		}
	}
	return nil
}

// Authenticated reports whether the connector has credentials configured.
func (cc *ConnectorConfig) Authenticated() bool {
	return cc.APIKey != ""
}
