// Package config loads the attribute-manager plugin configuration from a
// TOML file and AMP_* environment variables.
package config

import (
	"time"
)

// CutoverLayout is the date format of Context.Cutover.
const CutoverLayout = "2006-01-02"

// Config is the root configuration.
type Config struct {
	// MongoURI is the connection string shared by every context that does
	// not set its own. MONGO_URI is accepted as well as AMP_MONGO_URI.
	MongoURI string             `mapstructure:"mongo_uri"`
	Contexts map[string]Context `mapstructure:"contexts"`
	Log      LogConfig          `mapstructure:"log"`
	DB       DBConfig           `mapstructure:"db"`
}

// Context overrides the defaults of one proofing context.
type Context struct {
	// URI selects the backend by scheme; empty inherits Config.MongoURI.
	URI string `mapstructure:"uri"`
	// Cutover is the YYYY-MM-DD date (UTC midnight) from which a legacy
	// context upgrades old attribute formats.
	Cutover string `mapstructure:"cutover"`
	// Database and Collection override the context's default namespace.
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
	Disabled   bool   `mapstructure:"disabled"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// DBConfig tunes the store clients.
type DBConfig struct {
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	DefaultTimeout     time.Duration `mapstructure:"default_timeout"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ConnectRetries     int           `mapstructure:"connect_retries"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
}

// Context returns the settings for name with the shared URI filled in.
// Unconfigured contexts get the zero Context plus the shared URI.
func (c *Config) Context(name string) Context {
	ctx := c.Contexts[name]
	if ctx.URI == "" {
		ctx.URI = c.MongoURI
	}
	return ctx
}

// CutoverTime parses Cutover. ok is false when no cutover is configured.
func (c Context) CutoverTime() (t time.Time, ok bool, err error) {
	if c.Cutover == "" {
		return time.Time{}, false, nil
	}
	t, err = time.ParseInLocation(CutoverLayout, c.Cutover, time.UTC)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
