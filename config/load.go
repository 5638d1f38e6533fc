package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AMP_LOG_LEVEL.
const EnvPrefix = "AMP"

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mongo_uri", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.default_timeout", "5s")
	v.SetDefault("db.slow_query_threshold", "200ms")
	v.SetDefault("db.connect_timeout", "10s")
	v.SetDefault("db.connect_retries", 3)
	v.SetDefault("db.retry_delay", "500ms")
}

// contextKeys are the per-context settings that can be set from the
// environment as AMP_CONTEXTS_<NAME>_<KEY>.
var contextKeys = []string{"uri", "cutover", "database", "collection", "disabled"}

// New returns a viper instance with defaults and environment binding. The
// settings of each named context are bound as well; viper cannot discover
// map entries from the environment on its own.
func New(contexts ...string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The attribute manager historically exported MONGO_URI.
	_ = v.BindEnv("mongo_uri", EnvPrefix+"_MONGO_URI", "MONGO_URI")
	BindContextEnv(v, contexts...)
	SetDefaults(v)
	return v
}

// BindContextEnv binds contexts.<name>.<key> to AMP_CONTEXTS_<NAME>_<KEY>
// for every name.
func BindContextEnv(v *viper.Viper, names ...string) {
	for _, name := range names {
		for _, key := range contextKeys {
			env := EnvPrefix + "_CONTEXTS_" + strings.ToUpper(name) + "_" + strings.ToUpper(key)
			_ = v.BindEnv("contexts."+name+"."+key, env)
		}
	}
}

// Load reads path (TOML) on top of the defaults and environment. An empty
// path loads defaults and environment only. contexts names the proofing
// contexts whose settings may come from the environment.
func Load(path string, contexts ...string) (*Config, error) {
	v := New(contexts...)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals configuration from a prepared viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]Context)
	}
	return &cfg, nil
}

// Validate checks value ranges and cutover dates. When known is non-empty,
// context sections with other names are rejected.
func (c *Config) Validate(known ...string) error {
	var errs []error

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	if c.DB.MaxOpenConns < 0 {
		errs = append(errs, fmt.Errorf("db.max_open_conns must be >= 0, got %d", c.DB.MaxOpenConns))
	}
	if c.DB.MaxIdleConns < 0 {
		errs = append(errs, fmt.Errorf("db.max_idle_conns must be >= 0, got %d", c.DB.MaxIdleConns))
	}
	if c.DB.ConnectRetries < 0 {
		errs = append(errs, fmt.Errorf("db.connect_retries must be >= 0, got %d", c.DB.ConnectRetries))
	}

	names := make(map[string]bool, len(known))
	for _, n := range known {
		names[n] = true
	}
	for name, ctx := range c.Contexts {
		if len(known) > 0 && !names[name] {
			errs = append(errs, fmt.Errorf("contexts.%s: unknown proofing context", name))
		}
		if _, _, err := ctx.CutoverTime(); err != nil {
			errs = append(errs, fmt.Errorf("contexts.%s.cutover must be YYYY-MM-DD, got %q", name, ctx.Cutover))
		}
	}

	return errors.Join(errs...)
}
