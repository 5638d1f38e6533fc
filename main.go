// Command amp computes the attribute patches that the proofing services'
// private user databases contribute to the central user record.
//
//	amp contexts                         list the proofing contexts and their stores
//	amp diff <context> <user-id>         print the patch for one user
//	amp put <context> <user-id> <file>   store a user document (tests and local setups)
//
// Configuration is read from a TOML file (--config) and AMP_* environment
// variables; MONGO_URI is honoured as the shared store URI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Skryldev/proofing-amp/config"
	"github.com/Skryldev/proofing-amp/db"
	"github.com/Skryldev/proofing-amp/metrics"
	"github.com/Skryldev/proofing-amp/proofing"
	"github.com/Skryldev/proofing-amp/repo"
	"github.com/Skryldev/proofing-amp/tracing"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "amp",
	Short: "Proofing attribute fetcher for the eduID attribute manager",
	Long: `amp reads a user from the private database of one proofing context,
filters it through the context's attribute whitelists and prints the
$set/$unset patch the attribute manager applies to the central user.

Contexts: oidc_proofing, letter_proofing, lookup_mobile_proofing,
email_proofing, phone_proofing, personal_data, security, orcid, eidas.

Examples:
  amp contexts
  amp diff personal_data 5b1e3cbe0e8d9a0c5a2b3c4d
  MONGO_URI=mongodb://localhost:27017 amp diff security 5b1e3cbe0e8d9a0c5a2b3c4d`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath, proofing.ContextNames()...)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		if err := cfg.Validate(proofing.ContextNames()...); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger = newLogger(cfg.Log)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format: json, text")

	rootCmd.AddCommand(contextsCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(putCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Wiring
// ─────────────────────────────────────────────────────────────────────────────

func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(lc.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// newConnector returns a Connector whose SQL stores log, time and trace
// every statement.
func newConnector(m *metrics.Metrics, tracer *tracing.Tracer) *repo.Connector {
	dc := cfg.DB
	return repo.NewConnector(repo.ConnectorConfig{
		SQL: db.Config{
			MaxOpenConns:    dc.MaxOpenConns,
			MaxIdleConns:    dc.MaxIdleConns,
			ConnMaxLifetime: dc.ConnMaxLifetime,
			DefaultTimeout:  dc.DefaultTimeout,
			Hooks: []db.Hook{
				db.NewLogHook(db.LogHookConfig{
					Logger:             logger,
					SlowQueryThreshold: dc.SlowQueryThreshold,
				}),
				db.NewMetricsHook(m),
				db.NewTracingHook(tracer),
			},
		},
		Retry: db.RetryConfig{
			MaxAttempts: dc.ConnectRetries + 1,
			Delay:       dc.RetryDelay,
		},
		ConnectTimeout: dc.ConnectTimeout,
		Logger:         logger,
	})
}

// openContext registers the single context name over a fresh Connector.
// The caller closes the Connector.
func openContext(ctx context.Context, name string, m *metrics.Metrics, tracer *tracing.Tracer) (*proofing.Registry, *repo.Connector, error) {
	cc := cfg.Context(name)
	if cc.Disabled {
		return nil, nil, fmt.Errorf("context %q is disabled in the configuration", name)
	}
	if cc.URI == "" {
		return nil, nil, fmt.Errorf("context %q has no storage uri; set mongo_uri or contexts.%s.uri", name, name)
	}

	conn := newConnector(m, tracer)
	reg := proofing.NewRegistry()
	if _, err := proofing.InitContext(ctx, reg, conn, name, cc); err != nil {
		_ = conn.Close(ctx)
		return nil, nil, err
	}
	return reg, conn, nil
}

func closeConnector(ctx context.Context, conn *repo.Connector) {
	if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
		logger.WarnContext(ctx, "amp: closing stores failed", slog.Any("error", err))
	}
}

var (
	metricsOnce sync.Once
	ampMetrics  *metrics.Metrics
)

// newMetrics registers the collectors with the default registry once per
// process. amp exits after a single command and exposes nothing itself; an
// attribute manager embedding the fetcher serves prometheus.DefaultGatherer
// from its own metrics endpoint.
func newMetrics() *metrics.Metrics {
	metricsOnce.Do(func() { ampMetrics = metrics.New(prometheus.DefaultRegisterer) })
	return ampMetrics
}
