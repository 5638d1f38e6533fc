// Package db is the SQL side of the private user databases: a small,
// SQL-first wrapper around database/sql with context-aware helpers, hook
// dispatch and one error vocabulary shared with the MongoDB and Redis
// backends. It is not an ORM; every statement is written out by the caller.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the options for opening and managing the connection pool.
type Config struct {
	// DSN is the driver-specific data-source name. OpenURL fills it in.
	DSN string

	// DriverName is "postgres", "mysql" or "sqlite3". OpenURL fills it in.
	DriverName string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// DefaultTimeout is applied when the caller's context has no deadline.
	// Zero means no default timeout.
	DefaultTimeout time.Duration

	// Hooks run around every statement. Nil entries are skipped.
	Hooks []Hook
}

// ─────────────────────────────────────────────────────────────────────────────
// DB
// ─────────────────────────────────────────────────────────────────────────────

// DB is a concurrency-safe wrapper around *sql.DB. It adds hook dispatch,
// placeholder rebinding, unified error mapping and transaction management.
type DB struct {
	sqldb  *sql.DB
	cfg    Config
	bind   BindStyle
	hooks  hookChain
	errMap ErrorMapper
}

// Open opens the database described by cfg and verifies connectivity with a
// ping. Callers close the DB on shutdown.
func Open(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("amp/db: DSN must not be empty")
	}
	if cfg.DriverName == "" {
		return nil, fmt.Errorf("amp/db: DriverName must not be empty")
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("amp/db: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, &DBError{Sentinel: ErrConnectionFailed, Cause: err, Message: "ping"}
	}

	return Wrap(sqldb, cfg), nil
}

// Wrap builds a DB around an already opened *sql.DB. cfg.DriverName selects
// the placeholder style; pool settings in cfg are ignored.
func Wrap(sqldb *sql.DB, cfg Config) *DB {
	return &DB{
		sqldb:  sqldb,
		cfg:    cfg,
		bind:   bindStyleFor(cfg.DriverName),
		hooks:  newHookChain(cfg.Hooks),
		errMap: DefaultErrorMapper(),
	}
}

// SetErrorMapper replaces the default error mapper.
func (d *DB) SetErrorMapper(m ErrorMapper) { d.errMap = m }

// Close closes all pooled connections. Safe to call more than once.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping verifies that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	return d.mapErr(d.sqldb.PingContext(ctx))
}

// Rebind rewrites "?" placeholders into the driver's style.
func (d *DB) Rebind(query string) string { return Rebind(d.bind, query) }

// Exec executes a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	res, err := d.sqldb.ExecContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// Query executes a query that returns rows. The caller must close the rows.
// The default timeout is not applied here because it would expire while the
// caller is still iterating.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	rows, err := d.sqldb.QueryContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	return rows, err
}

// QueryRow executes a query expected to return at most one row. Scan on the
// result returns ErrNotFound when nothing matched.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	ctx, cancel := d.withDefaultTimeout(ctx)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	raw := d.sqldb.QueryRowContext(ctx, query, args...)
	return &Row{
		raw:    raw,
		errMap: d.errMap,
		done: func(err error) {
			d.hooks.After(ctx, query, args, time.Since(start), err)
			cancel()
		},
	}
}

func (d *DB) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.DefaultTimeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.cfg.DefaultTimeout)
}

func (d *DB) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return d.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Row
// ─────────────────────────────────────────────────────────────────────────────

// Row wraps *sql.Row; Scan maps errors and completes the statement's hooks.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
	done   func(error)
}

// Scan copies the matched row into dest. ErrNotFound is returned when no row
// was found.
func (r *Row) Scan(dest ...any) error {
	err := r.errMap.Map(r.raw.Scan(dest...))
	if r.done != nil {
		r.done(err)
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// WithRetry
// ─────────────────────────────────────────────────────────────────────────────

// RetryConfig controls retry behaviour for transient errors.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	// RetryOn decides whether an error is worth another attempt. Nil retries
	// on ErrDeadlock and ErrTimeout.
	RetryOn func(error) bool
}

// WithRetry runs fn until it succeeds, returns an error RetryOn rejects, or
// MaxAttempts is reached. fn must be idempotent.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	retryOn := cfg.RetryOn
	if retryOn == nil {
		retryOn = func(err error) bool {
			return IsDeadlock(err) || IsTimeout(err)
		}
	}
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryOn(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("amp/db: all %d attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}
