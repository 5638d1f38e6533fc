// Command migrate provisions the SQL private user databases of the proofing
// contexts. It accepts the same connection URLs as amp itself.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/Skryldev/proofing-amp/db"
)

func main() {
	dbURL := flag.String("database", envOr("AMP_DATABASE_URL", os.Getenv("DATABASE_URL")), "Store connection URL (postgres://, mysql://, sqlite://)")
	migrationsPath := flag.String("path", envOr("MIGRATIONS_PATH", "./migrations"), "Path to the migrations directory")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	if *dbURL == "" {
		fatalf("-database or AMP_DATABASE_URL is required")
	}

	target, err := migrateURL(*dbURL)
	if err != nil {
		fatalf("database url: %v", err)
	}

	m, err := migrate.New("file://"+*migrationsPath, target)
	if err != nil {
		fatalf("migration init failed: %v", err)
	}
	defer m.Close()

	m.Log = &migrateLogger{}

	command := args[0]
	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatalf("up failed: %v", err)
		}
		slog.Info("migrations: up completed")

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				fatalf("down: invalid steps argument %q", args[1])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatalf("down failed: %v", err)
		}
		slog.Info("migrations: down completed", "steps", steps)

	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			fatalf("version failed: %v", err)
		}
		fmt.Printf("version: %d  dirty: %v\n", v, dirty)

	case "force":
		if len(args) < 2 {
			fatalf("force: version argument required")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			fatalf("force: invalid version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			fatalf("force failed: %v", err)
		}
		slog.Info("migrations: forced", "version", v)

	default:
		usage()
		os.Exit(1)
	}
}

// ─────────────────────────────────────────────────────────────────────────────

// migrateURL converts an amp store URL into the form golang-migrate's
// database drivers expect.
func migrateURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	drv, err := db.LookupScheme(u.Scheme)
	if err != nil {
		return "", err
	}

	switch drv.Name() {
	case "mysql":
		// Migration files hold several statements each.
		q := u.Query()
		if q.Get("multiStatements") == "" {
			q.Set("multiStatements", "true")
		}
		u.RawQuery = q.Encode()
		dsn, err := drv.DSN(u)
		if err != nil {
			return "", err
		}
		return "mysql://" + dsn, nil
	case "sqlite3":
		dsn, err := drv.DSN(u)
		if err != nil {
			return "", err
		}
		return "sqlite3://" + dsn, nil
	}
	return drv.DSN(u)
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}
func (l *migrateLogger) Verbose() bool { return false }

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [-database URL] [-path DIR] <command> [args]

Commands:
  up           Apply all pending migrations
  down [N]     Rollback N migrations (default: 1)
  version      Print current migration version
  force <V>    Force set migration version (bypass dirty state)

Environment:
  AMP_DATABASE_URL  Store connection URL (DATABASE_URL is also read).
  MIGRATIONS_PATH   Path to migrations directory (default: ./migrations)`)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
