package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sentinel errors
// ─────────────────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when no document or row matches the lookup.
	ErrNotFound = errors.New("amp/db: record not found")

	// ErrDuplicateKey is returned on unique constraint violations.
	ErrDuplicateKey = errors.New("amp/db: duplicate key")

	// ErrDeadlock is returned when the backend detects a deadlock or a lock
	// it could not acquire.
	ErrDeadlock = errors.New("amp/db: deadlock detected")

	// ErrTimeout is returned when a statement exceeds its deadline.
	ErrTimeout = errors.New("amp/db: query timeout")

	// ErrConnectionFailed is returned when the backend cannot be reached.
	ErrConnectionFailed = errors.New("amp/db: connection failed")
)

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsDuplicateKey(err error) bool { return errors.Is(err, ErrDuplicateKey) }
func IsDeadlock(err error) bool     { return errors.Is(err, ErrDeadlock) }
func IsTimeout(err error) bool      { return errors.Is(err, ErrTimeout) }

func IsConnectionFailed(err error) bool { return errors.Is(err, ErrConnectionFailed) }

// ─────────────────────────────────────────────────────────────────────────────
// DBError: sentinel plus the underlying driver error
// ─────────────────────────────────────────────────────────────────────────────

// DBError pairs a sentinel with the driver error it was mapped from, so that
// callers can test errors.Is(err, ErrNotFound) and still reach the cause.
type DBError struct {
	Sentinel error
	Cause    error
	Message  string
}

func (e *DBError) Error() string {
	msg := e.Sentinel.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (cause: %v)", msg, e.Cause)
	}
	return msg
}

func (e *DBError) Is(target error) bool { return errors.Is(e.Sentinel, target) }
func (e *DBError) Unwrap() error        { return e.Cause }

// ─────────────────────────────────────────────────────────────────────────────
// ErrorMapper
// ─────────────────────────────────────────────────────────────────────────────

// ErrorMapper translates backend errors into the sentinels above. Errors it
// does not recognise are returned unchanged.
type ErrorMapper interface {
	Map(err error) error
}

// ErrorMapperFunc adapts a function to ErrorMapper.
type ErrorMapperFunc func(error) error

func (f ErrorMapperFunc) Map(err error) error { return f(err) }

// DefaultErrorMapper handles database/sql, lib/pq, MySQL, SQLite, MongoDB and
// Redis errors.
func DefaultErrorMapper() ErrorMapper {
	return ErrorMapperFunc(defaultMap)
}

func defaultMap(err error) error {
	if err == nil {
		return nil
	}

	var dbe *DBError
	if errors.As(err, &dbe) {
		return err
	}

	switch {
	case errors.Is(err, sql.ErrNoRows),
		errors.Is(err, mongo.ErrNoDocuments),
		errors.Is(err, redis.Nil):
		return &DBError{Sentinel: ErrNotFound, Cause: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	}

	for _, m := range []func(error) error{mapPQError, mapMySQLError, mapMongoError, mapSQLiteError} {
		if mapped := m(err); mapped != nil {
			return mapped
		}
	}
	return err
}

// PostgreSQL SQLSTATE codes: https://www.postgresql.org/docs/current/errcodes-appendix.html
func mapPQError(err error) error {
	var pqe *pq.Error
	if !errors.As(err, &pqe) {
		return nil
	}
	switch code := string(pqe.Code); {
	case code == "23505":
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case code == "40P01", code == "55P03":
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	case code == "57014":
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	case strings.HasPrefix(code, "08"):
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}

func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return nil
	}
	switch me.Number {
	case 1062: // ER_DUP_ENTRY
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case 1213, 1205: // ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	case 3024: // ER_QUERY_TIMEOUT
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	case 1045, 2002, 2003, 2006, 2013:
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}

func mapMongoError(err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case mongo.IsTimeout(err):
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	case mongo.IsNetworkError(err):
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}

// mattn/go-sqlite3 needs cgo, so its error type is matched by message to keep
// this package buildable without it.
func mapSQLiteError(err error) error {
	s := err.Error()
	switch {
	case strings.Contains(s, "UNIQUE constraint failed"):
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case strings.Contains(s, "database is locked"):
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	}
	return nil
}
