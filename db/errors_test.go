package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Skryldev/proofing-amp/db"
)

func TestDefaultErrorMapper(t *testing.T) {
	m := db.DefaultErrorMapper()
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"sql no rows", sql.ErrNoRows, db.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("load: %w", sql.ErrNoRows), db.ErrNotFound},
		{"mongo no documents", mongo.ErrNoDocuments, db.ErrNotFound},
		{"redis nil", redis.Nil, db.ErrNotFound},
		{"deadline", context.DeadlineExceeded, db.ErrTimeout},
		{"pq unique", &pq.Error{Code: "23505"}, db.ErrDuplicateKey},
		{"pq deadlock", &pq.Error{Code: "40P01"}, db.ErrDeadlock},
		{"pq cancel", &pq.Error{Code: "57014"}, db.ErrTimeout},
		{"pq connection", &pq.Error{Code: "08006"}, db.ErrConnectionFailed},
		{"mysql dup", &mysql.MySQLError{Number: 1062}, db.ErrDuplicateKey},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, db.ErrDeadlock},
		{"mysql gone", &mysql.MySQLError{Number: 2006}, db.ErrConnectionFailed},
		{"mongo dup", mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}, db.ErrDuplicateKey},
		{"sqlite unique", errors.New("UNIQUE constraint failed: proofing_data.id"), db.ErrDuplicateKey},
		{"sqlite locked", errors.New("database is locked"), db.ErrDeadlock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Map(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("Map(%v) = %v, want %v", tc.in, got, tc.want)
			}
			if !errors.Is(got, tc.in) && !errors.As(got, new(*db.DBError)) {
				t.Fatalf("cause lost: %v", got)
			}
		})
	}
}

func TestDefaultErrorMapper_Passthrough(t *testing.T) {
	m := db.DefaultErrorMapper()
	plain := errors.New("syntax error")
	if got := m.Map(plain); got != plain {
		t.Fatalf("unrecognised errors must pass through, got %v", got)
	}
	if m.Map(nil) != nil {
		t.Fatal("nil must map to nil")
	}

	already := &db.DBError{Sentinel: db.ErrNotFound, Cause: sql.ErrNoRows}
	if got := m.Map(already); got != already {
		t.Fatal("a DBError must not be wrapped twice")
	}
}

func TestDBError_Unwrap(t *testing.T) {
	cause := &pq.Error{Code: "23505", Message: "duplicate key value"}
	err := db.DefaultErrorMapper().Map(cause)

	var pqe *pq.Error
	if !errors.As(err, &pqe) {
		t.Fatalf("driver error must stay reachable, got %v", err)
	}
	if pqe.Code != "23505" {
		t.Fatalf("unexpected code %q", pqe.Code)
	}
}

func TestWrap_PostgresErrorsThroughSQLMock(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	d := db.Wrap(sqldb, db.Config{DriverName: "postgres"})
	defer d.Close()

	q := d.Rebind(`INSERT INTO eduid_security (id, document) VALUES (?, ?)`)
	if q != `INSERT INTO eduid_security (id, document) VALUES ($1, $2)` {
		t.Fatalf("postgres placeholders expected, got %q", q)
	}

	mock.ExpectExec(`INSERT INTO eduid_security`).
		WithArgs("u1", "{}").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectQuery(`SELECT document FROM eduid_security`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"document"}))

	if _, err := d.Exec(context.Background(), q, "u1", "{}"); !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	var doc string
	err = d.QueryRow(context.Background(), d.Rebind(`SELECT document FROM eduid_security WHERE id = ?`), "u2").Scan(&doc)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecTx_BeginFailureIsMapped(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	d := db.Wrap(sqldb, db.Config{DriverName: "mysql"})
	defer d.Close()

	mock.ExpectBegin().WillReturnError(&mysql.MySQLError{Number: 2003})

	err = d.ExecTx(context.Background(), func(*db.Tx) error { return nil })
	if !errors.Is(err, db.ErrConnectionFailed) {
		t.Fatalf("expected ErrConnectionFailed, got %v", err)
	}
}
