package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Skryldev/proofing-amp/db"
	"github.com/Skryldev/proofing-amp/models"
)

// SQLUserRepo keeps one context's documents in a table of
// (id, document, modified_ts). The document column holds extended JSON.
type SQLUserRepo struct {
	q      db.Querier
	table  string
	ns     Namespace
	schema *models.Schema
}

// NewSQLUserRepo returns a store over table ns.Database. q can be a *db.DB or
// a *db.Tx.
func NewSQLUserRepo(q db.Querier, ns Namespace, schema *models.Schema) (*SQLUserRepo, error) {
	if err := checkIdentifier("table", ns.Database); err != nil {
		return nil, err
	}
	return &SQLUserRepo{q: q, table: ns.Database, ns: ns, schema: schema}, nil
}

// EnsureTable creates the backing table if it does not exist yet. Production
// databases are provisioned by the migrations; this serves tests and local
// setups.
func (r *SQLUserRepo) EnsureTable(ctx context.Context) error {
	_, err := r.q.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id          VARCHAR(64) PRIMARY KEY,
		document    TEXT NOT NULL,
		modified_ts TIMESTAMP NULL
	)`, r.table))
	if err != nil {
		return fmt.Errorf("repo/sql: create table %s: %w", r.table, err)
	}
	return nil
}

// GetByID loads and validates the document stored under id.
func (r *SQLUserRepo) GetByID(ctx context.Context, id string) (models.Record, error) {
	query := r.q.Rebind(fmt.Sprintf(`SELECT document FROM %s WHERE id = ?`, r.table))

	var doc string
	if err := r.q.QueryRow(ctx, query, id).Scan(&doc); err != nil {
		if db.IsNotFound(err) {
			return nil, notFound(r.ns, id, err)
		}
		return nil, fmt.Errorf("repo/sql: get %q: %w", id, err)
	}

	rec, err := decodeDocument([]byte(doc))
	if err != nil {
		return nil, err
	}
	return validate(r.schema, rec)
}

// Save replaces the document stored under id. The delete and insert run in
// one transaction when the repo is backed by a *db.DB.
func (r *SQLUserRepo) Save(ctx context.Context, id string, rec models.Record) error {
	doc, err := encodeDocument(rec)
	if err != nil {
		return err
	}
	write := func(q db.Querier) error {
		if _, err := q.Exec(ctx, q.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.table)), id); err != nil {
			return err
		}
		_, err := q.Exec(ctx,
			q.Rebind(fmt.Sprintf(`INSERT INTO %s (id, document, modified_ts) VALUES (?, ?, ?)`, r.table)),
			id, string(doc), time.Now().UTC(),
		)
		return err
	}

	if d, ok := r.q.(*db.DB); ok {
		err = d.ExecTx(ctx, func(tx *db.Tx) error { return write(tx) })
	} else {
		err = write(r.q)
	}
	if err != nil {
		return fmt.Errorf("repo/sql: save %q: %w", id, err)
	}
	return nil
}

// Delete removes the document stored under id. Returns db.ErrNotFound if
// there was none.
func (r *SQLUserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.Exec(ctx, r.q.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.table)), id)
	if err != nil {
		return fmt.Errorf("repo/sql: delete %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(r.ns, id, nil)
	}
	return nil
}

var _ Store = (*SQLUserRepo)(nil)
