// Package repo reads user documents out of the private databases kept by the
// proofing services. One store serves one proofing context; the backend is
// chosen by the scheme of the context's connection URI.
package repo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/Skryldev/proofing-amp/db"
	"github.com/Skryldev/proofing-amp/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Interfaces
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository is the read side used by the attribute fetcher.
type UserRepository interface {
	// GetByID returns the stored document for id. It fails with an error
	// satisfying IsNotFound when there is none, and with
	// *models.UnknownFieldError when the document carries undeclared keys.
	GetByID(ctx context.Context, id string) (models.Record, error)
}

// UserWriter stores raw documents. It performs no schema validation; it is
// how fixtures and the owning service's data end up in a store.
type UserWriter interface {
	Save(ctx context.Context, id string, r models.Record) error
	Delete(ctx context.Context, id string) error
}

// Store is a UserRepository that can also be written to. Every backend in
// this package implements it.
type Store interface {
	UserRepository
	UserWriter
}

// Namespace locates one context's documents inside a backend. For MongoDB
// it is a database and collection. The SQL backend uses Database as the
// table name and the Redis backend uses it as the key prefix.
type Namespace struct {
	Database   string
	Collection string
}

func (n Namespace) String() string {
	if n.Collection == "" {
		return n.Database
	}
	return n.Database + "." + n.Collection
}

// ─────────────────────────────────────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────────────────────────────────────

// ErrUnsupportedScheme is returned by Connector.Open for URIs no backend
// understands.
var ErrUnsupportedScheme = errors.New("repo: unsupported connection scheme")

// IsNotFound reports whether err means the requested user has no document.
func IsNotFound(err error) bool { return db.IsNotFound(err) }

// IsUnknownField reports whether err is a schema violation.
func IsUnknownField(err error) bool { return errors.Is(err, models.ErrUnknownField) }

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdentifier(kind, name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("repo: invalid %s name %q", kind, name)
	}
	return nil
}

func notFound(ns Namespace, id string, cause error) error {
	return &db.DBError{
		Sentinel: db.ErrNotFound,
		Cause:    cause,
		Message:  fmt.Sprintf("user %q in %s", id, ns),
	}
}

// validate runs the strict schema check; a nil schema accepts everything.
func validate(schema *models.Schema, r models.Record) (models.Record, error) {
	if schema == nil {
		return r, nil
	}
	if err := schema.Check(r); err != nil {
		return nil, err
	}
	return r, nil
}
