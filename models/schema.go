package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownField is matched (via errors.Is) by every *UnknownFieldError.
var ErrUnknownField = errors.New("models: user document has unknown data")

// UnknownFieldError is returned when a stored document carries attributes
// its schema does not declare. It is a data-integrity fault in whatever wrote
// the document and is never silently dropped.
type UnknownFieldError struct {
	// Schema is the name of the schema the document was checked against.
	Schema string
	// Fields holds the undeclared attribute names, sorted.
	Fields []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s: schema %q: %s", ErrUnknownField, e.Schema, strings.Join(e.Fields, ", "))
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }

// Schema is the set of attribute names a user document format declares.
// A Schema is immutable once built.
type Schema struct {
	name   string
	fields map[string]struct{}
}

// NewSchema declares a document format.
func NewSchema(name string, fields ...string) *Schema {
	s := &Schema{name: name, fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		s.fields[f] = struct{}{}
	}
	return s
}

// Extend returns a new schema holding the fields of s plus fields.
func (s *Schema) Extend(name string, fields ...string) *Schema {
	return NewSchema(name, append(s.Fields(), fields...)...)
}

// Name returns the schema name used in error messages.
func (s *Schema) Name() string { return s.name }

// Has reports whether field is declared.
func (s *Schema) Has(field string) bool {
	_, ok := s.fields[field]
	return ok
}

// Fields returns the declared field names, sorted.
func (s *Schema) Fields() []string {
	out := make([]string, 0, len(s.fields))
	for f := range s.fields {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Check fails with *UnknownFieldError when r holds a key the schema does not
// declare. It never modifies r.
func (s *Schema) Check(r Record) error {
	var unknown []string
	for k := range r {
		if !s.Has(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return &UnknownFieldError{Schema: s.name, Fields: unknown}
}

// UserSchema is the central user document format shared by every private
// user database. Legacy names (sn, mobile, norEduPersonNIN) are still
// declared because older documents carry them.
var UserSchema = NewSchema("user",
	"_id",
	"eduPersonPrincipalName",
	"givenName",
	"surname",
	"sn",
	"displayName",
	"preferredLanguage",
	"mail",
	"mailAliases",
	"mobile",
	"phone",
	"passwords",
	"norEduPersonNIN",
	"nins",
	"eduPersonEntitlement",
	"entitlements",
	"subject",
	"tou",
	"terminated",
	"orcid",
	"locked_identity",
	"modified_ts",
)

// ProofingUserSchema is the format used by the proofing applications. It adds
// the letter proofing audit trail to UserSchema.
var ProofingUserSchema = UserSchema.Extend("proofing_user", "letter_proofing_data")
