package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record is a user document as stored in a proofing service's private
// database. Keys are attribute names; values are plain Go values once the
// record has passed through NewRecord: map[string]any, []any, string, bool,
// numbers, time.Time and primitive.ObjectID.
//
// Records are read-only to consumers. Anything that needs to rewrite a record
// works on a Clone.
type Record map[string]any

// NewRecord builds a Record from a decoded document, replacing driver
// container types (bson.D, bson.M, bson.A, primitive.DateTime) with plain
// maps, slices and times so that downstream code sees one representation
// regardless of the backend that produced it.
func NewRecord(doc map[string]any) Record {
	r := make(Record, len(doc))
	for k, v := range doc {
		r[k] = Normalize(v)
	}
	return r
}

// Get returns the value stored under attr and whether the key is present at
// all. A present key may still hold an empty value.
func (r Record) Get(attr string) (any, bool) {
	v, ok := r[attr]
	return v, ok
}

// Keys returns the attribute names of the record in no particular order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	return keys
}

// Clone returns a shallow copy of r. Nested values are shared.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Normalize converts a decoded value into its plain Go representation.
func Normalize(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = Normalize(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = Normalize(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = Normalize(e)
		}
		return m
	case primitive.A:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = Normalize(e)
		}
		return s
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = Normalize(e)
		}
		return s
	case []string:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = e
		}
		return s
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Null, primitive.Undefined:
		return nil
	}
	return v
}
