package models

import (
	"slices"

	"go.mongodb.org/mongo-driver/bson"
)

// Attribute is one name/value pair of a patch.
type Attribute struct {
	Name  string
	Value any
}

// Patch is the update the attribute manager applies to the central user
// record. Set and Unset follow the declaration order of the set whitelist
// that produced them and never share a name.
type Patch struct {
	Set   []Attribute
	Unset []string
}

// IsEmpty reports whether the patch requests no change at all.
func (p Patch) IsEmpty() bool { return len(p.Set) == 0 && len(p.Unset) == 0 }

// SetMap returns the attributes to overwrite keyed by name.
func (p Patch) SetMap() map[string]any {
	m := make(map[string]any, len(p.Set))
	for _, a := range p.Set {
		m[a.Name] = a.Value
	}
	return m
}

// UnsetMap returns the attributes to remove, each mapped to nil.
func (p Patch) UnsetMap() map[string]any {
	m := make(map[string]any, len(p.Unset))
	for _, name := range p.Unset {
		m[name] = nil
	}
	return m
}

// UpdateDocument renders the patch as a MongoDB update document. $set and
// $unset are only present when they carry at least one attribute; an empty
// patch renders as an empty document. Nested maps become documents with
// sorted keys.
func (p Patch) UpdateDocument() bson.D {
	doc := bson.D{}
	if len(p.Set) > 0 {
		set := make(bson.D, 0, len(p.Set))
		for _, a := range p.Set {
			set = append(set, bson.E{Key: a.Name, Value: ordered(a.Value)})
		}
		doc = append(doc, bson.E{Key: "$set", Value: set})
	}
	if len(p.Unset) > 0 {
		unset := make(bson.D, 0, len(p.Unset))
		for _, name := range p.Unset {
			unset = append(unset, bson.E{Key: name, Value: nil})
		}
		doc = append(doc, bson.E{Key: "$unset", Value: unset})
	}
	return doc
}

// MarshalJSON encodes UpdateDocument as relaxed extended JSON, keeping the
// whitelist order of the attributes.
func (p Patch) MarshalJSON() ([]byte, error) {
	return bson.MarshalExtJSON(p.UpdateDocument(), false, false)
}

func ordered(v any) any {
	switch t := v.(type) {
	case bson.M:
		return ordered(map[string]any(t))
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		d := make(bson.D, 0, len(t))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: ordered(t[k])})
		}
		return d
	case []any:
		a := make(bson.A, len(t))
		for i, e := range t {
			a[i] = ordered(e)
		}
		return a
	}
	return v
}
