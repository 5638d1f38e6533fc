package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Upgrade rewrites one legacy attribute layout into the current document
// format. Apply receives a private copy of the record and may modify its
// top-level keys, but must copy nested values before changing them.
type Upgrade struct {
	Name  string
	Apply func(Record)
}

// LegacyUpgrades lists every known legacy-to-current rewrite, oldest first.
var LegacyUpgrades = []Upgrade{
	{Name: "norEduPersonNIN->nins", Apply: upgradeNINs},
	{Name: "sn->surname", Apply: upgradeSurname},
	{Name: "mobile->phone", Apply: upgradeMobile},
	{Name: "passwords.id->credential_id", Apply: upgradePasswordIDs},
}

// UpgradeRecord applies upgrades to a copy of r and returns the copy. The
// rewrites are idempotent: upgrading an already current record returns an
// equal record.
func UpgradeRecord(r Record, upgrades []Upgrade) Record {
	out := r.Clone()
	for _, u := range upgrades {
		u.Apply(out)
	}
	return out
}

// upgradeNINs turns the old list of national identity numbers into verified
// nin entries. Every legacy number was verified, and the first one was the
// primary.
func upgradeNINs(r Record) {
	legacy, ok := r["norEduPersonNIN"]
	if !ok {
		return
	}
	delete(r, "norEduPersonNIN")
	if Truthy(r["nins"]) {
		return
	}

	numbers := stringList(legacy)
	if len(numbers) == 0 {
		return
	}
	nins := make([]any, 0, len(numbers))
	for i, n := range numbers {
		nins = append(nins, map[string]any{
			"number":   n,
			"verified": true,
			"primary":  i == 0,
		})
	}
	r["nins"] = nins
}

func upgradeSurname(r Record) {
	sn, ok := r["sn"]
	if !ok {
		return
	}
	delete(r, "sn")
	if !Truthy(r["surname"]) && Truthy(sn) {
		r["surname"] = sn
	}
}

func upgradeMobile(r Record) {
	legacy, ok := r["mobile"]
	if !ok {
		return
	}
	delete(r, "mobile")
	if Truthy(r["phone"]) {
		return
	}

	items, _ := legacy.([]any)
	phones := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		phones = append(phones, map[string]any{
			"number":   m["mobile"],
			"verified": boolOr(m["verified"], false),
			"primary":  boolOr(m["primary"], false),
		})
	}
	if len(phones) > 0 {
		r["phone"] = phones
	}
}

func upgradePasswordIDs(r Record) {
	items, ok := r["passwords"].([]any)
	if !ok {
		return
	}
	out := make([]any, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			out[i] = item
			continue
		}
		id, hasID := m["id"]
		if _, hasCred := m["credential_id"]; !hasID || hasCred {
			out[i] = item
			continue
		}
		c := make(map[string]any, len(m))
		for k, v := range m {
			if k != "id" {
				c[k] = v
			}
		}
		c["credential_id"] = idString(id)
		out[i] = c
	}
	r["passwords"] = out
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func boolOr(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

func idString(v any) string {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case string:
		return t
	}
	return fmt.Sprint(v)
}
