package proofing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Skryldev/proofing-amp/db"
	"github.com/Skryldev/proofing-amp/models"
	"github.com/Skryldev/proofing-amp/proofing"
	"github.com/Skryldev/proofing-amp/repo"
)

var (
	beforeCutover = time.Date(2017, time.June, 1, 12, 0, 0, 0, time.UTC)
	afterCutover  = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
)

// memStore is an in-memory repo.Store enforcing a schema the way the real
// backends do.
type memStore struct {
	mu     sync.Mutex
	schema *models.Schema
	docs   map[string]models.Record
	reads  int
}

func newMemStore(schema *models.Schema) *memStore {
	return &memStore{schema: schema, docs: make(map[string]models.Record)}
}

func (m *memStore) GetByID(_ context.Context, id string) (models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	r, ok := m.docs[id]
	if !ok {
		return nil, &db.DBError{Sentinel: db.ErrNotFound, Message: id}
	}
	if m.schema != nil {
		if err := m.schema.Check(r); err != nil {
			return nil, err
		}
	}
	return r.Clone(), nil
}

func (m *memStore) Save(_ context.Context, id string, r models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = models.NewRecord(r)
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

var _ repo.Store = (*memStore)(nil)

// memOpener hands out one memStore per namespace and records the calls.
type memOpener struct {
	stores map[repo.Namespace]*memStore
	uris   []string
}

func newMemOpener() *memOpener {
	return &memOpener{stores: make(map[repo.Namespace]*memStore)}
}

func (o *memOpener) Open(_ context.Context, uri string, ns repo.Namespace, schema *models.Schema) (repo.Store, error) {
	o.uris = append(o.uris, uri)
	s, ok := o.stores[ns]
	if !ok {
		s = newMemStore(schema)
		o.stores[ns] = s
	}
	return s, nil
}

// registerDefinition registers the preconfigured context name over a fresh
// memStore.
func registerDefinition(t *testing.T, reg *proofing.Registry, name string) (*proofing.Context, *memStore) {
	t.Helper()
	def, err := proofing.Lookup(name)
	require.NoError(t, err)

	store := newMemStore(def.Schema)
	opts := []proofing.Option{
		proofing.WithSchema(def.Schema),
		proofing.WithUpgrades(models.LegacyUpgrades...),
	}
	if def.Legacy {
		opts = append(opts, proofing.WithLegacyCutover(def.DefaultCutover))
	}
	pc, err := reg.Register(def.Name, store, def.SetWhitelist, def.UnsetWhitelist, opts...)
	require.NoError(t, err)
	return pc, store
}

func legacyUserDoc() models.Record {
	return models.Record{
		"_id":                    primitive.NewObjectID(),
		"givenName":              "Testaren",
		"surname":                "Testsson",
		"displayName":            "Kungen av Kungsan",
		"preferredLanguage":      "sv",
		"eduPersonPrincipalName": "test-test",
		"mail":                   "john@example.com",
		"mailAliases": []any{
			map[string]any{"email": "john@example.com", "verified": true},
		},
		"mobile": []any{
			map[string]any{"verified": true, "mobile": "+46700011336", "primary": true},
		},
		"passwords": []any{
			map[string]any{
				"id":   mustOID("112345678901234567890123"),
				"salt": "$NDNv1H1$9c810d852430b62a9a7c6159d5d64c41c3831846f81b6799b54e1e8922f11545$32$32$",
			},
		},
		"norEduPersonNIN": []any{"123456781235"},
	}
}

func letterProofingEntry() map[string]any {
	return map[string]any{
		"verification_code": "secret code",
		"verified":          true,
		"verified_by":       "eduid-idproofing-letter",
		"created_ts":        "ts",
		"official_address": map[string]any{
			"OfficialAddress": map[string]any{
				"PostalCode": "12345",
				"City":       "LANDET",
				"Address2":   "ÖRGATAN 79 LGH 10",
			},
			"Name": map[string]any{
				"Surname":          "Testsson",
				"GivenName":        "Testaren Test",
				"GivenNameMarking": "20",
			},
		},
		"number":         "123456781235",
		"created_by":     "eduid-idproofing-letter",
		"verified_ts":    "ts",
		"transaction_id": "debug mode transaction id",
	}
}

func mustOID(hex string) primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		panic(err)
	}
	return oid
}

func verifiedNIN(number string) []any {
	return []any{map[string]any{"number": number, "verified": true, "primary": true}}
}
