package proofing_test

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/proofing-amp/config"
	"github.com/Skryldev/proofing-amp/models"
	"github.com/Skryldev/proofing-amp/proofing"
	"github.com/Skryldev/proofing-amp/repo"
)

func TestPlugin_UnknownContext(t *testing.T) {
	p := proofing.NewPlugin(proofing.NewRegistry(), nil)
	patch, err := p.AttributeFetcher(context.Background(), "dashboard", "u1")
	assert.ErrorIs(t, err, proofing.ErrUnknownContext)
	assert.True(t, patch.IsEmpty())
}

func TestPlugin_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	conn := repo.NewConnector(repo.ConnectorConfig{})
	defer func() { require.NoError(t, conn.Close(ctx)) }()

	cfg := &config.Config{MongoURI: "sqlite://" + filepath.Join(t.TempDir(), "amp.db")}
	reg, err := proofing.InitRegistry(ctx, cfg, conn, nil)
	require.NoError(t, err)
	require.Len(t, reg.Names(), 9)

	for _, name := range reg.Names() {
		pc, err := reg.Resolve(name)
		require.NoError(t, err)
		require.NoError(t, pc.Store().(*repo.SQLUserRepo).EnsureTable(ctx))
	}

	personal, err := reg.Resolve(proofing.PersonalData)
	require.NoError(t, err)
	require.NoError(t, personal.Store().(repo.UserWriter).Save(ctx, "u1", models.Record{
		"givenName":   "Testaren",
		"surname":     "Testsson",
		"displayName": "John",
		"sn":          "Legacy",
	}))

	p := proofing.NewPlugin(reg, nil)

	patch, err := p.AttributeFetcher(ctx, proofing.PersonalData, "u1")
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"$set":{"givenName":"Testaren","surname":"Testsson","displayName":"John"}}`,
		string(mustJSON(t, patch)))

	_, err = p.AttributeFetcher(ctx, proofing.Security, "u1")
	assert.True(t, repo.IsNotFound(err), "stores are private per context")

	_, err = p.AttributeFetcher(ctx, proofing.PersonalData, "nobody")
	assert.True(t, repo.IsNotFound(err))
}

func mustJSON(t *testing.T, p models.Patch) []byte {
	t.Helper()
	b, err := p.MarshalJSON()
	require.NoError(t, err)
	return b
}
