package proofing_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/proofing-amp/config"
	"github.com/Skryldev/proofing-amp/models"
	"github.com/Skryldev/proofing-amp/proofing"
	"github.com/Skryldev/proofing-amp/repo"
)

func TestDefinitions(t *testing.T) {
	defs := proofing.Definitions()
	require.Len(t, defs, 9)

	want := map[string]struct {
		set, unset []string
		legacy     bool
	}{
		proofing.OIDCProofing:         {[]string{"norEduPersonNIN", "nins"}, []string{"norEduPersonNIN", "nins"}, true},
		proofing.LetterProofing:       {[]string{"norEduPersonNIN", "nins", "letter_proofing_data"}, []string{"norEduPersonNIN", "nins"}, true},
		proofing.LookupMobileProofing: {[]string{"norEduPersonNIN", "nins"}, []string{"norEduPersonNIN", "nins"}, true},
		proofing.EmailProofing:        {[]string{"mailAliases"}, []string{"mailAliases"}, false},
		proofing.PhoneProofing:        {[]string{"phone"}, []string{"phone"}, false},
		proofing.PersonalData:         {[]string{"givenName", "surname", "displayName", "preferredLanguage"}, []string{"sn"}, true},
		proofing.Security:             {[]string{"passwords", "terminated"}, []string{"passwords", "terminated"}, false},
		proofing.Orcid:                {[]string{"orcid"}, []string{"orcid"}, false},
		proofing.Eidas:                {[]string{"passwords"}, []string{}, false},
	}
	for _, def := range defs {
		w, ok := want[def.Name]
		require.True(t, ok, def.Name)
		assert.Equal(t, w.set, def.SetWhitelist, def.Name)
		assert.Equal(t, w.unset, def.UnsetWhitelist, def.Name)
		assert.Equal(t, w.legacy, def.Legacy, def.Name)
		assert.NotEmpty(t, def.Namespace.Database, def.Name)
		for _, attr := range def.SetWhitelist {
			assert.True(t, def.Schema.Has(attr), "%s: %s not in schema", def.Name, attr)
		}
		if def.Legacy {
			assert.Equal(t, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), def.DefaultCutover)
		}
	}

	defs[0].SetWhitelist[0] = "mail"
	again, err := proofing.Lookup(defs[0].Name)
	require.NoError(t, err)
	assert.NotEqual(t, "mail", again.SetWhitelist[0])

	_, err = proofing.Lookup("dashboard")
	assert.ErrorIs(t, err, proofing.ErrUnknownContext)
}

func TestInitContextFromMap(t *testing.T) {
	ctx := context.Background()

	t.Run("mongo uri alias and cutover", func(t *testing.T) {
		opener := newMemOpener()
		reg := proofing.NewRegistry()
		pc, err := proofing.InitContextFromMap(ctx, reg, opener, proofing.LetterProofing, map[string]any{
			"MONGO_URI": "mongodb://localhost:27017",
			"cutover":   "2018-03-15",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"mongodb://localhost:27017"}, opener.uris)
		assert.True(t, pc.Legacy())
		assert.Equal(t, time.Date(2018, 3, 15, 0, 0, 0, 0, time.UTC), pc.Cutover())
		assert.Same(t, models.ProofingUserSchema, pc.Schema())
		assert.Len(t, pc.Upgrades(), len(models.LegacyUpgrades))
		assert.Contains(t, opener.stores, repo.Namespace{Database: "eduid_idproofing_letter", Collection: "proofing_data"})

		got, err := reg.Resolve(proofing.LetterProofing)
		require.NoError(t, err)
		assert.Same(t, pc, got)
	})

	t.Run("cutover as time", func(t *testing.T) {
		pc, err := proofing.InitContextFromMap(ctx, proofing.NewRegistry(), newMemOpener(), proofing.OIDCProofing, map[string]any{
			"uri":     "mongodb://localhost",
			"cutover": time.Date(2019, 5, 2, 22, 30, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2019, 5, 2, 0, 0, 0, 0, time.UTC), pc.Cutover())
	})

	t.Run("default cutover", func(t *testing.T) {
		pc, err := proofing.InitContextFromMap(ctx, proofing.NewRegistry(), newMemOpener(), proofing.PersonalData, map[string]any{
			"uri": "mongodb://localhost",
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), pc.Cutover())
	})

	t.Run("namespace override", func(t *testing.T) {
		opener := newMemOpener()
		_, err := proofing.InitContextFromMap(ctx, proofing.NewRegistry(), opener, proofing.Security, map[string]any{
			"uri":        "mongodb://localhost",
			"database":   "eduid_security_test",
			"collection": "users",
		})
		require.NoError(t, err)
		assert.Contains(t, opener.stores, repo.Namespace{Database: "eduid_security_test", Collection: "users"})
	})

	failures := []struct {
		name string
		ctx  string
		m    map[string]any
	}{
		{"missing uri", proofing.Orcid, map[string]any{}},
		{"uri not a string", proofing.Orcid, map[string]any{"uri": 27017}},
		{"bad cutover", proofing.OIDCProofing, map[string]any{"uri": "mongodb://localhost", "cutover": "01/03/2018"}},
		{"cutover wrong type", proofing.OIDCProofing, map[string]any{"uri": "mongodb://localhost", "cutover": 2018}},
		{"cutover on non-legacy context", proofing.EmailProofing, map[string]any{"uri": "mongodb://localhost", "cutover": "2018-01-01"}},
		{"unknown context", "dashboard", map[string]any{"uri": "mongodb://localhost"}},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			reg := proofing.NewRegistry()
			_, err := proofing.InitContextFromMap(ctx, reg, newMemOpener(), tc.ctx, tc.m)
			assert.Error(t, err)
			assert.Empty(t, reg.Names())
		})
	}
}

func TestInitRegistry(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	cfg := &config.Config{
		MongoURI: "mongodb://shared:27017",
		Contexts: map[string]config.Context{
			proofing.Eidas:          {Disabled: true},
			proofing.LetterProofing: {URI: "mongodb://letter:27017", Cutover: "2018-06-01"},
		},
	}
	opener := newMemOpener()

	reg, err := proofing.InitRegistry(context.Background(), cfg, opener, logger)
	require.NoError(t, err)

	names := reg.Names()
	assert.Len(t, names, 8)
	assert.NotContains(t, names, proofing.Eidas)
	assert.Contains(t, opener.uris, "mongodb://letter:27017")
	assert.Contains(t, opener.uris, "mongodb://shared:27017")

	letter, err := reg.Resolve(proofing.LetterProofing)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC), letter.Cutover())
	assert.Contains(t, buf.String(), "proofing: context disabled")
}

func TestInitRegistry_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := proofing.InitRegistry(ctx, &config.Config{}, newMemOpener(), nil)
	assert.ErrorContains(t, err, "no contexts configured")

	_, err = proofing.InitRegistry(ctx, &config.Config{
		MongoURI: "mongodb://localhost",
		Contexts: map[string]config.Context{"dashboard": {}},
	}, newMemOpener(), nil)
	assert.ErrorContains(t, err, "unknown proofing context")

	_, err = proofing.InitRegistry(ctx, &config.Config{
		MongoURI: "mongodb://localhost",
		Contexts: map[string]config.Context{proofing.Orcid: {Cutover: "2018-01-01"}},
	}, newMemOpener(), nil)
	assert.ErrorContains(t, err, "cutover does not apply")
}
