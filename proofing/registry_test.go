package proofing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/proofing-amp/models"
	"github.com/Skryldev/proofing-amp/proofing"
)

func TestRegistry_RegisterResolve(t *testing.T) {
	reg := proofing.NewRegistry()
	store := newMemStore(models.UserSchema)
	cutover := time.Date(2018, 3, 1, 0, 0, 0, 0, time.FixedZone("CET", 3600))

	pc, err := reg.Register("personal_data", store,
		[]string{"givenName", "surname"}, []string{"sn"},
		proofing.WithSchema(models.UserSchema),
		proofing.WithLegacyCutover(cutover))
	require.NoError(t, err)

	got, err := reg.Resolve("personal_data")
	require.NoError(t, err)
	assert.Same(t, pc, got)
	assert.Equal(t, "personal_data", got.Name())
	assert.Same(t, store, got.Store())
	assert.Same(t, models.UserSchema, got.Schema())
	assert.Equal(t, []string{"givenName", "surname"}, got.SetWhitelist())
	assert.Equal(t, []string{"sn"}, got.UnsetWhitelist())
	assert.True(t, got.Legacy())
	assert.Equal(t, time.UTC, got.Cutover().Location())
	assert.True(t, got.Cutover().Equal(cutover))
	assert.Empty(t, got.Upgrades(), "no upgrades unless asked for")
}

func TestRegistry_UnknownContext(t *testing.T) {
	_, err := proofing.NewRegistry().Resolve("dashboard")
	require.Error(t, err)
	assert.ErrorIs(t, err, proofing.ErrUnknownContext)
	assert.Contains(t, err.Error(), `"dashboard"`)
}

func TestRegistry_Duplicate(t *testing.T) {
	reg := proofing.NewRegistry()
	_, err := reg.Register("orcid", newMemStore(nil), []string{"orcid"}, []string{"orcid"})
	require.NoError(t, err)

	_, err = reg.Register("orcid", newMemStore(nil), []string{"orcid"}, nil)
	assert.ErrorIs(t, err, proofing.ErrDuplicateContext)
}

func TestRegistry_InvalidRegistrations(t *testing.T) {
	reg := proofing.NewRegistry()
	cases := []struct {
		name  string
		ctx   string
		store bool
		set   []string
		unset []string
	}{
		{"empty name", "", true, []string{"a"}, nil},
		{"nil store", "x", false, []string{"a"}, nil},
		{"duplicate set attribute", "x", true, []string{"a", "a"}, nil},
		{"empty unset attribute", "x", true, []string{"a"}, []string{""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			if tc.store {
				_, err = reg.Register(tc.ctx, newMemStore(nil), tc.set, tc.unset)
			} else {
				_, err = reg.Register(tc.ctx, nil, tc.set, tc.unset)
			}
			assert.Error(t, err)
		})
	}
	assert.Empty(t, reg.Names())
}

func TestRegistry_Names(t *testing.T) {
	reg := proofing.NewRegistry()
	for _, name := range []string{"security", "eidas", "orcid"} {
		_, err := reg.Register(name, newMemStore(nil), []string{"x"}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"eidas", "orcid", "security"}, reg.Names())
}

func TestContext_Immutable(t *testing.T) {
	set := []string{"passwords", "terminated"}
	unset := []string{"passwords", "terminated"}
	pc, err := proofing.NewRegistry().Register("security", newMemStore(nil), set, unset)
	require.NoError(t, err)

	set[0] = "mail"
	unset[1] = "mail"
	got := pc.SetWhitelist()
	got[1] = "mail"

	assert.Equal(t, []string{"passwords", "terminated"}, pc.SetWhitelist())
	assert.Equal(t, []string{"passwords", "terminated"}, pc.UnsetWhitelist())
	assert.False(t, pc.Legacy())
	assert.True(t, pc.Cutover().IsZero())
}
