package proofing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skryldev/proofing-amp/proofing"
)

func TestVerifiedNINs(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"not a list", "197801011234", "197801011234"},
		{"empty", []any{}, []any{}},
		{"mixed", []any{
			map[string]any{"nin": "1", "verified": true},
			map[string]any{"nin": "2", "verified": false},
			map[string]any{"nin": "3"},
			map[string]any{"nin": "4", "verified": 1},
			map[string]any{"nin": "5", "verified": "True"},
			map[string]any{"verified": true},
			"6",
			map[string]any{"nin": "7", "verified": true},
		}, []any{"1", "7"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, proofing.VerifiedNINs(tc.in))
		})
	}
}

func TestVerifiedNINsByKey(t *testing.T) {
	// Documents written with a misspelled verification key only match a
	// filter built for that key.
	items := []any{map[string]any{"nin": "1", "verfied": true}}

	assert.Equal(t, []any{}, proofing.VerifiedNINs(items))
	assert.Equal(t, []any{"1"}, proofing.VerifiedNINsByKey("verfied")(items))
}

func TestIdentity(t *testing.T) {
	v := []any{"x"}
	assert.Equal(t, v, proofing.Identity(v))
	assert.Nil(t, proofing.Identity(nil))
}
