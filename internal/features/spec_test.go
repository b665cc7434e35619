package features_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/features"
)

func TestSpec_LendingClubRoundTrip(t *testing.T) {
	want := features.LendingClub()

	data, err := features.MarshalSpec(want)
	require.NoError(t, err)

	got, err := features.ParseSpec(data)
	require.NoError(t, err)
	assert.Equal(t, want.Target, got.Target)
	assert.Equal(t, want.UnnamedPrefix, got.UnnamedPrefix)
	assert.Equal(t, want.Schema, got.Schema)
	assert.Equal(t, want.Steps, got.Steps)

	res, err := got.Apply(loanTable(t))
	require.NoError(t, err)
	assert.Equal(t, features.LendingClubSchema, res.Features.Names())
}

func TestLoadSpec(t *testing.T) {
	doc := `
target: label
unnamed_prefix: Unnamed
fill_value: -1
schema: [sub, size]
steps:
  - kind: substring_ordinal_map
    column: sub
    position: 1
    mapping: {"1": 1, "2": 2}
  - kind: numeric_coerce
    columns: [size]
    default: 0
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	p, err := features.LoadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "label", p.Target)
	assert.Equal(t, -1.0, p.FillValue)
	assert.Equal(t, []features.Step{
		features.SubstringOrdinalMap{Column: "sub", Position: 1, Mapping: map[string]float64{"1": 1, "2": 2}},
		features.NumericCoerce{Columns: []string{"size"}},
	}, p.Steps)
}

func TestParseSpec_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", "schema: [a]\nsteps:\n  - kind: explode\n    column: a\n"},
		{"missing kind", "schema: [a]\nsteps:\n  - column: a\n"},
		{"drop without columns", "schema: [a]\nsteps:\n  - kind: drop\n"},
		{"ordinal without mapping", "schema: [a]\nsteps:\n  - kind: ordinal_map\n    column: a\n"},
		{"substring without position", "schema: [a]\nsteps:\n  - kind: substring_ordinal_map\n    column: a\n    mapping: {x: 1}\n"},
		{"unknown field", "schema: [a]\ncolour: red\n"},
		{"empty schema", "steps: []\n"},
		{"not yaml", "schema: [a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := features.ParseSpec([]byte(tt.doc))
			assert.True(t, errors.Is(err, features.ErrSpec), "got %v", err)
		})
	}
}

func TestLoadSpec_MissingFile(t *testing.T) {
	_, err := features.LoadSpec(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
