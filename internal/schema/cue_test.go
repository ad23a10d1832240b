package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-d-g/orbit/internal/model"
)

const planetCUE = `
models: {
	planet: {
		attributes: {
			name:           string
			classification: string
			moonCount:      int
		}
		keys: ["remoteId"]
		relationships: {
			moons: {hasMany: "moon", inverse: "planet"}
			star: hasOne:    "star"
		}
	}
	moon: {
		attributes: name: string
		relationships: planet: {hasOne: "planet", inverse: "moons"}
	}
	star: attributes: name: string
}
`

func TestCompileString(t *testing.T) {
	s, err := CompileString(planetCUE, "planets.cue")
	require.NoError(t, err)

	assert.Equal(t, []string{"moon", "planet", "star"}, s.Models())

	planet, ok := s.Model("planet")
	require.True(t, ok)
	assert.Equal(t, "int", planet.Attributes["moonCount"].Type)
	assert.Equal(t, []string{"remoteId"}, planet.Keys)

	rel, err := s.Relationship("moon", "planet")
	require.NoError(t, err)
	assert.Equal(t, RelationshipDef{Kind: model.HasOne, Model: "planet", Inverse: "moons"}, rel)

	rel, err = s.Relationship("planet", "star")
	require.NoError(t, err)
	assert.Empty(t, rel.Inverse)
}

func TestCompileValue(t *testing.T) {
	v := cuecontext.New().CompileString(`models: star: {}`)
	s, err := Compile(v)
	require.NoError(t, err)
	assert.True(t, s.HasModel("star"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.cue")
	require.NoError(t, os.WriteFile(path, []byte(planetCUE), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, s.HasModel("moon"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing models", `other: 1`, "models"},
		{"syntax", `models: {`, "cue"},
		{"bytes attribute", `models: planet: attributes: blob: bytes`, "type"},
		{"no kind", `models: planet: relationships: moons: {inverse: "x"}`, "models.planet.relationships.moons"},
		{"both kinds", `models: planet: relationships: moons: {hasOne: "planet", hasMany: "planet"}`, "models.planet.relationships.moons"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src, "bad.cue")
			require.Error(t, err)
			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr), "got %T: %v", err, err)
			assert.Equal(t, tt.field, compileErr.Field)
		})
	}
}

func TestCompileInconsistentSchema(t *testing.T) {
	_, err := CompileString(`models: planet: relationships: moons: hasMany: "moon"`, "bad.cue")
	require.Error(t, err)
	assert.True(t, model.IsSchemaConsistency(err))
}
