package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-d-g/orbit/internal/model"
)

func planetModels() []ModelDef {
	return []ModelDef{
		{
			Name: "planet",
			Keys: []string{"remoteId"},
			Relationships: map[string]RelationshipDef{
				"moons": {Kind: model.HasMany, Model: "moon", Inverse: "planet"},
				"star":  {Kind: model.HasOne, Model: "star"},
			},
		},
		{
			Name: "moon",
			Relationships: map[string]RelationshipDef{
				"planet": {Kind: model.HasOne, Model: "planet", Inverse: "moons"},
			},
		},
		{Name: "star"},
	}
}

func TestNew(t *testing.T) {
	s, err := New(planetModels()...)
	require.NoError(t, err)

	assert.Equal(t, []string{"moon", "planet", "star"}, s.Models())
	assert.True(t, s.HasModel("star"))
	assert.False(t, s.HasModel("comet"))

	planet, ok := s.Model("planet")
	require.True(t, ok)
	assert.True(t, planet.HasKey("remoteId"))
	assert.False(t, planet.HasKey("name"))

	rel, err := s.Relationship("planet", "moons")
	require.NoError(t, err)
	assert.Equal(t, model.HasMany, rel.Kind)
	assert.Equal(t, "planet", rel.Inverse)

	assert.Equal(t, []string{"moons", "star"}, s.RelationshipNames("planet"))
	assert.Nil(t, s.RelationshipNames("comet"))
}

func TestRelationshipLookupErrors(t *testing.T) {
	s, err := New(planetModels()...)
	require.NoError(t, err)

	_, err = s.Relationship("comet", "tail")
	assert.True(t, model.IsSchemaConsistency(err))

	_, err = s.Relationship("planet", "rings")
	assert.True(t, model.IsSchemaConsistency(err))
}

func TestNewRejectsInconsistentSchemas(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]ModelDef) []ModelDef
	}{
		{"undeclared target", func(m []ModelDef) []ModelDef {
			m[2].Relationships = map[string]RelationshipDef{"comets": {Kind: model.HasMany, Model: "comet"}}
			return m
		}},
		{"missing inverse", func(m []ModelDef) []ModelDef {
			m[1].Relationships = nil
			return m
		}},
		{"inverse does not name back", func(m []ModelDef) []ModelDef {
			m[1].Relationships["planet"] = RelationshipDef{Kind: model.HasOne, Model: "planet", Inverse: "star"}
			return m
		}},
		{"unknown kind", func(m []ModelDef) []ModelDef {
			m[0].Relationships["star"] = RelationshipDef{Kind: "hasSome", Model: "star"}
			return m
		}},
		{"duplicate model", func(m []ModelDef) []ModelDef {
			return append(m, ModelDef{Name: "star"})
		}},
		{"unnamed model", func(m []ModelDef) []ModelDef {
			return append(m, ModelDef{})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mutate(planetModels())...)
			require.Error(t, err)
			assert.True(t, model.IsSchemaConsistency(err))
		})
	}
}
