package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/schema"
)

// PlanetSchemaCUE is the solar-system schema used across tests, in the CUE
// form accepted by schema.CompileString.
//
// planet.moons and moon.planet are inverses; planet.star has no inverse.
const PlanetSchemaCUE = `
models: {
	planet: {
		attributes: {
			name:           string
			classification: string
			order:          int
		}
		keys: ["remoteId"]
		relationships: {
			moons: {hasMany: "moon", inverse: "planet"}
			star: {hasOne: "star"}
		}
	}
	moon: {
		attributes: name: string
		relationships: planet: {hasOne: "planet", inverse: "moons"}
	}
	star: {
		attributes: name: string
	}
}
`

// PlanetSchema compiles PlanetSchemaCUE.
func PlanetSchema(t testing.TB) *schema.Schema {
	t.Helper()
	s, err := schema.CompileString(PlanetSchemaCUE, "planets.cue")
	require.NoError(t, err)
	return s
}

// PlanetID, MoonID and StarID build identities.
func PlanetID(id string) model.Identity { return model.Identity{Type: "planet", ID: id} }
func MoonID(id string) model.Identity   { return model.Identity{Type: "moon", ID: id} }
func StarID(id string) model.Identity   { return model.Identity{Type: "star", ID: id} }

// Planet builds a planet record with a name attribute.
func Planet(id, name string) model.Record {
	return model.Record{Type: "planet", ID: id, Attributes: model.Object{"name": model.String(name)}}
}

// Moon builds a moon record orbiting planet. An empty planet leaves the
// relationship unset.
func Moon(id, name, planet string) model.Record {
	r := model.Record{Type: "moon", ID: id, Attributes: model.Object{"name": model.String(name)}}
	if planet != "" {
		p := PlanetID(planet)
		r.Relationships = map[string]model.Relationship{"planet": model.One(&p)}
	}
	return r
}

// Star builds a star record.
func Star(id, name string) model.Record {
	return model.Record{Type: "star", ID: id, Attributes: model.Object{"name": model.String(name)}}
}

// AddRecords builds one AddRecord operation per record.
func AddRecords(records ...model.Record) []model.Operation {
	ops := make([]model.Operation, len(records))
	for i, r := range records {
		ops[i] = model.Must(model.NewAddRecord(r))
	}
	return ops
}
