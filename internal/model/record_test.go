package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jupiter() Record {
	io := Identity{Type: "moon", ID: "io"}
	europa := Identity{Type: "moon", ID: "europa"}
	sun := Identity{Type: "star", ID: "sun"}
	return Record{
		Type:       "planet",
		ID:         "jupiter",
		Keys:       map[string]string{"remoteId": "p5"},
		Attributes: Object{"name": String("Jupiter")},
		Relationships: map[string]Relationship{
			"moons": Many(io, europa),
			"star":  One(&sun),
		},
	}
}

func TestRelationshipHelpers(t *testing.T) {
	io := Identity{Type: "moon", ID: "io"}

	many := Many(io)
	assert.True(t, many.Contains(io))
	assert.False(t, many.Contains(Identity{Type: "moon", ID: "x"}))
	assert.Equal(t, []Identity{io}, many.Related())

	empty := One(nil)
	assert.Equal(t, HasOne, empty.Kind)
	assert.Nil(t, empty.Related())
	assert.False(t, empty.Contains(io))

	one := One(&io)
	assert.True(t, one.Contains(io))
}

func TestRecordCloneIsDeep(t *testing.T) {
	orig := jupiter()
	clone := orig.Clone()

	clone.Keys["remoteId"] = "changed"
	clone.Attributes["name"] = String("changed")
	clone.Relationships["moons"].Many[0].ID = "changed"
	clone.Relationships["star"].One.ID = "changed"

	assert.Equal(t, "p5", orig.Keys["remoteId"])
	assert.Equal(t, String("Jupiter"), orig.Attribute("name"))
	assert.Equal(t, "io", orig.Relationships["moons"].Many[0].ID)
	assert.Equal(t, "sun", orig.Relationships["star"].One.ID)
}

func TestStateDigestIsOrderIndependent(t *testing.T) {
	a := jupiter()
	b := Record{Type: "moon", ID: "io", Attributes: Object{"name": String("Io")}}

	d1, err := StateDigest([]Record{a, b})
	require.NoError(t, err)
	d2, err := StateDigest([]Record{b, a})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	// hasMany membership order does not change the digest either.
	c := a.Clone()
	c.Relationships["moons"] = Many(
		Identity{Type: "moon", ID: "europa"},
		Identity{Type: "moon", ID: "io"},
	)
	assert.Equal(t, d1, MustStateDigest([]Record{b, c}))

	c.Attributes["name"] = String("Zeus")
	assert.NotEqual(t, d1, MustStateDigest([]Record{b, c}))
}

func TestStateDigestFloatAttributes(t *testing.T) {
	earth := Record{Type: "planet", ID: "earth", Attributes: Object{"gravity": Float(9.8)}}

	data, err := json.Marshal(earth)
	require.NoError(t, err)
	var restored Record
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, Float(9.8), restored.Attribute("gravity"))

	d1, err := StateDigest([]Record{earth})
	require.NoError(t, err)
	assert.Equal(t, d1, MustStateDigest([]Record{restored}))

	heavier := earth.Clone()
	heavier.Attributes["gravity"] = Float(9.81)
	assert.NotEqual(t, d1, MustStateDigest([]Record{heavier}))

	broken := earth.Clone()
	broken.Attributes["gravity"] = Float(math.NaN())
	_, err = StateDigest([]Record{broken})
	require.Error(t, err)
}

func TestCanonicalRecords(t *testing.T) {
	sun := Identity{Type: "star", ID: "sun"}
	data, err := CanonicalRecords([]Record{{
		Type:       "planet",
		ID:         "1",
		Keys:       map[string]string{"remoteId": ""},
		Attributes: Object{"name": String("<Earth>")},
		Relationships: map[string]Relationship{
			"star":  One(&sun),
			"moons": Many(),
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, `[{"attributes":{"name":"<Earth>"},"id":"1","relationships":{"star":"star:sun"},"type":"planet"}]`, string(data))
}

func TestStateDigestIgnoresEmptyRelationships(t *testing.T) {
	bare := Record{Type: "planet", ID: "1"}
	emptied := Record{
		Type:          "planet",
		ID:            "1",
		Relationships: map[string]Relationship{"star": One(nil), "moons": Many()},
	}
	assert.Equal(t, MustStateDigest([]Record{bare}), MustStateDigest([]Record{emptied}))
}
