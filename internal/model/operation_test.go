package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoriesRequireIdentity(t *testing.T) {
	ok := Identity{Type: "planet", ID: "1"}
	tests := []struct {
		name string
		fn   func() (Operation, error)
	}{
		{"addRecord", func() (Operation, error) { return NewAddRecord(Record{Type: "planet"}) }},
		{"updateRecord", func() (Operation, error) { return NewUpdateRecord(Record{ID: "1"}) }},
		{"removeRecord", func() (Operation, error) { return NewRemoveRecord(Identity{}) }},
		{"replaceKey", func() (Operation, error) { return NewReplaceKey(Identity{Type: "planet"}, "k", "v") }},
		{"replaceAttribute", func() (Operation, error) { return NewReplaceAttribute(Identity{ID: "1"}, "a", Int(1)) }},
		{"addToHasMany related", func() (Operation, error) { return NewAddToHasMany(ok, "moons", Identity{Type: "moon"}) }},
		{"removeFromHasMany", func() (Operation, error) { return NewRemoveFromHasMany(Identity{}, "moons", ok) }},
		{"replaceHasMany member", func() (Operation, error) {
			return NewReplaceHasMany(ok, "moons", []Identity{{Type: "moon", ID: "io"}, {ID: "x"}})
		}},
		{"replaceHasOne related", func() (Operation, error) { return NewReplaceHasOne(ok, "star", &Identity{Type: "star"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := tt.fn()
			require.Error(t, err)
			assert.Nil(t, op)
			assert.True(t, IsRecordIdentity(err))
		})
	}
}

func TestFactoriesCopyInputs(t *testing.T) {
	rec := Record{Type: "planet", ID: "1", Attributes: Object{"name": String("a")}}
	op := Must(NewAddRecord(rec))
	rec.Attributes["name"] = String("b")
	assert.Equal(t, String("a"), op.(AddRecord).Record.Attribute("name"))

	related := []Identity{{Type: "moon", ID: "io"}}
	op = Must(NewReplaceHasMany(rec.Identity(), "moons", related))
	related[0].ID = "europa"
	assert.Equal(t, "io", op.(ReplaceHasMany).Related[0].ID)
}

func TestMustPanics(t *testing.T) {
	assert.Panics(t, func() { Must(NewRemoveRecord(Identity{})) })
}

func TestOperationJSONRoundTrip(t *testing.T) {
	p := Identity{Type: "planet", ID: "jupiter"}
	io := Identity{Type: "moon", ID: "io"}
	ops := Operations{
		Must(NewAddRecord(jupiter())),
		Must(NewUpdateRecord(Record{Type: "planet", ID: "jupiter", Attributes: Object{"mass": Int(1898)}})),
		Must(NewRemoveRecord(p)),
		Must(NewReplaceKey(p, "remoteId", "p6")),
		Must(NewReplaceKey(p, "remoteId", "")),
		Must(NewReplaceAttribute(p, "name", String("Jove"))),
		Must(NewReplaceAttribute(p, "name", nil)),
		Must(NewReplaceAttribute(p, "name", Null{})),
		Must(NewAddToHasMany(p, "moons", io)),
		Must(NewRemoveFromHasMany(p, "moons", io)),
		Must(NewReplaceHasMany(p, "moons", []Identity{io})),
		Must(NewReplaceHasOne(io, "planet", &p)),
		Must(NewReplaceHasOne(io, "planet", nil)),
	}

	data, err := json.Marshal(ops)
	require.NoError(t, err)

	var decoded Operations
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, len(ops))
	for i := range ops {
		assert.Equal(t, ops[i].Kind(), decoded[i].Kind(), "op %d", i)
		assert.Equal(t, Key(ops[i]), Key(decoded[i]), "op %d", i)
	}
	assert.Equal(t, ops[0], decoded[0])
	assert.Nil(t, decoded[6].(ReplaceAttribute).Value)
	assert.Equal(t, Null{}, decoded[7].(ReplaceAttribute).Value)
}

func TestUnmarshalOperationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown op", `{"op":"explode","record":{"type":"a","id":"1"}}`},
		{"unknown field", `{"op":"removeRecord","record":{"type":"a","id":"1"},"extra":1}`},
		{"missing record", `{"op":"removeRecord"}`},
		{"missing related", `{"op":"addToHasMany","record":{"type":"a","id":"1"},"relationship":"r"}`},
		{"number out of range", `{"op":"replaceAttribute","record":{"type":"a","id":"1"},"attribute":"x","value":1e999}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalOperation([]byte(tt.input))
			require.Error(t, err)
		})
	}

	_, err := UnmarshalOperation([]byte(`{"op":"removeRecord","record":{"type":"a"}}`))
	assert.True(t, IsRecordIdentity(err))
}

func TestUnmarshalOperationFloatValue(t *testing.T) {
	op, err := UnmarshalOperation([]byte(`{"op":"replaceAttribute","record":{"type":"planet","id":"earth"},"attribute":"gravity","value":9.8}`))
	require.NoError(t, err)
	assert.Equal(t, ReplaceAttribute{Record: Identity{Type: "planet", ID: "earth"}, Attribute: "gravity", Value: Float(9.8)}, op)

	data, err := MarshalOperation(op)
	require.NoError(t, err)
	again, err := UnmarshalOperation(data)
	require.NoError(t, err)
	assert.Equal(t, op, again)
}

func TestKeyDistinguishesValues(t *testing.T) {
	p := Identity{Type: "planet", ID: "1"}
	a := Must(NewReplaceAttribute(p, "name", String("a")))
	b := Must(NewReplaceAttribute(p, "name", String("b")))
	unset := Must(NewReplaceAttribute(p, "name", nil))

	assert.NotEqual(t, Key(a), Key(b))
	assert.NotEqual(t, Key(a), Key(unset))
	assert.Equal(t, Key(a), Key(Must(NewReplaceAttribute(p, "name", String("a")))))
}
