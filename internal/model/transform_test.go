package model

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSingleOperation(t *testing.T) {
	op := Must(NewRemoveRecord(Identity{Type: "planet", ID: "1"}))

	tr, err := From(op)
	require.NoError(t, err)
	require.Len(t, tr.Operations, 1)

	parsed, err := uuid.Parse(tr.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFromOptions(t *testing.T) {
	ops := []Operation{
		Must(NewRemoveRecord(Identity{Type: "planet", ID: "1"})),
		Must(NewRemoveRecord(Identity{Type: "planet", ID: "2"})),
	}
	tr, err := From(ops, WithID("t1"), WithOptions(Object{"label": String("cleanup")}))
	require.NoError(t, err)
	assert.Equal(t, "t1", tr.ID)
	assert.Equal(t, "cleanup", tr.Label())

	ops[0] = nil
	assert.NotNil(t, tr.Operations[0], "transform must not alias the caller's slice")
}

func TestFromTransformIsIdentity(t *testing.T) {
	orig := &Transform{ID: "t1"}
	tr, err := From(orig, WithID("ignored"))
	require.NoError(t, err)
	assert.Same(t, orig, tr)
}

func TestFromRejectsBadInput(t *testing.T) {
	_, err := From(42)
	require.Error(t, err)

	_, err = From((*Transform)(nil))
	require.Error(t, err)

	_, err = From([]Operation{nil})
	require.Error(t, err)
}

func TestFromChecksIdentities(t *testing.T) {
	planet := Identity{Type: "planet", ID: "earth"}
	tests := []struct {
		name string
		op   Operation
	}{
		{"addRecord without id", AddRecord{Record: Record{Type: "planet"}}},
		{"updateRecord without type", UpdateRecord{Record: Record{ID: "earth"}}},
		{"replaceKey without id", ReplaceKey{Record: Identity{Type: "planet"}, Key: "remoteId", Value: "p1"}},
		{"replaceHasMany member without id", ReplaceHasMany{Record: planet, Relationship: "moons", Related: []Identity{{Type: "moon"}}}},
		{"replaceHasOne related without type", ReplaceHasOne{Record: planet, Relationship: "star", Related: &Identity{ID: "sun"}}},
		{"linked hasMany member without id", AddRecord{Record: Record{
			Type: "planet", ID: "earth",
			Relationships: map[string]Relationship{"moons": {Kind: HasMany, Many: []Identity{{Type: "moon"}}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := From(tt.op)
			require.Error(t, err)
			assert.True(t, IsRecordIdentity(err), "got %v", err)
			assert.True(t, IsRecordIdentity(CheckIdentities(tt.op)))
		})
	}

	assert.NoError(t, CheckIdentities(ReplaceHasOne{Record: planet, Relationship: "star"}))
}

func TestFromWithIDGenerator(t *testing.T) {
	gen := NewFixedIDGenerator("t", "first")
	op := Must(NewRemoveRecord(Identity{Type: "planet", ID: "1"}))

	a, err := From(op, WithIDGenerator(gen))
	require.NoError(t, err)
	b, err := From(op, WithIDGenerator(gen))
	require.NoError(t, err)

	assert.Equal(t, "first", a.ID)
	assert.Equal(t, "t-2", b.ID)
}

func TestUUIDv7GeneratorUnique(t *testing.T) {
	gen := UUIDv7Generator{}
	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestTransformJSONRoundTrip(t *testing.T) {
	tr, err := From(Must(NewAddRecord(jupiter())), WithID("t1"), WithOptions(Object{"label": String("x")}))
	require.NoError(t, err)

	data, err := json.Marshal(tr)
	require.NoError(t, err)

	var decoded Transform
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *tr, decoded)
}
