package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/store"
	"github.com/g-d-g/orbit/internal/testutil"
)

// solarSystem returns a store holding earth (with moon luna and star sun)
// and mars, logged as t-1.
func solarSystem(t *testing.T) map[string]*store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, testutil.PlanetSchema(t), store.WithIDGenerator(testutil.NewSequentialIDs("t")))
	require.NoError(t, err)

	earth := testutil.Planet("earth", "Earth")
	sun := testutil.StarID("sun")
	earth.Relationships = map[string]model.Relationship{"star": model.One(&sun)}

	ops := testutil.AddRecords(
		testutil.Star("sun", "Sun"),
		earth,
		testutil.Planet("mars", "Mars"),
		testutil.Moon("luna", "Luna", "earth"),
	)
	_, err = s.Update(ctx, ops)
	require.NoError(t, err)
	return map[string]*store.Store{MainStore: s}
}

func TestEvaluateAssertions(t *testing.T) {
	stores := solarSystem(t)

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "record exists",
			assertion: Assertion{Type: AssertRecordExists, Record: ref("planet", "earth")},
		},
		{
			name:      "record exists fails",
			assertion: Assertion{Type: AssertRecordExists, Record: ref("planet", "pluto")},
			wantErr:   "planet:pluto exists",
		},
		{
			name:      "record missing",
			assertion: Assertion{Type: AssertRecordMissing, Record: ref("planet", "pluto")},
		},
		{
			name:      "record missing fails",
			assertion: Assertion{Type: AssertRecordMissing, Record: ref("planet", "mars")},
			wantErr:   "planet:mars missing",
		},
		{
			name:      "attribute",
			assertion: Assertion{Type: AssertAttribute, Record: ref("moon", "luna"), Attribute: "name", Value: "Luna"},
		},
		{
			name:      "unset attribute",
			assertion: Assertion{Type: AssertAttribute, Record: ref("planet", "earth"), Attribute: "order"},
		},
		{
			name:      "attribute mismatch",
			assertion: Assertion{Type: AssertAttribute, Record: ref("planet", "earth"), Attribute: "name", Value: "Gaia"},
			wantErr:   `planet:earth.name = "Gaia"`,
		},
		{
			name:      "attribute on missing record",
			assertion: Assertion{Type: AssertAttribute, Record: ref("planet", "pluto"), Attribute: "name", Value: "Pluto"},
			wantErr:   "not found",
		},
		{
			name:      "has one",
			assertion: Assertion{Type: AssertHasOne, Record: ref("moon", "luna"), Relationship: "planet", Related: ref("planet", "earth")},
		},
		{
			name:      "has one empty",
			assertion: Assertion{Type: AssertHasOne, Record: ref("planet", "mars"), Relationship: "star"},
		},
		{
			name:      "has one mismatch",
			assertion: Assertion{Type: AssertHasOne, Record: ref("planet", "earth"), Relationship: "star"},
			wantErr:   `"star:sun"`,
		},
		{
			name: "has many",
			assertion: Assertion{Type: AssertHasMany, Record: ref("planet", "earth"), Relationship: "moons",
				Members: []RecordRef{{Type: "moon", ID: "luna"}}},
		},
		{
			name:      "has many empty",
			assertion: Assertion{Type: AssertHasMany, Record: ref("planet", "mars"), Relationship: "moons"},
		},
		{
			name:      "has many mismatch",
			assertion: Assertion{Type: AssertHasMany, Record: ref("planet", "earth"), Relationship: "moons"},
			wantErr:   "[moon:luna]",
		},
		{
			name:      "log head",
			assertion: Assertion{Type: AssertLogHead, Transform: "t-1"},
		},
		{
			name:      "log head mismatch",
			assertion: Assertion{Type: AssertLogHead, Transform: "t-9"},
			wantErr:   `head "t-1"`,
		},
		{
			name:      "log length",
			assertion: Assertion{Type: AssertLogLength, Length: 1},
		},
		{
			name:      "log length mismatch",
			assertion: Assertion{Type: AssertLogLength, Length: 2},
			wantErr:   "1 transforms",
		},
		{
			name:      "log ids",
			assertion: Assertion{Type: AssertLogIDs, IDs: []string{"t-1"}},
		},
		{
			name:      "log ids mismatch",
			assertion: Assertion{Type: AssertLogIDs},
			wantErr:   "Actual: [t-1]",
		},
		{
			name:      "unknown store",
			assertion: Assertion{Type: AssertLogLength, Store: "draft"},
			wantErr:   `unknown store "draft"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := EvaluateAssertions(stores, []Assertion{tt.assertion})
			if tt.wantErr == "" {
				assert.Empty(t, failures)
				return
			}
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], tt.wantErr)
		})
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertLogHead,
		Store:    MainStore,
		Expected: `head "b"`,
		Actual:   `head "a"`,
		Log:      []string{"a"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: log_head (store main)")
	assert.Contains(t, msg, `Expected: head "b"`)
	assert.Contains(t, msg, `Actual: head "a"`)
	assert.Contains(t, msg, "Log: [a]")
}
