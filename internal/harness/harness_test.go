package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planetSchema = "../../testdata/schemas/planets.cue"

func addPlanet(id, name string) map[string]any {
	return map[string]any{
		"op":     "addRecord",
		"record": map[string]any{"type": "planet", "id": id, "attributes": map[string]any{"name": name}},
	}
}

func ref(typ, id string) *RecordRef {
	return &RecordRef{Type: typ, ID: id}
}

func TestRun_Update(t *testing.T) {
	scenario := &Scenario{
		Name:   "update",
		Schema: planetSchema,
		Steps: []Step{
			{Update: &UpdateStep{Operations: []map[string]any{addPlanet("earth", "Earth")}}},
			{Update: &UpdateStep{ID: "rename", Operations: []map[string]any{{
				"op":        "replaceAttribute",
				"record":    map[string]any{"type": "planet", "id": "earth"},
				"attribute": "name",
				"value":     "Terra",
			}}}},
		},
		Assertions: []Assertion{
			{Type: AssertAttribute, Record: ref("planet", "earth"), Attribute: "name", Value: "Terra"},
			{Type: AssertLogIDs, IDs: []string{"t-1", "rename"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{Seq: 1, Action: "update", Store: MainStore, Transforms: []string{"t-1"}}, result.Trace[0])
	assert.Equal(t, []string{"rename"}, result.Trace[1].Transforms)
	assert.Equal(t, []string{"t-1", "rename"}, result.State[MainStore].Log)
	assert.Len(t, result.State[MainStore].Records, 1)
}

func TestRun_FailedAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:   "failed_assertion",
		Schema: planetSchema,
		Steps: []Step{
			{Update: &UpdateStep{Operations: []map[string]any{addPlanet("earth", "Earth")}}},
		},
		Assertions: []Assertion{
			{Type: AssertAttribute, Record: ref("planet", "earth"), Attribute: "name", Value: "Mars"},
			{Type: AssertLogLength, Length: 1},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], `"Earth"`)
}

func TestRun_UnexpectedStepErrorStops(t *testing.T) {
	scenario := &Scenario{
		Name:   "unexpected_error",
		Schema: planetSchema,
		Steps: []Step{
			{Rollback: "missing"},
			{Update: &UpdateStep{Operations: []map[string]any{addPlanet("earth", "Earth")}}},
		},
		Assertions: []Assertion{
			{Type: AssertRecordExists, Record: ref("planet", "earth")},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] (rollback)")
	assert.Len(t, result.Trace, 1)
	assert.Empty(t, result.State[MainStore].Log)
}

func TestRun_ExpectedErrorClearsQueue(t *testing.T) {
	scenario := &Scenario{
		Name:   "expected_error",
		Schema: planetSchema,
		Steps: []Step{
			{
				Update: &UpdateStep{Operations: []map[string]any{{
					"op":     "removeRecord",
					"record": map[string]any{"type": "planet", "id": "pluto"},
				}}},
				ExpectError: "RECORD_NOT_FOUND",
			},
			{Update: &UpdateStep{Operations: []map[string]any{addPlanet("earth", "Earth")}}},
		},
		Assertions: []Assertion{
			{Type: AssertLogIDs, IDs: []string{"t-2"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "RECORD_NOT_FOUND", result.Trace[0].Error)
}

func TestRun_WrongExpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:   "wrong_expected_error",
		Schema: planetSchema,
		Steps: []Step{
			{Update: &UpdateStep{Operations: []map[string]any{addPlanet("earth", "Earth")}}, ExpectError: "RECORD_NOT_FOUND"},
			{Rollback: "missing", ExpectError: "RECORD_NOT_FOUND"},
		},
		Assertions: []Assertion{
			{Type: AssertLogLength, Length: 1},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected error RECORD_NOT_FOUND, got none")
	assert.Contains(t, result.Errors[1], "expected error RECORD_NOT_FOUND, got")
}

func TestRun_ForkMergeSequentially(t *testing.T) {
	scenario := &Scenario{
		Name:   "fork_merge_sequentially",
		Schema: planetSchema,
		Steps: []Step{
			{Update: &UpdateStep{Operations: []map[string]any{addPlanet("earth", "Earth")}}},
			{Fork: "draft"},
			{Use: "draft"},
			{Update: &UpdateStep{Operations: []map[string]any{addPlanet("mars", "Mars")}}},
			{Update: &UpdateStep{Operations: []map[string]any{addPlanet("venus", "Venus")}}},
			{Use: MainStore},
			{Merge: &MergeStep{From: "draft", Sequential: true}},
		},
		Assertions: []Assertion{
			{Type: AssertLogIDs, IDs: []string{"t-1", "t-2", "t-3"}},
			{Type: AssertRecordExists, Record: ref("planet", "venus")},
			{Type: AssertLogHead, Store: "draft", Transform: "t-3"},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []string{"t-2", "t-3"}, result.Trace[6].Transforms)
	assert.Contains(t, result.State, "draft")
}

func TestRun_Rollback(t *testing.T) {
	scenario := &Scenario{
		Name:   "rollback",
		Schema: planetSchema,
		Steps: []Step{
			{Update: &UpdateStep{ID: "a", Operations: []map[string]any{addPlanet("earth", "Earth")}}},
			{Update: &UpdateStep{ID: "b", Operations: []map[string]any{addPlanet("mars", "Mars")}}},
			{Update: &UpdateStep{ID: "c", Operations: []map[string]any{addPlanet("venus", "Venus")}}},
			{Rollback: "a"},
		},
		Assertions: []Assertion{
			{Type: AssertRecordExists, Record: ref("planet", "earth")},
			{Type: AssertRecordMissing, Record: ref("planet", "mars")},
			{Type: AssertRecordMissing, Record: ref("planet", "venus")},
			{Type: AssertLogIDs, IDs: []string{"a"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []string{"c", "b"}, result.Trace[3].Transforms)
}

func TestRun_UnknownStore(t *testing.T) {
	scenario := &Scenario{
		Name:       "unknown_store",
		Schema:     planetSchema,
		Steps:      []Step{{Use: "nowhere"}},
		Assertions: []Assertion{{Type: AssertLogLength}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `unknown store "nowhere"`)
}

func TestRun_MissingSchema(t *testing.T) {
	scenario := &Scenario{Name: "missing_schema", Schema: "does-not-exist.cue"}

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load schema")
}

func TestRunAll_PreservesOrder(t *testing.T) {
	var scenarios []*Scenario
	for _, name := range []string{"earth", "mars", "venus", "jupiter"} {
		scenarios = append(scenarios, &Scenario{
			Name:   name,
			Schema: planetSchema,
			Steps: []Step{
				{Update: &UpdateStep{ID: name, Operations: []map[string]any{addPlanet(name, name)}}},
			},
			Assertions: []Assertion{{Type: AssertLogHead, Transform: name}},
		})
	}

	results, err := RunAll(context.Background(), scenarios, WithParallelism(2))
	require.NoError(t, err)
	require.Len(t, results, len(scenarios))
	for i, res := range results {
		assert.True(t, res.Pass, res.Errors)
		assert.Equal(t, []string{scenarios[i].Name}, res.State[MainStore].Log)
	}
}

func TestRunAll_SetupFailure(t *testing.T) {
	scenarios := []*Scenario{
		{Name: "broken", Schema: "does-not-exist.cue"},
	}

	_, err := RunAll(context.Background(), scenarios)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario broken")
}
