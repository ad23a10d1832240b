package harness

import (
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/g-d-g/orbit/internal/model"
)

// GoldenDir holds the golden snapshots, relative to the test's package.
const GoldenDir = "testdata/golden"

// Snapshot renders a result as canonical JSON followed by a newline: the
// trace plus the log and records of every store. Records use the same
// canonical form as state digests.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(model.Array, len(result.Trace))
	for i, ev := range result.Trace {
		obj := model.Object{
			"seq":    model.Int(ev.Seq),
			"action": model.String(ev.Action),
			"store":  model.String(ev.Store),
		}
		if len(ev.Transforms) > 0 {
			obj["transforms"] = stringArray(ev.Transforms)
		}
		if ev.Error != "" {
			obj["error"] = model.String(ev.Error)
		}
		trace[i] = obj
	}

	state := make(model.Object, len(result.State))
	for storeName, st := range result.State {
		data, err := model.CanonicalRecords(st.Records)
		if err != nil {
			return nil, err
		}
		records, err := model.UnmarshalValue(data)
		if err != nil {
			return nil, err
		}
		state[storeName] = model.Object{
			"log":     stringArray(st.Log),
			"records": records,
		}
	}

	data, err := model.MarshalCanonical(model.Object{
		"scenario": model.String(name),
		"trace":    trace,
		"state":    state,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return append(data, '\n'), nil
}

func stringArray(ss []string) model.Array {
	arr := make(model.Array, len(ss))
	for i, s := range ss {
		arr[i] = model.String(s)
	}
	return arr
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
