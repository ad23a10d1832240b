package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioDir holds the conformance scenarios shipped with the repository.
const scenarioDir = "../../testdata/scenarios"

// TestDemoScenarios runs every shipped scenario concurrently. They double
// as reference examples of the scenario format.
func TestDemoScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join(scenarioDir, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	scenarios := make([]*Scenario, len(paths))
	for i, path := range paths {
		scenarios[i], err = LoadScenario(path)
		require.NoError(t, err, "failed to load scenario from %s", path)
		assert.NotEmpty(t, scenarios[i].Description, "scenario should have description")
	}

	results, err := RunAll(context.Background(), scenarios)
	require.NoError(t, err)

	for i, result := range results {
		assert.True(t, result.Pass, "%s: %v", scenarios[i].Name, result.Errors)
		assert.Len(t, result.Trace, len(scenarios[i].Steps), scenarios[i].Name)
	}
}
