package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-d-g/orbit/internal/bucket"
	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/store"
	"github.com/g-d-g/orbit/internal/testutil"
)

// persistStore applies one transform to a sqlite-backed store and leaves a
// second one queued behind a failing listener.
func persistStore(t *testing.T, name string) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orbit.db")

	b, err := bucket.OpenSQLite(ctx, path)
	require.NoError(t, err)

	s, err := store.New(ctx, testutil.PlanetSchema(t),
		store.WithName(name),
		store.WithBucket(b),
		store.WithIDGenerator(testutil.NewSequentialIDs("t")),
	)
	require.NoError(t, err)

	_, err = s.Update(ctx, model.Must(model.NewAddRecord(testutil.Planet("earth", "Earth"))))
	require.NoError(t, err)

	s.On(store.EventBeforeUpdate, func(context.Context, ...any) error { return errors.New("offline") })
	_, err = s.Update(ctx, model.Must(model.NewAddRecord(testutil.Planet("mars", "Mars"))),
		store.WithID("queued"),
		store.WithOptions(model.Object{"label": model.String("add mars")}),
	)
	require.Error(t, err)

	require.NoError(t, b.Close())
	return path
}

func runInspectCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"inspect"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func decodeInspect(t *testing.T, out string) InspectResult {
	t.Helper()
	var resp struct {
		Status string        `json:"status"`
		Data   InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestInspectCommand_JSON(t *testing.T) {
	path := persistStore(t, "main")

	out, err := runInspectCommand(t, "--driver", "sqlite", "--path", path, "--format", "json")
	require.NoError(t, err)

	result := decodeInspect(t, out)
	assert.Equal(t, "main", result.Store)
	assert.Equal(t, bucket.DriverSQLite, result.Driver)
	require.Len(t, result.Log, 1)
	assert.Equal(t, "t-1", result.Log[0].ID)

	require.Len(t, result.Requests, 1)
	assert.Equal(t, TaskSummary{ID: "queued", Type: "update", Operations: 1, Label: "add mars"}, result.Requests[0])
	assert.Empty(t, result.Syncs)
}

func TestInspectCommand_Text(t *testing.T) {
	path := persistStore(t, "main")

	out, err := runInspectCommand(t, "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Store main (sqlite)")
	assert.Contains(t, out, "Transform log: 1")
	assert.Contains(t, out, "t-1")
	assert.Contains(t, out, "Requests: 1")
	assert.Contains(t, out, `update  queued  1 op(s)  "add mars"`)
	assert.Contains(t, out, "Syncs: 0")
}

func TestInspectCommand_OtherStore(t *testing.T) {
	path := persistStore(t, "draft")

	out, err := runInspectCommand(t, "--path", path, "--format", "json")
	require.NoError(t, err)
	assert.Empty(t, decodeInspect(t, out).Log)

	out, err = runInspectCommand(t, "--path", path, "--store", "draft", "--format", "json")
	require.NoError(t, err)
	assert.Len(t, decodeInspect(t, out).Log, 1)
}

func TestInspectCommand_EnvironmentOverride(t *testing.T) {
	path := persistStore(t, "main")
	t.Setenv("ORBIT_BUCKET_PATH", path)
	t.Setenv("ORBIT_FORMAT", "json")

	out, err := runInspectCommand(t)
	require.NoError(t, err)
	assert.Len(t, decodeInspect(t, out).Log, 1)
}

func TestInspectCommand_MemoryDriver(t *testing.T) {
	out, err := runInspectCommand(t, "--driver", "memory", "--format", "json")
	require.NoError(t, err)

	result := decodeInspect(t, out)
	assert.Equal(t, bucket.DriverMemory, result.Driver)
	assert.Empty(t, result.Log)
	assert.Empty(t, result.Requests)
}

func TestInspectCommand_BucketErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"sqlite without path", []string{"--driver", "sqlite"}},
		{"unknown driver", []string{"--driver", "etcd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runInspectCommand(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error [E_BUCKET]")
		})
	}
}
