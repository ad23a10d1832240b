package keymap

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-d-g/orbit/internal/model"
)

func TestPushAndLookup(t *testing.T) {
	m := New()
	m.PushRecord(model.Record{Type: "planet", ID: "1", Keys: map[string]string{"remoteId": "p1"}})

	id, ok := m.KeyToID("planet", "remoteId", "p1")
	require.True(t, ok)
	assert.Equal(t, "1", id)

	value, ok := m.IDToKey("planet", "remoteId", "1")
	require.True(t, ok)
	assert.Equal(t, "p1", value)

	_, ok = m.KeyToID("moon", "remoteId", "p1")
	assert.False(t, ok, "mappings are scoped by type")
}

func TestPushReplacesPriorMapping(t *testing.T) {
	m := New()
	m.Push("planet", "1", map[string]string{"remoteId": "p1"})
	m.Push("planet", "2", map[string]string{"remoteId": "p1"})

	id, ok := m.KeyToID("planet", "remoteId", "p1")
	require.True(t, ok)
	assert.Equal(t, "2", id)

	_, ok = m.IDToKey("planet", "remoteId", "1")
	assert.False(t, ok, "stale reverse entry must be dropped")

	m.Push("planet", "2", map[string]string{"remoteId": "p9"})
	_, ok = m.KeyToID("planet", "remoteId", "p1")
	assert.False(t, ok)
	value, _ := m.IDToKey("planet", "remoteId", "2")
	assert.Equal(t, "p9", value)
}

func TestPushIgnoresEmpty(t *testing.T) {
	m := New()
	m.Push("planet", "1", map[string]string{"remoteId": ""})
	m.Push("", "1", map[string]string{"remoteId": "p1"})

	_, ok := m.IDToKey("planet", "remoteId", "1")
	assert.False(t, ok)
	_, ok = m.KeyToID("", "remoteId", "p1")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	m := New()
	m.Push("planet", "1", map[string]string{"remoteId": "p1", "slug": "earth"})

	m.Remove("planet", "remoteId", "1")

	_, ok := m.KeyToID("planet", "remoteId", "p1")
	assert.False(t, ok)
	_, ok = m.IDToKey("planet", "remoteId", "1")
	assert.False(t, ok)
	id, ok := m.KeyToID("planet", "slug", "earth")
	require.True(t, ok, "other keys stay mapped")
	assert.Equal(t, "1", id)

	m.Remove("planet", "remoteId", "1")
	m.Remove("moon", "remoteId", "9")
}

func TestRemoveKeepsReassignedValue(t *testing.T) {
	m := New()
	m.Push("planet", "1", map[string]string{"remoteId": "p1"})
	m.Push("planet", "2", map[string]string{"remoteId": "p1"})

	m.Remove("planet", "remoteId", "1")

	id, ok := m.KeyToID("planet", "remoteId", "p1")
	require.True(t, ok)
	assert.Equal(t, "2", id)
}

func TestIDFromKeys(t *testing.T) {
	m := New()
	m.Push("planet", "1", map[string]string{"a": "x"})
	m.Push("planet", "2", map[string]string{"b": "y"})

	id, ok := m.IDFromKeys("planet", map[string]string{"b": "y", "a": "x"})
	require.True(t, ok)
	assert.Equal(t, "1", id, "key names are probed in sorted order")

	id, ok = m.IDFromKeys("planet", map[string]string{"a": "nope", "b": "y"})
	require.True(t, ok)
	assert.Equal(t, "2", id)

	_, ok = m.IDFromKeys("planet", map[string]string{"a": "nope"})
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	m := New()
	m.Push("planet", "1", map[string]string{"remoteId": "p1"})
	m.Reset()
	_, ok := m.KeyToID("planet", "remoteId", "p1")
	assert.False(t, ok)
}

func TestConcurrentPush(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("%d", i)
			m.Push("planet", id, map[string]string{"remoteId": "r" + id})
			_, _ = m.KeyToID("planet", "remoteId", "r"+id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		id, ok := m.KeyToID("planet", "remoteId", fmt.Sprintf("r%d", i))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("%d", i), id)
	}
}
