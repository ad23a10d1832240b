// Package keymap maps secondary record keys (such as a remote id) to local
// record ids and back.
//
// Mappings are scoped by record type: the same key value may map to
// different ids for different types. A KeyMap is shared by reference between
// a store and its forks, so every method is safe for concurrent use.
package keymap

import (
	"sort"
	"sync"

	"github.com/g-d-g/orbit/internal/model"
)

// KeyMap is a bidirectional (type, key name, key value) <-> id index.
type KeyMap struct {
	mu sync.RWMutex

	// keyToID[type][keyName][keyValue] = id
	keyToID map[string]map[string]map[string]string

	// idToKey[type][keyName][id] = keyValue
	idToKey map[string]map[string]map[string]string
}

// New creates an empty key map.
func New() *KeyMap {
	return &KeyMap{
		keyToID: make(map[string]map[string]map[string]string),
		idToKey: make(map[string]map[string]map[string]string),
	}
}

// PushRecord records every non-empty key of the record.
func (m *KeyMap) PushRecord(r model.Record) {
	m.Push(r.Type, r.ID, r.Keys)
}

// Push records the keys of the record (typ, id). Empty key values are
// ignored. A later push for the same (type, key, value) replaces the prior
// id, and a later push for the same (type, key, id) replaces the prior
// value; stale entries on the other side are dropped.
func (m *KeyMap) Push(typ, id string, keys map[string]string) {
	if typ == "" || id == "" || len(keys) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for name, value := range keys {
		if value == "" {
			continue
		}
		byValue := nested(m.keyToID, typ, name)
		byID := nested(m.idToKey, typ, name)

		if prevID, ok := byValue[value]; ok && prevID != id {
			delete(byID, prevID)
		}
		if prevValue, ok := byID[id]; ok && prevValue != value {
			delete(byValue, prevValue)
		}
		byValue[value] = id
		byID[id] = value
	}
}

// Remove drops the keyName mapping of the record (typ, id) in both
// directions.
func (m *KeyMap) Remove(typ, keyName, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.idToKey[typ][keyName]
	value, ok := byID[id]
	if !ok {
		return
	}
	delete(byID, id)
	if byValue := m.keyToID[typ][keyName]; byValue[value] == id {
		delete(byValue, value)
	}
}

func nested(root map[string]map[string]map[string]string, typ, name string) map[string]string {
	byName, ok := root[typ]
	if !ok {
		byName = make(map[string]map[string]string)
		root[typ] = byName
	}
	leaf, ok := byName[name]
	if !ok {
		leaf = make(map[string]string)
		byName[name] = leaf
	}
	return leaf
}

// KeyToID returns the id mapped to (typ, keyName, keyValue).
func (m *KeyMap) KeyToID(typ, keyName, keyValue string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.keyToID[typ][keyName][keyValue]
	return id, ok
}

// IDToKey returns the value of keyName for the record (typ, id).
func (m *KeyMap) IDToKey(typ, keyName, id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.idToKey[typ][keyName][id]
	return value, ok
}

// IDFromKeys resolves a record id from any of the given keys. Key names are
// probed in sorted order and the first match wins.
func (m *KeyMap) IDFromKeys(typ string, keys map[string]string) (string, bool) {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range names {
		if id, ok := m.keyToID[typ][name][keys[name]]; ok {
			return id, true
		}
	}
	return "", false
}

// Reset forgets every mapping.
func (m *KeyMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyToID = make(map[string]map[string]map[string]string)
	m.idToKey = make(map[string]map[string]map[string]string)
}
