package cache

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/g-d-g/orbit/internal/keymap"
	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/schema"
)

// Cache is the in-memory record graph.
//
// Reads are safe for concurrent use. Patch calls are serialised; processor
// hooks run without the read lock held, so they may read the cache.
type Cache struct {
	schema *schema.Schema
	keymap *keymap.KeyMap
	logger *slog.Logger

	factories  []ProcessorFactory
	processors []Processor

	patchMu sync.Mutex

	mu      sync.RWMutex
	records map[string]map[string]model.Record // type -> id -> record
}

// Option configures a Cache.
type Option func(*config)

type config struct {
	keymap     *keymap.KeyMap
	logger     *slog.Logger
	defaults   bool
	processors []ProcessorFactory
}

// WithKeyMap pushes record keys into km as records are applied.
func WithKeyMap(km *keymap.KeyMap) Option {
	return func(c *config) { c.keymap = km }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithProcessors installs additional processors after the built-in ones.
func WithProcessors(factories ...ProcessorFactory) Option {
	return func(c *config) { c.processors = append(c.processors, factories...) }
}

// WithoutDefaultProcessors skips the built-in schema-consistency,
// cache-integrity and key-map processors.
func WithoutDefaultProcessors() Option {
	return func(c *config) { c.defaults = false }
}

// New creates an empty cache for s.
func New(s *schema.Schema, opts ...Option) *Cache {
	cfg := config{logger: slog.Default(), defaults: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	var factories []ProcessorFactory
	if cfg.defaults {
		factories = append(factories, NewSchemaConsistencyProcessor, NewCacheIntegrityProcessor)
		if cfg.keymap != nil {
			factories = append(factories, NewKeyMapProcessor)
		}
	}
	factories = append(factories, cfg.processors...)

	c := &Cache{
		schema:    s,
		keymap:    cfg.keymap,
		logger:    cfg.logger,
		factories: factories,
		records:   make(map[string]map[string]model.Record),
	}
	c.installProcessors()
	return c
}

func (c *Cache) installProcessors() {
	c.processors = make([]Processor, len(c.factories))
	for i, f := range c.factories {
		c.processors[i] = f(c)
	}
}

// Schema returns the cache's schema.
func (c *Cache) Schema() *schema.Schema { return c.schema }

// KeyMap returns the key map, or nil.
func (c *Cache) KeyMap() *keymap.KeyMap { return c.keymap }

// Processors returns the installed processors in order.
func (c *Cache) Processors() []Processor {
	return append([]Processor(nil), c.processors...)
}

// Record returns a copy of the record with the given identity.
func (c *Cache) Record(id model.Identity) (model.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id.Type][id.ID]
	if !ok {
		return model.Record{}, false
	}
	return r.Clone(), true
}

// Has reports whether the record exists.
func (c *Cache) Has(id model.Identity) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[id.Type][id.ID]
	return ok
}

// Records returns a live, read-only view of the records of typ.
func (c *Cache) Records(typ string) View {
	return View{cache: c, typ: typ}
}

// RecordsOf returns copies of the records of typ ordered by id.
func (c *Cache) RecordsOf(typ string) []model.Record {
	return c.Records(typ).All()
}

// Len returns the total number of records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, byID := range c.records {
		n += len(byID)
	}
	return n
}

// Snapshot returns copies of every record ordered by type, then id.
func (c *Cache) Snapshot() []model.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []model.Record
	for _, byID := range c.records {
		for _, r := range byID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Digest fingerprints the current record state.
func (c *Cache) Digest() (string, error) {
	return model.StateDigest(c.Snapshot())
}

// Reset clears every record and resets the processors. The key map and
// any transform log are left alone.
func (c *Cache) Reset() {
	c.patchMu.Lock()
	defer c.patchMu.Unlock()

	c.mu.Lock()
	c.records = make(map[string]map[string]model.Record)
	c.mu.Unlock()

	for _, p := range c.processors {
		p.Reset()
	}
}

// Clone returns an independent copy of the cache. The clone shares the
// schema and key map and gets freshly built processors.
func (c *Cache) Clone() *Cache {
	c.patchMu.Lock()
	defer c.patchMu.Unlock()

	c.mu.RLock()
	records := make(map[string]map[string]model.Record, len(c.records))
	for typ, byID := range c.records {
		copied := make(map[string]model.Record, len(byID))
		for id, r := range byID {
			copied[id] = r.Clone()
		}
		records[typ] = copied
	}
	c.mu.RUnlock()

	clone := &Cache{
		schema:    c.schema,
		keymap:    c.keymap,
		logger:    c.logger,
		factories: c.factories,
		records:   records,
	}
	clone.installProcessors()
	for _, p := range clone.processors {
		p.Reset()
	}
	return clone
}

// View is a live, read-only view of one record type. Every call reads the
// current cache state.
type View struct {
	cache *Cache
	typ   string
}

// Type returns the viewed record type.
func (v View) Type() string { return v.typ }

// Len returns the number of records of the type.
func (v View) Len() int {
	v.cache.mu.RLock()
	defer v.cache.mu.RUnlock()
	return len(v.cache.records[v.typ])
}

// Get returns a copy of the record with the given id.
func (v View) Get(id string) (model.Record, bool) {
	return v.cache.Record(model.Identity{Type: v.typ, ID: id})
}

// IDs returns the record ids in sorted order.
func (v View) IDs() []string {
	v.cache.mu.RLock()
	defer v.cache.mu.RUnlock()
	ids := make([]string, 0, len(v.cache.records[v.typ]))
	for id := range v.cache.records[v.typ] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns copies of the records ordered by id.
func (v View) All() []model.Record {
	v.cache.mu.RLock()
	defer v.cache.mu.RUnlock()
	byID := v.cache.records[v.typ]
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]model.Record, len(ids))
	for i, id := range ids {
		out[i] = byID[id].Clone()
	}
	return out
}
