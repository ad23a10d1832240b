package cache

import (
	"github.com/g-d-g/orbit/internal/keymap"
	"github.com/g-d-g/orbit/internal/model"
)

// KeyMapProcessor pushes record keys into the cache's key map as records
// are added or their keys change.
type KeyMapProcessor struct {
	BaseProcessor
	cache *Cache
	km    *keymap.KeyMap
}

// NewKeyMapProcessor is a ProcessorFactory. The cache must have a key map.
func NewKeyMapProcessor(c *Cache) Processor {
	return &KeyMapProcessor{cache: c, km: c.keymap}
}

func (p *KeyMapProcessor) Immediate(op model.Operation) {
	if p.km == nil {
		return
	}
	switch o := op.(type) {
	case model.AddRecord, model.UpdateRecord:
		if rec, ok := p.cache.Record(op.Target()); ok {
			p.km.PushRecord(rec)
		}
	case model.ReplaceKey:
		if o.Value == "" {
			p.km.Remove(o.Record.Type, o.Key, o.Record.ID)
			return
		}
		p.km.Push(o.Record.Type, o.Record.ID, map[string]string{o.Key: o.Value})
	}
}

// Reset pushes the keys of every cached record. Existing key map entries
// are kept, since the key map may be shared with other stores.
func (p *KeyMapProcessor) Reset() {
	if p.km == nil {
		return
	}
	for _, rec := range p.cache.Snapshot() {
		p.km.PushRecord(rec)
	}
}
