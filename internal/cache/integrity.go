package cache

import (
	"cmp"
	"slices"

	"github.com/g-d-g/orbit/internal/model"
)

// link is one reference to a record: the referencing record and the
// relationship holding the reference.
type link struct {
	record       model.Identity
	relationship string
}

// CacheIntegrityProcessor clears references to a record before the record
// is removed, so no relationship is left pointing at a missing record.
//
// It keeps a reverse index from each referenced record to the links that
// point at it. The index only grows between resets; stale entries are
// dropped when they are next inspected.
type CacheIntegrityProcessor struct {
	BaseProcessor
	cache *Cache
	refs  map[model.Identity]map[link]struct{}
}

// NewCacheIntegrityProcessor is a ProcessorFactory.
func NewCacheIntegrityProcessor(c *Cache) Processor {
	return &CacheIntegrityProcessor{cache: c, refs: make(map[model.Identity]map[link]struct{})}
}

// Before returns the operations that clear every remaining reference to a
// record about to be removed. References kept in sync through a declared
// inverse are left to SchemaConsistencyProcessor.
func (p *CacheIntegrityProcessor) Before(op model.Operation) ([]model.Operation, error) {
	rm, ok := op.(model.RemoveRecord)
	if !ok {
		return nil, nil
	}
	target := rm.Record
	links := p.refs[target]
	if len(links) == 0 {
		return nil, nil
	}
	removed, _ := p.cache.Record(target)

	var ops []model.Operation
	for _, l := range sortedLinks(links) {
		rec, ok := p.cache.Record(l.record)
		rel := rec.Relationships[l.relationship]
		if !ok || !rel.Contains(target) {
			delete(links, l)
			continue
		}
		if l.record == target {
			continue
		}
		def, err := p.cache.schema.Relationship(l.record.Type, l.relationship)
		if err != nil {
			return nil, err
		}
		if def.Inverse != "" && removed.Relationships[def.Inverse].Contains(l.record) {
			continue
		}
		if def.Kind == model.HasMany {
			ops = append(ops, model.RemoveFromHasMany{Record: l.record, Relationship: l.relationship, Related: target})
		} else {
			ops = append(ops, model.ReplaceHasOne{Record: l.record, Relationship: l.relationship})
		}
	}
	if len(links) == 0 {
		delete(p.refs, target)
	}
	return ops, nil
}

// Immediate indexes the references held by the record op just changed.
func (p *CacheIntegrityProcessor) Immediate(op model.Operation) {
	switch op.(type) {
	case model.AddRecord, model.UpdateRecord, model.AddToHasMany, model.ReplaceHasMany, model.ReplaceHasOne:
	default:
		return
	}
	if rec, ok := p.cache.Record(op.Target()); ok {
		p.index(rec)
	}
}

// Reset rebuilds the index from the cache contents.
func (p *CacheIntegrityProcessor) Reset() {
	p.refs = make(map[model.Identity]map[link]struct{})
	for _, rec := range p.cache.Snapshot() {
		p.index(rec)
	}
}

// References returns the indexed links pointing at id, sorted. Stale
// entries may be included.
func (p *CacheIntegrityProcessor) References(id model.Identity) []model.Identity {
	var out []model.Identity
	for _, l := range sortedLinks(p.refs[id]) {
		if !slices.Contains(out, l.record) {
			out = append(out, l.record)
		}
	}
	return out
}

func (p *CacheIntegrityProcessor) index(rec model.Record) {
	self := rec.Identity()
	for name, rel := range rec.Relationships {
		for _, target := range rel.Related() {
			links, ok := p.refs[target]
			if !ok {
				links = make(map[link]struct{})
				p.refs[target] = links
			}
			links[link{record: self, relationship: name}] = struct{}{}
		}
	}
}

func sortedLinks(links map[link]struct{}) []link {
	out := make([]link, 0, len(links))
	for l := range links {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b link) int {
		if c := cmp.Compare(a.record.Type, b.record.Type); c != 0 {
			return c
		}
		if c := cmp.Compare(a.record.ID, b.record.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.relationship, b.relationship)
	})
	return out
}
