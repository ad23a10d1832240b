package cache

import (
	"slices"

	"github.com/g-d-g/orbit/internal/model"
)

// SchemaConsistencyProcessor keeps both sides of every relationship that
// declares an inverse in agreement. When the forward side of a link changes,
// it emits operations that update the inverse side on related records that
// exist in the cache.
type SchemaConsistencyProcessor struct {
	BaseProcessor
	cache *Cache
}

// NewSchemaConsistencyProcessor is a ProcessorFactory.
func NewSchemaConsistencyProcessor(c *Cache) Processor {
	return &SchemaConsistencyProcessor{cache: c}
}

// After diffs the related identities before and after op and links or
// unlinks the inverse side accordingly.
func (p *SchemaConsistencyProcessor) After(op model.Operation) ([]model.Operation, error) {
	self := op.Target()
	current, _ := p.cache.Record(self)

	var ops []model.Operation
	switch o := op.(type) {
	case model.AddRecord:
		for _, name := range p.inverseRelationships(self.Type) {
			var next []model.Identity
			if rel, ok := o.Record.Relationships[name]; ok {
				next = rel.Related()
			}
			ops = append(ops, p.diff(self, name, related(current, name), next)...)
		}
	case model.UpdateRecord:
		for _, name := range sortedNames(o.Record.Relationships) {
			ops = append(ops, p.diff(self, name, related(current, name), o.Record.Relationships[name].Related())...)
		}
	case model.RemoveRecord:
		for _, name := range p.inverseRelationships(self.Type) {
			ops = append(ops, p.diff(self, name, related(current, name), nil)...)
		}
	case model.AddToHasMany:
		old := related(current, o.Relationship)
		if !slices.Contains(old, o.Related) {
			ops = append(ops, p.diff(self, o.Relationship, old, append(slices.Clone(old), o.Related))...)
		}
	case model.RemoveFromHasMany:
		old := related(current, o.Relationship)
		next := slices.DeleteFunc(slices.Clone(old), func(id model.Identity) bool { return id == o.Related })
		ops = append(ops, p.diff(self, o.Relationship, old, next)...)
	case model.ReplaceHasMany:
		ops = append(ops, p.diff(self, o.Relationship, related(current, o.Relationship), o.Related)...)
	case model.ReplaceHasOne:
		var next []model.Identity
		if o.Related != nil {
			next = []model.Identity{*o.Related}
		}
		ops = append(ops, p.diff(self, o.Relationship, related(current, o.Relationship), next)...)
	}
	return ops, nil
}

func (p *SchemaConsistencyProcessor) inverseRelationships(typ string) []string {
	var names []string
	for _, name := range p.cache.schema.RelationshipNames(typ) {
		if def, err := p.cache.schema.Relationship(typ, name); err == nil && def.Inverse != "" {
			names = append(names, name)
		}
	}
	return names
}

// diff unlinks self from records dropped from old and links it to records
// added in next.
func (p *SchemaConsistencyProcessor) diff(self model.Identity, relName string, old, next []model.Identity) []model.Operation {
	def, err := p.cache.schema.Relationship(self.Type, relName)
	if err != nil || def.Inverse == "" {
		return nil
	}
	var ops []model.Operation
	for _, id := range old {
		if !slices.Contains(next, id) {
			if op := p.unlink(id, def.Inverse, self); op != nil {
				ops = append(ops, op)
			}
		}
	}
	for _, id := range next {
		if !slices.Contains(old, id) {
			if op := p.link(id, def.Inverse, self); op != nil {
				ops = append(ops, op)
			}
		}
	}
	return ops
}

func (p *SchemaConsistencyProcessor) link(target model.Identity, relName string, self model.Identity) model.Operation {
	rec, ok := p.cache.Record(target)
	if !ok {
		return nil
	}
	def, err := p.cache.schema.Relationship(target.Type, relName)
	if err != nil {
		return nil
	}
	if rec.Relationships[relName].Contains(self) {
		return nil
	}
	if def.Kind == model.HasMany {
		return model.AddToHasMany{Record: target, Relationship: relName, Related: self}
	}
	return model.ReplaceHasOne{Record: target, Relationship: relName, Related: &self}
}

func (p *SchemaConsistencyProcessor) unlink(target model.Identity, relName string, self model.Identity) model.Operation {
	rec, ok := p.cache.Record(target)
	if !ok || !rec.Relationships[relName].Contains(self) {
		return nil
	}
	def, err := p.cache.schema.Relationship(target.Type, relName)
	if err != nil {
		return nil
	}
	if def.Kind == model.HasMany {
		return model.RemoveFromHasMany{Record: target, Relationship: relName, Related: self}
	}
	return model.ReplaceHasOne{Record: target, Relationship: relName}
}

func related(r model.Record, relName string) []model.Identity {
	return r.Relationships[relName].Related()
}
