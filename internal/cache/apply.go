package cache

import (
	"fmt"
	"slices"

	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/schema"
)

// validate checks op against the schema and the current records.
func (c *Cache) validate(op model.Operation) error {
	if err := model.CheckIdentities(op); err != nil {
		return err
	}
	target := op.Target()
	m, ok := c.schema.Model(target.Type)
	if !ok {
		return model.NewSchemaConsistencyError(target.Type, "",
			fmt.Sprintf("model %q is not declared", target.Type))
	}

	switch o := op.(type) {
	case model.AddRecord:
		return c.validateRecord(m, o.Record)
	case model.UpdateRecord:
		if err := c.validateRecord(m, o.Record); err != nil {
			return err
		}
	case model.AddToHasMany:
		if err := c.validateLink(m.Name, o.Relationship, model.HasMany, o.Related); err != nil {
			return err
		}
	case model.RemoveFromHasMany:
		if err := c.validateLink(m.Name, o.Relationship, model.HasMany, o.Related); err != nil {
			return err
		}
	case model.ReplaceHasMany:
		if err := c.validateLink(m.Name, o.Relationship, model.HasMany, o.Related...); err != nil {
			return err
		}
	case model.ReplaceHasOne:
		var related []model.Identity
		if o.Related != nil {
			related = append(related, *o.Related)
		}
		if err := c.validateLink(m.Name, o.Relationship, model.HasOne, related...); err != nil {
			return err
		}
	}

	if !c.Has(target) {
		return model.NewRecordNotFoundError(target)
	}
	return nil
}

func (c *Cache) validateRecord(m schema.ModelDef, r model.Record) error {
	for _, name := range sortedNames(r.Relationships) {
		rel := r.Relationships[name]
		def, err := c.schema.Relationship(m.Name, name)
		if err != nil {
			return err
		}
		kind := rel.Kind
		if kind == "" {
			kind = def.Kind
		}
		switch {
		case kind != def.Kind,
			kind == model.HasOne && len(rel.Many) > 0,
			kind == model.HasMany && rel.One != nil:
			return model.NewSchemaConsistencyError(m.Name, name,
				fmt.Sprintf("relationship %s.%s is %s", m.Name, name, def.Kind))
		}
		if err := checkRelatedType(m.Name, name, def, rel.Related()...); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) validateLink(modelName, relName string, kind model.RelationshipKind, related ...model.Identity) error {
	def, err := c.schema.Relationship(modelName, relName)
	if err != nil {
		return err
	}
	if def.Kind != kind {
		return model.NewSchemaConsistencyError(modelName, relName,
			fmt.Sprintf("relationship %s.%s is %s, not %s", modelName, relName, def.Kind, kind))
	}
	return checkRelatedType(modelName, relName, def, related...)
}

func checkRelatedType(modelName, relName string, def schema.RelationshipDef, related ...model.Identity) error {
	for _, id := range related {
		if id.Type != def.Model {
			return model.NewSchemaConsistencyError(modelName, relName,
				fmt.Sprintf("relationship %s.%s relates %q, got %s", modelName, relName, def.Model, id))
		}
	}
	return nil
}

// apply mutates the record graph and returns the inverse of op, or nil if
// op changed nothing.
//
// Stored records are never modified in place; every change stores a fresh
// copy, so records handed out earlier stay valid.
func (c *Cache) apply(op model.Operation) (model.Operation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := op.Target()
	prior, exists := c.records[id.Type][id.ID]

	switch o := op.(type) {
	case model.AddRecord:
		c.put(c.build(o.Record))
		if exists {
			return model.AddRecord{Record: prior}, nil
		}
		return model.RemoveRecord{Record: id}, nil
	}

	if !exists {
		return nil, model.NewRecordNotFoundError(id)
	}

	switch o := op.(type) {
	case model.UpdateRecord:
		next := prior.Clone()
		merge(&next, c.normalize(o.Record))
		c.put(next)
		return model.AddRecord{Record: prior}, nil

	case model.RemoveRecord:
		delete(c.records[id.Type], id.ID)
		if len(c.records[id.Type]) == 0 {
			delete(c.records, id.Type)
		}
		return model.AddRecord{Record: prior}, nil

	case model.ReplaceKey:
		old := prior.Keys[o.Key]
		if old == o.Value {
			return nil, nil
		}
		next := prior.Clone()
		setKey(&next, o.Key, o.Value)
		c.put(next)
		return model.ReplaceKey{Record: id, Key: o.Key, Value: old}, nil

	case model.ReplaceAttribute:
		old := prior.Attributes[o.Attribute]
		if model.Equal(old, o.Value) {
			return nil, nil
		}
		next := prior.Clone()
		setAttribute(&next, o.Attribute, model.CloneValue(o.Value))
		c.put(next)
		return model.ReplaceAttribute{Record: id, Attribute: o.Attribute, Value: old}, nil

	case model.AddToHasMany:
		rel := prior.Relationships[o.Relationship]
		if rel.Contains(o.Related) {
			return nil, nil
		}
		next := prior.Clone()
		setRelationship(&next, o.Relationship, model.Many(append(rel.Related(), o.Related)...))
		c.put(next)
		return model.RemoveFromHasMany{Record: id, Relationship: o.Relationship, Related: o.Related}, nil

	case model.RemoveFromHasMany:
		rel := prior.Relationships[o.Relationship]
		if !rel.Contains(o.Related) {
			return nil, nil
		}
		members := slices.DeleteFunc(rel.Related(), func(r model.Identity) bool { return r == o.Related })
		next := prior.Clone()
		setRelationship(&next, o.Relationship, model.Many(members...))
		c.put(next)
		return model.AddToHasMany{Record: id, Relationship: o.Relationship, Related: o.Related}, nil

	case model.ReplaceHasMany:
		old := prior.Relationships[o.Relationship].Related()
		members := dedupe(o.Related)
		if sameMembers(old, members) {
			return nil, nil
		}
		next := prior.Clone()
		setRelationship(&next, o.Relationship, model.Many(members...))
		c.put(next)
		return model.ReplaceHasMany{Record: id, Relationship: o.Relationship, Related: old}, nil

	case model.ReplaceHasOne:
		old := prior.Relationships[o.Relationship].One
		if samePointer(old, o.Related) {
			return nil, nil
		}
		next := prior.Clone()
		setRelationship(&next, o.Relationship, model.One(o.Related))
		c.put(next)
		return model.ReplaceHasOne{Record: id, Relationship: o.Relationship, Related: old}, nil
	}
	return nil, fmt.Errorf("cache: unsupported operation %T", op)
}

func (c *Cache) put(r model.Record) {
	byID, ok := c.records[r.Type]
	if !ok {
		byID = make(map[string]model.Record)
		c.records[r.Type] = byID
	}
	byID[r.ID] = r
}

// normalize copies r, filling relationship kinds from the schema and
// removing duplicate hasMany members. Empty fields are kept so that an
// update can use them to clear values.
func (c *Cache) normalize(r model.Record) model.Record {
	out := r.Clone()
	for name, rel := range out.Relationships {
		if def, err := c.schema.Relationship(r.Type, name); err == nil {
			rel.Kind = def.Kind
		}
		if rel.Kind == model.HasMany {
			rel.Many = dedupe(rel.Many)
		}
		out.Relationships[name] = rel
	}
	return out
}

// build turns r into a stored record with empty keys, unset attributes and
// empty relationships dropped.
func (c *Cache) build(r model.Record) model.Record {
	out := model.Record{Type: r.Type, ID: r.ID}
	merge(&out, c.normalize(r))
	return out
}

// merge overlays the fields present in update onto r.
func merge(r *model.Record, update model.Record) {
	for k, v := range update.Keys {
		setKey(r, k, v)
	}
	for k, v := range update.Attributes {
		setAttribute(r, k, v)
	}
	for name, rel := range update.Relationships {
		setRelationship(r, name, rel)
	}
}

func setKey(r *model.Record, key, value string) {
	if value == "" {
		delete(r.Keys, key)
		if len(r.Keys) == 0 {
			r.Keys = nil
		}
		return
	}
	if r.Keys == nil {
		r.Keys = make(map[string]string)
	}
	r.Keys[key] = value
}

func setAttribute(r *model.Record, name string, value model.Value) {
	if value == nil {
		delete(r.Attributes, name)
		if len(r.Attributes) == 0 {
			r.Attributes = nil
		}
		return
	}
	if r.Attributes == nil {
		r.Attributes = make(model.Object)
	}
	r.Attributes[name] = value
}

func setRelationship(r *model.Record, name string, rel model.Relationship) {
	if rel.IsEmpty() {
		delete(r.Relationships, name)
		if len(r.Relationships) == 0 {
			r.Relationships = nil
		}
		return
	}
	if r.Relationships == nil {
		r.Relationships = make(map[string]model.Relationship)
	}
	r.Relationships[name] = rel
}

func dedupe(ids []model.Identity) []model.Identity {
	var out []model.Identity
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func sameMembers(a, b []model.Identity) bool {
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !slices.Contains(b, id) {
			return false
		}
	}
	return true
}

func samePointer(a, b *model.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
