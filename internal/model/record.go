package model

import "slices"

// Identity names a record by (type, id).
type Identity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// String renders the identity as "type:id".
func (i Identity) String() string {
	return i.Type + ":" + i.ID
}

// IsZero reports whether both type and id are empty.
func (i Identity) IsZero() bool {
	return i.Type == "" && i.ID == ""
}

// compareIdentity orders identities by type, then id.
func compareIdentity(a, b Identity) int {
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// SortIdentities sorts identities in place by type, then id.
func SortIdentities(ids []Identity) {
	slices.SortFunc(ids, compareIdentity)
}

// RelationshipKind is the cardinality of a relationship.
type RelationshipKind string

const (
	// HasOne links a record to at most one related record.
	HasOne RelationshipKind = "hasOne"
	// HasMany links a record to a set of related records.
	HasMany RelationshipKind = "hasMany"
)

// Relationship holds the linkage of one named relationship.
// One is used for hasOne (nil means "no related record"); Many for hasMany.
type Relationship struct {
	Kind RelationshipKind `json:"kind"`
	One  *Identity        `json:"one,omitempty"`
	Many []Identity       `json:"many,omitempty"`
}

// One builds a hasOne relationship. A nil related identity is an empty link.
func One(related *Identity) Relationship {
	if related == nil {
		return Relationship{Kind: HasOne}
	}
	r := *related
	return Relationship{Kind: HasOne, One: &r}
}

// Many builds a hasMany relationship.
func Many(related ...Identity) Relationship {
	return Relationship{Kind: HasMany, Many: slices.Clone(related)}
}

// Related returns every identity the relationship points at.
func (r Relationship) Related() []Identity {
	if r.Kind == HasOne {
		if r.One == nil {
			return nil
		}
		return []Identity{*r.One}
	}
	return slices.Clone(r.Many)
}

// Contains reports whether the relationship points at id.
func (r Relationship) Contains(id Identity) bool {
	if r.Kind == HasOne {
		return r.One != nil && *r.One == id
	}
	return slices.Contains(r.Many, id)
}

// Clone returns a deep copy of the relationship.
func (r Relationship) Clone() Relationship {
	out := Relationship{Kind: r.Kind}
	if r.One != nil {
		one := *r.One
		out.One = &one
	}
	if r.Many != nil {
		out.Many = slices.Clone(r.Many)
	}
	return out
}

// Record is a node of the normalised record graph.
type Record struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Keys          map[string]string       `json:"keys,omitempty"`
	Attributes    Object                  `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Identity returns the record's (type, id).
func (r Record) Identity() Identity {
	return Identity{Type: r.Type, ID: r.ID}
}

// Attribute returns the named attribute value, or nil if absent.
func (r Record) Attribute(name string) Value {
	return r.Attributes[name]
}

// Relationship returns the named relationship and whether it is set.
func (r Record) Relationship(name string) (Relationship, bool) {
	rel, ok := r.Relationships[name]
	return rel, ok
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := Record{Type: r.Type, ID: r.ID, Attributes: r.Attributes.Clone()}
	if r.Keys != nil {
		out.Keys = make(map[string]string, len(r.Keys))
		for k, v := range r.Keys {
			out.Keys[k] = v
		}
	}
	if r.Relationships != nil {
		out.Relationships = make(map[string]Relationship, len(r.Relationships))
		for k, v := range r.Relationships {
			out.Relationships[k] = v.Clone()
		}
	}
	return out
}

// IsEmpty reports whether the relationship links to nothing.
func (r Relationship) IsEmpty() bool {
	return r.One == nil && len(r.Many) == 0
}

// canonical converts the record into an Object for canonical serialisation.
// Empty keys, unset attributes and empty relationships are omitted, so an
// emptied relationship digests the same as one never set. hasMany members
// are sorted.
func (r Record) canonical() Object {
	obj := Object{
		"type": String(r.Type),
		"id":   String(r.ID),
	}
	keys := make(Object, len(r.Keys))
	for k, v := range r.Keys {
		if v != "" {
			keys[k] = String(v)
		}
	}
	if len(keys) > 0 {
		obj["keys"] = keys
	}
	attrs := make(Object, len(r.Attributes))
	for k, v := range r.Attributes {
		if v != nil {
			attrs[k] = v
		}
	}
	if len(attrs) > 0 {
		obj["attributes"] = attrs
	}
	rels := make(Object, len(r.Relationships))
	for name, rel := range r.Relationships {
		if rel.IsEmpty() {
			continue
		}
		if rel.Kind == HasOne {
			rels[name] = String(rel.One.String())
			continue
		}
		members := rel.Related()
		SortIdentities(members)
		arr := make(Array, len(members))
		for i, m := range members {
			arr[i] = String(m.String())
		}
		rels[name] = arr
	}
	if len(rels) > 0 {
		obj["relationships"] = rels
	}
	return obj
}
