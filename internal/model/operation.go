package model

import "slices"

// OpKind tags an Operation variant.
type OpKind string

const (
	OpAddRecord         OpKind = "addRecord"
	OpUpdateRecord      OpKind = "updateRecord"
	OpRemoveRecord      OpKind = "removeRecord"
	OpReplaceKey        OpKind = "replaceKey"
	OpReplaceAttribute  OpKind = "replaceAttribute"
	OpAddToHasMany      OpKind = "addToHasMany"
	OpRemoveFromHasMany OpKind = "removeFromHasMany"
	OpReplaceHasMany    OpKind = "replaceHasMany"
	OpReplaceHasOne     OpKind = "replaceHasOne"
)

// Operation describes one mutation to one record or relationship.
//
// This is a sealed interface - only the types in this package implement it.
// The marker method enables exhaustive type switches in the cache and the
// processors.
type Operation interface {
	// Kind returns the variant tag.
	Kind() OpKind
	// Target returns the identity of the record the operation mutates.
	Target() Identity

	operation()
}

// AddRecord inserts a record, replacing any record with the same identity.
type AddRecord struct {
	Record Record
}

// UpdateRecord merges the given keys, attributes and relationships into an
// existing record. Fields absent from Record are left unchanged.
type UpdateRecord struct {
	Record Record
}

// RemoveRecord deletes a record.
type RemoveRecord struct {
	Record Identity
}

// ReplaceKey sets a record key. An empty Value removes the key.
type ReplaceKey struct {
	Record Identity
	Key    string
	Value  string
}

// ReplaceAttribute sets an attribute. A nil Value removes the attribute.
type ReplaceAttribute struct {
	Record    Identity
	Attribute string
	Value     Value
}

// AddToHasMany adds Related to a hasMany relationship.
type AddToHasMany struct {
	Record       Identity
	Relationship string
	Related      Identity
}

// RemoveFromHasMany removes Related from a hasMany relationship.
type RemoveFromHasMany struct {
	Record       Identity
	Relationship string
	Related      Identity
}

// ReplaceHasMany replaces the whole membership of a hasMany relationship.
type ReplaceHasMany struct {
	Record       Identity
	Relationship string
	Related      []Identity
}

// ReplaceHasOne sets a hasOne relationship. A nil Related clears it.
type ReplaceHasOne struct {
	Record       Identity
	Relationship string
	Related      *Identity
}

func (AddRecord) Kind() OpKind         { return OpAddRecord }
func (UpdateRecord) Kind() OpKind      { return OpUpdateRecord }
func (RemoveRecord) Kind() OpKind      { return OpRemoveRecord }
func (ReplaceKey) Kind() OpKind        { return OpReplaceKey }
func (ReplaceAttribute) Kind() OpKind  { return OpReplaceAttribute }
func (AddToHasMany) Kind() OpKind      { return OpAddToHasMany }
func (RemoveFromHasMany) Kind() OpKind { return OpRemoveFromHasMany }
func (ReplaceHasMany) Kind() OpKind    { return OpReplaceHasMany }
func (ReplaceHasOne) Kind() OpKind     { return OpReplaceHasOne }

func (o AddRecord) Target() Identity         { return o.Record.Identity() }
func (o UpdateRecord) Target() Identity      { return o.Record.Identity() }
func (o RemoveRecord) Target() Identity      { return o.Record }
func (o ReplaceKey) Target() Identity        { return o.Record }
func (o ReplaceAttribute) Target() Identity  { return o.Record }
func (o AddToHasMany) Target() Identity      { return o.Record }
func (o RemoveFromHasMany) Target() Identity { return o.Record }
func (o ReplaceHasMany) Target() Identity    { return o.Record }
func (o ReplaceHasOne) Target() Identity     { return o.Record }

func (AddRecord) operation()         {}
func (UpdateRecord) operation()      {}
func (RemoveRecord) operation()      {}
func (ReplaceKey) operation()        {}
func (ReplaceAttribute) operation()  {}
func (AddToHasMany) operation()      {}
func (RemoveFromHasMany) operation() {}
func (ReplaceHasMany) operation()    {}
func (ReplaceHasOne) operation()     {}

func checkIdentity(kind OpKind, id Identity) error {
	if id.Type == "" || id.ID == "" {
		return NewRecordIdentityError(kind, id)
	}
	return nil
}

// CheckIdentities reports a RecordIdentityError when op, or any record it
// links to, lacks a type or id. It covers operations built as literals.
func CheckIdentities(op Operation) error {
	kind := op.Kind()
	if err := checkIdentity(kind, op.Target()); err != nil {
		return err
	}
	var related []Identity
	switch o := op.(type) {
	case AddRecord:
		related = linked(o.Record)
	case UpdateRecord:
		related = linked(o.Record)
	case AddToHasMany:
		related = []Identity{o.Related}
	case RemoveFromHasMany:
		related = []Identity{o.Related}
	case ReplaceHasMany:
		related = o.Related
	case ReplaceHasOne:
		if o.Related != nil {
			related = []Identity{*o.Related}
		}
	}
	for _, r := range related {
		if err := checkIdentity(kind, r); err != nil {
			return err
		}
	}
	return nil
}

func linked(r Record) []Identity {
	var out []Identity
	for _, rel := range r.Relationships {
		if rel.One != nil {
			out = append(out, *rel.One)
		}
		out = append(out, rel.Many...)
	}
	return out
}

// NewAddRecord builds an AddRecord operation from a deep copy of record.
func NewAddRecord(record Record) (Operation, error) {
	if err := checkIdentity(OpAddRecord, record.Identity()); err != nil {
		return nil, err
	}
	return AddRecord{Record: record.Clone()}, nil
}

// NewUpdateRecord builds an UpdateRecord operation from a deep copy of record.
func NewUpdateRecord(record Record) (Operation, error) {
	if err := checkIdentity(OpUpdateRecord, record.Identity()); err != nil {
		return nil, err
	}
	return UpdateRecord{Record: record.Clone()}, nil
}

// NewRemoveRecord builds a RemoveRecord operation.
func NewRemoveRecord(id Identity) (Operation, error) {
	if err := checkIdentity(OpRemoveRecord, id); err != nil {
		return nil, err
	}
	return RemoveRecord{Record: id}, nil
}

// NewReplaceKey builds a ReplaceKey operation.
func NewReplaceKey(id Identity, key, value string) (Operation, error) {
	if err := checkIdentity(OpReplaceKey, id); err != nil {
		return nil, err
	}
	return ReplaceKey{Record: id, Key: key, Value: value}, nil
}

// NewReplaceAttribute builds a ReplaceAttribute operation.
func NewReplaceAttribute(id Identity, attribute string, value Value) (Operation, error) {
	if err := checkIdentity(OpReplaceAttribute, id); err != nil {
		return nil, err
	}
	return ReplaceAttribute{Record: id, Attribute: attribute, Value: CloneValue(value)}, nil
}

// NewAddToHasMany builds an AddToHasMany operation.
func NewAddToHasMany(id Identity, relationship string, related Identity) (Operation, error) {
	if err := checkIdentity(OpAddToHasMany, id); err != nil {
		return nil, err
	}
	if err := checkIdentity(OpAddToHasMany, related); err != nil {
		return nil, err
	}
	return AddToHasMany{Record: id, Relationship: relationship, Related: related}, nil
}

// NewRemoveFromHasMany builds a RemoveFromHasMany operation.
func NewRemoveFromHasMany(id Identity, relationship string, related Identity) (Operation, error) {
	if err := checkIdentity(OpRemoveFromHasMany, id); err != nil {
		return nil, err
	}
	if err := checkIdentity(OpRemoveFromHasMany, related); err != nil {
		return nil, err
	}
	return RemoveFromHasMany{Record: id, Relationship: relationship, Related: related}, nil
}

// NewReplaceHasMany builds a ReplaceHasMany operation.
func NewReplaceHasMany(id Identity, relationship string, related []Identity) (Operation, error) {
	if err := checkIdentity(OpReplaceHasMany, id); err != nil {
		return nil, err
	}
	for _, r := range related {
		if err := checkIdentity(OpReplaceHasMany, r); err != nil {
			return nil, err
		}
	}
	return ReplaceHasMany{Record: id, Relationship: relationship, Related: slices.Clone(related)}, nil
}

// NewReplaceHasOne builds a ReplaceHasOne operation. A nil related clears
// the relationship.
func NewReplaceHasOne(id Identity, relationship string, related *Identity) (Operation, error) {
	if err := checkIdentity(OpReplaceHasOne, id); err != nil {
		return nil, err
	}
	var rel *Identity
	if related != nil {
		if err := checkIdentity(OpReplaceHasOne, *related); err != nil {
			return nil, err
		}
		r := *related
		rel = &r
	}
	return ReplaceHasOne{Record: id, Relationship: relationship, Related: rel}, nil
}

// Must panics if err is non-nil and otherwise returns op.
// Use only in tests or when inputs are known to be valid:
//
//	op := model.Must(model.NewAddRecord(rec))
func Must(op Operation, err error) Operation {
	if err != nil {
		panic(err)
	}
	return op
}

// Key returns a string that identifies the operation's effect. Two
// operations with the same key mutate the same slot to the same value; the
// cache uses it to keep an operation from re-entering its own cascade.
func Key(op Operation) string {
	target := op.Target().String()
	switch o := op.(type) {
	case ReplaceKey:
		return string(o.Kind()) + "|" + target + "|" + o.Key + "=" + o.Value
	case ReplaceAttribute:
		v := "<unset>"
		if o.Value != nil {
			if data, err := MarshalCanonical(o.Value); err == nil {
				v = string(data)
			}
		}
		return string(o.Kind()) + "|" + target + "|" + o.Attribute + "=" + v
	case AddToHasMany:
		return string(o.Kind()) + "|" + target + "|" + o.Relationship + "|" + o.Related.String()
	case RemoveFromHasMany:
		return string(o.Kind()) + "|" + target + "|" + o.Relationship + "|" + o.Related.String()
	case ReplaceHasMany:
		key := string(o.Kind()) + "|" + target + "|" + o.Relationship
		for _, r := range o.Related {
			key += "|" + r.String()
		}
		return key
	case ReplaceHasOne:
		related := "<none>"
		if o.Related != nil {
			related = o.Related.String()
		}
		return string(o.Kind()) + "|" + target + "|" + o.Relationship + "|" + related
	default:
		return string(op.Kind()) + "|" + target
	}
}
