package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireOperation is the JSON envelope for every operation variant:
//
//	{"op": "replaceAttribute", "record": {"type": "planet", "id": "1"},
//	 "attribute": "name", "value": "Jupiter"}
type wireOperation struct {
	Op             OpKind          `json:"op"`
	Record         json.RawMessage `json:"record"`
	Key            string          `json:"key,omitempty"`
	Attribute      string          `json:"attribute,omitempty"`
	Relationship   string          `json:"relationship,omitempty"`
	Value          json.RawMessage `json:"value,omitempty"`
	Related        *Identity       `json:"related,omitempty"`
	RelatedRecords []Identity      `json:"relatedRecords,omitempty"`
}

// MarshalOperation encodes an operation into its JSON envelope.
func MarshalOperation(op Operation) ([]byte, error) {
	w := wireOperation{Op: op.Kind()}
	var record any = op.Target()

	switch o := op.(type) {
	case AddRecord:
		record = o.Record
	case UpdateRecord:
		record = o.Record
	case RemoveRecord:
	case ReplaceKey:
		w.Key = o.Key
		if o.Value != "" {
			v, err := json.Marshal(o.Value)
			if err != nil {
				return nil, err
			}
			w.Value = v
		}
	case ReplaceAttribute:
		w.Attribute = o.Attribute
		if o.Value != nil {
			v, err := MarshalValue(o.Value)
			if err != nil {
				return nil, fmt.Errorf("marshal %s: %w", o.Kind(), err)
			}
			w.Value = v
		}
	case AddToHasMany:
		w.Relationship = o.Relationship
		related := o.Related
		w.Related = &related
	case RemoveFromHasMany:
		w.Relationship = o.Relationship
		related := o.Related
		w.Related = &related
	case ReplaceHasMany:
		w.Relationship = o.Relationship
		w.RelatedRecords = o.Related
	case ReplaceHasOne:
		w.Relationship = o.Relationship
		w.Related = o.Related
	default:
		return nil, fmt.Errorf("marshal operation: unknown type %T", op)
	}

	rec, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal %s record: %w", op.Kind(), err)
	}
	w.Record = rec
	return json.Marshal(w)
}

// UnmarshalOperation decodes a JSON envelope and validates the identity
// through the operation factories.
func UnmarshalOperation(data []byte) (Operation, error) {
	var w wireOperation
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("unmarshal operation: %w", err)
	}
	if len(w.Record) == 0 {
		return nil, fmt.Errorf("unmarshal operation: %q is missing its record", w.Op)
	}

	switch w.Op {
	case OpAddRecord, OpUpdateRecord:
		var rec Record
		if err := json.Unmarshal(w.Record, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal %s record: %w", w.Op, err)
		}
		if w.Op == OpAddRecord {
			return NewAddRecord(rec)
		}
		return NewUpdateRecord(rec)
	}

	var id Identity
	if err := json.Unmarshal(w.Record, &id); err != nil {
		return nil, fmt.Errorf("unmarshal %s record: %w", w.Op, err)
	}

	switch w.Op {
	case OpRemoveRecord:
		return NewRemoveRecord(id)
	case OpReplaceKey:
		var value string
		if len(w.Value) > 0 {
			if err := json.Unmarshal(w.Value, &value); err != nil {
				return nil, fmt.Errorf("unmarshal %s value: %w", w.Op, err)
			}
		}
		return NewReplaceKey(id, w.Key, value)
	case OpReplaceAttribute:
		var value Value
		if len(w.Value) > 0 {
			v, err := unmarshalValue(w.Value)
			if err != nil {
				return nil, fmt.Errorf("unmarshal %s value: %w", w.Op, err)
			}
			value = v
		}
		return NewReplaceAttribute(id, w.Attribute, value)
	case OpAddToHasMany, OpRemoveFromHasMany:
		if w.Related == nil {
			return nil, fmt.Errorf("unmarshal %s: related record is required", w.Op)
		}
		if w.Op == OpAddToHasMany {
			return NewAddToHasMany(id, w.Relationship, *w.Related)
		}
		return NewRemoveFromHasMany(id, w.Relationship, *w.Related)
	case OpReplaceHasMany:
		return NewReplaceHasMany(id, w.Relationship, w.RelatedRecords)
	case OpReplaceHasOne:
		return NewReplaceHasOne(id, w.Relationship, w.Related)
	default:
		return nil, fmt.Errorf("unmarshal operation: unknown op %q", w.Op)
	}
}

// Operations is an ordered operation list with a JSON encoding.
type Operations []Operation

// MarshalJSON implements json.Marshaler.
func (ops Operations) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, len(ops))
	for i, op := range ops {
		data, err := MarshalOperation(op)
		if err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
		raw[i] = data
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ops *Operations) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Operations, len(raw))
	for i, r := range raw {
		op, err := UnmarshalOperation(r)
		if err != nil {
			return fmt.Errorf("operations[%d]: %w", i, err)
		}
		out[i] = op
	}
	*ops = out
	return nil
}
