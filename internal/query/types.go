package query

import "github.com/g-d-g/orbit/internal/model"

// Expression is a read request against the record graph.
type Expression interface {
	// Op names the expression for logging and events.
	Op() string

	expression()
}

// Predicate filters records in FindRecords.
type Predicate interface {
	predicate()
}

// FindRecord returns one record by identity.
type FindRecord struct {
	Record model.Identity
}

// FindRecords returns every record of Type matching Filter (nil matches all).
type FindRecords struct {
	Type   string
	Filter Predicate
}

// FindRelatedRecord follows a hasOne relationship.
type FindRelatedRecord struct {
	Record       model.Identity
	Relationship string
}

// FindRelatedRecords follows a hasMany relationship.
type FindRelatedRecords struct {
	Record       model.Identity
	Relationship string
}

func (FindRecord) Op() string         { return "findRecord" }
func (FindRecords) Op() string        { return "findRecords" }
func (FindRelatedRecord) Op() string  { return "findRelatedRecord" }
func (FindRelatedRecords) Op() string { return "findRelatedRecords" }

func (FindRecord) expression()         {}
func (FindRecords) expression()        {}
func (FindRelatedRecord) expression()  {}
func (FindRelatedRecords) expression() {}

// AttributeEquals matches records whose attribute equals Value.
// A missing attribute never matches.
type AttributeEquals struct {
	Attribute string
	Value     model.Value
}

// KeyEquals matches records whose key equals Value.
type KeyEquals struct {
	Key   string
	Value string
}

// And matches records that satisfy every predicate.
type And struct {
	Predicates []Predicate
}

func (AttributeEquals) predicate() {}
func (KeyEquals) predicate()       {}
func (And) predicate()             {}

// Where builds an And of attribute equality filters, ordered by attribute
// name.
func Where(attrs model.Object) Predicate {
	keys := attrs.SortedKeys()
	preds := make([]Predicate, len(keys))
	for i, k := range keys {
		preds[i] = AttributeEquals{Attribute: k, Value: attrs[k]}
	}
	return And{Predicates: preds}
}

// Result holds the answer to an expression. FindRecord and
// FindRelatedRecord set Record (nil when a hasOne link is empty); the
// others set Records.
type Result struct {
	Record  *model.Record  `json:"record,omitempty"`
	Records []model.Record `json:"records,omitempty"`
}

// IDs returns the ids of the records in the result.
func (r Result) IDs() []string {
	if r.Record != nil {
		return []string{r.Record.ID}
	}
	ids := make([]string, len(r.Records))
	for i, rec := range r.Records {
		ids[i] = rec.ID
	}
	return ids
}
