package query

import (
	"fmt"

	"github.com/g-d-g/orbit/internal/model"
)

// Reader is the read surface Evaluate needs. *cache.Cache implements it.
type Reader interface {
	Record(id model.Identity) (model.Record, bool)
	RecordsOf(typ string) []model.Record
}

// Evaluate answers expr from r. A missing primary record, or a missing
// record at the end of a relationship, is a RecordNotFoundError.
func Evaluate(expr Expression, r Reader) (Result, error) {
	switch e := expr.(type) {
	case nil:
		return Result{}, ErrNilExpression

	case FindRecord:
		rec, ok := r.Record(e.Record)
		if !ok {
			return Result{}, model.NewRecordNotFoundError(e.Record)
		}
		return Result{Record: &rec}, nil

	case FindRecords:
		var out []model.Record
		for _, rec := range r.RecordsOf(e.Type) {
			if Matches(e.Filter, rec) {
				out = append(out, rec)
			}
		}
		return Result{Records: out}, nil

	case FindRelatedRecord:
		rec, ok := r.Record(e.Record)
		if !ok {
			return Result{}, model.NewRecordNotFoundError(e.Record)
		}
		rel := rec.Relationships[e.Relationship]
		if rel.One == nil {
			return Result{}, nil
		}
		related, ok := r.Record(*rel.One)
		if !ok {
			return Result{}, model.NewRecordNotFoundError(*rel.One)
		}
		return Result{Record: &related}, nil

	case FindRelatedRecords:
		rec, ok := r.Record(e.Record)
		if !ok {
			return Result{}, model.NewRecordNotFoundError(e.Record)
		}
		ids := rec.Relationships[e.Relationship].Related()
		model.SortIdentities(ids)
		out := make([]model.Record, 0, len(ids))
		for _, id := range ids {
			related, ok := r.Record(id)
			if !ok {
				return Result{}, model.NewRecordNotFoundError(id)
			}
			out = append(out, related)
		}
		return Result{Records: out}, nil

	default:
		return Result{}, fmt.Errorf("query: unknown expression %T", expr)
	}
}

// Matches reports whether rec satisfies p. A nil predicate matches.
func Matches(p Predicate, rec model.Record) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case AttributeEquals:
		v, ok := rec.Attributes[pred.Attribute]
		return ok && model.Equal(v, pred.Value)
	case KeyEquals:
		return rec.Keys[pred.Key] == pred.Value && pred.Value != ""
	case And:
		for _, sub := range pred.Predicates {
			if !Matches(sub, rec) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
