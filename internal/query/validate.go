package query

import (
	"errors"
	"fmt"

	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/schema"
)

// ErrNilExpression is returned for a nil expression.
var ErrNilExpression = errors.New("query: nil expression")

// Validate checks expr against s. Undeclared models or relationships and
// relationship kind mismatches are SchemaConsistencyErrors.
func Validate(expr Expression, s *schema.Schema) error {
	switch e := expr.(type) {
	case nil:
		return ErrNilExpression
	case FindRecord:
		return requireModel(s, e.Record.Type)
	case FindRecords:
		if err := requireModel(s, e.Type); err != nil {
			return err
		}
		return validatePredicate(e.Filter)
	case FindRelatedRecord:
		return requireRelationship(s, e.Record, e.Relationship, model.HasOne)
	case FindRelatedRecords:
		return requireRelationship(s, e.Record, e.Relationship, model.HasMany)
	default:
		return fmt.Errorf("query: unknown expression %T", expr)
	}
}

func requireModel(s *schema.Schema, typ string) error {
	if !s.HasModel(typ) {
		return model.NewSchemaConsistencyError(typ, "", fmt.Sprintf("model %q is not declared", typ))
	}
	return nil
}

func requireRelationship(s *schema.Schema, id model.Identity, relName string, kind model.RelationshipKind) error {
	def, err := s.Relationship(id.Type, relName)
	if err != nil {
		return err
	}
	if def.Kind != kind {
		return model.NewSchemaConsistencyError(id.Type, relName,
			fmt.Sprintf("relationship %s.%s is %s, not %s", id.Type, relName, def.Kind, kind))
	}
	return nil
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case AttributeEquals:
		if pred.Attribute == "" {
			return errors.New("query: attribute filter needs an attribute name")
		}
	case KeyEquals:
		if pred.Key == "" {
			return errors.New("query: key filter needs a key name")
		}
	case And:
		for _, sub := range pred.Predicates {
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("query: unknown predicate %T", p)
	}
	return nil
}
