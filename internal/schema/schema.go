package schema

import (
	"fmt"
	"slices"
	"sort"

	"github.com/g-d-g/orbit/internal/model"
)

// AttributeDef declares one attribute. Type is one of "string", "int",
// "float", "number", "bool", "array", "object" or "any"; values are not
// checked against it.
type AttributeDef struct {
	Type string `json:"type"`
}

// RelationshipDef declares one relationship of a model.
type RelationshipDef struct {
	Kind    model.RelationshipKind `json:"kind"`
	Model   string                 `json:"model"`
	Inverse string                 `json:"inverse,omitempty"`
}

// ModelDef declares one record type.
type ModelDef struct {
	Name          string                     `json:"name"`
	Attributes    map[string]AttributeDef    `json:"attributes,omitempty"`
	Keys          []string                   `json:"keys,omitempty"`
	Relationships map[string]RelationshipDef `json:"relationships,omitempty"`
}

// HasKey reports whether the model declares the named key.
func (m ModelDef) HasKey(name string) bool {
	return slices.Contains(m.Keys, name)
}

// Schema is an immutable, validated set of model definitions.
// Safe for concurrent use; stores and their forks share one instance.
type Schema struct {
	models map[string]ModelDef
	names  []string
}

// New validates the models and builds a Schema.
//
// Every relationship must target a declared model. A declared inverse must
// exist on the target model and must name this relationship back.
func New(models ...ModelDef) (*Schema, error) {
	s := &Schema{models: make(map[string]ModelDef, len(models))}
	for _, m := range models {
		if m.Name == "" {
			return nil, model.NewSchemaConsistencyError("", "", "model name is required")
		}
		if _, dup := s.models[m.Name]; dup {
			return nil, model.NewSchemaConsistencyError(m.Name, "", fmt.Sprintf("model %q is declared twice", m.Name))
		}
		s.models[m.Name] = m
		s.names = append(s.names, m.Name)
	}
	sort.Strings(s.names)

	for _, name := range s.names {
		m := s.models[name]
		for _, relName := range sortedRelationships(m) {
			if err := s.validateRelationship(m, relName); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (s *Schema) validateRelationship(m ModelDef, relName string) error {
	rel := m.Relationships[relName]
	if rel.Kind != model.HasOne && rel.Kind != model.HasMany {
		return model.NewSchemaConsistencyError(m.Name, relName,
			fmt.Sprintf("relationship %s.%s has unknown kind %q", m.Name, relName, rel.Kind))
	}
	target, ok := s.models[rel.Model]
	if !ok {
		return model.NewSchemaConsistencyError(m.Name, relName,
			fmt.Sprintf("relationship %s.%s targets undeclared model %q", m.Name, relName, rel.Model))
	}
	if rel.Inverse == "" {
		return nil
	}
	inv, ok := target.Relationships[rel.Inverse]
	if !ok {
		return model.NewSchemaConsistencyError(m.Name, relName,
			fmt.Sprintf("inverse %s.%s of %s.%s is not declared", rel.Model, rel.Inverse, m.Name, relName))
	}
	if inv.Model != m.Name || inv.Inverse != relName {
		return model.NewSchemaConsistencyError(m.Name, relName,
			fmt.Sprintf("inverse %s.%s does not name %s.%s back", rel.Model, rel.Inverse, m.Name, relName))
	}
	return nil
}

func sortedRelationships(m ModelDef) []string {
	names := make([]string, 0, len(m.Relationships))
	for name := range m.Relationships {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Model returns the named model definition.
func (s *Schema) Model(name string) (ModelDef, bool) {
	m, ok := s.models[name]
	return m, ok
}

// HasModel reports whether the model is declared.
func (s *Schema) HasModel(name string) bool {
	_, ok := s.models[name]
	return ok
}

// Models returns the declared model names in sorted order.
func (s *Schema) Models() []string {
	return slices.Clone(s.names)
}

// Relationship returns the definition of modelName.relName, or a
// SchemaConsistencyError if either is undeclared.
func (s *Schema) Relationship(modelName, relName string) (RelationshipDef, error) {
	m, ok := s.models[modelName]
	if !ok {
		return RelationshipDef{}, model.NewSchemaConsistencyError(modelName, "",
			fmt.Sprintf("model %q is not declared", modelName))
	}
	rel, ok := m.Relationships[relName]
	if !ok {
		return RelationshipDef{}, model.NewSchemaConsistencyError(modelName, relName,
			fmt.Sprintf("relationship %s.%s is not declared", modelName, relName))
	}
	return rel, nil
}

// RelationshipNames returns the sorted relationship names of a model.
func (s *Schema) RelationshipNames(modelName string) []string {
	m, ok := s.models[modelName]
	if !ok {
		return nil
	}
	return sortedRelationships(m)
}
