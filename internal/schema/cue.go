package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/g-d-g/orbit/internal/model"
)

// CompileError is a schema authoring error with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads and compiles a CUE schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return CompileString(string(data), path)
}

// CompileString compiles CUE source into a Schema. filename is used only
// for error positions.
func CompileString(src, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// Compile builds a Schema from a CUE value holding a top-level "models"
// struct.
func Compile(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelsVal := v.LookupPath(cue.ParsePath("models"))
	if !modelsVal.Exists() {
		return nil, &CompileError{Field: "models", Message: "models is required", Pos: v.Pos()}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []ModelDef
	for iter.Next() {
		def, err := compileModel(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return New(defs...)
}

func compileModel(name string, v cue.Value) (ModelDef, error) {
	def := ModelDef{
		Name:          name,
		Attributes:    make(map[string]AttributeDef),
		Relationships: make(map[string]RelationshipDef),
	}

	if attrs := v.LookupPath(cue.ParsePath("attributes")); attrs.Exists() {
		iter, err := attrs.Fields()
		if err != nil {
			return def, formatCUEError(err)
		}
		for iter.Next() {
			typ, err := extractTypeName(iter.Value())
			if err != nil {
				return def, err
			}
			def.Attributes[iter.Label()] = AttributeDef{Type: typ}
		}
	}

	if keys := v.LookupPath(cue.ParsePath("keys")); keys.Exists() {
		iter, err := keys.List()
		if err != nil {
			return def, formatCUEError(err)
		}
		for iter.Next() {
			key, err := iter.Value().String()
			if err != nil {
				return def, formatCUEError(err)
			}
			def.Keys = append(def.Keys, key)
		}
	}

	if rels := v.LookupPath(cue.ParsePath("relationships")); rels.Exists() {
		iter, err := rels.Fields()
		if err != nil {
			return def, formatCUEError(err)
		}
		for iter.Next() {
			rel, err := compileRelationship(name, iter.Label(), iter.Value())
			if err != nil {
				return def, err
			}
			def.Relationships[iter.Label()] = rel
		}
	}

	return def, nil
}

func compileRelationship(modelName, relName string, v cue.Value) (RelationshipDef, error) {
	field := fmt.Sprintf("models.%s.relationships.%s", modelName, relName)
	hasOne := v.LookupPath(cue.ParsePath("hasOne"))
	hasMany := v.LookupPath(cue.ParsePath("hasMany"))

	var rel RelationshipDef
	switch {
	case hasOne.Exists() && hasMany.Exists():
		return rel, &CompileError{Field: field, Message: "declare either hasOne or hasMany, not both", Pos: v.Pos()}
	case hasOne.Exists():
		rel.Kind = model.HasOne
		target, err := hasOne.String()
		if err != nil {
			return rel, formatCUEError(err)
		}
		rel.Model = target
	case hasMany.Exists():
		rel.Kind = model.HasMany
		target, err := hasMany.String()
		if err != nil {
			return rel, formatCUEError(err)
		}
		rel.Model = target
	default:
		return rel, &CompileError{Field: field, Message: "hasOne or hasMany is required", Pos: v.Pos()}
	}

	if inv := v.LookupPath(cue.ParsePath("inverse")); inv.Exists() {
		name, err := inv.String()
		if err != nil {
			return rel, formatCUEError(err)
		}
		rel.Inverse = name
	}
	return rel, nil
}

// extractTypeName maps a CUE attribute type onto a value type name.
func extractTypeName(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return "string", nil
	case cue.IntKind:
		return "int", nil
	case cue.BoolKind:
		return "bool", nil
	case cue.ListKind:
		return "array", nil
	case cue.StructKind:
		return "object", nil
	case cue.TopKind:
		return "any", nil
	case cue.FloatKind:
		return "float", nil
	case cue.NumberKind:
		return "number", nil
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
