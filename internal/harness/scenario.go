package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/g-d-g/orbit/internal/model"
)

// MainStore is the name of the store every scenario starts with.
const MainStore = "main"

// Scenario defines a conformance test scenario.
// Steps drive one or more stores; assertions check the final records and
// transform logs.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path to the CUE schema the stores are built on.
	// Relative paths are resolved against the scenario file's directory.
	Schema string `yaml:"schema"`

	// Steps run in order against the active store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one of Update, Sync, Rollback, Fork,
// Merge and Use is set.
type Step struct {
	Update *UpdateStep `yaml:"update,omitempty"`
	Sync   *SyncStep   `yaml:"sync,omitempty"`

	// Rollback names the transform to roll the active store back to.
	Rollback string `yaml:"rollback,omitempty"`

	// Fork names the store forked from the active store.
	Fork string `yaml:"fork,omitempty"`

	Merge *MergeStep `yaml:"merge,omitempty"`

	// Use switches the active store.
	Use string `yaml:"use,omitempty"`

	// ExpectError is the error code the step must fail with
	// (e.g. RECORD_NOT_FOUND). A failed update or sync is cleared from its
	// queue so later steps run.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// UpdateStep applies operations through Store.Update.
type UpdateStep struct {
	ID         string           `yaml:"id,omitempty"`
	Options    map[string]any   `yaml:"options,omitempty"`
	Operations []map[string]any `yaml:"operations"`
}

// SyncStep replays a transform logged by another store through Store.Sync.
type SyncStep struct {
	From      string `yaml:"from"`
	Transform string `yaml:"transform"`
}

// MergeStep merges a fork into the active store.
type MergeStep struct {
	From       string         `yaml:"from"`
	Sequential bool           `yaml:"sequential,omitempty"`
	ID         string         `yaml:"id,omitempty"`
	Options    map[string]any `yaml:"options,omitempty"`
}

// RecordRef names a record in YAML.
type RecordRef struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id"`
}

// Identity converts the reference.
func (r RecordRef) Identity() model.Identity {
	return model.Identity{Type: r.Type, ID: r.ID}
}

func (r RecordRef) String() string {
	return r.Identity().String()
}

// Assertion validates the final state of one store.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Store defaults to MainStore.
	Store string `yaml:"store,omitempty"`

	// Record is the subject of the record_* and relationship assertions.
	Record *RecordRef `yaml:"record,omitempty"`

	// Attribute and Value are used by attribute. An absent value expects the
	// attribute to be unset.
	Attribute string `yaml:"attribute,omitempty"`
	Value     any    `yaml:"value,omitempty"`

	// Relationship is used by has_one and has_many.
	Relationship string `yaml:"relationship,omitempty"`

	// Related is the expected has_one target; nil expects an empty link.
	Related *RecordRef `yaml:"related,omitempty"`

	// Members is the expected has_many set, in any order.
	Members []RecordRef `yaml:"members,omitempty"`

	// Transform is the expected log head (log_head).
	Transform string `yaml:"transform,omitempty"`

	// Length is the expected log length (log_length).
	Length int `yaml:"length,omitempty"`

	// IDs is the expected log, oldest first (log_ids).
	IDs []string `yaml:"ids,omitempty"`
}

// Assertion type constants.
const (
	AssertRecordExists  = "record_exists"
	AssertRecordMissing = "record_missing"
	AssertAttribute     = "attribute"
	AssertHasOne        = "has_one"
	AssertHasMany       = "has_many"
	AssertLogHead       = "log_head"
	AssertLogLength     = "log_length"
	AssertLogIDs        = "log_ids"
)

// LoadScenario reads and parses a scenario YAML file.
// The schema path is resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the schema path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) && basePath != "" {
		scenario.Schema = filepath.Join(basePath, scenario.Schema)
	}

	if err := Validate(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// Validate checks that required fields are present and every step and
// assertion is well formed.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); err != nil {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// Action returns the name of the action the step performs, or "" when
// none or several are set.
func (s *Step) Action() string {
	var actions []string
	if s.Update != nil {
		actions = append(actions, "update")
	}
	if s.Sync != nil {
		actions = append(actions, "sync")
	}
	if s.Rollback != "" {
		actions = append(actions, "rollback")
	}
	if s.Fork != "" {
		actions = append(actions, "fork")
	}
	if s.Merge != nil {
		actions = append(actions, "merge")
	}
	if s.Use != "" {
		actions = append(actions, "use")
	}
	if len(actions) != 1 {
		return ""
	}
	return actions[0]
}

func validateStep(index int, s *Step) error {
	switch s.Action() {
	case "":
		return fmt.Errorf("steps[%d]: exactly one of update, sync, rollback, fork, merge, use is required", index)
	case "update":
		if len(s.Update.Operations) == 0 {
			return fmt.Errorf("steps[%d]: update needs at least one operation", index)
		}
		if _, err := s.Update.operations(); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case "sync":
		if s.Sync.From == "" || s.Sync.Transform == "" {
			return fmt.Errorf("steps[%d]: sync needs from and transform", index)
		}
	case "merge":
		if s.Merge.From == "" {
			return fmt.Errorf("steps[%d]: merge needs from", index)
		}
	case "fork":
		if s.Fork == MainStore {
			return fmt.Errorf("steps[%d]: cannot fork into %q", index, MainStore)
		}
	}
	return nil
}

// operations decodes the step's operations through their JSON envelope,
// so YAML operations use the same field names as persisted transforms.
func (u *UpdateStep) operations() ([]model.Operation, error) {
	ops := make([]model.Operation, len(u.Operations))
	for i, raw := range u.Operations {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
		op, err := model.UnmarshalOperation(data)
		if err != nil {
			return nil, fmt.Errorf("operations[%d]: %w", i, err)
		}
		ops[i] = op
	}
	return ops, nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRecordExists, AssertRecordMissing:
		if a.Record == nil {
			return fmt.Errorf("assertions[%d]: record is required for %s", index, a.Type)
		}
	case AssertAttribute:
		if a.Record == nil || a.Attribute == "" {
			return fmt.Errorf("assertions[%d]: record and attribute are required for attribute", index)
		}
	case AssertHasOne, AssertHasMany:
		if a.Record == nil || a.Relationship == "" {
			return fmt.Errorf("assertions[%d]: record and relationship are required for %s", index, a.Type)
		}
	case AssertLogHead:
	case AssertLogLength:
		if a.Length < 0 {
			return fmt.Errorf("assertions[%d]: length must be non-negative for log_length", index)
		}
	case AssertLogIDs:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
