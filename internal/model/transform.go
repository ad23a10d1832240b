package model

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces transform ids.
// Implemented by UUIDv7Generator, FixedIDGenerator and testutil.SequentialIDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 transform ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time, which helps when reading a transform log by eye.
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Transform is an ordered, immutable batch of operations with a unique id.
// Options carries arbitrary caller metadata (e.g. a "label").
type Transform struct {
	ID         string     `json:"id"`
	Operations Operations `json:"operations"`
	Options    Object     `json:"options,omitempty"`
}

// TransformOption configures From.
type TransformOption func(*transformConfig)

type transformConfig struct {
	id      string
	options Object
	ids     IDGenerator
}

// WithID fixes the transform id instead of generating one.
func WithID(id string) TransformOption {
	return func(c *transformConfig) { c.id = id }
}

// WithOptions attaches caller metadata to the transform.
func WithOptions(options Object) TransformOption {
	return func(c *transformConfig) { c.options = options.Clone() }
}

// WithIDGenerator overrides the generator used when no id is given.
func WithIDGenerator(g IDGenerator) TransformOption {
	return func(c *transformConfig) { c.ids = g }
}

var defaultIDs IDGenerator = UUIDv7Generator{}

// From normalises v into a Transform.
//
// v may be a *Transform (returned unchanged, options are ignored), a single
// Operation, or a slice of operations. The operation list is copied, so later
// changes to the caller's slice do not leak into the transform.
func From(v any, opts ...TransformOption) (*Transform, error) {
	var ops []Operation
	switch val := v.(type) {
	case *Transform:
		if val == nil {
			return nil, fmt.Errorf("transform from: nil transform")
		}
		return val, nil
	case Operation:
		ops = []Operation{val}
	case []Operation:
		ops = slices.Clone(val)
	case Operations:
		ops = slices.Clone(val)
	default:
		return nil, fmt.Errorf("transform from: unsupported type %T", v)
	}

	for i, op := range ops {
		if op == nil {
			return nil, fmt.Errorf("transform from: operations[%d] is nil", i)
		}
		if err := CheckIdentities(op); err != nil {
			return nil, err
		}
	}

	cfg := transformConfig{ids: defaultIDs}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = cfg.ids.Generate()
	}

	return &Transform{ID: cfg.id, Operations: ops, Options: cfg.options}, nil
}

// Label returns the "label" option, if it is a string.
func (t *Transform) Label() string {
	if s, ok := t.Options["label"].(String); ok {
		return string(s)
	}
	return ""
}

// FixedIDGenerator returns predetermined ids in order, then falls back to
// "<prefix>-<n>" once the list is exhausted. Safe for concurrent use.
type FixedIDGenerator struct {
	mu     sync.Mutex
	ids    []string
	prefix string
	n      int
}

// NewFixedIDGenerator creates a generator that returns ids in order.
//
//	gen := NewFixedIDGenerator("t", "a", "b")
//	gen.Generate() // "a"
//	gen.Generate() // "b"
//	gen.Generate() // "t-3"
func NewFixedIDGenerator(prefix string, ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{ids: ids, prefix: prefix}
}

// Generate returns the next id.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if g.n <= len(g.ids) {
		return g.ids[g.n-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
