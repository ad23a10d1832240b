package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Store    string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Log      []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s (store %s)\n", e.Type, e.Store)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "  Log: [%s]\n", strings.Join(e.Log, ", "))
	return buf.String()
}

// EvaluateAssertions checks every assertion against the named stores and
// returns the failure messages.
func EvaluateAssertions(stores map[string]*store.Store, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		name := a.Store
		if name == "" {
			name = MainStore
		}
		s, ok := stores[name]
		if !ok {
			failures = append(failures, fmt.Sprintf("assertions[%d]: unknown store %q", i, name))
			continue
		}
		if err := evaluate(s, name, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(s *store.Store, name string, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{
			Type:     a.Type,
			Store:    name,
			Expected: expected,
			Actual:   actual,
			Log:      s.TransformLog().IDs(),
		}
	}

	switch a.Type {
	case AssertLogHead:
		if head := s.TransformLog().Head(); head != a.Transform {
			return fail(fmt.Sprintf("head %q", a.Transform), fmt.Sprintf("head %q", head))
		}
		return nil
	case AssertLogLength:
		if n := s.TransformLog().Len(); n != a.Length {
			return fail(fmt.Sprintf("%d transforms", a.Length), fmt.Sprintf("%d transforms", n))
		}
		return nil
	case AssertLogIDs:
		ids := s.TransformLog().IDs()
		if !slices.Equal(ids, a.IDs) && (len(ids) > 0 || len(a.IDs) > 0) {
			return fail(fmt.Sprintf("[%s]", strings.Join(a.IDs, ", ")), fmt.Sprintf("[%s]", strings.Join(ids, ", ")))
		}
		return nil
	}

	id := a.Record.Identity()
	rec, ok := s.Cache().Record(id)

	switch a.Type {
	case AssertRecordExists:
		if !ok {
			return fail(id.String()+" exists", "not found")
		}
		return nil
	case AssertRecordMissing:
		if ok {
			return fail(id.String()+" missing", "found")
		}
		return nil
	}

	if !ok {
		return fail(id.String()+" exists", "not found")
	}

	switch a.Type {
	case AssertAttribute:
		want, err := model.FromAny(a.Value)
		if err != nil {
			return fmt.Errorf("%s: value: %w", a.Type, err)
		}
		got := rec.Attribute(a.Attribute)
		if got == nil {
			got = model.Null{}
		}
		if !model.Equal(want, got) {
			return fail(fmt.Sprintf("%s.%s = %s", id, a.Attribute, render(want)), render(got))
		}
	case AssertHasOne:
		var got string
		if rel, ok := rec.Relationship(a.Relationship); ok && rel.One != nil {
			got = rel.One.String()
		}
		var want string
		if a.Related != nil {
			want = a.Related.String()
		}
		if got != want {
			return fail(fmt.Sprintf("%s.%s -> %q", id, a.Relationship, want), fmt.Sprintf("%q", got))
		}
	case AssertHasMany:
		var got []string
		if rel, ok := rec.Relationship(a.Relationship); ok {
			for _, m := range rel.Related() {
				got = append(got, m.String())
			}
		}
		want := make([]string, len(a.Members))
		for i, m := range a.Members {
			want[i] = m.String()
		}
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) && (len(got) > 0 || len(want) > 0) {
			return fail(fmt.Sprintf("%s.%s = [%s]", id, a.Relationship, strings.Join(want, ", ")),
				fmt.Sprintf("[%s]", strings.Join(got, ", ")))
		}
	}
	return nil
}

func render(v model.Value) string {
	data, err := model.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
