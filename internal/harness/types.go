package harness

import "github.com/g-d-g/orbit/internal/model"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int    `json:"seq"`
	Action string `json:"action"` // update, sync, rollback, fork, merge or use
	Store  string `json:"store"`

	// Transforms lists the transform ids the step applied, in order.
	Transforms []string `json:"transforms,omitempty"`

	// Error is the error code of an expected failure.
	Error string `json:"error,omitempty"`
}

// StoreState is the final state of one store.
type StoreState struct {
	Log     []string       `json:"log"`
	Records []model.Record `json:"records"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final state of every store, by name.
	State map[string]StoreState `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]StoreState),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step.
func (r *Result) AddTrace(event TraceEvent) {
	event.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, event)
}
