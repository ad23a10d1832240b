package taskqueue

import (
	"context"
	"encoding/json"
)

// Task is a queued unit of work. The queue routes Data to the performer
// without interpreting it.
type Task struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Performer executes tasks one at a time.
type Performer interface {
	Perform(ctx context.Context, task Task) error
}

// PerformerFunc adapts a function to Performer.
type PerformerFunc func(ctx context.Context, task Task) error

// Perform calls f(ctx, task).
func (f PerformerFunc) Perform(ctx context.Context, task Task) error {
	return f(ctx, task)
}
