package cache

import "github.com/g-d-g/orbit/internal/model"

// Processor observes and extends every operation applied to a cache.
//
// Before and After run before the operation is applied and return
// operations to apply first (Before) or right after it (After). Immediate
// runs once the operation has been applied. Finally runs for operations
// passed directly to Patch, after their whole cascade has settled.
//
// Hooks must not call Patch. Operations they return are applied by the
// cache in order, depth first.
type Processor interface {
	Before(op model.Operation) ([]model.Operation, error)
	After(op model.Operation) ([]model.Operation, error)
	Immediate(op model.Operation)
	Finally(op model.Operation) ([]model.Operation, error)
	Reset()
}

// ProcessorFactory builds a processor bound to a cache. Clones of a cache
// call the same factories against the clone.
type ProcessorFactory func(c *Cache) Processor

// BaseProcessor implements every Processor hook as a no-op. Embed it and
// override the hooks you need.
type BaseProcessor struct{}

func (BaseProcessor) Before(model.Operation) ([]model.Operation, error)  { return nil, nil }
func (BaseProcessor) After(model.Operation) ([]model.Operation, error)   { return nil, nil }
func (BaseProcessor) Immediate(model.Operation)                          {}
func (BaseProcessor) Finally(model.Operation) ([]model.Operation, error) { return nil, nil }
func (BaseProcessor) Reset()                                             {}
