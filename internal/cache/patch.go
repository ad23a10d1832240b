package cache

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/g-d-g/orbit/internal/model"
)

type stage int

const (
	stageValidate stage = iota
	stageBefore
	stageApply
	stageFinally
)

// frame is one operation on the patch worklist. idx is the next processor
// whose hook runs in the current stage.
type frame struct {
	op    model.Operation
	key   string
	root  bool
	stage stage
	idx   int
}

// worklist is the explicit cascade stack of a single Patch call.
type worklist struct {
	stack  []*frame
	guard  *cascadeGuard
	logger *slog.Logger
}

func (w *worklist) top() *frame { return w.stack[len(w.stack)-1] }

func (w *worklist) pop() {
	f := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	w.guard.leave(f.key)
}

// push schedules ops so that ops[0] runs next. Operations already
// outstanding in this cascade are dropped.
func (w *worklist) push(ops []model.Operation, root bool) {
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if op == nil {
			continue
		}
		key := model.Key(op)
		if w.guard.wouldCycle(key) {
			w.logger.Debug("skipping operation already in cascade", "op", key)
			continue
		}
		w.guard.enter(key)
		w.stack = append(w.stack, &frame{op: op, key: key, root: root})
	}
}

// Patch applies ops in order through the processor pipeline and returns the
// inverse operations of everything applied, in forward application order.
//
// On failure Patch stops and returns the inverses of the operations applied
// so far together with the error. Those operations are not undone.
func (c *Cache) Patch(ops ...model.Operation) ([]model.Operation, error) {
	c.patchMu.Lock()
	defer c.patchMu.Unlock()

	for i, op := range ops {
		if op == nil {
			return nil, fmt.Errorf("cache: operation %d is nil", i)
		}
	}

	w := &worklist{guard: newCascadeGuard(), logger: c.logger}
	var inverses []model.Operation
	for _, op := range ops {
		w.push([]model.Operation{op}, true)
		for len(w.stack) > 0 {
			inv, err := c.step(w)
			if inv != nil {
				inverses = append(inverses, inv)
			}
			if err != nil {
				return inverses, err
			}
		}
	}
	return inverses, nil
}

// step advances the frame on top of the worklist by one hook call. It
// returns the inverse of the frame's operation when the frame is applied.
func (c *Cache) step(w *worklist) (model.Operation, error) {
	f := w.top()
	switch f.stage {
	case stageValidate:
		if err := c.validate(f.op); err != nil {
			return nil, err
		}
		f.stage = stageBefore

	case stageBefore:
		if f.idx == len(c.processors) {
			f.stage, f.idx = stageApply, 0
			return nil, nil
		}
		p := c.processors[f.idx]
		f.idx++
		ops, err := p.Before(f.op)
		if err != nil {
			return nil, fmt.Errorf("before %s: %w", f.op.Kind(), err)
		}
		w.push(ops, false)

	case stageApply:
		// After hooks see the state the operation is about to change.
		var after []model.Operation
		for _, p := range c.processors {
			ops, err := p.After(f.op)
			if err != nil {
				return nil, fmt.Errorf("after %s: %w", f.op.Kind(), err)
			}
			after = append(after, ops...)
		}
		inv, err := c.apply(f.op)
		if err != nil {
			return nil, err
		}
		for _, p := range c.processors {
			p.Immediate(f.op)
		}
		f.stage = stageFinally
		w.push(after, false)
		return inv, nil

	case stageFinally:
		if !f.root || f.idx == len(c.processors) {
			w.pop()
			return nil, nil
		}
		p := c.processors[f.idx]
		f.idx++
		ops, err := p.Finally(f.op)
		if err != nil {
			return nil, fmt.Errorf("finally %s: %w", f.op.Kind(), err)
		}
		w.push(ops, false)

	default:
		return nil, errors.New("cache: invalid frame stage")
	}
	return nil, nil
}
