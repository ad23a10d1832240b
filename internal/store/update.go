package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/taskqueue"
)

// UpdateOption configures Update.
type UpdateOption func(*updateConfig)

type updateConfig struct {
	id      string
	options model.Object
}

// WithID fixes the id of the transform Update builds.
func WithID(id string) UpdateOption {
	return func(c *updateConfig) { c.id = id }
}

// WithOptions attaches metadata to the transform Update builds.
func WithOptions(options model.Object) UpdateOption {
	return func(c *updateConfig) { c.options = options }
}

// Update builds a transform from v (a *model.Transform, an operation or a
// slice of operations), queues it on the request queue and blocks until it
// is applied or fails. A transform whose id is already logged is a no-op.
//
// The returned transform is the one recorded by GetTransform.
func (s *Store) Update(ctx context.Context, v any, opts ...UpdateOption) (*model.Transform, error) {
	var cfg updateConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	tOpts := []model.TransformOption{model.WithIDGenerator(s.ids)}
	if cfg.id != "" {
		tOpts = append(tOpts, model.WithID(cfg.id))
	}
	if cfg.options != nil {
		tOpts = append(tOpts, model.WithOptions(cfg.options))
	}
	t, err := model.From(v, tOpts...)
	if err != nil {
		return nil, err
	}
	return t, s.enqueue(ctx, s.requests, taskUpdate, t)
}

// Sync queues a transform produced elsewhere on the sync queue and blocks
// until it is applied or fails. A transform whose id is already logged is
// a no-op.
func (s *Store) Sync(ctx context.Context, t *model.Transform) error {
	if t == nil {
		return errors.New("store: sync of nil transform")
	}
	return s.enqueue(ctx, s.syncs, taskSync, t)
}

func (s *Store) enqueue(ctx context.Context, q *taskqueue.Queue, kind string, t *model.Transform) error {
	if s.log.Contains(t.ID) {
		s.logger.Debug("transform already applied", "store", s.name, "transform", t.ID, "kind", kind)
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("store: encode transform %s: %w", t.ID, err)
	}

	s.mu.Lock()
	s.pending[t.ID] = t
	s.mu.Unlock()

	err = q.Push(ctx, taskqueue.Task{ID: t.ID, Type: kind, Data: data})
	if err != nil && !errors.Is(err, ctx.Err()) {
		s.mu.Lock()
		if s.pending[t.ID] == t {
			delete(s.pending, t.ID)
		}
		s.mu.Unlock()
	}
	return err
}

// performer serves one queue. Tasks restored from a bucket carry the
// transform only as JSON.
func (s *Store) performer(kind string) taskqueue.PerformerFunc {
	return func(ctx context.Context, task taskqueue.Task) error {
		s.mu.RLock()
		t, ok := s.pending[task.ID]
		s.mu.RUnlock()
		if !ok {
			t = &model.Transform{}
			if err := json.Unmarshal(task.Data, t); err != nil {
				return fmt.Errorf("store: decode transform %s: %w", task.ID, err)
			}
		}
		return s.process(ctx, kind, t)
	}
}

type hooks struct {
	before, done, fail string
}

func hooksFor(kind string) hooks {
	if kind == taskSync {
		return hooks{before: EventBeforeSync, done: EventSync, fail: EventSyncFail}
	}
	return hooks{before: EventBeforeUpdate, done: EventUpdate, fail: EventUpdateFail}
}

func (s *Store) process(ctx context.Context, kind string, t *model.Transform) error {
	if s.log.Contains(t.ID) {
		return nil
	}
	h := hooksFor(kind)

	if err := s.FulfillInSeries(ctx, h.before, t); err != nil {
		err = fmt.Errorf("%s %s: %w", h.before, t.ID, err)
		s.settle(ctx, h.fail, t, err)
		return err
	}
	if err := s.apply(ctx, kind, t); err != nil {
		s.settle(ctx, h.fail, t, err)
		return err
	}
	s.settle(ctx, EventTransform, t)
	s.settle(ctx, h.done, t)
	return nil
}

// settle emits event in series and logs listener failures.
func (s *Store) settle(ctx context.Context, event string, args ...any) {
	if err := s.SettleInSeries(ctx, event, args...); err != nil {
		s.logger.Warn("event listener failed", "store", s.name, "event", event, "error", err)
	}
}

// apply patches the cache with t, logs it and records its inverses.
func (s *Store) apply(ctx context.Context, kind string, t *model.Transform) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if s.log.Contains(t.ID) {
		return nil
	}
	inverses, err := s.cache.Patch(t.Operations...)
	if err != nil {
		s.logger.Error("transform failed", "store", s.name, "transform", t.ID, "kind", kind,
			"applied", len(inverses), "error", err)
		return fmt.Errorf("apply transform %s: %w", t.ID, err)
	}
	appendErr := s.log.Append(ctx, t.ID)
	if appendErr != nil && !s.log.Contains(t.ID) {
		return appendErr
	}

	s.mu.Lock()
	s.transforms[t.ID] = t
	s.inverses[t.ID] = inverses
	delete(s.pending, t.ID)
	s.mu.Unlock()

	s.logger.Info("transform applied", "store", s.name, "transform", t.ID, "kind", kind,
		"operations", len(t.Operations), "inverses", len(inverses))
	return appendErr
}
