package store

import (
	"context"
	"maps"

	"github.com/g-d-g/orbit/internal/model"
)

// Fork returns an in-memory copy of the store. The fork shares the schema
// and key map, copies the records, transform log and transform history,
// and remembers the current log head as its fork point.
func (s *Store) Fork(ctx context.Context) (*Store, error) {
	s.applyMu.Lock()
	c := s.cache.Clone()
	log := s.log.Clone()
	s.mu.RLock()
	transforms := maps.Clone(s.transforms)
	inverses := maps.Clone(s.inverses)
	s.mu.RUnlock()
	s.applyMu.Unlock()

	fork, err := build(ctx, config{logger: s.logger, ids: s.ids}, c, log)
	if err != nil {
		return nil, err
	}
	fork.transforms = transforms
	fork.inverses = inverses
	fork.forkPoint = log.Head()

	s.logger.Debug("store forked", "store", s.name, "fork_point", fork.forkPoint)
	return fork, nil
}

// MergeOption configures Merge.
type MergeOption func(*mergeConfig)

type mergeConfig struct {
	sequential bool
	options    model.Object
	id         string
}

// Sequentially replays each fork transform through Sync, keeping its id,
// instead of combining them into one transform.
func Sequentially() MergeOption {
	return func(c *mergeConfig) { c.sequential = true }
}

// WithTransformOptions tags the combined transform with options.
func WithTransformOptions(options model.Object) MergeOption {
	return func(c *mergeConfig) { c.options = options }
}

// WithTransformID fixes the id of the combined transform.
func WithTransformID(id string) MergeOption {
	return func(c *mergeConfig) { c.id = id }
}

// Merge applies the transforms fork has applied since its fork point.
// By default their operations are combined into one transform applied
// through Update; that transform is returned. With Sequentially, each is
// synced as is and they are returned in order.
func (s *Store) Merge(ctx context.Context, fork *Store, opts ...MergeOption) ([]*model.Transform, error) {
	var cfg mergeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var transforms []*model.Transform
	if fork.forkPoint == "" {
		transforms = fork.AllTransforms()
	} else {
		var err error
		if transforms, err = fork.TransformsSince(fork.forkPoint); err != nil {
			return nil, err
		}
	}
	if len(transforms) == 0 {
		return nil, nil
	}

	if cfg.sequential {
		for _, t := range transforms {
			if err := s.Sync(ctx, t); err != nil {
				return nil, err
			}
		}
		return transforms, nil
	}

	var ops []model.Operation
	for _, t := range transforms {
		ops = append(ops, t.Operations...)
	}
	var uOpts []UpdateOption
	if cfg.options != nil {
		uOpts = append(uOpts, WithOptions(cfg.options))
	}
	if cfg.id != "" {
		uOpts = append(uOpts, WithID(cfg.id))
	}
	t, err := s.Update(ctx, ops, uOpts...)
	if err != nil {
		return nil, err
	}
	return []*model.Transform{t}, nil
}
