package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/g-d-g/orbit/internal/model"
)

// Rollback restores the state held right after transform id was applied.
// The inverses of every later transform are applied, most recent first,
// the log is rolled back so id is its head, and the undone transforms are
// forgotten. The rollback event receives id and the applied inverses once
// the store is unlocked, so listeners may update or fork it.
//
// Transforms restored from a bucket carry no inverses; rolling back over
// one fails with a TransformNotLoggedError before anything is undone. If an
// inverse fails to apply, the cache may be left partly rolled back and the
// log is not changed.
func (s *Store) Rollback(ctx context.Context, id string) error {
	applied, err := s.rollback(ctx, id)
	if err != nil {
		return err
	}
	s.settle(ctx, EventRollback, id, applied)
	return nil
}

func (s *Store) rollback(ctx context.Context, id string) ([]model.Operation, error) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	undone, err := s.log.After(id)
	if err != nil {
		return nil, err
	}

	inverses := make([][]model.Operation, len(undone))
	s.mu.RLock()
	for i, u := range undone {
		ops, ok := s.inverses[u]
		if !ok {
			s.mu.RUnlock()
			return nil, fmt.Errorf("rollback %s: no inverse operations for %s: %w",
				id, u, model.NewTransformNotLoggedError(u))
		}
		inverses[i] = slices.Clone(ops)
	}
	s.mu.RUnlock()

	var applied []model.Operation
	for i := len(undone) - 1; i >= 0; i-- {
		ops := inverses[i]
		slices.Reverse(ops)

		if _, err := s.cache.Patch(ops...); err != nil {
			return nil, fmt.Errorf("rollback %s: undo %s: %w", id, undone[i], err)
		}
		applied = append(applied, ops...)
	}
	if err := s.log.Rollback(ctx, id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, u := range undone {
		delete(s.transforms, u)
		delete(s.inverses, u)
	}
	s.mu.Unlock()

	s.logger.Info("store rolled back", "store", s.name, "head", id, "undone", len(undone), "inverses", len(applied))
	return applied, nil
}
