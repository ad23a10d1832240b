package store

import (
	"context"
	"fmt"

	"github.com/g-d-g/orbit/internal/query"
)

// Query answers expr from the cache. beforeQuery listeners run first and
// may abort the query.
func (s *Store) Query(ctx context.Context, expr query.Expression) (query.Result, error) {
	if err := s.FulfillInSeries(ctx, EventBeforeQuery, expr); err != nil {
		err = fmt.Errorf("%s: %w", EventBeforeQuery, err)
		s.settle(ctx, EventQueryFail, expr, err)
		return query.Result{}, err
	}

	res, err := s.evaluate(expr)
	if err != nil {
		s.settle(ctx, EventQueryFail, expr, err)
		return query.Result{}, err
	}
	s.settle(ctx, EventQuery, expr, res)
	return res, nil
}

func (s *Store) evaluate(expr query.Expression) (query.Result, error) {
	if err := query.Validate(expr, s.schema); err != nil {
		return query.Result{}, err
	}
	return query.Evaluate(expr, s.cache)
}
