package store

import (
	"context"

	"github.com/g-d-g/orbit/internal/evented"
	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/query"
)

// Updatable accepts locally originated transforms.
type Updatable interface {
	Update(ctx context.Context, v any, opts ...UpdateOption) (*model.Transform, error)
}

// Syncable accepts transforms produced elsewhere.
type Syncable interface {
	Sync(ctx context.Context, t *model.Transform) error
}

// Queryable answers query expressions.
type Queryable interface {
	Query(ctx context.Context, expr query.Expression) (query.Result, error)
}

// Evented lets callers observe a store's events.
type Evented interface {
	On(event string, fn evented.Listener) *evented.Subscription
	One(event string, fn evented.Listener) *evented.Subscription
	Off(event string, sub *evented.Subscription)
	Listeners(event string) []evented.Listener
}

var (
	_ Updatable = (*Store)(nil)
	_ Syncable  = (*Store)(nil)
	_ Queryable = (*Store)(nil)
	_ Evented   = (*Store)(nil)
)
