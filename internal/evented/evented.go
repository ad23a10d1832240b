// Package evented provides named-event listeners and the two emission
// disciplines the store relies on.
//
// Fulfill runs listeners in registration order and stops at the first error.
// Settle runs every listener in order and joins their errors afterwards. A
// listener blocks for as long as it needs; there is no built-in timeout, so
// callers that need one bound ctx.
package evented

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// Listener handles one emitted event. A non-nil error rejects the event.
type Listener func(ctx context.Context, args ...any) error

// Subscription is a handle returned by On and One, used with Off.
type Subscription struct {
	event    string
	listener Listener
	once     bool
}

// Event returns the event name the subscription listens to.
func (s *Subscription) Event() string { return s.event }

// Emitter holds listeners by event name. Safe for concurrent use.
type Emitter struct {
	mu        sync.Mutex
	listeners map[string][]*Subscription
	logger    *slog.Logger
}

// NewEmitter creates an emitter. A nil logger uses slog.Default().
func NewEmitter(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{listeners: make(map[string][]*Subscription), logger: logger}
}

// On registers fn for event.
func (e *Emitter) On(event string, fn Listener) *Subscription {
	return e.add(event, fn, false)
}

// One registers fn for the next emission of event only.
func (e *Emitter) One(event string, fn Listener) *Subscription {
	return e.add(event, fn, true)
}

func (e *Emitter) add(event string, fn Listener, once bool) *Subscription {
	sub := &Subscription{event: event, listener: fn, once: once}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[event] = append(e.listeners[event], sub)
	return sub
}

// Off removes sub from event. A nil sub removes every listener of event.
func (e *Emitter) Off(event string, sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sub == nil {
		delete(e.listeners, event)
		return
	}
	e.listeners[event] = slices.DeleteFunc(e.listeners[event], func(s *Subscription) bool {
		return s == sub
	})
	if len(e.listeners[event]) == 0 {
		delete(e.listeners, event)
	}
}

// Listeners returns the listeners of event in registration order.
func (e *Emitter) Listeners(event string) []Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Listener, len(e.listeners[event]))
	for i, s := range e.listeners[event] {
		out[i] = s.listener
	}
	return out
}

// take snapshots the listeners of event and drops one-shot subscriptions.
func (e *Emitter) take(event string) []Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	subs := e.listeners[event]
	out := make([]Listener, len(subs))
	kept := subs[:0:0]
	for i, s := range subs {
		out[i] = s.listener
		if !s.once {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(e.listeners, event)
	} else {
		e.listeners[event] = kept
	}
	return out
}

// Emit notifies every listener of event. Listener errors are logged and
// otherwise ignored.
func (e *Emitter) Emit(ctx context.Context, event string, args ...any) {
	for _, fn := range e.take(event) {
		if err := fn(ctx, args...); err != nil {
			e.logger.Warn("event listener failed", "event", event, "error", err)
		}
	}
}

// FulfillInSeries runs Fulfill over the listeners of event.
func (e *Emitter) FulfillInSeries(ctx context.Context, event string, args ...any) error {
	return Fulfill(ctx, e.take(event), args...)
}

// SettleInSeries runs Settle over the listeners of event.
func (e *Emitter) SettleInSeries(ctx context.Context, event string, args ...any) error {
	return Settle(ctx, e.take(event), args...)
}

// Fulfill calls each listener in order, waiting for it to return, and stops
// at the first error. It also stops if ctx ends between listeners.
func Fulfill(ctx context.Context, listeners []Listener, args ...any) error {
	for _, fn := range listeners {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// Settle calls every listener in order, waiting for each, and returns their
// errors joined once all have run.
func Settle(ctx context.Context, listeners []Listener, args ...any) error {
	var errs []error
	for _, fn := range listeners {
		if err := fn(ctx, args...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
