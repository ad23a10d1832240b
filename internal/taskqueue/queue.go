// Package taskqueue implements a persisted FIFO queue of tasks served one at
// a time by a single performer.
//
// Each task moves pending -> processing -> settled or failed. A failed task
// halts the queue: later tasks stay pending until the caller calls Retry,
// Skip or Clear. When a bucket is configured the full task list is persisted
// before the performer runs and after every settle, skip and clear, so a
// restarted process resumes from the first unfinished task.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/g-d-g/orbit/internal/bucket"
)

var (
	// ErrTaskCleared is delivered to waiters of tasks dropped by Clear.
	ErrTaskCleared = errors.New("task queue: task cleared")

	// ErrTaskSkipped is delivered to the waiter of a pending task dropped by
	// Skip.
	ErrTaskSkipped = errors.New("task queue: task skipped")

	// ErrNotFailed is returned by Retry when the queue is not halted.
	ErrNotFailed = errors.New("task queue: no failed task to retry")

	// ErrBusy is returned by Skip while the head task is being performed.
	ErrBusy = errors.New("task queue: head task is processing")
)

type item struct {
	task Task
	done chan error // buffered 1; receives the settle result once
}

func newItem(task Task) *item {
	return &item{task: task, done: make(chan error, 1)}
}

// Queue is a persisted, strictly FIFO task queue.
// Safe for concurrent use.
type Queue struct {
	name      string
	performer Performer
	bucket    bucket.Bucket
	logger    *slog.Logger
	ctx       context.Context

	mu         sync.Mutex
	items      []*item
	started    bool
	running    bool // run goroutine active
	processing bool // head task inside Perform
	err        error
	changed    chan struct{} // closed and replaced on every state change
}

// Option configures a Queue.
type Option func(*config)

type config struct {
	bucket      bucket.Bucket
	logger      *slog.Logger
	autoProcess bool
}

// WithBucket persists the task list under the queue's name.
func WithBucket(b bucket.Bucket) Option {
	return func(c *config) { c.bucket = b }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithAutoProcess controls whether the queue starts processing on
// construction (the default). When disabled, nothing is performed until
// Process is called.
func WithAutoProcess(enabled bool) Option {
	return func(c *config) { c.autoProcess = enabled }
}

// New creates a queue named name. Persisted tasks are reified from the
// bucket. ctx is passed to the performer with its cancellation removed;
// tasks are never cancelled mid-flight.
func New(ctx context.Context, name string, performer Performer, opts ...Option) (*Queue, error) {
	if performer == nil {
		return nil, errors.New("task queue: performer is required")
	}
	cfg := config{logger: slog.Default(), autoProcess: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bucket != nil && name == "" {
		return nil, errors.New("task queue: a bucket-backed queue requires a name")
	}

	q := &Queue{
		name:      name,
		performer: performer,
		bucket:    cfg.bucket,
		logger:    cfg.logger,
		ctx:       context.WithoutCancel(ctx),
		changed:   make(chan struct{}),
	}

	if q.bucket != nil {
		var tasks []Task
		if _, err := bucket.GetJSON(ctx, q.bucket, name, &tasks); err != nil {
			return nil, fmt.Errorf("task queue %s: restore: %w", name, err)
		}
		for _, t := range tasks {
			q.items = append(q.items, newItem(t))
		}
		if len(tasks) > 0 {
			q.logger.Info("task queue restored", "queue", name, "tasks", len(tasks))
		}
	}
	pendingTasks.WithLabelValues(name).Set(float64(len(q.items)))

	if cfg.autoProcess {
		q.Process()
	}
	return q, nil
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Process starts processing if it has not started yet. Later pushes are
// processed automatically.
func (q *Queue) Process() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.started = true
	q.kick()
}

// Push queues task and blocks until it settles. If ctx ends first, Push
// returns ctx.Err() and the task stays queued.
func (q *Queue) Push(ctx context.Context, task Task) error {
	done, err := q.Enqueue(ctx, task)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue queues task and returns a channel that receives its settle result.
// A task without an id is given a UUIDv7. The task list is persisted before
// Enqueue returns; on persistence failure the task is not queued.
func (q *Queue) Enqueue(ctx context.Context, task Task) (<-chan error, error) {
	if task.ID == "" {
		task.ID = uuid.Must(uuid.NewV7()).String()
	}
	it := newItem(task)

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, it)
	if err := q.persist(ctx); err != nil {
		q.items = q.items[:len(q.items)-1]
		return nil, err
	}
	pendingTasks.WithLabelValues(q.name).Set(float64(len(q.items)))
	q.kick()
	q.notify()
	return it.done, nil
}

// kick starts the run goroutine when there is work and nothing halts it.
// Callers hold q.mu.
func (q *Queue) kick() {
	if !q.started || q.running || q.err != nil || len(q.items) == 0 {
		return
	}
	q.running = true
	go q.run()
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.err != nil {
			q.running = false
			q.notify()
			q.mu.Unlock()
			return
		}
		it := q.items[0]
		q.processing = true
		q.notify()
		q.mu.Unlock()

		start := time.Now()
		err := q.performer.Perform(q.ctx, it.task)
		performDuration.WithLabelValues(q.name).Observe(time.Since(start).Seconds())

		q.mu.Lock()
		q.processing = false
		done := it.done
		if err != nil {
			q.err = err
			q.running = false
			q.notify()
			q.mu.Unlock()

			tasksTotal.WithLabelValues(q.name, outcomeFailed).Inc()
			q.logger.Error("task failed", "queue", q.name, "task", it.task.ID, "type", it.task.Type, "error", err)
			done <- err
			return
		}

		q.items[0] = nil
		q.items = q.items[1:]
		persistErr := q.persist(q.ctx)
		pendingTasks.WithLabelValues(q.name).Set(float64(len(q.items)))
		q.notify()
		q.mu.Unlock()

		if persistErr != nil {
			// The task did settle; only its removal from the bucket is lost.
			q.logger.Error("task queue persist failed", "queue", q.name, "task", it.task.ID, "error", persistErr)
		}
		tasksTotal.WithLabelValues(q.name, outcomeSettled).Inc()
		done <- nil
	}
}

// Retry re-performs the failed head task and blocks until it settles.
func (q *Queue) Retry(ctx context.Context) error {
	q.mu.Lock()
	if q.err == nil || len(q.items) == 0 {
		q.mu.Unlock()
		return ErrNotFailed
	}
	it := q.items[0]
	it.done = make(chan error, 1)
	done := it.done
	q.err = nil
	q.logger.Info("retrying task", "queue", q.name, "task", it.task.ID)
	q.kick()
	q.notify()
	q.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Skip drops the head task and resumes processing. A pending head task's
// waiter receives ErrTaskSkipped; a failed head's waiter already has its
// error. Skip on an empty queue is a no-op.
func (q *Queue) Skip(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.processing {
		return ErrBusy
	}
	if len(q.items) == 0 {
		return nil
	}

	it := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	failed := q.err != nil
	q.err = nil
	persistErr := q.persist(ctx)
	pendingTasks.WithLabelValues(q.name).Set(float64(len(q.items)))
	tasksTotal.WithLabelValues(q.name, outcomeSkipped).Inc()
	if !failed {
		it.done <- ErrTaskSkipped
	}
	q.logger.Info("task skipped", "queue", q.name, "task", it.task.ID)
	q.kick()
	q.notify()
	return persistErr
}

// Clear drops every task that is not being performed. Their waiters
// receive ErrTaskCleared, and a halted queue is unblocked.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var dropped []*item
	if q.processing {
		dropped = q.items[1:]
		q.items = q.items[:1:1]
	} else {
		dropped = q.items
		q.items = nil
	}

	for i, it := range dropped {
		// The failed head's waiter already received its error.
		if i == 0 && q.err != nil && !q.processing {
			continue
		}
		it.done <- ErrTaskCleared
	}
	q.err = nil
	persistErr := q.persist(ctx)
	pendingTasks.WithLabelValues(q.name).Set(float64(len(q.items)))
	tasksTotal.WithLabelValues(q.name, outcomeCleared).Add(float64(len(dropped)))
	if len(dropped) > 0 {
		q.logger.Info("task queue cleared", "queue", q.name, "dropped", len(dropped))
	}
	q.notify()
	return persistErr
}

// Wait blocks until the queue is idle: empty, or halted by a failure. It
// returns the failure, if any.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		idle := !q.processing && (len(q.items) == 0 || q.err != nil || !q.started)
		err := q.err
		changed := q.changed
		q.mu.Unlock()
		if idle {
			return err
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Len returns the number of queued tasks, including one in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Tasks returns a copy of the queued tasks in order.
func (q *Queue) Tasks() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := make([]Task, len(q.items))
	for i, it := range q.items {
		tasks[i] = it.task
	}
	return tasks
}

// Current returns the head task.
func (q *Queue) Current() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Task{}, false
	}
	return q.items[0].task, true
}

// Err returns the failure halting the queue, or nil.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Processing reports whether a task is inside the performer.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// notify wakes Wait callers. Callers hold q.mu.
func (q *Queue) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// persist writes the task list to the bucket. Callers hold q.mu.
func (q *Queue) persist(ctx context.Context) error {
	if q.bucket == nil {
		return nil
	}
	tasks := make([]Task, len(q.items))
	for i, it := range q.items {
		tasks[i] = it.task
	}
	if err := bucket.SetJSON(ctx, q.bucket, q.name, tasks); err != nil {
		return fmt.Errorf("task queue %s: persist: %w", q.name, err)
	}
	return nil
}
