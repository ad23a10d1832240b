// Package translog implements the transform log: the ordered, append-only
// history of applied transform ids.
//
// Each entry carries a strictly increasing sequence number. The log can be
// truncated from the front, rolled back from the end, cleared, and cloned
// for forks. When a bucket is configured, every mutation persists the full
// entry list under the log's name before the call returns.
package translog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/g-d-g/orbit/internal/bucket"
	"github.com/g-d-g/orbit/internal/model"
)

// Entry is one logged transform id and its sequence number.
type Entry struct {
	ID  string `json:"id"`
	Seq int64  `json:"seq"`
}

// Log is the transform log. Safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	name    string
	bucket  bucket.Bucket
	logger  *slog.Logger
	clock   *Clock
	entries []Entry
	index   map[string]int
}

// Option configures a Log.
type Option func(*Log)

// WithName sets the bucket key the log persists under.
func WithName(name string) Option {
	return func(l *Log) { l.name = name }
}

// WithBucket persists the log to b. Requires WithName.
func WithBucket(b bucket.Bucket) Option {
	return func(l *Log) { l.bucket = b }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates an empty, in-memory log.
func New(opts ...Option) *Log {
	l := &Log{
		logger: slog.Default(),
		clock:  NewClock(),
		index:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open creates a log and, when a bucket is configured, reifies its entries
// from the bucket.
func Open(ctx context.Context, opts ...Option) (*Log, error) {
	l := New(opts...)
	if l.bucket == nil {
		return l, nil
	}
	if l.name == "" {
		return nil, errors.New("transform log: a bucket-backed log requires a name")
	}

	var entries []Entry
	if _, err := bucket.GetJSON(ctx, l.bucket, l.name, &entries); err != nil {
		return nil, fmt.Errorf("transform log %s: restore: %w", l.name, err)
	}

	var maxSeq int64
	for _, e := range entries {
		if _, dup := l.index[e.ID]; dup {
			return nil, fmt.Errorf("transform log %s: restore: %w", l.name, model.NewDuplicateTransformError(e.ID))
		}
		l.index[e.ID] = len(l.entries)
		l.entries = append(l.entries, e)
		maxSeq = max(maxSeq, e.Seq)
	}
	l.clock = NewClockAt(maxSeq)

	l.logger.Debug("transform log restored", "name", l.name, "entries", len(entries))
	return l, nil
}

// Name returns the bucket key of the log.
func (l *Log) Name() string {
	return l.name
}

// Head returns the most recently appended id, or "" when the log is empty.
func (l *Log) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1].ID
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Contains reports whether id is logged.
func (l *Log) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[id]
	return ok
}

// IDs returns every logged id in order.
func (l *Log) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return idsOf(l.entries)
}

// Entries returns a copy of the log entries.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Position returns the zero-based position of id.
func (l *Log) Position(id string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.position(id)
}

func (l *Log) position(id string) (int, error) {
	pos, ok := l.index[id]
	if !ok {
		return 0, model.NewTransformNotLoggedError(id)
	}
	return pos, nil
}

// Before returns the ids logged before id, oldest first.
func (l *Log) Before(id string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, err := l.position(id)
	if err != nil {
		return nil, err
	}
	return idsOf(l.entries[:pos]), nil
}

// After returns the ids logged after id, oldest first.
func (l *Log) After(id string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, err := l.position(id)
	if err != nil {
		return nil, err
	}
	return idsOf(l.entries[pos+1:]), nil
}

// Append logs ids in order. Nothing is appended if any id is already
// logged or repeated.
func (l *Log) Append(ctx context.Context, ids ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := l.index[id]; ok || seen[id] {
			return model.NewDuplicateTransformError(id)
		}
		seen[id] = true
	}
	for _, id := range ids {
		l.index[id] = len(l.entries)
		l.entries = append(l.entries, Entry{ID: id, Seq: l.clock.Next()})
	}
	return l.persist(ctx)
}

// Truncate drops every entry before id. With inclusive, id is dropped too:
// truncating [A B C] at B leaves [B C], or [C] when inclusive.
func (l *Log) Truncate(ctx context.Context, id string, inclusive bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, err := l.position(id)
	if err != nil {
		return err
	}
	if inclusive {
		pos++
	}
	l.reindex(slices.Clone(l.entries[pos:]))
	return l.persist(ctx)
}

// Rollback drops every entry after id, leaving id as the head.
func (l *Log) Rollback(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, err := l.position(id)
	if err != nil {
		return err
	}
	l.reindex(slices.Clone(l.entries[:pos+1]))
	return l.persist(ctx)
}

// Clear removes every entry.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reindex(nil)
	return l.persist(ctx)
}

// Clone returns an in-memory copy of the log. The clone shares no state
// with l and is not bucket-backed.
func (l *Log) Clone() *Log {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c := New(WithLogger(l.logger))
	c.clock = NewClockAt(l.clock.Current())
	c.reindex(slices.Clone(l.entries))
	return c
}

func (l *Log) reindex(entries []Entry) {
	l.entries = entries
	l.index = make(map[string]int, len(entries))
	for i, e := range entries {
		l.index[e.ID] = i
	}
}

// persist writes the entry list to the bucket. Callers hold l.mu.
// On failure the in-memory mutation is kept.
func (l *Log) persist(ctx context.Context) error {
	if l.bucket == nil {
		return nil
	}
	if l.name == "" {
		return errors.New("transform log: a bucket-backed log requires a name")
	}
	entries := l.entries
	if entries == nil {
		entries = []Entry{}
	}
	if err := bucket.SetJSON(ctx, l.bucket, l.name, entries); err != nil {
		l.logger.Error("transform log persist failed", "name", l.name, "error", err)
		return fmt.Errorf("transform log %s: persist: %w", l.name, err)
	}
	return nil
}

func idsOf(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
