package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/g-d-g/orbit/internal/bucket"
	"github.com/g-d-g/orbit/internal/cache"
	"github.com/g-d-g/orbit/internal/evented"
	"github.com/g-d-g/orbit/internal/keymap"
	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/schema"
	"github.com/g-d-g/orbit/internal/taskqueue"
	"github.com/g-d-g/orbit/internal/translog"
)

// Event names emitted by a Store.
const (
	EventBeforeUpdate = "beforeUpdate"
	EventUpdate       = "update"
	EventUpdateFail   = "updateFail"
	EventBeforeSync   = "beforeSync"
	EventSync         = "sync"
	EventSyncFail     = "syncFail"
	EventBeforeQuery  = "beforeQuery"
	EventQuery        = "query"
	EventQueryFail    = "queryFail"
	EventTransform    = "transform"
	EventRollback     = "rollback"
)

// Task types carried by the queues.
const (
	taskUpdate = "update"
	taskSync   = "sync"
)

// Store is the orchestrator. Safe for concurrent use.
type Store struct {
	*evented.Emitter

	name   string
	schema *schema.Schema
	keymap *keymap.KeyMap
	bucket bucket.Bucket
	logger *slog.Logger
	ids    model.IDGenerator

	cache    *cache.Cache
	log      *translog.Log
	requests *taskqueue.Queue
	syncs    *taskqueue.Queue

	// applyMu serialises every cache and log mutation: both queues and
	// rollback.
	applyMu sync.Mutex

	mu         sync.RWMutex
	transforms map[string]*model.Transform
	inverses   map[string][]model.Operation
	pending    map[string]*model.Transform // queued, not yet applied

	forkPoint string
}

// Option configures a Store.
type Option func(*config)

type config struct {
	name       string
	keymap     *keymap.KeyMap
	bucket     bucket.Bucket
	logger     *slog.Logger
	ids        model.IDGenerator
	processors []cache.ProcessorFactory
}

// WithName names the store. Required with a bucket; it prefixes every
// bucket key.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithKeyMap shares km with the store instead of creating a new one.
func WithKeyMap(km *keymap.KeyMap) Option {
	return func(c *config) { c.keymap = km }
}

// WithBucket persists the transform log and queues in b.
func WithBucket(b bucket.Bucket) Option {
	return func(c *config) { c.bucket = b }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithIDGenerator sets the generator for transform ids.
func WithIDGenerator(g model.IDGenerator) Option {
	return func(c *config) { c.ids = g }
}

// WithProcessors installs extra cache processors after the built-in ones.
func WithProcessors(factories ...cache.ProcessorFactory) Option {
	return func(c *config) { c.processors = append(c.processors, factories...) }
}

// New creates a store for s. With a bucket, the transform log and any
// queued tasks are restored and processing resumes before New returns.
func New(ctx context.Context, s *schema.Schema, opts ...Option) (*Store, error) {
	if s == nil {
		return nil, errors.New("store: schema is required")
	}
	cfg := config{logger: slog.Default(), ids: model.UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bucket != nil && cfg.name == "" {
		return nil, errors.New("store: a bucket-backed store requires a name")
	}
	if cfg.keymap == nil {
		cfg.keymap = keymap.New()
	}

	c := cache.New(s,
		cache.WithKeyMap(cfg.keymap),
		cache.WithLogger(cfg.logger),
		cache.WithProcessors(cfg.processors...),
	)

	logOpts := []translog.Option{translog.WithName(LogKey(cfg.name)), translog.WithLogger(cfg.logger)}
	if cfg.bucket != nil {
		logOpts = append(logOpts, translog.WithBucket(cfg.bucket))
	}
	log, err := translog.Open(ctx, logOpts...)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", cfg.name, err)
	}

	st, err := build(ctx, cfg, c, log)
	if err != nil {
		return nil, err
	}
	st.logger.Info("store ready", "store", st.name, "transforms", log.Len(),
		"requests", st.requests.Len(), "syncs", st.syncs.Len())
	return st, nil
}

// build wires the queues around an existing cache and log and starts them.
func build(ctx context.Context, cfg config, c *cache.Cache, log *translog.Log) (*Store, error) {
	st := &Store{
		Emitter:    evented.NewEmitter(cfg.logger),
		name:       cfg.name,
		schema:     c.Schema(),
		keymap:     c.KeyMap(),
		bucket:     cfg.bucket,
		logger:     cfg.logger,
		ids:        cfg.ids,
		cache:      c,
		log:        log,
		transforms: make(map[string]*model.Transform),
		inverses:   make(map[string][]model.Operation),
		pending:    make(map[string]*model.Transform),
	}

	qOpts := []taskqueue.Option{taskqueue.WithLogger(cfg.logger), taskqueue.WithAutoProcess(false)}
	if cfg.bucket != nil {
		qOpts = append(qOpts, taskqueue.WithBucket(cfg.bucket))
	}
	var err error
	st.requests, err = taskqueue.New(ctx, RequestsKey(cfg.name), st.performer(taskUpdate), qOpts...)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", cfg.name, err)
	}
	st.syncs, err = taskqueue.New(ctx, SyncsKey(cfg.name), st.performer(taskSync), qOpts...)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", cfg.name, err)
	}

	st.requests.Process()
	st.syncs.Process()
	return st, nil
}

// LogKey, RequestsKey and SyncsKey name the bucket entries of the store
// called name.
func LogKey(name string) string      { return key(name, "transform-log") }
func RequestsKey(name string) string { return key(name, "requests") }
func SyncsKey(name string) string    { return key(name, "syncs") }

func key(name, suffix string) string {
	if name == "" {
		return suffix
	}
	return name + "/" + suffix
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// Schema returns the shared schema.
func (s *Store) Schema() *schema.Schema { return s.schema }

// KeyMap returns the shared key map.
func (s *Store) KeyMap() *keymap.KeyMap { return s.keymap }

// Cache returns the record cache. Mutating it directly bypasses the
// transform log; use Update instead.
func (s *Store) Cache() *cache.Cache { return s.cache }

// TransformLog returns the transform log.
func (s *Store) TransformLog() *translog.Log { return s.log }

// RequestQueue returns the queue serving Update.
func (s *Store) RequestQueue() *taskqueue.Queue { return s.requests }

// SyncQueue returns the queue serving Sync.
func (s *Store) SyncQueue() *taskqueue.Queue { return s.syncs }

// ForkPoint returns the log head of the origin store when this store was
// forked, or "" for a store that is not a fork or was forked from an empty
// log.
func (s *Store) ForkPoint() string { return s.forkPoint }

// Wait blocks until both queues are idle and returns the first queue
// failure, if any.
func (s *Store) Wait(ctx context.Context) error {
	return errors.Join(s.requests.Wait(ctx), s.syncs.Wait(ctx))
}

// GetTransform returns the applied transform with the given id. For a
// transform passed to Update or Sync, this is the same pointer.
func (s *Store) GetTransform(id string) (*model.Transform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transforms[id]
	if !ok {
		return nil, model.NewTransformNotLoggedError(id)
	}
	return t, nil
}

// GetInverseOperations returns the operations that undo transform id, in
// forward application order. Rollback applies them reversed.
func (s *Store) GetInverseOperations(id string) ([]model.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.inverses[id]
	if !ok {
		return nil, model.NewTransformNotLoggedError(id)
	}
	return append([]model.Operation(nil), inv...), nil
}

// TransformsSince returns the transforms applied after id, oldest first.
func (s *Store) TransformsSince(id string) ([]*model.Transform, error) {
	ids, err := s.log.After(id)
	if err != nil {
		return nil, err
	}
	return s.lookup(ids), nil
}

// AllTransforms returns every logged transform, oldest first.
func (s *Store) AllTransforms() []*model.Transform {
	return s.lookup(s.log.IDs())
}

func (s *Store) lookup(ids []string) []*model.Transform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Transform, 0, len(ids))
	for _, id := range ids {
		// Transforms restored from a bucket log have ids only.
		if t, ok := s.transforms[id]; ok {
			out = append(out, t)
		}
	}
	return out
}
