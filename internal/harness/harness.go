package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/schema"
	"github.com/g-d-g/orbit/internal/store"
	"github.com/g-d-g/orbit/internal/testutil"
)

// TransformPrefix prefixes the generated ids of transforms without an
// explicit id: "t-1", "t-2", ...
const TransformPrefix = "t"

// Option configures Run and RunAll.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	parallel int
}

// WithLogger sets the logger handed to every store. Logs are discarded by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithParallelism bounds how many scenarios RunAll executes at once.
// n <= 0 means no bound.
func WithParallelism(n int) Option {
	return func(c *config) { c.parallel = n }
}

func newConfig(opts []Option) config {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Harness executes the steps of one scenario. Stores share one sequential
// id generator, so transform ids depend only on the step order.
type Harness struct {
	schema *schema.Schema
	ids    *testutil.SequentialIDs
	logger *slog.Logger
	stores map[string]*store.Store
	active string
}

// Run executes a scenario on a fresh in-memory store named MainStore and
// returns the result.
//
// An unexpected step failure stops the scenario: the result fails and
// assertions are skipped. The returned error is reserved for failures to
// set the scenario up.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)

	s, err := schema.LoadFile(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	ids := testutil.NewSequentialIDs(TransformPrefix)
	main, err := store.New(ctx, s,
		store.WithName(MainStore),
		store.WithIDGenerator(ids),
		store.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	h := &Harness{
		schema: s,
		ids:    ids,
		logger: cfg.logger,
		stores: map[string]*store.Store{MainStore: main},
		active: MainStore,
	}

	result := NewResult()
	completed := h.execute(ctx, scenario.Steps, result)
	h.capture(result)

	if completed {
		for _, msg := range EvaluateAssertions(h.stores, scenario.Assertions) {
			result.AddError(msg)
		}
	}

	h.logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

// RunAll executes scenarios concurrently and returns their results in
// input order. It fails on the first scenario that cannot be set up.
func RunAll(ctx context.Context, scenarios []*Scenario, opts ...Option) ([]*Result, error) {
	cfg := newConfig(opts)
	results := make([]*Result, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	if cfg.parallel > 0 {
		g.SetLimit(cfg.parallel)
	}
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			res, err := Run(ctx, sc, opts...)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// execute runs the steps in order and reports whether all of them ran.
func (h *Harness) execute(ctx context.Context, steps []Step, result *Result) bool {
	for i := range steps {
		step := &steps[i]
		event, err := h.step(ctx, step)
		event.Action = step.Action()
		event.Store = h.active

		code := errorCode(err)
		switch {
		case err == nil && step.ExpectError != "":
			result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got none", i, event.Action, step.ExpectError))
		case err != nil && step.ExpectError == "":
			result.AddError(fmt.Sprintf("steps[%d] (%s): %v", i, event.Action, err))
			result.AddTrace(event)
			return false
		case err != nil && code != step.ExpectError:
			result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got %v", i, event.Action, step.ExpectError, err))
		}

		if err != nil {
			event.Error = code
			if rerr := h.recover(ctx); rerr != nil {
				result.AddError(fmt.Sprintf("steps[%d] (%s): %v", i, event.Action, rerr))
				result.AddTrace(event)
				return false
			}
		}
		result.AddTrace(event)

		h.logger.Debug("scenario step completed",
			"step", i,
			"action", event.Action,
			"store", event.Store,
			"transforms", event.Transforms,
		)
	}
	return true
}

func (h *Harness) step(ctx context.Context, step *Step) (TraceEvent, error) {
	var event TraceEvent
	s := h.stores[h.active]

	switch step.Action() {
	case "update":
		ops, err := step.Update.operations()
		if err != nil {
			return event, err
		}
		var opts []store.UpdateOption
		if step.Update.ID != "" {
			opts = append(opts, store.WithID(step.Update.ID))
		}
		if step.Update.Options != nil {
			options, err := toObject(step.Update.Options)
			if err != nil {
				return event, err
			}
			opts = append(opts, store.WithOptions(options))
		}
		t, err := s.Update(ctx, ops, opts...)
		if t != nil && err == nil {
			event.Transforms = []string{t.ID}
		}
		return event, err

	case "sync":
		from, err := h.store(step.Sync.From)
		if err != nil {
			return event, err
		}
		t, err := from.GetTransform(step.Sync.Transform)
		if err != nil {
			return event, err
		}
		if err := s.Sync(ctx, t); err != nil {
			return event, err
		}
		event.Transforms = []string{t.ID}
		return event, nil

	case "rollback":
		undone, err := s.TransformLog().After(step.Rollback)
		if err != nil {
			return event, err
		}
		if err := s.Rollback(ctx, step.Rollback); err != nil {
			return event, err
		}
		slices.Reverse(undone)
		event.Transforms = undone
		return event, nil

	case "fork":
		if _, ok := h.stores[step.Fork]; ok {
			return event, fmt.Errorf("store %q already exists", step.Fork)
		}
		fork, err := s.Fork(ctx)
		if err != nil {
			return event, err
		}
		h.stores[step.Fork] = fork
		return event, nil

	case "merge":
		from, err := h.store(step.Merge.From)
		if err != nil {
			return event, err
		}
		var opts []store.MergeOption
		if step.Merge.Sequential {
			opts = append(opts, store.Sequentially())
		}
		if step.Merge.ID != "" {
			opts = append(opts, store.WithTransformID(step.Merge.ID))
		}
		if step.Merge.Options != nil {
			options, err := toObject(step.Merge.Options)
			if err != nil {
				return event, err
			}
			opts = append(opts, store.WithTransformOptions(options))
		}
		merged, err := s.Merge(ctx, from, opts...)
		for _, t := range merged {
			event.Transforms = append(event.Transforms, t.ID)
		}
		return event, err

	case "use":
		if _, err := h.store(step.Use); err != nil {
			return event, err
		}
		h.active = step.Use
		return event, nil
	}
	return event, fmt.Errorf("step has no action")
}

func (h *Harness) store(name string) (*store.Store, error) {
	s, ok := h.stores[name]
	if !ok {
		return nil, fmt.Errorf("unknown store %q", name)
	}
	return s, nil
}

// recover drops a failed transform from the active store's queues so the
// next step is not blocked behind it.
func (h *Harness) recover(ctx context.Context) error {
	s := h.stores[h.active]
	var errs []error
	if s.RequestQueue().Err() != nil {
		errs = append(errs, s.RequestQueue().Clear(ctx))
	}
	if s.SyncQueue().Err() != nil {
		errs = append(errs, s.SyncQueue().Clear(ctx))
	}
	return errors.Join(errs...)
}

// capture records the final log and records of every store.
func (h *Harness) capture(result *Result) {
	for name, s := range h.stores {
		result.State[name] = StoreState{
			Log:     s.TransformLog().IDs(),
			Records: s.Cache().Snapshot(),
		}
	}
}

// errorCode returns the code of a *model.Error, or "" for other errors.
func errorCode(err error) string {
	var merr *model.Error
	if errors.As(err, &merr) {
		return string(merr.Code)
	}
	return ""
}

// toObject converts YAML-decoded options into a model.Object.
func toObject(m map[string]any) (model.Object, error) {
	v, err := model.FromAny(m)
	if err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}
	obj, ok := v.(model.Object)
	if !ok {
		return nil, fmt.Errorf("options: expected an object, got %T", v)
	}
	return obj, nil
}
