package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/g-d-g/orbit/internal/bucket"
	"github.com/g-d-g/orbit/internal/model"
	"github.com/g-d-g/orbit/internal/store"
	"github.com/g-d-g/orbit/internal/taskqueue"
	"github.com/g-d-g/orbit/internal/translog"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Store  string
	Bucket bucket.Config
}

// TaskSummary describes one queued task.
type TaskSummary struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Operations int    `json:"operations"`
	Label      string `json:"label,omitempty"`
}

// InspectResult is the persisted state of one store.
type InspectResult struct {
	Store    string           `json:"store"`
	Driver   bucket.Driver    `json:"driver"`
	Log      []translog.Entry `json:"log"`
	Requests []TaskSummary    `json:"requests"`
	Syncs    []TaskSummary    `json:"syncs"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}
	var driver string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the persisted transform log and queues of a store",
		Long: `Read the transform log and the request and sync queues a store
persisted to a bucket. Nothing is applied or dequeued.

Bucket settings come from flags, ORBIT_BUCKET_* environment variables or
the bucket section of the config file.

Examples:
  orbit inspect --driver sqlite --path ./orbit.db
  orbit inspect --store draft --driver badger --path ./data
  ORBIT_BUCKET_DRIVER=postgres ORBIT_BUCKET_DSN=postgres://... orbit inspect`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Bucket.Driver = bucket.Driver(driver)
			if err := resolveBucketConfig(opts); err != nil {
				return WrapExitError(ExitCommandError, "invalid bucket config", err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runInspect(ctx, opts, cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Store, "store", "main", "store name")
	flags.StringVar(&driver, "driver", string(bucket.DriverSQLite), "bucket driver (memory|sqlite|postgres|badger|s3)")
	flags.StringVar(&opts.Bucket.Path, "path", "", "sqlite file or badger directory")
	flags.StringVar(&opts.Bucket.DSN, "dsn", "", "postgres connection string")
	flags.BoolVar(&opts.Bucket.PureGo, "pure-go", false, "use the pure-Go sqlite driver")

	if v := rootOpts.Viper; v != nil {
		_ = v.BindPFlag("store", flags.Lookup("store"))
		_ = v.BindPFlag("bucket.driver", flags.Lookup("driver"))
		_ = v.BindPFlag("bucket.path", flags.Lookup("path"))
		_ = v.BindPFlag("bucket.dsn", flags.Lookup("dsn"))
		_ = v.BindPFlag("bucket.pure_go", flags.Lookup("pure-go"))
	}

	return cmd
}

// resolveBucketConfig lets viper override the flag values with the
// environment and the config file.
func resolveBucketConfig(opts *InspectOptions) error {
	v := opts.Viper
	if v == nil {
		return nil
	}
	var settings struct {
		Store  string        `mapstructure:"store"`
		Bucket bucket.Config `mapstructure:"bucket"`
	}
	if err := v.Unmarshal(&settings); err != nil {
		return err
	}
	if settings.Store != "" {
		opts.Store = settings.Store
	}
	opts.Bucket = settings.Bucket
	return nil
}

func runInspect(ctx context.Context, opts *InspectOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.Logger()

	b, err := bucket.Open(ctx, opts.Bucket)
	if err != nil {
		_ = formatter.Error(ErrCodeBucket, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open bucket", err)
	}
	defer func() {
		if cerr := bucket.Close(b); cerr != nil {
			logger.Error("bucket close failed", "error", cerr)
		}
	}()

	result, err := inspectStore(ctx, b, opts.Store, logger)
	if err != nil {
		_ = formatter.Error(ErrCodeBucket, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read store", err)
	}
	formatter.VerboseLog("Read %d log entries from %s bucket", len(result.Log), result.Driver)

	return formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "Store %s (%s)\n", result.Store, result.Driver)
		fmt.Fprintf(w, "Transform log: %d\n", len(result.Log))
		for _, e := range result.Log {
			fmt.Fprintf(w, "  %6d  %s\n", e.Seq, e.ID)
		}
		printTasks(w, "Requests", result.Requests)
		printTasks(w, "Syncs", result.Syncs)
	})
}

// inspectStore reads the store's entries without resuming its queues.
func inspectStore(ctx context.Context, b bucket.Bucket, name string, logger *slog.Logger) (*InspectResult, error) {
	log, err := translog.Open(ctx,
		translog.WithName(store.LogKey(name)), translog.WithBucket(b), translog.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	result := &InspectResult{Store: name, Driver: b.Driver(), Log: log.Entries()}
	if result.Log == nil {
		result.Log = []translog.Entry{}
	}

	idle := taskqueue.PerformerFunc(func(context.Context, taskqueue.Task) error { return nil })
	for _, q := range []struct {
		key  string
		dest *[]TaskSummary
	}{
		{store.RequestsKey(name), &result.Requests},
		{store.SyncsKey(name), &result.Syncs},
	} {
		queue, err := taskqueue.New(ctx, q.key, idle,
			taskqueue.WithBucket(b), taskqueue.WithAutoProcess(false), taskqueue.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		*q.dest = summarizeTasks(queue.Tasks())
		logger.Debug("queue read", "queue", q.key, "tasks", len(*q.dest))
	}
	return result, nil
}

func summarizeTasks(tasks []taskqueue.Task) []TaskSummary {
	out := make([]TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		s := TaskSummary{ID: task.ID, Type: task.Type}
		var t model.Transform
		if len(task.Data) > 0 && json.Unmarshal(task.Data, &t) == nil {
			s.Operations = len(t.Operations)
			s.Label = t.Label()
		}
		out = append(out, s)
	}
	return out
}

func printTasks(w io.Writer, title string, tasks []TaskSummary) {
	fmt.Fprintf(w, "%s: %d\n", title, len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(w, "  %s  %s  %d op(s)", t.Type, t.ID, t.Operations)
		if t.Label != "" {
			fmt.Fprintf(w, "  %q", t.Label)
		}
		fmt.Fprintln(w)
	}
}
