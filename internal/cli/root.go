package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvPrefix prefixes environment overrides: ORBIT_FORMAT, ORBIT_BUCKET_DRIVER, ...
const EnvPrefix = "ORBIT"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file path
	LogFile string // rotated log file; empty logs to stderr when verbose

	// Viper merges flags, ORBIT_* environment variables and the config
	// file. Nil when a command is built on its own.
	Viper *viper.Viper

	logger    *slog.Logger
	logCloser io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Logger returns the command logger. It discards everything until the
// root command has configured logging.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

// NewRootCommand creates the root command for the orbit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Viper: viper.New()}

	cmd := &cobra.Command{
		Use:   "orbit",
		Short: "orbit - local data orchestration",
		Long: `orbit keeps a normalized record cache in sync through logged,
reversible transforms.

The CLI validates CUE schemas, runs conformance scenarios and inspects
persisted stores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(opts); err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(opts, cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logCloser != nil {
				return opts.logCloser.Close()
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Config, "config", "", "config file (yaml, json or toml)")
	flags.StringVar(&opts.LogFile, "log-file", "", "write logs to a rotated file")

	for _, name := range []string{"verbose", "format", "log-file"} {
		_ = opts.Viper.BindPFlag(name, flags.Lookup(name))
	}

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

// loadConfig reads the config file, if any, and resolves the global
// options. Flags set on the command line win over the environment, which
// wins over the file.
func loadConfig(opts *RootOptions) error {
	v := opts.Viper
	if v == nil {
		return nil
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Config != "" {
		v.SetConfigFile(opts.Config)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return fmt.Errorf("config file not found: %s", opts.Config)
			}
			return err
		}
	}

	opts.Verbose = v.GetBool("verbose")
	opts.Format = v.GetString("format")
	opts.LogFile = v.GetString("log-file")
	return nil
}

// setupLogging installs the command logger: JSON lines into a rotated file
// when --log-file is set, text on stderr when verbose, nothing otherwise.
func setupLogging(opts *RootOptions, stderr io.Writer) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	switch {
	case opts.LogFile != "":
		rotator := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		opts.logCloser = rotator
		opts.logger = slog.New(slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: level}))
	case opts.Verbose:
		if stderr == nil {
			stderr = os.Stderr
		}
		opts.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	default:
		opts.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
