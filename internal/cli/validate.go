package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/g-d-g/orbit/internal/schema"
)

// ModelSummary describes one compiled model.
type ModelSummary struct {
	Name          string   `json:"name"`
	Attributes    []string `json:"attributes,omitempty"`
	Keys          []string `json:"keys,omitempty"`
	Relationships []string `json:"relationships,omitempty"`
}

// ValidationError locates one schema error.
type ValidationError struct {
	File    string `json:"file"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Models []ModelSummary    `json:"models,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema.cue>...",
		Short: "Validate CUE schemas",
		Long: `Compile CUE schemas and check that every relationship names a
declared model and a matching inverse.

Exit codes:
  0 - All schemas are valid
  1 - One or more schemas are invalid
  2 - Command error (missing files, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.Logger()

	result := ValidationResult{Valid: true}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("schema file not found: %s", path), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("schema file not found: %s", path))
		}

		formatter.VerboseLog("Validating %s", path)
		s, err := schema.LoadFile(path)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, toValidationError(path, err))
			logger.Warn("schema invalid", "file", path, "error", err)
			continue
		}
		result.Models = append(result.Models, summarize(s)...)
		logger.Debug("schema valid", "file", path, "models", len(s.Models()))
	}

	if !result.Valid {
		if opts.Format == "json" {
			_ = formatter.encode(CLIResponse{
				Status: "error",
				Data:   result,
				Error:  &CLIError{Code: ErrCodeSchema, Message: fmt.Sprintf("%d schema error(s)", len(result.Errors))},
			})
		} else {
			w := cmd.OutOrStdout()
			for _, e := range result.Errors {
				if e.Line > 0 {
					fmt.Fprintf(w, "✗ %s:%d:%d: %s\n", e.File, e.Line, e.Column, e.Message)
				} else {
					fmt.Fprintf(w, "✗ %s: %s\n", e.File, e.Message)
				}
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d schema error(s)", len(result.Errors)))
	}

	return formatter.Emit(result, func(w io.Writer) {
		for _, m := range result.Models {
			fmt.Fprintf(w, "  %s: %d attribute(s), %d key(s), %d relationship(s)\n",
				m.Name, len(m.Attributes), len(m.Keys), len(m.Relationships))
		}
		fmt.Fprintf(w, "✓ %d model(s) valid\n", len(result.Models))
	})
}

func summarize(s *schema.Schema) []ModelSummary {
	var out []ModelSummary
	for _, name := range s.Models() {
		m, _ := s.Model(name)
		summary := ModelSummary{
			Name:          name,
			Keys:          m.Keys,
			Relationships: s.RelationshipNames(name),
		}
		for attr := range m.Attributes {
			summary.Attributes = append(summary.Attributes, attr)
		}
		slices.Sort(summary.Attributes)
		out = append(out, summary)
	}
	return out
}

func toValidationError(path string, err error) ValidationError {
	ve := ValidationError{File: path, Message: err.Error()}
	var cerr *schema.CompileError
	if errors.As(err, &cerr) {
		ve.Field = cerr.Field
		ve.Message = cerr.Message
		if cerr.Pos.IsValid() {
			ve.Line = cerr.Pos.Line()
			ve.Column = cerr.Pos.Column()
		}
	}
	return ve
}
