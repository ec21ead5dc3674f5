package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fcrcheck/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Files     []string                   `json:"files,omitempty"`
	Modules   int                        `json:"modules"`
	Functions int                        `json:"functions"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate manifests without analyzing them",
		Long: `Load CUE or YAML manifests and check their structure without running
the analysis.

Reports duplicate declarations, unqualified function names, broken handle
trees and malformed call sites. Faster than check for editing feedback.

Exit codes:
  0 - Manifests are valid
  1 - Validation errors found
  2 - Command error (path not found, parse failure, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, errs := compiler.Load(path)
	if len(errs) > 0 {
		return formatter.LoadErrors(errs)
	}
	formatter.VerboseLog("Loaded %d manifest file(s) from %s", len(loaded.Files), path)

	result := ValidationResult{
		Valid:     true,
		Files:     loaded.Files,
		Modules:   len(loaded.Program.Modules),
		Functions: len(loaded.Program.Functions),
	}
	if verrs := compiler.Validate(loaded.Program); len(verrs) > 0 {
		result.Valid = false
		result.Errors = verrs
		return outputValidationErrors(formatter, result)
	}

	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Manifests valid: %d module(s), %d function(s)\n",
		result.Modules, result.Functions)
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.writeJSON(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s\n", err.Pos)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
