package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/compiler"
	"github.com/roach88/fcrcheck/internal/engine"
	"github.com/roach88/fcrcheck/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Emit       string // annotated program output path
	Record     string // run history database path
	Crosscheck bool
	Dispatch   string
	Sequential bool
}

// CheckResult is the JSON payload of a clean check.
type CheckResult struct {
	Fingerprint string       `json:"fingerprint"`
	RunID       string       `json:"run_id,omitempty"`
	Stats       engine.Stats `json:"stats"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Analyze manifests and report diagnostics",
		Long: `Load CUE or YAML manifests, run the full analysis and report diagnostics.

Flags not given on the command line fall back to the config file.

Exit codes:
  0 - No diagnostics
  1 - One or more diagnostics reported
  2 - Command error (manifests failed to load or validate, etc.)

Examples:
  fcrcheck check ./manifests
  fcrcheck check ./manifests --emit annotated.json
  fcrcheck check ./manifests --record runs.db --crosscheck
  fcrcheck check app.yaml --dispatch conservative --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.applyConfig(cmd)
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Emit, "emit", "o", "", "write the annotated program as JSON to this file")
	cmd.Flags().StringVar(&opts.Record, "record", "", "record the run in this history database")
	cmd.Flags().BoolVar(&opts.Crosscheck, "crosscheck", false, "verify inferred effects with the Datalog oracle")
	cmd.Flags().StringVar(&opts.Dispatch, "dispatch", "", "dispatch mode (strict|conservative)")
	cmd.Flags().BoolVar(&opts.Sequential, "sequential", false, "run the post-effects passes one after another")

	return cmd
}

// applyConfig fills every flag the user did not set from the config file.
func (o *CheckOptions) applyConfig(cmd *cobra.Command) {
	cfg := o.Config
	if !cmd.Flags().Changed("record") {
		o.Record = cfg.Store
	}
	if !cmd.Flags().Changed("crosscheck") {
		o.Crosscheck = cfg.Crosscheck
	}
	if !cmd.Flags().Changed("dispatch") {
		o.Dispatch = cfg.Dispatch
	}
	if !cmd.Flags().Changed("sequential") {
		o.Sequential = cfg.Sequential
	}
}

func runCheck(opts *CheckOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	mode, err := callgraph.ParseDispatchMode(opts.Dispatch)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --dispatch", err)
	}

	loaded, errs := compiler.Load(path)
	if len(errs) > 0 {
		return formatter.LoadErrors(errs)
	}
	formatter.VerboseLog("Loaded %d manifest file(s) from %s", len(loaded.Files), path)

	// Malformed manifests are rejected before analysis
	if verrs := compiler.Validate(loaded.Program); len(verrs) > 0 {
		_ = outputValidationErrors(formatter, ValidationResult{Files: loaded.Files, Errors: verrs})
		return NewExitError(ExitCommandError, fmt.Sprintf("validation failed with %d error(s)", len(verrs)))
	}

	res, err := analyze(cmd.Context(), loaded, mode, opts.Crosscheck, opts.Sequential)
	if err != nil {
		_ = formatter.Error(compiler.ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "analysis failed", err)
	}
	formatter.VerboseLog("Analyzed %d function(s), %d edge(s), %d SCC(s) in %d iteration(s)",
		res.Stats.Functions, res.Stats.Edges, res.Stats.SCCs, res.Stats.Iterations)

	if opts.Emit != "" {
		if err := writeAnnotated(res.Program, opts.Emit); err != nil {
			_ = formatter.Error(compiler.ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write annotated program", err)
		}
		formatter.VerboseLog("Wrote annotated program to %s", opts.Emit)
	}

	result := CheckResult{Fingerprint: res.Program.Fingerprint, Stats: res.Stats}
	if opts.Record != "" {
		run, err := recordRun(cmd.Context(), opts.Record, path, res)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		result.RunID = run.ID
		formatter.VerboseLog("Recorded run %s (seq %d)", run.ID, run.Seq)
	}

	if !res.OK() {
		if err := formatter.Diagnostics(res.Diagnostics); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d diagnostic(s)", len(res.Diagnostics)))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ No diagnostics (%d function(s), %d bridge(s))\n",
		res.Stats.Functions, res.Stats.Bridges)
	fmt.Fprintf(formatter.Writer, "Fingerprint: %s\n", result.Fingerprint)
	if result.RunID != "" {
		fmt.Fprintf(formatter.Writer, "Run: %s\n", result.RunID)
	}
	return nil
}

// analyze runs a fresh engine over a loaded program.
func analyze(ctx context.Context, loaded *compiler.LoadResult, mode callgraph.DispatchMode, crosscheck, sequential bool) (*engine.Result, error) {
	e := engine.New(
		engine.WithDispatch(mode),
		engine.WithCrosscheck(crosscheck),
		engine.WithSequential(sequential),
	)
	return e.Analyze(ctx, loaded.Program)
}

// recordRun stores the analysis in the history database under a new
// UUIDv7 run ID.
func recordRun(ctx context.Context, dbPath, source string, res *engine.Result) (store.Run, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return store.Run{}, err
	}
	defer st.Close()

	id := store.UUIDv7Generator{}.Generate()
	return st.WriteRun(ctx, store.NewRun(id, source, res.Program.Fingerprint, res.Diagnostics))
}

// writeAnnotated writes the annotated program as indented JSON.
// Canonical JSON is used only for the fingerprint.
func writeAnnotated(a *engine.Annotated, filename string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling annotated program: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
