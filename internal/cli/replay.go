package cli

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/cobra"

	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/compiler"
	"github.com/roach88/fcrcheck/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - latest run when empty
	Dispatch string
}

// ReplayResult compares a fresh analysis with a recorded run.
type ReplayResult struct {
	RunID               string `json:"run_id"`
	Source              string `json:"source"`
	RecordedFingerprint string `json:"recorded_fingerprint"`
	Fingerprint         string `json:"fingerprint"`
	RecordedDiagnostics int    `json:"recorded_diagnostics"`
	Diagnostics         int    `json:"diagnostics"`
	Deterministic       bool   `json:"deterministic"`
	Diff                string `json:"diff,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [path]",
		Short: "Re-run a recorded analysis and verify determinism",
		Long: `Re-analyze the manifests of a recorded run and compare the fingerprint
and diagnostics with what was recorded.

The manifest path defaults to the source stored with the run. The run
defaults to the most recent one.

Exit codes:
  0 - Fingerprint and diagnostics match the recorded run
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, run not found, etc.)

Examples:
  fcrcheck replay --db runs.db
  fcrcheck replay --db runs.db --run 0190b6c2-... ./manifests
  fcrcheck replay --db runs.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("db") {
				opts.Database = opts.Config.Store
			}
			if !cmd.Flags().Changed("dispatch") {
				opts.Dispatch = opts.Config.Dispatch
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runReplay(opts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run history database (defaults to the config store)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to replay (defaults to the latest run)")
	cmd.Flags().StringVar(&opts.Dispatch, "dispatch", "", "dispatch mode used for the recorded run (strict|conservative)")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	mode, err := callgraph.ParseDispatchMode(opts.Dispatch)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --dispatch", err)
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var recorded store.Run
	if opts.RunID != "" {
		recorded, err = st.ReadRun(ctx, opts.RunID)
	} else {
		recorded, err = st.LatestRun(ctx)
	}
	if errors.Is(err, sql.ErrNoRows) {
		if opts.RunID != "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		return NewExitError(ExitCommandError, "no runs recorded")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if path == "" {
		path = recorded.Source
	}
	formatter.VerboseLog("Replaying run %s against %s", recorded.ID, path)

	loaded, errs := compiler.Load(path)
	if len(errs) > 0 {
		return formatter.LoadErrors(errs)
	}
	res, err := analyze(ctx, loaded, mode, false, false)
	if err != nil {
		return WrapExitError(ExitCommandError, "analysis failed", err)
	}

	diff := cmp.Diff(recorded.Diagnostics, res.Diagnostics, cmpopts.EquateEmpty())
	result := ReplayResult{
		RunID:               recorded.ID,
		Source:              path,
		RecordedFingerprint: recorded.Fingerprint,
		Fingerprint:         res.Program.Fingerprint,
		RecordedDiagnostics: len(recorded.Diagnostics),
		Diagnostics:         len(res.Diagnostics),
		Deterministic:       diff == "" && recorded.Fingerprint == res.Program.Fingerprint,
		Diff:                diff,
	}

	if formatter.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := formatter.writeJSON(response); err != nil {
		return err
	}

	if !result.Deterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay of run %s (%s)\n", result.RunID, result.Source)
	fmt.Fprintf(w, "  Fingerprint: recorded %s, now %s\n",
		shortFingerprint(result.RecordedFingerprint), shortFingerprint(result.Fingerprint))
	fmt.Fprintf(w, "  Diagnostics: recorded %d, now %d\n", result.RecordedDiagnostics, result.Diagnostics)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay matches the recorded run")
		return nil
	}

	if result.Diff != "" {
		fmt.Fprintln(w, "  Diagnostic diff (-recorded +now):")
		fmt.Fprintln(w, result.Diff)
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
