package harness

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/compiler"
	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/engine"
)

// Run loads the scenario's manifests, analyzes them and checks the
// expectations. The returned error is non-nil only when the scenario
// could not be executed; failed expectations are reported in Result.
//
// Each run uses a fresh engine; nothing is shared between scenarios.
func Run(scenario *Scenario) (*Result, error) {
	loaded, errs := compiler.LoadPaths(scenario.Manifests)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load manifests: %w", errs[0])
	}

	opts := []engine.Option{engine.WithCrosscheck(scenario.Crosscheck)}
	if scenario.Dispatch != "" {
		mode, err := callgraph.ParseDispatchMode(scenario.Dispatch)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithDispatch(mode))
	}

	res, err := engine.New(opts...).Analyze(context.Background(), loaded.Program)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	result := NewResult()
	result.Diagnostics = append(result.Diagnostics, res.Diagnostics...)
	result.Fingerprint = res.Program.Fingerprint
	result.Stats = res.Stats
	for _, msg := range EvaluateExpectations(scenario, res.Diagnostics) {
		result.AddError(msg)
	}
	return result, nil
}

// Render is the golden representation of a result: the diagnostics in
// report order, or a single "no diagnostics" line.
func Render(result *Result) []byte {
	if len(result.Diagnostics) == 0 {
		return []byte("no diagnostics\n")
	}
	var buf bytes.Buffer
	_ = diag.WriteText(&buf, result.Diagnostics)
	return buf.Bytes()
}
