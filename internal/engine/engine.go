package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/fcrcheck/internal/bridge"
	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/coherence"
	"github.com/roach88/fcrcheck/internal/concurrency"
	"github.com/roach88/fcrcheck/internal/crosscheck"
	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/effects"
	"github.com/roach88/fcrcheck/internal/ir"
	"github.com/roach88/fcrcheck/internal/policy"
)

// Engine holds analysis options. It keeps no state between runs and is
// safe for concurrent use.
type Engine struct {
	dispatch   callgraph.DispatchMode
	crosscheck bool
	sequential bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDispatch selects how candidate-set call sites are handled.
//
// Default: callgraph.DispatchStrict.
func WithDispatch(mode callgraph.DispatchMode) Option {
	return func(e *Engine) {
		e.dispatch = mode
	}
}

// WithCrosscheck enables the Datalog oracle after the effect fixpoint.
func WithCrosscheck(enabled bool) Option {
	return func(e *Engine) {
		e.crosscheck = enabled
	}
}

// WithSequential runs the post-effects passes one after another instead
// of concurrently. Output is identical either way.
func WithSequential(enabled bool) Option {
	return func(e *Engine) {
		e.sequential = enabled
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{dispatch: callgraph.DispatchStrict}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats summarizes one run for logging and the run history.
type Stats struct {
	Functions   int `json:"functions"`
	Edges       int `json:"edges"`
	SCCs        int `json:"sccs"`
	Iterations  int `json:"iterations"`
	Bridges     int `json:"bridges"`
	Obligations int `json:"obligations"`
}

// Result is the output contract: the annotated program plus the ordered
// diagnostics. Program is always set, even when diagnostics exist.
type Result struct {
	Program     *Annotated
	Diagnostics []diag.Diagnostic
	Stats       Stats
}

// OK reports whether the program passed every check.
func (r *Result) OK() bool { return len(r.Diagnostics) == 0 }

// Analyze runs the full pipeline over p. The returned error is non-nil
// only when the analysis itself could not complete; problems in p are
// reported as diagnostics.
func (e *Engine) Analyze(ctx context.Context, p *ir.Program) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, newCanceledError("ingest", err)
	}

	rep := diag.NewReporter()

	table, ds := policy.Ingest(p.Modules)
	rep.Add(ds...)
	table.Freeze()

	impls, ds := coherence.Ingest(p)
	rep.Add(ds...)
	impls.Freeze()

	g, ds := callgraph.Build(p, callgraph.Options{Dispatch: e.dispatch})
	rep.Add(ds...)

	seeds := bridge.UnsafeSeeds(g, table)
	eff := effects.Solve(g, table, seeds)
	rep.Add(eff.Diagnostics...)
	Logger().Debug("effects solved",
		zap.Int("functions", len(g.Funcs)),
		zap.Int("edges", len(g.Edges)),
		zap.Int("iterations", eff.Iterations),
		zap.Int("bound", eff.Bound),
		zap.Int("unsafe_seeds", len(seeds)))

	if e.crosscheck {
		ds, err := crosscheck.Verify(g, eff)
		if err != nil {
			return nil, &AnalysisError{Code: ErrCodeOracleFailed, Stage: "crosscheck", Message: "datalog oracle failed", Err: err}
		}
		rep.Add(ds...)
		Logger().Debug("crosscheck complete", zap.Int("disagreements", len(ds)))
	}

	if err := ctx.Err(); err != nil {
		return nil, newCanceledError("effects", err)
	}

	var (
		bridges *bridge.Result
		coh     []diag.Diagnostic
		conc    *concurrency.Result
	)
	passes := []func(){
		func() { bridges = bridge.Synthesize(g, table) },
		func() { coh = coherence.Check(impls) },
		func() { conc = concurrency.Check(g, impls) },
	}
	if err := e.runPasses(ctx, passes); err != nil {
		return nil, err
	}
	rep.Add(bridges.Diagnostics...)
	rep.Add(coh...)
	rep.Add(conc.Diagnostics...)

	ann := annotate(p, g, table, impls, eff, bridges, conc, e.dispatch)
	fp, err := ann.computeFingerprint()
	if err != nil {
		return nil, &AnalysisError{Code: ErrCodeFingerprint, Stage: "report", Message: "cannot fingerprint annotated program", Err: err}
	}
	ann.Fingerprint = fp

	res := &Result{
		Program:     ann,
		Diagnostics: rep.Diagnostics(),
		Stats: Stats{
			Functions:   len(g.Funcs),
			Edges:       len(g.Edges),
			SCCs:        len(g.SCCs()),
			Iterations:  eff.Iterations,
			Bridges:     bridges.Count(),
			Obligations: len(conc.Obligations),
		},
	}
	Logger().Debug("analysis complete",
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Int("bridges", res.Stats.Bridges),
		zap.String("fingerprint", fp),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// runPasses runs the independent passes. Each pass only reads frozen
// tables and the graph and writes its own variable.
func (e *Engine) runPasses(ctx context.Context, passes []func()) error {
	if e.sequential {
		for _, pass := range passes {
			pass()
		}
		return nil
	}

	grp, gctx := errgroup.WithContext(ctx)
	for _, pass := range passes {
		pass := pass
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return newCanceledError("parallel", err)
			}
			pass()
			return nil
		})
	}
	return grp.Wait()
}
