// Package crosscheck re-derives effect reachability with a Datalog
// program evaluated by Mangle and compares the least model with the
// effect solver's fixpoint. Any disagreement is an engine defect.
package crosscheck

import (
	"fmt"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/effects"
	"github.com/roach88/fcrcheck/internal/ir"
)

// rules is the reachability program. Functions, effects and edges are
// encoded as integers: F is a FuncID, E an EffectKind, S an edge index
// plus one.
const rules = `
reach(F, E) :- origin(F, E).
reach(F, E) :- edge(F, G, S), reach(G, E), !discharged(S, E).
`

// Program renders the facts and rules for g and the solver's origins.
// Sentinel rows reference an out-of-range function and effect so every
// predicate is defined even for graphs without edges or handle scopes.
func Program(g *callgraph.Graph, r *effects.Result) string {
	n, k := len(g.Funcs), ir.NumEffectKinds

	var b strings.Builder
	fmt.Fprintf(&b, "origin(%d, %d).\n", n, k)
	fmt.Fprintf(&b, "edge(%d, %d, 0).\n", n, n)
	fmt.Fprintf(&b, "discharged(0, %d).\n", k)
	for _, f := range g.Funcs {
		for _, e := range r.Origin(f.ID).Kinds() {
			fmt.Fprintf(&b, "origin(%d, %d).\n", f.ID, e)
		}
	}
	for i, e := range g.Edges {
		fmt.Fprintf(&b, "edge(%d, %d, %d).\n", e.Caller, e.Callee, i+1)
		for _, d := range e.Discharge.Kinds() {
			fmt.Fprintf(&b, "discharged(%d, %d).\n", i+1, d)
		}
	}
	b.WriteString(rules)
	return b.String()
}

// Reach evaluates the program and returns the reachable effect set of
// every function.
func Reach(g *callgraph.Graph, r *effects.Result) ([]ir.EffectSet, error) {
	unit, err := parse.Unit(strings.NewReader(Program(g, r)))
	if err != nil {
		return nil, fmt.Errorf("crosscheck: parse: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("crosscheck: analysis: %w", err)
	}
	store := factstore.NewSimpleInMemoryStore()
	if _, err := mengine.EvalProgramWithStats(info, store); err != nil {
		return nil, fmt.Errorf("crosscheck: eval: %w", err)
	}

	n, k := int64(len(g.Funcs)), int64(ir.NumEffectKinds)
	out := make([]ir.EffectSet, n)
	err = store.GetFacts(ast.NewQuery(ast.PredicateSym{Symbol: "reach", Arity: 2}), func(a ast.Atom) error {
		f, err := number(a.Args[0])
		if err != nil {
			return err
		}
		e, err := number(a.Args[1])
		if err != nil {
			return err
		}
		if f < 0 || f >= n || e < 0 || e >= k {
			return nil
		}
		out[f] = out[f].With(ir.EffectKind(e))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("crosscheck: query: %w", err)
	}
	return out, nil
}

func number(t ast.BaseTerm) (int64, error) {
	c, ok := t.(ast.Constant)
	if !ok || c.Type != ast.NumberType {
		return 0, fmt.Errorf("crosscheck: expected number, got %v", t)
	}
	return c.NumValue, nil
}

// Verify compares the oracle with the solver and reports every
// function whose sets differ as an InternalError.
func Verify(g *callgraph.Graph, r *effects.Result) ([]diag.Diagnostic, error) {
	reach, err := Reach(g, r)
	if err != nil {
		return nil, err
	}
	var diags []diag.Diagnostic
	for _, f := range g.Funcs {
		if got, want := r.Inferred[f.ID], reach[f.ID]; got != want {
			diags = append(diags, diag.Internalf(f.Decl.Pos,
				"effect solver inferred %s for %s but the Datalog cross-check derives %s", got, f.Name, want))
		}
	}
	return diags, nil
}
