// Package effects is the effect algebra engine: it infers, per function,
// the effects reachable through the call graph and checks them against
// declarations, await sites and module budgets.
//
// The lattice is ir.EffectSet ordered by inclusion and joined by union.
// Components of the call graph are solved callees-first; inside a
// component the equations are iterated until nothing changes.
package effects

import (
	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/ir"
	"github.com/roach88/fcrcheck/internal/policy"
)

// Seeds are extra effects a function carries regardless of its body,
// such as Unsafe contributed by a boundary into an unsafe module.
type Seeds map[callgraph.FuncID]ir.EffectSet

// Result holds the frozen inferred sets, indexed by FuncID.
type Result struct {
	Inferred []ir.EffectSet
	// Iterations counts component sweeps that grew at least one set.
	Iterations int
	// Bound is |functions| x |effect kinds|.
	Bound       int
	Diagnostics []diag.Diagnostic

	g    *callgraph.Graph
	base []ir.EffectSet
	// observe, when set, sees the inferred sets after every sweep.
	observe func([]ir.EffectSet)
}

// Solve runs the fixpoint and the post-fixpoint checks.
func Solve(g *callgraph.Graph, table *policy.Table, seeds Seeds) *Result {
	r := newResult(g, seeds)
	if !r.fixpoint() {
		return r
	}
	r.checkDeclared()
	r.checkAwait()
	r.checkBudgets(table)
	return r
}

func newResult(g *callgraph.Graph, seeds Seeds) *Result {
	n := len(g.Funcs)
	r := &Result{
		Inferred: make([]ir.EffectSet, n),
		Bound:    n * ir.NumEffectKinds,
		g:        g,
		base:     make([]ir.EffectSet, n),
	}
	for _, f := range g.Funcs {
		r.base[f.ID] = f.Decl.DeclaredEffects().Union(seeds[f.ID])
		r.Inferred[f.ID] = r.base[f.ID]
	}
	return r
}

func (r *Result) fixpoint() bool {
	for _, scc := range r.g.SCCs() {
		recursive := len(scc) > 1 || r.g.HasSelfLoop(scc[0])
		for {
			changed := false
			for _, f := range scc {
				next := r.equation(f, r.Inferred)
				if !r.Inferred[f].SubsetOf(next) {
					r.Diagnostics = append(r.Diagnostics, diag.Internalf(r.g.Funcs[f].Decl.Pos,
						"inferred effects of %s shrank from %s to %s", r.g.Funcs[f].Name, r.Inferred[f], next))
					return false
				}
				if next != r.Inferred[f] {
					r.Inferred[f] = next
					changed = true
				}
			}
			if changed {
				r.Iterations++
			}
			if r.observe != nil {
				r.observe(r.Inferred)
			}
			if r.Iterations > r.Bound {
				r.Diagnostics = append(r.Diagnostics, diag.Internalf(r.g.Funcs[scc[0]].Decl.Pos,
					"effect fixpoint exceeded %d iterations", r.Bound))
				return false
			}
			if !changed || !recursive {
				break
			}
		}
	}
	return true
}

// equation evaluates declared ∪ seeds ∪ ⋃ (inferred[callee] minus discharge).
func (r *Result) equation(f callgraph.FuncID, inferred []ir.EffectSet) ir.EffectSet {
	out := r.base[f]
	for _, e := range r.g.Out(f) {
		out = out.Union(inferred[e.Callee].Minus(e.Discharge))
	}
	return out
}

// Step applies the equations once to every function, reading only the
// current inferred sets. At a fixpoint the result equals Inferred.
func (r *Result) Step() []ir.EffectSet {
	out := make([]ir.EffectSet, len(r.Inferred))
	for i := range r.Inferred {
		out[i] = r.equation(callgraph.FuncID(i), r.Inferred)
	}
	return out
}

// Origin returns the effects f carries itself: declared plus seeds.
func (r *Result) Origin(f callgraph.FuncID) ir.EffectSet { return r.base[f] }

// Of returns the inferred set of a function by qualified name.
func (r *Result) Of(name string) (ir.EffectSet, bool) {
	f, ok := r.g.Lookup(name)
	if !ok {
		return 0, false
	}
	return r.Inferred[f.ID], true
}

func (r *Result) checkDeclared() {
	for _, f := range r.g.Funcs {
		if f.Broken {
			continue
		}
		declared := f.Decl.DeclaredEffects()
		for _, e := range r.Inferred[f.ID].Minus(declared).Kinds() {
			chain, pos := r.Chain(f.ID, e)
			d := diag.New(diag.EffectMismatch, pos, f.Name,
				"%s performs effect %s not in its declared set %s", f.Name, e, declared)
			r.Diagnostics = append(r.Diagnostics, d.WithChain(chain))
		}
	}
}

// Chain returns a shortest call chain from f to a function where e
// originates, and the position of the first call on it (or of f itself
// when e originates in f).
func (r *Result) Chain(f callgraph.FuncID, e ir.EffectKind) ([]string, ir.Pos) {
	type step struct {
		prev callgraph.FuncID
		pos  ir.Pos
	}
	from := map[callgraph.FuncID]step{f: {prev: -1}}
	queue := []callgraph.FuncID{f}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if r.base[cur].Has(e) {
			var names []string
			pos := r.g.Funcs[f].Decl.Pos
			for at := cur; at != -1; at = from[at].prev {
				names = append([]string{r.g.Funcs[at].Name}, names...)
				if from[at].prev == f {
					pos = from[at].pos
				}
			}
			return names, pos
		}
		for _, edge := range r.g.Out(cur) {
			if edge.Discharge.Has(e) || !r.Inferred[edge.Callee].Has(e) {
				continue
			}
			if _, seen := from[edge.Callee]; seen {
				continue
			}
			from[edge.Callee] = step{prev: cur, pos: edge.Pos}
			queue = append(queue, edge.Callee)
		}
	}
	return []string{r.g.Funcs[f].Name}, r.g.Funcs[f].Decl.Pos
}

func (r *Result) checkAwait() {
	for _, f := range r.g.Funcs {
		if f.Decl.DeclaredEffects().Has(ir.EffectAsync) {
			continue
		}
		for _, site := range f.Decl.Calls {
			if site.Await {
				r.Diagnostics = append(r.Diagnostics, diag.New(diag.AwaitOutsideAsync, site.Pos, f.Name,
					"await in %s requires Async in its declared effects", f.Name))
			}
		}
	}
}

func (r *Result) checkBudgets(table *policy.Table) {
	for _, f := range r.g.Funcs {
		if f.Broken {
			continue
		}
		entry := table.Entry(f.Module)
		if !entry.BudgetDeclared {
			continue
		}
		if extra := r.Inferred[f.ID].Minus(entry.Budget); !extra.IsEmpty() {
			r.Diagnostics = append(r.Diagnostics, diag.New(diag.BudgetExceeded, f.Decl.Pos, f.Name,
				"%s infers %s outside the effect budget %s of module %s", f.Name, extra, entry.Budget, f.Module))
		}
	}
}
