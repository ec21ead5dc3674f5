// Package bridge inspects call edges that cross a memory-policy boundary
// and either attaches an adapting Bridge to the edge or rejects it.
//
// Bridges are data: codegen reads the ir.Bridge values attached to each
// edge and never re-derives policy logic.
package bridge

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/effects"
	"github.com/roach88/fcrcheck/internal/ir"
	"github.com/roach88/fcrcheck/internal/policy"
)

// Result maps edge indices (into Graph.Edges) to their bridges.
type Result struct {
	Bridges     map[int][]ir.Bridge
	Diagnostics []diag.Diagnostic
}

// For returns the bridges attached to an edge.
func (r *Result) For(edge int) []ir.Bridge { return r.Bridges[edge] }

// Count returns the number of synthesized bridges.
func (r *Result) Count() int {
	n := 0
	for _, bs := range r.Bridges {
		n += len(bs)
	}
	return n
}

// UnsafeSeeds adds Unsafe to both endpoints of every edge between an
// Unsafe module and a module with a different policy, scoped to the call:
// the caller performs the crossing call, so it carries Unsafe; the callee
// carries it only when it lives in the Unsafe module. A safe callee reached
// from unsafe code stays safe for its other callers. The effect solver
// consumes the seeds as extra origins.
func UnsafeSeeds(g *callgraph.Graph, table *policy.Table) effects.Seeds {
	seeds := make(effects.Seeds)
	for _, e := range g.Edges {
		caller, callee := g.Funcs[e.Caller], g.Funcs[e.Callee]
		if caller.Broken {
			continue
		}
		cp, _ := table.Lookup(caller.Module)
		tp, _ := table.Lookup(callee.Module)
		if cp == tp || (cp != ir.PolicyUnsafe && tp != ir.PolicyUnsafe) {
			continue
		}
		seeds[e.Caller] = seeds[e.Caller].With(ir.EffectUnsafe)
		if tp == ir.PolicyUnsafe {
			seeds[e.Callee] = seeds[e.Callee].With(ir.EffectUnsafe)
		}
	}
	return seeds
}

// Synthesize selects bridges for every boundary edge and checks the FFI
// ownership rules. Edges out of broken functions are skipped.
func Synthesize(g *callgraph.Graph, table *policy.Table) *Result {
	r := &Result{Bridges: make(map[int][]ir.Bridge)}

	for _, f := range g.Funcs {
		if f.Decl.FFI {
			r.checkFFIParams(f)
		}
	}

	for i, e := range g.Edges {
		caller, callee := g.Funcs[e.Caller], g.Funcs[e.Callee]
		if caller.Broken {
			continue
		}
		cp, _ := table.Lookup(caller.Module)
		tp, _ := table.Lookup(callee.Module)

		var bridges []ir.Bridge
		if cp != tp && cp != ir.PolicyUnsafe && tp != ir.PolicyUnsafe {
			switch {
			case cp == ir.PolicyBorrow && tp == ir.PolicyGC:
				bridges = r.borrowToGC(e, caller, callee)
			case cp == ir.PolicyGC && tp == ir.PolicyBorrow:
				bridges = r.gcToBorrow(e, caller, callee)
			}
		}
		if b, ok := r.foreignReturn(e, caller, callee, cp); ok {
			bridges = append(bridges, b)
		}
		if len(bridges) > 0 {
			r.Bridges[i] = bridges
		}
	}
	return r
}

// borrowToGC exposes borrowed arguments as call-bounded views and copies
// owned ones. A view the callee stores past the call is rejected.
func (r *Result) borrowToGC(e callgraph.Edge, caller, callee *callgraph.Function) []ir.Bridge {
	var views, copies []int
	for i, p := range callee.Decl.Params {
		switch p.Ownership.Effective() {
		case ir.OwnershipBorrowed:
			if p.Escapes {
				r.Diagnostics = append(r.Diagnostics, diag.New(diag.OwnershipEscape, e.Pos, caller.Name,
					"%s passes borrowed argument %s to GC function %s, which stores it past the call without copying",
					caller.Name, paramName(p, i), callee.Name))
				continue
			}
			views = append(views, i)
		default:
			copies = append(copies, i)
		}
	}
	return bridgesFor(views, copies)
}

// gcToBorrow admits only Owned arguments, copied out of the GC region.
func (r *Result) gcToBorrow(e callgraph.Edge, caller, callee *callgraph.Function) []ir.Bridge {
	var copies []int
	for i, p := range callee.Decl.Params {
		if p.Ownership == ir.OwnershipOwned {
			copies = append(copies, i)
			continue
		}
		r.Diagnostics = append(r.Diagnostics, diag.New(diag.GcToBorrow, e.Pos, caller.Name,
			"GC function %s passes argument %s to borrow function %s as %s; only owned arguments may cross into a borrow module",
			caller.Name, paramName(p, i), callee.Name, describe(p.Ownership)))
	}
	return bridgesFor(nil, copies)
}

// foreignReturn pins a foreign pointer stored by a GC caller.
func (r *Result) foreignReturn(e callgraph.Edge, caller, callee *callgraph.Function, callerPolicy ir.Policy) (ir.Bridge, bool) {
	ret := callee.Decl.Return
	if !callee.Decl.FFI || ret == nil || !ret.Pointer || callerPolicy != ir.PolicyGC {
		return ir.Bridge{}, false
	}
	if !caller.Decl.Calls[e.Site].ResultStored {
		return ir.Bridge{}, false
	}
	if ret.Ownership == ir.OwnershipTake {
		return ir.Bridge{Kind: ir.PinWrapper, Return: true}, true
	}
	r.Diagnostics = append(r.Diagnostics, diag.New(diag.UnpinnedForeignPtr, e.Pos, caller.Name,
		"%s stores the foreign pointer returned by %s; the return must be annotated take so it can be pinned",
		caller.Name, callee.Name))
	return ir.Bridge{}, false
}

// checkFFIParams requires borrow or take on every foreign parameter. Owned
// has no meaning across the foreign boundary, so it is rejected like a
// missing annotation.
func (r *Result) checkFFIParams(f *callgraph.Function) {
	var missing []string
	for i, p := range f.Decl.Params {
		if p.Ownership != ir.OwnershipBorrowed && p.Ownership != ir.OwnershipTake {
			missing = append(missing, paramName(p, i))
		}
	}
	if len(missing) == 0 {
		return
	}
	r.Diagnostics = append(r.Diagnostics, diag.New(diag.FfiAnnotation, f.Decl.Pos, f.Name,
		"FFI function %s has parameters without a borrow or take ownership annotation: %s",
		f.Name, strings.Join(missing, ", ")))
}

func bridgesFor(views, copies []int) []ir.Bridge {
	var out []ir.Bridge
	if len(views) > 0 {
		out = append(out, ir.Bridge{Kind: ir.ViewBridge, Args: slices.Clone(views)})
	}
	if len(copies) > 0 {
		out = append(out, ir.Bridge{Kind: ir.CopyBridge, Args: slices.Clone(copies)})
	}
	return out
}

func paramName(p ir.Param, i int) string {
	if p.Name != "" {
		return p.Name
	}
	return "#" + strconv.Itoa(i)
}

func describe(o ir.Ownership) string {
	if o == ir.OwnershipNone {
		return "unannotated"
	}
	return o.String()
}
