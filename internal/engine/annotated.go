package engine

import (
	"github.com/roach88/fcrcheck/internal/bridge"
	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/coherence"
	"github.com/roach88/fcrcheck/internal/concurrency"
	"github.com/roach88/fcrcheck/internal/effects"
	"github.com/roach88/fcrcheck/internal/ir"
	"github.com/roach88/fcrcheck/internal/policy"
)

// Annotated is the program handed to code generation: the call graph
// with bridges on its edges and frozen inferred effect sets.
type Annotated struct {
	IRVersion     string                   `json:"ir_version"`
	EngineVersion string                   `json:"engine_version"`
	RuleSet       string                   `json:"rule_set"`
	Dispatch      callgraph.DispatchMode   `json:"dispatch"`
	Modules       []AnnotatedModule        `json:"modules"`
	Functions     []AnnotatedFunction      `json:"functions"`
	Edges         []AnnotatedEdge          `json:"edges"`
	Impls         []coherence.ImplRecord   `json:"impls"`
	Obligations   []concurrency.Obligation `json:"obligations"`
	Tasks         []concurrency.TaskScope  `json:"tasks"`
	Recursions    []callgraph.Recursion    `json:"recursions"`
	Fingerprint   string                   `json:"fingerprint"`
}

// AnnotatedModule is a policy table entry.
type AnnotatedModule struct {
	Name     string       `json:"name"`
	Policy   ir.Policy    `json:"policy"`
	Budget   ir.EffectSet `json:"budget"`
	Declared bool         `json:"declared"`
}

// AnnotatedFunction carries the frozen inferred set.
type AnnotatedFunction struct {
	Name     string       `json:"name"`
	Module   string       `json:"module"`
	Policy   ir.Policy    `json:"policy"`
	Declared ir.EffectSet `json:"declared"`
	Inferred ir.EffectSet `json:"inferred"`
	Pos      ir.Pos       `json:"pos"`
	// Broken functions had an unresolved call; Incomplete ones reach a
	// broken function, so their inferred set may be missing effects.
	Broken     bool `json:"broken,omitempty"`
	Incomplete bool `json:"incomplete,omitempty"`
}

// AnnotatedEdge is a call edge with its bridges.
type AnnotatedEdge struct {
	Caller    string       `json:"caller"`
	Callee    string       `json:"callee"`
	Pos       ir.Pos       `json:"pos"`
	Kind      ir.CallKind  `json:"kind"`
	Handle    string       `json:"handle,omitempty"`
	Discharge ir.EffectSet `json:"discharge"`
	Async     bool         `json:"async,omitempty"`
	Candidate bool         `json:"candidate,omitempty"`
	Bridges   []ir.Bridge  `json:"bridges,omitempty"`
}

func annotate(
	p *ir.Program,
	g *callgraph.Graph,
	table *policy.Table,
	impls *coherence.Table,
	eff *effects.Result,
	bridges *bridge.Result,
	conc *concurrency.Result,
	dispatch callgraph.DispatchMode,
) *Annotated {
	a := &Annotated{
		IRVersion:     ir.IRVersion,
		EngineVersion: ir.EngineVersion,
		RuleSet:       ir.RuleSet,
		Dispatch:      dispatch,
		Impls:         impls.Records(),
		Obligations:   conc.Obligations,
		Tasks:         conc.Scopes,
		Recursions:    g.Recursions(),
	}

	for _, name := range table.Names() {
		e := table.Entry(name)
		a.Modules = append(a.Modules, AnnotatedModule{Name: name, Policy: e.Policy, Budget: e.Budget, Declared: e.BudgetDeclared})
	}

	incomplete := reachesBroken(g)
	for _, f := range g.Funcs {
		pol, _ := table.Lookup(f.Module)
		a.Functions = append(a.Functions, AnnotatedFunction{
			Name:       f.Name,
			Module:     f.Module,
			Policy:     pol,
			Declared:   f.Decl.DeclaredEffects(),
			Inferred:   eff.Inferred[f.ID],
			Pos:        f.Decl.Pos,
			Broken:     f.Broken,
			Incomplete: incomplete[f.ID],
		})
	}

	for i, e := range g.Edges {
		a.Edges = append(a.Edges, AnnotatedEdge{
			Caller:    g.Funcs[e.Caller].Name,
			Callee:    g.Funcs[e.Callee].Name,
			Pos:       e.Pos,
			Kind:      e.Kind,
			Handle:    e.Handle,
			Discharge: e.Discharge,
			Async:     e.Async,
			Candidate: e.Candidate,
			Bridges:   bridges.For(i),
		})
	}
	return a
}

// reachesBroken marks every function with a call path to a broken one,
// walking edges backwards from the broken set.
func reachesBroken(g *callgraph.Graph) []bool {
	callers := make([][]callgraph.FuncID, len(g.Funcs))
	for _, e := range g.Edges {
		callers[e.Callee] = append(callers[e.Callee], e.Caller)
	}
	out := make([]bool, len(g.Funcs))
	var queue []callgraph.FuncID
	for _, f := range g.Funcs {
		if f.Broken {
			queue = append(queue, f.ID)
		}
	}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		for _, c := range callers[f] {
			if !out[c] {
				out[c] = true
				queue = append(queue, c)
			}
		}
	}
	return out
}

// Function returns the annotated function with the given name.
func (a *Annotated) Function(name string) (AnnotatedFunction, bool) {
	for _, f := range a.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return AnnotatedFunction{}, false
}

// Document renders the annotated program as a canonical value. The
// fingerprint field itself is excluded.
func (a *Annotated) Document() ir.IRObject {
	modules := make(ir.IRArray, len(a.Modules))
	for i, m := range a.Modules {
		modules[i] = ir.IRObject{
			"name":     ir.IRString(m.Name),
			"policy":   ir.IRString(m.Policy.String()),
			"budget":   ir.Strings(m.Budget.Names()),
			"declared": ir.IRBool(m.Declared),
		}
	}

	functions := make(ir.IRArray, len(a.Functions))
	for i, f := range a.Functions {
		functions[i] = ir.IRObject{
			"name":       ir.IRString(f.Name),
			"module":     ir.IRString(f.Module),
			"policy":     ir.IRString(f.Policy.String()),
			"declared":   ir.Strings(f.Declared.Names()),
			"inferred":   ir.Strings(f.Inferred.Names()),
			"pos":        ir.IRString(f.Pos.String()),
			"broken":     ir.IRBool(f.Broken),
			"incomplete": ir.IRBool(f.Incomplete),
		}
	}

	edges := make(ir.IRArray, len(a.Edges))
	for i, e := range a.Edges {
		bs := make(ir.IRArray, len(e.Bridges))
		for j, b := range e.Bridges {
			bs[j] = ir.IRObject{
				"kind":   ir.IRString(b.Kind.String()),
				"args":   ir.Ints(b.Args),
				"return": ir.IRBool(b.Return),
			}
		}
		edges[i] = ir.IRObject{
			"caller":    ir.IRString(e.Caller),
			"callee":    ir.IRString(e.Callee),
			"pos":       ir.IRString(e.Pos.String()),
			"kind":      ir.IRString(e.Kind.String()),
			"handle":    ir.IRString(e.Handle),
			"discharge": ir.Strings(e.Discharge.Names()),
			"async":     ir.IRBool(e.Async),
			"candidate": ir.IRBool(e.Candidate),
			"bridges":   bs,
		}
	}

	impls := make(ir.IRArray, len(a.Impls))
	for i, r := range a.Impls {
		impls[i] = ir.IRObject{
			"trait":  ir.IRString(r.Trait),
			"type":   ir.IRString(r.Type),
			"module": ir.IRString(r.Module),
		}
	}

	tasks := make(ir.IRArray, len(a.Tasks))
	for i, t := range a.Tasks {
		tasks[i] = ir.IRObject{
			"id":             ir.IRString(t.ID),
			"function":       ir.IRString(t.Function),
			"parent":         ir.IRString(t.Parent),
			"children":       ir.Strings(t.Children),
			"joined":         ir.IRBool(t.Joined),
			"cancel_on_exit": ir.IRBool(t.CancelOnExit),
		}
	}

	obligations := make(ir.IRArray, len(a.Obligations))
	for i, o := range a.Obligations {
		obligations[i] = ir.IRObject{
			"function":   ir.IRString(o.Function),
			"pos":        ir.IRString(o.Pos.String()),
			"boundary":   ir.IRString(o.Boundary.String()),
			"type":       ir.IRString(o.Type),
			"capability": ir.IRString(o.Capability),
			"satisfied":  ir.IRBool(o.Satisfied),
		}
	}

	return ir.IRObject{
		"ir_version":     ir.IRString(a.IRVersion),
		"engine_version": ir.IRString(a.EngineVersion),
		"rule_set":       ir.IRString(a.RuleSet),
		"dispatch":       ir.IRString(string(a.Dispatch)),
		"modules":        modules,
		"functions":      functions,
		"edges":          edges,
		"impls":          impls,
		"tasks":          tasks,
		"obligations":    obligations,
	}
}

func (a *Annotated) computeFingerprint() (string, error) {
	return ir.Fingerprint(a.Document())
}
