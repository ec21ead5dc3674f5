// Package callgraph derives the function-level call graph of a compilation
// unit, with per-edge handle-scope and async-context metadata, and its
// strongly connected components.
package callgraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/ir"
)

// DispatchMode controls call sites that carry a candidate set instead of a
// single resolved callee.
type DispatchMode string

const (
	// DispatchStrict rejects candidate sets with UnresolvedCallError.
	DispatchStrict DispatchMode = "strict"
	// DispatchConservative adds one edge per candidate.
	DispatchConservative DispatchMode = "conservative"
)

// ParseDispatchMode validates a dispatch mode string; empty means strict.
func ParseDispatchMode(s string) (DispatchMode, error) {
	switch DispatchMode(strings.ToLower(s)) {
	case "", DispatchStrict:
		return DispatchStrict, nil
	case DispatchConservative:
		return DispatchConservative, nil
	}
	return "", fmt.Errorf("invalid dispatch mode %q: must be strict or conservative", s)
}

// Options configures Build.
type Options struct {
	Dispatch DispatchMode
}

// FuncID indexes Graph.Funcs.
type FuncID int

// Function is a node of the graph.
type Function struct {
	ID     FuncID
	Name   string
	Module string
	Decl   *ir.FunctionDecl
	// Broken is set when one of the function's call sites could not be
	// resolved; passes that need a complete graph skip it.
	Broken bool
}

// Edge is one resolved call. Site indexes Caller's Decl.Calls.
type Edge struct {
	Caller    FuncID
	Callee    FuncID
	Site      int
	Pos       ir.Pos
	Kind      ir.CallKind
	Handle    string
	Discharge ir.EffectSet
	Async     bool
	// Candidate marks an edge created from a dynamic-dispatch candidate set.
	Candidate bool
}

// Graph is immutable once Build returns.
type Graph struct {
	Funcs  []*Function
	Edges  []Edge
	byName map[string][]FuncID
	out    [][]int
}

// Build resolves every call site of p. Unresolvable sites produce
// UnresolvedCallError and mark their caller broken; the rest of the graph
// is still built.
func Build(p *ir.Program, opts Options) (*Graph, []diag.Diagnostic) {
	g := &Graph{byName: make(map[string][]FuncID)}
	for i := range p.Functions {
		decl := &p.Functions[i]
		module := decl.Module
		if module == "" {
			module, _, _ = ir.SplitQualified(decl.Name)
		}
		id := FuncID(len(g.Funcs))
		g.Funcs = append(g.Funcs, &Function{ID: id, Name: decl.Name, Module: module, Decl: decl})
		g.byName[decl.Name] = append(g.byName[decl.Name], id)
	}
	g.out = make([][]int, len(g.Funcs))

	var diags []diag.Diagnostic
	for _, fn := range g.Funcs {
		scopes, scopeDiags := handleScopes(fn)
		diags = append(diags, scopeDiags...)

		for si := range fn.Decl.Calls {
			site := &fn.Decl.Calls[si]
			targets, d := g.resolveSite(fn, site, opts)
			if d != nil {
				diags = append(diags, *d)
				fn.Broken = true
				continue
			}
			discharge, ok := scopes.discharge(site.Handle)
			if !ok {
				diags = append(diags, diag.Internalf(site.Pos,
					"input contract: call in %s names unknown handle scope %q", fn.Name, site.Handle))
				fn.Broken = true
				continue
			}
			for _, callee := range targets {
				g.addEdge(Edge{
					Caller:    fn.ID,
					Callee:    callee,
					Site:      si,
					Pos:       site.Pos,
					Kind:      site.Kind,
					Handle:    site.Handle,
					Discharge: discharge,
					Async:     site.Async,
					Candidate: len(site.Candidates) > 0,
				})
			}
		}
	}
	return g, diags
}

func (g *Graph) addEdge(e Edge) {
	g.out[e.Caller] = append(g.out[e.Caller], len(g.Edges))
	g.Edges = append(g.Edges, e)
}

// resolveSite returns the callee(s) of a site. Channel and actor
// operations without a named callee are runtime built-ins and have none.
func (g *Graph) resolveSite(fn *Function, site *ir.CallSite, opts Options) ([]FuncID, *diag.Diagnostic) {
	if len(site.Candidates) > 0 {
		if len(site.Candidates) > 1 && opts.Dispatch != DispatchConservative {
			d := diag.New(diag.UnresolvedCall, site.Pos, fn.Name,
				"call in %s has %d candidate targets (%s); dispatch must be resolved upstream",
				fn.Name, len(site.Candidates), strings.Join(site.Candidates, ", "))
			return nil, &d
		}
		var out []FuncID
		for _, c := range site.Candidates {
			id, d := g.resolveOne(fn, c, site.Pos)
			if d != nil {
				return nil, d
			}
			out = append(out, id)
		}
		return out, nil
	}

	if site.Callee == "" {
		if site.Kind == ir.CallChanSend || site.Kind == ir.CallChanRecv || site.Kind == ir.CallActorSend {
			return nil, nil
		}
		d := diag.New(diag.UnresolvedCall, site.Pos, fn.Name, "call in %s has no callee", fn.Name)
		return nil, &d
	}

	id, d := g.resolveOne(fn, site.Callee, site.Pos)
	if d != nil {
		return nil, d
	}
	return []FuncID{id}, nil
}

// resolveOne resolves a name as written, then relative to the caller's
// module. It must yield exactly one function.
func (g *Graph) resolveOne(fn *Function, name string, pos ir.Pos) (FuncID, *diag.Diagnostic) {
	ids := g.byName[name]
	if len(ids) == 0 {
		ids = g.byName[ir.QualifiedName(fn.Module, name)]
	}
	switch len(ids) {
	case 1:
		return ids[0], nil
	case 0:
		d := diag.New(diag.UnresolvedCall, pos, fn.Name,
			"cannot resolve callee %s called from %s", name, fn.Name)
		return 0, &d
	default:
		d := diag.New(diag.UnresolvedCall, pos, fn.Name,
			"callee %s called from %s is ambiguous: %d functions share that name", name, fn.Name, len(ids))
		return 0, &d
	}
}

// Lookup returns the function with a qualified name, if it is unique.
func (g *Graph) Lookup(name string) (*Function, bool) {
	ids := g.byName[name]
	if len(ids) != 1 {
		return nil, false
	}
	return g.Funcs[ids[0]], true
}

// Out returns the outgoing edges of f in call-site order.
func (g *Graph) Out(f FuncID) []Edge {
	out := make([]Edge, len(g.out[f]))
	for i, ei := range g.out[f] {
		out[i] = g.Edges[ei]
	}
	return out
}

// Names returns function names in declaration order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.Funcs))
	for i, f := range g.Funcs {
		names[i] = f.Name
	}
	return names
}

// Successors returns distinct callees of f in first-call order.
func (g *Graph) Successors(f FuncID) []FuncID {
	var out []FuncID
	for _, ei := range g.out[f] {
		c := g.Edges[ei].Callee
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

type scopeSet map[string]ir.HandleScope

// discharge returns the union of effects discharged by the scope and all
// its enclosing scopes. The empty id means "not inside a handle block".
func (s scopeSet) discharge(id string) (ir.EffectSet, bool) {
	var out ir.EffectSet
	seen := make(map[string]bool)
	for id != "" {
		if seen[id] {
			break
		}
		seen[id] = true
		hs, ok := s[id]
		if !ok {
			return 0, false
		}
		out = out.Union(hs.Discharges)
		id = hs.Parent
	}
	return out, true
}

func handleScopes(fn *Function) (scopeSet, []diag.Diagnostic) {
	scopes := make(scopeSet, len(fn.Decl.Handles))
	var diags []diag.Diagnostic
	for _, hs := range fn.Decl.Handles {
		if _, dup := scopes[hs.ID]; dup {
			diags = append(diags, diag.Internalf(hs.Pos,
				"input contract: handle scope %q declared twice in %s", hs.ID, fn.Name))
			continue
		}
		scopes[hs.ID] = hs
	}
	return scopes, diags
}
