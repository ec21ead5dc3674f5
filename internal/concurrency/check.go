// Package concurrency verifies Send/Share capability obligations at task
// spawn, channel send and actor send boundaries, checks the async context
// of non-blocking channel operations and builds the structured
// concurrency scope tree.
package concurrency

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/coherence"
	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/ir"
)

// Obligation is one capability a value must have at a boundary.
type Obligation struct {
	Function   string      `json:"function"`
	Pos        ir.Pos      `json:"pos"`
	Boundary   ir.CallKind `json:"boundary"`
	Value      string      `json:"value,omitempty"`
	Type       string      `json:"type"`
	Capability string      `json:"capability"`
	Satisfied  bool        `json:"satisfied"`
}

// TaskScope is a node of the structured-concurrency tree. Scopes are
// local to the function that spawns them; an empty Parent is the
// function body itself.
type TaskScope struct {
	ID       string   `json:"id"`
	Function string   `json:"function"`
	Parent   string   `json:"parent,omitempty"`
	Pos      ir.Pos   `json:"pos"`
	Joined   bool     `json:"joined"`
	Children []string `json:"children,omitempty"`
	// CancelOnExit is set for tasks not joined before their scope exits;
	// the runtime cancels them.
	CancelOnExit bool `json:"cancel_on_exit"`
}

// Result is the checker's output.
type Result struct {
	Obligations []Obligation
	Scopes      []TaskScope
	Diagnostics []diag.Diagnostic
}

// Unsatisfied returns the obligations that failed.
func (r *Result) Unsatisfied() []Obligation {
	var out []Obligation
	for _, o := range r.Obligations {
		if !o.Satisfied {
			out = append(out, o)
		}
	}
	return out
}

// Check walks every call site of every function. It needs only the call
// sites, not resolved edges, so broken functions are checked too.
func Check(g *callgraph.Graph, impls *coherence.Table) *Result {
	r := &Result{}
	for _, f := range g.Funcs {
		var scopes []TaskScope
		for _, site := range f.Decl.Calls {
			switch site.Kind {
			case ir.CallSpawn:
				r.obligations(f, site, impls)
				scopes = append(scopes, scopeOf(f, site, len(scopes)))
			case ir.CallChanSend:
				r.obligations(f, site, impls)
				r.checkAsync(f, site)
			case ir.CallChanRecv:
				r.checkAsync(f, site)
			case ir.CallActorSend:
				r.obligations(f, site, impls)
			}
		}
		r.Scopes = append(r.Scopes, r.linkScopes(f, scopes)...)
	}
	return r
}

func (r *Result) obligations(f *callgraph.Function, site ir.CallSite, impls *coherence.Table) {
	for _, c := range site.Captures {
		capability := coherence.TraitSend
		if site.Kind == ir.CallSpawn && c.Mode == ir.CaptureShare {
			capability = coherence.TraitShare
		}
		_, ok := impls.Lookup(capability, c.Type)
		r.Obligations = append(r.Obligations, Obligation{
			Function:   f.Name,
			Pos:        site.Pos,
			Boundary:   site.Kind,
			Value:      c.Name,
			Type:       c.Type,
			Capability: capability,
			Satisfied:  ok,
		})
		if !ok {
			r.Diagnostics = append(r.Diagnostics, diag.New(diag.MissingCapability, site.Pos, f.Name,
				"%s %s %s across a %s boundary, but %s has no %s impl",
				f.Name, verb(site.Kind, c.Mode), describeValue(c), site.Kind, c.Type, capability))
		}
	}
}

func (r *Result) checkAsync(f *callgraph.Function, site ir.CallSite) {
	if site.Blocking || site.Async {
		return
	}
	r.Diagnostics = append(r.Diagnostics, diag.New(diag.AsyncContext, site.Pos, f.Name,
		"non-blocking %s in %s must be inside an async context", site.Kind, f.Name))
}

func scopeOf(f *callgraph.Function, site ir.CallSite, n int) TaskScope {
	id := site.TaskScope
	if id == "" {
		id = fmt.Sprintf("task%d", n)
	}
	return TaskScope{
		ID:           id,
		Function:     f.Name,
		Parent:       site.ParentScope,
		Pos:          site.Pos,
		Joined:       site.Join,
		CancelOnExit: !site.Join,
	}
}

// linkScopes fills Children and reports scopes whose parent was never
// spawned in the same function.
func (r *Result) linkScopes(f *callgraph.Function, scopes []TaskScope) []TaskScope {
	index := make(map[string]int, len(scopes))
	for i, s := range scopes {
		if _, dup := index[s.ID]; dup {
			r.Diagnostics = append(r.Diagnostics, diag.Internalf(s.Pos,
				"input contract: task scope %q spawned twice in %s", s.ID, f.Name))
			continue
		}
		index[s.ID] = i
	}
	for _, s := range scopes {
		if s.Parent == "" {
			continue
		}
		pi, ok := index[s.Parent]
		if !ok {
			r.Diagnostics = append(r.Diagnostics, diag.Internalf(s.Pos,
				"input contract: task scope %q in %s names unknown parent %q", s.ID, f.Name, s.Parent))
			continue
		}
		if !slices.Contains(scopes[pi].Children, s.ID) {
			scopes[pi].Children = append(scopes[pi].Children, s.ID)
		}
	}
	return scopes
}

func verb(kind ir.CallKind, mode ir.CaptureMode) string {
	switch {
	case kind != ir.CallSpawn:
		return "sends"
	case mode == ir.CaptureShare:
		return "shares"
	}
	return "moves"
}

func describeValue(c ir.Capture) string {
	if c.Name == "" {
		return "a value of type " + c.Type
	}
	return strings.TrimSpace(c.Name)
}
