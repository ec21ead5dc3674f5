package callgraph

import (
	"fmt"
	"strings"
)

// SCCs returns the strongly connected components of g in reverse
// topological order of the condensation: every component appears after
// all components it calls into. This is the order in which the effect
// solver processes them.
//
// The walk is Tarjan's algorithm with an explicit stack, so deep call
// chains cannot overflow the goroutine stack. Nodes are visited in
// declaration order and successors in call-site order, which makes the
// output deterministic.
func (g *Graph) SCCs() [][]FuncID {
	n := len(g.Funcs)
	var (
		next    = 0
		index   = make([]int, n)
		lowlink = make([]int, n)
		onStack = make([]bool, n)
		stack   []FuncID
		sccs    [][]FuncID
	)
	for i := range index {
		index[i] = -1
	}

	type frame struct {
		v    FuncID
		succ []FuncID
		i    int
	}

	for root := 0; root < n; root++ {
		if index[root] != -1 {
			continue
		}
		work := []*frame{{v: FuncID(root), succ: g.Successors(FuncID(root))}}
		index[root], lowlink[root] = next, next
		next++
		stack = append(stack, FuncID(root))
		onStack[root] = true

		for len(work) > 0 {
			top := work[len(work)-1]
			if top.i < len(top.succ) {
				w := top.succ[top.i]
				top.i++
				switch {
				case index[w] == -1:
					index[w], lowlink[w] = next, next
					next++
					stack = append(stack, w)
					onStack[w] = true
					work = append(work, &frame{v: w, succ: g.Successors(w)})
				case onStack[w]:
					lowlink[top.v] = min(lowlink[top.v], index[w])
				}
				continue
			}

			// all successors done: pop frame, propagate lowlink to parent
			work = work[:len(work)-1]
			v := top.v
			if len(work) > 0 {
				parent := work[len(work)-1].v
				lowlink[parent] = min(lowlink[parent], lowlink[v])
			}
			if lowlink[v] == index[v] {
				var scc []FuncID
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, scc)
			}
		}
	}
	return sccs
}

// HasSelfLoop reports whether f calls itself directly.
func (g *Graph) HasSelfLoop(f FuncID) bool {
	for _, ei := range g.out[f] {
		if g.Edges[ei].Callee == f {
			return true
		}
	}
	return false
}

// Recursion describes one recursive component.
type Recursion struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// Recursions reports every SCC that is a cycle (size > 1 or a self-loop),
// with one example cycle path through it. Recursion is legal; this is
// informational output for the driver.
func (g *Graph) Recursions() []Recursion {
	var out []Recursion
	for _, scc := range g.SCCs() {
		if len(scc) == 1 && !g.HasSelfLoop(scc[0]) {
			continue
		}
		path := g.cyclePath(scc)
		msg := fmt.Sprintf("recursive component: %s", strings.Join(path, " → "))
		if len(scc) == 1 {
			msg = fmt.Sprintf("self-recursive function: %s", path[0])
		}
		out = append(out, Recursion{Path: path, Message: msg})
	}
	return out
}

// cyclePath starts at the first member of the component and follows
// edges to unvisited members until it returns to the start.
func (g *Graph) cyclePath(scc []FuncID) []string {
	members := make(map[FuncID]bool, len(scc))
	for _, f := range scc {
		members[f] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{g.Funcs[current].Name}
	visited := make(map[FuncID]bool)
	for {
		visited[current] = true
		next := FuncID(-1)
		for _, w := range g.Successors(current) {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == -1 {
			break
		}
		path = append(path, g.Funcs[next].Name)
		if next == start {
			break
		}
		current = next
	}
	return path
}
