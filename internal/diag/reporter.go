package diag

import (
	"slices"
	"strings"
)

// Reporter collects diagnostics from every pass.
// It is not safe for concurrent use; passes hand their slices to the
// engine, which merges them after the parallel stage.
type Reporter struct {
	diags []Diagnostic
}

// NewReporter returns an empty reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Add appends diagnostics.
func (r *Reporter) Add(ds ...Diagnostic) {
	r.diags = append(r.diags, ds...)
}

// Len returns the number of collected diagnostics.
func (r *Reporter) Len() int { return len(r.diags) }

// OK reports whether no diagnostic was collected.
func (r *Reporter) OK() bool { return len(r.diags) == 0 }

// Diagnostics returns a sorted copy ordered by source location, then code,
// then message, then function.
func (r *Reporter) Diagnostics() []Diagnostic {
	out := slices.Clone(r.diags)
	Sort(out)
	return out
}

// Sort orders diagnostics stably for output.
func Sort(ds []Diagnostic) {
	slices.SortStableFunc(ds, func(a, b Diagnostic) int {
		if c := a.Pos.Compare(b.Pos); c != 0 {
			return c
		}
		if c := strings.Compare(a.Code, b.Code); c != 0 {
			return c
		}
		if c := strings.Compare(a.Message, b.Message); c != 0 {
			return c
		}
		return strings.Compare(a.Function, b.Function)
	})
}

// CountByClass tallies diagnostics per taxonomy class.
func (r *Reporter) CountByClass() map[Class]int {
	counts := make(map[Class]int)
	for _, d := range r.diags {
		counts[d.Class]++
	}
	return counts
}

// Has reports whether any diagnostic of kind was collected.
func (r *Reporter) Has(kind Kind) bool {
	return slices.ContainsFunc(r.diags, func(d Diagnostic) bool { return d.Kind == kind })
}

func sortKinds(ks []Kind) {
	slices.SortFunc(ks, func(a, b Kind) int {
		return strings.Compare(a.Code(), b.Code())
	})
}
