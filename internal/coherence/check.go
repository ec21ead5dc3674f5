package coherence

import (
	"slices"

	"github.com/roach88/fcrcheck/internal/diag"
)

// Check verifies that accepted impls implement every method their trait
// declares.
// It only reads the table and may run concurrently with other passes.
func Check(t *Table) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, rec := range t.Records() {
		trait, ok := t.Trait(rec.Trait)
		if !ok {
			// Insert accepts impls of undeclared traits from their type's home.
			continue
		}
		for _, m := range trait.Methods {
			if !slices.Contains(rec.Methods, m) {
				diags = append(diags, diag.New(diag.MissingImplMethod, rec.Pos, "",
					"impl %s for %s is missing method %s", rec.Trait, rec.Type, m))
			}
		}
	}
	return diags
}
