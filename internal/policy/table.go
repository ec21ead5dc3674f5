// Package policy holds the Module Policy Table: the declared memory policy
// and effect budget of every module in the compilation unit.
package policy

import (
	"sort"

	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/ir"
)

// Entry is one registered module.
type Entry struct {
	Name   string
	Policy ir.Policy
	Budget ir.EffectSet
	// BudgetDeclared is false when the budget was defaulted.
	BudgetDeclared bool
	Pos            ir.Pos
}

// Table maps module names to their policy and budget.
// It is written during ingestion and read-only after Freeze.
type Table struct {
	entries map[string]Entry
	frozen  bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]Entry)}
}

// Register records a module. Absent policy defaults to Borrow and absent
// effects default to the empty set. Re-registering with an identical
// declaration is a no-op; a conflicting one fails DuplicateModuleError.
func (t *Table) Register(name string, policy *ir.Policy, effects *ir.EffectSet, pos ir.Pos) error {
	if t.frozen {
		return diag.Internalf(pos, "module %q registered after the policy table was frozen", name)
	}

	entry := Entry{Name: name, Policy: ir.PolicyBorrow, Pos: pos}
	if policy != nil {
		entry.Policy = *policy
	}
	if effects != nil {
		entry.Budget = *effects
		entry.BudgetDeclared = true
	}

	if prev, ok := t.entries[name]; ok {
		if prev.Policy == entry.Policy && prev.Budget == entry.Budget {
			return nil
		}
		return diag.New(diag.DuplicateModule, pos, "",
			"module %s redeclared as (%s, %s); first declared at %s as (%s, %s)",
			name, entry.Policy, entry.Budget, prev.Pos, prev.Policy, prev.Budget)
	}

	t.entries[name] = entry
	return nil
}

// Lookup returns the policy and budget of a module. It is total:
// unregistered modules yield (Borrow, ∅).
func (t *Table) Lookup(name string) (ir.Policy, ir.EffectSet) {
	e := t.Entry(name)
	return e.Policy, e.Budget
}

// Entry returns the full record, defaulted for unregistered modules.
func (t *Table) Entry(name string) Entry {
	if e, ok := t.entries[name]; ok {
		return e
	}
	return Entry{Name: name, Policy: ir.PolicyBorrow}
}

// Registered reports whether a module was explicitly declared.
func (t *Table) Registered(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// Freeze ends ingestion. Later registrations are engine defects.
func (t *Table) Freeze() { t.frozen = true }

// Names returns registered module names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for n := range t.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Ingest registers every module declaration, accumulating errors.
func Ingest(decls []ir.ModuleDecl) (*Table, []diag.Diagnostic) {
	t := NewTable()
	var diags []diag.Diagnostic
	for _, m := range decls {
		if err := t.Register(m.Name, m.Policy, m.Effects, m.Pos); err != nil {
			diags = append(diags, err.(diag.Diagnostic))
		}
	}
	return t, diags
}
