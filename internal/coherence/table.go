// Package coherence holds the Impl Coherence Table and the coherence
// checker.
//
// The table enforces the two structural invariants of trait impls:
// at most one impl per (trait, type) pair, and the no-orphan rule (an impl
// lives in the trait's or the type's home module). The checker adds the
// completeness rules: the trait must exist and every trait method must be
// implemented.
package coherence

import (
	"sort"

	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/ir"
)

// Built-in capability traits, homed in CoreModule.
const (
	CoreModule = "core"
	TraitSend  = "Send"
	TraitShare = "Share"
)

// ImplRecord is an accepted trait implementation.
type ImplRecord struct {
	Trait   string   `json:"trait"`
	Type    string   `json:"type"`
	Module  string   `json:"module"`
	Methods []string `json:"methods,omitempty"`
	Pos     ir.Pos   `json:"pos"`
}

type implKey struct {
	trait string
	typ   string
}

// Table is keyed by (trait, type). It is read-only after Freeze.
type Table struct {
	traitHome map[string]string
	typeHome  map[string]string
	traits    map[string]ir.TraitDecl
	records   map[implKey]*ImplRecord
	frozen    bool
}

// NewTable creates a table that knows the built-in capability traits.
func NewTable() *Table {
	t := &Table{
		traitHome: make(map[string]string),
		typeHome:  make(map[string]string),
		traits:    make(map[string]ir.TraitDecl),
		records:   make(map[implKey]*ImplRecord),
	}
	t.DeclareTrait(ir.TraitDecl{Name: TraitSend, Home: CoreModule})
	t.DeclareTrait(ir.TraitDecl{Name: TraitShare, Home: CoreModule})
	return t
}

// DeclareTrait records a trait's home module and required methods.
func (t *Table) DeclareTrait(d ir.TraitDecl) {
	t.traitHome[d.Name] = d.Home
	t.traits[d.Name] = d
}

// DeclareType records a type's home module.
func (t *Table) DeclareType(d ir.TypeDecl) {
	t.typeHome[d.Name] = d.Home
}

// Trait returns a trait declaration.
func (t *Table) Trait(name string) (ir.TraitDecl, bool) {
	d, ok := t.traits[name]
	return d, ok
}

// Insert adds an impl. It fails UnknownTraitError if the trait was never
// declared, DuplicateImplError if (trait, type) is already present,
// regardless of module, and OrphanImplError if module is neither the
// trait's nor the type's home. Undeclared types have no home.
func (t *Table) Insert(trait, typ, module string, pos ir.Pos) error {
	return t.insert(&ImplRecord{Trait: trait, Type: typ, Module: module, Pos: pos})
}

func (t *Table) insert(rec *ImplRecord) error {
	if t.frozen {
		return diag.Internalf(rec.Pos, "impl %s for %s inserted after the impl table was frozen", rec.Trait, rec.Type)
	}

	if _, ok := t.traits[rec.Trait]; !ok {
		return diag.New(diag.UnknownTrait, rec.Pos, "",
			"impl for %s in module %s names unknown trait %s", rec.Type, rec.Module, rec.Trait)
	}

	key := implKey{rec.Trait, rec.Type}
	if prev, ok := t.records[key]; ok {
		return diag.New(diag.DuplicateImpl, rec.Pos, "",
			"duplicate impl of %s for %s in module %s; already implemented in module %s at %s",
			rec.Trait, rec.Type, rec.Module, prev.Module, prev.Pos)
	}

	traitHome := t.traitHome[rec.Trait]
	typeHome, typeKnown := t.typeHome[rec.Type]
	if rec.Module != traitHome && (!typeKnown || rec.Module != typeHome) {
		return diag.New(diag.OrphanImpl, rec.Pos, "",
			"orphan impl of %s for %s in module %s: must be declared in %s",
			rec.Trait, rec.Type, rec.Module, homesOf(traitHome, typeHome, typeKnown))
	}

	t.records[key] = rec
	return nil
}

func homesOf(traitHome, typeHome string, typeKnown bool) string {
	if !typeKnown || typeHome == traitHome {
		return "module " + orUnknown(traitHome)
	}
	return "module " + orUnknown(traitHome) + " or " + typeHome
}

func orUnknown(s string) string {
	if s == "" {
		return "<undeclared>"
	}
	return s
}

// Lookup returns the impl for (trait, type), if any.
func (t *Table) Lookup(trait, typ string) (*ImplRecord, bool) {
	rec, ok := t.records[implKey{trait, typ}]
	return rec, ok
}

// Freeze ends ingestion.
func (t *Table) Freeze() { t.frozen = true }

// Records returns all accepted impls ordered by trait, then type.
func (t *Table) Records() []ImplRecord {
	out := make([]ImplRecord, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Trait != out[j].Trait {
			return out[i].Trait < out[j].Trait
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Ingest builds the table from the program's trait, type and impl
// declarations, accumulating insertion errors. Rejected impls are not
// inserted.
func Ingest(p *ir.Program) (*Table, []diag.Diagnostic) {
	t := NewTable()
	for _, tr := range p.Traits {
		t.DeclareTrait(tr)
	}
	for _, ty := range p.Types {
		t.DeclareType(ty)
	}

	var diags []diag.Diagnostic
	for _, im := range p.Impls {
		rec := &ImplRecord{Trait: im.Trait, Type: im.Type, Module: im.Module, Methods: im.Methods, Pos: im.Pos}
		if err := t.insert(rec); err != nil {
			diags = append(diags, err.(diag.Diagnostic))
		}
	}
	return t, diags
}
