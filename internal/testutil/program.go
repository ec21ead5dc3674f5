// Package testutil provides a fluent builder for ir.Program values used
// across package tests.
//
// Every declaration gets a distinct synthetic position in "test.fcr" in
// the order it is added, so diagnostic ordering in tests is predictable.
package testutil

import (
	"github.com/roach88/fcrcheck/internal/ir"
)

// File is the synthetic file name used for builder positions.
const File = "test.fcr"

// ProgramBuilder accumulates declarations.
type ProgramBuilder struct {
	p    ir.Program
	line int
}

// NewProgram starts an empty program.
func NewProgram() *ProgramBuilder {
	return &ProgramBuilder{}
}

func (b *ProgramBuilder) pos() ir.Pos {
	b.line++
	return ir.Pos{File: File, Line: b.line, Col: 1}
}

// Module declares a module with an explicit policy and explicit budget.
func (b *ProgramBuilder) Module(name string, policy ir.Policy, budget ...ir.EffectKind) *ProgramBuilder {
	set := ir.NewEffectSet(budget...)
	b.p.Modules = append(b.p.Modules, ir.ModuleDecl{Name: name, Policy: &policy, Effects: &set, Pos: b.pos()})
	return b
}

// PolicyModule declares a module with a policy and a defaulted budget.
func (b *ProgramBuilder) PolicyModule(name string, policy ir.Policy) *ProgramBuilder {
	b.p.Modules = append(b.p.Modules, ir.ModuleDecl{Name: name, Policy: &policy, Pos: b.pos()})
	return b
}

// Trait declares a trait.
func (b *ProgramBuilder) Trait(name, home string, methods ...string) *ProgramBuilder {
	b.p.Traits = append(b.p.Traits, ir.TraitDecl{Name: name, Home: home, Methods: methods, Pos: b.pos()})
	return b
}

// Type declares a nominal type.
func (b *ProgramBuilder) Type(name, home string) *ProgramBuilder {
	b.p.Types = append(b.p.Types, ir.TypeDecl{Name: name, Home: home, Pos: b.pos()})
	return b
}

// Impl declares a trait impl.
func (b *ProgramBuilder) Impl(trait, typ, module string, methods ...string) *ProgramBuilder {
	b.p.Impls = append(b.p.Impls, ir.ImplDecl{Trait: trait, Type: typ, Module: module, Methods: methods, Pos: b.pos()})
	return b
}

// Func declares a function by qualified name and returns its builder.
func (b *ProgramBuilder) Func(name string, effects ...ir.EffectKind) *FuncBuilder {
	module, _, _ := ir.SplitQualified(name)
	b.p.Functions = append(b.p.Functions, ir.FunctionDecl{
		Name:    name,
		Module:  module,
		Effects: ir.NewEffectSet(effects...),
		Pos:     b.pos(),
	})
	return &FuncBuilder{b: b, idx: len(b.p.Functions) - 1}
}

// Build returns the program. The builder must not be reused afterwards.
func (b *ProgramBuilder) Build() *ir.Program {
	return &b.p
}

// FuncBuilder edits one function. It holds an index, not a pointer, so
// it stays valid while the program grows.
type FuncBuilder struct {
	b   *ProgramBuilder
	idx int
}

func (f *FuncBuilder) decl() *ir.FunctionDecl { return &f.b.p.Functions[f.idx] }

// Param adds a parameter.
func (f *FuncBuilder) Param(name string, own ir.Ownership) *FuncBuilder {
	f.decl().Params = append(f.decl().Params, ir.Param{Name: name, Ownership: own})
	return f
}

// EscapingParam adds a parameter the function stores past the call.
func (f *FuncBuilder) EscapingParam(name string, own ir.Ownership) *FuncBuilder {
	f.decl().Params = append(f.decl().Params, ir.Param{Name: name, Ownership: own, Escapes: true})
	return f
}

// FFI marks the function as a foreign function.
func (f *FuncBuilder) FFI() *FuncBuilder {
	f.decl().FFI = true
	return f
}

// Extern marks the function as an external stub.
func (f *FuncBuilder) Extern() *FuncBuilder {
	f.decl().Extern = true
	return f
}

// Returns sets the return descriptor.
func (f *FuncBuilder) Returns(r ir.Return) *FuncBuilder {
	f.decl().Return = &r
	return f
}

// Handle adds a handle scope discharging effects.
func (f *FuncBuilder) Handle(id, parent string, discharges ...ir.EffectKind) *FuncBuilder {
	f.decl().Handles = append(f.decl().Handles, ir.HandleScope{
		ID:         id,
		Parent:     parent,
		Discharges: ir.NewEffectSet(discharges...),
		Pos:        f.b.pos(),
	})
	return f
}

// Call adds a plain call site.
func (f *FuncBuilder) Call(callee string) *FuncBuilder {
	return f.Site(ir.CallSite{Callee: callee})
}

// CallIn adds a call site inside a handle scope.
func (f *FuncBuilder) CallIn(handle, callee string) *FuncBuilder {
	return f.Site(ir.CallSite{Callee: callee, Handle: handle})
}

// Site adds an arbitrary call site; an unset position is assigned.
func (f *FuncBuilder) Site(site ir.CallSite) *FuncBuilder {
	if !site.Pos.IsValid() {
		site.Pos = f.b.pos()
	}
	f.decl().Calls = append(f.decl().Calls, site)
	return f
}

// Func closes this function and starts the next one.
func (f *FuncBuilder) Func(name string, effects ...ir.EffectKind) *FuncBuilder {
	return f.b.Func(name, effects...)
}

// End returns to the program builder.
func (f *FuncBuilder) End() *ProgramBuilder { return f.b }

// Build builds the enclosing program.
func (f *FuncBuilder) Build() *ir.Program { return f.b.Build() }
