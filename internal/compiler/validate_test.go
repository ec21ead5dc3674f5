package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/fcrcheck/internal/ir"
	"github.com/roach88/fcrcheck/internal/testutil"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidProgram(t *testing.T) {
	p := testutil.NewProgram().
		Module("app", ir.PolicyGC).
		Trait("Send", "core").
		Type("app.Buf", "app").
		Impl("Send", "app.Buf", "app").
		Func("app.main", ir.EffectIO).
		Handle("h", "", ir.EffectIO).
		CallIn("h", "app.helper").
		Func("app.helper").
		Build()

	assert.Empty(t, Validate(p))
}

func TestValidateModules(t *testing.T) {
	p := &ir.Program{
		Modules: []ir.ModuleDecl{
			{Name: "app"},
			{Name: "app", Pos: ir.Pos{File: "a.yaml", Line: 4, Col: 3}},
			{Name: " "},
		},
	}

	errs := Validate(p)
	assert.Equal(t, []string{ErrModuleNameEmpty}, codes(errs), "repeated modules are left to the policy table")
	assert.Equal(t, "modules[2]", errs[0].Field)
}

func TestValidateFunctionNames(t *testing.T) {
	p := &ir.Program{
		Functions: []ir.FunctionDecl{
			{Name: "app.main", Module: "app"},
			{Name: "app.main", Module: "app"},
			{Name: "main", Module: "app"},
			{Name: "net.fetch", Module: "app"},
		},
	}

	assert.Equal(t, []string{ErrDuplicateFunction, ErrFunctionName, ErrFunctionName}, codes(Validate(p)))
}

func TestValidateHandles(t *testing.T) {
	p := &ir.Program{
		Functions: []ir.FunctionDecl{{
			Name:   "app.main",
			Module: "app",
			Handles: []ir.HandleScope{
				{ID: "a"},
				{ID: "a"},
				{ID: "b", Parent: "missing"},
				{ID: "c", Parent: "d"},
				{ID: "d", Parent: "c"},
			},
			Calls: []ir.CallSite{{Callee: "x", Handle: "nope"}},
		}},
	}

	assert.Equal(t, []string{
		ErrDuplicateHandle,
		ErrUnknownParent,
		ErrHandleCycle,
		ErrHandleCycle,
		ErrUnknownHandle,
	}, codes(Validate(p)))
}

func TestValidateCallSites(t *testing.T) {
	p := &ir.Program{
		Functions: []ir.FunctionDecl{{
			Name:   "app.main",
			Module: "app",
			Calls: []ir.CallSite{
				{},
				{Kind: ir.CallChanRecv},
				{Kind: ir.CallSpawn, Callee: "app.w", Captures: []ir.Capture{{Name: "buf"}}},
				{Callee: "app.w", Join: true},
			},
		}},
	}

	errs := Validate(p)
	assert.Equal(t, []string{ErrMissingCallee, ErrCaptureType, ErrJoinOnCall}, codes(errs))
	assert.Equal(t, "function.app.main.calls[2].captures[0]", errs[1].Field)
}

func TestValidateDeclarations(t *testing.T) {
	p := &ir.Program{
		Traits: []ir.TraitDecl{{Name: "Send"}},
		Types:  []ir.TypeDecl{{Home: "app"}},
		Impls:  []ir.ImplDecl{{Trait: "Send", Type: "app.Buf"}},
	}

	assert.Equal(t, []string{ErrTraitDecl, ErrTraitDecl, ErrImplDecl}, codes(Validate(p)))
}
