package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fcrcheck/internal/ir"
)

func compileCUEString(t *testing.T, src string) (*ir.Program, []error) {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("m.cue"))
	require.NoError(t, v.Err())
	return CompileCUE(v)
}

func TestCompileCUEBasic(t *testing.T) {
	prog, errs := compileCUEString(t, `
		module: app: {
			policy:  "gc"
			effects: ["io"]
			fn: main: {
				effects: ["io"]
				handles: [{id: "h", discharges: ["io"]}]
				calls: [{callee: "net.fetch", handle: "h", result_stored: true}]
			}
			fn: helper: {}
		}
		module: net: fn: fetch: {
			ffi: true
			params: [{name: "buf", ownership: "borrow", escapes: true}]
			return: {type: "ptr", pointer: true, ownership: "take"}
		}
		traits: [{name: "Send", home: "core"}]
		types: [{name: "app.Buf", home: "app"}]
		impls: [{trait: "Send", type: "app.Buf", module: "app"}]
	`)
	require.Empty(t, errs)

	require.Len(t, prog.Modules, 2)
	assert.Equal(t, "app", prog.Modules[0].Name)
	require.NotNil(t, prog.Modules[0].Policy)
	assert.Equal(t, ir.PolicyGC, *prog.Modules[0].Policy)
	require.NotNil(t, prog.Modules[0].Effects)
	assert.Equal(t, ir.NewEffectSet(ir.EffectIO), *prog.Modules[0].Effects)
	assert.Nil(t, prog.Modules[1].Policy, "omitted policy stays nil")
	assert.Nil(t, prog.Modules[1].Effects, "omitted budget stays nil")

	require.Len(t, prog.Functions, 3)
	assert.Equal(t, "app.main", prog.Functions[0].Name)
	assert.Equal(t, "app", prog.Functions[0].Module)
	assert.Equal(t, "app.helper", prog.Functions[1].Name)
	assert.Equal(t, "net.fetch", prog.Functions[2].Name)

	main := prog.Functions[0]
	require.Len(t, main.Handles, 1)
	assert.Equal(t, ir.NewEffectSet(ir.EffectIO), main.Handles[0].Discharges)
	require.Len(t, main.Calls, 1)
	assert.Equal(t, "net.fetch", main.Calls[0].Callee)
	assert.Equal(t, "h", main.Calls[0].Handle)
	assert.True(t, main.Calls[0].ResultStored)
	assert.Equal(t, ir.CallPlain, main.Calls[0].Kind)
	assert.True(t, main.Calls[0].Pos.IsValid())

	fetch := prog.Functions[2]
	assert.True(t, fetch.FFI)
	require.Len(t, fetch.Params, 1)
	assert.Equal(t, ir.OwnershipBorrowed, fetch.Params[0].Ownership)
	assert.True(t, fetch.Params[0].Escapes)
	require.NotNil(t, fetch.Return)
	assert.True(t, fetch.Return.Pointer)
	assert.Equal(t, ir.OwnershipTake, fetch.Return.Ownership)

	require.Len(t, prog.Traits, 1)
	assert.Equal(t, "core", prog.Traits[0].Home)
	require.Len(t, prog.Types, 1)
	require.Len(t, prog.Impls, 1)
	assert.Equal(t, "app.Buf", prog.Impls[0].Type)
}

func TestCompileCUEPositions(t *testing.T) {
	prog, errs := compileCUEString(t, `
		module: app: fn: {
			first: {}
			second: {}
		}
	`)
	require.Empty(t, errs)
	require.Len(t, prog.Functions, 2)

	first, second := prog.Functions[0].Pos, prog.Functions[1].Pos
	require.True(t, first.IsValid())
	require.True(t, second.IsValid())
	assert.Equal(t, "m.cue", first.File)
	assert.Less(t, first.Line, second.Line)
}

func TestCompileCUESpawnCaptures(t *testing.T) {
	prog, errs := compileCUEString(t, `
		module: app: fn: main: calls: [{
			kind:       "spawn"
			callee:     "app.worker"
			task_scope: "t1"
			join:       true
			captures: [{name: "conn", type: "net.Conn", mode: "share"}]
		}]
	`)
	require.Empty(t, errs)

	site := prog.Functions[0].Calls[0]
	assert.Equal(t, ir.CallSpawn, site.Kind)
	assert.Equal(t, "t1", site.TaskScope)
	assert.True(t, site.Join)
	require.Len(t, site.Captures, 1)
	assert.Equal(t, ir.CaptureShare, site.Captures[0].Mode)
	assert.Equal(t, "net.Conn", site.Captures[0].Type)
}

func TestCompileCUEErrorsCollected(t *testing.T) {
	_, errs := compileCUEString(t, `
		module: app: {
			policy: "refcount"
			fn: main: {
				effects: ["io", "network"]
				calls: [{callee: "x", kind: "teleport"}]
			}
		}
	`)
	require.Len(t, errs, 3, "errors are collected, not fail-fast")

	var fields []string
	for _, err := range errs {
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		fields = append(fields, ce.Field)
	}
	assert.Contains(t, fields, "module.app.policy")
	assert.Contains(t, fields, "module.app.fn.main.effects")
	assert.Contains(t, fields, "module.app.fn.main.calls[0]")
}

func TestCompileCUEWrongType(t *testing.T) {
	_, errs := compileCUEString(t, `module: app: policy: 42`)
	require.Len(t, errs, 1)

	var ce *CompileError
	require.ErrorAs(t, errs[0], &ce)
	assert.Equal(t, "module.app.policy", ce.Field)
}

func TestCompileCUEHandleWithoutID(t *testing.T) {
	_, errs := compileCUEString(t, `module: app: fn: main: handles: [{discharges: ["io"]}]`)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "module.app.fn.main.handles[0].id")
}

func TestCompileCUEEmpty(t *testing.T) {
	prog, errs := compileCUEString(t, ``)
	require.Empty(t, errs)
	assert.Empty(t, prog.Modules)
	assert.Empty(t, prog.Functions)
}
