package crosscheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/effects"
	"github.com/roach88/fcrcheck/internal/ir"
	"github.com/roach88/fcrcheck/internal/policy"
	"github.com/roach88/fcrcheck/internal/testutil"
)

func solve(t *testing.T, p *ir.Program) (*callgraph.Graph, *effects.Result) {
	t.Helper()
	g, diags := callgraph.Build(p, callgraph.Options{})
	require.Empty(t, diags)
	return g, effects.Solve(g, policy.NewTable(), nil)
}

func TestOracleAgreesWithSolver(t *testing.T) {
	programs := map[string]*ir.Program{
		"single function": testutil.NewProgram().
			Func("math.add").
			Build(),
		"chain": testutil.NewProgram().
			Func("app.read", ir.EffectIO).Call("app.helper").
			Func("app.helper", ir.EffectTime).
			Build(),
		"mutual recursion": testutil.NewProgram().
			Func("app.even").Call("app.odd").
			Func("app.odd").Call("app.even").Call("app.clock").
			Func("app.clock", ir.EffectTime, ir.EffectAsync).
			Build(),
		"nested handles": testutil.NewProgram().
			Func("app.main").
			Handle("outer", "", ir.EffectIO).
			Handle("inner", "outer", ir.EffectTime).
			CallIn("inner", "app.work").
			CallIn("outer", "app.work").
			Func("app.work", ir.EffectIO, ir.EffectTime, ir.EffectFFI).
			Build(),
	}

	for name, p := range programs {
		t.Run(name, func(t *testing.T) {
			g, r := solve(t, p)
			reach, err := Reach(g, r)
			require.NoError(t, err)
			assert.Equal(t, r.Inferred, reach)

			diags, err := Verify(g, r)
			require.NoError(t, err)
			assert.Empty(t, diags)
		})
	}
}

func TestOracleDetectsDisagreement(t *testing.T) {
	p := testutil.NewProgram().
		Func("app.read", ir.EffectIO).Call("app.helper").
		Func("app.helper", ir.EffectTime).
		Build()

	g, r := solve(t, p)
	read, _ := g.Lookup("app.read")
	r.Inferred[read.ID] = ir.NewEffectSet(ir.EffectIO)

	diags, err := Verify(g, r)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.Internal, diags[0].Kind)
	assert.Contains(t, diags[0].Message, "derives {IO, Time}")
}

func TestProgramEncodesDischarges(t *testing.T) {
	p := testutil.NewProgram().
		Func("app.main").Handle("h", "", ir.EffectIO).CallIn("h", "app.write").
		Func("app.write", ir.EffectIO).
		Build()

	g, r := solve(t, p)
	src := Program(g, r)
	assert.Contains(t, src, "edge(0, 1, 1).")
	assert.Contains(t, src, "discharged(1, 0).")
	assert.Contains(t, src, "origin(1, 0).")
}
