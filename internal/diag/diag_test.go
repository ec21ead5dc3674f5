package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fcrcheck/internal/ir"
)

func TestKindTaxonomy(t *testing.T) {
	tests := []struct {
		kind  Kind
		class Class
		code  string
	}{
		{DuplicateModule, ClassDeclaration, "E201"},
		{OrphanImpl, ClassDeclaration, "E203"},
		{EffectMismatch, ClassEffect, "E301"},
		{AsyncContext, ClassEffect, "E303"},
		{GcToBorrow, ClassPolicyBridge, "E402"},
		{UnpinnedForeignPtr, ClassPolicyBridge, "E404"},
		{MissingCapability, ClassConcurrency, "E501"},
		{UnresolvedCall, ClassGraph, "E601"},
		{Internal, ClassInternal, "E901"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.class, tt.kind.Class())
			assert.Equal(t, tt.code, tt.kind.Code())
		})
	}

	assert.Equal(t, ClassInternal, Kind("Bogus").Class(), "unknown kinds are engine defects")
}

func TestKindsOrderedByCode(t *testing.T) {
	ks := Kinds()
	require.NotEmpty(t, ks)
	assert.Equal(t, DuplicateModule, ks[0])
	assert.Equal(t, Internal, ks[len(ks)-1])
}

func TestDiagnosticError(t *testing.T) {
	d := New(EffectMismatch, ir.Pos{File: "io.fcr", Line: 3, Col: 1}, "io.read",
		"function %s infers effect %s not in declared set %s", "io.read", "Time", "{IO}").
		WithChain([]string{"io.read", "io.helper"})

	assert.Equal(t, "[E301] io.fcr:3:1: function io.read infers effect Time not in declared set {IO} (via io.read → io.helper)", d.Error())
}

func TestDiagnosticIs(t *testing.T) {
	var err error = New(OrphanImpl, ir.Pos{}, "", "orphan")
	wrapped := fmt.Errorf("ingest: %w", err)

	assert.True(t, errors.Is(wrapped, Diagnostic{Kind: OrphanImpl}))
	assert.False(t, errors.Is(wrapped, Diagnostic{Kind: DuplicateImpl}))
	assert.True(t, IsKind(wrapped, OrphanImpl))
	assert.False(t, IsKind(errors.New("plain"), OrphanImpl))
}

func TestReporterOrdersBySourceLocation(t *testing.T) {
	r := NewReporter()
	assert.True(t, r.OK())

	r.Add(
		New(GcToBorrow, ir.Pos{File: "b.fcr", Line: 1, Col: 1}, "b.f", "second file"),
		New(EffectMismatch, ir.Pos{File: "a.fcr", Line: 9, Col: 2}, "a.g", "late line"),
		New(OrphanImpl, ir.Pos{File: "a.fcr", Line: 2, Col: 7}, "", "early line"),
		New(DuplicateImpl, ir.Pos{File: "a.fcr", Line: 2, Col: 7}, "", "same spot, lower code"),
	)

	assert.False(t, r.OK())
	assert.Equal(t, 4, r.Len())

	got := r.Diagnostics()
	require.Len(t, got, 4)
	assert.Equal(t, DuplicateImpl, got[0].Kind)
	assert.Equal(t, OrphanImpl, got[1].Kind)
	assert.Equal(t, EffectMismatch, got[2].Kind)
	assert.Equal(t, GcToBorrow, got[3].Kind)

	assert.True(t, r.Has(GcToBorrow))
	assert.False(t, r.Has(MissingCapability))
	assert.Equal(t, 2, r.CountByClass()[ClassDeclaration])
}

func TestReporterDiagnosticsIsACopy(t *testing.T) {
	r := NewReporter()
	r.Add(New(Internal, ir.Pos{}, "", "x"))
	got := r.Diagnostics()
	got[0].Message = "mutated"
	assert.Equal(t, "x", r.Diagnostics()[0].Message)
}
