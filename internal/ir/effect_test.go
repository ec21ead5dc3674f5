package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectSetLattice(t *testing.T) {
	io := NewEffectSet(EffectIO)
	ioTime := NewEffectSet(EffectIO, EffectTime)

	assert.True(t, io.SubsetOf(ioTime))
	assert.False(t, ioTime.SubsetOf(io))
	assert.Equal(t, ioTime, io.Union(NewEffectSet(EffectTime)))
	assert.Equal(t, NewEffectSet(EffectTime), ioTime.Minus(io))
	assert.True(t, EffectSet(0).IsEmpty())
	assert.Equal(t, 2, ioTime.Len())
	assert.Equal(t, "{IO, Time}", ioTime.String())
	assert.Equal(t, "{}", EffectSet(0).String())
}

func TestEffectSetUnionIsIdempotent(t *testing.T) {
	s := NewEffectSet(EffectAsync, EffectFFI)
	assert.Equal(t, s, s.Union(s))
	assert.Equal(t, s, s.Minus(0))
}

func TestParseEffect(t *testing.T) {
	tests := []struct {
		in   string
		want EffectKind
	}{
		{"IO", EffectIO},
		{"!io", EffectIO},
		{"async", EffectAsync},
		{"Time", EffectTime},
		{"FFI", EffectFFI},
		{"!Unsafe", EffectUnsafe},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEffect(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseEffect("Network")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown effect")
}

func TestEffectSetJSON(t *testing.T) {
	s := NewEffectSet(EffectTime, EffectIO)
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `["IO","Time"]`, string(data))

	var back EffectSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestFunctionDeclFFIImpliesEffect(t *testing.T) {
	f := FunctionDecl{Name: "c.puts", FFI: true}
	assert.True(t, f.DeclaredEffects().Has(EffectFFI))
	assert.True(t, f.Effects.IsEmpty(), "declared effects are not mutated")
}

func TestSplitQualified(t *testing.T) {
	mod, fn, ok := SplitQualified("net.http.get")
	assert.True(t, ok)
	assert.Equal(t, "net.http", mod)
	assert.Equal(t, "get", fn)

	_, fn, ok = SplitQualified("get")
	assert.False(t, ok)
	assert.Equal(t, "get", fn)
}

func TestPosCompare(t *testing.T) {
	a := Pos{File: "a.fcr", Line: 2, Col: 1}
	b := Pos{File: "a.fcr", Line: 2, Col: 5}
	c := Pos{File: "b.fcr", Line: 1, Col: 1}

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, c.Compare(b))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, Pos{}.Compare(a), "unknown positions sort first")
	assert.Equal(t, "a.fcr:2:5", b.String())
}

func TestParsePolicyAndOwnership(t *testing.T) {
	p, err := ParsePolicy("GC")
	require.NoError(t, err)
	assert.Equal(t, PolicyGC, p)

	_, err = ParsePolicy("arena")
	require.Error(t, err)

	o, err := ParseOwnership("")
	require.NoError(t, err)
	assert.Equal(t, OwnershipNone, o)
	assert.Equal(t, OwnershipBorrowed, o.Effective())

	o, err = ParseOwnership("take")
	require.NoError(t, err)
	assert.Equal(t, OwnershipTake, o.Effective())
}

func TestEnumJSONDecodesWhatItEncodes(t *testing.T) {
	type edge struct {
		Policy  Policy      `json:"policy"`
		Own     Ownership   `json:"own"`
		Kind    CallKind    `json:"kind"`
		Capture CaptureMode `json:"capture"`
		Bridges []Bridge    `json:"bridges"`
	}
	in := edge{
		Policy:  PolicyUnsafe,
		Own:     OwnershipTake,
		Kind:    CallActorSend,
		Capture: CaptureShare,
		Bridges: []Bridge{{Kind: PinWrapper, Return: true}, {Kind: CopyBridge, Args: []int{1}}},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"policy":"unsafe","own":"take","kind":"actor_send","capture":"share",
		"bridges":[{"kind":"PinWrapper","return":true},{"kind":"CopyBridge","args":[1]}]}`, string(data))

	var out edge
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	var p Policy
	err = json.Unmarshal([]byte(`"arena"`), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arena")

	var b BridgeKind
	assert.Error(t, json.Unmarshal([]byte(`"ZeroCopy"`), &b))
}
