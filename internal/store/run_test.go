package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/ir"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDiagnostics() []diag.Diagnostic {
	return []diag.Diagnostic{
		diag.New(diag.EffectMismatch, ir.Pos{File: "app.cue", Line: 3, Col: 5}, "app.read",
			"app.read performs effect Time not in its declared set {IO}").
			WithChain([]string{"app.read", "app.helper"}),
		diag.New(diag.OrphanImpl, ir.Pos{File: "shapes.cue", Line: 9, Col: 1}, "",
			"impl Display for Point must be declared in module fmt or geometry"),
	}
}

func TestWriteRun_AssignsSeq(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	gen := NewFixedGenerator("run-1", "run-2")

	first, err := s.WriteRun(ctx, NewRun(gen.Generate(), "specs/", "fp-a", nil))
	require.NoError(t, err)
	second, err := s.WriteRun(ctx, NewRun(gen.Generate(), "specs/", "fp-b", sampleDiagnostics()))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.True(t, first.OK)
	assert.False(t, second.OK)
	assert.Equal(t, 2, second.DiagCount)
}

func TestWriteRun_RoundTripsDiagnostics(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	want := sampleDiagnostics()
	_, err := s.WriteRun(ctx, NewRun("run-1", "specs/", "fp", want))
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want, got.Diagnostics)
	assert.Equal(t, ir.EngineVersion, got.EngineVersion)
	assert.Equal(t, "fp", got.Fingerprint)
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.WriteRun(ctx, NewRun("run-1", "specs/", "fp", sampleDiagnostics()))
	require.NoError(t, err)
	again, err := s.WriteRun(ctx, NewRun("run-1", "other/", "fp-other", nil))
	require.NoError(t, err)

	assert.Equal(t, first.Seq, again.Seq)
	assert.Equal(t, "fp", again.Fingerprint, "existing run is left untouched")
	assert.Len(t, again.Diagnostics, 2)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestReadRun_NotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = s.LatestRun(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.WriteRun(ctx, NewRun(id, "specs/", "fp-"+id, nil))
		require.NoError(t, err)
	}

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Nil(t, runs[0].Diagnostics)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)
}

func TestRunsByFingerprint(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, r := range []struct{ id, fp string }{{"a", "x"}, {"b", "y"}, {"c", "x"}} {
		_, err := s.WriteRun(ctx, NewRun(r.id, "specs/", r.fp, nil))
		require.NoError(t, err)
	}

	ids, err := s.RunsByFingerprint(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "UUIDv7 sorts by creation time")
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	gen := NewFixedGenerator("only")
	assert.Equal(t, "only", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}
