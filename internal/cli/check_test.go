package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/engine"
	"github.com/roach88/fcrcheck/internal/ir"
)

func TestCheckClean(t *testing.T) {
	out, _, err := execute(t, "check", manifest("clean.cue"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ No diagnostics")
	assert.Contains(t, out, "Fingerprint: ")
}

func TestCheckModuleSplitAcrossFiles(t *testing.T) {
	write := func(dir, name, policy, fn string) {
		src := "module:\n  app:\n    policy: " + policy + "\n    fn:\n      " + fn + ":\n        effects: []\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}

	t.Run("identical declarations merge", func(t *testing.T) {
		dir := t.TempDir()
		write(dir, "a.yaml", "gc", "main")
		write(dir, "b.yaml", "gc", "helper")

		out, _, err := execute(t, "check", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "✓ No diagnostics (2 function(s)")
	})

	t.Run("conflicting policies", func(t *testing.T) {
		dir := t.TempDir()
		write(dir, "a.yaml", "gc", "main")
		write(dir, "b.yaml", "borrow", "helper")

		out, _, err := execute(t, "check", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "E201 DuplicateModuleError")
	})
}

func TestCheckCleanJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "check", "--crosscheck", manifest("clean.cue"))
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Fingerprint, 64)
	assert.Positive(t, resp.Data.Stats.Functions)
}

func TestCheckDiagnostics(t *testing.T) {
	tests := []struct {
		manifest string
		want     string
	}{
		{"effects.yaml", "E301 EffectMismatchError: app.main performs effect IO not in its declared set {}"},
		{"ownership.yaml", "E401 OwnershipEscapeError"},
		{"concurrency.yaml", "E501 MissingCapabilityError"},
		{"dispatch.yaml", "E601 UnresolvedCallError"},
	}

	for _, tt := range tests {
		t.Run(tt.manifest, func(t *testing.T) {
			out, _, err := execute(t, "check", manifest(tt.manifest))
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "✗ 1 diagnostic(s)")
		})
	}
}

func TestCheckDiagnosticsJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "check", manifest("effects.yaml"))
	require.Error(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   []diag.Diagnostic `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, diag.EffectMismatch, resp.Data[0].Kind)
	assert.Equal(t, []string{"app.main", "net.fetch"}, resp.Data[0].Chain)
}

func TestCheckDispatchConservative(t *testing.T) {
	_, _, err := execute(t, "check", "--dispatch", "conservative", manifest("dispatch.yaml"))
	require.NoError(t, err)
}

func TestCheckInvalidDispatch(t *testing.T) {
	_, _, err := execute(t, "check", "--dispatch", "lazy", manifest("dispatch.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckEmit(t *testing.T) {
	emit := filepath.Join(t.TempDir(), "annotated.json")

	_, _, err := execute(t, "check", "--emit", emit, manifest("clean.cue"))
	require.NoError(t, err)

	data, err := os.ReadFile(emit)
	require.NoError(t, err)

	var ann engine.Annotated
	require.NoError(t, json.Unmarshal(data, &ann))
	assert.NotEmpty(t, ann.Functions)
	assert.Len(t, ann.Fingerprint, 64)
}

func TestCheckEmitWithDiagnostics(t *testing.T) {
	emit := filepath.Join(t.TempDir(), "annotated.json")

	// The annotated program is written even when diagnostics exist
	_, _, err := execute(t, "check", "-o", emit, manifest("ownership.yaml"))
	require.Error(t, err)

	data, err := os.ReadFile(emit)
	require.NoError(t, err)

	var ann engine.Annotated
	require.NoError(t, json.Unmarshal(data, &ann))
	require.Len(t, ann.Edges, 1)
	assert.Equal(t, ir.CallPlain, ann.Edges[0].Kind)
	assert.Equal(t, []ir.Bridge{{Kind: ir.CopyBridge, Args: []int{1}}}, ann.Edges[0].Bridges)

	policies := map[string]ir.Policy{}
	for _, m := range ann.Modules {
		policies[m.Name] = m.Policy
	}
	assert.Equal(t, ir.PolicyGC, policies["cache"])
	assert.Equal(t, ir.PolicyBorrow, policies["lib"])
}

func TestCheckNonExistentPath(t *testing.T) {
	out, _, err := execute(t, "check", "/nonexistent/manifests")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E005")
	assert.Contains(t, out, "not found")
}

func TestCheckEmptyDirectory(t *testing.T) {
	out, _, err := execute(t, "check", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E003")
}

func TestCheckRejectsInvalidManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`module:
  app:
    fn:
      main:
        calls:
          - callee: app.main
            handle: nope
`), 0644))

	out, _, err := execute(t, "check", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E113")
}

func TestCheckSequentialMatchesParallel(t *testing.T) {
	run := func(args ...string) string {
		buf := &bytes.Buffer{}
		cmd := NewCheckCommand(testRootOptions("json"))
		cmd.SetOut(buf)
		cmd.SetArgs(append(args, manifest("clean.cue")))
		require.NoError(t, cmd.Execute())
		return buf.String()
	}

	assert.JSONEq(t, run(), run("--sequential"))
}
