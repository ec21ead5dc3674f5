package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fcrcheck/internal/diag"
)

const scenarioDir = "../../testdata/scenarios"

// TestScenarios runs the canonical scenarios and compares their rendered
// diagnostics with the golden files.
func TestScenarios(t *testing.T) {
	tests := []struct {
		file      string
		diagCount int
	}{
		{"effect_mismatch.yaml", 1},
		{"ownership_escape.yaml", 1},
		{"missing_capability.yaml", 1},
		{"dispatch_strict.yaml", 1},
		{"dispatch_conservative.yaml", 0},
		{"clean.yaml", 0},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join(scenarioDir, tt.file))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)

			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Diagnostics, tt.diagCount)
			assert.Len(t, result.Fingerprint, 64)
		})
	}
}

func TestRun_DeterministicFingerprint(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join(scenarioDir, "clean.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, Render(first), Render(second))
}

func TestRun_FailedExpectation(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join(scenarioDir, "effect_mismatch.yaml"))
	require.NoError(t, err)
	scenario.Expect = []Expectation{{Kind: string(diag.OwnershipEscape)}}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "no matching diagnostic")
	assert.Contains(t, result.Errors[1], "unexpected diagnostic")
}

func TestRun_ExpectOKWithDiagnostics(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join(scenarioDir, "ownership_escape.yaml"))
	require.NoError(t, err)
	scenario.Expect = nil
	scenario.ExpectOK = true

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: no diagnostics")
}

func TestRun_ManifestLoadError(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("module:\n  app:\n    policy: refcount\n"), 0644))

	_, err := Run(&Scenario{Name: "bad", Manifests: []string{bad}, ExpectOK: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load manifests")
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "no diagnostics\n", string(Render(NewResult())))
}
