package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/fcrcheck/internal/engine"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fcrcheck", cmd.Use)
	assert.Contains(t, cmd.Long, "memory-policy")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"check", "validate", "graph", "history", "replay", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, ".fcrcheck.yaml", configFlag.DefValue)
}

func TestCheckCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	checkCmd, _, err := cmd.Find([]string{"check"})
	require.NoError(t, err)

	emitFlag := checkCmd.Flags().Lookup("emit")
	require.NotNil(t, emitFlag)
	assert.Equal(t, "o", emitFlag.Shorthand)

	for _, name := range []string{"record", "crosscheck", "dispatch", "sequential"} {
		assert.NotNil(t, checkCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := execute(t, "--format", "invalid", "check", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fcrcheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("dispatch: conservative\nformat: json\n"), 0644))

	t.Run("supplies defaults", func(t *testing.T) {
		// The dispatch manifest only passes in conservative mode
		_, _, err := execute(t, "--config", cfgPath, "check", manifest("dispatch.yaml"))
		require.NoError(t, err)
	})

	t.Run("flags override", func(t *testing.T) {
		out, _, err := execute(t, "--config", cfgPath, "--format", "text", "check", "--dispatch", "strict", manifest("dispatch.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "E601 UnresolvedCallError")
	})
}

func TestConfigFileInvalid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "fcrcheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("dispach: strict\n"), 0644))

	_, _, err := execute(t, "--config", cfgPath, "check", manifest("clean.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestVerboseInstallsLogger(t *testing.T) {
	t.Cleanup(func() { engine.SetLogger(zap.NewNop()) })

	_, stderr, err := execute(t, "--verbose", "check", manifest("clean.cue"))
	require.NoError(t, err)
	assert.Contains(t, stderr, "effects solved")
	assert.Contains(t, stderr, "analysis complete")
}
