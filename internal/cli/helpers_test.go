package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/roach88/fcrcheck/internal/config"
)

var manifestDir = filepath.Join("..", "..", "testdata", "manifests")

func manifest(name string) string {
	return filepath.Join(manifestDir, name)
}

func testRootOptions(format string) *RootOptions {
	return &RootOptions{Format: format, Config: config.Default()}
}

// execute runs the full root command so config loading and global flags
// apply. The config path defaults to a file that does not exist.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
