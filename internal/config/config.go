// Package config loads the driver configuration file .fcrcheck.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fcrcheck/internal/callgraph"
)

// FileName is the configuration file looked up in the working directory.
const FileName = ".fcrcheck.yaml"

// Config holds driver settings. Command-line flags override file values.
type Config struct {
	// Dispatch is "strict" (default) or "conservative".
	Dispatch string `yaml:"dispatch"`
	// Crosscheck runs the Datalog oracle after the effect fixpoint.
	Crosscheck bool `yaml:"crosscheck"`
	// Sequential disables the parallel pass stage.
	Sequential bool `yaml:"sequential"`
	// Store is the run history database path; empty disables recording.
	Store string `yaml:"store"`
	// Format is the default output format: text or json.
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Dispatch: string(callgraph.DispatchStrict),
		Format:   "text",
	}
}

// Load reads path. A missing file yields Default with no error; unknown
// keys are rejected so typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	if _, err := callgraph.ParseDispatchMode(c.Dispatch); err != nil {
		return err
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid format %q: must be text or json", c.Format)
	}
	return nil
}

// DispatchMode returns the parsed dispatch mode.
func (c Config) DispatchMode() callgraph.DispatchMode {
	m, err := callgraph.ParseDispatchMode(c.Dispatch)
	if err != nil {
		return callgraph.DispatchStrict
	}
	return m
}
