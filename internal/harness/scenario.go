package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fcrcheck/internal/callgraph"
	"github.com/roach88/fcrcheck/internal/diag"
)

// Scenario defines one analysis test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Manifests lists CUE or YAML manifest files or directories.
	// Paths are relative to the scenario file location.
	Manifests []string `yaml:"manifests"`

	// Dispatch selects the dispatch mode; empty means strict.
	Dispatch string `yaml:"dispatch,omitempty"`

	// Crosscheck runs the Datalog oracle as part of the analysis.
	Crosscheck bool `yaml:"crosscheck,omitempty"`

	// ExpectOK asserts the analysis reports no diagnostics.
	ExpectOK bool `yaml:"expect_ok,omitempty"`

	// Expect lists the diagnostics the analysis must report.
	Expect []Expectation `yaml:"expect,omitempty"`
}

// Expectation matches diagnostics by kind and, optionally, by function
// and message substring.
type Expectation struct {
	Kind     string `yaml:"kind"`
	Function string `yaml:"function,omitempty"`
	Message  string `yaml:"message,omitempty"`
	// Count is the exact number of matching diagnostics; 0 means at least one.
	Count int `yaml:"count,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "expects:" vs "expect:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve manifest paths relative to the scenario BEFORE validation
	base := filepath.Dir(path)
	for i, m := range scenario.Manifests {
		if !filepath.IsAbs(m) {
			scenario.Manifests[i] = filepath.Join(base, m)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Manifests) == 0 {
		return fmt.Errorf("manifests list is required and must be non-empty")
	}

	for _, m := range s.Manifests {
		if _, err := os.Stat(m); os.IsNotExist(err) {
			return fmt.Errorf("manifest not found: %s", m)
		}
	}

	if s.Dispatch != "" {
		if _, err := callgraph.ParseDispatchMode(s.Dispatch); err != nil {
			return err
		}
	}

	switch {
	case s.ExpectOK && len(s.Expect) > 0:
		return fmt.Errorf("expect_ok and expect are mutually exclusive")
	case !s.ExpectOK && len(s.Expect) == 0:
		return fmt.Errorf("either expect_ok or a non-empty expect list is required")
	}

	known := make(map[string]bool)
	for _, k := range diag.Kinds() {
		known[string(k)] = true
	}
	for i, e := range s.Expect {
		if e.Kind == "" {
			return fmt.Errorf("expect[%d]: kind is required", i)
		}
		if !known[e.Kind] {
			return fmt.Errorf("expect[%d]: unknown diagnostic kind %q", i, e.Kind)
		}
		if e.Count < 0 {
			return fmt.Errorf("expect[%d]: count must be non-negative", i)
		}
	}

	return nil
}
