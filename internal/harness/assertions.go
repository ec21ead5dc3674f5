package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/fcrcheck/internal/diag"
)

// ExpectationError is returned when an expectation fails.
// It includes the full diagnostic list to help debug the failure.
type ExpectationError struct {
	Expected    string
	Actual      string
	Diagnostics []diag.Diagnostic
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed\n")
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Diagnostics) > 0 {
		fmt.Fprintf(&buf, "\nDiagnostics:\n")
		for i, d := range e.Diagnostics {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, d.Error())
		}
	}

	return buf.String()
}

func (e Expectation) String() string {
	var parts []string
	parts = append(parts, e.Kind)
	if e.Function != "" {
		parts = append(parts, "in "+e.Function)
	}
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("containing %q", e.Message))
	}
	return strings.Join(parts, " ")
}

// matches reports whether d satisfies e (subset semantics: only the
// fields set on e are compared).
func (e Expectation) matches(d diag.Diagnostic) bool {
	if string(d.Kind) != e.Kind {
		return false
	}
	if e.Function != "" && d.Function != e.Function {
		return false
	}
	return e.Message == "" || strings.Contains(d.Message, e.Message)
}

// EvaluateExpectations checks diagnostics against a scenario.
// Returns a slice of error messages for failed expectations.
func EvaluateExpectations(s *Scenario, ds []diag.Diagnostic) []string {
	var errors []string

	if s.ExpectOK {
		if len(ds) > 0 {
			errors = append(errors, (&ExpectationError{
				Expected:    "no diagnostics",
				Actual:      fmt.Sprintf("%d diagnostic(s)", len(ds)),
				Diagnostics: ds,
			}).Error())
		}
		return errors
	}

	matched := make([]bool, len(ds))
	for _, e := range s.Expect {
		n := 0
		for i, d := range ds {
			if e.matches(d) {
				matched[i] = true
				n++
			}
		}

		switch {
		case e.Count > 0 && n != e.Count:
			errors = append(errors, (&ExpectationError{
				Expected:    fmt.Sprintf("%d × %s", e.Count, e),
				Actual:      fmt.Sprintf("%d match(es)", n),
				Diagnostics: ds,
			}).Error())
		case e.Count == 0 && n == 0:
			errors = append(errors, (&ExpectationError{
				Expected:    e.String(),
				Actual:      "no matching diagnostic",
				Diagnostics: ds,
			}).Error())
		}
	}

	for i, d := range ds {
		if !matched[i] {
			errors = append(errors, fmt.Sprintf("unexpected diagnostic: %s", d.Error()))
		}
	}

	return errors
}
