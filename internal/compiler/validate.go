package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/fcrcheck/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Module errors (E101-E104). Repeated module declarations are left to
	// the policy table: identical ones merge, conflicting ones fail E201.
	ErrModuleNameEmpty   = "E101" // module name is required
	ErrFunctionName      = "E103" // function name not qualified by its module
	ErrDuplicateFunction = "E104" // function declared twice

	// Function body errors (E110-E119)
	ErrDuplicateHandle = "E110" // handle id reused inside a function
	ErrUnknownParent   = "E111" // handle parent names no handle
	ErrHandleCycle     = "E112" // handle parents form a cycle
	ErrUnknownHandle   = "E113" // call site names no handle
	ErrMissingCallee   = "E114" // plain call with no callee and no candidates
	ErrCaptureType     = "E115" // capture without a type
	ErrJoinOnCall      = "E116" // task scope fields on a non-spawn site

	// Declaration errors (E120-E129)
	ErrTraitDecl = "E120" // trait or type without a name or home
	ErrImplDecl  = "E121" // impl without a trait, type or module
)

// ValidationError represents an input contract violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Pos     ir.Pos `json:"pos"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the structural contract the analysis relies on.
// Returns all errors found (does not fail-fast).
func Validate(p *ir.Program) []ValidationError {
	var errs []ValidationError
	add := func(code, field string, pos ir.Pos, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code, Pos: pos})
	}

	for i, m := range p.Modules {
		if strings.TrimSpace(m.Name) == "" {
			add(ErrModuleNameEmpty, fmt.Sprintf("modules[%d]", i), m.Pos, "module name is required")
		}
	}

	functions := make(map[string]bool, len(p.Functions))
	for i := range p.Functions {
		f := &p.Functions[i]
		field := "function." + f.Name
		mod, _, ok := ir.SplitQualified(f.Name)
		if !ok || mod != f.Module {
			add(ErrFunctionName, field, f.Pos, "name %q is not qualified by module %q", f.Name, f.Module)
		}
		if functions[f.Name] {
			add(ErrDuplicateFunction, field, f.Pos, "function %s declared more than once", f.Name)
		}
		functions[f.Name] = true
		errs = append(errs, validateBody(f, field)...)
	}

	for i, t := range p.Traits {
		if t.Name == "" || t.Home == "" {
			add(ErrTraitDecl, fmt.Sprintf("traits[%d]", i), t.Pos, "trait requires a name and a home module")
		}
	}
	for i, t := range p.Types {
		if t.Name == "" || t.Home == "" {
			add(ErrTraitDecl, fmt.Sprintf("types[%d]", i), t.Pos, "type requires a name and a home module")
		}
	}
	for i, im := range p.Impls {
		if im.Trait == "" || im.Type == "" || im.Module == "" {
			add(ErrImplDecl, fmt.Sprintf("impls[%d]", i), im.Pos, "impl requires a trait, a type and a module")
		}
	}
	return errs
}

func validateBody(f *ir.FunctionDecl, field string) []ValidationError {
	var errs []ValidationError
	add := func(code, field string, pos ir.Pos, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code, Pos: pos})
	}

	parents := make(map[string]string, len(f.Handles))
	for _, h := range f.Handles {
		if _, dup := parents[h.ID]; dup {
			add(ErrDuplicateHandle, field+".handles."+h.ID, h.Pos, "handle %s declared more than once", h.ID)
			continue
		}
		parents[h.ID] = h.Parent
	}
	for _, h := range f.Handles {
		if h.Parent == "" {
			continue
		}
		if _, ok := parents[h.Parent]; !ok {
			add(ErrUnknownParent, field+".handles."+h.ID, h.Pos, "parent %s is not a handle of %s", h.Parent, f.Name)
			continue
		}
		if handleCycle(parents, h.ID) {
			add(ErrHandleCycle, field+".handles."+h.ID, h.Pos, "handle %s is its own ancestor", h.ID)
		}
	}

	for i, c := range f.Calls {
		site := fmt.Sprintf("%s.calls[%d]", field, i)
		if c.Handle != "" {
			if _, ok := parents[c.Handle]; !ok {
				add(ErrUnknownHandle, site, c.Pos, "handle %s is not declared in %s", c.Handle, f.Name)
			}
		}
		if c.Kind == ir.CallPlain && c.Callee == "" && len(c.Candidates) == 0 {
			add(ErrMissingCallee, site, c.Pos, "call has no callee")
		}
		for j, capt := range c.Captures {
			if capt.Type == "" {
				add(ErrCaptureType, fmt.Sprintf("%s.captures[%d]", site, j), c.Pos, "capture %q has no type", capt.Name)
			}
		}
		if c.Kind != ir.CallSpawn && (c.TaskScope != "" || c.ParentScope != "" || c.Join) {
			add(ErrJoinOnCall, site, c.Pos, "task scope fields only apply to spawn sites, not %s", c.Kind)
		}
	}
	return errs
}

func handleCycle(parents map[string]string, id string) bool {
	seen := map[string]bool{id: true}
	for cur := parents[id]; cur != ""; cur = parents[cur] {
		if seen[cur] {
			return cur == id
		}
		seen[cur] = true
	}
	return false
}
