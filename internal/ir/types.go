package ir

import (
	"fmt"
	"strings"
)

// Pos is a source location supplied by the upstream parser.
// The zero Pos is "unknown" and sorts before every known position.
type Pos struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
}

// IsValid reports whether the position carries a line number.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		if p.File != "" {
			return p.File
		}
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Compare orders positions by file, then line, then column.
func (p Pos) Compare(o Pos) int {
	if c := strings.Compare(p.File, o.File); c != 0 {
		return c
	}
	if p.Line != o.Line {
		if p.Line < o.Line {
			return -1
		}
		return 1
	}
	if p.Col != o.Col {
		if p.Col < o.Col {
			return -1
		}
		return 1
	}
	return 0
}

// Program is the typed, already-parsed compilation unit handed to the engine.
// Dynamic dispatch is expected to be resolved upstream; see CallSite.Candidates.
type Program struct {
	Modules   []ModuleDecl   `json:"modules"`
	Traits    []TraitDecl    `json:"traits,omitempty"`
	Types     []TypeDecl     `json:"types,omitempty"`
	Functions []FunctionDecl `json:"functions"`
	Impls     []ImplDecl     `json:"impls,omitempty"`
}

// ModuleDecl declares a module's policy and effect budget.
// A nil Policy or nil Effects means the declaration omitted it.
type ModuleDecl struct {
	Name    string     `json:"name"`
	Policy  *Policy    `json:"policy,omitempty"`
	Effects *EffectSet `json:"effects,omitempty"`
	Pos     Pos        `json:"pos"`
}

// TraitDecl declares a trait, its home module and required methods.
type TraitDecl struct {
	Name    string   `json:"name"`
	Home    string   `json:"home"`
	Methods []string `json:"methods,omitempty"`
	Pos     Pos      `json:"pos"`
}

// TypeDecl declares a nominal type and its home module.
type TypeDecl struct {
	Name string `json:"name"`
	Home string `json:"home"`
	Pos  Pos    `json:"pos"`
}

// ImplDecl is a trait implementation as written in the source.
type ImplDecl struct {
	Trait   string   `json:"trait"`
	Type    string   `json:"type"`
	Module  string   `json:"module"`
	Methods []string `json:"methods,omitempty"`
	Pos     Pos      `json:"pos"`
}

// Param is one function parameter.
type Param struct {
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"`
	Ownership Ownership `json:"ownership"`
	// Escapes is set by upstream escape analysis when the function stores
	// the parameter into data that outlives the call without copying it.
	Escapes bool `json:"escapes,omitempty"`
}

// Return describes a function's result.
type Return struct {
	Type      string    `json:"type,omitempty"`
	Pointer   bool      `json:"pointer,omitempty"`
	Ownership Ownership `json:"ownership"`
}

// HandleScope is a `handle { ... } catch !E` region inside a function.
type HandleScope struct {
	ID         string    `json:"id"`
	Discharges EffectSet `json:"discharges"`
	Parent     string    `json:"parent,omitempty"`
	Pos        Pos       `json:"pos"`
}

// Capture is a value crossing a thread boundary at a spawn or send site.
type Capture struct {
	Name string      `json:"name,omitempty"`
	Type string      `json:"type"`
	Mode CaptureMode `json:"mode"`
}

// CallSite is one call expression inside a function body.
type CallSite struct {
	// Callee is the target name, qualified ("mod.fn") or relative to the
	// caller's module. Ignored when Candidates is non-empty.
	Callee string `json:"callee,omitempty"`
	// Candidates is the target set of an unresolved virtual call.
	Candidates []string `json:"candidates,omitempty"`

	Pos      Pos      `json:"pos"`
	Kind     CallKind `json:"kind"`
	Handle   string   `json:"handle,omitempty"`
	Async    bool     `json:"async,omitempty"`
	Await    bool     `json:"await,omitempty"`
	Blocking bool     `json:"blocking,omitempty"`

	// ResultStored marks that the returned value is stored into
	// caller-owned data that outlives the call.
	ResultStored bool `json:"result_stored,omitempty"`

	Captures []Capture `json:"captures,omitempty"`

	// TaskScope names the structured-concurrency scope a spawn creates;
	// ParentScope names the enclosing one. Join is set when the scope
	// joins the task explicitly before exit.
	TaskScope   string `json:"task_scope,omitempty"`
	ParentScope string `json:"parent_scope,omitempty"`
	Join        bool   `json:"join,omitempty"`
}

// FunctionDecl is a function signature plus its call sites.
type FunctionDecl struct {
	Name    string        `json:"name"` // qualified: module.fn
	Module  string        `json:"module"`
	Effects EffectSet     `json:"effects"`
	Params  []Param       `json:"params,omitempty"`
	Return  *Return       `json:"return,omitempty"`
	FFI     bool          `json:"ffi,omitempty"`
	Extern  bool          `json:"extern,omitempty"`
	Handles []HandleScope `json:"handles,omitempty"`
	Calls   []CallSite    `json:"calls,omitempty"`
	Pos     Pos           `json:"pos"`
}

// DeclaredEffects is the declared set; FFI functions always carry FFI.
func (f *FunctionDecl) DeclaredEffects() EffectSet {
	if f.FFI {
		return f.Effects.With(EffectFFI)
	}
	return f.Effects
}

// QualifiedName joins a module and a local function name.
func QualifiedName(module, fn string) string {
	return module + "." + fn
}

// SplitQualified splits "mod.fn" at the last dot.
func SplitQualified(name string) (module, fn string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", name, false
	}
	return name[:i], name[i+1:], true
}
