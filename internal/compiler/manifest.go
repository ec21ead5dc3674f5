package compiler

import (
	"fmt"

	"github.com/roach88/fcrcheck/internal/ir"
)

// Raw manifest shapes shared by the CUE and YAML frontends. Enumerated
// fields stay strings here and are parsed when converting to ir.

type rawParam struct {
	Name      string `json:"name" yaml:"name"`
	Type      string `json:"type,omitempty" yaml:"type"`
	Ownership string `json:"ownership,omitempty" yaml:"ownership"`
	Escapes   bool   `json:"escapes,omitempty" yaml:"escapes"`
}

type rawReturn struct {
	Type      string `json:"type,omitempty" yaml:"type"`
	Pointer   bool   `json:"pointer,omitempty" yaml:"pointer"`
	Ownership string `json:"ownership,omitempty" yaml:"ownership"`
}

type rawHandle struct {
	ID         string   `json:"id" yaml:"id"`
	Discharges []string `json:"discharges" yaml:"discharges"`
	Parent     string   `json:"parent,omitempty" yaml:"parent"`
}

type rawCapture struct {
	Name string `json:"name,omitempty" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	Mode string `json:"mode,omitempty" yaml:"mode"`
}

type rawCall struct {
	Callee       string       `json:"callee,omitempty" yaml:"callee"`
	Candidates   []string     `json:"candidates,omitempty" yaml:"candidates"`
	Kind         string       `json:"kind,omitempty" yaml:"kind"`
	Handle       string       `json:"handle,omitempty" yaml:"handle"`
	Async        bool         `json:"async,omitempty" yaml:"async"`
	Await        bool         `json:"await,omitempty" yaml:"await"`
	Blocking     bool         `json:"blocking,omitempty" yaml:"blocking"`
	ResultStored bool         `json:"result_stored,omitempty" yaml:"result_stored"`
	Captures     []rawCapture `json:"captures,omitempty" yaml:"captures"`
	TaskScope    string       `json:"task_scope,omitempty" yaml:"task_scope"`
	ParentScope  string       `json:"parent_scope,omitempty" yaml:"parent_scope"`
	Join         bool         `json:"join,omitempty" yaml:"join"`
}

type rawTrait struct {
	Name    string   `json:"name" yaml:"name"`
	Home    string   `json:"home" yaml:"home"`
	Methods []string `json:"methods,omitempty" yaml:"methods"`
}

type rawType struct {
	Name string `json:"name" yaml:"name"`
	Home string `json:"home" yaml:"home"`
}

type rawImpl struct {
	Trait   string   `json:"trait" yaml:"trait"`
	Type    string   `json:"type" yaml:"type"`
	Module  string   `json:"module" yaml:"module"`
	Methods []string `json:"methods,omitempty" yaml:"methods"`
}

// located pairs a raw value with its source position.
type located[T any] struct {
	Value T
	Pos   ir.Pos
}

// rawFunction is one fn entry after the frontend resolved positions.
type rawFunction struct {
	Effects []string
	Params  []rawParam
	Return  *rawReturn
	FFI     bool
	Extern  bool
	Handles []located[rawHandle]
	Calls   []located[rawCall]
}

// rawModule is one module entry.
type rawModule struct {
	Name      string
	Pos       ir.Pos
	Policy    *string
	Effects   *[]string
	Functions []located[namedFunction]
}

type namedFunction struct {
	Name string
	Body rawFunction
}

func (m rawModule) toIR(field string) (ir.ModuleDecl, []ir.FunctionDecl, []error) {
	var errs []error
	decl := ir.ModuleDecl{Name: m.Name, Pos: m.Pos}

	if m.Policy != nil {
		p, err := ir.ParsePolicy(*m.Policy)
		if err != nil {
			errs = append(errs, errorf(field+".policy", m.Pos, "%v", err))
		} else {
			decl.Policy = &p
		}
	}
	if m.Effects != nil {
		set, err := ir.ParseEffectSet(*m.Effects)
		if err != nil {
			errs = append(errs, errorf(field+".effects", m.Pos, "%v", err))
		} else {
			decl.Effects = &set
		}
	}

	var fns []ir.FunctionDecl
	for _, f := range m.Functions {
		fn, fnErrs := f.Value.Body.toIR(m.Name, f.Value.Name, f.Pos, field+".fn."+f.Value.Name)
		errs = append(errs, fnErrs...)
		if len(fnErrs) == 0 {
			fns = append(fns, fn)
		}
	}
	return decl, fns, errs
}

func (f rawFunction) toIR(module, name string, pos ir.Pos, field string) (ir.FunctionDecl, []error) {
	var errs []error
	decl := ir.FunctionDecl{
		Name:   ir.QualifiedName(module, name),
		Module: module,
		FFI:    f.FFI,
		Extern: f.Extern,
		Pos:    pos,
	}

	effects, err := ir.ParseEffectSet(f.Effects)
	if err != nil {
		errs = append(errs, errorf(field+".effects", pos, "%v", err))
	}
	decl.Effects = effects

	for i, p := range f.Params {
		param, err := p.toIR()
		if err != nil {
			errs = append(errs, errorf(fmt.Sprintf("%s.params[%d]", field, i), pos, "%v", err))
			continue
		}
		decl.Params = append(decl.Params, param)
	}

	if f.Return != nil {
		own, err := ir.ParseOwnership(f.Return.Ownership)
		if err != nil {
			errs = append(errs, errorf(field+".return", pos, "%v", err))
		}
		decl.Return = &ir.Return{Type: f.Return.Type, Pointer: f.Return.Pointer, Ownership: own}
	}

	for i, h := range f.Handles {
		set, err := ir.ParseEffectSet(h.Value.Discharges)
		if err != nil {
			errs = append(errs, errorf(fmt.Sprintf("%s.handles[%d]", field, i), h.Pos, "%v", err))
			continue
		}
		decl.Handles = append(decl.Handles, ir.HandleScope{
			ID:         h.Value.ID,
			Discharges: set,
			Parent:     h.Value.Parent,
			Pos:        h.Pos,
		})
	}

	for i, c := range f.Calls {
		site, err := c.Value.toIR(c.Pos)
		if err != nil {
			errs = append(errs, errorf(fmt.Sprintf("%s.calls[%d]", field, i), c.Pos, "%v", err))
			continue
		}
		decl.Calls = append(decl.Calls, site)
	}
	return decl, errs
}

func (p rawParam) toIR() (ir.Param, error) {
	own, err := ir.ParseOwnership(p.Ownership)
	if err != nil {
		return ir.Param{}, err
	}
	return ir.Param{Name: p.Name, Type: p.Type, Ownership: own, Escapes: p.Escapes}, nil
}

func (c rawCall) toIR(pos ir.Pos) (ir.CallSite, error) {
	kind, err := ir.ParseCallKind(c.Kind)
	if err != nil {
		return ir.CallSite{}, err
	}
	site := ir.CallSite{
		Callee:       c.Callee,
		Candidates:   c.Candidates,
		Pos:          pos,
		Kind:         kind,
		Handle:       c.Handle,
		Async:        c.Async,
		Await:        c.Await,
		Blocking:     c.Blocking,
		ResultStored: c.ResultStored,
		TaskScope:    c.TaskScope,
		ParentScope:  c.ParentScope,
		Join:         c.Join,
	}
	for _, rc := range c.Captures {
		mode, err := ir.ParseCaptureMode(rc.Mode)
		if err != nil {
			return ir.CallSite{}, err
		}
		site.Captures = append(site.Captures, ir.Capture{Name: rc.Name, Type: rc.Type, Mode: mode})
	}
	return site, nil
}

func (t rawTrait) toIR(pos ir.Pos) ir.TraitDecl {
	return ir.TraitDecl{Name: t.Name, Home: t.Home, Methods: t.Methods, Pos: pos}
}

func (t rawType) toIR(pos ir.Pos) ir.TypeDecl {
	return ir.TypeDecl{Name: t.Name, Home: t.Home, Pos: pos}
}

func (i rawImpl) toIR(pos ir.Pos) ir.ImplDecl {
	return ir.ImplDecl{Trait: i.Trait, Type: i.Type, Module: i.Module, Methods: i.Methods, Pos: pos}
}
