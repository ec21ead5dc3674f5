package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/fcrcheck/internal/ir"
)

// CompileCUE turns an evaluated CUE manifest into a Program.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The manifest shape is:
//
//	module: app: {
//		policy:  "gc"
//		effects: ["io"]
//		fn: main: {
//			effects: ["io"]
//			calls: [{callee: "net.fetch"}]
//		}
//	}
//	traits: [{name: "Send", home: "core"}]
//	impls:  [{trait: "Send", type: "app.Buf", module: "app"}]
//
// Modules and functions keep declaration order. Errors are collected, not
// returned on first failure.
func CompileCUE(v cue.Value) (*ir.Program, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError("manifest", err)}
	}

	var (
		prog ir.Program
		errs []error
	)

	if modVal := v.LookupPath(cue.ParsePath("module")); modVal.Exists() {
		iter, err := modVal.Fields()
		if err != nil {
			return nil, []error{formatCUEError("module", err)}
		}
		for iter.Next() {
			field := "module." + iter.Label()
			mod, modErrs := parseCUEModule(iter.Label(), iter.Value())
			errs = append(errs, modErrs...)
			decl, fns, convErrs := mod.toIR(field)
			errs = append(errs, convErrs...)
			prog.Modules = append(prog.Modules, decl)
			prog.Functions = append(prog.Functions, fns...)
		}
	}

	for _, t := range decodeList[rawTrait](v, "traits", "traits", &errs) {
		prog.Traits = append(prog.Traits, t.Value.toIR(t.Pos))
	}
	for _, t := range decodeList[rawType](v, "types", "types", &errs) {
		prog.Types = append(prog.Types, t.Value.toIR(t.Pos))
	}
	for _, i := range decodeList[rawImpl](v, "impls", "impls", &errs) {
		prog.Impls = append(prog.Impls, i.Value.toIR(i.Pos))
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return &prog, nil
}

func parseCUEModule(name string, v cue.Value) (rawModule, []error) {
	var errs []error
	mod := rawModule{Name: name, Pos: posOf(v)}
	field := "module." + name

	if pv := v.LookupPath(cue.ParsePath("policy")); pv.Exists() {
		s, err := pv.String()
		if err != nil {
			errs = append(errs, formatCUEError(field+".policy", err))
		} else {
			mod.Policy = &s
		}
	}
	if ev := v.LookupPath(cue.ParsePath("effects")); ev.Exists() {
		var names []string
		if err := ev.Decode(&names); err != nil {
			errs = append(errs, formatCUEError(field+".effects", err))
		} else {
			mod.Effects = &names
		}
	}

	fnVal := v.LookupPath(cue.ParsePath("fn"))
	if !fnVal.Exists() {
		return mod, errs
	}
	iter, err := fnVal.Fields()
	if err != nil {
		return mod, append(errs, formatCUEError(field+".fn", err))
	}
	for iter.Next() {
		fn, fnErrs := parseCUEFunction(field+".fn."+iter.Label(), iter.Value())
		errs = append(errs, fnErrs...)
		mod.Functions = append(mod.Functions, located[namedFunction]{
			Value: namedFunction{Name: iter.Label(), Body: fn},
			Pos:   posOf(iter.Value()),
		})
	}
	return mod, errs
}

func parseCUEFunction(field string, v cue.Value) (rawFunction, []error) {
	var (
		fn   rawFunction
		errs []error
	)

	if ev := v.LookupPath(cue.ParsePath("effects")); ev.Exists() {
		if err := ev.Decode(&fn.Effects); err != nil {
			errs = append(errs, formatCUEError(field+".effects", err))
		}
	}
	if pv := v.LookupPath(cue.ParsePath("params")); pv.Exists() {
		if err := pv.Decode(&fn.Params); err != nil {
			errs = append(errs, formatCUEError(field+".params", err))
		}
	}
	if rv := v.LookupPath(cue.ParsePath("return")); rv.Exists() {
		var ret rawReturn
		if err := rv.Decode(&ret); err != nil {
			errs = append(errs, formatCUEError(field+".return", err))
		} else {
			fn.Return = &ret
		}
	}
	fn.FFI = lookupBool(v, "ffi", field, &errs)
	fn.Extern = lookupBool(v, "extern", field, &errs)

	fn.Handles = decodeList[rawHandle](v, "handles", field+".handles", &errs)
	fn.Calls = decodeList[rawCall](v, "calls", field+".calls", &errs)
	for i := range fn.Handles {
		if fn.Handles[i].Value.ID == "" {
			errs = append(errs, errorf(fmt.Sprintf("%s.handles[%d].id", field, i), fn.Handles[i].Pos, "id is required"))
		}
	}
	return fn, errs
}

func lookupBool(v cue.Value, name, field string, errs *[]error) bool {
	bv := v.LookupPath(cue.ParsePath(name))
	if !bv.Exists() {
		return false
	}
	b, err := bv.Bool()
	if err != nil {
		*errs = append(*errs, formatCUEError(field+"."+name, err))
		return false
	}
	return b
}

// decodeList decodes each element of the list at name, keeping the
// element's source position.
func decodeList[T any](v cue.Value, name, field string, errs *[]error) []located[T] {
	lv := v.LookupPath(cue.ParsePath(name))
	if !lv.Exists() {
		return nil
	}
	iter, err := lv.List()
	if err != nil {
		*errs = append(*errs, formatCUEError(field, err))
		return nil
	}
	var out []located[T]
	for i := 0; iter.Next(); i++ {
		var elem T
		if err := iter.Value().Decode(&elem); err != nil {
			*errs = append(*errs, formatCUEError(fmt.Sprintf("%s[%d]", field, i), err))
			continue
		}
		out = append(out, located[T]{Value: elem, Pos: posOf(iter.Value())})
	}
	return out
}
