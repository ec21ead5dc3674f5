package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fcrcheck/internal/ir"
)

// CompileYAML parses a YAML manifest with the same shape as the CUE one.
// Mapping order is preserved so module and function order follow the file.
// Unknown keys are rejected at every level.
func CompileYAML(data []byte, filename string) (*ir.Program, []error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, []error{&CompileError{Field: "manifest", Message: err.Error(), Pos: ir.Pos{File: filename}}}
	}
	if len(doc.Content) == 0 {
		return &ir.Program{}, nil
	}

	c := yamlCompiler{file: filename}
	root := doc.Content[0]
	if !c.expect(root, yaml.MappingNode, "manifest") {
		return nil, c.errs
	}

	var prog ir.Program
	c.each(root, "manifest", func(key, val *yaml.Node) {
		switch key.Value {
		case "module":
			c.modules(&prog, val)
		case "traits":
			for _, t := range decodeSeq[rawTrait](&c, val, "traits") {
				prog.Traits = append(prog.Traits, t.Value.toIR(t.Pos))
			}
		case "types":
			for _, t := range decodeSeq[rawType](&c, val, "types") {
				prog.Types = append(prog.Types, t.Value.toIR(t.Pos))
			}
		case "impls":
			for _, i := range decodeSeq[rawImpl](&c, val, "impls") {
				prog.Impls = append(prog.Impls, i.Value.toIR(i.Pos))
			}
		default:
			c.fail(key.Value, key, "unknown field")
		}
	})

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return &prog, nil
}

// LooksLikeManifest reports whether a YAML document has a manifest's
// top-level shape. It is used to tell manifests apart from other YAML kept
// in the same directory.
func LooksLikeManifest(data []byte) bool {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return false
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i < len(root.Content); i += 2 {
		switch root.Content[i].Value {
		case "module", "traits", "types", "impls":
			return true
		}
	}
	return false
}

type yamlCompiler struct {
	file string
	errs []error
}

func (c *yamlCompiler) pos(n *yaml.Node) ir.Pos {
	return ir.Pos{File: c.file, Line: n.Line, Col: n.Column}
}

func (c *yamlCompiler) fail(field string, n *yaml.Node, format string, args ...any) {
	c.errs = append(c.errs, errorf(field, c.pos(n), format, args...))
}

func (c *yamlCompiler) expect(n *yaml.Node, kind yaml.Kind, field string) bool {
	if n.Kind == kind {
		return true
	}
	want := "mapping"
	if kind == yaml.SequenceNode {
		want = "sequence"
	}
	c.fail(field, n, "expected a %s", want)
	return false
}

// each visits mapping pairs in document order.
func (c *yamlCompiler) each(n *yaml.Node, field string, fn func(key, val *yaml.Node)) {
	if !c.expect(n, yaml.MappingNode, field) {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		fn(n.Content[i], n.Content[i+1])
	}
}

func (c *yamlCompiler) modules(prog *ir.Program, n *yaml.Node) {
	c.each(n, "module", func(name, body *yaml.Node) {
		field := "module." + name.Value
		mod := rawModule{Name: name.Value, Pos: c.pos(name)}
		c.each(body, field, func(key, val *yaml.Node) {
			switch key.Value {
			case "policy":
				var s string
				if c.decode(val, field+".policy", &s) {
					mod.Policy = &s
				}
			case "effects":
				var names []string
				if c.decode(val, field+".effects", &names) {
					mod.Effects = &names
				}
			case "fn":
				c.each(val, field+".fn", func(fnName, fnBody *yaml.Node) {
					fn := c.function(fnBody, field+".fn."+fnName.Value)
					mod.Functions = append(mod.Functions, located[namedFunction]{
						Value: namedFunction{Name: fnName.Value, Body: fn},
						Pos:   c.pos(fnName),
					})
				})
			default:
				c.fail(field+"."+key.Value, key, "unknown field")
			}
		})

		decl, fns, errs := mod.toIR(field)
		c.errs = append(c.errs, errs...)
		prog.Modules = append(prog.Modules, decl)
		prog.Functions = append(prog.Functions, fns...)
	})
}

func (c *yamlCompiler) function(n *yaml.Node, field string) rawFunction {
	var fn rawFunction
	c.each(n, field, func(key, val *yaml.Node) {
		switch key.Value {
		case "effects":
			c.decode(val, field+".effects", &fn.Effects)
		case "params":
			c.decode(val, field+".params", &fn.Params)
		case "return":
			var ret rawReturn
			if c.decode(val, field+".return", &ret) {
				fn.Return = &ret
			}
		case "ffi":
			c.decode(val, field+".ffi", &fn.FFI)
		case "extern":
			c.decode(val, field+".extern", &fn.Extern)
		case "handles":
			fn.Handles = decodeSeq[rawHandle](c, val, field+".handles")
			for i, h := range fn.Handles {
				if h.Value.ID == "" {
					c.errs = append(c.errs, errorf(fmt.Sprintf("%s.handles[%d].id", field, i), h.Pos, "id is required"))
				}
			}
		case "calls":
			fn.Calls = decodeSeq[rawCall](c, val, field+".calls")
		default:
			c.fail(field+"."+key.Value, key, "unknown field")
		}
	})
	return fn
}

// decode strictly decodes a subtree. Node.Decode ignores KnownFields, so
// the subtree is re-encoded and read back through a strict decoder.
func (c *yamlCompiler) decode(n *yaml.Node, field string, out any) bool {
	data, err := yaml.Marshal(n)
	if err != nil {
		c.fail(field, n, "%v", err)
		return false
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		c.fail(field, n, "%s", yamlMessage(err))
		return false
	}
	return true
}

func decodeSeq[T any](c *yamlCompiler, n *yaml.Node, field string) []located[T] {
	if !c.expect(n, yaml.SequenceNode, field) {
		return nil
	}
	var out []located[T]
	for i, elem := range n.Content {
		var v T
		if !c.decode(elem, fmt.Sprintf("%s[%d]", field, i), &v) {
			continue
		}
		out = append(out, located[T]{Value: v, Pos: c.pos(elem)})
	}
	return out
}

// yamlMessage drops the "yaml: unmarshal errors:" preamble and the line
// numbers of the re-encoded subtree.
func yamlMessage(err error) string {
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg := te.Errors[0]
		if strings.HasPrefix(msg, "line ") {
			if _, rest, ok := strings.Cut(msg, ": "); ok {
				return rest
			}
		}
		return msg
	}
	return err.Error()
}
