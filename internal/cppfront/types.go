package cppfront

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/reflectdb/internal/ast"
)

// bindings maps the parameters of a class template being instantiated to
// its arguments.
type bindings struct {
	types  map[string]*ast.Type
	values map[string]int64
}

func (b *bindings) typ(name string) (*ast.Type, bool) {
	if b == nil {
		return nil, false
	}
	t, ok := b.types[name]
	return t, ok
}

func (b *bindings) value(name string) (int64, bool) {
	if b == nil {
		return 0, false
	}
	v, ok := b.values[name]
	return v, ok
}

func bind(params []templateParam, args []ast.TemplateArg) *bindings {
	b := &bindings{types: make(map[string]*ast.Type), values: make(map[string]int64)}
	for i, tp := range params {
		if i >= len(args) || tp.name == "" {
			break
		}
		switch args[i].Kind {
		case ast.ArgType:
			b.types[tp.name] = args[i].Type
		case ast.ArgIntegral:
			b.values[tp.name] = args[i].Value
		}
	}
	return b
}

// fixedWidthAliases are the standard typedefs tree-sitter reports as
// primitive types, with their LP64 targets.
var fixedWidthAliases = map[string]string{
	"int8_t":    "signed char",
	"uint8_t":   "unsigned char",
	"int16_t":   "short",
	"uint16_t":  "unsigned short",
	"int32_t":   "int",
	"uint32_t":  "unsigned int",
	"int64_t":   "long",
	"uint64_t":  "unsigned long",
	"size_t":    "unsigned long",
	"ssize_t":   "long",
	"ptrdiff_t": "long",
	"intptr_t":  "long",
	"uintptr_t": "unsigned long",
}

// builtinType normalizes a fundamental type spelling such as
// "unsigned long int" to the name the database uses.
func builtinType(spelling string) *ast.Type {
	if target, ok := fixedWidthAliases[spelling]; ok {
		return ast.Typedef(spelling, ast.Builtin(target))
	}
	var (
		signed, unsigned, short bool
		longs                   int
		base                    string
	)
	for _, w := range strings.Fields(spelling) {
		switch w {
		case "signed":
			signed = true
		case "unsigned":
			unsigned = true
		case "short":
			short = true
		case "long":
			longs++
		default:
			base = w
		}
	}

	var name string
	switch {
	case base == "char":
		switch {
		case unsigned:
			return ast.Builtin("unsigned char")
		case signed:
			return ast.Builtin("signed char")
		}
		return ast.Builtin("char")
	case base == "double" && longs > 0:
		return ast.Builtin("long double")
	case base != "" && base != "int":
		return ast.Builtin(base)
	case short:
		name = "short"
	case longs == 1:
		name = "long"
	case longs > 1:
		name = "long long"
	default:
		name = "int"
	}
	if unsigned {
		name = "unsigned " + name
	}
	return ast.Builtin(name)
}

func other(name string) *ast.Type {
	return &ast.Type{Class: ast.TypeOther, Name: name}
}

// typeOf resolves a type specifier.
func (p *unitParser) typeOf(n *sitter.Node, scope string, b *bindings) *ast.Type {
	if n == nil {
		return other("")
	}
	switch n.Type() {
	case "primitive_type", "sized_type_specifier":
		return builtinType(p.text(n))
	case "type_identifier":
		return p.namedType(p.name(n), scope, b)
	case "qualified_identifier":
		return p.qualifiedType(n, scope, b)
	case "template_type":
		return p.templateType(n, "", scope, b)
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return other("(anonymous)")
		}
		inner := p.typeOf(nameNode, scope, b)
		if inner.Class == ast.TypeOther {
			return inner
		}
		return ast.Elaborated(strings.TrimSuffix(n.Type(), "_specifier"), inner)
	}
	return other(p.name(n))
}

func (p *unitParser) namedType(name, scope string, b *bindings) *ast.Type {
	if t, ok := b.typ(name); ok {
		return t
	}
	if _, ok := fixedWidthAliases[name]; ok {
		return builtinType(name)
	}
	return p.symbolType(p.lookup(name, scope), name)
}

// symbolType is the type a resolved symbol names. Unknown names are
// records declared outside the unit.
func (p *unitParser) symbolType(s *symbol, written string) *ast.Type {
	if s == nil {
		return ast.Record(strings.TrimPrefix(written, "::"))
	}
	switch s.kind {
	case symRecord, symTemplate:
		return ast.Record(s.name)
	case symEnum:
		return ast.EnumType(s.name)
	case symTypedef:
		return ast.Typedef(s.name, p.typedefTarget(s))
	}
	return other(s.name)
}

func (p *unitParser) typedefTarget(s *symbol) *ast.Type {
	if p.resolving[s] {
		return other(s.name)
	}
	p.resolving[s] = true
	defer delete(p.resolving, s)

	if s.decl == nil {
		return p.descriptorType(s.node, s.scope, nil)
	}
	t := p.typeOf(s.node, s.scope, nil)
	t = p.withQualifiers(s.node.Parent(), t)
	t, _, fn := p.applyDeclarator(t, s.decl, s.scope, nil)
	if fn != nil {
		return other(s.name)
	}
	return t
}

// qualifiedType resolves "a::b::C" and "a::T<X>".
func (p *unitParser) qualifiedType(n *sitter.Node, scope string, b *bindings) *ast.Type {
	var parts []string
	global := false
	cur := n
	for cur != nil && cur.Type() == "qualified_identifier" {
		if s := cur.ChildByFieldName("scope"); s != nil {
			parts = append(parts, p.name(s))
		} else if len(parts) == 0 {
			global = true
		}
		cur = cur.ChildByFieldName("name")
	}
	prefix := strings.Join(parts, "::")
	if global {
		prefix = "::" + prefix
	}
	if cur == nil {
		return other(p.name(n))
	}
	if cur.Type() == "template_type" {
		return p.templateType(cur, prefix, scope, b)
	}
	written := joinScope(prefix, p.name(cur))
	return p.symbolType(p.lookup(written, scope), written)
}

func joinScope(prefix, name string) string {
	switch prefix {
	case "":
		return name
	case "::":
		return "::" + name
	}
	return prefix + "::" + name
}

func (p *unitParser) templateType(n *sitter.Node, prefix, scope string, b *bindings) *ast.Type {
	written := joinScope(prefix, p.name(n.ChildByFieldName("name")))
	s := p.lookup(written, scope)
	name := strings.TrimPrefix(written, "::")
	if s != nil {
		name = s.name
	}
	args := p.templateArgs(n.ChildByFieldName("arguments"), scope, b)
	return p.instantiate(s, name, args)
}

func (p *unitParser) templateArgs(list *sitter.Node, scope string, b *bindings) []ast.TemplateArg {
	if list == nil {
		return nil
	}
	var out []ast.TemplateArg
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		switch c.Type() {
		case "comment":
			continue
		case "type_descriptor":
			// A lone identifier bound to a value parameter parses as a type.
			if c.NamedChildCount() == 1 {
				if v, ok := b.value(p.name(c)); ok {
					out = append(out, ast.TemplateArg{Kind: ast.ArgIntegral, Value: v})
					continue
				}
			}
			out = append(out, ast.TemplateArg{Kind: ast.ArgType, Type: p.descriptorType(c, scope, b)})
		default:
			if v, ok := p.eval(c, scope, b); ok {
				out = append(out, ast.TemplateArg{Kind: ast.ArgIntegral, Value: v})
			} else {
				out = append(out, ast.TemplateArg{Kind: ast.ArgOther})
			}
		}
	}
	return out
}

// descriptorType resolves a type_descriptor such as "const Foo*".
func (p *unitParser) descriptorType(n *sitter.Node, scope string, b *bindings) *ast.Type {
	if n == nil {
		return other("")
	}
	if n.Type() != "type_descriptor" {
		return p.typeOf(n, scope, b)
	}
	t := p.typeOf(n.ChildByFieldName("type"), scope, b)
	t = p.withQualifiers(n, t)
	if d := n.ChildByFieldName("declarator"); d != nil {
		var fn *sitter.Node
		t, _, fn = p.applyDeclarator(t, d, scope, b)
		if fn != nil {
			return other(p.name(n))
		}
	}
	return t
}

// instantiate returns the specialization type of template s with args,
// memoized by instantiation name. The entry is stored before its bases
// are resolved, so an instantiation that reaches itself through its own
// bases gets the same specialization back.
func (p *unitParser) instantiate(s *symbol, template string, args []ast.TemplateArg) *ast.Type {
	name := instanceName(template, args)
	if in, ok := p.instances[name]; ok {
		return ast.Instance(name, in.spec)
	}
	spec := &ast.Specialization{Template: template, Args: args}
	in := &instance{spec: spec, layout: typeLayout{align: 1}}
	p.instances[name] = in

	if s == nil || s.kind != symTemplate {
		return ast.Instance(name, spec)
	}
	spec.Loc = s.loc
	if s.node.ChildByFieldName("body") == nil || len(args) < len(s.params) || p.depth >= maxInstantiationDepth {
		return ast.Instance(name, spec)
	}
	spec.Declared = true

	p.depth++
	defer func() { p.depth-- }()

	b := bind(s.params, args)
	spec.Bases = p.bases(s.node, s.scope, b)
	rl := p.layoutBody(s.node, s.scope, s.name, b)
	spec.Size = rl.size
	in.layout = rl.typeLayout
	return ast.Instance(name, spec)
}

// instanceName spells an instantiation the way the database names it:
// no spaces, no tag keywords, pointers as a trailing "*".
func instanceName(template string, args []ast.TemplateArg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch a.Kind {
		case ast.ArgIntegral:
			parts[i] = strconv.FormatInt(a.Value, 10)
		case ast.ArgType:
			parts[i] = argSpelling(a.Type)
		default:
			parts[i] = "?"
		}
	}
	return template + "<" + strings.Join(parts, ",") + ">"
}

func argSpelling(t *ast.Type) string {
	for t != nil && (t.Class == ast.TypeTypedef || t.Class == ast.TypeElaborated) && t.Elem != nil {
		t = t.Elem
	}
	if t == nil {
		return "?"
	}
	switch t.Class {
	case ast.TypePointer:
		return argSpelling(t.Elem) + "*"
	case ast.TypeLValueReference:
		return argSpelling(t.Elem) + "&"
	case ast.TypeRValueReference:
		return argSpelling(t.Elem) + "&&"
	case ast.TypeConstantArray:
		return argSpelling(t.Elem) + "[" + strconv.FormatUint(t.ArrayLen, 10) + "]"
	}
	return t.Name
}

// bases resolves the base-specifier list of a record specifier.
func (p *unitParser) bases(spec *sitter.Node, scope string, b *bindings) []ast.Base {
	var clause *sitter.Node
	for i := 0; i < int(spec.NamedChildCount()); i++ {
		if c := spec.NamedChild(i); c.Type() == "base_class_clause" {
			clause = c
			break
		}
	}
	if clause == nil {
		return nil
	}
	var (
		out     []ast.Base
		virtual bool
	)
	for i := 0; i < int(clause.ChildCount()); i++ {
		c := clause.Child(i)
		switch {
		case p.text(c) == "virtual":
			virtual = true
		case !c.IsNamed(), c.Type() == "access_specifier", c.Type() == "comment":
		default:
			out = append(out, ast.Base{Type: p.typeOf(c, scope, b), Virtual: virtual})
			virtual = false
		}
	}
	return out
}

// withQualifiers applies the const and volatile qualifiers that are direct
// children of a declaration node.
func (p *unitParser) withQualifiers(n *sitter.Node, t *ast.Type) *ast.Type {
	if n == nil {
		return t
	}
	constQ, volatileQ := false, false
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "type_qualifier" {
			continue
		}
		switch p.text(c) {
		case "const":
			constQ = true
		case "volatile":
			volatileQ = true
		}
	}
	if !constQ && !volatileQ {
		return t
	}
	q := *t
	q.Const = q.Const || constQ
	q.Volatile = q.Volatile || volatileQ
	return &q
}

// applyDeclarator wraps t in the pointer, reference and array layers of
// declarator d. It returns the declared name and, when d declares a
// function, the function declarator; t is then the return type.
func (p *unitParser) applyDeclarator(t *ast.Type, d *sitter.Node, scope string, b *bindings) (*ast.Type, *sitter.Node, *sitter.Node) {
	for d != nil {
		switch d.Type() {
		case "pointer_declarator", "abstract_pointer_declarator":
			pt := ast.PointerTo(t)
			pt.Const = p.withQualifiers(d, pt).Const
			t = pt
			d = d.ChildByFieldName("declarator")
		case "reference_declarator", "abstract_reference_declarator":
			if strings.HasPrefix(p.text(d), "&&") {
				t = &ast.Type{Class: ast.TypeRValueReference, Elem: t}
			} else {
				t = ast.RefTo(t)
			}
			d = lastNamedChild(d)
		case "array_declarator", "abstract_array_declarator":
			n, ok := p.eval(d.ChildByFieldName("size"), scope, b)
			if ok && n >= 0 {
				t = ast.ArrayOf(t, uint64(n))
			} else {
				t = other("incomplete array")
			}
			d = d.ChildByFieldName("declarator")
		case "function_declarator", "abstract_function_declarator":
			inner := d.ChildByFieldName("declarator")
			if inner == nil || isName(inner.Type()) {
				return t, inner, d
			}
			t = other("function pointer")
			d = inner
		case "parenthesized_declarator", "attributed_declarator":
			d = d.NamedChild(0)
		case "init_declarator":
			d = d.ChildByFieldName("declarator")
		default:
			return t, d, nil
		}
	}
	return t, nil, nil
}

func isName(t string) bool {
	switch t {
	case "identifier", "field_identifier", "type_identifier", "qualified_identifier", "operator_name", "destructor_name", "template_function":
		return true
	}
	return false
}
