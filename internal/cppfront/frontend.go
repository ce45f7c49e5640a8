// Package cppfront is a C++ frontend built on tree-sitter. It produces the
// declaration tree the extraction engine walks.
//
// It is not a compiler. Includes are not followed, name lookup is lexical
// within the unit, and record layouts follow the LP64 Itanium rules for
// the common cases only: vtable pointer, base and member placement,
// alignment padding, unions and empty bases. Types defined outside the unit
// have no known size.
package cppfront

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/ast"
)

// maxInstantiationDepth bounds nested template instantiation.
const maxInstantiationDepth = 32

// Option configures a Frontend.
type Option func(*Frontend)

// WithLogger sets the logger for parse warnings and tracing.
func WithLogger(l *zap.Logger) Option {
	return func(f *Frontend) {
		if l != nil {
			f.logger = l
		}
	}
}

// Frontend parses C++ source into ast units.
type Frontend struct {
	logger *zap.Logger
}

// Compile-time check: *Frontend satisfies ast.Frontend.
var _ ast.Frontend = (*Frontend)(nil)

// New creates a Frontend.
func New(opts ...Option) *Frontend {
	f := &Frontend{logger: zap.NewNop()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Parse parses one translation unit. Reflection macros are read before
// parsing: clcpp_attr and annotate attributes become declaration
// annotations; clcpp_reflect and clcpp_reflect_part become unit specs.
func (f *Frontend) Parse(ctx context.Context, path string, src []byte) (*ast.Unit, error) {
	clean, dirs := prescan(src)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(language())

	tree, err := parser.ParseCtx(ctx, nil, clean)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		f.logger.Debug("syntax errors in unit; erroneous regions are skipped", zap.String("path", path))
	}

	specs := ast.NewSpecTable()
	var anns []directive
	for _, d := range dirs {
		switch d.kind {
		case directiveReflect:
			specs.Set(d.text, ast.SpecFull)
		case directiveReflectPart:
			specs.Set(d.text, ast.SpecPartial)
		default:
			anns = append(anns, d)
		}
	}

	p := newUnitParser(path, clean, anns, f.logger)
	p.collect(root, "")
	decls := p.declList(root, "")

	f.logger.Debug("parsed unit",
		zap.String("path", path),
		zap.Int("decls", len(decls)),
		zap.Int("specs", specs.Len()),
	)
	return &ast.Unit{Path: path, Decls: decls, Specs: specs}, nil
}

type symbolKind int

const (
	symNamespace symbolKind = iota
	symRecord
	symEnum
	symTemplate
	symTypedef
)

// symbol is a type-introducing declaration found in the unit.
type symbol struct {
	kind  symbolKind
	name  string
	scope string
	// node is the specifier for records, enums and templates, and the
	// aliased type for typedefs.
	node *sitter.Node
	// decl is the declarator of a typedef, nil for alias declarations.
	decl   *sitter.Node
	params []templateParam
	loc    ast.Location
}

type templateParam struct {
	name   string
	isType bool
}

// instance is a memoized template instantiation.
type instance struct {
	spec   *ast.Specialization
	layout typeLayout
}

// unitParser holds the state of one Parse.
type unitParser struct {
	path   string
	src    []byte
	logger *zap.Logger

	anns []directive
	next int

	syms      map[string]*symbol
	layouts   map[string]*recordLayout
	computing map[string]bool
	resolving map[*symbol]bool
	instances map[string]*instance
	consts    map[string]int64
	seenFuncs map[string]bool
	depth     int
}

func newUnitParser(path string, src []byte, anns []directive, logger *zap.Logger) *unitParser {
	return &unitParser{
		path:      path,
		src:       src,
		logger:    logger,
		anns:      anns,
		syms:      make(map[string]*symbol),
		layouts:   make(map[string]*recordLayout),
		computing: make(map[string]bool),
		resolving: make(map[*symbol]bool),
		instances: make(map[string]*instance),
		consts:    make(map[string]int64),
		seenFuncs: make(map[string]bool),
	}
}

func (p *unitParser) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(p.src)
}

// name returns the text of n with whitespace removed.
func (p *unitParser) name(n *sitter.Node) string {
	return compact(p.text(n))
}

func (p *unitParser) loc(n *sitter.Node) ast.Location {
	return ast.Location{File: p.path, Line: int(n.StartPoint().Row) + 1}
}

// annotations takes the pending annotations that start before offset.
func (p *unitParser) annotations(before uint32) []ast.Annotation {
	var out []ast.Annotation
	for p.next < len(p.anns) && p.anns[p.next].offset < int(before) {
		a := p.anns[p.next]
		out = append(out, ast.Annotation{Text: a.text, Loc: ast.Location{File: p.path, Line: a.line}})
		p.next++
	}
	return out
}

// skip drops the annotations inside a node that is not reflected.
func (p *unitParser) skip(n *sitter.Node) {
	for _, a := range p.annotations(n.EndByte()) {
		p.logger.Debug("annotation on unsupported declaration dropped",
			zap.String("text", a.Text),
			zap.String("file", a.Loc.File),
			zap.Int("line", a.Loc.Line),
		)
	}
}

// collect registers the namespaces, records, enums, class templates and
// typedefs of a declaration list.
func (p *unitParser) collect(list *sitter.Node, scope string) {
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p.collectNode(list.NamedChild(i), scope)
	}
}

func (p *unitParser) collectNode(n *sitter.Node, scope string) {
	switch n.Type() {
	case "namespace_definition":
		inner := scope
		for _, part := range p.namespaceParts(n) {
			inner = qualify(inner, part)
			p.register(&symbol{kind: symNamespace, name: inner, scope: parentScope(inner), node: n, loc: p.loc(n)})
		}
		if body := n.ChildByFieldName("body"); body != nil {
			p.collect(body, inner)
		}
	case "linkage_specification":
		if body := n.ChildByFieldName("body"); body != nil {
			if body.Type() == "declaration_list" {
				p.collect(body, scope)
			} else {
				p.collectNode(body, scope)
			}
		}
	case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "preproc_elifdef", "declaration_list":
		p.collect(n, scope)
	case "class_specifier", "struct_specifier", "union_specifier":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() == "template_type" {
			return
		}
		q := p.declName(nameNode, scope)
		p.register(&symbol{kind: symRecord, name: q, scope: parentScope(q), node: n, loc: p.loc(nameNode)})
		if body := n.ChildByFieldName("body"); body != nil {
			p.collect(body, q)
		}
	case "enum_specifier":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			q := p.declName(nameNode, scope)
			p.register(&symbol{kind: symEnum, name: q, scope: parentScope(q), node: n, loc: p.loc(nameNode)})
		}
	case "template_declaration":
		spec := recordChild(n)
		if spec == nil {
			return
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "type_identifier" {
			return
		}
		p.register(&symbol{
			kind:   symTemplate,
			name:   qualify(scope, p.name(nameNode)),
			scope:  scope,
			node:   spec,
			params: p.templateParams(n.ChildByFieldName("parameters")),
			loc:    p.loc(nameNode),
		})
	case "type_definition":
		typeNode := n.ChildByFieldName("type")
		if typeNode != nil {
			p.collectNode(typeNode, scope)
		}
		for _, d := range declarators(n, typeNode) {
			if nm := declaratorName(d); nm != nil {
				p.register(&symbol{kind: symTypedef, name: qualify(scope, p.name(nm)), scope: scope, node: typeNode, decl: d, loc: p.loc(nm)})
			}
		}
	case "alias_declaration":
		nameNode := n.ChildByFieldName("name")
		typeNode := n.ChildByFieldName("type")
		if nameNode != nil && typeNode != nil {
			p.register(&symbol{kind: symTypedef, name: qualify(scope, p.name(nameNode)), scope: scope, node: typeNode, loc: p.loc(nameNode)})
		}
	case "declaration", "field_declaration":
		if typeNode := n.ChildByFieldName("type"); typeNode != nil {
			p.collectNode(typeNode, scope)
		}
	}
}

// register adds s, preferring definitions over earlier declarations.
func (p *unitParser) register(s *symbol) {
	cur, ok := p.syms[s.name]
	if !ok {
		p.syms[s.name] = s
		return
	}
	if cur.kind != s.kind {
		return
	}
	if cur.node != nil && cur.node.ChildByFieldName("body") == nil && s.node != nil && s.node.ChildByFieldName("body") != nil {
		p.syms[s.name] = s
	}
}

// lookup resolves name lexically from scope outwards.
func (p *unitParser) lookup(name, scope string) *symbol {
	if strings.HasPrefix(name, "::") {
		return p.syms[name[2:]]
	}
	for {
		if s, ok := p.syms[qualify(scope, name)]; ok {
			return s
		}
		if scope == "" {
			return nil
		}
		scope = parentScope(scope)
	}
}

// declName qualifies the name node of a declaration. Out-of-line
// definitions such as "class ns::Foo {}" resolve to their earlier
// declaration.
func (p *unitParser) declName(nameNode *sitter.Node, scope string) string {
	text := p.name(nameNode)
	if nameNode.Type() == "qualified_identifier" {
		if s := p.lookup(text, scope); s != nil {
			return s.name
		}
	}
	return qualify(scope, strings.TrimPrefix(text, "::"))
}

func (p *unitParser) namespaceParts(n *sitter.Node) []string {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(p.name(nameNode), "::") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func (p *unitParser) templateParams(list *sitter.Node) []templateParam {
	if list == nil {
		return nil
	}
	var out []templateParam
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		tp := templateParam{isType: strings.Contains(c.Type(), "type_parameter")}
		switch {
		case c.ChildByFieldName("name") != nil:
			tp.name = p.name(c.ChildByFieldName("name"))
		case c.ChildByFieldName("declarator") != nil:
			tp.name = p.name(declaratorName(c.ChildByFieldName("declarator")))
		default:
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if t := c.NamedChild(j).Type(); t == "type_identifier" || t == "identifier" {
					tp.name = p.name(c.NamedChild(j))
				}
			}
		}
		out = append(out, tp)
	}
	return out
}

// recordChild returns the class, struct or union specifier declared by a
// template declaration.
func recordChild(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch c := n.NamedChild(i); c.Type() {
		case "class_specifier", "struct_specifier", "union_specifier":
			return c
		}
	}
	return nil
}

func isDeclarator(t string) bool {
	switch t {
	case "identifier", "field_identifier", "type_identifier", "qualified_identifier",
		"operator_name", "destructor_name",
		"pointer_declarator", "reference_declarator", "array_declarator", "function_declarator",
		"parenthesized_declarator", "init_declarator", "attributed_declarator",
		"abstract_pointer_declarator", "abstract_reference_declarator",
		"abstract_array_declarator", "abstract_function_declarator":
		return true
	}
	return false
}

// declarators returns the declarators of a declaration node, excluding its
// type specifier.
func declarators(n, typeNode *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if typeNode != nil && c.StartByte() == typeNode.StartByte() && c.EndByte() == typeNode.EndByte() {
			continue
		}
		if isDeclarator(c.Type()) {
			out = append(out, c)
		}
	}
	return out
}

// declaratorName returns the identifier a declarator declares.
func declaratorName(d *sitter.Node) *sitter.Node {
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "type_identifier", "qualified_identifier", "operator_name", "destructor_name":
			return d
		case "parenthesized_declarator", "attributed_declarator":
			d = d.NamedChild(0)
		case "reference_declarator":
			d = lastNamedChild(d)
		default:
			d = d.ChildByFieldName("declarator")
		}
	}
	return nil
}

func lastNamedChild(n *sitter.Node) *sitter.Node {
	if n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(int(n.NamedChildCount()) - 1)
}

// hasToken reports whether a direct child of n spells word.
func (p *unitParser) hasToken(n *sitter.Node, word string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == word || p.text(c) == word {
			return true
		}
	}
	return false
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "::" + name
}

func parentScope(s string) string {
	if i := strings.LastIndex(s, "::"); i >= 0 {
		return s[:i]
	}
	return ""
}

func leafName(q string) string {
	if i := strings.LastIndex(q, "::"); i >= 0 {
		return q[i+2:]
	}
	return q
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
