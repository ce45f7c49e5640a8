package cppfront

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/reflectdb/internal/ast"
)

var pureVirtual = regexp.MustCompile(`=\s*0\s*;?\s*$`)

// declList converts the declarations of a namespace-level list.
func (p *unitParser) declList(list *sitter.Node, scope string) []*ast.Decl {
	var out []*ast.Decl
	for i := 0; i < int(list.NamedChildCount()); i++ {
		out = append(out, p.declNode(list.NamedChild(i), scope)...)
	}
	return out
}

func (p *unitParser) declNode(n *sitter.Node, scope string) []*ast.Decl {
	switch n.Type() {
	case "namespace_definition":
		return p.namespaceDecl(n, scope)
	case "linkage_specification":
		body := n.ChildByFieldName("body")
		if body == nil {
			return nil
		}
		if body.Type() == "declaration_list" {
			return p.declList(body, scope)
		}
		return p.declNode(body, scope)
	case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "preproc_elifdef":
		return p.declList(n, scope)
	case "class_specifier", "struct_specifier", "union_specifier":
		return some(p.recordDecl(n, scope, true))
	case "enum_specifier":
		return some(p.enumDecl(n, scope))
	case "template_declaration":
		return some(p.templateDecl(n, scope))
	case "function_definition":
		t := p.withQualifiers(n, p.typeOf(n.ChildByFieldName("type"), scope, nil))
		rt, nameNode, fn := p.applyDeclarator(t, n.ChildByFieldName("declarator"), scope, nil)
		if fn == nil || n.ChildByFieldName("type") == nil {
			p.skip(n)
			return nil
		}
		return some(p.functionDecl(n, rt, nameNode, fn, scope, false))
	case "declaration", "type_definition":
		return p.declarationDecls(n, scope)
	}
	p.skip(n)
	return nil
}

func some(d *ast.Decl) []*ast.Decl {
	if d == nil {
		return nil
	}
	return []*ast.Decl{d}
}

func (p *unitParser) namespaceDecl(n *sitter.Node, scope string) []*ast.Decl {
	body := n.ChildByFieldName("body")
	parts := p.namespaceParts(n)
	if len(parts) == 0 {
		// Members of an anonymous namespace belong to the enclosing one.
		if body == nil {
			return nil
		}
		return p.declList(body, scope)
	}

	nameNode := n.ChildByFieldName("name")
	// Namespaces cannot carry annotations.
	p.annotations(nameNode.StartByte())

	var outer, cur *ast.Decl
	q := scope
	for _, part := range parts {
		q = qualify(q, part)
		d := &ast.Decl{Kind: ast.DeclNamespace, Name: part, QualifiedName: q, Loc: p.loc(nameNode)}
		if cur == nil {
			outer = d
		} else {
			cur.Members = append(cur.Members, d)
		}
		cur = d
	}
	if body != nil {
		cur.Members = append(cur.Members, p.declList(body, q)...)
	}
	return []*ast.Decl{outer}
}

func tagOf(n *sitter.Node) ast.TagKind {
	switch n.Type() {
	case "class_specifier":
		return ast.TagClass
	case "union_specifier":
		return ast.TagUnion
	}
	return ast.TagStruct
}

// recordDecl converts a named record specifier. freeStanding is set when
// the specifier is a declaration of its own rather than part of a
// variable or member declaration.
func (p *unitParser) recordDecl(n *sitter.Node, scope string, freeStanding bool) *ast.Decl {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil || nameNode.Type() == "template_type" {
		p.skip(n)
		return nil
	}
	anns := p.annotations(nameNode.StartByte())
	q := p.declName(nameNode, scope)
	body := n.ChildByFieldName("body")
	d := &ast.Decl{
		Kind:          ast.DeclRecord,
		Name:          leafName(q),
		QualifiedName: q,
		Loc:           p.loc(nameNode),
		Annotations:   anns,
		Tag:           tagOf(n),
		Defined:       body != nil,
		FreeStanding:  freeStanding,
		Invalid:       nameNode.HasError(),
	}
	if body == nil {
		return d
	}

	d.Bases = p.bases(n, parentScope(q), nil)
	var rl *recordLayout
	if s := p.syms[q]; s != nil && s.kind == symRecord && s.node.StartByte() == n.StartByte() {
		rl = p.recordLayout(s)
	} else {
		rl = p.layoutBody(n, parentScope(q), q, nil)
	}
	d.Layout = &ast.RecordLayout{Size: rl.size, Offsets: make(map[*ast.Decl]uint64)}
	d.Members = p.memberDecls(body, q, d.Layout, rl)
	return d
}

// anonymousDecl converts an unnamed struct or union member. Its members
// belong to the enclosing record.
func (p *unitParser) anonymousDecl(n *sitter.Node, scope string, outer *ast.RecordLayout, outerRL *recordLayout) *ast.Decl {
	rl := p.layoutBody(n, scope, scope, nil)
	d := &ast.Decl{
		Kind:      ast.DeclRecord,
		Loc:       p.loc(n),
		Tag:       tagOf(n),
		Defined:   true,
		Anonymous: true,
		Layout:    &ast.RecordLayout{Size: rl.size, Offsets: make(map[*ast.Decl]uint64)},
	}
	outer.Offsets[d] = outerRL.offsets[n.StartByte()]
	d.Members = p.memberDecls(n.ChildByFieldName("body"), scope, d.Layout, rl)
	return d
}

func (p *unitParser) memberDecls(body *sitter.Node, scope string, layout *ast.RecordLayout, rl *recordLayout) []*ast.Decl {
	var out []*ast.Decl
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "preproc_elifdef":
			out = append(out, p.memberDecls(c, scope, layout, rl)...)
		case "field_declaration":
			out = append(out, p.fieldDecls(c, scope, layout, rl)...)
		case "function_definition":
			typeNode := c.ChildByFieldName("type")
			if typeNode == nil {
				// Constructors, destructors and conversions.
				p.skip(c)
				continue
			}
			t := p.withQualifiers(c, p.typeOf(typeNode, scope, nil))
			rt, nameNode, fn := p.applyDeclarator(t, c.ChildByFieldName("declarator"), scope, nil)
			if fn == nil || nameNode == nil {
				p.skip(c)
				continue
			}
			out = append(out, some(p.functionDecl(c, rt, nameNode, fn, scope, true))...)
		default:
			p.skip(c)
		}
	}
	return out
}

// fieldDecls converts a member declaration: nested types, data members
// and method declarations.
func (p *unitParser) fieldDecls(n *sitter.Node, scope string, layout *ast.RecordLayout, rl *recordLayout) []*ast.Decl {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil || p.hasToken(n, "typedef") {
		p.skip(n)
		return nil
	}
	decls := declarators(n, typeNode)

	var out []*ast.Decl
	switch typeNode.Type() {
	case "class_specifier", "struct_specifier", "union_specifier":
		switch {
		case isAnonymousRecord(typeNode) && len(decls) == 0:
			return []*ast.Decl{p.anonymousDecl(typeNode, scope, layout, rl)}
		case typeNode.ChildByFieldName("name") != nil && (len(decls) == 0 || typeNode.ChildByFieldName("body") != nil):
			out = append(out, some(p.recordDecl(typeNode, scope, len(decls) == 0))...)
		}
	case "enum_specifier":
		if typeNode.ChildByFieldName("body") != nil || len(decls) == 0 {
			out = append(out, some(p.enumDecl(typeNode, scope))...)
		}
	}
	if len(decls) == 0 {
		p.skip(n)
		return out
	}

	base := p.withQualifiers(n, p.typeOf(typeNode, scope, nil))
	static := p.hasStorage(n, "static")
	for _, d := range decls {
		t, nameNode, fn := p.applyDeclarator(base, d, scope, nil)
		if nameNode == nil {
			continue
		}
		if fn != nil {
			out = append(out, some(p.functionDecl(n, t, nameNode, fn, scope, true))...)
			continue
		}
		anns := p.annotations(nameNode.StartByte())
		if static {
			continue
		}
		fd := &ast.Decl{
			Kind:          ast.DeclField,
			Name:          p.name(nameNode),
			QualifiedName: qualify(scope, p.name(nameNode)),
			Loc:           p.loc(nameNode),
			Annotations:   anns,
			Type:          t,
		}
		layout.Offsets[fd] = rl.offsets[nameNode.StartByte()]
		out = append(out, fd)
	}
	p.skip(n)
	return out
}

// declarationDecls converts a namespace-level declaration: types it
// defines and the functions it declares. Variables are not reflected.
func (p *unitParser) declarationDecls(n *sitter.Node, scope string) []*ast.Decl {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		p.skip(n)
		return nil
	}
	decls := declarators(n, typeNode)
	typedef := n.Type() == "type_definition"

	var out []*ast.Decl
	switch typeNode.Type() {
	case "class_specifier", "struct_specifier", "union_specifier":
		if typeNode.ChildByFieldName("body") != nil || len(decls) == 0 {
			out = append(out, some(p.recordDecl(typeNode, scope, len(decls) == 0))...)
		}
	case "enum_specifier":
		if typeNode.ChildByFieldName("body") != nil || len(decls) == 0 {
			out = append(out, some(p.enumDecl(typeNode, scope))...)
		}
	}
	if typedef {
		p.skip(n)
		return out
	}

	base := p.withQualifiers(n, p.typeOf(typeNode, scope, nil))
	for _, d := range decls {
		t, nameNode, fn := p.applyDeclarator(base, d, scope, nil)
		if fn == nil || nameNode == nil {
			continue
		}
		out = append(out, some(p.functionDecl(n, t, nameNode, fn, scope, false))...)
	}
	p.skip(n)
	return out
}

func (p *unitParser) enumDecl(n *sitter.Node, scope string) *ast.Decl {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		// Anonymous enums are not reflected but their constants can size
		// arrays.
		p.enumerators(n, scope, scope, true)
		p.skip(n)
		return nil
	}
	anns := p.annotations(nameNode.StartByte())
	q := p.declName(nameNode, scope)
	d := &ast.Decl{
		Kind:          ast.DeclEnum,
		Name:          leafName(q),
		QualifiedName: q,
		Loc:           p.loc(nameNode),
		Annotations:   anns,
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.Child(i).Type() {
		case "class":
			d.Scope = ast.EnumScopedClass
		case "struct":
			d.Scope = ast.EnumScopedStruct
		}
	}
	d.Enumerators = p.enumerators(n, q, parentScope(q), d.Scope == ast.EnumUnscoped)
	p.skip(n)
	return d
}

// enumerators evaluates the constants of an enum specifier and records
// them for later constant expressions. Unscoped constants are also
// visible in the enclosing scope.
func (p *unitParser) enumerators(n *sitter.Node, q, outer string, unscoped bool) []ast.Enumerator {
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	var (
		out  []ast.Enumerator
		next int64
	)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c.Type() != "enumerator" {
			continue
		}
		nm := c.ChildByFieldName("name")
		if nm == nil {
			continue
		}
		v := next
		if val := c.ChildByFieldName("value"); val != nil {
			if x, ok := p.eval(val, q, nil); ok {
				v = x
			}
		}
		name := p.name(nm)
		p.consts[qualify(q, name)] = v
		if unscoped {
			p.consts[qualify(outer, name)] = v
		}
		out = append(out, ast.Enumerator{Name: name, Value: v, Loc: p.loc(nm)})
		next = v + 1
	}
	return out
}

func (p *unitParser) templateDecl(n *sitter.Node, scope string) *ast.Decl {
	spec := recordChild(n)
	if spec == nil {
		p.skip(n)
		return nil
	}
	nameNode := spec.ChildByFieldName("name")
	if nameNode == nil || nameNode.Type() != "type_identifier" {
		p.skip(n)
		return nil
	}
	anns := p.annotations(nameNode.StartByte())
	name := p.name(nameNode)
	d := &ast.Decl{
		Kind:          ast.DeclClassTemplate,
		Name:          name,
		QualifiedName: qualify(scope, name),
		Loc:           p.loc(nameNode),
		Annotations:   anns,
		Tag:           tagOf(spec),
		Defined:       spec.ChildByFieldName("body") != nil,
	}
	for _, tp := range p.templateParams(n.ChildByFieldName("parameters")) {
		d.TemplateParams = append(d.TemplateParams, tp.name)
	}
	// Members of a template are only reflected through its instantiations.
	p.skip(n)
	return d
}

// functionDecl converts a function or method declaration. n is the
// enclosing declaration, result the return type and fn the function
// declarator.
func (p *unitParser) functionDecl(n *sitter.Node, result *ast.Type, nameNode, fn *sitter.Node, scope string, method bool) *ast.Decl {
	anns := p.annotations(nameNode.StartByte())
	if nameNode.Type() == "destructor_name" {
		return nil
	}
	written := p.name(nameNode)
	name := written
	q := qualify(scope, written)
	if nameNode.Type() == "qualified_identifier" {
		// An out-of-line member definition repeats a declaration made in
		// the class body.
		prefix := parentScope(written)
		if s := p.lookup(prefix, scope); s != nil && s.kind == symRecord {
			return nil
		} else if s != nil {
			q = qualify(s.name, leafName(written))
		} else {
			q = strings.TrimPrefix(written, "::")
		}
		name = leafName(written)
	}

	kind := ast.DeclFunction
	if method {
		kind = ast.DeclMethod
	}
	d := &ast.Decl{
		Kind:          kind,
		Name:          name,
		QualifiedName: q,
		Loc:           p.loc(nameNode),
		Annotations:   anns,
		Params:        p.params(fn.ChildByFieldName("parameters"), scope),
		Result:        result,
		Static:        p.hasStorage(n, "static"),
		Operator:      nameNode.Type() == "operator_name" || strings.HasPrefix(name, "operator"),
	}
	if method {
		d.ConstMethod = p.constMethod(fn)
		d.Pure = pureVirtual.MatchString(p.text(n))
	}

	var sig strings.Builder
	sig.WriteString(q)
	sig.WriteByte('(')
	for i, prm := range d.Params {
		if i > 0 {
			sig.WriteByte(',')
		}
		sig.WriteString(prm.Type.Spelling())
	}
	sig.WriteByte(')')
	if d.ConstMethod {
		sig.WriteString("const")
	}
	key := sig.String()
	d.Redeclaration = p.seenFuncs[key]
	p.seenFuncs[key] = true
	return d
}

func (p *unitParser) constMethod(fn *sitter.Node) bool {
	for i := 0; i < int(fn.NamedChildCount()); i++ {
		c := fn.NamedChild(i)
		if c.Type() == "type_qualifier" && p.text(c) == "const" {
			return true
		}
	}
	return false
}

func (p *unitParser) params(list *sitter.Node, scope string) []ast.Param {
	if list == nil {
		return nil
	}
	var out []ast.Param
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		switch c.Type() {
		case "parameter_declaration", "optional_parameter_declaration":
		default:
			continue
		}
		t := p.withQualifiers(c, p.typeOf(c.ChildByFieldName("type"), scope, nil))
		var name string
		if d := c.ChildByFieldName("declarator"); d != nil {
			var nameNode, fn *sitter.Node
			t, nameNode, fn = p.applyDeclarator(t, d, scope, nil)
			if fn != nil {
				t = other("function")
			}
			name = p.name(nameNode)
		} else if t.Class == ast.TypeBuiltin && t.Name == "void" {
			// f(void)
			continue
		}
		out = append(out, ast.Param{Name: name, Type: t})
	}
	return out
}
