package cppfront

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/reflectdb/internal/ast"
	"github.com/jward/reflectdb/internal/database"
)

const pointerSize = 8

// typeLayout is the size and alignment of a type in bytes.
type typeLayout struct {
	size  uint64
	align uint64
	// empty records have no data members, no vtable and only empty bases.
	empty bool
	// dynamic records carry a vtable pointer.
	dynamic bool
}

// recordLayout is a record's layout plus its member offsets, keyed by the
// start byte of each member's name or, for anonymous records, of their
// specifier.
type recordLayout struct {
	typeLayout
	offsets map[uint32]uint64
}

func alignUp(off, align uint64) uint64 {
	if align <= 1 {
		return off
	}
	return (off + align - 1) / align * align
}

// layoutOf returns the layout of t. Types with unknown layout have size 0.
func (p *unitParser) layoutOf(t *ast.Type) typeLayout {
	if t == nil {
		return typeLayout{align: 1}
	}
	switch t.Class {
	case ast.TypeBuiltin:
		size, ok := database.BuiltinSize(t.Name)
		if !ok || size == 0 {
			return typeLayout{align: 1}
		}
		return typeLayout{size: uint64(size), align: uint64(size)}
	case ast.TypePointer, ast.TypeLValueReference, ast.TypeRValueReference:
		return typeLayout{size: pointerSize, align: pointerSize}
	case ast.TypeConstantArray:
		e := p.layoutOf(t.Elem)
		return typeLayout{size: e.size * t.ArrayLen, align: e.align}
	case ast.TypeTypedef, ast.TypeElaborated:
		return p.layoutOf(t.Elem)
	case ast.TypeEnum:
		return p.enumLayout(t.Name)
	case ast.TypeRecord:
		if s := p.syms[t.Name]; s != nil && s.kind == symRecord {
			return p.recordLayout(s).typeLayout
		}
	case ast.TypeTemplateSpecialization:
		if in, ok := p.instances[t.Name]; ok {
			return in.layout
		}
	}
	return typeLayout{align: 1}
}

func (p *unitParser) enumLayout(name string) typeLayout {
	s := p.syms[name]
	if s != nil && s.kind == symEnum {
		if base := s.node.ChildByFieldName("base"); base != nil {
			if l := p.layoutOf(p.typeOf(base, s.scope, nil)); l.size > 0 {
				return l
			}
		}
	}
	return typeLayout{size: 4, align: 4}
}

// recordLayout returns the memoized layout of a record symbol. A record
// that contains itself by value gets a zero layout for the inner use.
func (p *unitParser) recordLayout(s *symbol) *recordLayout {
	if rl, ok := p.layouts[s.name]; ok {
		return rl
	}
	if p.computing[s.name] {
		return &recordLayout{typeLayout: typeLayout{align: 1}}
	}
	p.computing[s.name] = true
	rl := p.layoutBody(s.node, s.scope, s.name, nil)
	delete(p.computing, s.name)
	p.layouts[s.name] = rl
	return rl
}

// layoutBody lays out a record specifier. scope resolves base names and
// inner resolves member types.
func (p *unitParser) layoutBody(spec *sitter.Node, scope, inner string, b *bindings) *recordLayout {
	rl := &recordLayout{typeLayout: typeLayout{align: 1}, offsets: make(map[uint32]uint64)}
	body := spec.ChildByFieldName("body")
	if body == nil {
		return rl
	}

	var off uint64
	var baseLayouts []typeLayout
	baseDynamic := false
	for _, base := range p.bases(spec, scope, b) {
		l := p.layoutOf(base.Type)
		baseLayouts = append(baseLayouts, l)
		baseDynamic = baseDynamic || l.dynamic
	}
	if p.declaresVirtual(body) && !baseDynamic {
		off = pointerSize
		rl.align = pointerSize
	}
	rl.dynamic = baseDynamic || off > 0

	allEmpty := true
	for _, l := range baseLayouts {
		if l.empty {
			// Empty bases share offset 0.
			continue
		}
		allEmpty = false
		off = alignUp(off, l.align)
		off += l.size
		rl.align = max(rl.align, l.align)
	}

	ml := memberLayout{p: p, rl: rl, off: off, union: spec.Type() == "union_specifier", scope: inner, b: b}
	ml.members(body)

	size := alignUp(ml.end(), rl.align)
	if size == 0 {
		size = 1
		rl.empty = allEmpty && !rl.dynamic && !ml.placed
	}
	rl.size = size
	return rl
}

// memberLayout places the data members of one record body.
type memberLayout struct {
	p      *unitParser
	rl     *recordLayout
	off    uint64
	top    uint64
	union  bool
	placed bool
	scope  string
	b      *bindings
}

func (m *memberLayout) place(key uint32, l typeLayout) {
	m.placed = true
	m.rl.align = max(m.rl.align, l.align)
	if m.union {
		m.rl.offsets[key] = m.off
		m.top = max(m.top, m.off+l.size)
		return
	}
	m.off = alignUp(m.off, l.align)
	m.rl.offsets[key] = m.off
	m.off += l.size
}

func (m *memberLayout) end() uint64 {
	if m.union {
		return max(m.top, m.off)
	}
	return m.off
}

func (m *memberLayout) members(list *sitter.Node) {
	p := m.p
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		switch c.Type() {
		case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "preproc_elifdef":
			m.members(c)
		case "field_declaration":
			if p.hasStorage(c, "static") || p.hasToken(c, "typedef") {
				continue
			}
			typeNode := c.ChildByFieldName("type")
			if typeNode == nil {
				continue
			}
			decls := declarators(c, typeNode)
			if len(decls) == 0 {
				if isAnonymousRecord(typeNode) {
					inner := p.layoutBody(typeNode, m.scope, m.scope, m.b)
					m.place(typeNode.StartByte(), inner.typeLayout)
				}
				continue
			}
			base := p.withQualifiers(c, p.typeOf(typeNode, m.scope, m.b))
			for _, d := range decls {
				t, nameNode, fn := p.applyDeclarator(base, d, m.scope, m.b)
				if fn != nil || nameNode == nil {
					continue
				}
				m.place(nameNode.StartByte(), p.layoutOf(t))
			}
		}
	}
}

// declaresVirtual reports whether a record body declares a virtual member
// function.
func (p *unitParser) declaresVirtual(list *sitter.Node) bool {
	for i := 0; i < int(list.NamedChildCount()); i++ {
		c := list.NamedChild(i)
		switch c.Type() {
		case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "preproc_elifdef":
			if p.declaresVirtual(c) {
				return true
			}
		case "field_declaration", "function_definition", "declaration":
			if p.hasToken(c, "virtual") {
				return true
			}
		}
	}
	return false
}

func (p *unitParser) hasStorage(n *sitter.Node, class string) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "storage_class_specifier" && p.text(c) == class {
			return true
		}
	}
	return false
}

func isAnonymousRecord(n *sitter.Node) bool {
	switch n.Type() {
	case "struct_specifier", "union_specifier", "class_specifier":
		return n.ChildByFieldName("name") == nil && n.ChildByFieldName("body") != nil
	}
	return false
}
