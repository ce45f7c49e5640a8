package ast

import "strings"

// TypeClass classifies a type node.
type TypeClass int

const (
	TypeOther TypeClass = iota
	TypeBuiltin
	TypeEnum
	TypeRecord
	TypeElaborated
	TypeTypedef
	TypeTemplateSpecialization
	TypePointer
	TypeLValueReference
	TypeRValueReference
	TypeConstantArray
)

var typeClassNames = [...]string{
	TypeOther:                  "other",
	TypeBuiltin:                "builtin",
	TypeEnum:                   "enum",
	TypeRecord:                 "record",
	TypeElaborated:             "elaborated",
	TypeTypedef:                "typedef",
	TypeTemplateSpecialization: "template_specialization",
	TypePointer:                "pointer",
	TypeLValueReference:        "lvalue_reference",
	TypeRValueReference:        "rvalue_reference",
	TypeConstantArray:          "constant_array",
}

func (c TypeClass) String() string {
	if int(c) < len(typeClassNames) {
		return typeClassNames[c]
	}
	return "unknown"
}

// Type is a node in a type expression. Pointer, reference, array, typedef
// and elaborated nodes wrap Elem.
type Type struct {
	Class    TypeClass
	Name     string
	Const    bool
	Volatile bool
	Elem     *Type
	ArrayLen uint64
	// Spec is set for records and template specializations that are
	// instantiations of a class template.
	Spec *Specialization
}

// ArgKind classifies a template argument.
type ArgKind int

const (
	ArgType ArgKind = iota
	ArgIntegral
	ArgOther
)

// TemplateArg is one argument of a specialization.
type TemplateArg struct {
	Kind  ArgKind
	Type  *Type
	Value int64
}

// Specialization is a class template instantiation.
type Specialization struct {
	Template string
	Args     []TemplateArg
	Bases    []Base
	Size     uint64
	Loc      Location
	// Declared is false when the instantiation has not been formed by the
	// frontend, e.g. a dependent use inside another template.
	Declared bool
}

// Spelling renders t as C++ source the way a compiler prints it.
func (t *Type) Spelling() string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	t.spell(&b)
	return b.String()
}

func (t *Type) spell(b *strings.Builder) {
	switch t.Class {
	case TypePointer, TypeLValueReference, TypeRValueReference:
		t.Elem.spell(b)
		switch t.Class {
		case TypePointer:
			b.WriteString(" *")
		case TypeLValueReference:
			b.WriteString(" &")
		default:
			b.WriteString(" &&")
		}
		if t.Const {
			b.WriteString(" const")
		}
	case TypeConstantArray:
		t.Elem.spell(b)
		b.WriteString("[]")
	default:
		if t.Const {
			b.WriteString("const ")
		}
		if t.Volatile {
			b.WriteString("volatile ")
		}
		b.WriteString(t.Name)
	}
}

// Builtin returns a fundamental type.
func Builtin(name string) *Type { return &Type{Class: TypeBuiltin, Name: name} }

// Record returns a class or struct type.
func Record(name string) *Type { return &Type{Class: TypeRecord, Name: name} }

// EnumType returns an enum type.
func EnumType(name string) *Type { return &Type{Class: TypeEnum, Name: name} }

// PointerTo returns a pointer to elem.
func PointerTo(elem *Type) *Type { return &Type{Class: TypePointer, Elem: elem} }

// RefTo returns an lvalue reference to elem.
func RefTo(elem *Type) *Type { return &Type{Class: TypeLValueReference, Elem: elem} }

// ArrayOf returns a fixed-size array of elem.
func ArrayOf(elem *Type, n uint64) *Type {
	return &Type{Class: TypeConstantArray, Elem: elem, ArrayLen: n}
}

// Typedef returns a typedef named name aliasing elem.
func Typedef(name string, elem *Type) *Type {
	return &Type{Class: TypeTypedef, Name: name, Elem: elem}
}

// Elaborated wraps elem in a keyword-qualified reference such as
// "struct Foo".
func Elaborated(keyword string, elem *Type) *Type {
	return &Type{Class: TypeElaborated, Name: keyword + " " + elem.Name, Elem: elem}
}

// Instance returns a template specialization type for s.
func Instance(name string, s *Specialization) *Type {
	return &Type{Class: TypeTemplateSpecialization, Name: name, Spec: s}
}

// WithConst returns a const-qualified copy of t.
func WithConst(t *Type) *Type {
	c := *t
	c.Const = true
	return &c
}
