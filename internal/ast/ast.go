// Package ast is the syntax-tree contract between a C++ frontend and the
// extraction engine. A frontend produces a Unit per translation unit; the
// engine walks it without knowing how it was parsed.
package ast

import "context"

// DeclKind tags a declaration.
type DeclKind int

const (
	DeclOther DeclKind = iota
	DeclNamespace
	DeclRecord
	DeclFunction
	DeclMethod
	DeclField
	DeclEnum
	DeclClassTemplate
)

var declKindNames = [...]string{
	DeclOther:         "other",
	DeclNamespace:     "namespace",
	DeclRecord:        "record",
	DeclFunction:      "function",
	DeclMethod:        "method",
	DeclField:         "field",
	DeclEnum:          "enum",
	DeclClassTemplate: "class_template",
}

func (k DeclKind) String() string {
	if int(k) < len(declKindNames) {
		return declKindNames[k]
	}
	return "unknown"
}

// TagKind is the keyword a record was declared with.
type TagKind int

const (
	TagStruct TagKind = iota
	TagClass
	TagUnion
)

// EnumScope is the scoping keyword of an enum.
type EnumScope int

const (
	EnumUnscoped EnumScope = iota
	EnumScopedClass
	EnumScopedStruct
)

// Location is a presumed source position.
type Location struct {
	File string
	Line int
}

// Annotation is one annotate attribute string attached to a declaration.
type Annotation struct {
	Text string
	Loc  Location
}

// Base is one entry of a record's base-specifier list.
type Base struct {
	Type    *Type
	Virtual bool
}

// Param is a function parameter. Name is empty for unnamed parameters.
type Param struct {
	Name string
	Type *Type
}

// Enumerator is one enum constant with its full-width value.
type Enumerator struct {
	Name  string
	Value int64
	Loc   Location
}

// RecordLayout is the layout of a fully defined record, in bytes. Offsets
// is keyed by member declaration; anonymous record members have an entry
// giving their placement in the enclosing record.
type RecordLayout struct {
	Size    uint64
	Offsets map[*Decl]uint64
}

// Decl is one named declaration. Only the fields relevant to Kind are set.
type Decl struct {
	Kind          DeclKind
	Name          string
	QualifiedName string
	Loc           Location
	Annotations   []Annotation
	Invalid       bool

	// Records and class templates.
	Tag          TagKind
	Defined      bool
	FreeStanding bool
	Anonymous    bool
	Bases        []Base
	Layout       *RecordLayout
	Members      []*Decl

	// Class templates.
	TemplateParams []string

	// Enums.
	Scope       EnumScope
	Enumerators []Enumerator

	// Functions and methods.
	Params        []Param
	Result        *Type
	Static        bool
	ConstMethod   bool
	Pure          bool
	Operator      bool
	Redeclaration bool

	// Fields.
	Type *Type
}

// IsForwardDeclaration reports whether d is a free-standing declaration of
// a record without a body, e.g. "class Foo;".
func (d *Decl) IsForwardDeclaration() bool {
	return d.Kind == DeclRecord && !d.Defined && d.FreeStanding
}

// Unit is one parsed translation unit.
type Unit struct {
	Path  string
	Decls []*Decl
	// Specs are the reflection specs declared in the unit itself.
	Specs *SpecTable
}

// Frontend parses a translation unit. Implementations need not be safe for
// concurrent use; callers serialize Parse.
type Frontend interface {
	Parse(ctx context.Context, path string, src []byte) (*Unit, error)
}

// Walk visits d and every nested member depth-first. Returning false from
// fn skips the members of that declaration.
func Walk(decls []*Decl, fn func(*Decl) bool) {
	for _, d := range decls {
		if fn(d) {
			Walk(d.Members, fn)
		}
	}
}
