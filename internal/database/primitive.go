package database

import "fmt"

// Kind identifies a primitive variant.
type Kind uint8

const (
	KindNone Kind = iota
	KindNamespace
	KindType
	KindClass
	KindEnum
	KindEnumConstant
	KindFunction
	KindField
	KindTemplate
	KindTemplateType
	KindContainerInfo
	KindFlagAttribute
	KindIntAttribute
	KindFloatAttribute
	KindPrimitiveAttribute
	KindTextAttribute
)

// AllKinds lists every primitive kind in canonical order. Codecs and
// iteration helpers walk kinds in this order.
var AllKinds = []Kind{
	KindNamespace,
	KindType,
	KindClass,
	KindEnum,
	KindEnumConstant,
	KindFunction,
	KindField,
	KindTemplate,
	KindTemplateType,
	KindContainerInfo,
	KindFlagAttribute,
	KindIntAttribute,
	KindFloatAttribute,
	KindPrimitiveAttribute,
	KindTextAttribute,
}

var kindNames = map[Kind]string{
	KindNamespace:          "namespace",
	KindType:               "type",
	KindClass:              "class",
	KindEnum:               "enum",
	KindEnumConstant:       "enum_constant",
	KindFunction:           "function",
	KindField:              "field",
	KindTemplate:           "template",
	KindTemplateType:       "template_type",
	KindContainerInfo:      "container_info",
	KindFlagAttribute:      "flag_attribute",
	KindIntAttribute:       "int_attribute",
	KindFloatAttribute:     "float_attribute",
	KindPrimitiveAttribute: "primitive_attribute",
	KindTextAttribute:      "text_attribute",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("database: unknown primitive kind %q", s)
}

// IsAttribute reports whether k is one of the attribute kinds.
func (k Kind) IsAttribute() bool {
	return k >= KindFlagAttribute && k <= KindTextAttribute
}

// Ident carries the name and parent shared by every primitive.
type Ident struct {
	Name   Name
	Parent Name
}

// Identity returns the primitive's name and parent.
func (i Ident) Identity() Ident { return i }

// Primitive is one reflected declaration. The set of implementations is
// closed; all of them are comparable value types.
type Primitive interface {
	Kind() Kind
	Identity() Ident
}

// Attribute is a primitive that decorates another primitive.
type Attribute interface {
	Primitive
	WithParent(parent Name) Attribute
}

type Namespace struct {
	Ident
}

// Type is a builtin type such as int or float.
type Type struct {
	Ident
	Size uint32
}

type Class struct {
	Ident
	Size    uint32
	IsClass bool
}

// EnumScope is the scoping flavour of an enum declaration.
type EnumScope uint8

const (
	EnumUnscoped EnumScope = iota
	EnumClass
	EnumStruct
)

func (s EnumScope) String() string {
	switch s {
	case EnumClass:
		return "class"
	case EnumStruct:
		return "struct"
	default:
		return "none"
	}
}

type Enum struct {
	Ident
	Scoped EnumScope
}

type EnumConstant struct {
	Ident
	Value int32
}

// QualifierOp is the indirection applied to a field's type.
type QualifierOp uint8

const (
	OpValue QualifierOp = iota
	OpPointer
	OpReference
)

func (op QualifierOp) String() string {
	switch op {
	case OpPointer:
		return "pointer"
	case OpReference:
		return "reference"
	default:
		return "value"
	}
}

// Suffix returns the C++ declarator suffix for op.
func (op QualifierOp) Suffix() string {
	switch op {
	case OpPointer:
		return "*"
	case OpReference:
		return "&"
	default:
		return ""
	}
}

type Qualifier struct {
	Op      QualifierOp
	IsConst bool
}

// Field is a data member (Offset is a byte offset) or a function parameter
// (Offset is the parameter index, -1 for the return value).
type Field struct {
	Ident
	Type           Name
	Qualifier      Qualifier
	Offset         int32
	ParentUniqueID uint32
}

// Function is a free function or method. UniqueID disambiguates overloads.
type Function struct {
	Ident
	UniqueID uint32
}

type Template struct {
	Ident
}

// MaxTemplateArgs is the largest template argument list that can be stored
// in a TemplateType.
const MaxTemplateArgs = 4

// TemplateType is a concrete instantiation of a Template.
type TemplateType struct {
	Ident
	Size           uint32
	ParameterTypes [MaxTemplateArgs]Name
	ParameterPtrs  [MaxTemplateArgs]bool
}

// ContainerFlags describes a container.
type ContainerFlags uint32

const (
	ContainerIsCArray ContainerFlags = 1 << iota
	ContainerHasKey
)

// ContainerInfo describes a container field; for fixed-size arrays Count is
// the element count.
type ContainerInfo struct {
	Ident
	Flags ContainerFlags
	Count uint32
}

type FlagAttribute struct {
	Ident
}

type IntAttribute struct {
	Ident
	Value int32
}

type FloatAttribute struct {
	Ident
	Value float32
}

// PrimitiveAttribute references another named entity.
type PrimitiveAttribute struct {
	Ident
	Referenced Name
}

type TextAttribute struct {
	Ident
	Value string
}

func (Namespace) Kind() Kind          { return KindNamespace }
func (Type) Kind() Kind               { return KindType }
func (Class) Kind() Kind              { return KindClass }
func (Enum) Kind() Kind               { return KindEnum }
func (EnumConstant) Kind() Kind       { return KindEnumConstant }
func (Field) Kind() Kind              { return KindField }
func (Function) Kind() Kind           { return KindFunction }
func (Template) Kind() Kind           { return KindTemplate }
func (TemplateType) Kind() Kind       { return KindTemplateType }
func (ContainerInfo) Kind() Kind      { return KindContainerInfo }
func (FlagAttribute) Kind() Kind      { return KindFlagAttribute }
func (IntAttribute) Kind() Kind       { return KindIntAttribute }
func (FloatAttribute) Kind() Kind     { return KindFloatAttribute }
func (PrimitiveAttribute) Kind() Kind { return KindPrimitiveAttribute }
func (TextAttribute) Kind() Kind      { return KindTextAttribute }

func (a FlagAttribute) WithParent(p Name) Attribute      { a.Parent = p; return a }
func (a IntAttribute) WithParent(p Name) Attribute       { a.Parent = p; return a }
func (a FloatAttribute) WithParent(p Name) Attribute     { a.Parent = p; return a }
func (a PrimitiveAttribute) WithParent(p Name) Attribute { a.Parent = p; return a }
func (a TextAttribute) WithParent(p Name) Attribute      { a.Parent = p; return a }

// TypeInheritance is one derived→base edge.
type TypeInheritance struct {
	Name    Name
	Derived Name
	Base    Name
}

// InheritanceName names the relation between derived and base.
func InheritanceName(derived, base Name) Name {
	return NewName(derived.Text + "=>" + base.Text)
}

// Key is the store identity of a primitive. Hash is the name hash; Scope
// separates primitives that legitimately share a name within one kind:
// overloads (function unique ID), fields of different records or functions,
// and attributes attached to different declarations.
type Key struct {
	Kind  Kind
	Hash  uint32
	Scope uint32
}

// KeyOf computes the store key of p.
func KeyOf(p Primitive) Key {
	id := p.Identity()
	k := Key{Kind: p.Kind(), Hash: id.Name.Hash}
	switch v := p.(type) {
	case Function:
		k.Scope = v.UniqueID
	case Field:
		k.Scope = MixHashes(v.Parent.Hash, v.ParentUniqueID)
	default:
		if k.Kind.IsAttribute() {
			k.Scope = id.Parent.Hash
		}
	}
	return k
}

// names returns every Name carried by p, for interning.
func names(p Primitive) []Name {
	id := p.Identity()
	out := []Name{id.Name, id.Parent}
	switch v := p.(type) {
	case Field:
		out = append(out, v.Type)
	case TemplateType:
		out = append(out, v.ParameterTypes[:]...)
	case PrimitiveAttribute:
		out = append(out, v.Referenced)
	}
	return out
}
