package codec

import (
	"fmt"

	"github.com/jward/reflectdb/internal/database"
)

// Record is the flat, kind-tagged form of one primitive shared by the
// codecs and the SQLite store. Only the fields meaningful for Kind are set.
type Record struct {
	Kind           string  `yaml:"kind"`
	Name           string  `yaml:"name"`
	Parent         string  `yaml:"parent,omitempty"`
	Size           uint32  `yaml:"size,omitempty"`
	IsClass        bool    `yaml:"is_class,omitempty"`
	Scoped         string  `yaml:"scoped,omitempty"`
	Value          int32   `yaml:"value,omitempty"`
	Type           string  `yaml:"type,omitempty"`
	Op             string  `yaml:"op,omitempty"`
	Const          bool    `yaml:"const,omitempty"`
	Offset         int32   `yaml:"offset,omitempty"`
	UniqueID       uint32  `yaml:"unique_id,omitempty"`
	ParentUniqueID uint32  `yaml:"parent_unique_id,omitempty"`
	Params         []Param `yaml:"params,omitempty"`
	Flags          uint32  `yaml:"flags,omitempty"`
	Count          uint32  `yaml:"count,omitempty"`
	Float          float32 `yaml:"float,omitempty"`
	Text           string  `yaml:"text,omitempty"`
	Ref            string  `yaml:"ref,omitempty"`
}

// Param is one TemplateType parameter.
type Param struct {
	Type string `yaml:"type"`
	Ptr  bool   `yaml:"ptr,omitempty"`
}

// ToRecord flattens p.
func ToRecord(p database.Primitive) Record {
	id := p.Identity()
	r := Record{Kind: p.Kind().String(), Name: id.Name.Text, Parent: id.Parent.Text}
	switch v := p.(type) {
	case database.Type:
		r.Size = v.Size
	case database.Class:
		r.Size = v.Size
		r.IsClass = v.IsClass
	case database.Enum:
		r.Scoped = v.Scoped.String()
	case database.EnumConstant:
		r.Value = v.Value
	case database.Field:
		r.Type = v.Type.Text
		r.Op = v.Qualifier.Op.String()
		r.Const = v.Qualifier.IsConst
		r.Offset = v.Offset
		r.ParentUniqueID = v.ParentUniqueID
	case database.Function:
		r.UniqueID = v.UniqueID
	case database.TemplateType:
		r.Size = v.Size
		last := -1
		for i, t := range v.ParameterTypes {
			if !t.IsZero() || v.ParameterPtrs[i] {
				last = i
			}
		}
		for i := 0; i <= last; i++ {
			r.Params = append(r.Params, Param{Type: v.ParameterTypes[i].Text, Ptr: v.ParameterPtrs[i]})
		}
	case database.ContainerInfo:
		r.Flags = uint32(v.Flags)
		r.Count = v.Count
	case database.IntAttribute:
		r.Value = v.Value
	case database.FloatAttribute:
		r.Float = v.Value
	case database.PrimitiveAttribute:
		r.Ref = v.Referenced.Text
	case database.TextAttribute:
		r.Text = v.Value
	}
	return r
}

// FromRecord rebuilds the primitive described by r, interning its names
// in db. The primitive is not added to db.
func FromRecord(db *database.Database, r Record) (database.Primitive, error) {
	kind, err := database.ParseKind(r.Kind)
	if err != nil {
		return nil, err
	}
	id := database.Ident{Name: db.GetName(r.Name), Parent: db.GetName(r.Parent)}
	if id.Name.IsZero() {
		return nil, fmt.Errorf("%s primitive has no name", r.Kind)
	}

	switch kind {
	case database.KindNamespace:
		return database.Namespace{Ident: id}, nil
	case database.KindType:
		return database.Type{Ident: id, Size: r.Size}, nil
	case database.KindClass:
		return database.Class{Ident: id, Size: r.Size, IsClass: r.IsClass}, nil
	case database.KindEnum:
		scoped, err := parseEnumScope(r.Scoped)
		if err != nil {
			return nil, err
		}
		return database.Enum{Ident: id, Scoped: scoped}, nil
	case database.KindEnumConstant:
		return database.EnumConstant{Ident: id, Value: r.Value}, nil
	case database.KindField:
		op, err := parseOp(r.Op)
		if err != nil {
			return nil, err
		}
		return database.Field{
			Ident:          id,
			Type:           db.GetName(r.Type),
			Qualifier:      database.Qualifier{Op: op, IsConst: r.Const},
			Offset:         r.Offset,
			ParentUniqueID: r.ParentUniqueID,
		}, nil
	case database.KindFunction:
		return database.Function{Ident: id, UniqueID: r.UniqueID}, nil
	case database.KindTemplate:
		return database.Template{Ident: id}, nil
	case database.KindTemplateType:
		if len(r.Params) > database.MaxTemplateArgs {
			return nil, fmt.Errorf("template type %s has %d parameters", r.Name, len(r.Params))
		}
		tt := database.TemplateType{Ident: id, Size: r.Size}
		for i, p := range r.Params {
			tt.ParameterTypes[i] = db.GetName(p.Type)
			tt.ParameterPtrs[i] = p.Ptr
		}
		return tt, nil
	case database.KindContainerInfo:
		return database.ContainerInfo{Ident: id, Flags: database.ContainerFlags(r.Flags), Count: r.Count}, nil
	case database.KindFlagAttribute:
		return database.FlagAttribute{Ident: id}, nil
	case database.KindIntAttribute:
		return database.IntAttribute{Ident: id, Value: r.Value}, nil
	case database.KindFloatAttribute:
		return database.FloatAttribute{Ident: id, Value: r.Float}, nil
	case database.KindPrimitiveAttribute:
		return database.PrimitiveAttribute{Ident: id, Referenced: db.GetName(r.Ref)}, nil
	case database.KindTextAttribute:
		return database.TextAttribute{Ident: id, Value: r.Text}, nil
	}
	return nil, fmt.Errorf("unsupported primitive kind %q", r.Kind)
}

func parseEnumScope(s string) (database.EnumScope, error) {
	for _, sc := range []database.EnumScope{database.EnumUnscoped, database.EnumClass, database.EnumStruct} {
		if sc.String() == s {
			return sc, nil
		}
	}
	if s == "" {
		return database.EnumUnscoped, nil
	}
	return 0, fmt.Errorf("unknown enum scope %q", s)
}

func parseOp(s string) (database.QualifierOp, error) {
	for _, op := range []database.QualifierOp{database.OpValue, database.OpPointer, database.OpReference} {
		if op.String() == s {
			return op, nil
		}
	}
	if s == "" {
		return database.OpValue, nil
	}
	return 0, fmt.Errorf("unknown qualifier %q", s)
}

// keyName returns the text of the name a key was built from.
func keyName(db *database.Database, k database.Key) string {
	if p, ok := db.Get(k); ok {
		return p.Identity().Name.Text
	}
	if n, ok := db.Names().Lookup(k.Hash); ok {
		return n.Text
	}
	return ""
}
