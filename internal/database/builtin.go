package database

import (
	"sort"
	"strconv"
	"strings"
)

// builtinTypes are the fundamental types seeded into every scanned database,
// with their LP64 sizes.
var builtinTypes = []struct {
	name string
	size uint32
}{
	{"void", 0},
	{"bool", 1},
	{"char", 1},
	{"signed char", 1},
	{"unsigned char", 1},
	{"wchar_t", 4},
	{"char16_t", 2},
	{"char32_t", 4},
	{"short", 2},
	{"unsigned short", 2},
	{"int", 4},
	{"unsigned int", 4},
	{"long", 8},
	{"unsigned long", 8},
	{"long long", 8},
	{"unsigned long long", 8},
	{"float", 4},
	{"double", 8},
	{"long double", 16},
}

// BuiltinSize returns the size of a fundamental type name.
func BuiltinSize(name string) (uint32, bool) {
	for _, b := range builtinTypes {
		if b.name == name {
			return b.size, true
		}
	}
	return 0, false
}

// AddBaseTypePrimitives seeds the database with the fundamental types.
func (d *Database) AddBaseTypePrimitives() {
	for _, b := range builtinTypes {
		d.AddPrimitive(Type{Ident: Ident{Name: d.GetName(b.name)}, Size: b.size})
	}
}

// CalculateFunctionUniqueID hashes the ordered parameter signature of a
// function. Parameters are ordered by index, so an implicit this parameter
// comes first. The return value is not part of the signature.
func CalculateFunctionUniqueID(params []Field) uint32 {
	sorted := make([]Field, len(params))
	copy(sorted, params)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	sig := make([]string, len(sorted))
	for i, f := range sorted {
		sig[i] = FormatType(f)
	}
	return HashName(strings.Join(sig, ","))
}

// FormatType renders a field's type as C++ source, e.g. "const Foo*".
func FormatType(f Field) string {
	var b strings.Builder
	if f.Qualifier.IsConst {
		b.WriteString("const ")
	}
	b.WriteString(f.Type.Text)
	b.WriteString(f.Qualifier.Op.Suffix())
	return b.String()
}

// FormatHash renders a name hash the way generated headers spell it.
func FormatHash(h uint32) string {
	return "0x" + strconv.FormatUint(uint64(h), 16)
}
