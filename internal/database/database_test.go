package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	return New(WithLogger(zap.NewNop()))
}

func class(db *Database, name string, size uint32) Class {
	return Class{Ident: Ident{Name: db.GetName(name)}, Size: size, IsClass: true}
}

// =============================================================================
// Names
// =============================================================================

func TestHashName_KnownVectors(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint32(0), HashName(""))
	assert.Equal(t, uint32(0xe56129cb), HashName("hello"))
	assert.Equal(t, uint32(0xda41e7a3), HashName("int"))
}

func TestGetName_Interned(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	a := db.GetName("N::Foo")
	b := db.GetName("N::Foo")
	assert.Equal(t, a, b)
	assert.Equal(t, HashName("N::Foo"), a.Hash)
	assert.True(t, db.GetName("").IsZero())
	assert.Equal(t, 1, db.Names().Len())

	got, ok := db.Names().Lookup(a.Hash)
	require.True(t, ok)
	assert.Equal(t, "N::Foo", got.Text)
}

func TestNameTable_ReportsCollision(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.WarnLevel)
	db := New(WithLogger(zap.New(core)))

	db.GetName("first")
	// Forge a second text under the same hash.
	db.Names().register(Name{Text: "second", Hash: HashName("first")})

	collisions := db.Names().Collisions()
	require.Len(t, collisions, 1)
	assert.Equal(t, "first", collisions[0].Existing)
	assert.Equal(t, "second", collisions[0].New)
	assert.Equal(t, 1, logs.FilterMessage("name hash collision").Len())
}

// =============================================================================
// Primitives
// =============================================================================

func TestAddPrimitive_EqualIsNoop(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	k1 := db.AddPrimitive(class(db, "Foo", 8))
	k2 := db.AddPrimitive(class(db, "Foo", 8))
	assert.Equal(t, k1, k2)
	assert.Equal(t, 1, db.Count(KindClass))
	assert.Empty(t, db.Conflicts())
}

func TestAddPrimitive_UnequalReplacesAndRecordsConflict(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	db.AddPrimitive(class(db, "Foo", 8))
	db.AddPrimitive(class(db, "Foo", 16))

	got, ok := First[Class](db, db.GetName("Foo"))
	require.True(t, ok)
	assert.Equal(t, uint32(16), got.Size)
	assert.Equal(t, 1, db.Count(KindClass))
	require.Len(t, db.Conflicts(), 1)
	assert.Equal(t, uint32(8), db.Conflicts()[0].Old.(Class).Size)
}

func TestAddPrimitive_SameNameDifferentKinds(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	name := db.GetName("Thing")
	db.AddPrimitive(Namespace{Ident: Ident{Name: name}})
	db.AddPrimitive(Class{Ident: Ident{Name: name}})

	assert.Equal(t, 1, db.Count(KindNamespace))
	assert.Equal(t, 1, db.Count(KindClass))
	assert.Equal(t, 2, db.Len())
}

func TestAddPrimitive_OverloadsCoexist(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	fn := db.GetName("N::f")
	intParam := Field{Ident: Ident{Name: db.GetName("a"), Parent: fn}, Type: db.GetName("int")}
	floatParam := Field{Ident: Ident{Name: db.GetName("a"), Parent: fn}, Type: db.GetName("float")}

	idInt := CalculateFunctionUniqueID([]Field{intParam})
	idFloat := CalculateFunctionUniqueID([]Field{floatParam})
	require.NotEqual(t, idInt, idFloat)

	intParam.ParentUniqueID = idInt
	floatParam.ParentUniqueID = idFloat
	db.AddPrimitive(Function{Ident: Ident{Name: fn}, UniqueID: idInt})
	db.AddPrimitive(Function{Ident: Ident{Name: fn}, UniqueID: idFloat})
	db.AddPrimitive(intParam)
	db.AddPrimitive(floatParam)

	assert.Len(t, db.GetAll(KindFunction, fn), 2)
	assert.Equal(t, 2, db.Count(KindField))
	assert.Empty(t, db.Conflicts())
}

func TestAddPrimitive_AttributesScopedByParent(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	attr := FlagAttribute{Ident: Ident{Name: db.GetName("transient")}}
	db.AddPrimitive(attr.WithParent(db.GetName("A::x")))
	db.AddPrimitive(attr.WithParent(db.GetName("B::y")))

	assert.Equal(t, 2, db.Count(KindFlagAttribute))
}

func TestPrimitives_InsertionOrder(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	for _, n := range []string{"Zeta", "Alpha", "Mid"} {
		db.AddPrimitive(class(db, n, 0))
	}
	var got []string
	for _, p := range db.Primitives(KindClass) {
		got = append(got, p.Identity().Name.Text)
	}
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, got)
}

func TestSetClassSize_BackFill(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	db.AddPrimitive(class(db, "Foo", 0))
	assert.True(t, db.SetClassSize(db.GetName("Foo"), 24))
	assert.False(t, db.SetClassSize(db.GetName("Missing"), 4))

	got, ok := First[Class](db, db.GetName("Foo"))
	require.True(t, ok)
	assert.Equal(t, uint32(24), got.Size)
}

func TestFirst_WrongKindMissing(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	db.AddPrimitive(Namespace{Ident: Ident{Name: db.GetName("N")}})
	_, ok := First[Class](db, db.GetName("N"))
	assert.False(t, ok)
	_, ok = First[Namespace](db, db.GetName("N"))
	assert.True(t, ok)
}

func TestAddBaseTypePrimitives(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	db.AddBaseTypePrimitives()
	db.AddBaseTypePrimitives()

	assert.Equal(t, len(builtinTypes), db.Count(KindType))
	ty, ok := First[Type](db, db.GetName("double"))
	require.True(t, ok)
	assert.Equal(t, uint32(8), ty.Size)
}

// =============================================================================
// Inheritance
// =============================================================================

func TestAddTypeInheritance_Dedup(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	d, b := db.GetName("D"), db.GetName("B")
	r1 := db.AddTypeInheritance(d, b)
	r2 := db.AddTypeInheritance(d, b)
	assert.Equal(t, r1, r2)
	assert.Equal(t, "D=>B", r1.Text)
	assert.Len(t, db.TypeInheritances(), 1)
}

func TestBasesOf_DeclarationOrder(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	d := db.GetName("D")
	second := db.AddTypeInheritance(d, db.GetName("C"))
	first := db.AddTypeInheritance(d, db.GetName("TEST2"))
	db.SetInheritanceOrder(second, 1)
	db.SetInheritanceOrder(first, 0)

	bases := db.BasesOf(d)
	require.Len(t, bases, 2)
	assert.Equal(t, "TEST2", bases[0].Text)
	assert.Equal(t, "C", bases[1].Text)

	o, ok := db.InheritanceOrder(second)
	require.True(t, ok)
	assert.Equal(t, 1, o)
}

// =============================================================================
// Source locations
// =============================================================================

func TestCanonicalPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"/src//a/b.h", "/src/a/b.h"},
		{`C:\\src\\a.h`, "C:/src/a.h"},
		{"/src/./x/../y.h", "/src/y.h"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalPath(tt.in), tt.in)
	}
}

func TestSourceLocations(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	k := db.AddPrimitive(class(db, "Foo", 4))
	db.AddSourceLocation("/src//foo.h", k)
	db.AddSourceLocation("/src/foo.h", k)

	assert.Equal(t, []string{"/src/foo.h"}, db.SourceFiles())
	prims := db.PrimitivesInFile("/src/foo.h")
	require.Len(t, prims, 1)
	assert.Equal(t, "Foo", prims[0].Identity().Name.Text)
}

// =============================================================================
// Merge
// =============================================================================

func TestMerge_EquivalentToSinglePass(t *testing.T) {
	t.Parallel()

	build := func(db *Database, names ...string) {
		for _, n := range names {
			k := db.AddPrimitive(class(db, n, 4))
			db.AddSourceLocation("/src/"+n+".h", k)
		}
	}

	single := newTestDatabase(t)
	build(single, "A", "B", "C")
	rel := single.AddTypeInheritance(single.GetName("C"), single.GetName("A"))
	single.SetInheritanceOrder(rel, 0)

	u1 := newTestDatabase(t)
	build(u1, "A", "B")
	u2 := newTestDatabase(t)
	build(u2, "B", "C")
	rel2 := u2.AddTypeInheritance(u2.GetName("C"), u2.GetName("A"))
	u2.SetInheritanceOrder(rel2, 0)

	merged := newTestDatabase(t)
	Merge(merged, u1, "u1.cpp")
	Merge(merged, u2, "u2.cpp")

	assert.True(t, Equal(single, merged))
	assert.Empty(t, merged.Conflicts())

	unit, ok := merged.Provenance(KeyOf(class(merged, "C", 4)))
	require.True(t, ok)
	assert.Equal(t, "u2.cpp", unit)
	unit, _ = merged.Provenance(KeyOf(class(merged, "B", 4)))
	assert.Equal(t, "u1.cpp", unit)
}

func TestMerge_DefinitionWinsOverForwardDecl(t *testing.T) {
	t.Parallel()

	fwd := newTestDatabase(t)
	fwd.AddPrimitive(class(fwd, "Foo", 0))
	def := newTestDatabase(t)
	def.AddPrimitive(class(def, "Foo", 16))

	a := newTestDatabase(t)
	Merge(a, fwd, "fwd")
	Merge(a, def, "def")
	b := newTestDatabase(t)
	Merge(b, def, "def")
	Merge(b, fwd, "fwd")

	for _, db := range []*Database{a, b} {
		got, ok := First[Class](db, db.GetName("Foo"))
		require.True(t, ok)
		assert.Equal(t, uint32(16), got.Size)
		assert.Empty(t, db.Conflicts())
	}
}

func TestEqual_DetectsDifferences(t *testing.T) {
	t.Parallel()
	a := newTestDatabase(t)
	b := newTestDatabase(t)
	a.AddPrimitive(class(a, "Foo", 4))
	b.AddPrimitive(class(b, "Foo", 8))
	assert.False(t, Equal(a, b))

	c := newTestDatabase(t)
	c.AddPrimitive(class(c, "Foo", 4))
	assert.True(t, Equal(a, c))
	c.AddTypeInheritance(c.GetName("Foo"), c.GetName("Base"))
	assert.False(t, Equal(a, c))
}

// =============================================================================
// Keys and kinds
// =============================================================================

func TestKind_StringRoundTrip(t *testing.T) {
	t.Parallel()
	for _, k := range AllKinds {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("bogus")
	assert.Error(t, err)
}

func TestFormatType(t *testing.T) {
	t.Parallel()
	f := Field{Type: NewName("Foo"), Qualifier: Qualifier{Op: OpPointer, IsConst: true}}
	assert.Equal(t, "const Foo*", FormatType(f))
	assert.Equal(t, "0xda41e7a3", FormatHash(HashName("int")))
}
