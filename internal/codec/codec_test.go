package codec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/reflectdb/internal/database"
)

// sampleDatabase exercises every primitive kind plus inheritance,
// locations and provenance.
func sampleDatabase(t *testing.T) *database.Database {
	t.Helper()
	db := database.New()
	n := db.GetName
	db.AddBaseTypePrimitives()

	ns := db.AddPrimitive(database.Namespace{Ident: database.Ident{Name: n("N")}})
	base := db.AddPrimitive(database.Class{Ident: database.Ident{Name: n("N::Base"), Parent: n("N")}, Size: 4})
	derived := db.AddPrimitive(database.Class{Ident: database.Ident{Name: n("N::Derived"), Parent: n("N")}, Size: 16, IsClass: true})
	db.AddPrimitive(database.Enum{Ident: database.Ident{Name: n("N::Color"), Parent: n("N")}, Scoped: database.EnumClass})
	db.AddPrimitive(database.EnumConstant{Ident: database.Ident{Name: n("N::Color::Red"), Parent: n("N::Color")}, Value: -3})

	this := database.Field{
		Ident:     database.Ident{Name: n("this"), Parent: n("N::Derived::Get")},
		Type:      n("N::Derived"),
		Qualifier: database.Qualifier{Op: database.OpPointer, IsConst: true},
	}
	uid := database.CalculateFunctionUniqueID([]database.Field{this})
	this.ParentUniqueID = uid
	fn := db.AddPrimitive(database.Function{Ident: database.Ident{Name: n("N::Derived::Get"), Parent: n("N::Derived")}, UniqueID: uid})
	db.AddPrimitive(this)
	db.AddPrimitive(database.Field{
		Ident:  database.Ident{Name: n("values"), Parent: n("N::Derived")},
		Type:   n("int"),
		Offset: 4,
	})
	db.AddPrimitive(database.ContainerInfo{
		Ident: database.Ident{Name: n("N::Derived::values")},
		Flags: database.ContainerIsCArray,
		Count: 3,
	})

	db.AddPrimitive(database.Template{Ident: database.Ident{Name: n("Array"), Parent: n("")}})
	tt := database.TemplateType{Ident: database.Ident{Name: n("Array<int,4>"), Parent: n("Array")}, Size: 16}
	tt.ParameterTypes[0] = n("int")
	tt.ParameterTypes[1] = n("N::Base")
	tt.ParameterPtrs[1] = true
	db.AddPrimitive(tt)

	db.AddPrimitive(database.FlagAttribute{Ident: database.Ident{Name: n("transient"), Parent: n("N::Derived")}})
	db.AddPrimitive(database.IntAttribute{Ident: database.Ident{Name: n("version"), Parent: n("N::Derived")}, Value: -7})
	db.AddPrimitive(database.FloatAttribute{Ident: database.Ident{Name: n("scale"), Parent: n("N::Derived")}, Value: 0.1})
	db.AddPrimitive(database.PrimitiveAttribute{Ident: database.Ident{Name: n("editor"), Parent: n("N::Derived")}, Referenced: n("N::Base")})
	db.AddPrimitive(database.TextAttribute{Ident: database.Ident{Name: n("label"), Parent: n("N::Derived")}, Value: "a \"quoted\" label\nwith newline"})

	rel := db.AddTypeInheritance(n("N::Derived"), n("N::Base"))
	db.SetInheritanceOrder(rel, 0)
	db.AddTypeInheritance(n("N::Derived"), n("Unordered"))

	db.AddSourceLocation("src/n.h", ns)
	db.AddSourceLocation("src/n.h", base)
	db.AddSourceLocation("src/n.h", derived)
	db.AddSourceLocation("src/other.cpp", fn)

	db.SetProvenance(derived, "src/n.cpp")
	return db
}

// =============================================================================
// Round trips
// =============================================================================

func TestRoundTrip_AllFormats(t *testing.T) {
	t.Parallel()
	for _, f := range []Format{FormatBinary, FormatText} {
		t.Run(f.String(), func(t *testing.T) {
			t.Parallel()
			db := sampleDatabase(t)

			data, err := Encode(db, f)
			require.NoError(t, err)
			assert.Equal(t, f, Sniff(data))

			got, err := Decode(data, f)
			require.NoError(t, err)
			assert.True(t, database.Equal(db, got))

			unit, ok := got.Provenance(database.KeyOf(database.Class{
				Ident: database.Ident{Name: database.NewName("N::Derived")},
			}))
			require.True(t, ok)
			assert.Equal(t, "src/n.cpp", unit)

			order, ok := got.InheritanceOrder(database.NewName("N::Derived=>N::Base"))
			require.True(t, ok)
			assert.Equal(t, 0, order)
			_, ok = got.InheritanceOrder(database.NewName("N::Derived=>Unordered"))
			assert.False(t, ok)
		})
	}
}

func TestRoundTrip_PreservesInsertionOrder(t *testing.T) {
	t.Parallel()
	db := database.New()
	for _, name := range []string{"Zeta", "Alpha", "Mid"} {
		db.AddPrimitive(database.Class{Ident: database.Ident{Name: db.GetName(name)}})
	}

	data, err := Encode(db, FormatBinary)
	require.NoError(t, err)
	got, err := Decode(data, FormatUnknown)
	require.NoError(t, err)

	var names []string
	for _, p := range got.Primitives(database.KindClass) {
		names = append(names, p.Identity().Name.Text)
	}
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, names)
}

func TestEncode_Deterministic(t *testing.T) {
	t.Parallel()
	a, err := Encode(sampleDatabase(t), FormatBinary)
	require.NoError(t, err)
	b, err := Encode(sampleDatabase(t), FormatBinary)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmptyDatabase(t *testing.T) {
	t.Parallel()
	for _, f := range []Format{FormatBinary, FormatText} {
		data, err := Encode(database.New(), f)
		require.NoError(t, err)
		got, err := Decode(data, FormatUnknown)
		require.NoError(t, err, f.String())
		assert.Equal(t, 0, got.Len())
	}
}

// =============================================================================
// Files
// =============================================================================

func TestWriteRead_ExtensionPicksFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	db := sampleDatabase(t)

	tests := []struct {
		file string
		want Format
	}{
		{"out.csv", FormatText},
		{"out.yaml", FormatText},
		{"out.cppbin", FormatBinary},
		{"nested/dir/out.rdb", FormatBinary},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, tt.file)
		require.NoError(t, Write(path, db, FormatUnknown))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, Sniff(data), tt.file)

		got, err := Read(path)
		require.NoError(t, err)
		assert.True(t, database.Equal(db, got), tt.file)
	}
}

func TestRead_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Read(filepath.Join(t.TempDir(), "missing.rdb"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// =============================================================================
// Corrupt input
// =============================================================================

func TestDecode_Garbage(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("\x00\x01\x02not a database"), FormatUnknown)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Decode([]byte("XXXX"), FormatBinary)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecode_TruncatedBinary(t *testing.T) {
	t.Parallel()
	data, err := Encode(sampleDatabase(t), FormatBinary)
	require.NoError(t, err)

	for _, cut := range []int{5, 12, len(data) / 2, len(data) - 1} {
		_, err := Decode(data[:cut], FormatBinary)
		assert.Error(t, err, "cut at %d", cut)
	}
}

func TestDecode_TrailingBytes(t *testing.T) {
	t.Parallel()
	data, err := Encode(database.New(), FormatBinary)
	require.NoError(t, err)
	_, err = Decode(append(data, 0), FormatBinary)
	assert.ErrorContains(t, err, "trailing")
}

func TestDecode_TextUnknownField(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("version: 1\nprimitives: []\nbogus: 1\n"), FormatText)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	f, err := ParseFormat("TEXT")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("auto")
	require.NoError(t, err)
	assert.Equal(t, FormatUnknown, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
