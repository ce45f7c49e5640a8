package reflectdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/reflectdb/internal/ast"
	"github.com/jward/reflectdb/internal/database"
)

// scanFixture scans two fake units declaring game::Alpha and game::Beta.
func scanFixture(t *testing.T) (*Engine, *ScanResult) {
	t.Helper()
	dir := t.TempDir()
	fe := &fakeFrontend{units: map[string]func(string) *ast.Unit{
		"alpha.h": classUnit("game", nil, "Alpha"),
		"beta.h":  classUnit("game", nil, "Beta"),
	}}
	e := newTestEngine(t, WithFrontend(fe), WithSpecs([]string{"game"}, nil))
	res, err := e.Scan(context.Background(), []string{
		writeSource(t, dir, "alpha.h"),
		writeSource(t, dir, "beta.h"),
	})
	require.NoError(t, err)
	return e, res
}

// =============================================================================
// Format resolution
// =============================================================================

func TestResolveFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path, format, want string
	}{
		{"out/reflect.cppbin", "", "binary"},
		{"out/reflect.cppbin", "auto", "binary"},
		{"reflect.yaml", "auto", "text"},
		{"reflect.TXT", "", "text"},
		{"reflect.db", "auto", "sqlite"},
		{"reflect.sqlite3", "", "sqlite"},
		{"reflect.db", "text", "text"},
		{"reflect.bin", "SQLite", "sqlite"},
	}
	for _, tt := range tests {
		got, err := ResolveFormat(tt.path, tt.format)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, "%s as %q", tt.path, tt.format)
	}

	_, err := ResolveFormat("reflect.bin", "protobuf")
	assert.Error(t, err)
}

func TestIsSQLite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	short := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(short, []byte("SQL"), 0o644))
	ok, err := IsSQLite(short)
	require.NoError(t, err)
	assert.False(t, ok)

	fake := filepath.Join(dir, "fake.db")
	require.NoError(t, os.WriteFile(fake, append([]byte("SQLite format 3\x00"), 0, 1, 2), 0o644))
	ok, err = IsSQLite(fake)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = IsSQLite(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

// =============================================================================
// Save and Load
// =============================================================================

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()
	e, res := scanFixture(t)

	tests := []struct {
		name    string
		file    string
		wantRun bool
	}{
		{"binary", "reflect.cppbin", false},
		{"text", "reflect.yaml", false},
		{"sqlite", "nested/reflect.db", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			runID, err := e.Save(path, "auto", res.Database, res.Files())
			require.NoError(t, err)
			if tt.wantRun {
				assert.NotEmpty(t, runID)
			} else {
				assert.Empty(t, runID)
			}

			got, err := e.Load(path)
			require.NoError(t, err)
			assert.True(t, database.Equal(res.Database, got))
		})
	}
}

func TestSave_SQLiteFilesQueryable(t *testing.T) {
	t.Parallel()
	e, res := scanFixture(t)
	path := filepath.Join(t.TempDir(), "reflect.db")
	runID, err := e.Save(path, "", res.Database, res.Files())
	require.NoError(t, err)

	q, closer, err := e.OpenQuery(path)
	require.NoError(t, err)
	defer closer.Close()

	files, err := q.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.NotEmpty(t, f.Hash)
	}

	summary, err := q.Summary(0)
	require.NoError(t, err)
	assert.Equal(t, runID, summary.RunID)
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, err := e.Load(filepath.Join(t.TempDir(), "nope.cppbin"))
	assert.Error(t, err)
}

// =============================================================================
// Merge
// =============================================================================

func TestMerge_UnionsInputs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fe := &fakeFrontend{units: map[string]func(string) *ast.Unit{
		"a.h": classUnit("game", nil, "Alpha", "Shared"),
		"b.h": classUnit("game", nil, "Beta", "Shared"),
	}}
	e := newTestEngine(t, WithFrontend(fe), WithSpecs([]string{"game"}, nil))

	var inputs []string
	for i, name := range []string{"a.h", "b.h"} {
		res, err := e.Scan(context.Background(), []string{writeSource(t, dir, name)})
		require.NoError(t, err)
		out := filepath.Join(dir, []string{"a.cppbin", "b.db"}[i])
		_, err = e.Save(out, "auto", res.Database, res.Files())
		require.NoError(t, err)
		inputs = append(inputs, out)
	}

	merged, diags, err := e.Merge(inputs)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.ElementsMatch(t, []string{"game::Alpha", "game::Shared", "game::Beta"}, classNames(merged))

	both, err := e.Scan(context.Background(), []string{filepath.Join(dir, "a.h"), filepath.Join(dir, "b.h")})
	require.NoError(t, err)
	assert.True(t, database.Equal(both.Database, merged))
}

func TestMerge_ReportsConflicts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	big := func(path string) *ast.Unit {
		u := classUnit("game", nil, "Thing")(path)
		u.Decls[0].Members[0].Layout.Size = 32
		return u
	}
	fe := &fakeFrontend{units: map[string]func(string) *ast.Unit{
		"small.h": classUnit("game", nil, "Thing"),
		"big.h":   big,
	}}
	e := newTestEngine(t, WithFrontend(fe), WithSpecs([]string{"game"}, nil))

	var inputs []string
	for _, name := range []string{"small.h", "big.h"} {
		res, err := e.Scan(context.Background(), []string{writeSource(t, dir, name)})
		require.NoError(t, err)
		out := filepath.Join(dir, name+".cppbin")
		_, err = e.Save(out, "binary", res.Database, nil)
		require.NoError(t, err)
		inputs = append(inputs, out)
	}

	_, diags, err := e.Merge(inputs)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, inputs[1], diags[0].File)
	assert.Contains(t, diags[0].Reason, "game::Thing")
}

func TestMerge_MissingInput(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, _, err := e.Merge([]string{filepath.Join(t.TempDir(), "missing.cppbin")})
	assert.Error(t, err)
}
