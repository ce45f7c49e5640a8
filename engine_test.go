package reflectdb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/reflectdb/internal/ast"
	"github.com/jward/reflectdb/internal/config"
	"github.com/jward/reflectdb/internal/database"
	"github.com/jward/reflectdb/internal/extract"
)

// =============================================================================
// Fake frontend
// =============================================================================

// fakeFrontend returns prebuilt units keyed by file name and fails for
// files named in fail. It records the parse order and whether two parses
// ever overlapped.
type fakeFrontend struct {
	units map[string]func(path string) *ast.Unit
	fail  map[string]bool

	mu         sync.Mutex
	order      []string
	active     atomic.Int32
	overlapped atomic.Bool
}

func (f *fakeFrontend) Parse(_ context.Context, path string, _ []byte) (*ast.Unit, error) {
	if f.active.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	defer f.active.Add(-1)

	base := filepath.Base(path)
	f.mu.Lock()
	f.order = append(f.order, base)
	f.mu.Unlock()

	if f.fail[base] {
		return nil, errors.New("syntax error")
	}
	build, ok := f.units[base]
	if !ok {
		return &ast.Unit{Path: path}, nil
	}
	return build(path), nil
}

// classUnit declares namespace ns holding one class per name, each with
// one int field. specs are the directives the unit itself declares.
func classUnit(ns string, specs map[string]ast.Spec, classes ...string) func(string) *ast.Unit {
	return func(path string) *ast.Unit {
		loc := ast.Location{File: path, Line: 1}
		var members []*ast.Decl
		for _, c := range classes {
			f := &ast.Decl{Kind: ast.DeclField, Name: "value", Loc: loc, Type: ast.Builtin("int")}
			members = append(members, &ast.Decl{
				Kind: ast.DeclRecord, Name: c, QualifiedName: ns + "::" + c, Loc: loc,
				Tag: ast.TagStruct, Defined: true, Members: []*ast.Decl{f},
				Layout: &ast.RecordLayout{Size: 4, Offsets: map[*ast.Decl]uint64{f: 0}},
			})
		}
		table := ast.NewSpecTable()
		for n, s := range specs {
			table.Set(n, s)
		}
		return &ast.Unit{
			Path:  path,
			Specs: table,
			Decls: []*ast.Decl{{Kind: ast.DeclNamespace, Name: ns, QualifiedName: ns, Loc: loc, Members: members}},
		}
	}
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("// "+name+"\n"), 0o644))
	return path
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func classNames(db *database.Database) []string {
	var out []string
	for _, p := range db.Primitives(database.KindClass) {
		out = append(out, p.Identity().Name.Text)
	}
	return out
}

// =============================================================================
// New and options
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	assert.NotNil(t, e.frontend)
	assert.NotNil(t, e.discovery)
	assert.GreaterOrEqual(t, e.workers, 1)
	assert.True(t, e.useParallel)
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := New(WithPatterns([]string{"src/[a-"}, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include pattern")
}

func TestWithSpecs_FullWinsOverPartial(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithSpecs([]string{"game"}, []string{"game", " game::Handle "}))
	assert.Equal(t, ast.SpecFull, e.specs.Get("game"))
	assert.Equal(t, ast.SpecPartial, e.specs.Get("game::Handle"))
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Scan.Workers = 3
	cfg.Specs.Full = []string{"engine"}

	e := newTestEngine(t, ConfigOptions(cfg)...)
	assert.Equal(t, 3, e.workers)
	assert.Equal(t, ast.SpecFull, e.specs.Get("engine"))
}

// =============================================================================
// Scan
// =============================================================================

func TestScan_MergesUnitsInInputOrder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fe := &fakeFrontend{units: map[string]func(string) *ast.Unit{
		"b.h": classUnit("game", nil, "Beta"),
		"a.h": classUnit("game", nil, "Alpha"),
		"c.h": classUnit("game", nil, "Gamma"),
	}}
	e := newTestEngine(t, WithFrontend(fe), WithSpecs([]string{"game"}, nil), WithWorkers(3))

	paths := []string{writeSource(t, dir, "b.h"), writeSource(t, dir, "a.h"), writeSource(t, dir, "c.h")}
	res, err := e.Scan(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, []string{"game::Beta", "game::Alpha", "game::Gamma"}, classNames(res.Database))
	require.Len(t, res.Units, 3)
	for i, u := range res.Units {
		assert.Equal(t, paths[i], u.Path)
		assert.NotEmpty(t, u.Hash)
		assert.NoError(t, u.Err)
	}
	assert.Equal(t, []string{"b.h", "a.h", "c.h"}, fe.order)
	assert.False(t, fe.overlapped.Load(), "frontend calls must not overlap")
}

func TestScan_SeedsBuiltinTypes(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithFrontend(&fakeFrontend{}))
	res, err := e.Scan(context.Background(), nil)
	require.NoError(t, err)

	_, ok := database.First[database.Type](res.Database, res.Database.GetName("int"))
	assert.True(t, ok)
}

func TestScan_ProvenanceIsTheUnit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fe := &fakeFrontend{units: map[string]func(string) *ast.Unit{
		"a.h": classUnit("game", nil, "Alpha"),
	}}
	e := newTestEngine(t, WithFrontend(fe), WithSpecs([]string{"game"}, nil))
	path := writeSource(t, dir, "a.h")

	res, err := e.Scan(context.Background(), []string{path})
	require.NoError(t, err)

	k := res.Database.Keys(database.KindClass)[0]
	unit, ok := res.Database.Provenance(k)
	require.True(t, ok)
	assert.Equal(t, path, unit)
}

func TestScan_SpecsGatheredAcrossUnits(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fe := &fakeFrontend{units: map[string]func(string) *ast.Unit{
		// The type comes first; the clcpp_reflect covering it is declared later.
		"world.h": classUnit("engine", nil, "World"),
		"specs.h": classUnit("other", map[string]ast.Spec{"engine": ast.SpecFull}),
	}}
	for _, parallel := range []bool{true, false} {
		e := newTestEngine(t, WithFrontend(fe), WithParallel(parallel))
		res, err := e.Scan(context.Background(), []string{
			writeSource(t, dir, "world.h"),
			writeSource(t, dir, "specs.h"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"engine::World"}, classNames(res.Database), "parallel=%v", parallel)
	}
}

func TestScan_UnreflectedWithoutSpecs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fe := &fakeFrontend{units: map[string]func(string) *ast.Unit{
		"a.h": classUnit("game", nil, "Alpha"),
	}}
	e := newTestEngine(t, WithFrontend(fe))
	res, err := e.Scan(context.Background(), []string{writeSource(t, dir, "a.h")})
	require.NoError(t, err)
	assert.Empty(t, classNames(res.Database))
}

func TestScan_CollectsPerFileErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fe := &fakeFrontend{
		units: map[string]func(string) *ast.Unit{
			"good.h": classUnit("game", nil, "Good"),
		},
		fail: map[string]bool{"bad.h": true},
	}
	e := newTestEngine(t, WithFrontend(fe), WithSpecs([]string{"game"}, nil))

	paths := []string{
		writeSource(t, dir, "bad.h"),
		filepath.Join(dir, "missing.h"),
		writeSource(t, dir, "good.h"),
	}
	res, err := e.Scan(context.Background(), paths)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning had 2 error(s)")
	assert.Contains(t, err.Error(), "bad.h")

	require.NotNil(t, res)
	assert.Equal(t, []string{"game::Good"}, classNames(res.Database))
	assert.Error(t, res.Units[0].Err)
	assert.Error(t, res.Units[1].Err)
	assert.NoError(t, res.Units[2].Err)

	files := res.Files()
	require.Len(t, files, 1)
	assert.Equal(t, database.CanonicalPath(paths[2]), files[0].Path)
}

func TestScan_RelativePathsRecordedAbsolute(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fe := &fakeFrontend{units: map[string]func(string) *ast.Unit{
		"a.h": classUnit("game", nil, "Alpha"),
	}}
	e := newTestEngine(t, WithFrontend(fe), WithSpecs([]string{"game"}, nil))
	abs := writeSource(t, dir, "a.h")
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, abs)
	require.NoError(t, err)
	require.False(t, filepath.IsAbs(rel))

	res, err := e.Scan(context.Background(), []string{rel})
	require.NoError(t, err)

	files := res.Files()
	require.Len(t, files, 1)
	assert.Equal(t, database.CanonicalPath(abs), files[0].Path)

	q := e.Query(res.Database)
	for _, p := range []string{abs, rel} {
		rows, err := q.TypesInFile(p)
		require.NoError(t, err)
		require.Len(t, rows, 1, "path=%s", p)
		assert.Equal(t, "game::Alpha", rows[0].Name)
	}
}

func TestScan_ConflictAcrossUnitsIsDiagnosed(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	small := classUnit("game", nil, "Thing")
	big := func(path string) *ast.Unit {
		u := classUnit("game", nil, "Thing")(path)
		u.Decls[0].Members[0].Layout.Size = 16
		return u
	}
	fe := &fakeFrontend{units: map[string]func(string) *ast.Unit{"a.h": small, "b.h": big}}
	e := newTestEngine(t, WithFrontend(fe), WithSpecs([]string{"game"}, nil))

	res, err := e.Scan(context.Background(), []string{writeSource(t, dir, "a.h"), writeSource(t, dir, "b.h")})
	require.NoError(t, err)

	diags := res.Diagnostics()
	require.NotEmpty(t, diags)
	last := diags[len(diags)-1]
	assert.Equal(t, extract.Collision, last.Kind)
	assert.Contains(t, last.Reason, "game::Thing")
	assert.Empty(t, res.Units[0].Diagnostics)
}

func TestScan_ProgressInInputOrder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	var seen []string
	e := newTestEngine(t, WithFrontend(&fakeFrontend{}), WithProgress(func(p string) {
		seen = append(seen, filepath.Base(p))
	}))

	_, err := e.Scan(context.Background(), []string{
		writeSource(t, dir, "z.h"),
		writeSource(t, dir, "y.h"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"z.h", "y.h"}, seen)
}

func TestScan_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(t, WithFrontend(&fakeFrontend{}))
	_, err := e.Scan(ctx, []string{writeSource(t, t.TempDir(), "a.h")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_ParallelMatchesSerial(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	units := map[string]func(string) *ast.Unit{}
	var paths []string
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		units[n+".h"] = classUnit("game", nil, "Shared", "Only"+n)
		paths = append(paths, writeSource(t, dir, n+".h"))
	}

	par := newTestEngine(t, WithFrontend(&fakeFrontend{units: units}), WithSpecs([]string{"game"}, nil), WithWorkers(4))
	ser := newTestEngine(t, WithFrontend(&fakeFrontend{units: units}), WithSpecs([]string{"game"}, nil), WithParallel(false))

	a, err := par.Scan(context.Background(), paths)
	require.NoError(t, err)
	b, err := ser.Scan(context.Background(), paths)
	require.NoError(t, err)

	assert.True(t, database.Equal(a.Database, b.Database))
	assert.Equal(t, classNames(a.Database), classNames(b.Database))
}

// =============================================================================
// Discovery
// =============================================================================

func TestDiscover_FiltersByPatternAndExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSource(t, dir, "root.h")
	writeSource(t, dir, "src/actor.h")
	writeSource(t, dir, "src/actor.cpp")
	writeSource(t, dir, "src/notes.txt")
	writeSource(t, dir, "build/gen.h")
	writeSource(t, dir, ".hidden/x.h")
	writeSource(t, dir, "third_party/lib/lib.h")

	e := newTestEngine(t)
	paths, err := e.Discover(dir)
	require.NoError(t, err)

	var rel []string
	for _, p := range paths {
		r, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"root.h", "src/actor.cpp", "src/actor.h"}, rel)
}

func TestDiscover_CustomPatterns(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSource(t, dir, "engine/core.h")
	writeSource(t, dir, "engine/core.cpp")
	writeSource(t, dir, "tools/tool.h")

	e := newTestEngine(t, WithPatterns([]string{"engine/**/*.h", "engine/*.h"}, []string{"tools/**"}))
	paths, err := e.Discover(dir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "core.h", filepath.Base(paths[0]))
}

func TestDiscovery_Accept(t *testing.T) {
	t.Parallel()
	d, err := newDiscovery([]string{"**/*.h"}, []string{"build/**", "gen"})
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"a.h", true},
		{"src/a.h", true},
		{"src/a.cpp", false},
		{"build/a.h", false},
		{"gen/a.h", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.accept(tt.path), tt.path)
	}
}

func TestScanDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSource(t, dir, "b.h")
	writeSource(t, dir, "a.h")
	fe := &fakeFrontend{}

	e := newTestEngine(t, WithFrontend(fe))
	res, err := e.ScanDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Units, 2)
	assert.Equal(t, []string{"a.h", "b.h"}, fe.order)
}
