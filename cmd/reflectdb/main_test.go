package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/reflectdb"
	"github.com/jward/reflectdb/internal/codec"
	"github.com/jward/reflectdb/internal/config"
	"github.com/jward/reflectdb/internal/extract"
)

// =============================================================================
// findRepoRoot
// =============================================================================

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "src", "engine")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	assert.Equal(t, dir, findRepoRoot(dir))
}

// =============================================================================
// Flags and config
// =============================================================================

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))

	err := validateFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"yaml"`)
}

// Mutates package flags, so it runs before the parallel tests.
func TestResolveDBPath(t *testing.T) {
	root := t.TempDir()
	savedDB, savedCfg := flagDB, cfg
	t.Cleanup(func() { flagDB, cfg = savedDB, savedCfg })

	flagDB, cfg = "", nil
	assert.Equal(t, filepath.Join(root, config.Default().Output.Path), resolveDBPath(root))

	cfg = config.Default()
	cfg.Output.Path = "out/types.cppbin"
	assert.Equal(t, filepath.Join(root, "out", "types.cppbin"), resolveDBPath(root))

	flagDB = "/abs/reflect.db"
	assert.Equal(t, "/abs/reflect.db", resolveDBPath(root))
}

func TestHeaderOptions_FlagsOverrideConfig(t *testing.T) {
	savedCfg := cfg
	savedRoot, savedPrefix, savedDir := flagRoot, flagPrefix, flagHeaderDir
	t.Cleanup(func() {
		cfg = savedCfg
		flagRoot, flagPrefix, flagHeaderDir = savedRoot, savedPrefix, savedDir
	})

	cfg = config.Default()
	cfg.Codegen.Root = "core::Object"
	cfg.Codegen.Dir = "gen"
	flagRoot, flagPrefix, flagHeaderDir = "", "GAME", ""

	opts := headerOptions([]string{"/src/a.h"})
	assert.Equal(t, []string{"/src/a.h"}, opts.Sources)
	assert.Equal(t, "core::Object", opts.Root)
	assert.Equal(t, "GAME", opts.Prefix)
	assert.Equal(t, "gen", opts.Dir)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	quiet, err := newLogger(false)
	require.NoError(t, err)
	assert.False(t, quiet.Core().Enabled(-1), "debug should be off")
	assert.True(t, quiet.Core().Enabled(1), "warn should be on")

	verbose, err := newLogger(true)
	require.NoError(t, err)
	assert.True(t, verbose.Core().Enabled(-1))
}

func TestResolveTargetDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	got, err := resolveTargetDir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	file := filepath.Join(dir, "a.h")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = resolveTargetDir([]string{file})
	assert.ErrorContains(t, err, "not a directory")

	_, err = resolveTargetDir([]string{filepath.Join(dir, "missing")})
	assert.ErrorContains(t, err, "directory not found")
}

// =============================================================================
// Row conversion
// =============================================================================

func TestRowToCLI_Field(t *testing.T) {
	t.Parallel()
	r := &reflectdb.Row{
		ID: 7,
		Record: codec.Record{
			Kind:   "field",
			Name:   "hp",
			Parent: "game::Actor",
			Type:   "int",
			Op:     "pointer",
			Const:  true,
			Offset: 8,
		},
	}
	p := rowToCLI(r)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "game::Actor", p.Parent)
	require.NotNil(t, p.Offset)
	assert.Equal(t, int32(8), *p.Offset)
	assert.Equal(t, "const pointer", p.Qualifier)
	assert.Nil(t, p.Value)
	assert.True(t, strings.HasPrefix(p.Hash, "0x"), p.Hash)
}

func TestRowToCLI_EnumConstant(t *testing.T) {
	t.Parallel()
	r := &reflectdb.Row{Record: codec.Record{Kind: "enum_constant", Name: "game::Red", Parent: "game::Team"}}
	p := rowToCLI(r)
	require.NotNil(t, p.Value)
	assert.Equal(t, int32(0), *p.Value)
	assert.Nil(t, p.Offset)
}

func TestQualifierText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		op    string
		cnst  bool
		wants string
	}{
		{"value", false, ""},
		{"value", true, "const"},
		{"pointer", false, "pointer"},
		{"reference", true, "const reference"},
	}
	for _, tt := range tests {
		r := &reflectdb.Row{Record: codec.Record{Op: tt.op, Const: tt.cnst}}
		assert.Equal(t, tt.wants, qualifierText(r), "op=%s const=%v", tt.op, tt.cnst)
	}
}

// =============================================================================
// Text output
// =============================================================================

func TestOutputResultText_Primitives(t *testing.T) {
	t.Parallel()
	offset := int32(4)
	total := 3
	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{
		Command: "list",
		Results: []CLIPrimitive{
			{ID: 1, Kind: "field", Name: "hp", Parent: "game::Actor", Type: "int", Offset: &offset},
		},
		TotalCount: &total,
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "game::Actor")
	assert.Contains(t, out, "type=int offset=4")
	assert.Contains(t, out, "Showing 1 of 3 results")
}

func TestOutputResultText_Summary(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{Results: CLISummary{
		FileCount:  2,
		KindCounts: map[string]int{"field": 3, "class": 2},
		TopTypes:   []CLITypeStats{{Name: "game::Actor", Kind: "class", Members: 2, Attributes: 1}},
	}})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Files: 2")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("class: 2")), bytes.Index(buf.Bytes(), []byte("field: 3")))
	assert.Contains(t, out, "game::Actor (class) - 2 members, 1 attributes")
}

func TestOutputResultText_Hierarchy(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{Results: CLITypeHierarchy{
		Root:      "game::Player",
		Ancestors: []CLIHierarchyNode{{Name: "game::Actor", Depth: 1}, {Name: "game::Object", Depth: 2}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "game::Player\nAncestors:\n  game::Actor\n    game::Object\n", buf.String())
}

func TestOutputResultText_Unsupported(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := outputResultText(&buf, CLIResult{Results: 42})
	assert.ErrorContains(t, err, "unsupported result type")
}

// =============================================================================
// Diagnostics
// =============================================================================

// Toggles color.NoColor, so it runs before the parallel tests.
func TestPrintDiagnostics(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	var buf bytes.Buffer
	printDiagnostics(&buf, []reflectdb.Diagnostic{
		{Kind: extract.Unsupported, File: "/src/a.h", Line: 12, Reason: "unions are not reflected"},
		{Kind: extract.Collision, File: "b.cppbin", Reason: "game::Thing redefined"},
	})
	assert.Equal(t,
		"/src/a.h:12: warning[unsupported]: unions are not reflected\n"+
			"b.cppbin: warning[collision]: game::Thing redefined\n",
		buf.String())
}

func TestPrintScanSummary(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	var buf bytes.Buffer
	printScanSummary(&buf, scanSummary{
		Files:       2,
		Primitives:  40,
		Diagnostics: 1,
		Output:      "/repo/.reflectdb/reflect.db",
		RunID:       "abc",
		Elapsed:     1500 * time.Millisecond,
	})
	out := buf.String()
	assert.Contains(t, out, "Scanned 2 file(s) in 1.5s: 40 primitives, 1 diagnostic(s)")
	assert.Contains(t, out, "Database: /repo/.reflectdb/reflect.db")
	assert.Contains(t, out, "Run: abc")
}
