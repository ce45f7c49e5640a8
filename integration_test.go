package reflectdb

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/reflectdb/internal/database"
)

// findModuleRoot walks up from cwd to find go.mod, returning the repo root.
func findModuleRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find module root")
		}
		dir = parent
	}
}

// newIntegrationEngine creates an Engine with the real C++ frontend and
// the on-disk scripts directory.
func newIntegrationEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	scriptsDir := filepath.Join(findModuleRoot(t), "scripts")
	return newTestEngine(t, append([]Option{WithScriptsDir(scriptsDir)}, opts...)...)
}

// writeCppFile writes C++ source to dir and returns the path.
func writeCppFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const playerSource = `#pragma once

clcpp_reflect(game)

namespace game
{
    struct Object
    {
        int id;
    };

    struct Actor : public Object
    {
        float hp;
    };

    struct Player : public Actor
    {
        int score;
    };

    struct clcpp_attr(noreflect) Scratch
    {
        int tmp;
    };
}
`

const teamSource = `#pragma once

clcpp_reflect(game)

namespace game
{
    enum Team
    {
        Red,
        Blue = 3
    };

    struct clcpp_attr(category = "squad", max_size = 8) Squad
    {
        Team team;
        int members;
    };
}
`

// TestIntegration_FullPipeline_SQLite scans a directory, saves it to SQLite
// and queries the saved store.
func TestIntegration_FullPipeline_SQLite(t *testing.T) {
	t.Parallel()
	e := newIntegrationEngine(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeCppFile(t, dir, "src/player.h", playerSource)
	writeCppFile(t, dir, "src/team.h", teamSource)

	res, err := e.ScanDirectory(ctx, dir)
	require.NoError(t, err)
	require.Len(t, res.Units, 2)

	dbPath := filepath.Join(t.TempDir(), "reflect.db")
	runID, err := e.Save(dbPath, "auto", res.Database, res.Files())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	q, closer, err := e.OpenQuery(dbPath)
	require.NoError(t, err)
	defer closer.Close()

	detail, err := q.TypeDetail("game::Player")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.EqualValues(t, 12, detail.Type.Size)
	assert.Equal(t, []string{"game::Actor"}, detail.Bases)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, "score", detail.Members[0].Name)
	assert.EqualValues(t, 8, detail.Members[0].Offset)

	h, err := q.TypeHierarchy("game::Player", 10)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, []string{"game::Actor", "game::Object"}, nodeNames(h.Ancestors))

	scratch, err := q.TypeDetail("game::Scratch")
	require.NoError(t, err)
	assert.Nil(t, scratch, "noreflect types stay out of the database")

	files, err := q.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.NotEmpty(t, f.Hash, f.Path)
	}

	meta, err := q.Metadata("run_id")
	require.NoError(t, err)
	assert.Equal(t, runID, meta)
}

// TestIntegration_EnumsAndAttributes checks unscoped enum constants and
// class attributes through the in-memory query surface.
func TestIntegration_EnumsAndAttributes(t *testing.T) {
	t.Parallel()
	e := newIntegrationEngine(t)
	dir := t.TempDir()
	path := writeCppFile(t, dir, "team.h", teamSource)

	res, err := e.Scan(context.Background(), []string{path})
	require.NoError(t, err)
	q := e.Query(res.Database)

	team, err := q.TypeDetail("game::Team")
	require.NoError(t, err)
	require.NotNil(t, team)
	require.Len(t, team.Members, 2)
	assert.Equal(t, "game::Team::Red", team.Members[0].Name)
	assert.EqualValues(t, 0, team.Members[0].Value)
	assert.EqualValues(t, 3, team.Members[1].Value)

	squad, err := q.TypeDetail("game::Squad")
	require.NoError(t, err)
	require.NotNil(t, squad)
	attrs := map[string]*Row{}
	for _, a := range squad.Attributes {
		attrs[a.Name] = a
	}
	require.Contains(t, attrs, "category")
	assert.Equal(t, "text_attribute", attrs["category"].Kind)
	assert.Equal(t, "squad", attrs["category"].Text)
	require.Contains(t, attrs, "max_size")
	assert.Equal(t, "int_attribute", attrs["max_size"].Kind)
	assert.EqualValues(t, 8, attrs["max_size"].Value)

	rows, err := q.Find("team")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "game::Team", rows[0].Type)
}

// TestIntegration_TextRoundTrip saves the scanned database as YAML text and
// checks the reloaded copy is equal.
func TestIntegration_TextRoundTrip(t *testing.T) {
	t.Parallel()
	e := newIntegrationEngine(t)
	dir := t.TempDir()
	paths := []string{
		writeCppFile(t, dir, "player.h", playerSource),
		writeCppFile(t, dir, "team.h", teamSource),
	}
	res, err := e.Scan(context.Background(), paths)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "reflect.yaml")
	_, err = e.Save(out, "", res.Database, nil)
	require.NoError(t, err)

	got, err := e.Load(out)
	require.NoError(t, err)
	assert.True(t, database.Equal(res.Database, got))
}

// TestIntegration_Headers generates utility headers and checks the class
// named after its file gets a GENERATED_BODY.
func TestIntegration_Headers(t *testing.T) {
	t.Parallel()
	e := newIntegrationEngine(t)
	dir := t.TempDir()
	path := writeCppFile(t, dir, "player.h", strings.ReplaceAll(playerSource, "struct Player", "struct player"))

	res, err := e.Scan(context.Background(), []string{path})
	require.NoError(t, err)

	written, err := e.GenerateHeaders(res.Database, HeaderOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "player.reflect.h")}, written)

	data, err := os.ReadFile(written[0])
	require.NoError(t, err)
	src := string(data)
	assert.True(t, strings.HasPrefix(src, "#pragma once\n"))
	assert.Contains(t, src, "// game::Actor")
	assert.Contains(t, src, database.FormatHash(database.HashName("game::player")))
	assert.Contains(t, src, "#define GENERATED_BODY()")
	assert.NotContains(t, src, "game::Scratch")
}

// TestIntegration_ScriptGenerators runs the bundled generators from the
// scripts directory on disk.
func TestIntegration_ScriptGenerators(t *testing.T) {
	t.Parallel()
	e := newIntegrationEngine(t)
	dir := t.TempDir()
	path := writeCppFile(t, dir, "player.h", playerSource)

	res, err := e.Scan(context.Background(), []string{path})
	require.NoError(t, err)

	out := t.TempDir()
	written, err := e.RunGenerators(context.Background(), res.Database, GeneratorOptions{
		Scripts: []string{"registry", "report"},
		OutDir:  out,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "reflect_registry.h"),
		filepath.Join(out, "reflect_report.md"),
	}, written)

	registry, err := os.ReadFile(filepath.Join(out, "reflect_registry.h"))
	require.NoError(t, err)
	assert.Contains(t, string(registry), "game::Player")
}

// TestIntegration_ConfigPatterns scans only the files the configured
// patterns select.
func TestIntegration_ConfigPatterns(t *testing.T) {
	t.Parallel()
	e := newIntegrationEngine(t, WithPatterns([]string{"engine/**"}, []string{"engine/generated/**"}))
	dir := t.TempDir()
	writeCppFile(t, dir, "engine/player.h", playerSource)
	writeCppFile(t, dir, "engine/generated/team.h", teamSource)
	writeCppFile(t, dir, "tools/team.h", teamSource)

	res, err := e.ScanDirectory(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Units, 1)
	assert.Equal(t, "player.h", filepath.Base(res.Units[0].Path))

	_, ok := database.First[database.Enum](res.Database, res.Database.GetName("game::Team"))
	assert.False(t, ok)
}
