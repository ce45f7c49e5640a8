package scripts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/reflectdb/internal/database"
	"github.com/jward/reflectdb/internal/runtime"
)

func testDatabase() *database.Database {
	db := database.New()
	game := db.GetName("game")
	add := func(p database.Primitive) {
		db.AddSourceLocation("src/game/actor.h", db.AddPrimitive(p))
	}
	add(database.Class{Ident: database.Ident{Name: db.GetName("game::Object"), Parent: game}, Size: 4})
	add(database.Class{Ident: database.Ident{Name: db.GetName("game::Actor"), Parent: game}, Size: 12})
	db.AddPrimitive(database.Field{
		Ident:  database.Ident{Name: db.GetName("game::Actor::health"), Parent: db.GetName("game::Actor")},
		Type:   db.GetName("float"),
		Offset: 8,
	})
	db.AddPrimitive(database.TextAttribute{
		Ident: database.Ident{Name: db.GetName("category"), Parent: db.GetName("game::Actor")},
		Value: "core",
	})
	rel := db.AddTypeInheritance(db.GetName("game::Actor"), db.GetName("game::Object"))
	db.SetInheritanceOrder(rel, 0)
	return db
}

func runGenerator(t *testing.T, name string) string {
	t.Helper()
	out := t.TempDir()
	rt := runtime.NewRuntime(testDatabase(), "", runtime.WithRuntimeFS(FS), runtime.WithOutputDir(out))
	t.Cleanup(rt.Close)

	require.NoError(t, rt.RunScript(context.Background(), runtime.GeneratorScriptPath(name), nil))
	require.Len(t, rt.Written(), 1)
	return out
}

func TestGenerators_AllEmbedded(t *testing.T) {
	t.Parallel()
	for _, name := range Generators {
		_, err := FS.Open(filepath.ToSlash(runtime.GeneratorScriptPath(name)))
		assert.NoError(t, err, name)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	out := runGenerator(t, "registry")

	data, err := os.ReadFile(filepath.Join(out, "reflect_registry.h"))
	require.NoError(t, err)
	text := string(data)

	object := database.FormatHash(database.HashName("game::Object"))
	actor := database.FormatHash(database.HashName("game::Actor"))
	assert.Contains(t, text, "#pragma once\n")
	assert.Contains(t, text, "static const unsigned int reflect_chain_1[] = { "+object+", "+actor+" };")
	assert.Contains(t, text, "\t{ \"game::Actor\", "+actor+", 12, 2, reflect_chain_1 },")
	assert.Contains(t, text, "\t{ nullptr, 0, 0, 0, nullptr },")
}

func TestReport(t *testing.T) {
	t.Parallel()
	out := runGenerator(t, "report")

	data, err := os.ReadFile(filepath.Join(out, "reflect_report.md"))
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "## src/game/actor.h\n")
	assert.Contains(t, text, "- class `game::Actor` "+database.FormatHash(database.HashName("game::Actor")))
	assert.Contains(t, text, "  - field game::Actor::health: float @8")
	assert.Contains(t, text, "  - attribute text_attribute category")
}
