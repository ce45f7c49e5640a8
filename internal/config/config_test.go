package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, content string) string {
	t.Helper()
	dir := filepath.Join(root, DirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// =============================================================================
// Defaults
// =============================================================================

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	t.Parallel()
	cfg := Default()

	assert.Equal(t, []string{"**/*.h", "**/*.hpp", "**/*.cpp"}, cfg.Scan.Include)
	assert.GreaterOrEqual(t, cfg.Scan.Workers, 1)
	assert.Equal(t, FormatAuto, cfg.Output.Format)
	assert.Equal(t, "REFLECTDB", cfg.Codegen.Prefix)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()
	cfg, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Scan.Include, cfg.Scan.Include)
	assert.Equal(t, def.Output.Path, cfg.Output.Path)
	assert.Empty(t, cfg.Specs.Full)
}

// =============================================================================
// Config file
// =============================================================================

func TestLoad_ReadsConfigFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeConfig(t, root, `
scan:
  include: ["engine/**/*.h"]
  workers: 3
output:
  path: out/engine.db
  format: sqlite
specs:
  full: ["engine::Actor", "engine::World"]
  partial: ["engine::Handle"]
codegen:
  root: engine::Object
`)

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"engine/**/*.h"}, cfg.Scan.Include)
	assert.Equal(t, 3, cfg.Scan.Workers)
	assert.Equal(t, "out/engine.db", cfg.Output.Path)
	assert.Equal(t, FormatSQLite, cfg.Output.Format)
	assert.Equal(t, []string{"engine::Actor", "engine::World"}, cfg.Specs.Full)
	assert.Equal(t, []string{"engine::Handle"}, cfg.Specs.Partial)
	assert.Equal(t, "engine::Object", cfg.Codegen.Root)
	// Unset keys keep their defaults.
	assert.Equal(t, "REFLECTDB", cfg.Codegen.Prefix)
	assert.Equal(t, Default().Scan.Exclude, cfg.Scan.Exclude)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: text\n"), 0o644))

	cfg, err := NewLoader(t.TempDir(), WithConfigFile(path)).Load()
	require.NoError(t, err)
	assert.Equal(t, FormatText, cfg.Output.Format)
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	t.Parallel()
	_, err := NewLoader(t.TempDir(), WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))).Load()
	require.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeConfig(t, root, "scan: [unclosed\n")

	_, err := NewLoader(root).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeConfig(t, root, "output:\n  format: xml\n")

	_, err := NewLoader(root).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

// =============================================================================
// Environment
// =============================================================================

func TestLoad_EnvOverridesFile(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv()
	root := t.TempDir()
	writeConfig(t, root, "scan:\n  workers: 2\noutput:\n  path: from-file.cppbin\n")

	t.Setenv("REFLECTDB_SCAN_WORKERS", "7")
	t.Setenv("REFLECTDB_OUTPUT_PATH", "from-env.cpptxt")
	t.Setenv("REFLECTDB_LOG_VERBOSE", "true")

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scan.Workers)
	assert.Equal(t, "from-env.cpptxt", cfg.Output.Path)
	assert.True(t, cfg.Log.Verbose)
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero workers", func(c *Config) { c.Scan.Workers = 0 }, ErrInvalidWorkers},
		{"no include", func(c *Config) { c.Scan.Include = nil }, ErrEmptyInclude},
		{"bad include glob", func(c *Config) { c.Scan.Include = []string{"src/[a-"} }, ErrInvalidPattern},
		{"bad exclude glob", func(c *Config) { c.Scan.Exclude = []string{"build/**", "build/[a-"} }, ErrInvalidPattern},
		{"unknown format", func(c *Config) { c.Output.Format = "json" }, ErrInvalidFormat},
		{"blank spec", func(c *Config) { c.Specs.Partial = []string{" "} }, ErrEmptySpec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_BadExcludeNamesPattern(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Scan.Exclude = append(cfg.Scan.Exclude, "vendor/[x-")

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.Contains(t, err.Error(), `"vendor/[x-"`)
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Scan.Workers = -1
	cfg.Output.Format = "xml"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "invalid worker count")
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestCompilePatterns(t *testing.T) {
	t.Parallel()
	globs, err := CompilePatterns([]string{"**/*.h", "src/*.cpp"})
	require.NoError(t, err)
	require.Len(t, globs, 2)
	assert.True(t, globs[0].Match("a/b/c.h"))
	assert.True(t, globs[1].Match("src/main.cpp"))
	assert.False(t, globs[1].Match("src/sub/main.cpp"))
}
