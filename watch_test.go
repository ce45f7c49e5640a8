package reflectdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/reflectdb/internal/ast"
)

func TestWatch_RescansOnChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSource(t, dir, "a.h")
	fe := &fakeFrontend{units: map[string]func(string) *ast.Unit{
		"a.h": classUnit("game", nil, "Alpha"),
		"b.h": classUnit("game", nil, "Beta"),
	}}
	e := newTestEngine(t, WithFrontend(fe), WithSpecs([]string{"game"}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := make(chan *ScanResult, 4)
	done := make(chan error, 1)
	go func() {
		done <- e.Watch(ctx, dir, func(res *ScanResult, err error) {
			if err == nil {
				results <- res
			}
		}, WithDebounce(20*time.Millisecond))
	}()

	select {
	case res := <-results:
		assert.Equal(t, []string{"game::Alpha"}, classNames(res.Database))
	case <-time.After(5 * time.Second):
		t.Fatal("initial scan did not run")
	}

	// Ignored files do not trigger a rescan.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	writeSource(t, dir, "b.h")

	select {
	case res := <-results:
		assert.Equal(t, []string{"game::Alpha", "game::Beta"}, classNames(res.Database))
	case <-time.After(5 * time.Second):
		t.Fatal("rescan did not run")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_Relevant(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	root := "/proj"

	tests := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{"/proj/src/a.h", fsnotify.Write, true},
		{"/proj/src/a.cpp", fsnotify.Remove, true},
		{"/proj/src/a.h", fsnotify.Chmod, false},
		{"/proj/src/a.txt", fsnotify.Write, false},
		{"/proj/build/a.h", fsnotify.Create, false},
	}
	for _, tt := range tests {
		got := e.relevant(root, fsnotify.Event{Name: tt.name, Op: tt.op})
		assert.Equal(t, tt.want, got, "%s %s", tt.op, tt.name)
	}
}
