package reflectdb

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/cppfront"
)

// defaultDebounce is how long Watch waits after the last change before
// rescanning.
const defaultDebounce = 500 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
}

// WithDebounce sets the quiet period after the last change before a
// rescan starts.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// Watch scans root, then rescans it whenever a source file under it is
// written, created, removed or renamed. fn receives the result of every
// scan, including the first. Watch blocks until ctx is done and returns
// nil then.
func (e *Engine) Watch(ctx context.Context, root string, fn func(*ScanResult, error), opts ...WatchOption) error {
	cfg := watchConfig{debounce: defaultDebounce}
	for _, o := range opts {
		o(&cfg)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reflectdb: watch: %w", err)
	}
	defer w.Close()
	if err := e.watchTree(w, root); err != nil {
		return fmt.Errorf("reflectdb: watch: %w", err)
	}

	fn(e.ScanDirectory(ctx, root))

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		changed = make(map[string]bool)
	)
	stopTimer := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := e.watchTree(w, event.Name); err != nil {
						e.logger.Warn("failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
					}
					continue
				}
			}
			if !e.relevant(root, event) {
				continue
			}
			changed[event.Name] = true
			stopTimer()
			if timer == nil {
				timer = time.NewTimer(cfg.debounce)
				timerC = timer.C
			} else {
				timer.Reset(cfg.debounce)
			}

		case <-timerC:
			e.logger.Info("rescanning", zap.String("root", root), zap.Int("changed", len(changed)))
			changed = make(map[string]bool)
			fn(e.ScanDirectory(ctx, root))

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// relevant reports whether event touches a source file the Engine would
// scan.
func (e *Engine) relevant(root string, event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if !cppfront.IsSource(event.Name) {
		return false
	}
	rel, err := filepath.Rel(root, event.Name)
	if err != nil {
		return false
	}
	return e.discovery.accept(filepath.ToSlash(rel))
}

// watchTree adds dir and every directory below it that discovery would
// descend into.
func (e *Engine) watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && (strings.HasPrefix(name, ".") || skipDirs[name]) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
