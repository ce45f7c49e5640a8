package reflectdb

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern holds both the pattern string and compiled glob. root is
// the pattern with a leading "**/" removed, so "**/*.h" also matches a file
// at the top of the scanned tree.
type compiledPattern struct {
	pattern string
	glob    glob.Glob
	root    glob.Glob
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	var out []compiledPattern
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		cp := compiledPattern{pattern: pattern, glob: g}
		if simplified, ok := strings.CutPrefix(pattern, "**/"); ok {
			if sg, err := glob.Compile(simplified, '/'); err == nil {
				cp.root = sg
			}
		}
		out = append(out, cp)
	}
	return out, nil
}

// discovery filters relative, slash-separated paths.
type discovery struct {
	include []compiledPattern
	exclude []compiledPattern
}

func newDiscovery(include, exclude []string) (*discovery, error) {
	inc, err := compilePatterns(include)
	if err != nil {
		return nil, fmt.Errorf("include %w", err)
	}
	exc, err := compilePatterns(exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude %w", err)
	}
	return &discovery{include: inc, exclude: exc}, nil
}

// accept reports whether relPath is included and not excluded. An empty
// include list accepts everything.
func (d *discovery) accept(relPath string) bool {
	if d.excluded(relPath) {
		return false
	}
	if len(d.include) == 0 {
		return true
	}
	return matchesAny(relPath, d.include)
}

func (d *discovery) excluded(relPath string) bool {
	if matchesAny(relPath, d.exclude) {
		return true
	}
	// A directory pattern such as "build/**" must also exclude the
	// directory itself.
	return matchesAny(relPath+"/**", d.exclude)
}

func matchesAny(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}
	if strings.Contains(path, "/") {
		return false
	}
	for _, cp := range patterns {
		if cp.root != nil && cp.root.Match(path) {
			return true
		}
	}
	return false
}
