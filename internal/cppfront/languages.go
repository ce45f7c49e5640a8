package cppfront

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

// sourceExtensions are the file extensions parsed as C++.
var sourceExtensions = map[string]bool{
	".h":   true,
	".hh":  true,
	".hpp": true,
	".hxx": true,
	".inl": true,
	".c":   true,
	".cc":  true,
	".cpp": true,
	".cxx": true,
}

// The grammar is initialized lazily on first use.
var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

func language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = cpp.GetLanguage()
	})
	return grammar
}

// IsSource reports whether path has a C or C++ source extension.
func IsSource(path string) bool {
	return sourceExtensions[strings.ToLower(filepath.Ext(path))]
}

// Extensions returns the recognized source extensions, sorted.
func Extensions() []string {
	out := make([]string, 0, len(sourceExtensions))
	for ext := range sourceExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
