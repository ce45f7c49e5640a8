package cppfront

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// directiveKind tags a reflection macro found by prescan.
type directiveKind int

const (
	directiveAnnotate directiveKind = iota
	directiveReflect
	directiveReflectPart
)

// directive is one reflection macro use. For annotations text is the
// annotate string; for reflect specs it is the qualified name.
type directive struct {
	kind   directiveKind
	text   string
	offset int
	line   int
}

var directiveMacros = map[string]directiveKind{
	"clcpp_attr":         directiveAnnotate,
	"__attribute__":      directiveAnnotate,
	"clcpp_reflect":      directiveReflect,
	"clcpp_reflect_part": directiveReflectPart,
}

var annotateRe = regexp.MustCompile(`annotate\s*\(\s*("(?:[^"\\]|\\.)*")\s*\)`)

// prescan removes reflection macros and GNU attributes from src. Removed
// bytes become spaces and newlines are kept, so byte offsets and line
// numbers of everything else are unchanged. Comments, string literals and
// preprocessor lines are left alone.
func prescan(src []byte) ([]byte, []directive) {
	out := make([]byte, len(src))
	copy(out, src)

	var dirs []directive
	line := 1
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			stop := len(src)
			if end := bytes.Index(src[i+2:], []byte("*/")); end >= 0 {
				stop = i + 2 + end + 2
			}
			line += bytes.Count(src[i:stop], []byte{'\n'})
			i = stop
		case c == '"' || (c == '\'' && (i == 0 || !isIdentByte(src[i-1]))):
			stop := skipQuoted(src, i)
			line += bytes.Count(src[i:stop], []byte{'\n'})
			i = stop
		case c == '#' && atLineStart(src, i):
			stop := i
			for stop < len(src) && src[stop] != '\n' {
				if src[stop] == '\\' && stop+1 < len(src) && src[stop+1] == '\n' {
					line++
					stop++
				}
				stop++
			}
			i = stop
		case isIdentStart(c) && (i == 0 || !isIdentByte(src[i-1])):
			j := i
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			kind, ok := directiveMacros[string(src[i:j])]
			if !ok {
				i = j
				continue
			}
			k := j
			for k < len(src) && isSpace(src[k]) {
				k++
			}
			if k >= len(src) || src[k] != '(' {
				i = j
				continue
			}
			end, ok := matchParen(src, k)
			if !ok {
				i = j
				continue
			}
			args := string(src[k+1 : end-1])
			dirs = append(dirs, expandDirective(string(src[i:j]), kind, args, i, line)...)
			blank(out, i, end)
			line += bytes.Count(src[i:end], []byte{'\n'})
			i = end
		default:
			i++
		}
	}
	return out, dirs
}

func expandDirective(macro string, kind directiveKind, args string, offset, line int) []directive {
	switch {
	case macro == "__attribute__":
		var out []directive
		for _, m := range annotateRe.FindAllStringSubmatch(args, -1) {
			text, err := strconv.Unquote(m[1])
			if err != nil {
				continue
			}
			out = append(out, directive{kind: directiveAnnotate, text: text, offset: offset, line: line})
		}
		return out
	case kind == directiveAnnotate:
		return []directive{{kind: kind, text: "attr:" + strings.TrimSpace(args), offset: offset, line: line}}
	default:
		name := strings.Join(strings.Fields(args), "")
		name = strings.TrimPrefix(name, "::")
		if name == "" {
			return nil
		}
		return []directive{{kind: kind, text: name, offset: offset, line: line}}
	}
}

// matchParen returns the index just past the parenthesis closing the one
// at open.
func matchParen(src []byte, open int) (int, bool) {
	depth := 0
	for i := open; i < len(src); {
		switch src[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		case '"', '\'':
			i = skipQuoted(src, i)
			continue
		}
		i++
	}
	return 0, false
}

// skipQuoted returns the index just past the literal starting at i.
func skipQuoted(src []byte, i int) int {
	q := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q:
			return j + 1
		case '\n':
			return j
		}
	}
	return len(src)
}

func blank(b []byte, from, to int) {
	for i := from; i < to; i++ {
		if b[i] != '\n' {
			b[i] = ' '
		}
	}
}

func atLineStart(src []byte, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch src[j] {
		case '\n':
			return true
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
