package codegen

import (
	"fmt"
	"strings"

	"github.com/jward/reflectdb/internal/database"
)

// Render writes h as C++ preprocessor source.
func (g *Generator) Render(h *Header) []byte {
	g.reset()

	g.writeLine("#pragma once")
	g.writeLine("// Generated by reflectdb from %s. Do not edit.", h.Source)

	for _, e := range h.Types {
		g.writeLine("")
		g.writeLine("// %s", e.Name.Text)
		g.writeLine("#define %s %s", g.macro("TYPE_HASH", e.Ident), database.FormatHash(e.Name.Hash))
		if len(e.Chain) == 0 {
			continue
		}
		g.writeLine("#define %s %s", g.macro("BASE_CHAIN", e.Ident), chainList(e.Chain))
		g.writeLine("#define %s %d", g.macro("BASE_CHAIN_COUNT", e.Ident), len(e.Chain))
	}

	if h.Body != nil {
		g.writeLine("")
		g.generatedBody(h.Body)
	}

	out := make([]byte, g.buf.Len())
	copy(out, g.buf.Bytes())
	return out
}

// generatedBody emits the GENERATED_BODY macro that the class named after
// the file expands inside its definition.
func (g *Generator) generatedBody(e *Entry) {
	g.writeLine("#undef GENERATED_BODY")
	g.writeLine("#define GENERATED_BODY() \\")
	g.indent++
	g.writeLine("public: \\")
	g.writeLine("static constexpr unsigned int TYPE_FULL_NAME_HASH_VALUE = %s; \\", g.macro("TYPE_HASH", e.Ident))
	if len(e.Chain) > 0 {
		g.writeLine("static constexpr unsigned int BASE_CHAIN_HASH_DATA[] = { %s }; \\", g.macro("BASE_CHAIN", e.Ident))
	}
	g.writeLine("static constexpr unsigned int BASE_CHAIN_COUNT = %d; \\", len(e.Chain))
	g.writeLine("private:")
	g.indent--
}

func (g *Generator) macro(kind, ident string) string {
	return g.prefix + "_" + kind + "_" + ident
}

func chainList(chain []database.Name) string {
	parts := make([]string, len(chain))
	for i, n := range chain {
		parts[i] = database.FormatHash(n.Hash)
	}
	return strings.Join(parts, ", ")
}

func (g *Generator) reset() {
	g.buf.Reset()
	g.indent = 0
}

func (g *Generator) writeLine(format string, args ...interface{}) {
	if format == "" {
		g.buf.WriteString("\n")
		return
	}
	g.buf.WriteString(strings.Repeat("\t", g.indent))
	g.buf.WriteString(fmt.Sprintf(format, args...))
	g.buf.WriteString("\n")
}
