// Package attrs parses the annotation mini-language attached to C++
// declarations:
//
//	AttributeList := AttributeDef (',' AttributeDef)*
//	AttributeDef  := Symbol ['=' Value]
//	Value         := Int | HexInt | Float | Symbol | String
//
// Lexing and parsing fail closed: any error yields no attributes and a
// warning.
package attrs

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/jward/reflectdb/internal/database"
)

// Namer interns names. *database.Database satisfies it.
type Namer interface {
	GetName(text string) database.Name
}

// Warning is a lex or parse failure attributed to a source location.
type Warning struct {
	File    string
	Line    int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s(%d) : warning - %s", w.File, w.Line, w.Message)
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger warnings are written to.
func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// Parser turns annotation text into attribute primitives.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse converts text into attributes with no parent set. On any error the
// result is empty and a warning is returned.
func (p *Parser) Parse(names Namer, text, file string, line int) ([]database.Attribute, *Warning) {
	toks, err := lex(text)
	if err == nil {
		var out []database.Attribute
		out, err = parse(names, toks)
		if err == nil {
			return out, nil
		}
	}
	w := &Warning{File: file, Line: line, Message: err.Error()}
	p.logger.Warn("attribute parse failed",
		zap.String("file", file),
		zap.Int("line", line),
		zap.String("text", text),
		zap.Error(err),
	)
	return nil, w
}

// Parse is a convenience wrapper around a Parser with no logger.
func Parse(names Namer, text, file string, line int) []database.Attribute {
	out, _ := NewParser().Parse(names, text, file, line)
	return out
}

func parse(names Namer, toks []token) ([]database.Attribute, error) {
	if len(toks) == 0 {
		return nil, nil
	}
	var out []database.Attribute
	pos := 0
	for {
		attr, next, err := parseDef(names, toks, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, attr)
		pos = next
		if pos >= len(toks) {
			return out, nil
		}
		if toks[pos].typ != tokComma {
			return nil, fmt.Errorf("expected ',' but found %s %q", toks[pos].typ, toks[pos].text)
		}
		pos++
	}
}

func parseDef(names Namer, toks []token, pos int) (database.Attribute, int, error) {
	if pos >= len(toks) || toks[pos].typ != tokSymbol {
		return nil, pos, fmt.Errorf("symbol expected in attribute")
	}
	ident := database.Ident{Name: names.GetName(toks[pos].text)}
	pos++

	if pos >= len(toks) || toks[pos].typ != tokEquals {
		return database.FlagAttribute{Ident: ident}, pos, nil
	}
	pos++
	if pos >= len(toks) {
		return nil, pos, fmt.Errorf("value expected at the end of the attribute")
	}

	val := toks[pos]
	pos++
	switch val.typ {
	case tokInt:
		return database.IntAttribute{Ident: ident, Value: atoi(val.text)}, pos, nil
	case tokHexInt:
		return database.IntAttribute{Ident: ident, Value: hextoi(val.text)}, pos, nil
	case tokFloat:
		return database.FloatAttribute{Ident: ident, Value: atof(val.text)}, pos, nil
	case tokSymbol:
		return database.PrimitiveAttribute{Ident: ident, Referenced: names.GetName(val.text)}, pos, nil
	case tokString:
		return database.TextAttribute{Ident: ident, Value: val.text}, pos, nil
	default:
		return nil, pos, fmt.Errorf("value expected for attribute assignment")
	}
}

// atoi parses the leading decimal digits of s, wrapping to 32 bits.
func atoi(s string) int32 {
	var v int64
	for i := 0; i < len(s) && isDigit(s[i]); i++ {
		v = v*10 + int64(s[i]-'0')
		v &= 0xffffffff
	}
	return int32(uint32(v))
}

// hextoi parses a 0x-prefixed literal as a 32-bit pattern.
func hextoi(s string) int32 {
	if len(s) < 2 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return 0
	}
	var v uint32
	for i := 2; i < len(s) && isHexDigit(s[i]); i++ {
		v = v<<4 | uint32(hexVal(s[i]))
	}
	return int32(v)
}

func hexVal(c byte) byte {
	switch {
	case isDigit(c):
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// atof parses the longest float prefix of s.
func atof(s string) float32 {
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 32); err == nil {
			return float32(f)
		}
	}
	return 0
}
