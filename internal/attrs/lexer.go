package attrs

import "fmt"

type tokenType int

const (
	tokNone tokenType = iota
	tokEquals
	tokComma
	tokInt
	tokHexInt
	tokFloat
	tokSymbol
	tokString
)

func (t tokenType) String() string {
	switch t {
	case tokEquals:
		return "'='"
	case tokComma:
		return "','"
	case tokInt:
		return "integer"
	case tokHexInt:
		return "hex integer"
	case tokFloat:
		return "float"
	case tokSymbol:
		return "symbol"
	case tokString:
		return "string"
	default:
		return "none"
	}
}

type token struct {
	typ  tokenType
	text string
	pos  int
}

// lex tokenizes an annotation. Any error discards every token.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '=':
			toks = append(toks, token{tokEquals, "=", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			end := i + 1
			for end < len(src) && src[end] != '"' {
				end++
			}
			if end >= len(src) {
				return nil, fmt.Errorf("string not terminated correctly at column %d", i)
			}
			toks = append(toks, token{tokString, src[i+1 : end], i})
			i = end + 1
		case c == '_' || isAlpha(c):
			start := i
			for i < len(src) && (isAlnum(src[i]) || src[i] == '_' || src[i] == ':') {
				i++
			}
			toks = append(toks, token{tokSymbol, src[start:i], start})
		case isDigit(c):
			start := i
			typ := tokInt
			for i < len(src) && (isHexDigit(src[i]) || src[i] == '.' || src[i] == 'x' || src[i] == 'X') {
				switch src[i] {
				case '.', 'x', 'X':
					if typ != tokInt {
						return nil, fmt.Errorf("invalid integer representation at column %d", start)
					}
					if src[i] == '.' {
						typ = tokFloat
					} else {
						typ = tokHexInt
					}
				}
				i++
			}
			toks = append(toks, token{typ, src[start:i], start})
		default:
			return nil, fmt.Errorf("invalid character %q in attribute at column %d", c, i)
		}
	}
	return toks, nil
}

func isAlpha(c byte) bool    { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isAlnum(c byte) bool    { return isAlpha(c) || isDigit(c) }
func isHexDigit(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }
