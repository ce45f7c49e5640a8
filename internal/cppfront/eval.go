package cppfront

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// eval folds an integral constant expression: literals, enumerators,
// template value parameters, sizeof and the arithmetic and bitwise
// operators.
func (p *unitParser) eval(n *sitter.Node, scope string, b *bindings) (int64, bool) {
	if n == nil {
		return 0, false
	}
	switch n.Type() {
	case "number_literal":
		return parseInteger(p.text(n))
	case "char_literal":
		return parseChar(p.text(n))
	case "true":
		return 1, true
	case "false":
		return 0, true
	case "parenthesized_expression":
		return p.eval(n.NamedChild(0), scope, b)
	case "identifier", "qualified_identifier", "type_identifier":
		name := p.name(n)
		if v, ok := b.value(name); ok {
			return v, true
		}
		return p.constValue(name, scope)
	case "sizeof_expression":
		if t := n.ChildByFieldName("type"); t != nil {
			l := p.layoutOf(p.descriptorType(t, scope, b))
			return int64(l.size), l.size > 0
		}
	case "unary_expression":
		v, ok := p.eval(n.ChildByFieldName("argument"), scope, b)
		if !ok {
			return 0, false
		}
		switch p.text(n.ChildByFieldName("operator")) {
		case "-":
			return -v, true
		case "+":
			return v, true
		case "~":
			return ^v, true
		case "!":
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
	case "binary_expression":
		l, ok := p.eval(n.ChildByFieldName("left"), scope, b)
		if !ok {
			return 0, false
		}
		r, ok := p.eval(n.ChildByFieldName("right"), scope, b)
		if !ok {
			return 0, false
		}
		return binaryOp(p.text(n.ChildByFieldName("operator")), l, r)
	}
	return 0, false
}

func binaryOp(op string, l, r int64) (int64, bool) {
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case "%":
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case "<<":
		return l << uint64(r), true
	case ">>":
		return l >> uint64(r), true
	case "|":
		return l | r, true
	case "&":
		return l & r, true
	case "^":
		return l ^ r, true
	}
	return 0, false
}

// constValue looks up an enumerator lexically from scope outwards.
func (p *unitParser) constValue(name, scope string) (int64, bool) {
	if strings.HasPrefix(name, "::") {
		v, ok := p.consts[name[2:]]
		return v, ok
	}
	for {
		if v, ok := p.consts[qualify(scope, name)]; ok {
			return v, true
		}
		if scope == "" {
			return 0, false
		}
		scope = parentScope(scope)
	}
}

// parseInteger parses a C++ integer literal with optional digit
// separators and suffixes.
func parseInteger(lit string) (int64, bool) {
	s := strings.ReplaceAll(lit, "'", "")
	lower := strings.ToLower(s)
	hex := strings.HasPrefix(lower, "0x")
	if !hex && strings.ContainsAny(lower, ".e") {
		return 0, false
	}
	s = strings.TrimRight(s, "uUlLzZ")
	if len(s) > 1 && s[0] == '0' && !hex && s[1] >= '0' && s[1] <= '9' {
		s = "0o" + s[1:]
	}
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return v, true
	}
	if v, err := strconv.ParseUint(s, 0, 64); err == nil {
		return int64(v), true
	}
	return 0, false
}

func parseChar(lit string) (int64, bool) {
	i := strings.IndexByte(lit, '\'')
	if i < 0 {
		return 0, false
	}
	v, _, _, err := strconv.UnquoteChar(lit[i+1:], '\'')
	if err != nil {
		return 0, false
	}
	return int64(v), true
}
