package extract

import (
	"errors"
	"fmt"
	"strings"
)

// DiagnosticKind classifies why something was left out of the database.
type DiagnosticKind int

const (
	// Unsupported is a construct the database cannot represent.
	Unsupported DiagnosticKind = iota
	// AttributeSyntax is a lex or parse failure in an annotation.
	AttributeSyntax
	// Collision is a hash collision or an unequal redefinition.
	Collision
	// Structural is a violated layout assumption.
	Structural
)

func (k DiagnosticKind) String() string {
	switch k {
	case Unsupported:
		return "unsupported"
	case AttributeSyntax:
		return "attribute"
	case Collision:
		return "collision"
	case Structural:
		return "structural"
	default:
		return "unknown"
	}
}

// Diagnostic is a warning attributed to a source location.
type Diagnostic struct {
	Kind   DiagnosticKind
	File   string
	Line   int
	Reason string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s(%d) : warning - %s", d.File, d.Line, d.Reason)
}

// errSilent marks a failure that skips a declaration without a warning.
var errSilent = errors.New("silent failure")

func warnf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// joinWarn prefixes err with msg, leaving silent failures untouched.
func joinWarn(err error, format string, args ...any) error {
	if errors.Is(err, errSilent) {
		return err
	}
	return fmt.Errorf("%s; %w", fmt.Sprintf(format, args...), err)
}

// Summary renders diagnostics one per line.
func Summary(diags []Diagnostic) string {
	var b strings.Builder
	for _, d := range diags {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}
