// Package diag implements the error-handling design of §7: a single
// CompilerError type carrying one of four kinds, plus the structured
// logging the teacher wires through github.com/tliron/commonlog for its
// own diagnostics (server/lsp.go). The core has no recovery path — the
// first error unwinds to the outer driver (§7's propagation policy) — so
// logging here is a breadcrumb for whoever embeds the compiler, not a
// substitute for returning the error.
package diag

import (
	"fmt"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Kind discriminates the four error kinds enumerated in §7.
type Kind int

const (
	// BugKind is raised for any AST shape the visitor cannot handle:
	// unknown node variant, unimplemented primitive, a closure in
	// ProcLiteral, a splat inside yield, a block with a splat, etc.
	BugKind Kind = iota
	// SemanticKind is surfaced from the frontend: empty TargetDefs,
	// an unresolved constant.
	SemanticKind
	// TypeMismatchKind is an emit-time upcast/downcast contract
	// violation; per §7 this is itself a compiler bug, kept as a
	// distinct kind only so callers can tell the two apart in logs.
	TypeMismatchKind
	// RuntimeKind marks text describing a failure the interpreter, not
	// the compiler, will raise (encoded as UNREACHABLE, §4.7).
	RuntimeKind
)

func (k Kind) String() string {
	switch k {
	case BugKind:
		return "compiler bug"
	case SemanticKind:
		return "semantic error"
	case TypeMismatchKind:
		return "type mismatch"
	case RuntimeKind:
		return "runtime failure"
	default:
		return "unknown error"
	}
}

// Span is the source location an error is attached to.
type Span struct {
	Line, Column int
}

// CompilerError is the single error type the lowering pass returns. It is
// never wrapped with additional context by the core itself — the first
// CompilerError unwinds directly to the driver.
type CompilerError struct {
	Kind    Kind
	Message string
	At      Span
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.At.Line, e.At.Column, e.Message)
}

var logger = commonlog.GetLogger("corelower")

// Bug constructs and logs a BugKind error.
func Bug(at Span, format string, args ...interface{}) *CompilerError {
	return newLogged(BugKind, at, format, args...)
}

// Semantic constructs and logs a SemanticKind error.
func Semantic(at Span, format string, args ...interface{}) *CompilerError {
	return newLogged(SemanticKind, at, format, args...)
}

// TypeMismatch constructs and logs a TypeMismatchKind error.
func TypeMismatch(at Span, format string, args ...interface{}) *CompilerError {
	return newLogged(TypeMismatchKind, at, format, args...)
}

func newLogged(kind Kind, at Span, format string, args ...interface{}) *CompilerError {
	err := &CompilerError{Kind: kind, Message: fmt.Sprintf(format, args...), At: at}
	logger.Errorf("%s", err.Error())
	return err
}
