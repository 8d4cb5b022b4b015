package diag

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// CompilerError tests
// ---------------------------------------------------------------------------

func TestKindStrings(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{BugKind, "compiler bug"},
		{SemanticKind, "semantic error"},
		{TypeMismatchKind, "type mismatch"},
		{RuntimeKind, "runtime failure"},
		{Kind(99), "unknown error"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}

func TestErrorFormatsKindLocationAndMessage(t *testing.T) {
	err := Bug(Span{Line: 3, Column: 7}, "unhandled node %s", "Foo")
	got := err.Error()
	if !strings.Contains(got, "compiler bug") || !strings.Contains(got, "3:7") || !strings.Contains(got, "unhandled node Foo") {
		t.Errorf("Error() = %q, want it to mention kind, location, and message", got)
	}
}

func TestConstructorsSetExpectedKind(t *testing.T) {
	if Bug(Span{}, "x").Kind != BugKind {
		t.Error("Bug() should set BugKind")
	}
	if Semantic(Span{}, "x").Kind != SemanticKind {
		t.Error("Semantic() should set SemanticKind")
	}
	if TypeMismatch(Span{}, "x").Kind != TypeMismatchKind {
		t.Error("TypeMismatch() should set TypeMismatchKind")
	}
}

func TestCompilerErrorSatisfiesErrorInterface(t *testing.T) {
	var err error = Bug(Span{Line: 1, Column: 1}, "boom")
	if err == nil || err.Error() == "" {
		t.Error("CompilerError should satisfy the error interface with a non-empty message")
	}
}
