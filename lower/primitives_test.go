package lower

import (
	"testing"

	"github.com/chazu/corelower/ast"
)

// ---------------------------------------------------------------------------
// buildPrimitive tests
// ---------------------------------------------------------------------------

func TestBuildPrimitiveEmitsSingleOpcode(t *testing.T) {
	sess := newTestSession()
	def := &ast.Def{
		Selector:      "unsafe_add",
		IsPrimitive:   true,
		PrimitiveName: "int32_add",
		Params: []ast.Param{
			{Name: "a", Type: i32Type()},
			{Name: "b", Type: i32Type()},
		},
	}
	cd, err := sess.LowerDef(def)
	if err != nil {
		t.Fatal(err)
	}
	got := opNames(cd.Bytecode)
	if len(got) != 1 || got[0] != "PRIMITIVE" {
		t.Errorf("opcodes = %v, want [PRIMITIVE]", got)
	}
	if cd.ArgsBytesize != 8 {
		t.Errorf("ArgsBytesize = %d, want 8 (two Int32 params)", cd.ArgsBytesize)
	}
}

func TestBuildPrimitiveIsCached(t *testing.T) {
	sess := newTestSession()
	def := &ast.Def{Selector: "foo", IsPrimitive: true, PrimitiveName: "foo"}
	first, err := sess.LowerDef(def)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sess.Defs.Lookup(def); !ok {
		t.Error("a primitive def should be stored in the def cache")
	}
	second, err := sess.LowerDef(def)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("LowerDef should return the cached CompiledDef for a primitive def")
	}
}

func TestBuildPrimitiveDedupesInternedName(t *testing.T) {
	sess := newTestSession()
	a := &ast.Def{Selector: "a", IsPrimitive: true, PrimitiveName: "shared_name"}
	b := &ast.Def{Selector: "b", IsPrimitive: true, PrimitiveName: "shared_name"}
	if _, err := sess.LowerDef(a); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.LowerDef(b); err != nil {
		t.Fatal(err)
	}
	if len(sess.primNames) != 1 {
		t.Errorf("len(primNames) = %d, want 1 (deduped across defs)", len(sess.primNames))
	}
}
