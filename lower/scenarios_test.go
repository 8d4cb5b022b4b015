package lower

import (
	"testing"

	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/constpool"
	"github.com/chazu/corelower/typesystem"
)

// This file mirrors spec.md's end-to-end scenarios one test per scenario,
// the way tinyrange-rtg's fullcompiler test corpus dedicates one file per
// language feature instead of folding everything into a single table test.

// Scenario 1: `1 + 2` (both i32) compiles to a single CALL against a
// primitive def, preceded by the two operand pushes.
func TestScenario1IntegerAddition(t *testing.T) {
	sess := newTestSession()

	addDef := &ast.Def{
		Selector:      "i32_add",
		IsPrimitive:   true,
		PrimitiveName: "i32_add",
		Params:        []ast.Param{{Name: "a", Type: i32Type()}, {Name: "b", Type: i32Type()}},
	}
	addDef.T = i32Type()

	arg1 := &ast.NumberLiteral{Raw: "1"}
	arg1.T = i32Type()
	arg2 := &ast.NumberLiteral{Raw: "2"}
	arg2.T = i32Type()
	call := &ast.Call{Name: "i32_add", Args: []ast.Node{arg1, arg2}, TargetDefs: []*ast.Def{addDef}}
	call.T = i32Type()

	def := &ast.Def{Selector: "__expr__", Body: call}
	def.T = i32Type()

	cd, err := sess.LowerDef(def)
	if err != nil {
		t.Fatal(err)
	}
	got := opNames(cd.Bytecode)
	want := []string{"PUT_I64", "PUT_I64", "CALL", "LEAVE"}
	if !sameOps(got, want) {
		t.Errorf("opcodes = %v, want %v", got, want)
	}
}

// Scenario 2: `a = 1; a` stores then reads the same local.
func TestScenario2LocalAssignThenRead(t *testing.T) {
	sess := newTestSession()

	lit := &ast.NumberLiteral{Raw: "1"}
	lit.T = i32Type()
	assign := &ast.Assign{Target: &ast.Var{Name: "a"}, Value: lit}
	assign.T = i32Type()

	read := &ast.Var{Name: "a"}
	read.T = i32Type()

	body := &ast.Expressions{Children: []ast.Node{assign, read}}
	def := &ast.Def{Selector: "__expr__", Body: body}
	def.T = i32Type()

	cd, err := sess.LowerDef(def)
	if err != nil {
		t.Fatal(err)
	}
	got := opNames(cd.Bytecode)
	want := []string{"PUT_I64", "SET_LOCAL", "GET_LOCAL", "LEAVE"}
	if !sameOps(got, want) {
		t.Errorf("opcodes = %v, want %v", got, want)
	}
}

// Scenario 3: `if true then 10 else 20 end` folds away the else branch at
// compile time (P8, config.Default()'s FoldConstantBranches).
func TestScenario3ConstantFoldedIf(t *testing.T) {
	sess := newTestSession()

	then := &ast.NumberLiteral{Raw: "10"}
	then.T = i32Type()
	els := &ast.NumberLiteral{Raw: "20"}
	els.T = i32Type()

	ifNode := &ast.If{
		Cond:           &ast.BoolLiteral{Value: true},
		Then:           then,
		Else:           els,
		CondKnown:      true,
		CondKnownValue: true,
	}
	ifNode.T = i32Type()

	def := &ast.Def{Selector: "__expr__", Body: ifNode}
	def.T = i32Type()

	cd, err := sess.LowerDef(def)
	if err != nil {
		t.Fatal(err)
	}
	got := opNames(cd.Bytecode)
	want := []string{"PUT_I64", "LEAVE"}
	if !sameOps(got, want) {
		t.Errorf("opcodes = %v, want %v (else branch must be elided)", got, want)
	}
}

// Scenario 4: `while i < 3; i = i + 1; end` (i: Int32) jumps to the
// condition first, increments and stores in the body, branches back, and
// upcasts the implicit nil result to the while's own type on exit.
func TestScenario4WhileLoop(t *testing.T) {
	sess := newTestSession()

	ltDef := &ast.Def{Selector: "i32_lt", Params: []ast.Param{{Name: "a", Type: i32Type()}, {Name: "b", Type: i32Type()}}, Body: &ast.NilLiteral{}}
	ltDef.T = &typesystem.SimpleType{KindValue: typesystem.KindPrimitive, NameValue: "Bool", Aligned: 8, Inner: 8}
	addDef := &ast.Def{Selector: "i32_add", Params: []ast.Param{{Name: "a", Type: i32Type()}, {Name: "b", Type: i32Type()}}, Body: &ast.NilLiteral{}}
	addDef.T = i32Type()

	iRead1 := &ast.Var{Name: "i"}
	iRead1.T = i32Type()
	three := &ast.NumberLiteral{Raw: "3"}
	three.T = i32Type()
	cond := &ast.Call{Name: "i32_lt", Args: []ast.Node{iRead1, three}, TargetDefs: []*ast.Def{ltDef}}
	cond.T = ltDef.Type()

	iRead2 := &ast.Var{Name: "i"}
	iRead2.T = i32Type()
	one := &ast.NumberLiteral{Raw: "1"}
	one.T = i32Type()
	sum := &ast.Call{Name: "i32_add", Args: []ast.Node{iRead2, one}, TargetDefs: []*ast.Def{addDef}}
	sum.T = i32Type()

	body := &ast.Assign{Target: &ast.Var{Name: "i"}, Value: sum}
	body.T = i32Type()

	whileNode := &ast.While{Cond: cond, Body: body}
	whileNode.T = i32Type()

	u := newUnit(sess, nil, nil)
	u.fr.Declare("i", i32Type())
	if err := u.lower(whileNode, value()); err != nil {
		t.Fatal(err)
	}
	got := opNames(u.buf.Bytes())
	want := []string{"JUMP", "GET_LOCAL", "PUT_I64", "CALL", "SET_LOCAL", "GET_LOCAL", "PUT_I64", "CALL", "BRANCH_IF", "PUT_NIL"}
	if !sameOps(got, want) {
		t.Errorf("opcodes = %v, want %v", got, want)
	}
}

// Scenario 5: `PI = 3.14; PI` where PI is a non-simple constant — every
// reference site emits the CONST_INITIALIZED/BRANCH_IF/CALL/SET_CONST guard
// before GET_CONST, including the second reference.
func TestScenario5LazyConstantGuardRepeatsAtEveryReferenceSite(t *testing.T) {
	sess := newTestSession()
	floatT := &typesystem.SimpleType{KindValue: typesystem.KindFloat, NameValue: "Float64", Aligned: 8, Inner: 8}

	entry := constpool.Entry{Kind: constpool.KindConst, Name: "PI"}
	sess.Consts.Declare(entry, floatT, nil)

	want := []string{"CONST_INITIALIZED", "BRANCH_IF", "CALL", "SET_CONST", "GET_CONST"}

	for i := 0; i < 2; i++ {
		u := newUnit(sess, nil, nil)
		ref := &ast.Path{Name: "PI"}
		ref.T = floatT
		if err := u.lower(ref, value()); err != nil {
			t.Fatal(err)
		}
		got := opNames(u.buf.Bytes())
		if !sameOps(got, want) {
			t.Errorf("reference %d opcodes = %v, want %v", i, got, want)
		}
	}
}

// Scenario 6: a call with two candidate defs narrowing on the same
// argument synthesizes a cached multidispatch def; the call site itself
// still lowers to a single CALL (against the synthesized trampoline, not
// against either candidate directly).
func TestScenario6MultidispatchCallSiteIsSingleCall(t *testing.T) {
	sess := newTestSession()
	strT := &typesystem.SimpleType{KindValue: typesystem.KindReference, NameValue: "String", Aligned: 8, Inner: 8}

	intCandidate := &ast.Def{Selector: "foo", Params: []ast.Param{{Name: "x", Type: i32Type()}}, Body: &ast.NilLiteral{}}
	intCandidate.T = i32Type()
	strCandidate := &ast.Def{Selector: "foo", Params: []ast.Param{{Name: "x", Type: strT}}, Body: &ast.NilLiteral{}}
	strCandidate.T = i32Type()

	arg := &ast.NumberLiteral{Raw: "7"}
	arg.T = i32Type()
	call := &ast.Call{Name: "foo", Args: []ast.Node{arg}, TargetDefs: []*ast.Def{intCandidate, strCandidate}}
	call.T = i32Type()

	u := newUnit(sess, nil, nil)
	if err := u.lowerCall(call, discard()); err != nil {
		t.Fatal(err)
	}
	got := opNames(u.buf.Bytes())
	n := 0
	for _, name := range got {
		if name == "CALL" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("opcodes = %v, want exactly one CALL at the call site", got)
	}
	if len(sess.Dispatch) != 1 {
		t.Errorf("len(sess.Dispatch) = %d, want the synthesized trampoline cached once", len(sess.Dispatch))
	}
}

func sameOps(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
