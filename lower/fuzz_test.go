package lower

import (
	"testing"

	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/typesystem"
)

// FuzzLower mirrors the teacher's FuzzParser/FuzzSemantic style (§ compiler/
// fuzz_test.go: feed arbitrary input through the pass, recover, fail only on
// a panic) adapted to this module's shape: there is no lexer/parser to feed
// source text into, so the fuzzed byte stream instead drives a small
// synthetic-AST generator whose node types and nesting are read directly off
// the corpus bytes. Every generated leaf carries a concrete type (the
// frontend's job, out of scope here, per spec.md §1) — the fuzzer is after
// panics in the lowering pass over arbitrarily-shaped but well-typed trees,
// especially the nested if/while and variable-arity multidispatch
// shapes the review comments were about, not after the separately-understood
// gap of an untyped frontend node reaching a compiler-internal dereference.
func FuzzLower(f *testing.F) {
	seeds := [][]byte{
		{},
		{0, 1, 2, 3},
		{4, 4, 4, 4, 4, 4, 4, 4},
		{5, 1, 2, 0, 0, 0, 0},
		{6, 1, 1, 1, 1},
		{2, 4, 2, 3, 1, 0},
		{7, 1, 2, 3, 4, 5, 6, 7, 8},
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Lower panicked on fuzz input %v: %v", data, r)
			}
		}()

		b := &fuzzBuilder{data: data}
		sess := newTestSession()
		def := &ast.Def{Selector: "__fuzz__", Body: b.node(6)}
		def.T = i32Type()
		_, _ = sess.LowerDef(def)
	})
}

// fuzzBuilder turns a byte stream into a bounded small AST, consuming one
// byte per decision point so the same input always builds the same tree
// (required for fuzz corpus replay).
type fuzzBuilder struct {
	data []byte
	pos  int
}

func (b *fuzzBuilder) next() byte {
	if b.pos >= len(b.data) {
		return 0
	}
	v := b.data[b.pos]
	b.pos++
	return v
}

func (b *fuzzBuilder) node(depth int) ast.Node {
	if depth <= 0 {
		return b.leaf()
	}
	switch b.next() % 7 {
	case 0, 1:
		return b.leaf()
	case 2:
		n := &ast.If{Cond: b.leaf(), Then: b.node(depth - 1), Else: b.node(depth - 1)}
		n.T = i32Type()
		return n
	case 3:
		n := &ast.While{Cond: b.leaf(), Body: b.node(depth - 1)}
		n.T = i32Type()
		return n
	case 4:
		return b.call(depth, 1)
	case 5:
		return b.call(depth, 2)
	case 6:
		val := &ast.NumberLiteral{Raw: "1"}
		val.T = i32Type()
		n := &ast.Assign{Target: &ast.Var{Name: "fz"}, Value: val}
		n.T = i32Type()
		return n
	}
	return b.leaf()
}

func (b *fuzzBuilder) leaf() ast.Node {
	switch b.next() % 3 {
	case 0:
		lit := &ast.NumberLiteral{Raw: "1"}
		lit.T = i32Type()
		return lit
	case 1:
		val := &ast.NumberLiteral{Raw: "0"}
		val.T = i32Type()
		n := &ast.Assign{Target: &ast.Var{Name: "fz"}, Value: val}
		n.T = i32Type()
		return n
	default:
		lit := &ast.BoolLiteral{Value: b.next()%2 == 0}
		lit.T = &typesystem.SimpleType{KindValue: typesystem.KindPrimitive, NameValue: "Bool", Aligned: 8, Inner: 8}
		return lit
	}
}

// call builds a Call with nCandidates target defs. Each candidate narrows on
// every one of its arity arguments, so nCandidates > 1 with arity > 1
// exercises dispatch.Build's guardFor conjunction (§4.5, the review's
// short-circuit-&&-without-a-target-def fix) as well as the trampoline
// synthesis itself.
func (b *fuzzBuilder) call(depth, nCandidates int) ast.Node {
	argT := i32Type()
	strT := &typesystem.SimpleType{KindValue: typesystem.KindReference, NameValue: "String", Aligned: 8, Inner: 8}
	arity := 1
	if nCandidates > 1 {
		arity = 2
	}

	defs := make([]*ast.Def, nCandidates)
	for i := range defs {
		params := make([]ast.Param, arity)
		for j := range params {
			pt := argT
			if i%2 == 1 {
				pt = strT
			}
			params[j] = ast.Param{Name: string(rune('a' + j)), Type: pt}
		}
		d := &ast.Def{Selector: "fz_call", Params: params, Body: &ast.NilLiteral{}}
		d.T = i32Type()
		defs[i] = d
	}

	args := make([]ast.Node, arity)
	for j := range args {
		lit := &ast.NumberLiteral{Raw: "3"}
		lit.T = i32Type()
		args[j] = lit
	}
	call := &ast.Call{Name: "fz_call", Args: args, TargetDefs: defs}
	call.T = i32Type()
	return call
}
