package dispatch

import (
	"testing"

	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/typesystem"
)

// ---------------------------------------------------------------------------
// Build tests
// ---------------------------------------------------------------------------

func TestBuildSynthesizesParamsFromFirstCandidate(t *testing.T) {
	intT := &typesystem.SimpleType{NameValue: "Int32"}
	strT := &typesystem.SimpleType{NameValue: "String"}
	receiver := &typesystem.SimpleType{NameValue: "Foo"}

	candidates := []Candidate{
		{Def: &ast.Def{Selector: "bar"}, Params: []typesystem.Type{intT}},
		{Def: &ast.Def{Selector: "bar"}, Params: []typesystem.Type{strT}},
	}

	def := Build("bar", receiver, []string{"x"}, candidates, &typesystem.SimpleOracle{})
	if def.Owner != receiver {
		t.Errorf("Owner = %v, want receiver", def.Owner)
	}
	if def.Selector != "bar" {
		t.Errorf("Selector = %q, want bar", def.Selector)
	}
	if len(def.Params) != 1 || def.Params[0].Type != intT {
		t.Errorf("Params = %+v, want one param typed from candidates[0]", def.Params)
	}
	if def.Type() == nil {
		t.Errorf("Type() = nil, want the oracle-merged return type")
	}
}

func TestBuildCascadesMostSpecificFirst(t *testing.T) {
	intT := &typesystem.SimpleType{NameValue: "Int32"}
	strT := &typesystem.SimpleType{NameValue: "String"}
	receiver := &typesystem.SimpleType{NameValue: "Foo"}

	intDef := &ast.Def{Selector: "bar"}
	strDef := &ast.Def{Selector: "bar"}
	candidates := []Candidate{
		{Def: intDef, Params: []typesystem.Type{intT}},
		{Def: strDef, Params: []typesystem.Type{strT}},
	}

	def := Build("bar", receiver, []string{"x"}, candidates, &typesystem.SimpleOracle{})

	top, ok := def.Body.(*ast.If)
	if !ok {
		t.Fatalf("Body = %T, want *ast.If", def.Body)
	}
	guard, ok := top.Cond.(*ast.IsA)
	if !ok {
		t.Fatalf("top Cond = %T, want *ast.IsA", top.Cond)
	}
	if guard.Target != intT {
		t.Errorf("top guard target = %v, want the first (most specific) candidate's type", guard.Target)
	}
	call, ok := top.Then.(*ast.Call)
	if !ok || call.TargetDefs[0] != intDef {
		t.Fatalf("top Then = %+v, want a call to the first candidate", top.Then)
	}

	next, ok := top.Else.(*ast.If)
	if !ok {
		t.Fatalf("Else = %T, want the next cascade step", top.Else)
	}
	call2, ok := next.Then.(*ast.Call)
	if !ok || call2.TargetDefs[0] != strDef {
		t.Fatalf("second Then = %+v, want a call to the second candidate", next.Then)
	}
}

func TestBuildTerminatesInUnreachable(t *testing.T) {
	intT := &typesystem.SimpleType{NameValue: "Int32"}
	receiver := &typesystem.SimpleType{NameValue: "Foo"}
	candidates := []Candidate{
		{Def: &ast.Def{Selector: "bar"}, Params: []typesystem.Type{intT}},
	}
	def := Build("bar", receiver, []string{"x"}, candidates, &typesystem.SimpleOracle{})
	top := def.Body.(*ast.If)
	if _, ok := top.Else.(*ast.Unreachable); !ok {
		t.Errorf("final Else = %T, want *ast.Unreachable", top.Else)
	}
}

func TestBuildWithNoCandidatesIsImmediatelyUnreachable(t *testing.T) {
	receiver := &typesystem.SimpleType{NameValue: "Foo"}
	def := Build("bar", receiver, nil, nil, &typesystem.SimpleOracle{})
	if _, ok := def.Body.(*ast.Unreachable); !ok {
		t.Errorf("Body = %T, want *ast.Unreachable", def.Body)
	}
}

func TestGuardForTwoNarrowingParamsConjoinsWithoutAnAndDef(t *testing.T) {
	intT := &typesystem.SimpleType{NameValue: "Int32"}
	strT := &typesystem.SimpleType{NameValue: "String"}
	receiver := &typesystem.SimpleType{NameValue: "Foo"}

	pairDef := &ast.Def{Selector: "zip"}
	candidates := []Candidate{
		{Def: pairDef, Params: []typesystem.Type{intT, strT}},
	}

	def := Build("zip", receiver, []string{"a", "b"}, candidates, &typesystem.SimpleOracle{})
	top := def.Body.(*ast.If)

	conj, ok := top.Cond.(*ast.If)
	if !ok {
		t.Fatalf("Cond = %T, want a nested *ast.If conjunction of both is_a? checks", top.Cond)
	}
	first, ok := conj.Cond.(*ast.IsA)
	if !ok || first.Target != intT {
		t.Fatalf("conjunction Cond = %+v, want the first param's is_a? check", conj.Cond)
	}
	second, ok := conj.Then.(*ast.IsA)
	if !ok || second.Target != strT {
		t.Fatalf("conjunction Then = %+v, want the second param's is_a? check", conj.Then)
	}
	if conj.Else != conj.Cond {
		t.Errorf("conjunction Else = %+v, want the same node as Cond (reused false result)", conj.Else)
	}
}
