// Package dispatch implements the C5 Multidispatch Trampoline Builder:
// given a call with several candidate target defs, it synthesizes a single
// dispatch def whose body tests the runtime type-id/union-tag of the
// receiver and arguments against each candidate's parameter types in turn,
// invoking the first match (§4.5). The synthesized def is plain AST — it is
// lowered by the `lower` package like any other def, exactly as the spec
// requires ("the synthesized def is then lowered like any other
// CompiledDef"), so this package has no bytecode dependency of its own. It
// is grounded on the teacher's SymbolDispatch registry (vm/symbol_dispatch.go)
// generalized from "one marker byte -> one class" to "cascade of is_a?
// checks -> first matching def", and on the is_a?/branch shape already
// present in §4.7's IsA rule.
package dispatch

import (
	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/typesystem"
)

// Candidate is one target def a polymorphic call might resolve to, along
// with the parameter types the receiver/arguments must match for it to be
// selected.
type Candidate struct {
	Def    *ast.Def
	Params []typesystem.Type // parallel to call argument positions (receiver excluded)
}

// Key identifies a synthesized dispatch def by its candidate set, so
// repeated calls with the same candidate list reuse the same trampoline
// the way defcache reuses any other def (§4.5, §4.6).
type Key struct {
	Selector string
	Arity    int
}

// Build synthesizes a dispatch def. candidates must be ordered
// most-specific-first — the frontend guarantees this ordering (§4.5); the
// cascade tie-breaks on source order, testing candidates[0] first. oracle
// merges the candidates' own return types into the synthesized def's
// declared type (§9 merge_block_break_type's sibling case: a dispatch def's
// observable return type is the union of what every candidate can return),
// so the def carries a real Type() instead of leaving it Go-nil for
// lower.LowerDef's implicit-return emission to dereference.
//
// The synthesized body has the shape:
//
//	if arg0 is_a? candidates[0].Params[0] && ... { call candidates[0] }
//	else if arg0 is_a? candidates[1].Params[0] && ... { call candidates[1] }
//	else ... else { unreachable }
func Build(selector string, receiverType typesystem.Type, argNames []string, candidates []Candidate, oracle typesystem.Oracle) *ast.Def {
	params := make([]ast.Param, 0, len(argNames))
	vars := make(map[string]typesystem.Type, len(argNames))
	for i, name := range argNames {
		var t typesystem.Type
		if len(candidates) > 0 && i < len(candidates[0].Params) {
			t = candidates[0].Params[i]
		}
		params = append(params, ast.Param{Name: name, Type: t})
		vars[name] = t
	}

	retTypes := make([]typesystem.Type, len(candidates))
	for i, c := range candidates {
		retTypes[i] = c.Def.Type()
	}
	retType := oracle.Merge(retTypes...)

	body := buildCascade(argNames, candidates, 0, retType)

	def := &ast.Def{
		Owner:    receiverType,
		Selector: selector,
		Params:   params,
		Vars:     vars,
		Body:     body,
	}
	def.T = retType
	return def
}

// buildCascade builds one step of the cascade. retType is the dispatch
// def's own merged return type (computed once in Build); every If node and
// candidate call in the cascade is stamped with it, or with its own return
// type in the call's case, so the upcast each branch needs to reach the
// shared retType has real types to work from instead of silently no-oping
// on a Go-nil Type() (§9 merge-block-break-type's sibling case applied
// branch by branch).
func buildCascade(argNames []string, candidates []Candidate, i int, retType typesystem.Type) ast.Node {
	if i >= len(candidates) {
		// No candidate matched: the frontend's static typing guarantees
		// this is unreachable at runtime; emit the placeholder the spec
		// assigns to proven-unreachable code.
		return &ast.Unreachable{}
	}

	cand := candidates[i]
	cond := guardFor(argNames, cand)
	call := &ast.Call{
		Receiver:   &ast.Var{Name: "self"},
		Name:       cand.Def.Selector,
		Args:       varRefs(argNames),
		TargetDefs: []*ast.Def{cand.Def},
	}
	call.T = cand.Def.Type()

	elseBranch := buildCascade(argNames, candidates, i+1, retType)

	var ifNode *ast.If
	if cond == nil {
		// No guard needed (candidate accepts anything remaining, e.g. the
		// last, widest candidate) — still emit it under the else chain so
		// source-order tie-breaking is preserved.
		ifNode = &ast.If{Cond: &ast.BoolLiteral{Value: true}, Then: call, Else: elseBranch}
	} else {
		ifNode = &ast.If{Cond: cond, Then: call, Else: elseBranch}
	}
	ifNode.T = retType
	return ifNode
}

// guardFor builds the conjunction of is_a? checks for one candidate's
// parameter types, or nil if the candidate has no parameter types to test
// (every one is nil or missing). A parameter type equal to the declared
// argument type still gets its own is_a? check.
func guardFor(argNames []string, cand Candidate) ast.Node {
	var checks []ast.Node
	for i, name := range argNames {
		if i >= len(cand.Params) || cand.Params[i] == nil {
			continue
		}
		checks = append(checks, &ast.IsA{Subject: &ast.Var{Name: name}, Target: cand.Params[i]})
	}
	return conjoin(checks)
}

// conjoin lowers a list of is_a? checks to a short-circuiting a && b && ...
// chain built from plain If nodes rather than a call to a nonexistent "&&"
// def (there is no such target def for the lowering pass to resolve). The
// last unmatched check also stands in for the whole conjunction's false
// result on the short-circuit path, so the chain never needs a separate
// boolean constant whose stack width would have to be reconciled with an
// is_a? check's.
func conjoin(checks []ast.Node) ast.Node {
	if len(checks) == 0 {
		return nil
	}
	if len(checks) == 1 {
		return checks[0]
	}
	return &ast.If{Cond: checks[0], Then: conjoin(checks[1:]), Else: checks[0]}
}

func varRefs(names []string) []ast.Node {
	refs := make([]ast.Node, len(names))
	for i, n := range names {
		refs[i] = &ast.Var{Name: n}
	}
	return refs
}
