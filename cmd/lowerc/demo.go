package main

import (
	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/typesystem"
)

// demoDef builds `def identity(x : Int32) : Int32; return x; end` by hand,
// standing in for the parser/type-checker frontend this core does not ship.
func demoDef() *ast.Def {
	i32 := &typesystem.SimpleType{
		KindValue: typesystem.KindInteger,
		NameValue: "Int32",
		Aligned:   4,
		Inner:     4,
		FFI:       typesystem.FFIInt32,
	}
	x := &ast.Var{Name: "x"}
	x.T = i32

	ret := &ast.Return{Value: x}

	def := &ast.Def{
		Selector: "identity",
		Params:   []ast.Param{{Name: "x", Type: i32}},
		Body:     ret,
	}
	def.T = i32
	return def
}
