// Package ffi assembles the call descriptors the C7 AST Lowering pass
// references when emitting LIB_CALL instructions (§4.7 "FFI call"). The
// foreign-function invocation mechanism itself is an external collaborator
// (§1) — this package only serializes argument byte sizes/FFI type codes
// and builds or looks up a LibFunction descriptor; it never performs a
// call. Variadic descriptors are parameterized by actual argument count
// and types and are therefore never cached (§4.7).
package ffi

import "github.com/chazu/corelower/typesystem"

// Arg is one FFI call argument's byte size and type code.
type Arg struct {
	Size uint32
	Type typesystem.FFIType
}

// LibFunction is the descriptor a LIB_CALL instruction references. It is
// opaque to the interpreter beyond what it needs to marshal arguments and
// locate the foreign symbol — this core does not implement the actual
// dynamic-linking lookup.
type LibFunction struct {
	Symbol     string
	Args       []Arg
	ReturnType Arg
	Variadic   bool
}

// key identifies a fixed (non-variadic) LibFunction for caching purposes.
type key struct {
	symbol  string
	argSig  string
}

// Table caches fixed LibFunction descriptors by symbol+signature. Variadic
// descriptors are never stored here — Build returns a fresh one each time.
type Table struct {
	fixed map[key]*LibFunction
}

// New creates an empty descriptor table.
func New() *Table {
	return &Table{fixed: make(map[key]*LibFunction)}
}

// Build returns the descriptor for symbol/args/returnType/variadic,
// reusing a cached one for fixed (non-variadic) signatures.
func (t *Table) Build(symbol string, args []Arg, returnType Arg, variadic bool) *LibFunction {
	if variadic {
		return &LibFunction{Symbol: symbol, Args: args, ReturnType: returnType, Variadic: true}
	}
	k := key{symbol: symbol, argSig: signature(args)}
	if fn, ok := t.fixed[k]; ok {
		return fn
	}
	fn := &LibFunction{Symbol: symbol, Args: args, ReturnType: returnType}
	t.fixed[k] = fn
	return fn
}

func signature(args []Arg) string {
	buf := make([]byte, 0, len(args)*2)
	for _, a := range args {
		buf = append(buf, byte(a.Type), byte(a.Size))
	}
	return string(buf)
}

// ArgFor computes the Arg descriptor for a Type crossing into FFI space.
func ArgFor(t typesystem.Type) Arg {
	if t == nil {
		return Arg{Size: 0, Type: typesystem.FFIVoid}
	}
	return Arg{Size: t.AlignedSize(), Type: t.FFIType()}
}
