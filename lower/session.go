// Package lower implements the AST Lowering pass (C7): the visitor that
// walks a type-annotated AST once and emits the corresponding bytecode
// stream, consulting the frame, constant table, dispatch builder, def
// cache, and value-width adapter along the way. It is grounded on the
// teacher's compiler.Compiler (compiler/codegen.go) and the absolute-offset
// bytecode.Compiler (pkg/bytecode/compiler.go), generalized from "Smalltalk
// message send to a single vm.CompiledMethod" to "type-annotated Call node
// to CompiledDef, with union boxing and struct-pointer discipline".
package lower

import (
	"github.com/google/uuid"

	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/config"
	"github.com/chazu/corelower/constpool"
	"github.com/chazu/corelower/defcache"
	"github.com/chazu/corelower/dispatch"
	"github.com/chazu/corelower/ffi"
	"github.com/chazu/corelower/typesystem"
)

// Session is the Context described in §5: the set of resources shared
// across every top-level expression (REPL line, file, constant
// initializer) compiled within one process. It is append-only — the only
// mutation during a compile is insertion into one of its tables — and is
// not safe for concurrent use; an embedder serializing multiple REPL users
// onto one Session must hold an exclusive lock for the duration of a
// compile, per §5.
type Session struct {
	ID uuid.UUID

	Oracle typesystem.Oracle
	Opts   *config.Options

	Consts    *constpool.Table
	ClassVars *constpool.Table
	Defs      *defcache.Cache
	// Dispatch caches synthesized multidispatch trampolines (C5) by
	// candidate set, so repeated calls against the same candidate list
	// reuse one synthesized *ast.Def rather than re-synthesizing and
	// re-lowering the cascade every time (§4.5/§4.6).
	Dispatch map[dispatch.Key]*ast.Def
	Libs     *ffi.Table

	// GCRoots holds string/FFI identities that must outlive any single
	// compile (interned strings, LibFunction descriptors referenced by
	// emitted LIB_CALL instructions) — append-only for the session's
	// lifetime, mirroring §5's "string/FFI GC-root list".
	GCRoots []interface{}

	primNames []string
	primIndex map[string]uint32

	strings   []string
	stringIdx map[string]uint32
	symbols   []string
	symbolIdx map[string]uint32

	// defTable/defHandles and blocks are the "small integer handles into a
	// side table owned by the Context" §9 calls for, replacing the
	// source's object_id-embedding for CompiledDef/CompiledBlock operands.
	defTable   []*defcache.CompiledDef
	defHandles map[*defcache.CompiledDef]uint32
	blocks     []*defcache.CompiledBlock

	// libTable/libHandles back LIB_CALL's descriptor operand (§4.7 "FFI
	// call"). Fixed-arity signatures are deduped through libHandles; a
	// variadic LibFunction is never reused, since ffi.Table itself never
	// dedups variadic entries.
	libTable   []*ffi.LibFunction
	libHandles map[*ffi.LibFunction]uint32

	// unpackSpecs backs UNPACK_TUPLE's two operands (§4.7 "Yield"): each
	// entry is a flat list of type ids the interpreter reads to destructure
	// a tuple argument into a multi-arg block's locals.
	unpackSpecs [][]uint32
}

// NewSession creates a Session with a fresh correlation id, the supplied
// type-system oracle, and the supplied options (config.Default() when opts
// is nil). A Session's tables persist across every REPL line, file compile,
// or constant initializer lowered against it (§5), so a long-running host
// shares one *Session rather than constructing one per line.
func NewSession(oracle typesystem.Oracle, opts *config.Options) *Session {
	if opts == nil {
		opts = config.Default()
	}
	return &Session{
		ID:        uuid.New(),
		Oracle:    oracle,
		Opts:      opts,
		Consts:    constpool.New(),
		ClassVars: constpool.New(),
		Defs:       defcache.New(),
		Dispatch:   make(map[dispatch.Key]*ast.Def),
		Libs:       ffi.New(),
		primIndex:  make(map[string]uint32),
		stringIdx:  make(map[string]uint32),
		symbolIdx:  make(map[string]uint32),
		defHandles: make(map[*defcache.CompiledDef]uint32),
		libHandles: make(map[*ffi.LibFunction]uint32),
	}
}

// handleForDef returns cd's stable operand handle, registering it on first
// use. CALL/CALL_WITH_BLOCK's `cd` operand is this handle, not a pointer
// (§9).
func (s *Session) handleForDef(cd *defcache.CompiledDef) uint32 {
	if h, ok := s.defHandles[cd]; ok {
		return h
	}
	h := uint32(len(s.defTable))
	s.defTable = append(s.defTable, cd)
	s.defHandles[cd] = h
	return h
}

// registerBlock assigns a fresh handle to a just-built CompiledBlock.
// Unlike CompiledDef handles, these are never looked up again by identity
// — each call site produces its own CompiledBlock (P5) — so no dedup map
// is kept.
func (s *Session) registerBlock(cb *defcache.CompiledBlock) uint32 {
	h := uint32(len(s.blocks))
	s.blocks = append(s.blocks, cb)
	return h
}

// registerLibFunction assigns (or reuses) a LIB_CALL descriptor handle for
// lf, deduping fixed-arity signatures by the *ffi.LibFunction identity
// ffi.Table already hands back for repeated Build calls.
func (s *Session) registerLibFunction(lf *ffi.LibFunction) uint32 {
	if h, ok := s.libHandles[lf]; ok {
		return h
	}
	h := uint32(len(s.libTable))
	s.libTable = append(s.libTable, lf)
	if !lf.Variadic {
		s.libHandles[lf] = h
	}
	return h
}

// registerUnpackSpec stores one UNPACK_TUPLE operand payload, returning its
// handle.
func (s *Session) registerUnpackSpec(ids []uint32) uint32 {
	h := uint32(len(s.unpackSpecs))
	s.unpackSpecs = append(s.unpackSpecs, ids)
	return h
}

// internString assigns (or reuses) the interned-object index a
// StringLiteral's pointer operand refers to (§4.7 "Literals"). The backing
// string is appended to GCRoots so it survives for the process lifetime,
// matching §5's "string/FFI GC-root list".
func (s *Session) internString(v string) uint32 {
	if idx, ok := s.stringIdx[v]; ok {
		return idx
	}
	idx := uint32(len(s.strings))
	s.strings = append(s.strings, v)
	s.stringIdx[v] = idx
	s.root(v)
	return idx
}

// internSymbol assigns (or reuses) a symbol's index in the symbol table.
func (s *Session) internSymbol(v string) uint32 {
	if idx, ok := s.symbolIdx[v]; ok {
		return idx
	}
	idx := uint32(len(s.symbols))
	s.symbols = append(s.symbols, v)
	s.symbolIdx[v] = idx
	return idx
}

// internPrimitiveName assigns (or reuses) an index for a primitive def's
// name, the operand OpPrimitive carries (§6's "representative" opcode list
// does not enumerate one opcode per arithmetic/pointer/allocation
// primitive — see bytecode.OpPrimitive).
func (s *Session) internPrimitiveName(name string) uint32 {
	if idx, ok := s.primIndex[name]; ok {
		return idx
	}
	idx := uint32(len(s.primNames))
	s.primNames = append(s.primNames, name)
	s.primIndex[name] = idx
	return idx
}

// root adds a value to the session's GC-root list, returning it unchanged
// for call sites that want to root-and-continue in one expression.
func (s *Session) root(v interface{}) interface{} {
	s.GCRoots = append(s.GCRoots, v)
	return v
}
