// Package defcache implements the C6 Compiled-Def Cache: per-target-def
// bytecode, arg frame size, and local-var map, cached across call sites
// unless the def contains a block (§4.6). It is grounded on the teacher's
// CompiledMethod/CompiledMethodBuilder (vm/compiled_method.go), generalized
// from "one bytecode blob per method, found via class+selector lookup" to
// "one CompiledDef per target-def identity, found via a cache keyed on
// that identity, with an explicit cache-miss builder".
package defcache

import (
	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/frame"
)

// CompiledDef is the triple described in §3: instruction buffer, node-index
// map, local-var frame, and args_bytesize. The invariant it must satisfy —
// executed with args_bytesize bytes prepopulated on the stack, it produces
// exactly one value of def.Type at the top on normal completion — is
// enforced by the lowering pass that builds it, not by this package.
type CompiledDef struct {
	Def         *ast.Def
	Bytecode    []byte
	NodeMap     map[int]ast.Node
	Frame       *frame.Frame
	ArgsBytesize uint32

	// HasBlock marks a def that takes a block (its body yields), compiled
	// against one caller's inlined block. Per §4.6 such defs are
	// never cached — this field exists so callers can assert the
	// invariant rather than silently caching something that shouldn't be.
	HasBlock bool
}

// CompiledBlock is a CompiledDef inlined into its caller (§3): it adds the
// slice of the caller's frame used exclusively by the block's own locals
// and the block's nesting level. One CompiledBlock exists per enclosing
// caller+block pair — never shared across call sites (§4.6, P5).
type CompiledBlock struct {
	Block              *ast.Block
	Bytecode           []byte
	NodeMap            map[int]ast.Node
	LocalsBytesizeStart uint32
	LocalsBytesizeEnd   uint32
	BlockLevel          int
}

// Cache maps target-def identity to its compiled bytecode, reused across
// call sites unless the def takes a block (§4.6, P4).
type Cache struct {
	byDef map[*ast.Def]*CompiledDef
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{byDef: make(map[*ast.Def]*CompiledDef)}
}

// Lookup returns the cached CompiledDef for def, if any.
func (c *Cache) Lookup(def *ast.Def) (*CompiledDef, bool) {
	cd, ok := c.byDef[def]
	return cd, ok
}

// Store records cd under its Def's identity. Callers must not call Store
// for a def whose HasBlock is true (§4.6) — doing so would let a later
// call site reuse another call site's inlined block bytecode, violating
// P5. Store panics in that case rather than silently caching it.
func (c *Cache) Store(cd *CompiledDef) {
	if cd.HasBlock {
		panic("defcache: attempted to cache a CompiledDef whose def takes a block")
	}
	c.byDef[cd.Def] = cd
}

// Size reports how many defs are currently cached, for tests asserting
// P4/P5 reuse behavior.
func (c *Cache) Size() int { return len(c.byDef) }
