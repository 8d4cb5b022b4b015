package lower

import (
	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/typesystem"
)

// state is the explicit emitter-state struct §9 asks for in place of the
// source's ambient wants_value/wants_struct_pointer fields: both flags are
// carried by value, so a recursive call that needs different flags simply
// passes a new state rather than mutating and restoring shared fields.
type state struct {
	wantsValue        bool
	wantsStructPointer bool
}

// value returns a state wanting exactly a pushed value.
func value() state { return state{wantsValue: true} }

// discard returns a state wanting no pushed value.
func discard() state { return state{} }

// structPointer returns a state wanting a struct-pointer result (§4.7
// "struct receiver rules").
func structPointer() state { return state{wantsValue: true, wantsStructPointer: true} }

// withValue returns a copy of s with wantsValue overridden.
func (s state) withValue(v bool) state { s.wantsValue = v; return s }

// withStructPointer returns a copy of s with wantsStructPointer overridden.
func (s state) withStructPointer(v bool) state { s.wantsStructPointer = v; return s }

// whileCtx is one entry of the InWhile control-flow context (§4.7 state
// machine, §9 "reify @while/@while_breaks/@while_nexts as a stack"). breaks
// and nexts accumulate patch locations to be back-patched once the loop's
// exit and condition-retest sites are known.
type whileCtx struct {
	breaks []int
	nexts  []int
	typ    typesystem.Type // the while expression's merged type, for break upcasts
}

// blockCtx is one entry of the InBlock control-flow context: the block
// currently being compiled (inlined) and the def it will ultimately return
// from via LEAVE_DEF (§4.7 Return/Break/Next rules).
type blockCtx struct {
	block     *ast.Block
	targetDef *ast.Def
	level     int
}

// yieldInfo is the (block, handle) pair a unit compiling a block-accepting
// def's own body carries so Yield can emit CALL_BLOCK against the right
// call-site CompiledBlock. It is distinct from blockCtx: blockCtx governs
// Break/Next/Return semantics while literally compiling a block's body,
// whereas yieldInfo is consulted only by Yield, while compiling the
// containing def's ordinary body (not the block body itself).
type yieldInfo struct {
	block  *ast.Block
	handle uint32
}

// ctxFrame is one entry of the combined control-flow context stack: exactly
// one of while/block is set, tagging which kind of context this nesting
// level introduced.
type ctxFrame struct {
	while *whileCtx
	block *blockCtx
}

// ctxStack is the reconstructed stack of (while, block) contexts described
// in §5: "a stack of (while_context, block_context, wants_value,
// wants_struct_pointer, block_level) is reconstructed on each recursive
// emit via save/restore". The wants_value/wants_struct_pointer portion is
// carried by the state type above instead, passed explicitly rather than
// stored here, since Go's call stack already performs the save/restore for
// plain parameters.
//
// whiles and blocks are kept separate from the combined frames slice so
// currentWhile/currentBlock can still answer "what's the innermost while /
// block, regardless of what's interleaved above it" for callers (like
// returnType's merge-block-break-type) that genuinely want that, distinct
// from Break/Next's "whichever context is lexically innermost" rule, which
// consults frames instead.
type ctxStack struct {
	frames []ctxFrame
	whiles []*whileCtx
	blocks []*blockCtx
}

func (c *ctxStack) pushWhile(typ typesystem.Type) *whileCtx {
	w := &whileCtx{typ: typ}
	c.whiles = append(c.whiles, w)
	c.frames = append(c.frames, ctxFrame{while: w})
	return w
}

func (c *ctxStack) popWhile() {
	c.whiles = c.whiles[:len(c.whiles)-1]
	c.frames = c.frames[:len(c.frames)-1]
}

func (c *ctxStack) currentWhile() *whileCtx {
	if len(c.whiles) == 0 {
		return nil
	}
	return c.whiles[len(c.whiles)-1]
}

func (c *ctxStack) pushBlock(b *ast.Block, def *ast.Def, level int) *blockCtx {
	bc := &blockCtx{block: b, targetDef: def, level: level}
	c.blocks = append(c.blocks, bc)
	c.frames = append(c.frames, ctxFrame{block: bc})
	return bc
}

func (c *ctxStack) popBlock() {
	c.blocks = c.blocks[:len(c.blocks)-1]
	c.frames = c.frames[:len(c.frames)-1]
}

func (c *ctxStack) currentBlock() *blockCtx {
	if len(c.blocks) == 0 {
		return nil
	}
	return c.blocks[len(c.blocks)-1]
}

// inBlock reports whether any compiling block is currently open, anywhere
// in the nesting — used by leaveOpcode, which needs to know
// whether a LEAVE must unwind out of an inlined block at all, not which
// context is innermost.
func (c *ctxStack) inBlock() bool { return len(c.blocks) > 0 }

// innermost returns the most recently pushed frame — while or block,
// whichever was opened last — or nil at top-of-def scope. Break/Next use
// this instead of currentWhile/inBlock so a while nested inside a
// compiling block (or vice versa) resolves against whichever one actually
// lexically contains it.
func (c *ctxStack) innermost() *ctxFrame {
	if len(c.frames) == 0 {
		return nil
	}
	return &c.frames[len(c.frames)-1]
}
