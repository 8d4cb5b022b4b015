package lower

import (
	"github.com/chazu/corelower/adapter"
	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/bytecode"
	"github.com/chazu/corelower/defcache"
	"github.com/chazu/corelower/diag"
	"github.com/chazu/corelower/frame"
	"github.com/chazu/corelower/typesystem"
)

// unit is the per-compile working state for one def or top-level
// expression: its own instruction buffer and frame, plus the session it
// borrows shared tables from. One unit is created per CompiledDef/
// CompiledBlock build (§5 "entered per top-level expression").
type unit struct {
	sess *Session
	buf  *bytecode.Buffer
	fr   *frame.Frame
	ctx  *ctxStack

	owner   typesystem.Type // self's static type, nil at program scope
	defType typesystem.Type // the enclosing def's declared return type

	// yieldTarget is set while compiling the ordinary body of a def that
	// accepts a block, so a Yield node inside it knows which call-site
	// CompiledBlock to invoke (§4.7 "Yield"). nil everywhere else.
	yieldTarget *yieldInfo
}

func newUnit(sess *Session, owner typesystem.Type, defType typesystem.Type) *unit {
	return &unit{
		sess:    sess,
		buf:     bytecode.New(),
		fr:      frame.New(),
		ctx:     &ctxStack{},
		owner:   owner,
		defType: defType,
	}
}

func spanOf(n ast.Node) diag.Span {
	p := n.Pos()
	return diag.Span{Line: p.Line, Column: p.Column}
}

// LowerDef lowers def to a CompiledDef, reusing a cached one when the def
// has already been compiled and does not take a block (§4.6, C6).
func (s *Session) LowerDef(def *ast.Def) (*defcache.CompiledDef, error) {
	if cd, ok := s.Defs.Lookup(def); ok {
		return cd, nil
	}

	if def.IsPrimitive {
		return s.buildPrimitive(def)
	}

	hasBlock := defHasBlockParam(def)
	u := newUnit(s, def.Owner, def.Type())
	argsBytesize := u.declareParams(def)

	if def.Body != nil {
		if err := u.lower(def.Body, u.returnState()); err != nil {
			return nil, err
		}
	}
	u.emitReturn(def.Body)

	cd := &defcache.CompiledDef{
		Def:          def,
		Bytecode:     u.buf.Bytes(),
		NodeMap:      u.buf.NodeMap,
		Frame:        u.fr,
		ArgsBytesize: argsBytesize,
		HasBlock:     hasBlock,
	}
	if !hasBlock {
		s.Defs.Store(cd)
	}
	return cd, nil
}

// returnState is the state a def's top-level body is lowered with: it
// always wants a value (the def must leave exactly one value of its
// return type on normal completion, per §3's CompiledDef invariant).
func (u *unit) returnState() state { return value() }

// emitReturn closes out a def body by leaving its result on normal
// (fall-through, non-`return`-statement) completion. At the top of a def's
// own body the control-flow context stack is empty, so this is always
// LEAVE, mirroring the implicit-return rule an explicit `return` follows
// (§4.7 Return).
func (u *unit) emitReturn(body ast.Node) {
	sz := uint32(0)
	if rt := u.returnType(); rt != nil {
		sz = rt.AlignedSize()
	}
	u.buf.Emit(body, u.leaveOpcode(), uint64(sz))
}

// leaveOpcode implements §4.7 Return's opcode choice: LEAVE_DEF when the
// leave must unwind out of an inlined block to the enclosing def (a
// non-local return), LEAVE when it only needs to leave the current
// def/block compiling context.
func (u *unit) leaveOpcode() bytecode.Opcode {
	if u.ctx.inBlock() {
		return bytecode.OpLeaveDef
	}
	return bytecode.OpLeave
}

// returnType implements §9 "merge-block-break-type": the def's declared
// type merged with the innermost compiling block's break type, or just the
// def's type outside any block context.
func (u *unit) returnType() typesystem.Type {
	if bc := u.ctx.currentBlock(); bc != nil && bc.block.BreakType != nil {
		return u.sess.Oracle.Merge(u.defType, bc.block.BreakType)
	}
	return u.defType
}

func (u *unit) declareParams(def *ast.Def) uint32 {
	if def.Owner != nil {
		recvType := def.Owner
		if recvType.Struct() {
			u.fr.Declare("self", recvType)
		} else {
			u.fr.Declare("self", recvType)
		}
	}
	for _, p := range def.Params {
		u.fr.Declare(p.Name, p.Type)
	}
	return u.fr.Size()
}

// defHasBlockParam reports whether def implicitly accepts a block, i.e. its
// body yields somewhere that is not itself inside a nested def/proc
// (§4.6: "a def that takes a block is not cached" — the block is the
// caller-supplied argument a Yield invokes, which only exists when the
// containing def yields).
func defHasBlockParam(def *ast.Def) bool {
	return def.Body != nil && containsYield(def.Body)
}

func containsYield(n ast.Node) bool {
	switch node := n.(type) {
	case nil:
		return false
	case *ast.Yield:
		return true
	case *ast.Expressions:
		for _, c := range node.Children {
			if containsYield(c) {
				return true
			}
		}
	case *ast.If:
		return containsYield(node.Cond) || containsYield(node.Then) || containsYield(node.Else)
	case *ast.While:
		return containsYield(node.Cond) || containsYield(node.Body)
	case *ast.Assign:
		return containsYield(node.Value)
	case *ast.Return:
		return containsYield(node.Value)
	case *ast.Break:
		return containsYield(node.Value)
	case *ast.Next:
		return containsYield(node.Value)
	case *ast.Call:
		if containsYield(node.Receiver) {
			return true
		}
		for _, a := range node.Args {
			if containsYield(a) {
				return true
			}
		}
		for _, na := range node.NamedArgs {
			if containsYield(na.Value) {
				return true
			}
		}
		// node.Block is a separate compiled unit, not this def's body.
	case *ast.ExceptionHandler:
		if containsYield(node.Body) {
			return true
		}
		for _, r := range node.Rescues {
			if containsYield(r.Body) {
				return true
			}
		}
		return containsYield(node.Ensure)
	case *ast.VisibilityModifier:
		return containsYield(node.Body)
	case *ast.FileNode:
		return containsYield(node.Body)
	}
	return false
}

// lower is the exhaustive tagged dispatch over every AST node variant
// (§4.7, §9 "replace per-AST-kind methods with a single exhaustive match").
// It returns an error for any shape it cannot handle; the caller (another
// lower call, or LowerDef) propagates it unchanged per §7's "first error
// unwinds" policy.
func (u *unit) lower(n ast.Node, st state) error {
	switch node := n.(type) {
	case *ast.NilLiteral:
		return u.lowerNilLiteral(node, st)
	case *ast.BoolLiteral:
		return u.lowerBoolLiteral(node, st)
	case *ast.NumberLiteral:
		return u.lowerNumberLiteral(node, st)
	case *ast.CharLiteral:
		return u.lowerCharLiteral(node, st)
	case *ast.StringLiteral:
		return u.lowerStringLiteral(node, st)
	case *ast.SymbolLiteral:
		return u.lowerSymbolLiteral(node, st)
	case *ast.TupleLiteral:
		return u.lowerTupleLiteral(node, st)
	case *ast.NamedTupleLiteral:
		return u.lowerNamedTupleLiteral(node, st)

	case *ast.Var:
		return u.lowerVar(node, st)
	case *ast.InstanceVar:
		return u.lowerInstanceVar(node, st)
	case *ast.ClassVar:
		return u.lowerClassVar(node, st)
	case *ast.Underscore:
		return nil
	case *ast.Path:
		return u.lowerPath(node, st)

	case *ast.Assign:
		return u.lowerAssign(node, st)

	case *ast.If:
		return u.lowerIf(node, st)
	case *ast.While:
		return u.lowerWhile(node, st)
	case *ast.Return:
		return u.lowerReturn(node)
	case *ast.Break:
		return u.lowerBreak(node)
	case *ast.Next:
		return u.lowerNext(node)
	case *ast.Yield:
		return u.lowerYield(node, st)

	case *ast.Call:
		return u.lowerCall(node, st)

	case *ast.Expressions:
		return u.lowerExpressions(node, st)

	case *ast.PointerOf:
		return u.lowerPointerOf(node, st)
	case *ast.SizeOf:
		return u.lowerSizeOf(node, st)
	case *ast.TypeOf:
		return u.lowerTypeOf(node, st)
	case *ast.IsA:
		return u.lowerIsA(node, st)
	case *ast.Cast:
		return u.lowerCast(node, st)
	case *ast.NilableCast:
		return u.lowerNilableCast(node, st)
	case *ast.Not:
		return u.lowerNot(node, st)

	case *ast.ReadInstanceVar:
		return u.lowerReadInstanceVar(node, st)
	case *ast.Out:
		return diag.Bug(spanOf(node), "Out node lowered outside an FFI call")
	case *ast.UninitializedVar:
		return u.lowerUninitializedVar(node, st)

	case *ast.ProcLiteral:
		return u.lowerProcLiteral(node, st)
	case *ast.ExceptionHandler:
		return u.lowerExceptionHandler(node, st)

	case *ast.ClassDecl:
		return u.lowerDeclBody(node.Body, st)
	case *ast.ModuleDecl:
		return u.lowerDeclBody(node.Body, st)
	case *ast.EnumDecl:
		return u.lowerDeclBody(node.Body, st)
	case *ast.LibDecl:
		return u.lowerDeclBody(node.Body, st)
	case *ast.FunDecl, *ast.MacroDecl, *ast.AliasDecl, *ast.AnnotationDecl,
		*ast.IncludeDecl, *ast.ExtendDecl, *ast.TypeDeclaration:
		return nil
	case *ast.VisibilityModifier:
		return u.lowerDeclBody(node.Body, st)

	case *ast.FileNode:
		return u.lowerFileNode(node, st)
	case *ast.Unreachable:
		u.buf.Emit(node, bytecode.OpUnreachable, uint64(u.sess.internPrimitiveName("unreachable")))
		return nil

	default:
		return diag.Bug(spanOf(n), "lower: unhandled AST node %T", n)
	}
}

func (u *unit) lowerDeclBody(body ast.Node, st state) error {
	if body == nil {
		return nil
	}
	return u.lower(body, st)
}

// pop emits a cleanup POP for a value that was pushed but is not wanted,
// per the repeated "if wants_value is false, pop the result" rule.
func (u *unit) pop(n ast.Node, size uint32) {
	if size == 0 {
		return
	}
	u.buf.Emit(n, bytecode.OpPop, uint64(size))
}

// upcast is a thin wrapper forwarding to the adapter package (C8),
// centralizing the node argument the buffer's node map wants attached. A
// nil `from` marks a just-pushed PUT_NIL with no prior static type (e.g.
// the implicit nil of a valueless break/return) — every `to` kind accepts
// a null representation directly except a mixed union, which still needs
// its tag/padding written.
func (u *unit) upcast(n ast.Node, from, to typesystem.Type) {
	if from == nil {
		if to != nil && to.Kind() == typesystem.KindMixedUnion {
			grow := to.AlignedSize() // PUT_NIL itself pushes no bytes
			if grow > 0 {
				u.buf.Emit(n, bytecode.OpPushZeros, uint64(grow))
			}
			u.buf.Emit(n, bytecode.OpPutType, uint64(0)) // nil's type id
		}
		return
	}
	adapter.Upcast(u.buf, n, from, to)
}

func (u *unit) downcast(n ast.Node, from, to typesystem.Type) {
	adapter.Downcast(u.buf, n, from, to)
}
