package lower

import (
	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/bytecode"
	"github.com/chazu/corelower/diag"
)

// lowerExpressions lowers a sequence, discarding every statement's value
// except the last, which inherits the caller's wants_value — mirroring the
// teacher's compileStatements "pop result of expression statements except
// the last" rule (compiler/codegen.go), generalized from "always pop" to
// "pop unless it's the final expression and the caller wants a value".
func (u *unit) lowerExpressions(n *ast.Expressions, st state) error {
	if len(n.Children) == 0 {
		if st.wantsValue {
			u.buf.Emit(n, bytecode.OpPutNil)
		}
		return nil
	}
	for i, child := range n.Children {
		last := i == len(n.Children)-1
		if last {
			if err := u.lower(child, st); err != nil {
				return err
			}
			continue
		}
		if err := u.lower(child, discard()); err != nil {
			return err
		}
	}
	return nil
}

// lowerIf implements §4.7 "If", including the compile-time truthy/falsy
// elision (P8) when the frontend has annotated the condition as statically
// known and folding is enabled.
func (u *unit) lowerIf(n *ast.If, st state) error {
	if n.CondKnown && u.sess.Opts.Lower.FoldConstantBranches {
		if n.CondKnownValue {
			return u.lowerBranchUpcast(n.Then, n, st)
		}
		return u.lowerBranchUpcast(n.Else, n, st)
	}

	if err := u.lower(n.Cond, value()); err != nil {
		return err
	}
	u.buf.Emit(n, bytecode.OpBranchUnless, 0)
	patchElse := u.buf.PatchLocation()

	if err := u.lowerBranchUpcast(n.Then, n, st); err != nil {
		return err
	}
	u.buf.Emit(n, bytecode.OpJump, 0)
	patchEnd := u.buf.PatchLocation()

	u.buf.PatchJump(patchElse)
	if err := u.lowerBranchUpcast(n.Else, n, st); err != nil {
		return err
	}
	u.buf.PatchJump(patchEnd)
	return nil
}

// lowerBranchUpcast lowers one branch of an If, upcasting its value to the
// If's merged type when a value is wanted (absent branch treated as nil).
func (u *unit) lowerBranchUpcast(branch ast.Node, ifNode *ast.If, st state) error {
	if branch == nil {
		if st.wantsValue {
			u.buf.Emit(ifNode, bytecode.OpPutNil)
		}
		return nil
	}
	if err := u.lower(branch, st); err != nil {
		return err
	}
	if st.wantsValue {
		u.upcast(branch, branch.Type(), ifNode.Type())
	}
	return nil
}

// lowerWhile implements §4.7 "While": jump to the condition first, lower
// the body with wants_value=false, retest the condition, and back-patch
// every break/next recorded during the body against this loop's context.
func (u *unit) lowerWhile(n *ast.While, st state) error {
	u.buf.Emit(n, bytecode.OpJump, 0)
	patchToCond := u.buf.PatchLocation()

	bodyStart := u.buf.CurrentOffset()
	wctx := u.ctx.pushWhile(n.Type())

	if err := u.lower(n.Body, discard()); err != nil {
		u.ctx.popWhile()
		return err
	}
	for _, loc := range wctx.nexts {
		u.buf.PatchJump(loc)
	}

	u.buf.PatchJump(patchToCond)
	if err := u.lower(n.Cond, value()); err != nil {
		u.ctx.popWhile()
		return err
	}
	// bodyStart is already known (it was recorded before the body was
	// emitted), so BRANCH_IF's absolute-offset operand can be written
	// directly instead of going through the patch-location dance a
	// forward jump needs.
	u.buf.Emit(n, bytecode.OpBranchIf, uint64(bodyStart))

	if st.wantsValue {
		u.buf.Emit(n, bytecode.OpPutNil)
		u.upcast(n, nil, n.Type())
	}
	for _, loc := range wctx.breaks {
		u.buf.PatchJump(loc)
	}
	u.ctx.popWhile()
	return nil
}

func (u *unit) lowerBreak(n *ast.Break) error {
	frame := u.ctx.innermost()
	if frame != nil && frame.while != nil {
		wctx := frame.while
		if n.Value != nil {
			if err := u.lower(n.Value, value()); err != nil {
				return err
			}
			u.upcast(n, n.Value.Type(), wctx.typ)
		} else if wctx.typ != nil {
			u.buf.Emit(n, bytecode.OpPutNil)
			u.upcast(n, nil, wctx.typ)
		}
		u.buf.Emit(n, bytecode.OpJump, 0)
		wctx.breaks = append(wctx.breaks, u.buf.PatchLocation())
		return nil
	}
	if frame != nil && frame.block != nil {
		bc := frame.block
		var sz uint32
		if n.Value != nil {
			if err := u.lower(n.Value, value()); err != nil {
				return err
			}
			if bc.block.BreakType != nil {
				u.upcast(n, n.Value.Type(), bc.block.BreakType)
				sz = bc.block.BreakType.AlignedSize()
			} else {
				sz = n.Value.Type().AlignedSize()
			}
		}
		u.buf.Emit(n, bytecode.OpBreakBlock, uint64(sz))
		return nil
	}
	return diag.Bug(spanOf(n), "break outside while or block")
}

func (u *unit) lowerNext(n *ast.Next) error {
	frame := u.ctx.innermost()
	if frame != nil && frame.while != nil {
		wctx := frame.while
		if n.Value != nil {
			if err := u.lower(n.Value, discard()); err != nil {
				return err
			}
		}
		u.buf.Emit(n, bytecode.OpJump, 0)
		wctx.nexts = append(wctx.nexts, u.buf.PatchLocation())
		return nil
	}
	if frame != nil && frame.block != nil {
		var sz uint32
		if n.Value != nil {
			if err := u.lower(n.Value, value()); err != nil {
				return err
			}
			sz = n.Value.Type().AlignedSize()
		}
		u.buf.Emit(n, bytecode.OpLeave, uint64(sz))
		return nil
	}
	return diag.Bug(spanOf(n), "next outside while or block")
}

// lowerReturn implements §4.7 "Return": upcast to the merge-block-break
// type (§9), then LEAVE_DEF if unwinding out of an inlined block, else
// LEAVE.
func (u *unit) lowerReturn(n *ast.Return) error {
	rt := u.returnType()
	if n.Value != nil {
		if err := u.lower(n.Value, value()); err != nil {
			return err
		}
		u.upcast(n, n.Value.Type(), rt)
	} else if rt != nil {
		u.buf.Emit(n, bytecode.OpPutNil)
		u.upcast(n, nil, rt)
	}
	sz := uint32(0)
	if rt != nil {
		sz = rt.AlignedSize()
	}
	u.buf.Emit(n, u.leaveOpcode(), uint64(sz))
	return nil
}
