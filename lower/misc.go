package lower

import (
	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/bytecode"
	"github.com/chazu/corelower/diag"
	"github.com/chazu/corelower/typesystem"
)

// lowerProcLiteral implements §4.7/§9's closure layout: the underlying def
// is compiled standalone and referenced by a two-word (def-identity,
// context-pointer) closure value. SPEC_FULL's capture-layout supplement
// documents a three-word (def identity, captured-frame pointer, capture
// count) layout for
// non-empty captures; this core only ever produces the context-free
// two-word form and rejects a literal that actually captures anything,
// since nothing downstream of this pass can yet consume the third word.
func (u *unit) lowerProcLiteral(n *ast.ProcLiteral, st state) error {
	if len(n.Captures) > 0 {
		return diag.Bug(spanOf(n), "proc literal captures %v are not supported by this lowering core", n.Captures)
	}
	cd, err := u.sess.LowerDef(n.Def)
	if err != nil {
		return err
	}
	if !st.wantsValue {
		return nil
	}
	handle := u.sess.handleForDef(cd)
	u.buf.Emit(n, bytecode.OpPutI64, uint64(handle))
	u.buf.Emit(n, bytecode.OpPutI64, uint64(0)) // null context pointer
	return nil
}

// lowerExceptionHandler lowers the body and ensure clause unconditionally
// (the interpreter transfers control into a rescue region directly, so the
// compiler never emits a push/pop around the protected region itself — §1
// places the unwinding mechanism out of scope) and, per SPEC_FULL's rescue
// supplement, appends each rescue clause as a reachable-only-by-the-
// interpreter region guarded by the same is_a?/branch cascade multidispatch
// uses. By convention the interpreter has already pushed the in-flight
// exception's reference onto the stack before transferring control to the
// first rescue clause's offset.
func (u *unit) lowerExceptionHandler(n *ast.ExceptionHandler, st state) error {
	if err := u.lower(n.Body, st); err != nil {
		return err
	}

	if len(n.Rescues) > 0 {
		u.buf.Emit(n, bytecode.OpJump, 0)
		patchEnd := u.buf.PatchLocation()
		var endPatches []int

		for _, rescue := range n.Rescues {
			var matchPatches []int
			for _, t := range rescue.Types {
				u.buf.Emit(n, bytecode.OpDup, uint64(8))
				u.buf.Emit(n, bytecode.OpReferenceIsA, uint64(t.TypeID()))
				u.buf.Emit(n, bytecode.OpBranchIf, 0)
				matchPatches = append(matchPatches, u.buf.PatchLocation())
			}
			u.buf.Emit(n, bytecode.OpJump, 0)
			fallThrough := u.buf.PatchLocation()

			for _, loc := range matchPatches {
				u.buf.PatchJump(loc)
			}
			if rescue.Bind != "" {
				var bindType typesystem.Type
				if len(rescue.Types) > 0 {
					bindType = rescue.Types[0]
				}
				slot := u.fr.Declare(rescue.Bind, bindType)
				u.buf.Emit(n, bytecode.OpSetLocal, uint64(slot.Offset), uint64(8))
			} else {
				u.buf.Emit(n, bytecode.OpPop, uint64(8))
			}
			if err := u.lower(rescue.Body, st); err != nil {
				return err
			}
			u.buf.Emit(n, bytecode.OpJump, 0)
			endPatches = append(endPatches, u.buf.PatchLocation())

			u.buf.PatchJump(fallThrough)
		}
		u.buf.Emit(n, bytecode.OpUnreachable, uint64(u.sess.internPrimitiveName("unrescued_exception")))

		for _, loc := range endPatches {
			u.buf.PatchJump(loc)
		}
		u.buf.PatchJump(patchEnd)
	}

	if n.Ensure != nil {
		if err := u.lower(n.Ensure, discard()); err != nil {
			return err
		}
	}
	return nil
}

// lowerFileNode implements §4.7 "FileNode": wrap the file's top-level body
// in a synthetic nil-returning def and call it, matching the same
// always-produces-exactly-one-value invariant every other CompiledDef
// satisfies.
func (u *unit) lowerFileNode(n *ast.FileNode, st state) error {
	synthetic := &ast.Def{
		Selector: "__file__",
		// The synthetic def's declared return type is the Nil type, so its
		// body must actually leave nil on top regardless of what n.Body
		// evaluates to; sequencing in an explicit NilLiteral makes that the
		// last (and only counted) expression.
		Body: &ast.Expressions{Children: []ast.Node{n.Body, &ast.NilLiteral{}}},
	}
	synthetic.T = u.sess.Oracle.Merge() // zero operands merges to the Nil type
	call := &ast.Call{
		Name:       "__file__",
		TargetDefs: []*ast.Def{synthetic},
	}
	return u.lowerCall(call, st)
}
