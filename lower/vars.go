package lower

import (
	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/bytecode"
	"github.com/chazu/corelower/constpool"
	"github.com/chazu/corelower/diag"
	"github.com/chazu/corelower/typesystem"
)

// needsStructPointer consults the Oracle for §9's predicate, used by both
// Var's self-handling and the Call struct-receiver rules.
func (u *unit) needsStructPointer(t typesystem.Type) bool {
	return t != nil && u.sess.Oracle.NeedsStructPointer(t)
}

// lowerVar implements §4.7 "Variable read". self gets special-cased when
// it is a passed-by-value struct receiver; every other slot is read by
// value or by address depending on wants_struct_pointer, then downcast
// from its declared type to the narrower expression type.
func (u *unit) lowerVar(n *ast.Var, st state) error {
	if n.Name == "self" {
		return u.lowerSelf(n, st)
	}
	slot, ok := u.fr.Resolve(n.Name)
	if !ok {
		return diag.Semantic(spanOf(n), "unresolved local %q", n.Name)
	}
	if !st.wantsValue {
		return nil
	}
	if st.wantsStructPointer {
		u.buf.Emit(n, bytecode.OpPointerOfVar, uint64(slot.Offset))
		return nil
	}
	u.buf.Emit(n, bytecode.OpGetLocal, uint64(slot.Offset), uint64(slot.Type.AlignedSize()))
	u.downcast(n, slot.Type, n.Type())
	return nil
}

func (u *unit) lowerSelf(n *ast.Var, st state) error {
	if !st.wantsValue {
		return nil
	}
	slot, ok := u.fr.Resolve("self")
	if !ok {
		// Program scope: self is the nil top-level receiver.
		u.buf.Emit(n, bytecode.OpPutSelf)
		return nil
	}
	if slot.Type.PassedByValue() {
		if st.wantsStructPointer {
			u.buf.Emit(n, bytecode.OpPointerOfVar, uint64(slot.Offset))
			return nil
		}
		u.buf.Emit(n, bytecode.OpGetSelfIvar, uint64(0), uint64(slot.Type.AlignedSize()))
		return nil
	}
	u.buf.Emit(n, bytecode.OpPutSelf)
	return nil
}

func (u *unit) lowerInstanceVar(n *ast.InstanceVar, st state) error {
	if u.owner == nil {
		// Outside a method body, §4.7 says InstanceVar silently yields nil.
		if st.wantsValue {
			u.buf.Emit(n, bytecode.OpPutNil)
		}
		return nil
	}
	iv, ok := u.owner.LookupInstanceVar(n.Name)
	if !ok {
		return diag.Semantic(spanOf(n), "unresolved instance variable %q", n.Name)
	}
	if !st.wantsValue {
		return nil
	}
	if st.wantsStructPointer {
		u.buf.Emit(n, bytecode.OpGetSelfIvar, uint64(iv.Offset), uint64(8))
		return nil
	}
	u.buf.Emit(n, bytecode.OpGetSelfIvar, uint64(iv.Offset), uint64(iv.Type.AlignedSize()))
	u.downcast(n, iv.Type, n.Type())
	return nil
}

func (u *unit) classVarEntry(owner typesystem.Type, name string) constpool.Entry {
	return constpool.Entry{Kind: constpool.KindClassVar, Owner: owner, Name: name}
}

func (u *unit) lowerClassVar(n *ast.ClassVar, st state) error {
	if u.owner == nil {
		if st.wantsValue {
			u.buf.Emit(n, bytecode.OpPutNil)
		}
		return nil
	}
	entry := u.classVarEntry(u.owner, n.Name)
	slot := u.sess.ClassVars.Declare(entry, n.Type(), nil)
	u.emitConstRead(n, slot, st, true)
	return nil
}

func (u *unit) lowerPath(n *ast.Path, st state) error {
	entry := constpool.Entry{Kind: constpool.KindConst, Name: n.Name}
	slot := u.sess.Consts.Declare(entry, n.Type(), nil)
	if st.wantsStructPointer {
		u.emitConstGuard(n, slot, false)
		u.buf.Emit(n, bytecode.OpGetConstPointer, uint64(slot.Index))
		return nil
	}
	u.emitConstRead(n, slot, st, false)
	return nil
}

// emitConstGuard emits the CONST_INITIALIZED/BRANCH_IF/CALL/SET_CONST
// lazy-init pattern of §4.4, skipping it for simple-literal slots. CALL's
// operand is the slot's own index: the constant/class-var table doubles as
// the side table of initializer CompiledDefs §9 calls for ("use small
// integer handles into a side table owned by the Context"), so no separate
// table is needed to resolve which initializer to run.
func (u *unit) emitConstGuard(n ast.Node, slot constpool.Slot, classVar bool) {
	if slot.Simple {
		return
	}
	initializedOp, branchOp, callOp, setOp := bytecode.OpConstInitialized, bytecode.OpBranchIf, bytecode.OpCall, bytecode.OpSetConst
	if classVar {
		initializedOp, setOp = bytecode.OpClassVarInitialized, bytecode.OpSetClassVar
	}
	u.buf.Emit(n, initializedOp, uint64(slot.Index))
	u.buf.Emit(n, branchOp, 0)
	patch := u.buf.PatchLocation()
	u.buf.Emit(n, callOp, uint64(slot.Index))
	u.buf.Emit(n, setOp, uint64(slot.Index), uint64(slot.ValueType.AlignedSize()))
	u.buf.PatchJump(patch)
}

func (u *unit) emitConstRead(n ast.Node, slot constpool.Slot, st state, classVar bool) {
	if slot.Simple {
		if st.wantsValue {
			u.pushSimple(n, slot)
		}
		return
	}
	u.emitConstGuard(n, slot, classVar)
	if !st.wantsValue {
		return
	}
	getOp := bytecode.OpGetConst
	if classVar {
		getOp = bytecode.OpGetClassVar
	}
	u.buf.Emit(n, getOp, uint64(slot.Index), uint64(slot.ValueType.AlignedSize()))
}

func (u *unit) pushSimple(n ast.Node, slot constpool.Slot) {
	switch v := slot.SimpleValue.(type) {
	case nil:
		u.buf.Emit(n, bytecode.OpPutNil)
	case bool:
		var iv uint64
		if v {
			iv = 1
		}
		u.buf.Emit(n, bytecode.OpPutI64, iv)
	case int64:
		u.buf.Emit(n, bytecode.OpPutI64, uint64(v))
	case float64:
		u.buf.EmitFloat64(n, bytecode.OpPutI64, v)
	case string:
		idx := u.sess.internString(v)
		u.buf.Emit(n, bytecode.OpPutI64, uint64(idx))
	default:
		u.buf.Emit(n, bytecode.OpPutNil)
	}
}

// lowerAssign implements §4.7 "Assignment".
func (u *unit) lowerAssign(n *ast.Assign, st state) error {
	switch target := n.Target.(type) {
	case *ast.Var:
		slot, ok := u.fr.Resolve(target.Name)
		if !ok {
			slot = u.fr.Declare(target.Name, n.Value.Type())
		}
		if err := u.lower(n.Value, value()); err != nil {
			return err
		}
		if st.wantsValue {
			u.buf.Emit(n, bytecode.OpDup, uint64(n.Value.Type().AlignedSize()))
		}
		u.upcast(n, n.Value.Type(), slot.Type)
		u.buf.Emit(n, bytecode.OpSetLocal, uint64(slot.Offset), uint64(slot.Type.AlignedSize()))
		return nil

	case *ast.InstanceVar:
		if u.owner == nil {
			return u.lower(n.Value, discard())
		}
		iv, ok := u.owner.LookupInstanceVar(target.Name)
		if !ok {
			return diag.Semantic(spanOf(n), "unresolved instance variable %q", target.Name)
		}
		if err := u.lower(n.Value, value()); err != nil {
			return err
		}
		if st.wantsValue {
			u.buf.Emit(n, bytecode.OpDup, uint64(n.Value.Type().AlignedSize()))
		}
		u.upcast(n, n.Value.Type(), iv.Type)
		u.buf.Emit(n, bytecode.OpSetSelfIvar, uint64(iv.Offset), uint64(iv.Type.AlignedSize()))
		return nil

	case *ast.ClassVar:
		if u.owner == nil {
			return u.lower(n.Value, discard())
		}
		entry := u.classVarEntry(u.owner, target.Name)
		slot := u.sess.ClassVars.Declare(entry, n.Value.Type(), nil)
		if err := u.lower(n.Value, value()); err != nil {
			return err
		}
		if st.wantsValue {
			u.buf.Emit(n, bytecode.OpDup, uint64(n.Value.Type().AlignedSize()))
		}
		u.upcast(n, n.Value.Type(), slot.ValueType)
		u.buf.Emit(n, bytecode.OpSetClassVar, uint64(slot.Index), uint64(slot.ValueType.AlignedSize()))
		return nil

	case *ast.Underscore:
		return u.lower(n.Value, discard())

	case *ast.Path:
		entry := constpool.Entry{Kind: constpool.KindConst, Name: target.Name}
		slot := u.sess.Consts.Declare(entry, n.Value.Type(), nil)
		if err := u.lower(n.Value, value()); err != nil {
			return err
		}
		if st.wantsValue {
			u.buf.Emit(n, bytecode.OpDup, uint64(n.Value.Type().AlignedSize()))
		}
		u.upcast(n, n.Value.Type(), slot.ValueType)
		u.buf.Emit(n, bytecode.OpSetConst, uint64(slot.Index), uint64(slot.ValueType.AlignedSize()))
		return nil

	default:
		return diag.Bug(spanOf(n), "unsupported assignment target %T", n.Target)
	}
}

// lowerPointerOf implements §4.7 "PointerOf": address-of for Var,
// InstanceVar, ClassVar; fails otherwise.
func (u *unit) lowerPointerOf(n *ast.PointerOf, st state) error {
	if !st.wantsValue {
		return nil
	}
	switch target := n.Target.(type) {
	case *ast.Var:
		slot, ok := u.fr.Resolve(target.Name)
		if !ok {
			return diag.Semantic(spanOf(n), "unresolved local %q", target.Name)
		}
		u.buf.Emit(n, bytecode.OpPointerOfVar, uint64(slot.Offset))
		return nil
	case *ast.InstanceVar:
		if u.owner == nil {
			return diag.Bug(spanOf(n), "pointerof instance var outside method body")
		}
		iv, ok := u.owner.LookupInstanceVar(target.Name)
		if !ok {
			return diag.Semantic(spanOf(n), "unresolved instance variable %q", target.Name)
		}
		u.buf.Emit(n, bytecode.OpGetSelfIvar, uint64(iv.Offset), uint64(8))
		return nil
	case *ast.ClassVar:
		entry := u.classVarEntry(u.owner, target.Name)
		idx, ok := u.sess.ClassVars.IndexOf(entry)
		if !ok {
			return diag.Semantic(spanOf(n), "unresolved class var %q", target.Name)
		}
		u.buf.Emit(n, bytecode.OpGetConstPointer, uint64(idx))
		return nil
	default:
		return diag.Bug(spanOf(n), "pointerof of unsupported target %T", n.Target)
	}
}

func (u *unit) lowerSizeOf(n *ast.SizeOf, st state) error {
	if !st.wantsValue {
		return nil
	}
	u.buf.Emit(n, bytecode.OpPutI64, uint64(n.Of.AlignedSize()))
	return nil
}

func (u *unit) lowerTypeOf(n *ast.TypeOf, st state) error {
	if err := u.lower(n.Of, discard()); err != nil {
		return err
	}
	if !st.wantsValue {
		return nil
	}
	u.buf.Emit(n, bytecode.OpPutI64, uint64(n.Of.Type().TypeID()))
	return nil
}

func (u *unit) lowerNot(n *ast.Not, st state) error {
	if err := u.lower(n.Subject, value()); err != nil {
		return err
	}
	if !st.wantsValue {
		u.pop(n, n.Subject.Type().AlignedSize())
		return nil
	}
	u.buf.Emit(n, bytecode.OpLogicalNot)
	return nil
}

// lowerIsA / lowerCast implement §4.7's polymorphic dispatch on the
// subject's runtime kind. lowerNilableCast emits no runtime kind check: it
// only downcasts the subject statically, so a subject of the wrong runtime
// type is not turned into nil.
func (u *unit) lowerIsA(n *ast.IsA, st state) error {
	if err := u.lower(n.Subject, value()); err != nil {
		return err
	}
	if !st.wantsValue {
		u.pop(n, n.Subject.Type().AlignedSize())
		return nil
	}
	u.emitKindCheck(n, n.Subject.Type(), n.Target)
	return nil
}

func (u *unit) emitKindCheck(n ast.Node, subjectType, target typesystem.Type) {
	switch {
	case subjectType != nil && (subjectType.Kind() == typesystem.KindVirtual || subjectType.Kind() == typesystem.KindVirtualMetaclass):
		u.buf.Emit(n, bytecode.OpReferenceIsA, uint64(target.TypeID()))
	case subjectType != nil && subjectType.Kind() == typesystem.KindMixedUnion:
		u.buf.Emit(n, bytecode.OpUnionIsA, uint64(subjectType.AlignedSize()), uint64(target.TypeID()))
	case subjectType != nil && (subjectType.Kind() == typesystem.KindNilable || subjectType.Kind() == typesystem.KindNilableReferenceUnion):
		if target.NilType() {
			u.buf.Emit(n, bytecode.OpPointerIsNull)
		} else {
			u.buf.Emit(n, bytecode.OpPointerIsNotNull)
		}
	case subjectType != nil && subjectType.Kind() == typesystem.KindReferenceUnion:
		u.buf.Emit(n, bytecode.OpReferenceIsA, uint64(target.TypeID()))
	default:
		u.buf.Emit(n, bytecode.OpReferenceIsA, uint64(target.TypeID()))
	}
}

func (u *unit) lowerCast(n *ast.Cast, st state) error {
	if err := u.lower(n.Subject, value()); err != nil {
		return err
	}
	// Test a copy of the subject; only a failed check falls through to the
	// UNREACHABLE fallback, per §4.7. Raising is the interpreter's concern.
	subjType := n.Subject.Type()
	var subjSize uint32
	if subjType != nil {
		subjSize = subjType.AlignedSize()
	}
	u.buf.Emit(n, bytecode.OpDup, uint64(subjSize))
	u.emitKindCheck(n, subjType, n.Target)
	u.buf.Emit(n, bytecode.OpBranchIf, 0)
	castOK := u.buf.PatchLocation()
	u.buf.Emit(n, bytecode.OpUnreachable, uint64(u.sess.internPrimitiveName("cast_failed")))
	u.buf.PatchJump(castOK)
	u.downcast(n, subjType, n.Target)
	if !st.wantsValue {
		u.pop(n, n.Target.AlignedSize())
	}
	return nil
}

func (u *unit) lowerNilableCast(n *ast.NilableCast, st state) error {
	if err := u.lower(n.Subject, value()); err != nil {
		return err
	}
	u.downcast(n, n.Subject.Type(), n.Target)
	if !st.wantsValue {
		u.pop(n, n.Target.AlignedSize())
	}
	return nil
}

func (u *unit) lowerReadInstanceVar(n *ast.ReadInstanceVar, st state) error {
	if err := u.lower(n.Receiver, value()); err != nil {
		return err
	}
	recvType := n.Receiver.Type()
	if recvType == nil {
		return diag.Bug(spanOf(n), "ReadInstanceVar receiver has no type")
	}
	iv, ok := recvType.LookupInstanceVar(n.Name)
	if !ok {
		return diag.Semantic(spanOf(n), "unresolved instance variable %q", n.Name)
	}
	if !st.wantsValue {
		u.pop(n, recvType.AlignedSize())
		return nil
	}
	u.buf.Emit(n, bytecode.OpGetSelfIvar, uint64(iv.Offset), uint64(iv.Type.AlignedSize()))
	return nil
}

func (u *unit) lowerUninitializedVar(n *ast.UninitializedVar, st state) error {
	u.fr.Declare(n.Name, n.Type())
	if st.wantsValue {
		u.buf.Emit(n, bytecode.OpPutNil)
	}
	return nil
}
