// Package adapter implements the C8 Value-Width Adapter: the upcast/
// downcast operations that widen/narrow a value on top of the stack
// between its static type and a surrounding expected type (§4.8). It is
// the one component with no direct teacher analog (the teacher's Values
// are NaN-boxed to a single uniform word, so it never needs to grow or
// shrink a stack slot in place) — it is written from the §4.8/§8 rules
// directly, in the same small-stateless-helper style as the teacher's
// BytecodeBuilder emit helpers.
package adapter

import (
	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/bytecode"
	"github.com/chazu/corelower/typesystem"
)

// Emit sequences of these opcodes grow/shrink the stack region the adapter
// just touched; the lowering pass is responsible for tracking net stack
// depth, the adapter only emits the instructions.

// Upcast widens the value currently on top of the stack from "from" to
// "to". It must leave exactly AlignedSize(to) bytes on the stack where the
// adapted value lives (§4.8).
func Upcast(buf *bytecode.Buffer, node ast.Node, from, to typesystem.Type) {
	if sameType(from, to) {
		return
	}
	if from == nil || to == nil {
		// One side's type is unknown to the caller; there is no layout to
		// adapt against, so treat it the same as an already-matching type.
		return
	}
	switch {
	case to.Kind() == typesystem.KindReferenceUnion && from.ReferenceLike():
		// Reference -> reference union: prepend an 8-byte type-id tag.
		buf.Emit(node, bytecode.OpPutType, uint64(from.TypeID()))
		// PUT_TYPE pushes the tag ahead of the already-pushed reference;
		// the instruction stream therefore emits PUT_TYPE for the tag and
		// relies on the caller having arranged operand order so the tag
		// ends up below the reference word on the stack.
	case to.Kind() == typesystem.KindMixedUnion:
		// Value -> mixed union: grow to AlignedSize(union); zero the high
		// bytes, then write the 8-byte tag.
		grow := to.AlignedSize() - from.AlignedSize()
		if grow > 0 {
			buf.Emit(node, bytecode.OpPushZeros, uint64(grow))
		}
		buf.Emit(node, bytecode.OpPutType, uint64(from.TypeID()))
	case to.Kind() == typesystem.KindNilable && from.ReferenceLike():
		// Reference-like -> nilable: no-op, null-ness doubles as the tag.
	case to.Kind() == typesystem.KindVirtual || to.Kind() == typesystem.KindVirtualMetaclass:
		// Specific -> virtual: no-op, pointers carry their own
		// vtable-equivalent.
	default:
		// Same-width reinterpretation (e.g. type-def/alias to underlying)
		// is also a no-op; anything else reaching here is an emit-time
		// contract violation the caller should have already rejected via
		// diag.TypeMismatch before calling Upcast.
	}
}

// Downcast narrows the value on top of the stack from "from" to "to",
// symmetrically with Upcast: it must leave exactly AlignedSize(to) bytes.
func Downcast(buf *bytecode.Buffer, node ast.Node, from, to typesystem.Type) {
	if sameType(from, to) {
		return
	}
	if from == nil || to == nil {
		return
	}
	switch {
	case from.Kind() == typesystem.KindReferenceUnion && to.ReferenceLike():
		// Drop the 8-byte tag.
		buf.Emit(node, bytecode.OpPop, uint64(8))
	case from.Kind() == typesystem.KindMixedUnion:
		// Drop the tag and shrink to the narrower payload.
		shrink := from.AlignedSize() - to.AlignedSize()
		if shrink > 0 {
			buf.Emit(node, bytecode.OpPopFromOffset, uint64(to.AlignedSize()), uint64(shrink))
		}
	case from.Kind() == typesystem.KindNilable && to.ReferenceLike():
		// No-op.
	case from.Kind() == typesystem.KindVirtual || from.Kind() == typesystem.KindVirtualMetaclass:
		// No-op.
	default:
		// Same-width reinterpretation.
	}
}

func sameType(a, b typesystem.Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name() == b.Name() && a.Kind() == b.Kind() && a.AlignedSize() == b.AlignedSize()
}
