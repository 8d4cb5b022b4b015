package lower

import (
	"strconv"

	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/bytecode"
	"github.com/chazu/corelower/diag"
	"github.com/chazu/corelower/typesystem"
)

// Literals (§4.7 "Literals"): emit the corresponding typed push; if
// wants_value is false, emit nothing — a bare literal statement is dead
// code with no side effect to preserve.

func (u *unit) lowerNilLiteral(n *ast.NilLiteral, st state) error {
	if !st.wantsValue {
		return nil
	}
	u.buf.Emit(n, bytecode.OpPutNil)
	return nil
}

func (u *unit) lowerBoolLiteral(n *ast.BoolLiteral, st state) error {
	if !st.wantsValue {
		return nil
	}
	var v uint64
	if n.Value {
		v = 1
	}
	u.buf.Emit(n, bytecode.OpPutI64, v)
	return nil
}

// lowerNumberLiteral re-emits the literal's raw text at the target numeric
// kind, per §4.7 Call rule 5's autocast description applied here to the
// literal's own static type (float and integer kinds share one AST
// variant; Raw carries the original source text).
func (u *unit) lowerNumberLiteral(n *ast.NumberLiteral, st state) error {
	if !st.wantsValue {
		return nil
	}
	if n.Type() != nil && n.Type().Kind() == typesystem.KindFloat {
		f, err := strconv.ParseFloat(n.Raw, 64)
		if err != nil {
			return diag.Bug(spanOf(n), "malformed float literal %q", n.Raw)
		}
		u.buf.EmitFloat64(n, bytecode.OpPutI64, f)
		return nil
	}
	i, err := strconv.ParseInt(n.Raw, 0, 64)
	if err != nil {
		// Unsigned literals (e.g. a UInt64 max) overflow ParseInt; carry
		// the bit pattern through rather than failing the compile.
		uv, uerr := strconv.ParseUint(n.Raw, 0, 64)
		if uerr != nil {
			return diag.Bug(spanOf(n), "malformed integer literal %q", n.Raw)
		}
		u.buf.Emit(n, bytecode.OpPutI64, uv)
		return nil
	}
	u.buf.Emit(n, bytecode.OpPutI64, uint64(i))
	return nil
}

func (u *unit) lowerCharLiteral(n *ast.CharLiteral, st state) error {
	if !st.wantsValue {
		return nil
	}
	u.buf.Emit(n, bytecode.OpPutI64, uint64(n.Value))
	return nil
}

// lowerStringLiteral pushes, as a 64-bit immediate, the string's index in
// the Session's interned-string table (a handle standing for the interned
// object's identity, §4.7). The pool lives on the Session's GC-root list so
// the interned string outlives this compile (§5).
func (u *unit) lowerStringLiteral(n *ast.StringLiteral, st state) error {
	if !st.wantsValue {
		return nil
	}
	idx := u.sess.internString(n.Value)
	u.buf.Emit(n, bytecode.OpPutI64, uint64(idx))
	return nil
}

// lowerSymbolLiteral pushes the symbol's index in the symbol table (§4.7).
func (u *unit) lowerSymbolLiteral(n *ast.SymbolLiteral, st state) error {
	if !st.wantsValue {
		return nil
	}
	idx := u.sess.internSymbol(n.Value)
	u.buf.Emit(n, bytecode.OpPutI64, uint64(idx))
	return nil
}

// lowerTupleLiteral realizes the tuple's in-memory layout directly on the
// stack (§4.7 "Tuple / named-tuple literal"): lower each element, then pad
// or trim the gap to the next element's declared offset so the final
// stack layout matches the tuple type's field layout exactly.
func (u *unit) lowerTupleLiteral(n *ast.TupleLiteral, st state) error {
	if !st.wantsValue {
		for _, el := range n.Elements {
			if err := u.lower(el, discard()); err != nil {
				return err
			}
		}
		return nil
	}
	return u.lowerTupleElements(n, n.Elements, nil)
}

func (u *unit) lowerNamedTupleLiteral(n *ast.NamedTupleLiteral, st state) error {
	if !st.wantsValue {
		for _, el := range n.Elements {
			if err := u.lower(el, discard()); err != nil {
				return err
			}
		}
		return nil
	}
	return u.lowerTupleElements(n, n.Elements, n.Names)
}

func (u *unit) lowerTupleElements(n ast.Node, elements []ast.Node, names []string) error {
	tupleType := n.Type()
	var offset uint32
	for i, el := range elements {
		if err := u.lower(el, value()); err != nil {
			return err
		}
		offset += el.Type().AlignedSize()

		nextOffset := tupleFieldOffset(tupleType, i+1, len(elements), names)

		switch {
		case nextOffset > offset:
			u.buf.Emit(n, bytecode.OpPushZeros, uint64(nextOffset-offset))
		case nextOffset < offset:
			u.buf.Emit(n, bytecode.OpPopFromOffset, uint64(nextOffset), uint64(offset-nextOffset))
		}
		offset = nextOffset
	}
	return nil
}

// tupleFieldOffset resolves the declared offset of field i of a tuple/
// named-tuple type, i.e. where the i'th element (or the tuple's own
// aligned size, for i == len) begins per the type system's layout — the
// same LookupInstanceVar query used for struct instance-var offsets, since
// tuple fields are laid out identically (§4.7).
func tupleFieldOffset(tupleType typesystem.Type, i, n int, names []string) uint32 {
	if i >= n {
		return tupleType.AlignedSize()
	}
	name := strconv.Itoa(i)
	if names != nil {
		name = names[i]
	}
	if iv, ok := tupleType.LookupInstanceVar(name); ok {
		return iv.Offset
	}
	return tupleType.AlignedSize()
}
