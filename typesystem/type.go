// Package typesystem pins the interface the lowering core requires from the
// external type system (§4.3, §6). The core never constructs types and never
// owns type identity; it only queries one through this interface. A real
// frontend supplies its own implementation backed by its own type graph.
package typesystem

// Kind discriminates the shapes of type the lowering core must special-case.
// It mirrors the discriminant list in spec.md §3.
type Kind int

const (
	KindPrimitive Kind = iota
	KindPointer
	KindReferenceUnion
	KindMixedUnion
	KindNilable
	KindNilableReferenceUnion
	KindVirtual
	KindVirtualMetaclass
	KindTuple
	KindNamedTuple
	KindEnum
	KindInteger
	KindFloat
	KindProc
	KindStaticArray
	KindGenericClassInstance
	KindNonGenericClass
	KindTypeDef
	KindAlias
	KindModule
	KindClassType
	KindLibType
	KindReference
)

// InstanceVar is the result of a Type.LookupInstanceVar query.
type InstanceVar struct {
	Offset uint32
	Type   Type
}

// Type is the opaque identity owned by the external type system. The core
// depends only on the observable facts enumerated here.
type Type interface {
	// Kind reports the discriminant this type belongs to.
	Kind() Kind

	// AlignedSize is the stack/field footprint including trailing padding.
	AlignedSize() uint32

	// InnerSize is the payload footprint, excluding any union tag.
	InnerSize() uint32

	// PassedByValue is true for structs/tuples/static-arrays: types whose
	// calling convention copies the value rather than a reference to it.
	PassedByValue() bool

	// NilType reports whether this is exactly the Nil type.
	NilType() bool

	// Struct reports whether this type is a struct (mutable aggregate).
	Struct() bool

	// ReferenceLike reports whether a value of this type is represented
	// purely by a pointer/reference at runtime (classes, virtuals, procs...).
	ReferenceLike() bool

	// Pointer reports whether this is a raw pointer type.
	Pointer() bool

	// FFIType returns the type code used to assemble FFI call descriptors.
	// Valid only when this type crosses a Lib boundary (§4.7 FFI call).
	FFIType() FFIType

	// TypeID returns the runtime type-id used for union tags and virtual
	// dispatch checks (UNION_IS_A, REFERENCE_IS_A).
	TypeID() uint32

	// LookupInstanceVar resolves an instance variable by name.
	LookupInstanceVar(name string) (InstanceVar, bool)

	// FilterBy narrows this type by a target type, as the frontend does
	// when eliminating union members a runtime check has excluded.
	FilterBy(target Type) Type

	// RemoveIndirection strips one layer of type-def/alias wrapping.
	RemoveIndirection() Type

	// Name is a human-readable identifier, used only for diagnostics.
	Name() string
}

// FFIType is the C-ABI type code attached to FFI call arguments (§4.7).
type FFIType int

const (
	FFIVoid FFIType = iota
	FFIInt8
	FFIInt16
	FFIInt32
	FFIInt64
	FFIFloat32
	FFIFloat64
	FFIPointer
	FFIStruct
)

// Oracle groups the cross-type queries the core needs that are not methods
// on a single Type (§4.3's "pure delegation" operations plus §6's
// type_merge and no_return sentinel).
type Oracle interface {
	// Merge computes the type resulting from unifying several static
	// types, used for if/while results and merge_block_break_type (§9).
	Merge(types ...Type) Type

	// NoReturn is the sentinel type for expressions that never produce a
	// value (e.g. a call to a method whose return type is NoReturn).
	NoReturn() Type

	// NeedsStructPointer implements the §9 "Needs-struct-pointer
	// predicate": the set of types whose receivers must be passed by
	// address even though the call site computed them as an rvalue.
	NeedsStructPointer(t Type) bool
}
