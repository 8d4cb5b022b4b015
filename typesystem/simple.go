package typesystem

// SimpleType is a minimal, self-contained Type implementation used by the
// lowering core's own test suite and by embedders that have not yet wired
// in a real frontend type system. Production use is expected to supply a
// Type backed by the frontend's own type graph instead.
type SimpleType struct {
	KindValue     Kind
	NameValue     string
	Aligned       uint32
	Inner         uint32
	ByValue       bool
	IsStruct      bool
	IsRefLike     bool
	IsPointer     bool
	IsNil         bool
	FFI           FFIType
	ID            uint32
	InstanceVars  map[string]InstanceVar
	Underlying    Type // for type-defs/aliases/pointer-elem
}

func (t *SimpleType) Kind() Kind            { return t.KindValue }
func (t *SimpleType) AlignedSize() uint32   { return t.Aligned }
func (t *SimpleType) InnerSize() uint32     { return t.Inner }
func (t *SimpleType) PassedByValue() bool   { return t.ByValue }
func (t *SimpleType) NilType() bool         { return t.IsNil }
func (t *SimpleType) Struct() bool          { return t.IsStruct }
func (t *SimpleType) ReferenceLike() bool   { return t.IsRefLike }
func (t *SimpleType) Pointer() bool         { return t.IsPointer }
func (t *SimpleType) FFIType() FFIType      { return t.FFI }
func (t *SimpleType) TypeID() uint32        { return t.ID }
func (t *SimpleType) Name() string          { return t.NameValue }

func (t *SimpleType) LookupInstanceVar(name string) (InstanceVar, bool) {
	iv, ok := t.InstanceVars[name]
	return iv, ok
}

// FilterBy returns target unchanged; a real frontend narrows unions here,
// this stand-in has no union membership to narrow.
func (t *SimpleType) FilterBy(target Type) Type {
	return target
}

func (t *SimpleType) RemoveIndirection() Type {
	if t.Underlying != nil {
		return t.Underlying
	}
	return t
}

// SimpleOracle is a minimal Oracle grounded on the §9 design notes.
type SimpleOracle struct {
	NoReturnType Type
}

func (o *SimpleOracle) NoReturn() Type { return o.NoReturnType }

// Merge implements a conservative type_merge: nil and Nil-typed arguments
// are skipped (all of them nil merges to the Nil type), types with the same
// name merge to the first of them, and anything else merges to a
// KindMixedUnion SimpleType whose aligned size is the widest argument plus
// an 8-byte tag (a real frontend computes
// the least upper bound in its own lattice; the core only needs the
// resulting AlignedSize/Kind to drive upcast/downcast).
func (o *SimpleOracle) Merge(types ...Type) Type {
	var nonNil Type
	widest := uint32(0)
	allSame := true
	for _, t := range types {
		if t == nil || t.NilType() {
			continue
		}
		if nonNil == nil {
			nonNil = t
		} else if nonNil.Name() != t.Name() {
			allSame = false
		}
		if t.AlignedSize() > widest {
			widest = t.AlignedSize()
		}
	}
	if nonNil == nil {
		return &SimpleType{KindValue: KindPrimitive, NameValue: "Nil", Aligned: 0, Inner: 0, IsNil: true}
	}
	if allSame {
		return nonNil
	}
	return &SimpleType{
		KindValue: KindMixedUnion,
		NameValue: "Union",
		Aligned:   widest + 8,
		Inner:     widest,
	}
}

// NeedsStructPointer implements the §9 predicate. The set named there is:
// static arrays; virtuals over a struct; module instances whose includer is
// a struct; generic-class instances whose generic type needs it; type-defs
// and aliases forwarding to an underlying type that needs it; struct class
// types. Everything else (primitives, pointers, procs, tuples, named
// tuples, mixed unions, non-struct classes) is false.
func (o *SimpleOracle) NeedsStructPointer(t Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case KindStaticArray:
		return true
	case KindVirtual, KindVirtualMetaclass:
		if u := t.RemoveIndirection(); u != t {
			return o.NeedsStructPointer(u)
		}
		return t.Struct()
	case KindModule:
		if u := t.RemoveIndirection(); u != t {
			return o.NeedsStructPointer(u)
		}
		return false
	case KindGenericClassInstance:
		if u := t.RemoveIndirection(); u != t {
			return o.NeedsStructPointer(u)
		}
		return t.Struct()
	case KindTypeDef, KindAlias:
		return o.NeedsStructPointer(t.RemoveIndirection())
	case KindNonGenericClass, KindClassType:
		return t.Struct()
	default:
		return false
	}
}
