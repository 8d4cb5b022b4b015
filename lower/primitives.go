package lower

import (
	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/bytecode"
	"github.com/chazu/corelower/defcache"
	"github.com/chazu/corelower/frame"
)

// buildPrimitive implements §4.7 Call rule 2's "dispatch to the intrinsic
// lowerer": a primitive def's body is not user AST to recurse into, it is
// one designated instruction (bytecode.OpPrimitive, carrying the
// primitive's interned name). Each primitive def still gets a frame (for
// its args_bytesize accounting, C6) and a one-instruction body, and is
// cached exactly like any other block-free def — a primitive never yields,
// so defHasBlockParam is always false for it.
func (s *Session) buildPrimitive(def *ast.Def) (*defcache.CompiledDef, error) {
	fr := frame.New()
	if def.Owner != nil {
		fr.Declare("self", def.Owner)
	}
	for _, p := range def.Params {
		fr.Declare(p.Name, p.Type)
	}

	buf := bytecode.New()
	nameIdx := s.internPrimitiveName(def.PrimitiveName)
	buf.Emit(def.Body, bytecode.OpPrimitive, uint64(nameIdx))

	cd := &defcache.CompiledDef{
		Def:          def,
		Bytecode:     buf.Bytes(),
		NodeMap:      buf.NodeMap,
		Frame:        fr,
		ArgsBytesize: fr.Size(),
	}
	s.Defs.Store(cd)
	return cd, nil
}
