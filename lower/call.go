package lower

import (
	"fmt"

	"github.com/chazu/corelower/ast"
	"github.com/chazu/corelower/bytecode"
	"github.com/chazu/corelower/constpool"
	"github.com/chazu/corelower/defcache"
	"github.com/chazu/corelower/diag"
	"github.com/chazu/corelower/dispatch"
	"github.com/chazu/corelower/ffi"
	"github.com/chazu/corelower/typesystem"
)

// lowerCall implements §4.7 "Call": resolve target_defs (synthesizing and
// caching a multidispatch trampoline when there is more than one
// candidate), compile or fetch the callee, emit the receiver under the
// struct-receiver rules, emit arguments, emit CALL/CALL_WITH_BLOCK, and
// clean up the result per wants_value/wants_struct_pointer.
func (u *unit) lowerCall(n *ast.Call, st state) error {
	if n.IsLibCall {
		return u.lowerFFICall(n, st)
	}

	targetDef, err := u.resolveTargetDef(n)
	if err != nil {
		return err
	}

	var cd *defcache.CompiledDef
	var cbHandle uint32
	hasBlock := n.Block != nil
	if hasBlock {
		cb, err := u.buildCallSiteBlock(n.Block, targetDef)
		if err != nil {
			return err
		}
		cbHandle = u.sess.registerBlock(cb)
		cd, err = u.sess.lowerDefForCall(targetDef, n.Block, cbHandle)
		if err != nil {
			return err
		}
	} else {
		cd, err = u.sess.LowerDef(targetDef)
		if err != nil {
			return err
		}
	}

	structPushed, structSize, err := u.emitReceiver(n, targetDef)
	if err != nil {
		return err
	}

	if err := u.emitArgs(n, targetDef); err != nil {
		return err
	}

	handle := u.sess.handleForDef(cd)
	if hasBlock {
		u.buf.Emit(n, bytecode.OpCallWithBlock, uint64(handle), uint64(cbHandle))
	} else {
		u.buf.Emit(n, bytecode.OpCall, uint64(handle))
	}

	var resultSize uint32
	if rt := targetDef.Type(); rt != nil {
		resultSize = rt.AlignedSize()
	}

	if structPushed {
		u.buf.Emit(n, bytecode.OpPopFromOffset, uint64(structSize), uint64(resultSize))
	}
	if !st.wantsValue {
		u.pop(n, resultSize)
	} else if st.wantsStructPointer {
		u.buf.Emit(n, bytecode.OpPutStackTopPointer, uint64(resultSize))
	}
	return nil
}

// resolveTargetDef picks the single target def, synthesizing (and caching,
// by candidate-set key) a multidispatch trampoline when n.TargetDefs has
// more than one entry (§4.5).
func (u *unit) resolveTargetDef(n *ast.Call) (*ast.Def, error) {
	if len(n.TargetDefs) == 0 {
		return nil, diag.Semantic(spanOf(n), "call to %q has no target def", n.Name)
	}
	if len(n.TargetDefs) == 1 {
		return n.TargetDefs[0], nil
	}
	return u.sess.resolveDispatch(n), nil
}

func (s *Session) resolveDispatch(n *ast.Call) *ast.Def {
	key := dispatch.Key{Selector: n.Name, Arity: len(n.Args)}
	if d, ok := s.Dispatch[key]; ok {
		return d
	}

	var receiverType typesystem.Type
	if n.Receiver != nil {
		receiverType = n.Receiver.Type()
	}

	argNames := make([]string, len(n.Args))
	for i := range argNames {
		argNames[i] = fmt.Sprintf("arg%d", i)
	}

	candidates := make([]dispatch.Candidate, len(n.TargetDefs))
	for i, d := range n.TargetDefs {
		params := make([]typesystem.Type, len(argNames))
		for j := range params {
			if j < len(d.Params) {
				params[j] = d.Params[j].Type
			}
		}
		candidates[i] = dispatch.Candidate{Def: d, Params: params}
	}

	synth := dispatch.Build(n.Name, receiverType, argNames, candidates, s.Oracle)
	s.Dispatch[key] = synth
	return synth
}

// emitReceiver implements §4.7's struct-receiver rules: a passed-by-value
// struct receiver is addressed directly when it is a bare Var/InstanceVar/
// ClassVar/Path (no value copy needed), pushed as a struct pointer when the
// oracle says the call needs one, or otherwise pushed by value and then
// converted to a pointer with PUT_STACK_TOP_POINTER — in which case the
// pushed bytes must be discarded (via POP_FROM_OFFSET) once the call
// returns, which is what the (pushed, size) return values drive.
func (u *unit) emitReceiver(n *ast.Call, targetDef *ast.Def) (pushed bool, size uint32, err error) {
	if n.Receiver == nil {
		return false, 0, nil
	}
	recvType := n.Receiver.Type()
	if recvType != nil && recvType.PassedByValue() && recvType.Struct() {
		switch r := n.Receiver.(type) {
		case *ast.Var:
			if slot, ok := u.fr.Resolve(r.Name); ok {
				u.buf.Emit(r, bytecode.OpPointerOfVar, uint64(slot.Offset))
				return false, 0, nil
			}
		case *ast.InstanceVar:
			if u.owner != nil {
				if iv, ok := u.owner.LookupInstanceVar(r.Name); ok {
					u.buf.Emit(r, bytecode.OpGetSelfIvar, uint64(iv.Offset), uint64(8))
					return false, 0, nil
				}
			}
		case *ast.ClassVar:
			entry := u.classVarEntry(u.owner, r.Name)
			if idx, ok := u.sess.ClassVars.IndexOf(entry); ok {
				u.buf.Emit(r, bytecode.OpGetConstPointer, uint64(idx))
				return false, 0, nil
			}
		case *ast.Path:
			entry := constpool.Entry{Kind: constpool.KindConst, Name: r.Name}
			slot := u.sess.Consts.Declare(entry, r.Type(), nil)
			u.emitConstGuard(r, slot, false)
			u.buf.Emit(r, bytecode.OpGetConstPointer, uint64(slot.Index))
			return false, 0, nil
		}

		if u.needsStructPointer(recvType) {
			if err := u.lower(n.Receiver, structPointer()); err != nil {
				return false, 0, err
			}
			return false, 0, nil
		}
		if err := u.lower(n.Receiver, value()); err != nil {
			return false, 0, err
		}
		sz := recvType.AlignedSize()
		u.buf.Emit(n.Receiver, bytecode.OpPutStackTopPointer, uint64(sz))
		return true, sz, nil
	}

	if err := u.lower(n.Receiver, value()); err != nil {
		return false, 0, err
	}
	if recvType != nil && targetDef.Owner != nil {
		u.upcast(n.Receiver, recvType, targetDef.Owner)
	}
	return false, 0, nil
}

// emitArgs lowers each positional argument, upcasting it to the matching
// parameter's declared type, then each named argument against whatever
// parameter shares its name. Literal autocasting (NumberLiteral re-emitted
// at the target numeric kind) is already baked into the argument node's own
// resolved Type by the frontend, so the only compiler work left here is the
// ordinary upcast every non-literal argument also needs.
func (u *unit) emitArgs(n *ast.Call, targetDef *ast.Def) error {
	for i, a := range n.Args {
		if err := u.lower(a, value()); err != nil {
			return err
		}
		if i < len(targetDef.Params) && targetDef.Params[i].Type != nil {
			u.upcast(a, a.Type(), targetDef.Params[i].Type)
		}
	}
	for _, na := range n.NamedArgs {
		var paramType typesystem.Type
		for _, p := range targetDef.Params[min(len(n.Args), len(targetDef.Params)):] {
			if p.Name == na.Name {
				paramType = p.Type
				break
			}
		}
		if err := u.lower(na.Value, value()); err != nil {
			return err
		}
		if paramType != nil {
			u.upcast(na.Value, na.Value.Type(), paramType)
		}
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// buildCallSiteBlock compiles a Block literal into a CompiledBlock whose
// locals are a slice of the CALLER's own frame (§3: "locals_bytesize_start/
// end - slice of caller frame used exclusively by the block's own locals").
// A blockCtx is pushed for the duration so Break/Next/Return inside the
// block body pick the right opcode (§4.7).
func (u *unit) buildCallSiteBlock(block *ast.Block, targetDef *ast.Def) (*defcache.CompiledBlock, error) {
	start := u.fr.PushBlock()
	for _, ba := range block.Args {
		u.fr.Declare(ba.Name, ba.Type)
	}
	level := u.fr.BlockLevel()

	blockBuf := bytecode.New()
	blockUnit := &unit{sess: u.sess, buf: blockBuf, fr: u.fr, ctx: &ctxStack{}, owner: u.owner, defType: block.Type()}
	blockUnit.ctx.pushBlock(block, targetDef, level)

	if block.Body != nil {
		if err := blockUnit.lower(block.Body, value()); err != nil {
			u.fr.PopBlock()
			return nil, err
		}
	} else if block.Type() != nil {
		blockBuf.Emit(block, bytecode.OpPutNil)
	}

	var sz uint32
	if block.Type() != nil {
		sz = block.Type().AlignedSize()
	}
	blockBuf.Emit(block, bytecode.OpLeave, uint64(sz))

	end := u.fr.PopBlock()

	return &defcache.CompiledBlock{
		Block:               block,
		Bytecode:            blockBuf.Bytes(),
		NodeMap:             blockBuf.NodeMap,
		LocalsBytesizeStart: start,
		LocalsBytesizeEnd:   end,
		BlockLevel:          level,
	}, nil
}

// lowerDefForCall compiles targetDef's own body with yieldTarget set to
// cbHandle, so any Yield inside it can emit CALL_BLOCK against this call
// site's CompiledBlock. Per §4.6 a def taking a block is never cached —
// each call site gets its own compile, since cbHandle differs per site.
func (s *Session) lowerDefForCall(targetDef *ast.Def, block *ast.Block, cbHandle uint32) (*defcache.CompiledDef, error) {
	u := newUnit(s, targetDef.Owner, targetDef.Type())
	u.yieldTarget = &yieldInfo{block: block, handle: cbHandle}
	argsBytesize := u.declareParams(targetDef)

	if targetDef.Body != nil {
		if err := u.lower(targetDef.Body, u.returnState()); err != nil {
			return nil, err
		}
	}
	u.emitReturn(targetDef.Body)

	return &defcache.CompiledDef{
		Def:          targetDef,
		Bytecode:     u.buf.Bytes(),
		NodeMap:      u.buf.NodeMap,
		Frame:        u.fr,
		ArgsBytesize: argsBytesize,
		HasBlock:     true,
	}, nil
}

// lowerYield implements §4.7 "Yield": push arguments (destructuring a
// single tuple-typed argument into a multi-arg block via UNPACK_TUPLE),
// emit CALL_BLOCK against the enclosing def's call-site block, and clean up
// the result like any other call.
func (u *unit) lowerYield(n *ast.Yield, st state) error {
	yt := u.yieldTarget
	if yt == nil {
		return diag.Bug(spanOf(n), "yield outside a def that accepts a block")
	}
	block := yt.block

	if len(n.Args) == 1 && len(block.Args) >= 2 &&
		n.Args[0].Type() != nil && n.Args[0].Type().Kind() == typesystem.KindTuple {
		if err := u.lower(n.Args[0], value()); err != nil {
			return err
		}
		tupleSpec := u.sess.registerUnpackSpec([]uint32{n.Args[0].Type().TypeID()})
		varTypeIDs := make([]uint32, len(block.Args))
		for i, ba := range block.Args {
			if ba.Type != nil {
				varTypeIDs[i] = ba.Type.TypeID()
			}
		}
		varsSpec := u.sess.registerUnpackSpec(varTypeIDs)
		u.buf.Emit(n, bytecode.OpUnpackTuple, uint64(tupleSpec), uint64(varsSpec))
	} else {
		for i, a := range n.Args {
			if err := u.lower(a, value()); err != nil {
				return err
			}
			if i < len(block.Args) && block.Args[i].Type != nil {
				u.upcast(a, a.Type(), block.Args[i].Type)
			}
		}
	}

	u.buf.Emit(n, bytecode.OpCallBlock, uint64(yt.handle))

	var sz uint32
	if block.Type() != nil {
		sz = block.Type().AlignedSize()
	}
	if !st.wantsValue {
		u.pop(n, sz)
	} else if st.wantsStructPointer {
		u.buf.Emit(n, bytecode.OpPutStackTopPointer, uint64(sz))
	}
	return nil
}

// lowerFFICall implements §4.7 "FFI call": each argument is lowered under
// its own rule (a literal nil becomes a null pointer, an Out parameter
// becomes the address of its underlying variable, everything else is
// lowered by value and described via ffi.ArgFor), then a LIB_CALL is
// emitted against the session's FFI descriptor table.
func (u *unit) lowerFFICall(n *ast.Call, st state) error {
	args := make([]ffi.Arg, 0, len(n.Args))
	for _, a := range n.Args {
		switch av := a.(type) {
		case *ast.NilLiteral:
			u.buf.Emit(a, bytecode.OpPutI64, uint64(0)) // 8-byte null pointer
			args = append(args, ffi.Arg{Size: 8, Type: typesystem.FFIPointer})
		case *ast.Out:
			if err := u.lowerOutArg(av); err != nil {
				return err
			}
			args = append(args, ffi.Arg{Size: 8, Type: typesystem.FFIPointer})
		case *ast.ProcLiteral:
			if err := u.lower(av, value()); err != nil {
				return err
			}
			args = append(args, ffi.Arg{Size: 16, Type: typesystem.FFIPointer})
		default:
			if err := u.lower(a, value()); err != nil {
				return err
			}
			args = append(args, ffi.ArgFor(a.Type()))
		}
	}

	// This AST has no variadic-def marker (§4.7's FFI call rule does not
	// call one out, and ast.Def carries no such flag) — every lib call here
	// is treated as fixed-arity, so signatures dedup through ffi.Table.
	lf := u.sess.Libs.Build(n.Name, args, ffi.ArgFor(n.Type()), false)
	idx := u.sess.registerLibFunction(lf)
	u.buf.Emit(n, bytecode.OpLibCall, uint64(idx))

	var sz uint32
	if n.Type() != nil {
		sz = n.Type().AlignedSize()
	}
	if !st.wantsValue {
		u.pop(n, sz)
	} else if st.wantsStructPointer {
		u.buf.Emit(n, bytecode.OpPutStackTopPointer, uint64(sz))
	}
	return nil
}

// lowerOutArg emits the address of an Out argument's underlying variable
// (§4.7 FFI call) without routing through the general `lower` dispatch,
// since Out is only ever meaningful directly inside an FFI argument list.
func (u *unit) lowerOutArg(o *ast.Out) error {
	switch t := o.Target.(type) {
	case *ast.Var:
		slot, ok := u.fr.Resolve(t.Name)
		if !ok {
			return diag.Semantic(spanOf(o), "unresolved local %q in out argument", t.Name)
		}
		u.buf.Emit(o, bytecode.OpPointerOfVar, uint64(slot.Offset))
	case *ast.InstanceVar:
		if u.owner == nil {
			return diag.Bug(spanOf(o), "out-parameter instance var outside method body")
		}
		iv, ok := u.owner.LookupInstanceVar(t.Name)
		if !ok {
			return diag.Semantic(spanOf(o), "unresolved instance variable %q", t.Name)
		}
		u.buf.Emit(o, bytecode.OpGetSelfIvar, uint64(iv.Offset), uint64(8))
	case *ast.ClassVar:
		entry := u.classVarEntry(u.owner, t.Name)
		idx, ok := u.sess.ClassVars.IndexOf(entry)
		if !ok {
			return diag.Semantic(spanOf(o), "unresolved class var %q", t.Name)
		}
		u.buf.Emit(o, bytecode.OpGetConstPointer, uint64(idx))
	default:
		return diag.Bug(spanOf(o), "out argument target %T is not an addressable variable", o.Target)
	}
	return nil
}
