package bytecode

import "fmt"

// Opcode is a single bytecode instruction (§6). Opcodes are generated here
// from a descriptor table the way the teacher's vm/bytecode.go documents
// its own opcodeTable — but operand widths and stack effects are declared
// per the representative opcode set in §6, and jump operands are always a
// 4-byte absolute instruction-buffer offset (not the teacher's 2-byte
// relative delta), per §3 "Instruction buffer".
type Opcode byte

const (
	OpNop Opcode = iota
	OpPutNil
	OpPutI64
	OpPutType
	OpPutSelf
	OpGetLocal
	OpSetLocal
	OpPointerOfVar
	OpGetSelfIvar
	OpSetSelfIvar
	OpGetClassVar
	OpSetClassVar
	OpClassVarInitialized
	OpGetConst
	OpSetConst
	OpConstInitialized
	OpGetConstPointer
	OpDup
	OpPop
	OpPopFromOffset
	OpPushZeros
	OpPutStackTopPointer
	OpCall
	OpCallWithBlock
	OpCallBlock
	OpLeave
	OpLeaveDef
	OpBreakBlock
	OpJump
	OpBranchIf
	OpBranchUnless
	OpReferenceIsA
	OpUnionIsA
	OpPointerIsNull
	OpPointerIsNotNull
	OpLogicalNot
	OpLibCall
	OpUnreachable
	OpUnpackTuple
	// OpPrimitive is the generic escape hatch for intrinsic def bodies
	// (arithmetic, pointer arithmetic, allocation, and the like) that §6
	// calls out as a "representative" (non-exhaustive) opcode list. Rather
	// than enumerate one opcode per arithmetic operator, each primitive
	// def compiles to OpPrimitive carrying the primitive's interned name
	// as a constant-pool index operand; the interpreter — out of scope
	// here per §1 — owns the actual primitive-id -> behavior mapping.
	OpPrimitive
)

// Operand describes one fixed-width operand of an opcode.
type Operand struct {
	Name  string
	Width int // bytes
}

// Descriptor names an opcode, its ordered operand list, and a stack-effect
// summary in bytes (pops, pushes). A negative Pushes/Pops of -1 marks a
// variable effect the caller must compute itself (e.g. CALL's effect
// depends on the callee's signature).
type Descriptor struct {
	Name    string
	Opcode  Opcode
	Operands []Operand
	Pops    int
	Pushes  int
}

const jumpOperandWidth = 4 // absolute instruction-buffer offset, §3

var descriptors = map[Opcode]Descriptor{
	OpNop:                 {"NOP", OpNop, nil, 0, 0},
	OpPutNil:              {"PUT_NIL", OpPutNil, nil, 0, 0},
	OpPutI64:              {"PUT_I64", OpPutI64, []Operand{{"imm", 8}}, 0, 8},
	OpPutType:             {"PUT_TYPE", OpPutType, []Operand{{"imm", 4}}, 0, 4},
	OpPutSelf:             {"PUT_SELF", OpPutSelf, nil, 0, -1},
	OpGetLocal:            {"GET_LOCAL", OpGetLocal, []Operand{{"off", 4}, {"sz", 4}}, 0, -1},
	OpSetLocal:            {"SET_LOCAL", OpSetLocal, []Operand{{"off", 4}, {"sz", 4}}, -1, 0},
	OpPointerOfVar:        {"POINTEROF_VAR", OpPointerOfVar, []Operand{{"off", 4}}, 0, 8},
	OpGetSelfIvar:         {"GET_SELF_IVAR", OpGetSelfIvar, []Operand{{"off", 4}, {"sz", 4}}, 0, -1},
	OpSetSelfIvar:         {"SET_SELF_IVAR", OpSetSelfIvar, []Operand{{"off", 4}, {"sz", 4}}, -1, 0},
	OpGetClassVar:         {"GET_CLASS_VAR", OpGetClassVar, []Operand{{"slot", 4}, {"sz", 4}}, 0, -1},
	OpSetClassVar:         {"SET_CLASS_VAR", OpSetClassVar, []Operand{{"slot", 4}, {"sz", 4}}, -1, 0},
	OpClassVarInitialized: {"CLASS_VAR_INITIALIZED", OpClassVarInitialized, []Operand{{"slot", 4}}, 0, 1},
	OpGetConst:            {"GET_CONST", OpGetConst, []Operand{{"slot", 4}, {"sz", 4}}, 0, -1},
	OpSetConst:            {"SET_CONST", OpSetConst, []Operand{{"slot", 4}, {"sz", 4}}, -1, 0},
	OpConstInitialized:    {"CONST_INITIALIZED", OpConstInitialized, []Operand{{"slot", 4}}, 0, 1},
	OpGetConstPointer:     {"GET_CONST_POINTER", OpGetConstPointer, []Operand{{"slot", 4}}, 0, 8},
	OpDup:                 {"DUP", OpDup, []Operand{{"sz", 4}}, 0, -1},
	OpPop:                 {"POP", OpPop, []Operand{{"sz", 4}}, -1, 0},
	OpPopFromOffset:       {"POP_FROM_OFFSET", OpPopFromOffset, []Operand{{"off", 4}, {"sz", 4}}, -1, 0},
	OpPushZeros:           {"PUSH_ZEROS", OpPushZeros, []Operand{{"n", 4}}, 0, -1},
	OpPutStackTopPointer:  {"PUT_STACK_TOP_POINTER", OpPutStackTopPointer, []Operand{{"sz", 4}}, 0, 8},
	OpCall:                {"CALL", OpCall, []Operand{{"cd", 4}}, -1, -1},
	OpCallWithBlock:       {"CALL_WITH_BLOCK", OpCallWithBlock, []Operand{{"cd", 4}, {"cb", 4}}, -1, -1},
	OpCallBlock:           {"CALL_BLOCK", OpCallBlock, []Operand{{"cb", 4}}, -1, -1},
	OpLeave:               {"LEAVE", OpLeave, []Operand{{"sz", 4}}, 0, 0},
	OpLeaveDef:            {"LEAVE_DEF", OpLeaveDef, []Operand{{"sz", 4}}, 0, 0},
	OpBreakBlock:          {"BREAK_BLOCK", OpBreakBlock, []Operand{{"sz", 4}}, 0, 0},
	OpJump:                {"JUMP", OpJump, []Operand{{"off", jumpOperandWidth}}, 0, 0},
	OpBranchIf:            {"BRANCH_IF", OpBranchIf, []Operand{{"off", jumpOperandWidth}}, 1, 0},
	OpBranchUnless:        {"BRANCH_UNLESS", OpBranchUnless, []Operand{{"off", jumpOperandWidth}}, 1, 0},
	OpReferenceIsA:        {"REFERENCE_IS_A", OpReferenceIsA, []Operand{{"id", 4}}, 8, 1},
	OpUnionIsA:            {"UNION_IS_A", OpUnionIsA, []Operand{{"sz", 4}, {"id", 4}}, -1, 1},
	OpPointerIsNull:       {"POINTER_IS_NULL", OpPointerIsNull, nil, 8, 1},
	OpPointerIsNotNull:    {"POINTER_IS_NOT_NULL", OpPointerIsNotNull, nil, 8, 1},
	OpLogicalNot:          {"LOGICAL_NOT", OpLogicalNot, nil, 1, 1},
	OpLibCall:             {"LIB_CALL", OpLibCall, []Operand{{"desc", 4}}, -1, -1},
	OpUnreachable:         {"UNREACHABLE", OpUnreachable, []Operand{{"msg", 4}}, 0, 0},
	OpUnpackTuple:         {"UNPACK_TUPLE", OpUnpackTuple, []Operand{{"tupleType", 4}, {"varTypes", 4}}, -1, -1},
	OpPrimitive:           {"PRIMITIVE", OpPrimitive, []Operand{{"nameIdx", 4}}, -1, -1},
}

// Descriptor looks up the descriptor for an opcode, panicking on an
// unregistered opcode — a descriptor table miss is always a compiler bug,
// never a runtime condition to recover from.
func (op Opcode) Descriptor() Descriptor {
	d, ok := descriptors[op]
	if !ok {
		panic(fmt.Sprintf("bytecode: opcode %d has no descriptor", byte(op)))
	}
	return d
}

// Name returns the opcode's human-readable name.
func (op Opcode) Name() string { return op.Descriptor().Name }

func (op Opcode) String() string { return op.Name() }

// IsJump reports whether this opcode's sole operand is a jump target, per
// §4.1's invariant that a jump opcode is always immediately followed by a
// 4-byte target-offset operand.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJump, OpBranchIf, OpBranchUnless:
		return true
	default:
		return false
	}
}

// OperandWidth returns the total byte width of this opcode's operands.
func (op Opcode) OperandWidth() int {
	w := 0
	for _, operand := range op.Descriptor().Operands {
		w += operand.Width
	}
	return w
}
