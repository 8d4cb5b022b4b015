package bytecode

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/chazu/corelower/ast"
)

// ---------------------------------------------------------------------------
// Buffer emit/patch tests
// ---------------------------------------------------------------------------

func TestEmitAppendsOpcodeAndOperands(t *testing.T) {
	b := New()
	b.Emit(nil, OpPop, 12)
	code := b.Bytes()
	if len(code) != 5 {
		t.Fatalf("len(code) = %d, want 5 (1 opcode + 4 operand bytes)", len(code))
	}
	if Opcode(code[0]) != OpPop {
		t.Errorf("code[0] = %v, want OpPop", Opcode(code[0]))
	}
	if got := binary.LittleEndian.Uint32(code[1:5]); got != 12 {
		t.Errorf("operand = %d, want 12", got)
	}
}

func TestEmitRecordsNodeMap(t *testing.T) {
	b := New()
	node := &ast.NilLiteral{}
	b.Emit(node, OpNop)
	if b.NodeMap[0] != node {
		t.Errorf("NodeMap[0] = %v, want the emitted node", b.NodeMap[0])
	}
	b.Emit(nil, OpNop)
	if _, ok := b.NodeMap[1]; ok {
		t.Errorf("NodeMap should not record an entry for a nil node")
	}
}

func TestPatchJumpWritesAbsoluteOffset(t *testing.T) {
	b := New()
	b.Emit(nil, OpJump, 0)
	loc := b.PatchLocation()
	b.Emit(nil, OpNop)
	b.Emit(nil, OpNop)
	target := b.CurrentOffset()
	b.PatchJump(loc)

	got := binary.LittleEndian.Uint32(b.Bytes()[loc : loc+jumpOperandWidth])
	if int(got) != target {
		t.Errorf("patched jump target = %d, want %d", got, target)
	}
}

func TestEmitFloat64RoundTrips(t *testing.T) {
	b := New()
	b.EmitFloat64(nil, OpPutI64, 3.5)
	bits := binary.LittleEndian.Uint64(b.Bytes()[1:9])
	if got := math.Float64frombits(bits); got != 3.5 {
		t.Errorf("float round-trip = %v, want 3.5", got)
	}
}
