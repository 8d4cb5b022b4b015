package bytecode

import (
	"encoding/binary"
	"math"

	"github.com/chazu/corelower/ast"
)

// Buffer is the C1 Instruction Buffer & Patcher: it appends opcodes and
// operands to a byte vector and returns patch locations for later
// back-patching of jump targets, mirroring the teacher's BytecodeBuilder
// (vm/bytecode.go) but with absolute 4-byte jump operands instead of
// relative 2-byte deltas, per §3/§4.1.
type Buffer struct {
	code []byte
	// NodeMap sparsely maps instruction_offset -> AST node (§3, §6), used
	// by exception sites and debugger-style stop points.
	NodeMap map[int]ast.Node
}

// New creates an empty instruction buffer.
func New() *Buffer {
	return &Buffer{
		code:    make([]byte, 0, 256),
		NodeMap: make(map[int]ast.Node),
	}
}

// Bytes returns the underlying instruction stream.
func (b *Buffer) Bytes() []byte { return b.code }

// Len is the current buffer length, i.e. the offset the next emit lands at.
func (b *Buffer) Len() int { return len(b.code) }

// Emit appends opcode and operands. If node is non-nil, the buffer length
// before the opcode is recorded in the node map (§4.1).
func (b *Buffer) Emit(node ast.Node, op Opcode, operands ...uint64) {
	if node != nil {
		b.NodeMap[len(b.code)] = node
	}
	b.code = append(b.code, byte(op))
	widths := op.Descriptor().Operands
	for i, v := range operands {
		width := 4
		if i < len(widths) {
			width = widths[i].Width
		}
		b.appendOperand(v, width)
	}
}

// EmitFloat64 appends an opcode followed by a raw IEEE-754 operand, for
// opcodes whose operand table declares an 8-byte width holding a float
// rather than an integer (e.g. a float literal push).
func (b *Buffer) EmitFloat64(node ast.Node, op Opcode, v float64) {
	if node != nil {
		b.NodeMap[len(b.code)] = node
	}
	b.code = append(b.code, byte(op))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	b.code = append(b.code, buf[:]...)
}

func (b *Buffer) appendOperand(v uint64, width int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	b.code = append(b.code, buf[:width]...)
}

// PatchLocation returns the offset of the last operand emitted — the one
// to be overwritten later by PatchJump. Call it immediately after Emit for
// a jump opcode, per the §4.1 invariant.
func (b *Buffer) PatchLocation() int {
	return len(b.code) - jumpOperandWidth
}

// PatchJump writes the current buffer length (the jump target) into the
// 4 bytes at loc.
func (b *Buffer) PatchJump(loc int) {
	binary.LittleEndian.PutUint32(b.code[loc:loc+jumpOperandWidth], uint32(len(b.code)))
}

// CurrentOffset is an alias for Len used at call sites that read more
// naturally as "where am I right now" (loop-start bookkeeping, §4.7 While).
func (b *Buffer) CurrentOffset() int { return b.Len() }
