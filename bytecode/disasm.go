package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders a crude textual listing of an instruction buffer.
// The real disassembler is an external collaborator (§1); this exists only
// so the cmd/lowerc demonstration driver has something to print — it does
// not attempt to resolve CALL/CALL_BLOCK targets back to names.
func Disassemble(code []byte) string {
	var sb strings.Builder
	pos := 0
	for pos < len(code) {
		op := Opcode(code[pos])
		d := op.Descriptor()
		fmt.Fprintf(&sb, "%04d  %s", pos, d.Name)
		cursor := pos + 1
		for _, operand := range d.Operands {
			if cursor+operand.Width > len(code) {
				break
			}
			v := readUint(code[cursor : cursor+operand.Width])
			fmt.Fprintf(&sb, " %s=%d", operand.Name, v)
			cursor += operand.Width
		}
		sb.WriteByte('\n')
		pos = cursor
	}
	return sb.String()
}

func readUint(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}
