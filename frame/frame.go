// Package frame implements the C2 Local-Variable Frame: stack-slot offsets
// per block nesting level, resolved by name + level -> offset + type. It is
// grounded on the teacher's paramSlots/localSlots/captureSlots maps
// (compiler/codegen.go) generalized from fixed-width 1-byte slot indices to
// the byte-offset, variable-width slots the spec's aligned-size layout
// requires (§3 "Local-Variable Frame", §4.2).
package frame

import (
	"fmt"

	"github.com/chazu/corelower/typesystem"
)

// Slot is one declared local: a name's offset never changes once declared
// (§4.2 invariant).
type Slot struct {
	Name       string
	Type       typesystem.Type
	Offset     uint32
	BlockLevel int
}

// Frame is the ordered list of slots for one compiling def, plus the
// bookkeeping needed to push/pop block scopes during the single lowering
// pass.
type Frame struct {
	slots      []Slot
	size       uint32 // current total byte-size, i.e. offset of the next slot
	blockLevel int
	// saved holds (size, blockLevel) pairs pushed by PushBlock, popped by
	// PopBlock — the frame's own undo stack, since recursion in the
	// lowering pass interleaves saves from many call sites.
	saved []savedState
}

type savedState struct {
	size       uint32
	blockLevel int
}

// New creates an empty frame.
func New() *Frame {
	return &Frame{}
}

// Size is the frame's current byte footprint.
func (f *Frame) Size() uint32 { return f.size }

// BlockLevel is the current nesting depth.
func (f *Frame) BlockLevel() int { return f.blockLevel }

// Declare appends a slot of width AlignedSize(type) at the current block
// level and returns it.
func (f *Frame) Declare(name string, t typesystem.Type) Slot {
	s := Slot{Name: name, Type: t, Offset: f.size, BlockLevel: f.blockLevel}
	f.slots = append(f.slots, s)
	if t != nil {
		f.size += t.AlignedSize()
	}
	return s
}

// PushBlock saves the current byte-size and block-level and increments the
// block level, opening a new contiguous locals region starting at the
// current size (§3 "a block's slots occupy a contiguous region").
func (f *Frame) PushBlock() (start uint32) {
	f.saved = append(f.saved, savedState{size: f.size, blockLevel: f.blockLevel})
	f.blockLevel++
	return f.size
}

// PopBlock restores the byte-size and block-level saved by the matching
// PushBlock, discarding the block's locals. It returns the end offset of
// the popped region (the size just before restoring), for callers that
// need [start, end) of a CompiledBlock's locals slice.
func (f *Frame) PopBlock() (end uint32) {
	n := len(f.saved)
	if n == 0 {
		panic("frame: PopBlock without matching PushBlock")
	}
	end = f.size
	s := f.saved[n-1]
	f.saved = f.saved[:n-1]
	f.size = s.size
	f.blockLevel = s.blockLevel
	// Slots declared inside the popped block remain visible by name
	// within that recursion (same-name shadowing is resolved by walking
	// outward, not by deleting them here) but are no longer reachable
	// once the caller's own Resolve calls happen after PopBlock, since
	// new Declares at the restored level will reuse overlapping offsets.
	return end
}

// Resolve walks outward from the current block level, returning the
// innermost visible slot for name, or false if undeclared.
func (f *Frame) Resolve(name string) (Slot, bool) {
	for level := f.blockLevel; level >= 0; level-- {
		for i := len(f.slots) - 1; i >= 0; i-- {
			s := f.slots[i]
			if s.BlockLevel == level && s.Name == name {
				return s, true
			}
		}
	}
	return Slot{}, false
}

// MustResolve is Resolve but panics with a descriptive message, for call
// sites where an unresolved name is always a compiler bug rather than a
// condition to propagate (the frontend guarantees declared locals exist).
func (f *Frame) MustResolve(name string) Slot {
	s, ok := f.Resolve(name)
	if !ok {
		panic(fmt.Sprintf("frame: undeclared local %q", name))
	}
	return s
}
