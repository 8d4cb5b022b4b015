package defcache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Snapshot is the CBOR-serializable projection of a CompiledDef, for
// persisting a cache across process restarts the way a long-running REPL
// host would want to avoid re-lowering every def on every launch. Grounded
// on the teacher's vm/dist/wire.go MarshalChunk/UnmarshalChunk pair, which
// uses canonical CBOR encoding for deterministic, diffable output.
//
// The AST pointer (CompiledDef.Def) and node map are deliberately not part
// of the snapshot: a Def's identity is only meaningful within the process
// that parsed it, and the node map exists to point back at live AST nodes
// that would not survive serialization. The frame layout is not part of it
// either. A restored Snapshot is therefore only valid for an exact re-run
// against the same already-resolved def; callers rehydrate
// CompiledDef.Def/NodeMap/Frame from the live compile and take
// Bytecode/ArgsBytesize from the snapshot.
type Snapshot struct {
	Selector     string `cbor:"selector"`
	Bytecode     []byte `cbor:"bytecode"`
	ArgsBytesize uint32 `cbor:"args_bytesize"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("defcache: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ToSnapshot projects a CompiledDef into its persistable form.
func ToSnapshot(cd *CompiledDef) Snapshot {
	return Snapshot{
		Selector:     cd.Def.Selector,
		Bytecode:     cd.Bytecode,
		ArgsBytesize: cd.ArgsBytesize,
	}
}

// MarshalSnapshot serializes a Snapshot to canonical CBOR bytes.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("defcache: unmarshal snapshot: %w", err)
	}
	return s, nil
}

// MarshalSnapshots serializes every non-block-bearing entry of a Cache.
func MarshalSnapshots(c *Cache) ([]byte, error) {
	snaps := make([]Snapshot, 0, len(c.byDef))
	for _, cd := range c.byDef {
		snaps = append(snaps, ToSnapshot(cd))
	}
	return cborEncMode.Marshal(snaps)
}

// UnmarshalSnapshots deserializes a slice of Snapshots.
func UnmarshalSnapshots(data []byte) ([]Snapshot, error) {
	var snaps []Snapshot
	if err := cbor.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("defcache: unmarshal snapshots: %w", err)
	}
	return snaps, nil
}
