package constpool

import (
	"testing"

	"github.com/chazu/corelower/typesystem"
)

// ---------------------------------------------------------------------------
// Table tests
// ---------------------------------------------------------------------------

func TestDeclareAssignsSequentialIndices(t *testing.T) {
	tbl := New()
	a := tbl.Declare(Entry{Kind: KindConst, Name: "A"}, &typesystem.SimpleType{Aligned: 4}, []byte{1})
	b := tbl.Declare(Entry{Kind: KindConst, Name: "B"}, &typesystem.SimpleType{Aligned: 8}, []byte{2})
	if a.Index != 0 || b.Index != 1 {
		t.Errorf("indices = %d, %d, want 0, 1", a.Index, b.Index)
	}
	if len(tbl.Slots()) != 2 {
		t.Errorf("len(Slots()) = %d, want 2", len(tbl.Slots()))
	}
}

func TestDeclareIsIdempotentPerEntry(t *testing.T) {
	tbl := New()
	e := Entry{Kind: KindConst, Name: "A"}
	first := tbl.Declare(e, &typesystem.SimpleType{Aligned: 4}, []byte{1})
	second := tbl.Declare(e, &typesystem.SimpleType{Aligned: 4}, []byte{9, 9, 9})
	if first.Index != second.Index {
		t.Errorf("re-declaring the same entry changed its index: %d vs %d", first.Index, second.Index)
	}
	if len(tbl.Slots()) != 1 {
		t.Errorf("re-declaring the same entry added a slot: len = %d, want 1", len(tbl.Slots()))
	}
	if string(second.Initializer) != string(first.Initializer) {
		t.Error("first declaration should win; initializer should not be replaced")
	}
}

func TestIndexOfReportsDeclaredAndUndeclared(t *testing.T) {
	tbl := New()
	e := Entry{Kind: KindConst, Name: "A"}
	if _, ok := tbl.IndexOf(e); ok {
		t.Error("IndexOf should report not-found before Declare")
	}
	slot := tbl.Declare(e, &typesystem.SimpleType{Aligned: 4}, nil)
	idx, ok := tbl.IndexOf(e)
	if !ok || idx != slot.Index {
		t.Errorf("IndexOf(e) = %d, %v, want %d, true", idx, ok, slot.Index)
	}
}

func TestClassVarsAreKeyedByOwner(t *testing.T) {
	tbl := New()
	owner1 := &typesystem.SimpleType{NameValue: "Foo"}
	owner2 := &typesystem.SimpleType{NameValue: "Bar"}
	a := tbl.Declare(Entry{Kind: KindClassVar, Owner: owner1, Name: "@@count"}, &typesystem.SimpleType{Aligned: 4}, nil)
	b := tbl.Declare(Entry{Kind: KindClassVar, Owner: owner2, Name: "@@count"}, &typesystem.SimpleType{Aligned: 4}, nil)
	if a.Index == b.Index {
		t.Error("class vars with the same name but different owners should get distinct slots")
	}
}

func TestDeclareSimpleDoesNotCollideWithDeclare(t *testing.T) {
	tbl := New()
	simple := tbl.DeclareSimple(Entry{Kind: KindConst, Name: "S"}, &typesystem.SimpleType{Aligned: 4}, int64(42))
	if !simple.Simple {
		t.Error("DeclareSimple should mark the slot Simple")
	}
	if simple.SimpleValue != int64(42) {
		t.Errorf("SimpleValue = %v, want 42", simple.SimpleValue)
	}
	// Re-declaring via DeclareSimple is idempotent too.
	again := tbl.DeclareSimple(Entry{Kind: KindConst, Name: "S"}, &typesystem.SimpleType{Aligned: 4}, int64(99))
	if again.Index != simple.Index || again.SimpleValue != int64(42) {
		t.Error("re-declaring a simple constant should keep the first declaration")
	}
}

func TestSlotLayoutSizeAddsInitializedByte(t *testing.T) {
	got := SlotLayoutSize(&typesystem.SimpleType{Aligned: 8})
	if got != 9 {
		t.Errorf("SlotLayoutSize(8-byte type) = %d, want 9", got)
	}
}
