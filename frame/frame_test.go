package frame

import (
	"testing"

	"github.com/chazu/corelower/typesystem"
)

// ---------------------------------------------------------------------------
// Frame declare/resolve tests
// ---------------------------------------------------------------------------

func i32() typesystem.Type {
	return &typesystem.SimpleType{NameValue: "Int32", Aligned: 4}
}

func i64() typesystem.Type {
	return &typesystem.SimpleType{NameValue: "Int64", Aligned: 8}
}

func TestDeclareAssignsSequentialOffsets(t *testing.T) {
	f := New()
	a := f.Declare("a", i32())
	b := f.Declare("b", i64())
	if a.Offset != 0 {
		t.Errorf("a.Offset = %d, want 0", a.Offset)
	}
	if b.Offset != 4 {
		t.Errorf("b.Offset = %d, want 4", b.Offset)
	}
	if f.Size() != 12 {
		t.Errorf("Size() = %d, want 12", f.Size())
	}
}

func TestResolveFindsInnermostShadow(t *testing.T) {
	f := New()
	f.Declare("x", i32())
	f.PushBlock()
	inner := f.Declare("x", i64())

	got, ok := f.Resolve("x")
	if !ok || got.Offset != inner.Offset {
		t.Errorf("Resolve(x) = %+v, %v, want inner shadow %+v", got, ok, inner)
	}
}

func TestResolveMissingReturnsFalse(t *testing.T) {
	f := New()
	if _, ok := f.Resolve("nope"); ok {
		t.Error("Resolve(nope) reported found, want not found")
	}
}

func TestPushPopBlockRestoresSizeAndLevel(t *testing.T) {
	f := New()
	f.Declare("outer", i32())
	start := f.PushBlock()
	if start != 4 {
		t.Errorf("PushBlock() start = %d, want 4", start)
	}
	if f.BlockLevel() != 1 {
		t.Errorf("BlockLevel() = %d, want 1", f.BlockLevel())
	}
	f.Declare("inner", i64())
	end := f.PopBlock()
	if end != 12 {
		t.Errorf("PopBlock() end = %d, want 12", end)
	}
	if f.Size() != 4 {
		t.Errorf("Size() after PopBlock = %d, want 4 (restored)", f.Size())
	}
	if f.BlockLevel() != 0 {
		t.Errorf("BlockLevel() after PopBlock = %d, want 0", f.BlockLevel())
	}
}

func TestPopBlockWithoutPushPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling PopBlock without a matching PushBlock")
		}
	}()
	New().PopBlock()
}

func TestMustResolvePanicsOnUndeclared(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic from MustResolve on an undeclared name")
		}
	}()
	New().MustResolve("missing")
}

func TestMustResolveReturnsDeclaredSlot(t *testing.T) {
	f := New()
	want := f.Declare("x", i32())
	got := f.MustResolve("x")
	if got.Offset != want.Offset || got.Name != want.Name {
		t.Errorf("MustResolve(x) = %+v, want %+v", got, want)
	}
}
