package talc

import (
	"testing"
	"unsafe"
)

type point struct{ X, Y int64 }

func newTestEngine(t *testing.T, size int) *Engine {
	t.Helper()
	buf := make([]byte, size)
	e := New(Manual{})
	if _, ok := e.Claim(unsafe.Pointer(&buf[0]), uintptr(len(buf))); !ok {
		t.Fatal("Claim failed")
	}
	return e
}

func TestTypedAllocZeroesMemory(t *testing.T) {
	e := newTestEngine(t, 1<<16)
	p, layout, ok := TypedAlloc[point](e)
	if !ok {
		t.Fatal("TypedAlloc failed")
	}
	defer TypedFree(e, p, layout)

	if p.X != 0 || p.Y != 0 {
		t.Errorf("TypedAlloc did not zero memory: %+v", *p)
	}
	p.X, p.Y = 3, 4
	if p.X != 3 || p.Y != 4 {
		t.Error("value did not stick through the returned pointer")
	}
}

func TestTypedAllocSlice(t *testing.T) {
	e := newTestEngine(t, 1<<16)
	s, layout, ok := TypedAllocSlice[point](e, 10)
	if !ok {
		t.Fatal("TypedAllocSlice failed")
	}
	defer TypedFreeSlice(e, s, layout)

	if len(s) != 10 {
		t.Fatalf("len(s) = %d, want 10", len(s))
	}
	for i, v := range s {
		if v.X != 0 || v.Y != 0 {
			t.Errorf("element %d not zeroed: %+v", i, v)
		}
	}
	s[5].X = 42
	if s[5].X != 42 {
		t.Error("write through slice did not stick")
	}
}

func TestTypedAllocSliceZeroLength(t *testing.T) {
	e := newTestEngine(t, 1<<16)
	s, layout, ok := TypedAllocSlice[point](e, 0)
	if !ok {
		t.Fatal("TypedAllocSlice(0) reported failure")
	}
	if s != nil {
		t.Errorf("TypedAllocSlice(0) = %v, want nil", s)
	}
	TypedFreeSlice(e, s, layout) // must be a no-op, not panic
}
