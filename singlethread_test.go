package talc

import (
	"sync"
	"testing"
	"unsafe"
)

func TestAssumeSingleThreadedSameGoroutine(t *testing.T) {
	buf := make([]byte, 1<<16)
	e := New(Manual{})
	if _, ok := e.Claim(unsafe.Pointer(&buf[0]), uintptr(len(buf))); !ok {
		t.Fatal("Claim failed")
	}
	st := NewAssumeSingleThreaded(e)

	layout := LayoutOf(32, 8)
	p, ok := st.Allocate(layout)
	if !ok {
		t.Fatal("Allocate failed")
	}
	st.Deallocate(p, layout)

	if err := st.DebugScan(); err != nil {
		t.Errorf("DebugScan: %v", err)
	}
}

func TestAssumeSingleThreadedPanicsOnOtherGoroutine(t *testing.T) {
	buf := make([]byte, 1<<16)
	e := New(Manual{})
	if _, ok := e.Claim(unsafe.Pointer(&buf[0]), uintptr(len(buf))); !ok {
		t.Fatal("Claim failed")
	}
	st := NewAssumeSingleThreaded(e)
	st.Counters() // binds st to this goroutine

	var wg sync.WaitGroup
	wg.Add(1)
	panicked := false
	go func() {
		defer wg.Done()
		defer func() {
			if recover() != nil {
				panicked = true
			}
		}()
		st.Counters()
	}()
	wg.Wait()

	if !panicked {
		t.Error("AssumeSingleThreaded did not panic when accessed from a second goroutine")
	}
}
