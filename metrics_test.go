package talc

import (
	"testing"
	"unsafe"
)

func TestCountersUtilization(t *testing.T) {
	var c Counters
	if got := c.Utilization(); got != 0 {
		t.Errorf("Utilization() before any claim = %v, want 0", got)
	}
	c.accountClaim(1000)
	c.accountAlloc(250)
	if got, want := c.Utilization(), 0.25; got != want {
		t.Errorf("Utilization() = %v, want %v", got, want)
	}
}

func TestCountersFragmentationRatio(t *testing.T) {
	var c Counters
	c.accountClaim(1000)
	c.accountRegisterGap(100)
	if got, want := c.FragmentationRatio(), 0.1; got != want {
		t.Errorf("FragmentationRatio() = %v, want %v", got, want)
	}
}

func TestEngineSnapshot(t *testing.T) {
	buf := make([]byte, 1<<16)
	e := New(Manual{})
	if _, ok := e.Claim(unsafe.Pointer(&buf[0]), uintptr(len(buf))); !ok {
		t.Fatal("Claim failed")
	}
	layout := LayoutOf(64, 8)
	if _, ok := e.Allocate(layout); !ok {
		t.Fatal("Allocate failed")
	}

	m := e.Snapshot()
	if m.AllocatedBytes != 64 {
		t.Errorf("Snapshot().AllocatedBytes = %d, want 64", m.AllocatedBytes)
	}
	if m.Utilization != m.Counters.Utilization() {
		t.Error("Snapshot().Utilization disagrees with Counters.Utilization()")
	}
}
