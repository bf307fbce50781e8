package talc

import (
	"unsafe"

	"github.com/timandy/routine"
)

// AssumeSingleThreaded wraps an Engine with a same-goroutine assertion,
// checked on every call, instead of a mutex: the
// goroutine ID of the first call is recorded, and every later call panics
// if it originates from a different goroutine. This is the Go analogue of
// a zero-cost single-threaded marker type: cheaper than Lock when the
// caller already knows every access is confined to one goroutine, at the
// cost of a routine.Goid() call (and a branch) per entry point rather than
// being free at compile time.
type AssumeSingleThreaded struct {
	e     *Engine
	goid  int64
	bound bool
}

// NewAssumeSingleThreaded wraps e. e must not be used directly by any other
// caller afterward.
func NewAssumeSingleThreaded(e *Engine) *AssumeSingleThreaded {
	return &AssumeSingleThreaded{e: e}
}

func (s *AssumeSingleThreaded) checkGoroutine() {
	id := routine.Goid()
	if !s.bound {
		s.goid = id
		s.bound = true
		return
	}
	debugAssert(s.goid == id, "AssumeSingleThreaded accessed from more than one goroutine")
}

// Claim establishes a new arena. See Engine.Claim.
func (s *AssumeSingleThreaded) Claim(base unsafe.Pointer, size uintptr) (unsafe.Pointer, bool) {
	s.checkGoroutine()
	return s.e.Claim(base, size)
}

// Extend raises an arena's end. See Engine.Extend.
func (s *AssumeSingleThreaded) Extend(oldEnd, newEnd unsafe.Pointer) unsafe.Pointer {
	s.checkGoroutine()
	return s.e.Extend(oldEnd, newEnd)
}

// Truncate lowers an arena's end. See Engine.Truncate.
func (s *AssumeSingleThreaded) Truncate(oldEnd, newEnd unsafe.Pointer) (unsafe.Pointer, bool) {
	s.checkGoroutine()
	return s.e.Truncate(oldEnd, newEnd)
}

// Resize extends or truncates an arena. See Engine.Resize.
func (s *AssumeSingleThreaded) Resize(oldEnd, newEnd unsafe.Pointer) (unsafe.Pointer, bool) {
	s.checkGoroutine()
	return s.e.Resize(oldEnd, newEnd)
}

// Reserved reports the truncation boundary. See Engine.Reserved.
func (s *AssumeSingleThreaded) Reserved(end unsafe.Pointer) (unsafe.Pointer, bool) {
	s.checkGoroutine()
	return s.e.Reserved(end)
}

// Allocate carves out a chunk satisfying layout. See Engine.Allocate.
func (s *AssumeSingleThreaded) Allocate(layout Layout) (unsafe.Pointer, bool) {
	s.checkGoroutine()
	return s.e.Allocate(layout)
}

// Deallocate frees a chunk. See Engine.Deallocate.
func (s *AssumeSingleThreaded) Deallocate(p unsafe.Pointer, layout Layout) {
	s.checkGoroutine()
	s.e.Deallocate(p, layout)
}

// TryGrowInPlace attempts an in-place grow. See Engine.TryGrowInPlace.
func (s *AssumeSingleThreaded) TryGrowInPlace(p unsafe.Pointer, oldLayout Layout, newSize uintptr) bool {
	s.checkGoroutine()
	return s.e.TryGrowInPlace(p, oldLayout, newSize)
}

// Shrink shrinks an allocation in place. See Engine.Shrink.
func (s *AssumeSingleThreaded) Shrink(p unsafe.Pointer, oldLayout Layout, newSize uintptr) {
	s.checkGoroutine()
	s.e.Shrink(p, oldLayout, newSize)
}

// TryReallocInPlace shrinks or grows an allocation in place. See
// Engine.TryReallocInPlace.
func (s *AssumeSingleThreaded) TryReallocInPlace(p unsafe.Pointer, oldLayout Layout, newSize uintptr) bool {
	s.checkGoroutine()
	return s.e.TryReallocInPlace(p, oldLayout, newSize)
}

// Counters snapshots the engine's bookkeeping counters.
func (s *AssumeSingleThreaded) Counters() Counters {
	s.checkGoroutine()
	return *s.e.Counters()
}

// DebugScan re-validates free-list invariants. See Engine.DebugScan.
func (s *AssumeSingleThreaded) DebugScan() error {
	s.checkGoroutine()
	return s.e.DebugScan()
}
