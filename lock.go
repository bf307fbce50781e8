package talc

import (
	"sync"
	"unsafe"
)

// Lock is a mutex-protected wrapper around Engine for concurrent access.
// Every operation is thread-safe, at the cost of mutex overhead on every
// call; AssumeSingleThreaded trades that overhead for a same-goroutine
// check that panics instead of serializing.
type Lock struct {
	mu sync.Mutex
	e  *Engine
}

// NewLock wraps e for concurrent access. e must not be used directly by any
// other caller afterward.
func NewLock(e *Engine) *Lock {
	return &Lock{e: e}
}

// Claim thread-safely establishes a new arena. See Engine.Claim.
func (l *Lock) Claim(base unsafe.Pointer, size uintptr) (unsafe.Pointer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Claim(base, size)
}

// Extend thread-safely raises an arena's end. See Engine.Extend.
func (l *Lock) Extend(oldEnd, newEnd unsafe.Pointer) unsafe.Pointer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Extend(oldEnd, newEnd)
}

// Truncate thread-safely lowers an arena's end. See Engine.Truncate.
func (l *Lock) Truncate(oldEnd, newEnd unsafe.Pointer) (unsafe.Pointer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Truncate(oldEnd, newEnd)
}

// Resize thread-safely extends or truncates an arena. See Engine.Resize.
func (l *Lock) Resize(oldEnd, newEnd unsafe.Pointer) (unsafe.Pointer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Resize(oldEnd, newEnd)
}

// Reserved thread-safely reports the truncation boundary. See
// Engine.Reserved.
func (l *Lock) Reserved(end unsafe.Pointer) (unsafe.Pointer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Reserved(end)
}

// Allocate thread-safely carves out a chunk satisfying layout. See
// Engine.Allocate.
func (l *Lock) Allocate(layout Layout) (unsafe.Pointer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Allocate(layout)
}

// Deallocate thread-safely frees a chunk. See Engine.Deallocate.
func (l *Lock) Deallocate(p unsafe.Pointer, layout Layout) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.e.Deallocate(p, layout)
}

// TryGrowInPlace thread-safely attempts an in-place grow. See
// Engine.TryGrowInPlace.
func (l *Lock) TryGrowInPlace(p unsafe.Pointer, oldLayout Layout, newSize uintptr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.TryGrowInPlace(p, oldLayout, newSize)
}

// Shrink thread-safely shrinks an allocation in place. See Engine.Shrink.
func (l *Lock) Shrink(p unsafe.Pointer, oldLayout Layout, newSize uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.e.Shrink(p, oldLayout, newSize)
}

// TryReallocInPlace thread-safely shrinks or grows an allocation in place.
// See Engine.TryReallocInPlace.
func (l *Lock) TryReallocInPlace(p unsafe.Pointer, oldLayout Layout, newSize uintptr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.TryReallocInPlace(p, oldLayout, newSize)
}

// Counters thread-safely snapshots the engine's bookkeeping counters.
func (l *Lock) Counters() Counters {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.e.Counters()
}

// DebugScan thread-safely re-validates free-list invariants. See
// Engine.DebugScan.
func (l *Lock) DebugScan() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.DebugScan()
}
