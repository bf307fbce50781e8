package talc

import (
	"errors"
	"unsafe"
)

// ErrOOM is returned by a Source's Acquire method when it cannot make more
// memory available. Engine.Allocate itself reports that failure as
// (nil, false), not as an error.
var ErrOOM = errors.New("talc: out of memory")

// Source supplies the engine with additional memory on demand and,
// optionally, reclaims unused tail memory when an arena's top-most chunk
// is freed. Implementations must call Engine.Claim or Engine.Extend from
// Acquire to make progress; returning a non-nil error causes the triggering
// allocation to fail.
//
// TrackHeapEnd stands in for a const generic parameter in the allocator
// this engine is modelled on (a compile-time-constant opt-in to
// maintaining the HEAP_END trailer flag and invoking Resize). Go has no
// const associated items on interfaces, so this is an ordinary dynamically
// dispatched method; the design notes this engine follows call a dynamic
// equivalent "acceptable but measurably slower" than the zero-cost
// original.
type Source interface {
	// Acquire is called when the engine cannot satisfy an allocation from
	// its existing free lists. It must call Claim or Extend on e to make
	// more memory available, or return an error to fail the allocation.
	Acquire(e *Engine, layout Layout) error

	// TrackHeapEnd reports whether the engine should maintain the HEAP_END
	// trailer flag and invoke Resize when an arena's top-most free chunk is
	// released.
	TrackHeapEnd() bool

	// Resize is called when the engine frees the top-most free chunk of an
	// arena and TrackHeapEnd reports true. It may return chunkBase (delete
	// the arena), heapEnd (keep it as-is), or any aligned pointer in
	// between (shrink it). If isHeapBase is true and the source returns
	// chunkBase, the arena is deleted entirely.
	Resize(chunkBase, heapEnd unsafe.Pointer, isHeapBase bool) unsafe.Pointer
}

// NoResize provides the default Resize/TrackHeapEnd behaviour for sources
// that never track the heap end: Resize returns heapEnd unchanged and is
// never actually invoked since TrackHeapEnd reports false. Embed it in a
// Source implementation the way the original's Source trait supplies
// default method bodies.
type NoResize struct{}

// TrackHeapEnd always reports false.
func (NoResize) TrackHeapEnd() bool { return false }

// Resize is never consulted when TrackHeapEnd is false; it returns heapEnd
// unchanged for the sake of a total implementation.
func (NoResize) Resize(_, heapEnd unsafe.Pointer, _ bool) unsafe.Pointer { return heapEnd }

// Manual is a Source that never supplies additional memory: Acquire always
// fails. Arenas must be established entirely by explicit calls to Claim.
// This is the simplest possible Source and the one the seed test scenarios
// exercise directly.
type Manual struct{ NoResize }

// Acquire always returns ErrOOM; Manual never grows the address space on
// its own.
func (Manual) Acquire(*Engine, Layout) error { return ErrOOM }

// ClaimOnOOM is a Source that claims one fixed, caller-supplied backing
// buffer the first time Acquire is called, and fails on every subsequent
// call. It is the simplest non-Manual source: useful when a single
// pre-sized backing buffer is available up front but the caller would
// rather not call Claim themselves before the first allocation.
type ClaimOnOOM struct {
	NoResize
	base unsafe.Pointer
	size uintptr
	used bool
}

// NewClaimOnOOM returns a ClaimOnOOM that will claim the byte range
// starting at base spanning size bytes on its first Acquire call.
func NewClaimOnOOM(base unsafe.Pointer, size uintptr) *ClaimOnOOM {
	return &ClaimOnOOM{base: base, size: size}
}

// Acquire claims the configured backing buffer on its first call; every
// subsequent call fails with ErrOOM since the buffer has already been
// handed to the engine.
func (c *ClaimOnOOM) Acquire(e *Engine, _ Layout) error {
	if c.used {
		return ErrOOM
	}
	c.used = true
	if _, ok := e.Claim(c.base, c.size); !ok {
		return ErrOOM
	}
	return nil
}
