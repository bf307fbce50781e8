// Package talc implements a general-purpose dynamic memory allocator: an
// Engine that claims arbitrary byte ranges as arenas and serves Allocate /
// Deallocate requests against them with boundary-tag-encoded chunks, a
// size-binned set of free lists, and an availability bit-field for O(1)
// bin lookup.
//
// # Overview
//
// Unlike a bump arena, the engine supports individual deallocation,
// in-place growing and shrinking, and coalescing of adjacent free chunks,
// at the cost of per-chunk bookkeeping overhead. This is useful for:
//
//   - Implementing a custom heap on top of raw memory (mmap'd regions,
//     shared memory segments, WASM linear memory, statically reserved
//     buffers on embedded targets)
//   - Bridging to code that expects malloc/free semantics rather than Go's
//     garbage-collected allocator
//   - Workloads where predictable, GC-free allocation latency matters more
//     than raw throughput
//
// # Basic Usage
//
//	source := talc.NewClaimOnOOM(backingBase, backingSize)
//	engine := talc.New(source)
//
//	layout := talc.LayoutOf(64, 8)
//	p, ok := engine.Allocate(layout)
//	if !ok {
//		// out of memory
//	}
//	defer engine.Deallocate(p, layout)
//
//	// Typed helpers mirror Allocate/Deallocate for a single T or []T.
//	val, layout, ok := talc.TypedAlloc[MyStruct](engine)
//	defer talc.TypedFree(engine, val, layout)
//
// # Thread Safety
//
// The basic Engine type is not thread-safe. Lock wraps it in a mutex for
// concurrent use from multiple goroutines:
//
//	locked := talc.NewLock(engine)
//	p, ok := locked.Allocate(layout)
//
// AssumeSingleThreaded instead asserts (rather than enforces) that every
// call comes from the same goroutine, trading Lock's mutex overhead for a
// goroutine-identity check:
//
//	st := talc.NewAssumeSingleThreaded(engine)
//	p, ok := st.Allocate(layout)
//
// # Memory Sources
//
// A Source supplies additional memory on demand via Acquire, and may
// optionally reclaim unused tail memory via Resize when its own
// TrackHeapEnd reports true. Manual never grows the address space on its
// own; ClaimOnOOM claims one fixed backing buffer on first use. Callers
// needing dynamic growth (mmap, a growable Go byte slice, etc.) implement
// Source directly.
//
// # Performance Characteristics
//
//   - Allocate / Deallocate: O(1) for chunks that fit a size-segregated
//     bin exactly; O(k) in the number of candidates scanned for
//     oversized or over-aligned requests
//   - TryGrowInPlace / Shrink: O(1)
//   - Claim / Extend / Truncate: O(1)
//
// # Diagnostics
//
// Counters reports live and cumulative allocation, arena, and
// fragmentation statistics:
//
//	fmt.Println(engine.Counters())
package talc
