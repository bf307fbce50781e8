package talc

import (
	"fmt"
	"unsafe"
)

// MinFirstArenaSize is the smallest arena size that the first call to
// Engine.Claim can succeed with, assuming a ChunkUnit-aligned base: the
// bin-head metadata array plus one trailer word, rounded up to ChunkUnit.
// A base that isn't already ChunkUnit-aligned may need up to ChunkUnit-1
// additional bytes of slack on top of this.
var MinFirstArenaSize = alignUp(uintptr(binCount)*wordSize+wordSize, ChunkUnit)

// Engine is the core allocator: it partitions one or more caller-supplied
// arenas into allocated and free chunks, classifies free chunks into
// size-binned free lists reachable in O(1) via an availability bit-field,
// coalesces adjacent free chunks on deallocation, and can grow or shrink
// allocations in place. The engine is not thread-safe; concurrent access
// must be serialized by a wrapper such as Lock or AssumeSingleThreaded.
type Engine struct {
	avail     availBits
	freeLists unsafe.Pointer // array of binCount uintptr head slots; nil until the first successful Claim
	source    Source
	counters  Counters
}

// New returns an Engine with no claimed memory, backed by source.
func New(source Source) *Engine {
	return &Engine{source: source}
}

// Source returns the engine's memory source.
func (e *Engine) Source() Source { return e.source }

// Counters returns a pointer to the engine's live bookkeeping snapshot.
// Treat it as read-only; it is invalidated by the next mutating call.
func (e *Engine) Counters() *Counters { return &e.counters }

// requiredChunkSize returns the chunk size needed to satisfy a user
// request of size bytes: the request plus one trailer word, rounded up to
// ChunkUnit.
func requiredChunkSize(size uintptr) uintptr {
	return alignUp(size+wordSize, ChunkUnit)
}

func gapBin(base unsafe.Pointer) uint32 {
	return uint32(loadWord(ptrAdd(base, 2*wordSize)))
}

func setGapBin(base unsafe.Pointer, bin uint32) {
	storeWord(ptrAdd(base, 2*wordSize), uintptr(bin))
}

func gapLowSize(base unsafe.Pointer) uintptr {
	// For a ChunkUnit-sized gap the low size word is also the high one, which
	// may carry a HEAP_END flag; sizes are ChunkUnit multiples, so mask it off.
	return loadWord(ptrAdd(base, 3*wordSize)) &^ uintptr(flagHeapEnd)
}

func setGapLowSize(base unsafe.Pointer, size uintptr) {
	storeWord(ptrAdd(base, 3*wordSize), size)
}

func readTag(chunkEnd unsafe.Pointer) tag {
	return tag(loadWord(ptrSub(chunkEnd, wordSize)))
}

func writeTag(chunkEnd unsafe.Pointer, t tag) {
	storeWord(ptrSub(chunkEnd, wordSize), uintptr(t))
}

func (e *Engine) markHeapEnd(end unsafe.Pointer) {
	p := ptrSub(end, wordSize)
	storeWord(p, loadWord(p)|uintptr(flagHeapEnd))
}

func (e *Engine) clearAboveFreeBelow(base unsafe.Pointer) {
	p := ptrSub(base, wordSize)
	storeWord(p, loadWord(p)&^uintptr(flagAboveFree))
}

func (e *Engine) setAboveFreeBelow(base unsafe.Pointer) {
	p := ptrSub(base, wordSize)
	storeWord(p, loadWord(p)|uintptr(flagAboveFree))
}

func (e *Engine) binSlot(bin uint32) unsafe.Pointer {
	return ptrAdd(e.freeLists, uintptr(bin)*wordSize)
}

// registerGap files [base, end) as a free chunk: links it at the head of
// its bin's list, sets the availability bit if the list was previously
// empty, and stamps the low/high size words. Callers are responsible for
// OR-ing a HEAP_END flag onto the high word afterward when applicable.
func (e *Engine) registerGap(base, end unsafe.Pointer) {
	size := ptrDiff(end, base)
	debugAssert(size >= ChunkUnit, "registerGap: gap smaller than ChunkUnit")

	bin := sizeToBin(size)
	if bin >= binCount {
		bin = binCount - 1
	}
	slot := e.binSlot(bin)
	oldHead := loadWord(slot)
	if oldHead == 0 {
		e.avail.setBit(bin)
	}
	linkNodeAt(base, oldHead, slot)
	setGapBin(base, bin)
	setGapLowSize(base, size)
	storeWord(ptrSub(end, wordSize), size)

	e.counters.accountRegisterGap(size)
}

// deregisterGap removes the free chunk at base from its bin's list,
// clearing the availability bit if the list becomes empty, and returns the
// chunk's size.
func (e *Engine) deregisterGap(base unsafe.Pointer) uintptr {
	size := gapLowSize(base)
	bin := gapBin(base)
	unlinkNodeAt(base)
	if loadWord(e.binSlot(bin)) == 0 {
		e.avail.clearBit(bin)
	}
	e.counters.accountDeregisterGap(size)
	return size
}

// fullSearchBin linearly scans bin's free list for the first chunk that,
// once aligned up by alignMask+1, still has room for required bytes.
func (e *Engine) fullSearchBin(bin uint32, required, alignMask uintptr) (base, chunkEnd unsafe.Pointer, ok bool) {
	it := iterNodes(loadWord(e.binSlot(bin)))
	for {
		addr, more := it.next()
		if !more {
			return nil, nil, false
		}
		b := unsafe.Pointer(addr)
		size := gapLowSize(b)
		end := ptrAdd(b, size)
		alignedBase := unsafe.Pointer((uintptr(b) + alignMask) &^ alignMask)
		if uintptr(alignedBase)+required <= uintptr(end) {
			return b, end, true
		}
	}
}

// Claim establishes a new arena spanning [base, base+size), aligned down
// to ChunkUnit. The first successful Claim also carves out the engine's
// own bin-head metadata array from the front of the arena. Returns the
// arena's top pointer, or (nil, false) if there was insufficient room for
// the required metadata (first claim) or trailer (later claims).
func (e *Engine) Claim(base unsafe.Pointer, size uintptr) (unsafe.Pointer, bool) {
	if base == nil {
		base = unsafe.Pointer(uintptr(1))
	}
	end := alignPtrDown(ptrAdd(base, size), ChunkUnit)

	first := e.freeLists == nil
	var chunkAreaBase, metaBase unsafe.Pointer
	if first {
		metaBase = alignPtrUp(base, wordSize)
		reserve := uintptr(binCount)*wordSize + wordSize
		chunkAreaBase = alignPtrUp(ptrAdd(metaBase, reserve), ChunkUnit)
	} else {
		wordBase := alignPtrUp(base, wordSize)
		chunkAreaBase = alignPtrUp(ptrAdd(wordBase, wordSize), ChunkUnit)
	}

	if uintptr(end) < uintptr(chunkAreaBase) {
		return nil, false
	}

	if first {
		for i := uintptr(0); i < uintptr(binCount); i++ {
			storeWord(ptrAdd(metaBase, i*wordSize), 0)
		}
		e.avail = availBits{}
		e.freeLists = metaBase
	}

	hasPayload := uintptr(end) > uintptr(chunkAreaBase)
	t := flagAllocated | flagHeapBase
	if hasPayload {
		t |= flagAboveFree
	} else if e.source.TrackHeapEnd() {
		t |= flagHeapEnd
	}
	writeTag(chunkAreaBase, t)

	e.counters.accountClaim(uintptr(end) - uintptr(base))

	if hasPayload {
		e.registerGap(chunkAreaBase, end)
		if e.source.TrackHeapEnd() {
			e.markHeapEnd(end)
		}
	}

	return end, true
}

// Extend raises an arena's end from oldEnd to newEnd (aligned down to
// ChunkUnit). A newEnd not greater than oldEnd is a no-op. Always
// succeeds; returns the resulting end.
func (e *Engine) Extend(oldEnd, newEnd unsafe.Pointer) unsafe.Pointer {
	newEnd = alignPtrDown(newEnd, ChunkUnit)
	if uintptr(newEnd) <= uintptr(oldEnd) {
		return oldEnd
	}

	belowWord := loadWord(ptrSub(oldEnd, wordSize))
	var base unsafe.Pointer
	if belowWord&uintptr(flagAllocated) == 0 {
		size := belowWord &^ uintptr(flagHeapEnd)
		base = ptrSub(oldEnd, size)
		e.deregisterGap(base)
	} else {
		nt := tag(belowWord).without(flagHeapEnd).with(flagAboveFree)
		storeWord(ptrSub(oldEnd, wordSize), uintptr(nt))
		base = oldEnd
	}

	e.registerGap(base, newEnd)
	if e.source.TrackHeapEnd() {
		e.markHeapEnd(newEnd)
	}
	e.counters.accountAppend(uintptr(oldEnd), uintptr(newEnd))
	return newEnd
}

// Truncate lowers an arena's end from oldEnd to newEnd (aligned down to
// ChunkUnit). A newEnd not less than oldEnd is a no-op. Truncation can only
// reclaim memory currently sitting in the arena's trailing free gap, if
// any; it reports (nil, false) if truncating past the trailing gap's base
// would delete the arena entirely.
func (e *Engine) Truncate(oldEnd, newEnd unsafe.Pointer) (unsafe.Pointer, bool) {
	newEnd = alignPtrDown(newEnd, ChunkUnit)
	if uintptr(newEnd) >= uintptr(oldEnd) {
		return oldEnd, true
	}

	belowWord := loadWord(ptrSub(oldEnd, wordSize))
	if belowWord&uintptr(flagAllocated) != 0 {
		return oldEnd, true
	}

	size := belowWord &^ uintptr(flagHeapEnd)
	gapBase := ptrSub(oldEnd, size)
	e.deregisterGap(gapBase)

	if uintptr(gapBase) < uintptr(newEnd) {
		e.registerGap(gapBase, newEnd)
		if e.source.TrackHeapEnd() {
			e.markHeapEnd(newEnd)
		}
		e.counters.accountTruncate(uintptr(oldEnd), uintptr(newEnd), false)
		return newEnd, true
	}

	belowBelow := tag(loadWord(ptrSub(gapBase, wordSize)))
	if belowBelow.heapBase() {
		e.counters.accountTruncate(uintptr(oldEnd), uintptr(gapBase), true)
		return nil, false
	}

	newBelow := belowBelow.without(flagAboveFree)
	if e.source.TrackHeapEnd() {
		newBelow = newBelow.with(flagHeapEnd)
	}
	storeWord(ptrSub(gapBase, wordSize), uintptr(newBelow))
	e.counters.accountTruncate(uintptr(oldEnd), uintptr(gapBase), false)
	return gapBase, true
}

// Resize dispatches to Extend or Truncate depending on whether newEnd is
// above or below oldEnd.
func (e *Engine) Resize(oldEnd, newEnd unsafe.Pointer) (unsafe.Pointer, bool) {
	if uintptr(alignPtrDown(newEnd, ChunkUnit)) >= uintptr(oldEnd) {
		return e.Extend(oldEnd, newEnd), true
	}
	return e.Truncate(oldEnd, newEnd)
}

// Reserved reports the boundary beneath which the arena ending at end
// cannot currently be truncated: the base of its trailing free gap, if
// one exists, else end itself. The second return value reports whether
// such a reclaimable trailing gap exists.
func (e *Engine) Reserved(end unsafe.Pointer) (unsafe.Pointer, bool) {
	w := loadWord(ptrSub(end, wordSize))
	if w&uintptr(flagAllocated) == 0 {
		size := w &^ uintptr(flagHeapEnd)
		return ptrSub(end, size), true
	}
	return end, false
}

// Allocate carves out a chunk satisfying layout, invoking the engine's
// Source's Acquire callback as many times as necessary on OOM. Reports
// (nil, false) as soon as an Acquire call returns an error.
func (e *Engine) Allocate(layout Layout) (unsafe.Pointer, bool) {
	debugAssert(layout.Size > 0, "Allocate requires a nonzero size")
	required := requiredChunkSize(layout.Size)
	alignMask := layout.Align - 1

	var base, chunkEnd unsafe.Pointer

search:
	for {
		binCeil := sizeToBinCeil(required)

		if binCeil >= binCount-1 {
			if e.avail.readBit(binCount - 1) {
				if b, ce, ok := e.fullSearchBin(binCount-1, required, alignMask); ok {
					base, chunkEnd = b, ce
					break search
				}
			}
			if err := e.source.Acquire(e, layout); err != nil {
				return nil, false
			}
			continue search
		}

		if layout.Align <= ChunkUnit {
			b := e.avail.bitScanAfter(binCeil)
			if b >= binCount {
				if binCeil > 0 && e.avail.readBit(binCeil-1) {
					if bb, ce, ok := e.fullSearchBin(binCeil-1, required, alignMask); ok {
						base, chunkEnd = bb, ce
						break search
					}
				}
				if err := e.source.Acquire(e, layout); err != nil {
					return nil, false
				}
				continue search
			}

			head := loadWord(e.binSlot(b))
			size := gapLowSize(unsafe.Pointer(head))
			debugAssert(size >= required, "binning invariant violated: chunk smaller than its bin guarantees")
			base = unsafe.Pointer(head)
			chunkEnd = ptrAdd(base, size)
			break search
		}

		// Large-alignment path: linear-scan bin and upward, then fall back
		// to the exact (non-ceiling) bin before escalating to OOM.
		found := false
		for b := e.avail.bitScanAfter(binCeil); b < binCount; b = e.avail.bitScanAfter(b + 1) {
			if bb, ce, ok := e.fullSearchBin(b, required, alignMask); ok {
				base, chunkEnd, found = bb, ce, true
				break
			}
		}
		if !found && binCeil > 0 {
			if bb, ce, ok := e.fullSearchBin(binCeil-1, required, alignMask); ok {
				base, chunkEnd, found = bb, ce, true
			}
		}
		if found {
			break search
		}
		if err := e.source.Acquire(e, layout); err != nil {
			return nil, false
		}
	}

	e.deregisterGap(base)
	e.clearAboveFreeBelow(base)

	alignedBase := alignPtrUp(base, layout.Align)
	if uintptr(alignedBase) != uintptr(base) {
		e.registerGap(base, alignedBase)
		e.setAboveFreeBelow(base)
	}

	hadHeapEnd := false
	if e.source.TrackHeapEnd() {
		hadHeapEnd = loadWord(ptrSub(chunkEnd, wordSize))&uintptr(flagHeapEnd) != 0
	}

	end := ptrAdd(alignedBase, required)
	t := flagAllocated
	if uintptr(end) != uintptr(chunkEnd) {
		e.registerGap(end, chunkEnd)
		t |= flagAboveFree
		if hadHeapEnd {
			e.markHeapEnd(chunkEnd)
		}
	} else if hadHeapEnd {
		t |= flagHeapEnd
	}

	e.counters.accountAlloc(layout.Size)
	writeTag(end, t)
	return alignedBase, true
}

// Deallocate frees the chunk at p, allocated with layout, coalescing with
// any free neighbours and, if the resulting gap abuts a tracked heap end,
// consulting the Source's Resize callback.
func (e *Engine) Deallocate(p unsafe.Pointer, layout Layout) {
	chunkBase := p
	chunkEnd := alignPtrUp(ptrAdd(p, layout.Size+wordSize), ChunkUnit)
	t := readTag(chunkEnd)
	debugAssert(t.allocated(), "Deallocate: chunk is not allocated")

	isHeapBase := t.heapBase()
	resultIsHeapEnd := t.heapEnd()

	belowWord := loadWord(ptrSub(chunkBase, wordSize))
	if belowWord&uintptr(flagAllocated) == 0 {
		belowBase := ptrSub(chunkBase, belowWord&^uintptr(flagHeapEnd))
		e.deregisterGap(belowBase)
		chunkBase = belowBase
		isHeapBase = isHeapBase || tag(loadWord(ptrSub(chunkBase, wordSize))).heapBase()
	} else {
		isHeapBase = isHeapBase || tag(belowWord).heapBase()
		e.setAboveFreeBelow(chunkBase)
	}

	if t.aboveFree() {
		aboveBase := chunkEnd
		aboveSize := gapLowSize(aboveBase) &^ uintptr(flagHeapEnd)
		aboveEnd := ptrAdd(aboveBase, aboveSize)
		if e.source.TrackHeapEnd() {
			resultIsHeapEnd = loadWord(ptrSub(aboveEnd, wordSize))&uintptr(flagHeapEnd) != 0
		}
		e.deregisterGap(aboveBase)
		chunkEnd = aboveEnd
	}

	e.counters.accountDealloc(layout.Size)

	if resultIsHeapEnd && e.source.TrackHeapEnd() {
		beforeEnd := chunkEnd
		newEnd := e.source.Resize(chunkBase, chunkEnd, isHeapBase)
		if uintptr(newEnd) == uintptr(chunkBase) && isHeapBase {
			e.counters.accountTruncate(uintptr(beforeEnd), uintptr(newEnd), true)
			return
		}
		e.counters.accountTruncate(uintptr(beforeEnd), uintptr(newEnd), false)
		chunkEnd = newEnd
	}

	if uintptr(chunkEnd) > uintptr(chunkBase) {
		e.registerGap(chunkBase, chunkEnd)
		if resultIsHeapEnd && e.source.TrackHeapEnd() {
			e.markHeapEnd(chunkEnd)
		}
		return
	}

	p2 := ptrSub(chunkBase, wordSize)
	v := tag(loadWord(p2)).without(flagAboveFree)
	if resultIsHeapEnd && e.source.TrackHeapEnd() {
		v = v.with(flagHeapEnd)
	}
	storeWord(p2, uintptr(v))
}

// TryGrowInPlace attempts to extend the allocation at p from oldLayout's
// size to newSize without moving it, succeeding only if newSize still fits
// the current chunk or the immediately higher neighbour is a free gap large
// enough to absorb. O(1). newSize must be >= oldLayout.Size.
func (e *Engine) TryGrowInPlace(p unsafe.Pointer, oldLayout Layout, newSize uintptr) bool {
	debugAssert(newSize >= oldLayout.Size, "TryGrowInPlace requires newSize >= oldLayout.Size")

	oldEnd := alignPtrUp(ptrAdd(p, oldLayout.Size+wordSize), ChunkUnit)
	newEnd := alignPtrUp(ptrAdd(p, newSize+wordSize), ChunkUnit)
	if uintptr(newEnd) == uintptr(oldEnd) {
		e.counters.accountGrowInPlace(oldLayout.Size, newSize)
		return true
	}

	t := readTag(oldEnd)
	if !t.aboveFree() {
		return false
	}

	aboveBase := oldEnd
	aboveSize := gapLowSize(aboveBase) &^ uintptr(flagHeapEnd)
	aboveEnd := ptrAdd(aboveBase, aboveSize)
	if uintptr(newEnd) > uintptr(aboveEnd) {
		return false
	}
	hadHeapEnd := loadWord(ptrSub(aboveEnd, wordSize))&uintptr(flagHeapEnd) != 0

	e.deregisterGap(aboveBase)
	nt := flagAllocated
	if uintptr(newEnd) < uintptr(aboveEnd) {
		e.registerGap(newEnd, aboveEnd)
		nt |= flagAboveFree
		if hadHeapEnd {
			e.markHeapEnd(aboveEnd)
		}
	} else if hadHeapEnd {
		nt |= flagHeapEnd
	}
	writeTag(newEnd, nt)

	e.counters.accountGrowInPlace(oldLayout.Size, newSize)
	return true
}

// Shrink reduces the allocation at p from oldLayout's size to newSize,
// which must be in (0, oldLayout.Size]. Always succeeds: the freed tail is
// coalesced with any free chunk above it and registered as a new gap.
func (e *Engine) Shrink(p unsafe.Pointer, oldLayout Layout, newSize uintptr) {
	debugAssert(newSize > 0 && newSize <= oldLayout.Size, "Shrink requires 0 < newSize <= oldLayout.Size")

	oldEnd := alignPtrUp(ptrAdd(p, oldLayout.Size+wordSize), ChunkUnit)
	newEnd := alignPtrUp(ptrAdd(p, newSize+wordSize), ChunkUnit)
	if uintptr(newEnd) == uintptr(oldEnd) {
		e.counters.accountShrinkInPlace(oldLayout.Size, newSize)
		return
	}

	t := readTag(oldEnd)
	isHeapEndChunk := t.heapEnd()
	chunkEnd := oldEnd

	if t.aboveFree() {
		aboveBase := oldEnd
		aboveSize := gapLowSize(aboveBase) &^ uintptr(flagHeapEnd)
		aboveEnd := ptrAdd(aboveBase, aboveSize)
		if e.source.TrackHeapEnd() {
			isHeapEndChunk = loadWord(ptrSub(aboveEnd, wordSize))&uintptr(flagHeapEnd) != 0
		}
		e.deregisterGap(aboveBase)
		chunkEnd = aboveEnd
	}

	e.counters.accountShrinkInPlace(oldLayout.Size, newSize)

	if isHeapEndChunk && e.source.TrackHeapEnd() {
		beforeEnd := chunkEnd
		resized := e.source.Resize(newEnd, chunkEnd, false)
		e.counters.accountTruncate(uintptr(beforeEnd), uintptr(resized), false)
		chunkEnd = resized
		if uintptr(chunkEnd) < uintptr(newEnd) {
			chunkEnd = newEnd
		}
	}

	if uintptr(chunkEnd) == uintptr(newEnd) {
		writeTag(newEnd, flagAllocated|flagHeapEnd)
		return
	}
	e.registerGap(newEnd, chunkEnd)
	if isHeapEndChunk && e.source.TrackHeapEnd() {
		e.markHeapEnd(chunkEnd)
	}
	writeTag(newEnd, flagAllocated|flagAboveFree)
}

// TryReallocInPlace shrinks or grows the allocation at p in place
// depending on how newSize compares to oldLayout.Size, reporting whether
// it succeeded (shrink always succeeds; grow may not).
func (e *Engine) TryReallocInPlace(p unsafe.Pointer, oldLayout Layout, newSize uintptr) bool {
	switch {
	case newSize == oldLayout.Size:
		return true
	case newSize < oldLayout.Size:
		e.Shrink(p, oldLayout, newSize)
		return true
	default:
		return e.TryGrowInPlace(p, oldLayout, newSize)
	}
}

// DebugScan re-walks every free list and checks the invariants that must
// hold after every public operation: every free chunk's low and high size
// words agree (modulo the HEAP_END flag), every chunk size is a multiple
// of ChunkUnit and at least ChunkUnit, and the availability bit-field
// agrees with which lists are actually non-empty. It is meant for test use,
// not production code paths, mirroring the debug-only invariant scanner of
// the allocator this engine is modelled on.
func (e *Engine) DebugScan() error {
	if e.freeLists == nil {
		return nil
	}
	var totalAvailable uintptr
	var totalFragments int
	for bin := uint32(0); bin < binCount; bin++ {
		nonEmpty := loadWord(e.binSlot(bin)) != 0
		if nonEmpty != e.avail.readBit(bin) {
			return fmt.Errorf("talc: availability bit %d disagrees with list emptiness", bin)
		}
		it := iterNodes(loadWord(e.binSlot(bin)))
		for {
			addr, ok := it.next()
			if !ok {
				break
			}
			base := unsafe.Pointer(addr)
			low := gapLowSize(base)
			if low < ChunkUnit || low%ChunkUnit != 0 {
				return fmt.Errorf("talc: gap at %#x has invalid size %d", addr, low)
			}
			high := loadWord(ptrSub(ptrAdd(base, low), wordSize)) &^ uintptr(flagHeapEnd)
			if high != low {
				return fmt.Errorf("talc: gap at %#x low size %d disagrees with high size %d", addr, low, high)
			}
			if gapBin(base) != bin {
				return fmt.Errorf("talc: gap at %#x filed under bin %d but reports bin %d", addr, bin, gapBin(base))
			}
			totalAvailable += low
			totalFragments++
		}
	}
	if totalAvailable != uintptr(e.counters.AvailableBytes) {
		return fmt.Errorf("talc: counters.AvailableBytes=%d disagrees with scanned total %d", e.counters.AvailableBytes, totalAvailable)
	}
	if uint64(totalFragments) != e.counters.FragmentCount {
		return fmt.Errorf("talc: counters.FragmentCount=%d disagrees with scanned total %d", e.counters.FragmentCount, totalFragments)
	}
	return nil
}
