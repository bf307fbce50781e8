package talc

// tag is the machine word stored immediately below chunk_end for an
// allocated chunk. CHUNK_UNIT alignment forces every free chunk's size to
// have its low bits clear, so these flag bits never collide with a
// legitimate size value living in the same word position.
type tag uintptr

const (
	// flagAllocated is set on allocated chunks, clear on free chunks (whose
	// trailer word holds a size instead of a tag).
	flagAllocated tag = 1 << 0
	// flagAboveFree is set on an allocated chunk's trailer if the chunk
	// immediately above it in the same arena is free.
	flagAboveFree tag = 1 << 1
	// flagHeapBase is set on the lowest allocated chunk of an arena.
	flagHeapBase tag = 1 << 2
	// flagHeapEnd is set on the trailer of the highest chunk in an arena
	// when that chunk's upper edge is the arena's end, and only maintained
	// when the active Source opts into end-tracking.
	flagHeapEnd tag = 1 << 3

	tagFlagMask = flagAllocated | flagAboveFree | flagHeapBase | flagHeapEnd
)

func (t tag) allocated() bool  { return t&flagAllocated != 0 }
func (t tag) aboveFree() bool  { return t&flagAboveFree != 0 }
func (t tag) heapBase() bool   { return t&flagHeapBase != 0 }
func (t tag) heapEnd() bool    { return t&flagHeapEnd != 0 }
func (t tag) with(f tag) tag   { return t | f }
func (t tag) without(f tag) tag { return t &^ f }
