package talc

import "fmt"

// Counters is a purely observational snapshot of allocation bookkeeping,
// updated by the engine's account* hooks on every state transition. It
// imposes no behaviour of its own. Engine.Counters returns a pointer to the
// live values; Lock.Counters and AssumeSingleThreaded.Counters return a
// copy taken under the wrapper, so holding it does not hold the lock.
type Counters struct {
	// AllocationCount is the number of currently live allocations.
	AllocationCount uint64
	// TotalAllocationCount is the number of allocations ever made.
	TotalAllocationCount uint64

	// AllocatedBytes is the sum of layout sizes of live allocations.
	AllocatedBytes uint64
	// TotalAllocatedBytes is the sum of every allocation's layout size ever
	// requested. In-place reallocations only count the size delta.
	TotalAllocatedBytes uint64

	// AvailableBytes is the number of bytes currently sitting in free gaps.
	AvailableBytes uint64
	// FragmentCount is the number of free gaps across all arenas.
	FragmentCount uint64

	// ArenaCount is the number of arenas currently claimed.
	ArenaCount uint64
	// TotalArenaCount is the number of arenas ever claimed.
	TotalArenaCount uint64

	// ClaimedBytes is the sum of bytes actively claimed across all arenas.
	ClaimedBytes uint64
	// TotalClaimedBytes is the sum of bytes ever claimed, including bytes
	// since reclaimed via truncate.
	TotalClaimedBytes uint64
}

// OverheadBytes returns the number of claimed bytes unavailable due to
// metadata and alignment overhead.
func (c *Counters) OverheadBytes() uint64 {
	return c.ClaimedBytes - c.AvailableBytes - c.AllocatedBytes
}

// TotalFreedBytes returns the total number of allocated bytes that have
// since been freed.
func (c *Counters) TotalFreedBytes() uint64 {
	return c.TotalAllocatedBytes - c.AllocatedBytes
}

// TotalReleasedBytes returns the total number of claimed bytes that have
// since been released (via truncate).
func (c *Counters) TotalReleasedBytes() uint64 {
	return c.TotalClaimedBytes - c.ClaimedBytes
}

func (c *Counters) accountRegisterGap(size uintptr) {
	c.AvailableBytes += uint64(size)
	c.FragmentCount++
}

func (c *Counters) accountDeregisterGap(size uintptr) {
	c.AvailableBytes -= uint64(size)
	c.FragmentCount--
}

func (c *Counters) accountAlloc(size uintptr) {
	c.AllocationCount++
	c.AllocatedBytes += uint64(size)
	c.TotalAllocationCount++
	c.TotalAllocatedBytes += uint64(size)
}

func (c *Counters) accountDealloc(size uintptr) {
	c.AllocationCount--
	c.AllocatedBytes -= uint64(size)
}

func (c *Counters) accountGrowInPlace(oldSize, newSize uintptr) {
	c.AllocatedBytes += uint64(newSize - oldSize)
	c.TotalAllocatedBytes += uint64(newSize - oldSize)
}

func (c *Counters) accountShrinkInPlace(oldSize, newSize uintptr) {
	c.AllocatedBytes -= uint64(oldSize - newSize)
	c.TotalAllocatedBytes -= uint64(oldSize - newSize)
}

func (c *Counters) accountClaim(claimedSize uintptr) {
	c.ArenaCount++
	c.ClaimedBytes += uint64(claimedSize)
	c.TotalArenaCount++
	c.TotalClaimedBytes += uint64(claimedSize)
}

func (c *Counters) accountAppend(oldEnd, newEnd uintptr) {
	c.ClaimedBytes += uint64(newEnd - oldEnd)
	c.TotalClaimedBytes += uint64(newEnd - oldEnd)
}

func (c *Counters) accountTruncate(oldEnd, newEnd uintptr, deletedArena bool) {
	if deletedArena {
		c.ArenaCount--
		c.ClaimedBytes -= uint64(wordSize)
	}
	c.ClaimedBytes -= uint64(oldEnd - newEnd)
}

// String renders a tabular report of every counter, mirroring the
// allocator this engine is modelled on, which prints current-vs-cumulative
// totals side by side for operator-facing diagnostics.
func (c *Counters) String() string {
	return fmt.Sprintf(
		"Stat                 | Current Total       | Accumulative Total\n"+
			"---------------------|---------------------|--------------------\n"+
			"# of Allocations     | %19d | %19d\n"+
			"# of Allocated Bytes | %19d | %19d\n"+
			"# of Available Bytes | %19d |                 N/A\n"+
			"# of Overhead Bytes  | %19d |                 N/A\n"+
			"# of Claimed Bytes   | %19d | %19d\n"+
			"# of Heaps           | %19d | %19d\n"+
			"# of Fragments       | %19d |                 N/A",
		c.AllocationCount, c.TotalAllocationCount,
		c.AllocatedBytes, c.TotalAllocatedBytes,
		c.AvailableBytes,
		c.OverheadBytes(),
		c.ClaimedBytes, c.TotalClaimedBytes,
		c.ArenaCount, c.TotalArenaCount,
		c.FragmentCount,
	)
}
