package talc

import "unsafe"

// wordSize is the size in bytes of a machine word (a uintptr) on the
// target platform.
const wordSize = unsafe.Sizeof(uintptr(0))

// ChunkUnit is the engine's minimum chunk size and alignment: four machine
// words. Every chunk base and end is aligned to ChunkUnit, and no chunk is
// smaller than it.
const ChunkUnit = wordSize * 4

// alignUp rounds addr up to the nearest multiple of align, which must be a
// power of two. Saturates to the maximum uintptr instead of wrapping.
func alignUp(addr, align uintptr) uintptr {
	mask := align - 1
	sum := addr + mask
	if sum < addr {
		return ^uintptr(0) &^ mask
	}
	return sum &^ mask
}

// alignDown rounds addr down to the nearest multiple of align, which must
// be a power of two.
func alignDown(addr, align uintptr) uintptr {
	return addr &^ (align - 1)
}

// isPow2 reports whether n is a nonzero power of two.
func isPow2(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// ptrAdd adds n bytes to p, saturating at the top of the address space
// instead of wrapping around past it.
func ptrAdd(p unsafe.Pointer, n uintptr) unsafe.Pointer {
	addr := uintptr(p)
	sum := addr + n
	if sum < addr {
		sum = ^uintptr(0)
	}
	return unsafe.Pointer(sum)
}

// ptrSub subtracts n bytes from p. p must be at least n bytes above the
// zero address; callers only ever use this with in-arena pointers.
func ptrSub(p unsafe.Pointer, n uintptr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(p) - n)
}

// ptrDiff returns the number of bytes between lo and hi (hi - lo), both
// interpreted as addresses.
func ptrDiff(hi, lo unsafe.Pointer) uintptr {
	return uintptr(hi) - uintptr(lo)
}

// alignPtrUp is alignUp lifted to unsafe.Pointer.
func alignPtrUp(p unsafe.Pointer, align uintptr) unsafe.Pointer {
	return unsafe.Pointer(alignUp(uintptr(p), align))
}

// alignPtrDown is alignDown lifted to unsafe.Pointer.
func alignPtrDown(p unsafe.Pointer, align uintptr) unsafe.Pointer {
	return unsafe.Pointer(alignDown(uintptr(p), align))
}

// loadWord reads the machine word at p.
func loadWord(p unsafe.Pointer) uintptr {
	return *(*uintptr)(p)
}

// storeWord writes v as the machine word at p.
func storeWord(p unsafe.Pointer, v uintptr) {
	*(*uintptr)(p) = v
}

// debugAssert panics with msg if cond is false. Every internal-invariant
// checkpoint routes through here rather than a scattered if-panic, so a
// single breakpoint catches every assertion failure.
func debugAssert(cond bool, msg string) {
	if !cond {
		panic("talc: " + msg)
	}
}
