package talc

import "unsafe"

// alignedBufBase returns a ChunkUnit-aligned pointer into buf, trimming up
// to ChunkUnit-1 leading bytes. Tests size their backing buffers with that
// slack already accounted for.
func alignedBufBase(buf []byte) unsafe.Pointer {
	base := unsafe.Pointer(&buf[0])
	return alignPtrUp(base, ChunkUnit)
}
