package talc

import "math/bits"

// bitField is the abstraction the binning strategy's availability tracking
// is built on: set_bit / clear_bit / read_bit plus a bit_scan_after that
// locates the lowest set bit at or above a given index. bitScanAfter
// returns bitCount() if no such bit exists, mirroring the Rust trait's
// "returning the field's bit-count if none" contract.
//
// Only availBits (a concrete 3-word array sized for DefaultBinning) is
// wired into the engine: Go has no const-generic array lengths, so a fully
// generic Binning/BitField pairing parameterised over array size is not
// reproduced. The interface is kept for documentation and for tests that
// exercise it directly.
type bitField interface {
	bitCount() uint32
	setBit(i uint32)
	clearBit(i uint32)
	readBit(i uint32) bool
	bitScanAfter(i uint32) uint32
}

// availBits is the concrete availability bit-field backing DefaultBinning:
// three 64-bit words, 192 bits, matching the original's 64-bit-target
// default of [usize; 3].
type availBits [3]uint64

const availBitsCount = uint32(len(availBits{}) * 64)

func (a *availBits) bitCount() uint32 { return availBitsCount }

func (a *availBits) setBit(i uint32) {
	debugAssert(i < availBitsCount, "setBit index out of range")
	a[i/64] |= 1 << (i % 64)
}

func (a *availBits) clearBit(i uint32) {
	debugAssert(i < availBitsCount, "clearBit index out of range")
	a[i/64] &^= 1 << (i % 64)
}

func (a *availBits) readBit(i uint32) bool {
	debugAssert(i < availBitsCount, "readBit index out of range")
	return a[i/64]&(1<<(i%64)) != 0
}

// bitScanAfter returns the lowest set bit index >= i, or bitCount() if
// every bit from i upward is clear.
func (a *availBits) bitScanAfter(i uint32) uint32 {
	if i >= availBitsCount {
		return availBitsCount
	}
	wordIdx := i / 64
	bitIdx := i % 64

	if w := a[wordIdx] >> bitIdx; w != 0 {
		return i + uint32(bits.TrailingZeros64(w))
	}
	for wi := wordIdx + 1; wi < uint32(len(a)); wi++ {
		if a[wi] != 0 {
			return wi*64 + uint32(bits.TrailingZeros64(a[wi]))
		}
	}
	return availBitsCount
}
