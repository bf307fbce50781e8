package talc

import "math/bits"

// binCount is the number of free lists, one per bit of availBits except the
// highest, which is never set.
const binCount = availBitsCount - 1

// linDivs and linExtMulti parameterise the default binning strategy: a
// linear region of linDivs*linExtMulti single-ChunkUnit-wide bins, followed
// by an exponentially growing region subdivided linearly into linDivs
// brackets per power-of-two. These match the original allocator's 64-bit
// default of linear_extent_then_linearly_divided_exponential_binning::<8,4>.
const (
	linDivs     = 8
	log2LinDivs = 3 // log2(linDivs); linDivs must stay a power of two
	linExtMulti = 4
)

// linearExtent is the largest chunk size still served by the linear
// region; both ChunkUnit and linDivs*linExtMulti are powers of two, so
// linearExtent is one too.
const linearExtent = ChunkUnit * linDivs * linExtMulti
const numLinearBins = linDivs * linExtMulti

var baseLog = uint32(bits.Len(uint(linearExtent))) - 1

// sizeToBin maps a chunk size (a positive multiple of ChunkUnit) to the bin
// index whose members are guaranteed to include chunks of exactly that
// size. The function is monotonic non-decreasing: larger sizes never map
// to a smaller bin.
func sizeToBin(size uintptr) uint32 {
	debugAssert(size > 0, "sizeToBin of a zero size")

	if size <= linearExtent {
		return uint32(size/ChunkUnit) - 1
	}

	lz := uint32(bits.Len(uint(size))) - 1 // floor(log2(size))
	bracket := lz - baseLog

	subdivision := uint32((size >> (lz - log2LinDivs)) & (linDivs - 1))

	bin := numLinearBins + bracket*linDivs + subdivision
	if bin >= binCount {
		return binCount - 1
	}
	return bin
}

// sizeToBinCeil returns the first bin whose members are all guaranteed to
// be >= size. Callers fall back to a linear scan of the bin one below (or
// the last bin) when this would index past the last bin, since the last
// bin is a catch-all that is not guaranteed sufficient.
func sizeToBinCeil(size uintptr) uint32 {
	debugAssert(size > 0, "sizeToBinCeil of a zero size")
	return sizeToBin(size-1) + 1
}
