package talc

import "testing"

func TestSizeToBinLinearRegion(t *testing.T) {
	for i := uintptr(1); i <= numLinearBins; i++ {
		size := i * ChunkUnit
		want := uint32(i) - 1
		if got := sizeToBin(size); got != want {
			t.Errorf("sizeToBin(%d) = %d, want %d", size, got, want)
		}
	}
}

func TestSizeToBinMonotonic(t *testing.T) {
	var prev uint32
	prevSize := ChunkUnit
	for size := uintptr(ChunkUnit); size < linearExtent*64; size += ChunkUnit {
		bin := sizeToBin(size)
		if bin < prev {
			t.Fatalf("sizeToBin regressed: sizeToBin(%d)=%d < sizeToBin(%d)=%d", size, bin, prevSize, prev)
		}
		prev = bin
		prevSize = size
	}
}

func TestSizeToBinNeverExceedsBinCount(t *testing.T) {
	sizes := []uintptr{
		ChunkUnit,
		linearExtent,
		linearExtent + ChunkUnit,
		1 << 32,
		1 << 62,
		^uintptr(0) &^ (ChunkUnit - 1),
	}
	for _, size := range sizes {
		if bin := sizeToBin(size); bin >= binCount {
			t.Errorf("sizeToBin(%d) = %d, want < %d", size, bin, binCount)
		}
	}
}

func TestSizeToBinCeilIsSufficient(t *testing.T) {
	// For sizes inside the linear region, the ceiling bin's exact bin must
	// equal sizeToBin(size) itself: the linear region has one bin per
	// ChunkUnit, so every bin in it guarantees exactly its own size.
	for i := uintptr(1); i <= numLinearBins; i++ {
		size := i * ChunkUnit
		if got, want := sizeToBinCeil(size), sizeToBin(size); got != want {
			t.Errorf("sizeToBinCeil(%d) = %d, want %d", size, got, want)
		}
	}
}

func TestSizeToBinCeilMonotonic(t *testing.T) {
	var prev uint32
	for size := uintptr(ChunkUnit); size < linearExtent*64; size += ChunkUnit {
		c := sizeToBinCeil(size)
		if c < prev {
			t.Fatalf("sizeToBinCeil regressed at size %d: %d < %d", size, c, prev)
		}
		prev = c
	}
}
