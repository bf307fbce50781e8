package talc

import "unsafe"

// TypedAlloc allocates zeroed storage for a single T via e, returning a
// pointer into engine-managed memory and the Layout TypedFree needs to
// release it. The caller owns the storage until TypedFree is called; T must
// not contain Go pointers, since the garbage collector never scans
// engine-managed memory.
func TypedAlloc[T any](e *Engine) (*T, Layout, bool) {
	var zero T
	layout := LayoutOf(unsafe.Sizeof(zero), unsafe.Alignof(zero))
	p, ok := e.Allocate(layout)
	if !ok {
		return nil, Layout{}, false
	}
	t := (*T)(p)
	*t = zero
	return t, layout, true
}

// TypedFree releases storage previously returned by TypedAlloc[T].
func TypedFree[T any](e *Engine, p *T, layout Layout) {
	e.Deallocate(unsafe.Pointer(p), layout)
}

// TypedAllocSlice allocates zeroed storage for n contiguous Ts via e,
// returning the slice view, the Layout TypedFreeSlice needs to release it,
// and whether the allocation succeeded. Returns (nil, Layout{}, true) for
// n == 0 without touching e.
func TypedAllocSlice[T any](e *Engine, n int) ([]T, Layout, bool) {
	if n == 0 {
		return nil, Layout{}, true
	}
	debugAssert(n > 0, "TypedAllocSlice requires a nonnegative length")
	var zero T
	elemSize := unsafe.Sizeof(zero)
	layout := LayoutOf(elemSize*uintptr(n), unsafe.Alignof(zero))
	p, ok := e.Allocate(layout)
	if !ok {
		return nil, Layout{}, false
	}
	s := unsafe.Slice((*T)(p), n)
	clear(s)
	return s, layout, true
}

// TypedFreeSlice releases storage previously returned by
// TypedAllocSlice[T]. A nil slice is a no-op.
func TypedFreeSlice[T any](e *Engine, s []T, layout Layout) {
	if len(s) == 0 {
		return
	}
	e.Deallocate(unsafe.Pointer(&s[0]), layout)
}
