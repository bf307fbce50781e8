package talc

import "unsafe"

// node is an intrusive doubly-linked free-list node living at the base of
// every free chunk (at offset 0 of the chunk). next and nextOfPrev are raw
// uintptr addresses rather than typed Go pointers: the bytes they address
// live inside a caller-owned arena that the Go garbage collector must not
// attempt to scan as an object graph, and the arena's own slice/pointer
// keeps the whole region reachable regardless. A zero value means "none",
// standing in for Rust's Option<NonNull<Node>>.
type node struct {
	next       uintptr
	nextOfPrev uintptr
}

func nodeAt(base unsafe.Pointer) *node {
	return (*node)(base)
}

// addrOfNext returns the address of nodeBase's next field, which callers
// use as the nextOfPrev of whatever they link after it. Since next is the
// first field of node, this is simply nodeBase's own address.
func addrOfNext(nodeBase unsafe.Pointer) uintptr {
	return uintptr(nodeBase)
}

// linkNodeAt writes a node at base with the given next, and wires its
// nextOfPrev to slot (the address of the head/previous-next field that is
// about to point at it). If next is nonzero, the next node's nextOfPrev is
// repointed at base. Finally *slot is set to base. O(1), no sentinel.
func linkNodeAt(base unsafe.Pointer, next uintptr, slot unsafe.Pointer) {
	debugAssert(slot != nil, "link target slot is nil")
	n := nodeAt(base)
	n.next = next
	n.nextOfPrev = uintptr(slot)
	if next != 0 {
		nodeAt(unsafe.Pointer(next)).nextOfPrev = addrOfNext(base)
	}
	*(*uintptr)(slot) = uintptr(base)
}

// unlinkNodeAt removes the node at base from its list. O(1).
func unlinkNodeAt(base unsafe.Pointer) {
	n := nodeAt(base)
	debugAssert(n.nextOfPrev != 0, "unlinking a node with no back-pointer")
	*(*uintptr)(unsafe.Pointer(n.nextOfPrev)) = n.next
	if n.next != 0 {
		nodeAt(unsafe.Pointer(n.next)).nextOfPrev = n.nextOfPrev
	}
}

// nodeIter walks a free list's next-pointer chain starting at first
// (typically the value currently stored in a bin head slot).
type nodeIter struct {
	cur uintptr
}

func iterNodes(first uintptr) nodeIter {
	return nodeIter{cur: first}
}

// next returns the current node's base address and advances the iterator,
// or returns (0, false) once the list is exhausted.
func (it *nodeIter) next() (uintptr, bool) {
	if it.cur == 0 {
		return 0, false
	}
	cur := it.cur
	it.cur = nodeAt(unsafe.Pointer(cur)).next
	return cur, true
}
