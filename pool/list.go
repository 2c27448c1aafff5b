package pool

import (
	"errors"
	"unsafe"

	"github.com/orizon-lang/arenapool/internal/diag"
)

// listPart is one segment of a List's backing storage. Unlike Array, a full
// part is never resized or copied: a new part is appended and becomes the
// push target instead, so every pointer previously returned by Push stays
// valid for the list's whole lifetime.
type listPart struct {
	elts   unsafe.Pointer
	owner  *block
	offset int
	nelts  int
	nalloc int
	next   *listPart
}

// List is a segmented, append-only sequence. Because full parts are never
// relocated, element pointers returned by Push remain valid for as long as
// the pool backing them does, unlike Array's, which can move on growth.
type List struct {
	pool   *Pool
	head   *listPart
	tail   *listPart
	size   int
	nalloc int
}

// NewList allocates the first part, with room for n elements of size bytes
// each; later parts (see Push) reuse the same per-part capacity.
func NewList(p *Pool, n, size int) (*List, error) {
	if n < 1 {
		return nil, errors.New(diag.InvalidSize(n, "NewList: n").Error())
	}

	if size < 1 {
		return nil, errors.New(diag.InvalidSize(size, "NewList: size").Error())
	}

	part, err := newListPart(p, n, size)
	if err != nil {
		return nil, err
	}

	return &List{pool: p, head: part, tail: part, size: size, nalloc: n}, nil
}

func newListPart(p *Pool, n, size int) (*listPart, error) {
	ptr, owner, offset, err := p.alloc(n*size, true)
	if err != nil {
		return nil, err
	}

	return &listPart{elts: ptr, owner: owner, offset: offset, nalloc: n}, nil
}

// Push reserves room for one more element, appending a new part first if
// the current tail part is full, and returns a pointer to it.
func (l *List) Push() (unsafe.Pointer, error) {
	tail := l.tail

	if tail.nelts == tail.nalloc {
		np, err := newListPart(l.pool, l.nalloc, l.size)
		if err != nil {
			return nil, err
		}

		tail.next = np
		l.tail = np
		tail = np
	}

	slot := unsafe.Add(tail.elts, tail.nelts*l.size)
	tail.nelts++

	return slot, nil
}

// PartView exposes one segment of a List's storage for iteration without
// handing out the internal listPart type.
type PartView struct {
	elts unsafe.Pointer
	n    int
	size int
}

// Len reports how many elements this part holds.
func (v PartView) Len() int { return v.n }

// At returns a pointer to element i of this part; i must be in [0, Len()).
func (v PartView) At(i int) unsafe.Pointer {
	if i < 0 || i >= v.n {
		panic(diag.IndexOutOfBounds(i, v.n).Error())
	}

	return unsafe.Add(v.elts, i*v.size)
}

// Parts returns every part of the list, head to tail, as snapshots. The
// returned slice is independent of the list's internal linkage but the
// PartView values still point into pool-owned memory.
func (l *List) Parts() []PartView {
	var views []PartView
	for part := l.head; part != nil; part = part.next {
		views = append(views, PartView{elts: part.elts, n: part.nelts, size: l.size})
	}

	return views
}

// Each visits every element across all parts, head to tail, in push order.
func (l *List) Each(fn func(elt unsafe.Pointer)) {
	for part := l.head; part != nil; part = part.next {
		for i := 0; i < part.nelts; i++ {
			fn(unsafe.Add(part.elts, i*l.size))
		}
	}
}
