package pool

import (
	"errors"
	"unsafe"

	"github.com/orizon-lang/arenapool/internal/diag"
)

// Array is a dynamic array whose backing storage is pool-allocated. Growth
// tries first to extend the existing buffer in place — only possible when
// nothing else has allocated from the pool since, i.e. this array's storage
// still sits exactly at its block's bump pointer — and falls back to
// allocating a fresh, larger buffer and copying.
//
// The Array header itself (this struct) is an ordinary Go value owned by
// the caller, not pool-backed: see DESIGN.md for why.
type Array struct {
	pool   *Pool
	elts   unsafe.Pointer
	owner  *block
	offset int
	size   int
	nelts  int
	nalloc int
}

// NewArray allocates storage for n elements of size bytes each.
func NewArray(p *Pool, n, size int) (*Array, error) {
	if n < 1 {
		return nil, errors.New(diag.InvalidSize(n, "NewArray: n").Error())
	}

	if size < 1 {
		return nil, errors.New(diag.InvalidSize(size, "NewArray: size").Error())
	}

	ptr, owner, offset, err := p.alloc(n*size, true)
	if err != nil {
		return nil, err
	}

	return &Array{
		pool:   p,
		elts:   ptr,
		owner:  owner,
		offset: offset,
		size:   size,
		nalloc: n,
	}, nil
}

// Len reports the number of elements pushed so far.
func (a *Array) Len() int { return a.nelts }

// Cap reports the current element capacity.
func (a *Array) Cap() int { return a.nalloc }

// Elems returns a pointer to the first element of the backing storage.
// Element i lives at offset i*size from it, for i in [0, Len()).
func (a *Array) Elems() unsafe.Pointer { return a.elts }

// Destroy rewinds the pool's bump pointer past this array's storage, but
// only when that storage still abuts it — the same cooperative check Push
// uses for in-place growth. It is a best-effort reclaim, not a guarantee.
func (a *Array) Destroy() {
	p := a.pool
	if a.owner != nil && a.owner == p.current && a.offset+a.nalloc*a.size == a.owner.last {
		a.owner.last = a.offset
	}
}

// Push reserves room for one more element and returns a pointer to it,
// growing the array first if necessary.
func (a *Array) Push() (unsafe.Pointer, error) {
	return a.PushN(1)
}

// PushN reserves room for k more elements and returns a pointer to the
// first of them; the caller is responsible for filling all k contiguously.
func (a *Array) PushN(k int) (unsafe.Pointer, error) {
	if k < 1 {
		return nil, errors.New(diag.InvalidSize(k, "Array.PushN: k").Error())
	}

	if a.nelts+k > a.nalloc {
		if err := a.grow(k); err != nil {
			return nil, err
		}
	}

	slot := unsafe.Add(a.elts, a.nelts*a.size)
	a.nelts += k

	return slot, nil
}

func (a *Array) grow(k int) error {
	p := a.pool
	growBytes := k * a.size

	if a.owner != nil && a.owner == p.current &&
		a.offset+a.nalloc*a.size == a.owner.last &&
		a.owner.last+growBytes <= len(a.owner.buf) {
		a.owner.last += growBytes
		a.nalloc += k

		return nil
	}

	newNalloc := 2 * max(k, a.nalloc)

	ptr, owner, offset, err := p.alloc(newNalloc*a.size, true)
	if err != nil {
		return err
	}

	copyBytes(ptr, a.elts, a.nelts*a.size)

	a.elts, a.owner, a.offset, a.nalloc = ptr, owner, offset, newNalloc

	return nil
}
