// Package pool implements a region-based memory pool: a chain of
// fixed-size blocks bump-allocated from, with large allocations falling
// back to individually heap-backed buffers that can be freed and reused
// independently of the block chain. Array and List (see array.go and
// list.go) are containers built on top of it.
//
// The design follows nginx's ngx_pool_t closely: small allocations are
// served from whichever block in the chain has room, the chain only grows,
// and a handful of cleanup callbacks run at Destroy time. It trades the
// ability to free individual small allocations for near-zero allocation
// overhead and bulk teardown.
package pool

import (
	"fmt"
	"log/slog"
	"unsafe"
)

// block is one link in a pool's allocation chain. Unlike the C allocator
// this package is modeled on, block's bookkeeping lives in an ordinary Go
// struct rather than inline at the front of buf: embedding pointers (to the
// next block, to cleanup closures) inside a raw []byte would hide them from
// the garbage collector. headerSize bytes of buf are still reserved and
// left unused so every byte-accounting invariant matches the original
// allocator even though nothing is actually stored there. See DESIGN.md.
type block struct {
	buf    []byte
	last   int
	failed int
	next   *block
}

// newBlock allocates a block's backing buffer so that its base address
// (&buf[0]) is itself aligned to alignment, using the same over-allocate-
// and-slice technique as AllocAligned: make a slightly larger raw buffer,
// compute the aligned offset within it, and take a size-byte sub-slice
// starting there. Every other field and byte-accounting invariant (last,
// headerSize, ...) is unaffected since buf still has exactly size bytes.
func newBlock(size, alignment int) *block {
	raw := make([]byte, size+alignment-1)
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + uintptr(alignment) - 1) &^ (uintptr(alignment) - 1)
	offset := int(aligned - base)

	return &block{buf: raw[offset : offset+size], last: headerSize}
}

// largeNode tracks one large (non-block-backed) allocation. alloc is nil
// once the slot has been freed and is eligible for reuse by a later large
// allocation.
type largeNode struct {
	alloc []byte
	next  *largeNode
}

type poolOptions struct {
	wordAlignment int
	sizeThreshold int
	poolAlignment int
}

// Option configures a Pool at construction time.
type Option func(*poolOptions)

// WithWordAlignment overrides the default alignment (WordAlignment) used by
// Alloc, Calloc, and block-backed growth.
func WithWordAlignment(n int) Option {
	return func(o *poolOptions) { o.wordAlignment = n }
}

// WithSizeThreshold overrides the largest allocation size that is still
// served from the block chain; anything bigger always gets its own buffer.
// Defaults to PageSize() - the pool's word alignment.
func WithSizeThreshold(n int) Option {
	return func(o *poolOptions) { o.sizeThreshold = n }
}

// WithPoolAlignment overrides the alignment (power of two, at least
// PoolAlignment) that every block's own base address is allocated at, as
// opposed to WithWordAlignment's per-allocation alignment within a block.
func WithPoolAlignment(n int) Option {
	return func(o *poolOptions) { o.poolAlignment = n }
}

// Pool is a region-based allocator: a chain of fixed-size blocks plus a list
// of individually-freeable large allocations. A Pool is not safe for
// concurrent use without external synchronization, matching the allocator
// it is modeled on.
type Pool struct {
	head          *block
	current       *block
	blockSize     int
	max           int
	wordAlignment int
	poolAlignment int
	large         *largeNode
	cleanup       *CleanupHandler
	log           *slog.Logger
	destroyed     bool
}

// New creates a Pool whose blocks are size bytes each. log receives
// diagnostics for cleanup-handler failures; it may be nil.
func New(size int, log *slog.Logger, opts ...Option) (*Pool, error) {
	if size <= headerSize {
		return nil, fmt.Errorf("pool: block size %d too small, must exceed header size %d", size, headerSize)
	}

	o := poolOptions{wordAlignment: WordAlignment, poolAlignment: PoolAlignment}
	for _, opt := range opts {
		opt(&o)
	}

	if o.wordAlignment <= 0 {
		o.wordAlignment = WordAlignment
	}

	if o.poolAlignment <= 0 {
		o.poolAlignment = PoolAlignment
	}

	if o.poolAlignment < 16 || o.poolAlignment&(o.poolAlignment-1) != 0 {
		return nil, fmt.Errorf("pool: pool alignment %d must be a power of two of at least 16", o.poolAlignment)
	}

	if o.sizeThreshold <= 0 {
		o.sizeThreshold = PageSize() - o.wordAlignment
	}

	maxAlloc := size - headerSize
	if maxAlloc > o.sizeThreshold {
		maxAlloc = o.sizeThreshold
	}

	head := newBlock(size, o.poolAlignment)

	return &Pool{
		head:          head,
		current:       head,
		blockSize:     size,
		max:           maxAlloc,
		wordAlignment: o.wordAlignment,
		poolAlignment: o.poolAlignment,
		log:           log,
	}, nil
}

// Alloc returns a word-aligned buffer of n bytes. Allocations no larger than
// the pool's block threshold are served from the block chain; larger ones
// get their own heap buffer, individually freeable via Free.
func (p *Pool) Alloc(n int) (unsafe.Pointer, error) {
	ptr, _, _, err := p.alloc(n, true)
	return ptr, err
}

// AllocUnaligned is Alloc without the alignment padding, for callers that
// only ever access the buffer as bytes (e.g. copying a string into it).
func (p *Pool) AllocUnaligned(n int) (unsafe.Pointer, error) {
	ptr, _, _, err := p.alloc(n, false)
	return ptr, err
}

// Calloc is Alloc with the returned buffer zeroed.
func (p *Pool) Calloc(n int) (unsafe.Pointer, error) {
	ptr, _, _, err := p.alloc(n, true)
	if err != nil || ptr == nil {
		return ptr, err
	}

	clear(unsafe.Slice((*byte)(ptr), n))

	return ptr, nil
}

// AllocAligned returns a buffer of n bytes aligned to the given power-of-two
// alignment. Unlike Alloc it is always served from its own heap buffer
// (never from the block chain) and never participates in the large-slot
// reuse scan, since a freed slot's alignment may not match a later request.
func (p *Pool) AllocAligned(n, alignment int) (unsafe.Pointer, error) {
	if p.destroyed {
		return nil, ErrPoolDestroyed
	}

	if n < 0 {
		return nil, fmt.Errorf("pool: negative allocation size %d", n)
	}

	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("pool: alignment %d is not a power of two", alignment)
	}

	if n == 0 {
		return nil, nil
	}

	size := n + alignment - 1

	buf, err := safeMake(size)
	if err != nil {
		return nil, err
	}

	base := uintptr(unsafe.Pointer(&buf[0]))
	alignedAddr := (base + uintptr(alignment) - 1) &^ (uintptr(alignment) - 1)
	offset := int(alignedAddr - base)

	// The slot keeps the slice from the aligned address on, so Free can match
	// the returned pointer against &alloc[0].
	p.large = &largeNode{alloc: buf[offset:], next: p.large}

	return unsafe.Pointer(&buf[offset]), nil
}

// Free releases a large allocation previously returned by Alloc,
// AllocUnaligned, Calloc, or AllocAligned. It returns ErrNotLarge for any
// pointer that was served from the block chain instead, or that does not
// belong to this pool at all: block-backed memory is only reclaimed in bulk,
// by Reset or Destroy.
func (p *Pool) Free(ptr unsafe.Pointer) error {
	if p.destroyed {
		return ErrPoolDestroyed
	}

	if ptr == nil {
		return ErrNotLarge
	}

	for n := p.large; n != nil; n = n.next {
		if n.alloc != nil && unsafe.Pointer(&n.alloc[0]) == ptr {
			n.alloc = nil
			return nil
		}
	}

	return ErrNotLarge
}

// Reset releases every large allocation and rewinds every block's bump
// pointer to just past its header, without releasing the blocks themselves.
// It is cheaper than Destroy+New when the pool will immediately be reused
// for a workload of similar shape (e.g. the next request on a long-lived
// server).
func (p *Pool) Reset() {
	for n := p.large; n != nil; n = n.next {
		n.alloc = nil
	}

	p.large = nil

	for b := p.head; b != nil; b = b.next {
		b.last = headerSize
		b.failed = 0
	}

	p.current = p.head
}

// Destroy runs every registered cleanup handler, in most-recently-added
// order, then releases the block chain and large allocations. The Pool must
// not be used afterward.
func (p *Pool) Destroy() {
	if p.destroyed {
		return
	}

	for c := p.cleanup; c != nil; c = c.next {
		if c.Handler != nil {
			c.Handler(c.Data)
		}
	}

	for n := p.large; n != nil; n = n.next {
		n.alloc = nil
	}

	p.large = nil
	p.cleanup = nil
	p.head = nil
	p.current = nil
	p.destroyed = true
}

// alloc is the shared entry point for every allocation path that can be
// served from the block chain. It returns the owning block and the byte
// offset the allocation starts at so Array and List can later check whether
// they still sit at the very end of that block (see array.go's grow).
// owner is nil for large (non-block-backed) allocations.
func (p *Pool) alloc(n int, aligned bool) (unsafe.Pointer, *block, int, error) {
	if p.destroyed {
		return nil, nil, 0, ErrPoolDestroyed
	}

	if n < 0 {
		return nil, nil, 0, fmt.Errorf("pool: negative allocation size %d", n)
	}

	if n == 0 {
		return nil, nil, 0, nil
	}

	if n > p.max {
		ptr, err := p.allocLarge(n)
		return ptr, nil, 0, err
	}

	for b := p.current; b != nil; b = b.next {
		m := b.last
		if aligned {
			m = alignUp(m, p.wordAlignment)
		}

		if len(b.buf)-m >= n {
			b.last = m + n
			return unsafe.Pointer(&b.buf[m]), b, m, nil
		}
	}

	return p.allocBlock(n, aligned)
}

// allocBlock appends a fresh block to the chain, satisfying the allocation
// from its start. While walking from current to the chain's tail to attach
// the new block, every visited block (other than the tail itself) has its
// failure counter bumped; a block that has failed too many times in a row
// is skipped by advancing current past it, so future small allocations stop
// wasting time probing a block that is effectively full.
func (p *Pool) allocBlock(n int, aligned bool) (unsafe.Pointer, *block, int, error) {
	nb := newBlock(p.blockSize, p.poolAlignment)

	m := nb.last
	if aligned {
		m = alignUp(m, p.wordAlignment)
	}

	nb.last = m + n

	tail := p.current
	for tail.next != nil {
		tail.failed++
		if tail.failed > maxBlockFailures {
			p.current = tail.next
		}

		tail = tail.next
	}

	tail.next = nb

	return unsafe.Pointer(&nb.buf[m]), nb, m, nil
}

// allocLarge satisfies an allocation too big for the block chain with its
// own heap buffer, reusing a freed large-allocation slot if one of the first
// few nodes in the list happens to have one. The scan is deliberately
// bounded: the list is LIFO and unbounded, so doing an unbounded scan on
// every large allocation would turn a long-lived pool with many large
// allocations quadratic.
func (p *Pool) allocLarge(n int) (unsafe.Pointer, error) {
	buf, err := safeMake(n)
	if err != nil {
		return nil, err
	}

	ptr := unsafe.Pointer(&buf[0])

	scan := p.large
	for i := 0; scan != nil && i < maxLargeReuseScan; i, scan = i+1, scan.next {
		if scan.alloc == nil {
			scan.alloc = buf
			return ptr, nil
		}
	}

	p.large = &largeNode{alloc: buf, next: p.large}

	return ptr, nil
}

// safeMake allocates an n-byte heap buffer, converting the runtime panic Go
// raises for a request the allocator cannot satisfy (too large for the
// address space, or an attacker-influenced size that overflows slice bounds)
// into ErrOutOfMemory instead of crashing the process. Genuine single-byte
// OOM from real memory exhaustion is still fatal, as it is throughout Go;
// this only guards the cases recover can actually catch.
func safeMake(n int) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, ErrOutOfMemory
		}
	}()

	return make([]byte, n), nil
}

func copyBytes(dst, src unsafe.Pointer, n int) {
	if n <= 0 {
		return
	}

	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}
