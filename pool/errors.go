package pool

import "errors"

var (
	// ErrOutOfMemory is returned when a large allocation's backing buffer
	// cannot be obtained from the Go heap.
	ErrOutOfMemory = errors.New("pool: out of memory")

	// ErrNotLarge is returned by Free when the pointer does not match any
	// tracked large allocation. Block-backed allocations are never
	// individually freeable; this is not an error specific to them. Apart
	// from ErrPoolDestroyed on a destroyed pool, it is the only error Free
	// returns.
	ErrNotLarge = errors.New("pool: pointer is not a tracked large allocation")

	// ErrPoolDestroyed guards against use-after-Destroy. It exists purely as
	// a debugging aid: a destroyed Pool has released its block chain and
	// cleanup list, so any further use is a programmer error.
	ErrPoolDestroyed = errors.New("pool: use of pool after Destroy")
)
