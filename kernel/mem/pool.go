// Package mem implements the kernel's fixed-block, multi-pool allocator:
// a small static table of pools with ascending block sizes, each filled
// with all of its blocks once at Init and never grown afterward.
package mem

import (
	"kozos-go/x/mathx"
)

// blockHeader is the per-block record standing in for the original
// kzmem_block{next,size}: the free-list link and the owning pool's size.
// It is not stored in front of the block's bytes; Allocator.blocks maps it
// to them, and Free finds it from a returned slice by headerFor.
type blockHeader struct {
	next *blockHeader
	size int
}

// PoolSpec describes one pool: block size and block count. The default
// table carried over unchanged is {16x8, 32x8, 64x4}.
type PoolSpec struct {
	Size int
	Num  int
}

// DefaultPools is the table named in the external-interfaces section.
var DefaultPools = []PoolSpec{
	{Size: 16, Num: 8},
	{Size: 32, Num: 8},
	{Size: 64, Num: 4},
}

type pool struct {
	size int
	free *blockHeader
}

// SystemDowner is invoked on every kernel-fatal allocator condition:
// exhaustion, no pool large enough, or freeing a block whose recorded size
// matches no pool. It never returns.
type SystemDowner interface {
	SystemDown(reason string)
}

// Allocator is the multi-pool fixed-block allocator. It holds no locks:
// callers are required to only ever invoke it from the kernel's single
// event-loop goroutine, the same "single core, interrupts disabled"
// discipline the rest of the kernel relies on.
type Allocator struct {
	pools []pool
	down  SystemDowner

	// blocks simulates the arena: each block's payload bytes are an
	// ordinary Go byte slice allocated at Init, keyed by its blockHeader
	// so every handed-out block has a header recording its pool size.
	blocks map[*blockHeader][]byte
}

// NewAllocator builds an allocator over the given pool table. down is
// called (and must not return) on any kernel-fatal condition.
func NewAllocator(specs []PoolSpec, down SystemDowner) *Allocator {
	a := &Allocator{down: down, blocks: make(map[*blockHeader][]byte)}
	a.Init(specs)
	return a
}

// Init (re)carves the pool table from scratch. Every block starts free.
func (a *Allocator) Init(specs []PoolSpec) {
	a.pools = a.pools[:0]
	a.blocks = make(map[*blockHeader][]byte)
	for _, s := range specs {
		size := mathx.Max(s.Size, 1)
		p := pool{size: size}
		for i := 0; i < s.Num; i++ {
			hdr := &blockHeader{size: size}
			hdr.next = p.free
			p.free = hdr
			a.blocks[hdr] = make([]byte, size)
		}
		a.pools = append(a.pools, p)
	}
}

// Alloc returns a block of at least n bytes from the first pool (in table
// order) whose block size can satisfy it. It panics the kernel via
// SystemDown if no pool fits or the chosen pool is exhausted — the
// allocator never grows and never returns a nil slice the caller could
// mistake for success.
func (a *Allocator) Alloc(n int) []byte {
	for i := range a.pools {
		p := &a.pools[i]
		if !mathx.Between(n, 0, p.size) {
			continue
		}
		if p.free == nil {
			a.down.SystemDown("system error!")
			return nil // unreachable: SystemDown never returns
		}
		hdr := p.free
		p.free = hdr.next
		hdr.next = nil
		buf := a.blocks[hdr][:n:p.size]
		return buf
	}
	a.down.SystemDown("system error!")
	return nil // unreachable
}

// Free returns a previously allocated block to its pool, located by the
// block's originally recorded size. Freeing a block with a size matching no
// pool is a kernel-fatal error, mirroring kzmem_free's header-size lookup.
func (a *Allocator) Free(p []byte) {
	hdr := a.headerFor(p)
	if hdr == nil {
		a.down.SystemDown("system error!")
		return
	}
	for i := range a.pools {
		if a.pools[i].size == hdr.size {
			hdr.next = a.pools[i].free
			a.pools[i].free = hdr
			return
		}
	}
	a.down.SystemDown("system error!")
}

// headerFor recovers the block header that owns p, by identity of the
// backing array rather than pointer arithmetic (Go has no byte-before-slice
// addressing), which plays the same role as "step back from p" in the
// original free().
func (a *Allocator) headerFor(p []byte) *blockHeader {
	for hdr, buf := range a.blocks {
		if sameBacking(buf, p) {
			return hdr
		}
	}
	return nil
}

func sameBacking(a, b []byte) bool {
	if cap(a) == 0 || cap(b) == 0 {
		return false
	}
	return &a[:1][0] == &b[:1][0]
}
