package mvmapping

import (
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/mvattr/lib/attribute"
)

// --------------------------------------------------------------------------
// Chunks
// --------------------------------------------------------------------------

// chunk is an append-only region of elements. Handed out regions are never written again,
// so readers can keep slices into buf without synchronization.
type chunk[E any] struct {
	id        uint32
	buf       []E // len = handed out elements, cap = capacity
	dead      int // freed elements
	dedicated bool
}

func (c *chunk[E]) free() int { return cap(c.buf) - len(c.buf) }

// allocation identifies a region inside a chunk.
type allocation[E any] struct {
	chunk *chunk[E]
	n     int
}

// --------------------------------------------------------------------------
// Pool
// --------------------------------------------------------------------------

// pool hands out value storage in chunks. It is owned by the writer; only the counters are read concurrently.
type pool[E any] struct {
	chunkElems   int
	elemSize     uint64
	maxAllocated uint64 // 0 means unlimited

	chunks map[uint32]*chunk[E]
	active *chunk[E]
	nextID uint32

	allocatedBytes atomic.Uint64
	usedBytes      atomic.Uint64
	deadBytes      atomic.Uint64
}

func newPool[E any](chunkElems int, elemSize uint64, maxAllocated uint64) *pool[E] {
	return &pool[E]{
		chunkElems:   chunkElems,
		elemSize:     elemSize,
		maxAllocated: maxAllocated,
		chunks:       make(map[uint32]*chunk[E]),
	}
}

// reserveBytes accounts for n new bytes or fails if the limit would be passed.
func (p *pool[E]) reserveBytes(n uint64) error {
	if p.maxAllocated > 0 && p.allocatedBytes.Load()+n > p.maxAllocated {
		return fmt.Errorf("allocating %d bytes exceeds limit of %d (allocated %d): %w",
			n, p.maxAllocated, p.allocatedBytes.Load(), attribute.ErrResourceExhausted)
	}
	p.allocatedBytes.Add(n)
	return nil
}

func (p *pool[E]) newChunk(capacity int, dedicated bool) (*chunk[E], error) {
	if err := p.reserveBytes(uint64(capacity) * p.elemSize); err != nil {
		return nil, err
	}
	c := &chunk[E]{
		id:        p.nextID,
		buf:       make([]E, 0, capacity),
		dedicated: dedicated,
	}
	p.nextID++
	p.chunks[c.id] = c
	return c, nil
}

// alloc copies values into pool storage and returns the stored slice.
func (p *pool[E]) alloc(values []E) ([]E, allocation[E], error) {
	n := len(values)
	if n == 0 {
		return nil, allocation[E]{}, nil
	}

	var c *chunk[E]
	if n > p.chunkElems/4 {
		// large lists get a chunk of their own
		dc, err := p.newChunk(n, true)
		if err != nil {
			return nil, allocation[E]{}, err
		}
		c = dc
	} else {
		if p.active == nil || p.active.free() < n {
			nc, err := p.newChunk(p.chunkElems, false)
			if err != nil {
				return nil, allocation[E]{}, err
			}
			prev := p.active
			p.active = nc
			if prev != nil {
				p.maybeRelease(prev)
			}
		}
		c = p.active
	}

	start := len(c.buf)
	c.buf = append(c.buf, values...)
	p.usedBytes.Add(uint64(n) * p.elemSize)

	// full slice expression: appending to the result must never write into the chunk
	return c.buf[start : start+n : start+n], allocation[E]{chunk: c, n: n}, nil
}

// rewind undoes the most recent allocation of a chunk if it was never published.
// It reports whether the storage could be returned, otherwise the caller frees it.
func (p *pool[E]) rewind(a allocation[E], stored []E) bool {
	c := a.chunk
	if c == nil || c.dedicated || c != p.active {
		return false
	}
	end := len(c.buf)
	if end < a.n || &c.buf[end-a.n] != &stored[0] {
		return false
	}
	var zero E
	for i := end - a.n; i < end; i++ {
		c.buf[i] = zero
	}
	c.buf = c.buf[:end-a.n]
	sub(&p.usedBytes, uint64(a.n)*p.elemSize)
	return true
}

// free marks the region dead and releases its chunk once nothing in it is live.
func (p *pool[E]) free(a allocation[E]) {
	if a.chunk == nil || a.n == 0 {
		return
	}
	a.chunk.dead += a.n
	p.deadBytes.Add(uint64(a.n) * p.elemSize)
	p.maybeRelease(a.chunk)
}

func (p *pool[E]) maybeRelease(c *chunk[E]) {
	if c == p.active || c.dead != len(c.buf) {
		return
	}
	delete(p.chunks, c.id)
	sub(&p.allocatedBytes, uint64(cap(c.buf))*p.elemSize)
	sub(&p.usedBytes, uint64(len(c.buf))*p.elemSize)
	sub(&p.deadBytes, uint64(c.dead)*p.elemSize)
}

// dropDedicated releases a dedicated chunk whose single allocation was never published.
func (p *pool[E]) dropDedicated(a allocation[E]) bool {
	c := a.chunk
	if c == nil || !c.dedicated || c.dead != 0 {
		return false
	}
	delete(p.chunks, c.id)
	sub(&p.allocatedBytes, uint64(cap(c.buf))*p.elemSize)
	sub(&p.usedBytes, uint64(len(c.buf))*p.elemSize)
	return true
}

// clear drops all chunks. Only valid when nothing references pool storage anymore.
func (p *pool[E]) clear() {
	for id, c := range p.chunks {
		delete(p.chunks, id)
		sub(&p.allocatedBytes, uint64(cap(c.buf))*p.elemSize)
		sub(&p.usedBytes, uint64(len(c.buf))*p.elemSize)
		sub(&p.deadBytes, uint64(c.dead)*p.elemSize)
	}
	p.active = nil
}

func (p *pool[E]) numChunks() int { return len(p.chunks) }

func sub(v *atomic.Uint64, n uint64) {
	if n == 0 {
		return
	}
	v.Add(^(n - 1))
}
