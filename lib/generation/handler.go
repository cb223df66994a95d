package generation

import (
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Generation is a monotonically increasing epoch. The writer advances it by one per commit.
type Generation uint64

// invalidRefCount marks a hold slot that the writer has reclaimed. Readers that observe it retry on the current slot.
const invalidRefCount int64 = -1

// hold is the per-generation slot that counts the readers pinning its generation.
type hold struct {
	generation Generation
	refCount   atomic.Int64         // live guards, or invalidRefCount once reclaimed
	next       atomic.Pointer[hold] // the slot of the following generation (nil for the current one)
}

// tryAcquire increments the reader count unless the slot was already reclaimed.
func (hd *hold) tryAcquire() bool {
	for {
		count := hd.refCount.Load()
		if count < 0 {
			return false
		}
		if hd.refCount.CompareAndSwap(count, count+1) {
			return true
		}
	}
}

// --------------------------------------------------------------------------
// Guard
// --------------------------------------------------------------------------

// Guard pins the generation that was current when it was acquired.
// Storage retired at or after that generation is not freed while the guard is alive.
type Guard struct {
	hold     *hold
	released atomic.Bool
}

// Generation returns the pinned generation.
func (g *Guard) Generation() Generation {
	return g.hold.generation
}

// Release unpins the generation. Calling Release more than once has no effect.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	if g.released.CompareAndSwap(false, true) {
		g.hold.refCount.Add(-1)
	}
}

// Valid reports whether the guard is still holding its generation.
func (g *Guard) Valid() bool {
	return g != nil && !g.released.Load()
}

// --------------------------------------------------------------------------
// Handler
// --------------------------------------------------------------------------

// Handler issues generations and tracks which of them are still observed by readers.
type Handler struct {
	current  atomic.Pointer[hold] // slot of the current generation
	first    atomic.Pointer[hold] // oldest slot that has not been reclaimed
	numHolds atomic.Int64         // slots between first and current (inclusive)

	oldestUsed atomic.Uint64 // result of the last UpdateOldestUsedGeneration
}

// NewHandler creates a handler starting at generation 0.
func NewHandler() *Handler {
	h := &Handler{}
	initial := &hold{generation: 0}
	h.current.Store(initial)
	h.first.Store(initial)
	h.numHolds.Store(1)
	return h
}

// CurrentGeneration returns the generation new guards will pin.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *Handler) CurrentGeneration() Generation {
	return h.current.Load().generation
}

// AcquireGuard pins the current generation.
// The returned guard must be released, usually with defer right after this call.
//
// Thread-safety: This method is thread-safe and lock-free; it can be called concurrently with Advance.
func (h *Handler) AcquireGuard() *Guard {
	for {
		hd := h.current.Load()
		if hd.tryAcquire() {
			return &Guard{hold: hd}
		}
		// the slot was reclaimed after we loaded it, which implies current moved on
	}
}

// Advance increments the generation and returns the new value.
// Afterwards the oldest used generation is recomputed (see UpdateOldestUsedGeneration).
//
// Thread-safety: Writer-only. Must not be called concurrently with itself or UpdateOldestUsedGeneration.
func (h *Handler) Advance() Generation {
	prev := h.current.Load()
	next := &hold{generation: prev.generation + 1}

	prev.next.Store(next)
	h.current.Store(next)
	h.numHolds.Add(1)

	h.UpdateOldestUsedGeneration()
	return next.generation
}

// UpdateOldestUsedGeneration reclaims hold slots without readers from the front of the
// chain and returns the generation of the first slot that is still pinned (or the current generation).
//
// A slot is reclaimed by swapping its count from 0 to invalidRefCount, so a reader racing on
// that slot fails its acquisition and retries on the current slot instead.
//
// Thread-safety: Writer-only.
func (h *Handler) UpdateOldestUsedGeneration() Generation {
	cur := h.current.Load()
	first := h.first.Load()

	for first != cur {
		if !first.refCount.CompareAndSwap(0, invalidRefCount) {
			break
		}
		first = first.next.Load()
		h.numHolds.Add(-1)
	}

	h.first.Store(first)
	h.oldestUsed.Store(uint64(first.generation))
	return first.generation
}

// OldestUsedGeneration returns the minimum generation over all live guards,
// or the current generation if there are none.
// The result can be older than the exact value if guards are released concurrently, never newer.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (h *Handler) OldestUsedGeneration() Generation {
	cur := h.current.Load()
	for hd := h.first.Load(); hd != nil && hd != cur; hd = hd.next.Load() {
		if hd.refCount.Load() > 0 {
			return hd.generation
		}
	}
	return cur.generation
}

// LastOldestUsedGeneration returns the value computed by the last UpdateOldestUsedGeneration.
func (h *Handler) LastOldestUsedGeneration() Generation {
	return Generation(h.oldestUsed.Load())
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// GenerationRefCount returns the number of live guards pinning the given generation.
func (h *Handler) GenerationRefCount(gen Generation) int64 {
	cur := h.current.Load()
	for hd := h.first.Load(); hd != nil; hd = hd.next.Load() {
		if hd.generation == gen {
			if count := hd.refCount.Load(); count > 0 {
				return count
			}
			return 0
		}
		if hd == cur {
			break
		}
	}
	return 0
}

// HasReaders reports whether any guard is alive.
func (h *Handler) HasReaders() bool {
	cur := h.current.Load()
	for hd := h.first.Load(); hd != nil; hd = hd.next.Load() {
		if hd.refCount.Load() > 0 {
			return true
		}
		if hd == cur {
			break
		}
	}
	return false
}

// NumHolds returns how many generation slots are currently kept alive (at least 1).
func (h *Handler) NumHolds() int64 {
	return h.numHolds.Load()
}
