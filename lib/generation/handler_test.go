package generation

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerStartsAtZero(t *testing.T) {
	h := NewHandler()

	assert.Equal(t, Generation(0), h.CurrentGeneration())
	assert.Equal(t, Generation(0), h.OldestUsedGeneration())
	assert.False(t, h.HasReaders())
	assert.Equal(t, int64(1), h.NumHolds())
}

func TestAdvanceIsMonotonic(t *testing.T) {
	h := NewHandler()

	for i := 1; i <= 10; i++ {
		assert.Equal(t, Generation(i), h.Advance())
		assert.Equal(t, Generation(i), h.CurrentGeneration())
	}

	// no readers -> everything before the current generation is reclaimed
	assert.Equal(t, Generation(10), h.OldestUsedGeneration())
	assert.Equal(t, Generation(10), h.LastOldestUsedGeneration())
	assert.Equal(t, int64(1), h.NumHolds())
}

func TestGuardPinsGeneration(t *testing.T) {
	h := NewHandler()
	h.Advance() // 1

	guard := h.AcquireGuard()
	require.Equal(t, Generation(1), guard.Generation())
	assert.True(t, guard.Valid())
	assert.Equal(t, int64(1), h.GenerationRefCount(1))

	h.Advance() // 2
	h.Advance() // 3

	assert.Equal(t, Generation(1), h.OldestUsedGeneration())
	assert.Equal(t, Generation(1), h.LastOldestUsedGeneration())
	assert.True(t, h.HasReaders())
	assert.Equal(t, int64(3), h.NumHolds())

	guard.Release()
	assert.False(t, guard.Valid())

	// the read-only view sees the release right away, the writer reclaims on its next update
	assert.Equal(t, Generation(3), h.OldestUsedGeneration())
	assert.Equal(t, Generation(3), h.UpdateOldestUsedGeneration())
	assert.Equal(t, int64(1), h.NumHolds())
	assert.False(t, h.HasReaders())
}

func TestOldestUsedIsMinimumOverGuards(t *testing.T) {
	h := NewHandler()

	g0 := h.AcquireGuard()
	h.Advance()
	h.Advance()
	g2 := h.AcquireGuard()
	h.Advance()

	assert.Equal(t, Generation(0), h.UpdateOldestUsedGeneration())

	g0.Release()
	assert.Equal(t, Generation(2), h.UpdateOldestUsedGeneration())

	g2.Release()
	assert.Equal(t, Generation(3), h.UpdateOldestUsedGeneration())
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := NewHandler()

	g1 := h.AcquireGuard()
	g2 := h.AcquireGuard()
	assert.Equal(t, int64(2), h.GenerationRefCount(0))

	g1.Release()
	g1.Release()
	g1.Release()
	assert.Equal(t, int64(1), h.GenerationRefCount(0))

	g2.Release()
	assert.Equal(t, int64(0), h.GenerationRefCount(0))

	var nilGuard *Guard
	nilGuard.Release()
	assert.False(t, nilGuard.Valid())
}

func TestReclaimedSlotCannotBeAcquired(t *testing.T) {
	h := NewHandler()

	stale := h.current.Load()
	h.Advance() // reclaims the slot of generation 0 (no readers)

	assert.False(t, stale.tryAcquire())

	// AcquireGuard never hands out a reclaimed slot
	guard := h.AcquireGuard()
	defer guard.Release()
	assert.Equal(t, Generation(1), guard.Generation())
}

func TestGuardReleasedOnPanic(t *testing.T) {
	h := NewHandler()

	func() {
		defer func() { _ = recover() }()
		guard := h.AcquireGuard()
		defer guard.Release()
		panic("reader failed")
	}()

	assert.False(t, h.HasReaders())
}

// TestConcurrentReadersAndWriter checks that the oldest used generation never passes a live guard.
func TestConcurrentReadersAndWriter(t *testing.T) {
	h := NewHandler()

	const (
		numReaders = 8
		numCommits = 2000
	)

	var (
		wg        sync.WaitGroup
		stop      atomic.Bool
		violation atomic.Bool
	)

	wg.Add(numReaders)
	for i := 0; i < numReaders; i++ {
		go func() {
			defer wg.Done()
			for !stop.Load() {
				guard := h.AcquireGuard()
				gen := guard.Generation()
				if h.LastOldestUsedGeneration() > gen && h.GenerationRefCount(gen) == 0 {
					violation.Store(true)
				}
				guard.Release()
			}
		}()
	}

	for i := 0; i < numCommits; i++ {
		h.Advance()
	}
	stop.Store(true)
	wg.Wait()

	assert.False(t, violation.Load(), "a live guard lost its generation slot")
	assert.Equal(t, Generation(numCommits), h.CurrentGeneration())
	assert.Equal(t, Generation(numCommits), h.UpdateOldestUsedGeneration())
	assert.False(t, h.HasReaders())
}

func BenchmarkAcquireRelease(b *testing.B) {
	h := NewHandler()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			guard := h.AcquireGuard()
			guard.Release()
		}
	})
}
