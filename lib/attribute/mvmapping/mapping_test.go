package mvmapping

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commit follows the writer protocol after all installs are done.
func commit[E any](m *Mapping[E]) generation.Generation {
	h := m.Handler()
	gen := h.Advance()
	m.TransferHoldLists(gen - 1)
	m.TrimHoldLists(h.UpdateOldestUsedGeneration())
	return gen
}

func newTestMapping(chunkElems int, limit uint64) *Mapping[int32] {
	return New[int32](generation.NewHandler(), Options{ChunkElems: chunkElems, MaxAllocatedBytes: limit})
}

func TestSetIsInvisibleUntilCommit(t *testing.T) {
	m := newTestMapping(64, 0)
	require.NoError(t, m.Reserve(3))

	require.NoError(t, m.Set(1, []int32{3, 3, 7}))

	before := m.Handler().AcquireGuard()
	assert.Empty(t, m.Get(before, 1))
	assert.Equal(t, []int32{3, 3, 7}, m.Latest(1))
	before.Release()

	commit(m)

	guard := m.Handler().AcquireGuard()
	defer guard.Release()
	assert.Equal(t, []int32{3, 3, 7}, m.Get(guard, 1))
	assert.Equal(t, uint32(3), m.ValueCount(guard, 1))
	assert.Equal(t, uint32(0), m.ValueCount(guard, 0))
	assert.Equal(t, uint32(0), m.ValueCount(guard, 100))
	assert.Equal(t, uint64(3), m.TotalValueCount())
}

func TestSetOutOfRange(t *testing.T) {
	m := newTestMapping(64, 0)
	require.NoError(t, m.Reserve(1))

	err := m.Set(1, []int32{1})
	assert.ErrorIs(t, err, attribute.ErrDocIdOutOfRange)
}

func TestOldGuardKeepsOldVersion(t *testing.T) {
	m := newTestMapping(64, 0)
	h := m.Handler()
	require.NoError(t, m.Reserve(1))

	require.NoError(t, m.Set(0, []int32{5}))
	commit(m)

	old := h.AcquireGuard()
	require.NoError(t, m.Set(0, []int32{9}))
	commit(m)

	assert.Equal(t, []int32{5}, m.Get(old, 0))
	assert.Equal(t, 1, m.HeldEntries())
	assert.NotZero(t, m.MemoryUsage().AllocatedBytesOnHold)

	fresh := h.AcquireGuard()
	defer fresh.Release()
	assert.Equal(t, []int32{9}, m.Get(fresh, 0))

	old.Release()
	commit(m)

	assert.Equal(t, 0, m.HeldEntries())
	assert.Zero(t, m.MemoryUsage().AllocatedBytesOnHold)
	assert.Equal(t, []int32{9}, m.Get(fresh, 0))
}

func TestHoldListIsNotTrimmedWhileGuarded(t *testing.T) {
	m := newTestMapping(64, 0)
	h := m.Handler()
	require.NoError(t, m.Reserve(2))

	for i := int32(1); i <= 3; i++ {
		require.NoError(t, m.Set(0, []int32{i}))
		require.NoError(t, m.Set(1, []int32{i, i}))
		if i == 1 {
			commit(m)
			continue
		}
		guard := h.AcquireGuard()
		commit(m)
		// both replaced versions of this commit are pinned by the guard
		assert.Equal(t, 2, m.HeldEntries())
		assert.Equal(t, []int32{i - 1, i - 1}, m.Get(guard, 1))
		guard.Release()
		commit(m)
		assert.Equal(t, 0, m.HeldEntries())
	}
}

func TestReserveHoldsOldIndex(t *testing.T) {
	m := newTestMapping(64, 0)
	require.NoError(t, m.Reserve(1))
	commit(m)

	allocated := m.MemoryUsage().AllocatedBytes

	require.NoError(t, m.Reserve(17))
	assert.Equal(t, uint32(17), m.Size())
	assert.Equal(t, 1, m.HeldEntries())

	usage := m.MemoryUsage()
	assert.Greater(t, usage.AllocatedBytes, allocated)
	assert.Equal(t, allocated, usage.AllocatedBytesOnHold)

	commit(m)
	usage = m.MemoryUsage()
	assert.Zero(t, usage.AllocatedBytesOnHold)
	assert.Equal(t, 2*allocated, usage.AllocatedBytes)
}

func TestResourceExhausted(t *testing.T) {
	// index (16 slots) plus one chunk of 64 int32 fit, a second chunk does not
	m := newTestMapping(64, 500)
	require.NoError(t, m.Reserve(2))

	require.NoError(t, m.Set(0, make([]int32, 16)))
	require.NoError(t, m.Set(0, make([]int32, 16)))
	require.NoError(t, m.Set(0, make([]int32, 16)))
	require.NoError(t, m.Set(0, make([]int32, 16)))

	_, err := m.Prepare(make([]int32, 16))
	assert.ErrorIs(t, err, attribute.ErrResourceExhausted)

	// large lists need a dedicated chunk and fail as well
	_, err = m.Prepare(make([]int32, 100))
	assert.ErrorIs(t, err, attribute.ErrResourceExhausted)

	assert.LessOrEqual(t, m.MemoryUsage().AllocatedBytes, uint64(500))
}

func TestDiscardReturnsStorage(t *testing.T) {
	m := newTestMapping(64, 0)
	require.NoError(t, m.Reserve(1))
	require.NoError(t, m.Set(0, []int32{1}))
	commit(m)

	before := m.MemoryUsage()

	small, err := m.Prepare([]int32{1, 2, 3})
	require.NoError(t, err)
	large, err := m.Prepare(make([]int32, 40))
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, small.Values())

	m.Discard(large)
	m.Discard(small)
	m.Discard(small) // no effect

	after := m.MemoryUsage()
	assert.Equal(t, before.UsedBytes, after.UsedBytes)
	assert.Equal(t, before.AllocatedBytes, after.AllocatedBytes)
	assert.Zero(t, after.DeadBytes)

	guard := m.Handler().AcquireGuard()
	defer guard.Release()
	assert.Equal(t, []int32{1}, m.Get(guard, 0))
}

func TestInstallTwicePanics(t *testing.T) {
	m := newTestMapping(64, 0)
	require.NoError(t, m.Reserve(1))

	e, err := m.Prepare([]int32{1})
	require.NoError(t, err)
	m.Install(0, e)

	assert.Panics(t, func() { m.Install(0, e) })
}

func TestDedicatedChunkIsReleased(t *testing.T) {
	m := newTestMapping(64, 0)
	require.NoError(t, m.Reserve(1))
	indexBytes := m.MemoryUsage().AllocatedBytes

	large := make([]int32, 100)
	for i := range large {
		large[i] = int32(i)
	}
	require.NoError(t, m.Set(0, large))
	commit(m)
	assert.Equal(t, 1, m.NumChunks())
	assert.Equal(t, indexBytes+400, m.MemoryUsage().AllocatedBytes)

	require.NoError(t, m.Set(0, []int32{1}))
	commit(m)

	usage := m.MemoryUsage()
	assert.Equal(t, 1, m.NumChunks())
	assert.Equal(t, indexBytes+256, usage.AllocatedBytes)
	assert.Zero(t, usage.DeadBytes)
	assert.Zero(t, usage.AllocatedBytesOnHold)
}

func TestDeadBytesInSharedChunk(t *testing.T) {
	m := newTestMapping(64, 0)
	require.NoError(t, m.Reserve(2))

	require.NoError(t, m.Set(0, []int32{1, 2}))
	require.NoError(t, m.Set(1, []int32{3}))
	commit(m)

	require.NoError(t, m.Set(0, nil))
	commit(m)

	usage := m.MemoryUsage()
	assert.Equal(t, uint64(8), usage.DeadBytes)
	assert.Equal(t, uint64(1), m.TotalValueCount())
}

func TestClearHoldLists(t *testing.T) {
	m := newTestMapping(64, 0)
	h := m.Handler()
	require.NoError(t, m.Reserve(1))

	require.NoError(t, m.Set(0, []int32{1}))
	commit(m)

	guard := h.AcquireGuard()
	require.NoError(t, m.Set(0, []int32{2}))
	commit(m)
	require.NoError(t, m.Set(0, []int32{3}))
	assert.Equal(t, 2, m.HeldEntries())
	guard.Release()

	assert.Equal(t, 2, m.ClearHoldLists())
	assert.Equal(t, 0, m.HeldEntries())
	assert.Zero(t, m.MemoryUsage().AllocatedBytesOnHold)
}

func TestClear(t *testing.T) {
	m := newTestMapping(64, 0)
	require.NoError(t, m.Reserve(4))
	for doc := uint32(0); doc < 4; doc++ {
		require.NoError(t, m.Set(doc, []int32{int32(doc)}))
	}
	commit(m)

	m.Clear()

	guard := m.Handler().AcquireGuard()
	defer guard.Release()
	assert.Empty(t, m.Get(guard, 2))
	assert.Zero(t, m.TotalValueCount())
	assert.Zero(t, m.NumChunks())
}

// TestConcurrentReadersSeeWholeCommits checks that a guard never observes a partially installed commit.
func TestConcurrentReadersSeeWholeCommits(t *testing.T) {
	const (
		numDocs    = 32
		numCommits = 300
		numReaders = 4
	)

	m := newTestMapping(256, 0)
	h := m.Handler()
	require.NoError(t, m.Reserve(numDocs))

	var (
		wg         sync.WaitGroup
		stop       atomic.Bool
		violations atomic.Int64
	)

	wg.Add(numReaders)
	for r := 0; r < numReaders; r++ {
		go func() {
			defer wg.Done()
			for !stop.Load() {
				guard := h.AcquireGuard()
				first := m.Get(guard, 0)
				for doc := uint32(0); doc < numDocs; doc++ {
					values := m.Get(guard, doc)
					if len(values) != len(first) {
						violations.Add(1)
						continue
					}
					for _, v := range values {
						if len(first) > 0 && v != first[0] {
							violations.Add(1)
						}
					}
				}
				guard.Release()
			}
		}()
	}

	for i := int32(1); i <= numCommits; i++ {
		values := make([]int32, int(i%5)+1)
		for j := range values {
			values[j] = i
		}
		for doc := uint32(0); doc < numDocs; doc++ {
			require.NoError(t, m.Set(doc, values))
		}
		commit(m)
	}
	stop.Store(true)
	wg.Wait()

	assert.Zero(t, violations.Load())

	commit(m)
	assert.Equal(t, 0, m.HeldEntries())
	assert.Equal(t, uint64(numDocs*(numCommits%5+1)), m.TotalValueCount())
}

func BenchmarkGet(b *testing.B) {
	m := newTestMapping(DefaultChunkElems, 0)
	_ = m.Reserve(1024)
	for doc := uint32(0); doc < 1024; doc++ {
		_ = m.Set(doc, []int32{1, 2, 3, 4})
	}
	commit(m)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		doc := uint32(0)
		for pb.Next() {
			guard := m.Handler().AcquireGuard()
			_ = m.Get(guard, doc%1024)
			guard.Release()
			doc++
		}
	})
}
