package multivalue

import (
	"bytes"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/attribute/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ints(values ...int32) []attribute.Multivalue[int32] {
	result := make([]attribute.Multivalue[int32], len(values))
	for i, v := range values {
		result[i] = attribute.Multivalue[int32]{Value: v, Weight: 1}
	}
	return result
}

func newTestColumn(t *testing.T, collection attribute.CollectionType, modify func(*attribute.Config), opts *Options) *column[int32] {
	t.Helper()
	cfg := attribute.NewConfig(attribute.TypeInt32, collection)
	if modify != nil {
		modify(&cfg)
	}
	c, err := newColumn[int32]("tags", cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewRejectsMismatchedConfig(t *testing.T) {
	_, err := New[int32]("x", attribute.NewConfig(attribute.TypeFloat64, attribute.Array), nil)
	assert.ErrorIs(t, err, attribute.ErrConfigMismatch)

	_, err = New[int32]("x", attribute.NewConfig(attribute.TypeInt32, attribute.CollectionType(9)), nil)
	assert.ErrorIs(t, err, attribute.ErrConfigMismatch)
}

func TestPersistedLayouts(t *testing.T) {
	for _, format := range []attribute.PersistFormat{attribute.FormatRaw, attribute.FormatEnumerated} {
		t.Run(format.String(), func(t *testing.T) {
			c := newTestColumn(t, attribute.Array, func(cfg *attribute.Config) { cfg.Format = format }, nil)

			_, err := c.AddDocs(3)
			require.NoError(t, err)
			require.NoError(t, c.ApplyChange(1, ints(5)))
			require.NoError(t, c.ApplyChange(2, ints(3, 3, 7)))
			require.NoError(t, c.Commit())

			files := codec.NewMemFileSet(nil, nil)
			require.NoError(t, c.Save(files))

			h, err := codec.ReadHeader(bytes.NewReader(files.Data()))
			require.NoError(t, err)
			assert.Equal(t, uint32(3), h.NumDocs)
			assert.Equal(t, uint32(3), h.MaxValueCount)
			assert.Equal(t, uint64(4), h.TotalValueCount)
			assert.Equal(t, format, h.Format())

			if format == attribute.FormatEnumerated {
				dict, err := codec.NewDictionary[int32](files.Dictionary())
				require.NoError(t, err)
				assert.Equal(t, []int32{3, 5, 7}, dict.Values())
			} else {
				assert.Nil(t, files.Dictionary())
			}
		})
	}
}

func TestCommitResourceExhausted(t *testing.T) {
	// index: 16 slots * 8 bytes, first shared chunk: 16 elements * 8 bytes
	c := newTestColumn(t, attribute.Array, func(cfg *attribute.Config) { cfg.MaxAllocatedBytes = 300 }, &Options{ChunkElems: 16})

	_, err := c.AddDocs(4)
	require.NoError(t, err)
	require.NoError(t, c.ApplyChange(0, ints(1, 2, 3)))
	require.NoError(t, c.ApplyChange(1, ints(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)))

	gen := c.CurrentGeneration()
	err = c.Commit()
	require.ErrorIs(t, err, attribute.ErrResourceExhausted)

	// nothing became visible and the changes are still pending
	assert.Equal(t, gen, c.CurrentGeneration())
	assert.Equal(t, uint32(0), c.CommittedDocIdLimit())
	assert.Equal(t, uint64(0), c.TotalValueCount())
	assert.Equal(t, uint32(0), c.MaxValueCount())
	assert.Equal(t, 2, c.changes.Len())

	usage := c.UpdateStatistics().MemoryUsage
	assert.Equal(t, uint64(256), usage.AllocatedBytes)
	assert.Equal(t, uint64(4*8), usage.UsedBytes, "only the doc index is in use")

	// a smaller list fits into the shared chunk
	require.NoError(t, c.ApplyChange(1, ints(9, 8)))
	require.NoError(t, c.Commit())
	assert.Equal(t, ints(1, 2, 3), c.Get(0, nil))
	assert.Equal(t, ints(9, 8), c.Get(1, nil))
	assert.Equal(t, uint32(4), c.CommittedDocIdLimit())
	assert.Equal(t, 0, c.changes.Len())
	assert.Equal(t, uint64(1), c.metrics.commitFailures.Get())
}

func TestSaveWhileCommitting(t *testing.T) {
	c := newTestColumn(t, attribute.Array, nil, nil)

	const numDocs = 64
	_, err := c.AddDocs(numDocs)
	require.NoError(t, err)
	require.NoError(t, c.Commit())

	var (
		wg   sync.WaitGroup
		stop atomic.Bool
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int32(1); !stop.Load(); i++ {
			for doc := attribute.DocId(0); doc < numDocs; doc++ {
				_ = c.ApplyChange(doc, ints(i, i))
			}
			_ = c.Commit()
		}
	}()

	for round := 0; round < 20; round++ {
		files := codec.NewMemFileSet(nil, nil)
		require.NoError(t, c.Save(files))

		loaded := newTestColumn(t, attribute.Array, nil, nil)
		require.NoError(t, loaded.Load(files))

		// every saved file reflects a single commit
		first := loaded.Get(0, nil)
		for doc := attribute.DocId(1); doc < numDocs; doc++ {
			require.Equal(t, first, loaded.Get(doc, nil), "doc %d in round %d", doc, round)
		}
	}

	stop.Store(true)
	wg.Wait()
}

func TestSnapshotFollowsGuardGeneration(t *testing.T) {
	c := newTestColumn(t, attribute.Array, nil, nil)

	_, err := c.AddDocs(3)
	require.NoError(t, err)
	require.NoError(t, c.ApplyChange(0, ints(1, 2)))
	require.NoError(t, c.Commit())

	old := c.AcquireGuard()
	defer old.Release()

	_, err = c.AddDocs(2)
	require.NoError(t, err)
	require.NoError(t, c.ApplyChange(4, ints(7, 7, 7, 7)))
	require.NoError(t, c.Commit())

	current := c.AcquireGuard()
	defer current.Release()

	before := c.snapshot(old)
	assert.Equal(t, uint32(3), before.NumDocs)
	assert.Equal(t, uint32(2), before.MaxValueCount)

	after := c.snapshot(current)
	assert.Equal(t, uint32(5), after.NumDocs)
	assert.Equal(t, uint32(4), after.MaxValueCount)
	assert.Equal(t, ints(7, 7, 7, 7), after.Get(4))

	// both snapshots persist as consistent files
	for _, snap := range []codec.Snapshot[int32]{before, after} {
		files := codec.NewMemFileSet(nil, nil)
		h, err := codec.Save(files, c.cfg, snap)
		require.NoError(t, err)

		loaded := newTestColumn(t, attribute.Array, nil, nil)
		require.NoError(t, loaded.Load(files))
		assert.Equal(t, h.NumDocs, loaded.CommittedDocIdLimit())
		assert.Equal(t, ints(1, 2), loaded.Get(0, nil))
	}
}

func TestCommitMarksArePruned(t *testing.T) {
	c := newTestColumn(t, attribute.Array, nil, nil)

	guard := c.AcquireGuard()
	for i := 0; i < 10; i++ {
		_, err := c.AddDocs(1)
		require.NoError(t, err)
		require.NoError(t, c.Commit())
	}
	assert.Equal(t, uint32(0), c.markAt(guard.Generation()).limit)
	guard.Release()

	require.NoError(t, c.Commit())

	marks := 0
	for mark := c.marks.Load(); mark != nil; mark = mark.prev.Load() {
		marks++
	}
	assert.Equal(t, 1, marks)
	assert.Equal(t, uint32(10), c.markAt(c.CurrentGeneration()).limit)
}

func TestSaveWhileAddingDocs(t *testing.T) {
	c := newTestColumn(t, attribute.Array, nil, nil)

	// doc 0 always holds the number of docs of its generation
	_, err := c.AddDocs(1)
	require.NoError(t, err)
	require.NoError(t, c.ApplyChange(0, ints(1)))
	require.NoError(t, c.Commit())

	var (
		wg   sync.WaitGroup
		stop atomic.Bool
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for !stop.Load() {
			first, err := c.AddDocs(1)
			if err != nil {
				return
			}
			_ = c.ApplyChange(first, ints(int32(first)))
			_ = c.ApplyChange(0, ints(int32(first)+1))
			_ = c.Commit()
		}
	}()

	for round := 0; round < 50; round++ {
		files := codec.NewMemFileSet(nil, nil)
		require.NoError(t, c.Save(files))

		loaded := newTestColumn(t, attribute.Array, nil, nil)
		require.NoError(t, loaded.Load(files))

		numDocs := loaded.CommittedDocIdLimit()
		require.Equal(t, ints(int32(numDocs)), loaded.Get(0, nil), "round %d", round)
		for doc := attribute.DocId(1); doc < numDocs; doc++ {
			require.Equal(t, ints(int32(doc)), loaded.Get(doc, nil), "doc %d in round %d", doc, round)
		}
	}

	stop.Store(true)
	wg.Wait()
}

func TestSaveLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	files := codec.NewDirFileSet(dir, "tags")

	c := newTestColumn(t, attribute.WeightedSet, func(cfg *attribute.Config) {
		cfg.Format = attribute.FormatEnumerated
		cfg.Compression = attribute.CompressionZstd
	}, nil)
	_, err := c.AddDocs(2)
	require.NoError(t, err)
	require.NoError(t, c.ApplyChange(0, []attribute.Multivalue[int32]{{Value: 7, Weight: 3}, {Value: -1, Weight: 9}}))
	require.NoError(t, c.Commit())
	require.NoError(t, c.Save(files))

	assert.True(t, files.Exists())
	_, err = os.Stat(files.DictionaryPath())
	require.NoError(t, err)

	loaded := newTestColumn(t, attribute.WeightedSet, func(cfg *attribute.Config) {
		cfg.Format = attribute.FormatEnumerated
		cfg.Compression = attribute.CompressionZstd
	}, nil)
	require.NoError(t, loaded.Load(files))
	assert.Equal(t, c.Get(0, nil), loaded.Get(0, nil))
	assert.Equal(t, uint32(2), loaded.NumDocs())

	require.NoError(t, files.Remove())
	assert.False(t, files.Exists())
}

func TestSearchContextErrors(t *testing.T) {
	c := newTestColumn(t, attribute.Array, nil, nil)

	_, err := c.NewSearchContext(nil)
	assert.ErrorIs(t, err, attribute.ErrInvalidOperation)

	sc, err := c.NewSearchContext(attribute.AnyOf[int32](1, 2))
	require.NoError(t, err)
	assert.True(t, c.handler.HasReaders())
	sc.Close()
	assert.False(t, c.handler.HasReaders())

	// a closed context matches nothing
	ok, _ := sc.Matches(0)
	assert.False(t, ok)

	require.NoError(t, c.Close())
	_, err = c.NewSearchContext(attribute.Exact[int32](1))
	assert.ErrorIs(t, err, attribute.ErrClosed)
	assert.ErrorIs(t, c.Save(codec.NewMemFileSet(nil, nil)), attribute.ErrClosed)
	assert.ErrorIs(t, c.Load(codec.NewMemFileSet(nil, nil)), attribute.ErrClosed)
}

func TestRefresherUpdatesStatistics(t *testing.T) {
	c := newTestColumn(t, attribute.Array, func(cfg *attribute.Config) { cfg.StatsInterval = 5 * time.Millisecond }, nil)
	require.True(t, c.refresherRunning.Load())

	_, err := c.AddDocs(2)
	require.NoError(t, err)
	require.NoError(t, c.ApplyChange(1, ints(4, 2)))
	require.NoError(t, c.Commit())

	assert.Eventually(t, func() bool {
		s := c.lastStatistics()
		return s.Commits == 1 && s.TotalValueCount == 2
	}, time.Second, 5*time.Millisecond)

	// a load is reported right away
	files := codec.NewMemFileSet(nil, nil)
	require.NoError(t, c.Save(files))
	loaded := newTestColumn(t, attribute.Array, func(cfg *attribute.Config) { cfg.StatsInterval = time.Hour }, nil)
	require.NoError(t, loaded.Load(files))
	assert.Eventually(t, func() bool {
		return loaded.lastStatistics().CommittedDocIdLimit == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.False(t, c.refresherRunning.Load())
}

func TestWritePrometheus(t *testing.T) {
	c := newTestColumn(t, attribute.Array, nil, nil)

	_, err := c.AddDocs(2)
	require.NoError(t, err)
	require.NoError(t, c.ApplyChange(0, ints(1, 2, 3)))
	require.NoError(t, c.Commit())

	var buf bytes.Buffer
	c.WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, `mvattr_column_commits_total{column="tags"} 1`)
	assert.Contains(t, out, `mvattr_column_docs{column="tags"} 2`)
	assert.Contains(t, out, `mvattr_column_values{column="tags"} 3`)
	assert.Contains(t, out, `mvattr_column_max_value_count{column="tags"} 3`)
	assert.Contains(t, out, `mvattr_column_commit_duration_seconds{column="tags",quantile="0.99"}`)
	assert.Contains(t, out, `mvattr_column_commit_duration_seconds_count{column="tags"} 1`)
	assert.Contains(t, out, `mvattr_column_commit_changes_max{column="tags"} 1`)
}

func TestCloseWithLiveGuard(t *testing.T) {
	c := newTestColumn(t, attribute.Array, nil, nil)
	_, err := c.AddDocs(1)
	require.NoError(t, err)
	require.NoError(t, c.ApplyChange(0, ints(1)))
	require.NoError(t, c.Commit())

	guard := c.AcquireGuard()
	require.NoError(t, c.ApplyChange(0, ints(2)))
	require.NoError(t, c.Commit())
	assert.Equal(t, 1, c.mapping.Load().HeldEntries())

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.mapping.Load().HeldEntries())
	guard.Release()
}
