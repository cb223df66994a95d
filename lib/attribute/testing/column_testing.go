package testing

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/attribute/codec"
)

// ColumnFactory creates a new, empty column implementation for the given configuration
type ColumnFactory[T attribute.Numeric] func(name string, cfg attribute.Config) (attribute.Column[T], error)

// RunColumnTests runs a comprehensive test suite for a multi-value column implementation.
func RunColumnTests[T attribute.Numeric](t *testing.T, name string, factory ColumnFactory[T]) {
	t.Run(name, func(t *testing.T) {
		t.Run("AddDocs&Commit", func(t *testing.T) {
			testAddDocsAndCommit(t, newArray(t, factory))
		})

		t.Run("CommitVisibility", func(t *testing.T) {
			testCommitVisibility(t, newArray(t, factory))
		})

		t.Run("LastWriteWins", func(t *testing.T) {
			testLastWriteWins(t, newArray(t, factory))
		})

		t.Run("OldGuardSnapshot", func(t *testing.T) {
			testOldGuardSnapshot(t, newArray(t, factory))
		})

		t.Run("AppendRemoveClear", func(t *testing.T) {
			testAppendRemoveClear(t, newArray(t, factory))
		})

		t.Run("WeightedSet", func(t *testing.T) {
			testWeightedSet(t, newSet(t, factory))
		})

		t.Run("DocIdOutOfRange", func(t *testing.T) {
			testDocIdOutOfRange(t, newArray(t, factory))
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadIntoUsedColumn", func(t *testing.T) {
			testLoadIntoUsedColumn(t, factory)
		})

		t.Run("SearchContexts", func(t *testing.T) {
			testSearchContexts(t, factory)
		})

		t.Run("Statistics", func(t *testing.T) {
			testStatistics(t, newArray(t, factory))
		})

		t.Run("ConcurrentReaders", func(t *testing.T) {
			testConcurrentReaders(t, newArray(t, factory))
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, newArray(t, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func newColumn[T attribute.Numeric](t testing.TB, factory ColumnFactory[T], collection attribute.CollectionType, modify func(*attribute.Config)) attribute.Column[T] {
	t.Helper()
	cfg := attribute.NewConfig(attribute.BasicTypeOf[T](), collection)
	if modify != nil {
		modify(&cfg)
	}
	col, err := factory("test", cfg)
	if err != nil {
		t.Fatalf("Failed to create column: %v", err)
	}
	return col
}

func newArray[T attribute.Numeric](t testing.TB, factory ColumnFactory[T]) attribute.Column[T] {
	return newColumn(t, factory, attribute.Array, nil)
}

func newSet[T attribute.Numeric](t testing.TB, factory ColumnFactory[T]) attribute.Column[T] {
	return newColumn(t, factory, attribute.WeightedSet, nil)
}

// list builds an unweighted value list
func list[T attribute.Numeric](values ...int) []attribute.Multivalue[T] {
	result := make([]attribute.Multivalue[T], len(values))
	for i, v := range values {
		result[i] = attribute.Multivalue[T]{Value: T(v), Weight: 1}
	}
	return result
}

// wlist builds a weighted value list from value/weight pairs
func wlist[T attribute.Numeric](pairs ...int) []attribute.Multivalue[T] {
	result := make([]attribute.Multivalue[T], 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		result = append(result, attribute.Multivalue[T]{Value: T(pairs[i]), Weight: int32(pairs[i+1])})
	}
	return result
}

func mustNoError(t testing.TB, err error, what string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s failed: %v", what, err)
	}
}

func expectValues[T attribute.Numeric](t testing.TB, col attribute.Column[T], doc attribute.DocId, want []attribute.Multivalue[T]) {
	t.Helper()
	got := col.Get(doc, nil)
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !slices.Equal(got, want) {
		t.Errorf("Doc %d: expected %v, got %v", doc, want, got)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testAddDocsAndCommit[T attribute.Numeric](t *testing.T, col attribute.Column[T]) {
	defer col.Close()

	first, err := col.AddDocs(3)
	mustNoError(t, err, "AddDocs")
	if first != 0 {
		t.Errorf("Expected first doc 0, got %d", first)
	}
	if col.NumDocs() != 3 {
		t.Errorf("Expected 3 docs, got %d", col.NumDocs())
	}
	if col.CommittedDocIdLimit() != 0 {
		t.Errorf("Docs must not be visible before commit, limit is %d", col.CommittedDocIdLimit())
	}

	gen := col.CurrentGeneration()
	mustNoError(t, col.Commit(), "Commit")
	if col.CommittedDocIdLimit() != 3 {
		t.Errorf("Expected committed limit 3, got %d", col.CommittedDocIdLimit())
	}
	if col.CurrentGeneration() != gen+1 {
		t.Errorf("Commit must advance the generation by one: %d -> %d", gen, col.CurrentGeneration())
	}

	// an empty commit still advances
	mustNoError(t, col.Commit(), "Commit")
	if col.CurrentGeneration() != gen+2 {
		t.Errorf("Empty commit must advance the generation, got %d", col.CurrentGeneration())
	}

	first, err = col.AddDocs(2)
	mustNoError(t, err, "AddDocs")
	if first != 3 {
		t.Errorf("Expected first doc 3, got %d", first)
	}
	for doc := attribute.DocId(0); doc < 5; doc++ {
		if n := col.ValueCount(doc); n != 0 {
			t.Errorf("New doc %d should be empty, has %d values", doc, n)
		}
	}
}

func testCommitVisibility[T attribute.Numeric](t *testing.T, col attribute.Column[T]) {
	defer col.Close()

	_, err := col.AddDocs(3)
	mustNoError(t, err, "AddDocs")
	mustNoError(t, col.ApplyChange(1, list[T](5)), "ApplyChange")
	mustNoError(t, col.ApplyChange(2, list[T](3, 3, 7)), "ApplyChange")

	if n := col.ValueCount(2); n != 0 {
		t.Errorf("Changes must not be visible before commit, got %d values", n)
	}

	mustNoError(t, col.Commit(), "Commit")

	expected := []int{0, 1, 3}
	for doc, n := range expected {
		if got := col.ValueCount(attribute.DocId(doc)); got != uint32(n) {
			t.Errorf("ValueCount(%d) = %d, expected %d", doc, got, n)
		}
	}
	expectValues(t, col, 1, list[T](5))
	expectValues(t, col, 2, list[T](3, 3, 7))

	if col.ValueCount(3) != 0 || col.ValueCount(1000) != 0 {
		t.Errorf("ValueCount beyond the committed limit must be 0")
	}
	if col.MaxValueCount() != 3 {
		t.Errorf("Expected max value count 3, got %d", col.MaxValueCount())
	}
	if col.TotalValueCount() != 4 {
		t.Errorf("Expected total value count 4, got %d", col.TotalValueCount())
	}
}

func testLastWriteWins[T attribute.Numeric](t *testing.T, col attribute.Column[T]) {
	defer col.Close()

	_, err := col.AddDocs(1)
	mustNoError(t, err, "AddDocs")

	mustNoError(t, col.ApplyChange(0, list[T](1, 2)), "ApplyChange")
	mustNoError(t, col.ApplyChange(0, list[T](4)), "ApplyChange")
	mustNoError(t, col.Commit(), "Commit")

	expectValues(t, col, 0, list[T](4))

	// the caller's slice is copied when the change is buffered
	values := list[T](8, 9)
	mustNoError(t, col.ApplyChange(0, values), "ApplyChange")
	values[0].Value = T(100)
	mustNoError(t, col.Commit(), "Commit")
	expectValues(t, col, 0, list[T](8, 9))

	// max value count never decreases
	mustNoError(t, col.ApplyChange(0, nil), "ApplyChange")
	mustNoError(t, col.Commit(), "Commit")
	if col.MaxValueCount() != 2 {
		t.Errorf("Expected max value count to stay 2, got %d", col.MaxValueCount())
	}
}

func testOldGuardSnapshot[T attribute.Numeric](t *testing.T, col attribute.Column[T]) {
	defer col.Close()

	_, err := col.AddDocs(1)
	mustNoError(t, err, "AddDocs")
	mustNoError(t, col.ApplyChange(0, list[T](5)), "ApplyChange")
	mustNoError(t, col.Commit(), "Commit")

	old := col.AcquireGuard()

	mustNoError(t, col.ApplyChange(0, list[T](9)), "ApplyChange")
	mustNoError(t, col.Commit(), "Commit")

	if got := col.View(old, 0); !slices.Equal(got, list[T](5)) {
		t.Errorf("Guard acquired before the commit must see [5], got %v", got)
	}

	fresh := col.AcquireGuard()
	if got := col.View(fresh, 0); !slices.Equal(got, list[T](9)) {
		t.Errorf("Guard acquired after the commit must see [9], got %v", got)
	}

	if col.UpdateStatistics().AllocatedBytesOnHold == 0 {
		t.Errorf("The replaced list must be on hold while the old guard is alive")
	}

	old.Release()
	fresh.Release()
	mustNoError(t, col.Commit(), "Commit")

	if onHold := col.UpdateStatistics().AllocatedBytesOnHold; onHold != 0 {
		t.Errorf("Expected nothing on hold after all guards were released, got %d bytes", onHold)
	}
	expectValues(t, col, 0, list[T](9))
}

func testAppendRemoveClear[T attribute.Numeric](t *testing.T, col attribute.Column[T]) {
	defer col.Close()

	_, err := col.AddDocs(2)
	mustNoError(t, err, "AddDocs")

	mustNoError(t, col.ApplyChange(0, list[T](1, 2, 3)), "ApplyChange")
	mustNoError(t, col.Append(1, list[T](7)), "Append")
	mustNoError(t, col.Commit(), "Commit")

	mustNoError(t, col.Append(0, list[T](2, 4)), "Append")
	mustNoError(t, col.Remove(0, []T{T(2)}), "Remove")
	mustNoError(t, col.ClearDoc(1), "ClearDoc")
	mustNoError(t, col.Append(1, list[T](6)), "Append")
	mustNoError(t, col.Commit(), "Commit")

	expectValues(t, col, 0, list[T](1, 3, 4))
	expectValues(t, col, 1, list[T](6))

	mustNoError(t, col.ClearDoc(0), "ClearDoc")
	mustNoError(t, col.Commit(), "Commit")
	if n := col.ValueCount(0); n != 0 {
		t.Errorf("Cleared doc should be empty, has %d values", n)
	}
}

func testWeightedSet[T attribute.Numeric](t *testing.T, col attribute.Column[T]) {
	defer col.Close()

	_, err := col.AddDocs(1)
	mustNoError(t, err, "AddDocs")

	mustNoError(t, col.ApplyChange(0, wlist[T](3, 10, 5, 20, 3, 30)), "ApplyChange")
	mustNoError(t, col.Commit(), "Commit")
	expectValues(t, col, 0, wlist[T](3, 30, 5, 20))

	mustNoError(t, col.Append(0, wlist[T](5, -1, 8, 2)), "Append")
	mustNoError(t, col.Commit(), "Commit")
	expectValues(t, col, 0, wlist[T](3, 30, 5, -1, 8, 2))
}

func testDocIdOutOfRange[T attribute.Numeric](t *testing.T, col attribute.Column[T]) {
	defer col.Close()

	_, err := col.AddDocs(2)
	mustNoError(t, err, "AddDocs")

	checks := map[string]error{
		"ApplyChange": col.ApplyChange(2, list[T](1)),
		"Append":      col.Append(5, list[T](1)),
		"Remove":      col.Remove(2, []T{1}),
		"ClearDoc":    col.ClearDoc(100),
	}
	for op, err := range checks {
		if !errors.Is(err, attribute.ErrDocIdOutOfRange) {
			t.Errorf("%s: expected ErrDocIdOutOfRange, got %v", op, err)
		}
	}

	// rejected changes are not buffered
	mustNoError(t, col.Commit(), "Commit")
	if col.TotalValueCount() != 0 {
		t.Errorf("Rejected changes must not be applied")
	}
}

func testSaveLoad[T attribute.Numeric](t *testing.T, factory ColumnFactory[T]) {
	formats := []attribute.PersistFormat{attribute.FormatRaw, attribute.FormatEnumerated}
	compressions := []attribute.Compression{attribute.CompressionNone, attribute.CompressionLZ4, attribute.CompressionZstd}

	for _, collection := range []attribute.CollectionType{attribute.Array, attribute.WeightedSet} {
		for _, format := range formats {
			for _, compression := range compressions {
				name := fmt.Sprintf("%s/%s/%s", collection, format, compression)
				t.Run(name, func(t *testing.T) {
					configure := func(cfg *attribute.Config) {
						cfg.Format = format
						cfg.Compression = compression
					}
					src := newColumn(t, factory, collection, configure)
					defer src.Close()

					_, err := src.AddDocs(4)
					mustNoError(t, err, "AddDocs")
					docs := [][]attribute.Multivalue[T]{
						nil,
						wlist[T](5, 1),
						wlist[T](3, 1, 7, 1),
						wlist[T](100, 1, 3, 1, 5, 1, 9, 1),
					}
					for doc, values := range docs {
						mustNoError(t, src.ApplyChange(attribute.DocId(doc), values), "ApplyChange")
					}
					mustNoError(t, src.Commit(), "Commit")
					// shrink doc 3 so the persisted max value count exceeds the current lists
					mustNoError(t, src.ApplyChange(3, wlist[T](1, 1)), "ApplyChange")
					mustNoError(t, src.Commit(), "Commit")
					src.SetCreateSerialNum(77)

					files := codec.NewMemFileSet(nil, nil)
					mustNoError(t, src.Save(files), "Save")

					dst := newColumn(t, factory, collection, configure)
					defer dst.Close()
					mustNoError(t, dst.Load(files), "Load")

					if dst.NumDocs() != 4 || dst.CommittedDocIdLimit() != 4 {
						t.Errorf("Expected 4 docs after load, got %d/%d", dst.NumDocs(), dst.CommittedDocIdLimit())
					}
					if dst.MaxValueCount() != 4 {
						t.Errorf("Expected persisted max value count 4, got %d", dst.MaxValueCount())
					}
					if dst.CreateSerialNum() != 77 {
						t.Errorf("Expected create serial num 77, got %d", dst.CreateSerialNum())
					}
					for doc := attribute.DocId(0); doc < 4; doc++ {
						want := src.Get(doc, nil)
						expectValues(t, dst, doc, want)
					}

					// the loaded column accepts changes
					mustNoError(t, dst.Append(0, wlist[T](42, 1)), "Append")
					mustNoError(t, dst.Commit(), "Commit")
					expectValues(t, dst, 0, wlist[T](42, 1))
				})
			}
		}
	}

	t.Run("ConfigMismatch", func(t *testing.T) {
		src := newArray(t, factory)
		defer src.Close()
		_, _ = src.AddDocs(1)
		mustNoError(t, src.Commit(), "Commit")

		files := codec.NewMemFileSet(nil, nil)
		mustNoError(t, src.Save(files), "Save")

		dst := newSet(t, factory)
		defer dst.Close()
		if err := dst.Load(files); !errors.Is(err, attribute.ErrConfigMismatch) {
			t.Errorf("Expected ErrConfigMismatch loading an array into a set, got %v", err)
		}
		if dst.NumDocs() != 0 {
			t.Errorf("Failed load must leave the column empty")
		}
	})

	t.Run("Corruption", func(t *testing.T) {
		src := newArray(t, factory)
		defer src.Close()
		_, _ = src.AddDocs(2)
		mustNoError(t, src.ApplyChange(1, list[T](1, 2, 3)), "ApplyChange")
		mustNoError(t, src.Commit(), "Commit")

		files := codec.NewMemFileSet(nil, nil)
		mustNoError(t, src.Save(files), "Save")
		data := files.Data()
		files.SetData(data[:len(data)-2])

		dst := newArray(t, factory)
		defer dst.Close()
		if err := dst.Load(files); !errors.Is(err, attribute.ErrCorruption) {
			t.Errorf("Expected ErrCorruption for truncated data, got %v", err)
		}
		if dst.NumDocs() != 0 || dst.CommittedDocIdLimit() != 0 || dst.TotalValueCount() != 0 {
			t.Errorf("Failed load must leave the column empty")
		}

		// the column is still usable after a failed load
		files.SetData(data)
		mustNoError(t, dst.Load(files), "Load")
		expectValues(t, dst, 1, list[T](1, 2, 3))
	})
}

func testLoadIntoUsedColumn[T attribute.Numeric](t *testing.T, factory ColumnFactory[T]) {
	src := newArray(t, factory)
	defer src.Close()
	_, _ = src.AddDocs(1)
	mustNoError(t, src.Commit(), "Commit")

	files := codec.NewMemFileSet(nil, nil)
	mustNoError(t, src.Save(files), "Save")

	if err := src.Load(files); !errors.Is(err, attribute.ErrInvalidOperation) {
		t.Errorf("Expected ErrInvalidOperation loading into a used column, got %v", err)
	}
}

func testSearchContexts[T attribute.Numeric](t *testing.T, factory ColumnFactory[T]) {
	t.Run("Array", func(t *testing.T) {
		col := newArray(t, factory)
		defer col.Close()

		_, _ = col.AddDocs(4)
		mustNoError(t, col.ApplyChange(0, list[T](3, 3, 7)), "ApplyChange")
		mustNoError(t, col.ApplyChange(1, list[T](5)), "ApplyChange")
		mustNoError(t, col.ApplyChange(3, list[T](7, 3)), "ApplyChange")
		mustNoError(t, col.Commit(), "Commit")

		sc, err := col.NewSearchContext(attribute.Exact(T(3)))
		mustNoError(t, err, "NewSearchContext")
		defer sc.Close()

		if ok, weight := sc.Matches(0); !ok || weight != 2 {
			t.Errorf("Doc 0: expected match with weight 2, got %v/%d", ok, weight)
		}
		if ok, _ := sc.Matches(1); ok {
			t.Errorf("Doc 1 must not match")
		}
		if idx, _ := sc.Find(0, 1); idx != 1 {
			t.Errorf("Find(0, 1) = %d, expected 1", idx)
		}
		if idx, _ := sc.Find(0, 2); idx != -1 {
			t.Errorf("Find(0, 2) = %d, expected -1", idx)
		}
		if idx, _ := sc.Find(3, 0); idx != 1 {
			t.Errorf("Find(3, 0) = %d, expected 1", idx)
		}

		hits := sc.FindMatches()
		if hits.GetCardinality() != 2 || !hits.Contains(0) || !hits.Contains(3) {
			t.Errorf("Expected matches {0,3}, got %v", hits.ToArray())
		}

		if _, err := col.NewSetSearchContext(attribute.Exact(T(3))); !errors.Is(err, attribute.ErrConfigMismatch) {
			t.Errorf("Expected ErrConfigMismatch for a set search context on an array, got %v", err)
		}
	})

	t.Run("WeightedSet", func(t *testing.T) {
		col := newSet(t, factory)
		defer col.Close()

		_, _ = col.AddDocs(3)
		mustNoError(t, col.ApplyChange(0, wlist[T](3, 10, 7, 20)), "ApplyChange")
		mustNoError(t, col.ApplyChange(2, wlist[T](7, -5)), "ApplyChange")
		mustNoError(t, col.Commit(), "Commit")

		sc, err := col.NewSearchContext(attribute.Range(T(5), T(9)))
		mustNoError(t, err, "NewSearchContext")
		defer sc.Close()

		if ok, weight := sc.Matches(0); !ok || weight != 20 {
			t.Errorf("Doc 0: expected match with weight 20, got %v/%d", ok, weight)
		}
		if ok, weight := sc.Matches(2); !ok || weight != -5 {
			t.Errorf("Doc 2: expected match with weight -5, got %v/%d", ok, weight)
		}
		hits := sc.FindMatches()
		if hits.GetCardinality() != 2 {
			t.Errorf("Expected 2 matching docs, got %d", hits.GetCardinality())
		}

		if _, err := col.NewArraySearchContext(attribute.Exact(T(3))); !errors.Is(err, attribute.ErrConfigMismatch) {
			t.Errorf("Expected ErrConfigMismatch for an array search context on a set, got %v", err)
		}
	})

	t.Run("SnapshotIsolation", func(t *testing.T) {
		col := newArray(t, factory)
		defer col.Close()

		_, _ = col.AddDocs(1)
		mustNoError(t, col.ApplyChange(0, list[T](1)), "ApplyChange")
		mustNoError(t, col.Commit(), "Commit")

		sc, err := col.NewSearchContext(attribute.Exact(T(1)))
		mustNoError(t, err, "NewSearchContext")

		mustNoError(t, col.ApplyChange(0, list[T](2)), "ApplyChange")
		_, _ = col.AddDocs(1)
		mustNoError(t, col.ApplyChange(1, list[T](1)), "ApplyChange")
		mustNoError(t, col.Commit(), "Commit")

		hits := sc.FindMatches()
		if hits.GetCardinality() != 1 || !hits.Contains(0) {
			t.Errorf("Search context must keep its snapshot, got %v", hits.ToArray())
		}
		sc.Close()
		sc.Close()

		sc, err = col.NewSearchContext(attribute.Exact(T(1)))
		mustNoError(t, err, "NewSearchContext")
		defer sc.Close()
		hits = sc.FindMatches()
		if hits.GetCardinality() != 1 || !hits.Contains(1) {
			t.Errorf("New search context must see the commit, got %v", hits.ToArray())
		}
	})
}

func testStatistics[T attribute.Numeric](t *testing.T, col attribute.Column[T]) {
	defer col.Close()

	_, _ = col.AddDocs(10)
	for doc := attribute.DocId(0); doc < 10; doc++ {
		mustNoError(t, col.ApplyChange(doc, list[T](1, 2, 3)), "ApplyChange")
	}
	mustNoError(t, col.Commit(), "Commit")

	stats := col.UpdateStatistics()
	if stats.TotalValueCount != 30 || stats.MaxValueCount != 3 {
		t.Errorf("Unexpected value counts %d/%d", stats.TotalValueCount, stats.MaxValueCount)
	}
	if stats.CommittedDocIdLimit != 10 || stats.NumDocs != 10 {
		t.Errorf("Unexpected doc counts %d/%d", stats.NumDocs, stats.CommittedDocIdLimit)
	}
	if stats.UsedBytes == 0 || stats.UsedBytes > stats.AllocatedBytes {
		t.Errorf("Used bytes must be within allocated bytes: %d/%d", stats.UsedBytes, stats.AllocatedBytes)
	}
	if stats.Commits != 1 || stats.Generation != uint64(col.CurrentGeneration()) {
		t.Errorf("Unexpected commit stats %d/%d", stats.Commits, stats.Generation)
	}

	for doc := attribute.DocId(0); doc < 10; doc++ {
		mustNoError(t, col.ClearDoc(doc), "ClearDoc")
	}
	mustNoError(t, col.Commit(), "Commit")

	stats = col.UpdateStatistics()
	if stats.DeadBytes == 0 {
		t.Errorf("Cleared lists must be accounted as dead bytes")
	}
	if stats.AllocatedBytesOnHold != 0 {
		t.Errorf("Nothing should be on hold without readers, got %d", stats.AllocatedBytesOnHold)
	}
	if stats.TotalValueCount != 0 {
		t.Errorf("Expected no values, got %d", stats.TotalValueCount)
	}
}

// testConcurrentReaders runs readers against a committing writer. Every commit sets all
// documents to the same list, so a reader must never see two different lists under one guard.
func testConcurrentReaders[T attribute.Numeric](t *testing.T, col attribute.Column[T]) {
	defer col.Close()

	const (
		numDocs    = 16
		numCommits = 200
		numReaders = 4
	)

	_, _ = col.AddDocs(numDocs)
	mustNoError(t, col.Commit(), "Commit")

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
				guard := col.AcquireGuard()
				first := col.View(guard, 0)
				for doc := attribute.DocId(1); doc < numDocs; doc++ {
					if !slices.Equal(col.View(guard, doc), first) {
						violations.Add(1)
					}
				}
				guard.Release()
			}
		}()
	}

	for i := 1; i <= numCommits; i++ {
		values := make([]int, i%4+1)
		for j := range values {
			values[j] = i % 100
		}
		for doc := attribute.DocId(0); doc < numDocs; doc++ {
			mustNoError(t, col.ApplyChange(doc, list[T](values...)), "ApplyChange")
		}
		mustNoError(t, col.Commit(), "Commit")
	}
	stop.Store(true)
	wg.Wait()

	if v := violations.Load(); v != 0 {
		t.Errorf("Readers observed %d partially applied commits", v)
	}

	mustNoError(t, col.Commit(), "Commit")
	if onHold := col.UpdateStatistics().AllocatedBytesOnHold; onHold != 0 {
		t.Errorf("Expected nothing on hold after readers stopped, got %d", onHold)
	}
}

func testClose[T attribute.Numeric](t *testing.T, col attribute.Column[T]) {
	_, _ = col.AddDocs(1)
	mustNoError(t, col.ApplyChange(0, list[T](1)), "ApplyChange")
	mustNoError(t, col.Commit(), "Commit")

	mustNoError(t, col.Close(), "Close")
	mustNoError(t, col.Close(), "second Close")

	if err := col.Commit(); !errors.Is(err, attribute.ErrClosed) {
		t.Errorf("Commit after Close: expected ErrClosed, got %v", err)
	}
	if _, err := col.AddDocs(1); !errors.Is(err, attribute.ErrClosed) {
		t.Errorf("AddDocs after Close: expected ErrClosed, got %v", err)
	}
	if err := col.ApplyChange(0, nil); !errors.Is(err, attribute.ErrClosed) {
		t.Errorf("ApplyChange after Close: expected ErrClosed, got %v", err)
	}
}
