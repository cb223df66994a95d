package testing

import (
	"math/rand"
	"testing"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/attribute/codec"
)

// RunColumnBenchmarks runs all benchmarks for a multi-value column implementation
func RunColumnBenchmarks[T attribute.Numeric](b *testing.B, name string, factory ColumnFactory[T]) {

	b.Run("Commit", func(b *testing.B) {
		benchmarkCommit(b, newArray(b, factory))
	})

	b.Run("CommitBatch", func(b *testing.B) {
		benchmarkCommitBatch(b, newArray(b, factory))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, newArray(b, factory))
	})

	b.Run("ValueCount", func(b *testing.B) {
		benchmarkValueCount(b, newArray(b, factory))
	})

	b.Run("FindMatches", func(b *testing.B) {
		benchmarkFindMatches(b, newSet(b, factory))
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("ReadDuringCommit", func(b *testing.B) {
		benchmarkReadDuringCommit(b, newArray(b, factory))
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

const benchDocs = 10_000

// fill adds numDocs documents with 0..7 random values each and commits them
func fill[T attribute.Numeric](b *testing.B, col attribute.Column[T], numDocs int) {
	b.Helper()
	if _, err := col.AddDocs(uint32(numDocs)); err != nil {
		b.Fatalf("AddDocs failed: %v", err)
	}
	rng := rand.New(rand.NewSource(42))
	for doc := 0; doc < numDocs; doc++ {
		values := make([]attribute.Multivalue[T], rng.Intn(8))
		for i := range values {
			values[i] = attribute.Multivalue[T]{Value: T(rng.Intn(1000)), Weight: int32(rng.Intn(100))}
		}
		if err := col.ApplyChange(attribute.DocId(doc), values); err != nil {
			b.Fatalf("ApplyChange failed: %v", err)
		}
	}
	if err := col.Commit(); err != nil {
		b.Fatalf("Commit failed: %v", err)
	}
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for a commit with a single changed document
func benchmarkCommit[T attribute.Numeric](b *testing.B, col attribute.Column[T]) {

	b.Cleanup(func() {
		col.Close()
	})

	fill(b, col, benchDocs)
	values := list[T](1, 2, 3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = col.ApplyChange(attribute.DocId(i%benchDocs), values)
		_ = col.Commit()
	}
}

// Benchmark for a commit with 1000 changed documents
func benchmarkCommitBatch[T attribute.Numeric](b *testing.B, col attribute.Column[T]) {

	b.Cleanup(func() {
		col.Close()
	})

	fill(b, col, benchDocs)
	values := list[T](1, 2, 3, 4)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := 0; j < 1000; j++ {
			_ = col.ApplyChange(attribute.DocId((i*1000+j)%benchDocs), values)
		}
		_ = col.Commit()
	}
}

// Benchmark for copying the values of a document
func benchmarkGet[T attribute.Numeric](b *testing.B, col attribute.Column[T]) {

	b.Cleanup(func() {
		col.Close()
	})

	fill(b, col, benchDocs)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		var buf []attribute.Multivalue[T]
		counter := 0
		for pb.Next() {
			buf = col.Get(attribute.DocId(counter%benchDocs), buf)
			counter++
		}
	})
}

// Benchmark for ValueCount
func benchmarkValueCount[T attribute.Numeric](b *testing.B, col attribute.Column[T]) {

	b.Cleanup(func() {
		col.Close()
	})

	fill(b, col, benchDocs)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			col.ValueCount(attribute.DocId(counter % benchDocs))
			counter++
		}
	})
}

// Benchmark for a full scan with a range term
func benchmarkFindMatches[T attribute.Numeric](b *testing.B, col attribute.Column[T]) {

	b.Cleanup(func() {
		col.Close()
	})

	fill(b, col, benchDocs)

	hi := 200
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sc, err := col.NewSearchContext(attribute.Range(T(100), T(hi)))
		if err != nil {
			b.Fatalf("NewSearchContext failed: %v", err)
		}
		sc.FindMatches()
		sc.Close()
	}
}

// Benchmark for Save and Load in both formats
func benchmarkSaveLoad[T attribute.Numeric](b *testing.B, factory ColumnFactory[T]) {
	for _, format := range []attribute.PersistFormat{attribute.FormatRaw, attribute.FormatEnumerated} {
		configure := func(cfg *attribute.Config) {
			cfg.Format = format
			cfg.Compression = attribute.CompressionLZ4
		}

		src := newColumn(b, factory, attribute.Array, configure)
		fill(b, src, benchDocs)
		files := codec.NewMemFileSet(nil, nil)

		b.Run(format.String()+"/Save", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if err := src.Save(files); err != nil {
					b.Fatalf("Save failed: %v", err)
				}
			}
		})

		b.Run(format.String()+"/Load", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				dst := newColumn(b, factory, attribute.Array, configure)
				if err := dst.Load(files); err != nil {
					b.Fatalf("Load failed: %v", err)
				}
				dst.Close()
			}
		})

		src.Close()
	}
}

// Benchmark for readers while a writer commits continuously
func benchmarkReadDuringCommit[T attribute.Numeric](b *testing.B, col attribute.Column[T]) {

	b.Cleanup(func() {
		col.Close()
	})

	fill(b, col, benchDocs)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		values := list[T](7, 8)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = col.ApplyChange(attribute.DocId(i%benchDocs), values)
			_ = col.Commit()
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			guard := col.AcquireGuard()
			col.View(guard, attribute.DocId(counter%benchDocs))
			guard.Release()
			counter++
		}
	})
	b.StopTimer()

	close(stop)
	<-done
}
