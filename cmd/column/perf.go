package column

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/mvattr/cmd/util"
	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/common"
	"github.com/ValentinKolb/mvattr/lib/store"
	"github.com/ValentinKolb/mvattr/lib/store/lstore"
	libutil "github.com/ValentinKolb/mvattr/lib/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for in-memory columns",
		Long:    util.WrapString("Runs commit, read, search and persistence benchmarks against an int32 column held in a local store. The store flags (format, compression, max-memory, ...) apply."),
		Args:    cobra.NoArgs,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfNumDocs    = 100_000
	perfSkip       = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. save,load)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of reader threads to use for the benchmark"))
	key = "docs"
	perfTestCmd.Flags().Int(key, 100_000, util.WrapString("Number of documents in the benchmark column"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumDocs = viper.GetInt("docs")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfNumDocs <= 0 || perfNumThreads <= 0 {
		return fmt.Errorf("docs and threads must be positive")
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	conf, err := util.GetStoreConfig()
	if err != nil {
		return err
	}
	// the benchmarks commit far more often than a refresher could keep up with
	conf.StatsInterval = 0

	fmt.Println("Performance testing tool for in-memory columns")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Documents: %d\n", perfNumDocs)
	fmt.Println()

	dir, err := os.MkdirTemp("", "mvattr-perf-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	s := lstore.NewLocalStore(conf, nil)
	defer s.Close()

	arrays, err := createPerfColumn(s, "perf-array", conf.ColumnConfig(attribute.TypeInt32, attribute.Array))
	if err != nil {
		return err
	}
	sets, err := createPerfColumn(s, "perf-set", conf.ColumnConfig(attribute.TypeInt32, attribute.WeightedSet))
	if err != nil {
		return err
	}

	fmt.Println("staring tests...")

	results := make(map[string]testing.BenchmarkResult)
	record := func(test string, result testing.BenchmarkResult) {
		results[test] = result
		printResult(test, result)
	}

	record("commit", testing.Benchmark(func(b *testing.B) {
		if shouldSkip("commit") {
			return
		}
		values := perfValues(3)

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := arrays.ApplyChange(attribute.DocId(i%perfNumDocs), values); err != nil {
				plog.Warningf("(commit) - error applying change: %v", err)
			}
			if err := arrays.Commit(); err != nil {
				plog.Warningf("(commit) - error committing: %v", err)
			}
		}
	}))

	record("commit-batch", testing.Benchmark(func(b *testing.B) {
		if shouldSkip("commit-batch") {
			return
		}
		values := perfValues(4)

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			for j := 0; j < 1000; j++ {
				_ = arrays.ApplyChange(attribute.DocId((i*1000+j)%perfNumDocs), values)
			}
			if err := arrays.Commit(); err != nil {
				plog.Warningf("(commit-batch) - error committing: %v", err)
			}
		}
	}))

	record("get", testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get") {
			return
		}
		b.SetParallelism(perfNumThreads)

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			var buf []attribute.Multivalue[int32]
			counter := 0
			for pb.Next() {
				buf = arrays.Get(attribute.DocId(counter%perfNumDocs), buf)
				counter++
			}
		})
	}))

	record("value-count", testing.Benchmark(func(b *testing.B) {
		if shouldSkip("value-count") {
			return
		}
		b.SetParallelism(perfNumThreads)

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				_ = arrays.ValueCount(attribute.DocId(counter % perfNumDocs))
				counter++
			}
		})
	}))

	record("search", testing.Benchmark(func(b *testing.B) {
		if shouldSkip("search") {
			return
		}
		b.SetParallelism(perfNumThreads)

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				lo := int32(counter % 900)
				sc, err := sets.NewSearchContext(attribute.Range[int32](lo, lo+100))
				if err != nil {
					plog.Warningf("(search) - error creating search context: %v", err)
					continue
				}
				_ = sc.FindMatches()
				sc.Close()
				counter++
			}
		})
	}))

	var readerOps []float64
	record("read-during-commit", testing.Benchmark(func(b *testing.B) {
		if shouldSkip("read-during-commit") {
			return
		}
		values := perfValues(2)

		var (
			wg   sync.WaitGroup
			stop atomic.Bool
		)
		ops := make([]int64, perfNumThreads)
		wg.Add(perfNumThreads)
		for r := 0; r < perfNumThreads; r++ {
			go func(r int) {
				defer wg.Done()
				var buf []attribute.Multivalue[int32]
				for doc := r; !stop.Load(); doc++ {
					buf = arrays.Get(attribute.DocId(doc%perfNumDocs), buf)
					ops[r]++
				}
			}(r)
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = arrays.ApplyChange(attribute.DocId(i%perfNumDocs), values)
			if err := arrays.Commit(); err != nil {
				plog.Warningf("(read-during-commit) - error committing: %v", err)
			}
		}
		b.StopTimer()
		stop.Store(true)
		wg.Wait()

		readerOps = readerOps[:0]
		for _, n := range ops {
			readerOps = append(readerOps, float64(n))
		}
	}))
	if len(readerOps) > 0 {
		dist := libutil.NewDistributionStats(readerOps)
		fmt.Printf("%-20sreader ops mean %.0f, min %.0f, max %.0f, evenness %.2f\n",
			"", dist.Mean, dist.Min, dist.Max, dist.DistributionQuality)
	}

	record("save", testing.Benchmark(func(b *testing.B) {
		if shouldSkip("save") {
			return
		}
		for i := 0; i < b.N; i++ {
			if err := s.SaveAll(context.Background(), dir); err != nil {
				plog.Warningf("(save) - error saving: %v", err)
			}
		}
	}))

	record("load", testing.Benchmark(func(b *testing.B) {
		if shouldSkip("load") {
			return
		}
		if err := s.SaveAll(context.Background(), dir); err != nil {
			b.Fatalf("(load) - error saving: %v", err)
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			target := lstore.NewLocalStore(conf, nil)
			if err := target.LoadAll(context.Background(), dir); err != nil {
				plog.Warningf("(load) - error loading: %v", err)
			}
			b.StopTimer()
			_ = target.Close()
			b.StartTimer()
		}
	}))

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, conf); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// createPerfColumn creates an int32 column with perfNumDocs documents holding 0..7 random values each
func createPerfColumn(s store.IStore, name string, cfg attribute.Config) (attribute.Column[int32], error) {
	if _, err := s.CreateColumn(name, cfg); err != nil {
		return nil, err
	}
	col, err := store.Typed[int32](s, name)
	if err != nil {
		return nil, err
	}
	if _, err := col.AddDocs(uint32(perfNumDocs)); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(42))
	for doc := 0; doc < perfNumDocs; doc++ {
		values := make([]attribute.Multivalue[int32], rng.Intn(8))
		for i := range values {
			values[i] = attribute.Multivalue[int32]{Value: int32(rng.Intn(1000)), Weight: int32(rng.Intn(100))}
		}
		if err := col.ApplyChange(attribute.DocId(doc), values); err != nil {
			return nil, err
		}
	}
	if err := col.Commit(); err != nil {
		return nil, err
	}
	return col, nil
}

func perfValues(n int) []attribute.Multivalue[int32] {
	values := make([]attribute.Multivalue[int32], n)
	for i := range values {
		values[i] = attribute.Multivalue[int32]{Value: int32(i + 1), Weight: 1}
	}
	return values
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, conf common.StoreConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Format", "Compression", "MaxAllocatedBytes",
		"Threads", "Docs",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	slices.Sort(tests)

	for _, test := range tests {
		result := results[test]
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			conf.Format.String(),
			conf.Compression.String(),
			strconv.FormatUint(conf.MaxAllocatedBytes, 10),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfNumDocs),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
