package column

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ValentinKolb/mvattr/lib/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [dir] [name]",
	Short: "Print header, statistics and the value count histogram of a persisted column",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, h, err := openColumn(args[0], args[1])
		if err != nil {
			return err
		}
		defer col.Close()

		stats := col.UpdateStatistics()
		var sb strings.Builder

		addSection := func(title string) {
			sb.WriteString("\n")
			sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
		}
		addField := func(name string, value any) {
			sb.WriteString(fmt.Sprintf("  %-22s: %v\n", name, value))
		}

		addSection("Header")
		addField("Version", h.Version)
		addField("Value Type", h.Type)
		addField("Collection", h.Collection)
		addField("Format", h.Format())
		addField("Compression", h.Compression)
		addField("Documents", h.NumDocs)
		addField("Values", h.TotalValueCount)
		addField("Max Value Count", h.MaxValueCount)
		addField("Dictionary Entries", h.DictionaryCount)
		addField("Create Serial Num", h.CreateSerialNum)

		addSection("Memory")
		addField("Allocated", fmt.Sprintf("%d bytes", stats.AllocatedBytes))
		addField("Used", fmt.Sprintf("%d bytes", stats.UsedBytes))
		addField("Dead", fmt.Sprintf("%d bytes", stats.DeadBytes))
		addField("On Hold", fmt.Sprintf("%d bytes", stats.AllocatedBytesOnHold))

		// value counts per document
		hist := util.NewValueCountHistogram()
		counts := make([]float64, 0, stats.CommittedDocIdLimit)
		for doc := uint32(0); doc < stats.CommittedDocIdLimit; doc++ {
			n := col.ValueCount(doc)
			hist.AddSample(n)
			counts = append(counts, float64(n))
		}
		dist := util.NewDistributionStats(counts)

		addSection("Value Counts")
		addField("Average", fmt.Sprintf("%.2f", hist.Average()))
		addField("Std Deviation", fmt.Sprintf("%.2f", dist.StdDeviation))
		addField("Max", hist.Max())
		addField("P50", hist.PercentileEstimate(50))
		addField("P99", hist.PercentileEstimate(99))
		addField("Evenness", fmt.Sprintf("%.2f", dist.DistributionQuality))

		addSection("Histogram")
		distribution := hist.Distribution()
		buckets := make([]int, 0, len(distribution))
		for b := range distribution {
			buckets = append(buckets, b)
		}
		sort.Ints(buckets)
		for _, b := range buckets {
			lo, hi := util.BucketBounds(b)
			label := fmt.Sprintf("%d", lo)
			if hi > lo {
				label = fmt.Sprintf("%d-%d", lo, hi)
			}
			share := distribution[b]
			addField(label, fmt.Sprintf("%6.2f%% %s", share, strings.Repeat("#", int(share/2))))
		}

		fmt.Print(sb.String())

		if viper.GetBool("metrics") {
			fmt.Println()
			col.WritePrometheus(os.Stdout)
		}
		return nil
	},
}

func init() {
	key := "metrics"
	inspectCmd.Flags().Bool(key, false, "Print the column metrics in Prometheus text format")
}
