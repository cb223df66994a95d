package column

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [dir] [name]",
	Short: "Print the value lists of a persisted column",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, _, err := openColumn(args[0], args[1])
		if err != nil {
			return err
		}
		defer col.Close()

		from := viper.GetUint32("from")
		count := viper.GetUint32("count")

		w := bufio.NewWriter(os.Stdout)
		defer w.Flush()

		switch c := col.(type) {
		case attribute.Column[int8]:
			return dumpDocs(w, c, from, count)
		case attribute.Column[int16]:
			return dumpDocs(w, c, from, count)
		case attribute.Column[int32]:
			return dumpDocs(w, c, from, count)
		case attribute.Column[int64]:
			return dumpDocs(w, c, from, count)
		case attribute.Column[float32]:
			return dumpDocs(w, c, from, count)
		case attribute.Column[float64]:
			return dumpDocs(w, c, from, count)
		default:
			return fmt.Errorf("column %s has unsupported type %s: %w", col.Name(), col.Config().Type, attribute.ErrConfigMismatch)
		}
	},
}

func init() {
	key := "from"
	dumpCmd.Flags().Uint32(key, 0, "First document to print")
	key = "count"
	dumpCmd.Flags().Uint32(key, 0, "Number of documents to print (0 = all)")
}

// dumpDocs writes one line per document: "<doc>: [value:weight ...]".
// Weights are only printed for weighted sets.
func dumpDocs[T attribute.Numeric](w io.Writer, col attribute.Column[T], from, count uint32) error {
	limit := col.CommittedDocIdLimit()
	end := limit
	if count > 0 && uint64(from)+uint64(count) < uint64(limit) {
		end = from + count
	}
	weighted := col.Config().Weighted()

	guard := col.AcquireGuard()
	defer guard.Release()

	var sb strings.Builder
	for doc := from; doc < end; doc++ {
		sb.Reset()
		sb.WriteString(fmt.Sprintf("%d: [", doc))
		for i, mv := range col.View(guard, doc) {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if weighted {
				sb.WriteString(mv.String())
			} else {
				sb.WriteString(fmt.Sprintf("%v", mv.Value))
			}
		}
		sb.WriteString("]\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
