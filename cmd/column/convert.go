package column

import (
	"fmt"
	"slices"
	"time"

	"github.com/ValentinKolb/mvattr/cmd/util"
	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/attribute/codec"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert [dir] [name] [out-dir]",
	Short: "Rewrite a persisted column with another format or compression",
	Long: util.WrapString(`Rewrite a persisted column with the format and compression given by --format and --compression.
The converted file pair is written to out-dir under the same name.`),
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := codec.NewDirFileSet(args[0], args[1])
		out := codec.NewDirFileSet(args[2], args[1])
		if in.DataPath() == out.DataPath() {
			return fmt.Errorf("out-dir must differ from dir: %w", attribute.ErrInvalidOperation)
		}

		h, err := in.Header()
		if err != nil {
			return fmt.Errorf("reading header of %s: %w", in.DataPath(), err)
		}
		conf, err := util.GetStoreConfig()
		if err != nil {
			return err
		}

		cfgIn := conf.ColumnConfig(h.Type, h.Collection)
		cfgIn.Format = h.Format()
		cfgIn.Compression = h.Compression

		cfgOut := conf.ColumnConfig(h.Type, h.Collection)

		start := time.Now()
		var written codec.Header
		switch h.Type {
		case attribute.TypeInt8:
			written, err = convertFiles[int8](in, out, cfgIn, cfgOut)
		case attribute.TypeInt16:
			written, err = convertFiles[int16](in, out, cfgIn, cfgOut)
		case attribute.TypeInt32:
			written, err = convertFiles[int32](in, out, cfgIn, cfgOut)
		case attribute.TypeInt64:
			written, err = convertFiles[int64](in, out, cfgIn, cfgOut)
		case attribute.TypeFloat32:
			written, err = convertFiles[float32](in, out, cfgIn, cfgOut)
		case attribute.TypeFloat64:
			written, err = convertFiles[float64](in, out, cfgIn, cfgOut)
		default:
			return fmt.Errorf("unsupported basic type %s: %w", h.Type, attribute.ErrConfigMismatch)
		}
		if err != nil {
			return err
		}

		fmt.Printf("converted %s (%s/%s) -> %s (%s/%s) in %v\n",
			in.DataPath(), h.Format(), h.Compression,
			out.DataPath(), written.Format(), written.Compression, time.Since(start))
		return nil
	},
}

// convertFiles decodes the input file pair completely and encodes it again with cfgOut.
func convertFiles[T attribute.Numeric](in, out codec.DirFileSet, cfgIn, cfgOut attribute.Config) (codec.Header, error) {
	var lists [][]attribute.Multivalue[T]
	h, err := codec.Load[T](in, cfgIn, func(doc uint32, values []attribute.Multivalue[T]) error {
		lists = append(lists, slices.Clone(values))
		return nil
	})
	if err != nil {
		return codec.Header{}, fmt.Errorf("loading %s: %w", in.DataPath(), err)
	}

	written, err := codec.Save(out, cfgOut, codec.Snapshot[T]{
		NumDocs:         h.NumDocs,
		MaxValueCount:   h.MaxValueCount,
		CreateSerialNum: h.CreateSerialNum,
		Get: func(doc uint32) []attribute.Multivalue[T] {
			return lists[doc]
		},
	})
	if err != nil {
		return codec.Header{}, fmt.Errorf("saving %s: %w", out.DataPath(), err)
	}
	return written, nil
}
