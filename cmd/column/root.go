package column

import (
	"fmt"

	"github.com/ValentinKolb/mvattr/cmd/util"
	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/attribute/codec"
	"github.com/ValentinKolb/mvattr/lib/store/lstore"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
)

var plog = logger.GetLogger("cli")

// Commands lists the column commands, they are added to the root command
var Commands = []*cobra.Command{
	inspectCmd,
	dumpCmd,
	convertCmd,
	perfTestCmd,
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// openColumn loads the column file pair <dir>/<name> into a new column.
// Value type, collection type, format and compression come from the file header,
// everything else from the store configuration.
func openColumn(dir, name string) (attribute.IAttribute, codec.Header, error) {
	files := codec.NewDirFileSet(dir, name)
	h, err := files.Header()
	if err != nil {
		return nil, h, fmt.Errorf("reading header of %s: %w", files.DataPath(), err)
	}

	conf, err := util.GetStoreConfig()
	if err != nil {
		return nil, h, err
	}
	cfg := conf.ColumnConfig(h.Type, h.Collection)
	cfg.Format = h.Format()
	cfg.Compression = h.Compression

	col, err := lstore.DefaultColumnFactory(name, cfg)
	if err != nil {
		return nil, h, err
	}
	if err := col.Load(files); err != nil {
		_ = col.Close()
		return nil, h, err
	}
	plog.Debugf("opened column %s from %s", name, dir)
	return col, h, nil
}
