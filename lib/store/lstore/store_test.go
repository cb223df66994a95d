package lstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/common"
	"github.com/ValentinKolb/mvattr/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.IStore {
	t.Helper()
	cfg := common.DefaultStoreConfig()
	cfg.Concurrency = 2
	cfg.RetryBaseDelay = time.Millisecond
	s := NewLocalStore(cfg, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func requireCode(t *testing.T, err error, code store.RetCode) {
	t.Helper()
	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, code, storeErr.Code, storeErr.Error())
}

func TestCreateAndLookup(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateColumn("b", attribute.NewConfig(attribute.TypeInt32, attribute.Array))
	require.NoError(t, err)
	_, err = s.CreateColumn("a", attribute.NewConfig(attribute.TypeFloat64, attribute.WeightedSet))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, s.Names())

	_, err = s.CreateColumn("a", attribute.NewConfig(attribute.TypeFloat64, attribute.WeightedSet))
	requireCode(t, err, store.RetCAlreadyExists)

	_, err = s.CreateColumn("../x", attribute.NewConfig(attribute.TypeInt8, attribute.Array))
	requireCode(t, err, store.RetCInvalidOperation)

	_, err = s.CreateColumn("c", attribute.NewConfig(attribute.TypeUnknown, attribute.Array))
	requireCode(t, err, store.RetCTypeMismatch)
	assert.ErrorIs(t, err, attribute.ErrConfigMismatch)

	_, err = s.Column("missing")
	requireCode(t, err, store.RetCNotFound)

	col, err := s.Column("b")
	require.NoError(t, err)
	assert.Equal(t, "b", col.Name())
}

func TestTyped(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateColumn("tags", attribute.NewConfig(attribute.TypeInt32, attribute.Array))
	require.NoError(t, err)

	tags, err := store.Typed[int32](s, "tags")
	require.NoError(t, err)
	_, err = tags.AddDocs(1)
	require.NoError(t, err)

	_, err = store.Typed[int64](s, "tags")
	requireCode(t, err, store.RetCTypeMismatch)
	assert.ErrorIs(t, err, attribute.ErrConfigMismatch)

	_, err = store.Typed[int32](s, "nope")
	requireCode(t, err, store.RetCNotFound)
}

func TestDropColumn(t *testing.T) {
	s := newTestStore(t)
	col, err := s.CreateColumn("tags", attribute.NewConfig(attribute.TypeInt16, attribute.Array))
	require.NoError(t, err)

	require.NoError(t, s.DropColumn("tags"))
	assert.Empty(t, s.Names())
	requireCode(t, s.DropColumn("tags"), store.RetCNotFound)

	// the dropped column was closed
	assert.ErrorIs(t, col.Commit(), attribute.ErrClosed)
}

func fillColumn(t *testing.T, s store.IStore, name string, cfg attribute.Config) {
	t.Helper()
	_, err := s.CreateColumn(name, cfg)
	require.NoError(t, err)
	col, err := store.Typed[int64](s, name)
	require.NoError(t, err)

	_, err = col.AddDocs(3)
	require.NoError(t, err)
	require.NoError(t, col.ApplyChange(0, []attribute.Multivalue[int64]{{Value: 10, Weight: 1}}))
	require.NoError(t, col.ApplyChange(2, []attribute.Multivalue[int64]{{Value: 20, Weight: 4}, {Value: -3, Weight: 5}}))
	require.NoError(t, col.Commit())
}

func TestSaveAllLoadAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshot")
	ctx := context.Background()

	src := newTestStore(t)
	fillColumn(t, src, "raw", attribute.NewConfig(attribute.TypeInt64, attribute.Array))
	enum := attribute.NewConfig(attribute.TypeInt64, attribute.WeightedSet)
	enum.Format = attribute.FormatEnumerated
	enum.Compression = attribute.CompressionLZ4
	fillColumn(t, src, "enum", enum)

	require.NoError(t, src.SaveAll(ctx, dir))

	for _, file := range []string{"raw.dat", "enum.dat", "enum.udat"} {
		_, err := os.Stat(filepath.Join(dir, file))
		require.NoError(t, err, file)
	}

	dst := newTestStore(t)
	require.NoError(t, dst.LoadAll(ctx, dir))
	assert.Equal(t, []string{"enum", "raw"}, dst.Names())

	for _, name := range dst.Names() {
		want, err := store.Typed[int64](src, name)
		require.NoError(t, err)
		got, err := store.Typed[int64](dst, name)
		require.NoError(t, err)

		assert.Equal(t, want.Config().Collection, got.Config().Collection)
		assert.Equal(t, want.Config().Format, got.Config().Format)
		assert.Equal(t, want.Config().Compression, got.Config().Compression)
		for doc := attribute.DocId(0); doc < 3; doc++ {
			assert.Equal(t, want.Get(doc, nil), got.Get(doc, nil), "%s doc %d", name, doc)
		}
	}

	stats := dst.Statistics()
	assert.Equal(t, uint64(3), stats["raw"].TotalValueCount)
	assert.Equal(t, uint32(3), stats["enum"].CommittedDocIdLimit)

	var buf bytes.Buffer
	dst.WritePrometheus(&buf)
	assert.Contains(t, buf.String(), `mvattr_column_docs{column="enum"} 3`)
	assert.Contains(t, buf.String(), `mvattr_column_docs{column="raw"} 3`)
}

func TestLoadAllCorruptFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	src := newTestStore(t)
	fillColumn(t, src, "good", attribute.NewConfig(attribute.TypeInt64, attribute.Array))
	fillColumn(t, src, "bad", attribute.NewConfig(attribute.TypeInt64, attribute.Array))
	require.NoError(t, src.SaveAll(ctx, dir))

	path := filepath.Join(dir, "bad.dat")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0o644))

	dst := newTestStore(t)
	err = dst.LoadAll(ctx, dir)
	requireCode(t, err, store.RetCCorruption)
	assert.ErrorIs(t, err, attribute.ErrCorruption)

	// the column created for the corrupt file is gone again
	_, err = dst.Column("bad")
	requireCode(t, err, store.RetCNotFound)
}

func TestLoadAllIntoExistingColumn(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	src := newTestStore(t)
	fillColumn(t, src, "tags", attribute.NewConfig(attribute.TypeInt64, attribute.Array))
	require.NoError(t, src.SaveAll(ctx, dir))

	// an existing, non-empty column refuses the load
	requireCode(t, src.LoadAll(ctx, dir), store.RetCInvalidOperation)

	// an existing column with another collection type refuses the file
	dst := newTestStore(t)
	_, err := dst.CreateColumn("tags", attribute.NewConfig(attribute.TypeInt64, attribute.WeightedSet))
	require.NoError(t, err)
	requireCode(t, dst.LoadAll(ctx, dir), store.RetCTypeMismatch)
}

func TestRetCodeErrorCode(t *testing.T) {
	assert.Equal(t, uint32(0), store.RetCSuccess.ErrorCode())
	assert.Less(t, store.RetCInternalError.ErrorCode(), uint32(200000))
	assert.Less(t, store.RetCResourceExhausted.ErrorCode(), uint32(200000))
	assert.GreaterOrEqual(t, store.RetCCorruption.ErrorCode(), uint32(200000))
	assert.GreaterOrEqual(t, store.RetCTypeMismatch.ErrorCode(), uint32(200000))

	assert.Equal(t, store.RetCClosed, store.CodeOf(attribute.ErrClosed))
	assert.Equal(t, store.RetCInternalError, store.CodeOf(errors.New("disk on fire")))
}

func TestClose(t *testing.T) {
	s := NewLocalStore(common.DefaultStoreConfig(), nil)
	col, err := s.CreateColumn("tags", attribute.NewConfig(attribute.TypeInt32, attribute.Array))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Empty(t, s.Names())
	assert.ErrorIs(t, col.Commit(), attribute.ErrClosed)

	_, err = s.CreateColumn("other", attribute.NewConfig(attribute.TypeInt32, attribute.Array))
	requireCode(t, err, store.RetCClosed)
	requireCode(t, s.SaveAll(context.Background(), t.TempDir()), store.RetCClosed)
}
