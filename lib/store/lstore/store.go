package lstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/attribute/codec"
	"github.com/ValentinKolb/mvattr/lib/attribute/multivalue"
	"github.com/ValentinKolb/mvattr/lib/common"
	"github.com/ValentinKolb/mvattr/lib/retry"
	"github.com/ValentinKolb/mvattr/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var plog = logger.GetLogger("store")

type storeImpl struct {
	cfg     common.StoreConfig
	factory store.ColumnFactory
	policy  retry.IRetryPolicy
	columns *xsync.MapOf[string, attribute.IAttribute]
	closed  atomic.Bool
}

// NewLocalStore creates a new local store instance.
// The factory creates the columns, if it is nil DefaultColumnFactory is used.
func NewLocalStore(cfg common.StoreConfig, factory store.ColumnFactory) store.IStore {
	if factory == nil {
		factory = DefaultColumnFactory
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &storeImpl{
		cfg:     cfg,
		factory: factory,
		policy:  &retry.TransientErrorsPolicy{Enabled: cfg.RetryAttempts > 1, BaseDelay: cfg.RetryBaseDelay},
		columns: xsync.NewMapOf[string, attribute.IAttribute](),
	}
}

// DefaultColumnFactory creates a multivalue column for the value type in cfg.
func DefaultColumnFactory(name string, cfg attribute.Config) (attribute.IAttribute, error) {
	switch cfg.Type {
	case attribute.TypeInt8:
		return multivalue.New[int8](name, cfg, nil)
	case attribute.TypeInt16:
		return multivalue.New[int16](name, cfg, nil)
	case attribute.TypeInt32:
		return multivalue.New[int32](name, cfg, nil)
	case attribute.TypeInt64:
		return multivalue.New[int64](name, cfg, nil)
	case attribute.TypeFloat32:
		return multivalue.New[float32](name, cfg, nil)
	case attribute.TypeFloat64:
		return multivalue.New[float64](name, cfg, nil)
	default:
		return nil, fmt.Errorf("column %s with basic type %s: %w", name, cfg.Type, attribute.ErrConfigMismatch)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) CreateColumn(name string, cfg attribute.Config) (attribute.IAttribute, error) {
	if s.closed.Load() {
		return nil, store.NewError(store.RetCClosed, "store is closed", attribute.ErrClosed)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	col, err := s.factory(name, cfg)
	if err != nil {
		return nil, store.Wrap(fmt.Sprintf("creating column %s", name), err)
	}
	if _, loaded := s.columns.LoadOrStore(name, col); loaded {
		_ = col.Close()
		return nil, store.NewError(store.RetCAlreadyExists, fmt.Sprintf("column %s already exists", name), nil)
	}

	plog.Debugf("created column %s (%s)", name, cfg)
	return col, nil
}

func (s *storeImpl) Column(name string) (attribute.IAttribute, error) {
	col, ok := s.columns.Load(name)
	if !ok {
		return nil, store.NewError(store.RetCNotFound, fmt.Sprintf("column %s not found", name), nil)
	}
	return col, nil
}

func (s *storeImpl) DropColumn(name string) error {
	col, ok := s.columns.LoadAndDelete(name)
	if !ok {
		return store.NewError(store.RetCNotFound, fmt.Sprintf("column %s not found", name), nil)
	}
	if err := col.Close(); err != nil {
		return store.Wrap(fmt.Sprintf("closing column %s", name), err)
	}
	plog.Debugf("dropped column %s", name)
	return nil
}

func (s *storeImpl) Names() []string {
	names := make([]string, 0, s.columns.Size())
	s.columns.Range(func(name string, _ attribute.IAttribute) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

func (s *storeImpl) SaveAll(ctx context.Context, dir string) error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed", attribute.ErrClosed)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("creating directory %s", dir), err)
	}
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	names := s.Names()
	for _, name := range names {
		col, ok := s.columns.Load(name)
		if !ok {
			continue // dropped concurrently
		}
		g.Go(func() error {
			err := s.withRetry(ctx, func() error {
				return col.Save(codec.NewDirFileSet(dir, name))
			})
			return store.Wrap(fmt.Sprintf("saving column %s", name), err)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	plog.Infof("saved %d columns to %s in %v", len(names), dir, time.Since(start))
	return nil
}

func (s *storeImpl) LoadAll(ctx context.Context, dir string) error {
	if s.closed.Load() {
		return store.NewError(store.RetCClosed, "store is closed", attribute.ErrClosed)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("reading directory %s", dir), err)
	}
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), codec.DataSuffix) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), codec.DataSuffix)
		files := codec.NewDirFileSet(dir, name)
		loaded++

		g.Go(func() error {
			return s.loadColumn(ctx, name, files)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	plog.Infof("loaded %d columns from %s in %v", loaded, dir, time.Since(start))
	return nil
}

// loadColumn loads one file pair. Missing columns are created from the file header and
// dropped again if the load fails.
func (s *storeImpl) loadColumn(ctx context.Context, name string, files codec.DirFileSet) error {
	col, ok := s.columns.Load(name)
	created := false
	if !ok {
		h, err := files.Header()
		if err != nil {
			return store.Wrap(fmt.Sprintf("reading header of column %s", name), err)
		}
		cfg := s.cfg.ColumnConfig(h.Type, h.Collection)
		cfg.Format = h.Format()
		cfg.Compression = h.Compression

		col, err = s.CreateColumn(name, cfg)
		if err != nil {
			return err
		}
		created = true
	}

	err := s.withRetry(ctx, func() error {
		return col.Load(files)
	})
	if err != nil {
		if created {
			_ = s.DropColumn(name)
		}
		return store.Wrap(fmt.Sprintf("loading column %s", name), err)
	}
	return nil
}

func (s *storeImpl) Statistics() map[string]attribute.Statistics {
	stats := make(map[string]attribute.Statistics, s.columns.Size())
	s.columns.Range(func(name string, col attribute.IAttribute) bool {
		stats[name] = col.UpdateStatistics()
		return true
	})
	return stats
}

func (s *storeImpl) WritePrometheus(w io.Writer) {
	for _, name := range s.Names() {
		if col, ok := s.columns.Load(name); ok {
			col.WritePrometheus(w)
		}
	}
}

func (s *storeImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	var total attribute.MemoryUsage
	s.columns.Range(func(name string, col attribute.IAttribute) bool {
		total.Merge(col.UpdateStatistics().MemoryUsage)
		if err := col.Close(); err != nil {
			errs = append(errs, store.Wrap(fmt.Sprintf("closing column %s", name), err))
		}
		s.columns.Delete(name)
		return true
	})

	plog.Infof("closed store, released %d allocated bytes", total.AllocatedBytes)
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// withRetry runs fn with the retry policy of the store
func (s *storeImpl) withRetry(ctx context.Context, fn func() error) error {
	attempts := uint32(max(s.cfg.RetryAttempts, 1))
	return retry.Do(ctx, s.policy, attempts, func(err error) uint32 {
		return store.CodeOf(err).ErrorCode()
	}, func() error {
		if err := ctx.Err(); err != nil {
			return store.NewError(store.RetCInternalError, "canceled", err)
		}
		return fn()
	})
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("invalid column name %q", name), attribute.ErrInvalidOperation)
	}
	return nil
}
