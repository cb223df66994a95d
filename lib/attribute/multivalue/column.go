package multivalue

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/attribute/multivalue/internal"
	"github.com/ValentinKolb/mvattr/lib/attribute/mvmapping"
	"github.com/ValentinKolb/mvattr/lib/generation"
	"github.com/ValentinKolb/mvattr/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("attribute")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options tunes a column beyond its attribute.Config.
type Options struct {
	ChunkElems int // elements per pool chunk (0 = mvmapping.DefaultChunkElems)
}

// DefaultOptions returns the default column options
func DefaultOptions() *Options {
	return &Options{ChunkElems: mvmapping.DefaultChunkElems}
}

// --------------------------------------------------------------------------
// Core column structure
// --------------------------------------------------------------------------

// commitMark records the committed doc id limit and max value count of one generation.
// Marks form a chain from newest to oldest, like the value versions of the mapping.
type commitMark struct {
	gen           generation.Generation
	limit         uint32
	maxValueCount uint32
	prev          atomic.Pointer[commitMark]
}

// column is a numeric multi-value column. Readers access the mapping under guards and never
// lock; writer operations serialize on writeMu.
type column[T attribute.Numeric] struct {
	name    string
	cfg     attribute.Config
	opts    Options
	handler *generation.Handler
	mapping atomic.Pointer[mvmapping.Mapping[attribute.Multivalue[T]]]
	marks   atomic.Pointer[commitMark]

	writeMu sync.Mutex
	changes *internal.ChangeBuffer[T]
	closed  atomic.Bool

	numDocs         atomic.Uint32
	committedLimit  atomic.Uint32
	maxValueCount   atomic.Uint32
	createSerialNum atomic.Uint64

	commits          atomic.Uint64
	lastCommitNanos  atomic.Int64
	stats            atomic.Pointer[attribute.Statistics]
	metrics          *columnMetrics
	events           *util.EventQueue[internal.Event]
	refresherDone    chan struct{}
	refresherRunning atomic.Bool
}

// New creates an empty multi-value column with values of type T (opts are optional).
//
// Thread-safety: This function is thread-safe, the returned column follows the
// single writer / many readers model described in the package documentation.
func New[T attribute.Numeric](name string, cfg attribute.Config, opts *Options) (attribute.Column[T], error) {
	return newColumn[T](name, cfg, opts)
}

func newColumn[T attribute.Numeric](name string, cfg attribute.Config, opts *Options) (*column[T], error) {
	if err := attribute.Validate[T](cfg); err != nil {
		return nil, fmt.Errorf("creating column %q: %w", name, err)
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	c := &column[T]{
		name:    name,
		cfg:     cfg,
		opts:    *opts,
		handler: generation.NewHandler(),
		changes: internal.NewChangeBuffer[T](),
	}
	c.mapping.Store(c.newMapping())
	c.marks.Store(&commitMark{})
	c.stats.Store(&attribute.Statistics{})
	c.metrics = newColumnMetrics(c)

	if cfg.StatsInterval > 0 {
		c.startRefresher()
	}

	plog.Debugf("created column %s (%s)", name, cfg)
	return c, nil
}

func (c *column[T]) newMapping() *mvmapping.Mapping[attribute.Multivalue[T]] {
	return mvmapping.New[attribute.Multivalue[T]](c.handler, mvmapping.Options{
		ChunkElems:        c.opts.ChunkElems,
		MaxAllocatedBytes: c.cfg.MaxAllocatedBytes,
	})
}

func (c *column[T]) Name() string             { return c.name }
func (c *column[T]) Config() attribute.Config { return c.cfg }

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// AddDocs appends n empty documents. They become visible to readers with the next commit.
func (c *column[T]) AddDocs(n uint32) (attribute.DocId, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return 0, attribute.ErrClosed
	}

	first := c.numDocs.Load()
	if uint64(first)+uint64(n) >= uint64(^uint32(0)) {
		return 0, fmt.Errorf("adding %d docs to %d: %w", n, first, attribute.ErrResourceExhausted)
	}
	if err := c.mapping.Load().Reserve(first + n); err != nil {
		return 0, fmt.Errorf("adding %d docs to column %s: %w", n, c.name, err)
	}
	c.numDocs.Store(first + n)
	return first, nil
}

func (c *column[T]) NumDocs() uint32             { return c.numDocs.Load() }
func (c *column[T]) CommittedDocIdLimit() uint32 { return c.committedLimit.Load() }

// enqueue buffers a change after validating the document.
func (c *column[T]) enqueue(doc attribute.DocId, change internal.Change[T]) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return attribute.ErrClosed
	}
	if doc >= c.numDocs.Load() {
		return fmt.Errorf("doc %d in column %s with %d docs: %w", doc, c.name, c.numDocs.Load(), attribute.ErrDocIdOutOfRange)
	}
	c.changes.Add(doc, change)
	return nil
}

func (c *column[T]) ApplyChange(doc attribute.DocId, values []attribute.Multivalue[T]) error {
	return c.enqueue(doc, internal.Change[T]{Kind: internal.ChangeAssign, Values: slices.Clone(values)})
}

func (c *column[T]) Append(doc attribute.DocId, values []attribute.Multivalue[T]) error {
	return c.enqueue(doc, internal.Change[T]{Kind: internal.ChangeAppend, Values: slices.Clone(values)})
}

func (c *column[T]) Remove(doc attribute.DocId, values []T) error {
	return c.enqueue(doc, internal.Change[T]{Kind: internal.ChangeRemove, Remove: slices.Clone(values)})
}

func (c *column[T]) ClearDoc(doc attribute.DocId) error {
	return c.enqueue(doc, internal.Change[T]{Kind: internal.ChangeClear})
}

// Commit makes all buffered changes visible at once.
//
// All storage is prepared before anything is installed. If an allocation fails, everything
// prepared so far is discarded and the error is returned with the change buffer and the
// committed state untouched. Otherwise the new lists are installed, the committed doc id
// limit is published and the generation is advanced, which is the moment readers start to
// see the commit. Replaced storage is reclaimed once no guard can observe it anymore.
func (c *column[T]) Commit() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return attribute.ErrClosed
	}
	start := time.Now()
	m := c.mapping.Load()

	// phase 1: fold and prepare
	docs := c.changes.Docs()
	entries := make([]*mvmapping.Entry[attribute.Multivalue[T]], len(docs))
	maxCount := c.maxValueCount.Load()

	for i, doc := range docs {
		folded := internal.Fold(m.Latest(doc), c.changes.Changes(doc), c.cfg.Collection, c.cfg.DefaultWeight)
		e, err := m.Prepare(folded)
		if err != nil {
			for j := i - 1; j >= 0; j-- {
				m.Discard(entries[j])
			}
			c.metrics.commitFailures.Inc()
			return fmt.Errorf("commit of column %s: preparing doc %d: %w", c.name, doc, err)
		}
		entries[i] = e
		if n := uint32(len(folded)); n > maxCount {
			maxCount = n
		}
	}

	// phase 2: install and publish
	for i, doc := range docs {
		m.Install(doc, entries[i])
	}
	limit := c.numDocs.Load()
	c.pushMark(limit, maxCount)
	c.committedLimit.Store(limit)
	gen := c.handler.Advance()

	// phase 3: reclaim
	m.TransferHoldLists(gen - 1)
	firstUsed := c.handler.UpdateOldestUsedGeneration()
	m.TrimHoldLists(firstUsed)
	c.pruneMarks(firstUsed)

	changed := c.changes.Len()
	c.changes.Reset()
	c.maxValueCount.Store(maxCount)

	elapsed := time.Since(start)
	c.commits.Add(1)
	c.lastCommitNanos.Store(int64(elapsed))
	c.metrics.observeCommit(start, changed)

	if c.events != nil {
		c.events.Push(internal.Event{Type: internal.EventTCommit, Generation: uint64(gen), Docs: len(docs), Duration: elapsed})
	}
	return nil
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// AcquireGuard pins the current generation.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *column[T]) AcquireGuard() *generation.Guard {
	return c.handler.AcquireGuard()
}

// View returns the committed values of doc as observed by guard without copying.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *column[T]) View(guard *generation.Guard, doc attribute.DocId) []attribute.Multivalue[T] {
	if doc >= c.committedLimit.Load() {
		return nil
	}
	return c.mapping.Load().Get(guard, doc)
}

// ValueCount returns the number of committed values of doc, 0 for unknown documents.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *column[T]) ValueCount(doc attribute.DocId) uint32 {
	if doc >= c.committedLimit.Load() {
		return 0
	}
	guard := c.handler.AcquireGuard()
	defer guard.Release()
	return c.mapping.Load().ValueCount(guard, doc)
}

// Get copies the committed values of doc into buf.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *column[T]) Get(doc attribute.DocId, buf []attribute.Multivalue[T]) []attribute.Multivalue[T] {
	guard := c.handler.AcquireGuard()
	defer guard.Release()
	return append(buf[:0], c.View(guard, doc)...)
}

func (c *column[T]) MaxValueCount() uint32 { return c.maxValueCount.Load() }

// pushMark records limit and maxValueCount for the generation the next Advance creates.
// Writer-only.
func (c *column[T]) pushMark(limit, maxValueCount uint32) {
	mark := &commitMark{
		gen:           c.handler.CurrentGeneration() + 1,
		limit:         limit,
		maxValueCount: maxValueCount,
	}
	mark.prev.Store(c.marks.Load())
	c.marks.Store(mark)
}

// markAt returns the mark that was current at gen.
func (c *column[T]) markAt(gen generation.Generation) *commitMark {
	for mark := c.marks.Load(); mark != nil; mark = mark.prev.Load() {
		if mark.gen <= gen {
			return mark
		}
	}
	return &commitMark{}
}

// pruneMarks cuts the chain below the mark current at firstUsed. Writer-only.
func (c *column[T]) pruneMarks(firstUsed generation.Generation) {
	for mark := c.marks.Load(); mark != nil; mark = mark.prev.Load() {
		if mark.gen <= firstUsed {
			mark.prev.Store(nil)
			return
		}
	}
}

func (c *column[T]) TotalValueCount() uint64 { return c.mapping.Load().TotalValueCount() }

func (c *column[T]) CurrentGeneration() generation.Generation { return c.handler.CurrentGeneration() }

func (c *column[T]) CreateSerialNum() uint64 { return c.createSerialNum.Load() }

func (c *column[T]) SetCreateSerialNum(serial uint64) { c.createSerialNum.Store(serial) }

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// UpdateStatistics recomputes the column report. The figures come from independent
// counters and are eventually consistent while the writer is active.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *column[T]) UpdateStatistics() attribute.Statistics {
	m := c.mapping.Load()
	stats := attribute.Statistics{
		MemoryUsage:          m.MemoryUsage(),
		NumDocs:              c.numDocs.Load(),
		CommittedDocIdLimit:  c.committedLimit.Load(),
		TotalValueCount:      m.TotalValueCount(),
		MaxValueCount:        c.maxValueCount.Load(),
		Generation:           uint64(c.handler.CurrentGeneration()),
		OldestUsedGeneration: uint64(c.handler.OldestUsedGeneration()),
		Commits:              c.commits.Load(),
		LastCommitDuration:   time.Duration(c.lastCommitNanos.Load()),
		UpdatedAt:            time.Now(),
	}
	c.stats.Store(&stats)
	return stats
}

// lastStatistics returns the report of the last UpdateStatistics call.
func (c *column[T]) lastStatistics() *attribute.Statistics {
	return c.stats.Load()
}

// --------------------------------------------------------------------------
// Teardown
// --------------------------------------------------------------------------

// Close stops the statistics goroutine and frees all held storage. Readers must be gone.
func (c *column[T]) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.stopRefresher()

	if c.handler.HasReaders() {
		plog.Warningf("closing column %s while guards are still alive", c.name)
	}

	m := c.mapping.Load()
	if held := m.ClearHoldLists(); held > 0 {
		plog.Debugf("closing column %s: freed %d held entries", c.name, held)
	}
	c.metrics.close()
	return nil
}
