package multivalue

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/attribute/codec"
	"github.com/ValentinKolb/mvattr/lib/attribute/multivalue/internal"
	"github.com/ValentinKolb/mvattr/lib/generation"
)

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the committed state in the configured format.
// The guard is taken first and the doc id limit and max value count recorded for its
// generation are written, so the file holds exactly the documents of that generation
// even while the writer keeps committing. The create serial number is read when the
// save starts.
//
// Thread-safety: This method can run concurrently with readers and the writer.
func (c *column[T]) Save(target attribute.SaveTarget) error {
	if c.closed.Load() {
		return attribute.ErrClosed
	}
	start := time.Now()

	guard := c.handler.AcquireGuard()
	defer guard.Release()

	h, err := codec.Save(target, c.cfg, c.snapshot(guard))
	if err != nil {
		return fmt.Errorf("saving column %s: %w", c.name, err)
	}

	plog.Infof("saved column %s at generation %d: %d docs, %d values, format %s, took %v",
		c.name, guard.Generation(), h.NumDocs, h.TotalValueCount, h.Format(), time.Since(start))
	return nil
}

// snapshot returns the committed state observed by guard.
func (c *column[T]) snapshot(guard *generation.Guard) codec.Snapshot[T] {
	mark := c.markAt(guard.Generation())
	m := c.mapping.Load()
	return codec.Snapshot[T]{
		NumDocs:         mark.limit,
		MaxValueCount:   mark.maxValueCount,
		CreateSerialNum: c.createSerialNum.Load(),
		Get: func(doc uint32) []attribute.Multivalue[T] {
			return m.Get(guard, doc)
		},
	}
}

// Load fills a fresh column from a persisted file pair. The data is loaded into a new
// mapping that only replaces the empty one after the whole file was read and verified,
// so a failed load leaves the column empty.
//
// Thread-safety: Writer-only, the column must not have documents or pending changes.
func (c *column[T]) Load(source attribute.LoadSource) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return attribute.ErrClosed
	}
	if c.numDocs.Load() != 0 || c.changes.Len() != 0 {
		return fmt.Errorf("loading into column %s with %d docs: %w", c.name, c.numDocs.Load(), attribute.ErrInvalidOperation)
	}
	start := time.Now()

	fresh := c.newMapping()
	h, err := codec.Load[T](source, c.cfg, func(doc uint32, values []attribute.Multivalue[T]) error {
		if err := fresh.Reserve(doc + 1); err != nil {
			return err
		}
		if len(values) == 0 {
			return nil
		}
		return fresh.Set(doc, values)
	})
	if err != nil {
		return fmt.Errorf("loading column %s: %w", c.name, err)
	}
	if err := fresh.Reserve(h.NumDocs); err != nil {
		return fmt.Errorf("loading column %s: %w", c.name, err)
	}

	// nobody has seen the new mapping yet
	fresh.ClearHoldLists()

	c.mapping.Store(fresh)
	c.pushMark(h.NumDocs, h.MaxValueCount)
	c.numDocs.Store(h.NumDocs)
	c.committedLimit.Store(h.NumDocs)
	c.maxValueCount.Store(h.MaxValueCount)
	c.createSerialNum.Store(h.CreateSerialNum)
	gen := c.handler.Advance()

	if c.events != nil {
		c.events.Push(internal.Event{Type: internal.EventTRefresh, Generation: uint64(gen), Docs: int(h.NumDocs)})
	}

	plog.Infof("loaded column %s: %d docs, %d values, format %s, took %v",
		c.name, h.NumDocs, h.TotalValueCount, h.Format(), time.Since(start))
	return nil
}
