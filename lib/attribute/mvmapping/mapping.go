package mvmapping

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/generation"
	"github.com/ValentinKolb/mvattr/lib/util"
)

// DefaultChunkElems is the number of elements per shared pool chunk.
const DefaultChunkElems = 4096

// noDoc marks held entries that are not bound to a document (e.g. an old index vector).
const noDoc = ^uint32(0)

// Options configures a Mapping.
type Options struct {
	ChunkElems        int    // elements per shared chunk, DefaultChunkElems if 0
	MaxAllocatedBytes uint64 // allocation limit in bytes, 0 means unlimited
}

// --------------------------------------------------------------------------
// Internal Types
// --------------------------------------------------------------------------

// version is one value list of a document. Versions of a document form a chain from newest to oldest.
type version[E any] struct {
	gen    generation.Generation // first generation that observes this version
	values []E
	alloc  allocation[E]
	prev   atomic.Pointer[version[E]]
}

type index[E any] struct {
	slots []atomic.Pointer[version[E]]
}

// held is storage that was replaced but may still be observed by a guard.
type held[E any] struct {
	doc          uint32
	alloc        allocation[E]
	bytes        uint64
	indexRelease uint64 // index bytes to release, only set for old index vectors
}

func slotSize[E any]() uint64 {
	var slot atomic.Pointer[version[E]]
	return uint64(unsafe.Sizeof(slot))
}

// Entry is storage prepared for a document but not yet visible.
type Entry[E any] struct {
	values []E
	alloc  allocation[E]
	done   bool
}

// Values returns the prepared values.
func (e *Entry[E]) Values() []E { return e.values }

// --------------------------------------------------------------------------
// Mapping
// --------------------------------------------------------------------------

// Mapping maps documents to variable length value lists.
//
// Thread-safety: Get, ValueCount, Size, TotalValueCount and MemoryUsage are safe for any number of
// concurrent readers. Every other method belongs to the single writer.
type Mapping[E any] struct {
	handler *generation.Handler
	pool    *pool[E]

	index atomic.Pointer[index[E]]
	size  atomic.Uint32

	pending []held[E]
	hold    *util.HoldHeap[held[E]]
	holdSeq uint64

	onHoldBytes     atomic.Uint64
	indexBytes      atomic.Uint64 // allocated index bytes
	totalValueCount atomic.Uint64
}

// New creates an empty mapping bound to the given generation handler.
func New[E any](handler *generation.Handler, opts Options) *Mapping[E] {
	if opts.ChunkElems <= 0 {
		opts.ChunkElems = DefaultChunkElems
	}
	var zero E
	m := &Mapping[E]{
		handler: handler,
		pool:    newPool[E](opts.ChunkElems, uint64(unsafe.Sizeof(zero)), opts.MaxAllocatedBytes),
		hold:    util.NewHoldHeap[held[E]](),
	}
	m.index.Store(&index[E]{})
	return m
}

func (m *Mapping[E]) Handler() *generation.Handler { return m.handler }

// Size returns the number of addressable documents.
func (m *Mapping[E]) Size() uint32 { return m.size.Load() }

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// resolve returns the newest version visible at gen, nil if the document had no values then.
func (m *Mapping[E]) resolve(gen generation.Generation, doc uint32) *version[E] {
	idx := m.index.Load()
	if int(doc) >= len(idx.slots) || doc >= m.size.Load() {
		return nil
	}
	for v := idx.slots[doc].Load(); v != nil; v = v.prev.Load() {
		if v.gen <= gen {
			return v
		}
	}
	return nil
}

// Get returns the values of doc as observed by the guard. The slice is valid while the guard is held
// and must not be modified.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *Mapping[E]) Get(guard *generation.Guard, doc uint32) []E {
	if v := m.resolve(guard.Generation(), doc); v != nil {
		return v.values
	}
	return nil
}

// ValueCount returns the number of values of doc as observed by the guard, 0 for unknown documents.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *Mapping[E]) ValueCount(guard *generation.Guard, doc uint32) uint32 {
	return uint32(len(m.Get(guard, doc)))
}

// Latest returns the most recently installed values of doc, visible or not.
// Writer-only.
func (m *Mapping[E]) Latest(doc uint32) []E {
	idx := m.index.Load()
	if int(doc) >= len(idx.slots) {
		return nil
	}
	if v := idx.slots[doc].Load(); v != nil {
		return v.values
	}
	return nil
}

// TotalValueCount returns the number of values over all latest versions.
func (m *Mapping[E]) TotalValueCount() uint64 { return m.totalValueCount.Load() }

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Reserve makes documents below numDocs addressable. Growing the index vector keeps the
// old vector on hold until no reader can observe it.
func (m *Mapping[E]) Reserve(numDocs uint32) error {
	if numDocs <= m.size.Load() {
		return nil
	}
	old := m.index.Load()
	if int(numDocs) > len(old.slots) {
		newCap := 2 * len(old.slots)
		if newCap < int(numDocs) {
			newCap = int(numDocs)
		}
		if newCap < 16 {
			newCap = 16
		}
		perSlot := slotSize[E]()
		if err := m.pool.reserveBytes(uint64(newCap) * perSlot); err != nil {
			return fmt.Errorf("growing doc index to %d: %w", newCap, err)
		}
		m.indexBytes.Add(uint64(newCap) * perSlot)

		grown := &index[E]{slots: make([]atomic.Pointer[version[E]], newCap)}
		for i := range old.slots {
			grown.slots[i].Store(old.slots[i].Load())
		}
		m.index.Store(grown)

		if oldBytes := uint64(len(old.slots)) * perSlot; oldBytes > 0 {
			m.pending = append(m.pending, held[E]{doc: noDoc, bytes: oldBytes, indexRelease: oldBytes})
			m.onHoldBytes.Add(oldBytes)
		}
	}
	m.size.Store(numDocs)
	return nil
}

// Prepare copies values into pool storage without publishing them.
// The entry must be passed to Install or Discard.
func (m *Mapping[E]) Prepare(values []E) (*Entry[E], error) {
	stored, alloc, err := m.pool.alloc(values)
	if err != nil {
		return nil, err
	}
	return &Entry[E]{values: stored, alloc: alloc}, nil
}

// Discard returns the storage of an entry that was never installed.
// Discarding entries in reverse order of preparation returns all pool space.
func (m *Mapping[E]) Discard(e *Entry[E]) {
	if e == nil || e.done {
		return
	}
	e.done = true
	if len(e.values) == 0 {
		return
	}
	if m.pool.rewind(e.alloc, e.values) || m.pool.dropDedicated(e.alloc) {
		return
	}
	m.pool.free(e.alloc)
}

// Install publishes a prepared entry as the new value list of doc. The new version becomes
// visible with the next generation; the replaced one goes to the pending hold list.
// Install cannot fail; doc must be below Size().
func (m *Mapping[E]) Install(doc uint32, e *Entry[E]) {
	if e.done {
		panic("mvmapping: entry installed twice")
	}
	if doc >= m.size.Load() {
		panic(fmt.Sprintf("mvmapping: install for doc %d beyond size %d", doc, m.size.Load()))
	}
	e.done = true

	slot := &m.index.Load().slots[doc]
	old := slot.Load()

	v := &version[E]{
		gen:    m.handler.CurrentGeneration() + 1,
		values: e.values,
		alloc:  e.alloc,
	}
	v.prev.Store(old)
	slot.Store(v)

	m.totalValueCount.Add(uint64(len(e.values)))
	if old != nil {
		sub(&m.totalValueCount, uint64(len(old.values)))
		bytes := uint64(old.alloc.n) * m.pool.elemSize
		m.pending = append(m.pending, held[E]{doc: doc, alloc: old.alloc, bytes: bytes})
		m.onHoldBytes.Add(bytes)
	}
}

// Set replaces the value list of doc. It is Prepare followed by Install.
func (m *Mapping[E]) Set(doc uint32, values []E) error {
	if doc >= m.size.Load() {
		return fmt.Errorf("set doc %d with size %d: %w", doc, m.size.Load(), attribute.ErrDocIdOutOfRange)
	}
	e, err := m.Prepare(values)
	if err != nil {
		return err
	}
	m.Install(doc, e)
	return nil
}

// --------------------------------------------------------------------------
// Hold Lists
// --------------------------------------------------------------------------

// TransferHoldLists tags everything replaced since the last transfer with gen,
// the last generation in which it could still be observed.
func (m *Mapping[E]) TransferHoldLists(gen generation.Generation) {
	for _, h := range m.pending {
		m.holdSeq++
		m.hold.AddItem(m.holdSeq, uint64(gen), h)
	}
	m.pending = m.pending[:0]
}

// TrimHoldLists frees every held entry tagged with a generation below firstUsed
// and unlinks the freed versions from their chains.
func (m *Mapping[E]) TrimHoldLists(firstUsed generation.Generation) int {
	return m.hold.PopBelow(uint64(firstUsed), func(h held[E]) {
		m.release(h)
		if h.doc != noDoc {
			m.prune(h.doc, firstUsed)
		}
	})
}

// ClearHoldLists frees all held storage regardless of readers. Only for teardown.
func (m *Mapping[E]) ClearHoldLists() int {
	for _, h := range m.pending {
		m.release(h)
	}
	n := len(m.pending)
	m.pending = m.pending[:0]

	n += m.hold.PopAll(m.release)

	// without readers only the head of every chain is reachable
	idx := m.index.Load()
	for i := range idx.slots {
		if v := idx.slots[i].Load(); v != nil {
			v.prev.Store(nil)
		}
	}
	return n
}

// HeldEntries returns the number of entries waiting for reclamation.
func (m *Mapping[E]) HeldEntries() int {
	return len(m.pending) + m.hold.Len()
}

func (m *Mapping[E]) release(h held[E]) {
	m.pool.free(h.alloc)
	sub(&m.onHoldBytes, h.bytes)
	if h.indexRelease > 0 {
		sub(&m.indexBytes, h.indexRelease)
		sub(&m.pool.allocatedBytes, h.indexRelease)
	}
}

// prune cuts the chain of doc below the newest version visible at firstUsed.
// No guard older than firstUsed exists, so nothing below that version is reachable.
func (m *Mapping[E]) prune(doc uint32, firstUsed generation.Generation) {
	idx := m.index.Load()
	for v := idx.slots[doc].Load(); v != nil; v = v.prev.Load() {
		if v.gen <= firstUsed {
			v.prev.Store(nil)
			return
		}
	}
}

// --------------------------------------------------------------------------
// Reporting
// --------------------------------------------------------------------------

// MemoryUsage returns the current memory report. The figures are read from independent
// counters and may be slightly inconsistent while the writer is active.
func (m *Mapping[E]) MemoryUsage() attribute.MemoryUsage {
	return attribute.MemoryUsage{
		AllocatedBytes:       m.pool.allocatedBytes.Load(),
		UsedBytes:            m.pool.usedBytes.Load() + uint64(m.size.Load())*slotSize[E](),
		DeadBytes:            m.pool.deadBytes.Load(),
		AllocatedBytesOnHold: m.onHoldBytes.Load(),
	}
}

// NumChunks returns the number of pool chunks currently allocated. Writer-only.
func (m *Mapping[E]) NumChunks() int { return m.pool.numChunks() }

// Clear drops all storage. Only valid without readers, used to reset a column after a failed load.
func (m *Mapping[E]) Clear() {
	m.ClearHoldLists()
	idx := m.index.Load()
	for i := range idx.slots {
		idx.slots[i].Store(nil)
	}
	m.pool.clear()
	m.totalValueCount.Store(0)
}
