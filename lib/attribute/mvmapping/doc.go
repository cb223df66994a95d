// Package mvmapping maps documents to variable length value lists that can be replaced
// while readers traverse them without locks.
//
// Storage:
//
//   - Values live in an append-only pool of chunks. Small lists share chunks, lists larger
//     than a quarter chunk get a dedicated chunk. A region that is handed out is never written
//     again, so readers can keep plain slices into the pool.
//   - Freed regions become dead bytes. A chunk whose regions are all dead is released.
//   - The doc index is a vector of atomic pointers that is replaced when it grows.
//
// Versions and Generations:
//
// Every document slot points to a chain of versions, newest first. Install tags the new
// version with the next generation of the bound generation.Handler, so it only becomes
// visible once the writer advances the generation. A reader holding a guard for generation
// G walks the chain to the newest version tagged <= G. Readers therefore see either all or
// nothing of a commit.
//
// Hold Lists:
//
// Replaced versions and old index vectors go to a pending list. TransferHoldLists tags them
// with the last generation that can observe them, TrimHoldLists frees everything tagged
// below the oldest generation still in use and unlinks it from the chains. ClearHoldLists
// frees everything and is meant for teardown only.
//
// Commit Protocol (writer):
//
//	e, err := m.Prepare(values)   // may fail with attribute.ErrResourceExhausted
//	...                           // on failure: m.Discard(e) for all prepared entries
//	m.Install(doc, e)             // cannot fail
//	gen := handler.Advance()
//	m.TransferHoldLists(gen - 1)
//	m.TrimHoldLists(handler.UpdateOldestUsedGeneration())
//
// Thread-safety: read operations (Get, ValueCount, Size, TotalValueCount, MemoryUsage) are
// safe for concurrent use by any number of readers. All other operations belong to a
// single writer.
package mvmapping
