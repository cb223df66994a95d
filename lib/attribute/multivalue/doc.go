// Package multivalue implements attribute.Column for numeric multi-value attributes:
// arrays (ordered lists, duplicates allowed) and weighted sets (distinct values, each
// with an int32 weight). It provides a complete implementation of the attribute.Column
// interface with a focus on lock-free readers and atomic commits.
//
// The package focuses on:
//   - A single writer that buffers changes and publishes them with Commit
//   - Any number of readers that never lock and always observe exactly one commit
//   - Reclamation of replaced storage once no reader can observe it anymore
//   - Persistence in a raw or an enumerated (dictionary) format
//   - Statistics and Prometheus metrics per column
//
// Key Components:
//
//   - column: The central structure implementing attribute.Column. It owns a
//     generation.Handler and an mvmapping.Mapping bound to it. Writer operations
//     serialize on a mutex and only touch the change buffer. Readers pin the current
//     generation with a guard and resolve document lists through the mapping.
//
//   - Change Buffer: Pending assignments, appends, removals and clears per document
//     (see internal.ChangeBuffer). Commit folds the buffered changes of every document
//     onto its latest list. Arrays get the configured default weight, weighted sets keep
//     the first position and the last weight of each value.
//
//   - Search Contexts: Hold a guard for their whole lifetime, so a search sees one
//     snapshot even while commits happen. Array contexts report the number of matching
//     elements as weight, set contexts the weight of the matching element.
//
//   - Statistics Refresher: An optional goroutine (Config.StatsInterval > 0) that consumes
//     commit events from a lock-free event queue and recomputes the column statistics
//     at most once per interval.
//
// Commit:
//
//  1. Fold and prepare the new list of every changed document. If the memory limit is hit,
//     everything prepared so far is discarded and ErrResourceExhausted is returned. The
//     committed state and the change buffer are left untouched.
//  2. Install all lists, publish the committed doc id limit and advance the generation.
//     From this point on new guards observe the commit.
//  3. Tag the replaced lists with the previous generation and free what is no longer
//     observable.
//
// Usage Example:
//
//	col, err := multivalue.New[int32]("tags", attribute.NewConfig(attribute.TypeInt32, attribute.Array), nil)
//	if err != nil {
//		return err
//	}
//	defer col.Close()
//
//	first, _ := col.AddDocs(1)
//	_ = col.ApplyChange(first, []attribute.Multivalue[int32]{{Value: 3, Weight: 1}})
//	_ = col.Commit()
//
//	guard := col.AcquireGuard()
//	defer guard.Release()
//	values := col.View(guard, first)
//
// Thread-safety: all read operations (View, Get, ValueCount, search contexts, Save,
// statistics) are safe for concurrent use. AddDocs, the change operations, Commit, Load
// and Close are serialized internally, but a column is meant to be fed by one writer.
package multivalue
