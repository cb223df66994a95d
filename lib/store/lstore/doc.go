// Package lstore implements a local, single-process owning store for multi-value attribute
// columns based on the store.IStore interface.
//
// Key Features:
//   - Concurrent column registry (xsync.MapOf), lookups never lock
//   - Pluggable column creation through store.ColumnFactory
//   - Bulk persistence: SaveAll and LoadAll process several columns in parallel,
//     bounded by StoreConfig.Concurrency
//   - Transient errors (I/O, exhausted memory) are retried with a linearly growing delay
//   - Teardown closes every column and frees all held storage
//
// Implementation Details:
//
//   - File Layout: Every column is persisted as <dir>/<name>.dat plus
//     <dir>/<name>.udat for the enumerated format. LoadAll discovers columns by their
//     data files. A column that does not exist yet is created from the file header,
//     using the store defaults for everything the header doesn't describe.
//
//   - Error Handling: All errors are *store.Error values with a return code that wraps
//     the attribute error, so errors.Is(err, attribute.ErrCorruption) works as expected.
//
// Usage Example:
//
//	s := lstore.NewLocalStore(common.DefaultStoreConfig(), nil)
//	defer s.Close()
//
//	_, err := s.CreateColumn("tags", attribute.NewConfig(attribute.TypeInt32, attribute.Array))
//	tags, err := store.Typed[int32](s, "tags")
//
//	// ... add documents, apply changes, commit
//
//	err = s.SaveAll(ctx, "/var/lib/mvattr")
package lstore
