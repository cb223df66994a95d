// Package attribute defines the interfaces and value types of multi-value attribute columns.
//
// An attribute column stores, for every document id, a variable length list of numeric
// values. Arrays keep order and duplicates, weighted sets keep one element per distinct
// value together with an int32 weight.
//
// The package focuses on:
//   - The column interfaces (IAttribute, Column) implemented by package multivalue
//   - Configuration of value type, collection type, persist format and compression
//   - Memory and commit statistics
//   - Search terms and the SearchContext used to evaluate them
//   - The sentinel errors shared by all implementations
//
// Concurrency Model:
//
// A column has one writer and any number of readers. The writer buffers changes per document
// and publishes all of them at once with Commit. Readers acquire a generation.Guard and see
// exactly the state of the last commit that was finished before the guard was acquired,
// however long they hold it. Replaced storage is freed once no guard can observe it anymore.
//
// Errors:
//
// All errors returned by implementations wrap one of ErrCorruption, ErrResourceExhausted,
// ErrConfigMismatch, ErrDocIdOutOfRange, ErrInvalidOperation or ErrClosed and can be
// checked with errors.Is.
package attribute
