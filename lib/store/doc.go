// Package store provides an owning store for named multi-value attribute columns with
// unified error handling. It serves as an abstraction layer over the column implementations,
// adding a registry, bulk persistence and teardown.
//
// The package focuses on:
//   - A unified interface (IStore) to create, look up, drop, persist and tear down columns
//   - Pluggable column implementations through the ColumnFactory pattern
//   - Typed access to columns with Typed[T]
//
// Key Components:
//
//   - IStore Interface: The core abstraction. Columns are addressed by name and are
//     handed out as attribute.IAttribute; Typed converts them to attribute.Column[T]
//     after checking the value type.
//
//   - Error System: Every method returns a *Error with a RetCode and the wrapped attribute
//     error, so callers can both switch on the code and use errors.Is with the attribute
//     sentinels. RetCode.ErrorCode maps the code into the transient / fatal ranges of
//     package retry.
//
//   - ColumnFactory: A function type that abstracts the creation of columns, providing
//     dependency injection for tests and alternative implementations.
//
// Implementations:
//
//	- Local Store (lstore): An in-process store backed by a concurrent map. Save and load
//	  of many columns run in parallel with a bounded errgroup and retry transient errors.
//	  Available in the "github.com/ValentinKolb/mvattr/lib/store/lstore" package.
package store
