package attribute

import "errors"

var (
	// ErrCorruption is returned when persisted data is truncated or inconsistent with its header.
	ErrCorruption = errors.New("attribute data corrupted")

	// ErrResourceExhausted is returned when storage for a commit or load cannot be allocated.
	ErrResourceExhausted = errors.New("attribute memory exhausted")

	// ErrConfigMismatch is returned when a file, a search context or a type parameter does not fit the column configuration.
	ErrConfigMismatch = errors.New("attribute config mismatch")

	// ErrDocIdOutOfRange is returned when a change targets a document that was never added.
	ErrDocIdOutOfRange = errors.New("doc id out of range")

	// ErrInvalidOperation is returned when an operation is not allowed in the current state, e.g. loading into a used column.
	ErrInvalidOperation = errors.New("invalid attribute operation")

	// ErrClosed is returned by every mutating operation after Close.
	ErrClosed = errors.New("attribute closed")
)
