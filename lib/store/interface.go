package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/retry"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ColumnFactory creates the column implementation for a name and configuration.
// This is used to abstract the creation of columns from the store implementation.
type ColumnFactory func(name string, cfg attribute.Config) (attribute.IAttribute, error)

// IStore owns a set of named columns. It creates them, hands them out, persists them and
// tears them down. All methods return a *Error (nil on success) wrapping the underlying
// attribute error.
type IStore interface {
	// CreateColumn creates an empty column. Creating an existing name fails with RetCAlreadyExists.
	CreateColumn(name string, cfg attribute.Config) (col attribute.IAttribute, err error)
	// Column returns the column with the given name.
	Column(name string) (col attribute.IAttribute, err error)
	// DropColumn closes and removes a column. Its files are not touched.
	DropColumn(name string) (err error)
	// Names returns the names of all columns in ascending order.
	Names() (names []string)
	// SaveAll saves every column into dir, several columns in parallel.
	SaveAll(ctx context.Context, dir string) (err error)
	// LoadAll loads every column file pair found in dir. Columns that do not exist yet
	// are created from the file header.
	LoadAll(ctx context.Context, dir string) (err error)
	// Statistics returns the statistics of every column keyed by name.
	Statistics() (stats map[string]attribute.Statistics)
	// WritePrometheus writes the metrics of every column in Prometheus text format.
	WritePrometheus(w io.Writer)
	// Close tears down every column. The store can't be used afterwards.
	Close() (err error)
}

// Typed returns the column with the given name with its value type.
// It fails with RetCTypeMismatch if the column holds a different value type.
func Typed[T attribute.Numeric](s IStore, name string) (attribute.Column[T], error) {
	col, err := s.Column(name)
	if err != nil {
		return nil, err
	}
	typed, ok := col.(attribute.Column[T])
	if !ok {
		return nil, NewError(RetCTypeMismatch, fmt.Sprintf("column %s holds %s values, not %s",
			name, col.Config().Type, attribute.BasicTypeOf[T]()), attribute.ErrConfigMismatch)
	}
	return typed, nil
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and the underlying error.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying error, may be nil.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("StoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying error so errors.Is works with the attribute errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new store error with the given code, message and cause.
func NewError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// Wrap converts an attribute error into a store error, choosing the code from the sentinel it wraps.
// Store errors are returned unchanged.
func Wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return err
	}
	return NewError(CodeOf(err), msg, err)
}

// CodeOf maps an error to its return code.
func CodeOf(err error) RetCode {
	var storeErr *Error
	switch {
	case err == nil:
		return RetCSuccess
	case errors.As(err, &storeErr):
		return storeErr.Code
	case errors.Is(err, attribute.ErrCorruption):
		return RetCCorruption
	case errors.Is(err, attribute.ErrResourceExhausted):
		return RetCResourceExhausted
	case errors.Is(err, attribute.ErrConfigMismatch):
		return RetCTypeMismatch
	case errors.Is(err, attribute.ErrDocIdOutOfRange), errors.Is(err, attribute.ErrInvalidOperation):
		return RetCInvalidOperation
	case errors.Is(err, attribute.ErrClosed):
		return RetCClosed
	default:
		return RetCInternalError
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess           RetCode = iota // 0: Command executed successfully.
	RetCInternalError                    // 1: Command failed due to an internal error.
	RetCInvalidOperation                 // 2: Invalid operation or document id.
	RetCNotFound                         // 3: No column with that name.
	RetCAlreadyExists                    // 4: A column with that name exists.
	RetCTypeMismatch                     // 5: Configuration or value type does not match.
	RetCCorruption                       // 6: Persisted files are corrupt.
	RetCResourceExhausted                // 7: Memory limit reached.
	RetCClosed                           // 8: The store or column was closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCAlreadyExists:
		return "AlreadyExists"
	case RetCTypeMismatch:
		return "TypeMismatch"
	case RetCCorruption:
		return "Corruption"
	case RetCResourceExhausted:
		return "ResourceExhausted"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ErrorCode maps the return code into the ranges of package retry.
// Internal (I/O) errors and exhausted memory are transient, everything else is fatal.
func (c RetCode) ErrorCode() uint32 {
	switch c {
	case RetCSuccess:
		return 0
	case RetCInternalError, RetCResourceExhausted:
		return retry.TransientError + uint32(c)
	default:
		return retry.FatalError + uint32(c)
	}
}
