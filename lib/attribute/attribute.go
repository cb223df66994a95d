package attribute

import (
	"io"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ValentinKolb/mvattr/lib/generation"
)

// --------------------------------------------------------------------------
// Persistence Interfaces
// --------------------------------------------------------------------------

// SaveTarget hands out the writers for the file pair of one column.
// The dictionary writer is only requested for the enumerated format.
type SaveTarget interface {
	DataWriter() (io.WriteCloser, error)
	DictionaryWriter() (io.WriteCloser, error)
}

// LoadSource hands out the byte sources for the file pair of one column.
type LoadSource interface {
	DataReader() (io.ReadCloser, error)

	// DictionaryBytes returns the complete dictionary file.
	DictionaryBytes() ([]byte, error)
}

// --------------------------------------------------------------------------
// Search Interfaces
// --------------------------------------------------------------------------

// Term is an already parsed query term. Parsing query syntax happens elsewhere.
type Term[T Numeric] interface {
	Match(v T) bool
}

// SearchContext evaluates one term against the committed state of a column.
// It holds a guard for its whole lifetime; Close releases it.
type SearchContext interface {
	// Find returns the index of the first matching element at or after elemID
	// together with its weight, or -1 if there is none.
	Find(doc DocId, elemID int) (int, int32)

	// Matches reports whether the document matches.
	// Arrays return the number of matching elements as weight, weighted sets the weight of the matching element.
	Matches(doc DocId) (bool, int32)

	// FindMatches collects all matching documents below the committed doc id limit.
	FindMatches() *roaring.Bitmap

	// Close releases the guard. Calling Close more than once has no effect.
	Close()
}

// --------------------------------------------------------------------------
// Column Interfaces
// --------------------------------------------------------------------------

// IAttribute is the type independent part of a multi-value column.
// It is what the owning store keeps in its registry.
//
// Writer methods (AddDocs, ClearDoc, Commit, Load, SetCreateSerialNum, Close) serialize
// on the column. Reader methods never block on the writer.
type IAttribute interface {
	Name() string
	Config() Config

	// AddDocs appends n empty documents and returns the first new doc id.
	AddDocs(n uint32) (DocId, error)

	// NumDocs returns the number of documents including uncommitted ones.
	NumDocs() uint32

	// CommittedDocIdLimit returns the number of documents visible to readers.
	CommittedDocIdLimit() uint32

	// ClearDoc buffers a change that empties the document.
	ClearDoc(doc DocId) error

	// Commit makes all buffered changes visible atomically and advances the generation.
	Commit() error

	// ValueCount returns the number of committed values of the document, 0 if it does not exist.
	ValueCount(doc DocId) uint32

	// MaxValueCount returns the largest value count any document ever had.
	MaxValueCount() uint32

	TotalValueCount() uint64
	CurrentGeneration() generation.Generation

	// UpdateStatistics recomputes and returns the column report.
	UpdateStatistics() Statistics

	CreateSerialNum() uint64
	SetCreateSerialNum(serial uint64)

	// Save writes the committed state under a single guard.
	Save(target SaveTarget) error

	// Load replaces the contents of a fresh column with the persisted state.
	// On failure the column stays empty.
	Load(source LoadSource) error

	// WritePrometheus writes the column metrics in Prometheus text format.
	WritePrometheus(w io.Writer)

	// Close frees all storage. The column is unusable afterwards.
	Close() error
}

// Column is a multi-value column with values of type T.
type Column[T Numeric] interface {
	IAttribute

	// ApplyChange buffers a replacement of the document's value list. Later changes win.
	ApplyChange(doc DocId, values []Multivalue[T]) error

	// Append buffers additional values for the document.
	Append(doc DocId, values []Multivalue[T]) error

	// Remove buffers the removal of every element with one of the given values.
	Remove(doc DocId, values []T) error

	// Get copies the committed values of the document into buf and returns it.
	Get(doc DocId, buf []Multivalue[T]) []Multivalue[T]

	// AcquireGuard pins the current generation for View.
	AcquireGuard() *generation.Guard

	// View returns the committed values without copying. The slice is valid while guard is held
	// and must not be modified.
	View(guard *generation.Guard, doc DocId) []Multivalue[T]

	// NewSearchContext picks the search context matching the collection type.
	NewSearchContext(term Term[T]) (SearchContext, error)
	NewArraySearchContext(term Term[T]) (SearchContext, error)
	NewSetSearchContext(term Term[T]) (SearchContext, error)
}
