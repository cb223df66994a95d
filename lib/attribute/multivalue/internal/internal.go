package internal

import (
	"fmt"
	"slices"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute"
)

// --------------------------------------------------------------------------
// Event Types are used to signal column activity to the statistics goroutine
// --------------------------------------------------------------------------

type EventType int

const (
	EventTCommit EventType = iota
	EventTRefresh
)

func (e EventType) String() string {
	switch e {
	case EventTCommit:
		return "Commit"
	case EventTRefresh:
		return "Refresh"
	default:
		return "Unknown"
	}
}

type Event struct {
	Type       EventType
	Generation uint64
	Docs       int           // documents touched by the commit
	Duration   time.Duration // commit duration
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Generation: %d, Docs: %d}", e.Type, e.Generation, e.Docs)
}

// --------------------------------------------------------------------------
// Change Types
// --------------------------------------------------------------------------

type ChangeKind uint8

const (
	ChangeAssign ChangeKind = iota // replace the whole list
	ChangeAppend                   // add elements
	ChangeRemove                   // drop elements by value
	ChangeClear                    // empty the list
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAssign:
		return "Assign"
	case ChangeAppend:
		return "Append"
	case ChangeRemove:
		return "Remove"
	case ChangeClear:
		return "Clear"
	default:
		return "Unknown"
	}
}

// Change is one buffered mutation of a document.
type Change[T attribute.Numeric] struct {
	Kind   ChangeKind
	Values []attribute.Multivalue[T] // Assign, Append
	Remove []T                       // Remove
}

// --------------------------------------------------------------------------
// Change Buffer
// --------------------------------------------------------------------------

// ChangeBuffer collects the pending changes of a column per document in arrival order.
//
// Thread-safety: not thread-safe, owned by the writer.
type ChangeBuffer[T attribute.Numeric] struct {
	changes map[attribute.DocId][]Change[T]
	count   int
}

func NewChangeBuffer[T attribute.Numeric]() *ChangeBuffer[T] {
	return &ChangeBuffer[T]{changes: make(map[attribute.DocId][]Change[T])}
}

// Add buffers a change. Assign and Clear make all earlier changes of the document irrelevant and drop them.
func (b *ChangeBuffer[T]) Add(doc attribute.DocId, c Change[T]) {
	if c.Kind == ChangeAssign || c.Kind == ChangeClear {
		b.count -= len(b.changes[doc])
		b.changes[doc] = b.changes[doc][:0]
	}
	b.changes[doc] = append(b.changes[doc], c)
	b.count++
}

// Len returns the number of buffered changes.
func (b *ChangeBuffer[T]) Len() int { return b.count }

// NumDocs returns the number of documents with pending changes.
func (b *ChangeBuffer[T]) NumDocs() int { return len(b.changes) }

// Docs returns the documents with pending changes in ascending order.
func (b *ChangeBuffer[T]) Docs() []attribute.DocId {
	docs := make([]attribute.DocId, 0, len(b.changes))
	for doc := range b.changes {
		docs = append(docs, doc)
	}
	slices.Sort(docs)
	return docs
}

// Changes returns the pending changes of doc in arrival order.
func (b *ChangeBuffer[T]) Changes(doc attribute.DocId) []Change[T] {
	return b.changes[doc]
}

// Reset drops all pending changes.
func (b *ChangeBuffer[T]) Reset() {
	clear(b.changes)
	b.count = 0
}

// --------------------------------------------------------------------------
// Folding
// --------------------------------------------------------------------------

// Fold applies changes in order to the committed list and returns the new list.
// The result never aliases current or the change values.
//
// Arrays get every weight set to defaultWeight. Weighted sets keep one element per
// value: the last supplied weight wins and the position of the first occurrence is kept.
func Fold[T attribute.Numeric](current []attribute.Multivalue[T], changes []Change[T], collection attribute.CollectionType, defaultWeight int32) []attribute.Multivalue[T] {
	result := slices.Clone(current)

	for _, c := range changes {
		switch c.Kind {
		case ChangeAssign:
			result = append(result[:0], c.Values...)
		case ChangeAppend:
			result = append(result, c.Values...)
		case ChangeClear:
			result = result[:0]
		case ChangeRemove:
			result = slices.DeleteFunc(result, func(mv attribute.Multivalue[T]) bool {
				return slices.Contains(c.Remove, mv.Value)
			})
		}
	}

	if collection == attribute.WeightedSet {
		return dedupe(result)
	}
	for i := range result {
		result[i].Weight = defaultWeight
	}
	return result
}

// dedupe collapses equal values in place. The last weight wins, the first position is kept.
func dedupe[T attribute.Numeric](values []attribute.Multivalue[T]) []attribute.Multivalue[T] {
	if len(values) < 2 {
		return values
	}
	pos := make(map[T]int, len(values))
	out := values[:0]
	for _, mv := range values {
		if mv.Value != mv.Value {
			// NaN never equals itself, every NaN element stays
			out = append(out, mv)
			continue
		}
		if i, ok := pos[mv.Value]; ok {
			out[i].Weight = mv.Weight
			continue
		}
		pos[mv.Value] = len(out)
		out = append(out, mv)
	}
	return out
}
