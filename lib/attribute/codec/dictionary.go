package codec

import (
	"fmt"
	"slices"

	"github.com/ValentinKolb/mvattr/lib/attribute"
)

// Dictionary is a typed view over the sorted distinct values of an enumerated column.
// It does not copy the underlying buffer.
type Dictionary[T attribute.Numeric] struct {
	buf   []byte
	width int
}

// NewDictionary wraps the contents of a dictionary file.
// The buffer size must be a multiple of the value width and the values must be sorted.
func NewDictionary[T attribute.Numeric](buf []byte) (*Dictionary[T], error) {
	w := width[T]()
	if len(buf)%w != 0 {
		return nil, fmt.Errorf("dictionary size %d is not a multiple of value width %d: %w", len(buf), w, attribute.ErrCorruption)
	}
	d := &Dictionary[T]{buf: buf, width: w}

	for i := 1; i < d.Len(); i++ {
		if compareValues(d.at(i-1), d.at(i)) >= 0 {
			return nil, fmt.Errorf("dictionary not sorted at entry %d: %w", i, attribute.ErrCorruption)
		}
	}
	return d, nil
}

// Len returns the number of entries.
func (d *Dictionary[T]) Len() int {
	return len(d.buf) / d.width
}

func (d *Dictionary[T]) at(i int) T {
	return getValue[T](d.buf[i*d.width:])
}

// At returns the value for a dictionary index read from a data file.
func (d *Dictionary[T]) At(i uint32) (T, error) {
	if int(i) >= d.Len() {
		var zero T
		return zero, fmt.Errorf("dictionary index %d out of range (%d entries): %w", i, d.Len(), attribute.ErrCorruption)
	}
	return d.at(int(i)), nil
}

// Values decodes all entries.
func (d *Dictionary[T]) Values() []T {
	values := make([]T, d.Len())
	for i := range values {
		values[i] = d.at(i)
	}
	return values
}

// --------------------------------------------------------------------------
// Dictionary Builder
// --------------------------------------------------------------------------

// dictionaryBuilder collects the distinct values of a column while saving.
type dictionaryBuilder[T attribute.Numeric] struct {
	index  map[uint64]uint32
	values []T
}

func newDictionaryBuilder[T attribute.Numeric]() *dictionaryBuilder[T] {
	return &dictionaryBuilder[T]{index: make(map[uint64]uint32)}
}

func (b *dictionaryBuilder[T]) add(v T) {
	key := valueBits(v)
	if _, ok := b.index[key]; ok {
		return
	}
	b.index[key] = 0
	b.values = append(b.values, v)
}

// finish sorts the collected values and assigns the final indices.
func (b *dictionaryBuilder[T]) finish() {
	slices.SortFunc(b.values, compareValues[T])
	for i, v := range b.values {
		b.index[valueBits(v)] = uint32(i)
	}
}

func (b *dictionaryBuilder[T]) lookup(v T) uint32 {
	return b.index[valueBits(v)]
}

// encode returns the dictionary file contents.
func (b *dictionaryBuilder[T]) encode() []byte {
	w := width[T]()
	buf := make([]byte, len(b.values)*w)
	for i, v := range b.values {
		putValue(buf[i*w:], v)
	}
	return buf
}
