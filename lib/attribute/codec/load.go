package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute"
)

// Sink receives the value list of every document in ascending doc order.
// The slice is reused between calls.
type Sink[T attribute.Numeric] func(doc uint32, values []attribute.Multivalue[T]) error

// Load reads a raw or enumerated file pair and feeds every document to sink.
// Unweighted files get cfg.DefaultWeight for every element.
//
// Truncated input, trailing bytes, dictionary indices out of range and totals that
// do not match the header fail with attribute.ErrCorruption. A file of another value
// type or collection fails with attribute.ErrConfigMismatch.
func Load[T attribute.Numeric](source attribute.LoadSource, cfg attribute.Config, sink Sink[T]) (Header, error) {
	if err := attribute.Validate[T](cfg); err != nil {
		return Header{}, err
	}
	start := time.Now()

	rc, err := source.DataReader()
	if err != nil {
		return Header{}, fmt.Errorf("opening data file: %w", err)
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, bodyBufferSize)
	h, err := ReadHeader(br)
	if err != nil {
		return Header{}, err
	}
	if err := CheckHeader(h, cfg); err != nil {
		return Header{}, err
	}

	var dict *Dictionary[T]
	if h.Enumerated {
		raw, err := source.DictionaryBytes()
		if err != nil {
			return Header{}, fmt.Errorf("reading dictionary file: %w", err)
		}
		if dict, err = NewDictionary[T](raw); err != nil {
			return Header{}, err
		}
		if uint64(dict.Len()) != h.DictionaryCount {
			return Header{}, fmt.Errorf("dictionary holds %d entries, header says %d: %w",
				dict.Len(), h.DictionaryCount, attribute.ErrCorruption)
		}
	}

	body, err := bodyReader(br, h.Compression)
	if err != nil {
		return Header{}, err
	}
	defer body.Close()

	valueSize := width[T]()
	if dict != nil {
		valueSize = 4
	}
	entrySize := valueSize
	if h.Weighted {
		entrySize += 4
	}

	var (
		countBuf [4]byte
		raw      []byte
		values   []attribute.Multivalue[T]
		total    uint64
	)

	for doc := uint32(0); doc < h.NumDocs; doc++ {
		if _, err := io.ReadFull(body, countBuf[:]); err != nil {
			return Header{}, truncated(doc, err)
		}
		n := binary.LittleEndian.Uint32(countBuf[:])
		if n > h.MaxValueCount || uint64(n) > h.TotalValueCount-total {
			return Header{}, fmt.Errorf("doc %d: value count %d exceeds header totals: %w", doc, n, attribute.ErrCorruption)
		}

		raw, err = readRecord(body, raw, int(n)*entrySize)
		if err != nil {
			return Header{}, truncated(doc, err)
		}
		need := len(raw)

		values = values[:0]
		for off := 0; off < need; {
			var v T
			if dict != nil {
				if v, err = dict.At(binary.LittleEndian.Uint32(raw[off:])); err != nil {
					return Header{}, fmt.Errorf("doc %d: %w", doc, err)
				}
			} else {
				v = getValue[T](raw[off:])
			}
			off += valueSize

			weight := cfg.DefaultWeight
			if h.Weighted {
				weight = int32(binary.LittleEndian.Uint32(raw[off:]))
				off += 4
			}
			values = append(values, attribute.Multivalue[T]{Value: v, Weight: weight})
		}
		total += uint64(n)

		if err := sink(doc, values); err != nil {
			return Header{}, err
		}
	}

	if total != h.TotalValueCount {
		return Header{}, fmt.Errorf("read %d values, header says %d: %w", total, h.TotalValueCount, attribute.ErrCorruption)
	}

	var extra [1]byte
	switch _, err := io.ReadFull(body, extra[:]); {
	case err == nil:
		return Header{}, fmt.Errorf("trailing bytes after %d docs: %w", h.NumDocs, attribute.ErrCorruption)
	case !errors.Is(err, io.EOF):
		return Header{}, fmt.Errorf("reading body end: %v: %w", err, attribute.ErrCorruption)
	}

	plog.Debugf("loaded %s in %v", h, time.Since(start))
	return h, nil
}

// readRecord reads need bytes into buf. The buffer grows by at most bodyBufferSize per read,
// so a value count that does not fit the remaining input fails before much memory is spent.
func readRecord(r io.Reader, buf []byte, need int) ([]byte, error) {
	buf = buf[:0]
	for len(buf) < need {
		step := min(need-len(buf), bodyBufferSize)
		buf = slices.Grow(buf, step)
		n, err := io.ReadFull(r, buf[len(buf):len(buf)+step])
		buf = buf[:len(buf)+n]
		if err != nil {
			return buf, err
		}
	}
	return buf, nil
}

func truncated(doc uint32, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("data truncated at doc %d: %w", doc, attribute.ErrCorruption)
	}
	return fmt.Errorf("reading doc %d: %v: %w", doc, err, attribute.ErrCorruption)
}
