package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var plog = logger.GetLogger("codec")

const bodyBufferSize = 64 * 1024

// Snapshot is the committed state of a column as seen by one guard.
// Get must return the same values for a document on every call.
type Snapshot[T attribute.Numeric] struct {
	NumDocs         uint32
	MaxValueCount   uint32
	CreateSerialNum uint64
	Get             func(doc uint32) []attribute.Multivalue[T]
}

// staged is implemented by writers that can complete a file without publishing it.
// Commit publishes a finished file, Abort drops it and leaves the published one untouched.
type staged interface {
	Finish() error
	Commit() error
	Abort() error
}

func abort(w io.WriteCloser) {
	if s, ok := w.(staged); ok {
		_ = s.Abort()
		return
	}
	_ = w.Close()
}

// finish completes w. Staged writers are not published yet.
func finish(w io.WriteCloser) error {
	if s, ok := w.(staged); ok {
		return s.Finish()
	}
	return w.Close()
}

func commit(w io.WriteCloser) error {
	if s, ok := w.(staged); ok {
		return s.Commit()
	}
	return nil
}

// Save writes the snapshot in the format configured for the column.
// For the enumerated format the dictionary and data file are written concurrently and
// published only after both were written, so a failed save never pairs a new data file
// with an old dictionary. It returns the header that was written.
func Save[T attribute.Numeric](target attribute.SaveTarget, cfg attribute.Config, snap Snapshot[T]) (Header, error) {
	if err := attribute.Validate[T](cfg); err != nil {
		return Header{}, err
	}
	start := time.Now()

	h := Header{
		Version:         formatVersion,
		Type:            cfg.Type,
		Collection:      cfg.Collection,
		Enumerated:      cfg.Format == attribute.FormatEnumerated,
		Weighted:        cfg.Weighted(),
		Compression:     cfg.Compression,
		NumDocs:         snap.NumDocs,
		MaxValueCount:   snap.MaxValueCount,
		CreateSerialNum: snap.CreateSerialNum,
	}

	// first pass: totals and distinct values
	var dict *dictionaryBuilder[T]
	if h.Enumerated {
		dict = newDictionaryBuilder[T]()
	}
	for doc := uint32(0); doc < snap.NumDocs; doc++ {
		values := snap.Get(doc)
		h.TotalValueCount += uint64(len(values))
		if n := uint32(len(values)); n > h.MaxValueCount {
			h.MaxValueCount = n
		}
		if dict != nil {
			for _, mv := range values {
				dict.add(mv.Value)
			}
		}
	}

	if dict == nil {
		w, err := writeData(target, h, snap, nil)
		if err != nil {
			return Header{}, err
		}
		if err := commit(w); err != nil {
			abort(w)
			return Header{}, fmt.Errorf("publishing data file: %w", err)
		}
	} else {
		dict.finish()
		h.DictionaryCount = uint64(len(dict.values))

		var dw, ww io.WriteCloser
		var g errgroup.Group
		g.Go(func() (err error) {
			dw, err = writeDictionary(target, dict)
			return err
		})
		g.Go(func() (err error) {
			ww, err = writeData(target, h, snap, dict)
			return err
		})
		if err := g.Wait(); err != nil {
			// the side that succeeded is finished but not published
			for _, w := range []io.WriteCloser{dw, ww} {
				if w != nil {
					abort(w)
				}
			}
			return Header{}, err
		}

		if err := commit(dw); err != nil {
			abort(dw)
			abort(ww)
			return Header{}, fmt.Errorf("publishing dictionary file: %w", err)
		}
		if err := commit(ww); err != nil {
			abort(ww)
			return Header{}, fmt.Errorf("publishing data file: %w", err)
		}
	}

	plog.Debugf("saved %s in %v", h, time.Since(start))
	return h, nil
}

// writeDictionary writes and finishes the dictionary file. The returned writer still has to
// be committed or aborted.
func writeDictionary[T attribute.Numeric](target attribute.SaveTarget, dict *dictionaryBuilder[T]) (io.WriteCloser, error) {
	w, err := target.DictionaryWriter()
	if err != nil {
		return nil, fmt.Errorf("creating dictionary file: %w", err)
	}
	if _, err := w.Write(dict.encode()); err != nil {
		abort(w)
		return nil, fmt.Errorf("writing dictionary: %w", err)
	}
	if err := finish(w); err != nil {
		abort(w)
		return nil, fmt.Errorf("closing dictionary file: %w", err)
	}
	return w, nil
}

// writeData writes and finishes the data file, see writeDictionary.
func writeData[T attribute.Numeric](target attribute.SaveTarget, h Header, snap Snapshot[T], dict *dictionaryBuilder[T]) (_ io.WriteCloser, err error) {
	w, err := target.DataWriter()
	if err != nil {
		return nil, fmt.Errorf("creating data file: %w", err)
	}
	defer func() {
		if err != nil {
			abort(w)
		}
	}()

	if _, err := h.WriteTo(w); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	body, err := bodyWriter(w, h.Compression)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(body, bodyBufferSize)

	valueSize := width[T]()
	if dict != nil {
		valueSize = 4
	}
	entrySize := valueSize
	if h.Weighted {
		entrySize += 4
	}

	var buf []byte
	for doc := uint32(0); doc < snap.NumDocs; doc++ {
		values := snap.Get(doc)
		need := 4 + len(values)*entrySize
		if cap(buf) < need {
			buf = make([]byte, need)
		}
		buf = buf[:need]

		binary.LittleEndian.PutUint32(buf, uint32(len(values)))
		off := 4
		for _, mv := range values {
			if dict != nil {
				binary.LittleEndian.PutUint32(buf[off:], dict.lookup(mv.Value))
			} else {
				putValue(buf[off:], mv.Value)
			}
			off += valueSize
			if h.Weighted {
				binary.LittleEndian.PutUint32(buf[off:], uint32(mv.Weight))
				off += 4
			}
		}

		if _, err := bw.Write(buf); err != nil {
			return nil, fmt.Errorf("writing doc %d: %w", doc, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("flushing body: %w", err)
	}
	if err := body.Close(); err != nil {
		return nil, fmt.Errorf("closing compressor: %w", err)
	}
	if err := finish(w); err != nil {
		return nil, fmt.Errorf("closing data file: %w", err)
	}
	return w, nil
}
