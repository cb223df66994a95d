package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ValentinKolb/mvattr/lib/attribute"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum      = "MVATTR\x00\x00" // File format identifier
	formatVersion = 1                // Data file version
	headerSize    = 45               // Encoded header size in bytes

	flagEnumerated uint8 = 1 << 0
	flagWeighted   uint8 = 1 << 1
)

// --------------------------------------------------------------------------
// Header
// --------------------------------------------------------------------------

// Header is the fixed size prefix of a data file. It is never compressed.
type Header struct {
	Version         uint8
	Type            attribute.BasicType
	Collection      attribute.CollectionType
	Enumerated      bool
	Weighted        bool
	Compression     attribute.Compression
	NumDocs         uint32
	MaxValueCount   uint32
	TotalValueCount uint64
	DictionaryCount uint64 // number of dictionary entries, 0 for raw files
	CreateSerialNum uint64
}

// Format returns the persist format the header describes.
func (h Header) Format() attribute.PersistFormat {
	if h.Enumerated {
		return attribute.FormatEnumerated
	}
	return attribute.FormatRaw
}

func (h Header) String() string {
	return fmt.Sprintf("v%d %s/%s format=%s compression=%s docs=%d values=%d max=%d dict=%d serial=%d",
		h.Version, h.Type, h.Collection, h.Format(), h.Compression,
		h.NumDocs, h.TotalValueCount, h.MaxValueCount, h.DictionaryCount, h.CreateSerialNum)
}

// WriteTo writes the encoded header.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	var buf [headerSize]byte
	copy(buf[0:8], magicNum)
	buf[8] = h.Version
	buf[9] = uint8(h.Type)
	buf[10] = uint8(h.Collection)

	var flags uint8
	if h.Enumerated {
		flags |= flagEnumerated
	}
	if h.Weighted {
		flags |= flagWeighted
	}
	buf[11] = flags
	buf[12] = uint8(h.Compression)

	binary.LittleEndian.PutUint32(buf[13:17], h.NumDocs)
	binary.LittleEndian.PutUint32(buf[17:21], h.MaxValueCount)
	binary.LittleEndian.PutUint64(buf[21:29], h.TotalValueCount)
	binary.LittleEndian.PutUint64(buf[29:37], h.DictionaryCount)
	binary.LittleEndian.PutUint64(buf[37:45], h.CreateSerialNum)

	n, err := w.Write(buf[:])
	return int64(n), err
}

// ReadHeader reads and validates the header of a data file.
// It does not check the header against a column configuration, see CheckHeader.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("reading header: %v: %w", err, attribute.ErrCorruption)
	}

	if string(buf[0:8]) != magicNum {
		return Header{}, fmt.Errorf("invalid file format: magic number mismatch: %w", attribute.ErrCorruption)
	}

	h := Header{
		Version:         buf[8],
		Type:            attribute.BasicType(buf[9]),
		Collection:      attribute.CollectionType(buf[10]),
		Enumerated:      buf[11]&flagEnumerated != 0,
		Weighted:        buf[11]&flagWeighted != 0,
		Compression:     attribute.Compression(buf[12]),
		NumDocs:         binary.LittleEndian.Uint32(buf[13:17]),
		MaxValueCount:   binary.LittleEndian.Uint32(buf[17:21]),
		TotalValueCount: binary.LittleEndian.Uint64(buf[21:29]),
		DictionaryCount: binary.LittleEndian.Uint64(buf[29:37]),
		CreateSerialNum: binary.LittleEndian.Uint64(buf[37:45]),
	}

	if h.Version != formatVersion {
		return Header{}, fmt.Errorf("unsupported version: %d (expected %d): %w", h.Version, formatVersion, attribute.ErrCorruption)
	}
	if h.Type.Width() == 0 {
		return Header{}, fmt.Errorf("unknown basic type %d: %w", h.Type, attribute.ErrCorruption)
	}
	if h.Collection != attribute.Array && h.Collection != attribute.WeightedSet {
		return Header{}, fmt.Errorf("unknown collection type %d: %w", h.Collection, attribute.ErrCorruption)
	}
	if h.Weighted != (h.Collection == attribute.WeightedSet) {
		return Header{}, fmt.Errorf("weight flag does not match collection %s: %w", h.Collection, attribute.ErrCorruption)
	}
	if h.Compression > attribute.CompressionZstd {
		return Header{}, fmt.Errorf("unknown compression %d: %w", h.Compression, attribute.ErrCorruption)
	}
	if !h.Enumerated && h.DictionaryCount != 0 {
		return Header{}, fmt.Errorf("raw file with dictionary count %d: %w", h.DictionaryCount, attribute.ErrCorruption)
	}
	if h.TotalValueCount > uint64(h.NumDocs)*uint64(h.MaxValueCount) {
		return Header{}, fmt.Errorf("total value count %d exceeds %d docs with at most %d values: %w",
			h.TotalValueCount, h.NumDocs, h.MaxValueCount, attribute.ErrCorruption)
	}
	return h, nil
}

// CheckHeader verifies that a file can be loaded into a column with the given configuration.
func CheckHeader(h Header, cfg attribute.Config) error {
	if h.Type != cfg.Type {
		return fmt.Errorf("file holds %s values, column is %s: %w", h.Type, cfg.Type, attribute.ErrConfigMismatch)
	}
	if h.Collection != cfg.Collection {
		return fmt.Errorf("file holds %s, column is %s: %w", h.Collection, cfg.Collection, attribute.ErrConfigMismatch)
	}
	return nil
}
