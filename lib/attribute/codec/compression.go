package codec

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// nopWriteCloser flushes nothing on Close, used for uncompressed bodies.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// bodyWriter wraps w with the configured compressor. Closing the result flushes the
// compressor but never closes w.
func bodyWriter(w io.Writer, c attribute.Compression) (io.WriteCloser, error) {
	switch c {
	case attribute.CompressionNone:
		return nopWriteCloser{w}, nil
	case attribute.CompressionLZ4:
		return lz4.NewWriter(w), nil
	case attribute.CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unknown compression %d: %w", c, attribute.ErrConfigMismatch)
	}
}

// bodyReader wraps r with the decompressor named in the header.
func bodyReader(r io.Reader, c attribute.Compression) (io.ReadCloser, error) {
	switch c {
	case attribute.CompressionNone:
		return io.NopCloser(r), nil
	case attribute.CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case attribute.CompressionZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %v: %w", err, attribute.ErrCorruption)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unknown compression %d: %w", c, attribute.ErrCorruption)
	}
}
