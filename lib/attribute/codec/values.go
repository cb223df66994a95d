package codec

import (
	"cmp"
	"encoding/binary"
	"math"

	"github.com/ValentinKolb/mvattr/lib/attribute"
)

// putValue encodes v little endian into b, which must hold at least the width of T.
func putValue[T attribute.Numeric](b []byte, v T) {
	switch x := any(v).(type) {
	case int8:
		b[0] = uint8(x)
	case int16:
		binary.LittleEndian.PutUint16(b, uint16(x))
	case int32:
		binary.LittleEndian.PutUint32(b, uint32(x))
	case int64:
		binary.LittleEndian.PutUint64(b, uint64(x))
	case float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(x))
	case float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(x))
	}
}

// getValue decodes a little endian value of type T from b.
func getValue[T attribute.Numeric](b []byte) T {
	var v T
	switch p := any(&v).(type) {
	case *int8:
		*p = int8(b[0])
	case *int16:
		*p = int16(binary.LittleEndian.Uint16(b))
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(b))
	case *int64:
		*p = int64(binary.LittleEndian.Uint64(b))
	case *float32:
		*p = math.Float32frombits(binary.LittleEndian.Uint32(b))
	case *float64:
		*p = math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return v
}

// valueBits returns the bit pattern of v. Floats that compare equal but differ in bits
// (e.g. 0 and -0, or NaN payloads) get distinct keys.
func valueBits[T attribute.Numeric](v T) uint64 {
	switch x := any(v).(type) {
	case int8:
		return uint64(uint8(x))
	case int16:
		return uint64(uint16(x))
	case int32:
		return uint64(uint32(x))
	case int64:
		return uint64(x)
	case float32:
		return uint64(math.Float32bits(x))
	case float64:
		return math.Float64bits(x)
	}
	return 0
}

// compareValues orders values like cmp.Compare and breaks ties by bit pattern.
func compareValues[T attribute.Numeric](a, b T) int {
	if c := cmp.Compare(a, b); c != 0 {
		return c
	}
	return cmp.Compare(valueBits(a), valueBits(b))
}

func width[T attribute.Numeric]() int {
	return attribute.BasicTypeOf[T]().Width()
}
