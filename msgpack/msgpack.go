// Package msgpack implements the subset of the MessagePack wire format used
// to submit traces to the Datadog agent. All functions append to the supplied
// buffer and pick the smallest size class that can represent the value.
// Composite values (arrays, maps) only get their header written here; the
// caller appends the elements afterwards, which allows streaming encoding of
// nested structures without building an intermediate tree.
package msgpack

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type prefix bytes of the encoding.
const (
	FixMap   = 0x80
	FixArray = 0x90
	FixStr   = 0xa0

	Nil   = 0xc0
	False = 0xc2
	True  = 0xc3

	Bin8  = 0xc4
	Bin16 = 0xc5
	Bin32 = 0xc6

	Double = 0xcb

	Uint8  = 0xcc
	Uint16 = 0xcd
	Uint32 = 0xce
	Uint64 = 0xcf
	Int8   = 0xd0
	Int16  = 0xd1
	Int32  = 0xd2
	Int64  = 0xd3

	Str8  = 0xd9
	Str16 = 0xda
	Str32 = 0xdb

	Array16 = 0xdc
	Array32 = 0xdd
	Map16   = 0xde
	Map32   = 0xdf

	NegativeFixnum = 0xe0
)

// OverflowError reports a length or count that cannot be represented in the
// largest size class the protocol offers. It is a hard error: truncating
// would corrupt the wire format.
type OverflowError struct {
	Kind string // "string", "binary", "array", or "map"
	Size uint64
	Max  uint64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("cannot msgpack encode %s of size %d, which exceeds the protocol maximum of %d",
		e.Kind, e.Size, e.Max)
}

func appendBigEndian16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBigEndian32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBigEndian64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// PackNil appends the nil sentinel.
func PackNil(buf []byte) []byte { return append(buf, Nil) }

// PackBool appends a boolean immediate.
func PackBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, True)
	}
	return append(buf, False)
}

// PackNonNegative appends an unsigned integer using the smallest fitting
// form: positive fixnum, then uint8/16/32/64.
func PackNonNegative(buf []byte, v uint64) []byte {
	switch {
	case v <= 0x7f:
		return append(buf, byte(v))
	case v <= math.MaxUint8:
		return append(buf, Uint8, byte(v))
	case v <= math.MaxUint16:
		return appendBigEndian16(append(buf, Uint16), uint16(v))
	case v <= math.MaxUint32:
		return appendBigEndian32(append(buf, Uint32), uint32(v))
	default:
		return appendBigEndian64(append(buf, Uint64), v)
	}
}

// PackNegative appends a negative integer using the smallest fitting form:
// negative fixnum, then int8/16/32/64.
func PackNegative(buf []byte, v int64) []byte {
	switch {
	case v >= -32:
		return append(buf, byte(NegativeFixnum|uint8(v+32)))
	case v >= math.MinInt8:
		return append(buf, Int8, byte(v))
	case v >= math.MinInt16:
		return appendBigEndian16(append(buf, Int16), uint16(v))
	case v >= math.MinInt32:
		return appendBigEndian32(append(buf, Int32), uint32(v))
	default:
		return appendBigEndian64(append(buf, Int64), uint64(v))
	}
}

// PackInt appends a signed integer, dispatching on sign.
func PackInt(buf []byte, v int64) []byte {
	if v < 0 {
		return PackNegative(buf, v)
	}
	return PackNonNegative(buf, uint64(v))
}

// PackUint is an alias of PackNonNegative for call sites holding a uint64.
func PackUint(buf []byte, v uint64) []byte { return PackNonNegative(buf, v) }

// PackDouble appends a float64. There is no single-precision path; the agent
// protocol always uses the 9-byte double form.
func PackDouble(buf []byte, v float64) []byte {
	return appendBigEndian64(append(buf, Double), math.Float64bits(v))
}

// PackStr appends a string header and the string's bytes. Strings shorter
// than 32 bytes use the fixstr form with the length embedded in the tag.
func PackStr(buf []byte, s string) ([]byte, error) {
	size := uint64(len(s))
	switch {
	case size < 32:
		buf = append(buf, byte(FixStr|uint8(size)))
	case size <= math.MaxUint8:
		buf = append(buf, Str8, byte(size))
	case size <= math.MaxUint16:
		buf = appendBigEndian16(append(buf, Str16), uint16(size))
	case size <= math.MaxUint32:
		buf = appendBigEndian32(append(buf, Str32), uint32(size))
	default:
		return buf, &OverflowError{Kind: "string", Size: size, Max: math.MaxUint32}
	}
	return append(buf, s...), nil
}

// PackBin appends a binary blob header and the blob's bytes. There is no
// short-immediate form for binary; the smallest class is the 8-bit length.
func PackBin(buf, b []byte) ([]byte, error) {
	size := uint64(len(b))
	switch {
	case size <= math.MaxUint8:
		buf = append(buf, Bin8, byte(size))
	case size <= math.MaxUint16:
		buf = appendBigEndian16(append(buf, Bin16), uint16(size))
	case size <= math.MaxUint32:
		buf = appendBigEndian32(append(buf, Bin32), uint32(size))
	default:
		return buf, &OverflowError{Kind: "binary", Size: size, Max: math.MaxUint32}
	}
	return append(buf, b...), nil
}

// PackArray appends an array header for size elements. The caller appends
// the elements.
func PackArray(buf []byte, size uint64) ([]byte, error) {
	switch {
	case size <= 15:
		return append(buf, byte(FixArray|uint8(size))), nil
	case size <= math.MaxUint16:
		return appendBigEndian16(append(buf, Array16), uint16(size)), nil
	case size <= math.MaxUint32:
		return appendBigEndian32(append(buf, Array32), uint32(size)), nil
	default:
		return buf, &OverflowError{Kind: "array", Size: size, Max: math.MaxUint32}
	}
}

// PackMap appends a map header for size key/value pairs. The caller appends
// the pairs.
func PackMap(buf []byte, size uint64) ([]byte, error) {
	switch {
	case size <= 15:
		return append(buf, byte(FixMap|uint8(size))), nil
	case size <= math.MaxUint16:
		return appendBigEndian16(append(buf, Map16), uint16(size)), nil
	case size <= math.MaxUint32:
		return appendBigEndian32(append(buf, Map32), uint32(size)), nil
	default:
		return buf, &OverflowError{Kind: "map", Size: size, Max: math.MaxUint32}
	}
}
