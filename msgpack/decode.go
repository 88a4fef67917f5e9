package msgpack

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer is returned when a value's declared size runs past the end
// of the input.
var ErrShortBuffer = errors.New("msgpack: input truncated")

// Decode reads one value from the front of buf and returns it along with the
// remaining bytes. Integers decode as int64 when they fit, uint64 otherwise;
// arrays decode as []interface{} and maps as map[interface{}]interface{}.
//
// This decoder exists to verify the encoder (round-trip tests, payload
// inspection in collector tests); it is not an ingestion path.
func Decode(buf []byte) (interface{}, []byte, error) {
	if len(buf) == 0 {
		return nil, buf, ErrShortBuffer
	}
	tag := buf[0]
	rest := buf[1:]

	switch {
	case tag <= 0x7f: // positive fixnum
		return int64(tag), rest, nil
	case tag >= NegativeFixnum: // negative fixnum
		return int64(int8(tag)), rest, nil
	case tag >= FixMap && tag < FixArray:
		return decodeMap(rest, uint64(tag&0x0f))
	case tag >= FixArray && tag < FixStr:
		return decodeArray(rest, uint64(tag&0x0f))
	case tag >= FixStr && tag < Nil:
		return decodeStr(rest, uint64(tag&0x1f))
	}

	switch tag {
	case Nil:
		return nil, rest, nil
	case False:
		return false, rest, nil
	case True:
		return true, rest, nil
	case Bin8:
		size, rest, err := readLength(rest, 1)
		if err != nil {
			return nil, buf, err
		}
		return decodeBin(rest, size)
	case Bin16:
		size, rest, err := readLength(rest, 2)
		if err != nil {
			return nil, buf, err
		}
		return decodeBin(rest, size)
	case Bin32:
		size, rest, err := readLength(rest, 4)
		if err != nil {
			return nil, buf, err
		}
		return decodeBin(rest, size)
	case Double:
		if len(rest) < 8 {
			return nil, buf, ErrShortBuffer
		}
		return math.Float64frombits(binary.BigEndian.Uint64(rest)), rest[8:], nil
	case Uint8, Uint16, Uint32, Uint64:
		width := 1 << (tag - Uint8)
		if len(rest) < width {
			return nil, buf, ErrShortBuffer
		}
		var v uint64
		for _, b := range rest[:width] {
			v = v<<8 | uint64(b)
		}
		if v <= math.MaxInt64 {
			return int64(v), rest[width:], nil
		}
		return v, rest[width:], nil
	case Int8, Int16, Int32, Int64:
		width := 1 << (tag - Int8)
		if len(rest) < width {
			return nil, buf, ErrShortBuffer
		}
		var v uint64
		for _, b := range rest[:width] {
			v = v<<8 | uint64(b)
		}
		// Sign-extend from the encoded width.
		shift := uint(64 - 8*width)
		return int64(v<<shift) >> shift, rest[width:], nil
	case Str8:
		size, rest, err := readLength(rest, 1)
		if err != nil {
			return nil, buf, err
		}
		return decodeStr(rest, size)
	case Str16:
		size, rest, err := readLength(rest, 2)
		if err != nil {
			return nil, buf, err
		}
		return decodeStr(rest, size)
	case Str32:
		size, rest, err := readLength(rest, 4)
		if err != nil {
			return nil, buf, err
		}
		return decodeStr(rest, size)
	case Array16:
		size, rest, err := readLength(rest, 2)
		if err != nil {
			return nil, buf, err
		}
		return decodeArray(rest, size)
	case Array32:
		size, rest, err := readLength(rest, 4)
		if err != nil {
			return nil, buf, err
		}
		return decodeArray(rest, size)
	case Map16:
		size, rest, err := readLength(rest, 2)
		if err != nil {
			return nil, buf, err
		}
		return decodeMap(rest, size)
	case Map32:
		size, rest, err := readLength(rest, 4)
		if err != nil {
			return nil, buf, err
		}
		return decodeMap(rest, size)
	}
	return nil, buf, fmt.Errorf("msgpack: unsupported type tag 0x%02x", tag)
}

func readLength(buf []byte, width int) (uint64, []byte, error) {
	if len(buf) < width {
		return 0, buf, ErrShortBuffer
	}
	var v uint64
	for _, b := range buf[:width] {
		v = v<<8 | uint64(b)
	}
	return v, buf[width:], nil
}

func decodeStr(buf []byte, size uint64) (interface{}, []byte, error) {
	if uint64(len(buf)) < size {
		return nil, buf, ErrShortBuffer
	}
	return string(buf[:size]), buf[size:], nil
}

func decodeBin(buf []byte, size uint64) (interface{}, []byte, error) {
	if uint64(len(buf)) < size {
		return nil, buf, ErrShortBuffer
	}
	out := make([]byte, size)
	copy(out, buf[:size])
	return out, buf[size:], nil
}

func decodeArray(buf []byte, size uint64) (interface{}, []byte, error) {
	out := make([]interface{}, 0, size)
	var (
		v   interface{}
		err error
	)
	for i := uint64(0); i < size; i++ {
		v, buf, err = Decode(buf)
		if err != nil {
			return nil, buf, err
		}
		out = append(out, v)
	}
	return out, buf, nil
}

func decodeMap(buf []byte, size uint64) (interface{}, []byte, error) {
	out := make(map[interface{}]interface{}, size)
	var (
		k, v interface{}
		err  error
	)
	for i := uint64(0); i < size; i++ {
		k, buf, err = Decode(buf)
		if err != nil {
			return nil, buf, err
		}
		v, buf, err = Decode(buf)
		if err != nil {
			return nil, buf, err
		}
		out[k] = v
	}
	return out, buf, nil
}
