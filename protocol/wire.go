// File: protocol/wire.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// AMQP wire primitives: fixed-width big-endian integers, short strings,
// long strings, and field tables. Decoders take (data, offset) and return
// (value, newOffset, error) so method decoders compose without copies.

package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-amqp/api"
)

// Table is an AMQP field table. Supported value types: bool, int8, int32,
// int64, uint64 (timestamp), string (long string) and nested Table.
type Table map[string]any

func decodeOctet(data []byte, offset int) (byte, int, error) {
	if len(data)-offset < 1 {
		return 0, offset, api.ErrShortBuffer
	}
	return data[offset], offset + 1, nil
}

func decodeShort(data []byte, offset int) (uint16, int, error) {
	if len(data)-offset < 2 {
		return 0, offset, api.ErrShortBuffer
	}
	return binary.BigEndian.Uint16(data[offset:]), offset + 2, nil
}

func decodeLong(data []byte, offset int) (uint32, int, error) {
	if len(data)-offset < 4 {
		return 0, offset, api.ErrShortBuffer
	}
	return binary.BigEndian.Uint32(data[offset:]), offset + 4, nil
}

func decodeLonglong(data []byte, offset int) (uint64, int, error) {
	if len(data)-offset < 8 {
		return 0, offset, api.ErrShortBuffer
	}
	return binary.BigEndian.Uint64(data[offset:]), offset + 8, nil
}

func decodeShortstr(data []byte, offset int) (string, int, error) {
	n, offset, err := decodeOctet(data, offset)
	if err != nil {
		return "", offset, err
	}
	if len(data)-offset < int(n) {
		return "", offset, api.ErrShortBuffer
	}
	return string(data[offset : offset+int(n)]), offset + int(n), nil
}

func decodeLongstr(data []byte, offset int) (string, int, error) {
	n, offset, err := decodeLong(data, offset)
	if err != nil {
		return "", offset, err
	}
	if uint32(len(data)-offset) < n {
		return "", offset, api.ErrShortBuffer
	}
	return string(data[offset : offset+int(n)]), offset + int(n), nil
}

// decodeTable parses a field table. Unknown value type tags are a hard
// error: skipping them silently would desynchronize the table layout.
func decodeTable(data []byte, offset int) (Table, int, error) {
	size, offset, err := decodeLong(data, offset)
	if err != nil {
		return nil, offset, err
	}
	if uint32(len(data)-offset) < size {
		return nil, offset, api.ErrShortBuffer
	}
	end := offset + int(size)
	t := Table{}
	for offset < end {
		var key string
		key, offset, err = decodeShortstr(data, offset)
		if err != nil {
			return nil, offset, err
		}
		var val any
		val, offset, err = decodeFieldValue(data, offset)
		if err != nil {
			return nil, offset, err
		}
		t[key] = val
	}
	if offset != end {
		return nil, offset, fmt.Errorf("%w: field table overran declared size", api.ErrFramingViolation)
	}
	return t, offset, nil
}

func decodeFieldValue(data []byte, offset int) (any, int, error) {
	tag, offset, err := decodeOctet(data, offset)
	if err != nil {
		return nil, offset, err
	}
	switch tag {
	case 't':
		b, off, err := decodeOctet(data, offset)
		return b != 0, off, err
	case 'b':
		b, off, err := decodeOctet(data, offset)
		return int8(b), off, err
	case 'I':
		v, off, err := decodeLong(data, offset)
		return int32(v), off, err
	case 'l':
		v, off, err := decodeLonglong(data, offset)
		return int64(v), off, err
	case 'T':
		v, off, err := decodeLonglong(data, offset)
		return v, off, err
	case 'S':
		return decodeLongstr(data, offset)
	case 'F':
		return decodeTable(data, offset)
	case 'V':
		return nil, offset, nil
	default:
		return nil, offset, fmt.Errorf("%w: 0x%02X", api.ErrUnknownFieldType, tag)
	}
}

func appendOctet(dst []byte, v byte) []byte {
	return append(dst, v)
}

func appendShort(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

func appendLong(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

func appendLonglong(dst []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, v)
}

// appendShortstr panics on strings over 255 bytes: method encoders only
// feed it protocol identifiers and caller-validated strings.
func appendShortstr(dst []byte, s string) []byte {
	if len(s) > 255 {
		panic(api.ErrStringTooLong)
	}
	dst = append(dst, byte(len(s)))
	return append(dst, s...)
}

func appendLongstr(dst []byte, s string) []byte {
	dst = appendLong(dst, uint32(len(s)))
	return append(dst, s...)
}

func appendTable(dst []byte, t Table) []byte {
	sizeAt := len(dst)
	dst = appendLong(dst, 0)
	start := len(dst)
	for key, val := range t {
		dst = appendShortstr(dst, key)
		dst = appendFieldValue(dst, val)
	}
	binary.BigEndian.PutUint32(dst[sizeAt:], uint32(len(dst)-start))
	return dst
}

func appendFieldValue(dst []byte, val any) []byte {
	switch v := val.(type) {
	case bool:
		dst = appendOctet(dst, 't')
		if v {
			return appendOctet(dst, 1)
		}
		return appendOctet(dst, 0)
	case int8:
		return appendOctet(appendOctet(dst, 'b'), byte(v))
	case int32:
		return appendLong(appendOctet(dst, 'I'), uint32(v))
	case int64:
		return appendLonglong(appendOctet(dst, 'l'), uint64(v))
	case uint64:
		return appendLonglong(appendOctet(dst, 'T'), v)
	case string:
		return appendLongstr(appendOctet(dst, 'S'), v)
	case Table:
		return appendTable(appendOctet(dst, 'F'), v)
	case nil:
		return appendOctet(dst, 'V')
	default:
		panic(fmt.Sprintf("unsupported field table value type %T", val))
	}
}
