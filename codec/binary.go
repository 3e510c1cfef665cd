package codec

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Uint64 encodes unsigned integers as uvarints.
type Uint64 struct{}

func (Uint64) Encode(v uint64) ([]byte, error) {
	return binary.AppendUvarint(nil, v), nil
}

func (Uint64) Decode(data []byte) (uint64, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 || n != len(data) {
		return 0, malformed("uint64", "bad uvarint of %d bytes", len(data))
	}
	return v, nil
}

func (Uint64) Name() string { return "uint64" }

// Uint32 encodes unsigned 32-bit integers as 4 little-endian bytes.
type Uint32 struct{}

func (Uint32) Encode(v uint32) ([]byte, error) {
	return binary.LittleEndian.AppendUint32(nil, v), nil
}

func (Uint32) Decode(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, malformed("uint32", "expected 4 bytes, got %d", len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}

func (Uint32) Name() string { return "uint32" }

// Int64 encodes signed integers as zig-zag varints.
type Int64 struct{}

func (Int64) Encode(v int64) ([]byte, error) {
	return binary.AppendVarint(nil, v), nil
}

func (Int64) Decode(data []byte) (int64, error) {
	v, n := binary.Varint(data)
	if n <= 0 || n != len(data) {
		return 0, malformed("int64", "bad varint of %d bytes", len(data))
	}
	return v, nil
}

func (Int64) Name() string { return "int64" }

// Int encodes platform ints with the Int64 wire format.
type Int struct{}

func (Int) Encode(v int) ([]byte, error) { return Int64{}.Encode(int64(v)) }

func (Int) Decode(data []byte) (int, error) {
	v, err := Int64{}.Decode(data)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt || v < math.MinInt {
		return 0, malformed("int", "value %d overflows int", v)
	}
	return int(v), nil
}

func (Int) Name() string { return "int" }

// Float64 encodes IEEE-754 bits as 8 little-endian bytes.
type Float64 struct{}

func (Float64) Encode(v float64) ([]byte, error) {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v)), nil
}

func (Float64) Decode(data []byte) (float64, error) {
	if len(data) != 8 {
		return 0, malformed("float64", "expected 8 bytes, got %d", len(data))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
}

func (Float64) Name() string { return "float64" }

// String stores the raw UTF-8 bytes; the record framing carries the length.
type String struct{}

func (String) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (String) Decode(data []byte) (string, error) { return string(data), nil }

func (String) Name() string { return "string" }

// Bytes stores byte slices verbatim. Decode returns a copy, never a view into
// the record store.
type Bytes struct{}

func (Bytes) Encode(v []byte) ([]byte, error) { return v, nil }

func (Bytes) Decode(data []byte) ([]byte, error) { return bytes.Clone(data), nil }

func (Bytes) Name() string { return "bytes" }
