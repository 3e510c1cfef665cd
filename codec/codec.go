// Package codec turns keys and values into the byte records stored by the index
// and back.
//
// A codec's Name is written into every snapshot header. Loading a snapshot with a
// codec of a different name is rejected, so renaming a codec is a breaking change
// for persisted data.
package codec

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned (wrapped) when bytes cannot be decoded into a value.
var ErrMalformed = errors.New("codec: malformed input")

// Codec encodes and decodes values of type T.
// Implementations must be safe for concurrent use and satisfy
// Decode(Encode(v)) == v for every value they accept.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
	Name() string
}

// Unit is the empty value carried by set-like indexes.
type Unit struct{}

// UnitCodec encodes Unit as zero bytes.
type UnitCodec struct{}

func (UnitCodec) Encode(Unit) ([]byte, error) { return nil, nil }

func (UnitCodec) Decode(data []byte) (Unit, error) {
	if len(data) != 0 {
		return Unit{}, malformed("unit", "expected 0 bytes, got %d", len(data))
	}
	return Unit{}, nil
}

func (UnitCodec) Name() string { return "unit" }

func malformed(codec, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, codec, fmt.Sprintf(format, args...))
}
