package flatskip

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Lookup when no record matches.
	ErrNotFound = errors.New("flatskip: not found")
	// ErrOutOfRange is returned by At for positions outside [0, Len()).
	ErrOutOfRange = errors.New("flatskip: position out of range")
	// ErrCorruptRecord marks a stored record whose bytes cannot be decoded.
	ErrCorruptRecord = errors.New("flatskip: corrupt record")
	// ErrUnsorted is returned by construction with sort validation enabled when a
	// key is smaller than its predecessor.
	ErrUnsorted = errors.New("flatskip: input not sorted")
	// ErrTooLarge is returned when the input has more records than a uint32
	// position can address.
	ErrTooLarge = errors.New("flatskip: too many records")
	// ErrCorruptSnapshot is returned when a snapshot fails validation.
	ErrCorruptSnapshot = errors.New("flatskip: corrupt snapshot")
	// ErrCodecMismatch is returned when a snapshot was written with different codecs.
	ErrCodecMismatch = errors.New("flatskip: codec mismatch")
)

// DecodeError reports a record that could not be read back.
//
// errors.Is(err, ErrCorruptRecord) holds for every DecodeError; the underlying
// codec or framing error is reachable as well.
type DecodeError struct {
	Pos   uint32
	cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("flatskip: decode record %d: %v", e.Pos, e.cause)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrCorruptRecord, e.cause} }
