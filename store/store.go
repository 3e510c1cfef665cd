// Package store provides the flat, append-only record store the index is laid
// out in. Records are addressed by their insertion index, starting at 0; an
// index is never reused or reassigned.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrFull is returned when a store cannot address another record.
	ErrFull = errors.New("store: record limit reached")
	// ErrTruncated is returned when a serialized store ends early.
	ErrTruncated = errors.New("store: truncated input")
)

// Store is an append-only sequence of byte records.
type Store interface {
	// Insert appends a record and returns its index. rec may be reused by the
	// caller once Insert returns, so the store keeps its own copy.
	Insert(rec []byte) (int, error)
	// Get returns the record at index i. The returned slice must not be modified.
	Get(i int) ([]byte, bool)
	// Len returns the number of stored records.
	Len() int
}

// Memory keeps every record in one contiguous arena. The zero value is ready to use.
//
// Concurrent Get calls are safe once all inserts are done.
type Memory struct {
	data []byte
	// ends[i] is the arena offset one past record i.
	ends []uint32
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store with room for n records of about recSize bytes.
func NewMemory(n, recSize int) *Memory {
	return &Memory{
		data: make([]byte, 0, n*recSize),
		ends: make([]uint32, 0, n),
	}
}

func (m *Memory) Insert(rec []byte) (int, error) {
	if len(m.ends) == math.MaxUint32 || uint64(len(m.data))+uint64(len(rec)) > math.MaxUint32 {
		return 0, ErrFull
	}
	m.data = append(m.data, rec...)
	m.ends = append(m.ends, uint32(len(m.data)))
	return len(m.ends) - 1, nil
}

func (m *Memory) Get(i int) ([]byte, bool) {
	if i < 0 || i >= len(m.ends) {
		return nil, false
	}
	var start uint32
	if i > 0 {
		start = m.ends[i-1]
	}
	end := m.ends[i]
	return m.data[start:end:end], true
}

func (m *Memory) Len() int { return len(m.ends) }

// Size returns the number of record bytes held, excluding bookkeeping.
func (m *Memory) Size() int { return len(m.data) }

// AppendRecords appends every record of s to dst as uvarint length + bytes.
func AppendRecords(dst []byte, s Store) []byte {
	for i := range s.Len() {
		rec, _ := s.Get(i)
		dst = binary.AppendUvarint(dst, uint64(len(rec)))
		dst = append(dst, rec...)
	}
	return dst
}

// ReadRecords parses count records written by AppendRecords from b into a new
// Memory store. It returns the number of bytes consumed.
func ReadRecords(b []byte, count int) (*Memory, int, error) {
	if count < 0 || count > len(b) {
		// Every record costs at least its length byte.
		return nil, 0, fmt.Errorf("%w: %d records in %d bytes", ErrTruncated, count, len(b))
	}
	m := &Memory{
		data: make([]byte, 0, len(b)-count),
		ends: make([]uint32, 0, count),
	}
	off := 0
	for i := range count {
		l, n := binary.Uvarint(b[off:])
		if n <= 0 {
			return nil, 0, fmt.Errorf("%w: record %d length", ErrTruncated, i)
		}
		off += n
		if l > uint64(len(b)-off) {
			return nil, 0, fmt.Errorf("%w: record %d wants %d bytes, %d left", ErrTruncated, i, l, len(b)-off)
		}
		if _, err := m.Insert(b[off : off+int(l)]); err != nil {
			return nil, 0, err
		}
		off += int(l)
	}
	return m, off, nil
}

// WriteTo writes the records in AppendRecords form, preceded by a uint32 count.
func (m *Memory) WriteTo(w io.Writer) (int64, error) {
	buf := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+len(m.data)+len(m.ends)), uint32(len(m.ends)))
	buf = AppendRecords(buf, m)
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadFrom replaces the contents of m with records written by WriteTo.
func (m *Memory) ReadFrom(r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return int64(len(b)), err
	}
	if len(b) < 4 {
		return int64(len(b)), ErrTruncated
	}
	loaded, _, err := ReadRecords(b[4:], int(binary.LittleEndian.Uint32(b)))
	if err != nil {
		return int64(len(b)), err
	}
	*m = *loaded
	return int64(len(b)), nil
}
