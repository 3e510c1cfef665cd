// Package flatskip implements a read-mostly ordered index over sorted data laid
// out in a flat, append-only record store.
//
// The sorted input is cut into segments whose lengths double: position p starts a
// segment when p+1 is a power of two. A search probes the first record of each
// segment to pick one, then walks that segment record by record. Records refer to
// their successor by position, never by pointer, so an index can be written out
// and loaded back verbatim.
//
// An index is immutable once built and safe for concurrent readers.
package flatskip

import (
	"cmp"
	"iter"

	"github.com/metailurini/flatskip/codec"
	"github.com/metailurini/flatskip/store"
)

// SkipMap is an immutable sorted map stored as linked records in a flat store.
//
// The zero value is an empty map: searches report absent and iteration yields
// nothing. Only Build and Load produce maps that can be written as snapshots.
type SkipMap[K, V any] struct {
	records store.Store
	// entries holds the first position of every segment, ascending.
	entries []uint32
	keys    codec.Codec[K]
	values  codec.Codec[V]
	compare func(a, b K) int
	metrics *Metrics
	logger  *Logger
	opts    options
}

// Segment describes one run of linked records.
type Segment struct {
	Start uint32
	Len   int
}

func newSkipMap[K, V any](keys codec.Codec[K], values codec.Codec[V], compare func(a, b K) int, o options) *SkipMap[K, V] {
	return &SkipMap[K, V]{
		keys:    keys,
		values:  values,
		compare: compare,
		metrics: o.metrics,
		logger:  o.logger,
		opts:    o,
	}
}

// BuildOrdered is Build for naturally ordered keys.
func BuildOrdered[K cmp.Ordered, V any](seq iter.Seq2[K, V], keys codec.Codec[K], values codec.Codec[V], opts ...Option) (*SkipMap[K, V], error) {
	return Build(seq, keys, values, cmp.Compare[K], opts...)
}

// Len returns the number of records.
func (m *SkipMap[K, V]) Len() int {
	if m.records == nil {
		return 0
	}
	return m.records.Len()
}

// IsEmpty reports whether the map holds no records.
func (m *SkipMap[K, V]) IsEmpty() bool { return m.Len() == 0 }

// EntryPoints returns a copy of the entry table.
func (m *SkipMap[K, V]) EntryPoints() []uint32 {
	return append([]uint32(nil), m.entries...)
}

// Segments returns the layout of every segment in position order.
func (m *SkipMap[K, V]) Segments() []Segment {
	segs := make([]Segment, len(m.entries))
	for i, start := range m.entries {
		end := uint32(m.Len())
		if i+1 < len(m.entries) {
			end = m.entries[i+1]
		}
		segs[i] = Segment{Start: start, Len: int(end - start)}
	}
	return segs
}

// Stats returns the counters of the metrics this map records into.
func (m *SkipMap[K, V]) Stats() Stats { return m.metrics.Stats() }

// Metrics returns the counters this map records into.
func (m *SkipMap[K, V]) Metrics() *Metrics { return m.metrics }

// Get returns the key and value at position pos. ok is false when pos is out of
// range or the record cannot be decoded.
func (m *SkipMap[K, V]) Get(pos int) (key K, value V, ok bool) {
	key, value, err := m.At(pos)
	return key, value, err == nil
}

// At is Get with the failure reason: ErrOutOfRange or a *DecodeError.
func (m *SkipMap[K, V]) At(pos int) (K, V, error) {
	var (
		zk K
		zv V
	)
	if pos < 0 || pos >= m.Len() {
		return zk, zv, ErrOutOfRange
	}
	m.metrics.incRead()
	l, err := m.readLink(uint32(pos))
	if err != nil {
		return zk, zv, err
	}
	return l.key, l.value, nil
}

// Find returns the position and value of a record whose key equals key.
func (m *SkipMap[K, V]) Find(key K) (uint32, V, bool) {
	pos, v, err := m.Lookup(key)
	return pos, v, err == nil
}

// FindBy searches with a custom comparator. fn reports how a stored key orders
// relative to the one sought: negative when it comes before, zero on a match,
// positive when it comes after. fn must be monotone over the stored order, so it
// can search by a field derived from the key.
func (m *SkipMap[K, V]) FindBy(fn func(candidate K) int) (uint32, V, bool) {
	pos, v, err := m.LookupBy(fn)
	return pos, v, err == nil
}

// Lookup is Find with the failure reason: ErrNotFound or a *DecodeError.
func (m *SkipMap[K, V]) Lookup(key K) (uint32, V, error) {
	return m.LookupBy(func(candidate K) int { return m.compare(candidate, key) })
}

// LookupBy is FindBy with the failure reason: ErrNotFound or a *DecodeError.
func (m *SkipMap[K, V]) LookupBy(fn func(candidate K) int) (uint32, V, error) {
	return m.findBy(fn)
}

// All yields every record in key order. It stops early at a record that cannot
// be decoded; use Iterator to observe that error.
func (m *SkipMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for p := range m.Len() {
			k, v, err := m.At(p)
			if err != nil || !yield(k, v) {
				return
			}
		}
	}
}

// Keys yields every key in order.
func (m *SkipMap[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

func (m *SkipMap[K, V]) readRaw(pos uint32) (rawLink, error) {
	b, ok := m.records.Get(int(pos))
	if !ok {
		return rawLink{}, m.decodeFailed(pos, ErrOutOfRange)
	}
	r, err := splitLink(b)
	if err != nil {
		return r, m.decodeFailed(pos, err)
	}
	return r, nil
}

func (m *SkipMap[K, V]) readLink(pos uint32) (link[K, V], error) {
	b, ok := m.records.Get(int(pos))
	if !ok {
		return link[K, V]{}, m.decodeFailed(pos, ErrOutOfRange)
	}
	l, err := decodeLink(b, m.keys, m.values)
	if err != nil {
		return l, m.decodeFailed(pos, err)
	}
	return l, nil
}

func (m *SkipMap[K, V]) decodeKey(pos uint32, b []byte) (K, error) {
	k, err := m.keys.Decode(b)
	if err != nil {
		return k, m.decodeFailed(pos, err)
	}
	return k, nil
}

func (m *SkipMap[K, V]) decodeValue(pos uint32, b []byte) (V, error) {
	v, err := m.values.Decode(b)
	if err != nil {
		return v, m.decodeFailed(pos, err)
	}
	return v, nil
}

func (m *SkipMap[K, V]) decodeFailed(pos uint32, err error) error {
	m.metrics.incDecodeFailure()
	m.logger.logDecodeFailure(pos, err)
	return &DecodeError{Pos: pos, cause: err}
}
