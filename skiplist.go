package flatskip

import (
	"cmp"
	"io"
	"iter"

	"github.com/metailurini/flatskip/codec"
)

// SkipList is a sorted set: a SkipMap whose values are codec.Unit.
type SkipList[K any] struct {
	m *SkipMap[K, codec.Unit]
}

func withUnit[K any](seq iter.Seq[K]) iter.Seq2[K, codec.Unit] {
	return func(yield func(K, codec.Unit) bool) {
		for k := range seq {
			if !yield(k, codec.Unit{}) {
				return
			}
		}
	}
}

// BuildList creates a SkipList from keys in non-decreasing order under compare.
func BuildList[K any](seq iter.Seq[K], keys codec.Codec[K], compare func(a, b K) int, opts ...Option) (*SkipList[K], error) {
	m, err := Build(withUnit(seq), keys, codec.UnitCodec{}, compare, opts...)
	if err != nil {
		return nil, err
	}
	return &SkipList[K]{m: m}, nil
}

// BuildOrderedList is BuildList for naturally ordered keys.
func BuildOrderedList[K cmp.Ordered](seq iter.Seq[K], keys codec.Codec[K], opts ...Option) (*SkipList[K], error) {
	return BuildList(seq, keys, cmp.Compare[K], opts...)
}

// LoadList reads a snapshot written by (*SkipList).WriteTo.
func LoadList[K any](r io.Reader, keys codec.Codec[K], compare func(a, b K) int, opts ...Option) (*SkipList[K], error) {
	m, err := Load(r, keys, codec.UnitCodec{}, compare, opts...)
	if err != nil {
		return nil, err
	}
	return &SkipList[K]{m: m}, nil
}

func (l *SkipList[K]) Len() int { return l.m.Len() }

func (l *SkipList[K]) IsEmpty() bool { return l.m.IsEmpty() }

func (l *SkipList[K]) EntryPoints() []uint32 { return l.m.EntryPoints() }

func (l *SkipList[K]) Segments() []Segment { return l.m.Segments() }

func (l *SkipList[K]) Stats() Stats { return l.m.Stats() }

// Get returns the key at pos.
func (l *SkipList[K]) Get(pos int) (K, bool) {
	k, _, ok := l.m.Get(pos)
	return k, ok
}

// At is Get with the failure reason.
func (l *SkipList[K]) At(pos int) (K, error) {
	k, _, err := l.m.At(pos)
	return k, err
}

// Find returns the position of key.
func (l *SkipList[K]) Find(key K) (uint32, bool) {
	pos, _, ok := l.m.Find(key)
	return pos, ok
}

// FindBy searches with a custom comparator; see SkipMap.FindBy.
func (l *SkipList[K]) FindBy(fn func(candidate K) int) (uint32, bool) {
	pos, _, ok := l.m.FindBy(fn)
	return pos, ok
}

// Lookup is Find with the failure reason.
func (l *SkipList[K]) Lookup(key K) (uint32, error) {
	pos, _, err := l.m.Lookup(key)
	return pos, err
}

// Contains reports whether key is present.
func (l *SkipList[K]) Contains(key K) bool {
	_, ok := l.Find(key)
	return ok
}

// All yields the keys in order.
func (l *SkipList[K]) All() iter.Seq[K] { return l.m.Keys() }

// Iterator returns an iterator positioned before the first key. Its Value is
// always codec.Unit{}.
func (l *SkipList[K]) Iterator() *Iterator[K, codec.Unit] { return l.m.Iterator() }

func (l *SkipList[K]) WriteTo(w io.Writer) (int64, error) { return l.m.WriteTo(w) }

func (l *SkipList[K]) MarshalBinary() ([]byte, error) { return l.m.MarshalBinary() }
