package flatskip

import (
	"github.com/metailurini/flatskip/codec"
	"github.com/metailurini/flatskip/internal/memtable"
)

// Builder stages writes in any order and lays them out as a SkipMap on Build.
// A later Put for an existing key replaces its value. Builder is not safe for
// concurrent use.
type Builder[K, V any] struct {
	table   *memtable.Table[K, V]
	keys    codec.Codec[K]
	values  codec.Codec[V]
	compare func(a, b K) int
	opts    []Option
}

// NewBuilder returns an empty Builder. opts are passed to Build.
func NewBuilder[K, V any](keys codec.Codec[K], values codec.Codec[V], compare func(a, b K) int, opts ...Option) *Builder[K, V] {
	return &Builder[K, V]{
		table:   memtable.New[K, V](compare),
		keys:    keys,
		values:  values,
		compare: compare,
		opts:    opts,
	}
}

// Put stages key with value and reports whether it replaced an earlier value.
func (b *Builder[K, V]) Put(key K, value V) bool {
	return b.table.Put(key, value)
}

// Len returns the number of distinct keys staged.
func (b *Builder[K, V]) Len() int { return b.table.Len() }

// Build lays out the staged entries in ascending key order. The Builder keeps
// its contents and can be built again.
func (b *Builder[K, V]) Build() (*SkipMap[K, V], error) {
	return Build(b.table.All(), b.keys, b.values, b.compare, b.opts...)
}

// Reset drops every staged entry.
func (b *Builder[K, V]) Reset() { b.table.Clear() }
