// Package memtable is a single-threaded, pointer-based skip list used to stage
// unsorted writes before they are laid out as a flat index.
package memtable

import (
	"iter"
	"math/bits"
	randv2 "math/rand/v2"
)

// Config holds the skip list shape.
type Config struct {
	// maxLevel is maximum height of the skip list
	maxLevel int

	// p is probability for level promotion
	p float64
}

// NewConfig creates a Config with default values.
func NewConfig() Config {
	return Config{
		maxLevel: 32,
		p:        0.5,
	}
}

// WithMaxLevel sets the maximum height of the skip list.
func WithMaxLevel(maxLevel int) func(*Config) {
	return func(c *Config) { c.maxLevel = max(maxLevel, 1) }
}

// WithP sets the probability for level promotion.
func WithP(p float64) func(*Config) {
	return func(c *Config) { c.p = p }
}

type node[K, V any] struct {
	key      K
	value    V
	forwards []*node[K, V]
}

// Table is an ordered map. The zero value is not usable; call New.
type Table[K, V any] struct {
	level   int
	length  int
	head    *node[K, V]
	compare func(a, b K) int
	config  Config
	rng     randv2.Source
}

// New returns an empty table ordered by compare.
func New[K, V any](compare func(a, b K) int, opts ...func(*Config)) *Table[K, V] {
	cfg := NewConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Table[K, V]{
		level:   1,
		head:    &node[K, V]{forwards: make([]*node[K, V], cfg.maxLevel)},
		compare: compare,
		config:  cfg,
		rng:     randv2.NewPCG(randv2.Uint64(), randv2.Uint64()),
	}
}

// Put inserts or replaces the value for key and reports whether it replaced one.
func (t *Table[K, V]) Put(key K, value V) bool {
	update := make([]*node[K, V], t.config.maxLevel)
	rn := t.head
	for l := t.level - 1; l >= 0; l-- {
		for rn.forwards[l] != nil && t.compare(rn.forwards[l].key, key) < 0 {
			rn = rn.forwards[l]
		}
		update[l] = rn
	}

	if next := rn.forwards[0]; next != nil && t.compare(next.key, key) == 0 {
		next.value = value
		return true
	}

	newLevel := t.randomLevel()
	if newLevel > t.level {
		for l := t.level; l < newLevel; l++ {
			update[l] = t.head
		}
		t.level = newLevel
	}
	n := &node[K, V]{key: key, value: value, forwards: make([]*node[K, V], newLevel)}
	for l := range newLevel {
		n.forwards[l] = update[l].forwards[l]
		update[l].forwards[l] = n
	}
	t.length++
	return false
}

// Get returns the value stored for key.
func (t *Table[K, V]) Get(key K) (V, bool) {
	rn := t.head
	for l := t.level - 1; l >= 0; l-- {
		for rn.forwards[l] != nil && t.compare(rn.forwards[l].key, key) < 0 {
			rn = rn.forwards[l]
		}
	}
	if next := rn.forwards[0]; next != nil && t.compare(next.key, key) == 0 {
		return next.value, true
	}
	var zero V
	return zero, false
}

// Len returns the number of keys.
func (t *Table[K, V]) Len() int { return t.length }

// All yields every entry in ascending key order.
func (t *Table[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for n := t.head.forwards[0]; n != nil; n = n.forwards[0] {
			if !yield(n.key, n.value) {
				return
			}
		}
	}
}

// Clear removes every entry.
func (t *Table[K, V]) Clear() {
	t.head = &node[K, V]{forwards: make([]*node[K, V], t.config.maxLevel)}
	t.level = 1
	t.length = 0
}

const float64Unit = 1.0 / (1 << 53)

func (t *Table[K, V]) randomLevel() int {
	lvl := 1
	maxLevel := t.config.maxLevel
	if maxLevel <= 1 {
		return lvl
	}

	if t.config.p == 0.5 {
		return min(lvl+bits.TrailingZeros64(t.rng.Uint64()), maxLevel)
	}

	for lvl < maxLevel {
		if float64(t.rng.Uint64()>>11)*float64Unit >= t.config.p {
			break
		}
		lvl++
	}
	return lvl
}
