package flatskip

// Iterator walks an index in position order, which is key order. Every step is
// an independent positional read, so any number of iterators can run at once.
type Iterator[K, V any] struct {
	m     *SkipMap[K, V]
	pos   int
	key   K
	value V
	valid bool
	err   error
}

// Iterator returns a new iterator positioned before the first record.
func (m *SkipMap[K, V]) Iterator() *Iterator[K, V] {
	return &Iterator[K, V]{m: m}
}

// Valid reports whether the iterator currently points at a record.
func (it *Iterator[K, V]) Valid() bool {
	if it == nil {
		return false
	}
	return it.valid
}

// Key returns the key at the iterator's current position.
// It should only be called when Valid reports true.
func (it *Iterator[K, V]) Key() K {
	var zero K
	if it == nil || !it.valid {
		return zero
	}
	return it.key
}

// Value returns the value at the iterator's current position.
// It should only be called when Valid reports true.
func (it *Iterator[K, V]) Value() V {
	var zero V
	if it == nil || !it.valid {
		return zero
	}
	return it.value
}

// Position returns the store position of the current record, or -1.
func (it *Iterator[K, V]) Position() int {
	if it == nil || !it.valid {
		return -1
	}
	return it.pos - 1
}

// Err returns the decode error that stopped the iteration, if any.
func (it *Iterator[K, V]) Err() error {
	if it == nil {
		return nil
	}
	return it.err
}

// Next advances to the next record and reports whether there is one. The first
// call moves to the first record.
func (it *Iterator[K, V]) Next() bool {
	if it == nil || it.m == nil || it.err != nil {
		return false
	}
	if it.pos >= it.m.Len() {
		it.invalidate()
		return false
	}
	k, v, err := it.m.At(it.pos)
	if err != nil {
		it.err = err
		it.invalidate()
		return false
	}
	it.pos++
	it.key, it.value, it.valid = k, v, true
	return true
}

// SeekGE positions the iterator at the first record whose key is greater than
// or equal to key. It returns true if such a record exists; Next then continues
// from there.
func (it *Iterator[K, V]) SeekGE(key K) bool {
	if it == nil || it.m == nil {
		return false
	}
	it.invalidate()
	it.err = nil
	pos, err := it.m.lowerBound(func(candidate K) int { return it.m.compare(candidate, key) })
	if err != nil {
		it.err = err
		return false
	}
	it.pos = int(pos)
	return it.Next()
}

// Reset moves the iterator back before the first record.
func (it *Iterator[K, V]) Reset() {
	if it == nil {
		return
	}
	it.invalidate()
	it.pos = 0
	it.err = nil
}

func (it *Iterator[K, V]) invalidate() {
	it.valid = false
	var zeroK K
	var zeroV V
	it.key = zeroK
	it.value = zeroV
}
