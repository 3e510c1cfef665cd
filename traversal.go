package flatskip

import "fmt"

type searchPhase uint8

const (
	phaseEntry searchPhase = iota
	phaseSegment
)

func (m *SkipMap[K, V]) fetchKey(phase searchPhase, pos uint32) (K, rawLink, error) {
	if fetchHook != nil {
		fetchHook(phase, pos)
	}
	var zero K
	r, err := m.readRaw(pos)
	if err != nil {
		return zero, r, err
	}
	k, err := m.decodeKey(pos, r.key)
	return k, r, err
}

// successor validates r.next as the link leaving pos. Construction only produces
// p+1 or 0, anything else would let a walk loop or leave the store.
func (m *SkipMap[K, V]) successor(pos uint32, r rawLink) (uint32, error) {
	if r.next != 0 && (r.next <= pos || int(r.next) >= m.Len()) {
		return 0, m.decodeFailed(pos, fmt.Errorf("%w: next %d", ErrCorruptRecord, r.next))
	}
	return r.next, nil
}

// findBy runs the two-phase search. The entry scan picks the last segment whose
// first key orders before the target; the walk then follows next pointers within
// that segment until fn reports a match, overshoots or the segment ends.
func (m *SkipMap[K, V]) findBy(fn func(K) int) (pos uint32, value V, err error) {
	var probes, steps int64
	defer func() { m.metrics.observeSearch(probes, steps, err == nil) }()

	var (
		from  uint32
		found bool
	)
	for _, ep := range m.entries {
		probes++
		k, r, err := m.fetchKey(phaseEntry, ep)
		if err != nil {
			return 0, value, err
		}
		c := fn(k)
		if c == 0 {
			value, err = m.decodeValue(ep, r.value)
			return ep, value, err
		}
		if c > 0 {
			break
		}
		if from, err = m.successor(ep, r); err != nil {
			return 0, value, err
		}
		found = true
	}
	if !found {
		return 0, value, ErrNotFound
	}

	// The entry record itself already compared below the target, so the walk
	// resumes at its successor.
	for p := from; p != 0; {
		steps++
		k, r, err := m.fetchKey(phaseSegment, p)
		if err != nil {
			return 0, value, err
		}
		c := fn(k)
		if c == 0 {
			value, err = m.decodeValue(p, r.value)
			return p, value, err
		}
		if c > 0 {
			break
		}
		if p, err = m.successor(p, r); err != nil {
			return 0, value, err
		}
	}
	return 0, value, ErrNotFound
}

// lowerBound returns the first position whose key fn does not order before the
// target, or Len() when every key does.
func (m *SkipMap[K, V]) lowerBound(fn func(K) int) (uint32, error) {
	bound := uint32(m.Len())
	var (
		from  uint32
		found bool
	)
	for _, ep := range m.entries {
		k, r, err := m.fetchKey(phaseEntry, ep)
		if err != nil {
			return 0, err
		}
		if fn(k) >= 0 {
			bound = ep
			break
		}
		if from, err = m.successor(ep, r); err != nil {
			return 0, err
		}
		found = true
	}
	if !found {
		return bound, nil
	}
	for p := from; p != 0; {
		k, r, err := m.fetchKey(phaseSegment, p)
		if err != nil {
			return 0, err
		}
		if fn(k) >= 0 {
			return p, nil
		}
		if p, err = m.successor(p, r); err != nil {
			return 0, err
		}
	}
	return bound, nil
}
