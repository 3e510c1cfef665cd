package flatskip

import (
	"fmt"
	"iter"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/metailurini/flatskip/codec"
)

// parallelEncodeThreshold is the smallest input worth splitting across workers.
const parallelEncodeThreshold = 4096

// Build creates a SkipMap from seq, which must yield keys in non-decreasing order
// under compare. The order is trusted unless WithSortValidation is given; an
// unsorted input silently produces an index whose searches are unreliable.
func Build[K, V any](seq iter.Seq2[K, V], keys codec.Codec[K], values codec.Codec[V], compare func(a, b K) int, opts ...Option) (*SkipMap[K, V], error) {
	o := applyOptions(opts)
	m := newSkipMap(keys, values, compare, o)

	links, entries, err := linkSorted(seq, compare, o.validateSort)
	if err != nil {
		o.logger.logBuild(len(links), len(entries), 0, err)
		return nil, err
	}

	m.records = o.newStore(len(links))
	m.entries = entries
	if err := m.appendLinks(links, o.encodeWorkers); err != nil {
		o.logger.logBuild(len(links), len(entries), 0, err)
		return nil, err
	}

	size := 0
	if sz, ok := m.records.(interface{ Size() int }); ok {
		size = sz.Size()
	}
	o.logger.logBuild(len(links), len(entries), size, nil)
	return m, nil
}

// Entry is one key/value pair of a BuildFromSlice input.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// BuildFromSlice is Build over a slice of entries sorted by key.
func BuildFromSlice[K, V any](entries []Entry[K, V], keys codec.Codec[K], values codec.Codec[V], compare func(a, b K) int, opts ...Option) (*SkipMap[K, V], error) {
	return Build[K, V](func(yield func(K, V) bool) {
		for _, e := range entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}, keys, values, compare, opts...)
}

// linkSorted assigns positions and successor pointers. Position p opens a new
// segment when p+1 is a power of two; the record before it is then closed with
// the terminator, as is the very last record.
func linkSorted[K, V any](seq iter.Seq2[K, V], compare func(a, b K) int, validate bool) ([]link[K, V], []uint32, error) {
	var (
		links   []link[K, V]
		entries []uint32
	)
	for k, v := range seq {
		if uint64(len(links)) >= math.MaxUint32 {
			return nil, nil, fmt.Errorf("%w: more than %d", ErrTooLarge, uint64(math.MaxUint32))
		}
		pos := uint32(len(links))
		if validate && pos > 0 && compare(links[pos-1].key, k) > 0 {
			return nil, nil, fmt.Errorf("%w: key at position %d orders before its predecessor", ErrUnsorted, pos)
		}
		if isEntryPoint(pos) {
			entries = append(entries, pos)
			if pos > 0 {
				links[pos-1].next = 0
			}
		}
		links = append(links, link[K, V]{key: k, value: v, next: pos + 1})
	}
	if n := len(links); n > 0 {
		links[n-1].next = 0
	}
	return links, entries, nil
}

func (m *SkipMap[K, V]) appendLinks(links []link[K, V], workers int) error {
	if workers <= 1 || len(links) < parallelEncodeThreshold {
		buf := acquireBuffer()
		defer releaseBuffer(buf)
		for i := range links {
			b, err := encodeLink((*buf)[:0], m.keys, m.values, &links[i])
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			*buf = b
			if err := m.insert(i, b); err != nil {
				return err
			}
		}
		return nil
	}

	chunks := encodeChunks(len(links), workers)
	encoded := make([]encodedChunk, len(chunks))
	var g errgroup.Group
	g.SetLimit(workers)
	for ci, c := range chunks {
		g.Go(func() error {
			out := &encoded[ci]
			out.ends = make([]int, 0, c.end-c.start)
			for i := c.start; i < c.end; i++ {
				var err error
				if out.data, err = encodeLink(out.data, m.keys, m.values, &links[i]); err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				out.ends = append(out.ends, len(out.data))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for ci, c := range chunks {
		start := 0
		for j, end := range encoded[ci].ends {
			if err := m.insert(c.start+j, encoded[ci].data[start:end]); err != nil {
				return err
			}
			start = end
		}
		encoded[ci] = encodedChunk{}
	}
	return nil
}

type chunkRange struct{ start, end int }

type encodedChunk struct {
	data []byte
	ends []int
}

func encodeChunks(n, workers int) []chunkRange {
	size := (n + workers - 1) / workers
	chunks := make([]chunkRange, 0, workers)
	for start := 0; start < n; start += size {
		chunks = append(chunks, chunkRange{start: start, end: min(start+size, n)})
	}
	return chunks
}

func (m *SkipMap[K, V]) insert(pos int, rec []byte) error {
	idx, err := m.records.Insert(rec)
	if err != nil {
		return fmt.Errorf("store record %d: %w", pos, err)
	}
	if idx != pos {
		return fmt.Errorf("store assigned index %d to position %d", idx, pos)
	}
	return nil
}
