package flatskip

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math/bits"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metailurini/flatskip/codec"
	"github.com/metailurini/flatskip/store"
)

func rangeInts(from, to, step int) []int {
	var out []int
	for i := from; i < to; i += step {
		out = append(out, i)
	}
	return out
}

// buildInts builds a map from sorted keys whose values are the decimal keys.
func buildInts(t testing.TB, keys []int, opts ...Option) *SkipMap[int, string] {
	t.Helper()
	var seq iter.Seq2[int, string] = func(yield func(int, string) bool) {
		for _, k := range keys {
			if !yield(k, fmt.Sprint(k)) {
				return
			}
		}
	}
	m, err := BuildOrdered(seq, codec.Int{}, codec.String{}, opts...)
	require.NoError(t, err)
	return m
}

func TestLettersEntryPointsAndSearch(t *testing.T) {
	letters := []string{"A", "B", "C", "D", "E", "F"}
	m, err := BuildOrderedList(slices.Values(letters), codec.String{})
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 1, 3}, m.EntryPoints())
	assert.Equal(t, []Segment{{Start: 0, Len: 1}, {Start: 1, Len: 2}, {Start: 3, Len: 3}}, m.Segments())

	pos, ok := m.Find("D")
	require.True(t, ok)
	assert.Equal(t, uint32(3), pos)

	_, ok = m.Find("Z")
	assert.False(t, ok)
	_, ok = m.Find("0")
	assert.False(t, ok)

	assert.Equal(t, letters, slices.Collect(m.All()))
}

func TestDenseRangeEveryKeyFound(t *testing.T) {
	keys := rangeInts(0, 5001, 1)
	m := buildInts(t, keys)
	require.Equal(t, 5001, m.Len())

	for _, k := range keys {
		pos, v, ok := m.Find(k)
		if !ok {
			t.Fatalf("key %d not found", k)
		}
		if int(pos) != k || v != fmt.Sprint(k) {
			t.Fatalf("key %d: got position %d value %q", k, pos, v)
		}
	}
	_, _, ok := m.Find(-1)
	assert.False(t, ok)
	_, _, ok = m.Find(5001)
	assert.False(t, ok)
}

func TestEvenKeysOddAbsent(t *testing.T) {
	m := buildInts(t, rangeInts(0, 1000, 2))
	require.Equal(t, 500, m.Len())

	for k := range 1000 {
		pos, _, ok := m.Find(k)
		if k%2 == 1 {
			if ok {
				t.Fatalf("odd key %d reported present at %d", k, pos)
			}
			continue
		}
		if !ok || int(pos) != k/2 {
			t.Fatalf("even key %d: got position %d ok=%v", k, pos, ok)
		}
	}
}

func TestMultiplesOfTen(t *testing.T) {
	m := buildInts(t, rangeInts(0, 1000, 10))

	pos, v, ok := m.Find(550)
	require.True(t, ok)
	assert.Equal(t, uint32(55), pos)
	assert.Equal(t, "550", v)

	_, _, ok = m.Find(555)
	assert.False(t, ok)

	k, v, ok := m.Get(99)
	require.True(t, ok)
	assert.Equal(t, 990, k)
	assert.Equal(t, "990", v)
}

func TestEmptyInput(t *testing.T) {
	m := buildInts(t, nil)

	assert.True(t, m.IsEmpty())
	assert.Empty(t, m.EntryPoints())
	assert.Empty(t, m.Segments())

	_, _, ok := m.Find(0)
	assert.False(t, ok)
	_, _, ok = m.Get(0)
	assert.False(t, ok)
	for range m.All() {
		t.Fatal("empty map yielded a record")
	}
	assert.False(t, m.Iterator().Next())
}

func TestEntryPointPlacement(t *testing.T) {
	for n := range 70 {
		m := buildInts(t, rangeInts(0, n, 1))
		entries := m.EntryPoints()
		require.Equal(t, entryPointsFor(n), entries, "n=%d", n)
		if n > 0 {
			require.Equal(t, uint32(0), entries[0])
			require.Len(t, entries, bits.Len(uint(n)), "n=%d", n)
		}

		total := 0
		for i, seg := range m.Segments() {
			require.Equal(t, 1, bits.OnesCount32(seg.Start+1), "n=%d segment %d", n, i)
			if i < len(entries)-1 {
				require.Equal(t, 1<<i, seg.Len, "n=%d segment %d", n, i)
			}
			total += seg.Len
		}
		require.Equal(t, n, total)

		for p := range n {
			rec, ok := m.records.Get(p)
			require.True(t, ok)
			next, ok := linkNext(rec)
			require.True(t, ok)
			require.Equal(t, expectedNext(uint32(p), n), next, "n=%d p=%d", n, p)
		}
	}
}

func TestLookupAndAtErrors(t *testing.T) {
	m := buildInts(t, []int{1, 2, 3})

	_, _, err := m.Lookup(4)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, pos := range []int{-1, 3, 100} {
		_, _, err := m.At(pos)
		assert.ErrorIs(t, err, ErrOutOfRange, "pos %d", pos)
	}

	k, v, err := m.At(2)
	require.NoError(t, err)
	assert.Equal(t, 3, k)
	assert.Equal(t, "3", v)
}

func TestFindByDerivedField(t *testing.T) {
	m := buildInts(t, rangeInts(0, 1000, 1))

	pos, v, ok := m.FindBy(func(candidate int) int { return cmp.Compare(candidate/10, 42) })
	require.True(t, ok)
	assert.GreaterOrEqual(t, pos, uint32(420))
	assert.LessOrEqual(t, pos, uint32(429))
	assert.Equal(t, fmt.Sprint(pos), v)

	_, _, ok = m.FindBy(func(candidate int) int { return cmp.Compare(candidate/10, 1000) })
	assert.False(t, ok)
}

func TestSortValidation(t *testing.T) {
	unsorted := []int{1, 3, 2}
	var seq iter.Seq2[int, int] = func(yield func(int, int) bool) {
		for _, k := range unsorted {
			if !yield(k, k) {
				return
			}
		}
	}
	_, err := BuildOrdered(seq, codec.Int{}, codec.Int{}, WithSortValidation())
	assert.ErrorIs(t, err, ErrUnsorted)

	m, err := BuildOrdered(seq, codec.Int{}, codec.Int{})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())

	dups := buildInts(t, []int{1, 1, 2, 2, 2}, WithSortValidation())
	assert.Equal(t, 5, dups.Len())
	_, _, ok := dups.Find(2)
	assert.True(t, ok)
}

func TestParallelEncodingMatchesSequential(t *testing.T) {
	keys := rangeInts(0, 3*parallelEncodeThreshold+17, 1)
	seq := buildInts(t, keys)
	par := buildInts(t, keys, WithEncodeConcurrency(4))

	a, err := seq.MarshalBinary()
	require.NoError(t, err)
	b, err := par.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	pos, _, ok := par.Find(9000)
	require.True(t, ok)
	assert.Equal(t, uint32(9000), pos)
}

func TestEncodeChunksCoverInput(t *testing.T) {
	for _, tc := range []struct{ n, workers int }{{10, 3}, {4096, 4}, {5, 8}, {1, 1}} {
		chunks := encodeChunks(tc.n, tc.workers)
		next := 0
		for _, c := range chunks {
			require.Equal(t, next, c.start)
			require.Greater(t, c.end, c.start)
			next = c.end
		}
		require.Equal(t, tc.n, next)
		require.LessOrEqual(t, len(chunks), tc.workers)
	}
}

// oddFails decodes odd integers as errors.
type oddFails struct{ codec.Int }

var errOdd = errors.New("odd value")

func (c oddFails) Decode(b []byte) (int, error) {
	v, err := c.Int.Decode(b)
	if err == nil && v%2 == 1 {
		return 0, errOdd
	}
	return v, err
}

func TestDecodeFailures(t *testing.T) {
	var logs bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	var seq iter.Seq2[int, int] = func(yield func(int, int) bool) {
		for i := range 8 {
			if !yield(i*2, i) {
				return
			}
		}
	}
	m, err := BuildOrdered(seq, codec.Int{}, codec.Codec[int](oddFails{}), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "build completed")

	_, _, ok := m.Get(1)
	assert.False(t, ok)

	_, _, err = m.At(3)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint32(3), de.Pos)
	assert.ErrorIs(t, err, ErrCorruptRecord)
	assert.ErrorIs(t, err, errOdd)

	_, _, err = m.Lookup(6)
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint32(3), de.Pos)

	pos, v, err := m.Lookup(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pos)
	assert.Equal(t, 2, v)

	var seen []int
	for k := range m.All() {
		seen = append(seen, k)
	}
	assert.Equal(t, []int{0}, seen)

	assert.Positive(t, m.Stats().DecodeFailures)
	assert.Contains(t, logs.String(), "record decode failed")
}

// tamperStore rewrites the successor pointer of one record.
type tamperStore struct {
	store.Store
	pos  int
	next uint32
}

func (s *tamperStore) Get(i int) ([]byte, bool) {
	b, ok := s.Store.Get(i)
	if !ok || i != s.pos {
		return b, ok
	}
	out := slices.Clone(b)
	binary.LittleEndian.PutUint32(out[len(out)-4:], s.next)
	return out, true
}

func TestCorruptSuccessorIsReported(t *testing.T) {
	for _, next := range []uint32{1, 3, 100} {
		tamper := WithStore(func(n int) store.Store {
			return &tamperStore{Store: store.NewMemory(n, 8), pos: 3, next: next}
		})
		m := buildInts(t, rangeInts(0, 8, 1), tamper)

		_, _, err := m.Lookup(5)
		var de *DecodeError
		require.ErrorAs(t, err, &de, "next=%d", next)
		assert.Equal(t, uint32(3), de.Pos)
		assert.ErrorIs(t, err, ErrCorruptRecord)

		_, _, ok := m.Find(1)
		assert.True(t, ok, "records outside the tampered segment stay reachable")
	}
}

func TestSearchPhases(t *testing.T) {
	type fetch struct {
		phase searchPhase
		pos   uint32
	}
	var fetches []fetch
	fetchHook = func(phase searchPhase, pos uint32) { fetches = append(fetches, fetch{phase, pos}) }
	t.Cleanup(func() { fetchHook = nil })

	m := buildInts(t, rangeInts(0, 16, 1))
	pos, _, ok := m.Find(10)
	require.True(t, ok)
	require.Equal(t, uint32(10), pos)

	want := []fetch{
		{phaseEntry, 0}, {phaseEntry, 1}, {phaseEntry, 3}, {phaseEntry, 7}, {phaseEntry, 15},
		{phaseSegment, 8}, {phaseSegment, 9}, {phaseSegment, 10},
	}
	assert.Equal(t, want, fetches)

	st := m.Stats()
	assert.Equal(t, int64(1), st.Lookups)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(5), st.EntryProbes)
	assert.Equal(t, int64(3), st.SegmentSteps)

	fetches = nil
	_, _, ok = m.Find(7)
	require.True(t, ok)
	assert.Equal(t, []fetch{{phaseEntry, 0}, {phaseEntry, 1}, {phaseEntry, 3}, {phaseEntry, 7}}, fetches)

	fetches = nil
	_, _, ok = m.Find(-5)
	require.False(t, ok)
	assert.Equal(t, []fetch{{phaseEntry, 0}}, fetches)
	assert.Equal(t, int64(1), m.Stats().Misses())
}

func TestSharedMetrics(t *testing.T) {
	shared := NewMetrics()
	a := buildInts(t, []int{1, 2}, WithMetrics(shared))
	b := buildInts(t, []int{3, 4}, WithMetrics(shared))

	a.Find(1)
	b.Find(4)
	b.Get(0)

	st := shared.Stats()
	assert.Equal(t, int64(2), st.Lookups)
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Reads)
	assert.Same(t, shared, a.Metrics())
}

func TestKeysAndEarlyStop(t *testing.T) {
	m := buildInts(t, rangeInts(0, 10, 1))
	assert.Equal(t, rangeInts(0, 10, 1), slices.Collect(m.Keys()))

	n := 0
	for range m.All() {
		n++
		if n == 4 {
			break
		}
	}
	assert.Equal(t, 4, n)
}

// sortedWithDuplicates returns n sorted keys drawn from a range small enough
// that runs of equal keys cross segment boundaries.
func sortedWithDuplicates(r *rand.Rand, n int) []int {
	keys := make([]int, n)
	for i := range keys {
		keys[i] = r.IntN(n/2+1) * 2
	}
	slices.Sort(keys)
	return keys
}

func TestSearchMatchesBinarySearchWithDuplicates(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for n := 0; n <= 300; n++ {
		keys := sortedWithDuplicates(r, n)
		m := buildInts(t, keys)
		it := m.Iterator()

		for target := -1; target <= n+2; target++ {
			lower, present := slices.BinarySearch(keys, target)

			for range 2 {
				pos, v, ok := m.Find(target)
				require.Equal(t, present, ok, "n=%d Find(%d)", n, target)
				if ok {
					require.Equal(t, target, keys[pos], "n=%d Find(%d)", n, target)
					require.Equal(t, fmt.Sprint(target), v)
				}

				byPos, _, byOK := m.FindBy(func(c int) int { return cmp.Compare(c, target) })
				require.Equal(t, ok, byOK)
				require.Equal(t, pos, byPos)

				require.Equal(t, lower < n, it.SeekGE(target), "n=%d SeekGE(%d)", n, target)
				if lower < n {
					require.Equal(t, lower, it.Position(), "n=%d SeekGE(%d)", n, target)
					require.Equal(t, keys[lower], it.Key())
				}
				require.NoError(t, it.Err())
			}
		}
	}
}

func TestRepeatedReadsAreIdempotent(t *testing.T) {
	keys := sortedWithDuplicates(rand.New(rand.NewPCG(3, 5)), 200)
	m := buildInts(t, keys)

	first := slices.Collect(m.Keys())
	for range 3 {
		assert.Equal(t, first, slices.Collect(m.Keys()))
		assert.Equal(t, keys, first)

		for i, k := range keys {
			gk, gv, ok := m.Get(i)
			require.True(t, ok)
			assert.Equal(t, k, gk)
			assert.Equal(t, fmt.Sprint(k), gv)
		}
	}

	for _, k := range keys {
		pos, _, ok := m.Find(k)
		require.True(t, ok)
		for range 3 {
			again, _, ok := m.Find(k)
			require.True(t, ok)
			assert.Equal(t, pos, again)
		}
	}
}

func TestZeroValueMapIsEmpty(t *testing.T) {
	var m SkipMap[int, string]

	assert.Equal(t, 0, m.Len())
	assert.True(t, m.IsEmpty())
	assert.Empty(t, m.EntryPoints())
	assert.Empty(t, m.Segments())

	_, _, ok := m.Find(1)
	assert.False(t, ok)
	_, _, err := m.Lookup(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = m.At(0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Empty(t, slices.Collect(m.Keys()))

	it := m.Iterator()
	assert.False(t, it.SeekGE(0))
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())

	assert.Equal(t, Stats{}, m.Stats())
	_, err = m.MarshalBinary()
	assert.ErrorIs(t, err, errNoCodecs)
}
