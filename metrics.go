package flatskip

import (
	"math/bits"
	"runtime"
	"sync/atomic"
)

type metricShard struct {
	lookups        atomic.Int64
	hits           atomic.Int64
	entryProbes    atomic.Int64
	segmentSteps   atomic.Int64
	reads          atomic.Int64
	decodeFailures atomic.Int64
	// Pad to cache line size to prevent false sharing.
	_ [16]byte
}

// Metrics counts index activity. Counters are spread over per-CPU shards so
// concurrent readers do not contend on one cache line.
type Metrics struct {
	shards []metricShard
	mask   uint32
	picker *shardPicker
}

// Stats is a point-in-time copy of the counters.
type Stats struct {
	// Lookups is the number of searches run.
	Lookups int64
	// Hits is the number of searches that found a record.
	Hits int64
	// EntryProbes counts records fetched while scanning entry points.
	EntryProbes int64
	// SegmentSteps counts records fetched while walking a segment.
	SegmentSteps int64
	// Reads counts positional reads (Get, At and iteration).
	Reads int64
	// DecodeFailures counts records that could not be decoded.
	DecodeFailures int64
}

// Misses is the number of searches that found nothing.
func (s Stats) Misses() int64 { return s.Lookups - s.Hits }

// NewMetrics returns an empty set of counters.
func NewMetrics() *Metrics {
	return newMetrics(newShardPicker(clockSeed()))
}

// newMetrics uses a single shard when picker is nil.
func newMetrics(picker *shardPicker) *Metrics {
	shardCount := 1
	if picker != nil {
		shardCount = nextPowerOfTwo(max(runtime.GOMAXPROCS(0), 1))
	}
	return &Metrics{
		shards: make([]metricShard, shardCount),
		mask:   uint32(shardCount - 1),
		picker: picker,
	}
}

func nextPowerOfTwo(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(v-1))
}

// shard returns nil for a nil Metrics, which records nothing.
func (m *Metrics) shard() *metricShard {
	if m == nil {
		return nil
	}
	if len(m.shards) == 1 {
		return &m.shards[0]
	}
	return &m.shards[m.picker.pick(m.mask)]
}

func (m *Metrics) observeSearch(probes, steps int64, hit bool) {
	s := m.shard()
	if s == nil {
		return
	}
	s.lookups.Add(1)
	if hit {
		s.hits.Add(1)
	}
	s.entryProbes.Add(probes)
	s.segmentSteps.Add(steps)
}

func (m *Metrics) incRead() {
	if s := m.shard(); s != nil {
		s.reads.Add(1)
	}
}

func (m *Metrics) incDecodeFailure() {
	if s := m.shard(); s != nil {
		s.decodeFailures.Add(1)
	}
}

// Stats sums all shards.
func (m *Metrics) Stats() Stats {
	var s Stats
	if m == nil {
		return s
	}
	for i := range m.shards {
		sh := &m.shards[i]
		s.Lookups += sh.lookups.Load()
		s.Hits += sh.hits.Load()
		s.EntryProbes += sh.entryProbes.Load()
		s.SegmentSteps += sh.segmentSteps.Load()
		s.Reads += sh.reads.Load()
		s.DecodeFailures += sh.decodeFailures.Load()
	}
	return s
}
