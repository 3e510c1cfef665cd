// Package metrics exports index counters to Prometheus.
package metrics

import (
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/metailurini/flatskip"
)

// Source is an index whose counters can be exported. *flatskip.SkipMap and
// *flatskip.SkipList satisfy it.
type Source interface {
	Stats() flatskip.Stats
	Len() int
	Segments() []flatskip.Segment
}

// Collector is a prometheus.Collector over a set of named indexes. Every series
// carries an "index" label with the registered name.
type Collector struct {
	mu      sync.RWMutex
	sources map[string]Source

	lookups        *prometheus.Desc
	hits           *prometheus.Desc
	misses         *prometheus.Desc
	entryProbes    *prometheus.Desc
	segmentSteps   *prometheus.Desc
	reads          *prometheus.Desc
	decodeFailures *prometheus.Desc
	records        *prometheus.Desc
	entryPoints    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns an empty Collector whose metric names start with
// namespace, "flatskip" when empty.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "flatskip"
	}
	labels := []string{"index"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		sources:        make(map[string]Source),
		lookups:        desc("lookups_total", "Searches performed."),
		hits:           desc("hits_total", "Searches that found a record."),
		misses:         desc("misses_total", "Searches that found nothing."),
		entryProbes:    desc("entry_probes_total", "Records fetched while scanning entry points."),
		segmentSteps:   desc("segment_steps_total", "Records fetched while walking a segment."),
		reads:          desc("reads_total", "Positional reads."),
		decodeFailures: desc("decode_failures_total", "Records that failed to decode."),
		records:        desc("records", "Records stored in the index."),
		entryPoints:    desc("entry_points", "Entry points of the index."),
	}
}

// Add registers src under name, replacing any index already using the name.
func (c *Collector) Add(name string, src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[name] = src
}

// Remove stops exporting name.
func (c *Collector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, name)
}

// Names returns the registered index names in order.
func (c *Collector) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lookups
	ch <- c.hits
	ch <- c.misses
	ch <- c.entryProbes
	ch <- c.segmentSteps
	ch <- c.reads
	ch <- c.decodeFailures
	ch <- c.records
	ch <- c.entryPoints
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, src := range c.sources {
		s := src.Stats()
		counter := func(d *prometheus.Desc, v int64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), name)
		}
		counter(c.lookups, s.Lookups)
		counter(c.hits, s.Hits)
		counter(c.misses, s.Misses())
		counter(c.entryProbes, s.EntryProbes)
		counter(c.segmentSteps, s.SegmentSteps)
		counter(c.reads, s.Reads)
		counter(c.decodeFailures, s.DecodeFailures)
		ch <- prometheus.MustNewConstMetric(c.records, prometheus.GaugeValue, float64(src.Len()), name)
		ch <- prometheus.MustNewConstMetric(c.entryPoints, prometheus.GaugeValue, float64(len(src.Segments())), name)
	}
}
