package flatskip

import (
	"github.com/metailurini/flatskip/store"
)

// Option configures construction and loading of an index.
type Option func(*options)

type options struct {
	logger        *Logger
	metrics       *Metrics
	validateSort  bool
	encodeWorkers int
	newStore      func(records int) store.Store
	compression   Compression
}

func defaultOptions() options {
	return options{
		encodeWorkers: 1,
		newStore: func(records int) store.Store {
			return store.NewMemory(records, 16)
		},
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	return o
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics makes the index record into m, so several indexes can share one
// set of counters.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSortValidation makes construction fail with ErrUnsorted when a key is
// smaller than the one before it. Without it unsorted input is accepted and
// searches over the result are unreliable.
func WithSortValidation() Option {
	return func(o *options) { o.validateSort = true }
}

// WithEncodeConcurrency encodes records on up to n goroutines during
// construction. Records are still stored in input order.
func WithEncodeConcurrency(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.encodeWorkers = n
	}
}

// WithStore replaces the record store constructor. records is the number of
// records about to be inserted.
func WithStore(newStore func(records int) store.Store) Option {
	return func(o *options) { o.newStore = newStore }
}

// WithCompression sets the body compression used when the index is written as a
// snapshot.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}
