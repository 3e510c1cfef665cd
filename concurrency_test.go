package flatskip

import (
	"math/rand"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConcurrentReadersStorm(t *testing.T) {
	t.Cleanup(func() {
		if t.Failed() {
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	})

	seed := time.Now().UnixNano()
	t.Logf("test seed=%d", seed)

	const keySpace = 4096
	m := buildInts(t, rangeInts(0, keySpace, 2))

	goroutines := max(2*runtime.GOMAXPROCS(0), 4)
	const operationsPerGoroutine = 2000

	var (
		wg       sync.WaitGroup
		searches atomic.Int64
		hits     atomic.Int64
		reads    atomic.Int64
		failures = make(chan string, goroutines)
	)
	for g := range goroutines {
		wg.Add(1)
		go func(s int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(s))
			fail := func(msg string) {
				select {
				case failures <- msg:
				default:
				}
			}
			for range operationsPerGoroutine {
				key := r.Intn(keySpace)
				switch r.Intn(4) {
				case 0: // Find
					searches.Add(1)
					pos, v, ok := m.Find(key)
					if ok != (key%2 == 0) {
						fail("Find(" + strconv.Itoa(key) + ") presence mismatch")
						return
					}
					if ok {
						hits.Add(1)
						if int(pos) != key/2 || v != strconv.Itoa(key) {
							fail("Find(" + strconv.Itoa(key) + ") wrong record")
							return
						}
					}
				case 1: // Get
					reads.Add(1)
					k, _, ok := m.Get(key / 2)
					if !ok || k != key/2*2 {
						fail("Get(" + strconv.Itoa(key/2) + ") mismatch")
						return
					}
				case 2: // FindBy
					searches.Add(1)
					target := key / 2 * 2
					pos, _, ok := m.FindBy(func(c int) int { return c - target })
					if !ok || int(pos) != target/2 {
						fail("FindBy(" + strconv.Itoa(target) + ") mismatch")
						return
					}
					hits.Add(1)
				case 3: // SeekGE then a short scan
					it := m.Iterator()
					if !it.SeekGE(key) {
						if key < keySpace-2 {
							fail("SeekGE(" + strconv.Itoa(key) + ") found nothing")
							return
						}
						continue
					}
					reads.Add(1)
					prev := it.Key()
					if prev < key {
						fail("SeekGE(" + strconv.Itoa(key) + ") went backwards")
						return
					}
					for range 3 {
						if !it.Next() {
							break
						}
						reads.Add(1)
						if it.Key() != prev+2 {
							fail("iterator skipped a record")
							return
						}
						prev = it.Key()
					}
				}
			}
		}(seed + int64(g))
	}
	wg.Wait()
	close(failures)
	for msg := range failures {
		t.Fatal(msg)
	}

	st := m.Stats()
	if st.Lookups != searches.Load() {
		t.Fatalf("lookups: counted %d, performed %d", st.Lookups, searches.Load())
	}
	if st.Hits != hits.Load() {
		t.Fatalf("hits: counted %d, observed %d", st.Hits, hits.Load())
	}
	if st.Reads != reads.Load() {
		t.Fatalf("reads: counted %d, performed %d", st.Reads, reads.Load())
	}
	if st.DecodeFailures != 0 {
		t.Fatalf("unexpected decode failures: %d", st.DecodeFailures)
	}
}

func TestConcurrentSnapshotLoads(t *testing.T) {
	m := buildInts(t, rangeInts(0, 1000, 1), WithCompression(CompressionZstd))
	b, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := loadInts(b)
			if err != nil {
				errs <- err
				return
			}
			if _, v, ok := got.Find(999); !ok || v != "999" {
				errs <- ErrNotFound
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
