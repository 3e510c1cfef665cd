package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/metailurini/flatskip"
	"github.com/metailurini/flatskip/blobstore"
	"github.com/metailurini/flatskip/codec"
	"github.com/metailurini/flatskip/metrics"
)

func runBuild(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs, flags := newFlagSet("build")
	in := fs.String("in", "-", "Input TSV file, - for stdin")
	name := fs.String("name", "", "Snapshot name (generated when empty)")
	validate := fs.Bool("validate", false, "Reject input that is not sorted by key")
	unsorted := fs.Bool("unsorted", false, "Sort the input in memory before building; later duplicates win")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}

	r := stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	opts := a.cfg.Options()
	if *validate {
		opts = append(opts, flatskip.WithSortValidation())
	}

	var (
		scanErr error
		m       *flatskip.SkipMap[string, string]
	)
	if *unsorted {
		b := flatskip.NewBuilder[string, string](codec.String{}, codec.String{}, strings.Compare, opts...)
		for k, v := range scanTSV(r, &scanErr) {
			b.Put(k, v)
		}
		if scanErr == nil {
			m, err = b.Build()
		}
	} else {
		m, err = flatskip.Build(scanTSV(r, &scanErr), codec.String{}, codec.String{}, strings.Compare, opts...)
	}
	if scanErr != nil {
		return fmt.Errorf("read input: %w", scanErr)
	}
	if err != nil {
		return err
	}

	if *name == "" {
		if *name, err = newName(); err != nil {
			return err
		}
	}
	if err := blobstore.SaveSnapshot(ctx, a.store, *name, m); err != nil {
		return err
	}
	a.logger.Info("snapshot saved", "name", *name, "records", m.Len(), "entry_points", len(m.EntryPoints()), "compression", a.cfg.Compression)
	fmt.Fprintln(stdout, *name)
	return nil
}

func runFind(ctx context.Context, args []string, stdout io.Writer) error {
	fs, flags := newFlagSet("find")
	name := fs.String("name", "", "Snapshot name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}
	m, err := a.load(ctx, *name)
	if err != nil {
		return err
	}
	for _, key := range fs.Args() {
		pos, value, err := m.Lookup(key)
		switch {
		case err == nil:
			fmt.Fprintf(stdout, "%s\t%d\t%s\n", key, pos, value)
		case errors.Is(err, flatskip.ErrNotFound):
			fmt.Fprintf(stdout, "%s\tabsent\n", key)
		default:
			return fmt.Errorf("find %q: %w", key, err)
		}
	}
	return nil
}

func runDump(ctx context.Context, args []string, stdout io.Writer) error {
	fs, flags := newFlagSet("dump")
	name := fs.String("name", "", "Snapshot name")
	from := fs.String("from", "", "Start at the first key not below this one")
	limit := fs.Int("limit", 0, "Stop after this many records (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}
	m, err := a.load(ctx, *name)
	if err != nil {
		return err
	}

	it := m.Iterator()
	if *from != "" {
		it.SeekGE(*from)
	} else {
		it.Next()
	}
	for n := 0; it.Valid() && (*limit <= 0 || n < *limit); n++ {
		fmt.Fprintf(stdout, "%d\t%s\t%s\n", it.Position(), it.Key(), it.Value())
		it.Next()
	}
	return it.Err()
}

func runStats(ctx context.Context, args []string, stdout io.Writer) error {
	fs, flags := newFlagSet("stats")
	name := fs.String("name", "", "Snapshot name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}
	m, err := a.load(ctx, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "records\t%d\n", m.Len())
	fmt.Fprintf(stdout, "entry_points\t%v\n", m.EntryPoints())
	for _, s := range m.Segments() {
		fmt.Fprintf(stdout, "segment\t%d\t%d\n", s.Start, s.Len)
	}
	return nil
}

func runList(ctx context.Context, args []string, stdout io.Writer) error {
	fs, flags := newFlagSet("list")
	prefix := fs.String("prefix", "", "Only list names with this prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}
	names, err := a.store.List(ctx, *prefix)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(stdout, n)
	}
	return nil
}

type nameList []string

func (n *nameList) String() string { return strings.Join(*n, ",") }

func (n *nameList) Set(v string) error {
	*n = append(*n, v)
	return nil
}

func runServe(ctx context.Context, args []string, stdout io.Writer) error {
	fs, flags := newFlagSet("serve")
	addr := fs.String("addr", ":9100", "Listen address")
	var names nameList
	fs.Var(&names, "name", "Snapshot to serve (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New("serve: at least one -name is required")
	}
	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}

	maps := make(map[string]*flatskip.SkipMap[string, string], len(names))
	collector := metrics.NewCollector("")
	for _, name := range names {
		m, err := a.load(ctx, name)
		if err != nil {
			return err
		}
		maps[name] = m
		collector.Add(name, m)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /find", func(w http.ResponseWriter, r *http.Request) {
		m, ok := maps[r.URL.Query().Get("name")]
		if !ok {
			http.Error(w, "unknown index", http.StatusNotFound)
			return
		}
		pos, value, err := m.Lookup(r.URL.Query().Get("key"))
		switch {
		case err == nil:
			fmt.Fprintf(w, "%d\t%s\n", pos, value)
		case errors.Is(err, flatskip.ErrNotFound):
			http.Error(w, "absent", http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("serving", "addr", *addr, "indexes", len(maps))
		fmt.Fprintln(stdout, "listening on", *addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
