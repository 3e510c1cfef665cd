package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/google/uuid"

	"github.com/metailurini/flatskip"
	"github.com/metailurini/flatskip/blobstore"
	"github.com/metailurini/flatskip/blobstore/minio"
	"github.com/metailurini/flatskip/codec"
	"github.com/metailurini/flatskip/internal/config"
)

const snapshotExt = ".fskp"

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	cfg    *config.Config
	store  blobstore.BlobStore
	logger *flatskip.Logger
}

// newFlagSet returns a FlagSet carrying the config flags.
func newFlagSet(name string) (*flag.FlagSet, *config.Flags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return fs, config.Register(fs)
}

func newApp(ctx context.Context, flags *config.Flags) (*app, error) {
	cfg, err := flags.Load()
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, store: store, logger: cfg.Logger()}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	switch cfg.Store.Kind {
	case config.StoreMemory:
		return blobstore.NewMemoryStore(), nil
	case config.StoreMinIO:
		m := cfg.Store.MinIO
		s, err := minio.Dial(minio.Config{
			Endpoint:  m.Endpoint,
			Bucket:    m.Bucket,
			Prefix:    m.Prefix,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Secure:    m.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", m.Bucket, err)
		}
		return s, nil
	default:
		return blobstore.NewLocalStore(cfg.Store.Dir), nil
	}
}

// newName returns a time-ordered snapshot name.
func newName() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String() + snapshotExt, nil
}

func (a *app) load(ctx context.Context, name string) (*flatskip.SkipMap[string, string], error) {
	data, err := blobstore.ReadAll(ctx, a.store, name)
	if err != nil {
		return nil, err
	}
	m, err := flatskip.Unmarshal[string, string](data, codec.String{}, codec.String{}, strings.Compare, flatskip.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	a.logger.Info("snapshot loaded", "name", name, "records", m.Len(), "bytes", len(data))
	return m, nil
}

// scanTSV yields key/value pairs from tab separated lines. A line without a
// tab is a key with an empty value; blank lines are skipped. A read error ends
// the sequence and is stored in *errp.
func scanTSV(r io.Reader, errp *error) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 16<<20)
		for sc.Scan() {
			line := strings.TrimRight(sc.Text(), "\r")
			if line == "" {
				continue
			}
			key, value, _ := strings.Cut(line, "\t")
			if !yield(key, value) {
				return
			}
		}
		*errp = sc.Err()
	}
}
