// Package blobstore persists index snapshots as named, immutable blobs.
//
// Backends: MemoryStore for tests, LocalStore for a directory on disk and
// minio.Store for S3-compatible object storage.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It is os.ErrNotExist so
// errors.Is works for every backend.
var ErrNotFound = os.ErrNotExist

// ErrInvalidName is returned for names that would resolve outside a store's root.
var ErrInvalidName = errors.New("blobstore: invalid blob name")

// BlobStore stores whole blobs by name.
type BlobStore interface {
	// Put writes data under name, replacing any previous blob.
	Put(ctx context.Context, name string, data []byte) error
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// SaveSnapshot writes the output of src to name.
func SaveSnapshot(ctx context.Context, bs BlobStore, name string, src io.WriterTo) error {
	var buf bytes.Buffer
	if _, err := src.WriteTo(&buf); err != nil {
		return fmt.Errorf("blobstore: encode %s: %w", name, err)
	}
	if err := bs.Put(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("blobstore: put %s: %w", name, err)
	}
	return nil
}

// ReadAll returns the whole content of name.
func ReadAll(ctx context.Context, bs BlobStore, name string) ([]byte, error) {
	b, err := bs.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open %s: %w", name, err)
	}
	defer b.Close()

	data := make([]byte, b.Size())
	if _, err := b.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
	}
	return data, nil
}

// NewReader returns a reader over the whole blob.
func NewReader(b Blob) io.Reader {
	return io.NewSectionReader(b, 0, b.Size())
}
