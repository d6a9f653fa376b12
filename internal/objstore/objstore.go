package objstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Get, Head, and Delete for unknown keys.
var ErrNotExist = errors.New("object does not exist")

// Metadata is the string key-value metadata attached to one stored object.
type Metadata map[string]string

// ObjectInfo describes one stored object and its attached metadata.
type ObjectInfo struct {
	Key  string
	Size int64
	Meta Metadata
}

// Store is the byte-storage abstraction backing the blob service. All
// durable state lives behind this interface; implementations must be safe
// for concurrent use.
type Store interface {
	// Put stores the object under key. size is the exact payload length.
	Put(ctx context.Context, key string, r io.Reader, size int64, meta Metadata) error
	// Get opens the object for reading together with its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Head returns object info without the payload.
	Head(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes the object. Unknown keys return ErrNotExist.
	Delete(ctx context.Context, key string) error
	// List enumerates every stored object with metadata in a single
	// unpaginated pass. Enumeration order is unspecified.
	List(ctx context.Context) ([]ObjectInfo, error)
	// Close releases backend resources.
	Close() error
}

// Clone returns a copy of the metadata map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
