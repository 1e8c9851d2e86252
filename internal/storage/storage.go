// Package storage defines the interface for object storage operations.
// Swap implementations by changing the driver selected at startup: MinIO and
// AWS S3 speak the S3 protocol, GCS uses the native Google client, and the
// in-memory driver serves local development and tests.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete storage backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverMinio  Driver = "minio"
	DriverS3     Driver = "s3"
	DriverGCS    Driver = "gcs"
)

// ErrNotFound is returned when the requested key does not exist. Every driver
// maps its native not-found error to this value.
var ErrNotFound = errors.New("storage: object not found")

// PutOptions carries the metadata attached to an object on upload.
type PutOptions struct {
	ContentType string
	// Metadata is small flat user metadata. Keys are normalised to lower case.
	Metadata map[string]string
}

// ObjectInfo describes a stored object. List results may leave ContentType
// and Metadata empty; use Stat for the full record.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Created     time.Time
	Metadata    map[string]string
}

// Store is the interface for writing, reading and enumerating objects.
type Store interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error
	// Download opens the object body. The caller must close it.
	Download(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Stat returns the object's metadata without its body.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes an object identified by key. Deleting a missing key
	// returns ErrNotFound.
	Delete(ctx context.Context, key string) error
	// List returns every object whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Driver names the backend.
	Driver() Driver
}

// exists implements Store.Exists on top of Stat for drivers without a
// cheaper native check.
func exists(ctx context.Context, s Store, key string) (bool, error) {
	if _, err := s.Stat(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
