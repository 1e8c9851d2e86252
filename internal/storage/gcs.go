package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStorage implements Store on Google Cloud Storage. Objects are written
// without public ACLs.
type GCSStorage struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

// NewGCSStorage creates a GCS client. keyFile is optional; without it the
// application default credentials are used.
func NewGCSStorage(ctx context.Context, bucket, keyFile string, opts ...option.ClientOption) (*GCSStorage, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket required")
	}
	if keyFile != "" {
		opts = append(opts, option.WithCredentialsFile(keyFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStorage{client: client, bucket: client.Bucket(bucket)}, nil
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error { return s.client.Close() }

// Driver implements Store.
func (s *GCSStorage) Driver() Driver { return DriverGCS }

// Upload implements Store.
func (s *GCSStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.Metadata = normaliseMetadata(opts.Metadata)
	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer %q: %w", key, err)
	}
	return nil
}

// Download implements Store.
func (s *GCSStorage) Download(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj := s.bucket.Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, ObjectInfo{}, gcsErr(key, err)
	}
	r, err := obj.Generation(attrs.Generation).NewReader(ctx)
	if err != nil {
		return nil, ObjectInfo{}, gcsErr(key, err)
	}
	return r, gcsInfo(attrs), nil
}

// Stat implements Store.
func (s *GCSStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return ObjectInfo{}, gcsErr(key, err)
	}
	return gcsInfo(attrs), nil
}

// Exists implements Store.
func (s *GCSStorage) Exists(ctx context.Context, key string) (bool, error) {
	return exists(ctx, s, key)
}

// Delete implements Store.
func (s *GCSStorage) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		return gcsErr(key, err)
	}
	return nil
}

// List implements Store. GCS already returns keys in lexicographic order.
func (s *GCSStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects %q: %w", prefix, err)
		}
		infos = append(infos, ObjectInfo{Key: attrs.Name, Size: attrs.Size, Created: attrs.Created})
	}
	return infos, nil
}

func gcsInfo(attrs *gcs.ObjectAttrs) ObjectInfo {
	return ObjectInfo{
		Key:         attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Created:     attrs.Created,
		Metadata:    normaliseMetadata(attrs.Metadata),
	}
}

func gcsErr(key string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("object %q: %w", key, ErrNotFound)
	}
	return fmt.Errorf("object %q: %w", key, err)
}
