package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioStorage implements Store using a MinIO (or any S3-compatible) backend.
// The bucket stays private: objects are only readable through the server.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists, and
// returns a ready-to-use MinioStorage.
func NewMinioStorage(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, log *zap.Logger) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		log.Info("storage: created bucket", zap.String("bucket", bucket))
	}

	return &MinioStorage{client: client, bucket: bucket}, nil
}

// Driver implements Store.
func (s *MinioStorage) Driver() Driver { return DriverMinio }

// Upload streams reader to MinIO under key. size must be the exact byte count
// (pass -1 only if the size is genuinely unknown, MinIO will buffer it).
func (s *MinioStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Download implements Store. GetObject is lazy, so the object is stat'ed
// first to surface a missing key before any bytes are read.
func (s *MinioStorage) Download(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, minioErr(key, err)
	}
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, minioErr(key, err)
	}
	return obj, minioInfo(st), nil
}

// Stat implements Store.
func (s *MinioStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	st, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, minioErr(key, err)
	}
	return minioInfo(st), nil
}

// Exists implements Store.
func (s *MinioStorage) Exists(ctx context.Context, key string) (bool, error) {
	return exists(ctx, s, key)
}

// Delete removes the object at key from the bucket. RemoveObject succeeds on
// missing keys, so absence is checked explicitly.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.Stat(ctx, key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return minioErr(key, err)
	}
	return nil
}

// List implements Store.
func (s *MinioStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var infos []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %q: %w", prefix, obj.Err)
		}
		infos = append(infos, ObjectInfo{Key: obj.Key, Size: obj.Size, Created: obj.LastModified})
	}
	return infos, nil
}

func minioInfo(st minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:         st.Key,
		Size:        st.Size,
		ContentType: st.ContentType,
		Created:     st.LastModified,
		Metadata:    normaliseMetadata(st.UserMetadata),
	}
}

func minioErr(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("object %q: %w", key, ErrNotFound)
	}
	return fmt.Errorf("object %q: %w", key, err)
}
