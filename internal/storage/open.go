package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures a storage driver.
type Config struct {
	Driver    Driver
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	PathStyle bool

	GCSProjectID string
	GCSKeyFile   string
}

// Open returns the Store named by cfg.Driver.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		log.Warn("storage: using in-memory driver, uploads are lost on restart")
		return NewMemoryStorage(), nil
	case DriverMinio:
		if cfg.Bucket == "" {
			return nil, errors.New("minio bucket required")
		}
		return NewMinioStorage(ctx, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Bucket, cfg.UseSSL, log)
	case DriverS3:
		return NewS3Storage(ctx, S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
			PathStyle:       cfg.PathStyle,
		})
	case DriverGCS:
		log.Info("storage: using gcs", zap.String("project", cfg.GCSProjectID), zap.String("bucket", cfg.Bucket))
		return NewGCSStorage(ctx, cfg.Bucket, cfg.GCSKeyFile)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
