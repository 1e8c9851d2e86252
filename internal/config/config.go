// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/imagegallery/service/internal/storage"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port   string
	AppEnv string

	// Object storage. Driver is one of memory, minio, s3, gcs.
	Storage storage.Config

	// EnvFileLoaded reports whether a .env file was read.
	EnvFileLoaded bool
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	loaded := godotenv.Load() == nil

	return &Config{
		Port:          getEnv("PORT", "3000"),
		AppEnv:        getEnv("APP_ENV", "development"),
		EnvFileLoaded: loaded,

		Storage: storage.Config{
			Driver:    storage.Driver(strings.ToLower(getEnv("STORAGE_DRIVER", string(storage.DriverMemory)))),
			Bucket:    getEnv("STORAGE_BUCKET", getEnv("GCS_BUCKET_NAME", "gallery-images")),
			Endpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			UseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",
			Region:    getEnv("STORAGE_REGION", "us-east-1"),
			PathStyle: getEnv("STORAGE_PATH_STYLE", "false") == "true",

			GCSProjectID: getEnv("GOOGLE_CLOUD_PROJECT_ID", ""),
			GCSKeyFile:   getEnv("GOOGLE_CLOUD_KEY_FILE", ""),
		},
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
