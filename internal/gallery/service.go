// Package gallery implements the image gallery: uploads, listing, proxy-serve
// and deletion on top of a storage.Store. All state lives in the store; the
// listing is recomputed from store metadata on every call.
package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imagegallery/service/internal/storage"
)

const (
	// UploadPrefix is the key prefix of every gallery object.
	UploadPrefix = "uploads/"
	// ServePath is the route prefix of the proxy-serve endpoint.
	ServePath = "/image/"
	// MaxUploadSize is the largest accepted image, in bytes.
	MaxUploadSize = 5 << 20
	// CacheMaxAge bounds how long clients may cache served images.
	CacheMaxAge = 24 * time.Hour
	// DefaultContentType is served when the store has no content type.
	DefaultContentType = "image/jpeg"

	metaOriginalName = "original-name"
	randomSuffixMax  = 1_000_000_000
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {}, ".svg": {},
}

// extensionsByType supplies a key extension when the uploaded filename has none.
var extensionsByType = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/svg+xml": ".svg",
}

// Service contains the gallery operations.
type Service struct {
	store storage.Store
	log   *zap.Logger

	now    func() time.Time
	random func() int64
}

// NewService creates a new gallery Service.
func NewService(store storage.Store, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		log:    log,
		now:    time.Now,
		random: func() int64 { return rand.Int64N(randomSuffixMax) },
	}
}

// UploadInput is one file taken from an upload request.
type UploadInput struct {
	Filename    string
	ContentType string
	// Size is the declared size; -1 when unknown. The body is measured regardless.
	Size int64
	Body io.Reader
}

// UploadResult identifies a stored image.
type UploadResult struct {
	Key string
	URL string
}

// Upload validates in, stores it under a fresh key and returns that key.
func (s *Service) Upload(ctx context.Context, in *UploadInput) (*UploadResult, error) {
	if in == nil || in.Body == nil {
		return nil, newError(InvalidInput, "No file uploaded", nil)
	}
	if in.Size > MaxUploadSize {
		return nil, newError(PayloadTooLarge, "File too large", nil)
	}
	if !strings.HasPrefix(strings.ToLower(in.ContentType), "image/") {
		return nil, newError(UnsupportedMediaType, "Only image files are allowed!", nil)
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, MaxUploadSize+1))
	if err != nil {
		return nil, newError(InvalidInput, "Failed to read uploaded file", err)
	}
	if len(data) > MaxUploadSize {
		return nil, newError(PayloadTooLarge, "File too large", nil)
	}
	if len(data) == 0 {
		return nil, newError(InvalidInput, "Uploaded file is empty", nil)
	}

	key := s.newKey(in.Filename, in.ContentType)
	opts := storage.PutOptions{ContentType: in.ContentType}
	if in.Filename != "" {
		opts.Metadata = map[string]string{metaOriginalName: encodeOriginalName(in.Filename)}
	}
	if err := s.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return nil, newError(StorageWriteFailed, "Upload failed", err)
	}

	s.log.Info("image uploaded",
		zap.String("key", key),
		zap.String("original_name", in.Filename),
		zap.Int("size", len(data)))

	return &UploadResult{Key: key, URL: URLFor(key)}, nil
}

// newKey builds uploads/<epochMillis>-<random><ext>. The timestamp and
// random suffix make collisions negligible without coordination.
func (s *Service) newKey(filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if !isSafeExt(ext) {
		ext = ""
	}
	if ext == "" {
		mediaType, _, _ := strings.Cut(strings.ToLower(contentType), ";")
		ext = extensionsByType[strings.TrimSpace(mediaType)]
	}
	return UploadPrefix +
		strconv.FormatInt(s.now().UnixMilli(), 10) + "-" +
		strconv.FormatInt(s.random(), 10) + ext
}

// isSafeExt rejects extensions that would smuggle separators or odd bytes into keys.
func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 10 {
		return false
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// List returns every stored image, newest first. Entries whose metadata
// cannot be read are left out rather than failing the listing.
func (s *Service) List(ctx context.Context) ([]Image, error) {
	infos, err := s.store.List(ctx, UploadPrefix)
	if err != nil {
		return nil, newError(StorageReadFailed, "Failed to fetch images", err)
	}

	images := make([]Image, 0, len(infos))
	for _, entry := range infos {
		if !isImageKey(entry.Key) {
			continue
		}
		info, err := s.store.Stat(ctx, entry.Key)
		if err != nil {
			s.log.Warn("skipping image with unreadable metadata", zap.String("key", entry.Key), zap.Error(err))
			continue
		}
		if info.Created.IsZero() {
			info.Created = entry.Created
		}
		images = append(images, newImage(info))
	}

	sort.Slice(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if !a.UploadTime.Equal(b.UploadTime) {
			return a.UploadTime.After(b.UploadTime)
		}
		return a.Key > b.Key
	})
	return images, nil
}

// Open checks that key exists and opens it for streaming. Only keys under
// UploadPrefix are served.
func (s *Service) Open(ctx context.Context, key string) (*Object, error) {
	if !isGalleryKey(key) {
		return nil, newError(NotFound, "Image not found", nil)
	}
	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		return nil, newError(StorageReadFailed, "Failed to read image", err)
	}
	if !ok {
		return nil, newError(NotFound, "Image not found", nil)
	}
	body, info, err := s.store.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(NotFound, "Image not found", err)
		}
		return nil, newError(StorageReadFailed, "Failed to read image", err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	return &Object{Key: key, ContentType: contentType, Size: info.Size, Body: body}, nil
}

// Delete removes key. A missing key is reported as DeleteFailed.
func (s *Service) Delete(ctx context.Context, key string) error {
	if !isGalleryKey(key) {
		return newError(DeleteFailed, "Failed to delete image", fmt.Errorf("key %q outside %s", key, UploadPrefix))
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return newError(DeleteFailed, "Failed to delete image", err)
	}
	s.log.Info("image deleted", zap.String("key", key))
	return nil
}

func isGalleryKey(key string) bool {
	return len(key) > len(UploadPrefix) && strings.HasPrefix(key, UploadPrefix) && !strings.Contains(key, "..")
}
