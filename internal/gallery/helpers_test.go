package gallery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/imagegallery/service/internal/storage"
)

var errBackend = errors.New("backend unavailable")

// faultyStore wraps a Store and injects failures or fixed creation times.
type faultyStore struct {
	storage.Store

	created     map[string]time.Time
	statCreated map[string]time.Time // overrides the creation time Stat reports
	statErr     map[string]error
	hidden      map[string]bool
	listErr     error
	uploadErr   error
	readErr     error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:       storage.NewMemoryStorage(),
		created:     make(map[string]time.Time),
		statCreated: make(map[string]time.Time),
		statErr:     make(map[string]error),
		hidden:      make(map[string]bool),
	}
}

func (f *faultyStore) Upload(ctx context.Context, key string, r io.Reader, size int64, opts storage.PutOptions) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	return f.Store.Upload(ctx, key, r, size, opts)
}

func (f *faultyStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	infos, err := f.Store.List(ctx, prefix)
	for i := range infos {
		if t, ok := f.created[infos[i].Key]; ok {
			infos[i].Created = t
		}
	}
	return infos, err
}

func (f *faultyStore) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	if err := f.statErr[key]; err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := f.Store.Stat(ctx, key)
	if t, ok := f.created[key]; ok {
		info.Created = t
	}
	if t, ok := f.statCreated[key]; ok {
		info.Created = t
	}
	return info, err
}

func (f *faultyStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := f.statErr[key]; err != nil {
		return false, err
	}
	if f.hidden[key] {
		return false, nil
	}
	return f.Store.Exists(ctx, key)
}

func (f *faultyStore) Download(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	rc, info, err := f.Store.Download(ctx, key)
	if err != nil || f.readErr == nil {
		return rc, info, err
	}
	_ = rc.Close()
	return io.NopCloser(&failingReader{err: f.readErr}), info, nil
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

func (f *faultyStore) put(t *testing.T, key, contentType string, data []byte, created time.Time) {
	t.Helper()
	err := f.Store.Upload(context.Background(), key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: contentType})
	if err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
	if !created.IsZero() {
		f.created[key] = created
	}
}

func newTestService(store storage.Store) *Service {
	svc := NewService(store, zap.NewNop())
	svc.now = func() time.Time { return time.UnixMilli(1718000000000) }
	svc.random = func() int64 { return 42 }
	return svc
}

func newTestRouter(store storage.Store) chi.Router {
	r := chi.NewRouter()
	NewHandler(NewService(store, zap.NewNop()), zap.NewNop()).Register(r)
	return r
}

// multipartBody builds a form with one file part whose Content-Type is set explicitly.
func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func pngBytes(n int) []byte {
	b := bytes.Repeat([]byte{0xAB}, n)
	copy(b, []byte("\x89PNG\r\n\x1a\n"))
	return b
}
